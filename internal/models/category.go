package models

// CategoryModel groups products for browsing.
type CategoryModel struct {
	Base
	Name        string `json:"name"        gorm:"size:100;uniqueIndex;not null"`
	Description string `json:"description" gorm:"type:text"`
}

func (CategoryModel) TableName() string { return "categories" }
