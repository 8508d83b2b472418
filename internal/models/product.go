package models

// ProductModel is a sellable catalog item.
type ProductModel struct {
	Base
	Name        string         `json:"name"        gorm:"size:255;not null"`
	Description string         `json:"description" gorm:"type:text"`
	Price       float64        `json:"price"       gorm:"type:decimal(10,2);not null"`
	Stock       int            `json:"stock"       gorm:"not null;default:0"`
	CategoryID  *string        `json:"category_id" gorm:"type:char(36);index"`
	Category    *CategoryModel `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
}

func (ProductModel) TableName() string { return "products" }
