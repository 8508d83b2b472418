package models

import "time"

// UserTokenModel pairs the random access/refresh keys of one signed-in
// session. Rows are never mutated except to consume them: a refresh sets
// RevokedAt and forces ExpiresAt to now, then a fresh row is created.
type UserTokenModel struct {
	Base
	UserID     string     `json:"-"          gorm:"type:char(36);index;not null"`
	AccessKey  string     `json:"-"          gorm:"size:250;index"`
	RefreshKey string     `json:"-"          gorm:"size:250;index"`
	ExpiresAt  time.Time  `json:"expires_at" gorm:"index;not null"`
	RevokedAt  *time.Time `json:"revoked_at" gorm:"index"`
	User       UserModel  `json:"-"          gorm:"foreignKey:UserID"`
}

func (UserTokenModel) TableName() string { return "user_tokens" }
