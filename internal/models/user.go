package models

import "time"

// Role names seeded at startup.
const (
	RoleAdmin  = "admin"
	RoleClient = "client"
)

// UserModel represents a storefront account.
//
// A user can log in only when VerifiedAt is set, IsActive is true and the row
// is not soft-deleted. UpdatedAt participates in proof-token fingerprints, so
// any password or identity change invalidates outstanding email links.
type UserModel struct {
	Base
	Username   string            `json:"username"    gorm:"size:100;not null"`
	Email      string            `json:"email"       gorm:"size:100;uniqueIndex;not null"`
	Password   string            `json:"-"           gorm:"type:text;not null"`
	IsActive   bool              `json:"is_active"   gorm:"not null;default:false"`
	VerifiedAt *time.Time        `json:"verified_at"`
	Roles      []RoleModel       `json:"roles,omitempty"   gorm:"many2many:user_role_associations"`
	Profile    *UserProfileModel `json:"profile,omitempty" gorm:"foreignKey:UserID"`
}

func (UserModel) TableName() string { return "users" }

// HasRole reports whether the user carries the named role. Roles must have
// been preloaded.
func (u *UserModel) HasRole(name string) bool {
	for _, r := range u.Roles {
		if r.Name == name {
			return true
		}
	}
	return false
}

// RoleModel is an assignable user role ("admin", "client").
type RoleModel struct {
	Base
	Name string `json:"name" gorm:"size:50;uniqueIndex;not null"`
}

func (RoleModel) TableName() string { return "user_roles" }

// UserProfileModel holds the optional identity/contact details of a user.
type UserProfileModel struct {
	Base
	UserID    string     `json:"-"          gorm:"type:char(36);uniqueIndex;not null"`
	FirstName string     `json:"first_name" gorm:"size:100;not null"`
	LastName  string     `json:"last_name"  gorm:"size:100;not null"`
	DNI       string     `json:"dni"        gorm:"size:9;uniqueIndex"`
	Phone     string     `json:"phone"      gorm:"size:20"`
	Address   string     `json:"address"    gorm:"size:150"`
	BirthDate *time.Time `json:"birth_date"`
	City      string     `json:"city"       gorm:"size:80"`
	ZipCode   string     `json:"zip_code"   gorm:"size:10"`
}

func (UserProfileModel) TableName() string { return "user_profiles" }
