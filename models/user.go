package models

import (
	"time"

	"gorm.io/gorm"
)

// User roles
const (
	RoleCustomer = "customer"
	RoleWorkshop = "workshop"
	RoleAdmin    = "admin"
)

// User represents a user in the system (customer, workshop owner or admin)
type User struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Auth0ID    string         `gorm:"uniqueIndex;not null" json:"auth0_id"` // Auth0 user ID (from 'sub' claim)
	Name       string         `gorm:"not null" json:"name"`
	Email      string         `gorm:"uniqueIndex;not null" json:"email"`
	Role       string         `gorm:"not null;default:'customer'" json:"role"` // "customer", "workshop" or "admin"
	WorkshopID *uint          `gorm:"index" json:"workshop_id,omitempty"`      // set once the user registers a workshop
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

// IsValidRole reports whether role can be assigned from identity provider claims
func IsValidRole(role string) bool {
	return role == RoleCustomer || role == RoleWorkshop || role == RoleAdmin
}
