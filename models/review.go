package models

import (
	"time"

	"gorm.io/gorm"
)

// Review statuses
const (
	ReviewPending  = "pending"
	ReviewApproved = "approved"
	ReviewRejected = "rejected"
)

// Review represents a customer's rating of a completed appointment
type Review struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	WorkshopID      uint           `gorm:"not null;index" json:"workshop_id"`
	AppointmentID   uint           `gorm:"not null;uniqueIndex" json:"appointment_id"` // one review per appointment
	CustomerID      uint           `gorm:"not null;index" json:"customer_id"`
	CustomerName    string         `json:"customer_name"`
	Rating          int            `gorm:"not null;check:rating >= 1 AND rating <= 5" json:"rating"`
	Title           string         `json:"title"`
	Comment         string         `gorm:"type:text;not null" json:"comment"`
	ServiceReceived string         `json:"service_received"`
	Status          string         `gorm:"not null;default:'pending';index" json:"status"` // pending, approved, rejected
	AdminNotes      *string        `json:"admin_notes,omitempty"`
	ModeratedAt     *time.Time     `json:"moderated_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Review model
func (Review) TableName() string {
	return "reviews"
}
