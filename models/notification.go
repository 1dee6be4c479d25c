package models

import (
	"time"

	"gorm.io/gorm"
)

// Notification types
const (
	NotificationAppointmentCreated   = "appointment_created"
	NotificationAppointmentConfirmed = "appointment_confirmed"
	NotificationTimeChangeProposed   = "time_change_proposed"
	NotificationAppointmentCompleted = "appointment_completed"
	NotificationAppointmentDeclined  = "appointment_declined"
	NotificationAppointmentCancelled = "appointment_cancelled"
	NotificationMessageReceived      = "message_received"
	NotificationReviewApproved       = "review_approved"
)

// Notification is an in-app alert addressed to a single user
type Notification struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	RecipientID   uint           `gorm:"not null;index" json:"recipient_id"`
	Type          string         `gorm:"not null" json:"type"`
	Title         string         `gorm:"not null" json:"title"`
	Message       string         `gorm:"type:text" json:"message"`
	Link          string         `json:"link"`
	AppointmentID *uint          `gorm:"index" json:"appointment_id,omitempty"`
	Read          bool           `gorm:"not null;default:false" json:"read"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Notification model
func (Notification) TableName() string {
	return "notifications"
}
