package models

import (
	"time"

	"gorm.io/gorm"
)

// Message represents a message in an appointment conversation
type Message struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	AppointmentID uint           `gorm:"not null;index" json:"appointment_id"` // foreign key to appointments table
	SenderID      uint           `gorm:"not null;index" json:"sender_id"`      // foreign key to users table
	Sender        User           `gorm:"foreignKey:SenderID" json:"sender"`
	SenderType    string         `gorm:"not null" json:"sender_type"` // customer or workshop
	Content       string         `gorm:"type:text;not null" json:"content"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Message model
func (Message) TableName() string {
	return "messages"
}
