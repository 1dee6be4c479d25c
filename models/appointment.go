package models

import (
	"time"

	"github.com/autofix-app/autofix-api/booking"
	"gorm.io/gorm"
)

// ChatMessage is one turn of the AI triage conversation
type ChatMessage struct {
	Role    string `json:"role" binding:"required,oneof=system user assistant"`
	Content string `json:"content" binding:"required"`
}

// CompletionFeedback is captured by the workshop when it closes an appointment
type CompletionFeedback struct {
	DiagnosisCorrect  bool    `json:"diagnosis_correct"`
	ActualComponent   *string `json:"actual_component,omitempty"`
	AdditionalNotes   *string `json:"additional_notes,omitempty"`
	OriginalDiagnosis string  `json:"original_diagnosis,omitempty"`
	ServiceCategory   string  `json:"service_category,omitempty"`
	AmountSpent       float64 `json:"amount_spent"`
}

// Appointment represents a booking request between a customer and a workshop
type Appointment struct {
	ID                       uint                `gorm:"primaryKey" json:"id"`
	WorkshopID               uint                `gorm:"not null;index" json:"workshop_id"`
	Workshop                 *Workshop           `gorm:"foreignKey:WorkshopID" json:"workshop,omitempty"`
	CustomerID               uint                `gorm:"not null;index" json:"customer_id"`
	Customer                 *User               `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	CustomerName             string              `gorm:"not null" json:"customer_name"`
	CustomerPhone            string              `json:"customer_phone"`
	CarBrand                 string              `gorm:"not null" json:"car_brand"`
	CarModel                 string              `gorm:"not null" json:"car_model"`
	CarYear                  *int                `json:"car_year"`
	CarPlate                 string              `json:"car_plate"`
	Diagnosis                string              `gorm:"type:text" json:"diagnosis"`
	AIChatHistory            []ChatMessage       `gorm:"type:text;serializer:json" json:"ai_chat_history"`
	ServiceRequested         string              `json:"service_requested"`
	Notes                    string              `gorm:"type:text" json:"notes"`
	PreferredDate            string              `json:"preferred_date"` // YYYY-MM-DD
	PreferredTime            string              `json:"preferred_time"` // HH:MM
	ProposedDate             *string             `json:"proposed_date"`  // open counter-proposal
	ProposedTime             *string             `json:"proposed_time"`
	ConfirmedDate            *string             `gorm:"index" json:"confirmed_date"`
	ConfirmedTime            *string             `json:"confirmed_time"`
	Status                   booking.Status      `gorm:"not null;default:'pending';index" json:"status"` // pending, confirmed, completed, cancelled, declined
	AwaitingConfirmationFrom *booking.Party      `json:"awaiting_confirmation_from"`                     // null, customer, workshop
	WorkshopMessage          string              `gorm:"type:text" json:"workshop_message"`
	CompletionFeedback       *CompletionFeedback `gorm:"type:text;serializer:json" json:"completion_feedback"`
	AmountSpent              *float64            `json:"amount_spent"`
	CarReturned              bool                `gorm:"not null;default:false" json:"car_returned"`
	CreatedAt                time.Time           `json:"created_at"`
	UpdatedAt                time.Time           `json:"updated_at"`
	DeletedAt                gorm.DeletedAt      `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Appointment model
func (Appointment) TableName() string {
	return "appointments"
}

// State returns the part of the appointment owned by the booking state machine
func (a *Appointment) State() booking.State {
	s := booking.State{Status: a.Status}
	if a.AwaitingConfirmationFrom != nil {
		s.AwaitingFrom = *a.AwaitingConfirmationFrom
	}
	return s
}

// SetState writes a state machine result back onto the appointment
func (a *Appointment) SetState(s booking.State) {
	a.Status = s.Status
	if s.AwaitingFrom == booking.PartyNone {
		a.AwaitingConfirmationFrom = nil
		return
	}
	party := s.AwaitingFrom
	a.AwaitingConfirmationFrom = &party
}

// HasAIHistory reports whether the booking came out of an AI triage conversation
func (a *Appointment) HasAIHistory() bool {
	return len(a.AIChatHistory) > 0
}
