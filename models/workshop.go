package models

import (
	"time"

	"github.com/autofix-app/autofix-api/rating"
	"gorm.io/gorm"
)

// Workshop statuses
const (
	WorkshopActive   = "active"
	WorkshopInactive = "inactive"
)

// HourlyRate is a labelled labour rate shown on the workshop page
type HourlyRate struct {
	Label string  `json:"label" binding:"required,max=60"`
	Rate  float64 `json:"rate" binding:"gte=0"`
}

// Workshop represents a repair workshop listed on the marketplace
type Workshop struct {
	ID              uint                   `gorm:"primaryKey" json:"id"`
	OwnerID         uint                   `gorm:"not null;uniqueIndex" json:"owner_id"`
	Name            string                 `gorm:"not null" json:"name"`
	Description     string                 `gorm:"type:text" json:"description"`
	Phone           string                 `json:"phone"`
	Address         string                 `json:"address"`
	City            string                 `gorm:"index" json:"city"`
	Zone            string                 `json:"zone"`
	Services        []string               `gorm:"type:text;serializer:json" json:"services"`
	HourlyRates     []HourlyRate           `gorm:"type:text;serializer:json" json:"hourly_rates"`
	OpeningHours    map[string]string      `gorm:"type:text;serializer:json" json:"opening_hours"`
	Photos          []string               `gorm:"type:text;serializer:json" json:"photos"`       // storage keys
	PhotoURLs       []string               `gorm:"-" json:"photo_urls,omitempty"`                 // computed field, resolved from Photos
	Status          string                 `gorm:"not null;default:'active';index" json:"status"` // active, inactive
	IsPremium       bool                   `gorm:"not null;default:false" json:"is_premium"`
	CategoryRatings rating.CategoryRatings `gorm:"type:text;serializer:json" json:"category_ratings"`
	AverageRating   float64                `gorm:"not null;default:0" json:"average_rating"`
	TotalReviews    int                    `gorm:"not null;default:0" json:"total_reviews"`
	AIAccuracyScore float64                `gorm:"not null;default:0" json:"ai_accuracy_score"`
	AIAccuracyCount int                    `gorm:"not null;default:0" json:"ai_accuracy_count"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
	DeletedAt       gorm.DeletedAt         `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Workshop model
func (Workshop) TableName() string {
	return "workshops"
}

// DefaultOpeningHours are applied when a workshop registers without opening hours
func DefaultOpeningHours() map[string]string {
	return map[string]string{
		"monday":    "08:00-18:00",
		"tuesday":   "08:00-18:00",
		"wednesday": "08:00-18:00",
		"thursday":  "08:00-18:00",
		"friday":    "08:00-18:00",
		"saturday":  "08:00-13:00",
		"sunday":    "closed",
	}
}
