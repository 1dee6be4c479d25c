package controllers

import (
	"net/http"
	"strings"

	"github.com/autofix-app/autofix-api/config"
	"github.com/autofix-app/autofix-api/models"
	"github.com/autofix-app/autofix-api/services"
	"github.com/gin-gonic/gin"
)

// SendMessageRequest represents the request body for sending a message
type SendMessageRequest struct {
	Content string `json:"content" binding:"required,max=2000"`
}

// SendMessage handles POST /api/v1/appointments/:id/messages - sends a message on an appointment
// Only the customer and the workshop of the appointment can write
func SendMessage(c *gin.Context) {
	ac, ok := loadAppointment(c, false)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Message content cannot be empty")
		return
	}

	message := models.Message{
		AppointmentID: ac.appointment.ID,
		SenderID:      ac.user.ID,
		SenderType:    string(ac.party),
		Content:       content,
	}

	db := config.GetDB()
	if err := db.Create(&message).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create message")
		return
	}

	// Load the sender relationship to return complete data
	if err := db.Preload("Sender").First(&message, message.ID).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load message details")
		return
	}

	services.GetNotifier().MessageReceived(c.Request.Context(), ac.appointment, ac.callerName(), content, ac.counterpartyID())

	// PureJSON keeps user text unescaped
	c.PureJSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    message,
	})
}

// ListMessages handles GET /api/v1/appointments/:id/messages - oldest first
func ListMessages(c *gin.Context) {
	ac, ok := loadAppointment(c, false)
	if !ok {
		return
	}

	var messages []models.Message
	if err := config.GetDB().Where("appointment_id = ?", ac.appointment.ID).
		Preload("Sender").
		Order("created_at ASC, id ASC").
		Find(&messages).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to fetch messages")
		return
	}

	c.PureJSON(http.StatusOK, gin.H{
		"success": true,
		"data":    messages,
	})
}
