package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/autofix-app/autofix-api/booking"
	"github.com/autofix-app/autofix-api/config"
	"github.com/autofix-app/autofix-api/models"
	"github.com/autofix-app/autofix-api/rating"
	"github.com/autofix-app/autofix-api/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultDeclineMessage = "The workshop is not available for this appointment"

var (
	errSlotTaken        = errors.New("slot already booked")
	errConcurrentChange = errors.New("appointment changed concurrently")
)

// appointmentStateColumns are the columns a lifecycle action may rewrite
var appointmentStateColumns = []string{
	"status", "awaiting_confirmation_from",
	"proposed_date", "proposed_time",
	"confirmed_date", "confirmed_time",
	"workshop_message", "completion_feedback", "amount_spent", "car_returned",
	"updated_at",
}

// CreateAppointmentRequest represents the request body for booking a workshop
type CreateAppointmentRequest struct {
	WorkshopID       uint                 `json:"workshop_id" binding:"required"`
	CustomerName     string               `json:"customer_name" binding:"max=120"`
	CustomerPhone    string               `json:"customer_phone" binding:"max=30"`
	CarBrand         string               `json:"car_brand" binding:"required,max=60"`
	CarModel         string               `json:"car_model" binding:"required,max=60"`
	CarYear          *int                 `json:"car_year" binding:"omitempty,gte=1900,lte=2100"`
	CarPlate         string               `json:"car_plate" binding:"max=20"`
	Diagnosis        string               `json:"diagnosis" binding:"max=5000"`
	AIChatHistory    []models.ChatMessage `json:"ai_chat_history" binding:"omitempty,dive"`
	ServiceRequested string               `json:"service_requested" binding:"max=60"`
	Notes            string               `json:"notes" binding:"max=2000"`
	PreferredDate    string               `json:"preferred_date" binding:"required"`
	PreferredTime    string               `json:"preferred_time" binding:"required"`
}

// ProposeTimeRequest carries a counter-proposal
type ProposeTimeRequest struct {
	Date    string `json:"date" binding:"required"`
	Time    string `json:"time" binding:"required"`
	Message string `json:"message" binding:"max=1000"`
}

// DeclineRequest carries the workshop's explanation
type DeclineRequest struct {
	Message string `json:"message" binding:"max=1000"`
}

// CompleteRequest is the completion feedback form filled by the workshop
type CompleteRequest struct {
	DiagnosisCorrect *bool    `json:"diagnosis_correct" binding:"required"`
	ActualComponent  string   `json:"actual_component" binding:"max=200"`
	AdditionalNotes  string   `json:"additional_notes" binding:"max=2000"`
	AmountSpent      *float64 `json:"amount_spent" binding:"required,gte=0"`
}

// appointmentContext is a loaded appointment together with the caller's side of it
type appointmentContext struct {
	user        *models.User
	appointment *models.Appointment
	workshop    *models.Workshop
	party       booking.Party
}

// counterpartyID is the user on the other side of the caller
func (a *appointmentContext) counterpartyID() uint {
	if a.party == booking.PartyCustomer {
		return a.workshop.OwnerID
	}
	return a.appointment.CustomerID
}

// callerName is how the caller is shown to the other side
func (a *appointmentContext) callerName() string {
	if a.party == booking.PartyWorkshop {
		return a.workshop.Name
	}
	return a.appointment.CustomerName
}

func partyOf(user *models.User, appt *models.Appointment) booking.Party {
	if appt.CustomerID == user.ID {
		return booking.PartyCustomer
	}
	if user.WorkshopID != nil && *user.WorkshopID == appt.WorkshopID {
		return booking.PartyWorkshop
	}
	return booking.PartyNone
}

// loadAppointment resolves the caller, the appointment and the caller's party.
// Admins may read any appointment but take no part in it.
func loadAppointment(c *gin.Context, allowAdmin bool) (*appointmentContext, bool) {
	user, ok := currentUser(c)
	if !ok {
		return nil, false
	}
	id, ok := idParam(c, "id", "Appointment")
	if !ok {
		return nil, false
	}

	db := config.GetDB()
	var appt models.Appointment
	if err := db.First(&appt, id).Error; err != nil {
		respondError(c, http.StatusNotFound, "APPOINTMENT_NOT_FOUND", "Appointment not found")
		return nil, false
	}

	party := partyOf(user, &appt)
	if party == booking.PartyNone && !(allowAdmin && user.Role == models.RoleAdmin) {
		// Don't reveal that the appointment exists
		respondError(c, http.StatusNotFound, "APPOINTMENT_NOT_FOUND", "Appointment not found")
		return nil, false
	}

	var workshop models.Workshop
	if err := db.Unscoped().First(&workshop, appt.WorkshopID).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load workshop")
		return nil, false
	}

	return &appointmentContext{user: user, appointment: &appt, workshop: &workshop, party: party}, true
}

// saveTransition writes the new state only if nobody changed the appointment's
// state since it was read
func saveTransition(tx *gorm.DB, appt *models.Appointment, prev booking.State) error {
	q := tx.Model(appt).Where("status = ?", prev.Status)
	if prev.AwaitingFrom == booking.PartyNone {
		q = q.Where("awaiting_confirmation_from IS NULL")
	} else {
		q = q.Where("awaiting_confirmation_from = ?", prev.AwaitingFrom)
	}

	appt.UpdatedAt = time.Now()
	res := q.Select(appointmentStateColumns).Updates(appt)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errConcurrentChange
	}
	return nil
}

// ensureSlotFree fails with errSlotTaken when another appointment holds date/clock
func ensureSlotFree(tx *gorm.DB, appt *models.Appointment, date, clock string) error {
	bookings, err := loadBookings(tx, appt.WorkshopID, date, appt.ID)
	if err != nil {
		return err
	}
	if booking.SlotTaken(date, clock, bookings) {
		return errSlotTaken
	}
	return nil
}

// respondSaveError maps persistence failures of a lifecycle action
func respondSaveError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errSlotTaken):
		respondError(c, http.StatusConflict, "SLOT_TAKEN", "That time slot is already booked")
	case errors.Is(err, errConcurrentChange):
		respondError(c, http.StatusConflict, "CONCURRENT_UPDATE", "The appointment was changed by someone else, reload and retry")
	default:
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update appointment")
	}
}

// validateSlotRequest checks the wire formats and that the day has not passed
func validateSlotRequest(c *gin.Context, date, clock string) bool {
	if err := booking.ValidateSlot(date, clock); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid date or time", err.Error())
		return false
	}
	day, _ := time.Parse(booking.DateLayout, date)
	today := time.Now().UTC().Truncate(24 * time.Hour)
	if day.Before(today) {
		respondError(c, http.StatusBadRequest, "DATE_IN_PAST", "The requested date is in the past")
		return false
	}
	return true
}

// CreateAppointment handles POST /api/v1/appointments - customers request a booking
func CreateAppointment(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	if user.Role != models.RoleCustomer {
		respondError(c, http.StatusForbidden, "FORBIDDEN", "Only customers can book appointments")
		return
	}

	var req CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}
	if !validateSlotRequest(c, req.PreferredDate, req.PreferredTime) {
		return
	}

	db := config.GetDB()
	var workshop models.Workshop
	if err := db.Where("status = ?", models.WorkshopActive).First(&workshop, req.WorkshopID).Error; err != nil {
		respondError(c, http.StatusNotFound, "WORKSHOP_NOT_FOUND", "Workshop not found")
		return
	}

	customerName := strings.TrimSpace(req.CustomerName)
	if customerName == "" {
		customerName = user.Name
	}

	appt := models.Appointment{
		WorkshopID:       workshop.ID,
		CustomerID:       user.ID,
		CustomerName:     customerName,
		CustomerPhone:    req.CustomerPhone,
		CarBrand:         req.CarBrand,
		CarModel:         req.CarModel,
		CarYear:          req.CarYear,
		CarPlate:         strings.ToUpper(strings.TrimSpace(req.CarPlate)),
		Diagnosis:        req.Diagnosis,
		AIChatHistory:    req.AIChatHistory,
		ServiceRequested: req.ServiceRequested,
		Notes:            req.Notes,
		PreferredDate:    req.PreferredDate,
		PreferredTime:    req.PreferredTime,
		Status:           booking.StatusPending,
	}

	if err := db.Create(&appt).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create appointment")
		return
	}

	services.GetNotifier().AppointmentCreated(c.Request.Context(), &appt, &workshop)
	respondOK(c, http.StatusCreated, appt)
}

// ListAppointments handles GET /api/v1/appointments?status= - the caller's appointments
func ListAppointments(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	db := config.GetDB()
	query := db.Model(&models.Appointment{})
	switch {
	case user.Role == models.RoleAdmin:
	case user.WorkshopID != nil:
		query = query.Where("workshop_id = ?", *user.WorkshopID)
	default:
		query = query.Where("customer_id = ?", user.ID)
	}

	if status := c.Query("status"); status != "" {
		if !booking.Status(status).Valid() {
			respondError(c, http.StatusBadRequest, "INVALID_STATUS", "Unknown appointment status")
			return
		}
		query = query.Where("status = ?", status)
	}

	var appointments []models.Appointment
	if err := query.Preload("Workshop").Order("created_at DESC").Find(&appointments).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to fetch appointments")
		return
	}

	respondOK(c, http.StatusOK, appointments)
}

// GetAppointment handles GET /api/v1/appointments/:id
func GetAppointment(c *gin.Context) {
	ac, ok := loadAppointment(c, true)
	if !ok {
		return
	}

	ac.appointment.Workshop = ac.workshop
	respondOK(c, http.StatusOK, ac.appointment)
}

// AcceptAppointment handles POST /api/v1/appointments/:id/accept - the party whose
// turn it is confirms the slot on the table
func AcceptAppointment(c *gin.Context) {
	ac, ok := loadAppointment(c, false)
	if !ok {
		return
	}
	appt := ac.appointment
	prev := appt.State()

	next, err := booking.Accept(prev, ac.party)
	if err != nil {
		respondTransitionError(c, err)
		return
	}

	date, clock := appt.PreferredDate, appt.PreferredTime
	if appt.ProposedDate != nil && appt.ProposedTime != nil {
		date, clock = *appt.ProposedDate, *appt.ProposedTime
	}

	err = config.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := ensureSlotFree(tx, appt, date, clock); err != nil {
			return err
		}
		appt.SetState(next)
		appt.ConfirmedDate, appt.ConfirmedTime = &date, &clock
		appt.ProposedDate, appt.ProposedTime = nil, nil
		return saveTransition(tx, appt, prev)
	})
	if err != nil {
		respondSaveError(c, err)
		return
	}

	services.GetNotifier().AppointmentConfirmed(c.Request.Context(), appt, ac.workshop, ac.counterpartyID())
	respondOK(c, http.StatusOK, appt)
}

// ProposeAppointmentTime handles POST /api/v1/appointments/:id/propose - puts a new
// date/time on the table and hands the turn to the other party
func ProposeAppointmentTime(c *gin.Context) {
	ac, ok := loadAppointment(c, false)
	if !ok {
		return
	}

	var req ProposeTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}
	if !validateSlotRequest(c, req.Date, req.Time) {
		return
	}

	appt := ac.appointment
	prev := appt.State()
	next, err := booking.Propose(prev, ac.party)
	if err != nil {
		respondTransitionError(c, err)
		return
	}

	err = config.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := ensureSlotFree(tx, appt, req.Date, req.Time); err != nil {
			return err
		}
		appt.SetState(next)
		appt.ProposedDate, appt.ProposedTime = &req.Date, &req.Time
		if ac.party == booking.PartyWorkshop && req.Message != "" {
			appt.WorkshopMessage = req.Message
		}
		return saveTransition(tx, appt, prev)
	})
	if err != nil {
		respondSaveError(c, err)
		return
	}

	services.GetNotifier().TimeChangeProposed(c.Request.Context(), appt, ac.callerName(), ac.counterpartyID())
	respondOK(c, http.StatusOK, appt)
}

// DeclineAppointment handles POST /api/v1/appointments/:id/decline - workshop only
func DeclineAppointment(c *gin.Context) {
	ac, ok := loadAppointment(c, false)
	if !ok {
		return
	}

	var req DeclineRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	appt := ac.appointment
	prev := appt.State()
	next, err := booking.Decline(prev, ac.party)
	if err != nil {
		respondTransitionError(c, err)
		return
	}

	appt.SetState(next)
	appt.ProposedDate, appt.ProposedTime = nil, nil
	appt.WorkshopMessage = strings.TrimSpace(req.Message)
	if appt.WorkshopMessage == "" {
		appt.WorkshopMessage = defaultDeclineMessage
	}
	if err := saveTransition(config.GetDB(), appt, prev); err != nil {
		respondSaveError(c, err)
		return
	}

	services.GetNotifier().AppointmentDeclined(c.Request.Context(), appt, ac.workshop)
	respondOK(c, http.StatusOK, appt)
}

// CancelAppointment handles POST /api/v1/appointments/:id/cancel - either party
func CancelAppointment(c *gin.Context) {
	ac, ok := loadAppointment(c, false)
	if !ok {
		return
	}

	appt := ac.appointment
	prev := appt.State()
	next, err := booking.Cancel(prev, ac.party)
	if err != nil {
		respondTransitionError(c, err)
		return
	}

	appt.SetState(next)
	appt.ProposedDate, appt.ProposedTime = nil, nil
	if err := saveTransition(config.GetDB(), appt, prev); err != nil {
		respondSaveError(c, err)
		return
	}

	services.GetNotifier().AppointmentCancelled(c.Request.Context(), appt, ac.callerName(), ac.counterpartyID())
	respondOK(c, http.StatusOK, appt)
}

// CompleteAppointment handles POST /api/v1/appointments/:id/complete - the workshop
// closes a confirmed appointment with the completion feedback form
func CompleteAppointment(c *gin.Context) {
	ac, ok := loadAppointment(c, false)
	if !ok {
		return
	}

	appt := ac.appointment
	prev := appt.State()
	next, err := booking.Complete(prev, ac.party)
	if err != nil {
		respondTransitionError(c, err)
		return
	}

	var req CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}
	correct := *req.DiagnosisCorrect
	actual := strings.TrimSpace(req.ActualComponent)
	if !correct && actual == "" {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "actual_component is required when the diagnosis was wrong")
		return
	}

	feedback := &models.CompletionFeedback{
		DiagnosisCorrect:  correct,
		OriginalDiagnosis: appt.Diagnosis,
		ServiceCategory:   appt.ServiceRequested,
		AmountSpent:       *req.AmountSpent,
	}
	if actual != "" {
		feedback.ActualComponent = &actual
	}
	if notes := strings.TrimSpace(req.AdditionalNotes); notes != "" {
		feedback.AdditionalNotes = &notes
	}

	err = config.GetDB().Transaction(func(tx *gorm.DB) error {
		appt.SetState(next)
		appt.CompletionFeedback = feedback
		appt.AmountSpent = req.AmountSpent
		appt.CarReturned = true
		if err := saveTransition(tx, appt, prev); err != nil {
			return err
		}
		if !appt.HasAIHistory() {
			return nil
		}
		return recordAIAccuracy(c.Request.Context(), tx, ac.workshop, correct)
	})
	if err != nil {
		respondSaveError(c, err)
		return
	}

	services.GetNotifier().AppointmentCompleted(c.Request.Context(), appt, ac.workshop)
	respondOK(c, http.StatusOK, appt)
}

// recordAIAccuracy folds one diagnosis outcome into the workshop's AI accuracy score
func recordAIAccuracy(ctx context.Context, tx *gorm.DB, workshop *models.Workshop, correct bool) error {
	var current models.Workshop
	if err := tx.WithContext(ctx).Select("id", "ai_accuracy_score", "ai_accuracy_count").First(&current, workshop.ID).Error; err != nil {
		return err
	}

	score, count := rating.UpdateAIAccuracy(current.AIAccuracyScore, current.AIAccuracyCount, correct)
	res := tx.WithContext(ctx).Model(&models.Workshop{}).
		Where("id = ? AND ai_accuracy_count = ?", workshop.ID, current.AIAccuracyCount).
		Updates(map[string]interface{}{"ai_accuracy_score": score, "ai_accuracy_count": count})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errConcurrentChange
	}

	zap.L().Debug("ai accuracy updated",
		zap.Uint("workshop_id", workshop.ID),
		zap.Float64("score", score),
		zap.Int("count", count),
	)
	workshop.AIAccuracyScore, workshop.AIAccuracyCount = score, count
	return nil
}
