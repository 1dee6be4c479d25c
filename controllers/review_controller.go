package controllers

import (
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
	"gorm.io/gorm/clause"
)

// fallbackCategory receives scores of reviews with no service category at all
const fallbackCategory = "general"

var errAlreadyModerated = errors.New("review already moderated")

// CreateReviewRequest represents the request body for reviewing a completed appointment
type CreateReviewRequest struct {
	AppointmentID   uint   `json:"appointment_id" binding:"required"`
	Rating          int    `json:"rating" binding:"required,min=1,max=5"`
	Title           string `json:"title" binding:"max=120"`
	Comment         string `json:"comment" binding:"required,max=2000"`
	ServiceReceived string `json:"service_received" binding:"max=60"`
}

// ModerateReviewRequest carries optional moderator notes
type ModerateReviewRequest struct {
	AdminNotes string `json:"admin_notes" binding:"max=1000"`
}

// CreateReview handles POST /api/v1/reviews - the customer reviews a completed
// appointment once the car is back; the review waits for moderation
func CreateReview(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}
	comment := strings.TrimSpace(req.Comment)
	if comment == "" {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Comment cannot be empty")
		return
	}

	db := config.GetDB()
	var appt models.Appointment
	if err := db.Where("id = ? AND customer_id = ?", req.AppointmentID, user.ID).First(&appt).Error; err != nil {
		respondError(c, http.StatusNotFound, "APPOINTMENT_NOT_FOUND", "Appointment not found")
		return
	}

	if appt.Status != booking.StatusCompleted || !appt.CarReturned {
		respondError(c, http.StatusConflict, "REVIEW_NOT_ALLOWED", "Only completed appointments can be reviewed")
		return
	}

	serviceReceived := strings.TrimSpace(req.ServiceReceived)
	if serviceReceived == "" {
		serviceReceived = appt.ServiceRequested
	}

	review := models.Review{
		WorkshopID:      appt.WorkshopID,
		AppointmentID:   appt.ID,
		CustomerID:      user.ID,
		CustomerName:    appt.CustomerName,
		Rating:          req.Rating,
		Title:           strings.TrimSpace(req.Title),
		Comment:         comment,
		ServiceReceived: serviceReceived,
		Status:          models.ReviewPending,
	}

	if err := db.Create(&review).Error; err != nil {
		if isUniqueViolation(err) {
			respondError(c, http.StatusConflict, "ALREADY_REVIEWED", "This appointment has already been reviewed")
			return
		}
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create review")
		return
	}

	respondOK(c, http.StatusCreated, review)
}

// ListMyReviews handles GET /api/v1/reviews/mine - the caller's reviews in any status
func ListMyReviews(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var reviews []models.Review
	if err := config.GetDB().Where("customer_id = ?", user.ID).Order("created_at DESC").Find(&reviews).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to fetch reviews")
		return
	}

	respondOK(c, http.StatusOK, reviews)
}

// ListReviewsForModeration handles GET /api/v1/admin/reviews?status= (default pending)
func ListReviewsForModeration(c *gin.Context) {
	if _, ok := requireAdmin(c); !ok {
		return
	}

	status := c.DefaultQuery("status", models.ReviewPending)
	switch status {
	case models.ReviewPending, models.ReviewApproved, models.ReviewRejected:
	default:
		respondError(c, http.StatusBadRequest, "INVALID_STATUS", "status must be pending, approved or rejected")
		return
	}

	var reviews []models.Review
	if err := config.GetDB().Where("status = ?", status).Order("created_at ASC").Find(&reviews).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to fetch reviews")
		return
	}

	respondOK(c, http.StatusOK, reviews)
}

// moderate moves a pending review to status; a review that is no longer
// pending yields errAlreadyModerated
func moderate(tx *gorm.DB, review *models.Review, status, notes string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":       status,
		"moderated_at": now,
	}
	if notes != "" {
		updates["admin_notes"] = notes
	}

	res := tx.Model(&models.Review{}).
		Where("id = ? AND status = ?", review.ID, models.ReviewPending).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errAlreadyModerated
	}

	review.Status = status
	review.ModeratedAt = &now
	if notes != "" {
		review.AdminNotes = &notes
	}
	return nil
}

// applyReviewToWorkshop folds an approved review into the workshop aggregates
func applyReviewToWorkshop(tx *gorm.DB, review *models.Review) (*models.Workshop, error) {
	var workshop models.Workshop
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&workshop, review.WorkshopID).Error; err != nil {
		return nil, err
	}
	readTotal := workshop.TotalReviews

	category := review.ServiceReceived
	if category == "" {
		var appt models.Appointment
		if err := tx.Select("id", "service_requested").First(&appt, review.AppointmentID).Error; err == nil {
			category = appt.ServiceRequested
		}
	}
	if category == "" {
		category = fallbackCategory
	}

	workshop.CategoryRatings = rating.ApplyScore(workshop.CategoryRatings, category, rating.ReviewScore(review.Rating))
	workshop.AverageRating = rating.Overall(workshop.CategoryRatings)
	workshop.TotalReviews++

	if err := saveRatingAggregates(tx, &workshop, readTotal); err != nil {
		return nil, err
	}
	return &workshop, nil
}

// saveRatingAggregates writes the rating columns only while total_reviews still
// holds readTotal, so no other approval was counted since the row was read.
func saveRatingAggregates(tx *gorm.DB, workshop *models.Workshop, readTotal int) error {
	res := tx.Model(workshop).
		Where("total_reviews = ?", readTotal).
		Select("category_ratings", "average_rating", "total_reviews").
		Updates(workshop)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errConcurrentChange
	}
	return nil
}

// ApproveReview handles POST /api/v1/admin/reviews/:id/approve. The pending to
// approved move and the rating aggregation commit together, exactly once.
func ApproveReview(c *gin.Context) {
	admin, ok := requireAdmin(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", "Review")
	if !ok {
		return
	}
	var req ModerateReviewRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	var review models.Review
	var workshop *models.Workshop
	err := config.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&review, id).Error; err != nil {
			return err
		}
		if err := moderate(tx, &review, models.ReviewApproved, strings.TrimSpace(req.AdminNotes)); err != nil {
			return err
		}
		var err error
		workshop, err = applyReviewToWorkshop(tx, &review)
		return err
	})
	if err != nil {
		respondModerationError(c, err)
		return
	}

	zap.L().Info("review approved",
		zap.Uint("review_id", review.ID),
		zap.Uint("workshop_id", workshop.ID),
		zap.Uint("admin_id", admin.ID),
		zap.Float64("average_rating", workshop.AverageRating),
	)

	ctx := c.Request.Context()
	invalidateSearch(ctx)
	services.GetNotifier().ReviewApproved(ctx, &review, workshop)
	respondOK(c, http.StatusOK, review)
}

// RejectReview handles POST /api/v1/admin/reviews/:id/reject
func RejectReview(c *gin.Context) {
	if _, ok := requireAdmin(c); !ok {
		return
	}
	id, ok := idParam(c, "id", "Review")
	if !ok {
		return
	}
	var req ModerateReviewRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	var review models.Review
	err := config.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&review, id).Error; err != nil {
			return err
		}
		return moderate(tx, &review, models.ReviewRejected, strings.TrimSpace(req.AdminNotes))
	})
	if err != nil {
		respondModerationError(c, err)
		return
	}

	respondOK(c, http.StatusOK, review)
}

func respondModerationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		respondError(c, http.StatusNotFound, "REVIEW_NOT_FOUND", "Review not found")
	case errors.Is(err, errAlreadyModerated):
		respondError(c, http.StatusConflict, "REVIEW_ALREADY_MODERATED", "This review has already been moderated")
	case errors.Is(err, errConcurrentChange):
		respondError(c, http.StatusConflict, "CONCURRENT_UPDATE", "The workshop ratings changed meanwhile, retry the approval")
	default:
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to moderate review")
	}
}

// AdminOverview handles GET /api/v1/admin/overview - platform-wide counters
func AdminOverview(c *gin.Context) {
	if _, ok := requireAdmin(c); !ok {
		return
	}

	db := config.GetDB()
	type row struct {
		Label string
		Total int64
	}
	countBy := func(model interface{}, column string) (map[string]int64, error) {
		var rows []row
		err := db.Model(model).Select(column + " AS label, COUNT(*) AS total").Group(column).Scan(&rows).Error
		out := make(map[string]int64, len(rows))
		for _, r := range rows {
			out[r.Label] = r.Total
		}
		return out, err
	}

	users, err := countBy(&models.User{}, "role")
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to compute overview")
		return
	}
	workshops, err := countBy(&models.Workshop{}, "status")
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to compute overview")
		return
	}
	appointments, err := countBy(&models.Appointment{}, "status")
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to compute overview")
		return
	}
	reviews, err := countBy(&models.Review{}, "status")
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to compute overview")
		return
	}

	respondOK(c, http.StatusOK, gin.H{
		"users_by_role":          users,
		"workshops_by_status":    workshops,
		"appointments_by_status": appointments,
		"reviews_by_status":      reviews,
	})
}
