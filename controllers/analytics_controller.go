package controllers

import (
	"net/http"
	"time"

	"github.com/autofix-app/autofix-api/analytics"
	"github.com/autofix-app/autofix-api/config"
	"github.com/autofix-app/autofix-api/models"
	"github.com/gin-gonic/gin"
)

// GetWorkshopAnalytics handles GET /api/v1/workshops/me/analytics?period=week|month|year|all
func GetWorkshopAnalytics(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	period, valid := analytics.ParsePeriod(c.Query("period"))
	if !valid {
		respondError(c, http.StatusBadRequest, "INVALID_PERIOD", "period must be week, month, year or all")
		return
	}

	workshop, ok := ownedWorkshop(c, user)
	if !ok {
		return
	}

	db := config.GetDB()
	var appointments []models.Appointment
	if err := db.Select("id", "service_requested", "status", "amount_spent", "ai_chat_history", "created_at").
		Where("workshop_id = ?", workshop.ID).
		Find(&appointments).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load appointments")
		return
	}

	var reviews []models.Review
	if err := db.Select("id", "rating", "created_at").
		Where("workshop_id = ? AND status = ?", workshop.ID, models.ReviewApproved).
		Find(&reviews).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load reviews")
		return
	}

	appts := make([]analytics.Appointment, 0, len(appointments))
	for _, a := range appointments {
		item := analytics.Appointment{
			Service:    a.ServiceRequested,
			Status:     a.Status,
			AIAssisted: a.HasAIHistory(),
			CreatedAt:  a.CreatedAt,
		}
		if a.AmountSpent != nil {
			item.AmountSpent = *a.AmountSpent
		}
		appts = append(appts, item)
	}

	rated := make([]analytics.Review, 0, len(reviews))
	for _, r := range reviews {
		rated = append(rated, analytics.Review{Rating: r.Rating, CreatedAt: r.CreatedAt})
	}

	respondOK(c, http.StatusOK, analytics.Compute(appts, rated, period, time.Now()))
}
