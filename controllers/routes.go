package controllers

import (
	"github.com/autofix-app/autofix-api/config"
	"github.com/autofix-app/autofix-api/middleware"
	"github.com/gin-gonic/gin"
)

func aiRateLimit() gin.HandlerFunc {
	cfg := config.GetConfig()
	if cfg == nil {
		return middleware.RateLimit(0, 0)
	}
	return middleware.RateLimit(cfg.AIRateLimitPerMinute, cfg.AIRateLimitBurst)
}

// RegisterRoutes mounts every API endpoint on v1. requireAuth authenticates the
// caller; adminGuard runs after it on the moderation endpoints.
func RegisterRoutes(v1 *gin.RouterGroup, requireAuth gin.HandlerFunc, adminGuard ...gin.HandlerFunc) {
	// Public
	v1.GET("/workshops", SearchWorkshops)
	v1.GET("/workshops/:id", GetWorkshop)
	v1.GET("/workshops/:id/reviews", GetWorkshopReviews)
	v1.GET("/workshops/:id/availability", GetWorkshopAvailability)
	ai := v1.Group("/ai", aiRateLimit())
	{
		ai.POST("", AIChat)
		ai.POST("/recommend", RecommendWorkshop)
	}
	v1.GET("/uploads/:filename", GetUploadedImage)

	auth := v1.Group("", requireAuth)
	{
		auth.POST("/users", CreateUser)
		auth.GET("/users/me", GetMyProfile)
		auth.PUT("/users/me", UpdateMyProfile)

		auth.POST("/workshops", RegisterWorkshop)
		auth.GET("/workshops/me", GetMyWorkshop)
		auth.PUT("/workshops/me", UpdateMyWorkshop)
		auth.POST("/workshops/me/photos", UploadWorkshopPhoto)
		auth.DELETE("/workshops/me/photos", DeleteWorkshopPhoto)
		auth.GET("/workshops/me/analytics", GetWorkshopAnalytics)

		auth.POST("/appointments", CreateAppointment)
		auth.GET("/appointments", ListAppointments)
		auth.GET("/appointments/:id", GetAppointment)
		auth.POST("/appointments/:id/accept", AcceptAppointment)
		auth.POST("/appointments/:id/propose", ProposeAppointmentTime)
		auth.POST("/appointments/:id/decline", DeclineAppointment)
		auth.POST("/appointments/:id/cancel", CancelAppointment)
		auth.POST("/appointments/:id/complete", CompleteAppointment)
		auth.POST("/appointments/:id/messages", SendMessage)
		auth.GET("/appointments/:id/messages", ListMessages)

		auth.POST("/reviews", CreateReview)
		auth.GET("/reviews/mine", ListMyReviews)

		auth.GET("/notifications", ListNotifications)
		auth.POST("/notifications/read-all", MarkAllNotificationsRead)
		auth.POST("/notifications/:id/read", MarkNotificationRead)
		auth.DELETE("/notifications/:id", DeleteNotification)
	}

	admin := auth.Group("/admin", adminGuard...)
	{
		admin.GET("/reviews", ListReviewsForModeration)
		admin.POST("/reviews/:id/approve", ApproveReview)
		admin.POST("/reviews/:id/reject", RejectReview)
		admin.GET("/overview", AdminOverview)
	}
}
