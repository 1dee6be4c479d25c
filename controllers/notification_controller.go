package controllers

import (
	"net/http"

	"github.com/autofix-app/autofix-api/config"
	"github.com/autofix-app/autofix-api/models"
	"github.com/gin-gonic/gin"
)

const notificationListLimit = 50

// ListNotifications handles GET /api/v1/notifications
func ListNotifications(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	db := config.GetDB()
	var notifications []models.Notification
	if err := db.Where("recipient_id = ?", user.ID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(notificationListLimit).
		Find(&notifications).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to fetch notifications")
		return
	}

	var unread int64
	if err := db.Model(&models.Notification{}).
		Where("recipient_id = ? AND read = ?", user.ID, false).
		Count(&unread).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to count notifications")
		return
	}

	respondOK(c, http.StatusOK, gin.H{
		"notifications": notifications,
		"unread_count":  unread,
	})
}

// ownNotification loads a notification addressed to user; anything else is reported as not found
func ownNotification(c *gin.Context, user *models.User) (*models.Notification, bool) {
	id, ok := idParam(c, "id", "Notification")
	if !ok {
		return nil, false
	}

	var notification models.Notification
	if err := config.GetDB().Where("id = ? AND recipient_id = ?", id, user.ID).First(&notification).Error; err != nil {
		respondError(c, http.StatusNotFound, "NOTIFICATION_NOT_FOUND", "Notification not found")
		return nil, false
	}
	return &notification, true
}

// MarkNotificationRead handles POST /api/v1/notifications/:id/read
func MarkNotificationRead(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	notification, ok := ownNotification(c, user)
	if !ok {
		return
	}

	if !notification.Read {
		if err := config.GetDB().Model(notification).Update("read", true).Error; err != nil {
			respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update notification")
			return
		}
		notification.Read = true
	}

	respondOK(c, http.StatusOK, notification)
}

// MarkAllNotificationsRead handles POST /api/v1/notifications/read-all
func MarkAllNotificationsRead(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	res := config.GetDB().Model(&models.Notification{}).
		Where("recipient_id = ? AND read = ?", user.ID, false).
		Update("read", true)
	if res.Error != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update notifications")
		return
	}

	respondOK(c, http.StatusOK, gin.H{"updated": res.RowsAffected})
}

// DeleteNotification handles DELETE /api/v1/notifications/:id
func DeleteNotification(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	notification, ok := ownNotification(c, user)
	if !ok {
		return
	}

	if err := config.GetDB().Delete(notification).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to delete notification")
		return
	}

	respondOK(c, http.StatusOK, gin.H{"id": notification.ID})
}
