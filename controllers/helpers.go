package controllers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/autofix-app/autofix-api/booking"
	"github.com/autofix-app/autofix-api/config"
	"github.com/autofix-app/autofix-api/middleware"
	"github.com/autofix-app/autofix-api/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// respondError writes the standard error envelope
func respondError(c *gin.Context, status int, code, message string, details ...string) {
	body := gin.H{
		"code":    code,
		"message": message,
	}
	if len(details) > 0 && details[0] != "" {
		body["details"] = details[0]
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   body,
	})
}

// respondOK writes the standard success envelope
func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

// respondValidation reports a binding or validation failure
func respondValidation(c *gin.Context, err error) {
	respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data", err.Error())
}

// bindOptionalJSON binds a request body that may be omitted entirely
func bindOptionalJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		respondValidation(c, err)
		return false
	}
	return true
}

// currentUser resolves the caller's profile from the JWT subject.
// It writes the error response itself and returns false when there is none.
func currentUser(c *gin.Context) (*models.User, bool) {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information")
		return nil, false
	}

	var user models.User
	if err := config.GetDB().Where("auth0_id = ?", auth0ID).First(&user).Error; err != nil {
		respondError(c, http.StatusNotFound, "USER_NOT_FOUND", "User profile not found. Please create a profile first.")
		return nil, false
	}

	return &user, true
}

// requireAdmin checks the caller's stored role, on top of the token scope checked by the router
func requireAdmin(c *gin.Context) (*models.User, bool) {
	user, ok := currentUser(c)
	if !ok {
		return nil, false
	}
	if user.Role != models.RoleAdmin {
		respondError(c, http.StatusForbidden, "FORBIDDEN", "Only administrators can moderate reviews")
		return nil, false
	}
	return user, true
}

// ownedWorkshop loads the workshop registered by user
func ownedWorkshop(c *gin.Context, user *models.User) (*models.Workshop, bool) {
	if user.WorkshopID == nil {
		respondError(c, http.StatusNotFound, "WORKSHOP_NOT_FOUND", "You have not registered a workshop yet")
		return nil, false
	}

	var workshop models.Workshop
	if err := config.GetDB().First(&workshop, *user.WorkshopID).Error; err != nil {
		respondError(c, http.StatusNotFound, "WORKSHOP_NOT_FOUND", "Workshop not found")
		return nil, false
	}
	return &workshop, true
}

// idParam parses a positive numeric path parameter
func idParam(c *gin.Context, name, label string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", label+" ID must be a positive integer")
		return 0, false
	}
	return uint(id), true
}

// isUniqueViolation detects duplicate key errors (works with both PostgreSQL and SQLite)
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique")
}

// respondTransitionError maps state machine errors onto HTTP responses
func respondTransitionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, booking.ErrNotYourTurn):
		respondError(c, http.StatusConflict, "NOT_YOUR_TURN", "Waiting for the other party to answer the current proposal")
	case errors.Is(err, booking.ErrNotPermitted):
		respondError(c, http.StatusForbidden, "FORBIDDEN", "You are not allowed to perform this action", err.Error())
	default:
		respondError(c, http.StatusConflict, "INVALID_TRANSITION", "The appointment cannot change to the requested state", err.Error())
	}
}
