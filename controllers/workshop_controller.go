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
	"github.com/autofix-app/autofix-api/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// WorkshopRequest is the editable part of a workshop profile
type WorkshopRequest struct {
	Name         string              `json:"name" binding:"required,max=120"`
	Description  string              `json:"description" binding:"max=2000"`
	Phone        string              `json:"phone" binding:"required,max=30"`
	Address      string              `json:"address" binding:"required,max=200"`
	City         string              `json:"city" binding:"required,max=80"`
	Zone         string              `json:"zone" binding:"max=80"`
	Services     []string            `json:"services" binding:"required,min=1,dive,required,max=60"`
	HourlyRates  []models.HourlyRate `json:"hourly_rates" binding:"max=3,dive"`
	OpeningHours map[string]string   `json:"opening_hours"`
}

// UpdateWorkshopRequest additionally lets the owner pause the listing
type UpdateWorkshopRequest struct {
	WorkshopRequest
	Status string `json:"status" binding:"omitempty,oneof=active inactive"`
}

// WorkshopDetail is the public workshop page
type WorkshopDetail struct {
	models.Workshop
	FeaturedCategories []rating.FeaturedCategory `json:"featured_categories"`
}

// withPhotoURLs resolves storage keys into URLs the client can load
func withPhotoURLs(ctx context.Context, w *models.Workshop) {
	w.PhotoURLs = services.ResolveImageURLs(ctx, services.GetImageService(), w.Photos)
}

// invalidateSearch drops cached search results after a listing changed
func invalidateSearch(ctx context.Context) {
	if err := services.GetWorkshopCache().Invalidate(ctx); err != nil {
		zap.L().Warn("failed to invalidate workshop search cache", zap.Error(err))
	}
}

func normalizeServices(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

// RegisterWorkshop handles POST /api/v1/workshops - registers the caller's workshop
// and turns the caller into a workshop owner
func RegisterWorkshop(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	if user.WorkshopID != nil {
		respondError(c, http.StatusConflict, "WORKSHOP_EXISTS", "You have already registered a workshop")
		return
	}
	if user.Role == models.RoleAdmin {
		respondError(c, http.StatusForbidden, "FORBIDDEN", "Administrators cannot register workshops")
		return
	}

	var req WorkshopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	openingHours := req.OpeningHours
	if len(openingHours) == 0 {
		openingHours = models.DefaultOpeningHours()
	}

	workshop := models.Workshop{
		OwnerID:         user.ID,
		Name:            strings.TrimSpace(req.Name),
		Description:     req.Description,
		Phone:           req.Phone,
		Address:         req.Address,
		City:            strings.TrimSpace(req.City),
		Zone:            req.Zone,
		Services:        normalizeServices(req.Services),
		HourlyRates:     req.HourlyRates,
		OpeningHours:    openingHours,
		Photos:          []string{},
		Status:          models.WorkshopActive,
		IsPremium:       false,
		CategoryRatings: rating.CategoryRatings{},
	}

	err := config.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&workshop).Error; err != nil {
			return err
		}
		return tx.Model(user).Updates(map[string]interface{}{
			"role":        models.RoleWorkshop,
			"workshop_id": workshop.ID,
		}).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			respondError(c, http.StatusConflict, "WORKSHOP_EXISTS", "You have already registered a workshop")
			return
		}
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to register workshop")
		return
	}

	invalidateSearch(c.Request.Context())
	withPhotoURLs(c.Request.Context(), &workshop)
	respondOK(c, http.StatusCreated, workshop)
}

// GetMyWorkshop handles GET /api/v1/workshops/me
func GetMyWorkshop(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	workshop, ok := ownedWorkshop(c, user)
	if !ok {
		return
	}

	withPhotoURLs(c.Request.Context(), workshop)
	respondOK(c, http.StatusOK, workshop)
}

// UpdateMyWorkshop handles PUT /api/v1/workshops/me - replaces the editable profile fields
func UpdateMyWorkshop(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	workshop, ok := ownedWorkshop(c, user)
	if !ok {
		return
	}

	var req UpdateWorkshopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	workshop.Name = strings.TrimSpace(req.Name)
	workshop.Description = req.Description
	workshop.Phone = req.Phone
	workshop.Address = req.Address
	workshop.City = strings.TrimSpace(req.City)
	workshop.Zone = req.Zone
	workshop.Services = normalizeServices(req.Services)
	workshop.HourlyRates = req.HourlyRates
	if len(req.OpeningHours) > 0 {
		workshop.OpeningHours = req.OpeningHours
	}
	if req.Status != "" {
		workshop.Status = req.Status
	}

	err := config.GetDB().Model(workshop).
		Select("name", "description", "phone", "address", "city", "zone", "services", "hourly_rates", "opening_hours", "status").
		Updates(workshop).Error
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update workshop")
		return
	}

	invalidateSearch(c.Request.Context())
	withPhotoURLs(c.Request.Context(), workshop)
	respondOK(c, http.StatusOK, workshop)
}

// SearchWorkshops handles GET /api/v1/workshops?city=&service=&sort=
func SearchWorkshops(c *gin.Context) {
	ctx := c.Request.Context()

	sortBy := c.DefaultQuery("sort", services.SortByRating)
	if sortBy != services.SortByRating && sortBy != services.SortByReviews {
		respondError(c, http.StatusBadRequest, "INVALID_SORT", "sort must be 'rating' or 'reviews'")
		return
	}

	var wanted []string
	for _, v := range c.QueryArray("service") {
		wanted = append(wanted, strings.Split(v, ",")...)
	}
	query := services.SearchQuery{City: c.Query("city"), Services: wanted, SortBy: sortBy}

	cache := services.GetWorkshopCache()
	cacheKey := services.SearchCacheKey(query.City, query.Services, query.SortBy)

	var results []models.Workshop
	lookup, cacheErr := cache.Get(ctx, cacheKey, &results)
	if cacheErr != nil {
		zap.L().Warn("workshop search cache read failed", zap.Error(cacheErr))
	}

	if !lookup.Hit {
		var active []models.Workshop
		if err := config.GetDB().Where("status = ?", models.WorkshopActive).Find(&active).Error; err != nil {
			respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to search workshops")
			return
		}
		results = services.FilterWorkshops(active, query)

		if cacheErr == nil {
			if err := cache.Set(ctx, lookup.Generation, cacheKey, results); err != nil {
				zap.L().Warn("workshop search cache write failed", zap.Error(err))
			}
		}
	}

	for i := range results {
		withPhotoURLs(ctx, &results[i])
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    results,
		"count":   len(results),
	})
}

// GetWorkshop handles GET /api/v1/workshops/:id - public workshop page
func GetWorkshop(c *gin.Context) {
	id, ok := idParam(c, "id", "Workshop")
	if !ok {
		return
	}

	var workshop models.Workshop
	if err := config.GetDB().Where("status = ?", models.WorkshopActive).First(&workshop, id).Error; err != nil {
		respondError(c, http.StatusNotFound, "WORKSHOP_NOT_FOUND", "Workshop not found")
		return
	}

	withPhotoURLs(c.Request.Context(), &workshop)
	respondOK(c, http.StatusOK, WorkshopDetail{
		Workshop:           workshop,
		FeaturedCategories: rating.Featured(workshop.CategoryRatings, rating.FeaturedMinReviews),
	})
}

// GetWorkshopReviews handles GET /api/v1/workshops/:id/reviews - approved reviews only
func GetWorkshopReviews(c *gin.Context) {
	id, ok := idParam(c, "id", "Workshop")
	if !ok {
		return
	}

	var reviews []models.Review
	err := config.GetDB().
		Where("workshop_id = ? AND status = ?", id, models.ReviewApproved).
		Order("created_at DESC").
		Find(&reviews).Error
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to fetch reviews")
		return
	}

	respondOK(c, http.StatusOK, reviews)
}

// GetWorkshopAvailability handles GET /api/v1/workshops/:id/availability?date=YYYY-MM-DD
func GetWorkshopAvailability(c *gin.Context) {
	id, ok := idParam(c, "id", "Workshop")
	if !ok {
		return
	}

	date := c.Query("date")
	if _, err := time.Parse(booking.DateLayout, date); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "date must be formatted as YYYY-MM-DD")
		return
	}

	db := config.GetDB()
	var workshop models.Workshop
	if err := db.Select("id").Where("status = ?", models.WorkshopActive).First(&workshop, id).Error; err != nil {
		respondError(c, http.StatusNotFound, "WORKSHOP_NOT_FOUND", "Workshop not found")
		return
	}

	bookings, err := loadBookings(db, workshop.ID, date, 0)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load availability")
		return
	}

	respondOK(c, http.StatusOK, gin.H{
		"date":  date,
		"slots": booking.Availability(date, bookings),
	})
}

// loadBookings returns the workshop's appointments confirmed on date, leaving out excludeID
func loadBookings(db *gorm.DB, workshopID uint, date string, excludeID uint) ([]booking.Booking, error) {
	var appointments []models.Appointment
	err := db.Select("id", "status", "confirmed_date", "confirmed_time").
		Where("workshop_id = ? AND confirmed_date = ? AND id <> ?", workshopID, date, excludeID).
		Find(&appointments).Error
	if err != nil {
		return nil, err
	}

	bookings := make([]booking.Booking, 0, len(appointments))
	for _, a := range appointments {
		b := booking.Booking{Status: a.Status}
		if a.ConfirmedDate != nil {
			b.ConfirmedDate = *a.ConfirmedDate
		}
		if a.ConfirmedTime != nil {
			b.ConfirmedTime = *a.ConfirmedTime
		}
		bookings = append(bookings, b)
	}
	return bookings, nil
}

// UploadWorkshopPhoto handles POST /api/v1/workshops/me/photos (multipart field "photo")
func UploadWorkshopPhoto(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	workshop, ok := ownedWorkshop(c, user)
	if !ok {
		return
	}

	if len(workshop.Photos) >= utils.MaxWorkshopPhotos {
		respondError(c, http.StatusBadRequest, "PHOTO_LIMIT_REACHED", "A workshop can have at most 10 photos")
		return
	}

	fileHeader, err := c.FormFile("photo")
	if err != nil {
		respondError(c, http.StatusBadRequest, "MISSING_FILE", "A photo file is required in the 'photo' field")
		return
	}

	imageService := services.GetImageService()
	if imageService == nil {
		respondError(c, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Image storage is not configured")
		return
	}

	ctx := c.Request.Context()
	key, err := imageService.UploadImage(ctx, fileHeader)
	if err != nil {
		var uploadErr *utils.FileUploadError
		if errors.As(err, &uploadErr) {
			respondError(c, http.StatusBadRequest, uploadErr.Code, uploadErr.Message)
			return
		}
		zap.L().Error("photo upload failed", zap.Uint("workshop_id", workshop.ID), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "UPLOAD_FAILED", "Failed to upload photo")
		return
	}

	workshop.Photos = append(workshop.Photos, key)
	if err := config.GetDB().Model(workshop).Select("photos").Updates(workshop).Error; err != nil {
		if delErr := imageService.DeleteImage(ctx, key); delErr != nil {
			zap.L().Warn("failed to remove orphaned photo", zap.String("key", key), zap.Error(delErr))
		}
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to save photo")
		return
	}

	invalidateSearch(ctx)
	withPhotoURLs(ctx, workshop)
	respondOK(c, http.StatusCreated, workshop)
}

// DeleteWorkshopPhoto handles DELETE /api/v1/workshops/me/photos?key=
func DeleteWorkshopPhoto(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	workshop, ok := ownedWorkshop(c, user)
	if !ok {
		return
	}

	key := c.Query("key")
	remaining := make([]string, 0, len(workshop.Photos))
	for _, p := range workshop.Photos {
		if p != key {
			remaining = append(remaining, p)
		}
	}
	if key == "" || len(remaining) == len(workshop.Photos) {
		respondError(c, http.StatusNotFound, "PHOTO_NOT_FOUND", "Photo not found on this workshop")
		return
	}

	ctx := c.Request.Context()
	workshop.Photos = remaining
	if err := config.GetDB().Model(workshop).Select("photos").Updates(workshop).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to remove photo")
		return
	}

	if imageService := services.GetImageService(); imageService != nil {
		if err := imageService.DeleteImage(ctx, key); err != nil {
			zap.L().Warn("failed to delete photo from storage", zap.String("key", key), zap.Error(err))
		}
	}

	invalidateSearch(ctx)
	withPhotoURLs(ctx, workshop)
	respondOK(c, http.StatusOK, workshop)
}
