package controllers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/autofix-app/autofix-api/booking"
	"github.com/autofix-app/autofix-api/models"
	"github.com/autofix-app/autofix-api/rating"
	"github.com/autofix-app/autofix-api/services"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func workshopPayload(name, city string, serviceList ...string) map[string]interface{} {
	return map[string]interface{}{
		"name":     name,
		"phone":    "555-0199",
		"address":  "Via Roma 10",
		"city":     city,
		"services": serviceList,
		"hourly_rates": []map[string]interface{}{
			{"label": "Mechanics", "rate": 45},
		},
	}
}

func TestRegisterWorkshop(t *testing.T) {
	db := setupTestDB(t)
	createTestUser(t, db, "auth0|owner", "Mario", models.RoleCustomer)
	createTestUser(t, db, "auth0|admin", "Admin", models.RoleAdmin)
	router := setupAPIRouter()

	t.Run("caller becomes the workshop owner", func(t *testing.T) {
		w, resp := doJSON(t, router, http.MethodPost, "/api/v1/workshops", "auth0|owner",
			workshopPayload("Officina Mario", "Milano", "Brakes", " brakes ", "Tyres"))

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var workshop models.Workshop
		decodeData(t, resp, &workshop)
		assert.Equal(t, "Officina Mario", workshop.Name)
		assert.Equal(t, []string{"Brakes", "Tyres"}, workshop.Services)
		assert.Equal(t, models.WorkshopActive, workshop.Status)
		assert.Equal(t, models.DefaultOpeningHours(), workshop.OpeningHours)

		var owner models.User
		require.NoError(t, db.Where("auth0_id = ?", "auth0|owner").First(&owner).Error)
		assert.Equal(t, models.RoleWorkshop, owner.Role)
		require.NotNil(t, owner.WorkshopID)
		assert.Equal(t, workshop.ID, *owner.WorkshopID)
	})

	t.Run("second registration is rejected", func(t *testing.T) {
		w, resp := doJSON(t, router, http.MethodPost, "/api/v1/workshops", "auth0|owner",
			workshopPayload("Another", "Milano", "Brakes"))

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "WORKSHOP_EXISTS", resp.Error.Code)
	})

	t.Run("admins cannot register", func(t *testing.T) {
		w, resp := doJSON(t, router, http.MethodPost, "/api/v1/workshops", "auth0|admin",
			workshopPayload("Admin Garage", "Roma", "Brakes"))

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "FORBIDDEN", resp.Error.Code)
	})

	t.Run("services are required", func(t *testing.T) {
		createTestUser(t, db, "auth0|late", "Late", models.RoleCustomer)
		w, resp := doJSON(t, router, http.MethodPost, "/api/v1/workshops", "auth0|late",
			workshopPayload("No Services", "Roma"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	})
}

func TestUpdateMyWorkshop_KeepsAggregates(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestUser(t, db, "auth0|owner", "Mario", models.RoleCustomer)
	workshop := createTestWorkshop(t, db, owner, "Officina", "Milano")
	require.NoError(t, db.Model(workshop).Updates(map[string]interface{}{"average_rating": 4.5, "total_reviews": 8}).Error)
	router := setupAPIRouter()

	body := workshopPayload("Officina Nuova", "Torino", "Engine")
	body["status"] = models.WorkshopInactive
	w, resp := doJSON(t, router, http.MethodPut, "/api/v1/workshops/me", "auth0|owner", body)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated models.Workshop
	decodeData(t, resp, &updated)
	assert.Equal(t, "Officina Nuova", updated.Name)
	assert.Equal(t, "Torino", updated.City)

	var stored models.Workshop
	require.NoError(t, db.First(&stored, workshop.ID).Error)
	assert.Equal(t, 4.5, stored.AverageRating)
	assert.Equal(t, 8, stored.TotalReviews)
	assert.Equal(t, []string{"Engine"}, stored.Services)
	assert.Equal(t, models.WorkshopInactive, stored.Status)

	// inactive workshops disappear from the public page
	w, resp = doJSON(t, router, http.MethodGet, "/api/v1/workshops/"+itoa(workshop.ID), "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "WORKSHOP_NOT_FOUND", resp.Error.Code)
}

func TestGetMyWorkshop_NotRegistered(t *testing.T) {
	db := setupTestDB(t)
	createTestUser(t, db, "auth0|customer", "Carla", models.RoleCustomer)
	router := setupAPIRouter()

	w, resp := doJSON(t, router, http.MethodGet, "/api/v1/workshops/me", "auth0|customer", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "WORKSHOP_NOT_FOUND", resp.Error.Code)
}

func TestSearchWorkshops(t *testing.T) {
	db := setupTestDB(t)
	a := createTestWorkshop(t, db, createTestUser(t, db, "auth0|a", "A", models.RoleCustomer), "Alpha", "Milano", "Brakes")
	b := createTestWorkshop(t, db, createTestUser(t, db, "auth0|b", "B", models.RoleCustomer), "Beta", "Milano", "Engine")
	c := createTestWorkshop(t, db, createTestUser(t, db, "auth0|c", "C", models.RoleCustomer), "Gamma", "Roma", "Brakes")
	d := createTestWorkshop(t, db, createTestUser(t, db, "auth0|d", "D", models.RoleCustomer), "Delta", "Milano", "Brakes")
	require.NoError(t, db.Model(a).Updates(map[string]interface{}{"average_rating": 4.8, "total_reviews": 3}).Error)
	require.NoError(t, db.Model(b).Updates(map[string]interface{}{"average_rating": 3.9, "total_reviews": 40, "is_premium": true}).Error)
	require.NoError(t, db.Model(c).Updates(map[string]interface{}{"average_rating": 5.0, "total_reviews": 1}).Error)
	require.NoError(t, db.Model(d).Update("status", models.WorkshopInactive).Error)
	router := setupAPIRouter()

	tests := []struct {
		name          string
		query         string
		expectedNames []string
	}{
		{"all active, premium first then rating", "", []string{"Beta", "Gamma", "Alpha"}},
		{"city is matched case-insensitively", "?city=milano", []string{"Beta", "Alpha"}},
		{"service filter", "?service=brakes", []string{"Gamma", "Alpha"}},
		{"any of several services", "?service=brakes,engine&city=Milano", []string{"Beta", "Alpha"}},
		{"sort by reviews", "?sort=reviews", []string{"Beta", "Alpha", "Gamma"}},
		{"no match", "?city=Napoli", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := doJSON(t, router, http.MethodGet, "/api/v1/workshops"+tt.query, "", nil)

			require.Equal(t, http.StatusOK, w.Code)
			var workshops []models.Workshop
			decodeData(t, resp, &workshops)
			names := make([]string, 0, len(workshops))
			for _, w := range workshops {
				names = append(names, w.Name)
			}
			assert.Equal(t, tt.expectedNames, names)
		})
	}

	t.Run("invalid sort", func(t *testing.T) {
		w, resp := doJSON(t, router, http.MethodGet, "/api/v1/workshops?sort=price", "", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_SORT", resp.Error.Code)
	})
}

func TestSearchWorkshops_CachedUntilListingChanges(t *testing.T) {
	db := setupTestDB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	services.SetWorkshopCache(services.NewRedisWorkshopCache(client, time.Minute))
	t.Cleanup(func() { services.SetWorkshopCache(services.NoopWorkshopCache{}) })

	owner := createTestUser(t, db, "auth0|owner", "Mario", models.RoleCustomer)
	createTestWorkshop(t, db, owner, "Officina", "Milano")
	router := setupAPIRouter()

	search := func() []models.Workshop {
		w, resp := doJSON(t, router, http.MethodGet, "/api/v1/workshops?city=Milano", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var out []models.Workshop
		decodeData(t, resp, &out)
		return out
	}

	require.Len(t, search(), 1)

	// a write behind the API's back is not seen while the entry is cached
	sneaky := createTestUser(t, db, "auth0|sneaky", "Sneaky", models.RoleCustomer)
	createTestWorkshop(t, db, sneaky, "Hidden", "Milano")
	assert.Len(t, search(), 1)

	// any change made through the API invalidates the cached results
	w, _ := doJSON(t, router, http.MethodPut, "/api/v1/workshops/me", "auth0|owner", workshopPayload("Officina", "Milano", "Brakes"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, search(), 2)
}

func TestGetWorkshop_FeaturedCategories(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestUser(t, db, "auth0|owner", "Mario", models.RoleCustomer)
	workshop := createTestWorkshop(t, db, owner, "Officina", "Milano")
	workshop.CategoryRatings = rating.CategoryRatings{
		"Brakes": {Rating: 4.6, Count: 6, TotalScore: 27.6},
		"Engine": {Rating: 5, Count: 2, TotalScore: 10},
	}
	require.NoError(t, db.Model(workshop).Select("category_ratings").Updates(workshop).Error)
	router := setupAPIRouter()

	w, resp := doJSON(t, router, http.MethodGet, "/api/v1/workshops/"+itoa(workshop.ID), "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var detail WorkshopDetail
	decodeData(t, resp, &detail)
	assert.Equal(t, "Officina", detail.Name)
	require.Len(t, detail.FeaturedCategories, 1)
	assert.Equal(t, "Brakes", detail.FeaturedCategories[0].Category)
	assert.Equal(t, 6, detail.FeaturedCategories[0].Count)
}

func TestGetWorkshop_InvalidID(t *testing.T) {
	setupTestDB(t)
	router := setupAPIRouter()

	w, resp := doJSON(t, router, http.MethodGet, "/api/v1/workshops/abc", "", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", resp.Error.Code)
}

func TestGetWorkshopReviews_ApprovedOnly(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestUser(t, db, "auth0|owner", "Mario", models.RoleCustomer)
	customer := createTestUser(t, db, "auth0|customer", "Carla", models.RoleCustomer)
	workshop := createTestWorkshop(t, db, owner, "Officina", "Milano")

	for i, status := range []string{models.ReviewApproved, models.ReviewPending, models.ReviewRejected} {
		appt := createTestAppointment(t, db, customer, workshop, booking.StatusCompleted)
		require.NoError(t, db.Create(&models.Review{
			WorkshopID:    workshop.ID,
			AppointmentID: appt.ID,
			CustomerID:    customer.ID,
			Rating:        5 - i,
			Comment:       "review " + status,
			Status:        status,
		}).Error)
	}
	router := setupAPIRouter()

	w, resp := doJSON(t, router, http.MethodGet, "/api/v1/workshops/"+itoa(workshop.ID)+"/reviews", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var reviews []models.Review
	decodeData(t, resp, &reviews)
	require.Len(t, reviews, 1)
	assert.Equal(t, "review approved", reviews[0].Comment)
}

func TestGetWorkshopAvailability(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestUser(t, db, "auth0|owner", "Mario", models.RoleCustomer)
	customer := createTestUser(t, db, "auth0|customer", "Carla", models.RoleCustomer)
	workshop := createTestWorkshop(t, db, owner, "Officina", "Milano")
	confirmed := createTestAppointment(t, db, customer, workshop, booking.StatusConfirmed)
	cancelled := createTestAppointment(t, db, customer, workshop, booking.StatusConfirmed)
	fourPM := "16:00"
	require.NoError(t, db.Model(cancelled).Updates(map[string]interface{}{"status": booking.StatusCancelled, "confirmed_time": fourPM}).Error)
	router := setupAPIRouter()

	w, resp := doJSON(t, router, http.MethodGet,
		"/api/v1/workshops/"+itoa(workshop.ID)+"/availability?date="+*confirmed.ConfirmedDate, "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Date  string         `json:"date"`
		Slots []booking.Slot `json:"slots"`
	}
	decodeData(t, resp, &body)
	assert.Equal(t, *confirmed.ConfirmedDate, body.Date)
	require.Len(t, body.Slots, len(booking.DaySlots))
	for _, slot := range body.Slots {
		assert.Equal(t, slot.Time == "10:00", slot.Booked, "slot %s", slot.Time)
	}

	w, resp = doJSON(t, router, http.MethodGet, "/api/v1/workshops/"+itoa(workshop.ID)+"/availability?date=tomorrow", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
}

func newPhotoRequest(t *testing.T, auth0ID, filename string, content []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("photo", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/workshops/me/photos", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Test-User", auth0ID)
	return req
}

func TestWorkshopPhotos(t *testing.T) {
	db := setupTestDB(t)
	mockImages := services.NewMockImageService()
	mockImages.SetAsMockForTesting()
	owner := createTestUser(t, db, "auth0|owner", "Mario", models.RoleCustomer)
	workshop := createTestWorkshop(t, db, owner, "Officina", "Milano")
	router := setupAPIRouter()

	t.Run("upload", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, newPhotoRequest(t, "auth0|owner", "front.jpg", []byte("jpeg bytes")))

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.True(t, mockImages.ImageExists("uploads/workshops/mock_front.jpg"))

		var stored models.Workshop
		require.NoError(t, db.First(&stored, workshop.ID).Error)
		assert.Equal(t, []string{"uploads/workshops/mock_front.jpg"}, stored.Photos)
	})

	t.Run("unsupported format", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, newPhotoRequest(t, "auth0|owner", "notes.pdf", []byte("pdf")))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "INVALID_FILE_FORMAT")
	})

	t.Run("gallery limit", func(t *testing.T) {
		full := make([]string, 10)
		for i := range full {
			full[i] = "uploads/workshops/p" + itoa(uint(i))
		}
		var current models.Workshop
		require.NoError(t, db.First(&current, workshop.ID).Error)
		saved := current.Photos
		current.Photos = full
		require.NoError(t, db.Model(&current).Select("photos").Updates(&current).Error)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, newPhotoRequest(t, "auth0|owner", "eleventh.png", []byte("png")))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "PHOTO_LIMIT_REACHED")

		current.Photos = saved
		require.NoError(t, db.Model(&current).Select("photos").Updates(&current).Error)
	})

	t.Run("delete", func(t *testing.T) {
		w, resp := doJSON(t, router, http.MethodDelete, "/api/v1/workshops/me/photos?key=uploads/workshops/mock_front.jpg", "auth0|owner", nil)

		require.Equal(t, http.StatusOK, w.Code)
		var updated models.Workshop
		decodeData(t, resp, &updated)
		assert.Empty(t, updated.Photos)
		assert.False(t, mockImages.ImageExists("uploads/workshops/mock_front.jpg"))

		w, resp = doJSON(t, router, http.MethodDelete, "/api/v1/workshops/me/photos?key=missing", "auth0|owner", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "PHOTO_NOT_FOUND", resp.Error.Code)
	})
}
