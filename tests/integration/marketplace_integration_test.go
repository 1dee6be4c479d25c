package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/autofix-app/autofix-api/booking"
	"github.com/autofix-app/autofix-api/models"
	"github.com/autofix-app/autofix-api/services"
	"github.com/autofix-app/autofix-api/tests/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

const (
	customerID = "auth0|carla"
	ownerID    = "auth0|mario"
	adminID    = "auth0|admin"
)

// MarketplaceIntegrationTestSuite drives a booking from AI triage to a published review
type MarketplaceIntegrationTestSuite struct {
	suite.Suite
	router *gin.Engine
	db     *gorm.DB
	llm    *services.MockLLMService
}

// SetupTest runs before each test
func (suite *MarketplaceIntegrationTestSuite) SetupTest() {
	testutil.RequireTestEnvironment(suite.T())
	suite.db = testutil.SetupDatabase(suite.T())
	suite.router = testutil.NewRouter()

	suite.llm = services.NewMockLLMService("Your brake pads are probably worn.")
	services.SetLLMService(suite.llm)

	testutil.CreateUser(suite.T(), suite.db, customerID, "Carla", models.RoleCustomer)
	testutil.CreateUser(suite.T(), suite.db, ownerID, "Mario", models.RoleCustomer)
	testutil.CreateUser(suite.T(), suite.db, adminID, "Admin", models.RoleAdmin)
}

// TearDownTest runs after each test
func (suite *MarketplaceIntegrationTestSuite) TearDownTest() {
	services.SetLLMService(nil)
}

func (suite *MarketplaceIntegrationTestSuite) do(method, path, user string, body interface{}, dest interface{}, scopes ...string) {
	suite.T().Helper()
	w, env := call(suite.router, method, path, user, body, scopes...)
	suite.Require().True(w.Code < 300, "%s %s: %d %s", method, path, w.Code, w.Body.String())
	if dest != nil {
		suite.Require().NoError(json.Unmarshal(env.Data, dest))
	}
}

func (suite *MarketplaceIntegrationTestSuite) registerWorkshop() models.Workshop {
	var workshop models.Workshop
	suite.do(http.MethodPost, "/api/v1/workshops", ownerID, map[string]interface{}{
		"name":     "Officina Mario",
		"phone":    "555-0100",
		"address":  "Via Roma 1",
		"city":     "Milano",
		"services": []string{"Brakes", "Tyres"},
	}, &workshop)
	return workshop
}

func (suite *MarketplaceIntegrationTestSuite) unread(user string) int64 {
	var list struct {
		UnreadCount int64 `json:"unread_count"`
	}
	suite.do(http.MethodGet, "/api/v1/notifications", user, nil, &list)
	return list.UnreadCount
}

// TestBookingToPublishedReview walks through the whole life of an appointment
func (suite *MarketplaceIntegrationTestSuite) TestBookingToPublishedReview() {
	workshop := suite.registerWorkshop()

	// triage with the assistant
	var chat struct {
		Reply string `json:"reply"`
	}
	suite.do(http.MethodPost, "/api/v1/ai", "", map[string]string{"problem": "Brakes squeal"}, &chat)
	suite.Equal("Your brake pads are probably worn.", chat.Reply)

	var recommended models.Workshop
	suite.do(http.MethodPost, "/api/v1/ai/recommend", "", map[string]string{"service_category": "Brakes", "city": "milano"}, &recommended)
	suite.Equal(workshop.ID, recommended.ID)

	// book, workshop counters with another time, customer accepts it
	preferred := time.Now().AddDate(0, 0, 5).Format("2006-01-02")
	proposed := time.Now().AddDate(0, 0, 6).Format("2006-01-02")
	var appt models.Appointment
	suite.do(http.MethodPost, "/api/v1/appointments", customerID, map[string]interface{}{
		"workshop_id":       workshop.ID,
		"car_brand":         "Fiat",
		"car_model":         "Panda",
		"diagnosis":         chat.Reply,
		"service_requested": "Brakes",
		"preferred_date":    preferred,
		"preferred_time":    "09:00",
		"ai_chat_history": []models.ChatMessage{
			{Role: "user", Content: "Brakes squeal"},
			{Role: "assistant", Content: chat.Reply},
		},
	}, &appt)
	suite.Equal(booking.StatusPending, appt.Status)
	suite.EqualValues(1, suite.unread(ownerID))

	path := fmt.Sprintf("/api/v1/appointments/%d", appt.ID)
	suite.do(http.MethodPost, path+"/propose", ownerID, map[string]string{"date": proposed, "time": "15:00"}, &appt)
	suite.Require().NotNil(appt.AwaitingConfirmationFrom)
	suite.Equal(booking.PartyCustomer, *appt.AwaitingConfirmationFrom)

	// the workshop cannot accept its own proposal
	w, env := call(suite.router, http.MethodPost, path+"/accept", ownerID, nil)
	suite.Equal(http.StatusConflict, w.Code)
	suite.Equal("NOT_YOUR_TURN", env.Error.Code)

	suite.do(http.MethodPost, path+"/accept", customerID, nil, &appt)
	suite.Equal(booking.StatusConfirmed, appt.Status)
	suite.Require().NotNil(appt.ConfirmedDate)
	suite.Equal(proposed, *appt.ConfirmedDate)
	suite.Equal("15:00", *appt.ConfirmedTime)

	suite.do(http.MethodPost, path+"/messages", customerID, map[string]string{"content": "I'll be there"}, nil)

	suite.do(http.MethodPost, path+"/complete", ownerID, map[string]interface{}{
		"diagnosis_correct": true,
		"amount_spent":      180,
	}, &appt)
	suite.Equal(booking.StatusCompleted, appt.Status)

	// review, moderate, publish
	var review models.Review
	suite.do(http.MethodPost, "/api/v1/reviews", customerID, map[string]interface{}{
		"appointment_id": appt.ID,
		"rating":         5,
		"comment":        "Quick and honest",
	}, &review)
	suite.Equal(models.ReviewPending, review.Status)

	suite.do(http.MethodPost, fmt.Sprintf("/api/v1/admin/reviews/%d/approve", review.ID), adminID, nil, &review, testutil.AdminScope)
	suite.Equal(models.ReviewApproved, review.Status)

	var page struct {
		models.Workshop
		FeaturedCategories []map[string]interface{} `json:"featured_categories"`
	}
	suite.do(http.MethodGet, fmt.Sprintf("/api/v1/workshops/%d", workshop.ID), "", nil, &page)
	suite.Equal(1, page.TotalReviews)
	suite.Equal(5.0, page.AverageRating)
	suite.Equal(1, page.AIAccuracyCount)
	suite.Contains(page.CategoryRatings, "Brakes")

	var reviews []models.Review
	suite.do(http.MethodGet, fmt.Sprintf("/api/v1/workshops/%d/reviews", workshop.ID), "", nil, &reviews)
	suite.Len(reviews, 1)

	var report struct {
		TotalLeads int     `json:"total_leads"`
		Completed  int     `json:"completed"`
		Revenue    float64 `json:"revenue"`
		AIAssisted int     `json:"ai_assisted"`
	}
	suite.do(http.MethodGet, "/api/v1/workshops/me/analytics?period=week", ownerID, nil, &report)
	suite.Equal(1, report.TotalLeads)
	suite.Equal(1, report.Completed)
	suite.Equal(180.0, report.Revenue)
	suite.Equal(1, report.AIAssisted)

	suite.Len(suite.llm.Calls(), 1)
}

// TestDeclinedBookingCannotBeReviewed checks a declined request never reaches the review stage
func (suite *MarketplaceIntegrationTestSuite) TestDeclinedBookingCannotBeReviewed() {
	workshop := suite.registerWorkshop()

	var appt models.Appointment
	suite.do(http.MethodPost, "/api/v1/appointments", customerID, map[string]interface{}{
		"workshop_id":    workshop.ID,
		"car_brand":      "Lancia",
		"car_model":      "Ypsilon",
		"preferred_date": time.Now().AddDate(0, 0, 3).Format("2006-01-02"),
		"preferred_time": "11:00",
	}, &appt)

	suite.do(http.MethodPost, fmt.Sprintf("/api/v1/appointments/%d/decline", appt.ID), ownerID,
		map[string]string{"message": "Fully booked this week"}, &appt)
	suite.Equal(booking.StatusDeclined, appt.Status)

	w, env := call(suite.router, http.MethodPost, "/api/v1/reviews", customerID, map[string]interface{}{
		"appointment_id": appt.ID,
		"rating":         1,
		"comment":        "Declined me",
	})
	suite.Equal(http.StatusConflict, w.Code)
	suite.Equal("REVIEW_NOT_ALLOWED", env.Error.Code)
}

func TestMarketplaceIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(MarketplaceIntegrationTestSuite))
}
