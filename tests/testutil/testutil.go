package testutil

import (
	"os"
	"testing"

	"github.com/autofix-app/autofix-api/config"
	"github.com/autofix-app/autofix-api/controllers"
	"github.com/autofix-app/autofix-api/middleware"
	"github.com/autofix-app/autofix-api/models"
	"github.com/autofix-app/autofix-api/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// AdminScope is the token scope the admin routes are guarded with
const AdminScope = "moderate:reviews"

// RequireTestEnvironment ensures that tests are running in the test environment.
// It will fail the test immediately if GO_ENV is not set to "test".
func RequireTestEnvironment(t *testing.T) {
	t.Helper()

	env := os.Getenv("GO_ENV")
	if env != "test" {
		t.Fatalf("SAFETY CHECK FAILED: Tests must run with GO_ENV=test to prevent data loss. Current GO_ENV=%q. Set GO_ENV=test before running tests.", env)
	}
}

// SetupDatabase opens a migrated in-memory database, installs it together
// with test doubles for every external service and returns it
func SetupDatabase(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(models.All()...))

	config.SetDB(db)
	config.SetConfig(&config.Config{GoEnv: "test", LLMTimeoutSec: 5})
	services.SetEventPublisher(services.NoopPublisher{})
	services.SetWorkshopCache(services.NoopWorkshopCache{})
	services.NewMockImageService().SetAsMockForTesting()

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// NewRouter mounts the full API behind HeaderAuth, with the admin group
// additionally requiring AdminScope
func NewRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(gin.Recovery())
	controllers.RegisterRoutes(router.Group("/api/v1"), HeaderAuth(), middleware.RequireScope(AdminScope))
	return router
}

// CreateUser inserts a profile directly, bypassing the Auth0 lookup
func CreateUser(t *testing.T, db *gorm.DB, auth0ID, name, role string) *models.User {
	t.Helper()
	user := &models.User{
		Auth0ID: auth0ID,
		Name:    name,
		Email:   auth0ID + "@example.com",
		Role:    role,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}
