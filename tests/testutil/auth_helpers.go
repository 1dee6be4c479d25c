package testutil

import (
	"net/http"
	"strings"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/autofix-app/autofix-api/middleware"
	"github.com/gin-gonic/gin"
)

// Headers read by HeaderAuth in place of a signed token
const (
	UserHeader   = "X-Test-User"
	ScopesHeader = "X-Test-Scopes"
)

// MockValidatedClaims creates a mock ValidatedClaims for testing
func MockValidatedClaims(subject, role string, scopes []string) *validator.ValidatedClaims {
	return &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{
			Issuer:  "https://test.auth0.com/",
			Subject: subject,
		},
		CustomClaims: &middleware.CustomClaims{
			Scope: strings.Join(scopes, " "),
			Role:  role,
		},
	}
}

// SetMockAuthContext fills the context the way EnsureValidToken does after a successful check
func SetMockAuthContext(c *gin.Context, userID, role string, scopes []string) {
	c.Set("user_id", userID)
	c.Set("access_token", "token-"+userID)
	c.Set("validated_claims", MockValidatedClaims(userID, role, scopes))
}

// HeaderAuth authenticates the caller named in X-Test-User with the
// space separated scopes of X-Test-Scopes. Requests without the header get
// the same 401 body as an invalid token.
func HeaderAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(UserHeader)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_TOKEN",
					"message": "Failed to validate JWT.",
				},
			})
			return
		}
		SetMockAuthContext(c, userID, "", strings.Fields(c.GetHeader(ScopesHeader)))
		c.Next()
	}
}
