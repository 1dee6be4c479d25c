package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/admin/reviews", nil)
	return c, w
}

func claimsWith(scope, role string) *validator.ValidatedClaims {
	return &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{Subject: "auth0|admin"},
		CustomClaims:     &CustomClaims{Scope: scope, Role: role},
	}
}

func TestCustomClaims_FromToken(t *testing.T) {
	var claims CustomClaims
	err := json.Unmarshal([]byte(`{"scope":"read:workshops moderate:reviews","https://autofix.app/role":"admin","role":"ignored"}`), &claims)

	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Role, "only the namespaced claim carries the role")
	assert.NoError(t, claims.Validate(context.Background()))

	tests := []struct {
		scope string
		want  bool
	}{
		{"moderate:reviews", true},
		{"read:workshops", true},
		{"moderate", false},
		{"moderate:reviews:all", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.scope, func(t *testing.T) {
			assert.Equal(t, tt.want, claims.HasScope(tt.scope))
		})
	}

	assert.False(t, CustomClaims{}.HasScope("moderate:reviews"))
}

func TestContextAccessors(t *testing.T) {
	t.Run("populated by the token middleware", func(t *testing.T) {
		c, _ := newTestContext()
		c.Set("user_id", "auth0|mario")
		c.Set("access_token", "eyJhbGciOi.test.token")
		c.Set("validated_claims", claimsWith("", "workshop"))

		id, err := GetUserID(c)
		require.NoError(t, err)
		assert.Equal(t, "auth0|mario", id)

		token, err := GetAccessToken(c)
		require.NoError(t, err)
		assert.Equal(t, "eyJhbGciOi.test.token", token)

		claims, err := GetClaims(c)
		require.NoError(t, err)
		assert.Equal(t, "auth0|admin", claims.RegisteredClaims.Subject)
		assert.Equal(t, "workshop", GetRole(c))
	})

	t.Run("nothing set", func(t *testing.T) {
		c, _ := newTestContext()

		_, err := GetUserID(c)
		assertAuthError(t, err, "MISSING_USER_ID")
		_, err = GetAccessToken(c)
		assertAuthError(t, err, "MISSING_TOKEN")
		_, err = GetClaims(c)
		assertAuthError(t, err, "MISSING_CLAIMS")
		assert.Empty(t, GetRole(c))
	})

	t.Run("wrong types", func(t *testing.T) {
		c, _ := newTestContext()
		c.Set("user_id", 42)
		c.Set("access_token", "")
		c.Set("validated_claims", "not claims")

		_, err := GetUserID(c)
		assertAuthError(t, err, "INVALID_USER_ID")
		_, err = GetAccessToken(c)
		assertAuthError(t, err, "INVALID_TOKEN")
		_, err = GetClaims(c)
		assertAuthError(t, err, "INVALID_CLAIMS")
		assert.Empty(t, GetRole(c))
	})
}

func assertAuthError(t *testing.T, err error, code string) {
	t.Helper()
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, code, authErr.Code)
	assert.NotEmpty(t, authErr.Error())
}

func TestRequireScope(t *testing.T) {
	tests := []struct {
		name         string
		claims       interface{}
		wantStatus   int
		wantCode     string
		wantContinue bool
	}{
		{"moderator", claimsWith("read:workshops moderate:reviews", "admin"), http.StatusOK, "", true},
		{"missing scope", claimsWith("read:workshops", "admin"), http.StatusForbidden, "INSUFFICIENT_SCOPE", false},
		{"foreign claims type", &validator.ValidatedClaims{}, http.StatusForbidden, "INSUFFICIENT_SCOPE", false},
		{"no claims", nil, http.StatusUnauthorized, "MISSING_CLAIMS", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newTestContext()
			if tt.claims != nil {
				c.Set("validated_claims", tt.claims)
			}

			RequireScope("moderate:reviews")(c)

			assert.Equal(t, !tt.wantContinue, c.IsAborted())
			if tt.wantContinue {
				return
			}
			assert.Equal(t, tt.wantStatus, w.Code)
			var body struct {
				Success bool `json:"success"`
				Error   struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.Equal(t, tt.wantCode, body.Error.Code)
		})
	}
}
