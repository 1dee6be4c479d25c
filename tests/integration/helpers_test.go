package integration

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"strings"

	"github.com/autofix-app/autofix-api/tests/testutil"
	"github.com/gin-gonic/gin"
)

// envelope is the response body shared by every endpoint
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// call performs a JSON request as user (no auth headers when user is empty)
func call(router *gin.Engine, method, path, user string, body interface{}, scopes ...string) (*httptest.ResponseRecorder, envelope) {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(testutil.UserHeader, user)
	}
	if len(scopes) > 0 {
		req.Header.Set(testutil.ScopesHeader, strings.Join(scopes, " "))
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

