package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAPIHealthEndpointAcceptance drives the full router over a real HTTP connection
func TestAPIHealthEndpointAcceptance(t *testing.T) {
	server := httptest.NewServer(newTestRouter(t))
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var response struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&response))
	assert.True(t, response.Success)
	assert.Equal(t, "AutoFix API is running", response.Message)
}

func TestHealthEndpointResponseTime(t *testing.T) {
	server := httptest.NewServer(newTestRouter(t))
	defer server.Close()

	start := time.Now()
	for i := 0; i < 5; i++ {
		resp, err := http.Get(server.URL + "/api/v1/health")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, "request %d", i+1)
	}

	assert.Less(t, time.Since(start), time.Second)
}

func TestPublicAIEndpointRejectsEmptyInput(t *testing.T) {
	server := httptest.NewServer(newTestRouter(t))
	defer server.Close()

	resp, err := http.Post(server.URL+"/api/v1/ai", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
