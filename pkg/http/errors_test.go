package http_test

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	pkghttp "github.com/boltforge/authgate/pkg/http"
	"github.com/stretchr/testify/assert"
)

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()

	pkghttp.WriteError(w, 400, "test_error", "Test message")

	assert.Equal(t, 400, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err)
	assert.Equal(t, "test_error", resp.Error)
	assert.Equal(t, "Test message", resp.Message)
}

func TestWriteRateLimited(t *testing.T) {
	w := httptest.NewRecorder()

	pkghttp.WriteRateLimited(w, "Too many attempts", pkghttp.RateLimitInfo{
		RetryAfterSeconds: 900,
		AttemptsRemaining: 0,
	})

	assert.Equal(t, 429, w.Code)
	assert.Equal(t, "900", w.Header().Get("Retry-After"))

	var resp struct {
		Error             string `json:"error"`
		RetryAfterSeconds int    `json:"retry_after_seconds"`
		AttemptsRemaining int    `json:"attempts_remaining"`
	}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err)
	assert.Equal(t, "rate_limit_exceeded", resp.Error)
	assert.Equal(t, 900, resp.RetryAfterSeconds)
	assert.Equal(t, 0, resp.AttemptsRemaining)
}

func TestWriteUnauthorized(t *testing.T) {
	w := httptest.NewRecorder()
	pkghttp.WriteUnauthorized(w, "Authentication failed")

	assert.Equal(t, 401, w.Code)

	var resp pkghttp.ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	assert.Equal(t, "unauthorized", resp.Error)
}
