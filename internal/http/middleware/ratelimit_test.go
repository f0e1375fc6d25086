package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/straye-as/solar-crm-api/internal/config"
	"github.com/straye-as/solar-crm-api/internal/domain"
	"github.com/straye-as/solar-crm-api/internal/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newLimited(cfg *config.RateLimitConfig) http.Handler {
	return middleware.NewRateLimiter(cfg, zap.NewNop()).Limit(http.HandlerFunc(okHandler))
}

func get(h http.Handler, remoteAddr string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/opportunities", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiter_LimitExceededResponse(t *testing.T) {
	h := newLimited(&config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2, DeleteRequestsPerMinute: 1})

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, get(h, "10.1.1.1:1234", nil).Code)
	}
	rec := get(h, "10.1.1.1:1234", nil)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	var apiErr domain.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	assert.Equal(t, domain.ErrorTypeRateLimited, apiErr.Type)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
}

func TestRateLimiter_ClientsAreIndependent(t *testing.T) {
	h := newLimited(&config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, DeleteRequestsPerMinute: 1})

	assert.Equal(t, http.StatusOK, get(h, "10.1.1.1:1234", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, get(h, "10.1.1.1:1234", nil).Code)
	assert.Equal(t, http.StatusOK, get(h, "10.1.1.2:1234", nil).Code)
}

func TestRateLimiter_ProxyHeaders(t *testing.T) {
	h := newLimited(&config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, DeleteRequestsPerMinute: 1})

	// same proxy address, different forwarded clients
	assert.Equal(t, http.StatusOK, get(h, "10.0.0.1:80", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}).Code)
	assert.Equal(t, http.StatusOK, get(h, "10.0.0.1:80", map[string]string{"X-Forwarded-For": "203.0.113.6"}).Code)
	assert.Equal(t, http.StatusTooManyRequests, get(h, "10.0.0.1:80", map[string]string{"X-Forwarded-For": "203.0.113.5"}).Code)

	assert.Equal(t, http.StatusOK, get(h, "10.0.0.1:80", map[string]string{"X-Real-IP": "198.51.100.9"}).Code)
	assert.Equal(t, http.StatusTooManyRequests, get(h, "10.0.0.1:80", map[string]string{"X-Real-IP": "198.51.100.9"}).Code)
}

func TestRateLimiter_Whitelists(t *testing.T) {
	h := newLimited(&config.RateLimitConfig{
		Enabled:                 true,
		RequestsPerMinute:       1,
		DeleteRequestsPerMinute: 1,
		WhitelistIPs:            []string{"192.0.2.10"},
		WhitelistPaths:          []string{"/metrics"},
	})

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, get(h, "192.0.2.10:5000", nil).Code)
	}

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		req.RemoteAddr = "192.0.2.99:5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}
