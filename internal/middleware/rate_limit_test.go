package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tripledger/tripledger/internal/middleware"
	pkghttp "github.com/tripledger/tripledger/pkg/http"
)

func TestRateLimitByIP_EnforcesLimit(t *testing.T) {
	handler := middleware.RateLimitByIP(middleware.RateLimitConfig{RequestsPerMinute: 3})(okHandler())

	send := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/login/request", nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, send("203.0.113.1:1000").Code, "request %d", i+1)
	}

	w := send("203.0.113.1:1001")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	var resp pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "rate_limit_exceeded", resp.Error)

	// A different client has its own budget
	assert.Equal(t, http.StatusOK, send("203.0.113.2:1000").Code)
}

func TestRateLimitByIP_IgnoresSpoofedForwardedFor(t *testing.T) {
	handler := middleware.RateLimitByIP(middleware.RateLimitConfig{RequestsPerMinute: 1})(okHandler())

	first := httptest.NewRequest("POST", "/login/verify", nil)
	first.RemoteAddr = "203.0.113.9:1000"
	first.Header.Set("X-Forwarded-For", "10.0.0.1")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, first)
	require.Equal(t, http.StatusOK, w.Code)

	second := httptest.NewRequest("POST", "/login/verify", nil)
	second.RemoteAddr = "203.0.113.9:1000"
	second.Header.Set("X-Forwarded-For", "10.0.0.2")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, second)
	assert.Equal(t, http.StatusTooManyRequests, w.Code, "a rotating header must not buy a fresh budget")
}

func TestRateLimitByIP_TrustedProxyKeysByClient(t *testing.T) {
	ipConfig, err := pkghttp.NewIPConfig([]string{"10.0.0.0/8"})
	require.NoError(t, err)
	handler := middleware.RateLimitByIP(middleware.RateLimitConfig{RequestsPerMinute: 1, IPConfig: ipConfig})(okHandler())

	for _, client := range []string{"198.51.100.1", "198.51.100.2"} {
		req := httptest.NewRequest("POST", "/login/request", nil)
		req.RemoteAddr = "10.0.0.5:443"
		req.Header.Set("X-Forwarded-For", client)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, client)
	}
}
