package handlers_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tripledger/tripledger/internal/auth"
	"github.com/tripledger/tripledger/internal/handlers"
	"github.com/tripledger/tripledger/internal/models"
	"github.com/tripledger/tripledger/internal/services"
	pkghttp "github.com/tripledger/tripledger/pkg/http"
)

func newLoginHandler(mock *handlers.MockLoginService) *handlers.LoginHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return handlers.NewLoginHandler(mock, nil, auth.CookieConfig{}, logger)
}

func TestRequestCode_Success(t *testing.T) {
	mock := &handlers.MockLoginService{}
	handler := newLoginHandler(mock)

	req := handlers.NewTestRequest(t, "POST", "/login/request", handlers.RequestCodeRequest{Email: "owner@example.com"})
	req.RemoteAddr = "198.51.100.7:41000"

	w := httptest.NewRecorder()
	handler.RequestCode(w, req)

	var resp pkghttp.MessageResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.NotEmpty(t, resp.Message)
	assert.Equal(t, "198.51.100.7", mock.LastIP)
	assert.Equal(t, "owner@example.com", mock.LastInput)
}

func TestRequestCode_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"rate limited", models.ErrRateLimited, 429, "rate_limit_exceeded"},
		{"not allowed", models.ErrNotAllowed, 403, "forbidden"},
		{"delivery failed", fmt.Errorf("%w: %w", models.ErrDeliveryFailed, context.DeadlineExceeded), 502, "delivery_failed"},
		{"unexpected", errors.New("boom"), 500, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &handlers.MockLoginService{
				RequestLoginFunc: func(ctx context.Context, ip, email string) error {
					return tt.err
				},
			}

			req := handlers.NewTestRequest(t, "POST", "/login/request", handlers.RequestCodeRequest{Email: "owner@example.com"})
			w := httptest.NewRecorder()
			newLoginHandler(mock).RequestCode(w, req)

			handlers.AssertErrorResponse(t, w, tt.status, tt.code)
			assert.NotContains(t, w.Body.String(), "deadline", "internal causes stay server side")
		})
	}
}

func TestRequestCode_BadBodies(t *testing.T) {
	bodies := []string{
		``,
		`not json`,
		`{}`,
		`{"email":""}`,
		`{"email":123}`,
		`{"email":"` + strings.Repeat("a", 250) + `@example.com"}`,
	}

	for _, body := range bodies {
		mock := &handlers.MockLoginService{}
		req := httptest.NewRequest("POST", "/login/request", strings.NewReader(body))
		w := httptest.NewRecorder()
		newLoginHandler(mock).RequestCode(w, req)

		handlers.AssertErrorResponse(t, w, 400, "bad_request")
		assert.Empty(t, mock.LastInput, "service must not be called for %q", body)
	}
}

func TestRequestCode_ValidationNamesJSONField(t *testing.T) {
	req := httptest.NewRequest("POST", "/login/request", strings.NewReader(`{"email":""}`))
	w := httptest.NewRecorder()
	newLoginHandler(&handlers.MockLoginService{}).RequestCode(w, req)

	assert.Contains(t, w.Body.String(), "email: this field is required")
}

func TestRequestCode_AnyNonEmptyEmailReachesService(t *testing.T) {
	mock := &handlers.MockLoginService{
		RequestLoginFunc: func(ctx context.Context, ip, email string) error {
			return models.ErrNotAllowed
		},
	}

	req := httptest.NewRequest("POST", "/login/request", strings.NewReader(`{"email":"intruder"}`))
	w := httptest.NewRecorder()
	newLoginHandler(mock).RequestCode(w, req)

	handlers.AssertErrorResponse(t, w, 403, "forbidden")
	assert.Equal(t, "intruder", mock.LastInput)
}

func TestRequestCode_OversizedBody(t *testing.T) {
	body := `{"email":"owner@example.com","padding":"` + strings.Repeat("x", 8<<10) + `"}`
	req := httptest.NewRequest("POST", "/login/request", strings.NewReader(body))
	w := httptest.NewRecorder()
	newLoginHandler(&handlers.MockLoginService{}).RequestCode(w, req)

	assert.Equal(t, 400, w.Code)
}

func TestVerifyCode_Success(t *testing.T) {
	expiresAt := time.Now().Add(15 * time.Minute).UTC().Truncate(time.Second)
	mock := &handlers.MockLoginService{
		VerifyLoginFunc: func(ctx context.Context, ip, code string) (*services.LoginResult, error) {
			return &services.LoginResult{Token: "signed.session.token", ExpiresAt: expiresAt}, nil
		},
	}

	req := handlers.NewTestRequest(t, "POST", "/login/verify", handlers.VerifyCodeRequest{Code: "123456"})
	w := httptest.NewRecorder()
	newLoginHandler(mock).VerifyCode(w, req)

	var resp services.LoginResult
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "signed.session.token", resp.Token)
	assert.True(t, expiresAt.Equal(resp.ExpiresAt))
	assert.Equal(t, "123456", mock.LastInput)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.SessionCookieName, cookies[0].Name)
	assert.Equal(t, "signed.session.token", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
}

func TestVerifyCode_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid code", models.ErrInvalidCode, 401, "unauthorized"},
		{"rate limited", models.ErrRateLimited, 429, "rate_limit_exceeded"},
		{"unexpected", errors.New("boom"), 500, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &handlers.MockLoginService{
				VerifyLoginFunc: func(ctx context.Context, ip, code string) (*services.LoginResult, error) {
					return nil, tt.err
				},
			}

			req := handlers.NewTestRequest(t, "POST", "/login/verify", handlers.VerifyCodeRequest{Code: "000000"})
			w := httptest.NewRecorder()
			newLoginHandler(mock).VerifyCode(w, req)

			handlers.AssertErrorResponse(t, w, tt.status, tt.code)
			assert.Empty(t, w.Result().Cookies())
		})
	}
}

func TestVerifyCode_MissingCode(t *testing.T) {
	req := httptest.NewRequest("POST", "/login/verify", strings.NewReader(`{"code":""}`))
	w := httptest.NewRecorder()
	newLoginHandler(&handlers.MockLoginService{}).VerifyCode(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestLogout_AlwaysOK(t *testing.T) {
	mock := &handlers.MockLoginService{}

	req := httptest.NewRequest("POST", "/logout", nil)
	req.RemoteAddr = "198.51.100.7:41000"
	w := httptest.NewRecorder()
	newLoginHandler(mock).Logout(w, req)

	var resp pkghttp.MessageResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, []string{"198.51.100.7"}, mock.LogoutIPs)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.SessionCookieName, cookies[0].Name)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestSession_ReturnsContextSession(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	session := &models.Session{
		Subject:   models.OperatorSubject,
		TokenID:   "jti-1",
		IssuedAt:  issued,
		ExpiresAt: issued.Add(15 * time.Minute),
	}

	req := handlers.WithSessionContext(httptest.NewRequest(http.MethodGet, "/auth/session", nil), session)
	w := httptest.NewRecorder()
	newLoginHandler(&handlers.MockLoginService{}).Session(w, req)

	assert.Equal(t, 200, w.Code)
	assert.JSONEq(t, `{"subject":"operator","issued_at":"2026-03-01T12:00:00Z","expires_at":"2026-03-01T12:15:00Z"}`, w.Body.String())
}

func TestSession_NoSession(t *testing.T) {
	w := httptest.NewRecorder()
	newLoginHandler(&handlers.MockLoginService{}).Session(w, httptest.NewRequest(http.MethodGet, "/auth/session", nil))

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}
