package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tripledger/tripledger/internal/auth"
	"github.com/tripledger/tripledger/internal/models"
	"github.com/tripledger/tripledger/internal/services"
	pkghttp "github.com/tripledger/tripledger/pkg/http"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithSessionContext adds a verified session to the request context for
// testing authenticated endpoints
func WithSessionContext(req *http.Request, session *models.Session) *http.Request {
	ctx := context.WithValue(req.Context(), auth.SessionContextKey, session)
	return req.WithContext(ctx)
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockLoginService implements LoginServiceInterface for testing
type MockLoginService struct {
	RequestLoginFunc func(ctx context.Context, ip, email string) error
	VerifyLoginFunc  func(ctx context.Context, ip, code string) (*services.LoginResult, error)

	mu        sync.Mutex
	LogoutIPs []string
	LastIP    string
	LastInput string
}

func (m *MockLoginService) record(ip, input string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastIP = ip
	m.LastInput = input
}

func (m *MockLoginService) RequestLogin(ctx context.Context, ip, email string) error {
	m.record(ip, email)
	if m.RequestLoginFunc != nil {
		return m.RequestLoginFunc(ctx, ip, email)
	}
	return nil
}

func (m *MockLoginService) VerifyLogin(ctx context.Context, ip, code string) (*services.LoginResult, error) {
	m.record(ip, code)
	if m.VerifyLoginFunc != nil {
		return m.VerifyLoginFunc(ctx, ip, code)
	}
	return nil, models.ErrInvalidCode
}

func (m *MockLoginService) Logout(ctx context.Context, ip string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LogoutIPs = append(m.LogoutIPs, ip)
}
