package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/tripledger/tripledger/internal/auth"
	"github.com/tripledger/tripledger/internal/models"
	"github.com/tripledger/tripledger/internal/services"
	pkghttp "github.com/tripledger/tripledger/pkg/http"
)

// maxBodyBytes bounds login request bodies; both carry a single short field
const maxBodyBytes = 4 << 10

// LoginServiceInterface defines the interface for the login flow
type LoginServiceInterface interface {
	RequestLogin(ctx context.Context, ip, email string) error
	VerifyLogin(ctx context.Context, ip, code string) (*services.LoginResult, error)
	Logout(ctx context.Context, ip string)
}

// LoginHandler handles the login, logout and session HTTP requests
type LoginHandler struct {
	service  LoginServiceInterface
	ipConfig *pkghttp.IPConfig
	cookies  auth.CookieConfig
	logger   *slog.Logger
}

// NewLoginHandler creates a new LoginHandler
func NewLoginHandler(service LoginServiceInterface, ipConfig *pkghttp.IPConfig, cookies auth.CookieConfig, logger *slog.Logger) *LoginHandler {
	return &LoginHandler{
		service:  service,
		ipConfig: ipConfig,
		cookies:  cookies,
		logger:   logger,
	}
}

// Request DTOs

// RequestCodeRequest represents the request body for POST /login/request
type RequestCodeRequest struct {
	Email string `json:"email" validate:"required,max=254"`
}

// VerifyCodeRequest represents the request body for POST /login/verify
type VerifyCodeRequest struct {
	Code string `json:"code" validate:"required,max=16"`
}

// RequestCode handles the first login step
// @Summary Request a one-time login code
// @Accept json
// @Param request body RequestCodeRequest true "Allow-listed email"
// @Produce json
// @Success 200 {object} pkghttp.MessageResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 403 {object} pkghttp.ErrorResponse
// @Failure 429 {object} pkghttp.ErrorResponse
// @Failure 502 {object} pkghttp.ErrorResponse
// @Router /login/request [post]
func (h *LoginHandler) RequestCode(w http.ResponseWriter, r *http.Request) {
	var req RequestCodeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	ip := pkghttp.ExtractClientIP(r, h.ipConfig)

	if err := h.service.RequestLogin(r.Context(), ip, req.Email); err != nil {
		switch {
		case errors.Is(err, models.ErrRateLimited):
			pkghttp.WriteTooManyRequests(w, "Too many failed attempts. Please try again later.")
		case errors.Is(err, models.ErrNotAllowed):
			pkghttp.WriteForbidden(w, "This email address is not allowed to sign in")
		case errors.Is(err, models.ErrDeliveryFailed):
			pkghttp.WriteBadGateway(w, "Could not deliver the login code. Please try again.")
		default:
			h.logger.Error("login request failed",
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.Any("error", err))
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteMessage(w, http.StatusOK, "A login code has been sent")
}

// VerifyCode handles the second login step
// @Summary Exchange a one-time code for a session token
// @Accept json
// @Param request body VerifyCodeRequest true "One-time code"
// @Produce json
// @Success 200 {object} services.LoginResult
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 401 {object} pkghttp.ErrorResponse
// @Failure 429 {object} pkghttp.ErrorResponse
// @Router /login/verify [post]
func (h *LoginHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req VerifyCodeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	ip := pkghttp.ExtractClientIP(r, h.ipConfig)

	result, err := h.service.VerifyLogin(r.Context(), ip, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrRateLimited):
			pkghttp.WriteTooManyRequests(w, "Too many failed attempts. Please try again later.")
		case errors.Is(err, models.ErrInvalidCode):
			pkghttp.WriteUnauthorized(w, "Invalid or expired code")
		default:
			h.logger.Error("login verification failed",
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.Any("error", err))
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	auth.SetSessionCookie(w, result.Token, result.ExpiresAt, h.cookies)
	pkghttp.WriteJSON(w, http.StatusOK, result)
}

// Logout handles POST /logout. Sessions are stateless: the cookie is cleared
// and the client is expected to drop any token it holds. The token itself
// stays valid until it expires.
func (h *LoginHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.service.Logout(r.Context(), pkghttp.ExtractClientIP(r, h.ipConfig))

	auth.ClearSessionCookie(w, h.cookies)
	pkghttp.WriteMessage(w, http.StatusOK, "Logged out")
}

// Session returns the verified session of the caller. It must be mounted
// behind auth.AuthMiddleware.
func (h *LoginHandler) Session(w http.ResponseWriter, r *http.Request) {
	session := auth.GetSessionFromContext(r)
	if session == nil {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, session)
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return false
	}

	if err := ValidateRequest(dst); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return false
	}

	return true
}
