package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/tripledger/tripledger/internal/models"
	pkghttp "github.com/tripledger/tripledger/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

// SessionContextKey is the key for storing the verified session in context
const SessionContextKey contextKey = "session"

// SessionVerifier verifies session tokens
type SessionVerifier interface {
	Verify(tokenString string) (*models.Session, error)
}

// AuthMiddleware rejects requests without a valid session token and injects
// the verified session into the request context. The token is read from the
// Authorization header first, then from the session cookie. Every failure
// looks the same to the client.
func AuthMiddleware(verifier SessionVerifier, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractToken(r)
			if tokenString == "" {
				pkghttp.WriteUnauthorized(w, "authentication required")
				return
			}

			session, err := verifier.Verify(tokenString)
			if err != nil {
				logger.Debug("session rejected",
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.String("reason", models.FailureReason(err)))
				pkghttp.WriteUnauthorized(w, "authentication required")
				return
			}

			ctx := context.WithValue(r.Context(), SessionContextKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return ""
		}
		return strings.TrimSpace(token)
	}

	token, err := GetSessionCookie(r)
	if err != nil {
		return ""
	}
	return token
}

// GetSessionFromContext extracts the verified session from request context
func GetSessionFromContext(r *http.Request) *models.Session {
	session, ok := r.Context().Value(SessionContextKey).(*models.Session)
	if !ok {
		return nil
	}
	return session
}
