package routes

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tripledger/tripledger/internal/auth"
	"github.com/tripledger/tripledger/internal/handlers"
	middlewareCustom "github.com/tripledger/tripledger/internal/middleware"
	pkghttp "github.com/tripledger/tripledger/pkg/http"
)

// HealthChecker reports whether a backing store is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Options holds everything the router needs
type Options struct {
	LoginHandler *handlers.LoginHandler
	Sessions     auth.SessionVerifier
	IPConfig     *pkghttp.IPConfig
	Logger       *slog.Logger

	// LoginRequestsPerMinute caps request volume per IP on the login endpoints
	LoginRequestsPerMinute int
	Production             bool
	RequestTimeout         time.Duration

	// Database is optional; nil reports the database as disabled
	Database HealthChecker

	// Protected mounts additional routes behind session verification
	Protected func(r chi.Router)
}

// NewRouter builds the application router with the global middleware stack
func NewRouter(opts Options) chi.Router {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Production: opts.Production}))
	router.Use(middlewareCustom.SecureLogger(opts.Logger, opts.IPConfig))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(timeout))

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		pkghttp.WriteNotFound(w, "Not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		pkghttp.WriteMethodNotAllowed(w, "Method not allowed")
	})

	RegisterRoutes(router, opts)
	return router
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, opts Options) {
	loginLimit := middlewareCustom.RateLimitByIP(middlewareCustom.RateLimitConfig{
		RequestsPerMinute: opts.LoginRequestsPerMinute,
		IPConfig:          opts.IPConfig,
	})

	// Public routes - no authentication required
	router.Get("/health", healthHandler(opts.Database))
	router.Group(func(r chi.Router) {
		r.Use(loginLimit)
		r.Post("/login/request", opts.LoginHandler.RequestCode)
		r.Post("/login/verify", opts.LoginHandler.VerifyCode)
	})
	router.Post("/logout", opts.LoginHandler.Logout)

	// Protected routes - a valid session is required
	router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(opts.Sessions, opts.Logger))

		r.Get("/auth/session", opts.LoginHandler.Session)

		if opts.Protected != nil {
			opts.Protected(r)
		}
	})
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

func healthHandler(db HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db == nil {
			pkghttp.WriteJSON(w, http.StatusOK, healthResponse{Status: "healthy", Database: "disabled"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			pkghttp.WriteJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unhealthy", Database: "down"})
			return
		}

		pkghttp.WriteJSON(w, http.StatusOK, healthResponse{Status: "healthy", Database: "up"})
	}
}
