package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	pkghttp "github.com/tripledger/tripledger/pkg/http"
)

// RateLimitConfig holds request throttling configuration
type RateLimitConfig struct {
	RequestsPerMinute int
	IPConfig          *pkghttp.IPConfig
}

// RateLimitByIP throttles request volume per client IP. It is independent
// of the failure-based ban: it caps how often any IP may ask for codes or
// submit them, whether or not the email or code is right.
//
// The key comes from pkghttp.ExtractClientIP so forwarding headers are only
// honoured from trusted proxies.
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return pkghttp.ExtractClientIP(r, config.IPConfig), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "Too many requests. Please slow down.")
		}),
	)
}
