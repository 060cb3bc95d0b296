package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tripledger/tripledger/internal/models"
)

const tokenIssuer = "tripledger"

// TokenManager mints and verifies self-contained HS256 session tokens.
//
// Sessions are stateless: validity is decided by signature and expiry alone.
// There is no revocation list, so logout only discards the token client side,
// and rotating the secret invalidates every outstanding session.
type TokenManager struct {
	secret     []byte
	sessionTTL time.Duration
	now        func() time.Time
	parser     *jwt.Parser
}

// NewTokenManager creates a new TokenManager. now may be nil.
func NewTokenManager(secret string, sessionTTL time.Duration, now func() time.Time) *TokenManager {
	if now == nil {
		now = time.Now
	}
	return &TokenManager{
		secret:     []byte(secret),
		sessionTTL: sessionTTL,
		now:        now,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithIssuer(tokenIssuer),
			jwt.WithStrictDecoding(),
			jwt.WithTimeFunc(now),
		),
	}
}

// SessionTTL returns the lifetime of minted tokens
func (tm *TokenManager) SessionTTL() time.Duration {
	return tm.sessionTTL
}

// Mint creates a signed session token for subject.
//
// JWT timestamps have whole-second precision, so the token expires at
// now+sessionTTL truncated to the second, up to 1s early. The returned
// session carries the truncated times, which are the ones Verify enforces.
func (tm *TokenManager) Mint(subject string) (string, *models.Session, error) {
	now := tm.now()
	jti := uuid.NewString()

	claims := &models.SessionClaims{
		Type: models.TokenTypeSession,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    tokenIssuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.sessionTTL)),
		},
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	return tokenString, sessionFromClaims(claims), nil
}

// Verify checks the token's signature and expiry and returns the session it
// carries. Errors are ErrTokenMalformed, ErrTokenBadSignature or
// ErrTokenExpired; callers facing clients must collapse them to
// ErrUnauthorized.
func (tm *TokenManager) Verify(tokenString string) (*models.Session, error) {
	claims := &models.SessionClaims{}

	_, err := tm.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return tm.secret, nil
	})
	if err != nil {
		return nil, classifyTokenError(err)
	}

	if claims.Type != models.TokenTypeSession || claims.Subject == "" {
		return nil, fmt.Errorf("%w: unexpected claims", models.ErrTokenMalformed)
	}

	return sessionFromClaims(claims), nil
}

func classifyTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", models.ErrTokenBadSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet):
		return fmt.Errorf("%w: %v", models.ErrTokenExpired, err)
	default:
		return fmt.Errorf("%w: %v", models.ErrTokenMalformed, err)
	}
}

func sessionFromClaims(claims *models.SessionClaims) *models.Session {
	session := &models.Session{
		Subject: claims.Subject,
		TokenID: claims.ID,
	}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.UTC()
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.UTC()
	}
	return session
}
