package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// OperatorSubject is the subject embedded in every session token. There is
// exactly one authorized identity.
const OperatorSubject = "operator"

// TokenTypeSession marks a token minted by a successful code verification.
const TokenTypeSession = "session"

// SessionClaims are the signed fields of a session token.
type SessionClaims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// Session is the verified view of a session token handed to handlers.
type Session struct {
	Subject   string    `json:"subject"`
	TokenID   string    `json:"-"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
