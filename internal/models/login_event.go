package models

import (
	"time"

	"github.com/google/uuid"
)

// Login event types persisted to the audit trail
const (
	LoginEventRequest = "login_request"
	LoginEventVerify  = "login_verify"
	LoginEventLogout  = "logout"
)

// LoginEvent is one persisted step of the login flow.
type LoginEvent struct {
	ID            uuid.UUID `db:"id"`
	EventType     string    `db:"event_type"`
	IPAddress     string    `db:"ip_address"`
	Success       bool      `db:"success"`
	FailureReason *string   `db:"failure_reason"`
	CreatedAt     time.Time `db:"created_at"`
}
