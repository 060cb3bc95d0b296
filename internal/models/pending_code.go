package models

import "time"

// PendingCode is the single outstanding one-time code for an identity.
// Only the bcrypt hash of the code is retained.
type PendingCode struct {
	CodeHash  []byte
	IssuedAt  time.Time
	ExpiresAt time.Time
	Consumed  bool
}

// IsExpired reports whether now is past the code's expiry.
func (c *PendingCode) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// IsLive reports whether the code can still be validated.
func (c *PendingCode) IsLive(now time.Time) bool {
	return !c.Consumed && !c.IsExpired(now)
}
