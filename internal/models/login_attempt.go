package models

import "time"

// LoginAttempt tracks verification failures from a single source IP.
// It lives in memory only; a process restart clears every ban.
type LoginAttempt struct {
	IPAddress    string
	FailureCount int
	BannedUntil  *time.Time
	LastSeen     time.Time
	// InFlight counts verifications reserved but not yet settled.
	InFlight int
}

// IsBanned reports whether the ban is still in effect at now.
func (a *LoginAttempt) IsBanned(now time.Time) bool {
	return a.BannedUntil != nil && now.Before(*a.BannedUntil)
}

// IsStale reports whether the entry carries no active ban, has no attempt in
// flight and has seen no activity within retention.
func (a *LoginAttempt) IsStale(now time.Time, retention time.Duration) bool {
	if a.IsBanned(now) || a.InFlight > 0 {
		return false
	}
	return now.Sub(a.LastSeen) > retention
}
