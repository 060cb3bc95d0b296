package services

import (
	"log/slog"
	"sync"
	"time"

	"github.com/tripledger/tripledger/internal/models"
)

// RateLimitConfig holds configuration for the verification-failure ban
type RateLimitConfig struct {
	MaxFailedAttempts int
	BanDuration       time.Duration
	// Retention bounds how long an idle, unbanned entry is kept.
	Retention time.Duration
	Now       func() time.Time
}

// RateLimitService counts failed code verifications per source IP and bans
// an IP once it reaches MaxFailedAttempts.
//
// State is held in memory behind a single mutex. Bans are advisory: a restart
// clears them.
type RateLimitService struct {
	mu       sync.Mutex
	attempts map[string]*models.LoginAttempt
	config   RateLimitConfig
	now      func() time.Time
	logger   *slog.Logger
}

// NewRateLimitService creates a new RateLimitService
func NewRateLimitService(config RateLimitConfig, logger *slog.Logger) *RateLimitService {
	now := config.Now
	if now == nil {
		now = time.Now
	}
	return &RateLimitService{
		attempts: make(map[string]*models.LoginAttempt),
		config:   config,
		now:      now,
		logger:   logger,
	}
}

// entry returns the attempt record for ip, creating it lazily.
// The caller must hold s.mu.
func (s *RateLimitService) entry(ip string, now time.Time) *models.LoginAttempt {
	attempt, ok := s.attempts[ip]
	if !ok {
		attempt = &models.LoginAttempt{IPAddress: ip}
		s.attempts[ip] = attempt
	}
	attempt.LastSeen = now
	return attempt
}

// Reserve claims one verification attempt for ip. It fails when ip is banned
// or when the failures already recorded plus the attempts still in flight
// have used up the budget, so concurrent requests cannot race past the ban.
//
// The returned settle func must be called exactly once with the outcome. It
// returns the failure count after settling, which is 0 when the attempt
// succeeded or imposed a ban.
func (s *RateLimitService) Reserve(ip string) (settle func(success bool) int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	attempt := s.entry(ip, now)
	if s.bannedLocked(attempt, now) {
		return nil, false
	}
	if attempt.FailureCount+attempt.InFlight >= s.config.MaxFailedAttempts {
		return nil, false
	}
	attempt.InFlight++

	var once sync.Once
	count := 0
	return func(success bool) int {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()

			now := s.now()
			attempt := s.entry(ip, now)
			attempt.InFlight--
			if success {
				s.recordSuccessLocked(attempt)
				return
			}
			count = s.recordFailureLocked(attempt, now)
		})
		return count
	}, true
}

// RecordFailure increments the failure counter for ip and returns the new
// count. Reaching the threshold starts a ban and resets the counter, so the
// returned count is 0 when a ban was just imposed. Failures recorded while a
// ban is active are ignored.
func (s *RateLimitService) RecordFailure(ip string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	return s.recordFailureLocked(s.entry(ip, now), now)
}

func (s *RateLimitService) recordFailureLocked(attempt *models.LoginAttempt, now time.Time) int {
	if attempt.IsBanned(now) {
		return 0
	}

	attempt.FailureCount++
	if attempt.FailureCount >= s.config.MaxFailedAttempts {
		bannedUntil := now.Add(s.config.BanDuration)
		attempt.BannedUntil = &bannedUntil
		attempt.FailureCount = 0

		s.logger.Warn("IP banned after repeated verification failures",
			slog.String("ip_address", attempt.IPAddress),
			slog.Int("max_failed_attempts", s.config.MaxFailedAttempts),
			slog.Duration("ban_duration", s.config.BanDuration))
	}

	return attempt.FailureCount
}

// RecordSuccess forgives prior failures and lifts any ban for ip
func (s *RateLimitService) RecordSuccess(ip string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recordSuccessLocked(s.entry(ip, s.now()))
}

func (s *RateLimitService) recordSuccessLocked(attempt *models.LoginAttempt) {
	attempt.FailureCount = 0
	attempt.BannedUntil = nil
}

// IsBanned reports whether ip is currently banned. An expired ban is cleared
// on check, starting a fresh cycle.
func (s *RateLimitService) IsBanned(ip string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempt, ok := s.attempts[ip]
	if !ok {
		return false
	}
	return s.bannedLocked(attempt, s.now())
}

// bannedLocked reports an active ban and clears an expired one.
// The caller must hold s.mu.
func (s *RateLimitService) bannedLocked(attempt *models.LoginAttempt, now time.Time) bool {
	if attempt.BannedUntil == nil {
		return false
	}
	if attempt.IsBanned(now) {
		return true
	}

	attempt.BannedUntil = nil
	attempt.FailureCount = 0
	return false
}

// FailureCount returns the current failure count for ip
func (s *RateLimitService) FailureCount(ip string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if attempt, ok := s.attempts[ip]; ok {
		return attempt.FailureCount
	}
	return 0
}

// Sweep drops entries with no active ban and no activity within the
// retention window. It returns the number of entries removed.
func (s *RateLimitService) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for ip, attempt := range s.attempts {
		if attempt.IsStale(now, s.config.Retention) {
			delete(s.attempts, ip)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked IPs
func (s *RateLimitService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.attempts)
}
