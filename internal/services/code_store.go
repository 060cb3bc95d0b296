package services

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/tripledger/tripledger/internal/models"
	"golang.org/x/crypto/bcrypt"
)

const (
	codeDigits = 6
	codeSpace  = 1_000_000 // 10^codeDigits
)

// CodeStoreConfig holds configuration for one-time login codes
type CodeStoreConfig struct {
	CodeTTL  time.Duration
	HashCost int
	Now      func() time.Time
}

// CodeStore keeps at most one pending login code per identity. Issuing a new
// code replaces whatever was outstanding.
type CodeStore struct {
	mu      sync.Mutex
	pending map[string]*models.PendingCode
	ttl     time.Duration
	cost    int
	now     func() time.Time
}

// NewCodeStore creates a new CodeStore
func NewCodeStore(config CodeStoreConfig) *CodeStore {
	now := config.Now
	if now == nil {
		now = time.Now
	}
	cost := config.HashCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &CodeStore{
		pending: make(map[string]*models.PendingCode),
		ttl:     config.CodeTTL,
		cost:    cost,
		now:     now,
	}
}

// generateCode returns a uniformly distributed code over 000000-999999
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpace))
	if err != nil {
		return "", fmt.Errorf("failed to generate login code: %w", err)
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}

// Issue generates a fresh code for identity, replacing any prior code.
// The plain code is returned once and only its hash is retained.
func (s *CodeStore) Issue(identity string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash login code: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pending[identity] = &models.PendingCode{
		CodeHash:  hash,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}

	return code, nil
}

// Validate checks submitted against the pending code for identity and
// consumes it on a match. It returns ErrNoActiveCode, ErrCodeExpired or
// ErrCodeMismatch on failure.
//
// The lock is held across the hash comparison so two concurrent submissions
// of the correct code cannot both succeed.
func (s *CodeStore) Validate(identity, submitted string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, ok := s.pending[identity]
	if !ok || pending.Consumed {
		return models.ErrNoActiveCode
	}

	if pending.IsExpired(s.now()) {
		delete(s.pending, identity)
		return models.ErrCodeExpired
	}

	if err := bcrypt.CompareHashAndPassword(pending.CodeHash, []byte(submitted)); err != nil {
		return models.ErrCodeMismatch
	}

	pending.Consumed = true
	return nil
}

// Sweep removes consumed and expired codes and returns how many were removed
func (s *CodeStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for identity, pending := range s.pending {
		if !pending.IsLive(now) {
			delete(s.pending, identity)
			removed++
		}
	}
	return removed
}

// Len returns the number of codes held, live or not
func (s *CodeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
