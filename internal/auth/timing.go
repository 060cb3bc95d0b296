package auth

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"
)

// TimingConfig holds the padding applied to failed verifications
type TimingConfig struct {
	BaseDelay      time.Duration
	RandomDelay    time.Duration // upper bound of the uniform jitter
	DelayOnSuccess bool
}

// TimingDelay pads failed code verifications so that response time does not
// hint at which check rejected the code.
type TimingDelay struct {
	config TimingConfig
}

// NewTimingDelay creates a new TimingDelay
func NewTimingDelay(config TimingConfig) *TimingDelay {
	return &TimingDelay{config: config}
}

// jitter returns a uniform duration in [0, max)
func jitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0
	}
	return time.Duration(n.Int64())
}

// Delay returns how long Wait would sleep for the given outcome
func (td *TimingDelay) Delay(success bool) time.Duration {
	if success && !td.config.DelayOnSuccess {
		return 0
	}
	return td.config.BaseDelay + jitter(td.config.RandomDelay)
}

// Wait sleeps for the configured delay or until ctx is done
func (td *TimingDelay) Wait(ctx context.Context, success bool) {
	d := td.Delay(success)
	if d <= 0 {
		return
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
