package services

import (
	"context"
	"sync"
	"time"

	"github.com/tripledger/tripledger/internal/models"
)

// ManualClock is a controllable time source for tests
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock returns a clock frozen at start
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the current frozen time
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// RecordingNotifier implements Notifier and captures every code it is asked
// to deliver
type RecordingNotifier struct {
	mu       sync.Mutex
	codes    []string
	SendFunc func(ctx context.Context, code string) error
}

func (n *RecordingNotifier) Send(ctx context.Context, code string) error {
	n.mu.Lock()
	n.codes = append(n.codes, code)
	n.mu.Unlock()

	if n.SendFunc != nil {
		return n.SendFunc(ctx, code)
	}
	return nil
}

// Calls returns the number of Send invocations
func (n *RecordingNotifier) Calls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.codes)
}

// LastCode returns the most recently sent code, or "" if none
func (n *RecordingNotifier) LastCode() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.codes) == 0 {
		return ""
	}
	return n.codes[len(n.codes)-1]
}

// MockLoginEventRecorder implements LoginEventRecorder for testing
type MockLoginEventRecorder struct {
	mu         sync.Mutex
	Events     []*models.LoginEvent
	RecordFunc func(ctx context.Context, event *models.LoginEvent) error
}

func (m *MockLoginEventRecorder) Record(ctx context.Context, event *models.LoginEvent) error {
	m.mu.Lock()
	m.Events = append(m.Events, event)
	m.mu.Unlock()

	if m.RecordFunc != nil {
		return m.RecordFunc(ctx, event)
	}
	return nil
}

// Snapshot returns a copy of the recorded events
func (m *MockLoginEventRecorder) Snapshot() []*models.LoginEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.LoginEvent, len(m.Events))
	copy(out, m.Events)
	return out
}
