package background

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sweeper evicts stale in-memory entries and reports how many it removed
type Sweeper interface {
	Sweep() int
}

// EventPruner deletes persisted login events older than a cutoff
type EventPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupConfig holds the schedule of the cleanup task
type CleanupConfig struct {
	Interval       time.Duration
	EventRetention time.Duration
	Now            func() time.Time
}

// CleanupManager periodically bounds the memory held by pending codes and
// per-IP attempt counters, and prunes the persisted audit trail.
type CleanupManager struct {
	codes    Sweeper
	attempts Sweeper
	events   EventPruner
	config   CleanupConfig
	logger   *slog.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCleanupManager creates a new cleanup manager. events may be nil when no
// database is configured.
func NewCleanupManager(codes, attempts Sweeper, events EventPruner, config CleanupConfig, logger *slog.Logger) *CleanupManager {
	if config.Now == nil {
		config.Now = time.Now
	}
	return &CleanupManager{
		codes:    codes,
		attempts: attempts,
		events:   events,
		config:   config,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the cleanup loop until ctx is cancelled or Stop is called
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cm.RunOnce(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// RunOnce performs a single cleanup pass
func (cm *CleanupManager) RunOnce(ctx context.Context) {
	codes := cm.codes.Sweep()
	attempts := cm.attempts.Sweep()

	if codes > 0 || attempts > 0 {
		cm.logger.Debug("evicted stale login state",
			slog.Int("codes", codes),
			slog.Int("attempts", attempts))
	}

	if cm.events == nil || cm.config.EventRetention <= 0 {
		return
	}

	pruneCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cutoff := cm.config.Now().Add(-cm.config.EventRetention)
	rowsDeleted, err := cm.events.DeleteOlderThan(pruneCtx, cutoff)
	if err != nil {
		cm.logger.Error("failed to prune login events", slog.Any("error", err))
		return
	}

	if rowsDeleted > 0 {
		cm.logger.Info("login event pruning completed", slog.Int64("rows_deleted", rowsDeleted))
	}
}

// Stop signals the cleanup manager to stop. It is safe to call more than once.
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}
