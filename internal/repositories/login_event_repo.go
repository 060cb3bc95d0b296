package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/tripledger/tripledger/internal/database"
	"github.com/tripledger/tripledger/internal/models"
)

// LoginEventRepository handles database operations for the login audit trail
type LoginEventRepository struct {
	db *database.DB
}

// NewLoginEventRepository creates a new LoginEventRepository
func NewLoginEventRepository(db *database.DB) *LoginEventRepository {
	return &LoginEventRepository{db: db}
}

// Record inserts one login event
func (r *LoginEventRepository) Record(ctx context.Context, event *models.LoginEvent) error {
	query := `
		INSERT INTO login_events (id, event_type, ip_address, success, failure_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		event.ID,
		event.EventType,
		event.IPAddress,
		event.Success,
		event.FailureReason,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record login event: %w", database.MapPostgresError(err))
	}

	return nil
}

// DeleteOlderThan removes events created before cutoff and returns how many
// rows were deleted
func (r *LoginEventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM login_events WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune login events: %w", err)
	}
	return tag.RowsAffected(), nil
}
