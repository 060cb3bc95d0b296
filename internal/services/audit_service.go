package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tripledger/tripledger/internal/models"
	pkglogger "github.com/tripledger/tripledger/pkg/logger"
)

const persistTimeout = 2 * time.Second

// LoginEventRecorder persists login events
type LoginEventRecorder interface {
	Record(ctx context.Context, event *models.LoginEvent) error
}

// AuditService writes every login step to the audit log and, when a recorder
// is configured, to the database. Persistence failures never fail a login.
type AuditService struct {
	recorder    LoginEventRecorder
	auditLogger *pkglogger.AuditLogger
	logger      *slog.Logger
	now         func() time.Time
}

// NewAuditService creates a new AuditService. recorder may be nil, and a nil
// *AuditService discards everything.
func NewAuditService(recorder LoginEventRecorder, auditLogger *pkglogger.AuditLogger, logger *slog.Logger) *AuditService {
	return &AuditService{
		recorder:    recorder,
		auditLogger: auditLogger,
		logger:      logger,
		now:         time.Now,
	}
}

// LoginRequested records the outcome of a code request
func (s *AuditService) LoginRequested(ctx context.Context, ip string, err error) {
	s.record(ctx, models.LoginEventRequest, ip, err)
}

// LoginVerified records the outcome of a code verification. err carries the
// internal reason, before it is collapsed for the client.
func (s *AuditService) LoginVerified(ctx context.Context, ip string, err error) {
	s.record(ctx, models.LoginEventVerify, ip, err)
}

// LoggedOut records a logout acknowledgement
func (s *AuditService) LoggedOut(ctx context.Context, ip string) {
	s.record(ctx, models.LoginEventLogout, ip, nil)
}

func (s *AuditService) record(ctx context.Context, eventType, ip string, err error) {
	if s == nil {
		return
	}
	reason := models.FailureReason(err)

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     eventType,
		IPAddress:     ip,
		Success:       err == nil,
		FailureReason: reason,
	})

	if s.recorder == nil {
		return
	}

	event := &models.LoginEvent{
		ID:        uuid.New(),
		EventType: eventType,
		IPAddress: ip,
		Success:   err == nil,
		CreatedAt: s.now().UTC(),
	}
	if reason != "" {
		event.FailureReason = &reason
	}

	// Detach from the request so a client disconnect does not drop the record
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if perr := s.recorder.Record(persistCtx, event); perr != nil {
		s.logger.ErrorContext(ctx, "failed to persist login event",
			slog.String("event_type", eventType),
			slog.Any("error", perr))
	}
}
