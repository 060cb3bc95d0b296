package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tripledger/tripledger/internal/models"
	pkglogger "github.com/tripledger/tripledger/pkg/logger"
)

// RateLimiter tracks verification failures per source IP
type RateLimiter interface {
	IsBanned(ip string) bool
	Reserve(ip string) (settle func(success bool) int, ok bool)
}

// CodeIssuer issues and validates one-time login codes
type CodeIssuer interface {
	Issue(identity string) (string, error)
	Validate(identity, submitted string) error
}

// SessionMinter mints signed session tokens
type SessionMinter interface {
	Mint(subject string) (string, *models.Session, error)
}

// FailureDelayer pads failed verifications
type FailureDelayer interface {
	Wait(ctx context.Context, success bool)
}

// LoginConfig holds the settings of the two-step login flow
type LoginConfig struct {
	AllowedEmail  string
	NotifyTimeout time.Duration
}

// LoginResult is returned by a successful verification
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LoginService drives the request-code / verify-code flow for the single
// allow-listed operator.
type LoginService struct {
	config   LoginConfig
	limiter  RateLimiter
	codes    CodeIssuer
	notifier Notifier
	sessions SessionMinter
	delay    FailureDelayer
	audit    *AuditService
	logger   *slog.Logger
}

// NewLoginService creates a new LoginService. delay may be nil.
func NewLoginService(
	config LoginConfig,
	limiter RateLimiter,
	codes CodeIssuer,
	notifier Notifier,
	sessions SessionMinter,
	delay FailureDelayer,
	audit *AuditService,
	logger *slog.Logger,
) *LoginService {
	config.AllowedEmail = strings.ToLower(strings.TrimSpace(config.AllowedEmail))
	return &LoginService{
		config:   config,
		limiter:  limiter,
		codes:    codes,
		notifier: notifier,
		sessions: sessions,
		delay:    delay,
		audit:    audit,
		logger:   logger,
	}
}

// RequestLogin issues a fresh code and dispatches it to the operator.
//
// A wrong email is rejected with ErrNotAllowed and does not count toward the
// IP's failure budget: only code guessing is throttled by the ban. Revealing
// whether the email matched is accepted since there is only one identity.
func (s *LoginService) RequestLogin(ctx context.Context, ip, email string) error {
	err := s.requestLogin(ctx, ip, email)
	s.audit.LoginRequested(ctx, ip, err)
	return err
}

func (s *LoginService) requestLogin(ctx context.Context, ip, email string) error {
	if s.limiter.IsBanned(ip) {
		return models.ErrRateLimited
	}

	if !strings.EqualFold(strings.TrimSpace(email), s.config.AllowedEmail) {
		s.logger.Info("login requested for non allow-listed email",
			slog.String("ip_address", ip),
			slog.String("email", pkglogger.SanitizedEmail(email)))
		return models.ErrNotAllowed
	}

	code, err := s.codes.Issue(models.OperatorSubject)
	if err != nil {
		return fmt.Errorf("failed to issue login code: %w", err)
	}

	if err := s.deliver(ctx, code); err != nil {
		s.logger.Error("failed to deliver login code",
			slog.String("ip_address", ip),
			slog.Any("error", err))
		return fmt.Errorf("%w: %w", models.ErrDeliveryFailed, err)
	}

	return nil
}

// deliver calls the notifier with a bounded timeout. A notifier that ignores
// its context is abandoned once the deadline passes.
func (s *LoginService) deliver(ctx context.Context, code string) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.NotifyTimeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.notifier.Send(ctx, code)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// VerifyLogin validates a submitted code and mints a session token.
// Every way a code can be wrong is reported as ErrInvalidCode.
func (s *LoginService) VerifyLogin(ctx context.Context, ip, code string) (*LoginResult, error) {
	result, err := s.verifyLogin(ctx, ip, code)
	s.audit.LoginVerified(ctx, ip, err)

	if isCodeFailure(err) {
		return nil, models.ErrInvalidCode
	}
	return result, err
}

func (s *LoginService) verifyLogin(ctx context.Context, ip, code string) (*LoginResult, error) {
	settle, ok := s.limiter.Reserve(ip)
	if !ok {
		return nil, models.ErrRateLimited
	}

	if err := s.codes.Validate(models.OperatorSubject, strings.TrimSpace(code)); err != nil {
		count := settle(false)
		s.logger.Warn("login code verification failed",
			slog.String("ip_address", ip),
			slog.String("reason", models.FailureReason(err)),
			slog.Int("failure_count", count))

		if s.delay != nil {
			s.delay.Wait(ctx, false)
		}
		return nil, err
	}

	settle(true)

	token, session, err := s.sessions.Mint(models.OperatorSubject)
	if err != nil {
		return nil, fmt.Errorf("failed to mint session: %w", err)
	}

	s.logger.Info("operator authenticated",
		slog.String("ip_address", ip),
		slog.Time("expires_at", session.ExpiresAt))

	return &LoginResult{Token: token, ExpiresAt: session.ExpiresAt}, nil
}

func isCodeFailure(err error) bool {
	return errors.Is(err, models.ErrNoActiveCode) ||
		errors.Is(err, models.ErrCodeExpired) ||
		errors.Is(err, models.ErrCodeMismatch)
}

// Logout acknowledges a client discarding its token. Sessions are stateless,
// so the only server-side effect is the audit record.
func (s *LoginService) Logout(ctx context.Context, ip string) {
	s.audit.LoggedOut(ctx, ip)
}
