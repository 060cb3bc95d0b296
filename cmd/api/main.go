package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tripledger/tripledger/internal/auth"
	"github.com/tripledger/tripledger/internal/background"
	"github.com/tripledger/tripledger/internal/config"
	"github.com/tripledger/tripledger/internal/database"
	"github.com/tripledger/tripledger/internal/handlers"
	"github.com/tripledger/tripledger/internal/repositories"
	"github.com/tripledger/tripledger/internal/routes"
	"github.com/tripledger/tripledger/internal/services"
	pkghttp "github.com/tripledger/tripledger/pkg/http"
	pkglogger "github.com/tripledger/tripledger/pkg/logger"
)

func main() {
	bootLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		bootLogger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := pkglogger.New(os.Stdout, cfg.Server.LogLevel)
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("notifier", cfg.Notifier.Channel),
		slog.Bool("database", cfg.Database.Enabled()),
	)
	logger.Warn("login bans and pending codes are kept in memory and reset on restart")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional persisted audit trail
	var (
		db       *database.DB
		recorder services.LoginEventRecorder
		pruner   background.EventPruner
		health   routes.HealthChecker
	)
	if cfg.Database.Enabled() {
		db, err = database.NewConnection(ctx, &cfg.Database, logger)
		if err != nil {
			logger.Error("failed to connect to database", slog.Any("error", err))
			os.Exit(1)
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			logger.Error("failed to run migrations", slog.Any("error", err))
			os.Exit(1)
		}

		eventRepo := repositories.NewLoginEventRepository(db)
		recorder, pruner, health = eventRepo, eventRepo, db
	}

	notifier, err := newNotifier(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize notifier", slog.Any("error", err))
		os.Exit(1)
	}

	ipConfig, err := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)
	if err != nil {
		logger.Error("invalid trusted proxies", slog.Any("error", err))
		os.Exit(1)
	}

	// Login components
	rateLimitService := services.NewRateLimitService(services.RateLimitConfig{
		MaxFailedAttempts: cfg.Auth.MaxFailedAttempts,
		BanDuration:       cfg.Auth.BanDuration,
		Retention:         cfg.Auth.AttemptRetention,
	}, logger)

	codeStore := services.NewCodeStore(services.CodeStoreConfig{
		CodeTTL:  cfg.Auth.CodeTTL,
		HashCost: cfg.Auth.CodeHashCost,
	})

	tokenManager := auth.NewTokenManager(cfg.Auth.SessionSecret, cfg.Auth.SessionTTL, nil)

	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelay:   time.Duration(cfg.Auth.TimingDelayBaseMs) * time.Millisecond,
		RandomDelay: time.Duration(cfg.Auth.TimingDelayRandomMs) * time.Millisecond,
	})

	auditService := services.NewAuditService(recorder, pkglogger.NewAuditLogger(logger), logger)

	loginService := services.NewLoginService(
		services.LoginConfig{
			AllowedEmail:  cfg.Auth.AllowedEmail,
			NotifyTimeout: cfg.Auth.NotifyTimeout,
		},
		rateLimitService,
		codeStore,
		notifier,
		tokenManager,
		timingDelay,
		auditService,
		logger,
	)

	loginHandler := handlers.NewLoginHandler(loginService, ipConfig, auth.CookieConfig{
		Domain: cfg.Auth.CookieDomain,
		Secure: cfg.Server.IsProduction(),
	}, logger)

	router := routes.NewRouter(routes.Options{
		LoginHandler:           loginHandler,
		Sessions:               tokenManager,
		IPConfig:               ipConfig,
		Logger:                 logger,
		LoginRequestsPerMinute: cfg.Auth.LoginRequestsPerMinute,
		Production:             cfg.Server.IsProduction(),
		RequestTimeout:         cfg.Auth.NotifyTimeout + 5*time.Second,
		Database:               health,
	})

	cleanupManager := background.NewCleanupManager(codeStore, rateLimitService, pruner, background.CleanupConfig{
		Interval:       cfg.Auth.CleanupInterval,
		EventRetention: cfg.Database.EventRetention,
	}, logger)
	go cleanupManager.Start(ctx)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		logger.Error("server error", slog.Any("error", err))
	}

	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// newNotifier selects the delivery channel named by NOTIFIER
func newNotifier(ctx context.Context, cfg *config.Config, logger *slog.Logger) (services.Notifier, error) {
	switch cfg.Notifier.Channel {
	case config.NotifierTelegram:
		return services.NewTelegramNotifier(
			nil,
			cfg.Notifier.TelegramAPIURL,
			cfg.Notifier.TelegramBotToken,
			cfg.Notifier.TelegramChatID,
			cfg.Auth.CodeTTL,
			logger,
		), nil
	case config.NotifierSES:
		return services.NewAWSSESNotifier(ctx,
			cfg.Notifier.AWSRegion,
			cfg.Notifier.FromAddress,
			cfg.Auth.AllowedEmail,
			cfg.Auth.CodeTTL,
			logger,
		)
	case config.NotifierLog:
		if cfg.Server.IsProduction() {
			logger.Warn("log notifier in production: login codes are written to the log")
		}
		return services.NewLogNotifier(logger), nil
	default:
		return nil, fmt.Errorf("unknown notifier %q", cfg.Notifier.Channel)
	}
}
