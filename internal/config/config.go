package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// Notifier channel names accepted by NOTIFIER
const (
	NotifierLog      = "log"
	NotifierTelegram = "telegram"
	NotifierSES      = "ses"
)

const minSecretLength = 32

type Config struct {
	Server   ServerConfig
	Auth     AuthConfig
	Notifier NotifierConfig
	Database DatabaseConfig
}

type ServerConfig struct {
	Port           string        `env:"PORT" envDefault:"8080"`
	Env            string        `env:"ENV" envDefault:"development"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	TrustedProxies []string      `env:"TRUSTED_PROXIES" envSeparator:","`
	ReadTimeout    time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout   time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout    time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
}

type AuthConfig struct {
	AllowedEmail           string        `env:"ALLOWED_EMAIL,required,notEmpty"`
	SessionSecret          string        `env:"SESSION_SECRET,required,notEmpty"`
	CodeTTL                time.Duration `env:"CODE_TTL" envDefault:"5m"`
	SessionTTL             time.Duration `env:"SESSION_TTL" envDefault:"15m"`
	MaxFailedAttempts      int           `env:"MAX_FAILED_ATTEMPTS" envDefault:"5"`
	BanDuration            time.Duration `env:"BAN_DURATION" envDefault:"10m"`
	AttemptRetention       time.Duration `env:"ATTEMPT_RETENTION" envDefault:"30m"`
	CodeHashCost           int           `env:"CODE_HASH_COST" envDefault:"10"`
	NotifyTimeout          time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"10s"`
	LoginRequestsPerMinute int           `env:"LOGIN_REQUESTS_PER_MINUTE" envDefault:"10"`
	TimingDelayBaseMs      int           `env:"TIMING_DELAY_BASE_MS" envDefault:"0"`
	TimingDelayRandomMs    int           `env:"TIMING_DELAY_RANDOM_MS" envDefault:"0"`
	CleanupInterval        time.Duration `env:"CLEANUP_INTERVAL" envDefault:"1m"`
	CookieDomain           string        `env:"COOKIE_DOMAIN"`
}

type NotifierConfig struct {
	Channel          string `env:"NOTIFIER" envDefault:"log"`
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string `env:"TELEGRAM_CHAT_ID"`
	TelegramAPIURL   string `env:"TELEGRAM_API_URL" envDefault:"https://api.telegram.org"`
	AWSRegion        string `env:"AWS_REGION"`
	FromAddress      string `env:"EMAIL_FROM"`
}

// DatabaseConfig is optional. An empty URL disables the persisted audit trail.
type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL"`
	MaxConns        int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	MinConns        int32         `env:"DB_MIN_CONNS" envDefault:"1"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"5m"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"1m"`
	EventRetention  time.Duration `env:"EVENT_RETENTION" envDefault:"720h"`
}

// Enabled reports whether a database was configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// IsProduction reports whether the server runs in the production environment.
func (c *ServerConfig) IsProduction() bool {
	return c.Env == "production"
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.Auth.AllowedEmail = strings.ToLower(strings.TrimSpace(cfg.Auth.AllowedEmail))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

var validate = validator.New()

// Validate enforces the cross-field rules env tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Var(c.Auth.AllowedEmail, "required,email"); err != nil {
		return fmt.Errorf("ALLOWED_EMAIL must be a valid email address")
	}

	if err := validateSessionSecret(c.Auth.SessionSecret); err != nil {
		return err
	}

	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.Auth.CodeTTL <= 0 || c.Auth.CodeTTL > c.Auth.SessionTTL {
		return fmt.Errorf("CODE_TTL must be positive and not longer than SESSION_TTL (%s)", c.Auth.SessionTTL)
	}
	if c.Auth.MaxFailedAttempts < 1 {
		return fmt.Errorf("MAX_FAILED_ATTEMPTS must be at least 1")
	}
	if c.Auth.BanDuration <= 0 {
		return fmt.Errorf("BAN_DURATION must be positive")
	}
	if c.Auth.NotifyTimeout <= 0 {
		return fmt.Errorf("NOTIFY_TIMEOUT must be positive")
	}
	if c.Auth.CleanupInterval <= 0 {
		return fmt.Errorf("CLEANUP_INTERVAL must be positive")
	}
	if c.Auth.LoginRequestsPerMinute < 1 {
		return fmt.Errorf("LOGIN_REQUESTS_PER_MINUTE must be at least 1")
	}
	if c.Auth.CodeHashCost < bcrypt.MinCost || c.Auth.CodeHashCost > bcrypt.MaxCost {
		return fmt.Errorf("CODE_HASH_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	for _, cidr := range c.Server.TrustedProxies {
		if _, err := netip.ParsePrefix(strings.TrimSpace(cidr)); err != nil {
			return fmt.Errorf("TRUSTED_PROXIES contains invalid CIDR %q", cidr)
		}
	}

	return c.Notifier.validate()
}

func (n *NotifierConfig) validate() error {
	switch n.Channel {
	case NotifierLog:
		return nil
	case NotifierTelegram:
		if n.TelegramBotToken == "" || n.TelegramChatID == "" {
			return errors.New("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID are required for the telegram notifier")
		}
		return nil
	case NotifierSES:
		if n.AWSRegion == "" {
			return errors.New("AWS_REGION is required for the ses notifier")
		}
		if err := validate.Var(n.FromAddress, "required,email"); err != nil {
			return errors.New("EMAIL_FROM must be a valid email address for the ses notifier")
		}
		return nil
	default:
		return fmt.Errorf("NOTIFIER must be one of %s, %s, %s (got %q)", NotifierLog, NotifierTelegram, NotifierSES, n.Channel)
	}
}

// validateSessionSecret enforces minimum strength for the signing key
func validateSessionSecret(secret string) error {
	if len(secret) < minSecretLength {
		return fmt.Errorf("SESSION_SECRET must be at least %d bytes (got %d)", minSecretLength, len(secret))
	}

	// A long secret made of one repeated character is as weak as a short one
	if strings.Count(secret, secret[:1]) == len(secret) {
		return fmt.Errorf("SESSION_SECRET cannot be a single repeated character")
	}

	weakSecrets := []string{
		"secret", "password", "changeme", "default", "example",
		"your-secret-key-here-change-this-in-production",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("SESSION_SECRET cannot be a common weak value")
		}
	}

	return nil
}
