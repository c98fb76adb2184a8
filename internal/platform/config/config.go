// Package config loads application configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	Port        string `env:"PORT" default:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`

	// SlackSigningSecret authenticates inbound webhooks (v0 signatures).
	// VerificationToken is the legacy request token; checked only when set.
	SlackSigningSecret string `env:"SLACK_SIGNING_SECRET"`
	VerificationToken  string `env:"VERIFICATION_TOKEN"`

	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	// KarmaRateLimit is gifts per gifter per hour; 0 disables the limit.
	KarmaRateLimit int `env:"KARMA_RATE_LIMIT" default:"60"`
	// KarmaTTLDays is how long a transaction counts toward totals.
	KarmaTTLDays int `env:"KARMA_TTL_DAYS" default:"90"`

	MaxConcurrentEvents int64         `env:"MAX_CONCURRENT_EVENTS" default:"64"`
	BotTokenTTL         time.Duration `env:"BOT_TOKEN_TTL" default:"15m"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	required := map[string]string{
		"DATABASE_URL":         cfg.DatabaseURL,
		"SLACK_SIGNING_SECRET": cfg.SlackSigningSecret,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	if len(cfg.SlackSigningSecret) < 10 || len(cfg.SlackSigningSecret) > 100 {
		return errors.New("SLACK_SIGNING_SECRET must be between 10 and 100 characters")
	}

	if cfg.KarmaRateLimit < 0 {
		return errors.New("KARMA_RATE_LIMIT must not be negative")
	}
	if cfg.KarmaTTLDays < 1 {
		return errors.New("KARMA_TTL_DAYS must be at least 1")
	}
	if cfg.MaxConcurrentEvents < 1 {
		return errors.New("MAX_CONCURRENT_EVENTS must be at least 1")
	}

	if strings.EqualFold(cfg.AppEnv, "production") {
		mode := databaseSSLMode(cfg.DatabaseURL)
		if mode == "disable" || mode == "allow" {
			return fmt.Errorf("DATABASE_URL uses sslmode=%s which is not allowed in production", mode)
		}
	}

	return nil
}

func databaseSSLMode(databaseURL string) string {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Query().Get("sslmode"))
}

// KarmaTTL converts the configured day count to a duration.
func (c *Config) KarmaTTL() time.Duration {
	return time.Duration(c.KarmaTTLDays) * 24 * time.Hour
}
