package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	Env         string `env:"APP_ENV" envDefault:"development"`
	Port        string `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`

	// Independent signing secrets: compromise of one key must not allow
	// forging the other token type.
	AccessSecret  string `env:"ACCESS_TOKEN_SECRET"`
	RefreshSecret string `env:"REFRESH_TOKEN_SECRET"`

	AccessTokenTTLRaw  string `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTLRaw string `env:"REFRESH_TOKEN_TTL" envDefault:"30d"`
	OtpTTLMinutes      int    `env:"OTP_TTL_MINUTES" envDefault:"5"`

	// RevocationFailClosed makes the access-token revocation check treat a
	// store error as "revoked". Default mirrors the availability-first
	// behavior of the original service.
	RevocationFailClosed bool `env:"REVOCATION_FAIL_CLOSED" envDefault:"false"`

	OpTimeoutRaw      string `env:"OP_TIMEOUT" envDefault:"5s"`
	SweepIntervalRaw  string `env:"SWEEP_INTERVAL" envDefault:"10m"`
	RedisAddr         string `env:"REDIS_ADDR"`
	RedisPassword     string `env:"REDIS_PASSWORD"`
	RateLimitRequests int64  `env:"RATE_LIMIT_REQUESTS" envDefault:"10"`
	RateLimitPeriod   string `env:"RATE_LIMIT_PERIOD" envDefault:"10m"`

	AccessTokenTTL          time.Duration `env:"-"`
	RefreshTokenTTL         time.Duration `env:"-"`
	OpTimeout               time.Duration `env:"-"`
	SweepInterval           time.Duration `env:"-"`
	RateLimitPeriodDuration time.Duration `env:"-"`
}

// Production reports whether the service runs with production hardening
// (no plaintext OTP or raw refresh token echoed in response bodies).
func (c *Config) Production() bool {
	return c.Env == "production"
}

// OtpTTL returns the passcode lifetime.
func (c *Config) OtpTTL() time.Duration {
	return time.Duration(c.OtpTTLMinutes) * time.Minute
}

// Load reads configuration from .env (if present) and the environment.
func Load() (*Config, error) {
	// Env vars take precedence; .env is a development convenience.
	_ = godotenv.Load(".env")

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if len(cfg.AccessSecret) < 32 {
		return nil, fmt.Errorf("ACCESS_TOKEN_SECRET is required and must be at least 32 bytes")
	}
	if len(cfg.RefreshSecret) < 32 {
		return nil, fmt.Errorf("REFRESH_TOKEN_SECRET is required and must be at least 32 bytes")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, fmt.Errorf("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
	}
	if cfg.OtpTTLMinutes <= 0 {
		return nil, fmt.Errorf("OTP_TTL_MINUTES must be positive")
	}

	var err error
	if cfg.AccessTokenTTL, err = ParseTTL(cfg.AccessTokenTTLRaw); err != nil {
		return nil, fmt.Errorf("ACCESS_TOKEN_TTL: %w", err)
	}
	if cfg.RefreshTokenTTL, err = ParseTTL(cfg.RefreshTokenTTLRaw); err != nil {
		return nil, fmt.Errorf("REFRESH_TOKEN_TTL: %w", err)
	}
	if cfg.OpTimeout, err = ParseTTL(cfg.OpTimeoutRaw); err != nil {
		return nil, fmt.Errorf("OP_TIMEOUT: %w", err)
	}
	if cfg.SweepInterval, err = ParseTTL(cfg.SweepIntervalRaw); err != nil {
		return nil, fmt.Errorf("SWEEP_INTERVAL: %w", err)
	}
	if cfg.RateLimitPeriodDuration, err = ParseTTL(cfg.RateLimitPeriod); err != nil {
		return nil, fmt.Errorf("RATE_LIMIT_PERIOD: %w", err)
	}

	return cfg, nil
}

// ParseTTL parses a lifetime expression. It accepts everything
// time.ParseDuration accepts plus day-suffixed integers ("30d").
// Malformed input is an error; there is deliberately no silent default.
func ParseTTL(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return 0, fmt.Errorf("invalid day duration %q", s)
		}
		if days <= 0 {
			return 0, fmt.Errorf("non-positive day duration %q", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	if d <= 0 {
		return 0, fmt.Errorf("non-positive duration %q", s)
	}
	return d, nil
}
