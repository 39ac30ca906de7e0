package config

import (
	"errors"

	"github.com/caarlos0/env/v6"
)

// Config is populated from the environment once at process start and passed
// by reference; no package reads the environment after that.
type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	Environment string `env:"APP_ENV" envDefault:"local"`

	DatabaseURL string `env:"DATABASE_URL"`

	Google struct {
		ClientID     string `env:"GOOGLE_CLIENT_ID"`
		ClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
		RefreshToken string `env:"GOOGLE_REFRESH_TOKEN"`
		CalendarID   string `env:"GOOGLE_CALENDAR_ID" envDefault:"primary"`
	}

	Auth struct {
		JWTSecret    string   `env:"JWT_HMAC_SECRET"`
		StaticTokens []string `env:"STATIC_TOKENS" envSeparator:","`
	}

	AMQP struct {
		Enabled bool   `env:"AMQP_ENABLED"`
		URL     string `env:"AMQP_URL"`
	}

	Cache struct {
		ScheduleSize int `env:"CACHE_SCHEDULE_SIZE" envDefault:"1024"`
	}
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL required")
	}
	if cfg.Auth.JWTSecret == "" && len(cfg.Auth.StaticTokens) == 0 {
		return nil, errors.New("JWT_HMAC_SECRET or STATIC_TOKENS required")
	}
	if cfg.AMQP.Enabled && cfg.AMQP.URL == "" {
		return nil, errors.New("AMQP_URL required when AMQP_ENABLED")
	}
	return cfg, nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// IsLocal reports whether the service runs in the local environment.
func (c *Config) IsLocal() bool {
	return c.Environment == "local"
}
