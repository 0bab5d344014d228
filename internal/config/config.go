package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port            string `yaml:"port"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Log struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"log"`
	Database struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
		// PgxCatalog reads quizzes through a pgx pool instead of bun (postgres only).
		PgxCatalog bool `yaml:"pgx_catalog"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	Quiz struct {
		TTL        string `yaml:"ttl"`
		StartDelay string `yaml:"start_delay"`
	} `yaml:"quiz"`
	Scheduler struct {
		PollInterval string `yaml:"poll_interval"`
		MaxAttempts  int    `yaml:"max_attempts"`
		RetryBase    string `yaml:"retry_base"`
	} `yaml:"scheduler"`
	Notifier struct {
		Provider      string  `yaml:"provider"`
		RatePerSecond float64 `yaml:"rate_per_second"`
		Burst         int     `yaml:"burst"`
		MaxRetries    uint64  `yaml:"max_retries"`
		RetryBase     string  `yaml:"retry_base"`
		Timeout       string  `yaml:"timeout"`
		Twilio        struct {
			AccountSID string `yaml:"account_sid"`
			AuthToken  string `yaml:"auth_token"`
			From       string `yaml:"from"`
		} `yaml:"twilio"`
		Meta struct {
			Token         string `yaml:"token"`
			PhoneNumberID string `yaml:"phone_number_id"`
			APIVersion    string `yaml:"api_version"`
			BaseURL       string `yaml:"base_url"`
		} `yaml:"meta"`
	} `yaml:"notifier"`
	Webhooks struct {
		VerifyToken string `yaml:"verify_token"`
	} `yaml:"webhooks"`
	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		ServiceName string  `yaml:"service_name"`
		SampleRatio float64 `yaml:"sample_ratio"`
	} `yaml:"tracing"`
	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
}

// Load reads YAML config from path. A .env file next to the process is loaded first when
// present and ${VAR} references in the YAML are expanded from the environment.
func Load(path string) (Config, error) {
	cfg := Config{}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	return Parse(data)
}

// Parse decodes YAML after environment expansion and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Config{}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks names that select implementations.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case "", "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	switch c.Notifier.Provider {
	case "", "log", "twilio", "meta":
	default:
		return fmt.Errorf("notifier.provider must be log, twilio or meta, got %q", c.Notifier.Provider)
	}
	if c.Database.PgxCatalog && c.Database.Driver == "sqlite" {
		return errors.New("database.pgx_catalog requires the postgres driver")
	}
	return nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
