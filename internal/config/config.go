// Package config loads process configuration. A YAML file provides the
// base, environment variables override it, and sensitive values fall back
// to container secret files when neither is set.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultSecretsDir is where container runtimes mount secret files.
const DefaultSecretsDir = "/run/secrets"

type Config struct {
	Server struct {
		Port           int    `yaml:"port"`
		FrontendURL    string `yaml:"frontend_url"`
		APITokenSecret string `yaml:"api_token_secret"`
	} `yaml:"server"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Database struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`

	Email struct {
		SMTPHost     string `yaml:"smtp_host"`
		SMTPPort     int    `yaml:"smtp_port"`
		SMTPUser     string `yaml:"smtp_user"`
		SMTPPassword string `yaml:"smtp_password"`
		From         string `yaml:"from"`
	} `yaml:"email"`

	Auth struct {
		MaxSessions int `yaml:"max_sessions"`
	} `yaml:"auth"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"metrics"`

	// SecretsDir is where sensitive values are read from when unset.
	// Overridable for tests.
	SecretsDir string `yaml:"-"`
}

func defaults() *Config {
	cfg := &Config{SecretsDir: DefaultSecretsDir}
	cfg.Server.Port = 8080
	cfg.Server.FrontendURL = "http://localhost:5173"
	cfg.Redis.Addr = "localhost:6379"
	cfg.Email.SMTPPort = 587
	cfg.Auth.MaxSessions = 2
	cfg.Metrics.Enabled = true
	return cfg
}

// Load builds the configuration. path may be empty; a missing file is not
// an error, defaults plus environment are enough to run.
func Load(path string, logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			logger.Info("config file absent, using defaults", "path", path)
		case err != nil:
			return nil, fmt.Errorf("reading config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	cfg.applyEnv(logger)
	cfg.applySecrets(logger)

	if cfg.Auth.MaxSessions < 1 {
		return nil, fmt.Errorf("max_sessions must be >= 1, got %d", cfg.Auth.MaxSessions)
	}
	return cfg, nil
}

func (c *Config) applyEnv(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	envString("FRONTEND_URL", &c.Server.FrontendURL)
	envString("REDIS_ADDR", &c.Redis.Addr)
	envString("REDIS_PASSWORD", &c.Redis.Password)
	envString("DATABASE_URL", &c.Database.DSN)
	envString("SMTP_HOST", &c.Email.SMTPHost)
	envString("SMTP_USER", &c.Email.SMTPUser)
	envString("SMTP_PASSWORD", &c.Email.SMTPPassword)
	envString("FROM_EMAIL", &c.Email.From)
	envString("API_TOKEN_SECRET", &c.Server.APITokenSecret)

	if err := envInt("PORT", &c.Server.Port); err != nil {
		logger.Warn("invalid PORT, keeping previous value", "error", err)
	}
	if err := envInt("SMTP_PORT", &c.Email.SMTPPort); err != nil {
		logger.Warn("invalid SMTP_PORT, keeping previous value", "error", err)
	}
	if err := envInt("MAX_SESSIONS", &c.Auth.MaxSessions); err != nil {
		logger.Warn("invalid MAX_SESSIONS, keeping previous value", "error", err)
	}
}

// applySecrets fills still-empty sensitive fields from secret files.
func (c *Config) applySecrets(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	secrets := []struct {
		name string
		dst  *string
	}{
		{"SMTP_PASSWORD", &c.Email.SMTPPassword},
		{"FROM_EMAIL", &c.Email.From},
		{"API_TOKEN_SECRET", &c.Server.APITokenSecret},
	}
	for _, s := range secrets {
		if *s.dst != "" {
			continue
		}
		value, err := readSecret(c.SecretsDir, s.name)
		if err != nil {
			logger.Info("secret not available", "name", s.name)
			continue
		}
		*s.dst = value
	}
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s=%q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func readSecret(dir, name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
