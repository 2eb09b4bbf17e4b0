package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	CORS     CORSConfig
	Billing  BillingConfig
	Email    EmailConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	PoolMin  int
	PoolMax  int

	// Timeout bounds every individual store call.
	Timeout time.Duration
	// RetryAttempts is the number of tries for a store call that fails transiently.
	RetryAttempts int
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Origins []string
}

// BillingConfig holds monthly billing and overdue sweep settings.
type BillingConfig struct {
	BaseRatePerSqft float64
	SweepInterval   time.Duration
}

// EmailConfig holds outbound notification settings. An empty APIKey selects the
// log-only notifier.
type EmailConfig struct {
	APIKey   string
	From     string
	FromName string
}

// Enabled reports whether a real email provider is configured.
func (e EmailConfig) Enabled() bool {
	return e.APIKey != ""
}

// Load reads configuration from environment variables.
// It uses viper to read values and provides sensible defaults for development.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "covenant")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_POOL_MIN", 2)
	v.SetDefault("DB_POOL_MAX", 10)
	v.SetDefault("STORE_TIMEOUT", "5s")
	v.SetDefault("STORE_RETRY_ATTEMPTS", 3)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("BILLING_BASE_RATE", 0.05)
	v.SetDefault("SWEEP_INTERVAL", "1h")
	v.SetDefault("EMAIL_FROM", "noreply@covenant.local")
	v.SetDefault("EMAIL_FROM_NAME", "HOA Management")

	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port:     v.GetString("PORT"),
			Env:      v.GetString("ENV"),
			LogLevel: v.GetString("LOG_LEVEL"),
		},
		Database: DatabaseConfig{
			Host:          v.GetString("DB_HOST"),
			Port:          v.GetString("DB_PORT"),
			Name:          v.GetString("DB_NAME"),
			User:          v.GetString("DB_USER"),
			Password:      v.GetString("DB_PASSWORD"),
			PoolMin:       v.GetInt("DB_POOL_MIN"),
			PoolMax:       v.GetInt("DB_POOL_MAX"),
			Timeout:       v.GetDuration("STORE_TIMEOUT"),
			RetryAttempts: v.GetInt("STORE_RETRY_ATTEMPTS"),
		},
		CORS: CORSConfig{
			Origins: parseOrigins(v.GetString("CORS_ORIGINS")),
		},
		Billing: BillingConfig{
			BaseRatePerSqft: v.GetFloat64("BILLING_BASE_RATE"),
			SweepInterval:   v.GetDuration("SWEEP_INTERVAL"),
		},
		Email: EmailConfig{
			APIKey:   v.GetString("SENDGRID_API_KEY"),
			From:     v.GetString("EMAIL_FROM"),
			FromName: v.GetString("EMAIL_FROM_NAME"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Port == "" {
		return fmt.Errorf("DB_PORT is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Database.PoolMin < 0 {
		return fmt.Errorf("DB_POOL_MIN must be non-negative")
	}
	if c.Database.PoolMax < 1 {
		return fmt.Errorf("DB_POOL_MAX must be at least 1")
	}
	if c.Database.PoolMin > c.Database.PoolMax {
		return fmt.Errorf("DB_POOL_MIN must be less than or equal to DB_POOL_MAX")
	}
	if c.Database.Timeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive")
	}
	if c.Database.RetryAttempts < 1 {
		return fmt.Errorf("STORE_RETRY_ATTEMPTS must be at least 1")
	}

	if len(c.CORS.Origins) == 0 {
		return fmt.Errorf("CORS_ORIGINS is required")
	}

	if c.Billing.BaseRatePerSqft < 0 {
		return fmt.Errorf("BILLING_BASE_RATE must be non-negative")
	}
	if c.Billing.SweepInterval < time.Minute {
		return fmt.Errorf("SWEEP_INTERVAL must be at least 1m")
	}

	if c.Email.Enabled() && c.Email.From == "" {
		return fmt.Errorf("EMAIL_FROM is required when SENDGRID_API_KEY is set")
	}

	return nil
}

// parseOrigins splits a comma-separated string of origins into a slice.
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
