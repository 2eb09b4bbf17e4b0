package config

import (
	"os"
	"testing"
	"time"
)

var configEnvVars = []string{
	"PORT", "ENV", "LOG_LEVEL",
	"DB_HOST", "DB_PORT", "DB_NAME", "DB_USER", "DB_PASSWORD", "DB_POOL_MIN", "DB_POOL_MAX",
	"STORE_TIMEOUT", "STORE_RETRY_ATTEMPTS",
	"CORS_ORIGINS",
	"BILLING_BASE_RATE", "SWEEP_INTERVAL",
	"SENDGRID_API_KEY", "EMAIL_FROM", "EMAIL_FROM_NAME",
}

// clearConfigEnvVars unsets every variable Load reads for the duration of the test.
func clearConfigEnvVars(t *testing.T) {
	t.Helper()
	for _, key := range configEnvVars {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080", Env: "development"},
		Database: DatabaseConfig{
			Host: "localhost", Port: "5432", Name: "covenant",
			User: "postgres", Password: "postgres", PoolMin: 2, PoolMax: 10,
			Timeout: 5 * time.Second, RetryAttempts: 3,
		},
		CORS:    CORSConfig{Origins: []string{"http://localhost:3000"}},
		Billing: BillingConfig{BaseRatePerSqft: 0.05, SweepInterval: time.Hour},
		Email:   EmailConfig{From: "noreply@covenant.local"},
	}
}

func TestLoad_WithDefaults(t *testing.T) {
	clearConfigEnvVars(t)
	t.Setenv("DB_PASSWORD", "testpass")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.Env != "development" {
		t.Errorf("Expected env development, got %s", cfg.Server.Env)
	}
	if cfg.Database.Name != "covenant" {
		t.Errorf("Expected db name covenant, got %s", cfg.Database.Name)
	}
	if cfg.Database.Timeout != 5*time.Second {
		t.Errorf("Expected store timeout 5s, got %s", cfg.Database.Timeout)
	}
	if cfg.Database.RetryAttempts != 3 {
		t.Errorf("Expected 3 retry attempts, got %d", cfg.Database.RetryAttempts)
	}
	if cfg.Billing.BaseRatePerSqft != 0.05 {
		t.Errorf("Expected base rate 0.05, got %f", cfg.Billing.BaseRatePerSqft)
	}
	if cfg.Billing.SweepInterval != time.Hour {
		t.Errorf("Expected sweep interval 1h, got %s", cfg.Billing.SweepInterval)
	}
	if cfg.Email.Enabled() {
		t.Error("Expected email to be disabled without an API key")
	}
	if len(cfg.CORS.Origins) != 2 {
		t.Errorf("Expected 2 CORS origins, got %d", len(cfg.CORS.Origins))
	}
}

func TestLoad_WithEnvironmentVariables(t *testing.T) {
	clearConfigEnvVars(t)
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PASSWORD", "testpass")
	t.Setenv("DB_POOL_MIN", "5")
	t.Setenv("DB_POOL_MAX", "20")
	t.Setenv("STORE_TIMEOUT", "2s")
	t.Setenv("STORE_RETRY_ATTEMPTS", "5")
	t.Setenv("CORS_ORIGINS", "http://example.com,https://app.example.com")
	t.Setenv("BILLING_BASE_RATE", "0.07")
	t.Setenv("SWEEP_INTERVAL", "15m")
	t.Setenv("SENDGRID_API_KEY", "SG.key")
	t.Setenv("EMAIL_FROM", "board@example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Database.Host != "db" {
		t.Errorf("Expected host db, got %s", cfg.Database.Host)
	}
	if cfg.Database.PoolMax != 20 {
		t.Errorf("Expected pool max 20, got %d", cfg.Database.PoolMax)
	}
	if cfg.Database.Timeout != 2*time.Second {
		t.Errorf("Expected store timeout 2s, got %s", cfg.Database.Timeout)
	}
	if cfg.Database.RetryAttempts != 5 {
		t.Errorf("Expected 5 retry attempts, got %d", cfg.Database.RetryAttempts)
	}
	if cfg.Billing.BaseRatePerSqft != 0.07 {
		t.Errorf("Expected base rate 0.07, got %f", cfg.Billing.BaseRatePerSqft)
	}
	if cfg.Billing.SweepInterval != 15*time.Minute {
		t.Errorf("Expected sweep interval 15m, got %s", cfg.Billing.SweepInterval)
	}
	if !cfg.Email.Enabled() || cfg.Email.From != "board@example.com" {
		t.Errorf("Expected email enabled from board@example.com, got %+v", cfg.Email)
	}
	if cfg.CORS.Origins[0] != "http://example.com" {
		t.Errorf("Expected first origin http://example.com, got %s", cfg.CORS.Origins[0])
	}
}

func TestLoad_MissingPassword(t *testing.T) {
	clearConfigEnvVars(t)

	_, err := Load()
	if err == nil {
		t.Error("Expected error when DB_PASSWORD is missing")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}, wantErr: false},
		{name: "missing port", mutate: func(c *Config) { c.Server.Port = "" }, wantErr: true},
		{name: "missing db host", mutate: func(c *Config) { c.Database.Host = "" }, wantErr: true},
		{name: "missing db password", mutate: func(c *Config) { c.Database.Password = "" }, wantErr: true},
		{name: "negative pool min", mutate: func(c *Config) { c.Database.PoolMin = -1 }, wantErr: true},
		{name: "zero pool max", mutate: func(c *Config) { c.Database.PoolMin, c.Database.PoolMax = 0, 0 }, wantErr: true},
		{name: "pool min greater than max", mutate: func(c *Config) { c.Database.PoolMin = 15 }, wantErr: true},
		{name: "zero store timeout", mutate: func(c *Config) { c.Database.Timeout = 0 }, wantErr: true},
		{name: "zero retry attempts", mutate: func(c *Config) { c.Database.RetryAttempts = 0 }, wantErr: true},
		{name: "missing CORS origins", mutate: func(c *Config) { c.CORS.Origins = []string{} }, wantErr: true},
		{name: "negative base rate", mutate: func(c *Config) { c.Billing.BaseRatePerSqft = -0.01 }, wantErr: true},
		{name: "sweep interval too short", mutate: func(c *Config) { c.Billing.SweepInterval = time.Second }, wantErr: true},
		{
			name: "email key without sender",
			mutate: func(c *Config) {
				c.Email.APIKey = "SG.key"
				c.Email.From = ""
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseOrigins(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect []string
	}{
		{name: "single origin", input: "http://localhost:3000", expect: []string{"http://localhost:3000"}},
		{
			name:   "origins with spaces",
			input:  " http://localhost:3000 , http://localhost:5173 ",
			expect: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		{name: "empty string", input: "", expect: []string{}},
		{name: "only commas", input: ",,,", expect: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseOrigins(tt.input)
			if len(result) != len(tt.expect) {
				t.Errorf("Expected %d origins, got %d", len(tt.expect), len(result))
				return
			}
			for i, origin := range result {
				if origin != tt.expect[i] {
					t.Errorf("Expected origin %s at index %d, got %s", tt.expect[i], i, origin)
				}
			}
		})
	}
}
