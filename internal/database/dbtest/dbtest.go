// Package dbtest opens the integration test database.
package dbtest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stwalsh4118/covenant/internal/config"
	"github.com/stwalsh4118/covenant/internal/database"
)

// Config returns database configuration for integration tests, read from the
// DB_* environment variables.
func Config() config.DatabaseConfig {
	return config.DatabaseConfig{
		Host:          getEnvOrDefault("DB_HOST", "localhost"),
		Port:          getEnvOrDefault("DB_PORT", "5432"),
		Name:          getEnvOrDefault("DB_NAME", "covenant_test"),
		User:          getEnvOrDefault("DB_USER", "postgres"),
		Password:      getEnvOrDefault("DB_PASSWORD", "postgres"),
		PoolMin:       1,
		PoolMax:       10,
		Timeout:       5 * time.Second,
		RetryAttempts: 3,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Open connects, migrates and empties the test database. The test is skipped
// in short mode or when no database is reachable.
func Open(t *testing.T) *database.Database {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.NewPostgresPool(ctx, Config())
	if err != nil {
		t.Skipf("Skipping integration test, database unavailable: %v", err)
	}
	t.Cleanup(db.Close)

	if _, err := db.Migrate(ctx); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	if _, err := db.Pool.Exec(ctx, `TRUNCATE monthly_bills, violations, properties`); err != nil {
		t.Fatalf("Failed to truncate test database: %v", err)
	}

	return db
}
