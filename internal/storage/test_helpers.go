package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/creator-analytics/internal/config"
)

// testContext creates a context with timeout for tests
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// testPostgresConfig points at a local development database.
// POSTGRES_TEST_HOST redirects it, e.g. to a CI service container.
func testPostgresConfig() *config.PostgresConfig {
	host := os.Getenv("POSTGRES_TEST_HOST")
	if host == "" {
		host = "localhost"
	}
	return &config.PostgresConfig{
		Enabled:        true,
		Host:           host,
		Port:           "5432",
		Database:       "creator_analytics",
		User:           "analytics",
		Password:       "analytics_dev_password",
		MaxConnections: 4,
	}
}

// openTestPostgres connects and migrates the test database, skipping the
// test when no database is reachable.
func openTestPostgres(t *testing.T) *PostgresDB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg := testPostgresConfig()
	db, err := NewPostgresDB(cfg)
	if err != nil {
		t.Skipf("Skipping test - Postgres not available: %v", err)
	}
	t.Cleanup(db.Close)

	if err := RunMigrations(PostgresURL(cfg)); err != nil {
		t.Fatalf("migrations failed: %v", err)
	}
	return db
}
