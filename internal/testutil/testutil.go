// Package testutil provides testing utilities for integration tests.
package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/showkeeper/showkeeper/internal/database"
)

// TestDB wraps a migrated test database.
type TestDB struct {
	DB     *database.DB
	Conn   *sql.DB
	Logger zerolog.Logger
}

// NewTestDB creates a test database in a temp directory, runs
// migrations, and returns a ready-to-use handle. Cleanup is registered
// on the test.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	logger := NewTestLogger(t)

	db, err := database.New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return &TestDB{
		DB:     db,
		Conn:   db.Conn(),
		Logger: logger,
	}
}

// NewTestLogger creates a test logger that outputs to t.Log.
func NewTestLogger(t *testing.T) zerolog.Logger {
	t.Helper()
	return zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
}
