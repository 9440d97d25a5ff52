// Package testutil provides shared fixtures for SpendWise tests: an
// in-memory database, realistic fake records and a fake API backend.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/spendwise/internal/storage"
)

// SetupTestDB creates a migrated in-memory database that is closed when the test ends.
func SetupTestDB(t *testing.T) *storage.SQLiteStorage {
	t.Helper()

	db, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}
