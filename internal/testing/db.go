// Package testing provides testing utilities and helpers shared across packages.
package testing

import (
	"path/filepath"
	"testing"

	"github.com/aristath/allocator/internal/database"
)

// NewTestDB creates a file-backed SQLite database in a temporary directory and applies
// schema when it is non-empty. The database is closed when the test finishes.
// A file is used instead of ":memory:" so every pooled connection sees the same data.
func NewTestDB(t *testing.T, name string, schema string) *database.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: database.ProfileStandard,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
	})

	if schema != "" {
		if err := db.Migrate(schema); err != nil {
			t.Fatalf("Failed to migrate test database %s: %v", name, err)
		}
	}

	return db
}
