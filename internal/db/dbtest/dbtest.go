package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/AdamBeresnev/op-tournament/internal/db"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// SetupTestDB creates a migrated SQLite database in a temp dir and closes it
// when the test ends.
func SetupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := db.InitDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err, "Failed to connect to test DB")

	require.NoError(t, db.RunMigrations(database), "Failed to apply migrations")

	t.Cleanup(func() { database.Close() })
	return database
}
