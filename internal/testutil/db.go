// Package testutil opens migrated SQLite databases for tests
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/garyjia/doc-lifecycle/migrations"
	"github.com/garyjia/doc-lifecycle/pkg/database"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// NewDB opens a fresh database in a temp dir with every migration applied
func NewDB(t testing.TB) *database.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "lifecycle.db"),
		MaxOpenConns: 4,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.NewMigrator(db, zap.NewNop()).RunMigrations(migrations.FS))
	return db
}
