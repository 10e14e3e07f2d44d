package database

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// ErrChecksumMismatch is returned when an applied migration file was edited
// after it ran
var ErrChecksumMismatch = errors.New("migration checksum mismatch")

// Migration is one numbered schema file
type Migration struct {
	Version  int
	Name     string
	Checksum string
	SQL      string
}

// Migrator applies the numbered .sql files of an fs.FS (normally the
// embedded migrations package) and tracks them in schema_migrations
type Migrator struct {
	db     *DB
	logger *zap.Logger
}

// NewMigrator creates a new migrator
func NewMigrator(db *DB, logger *zap.Logger) *Migrator {
	return &Migrator{db: db, logger: logger}
}

const migrationsTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		checksum TEXT NOT NULL,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
`

// applied maps version to the recorded checksum
func (m *Migrator) applied() (map[int]string, error) {
	rows, err := m.db.Query("SELECT version, checksum FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int]string)
	for rows.Next() {
		var (
			version  int
			checksum string
		)
		if err := rows.Scan(&version, &checksum); err != nil {
			return nil, err
		}
		out[version] = checksum
	}
	return out, rows.Err()
}

// RunMigrations applies every pending migration in fsys in version order.
// An already applied file whose content changed fails the run before
// anything new is applied.
func (m *Migrator) RunMigrations(fsys fs.FS) error {
	if _, err := m.db.Exec(migrationsTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	all, err := loadMigrations(fsys)
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	applied, err := m.applied()
	if err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}

	var pending []Migration
	for _, mig := range all {
		sum, ok := applied[mig.Version]
		if !ok {
			pending = append(pending, mig)
			continue
		}
		if sum != mig.Checksum {
			return fmt.Errorf("%w: %03d_%s", ErrChecksumMismatch, mig.Version, mig.Name)
		}
	}

	if len(pending) == 0 {
		m.logger.Debug("Schema up to date", zap.Int("applied", len(applied)))
		return nil
	}

	for _, mig := range pending {
		m.logger.Info("Applying migration", zap.Int("version", mig.Version), zap.String("name", mig.Name))
		if err := m.apply(mig); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", mig.Version, err)
		}
	}
	m.logger.Info("Database migrations completed", zap.Int("applied", len(pending)))
	return nil
}

// loadMigrations reads the top-level NNN_name.sql files of fsys. go:embed
// patterns do not recurse, so subdirectories are ignored here as well.
func loadMigrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}

	var out []Migration
	seen := make(map[int]string)
	for _, entry := range entries {
		filename := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(filename, ".sql") {
			continue
		}

		prefix, rest, ok := strings.Cut(strings.TrimSuffix(filename, ".sql"), "_")
		version, err := strconv.Atoi(prefix)
		if !ok || err != nil || version <= 0 || rest == "" {
			return nil, fmt.Errorf("invalid migration filename %q, want NNN_name.sql", filename)
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("duplicate migration version %d: %s and %s", version, prev, filename)
		}
		seen[version] = filename

		content, err := fs.ReadFile(fsys, filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", filename, err)
		}
		sum := sha256.Sum256(content)

		out = append(out, Migration{
			Version:  version,
			Name:     rest,
			Checksum: hex.EncodeToString(sum[:]),
			SQL:      string(content),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (m *Migrator) apply(mig Migration) error {
	return m.db.WithTransaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(mig.SQL); err != nil {
			return fmt.Errorf("failed to execute migration SQL: %w", err)
		}
		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, name, checksum) VALUES (?, ?, ?)",
			mig.Version, mig.Name, mig.Checksum,
		); err != nil {
			return fmt.Errorf("failed to record migration: %w", err)
		}
		return nil
	})
}
