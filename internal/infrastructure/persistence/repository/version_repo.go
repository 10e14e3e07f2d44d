package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/doc-lifecycle/internal/application/port"
	"github.com/garyjia/doc-lifecycle/internal/domain/entity"
	"github.com/garyjia/doc-lifecycle/internal/domain/workflow"
	"github.com/garyjia/doc-lifecycle/internal/infrastructure/persistence/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// QuoteVersionRepository implements port.QuoteVersionRepository.
// Status reads and writes go through the is_active flag.
type QuoteVersionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewQuoteVersionRepository creates a new quote version repository
func NewQuoteVersionRepository(db *sql.DB, logger *zap.Logger) port.QuoteVersionRepository {
	return &QuoteVersionRepository{
		db:     db,
		logger: logger,
	}
}

const versionColumns = `id, uid, quote_no, version_no, is_active, active_at, created_by, created_at`

// Create creates a new quote version
func (r *QuoteVersionRepository) Create(ctx context.Context, version *entity.QuoteVersion) error {
	query := `
		INSERT INTO quote_versions (
			uid, quote_no, version_no, is_active, active_at, created_by, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	if version.UID == uuid.Nil {
		version.UID = uuid.New()
	}
	stamp(&version.CreatedAt, nil)

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		version.UID.String(),
		version.QuoteNo,
		version.VersionNo,
		version.Active,
		nullableTime(version.ActiveAt),
		version.CreatedBy,
		version.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create quote version",
			zap.String("quote_no", version.QuoteNo),
			zap.Int("version_no", version.VersionNo),
			zap.Error(err))
		return storageError("create quote version", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return storageError("create quote version", err)
	}

	version.ID = id
	return nil
}

// GetByID retrieves a version by row ID
func (r *QuoteVersionRepository) GetByID(ctx context.Context, id int64) (*entity.QuoteVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM quote_versions WHERE id = ?`
	version, err := scanVersion(sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("quote version", id)
	}
	if err != nil {
		return nil, storageError("get quote version", err)
	}
	return version, nil
}

// GetByNumber retrieves a version by quote number and version number
func (r *QuoteVersionRepository) GetByNumber(ctx context.Context, quoteNo string, versionNo int) (*entity.QuoteVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM quote_versions WHERE quote_no = ? AND version_no = ?`
	version, err := scanVersion(sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, quoteNo, versionNo))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s v%d", workflow.ErrVersionNotFound, quoteNo, versionNo)
	}
	if err != nil {
		r.logger.Error("Failed to get quote version",
			zap.String("quote_no", quoteNo),
			zap.Int("version_no", versionNo),
			zap.Error(err))
		return nil, storageError("get quote version", err)
	}
	return version, nil
}

// ListActive returns the active versions of a quote number
func (r *QuoteVersionRepository) ListActive(ctx context.Context, quoteNo string) ([]*entity.QuoteVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM quote_versions WHERE quote_no = ? AND is_active = 1 ORDER BY version_no`
	return r.list(ctx, query, quoteNo)
}

// ListByQuoteNo returns every version of a quote number in version order
func (r *QuoteVersionRepository) ListByQuoteNo(ctx context.Context, quoteNo string) ([]*entity.QuoteVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM quote_versions WHERE quote_no = ? ORDER BY version_no`
	return r.list(ctx, query, quoteNo)
}

// SetActiveAt stamps the activation time
func (r *QuoteVersionRepository) SetActiveAt(ctx context.Context, id int64, at time.Time) error {
	query := `UPDATE quote_versions SET active_at = ? WHERE id = ?`
	return updateRow(ctx, r.db, "set version active_at", "quote version", id, query, at, id)
}

// GetStatus implements port.StatusStore
func (r *QuoteVersionRepository) GetStatus(ctx context.Context, id int64) (string, error) {
	var active bool
	err := sqlite.ExecutorFor(ctx, r.db).
		QueryRowContext(ctx, `SELECT is_active FROM quote_versions WHERE id = ?`, id).
		Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return "", notFound("quote version", id)
	}
	if err != nil {
		return "", storageError("get version status", err)
	}
	if active {
		return entity.VersionActive, nil
	}
	return entity.VersionInactive, nil
}

// UpdateStatus implements port.StatusStore
func (r *QuoteVersionRepository) UpdateStatus(ctx context.Context, id int64, from, to string) error {
	fromActive, err := activeFlag(from)
	if err != nil {
		return err
	}
	toActive, err := activeFlag(to)
	if err != nil {
		return err
	}

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx,
		`UPDATE quote_versions SET is_active = ? WHERE id = ? AND is_active = ?`,
		toActive, id, fromActive)
	if err != nil {
		r.logger.Error("Failed to update version status", zap.Int64("id", id), zap.Error(err))
		return storageError("update version status", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return storageError("update version status", err)
	}
	if n == 1 {
		return nil
	}

	current, err := r.GetStatus(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: quote version %d is %s, expected %s", workflow.ErrInvalidTransition, id, current, from)
}

func (r *QuoteVersionRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.QuoteVersion, error) {
	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageError("list quote versions", err)
	}
	defer rows.Close()

	versions := []*entity.QuoteVersion{}
	for rows.Next() {
		version, err := scanVersion(rows)
		if err != nil {
			return nil, storageError("scan quote version", err)
		}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("list quote versions", err)
	}
	return versions, nil
}

func activeFlag(status string) (bool, error) {
	switch status {
	case entity.VersionActive:
		return true, nil
	case entity.VersionInactive:
		return false, nil
	}
	return false, fmt.Errorf("%w: %q is not a version status", workflow.ErrInvalidState, status)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVersion(row rowScanner) (*entity.QuoteVersion, error) {
	var version entity.QuoteVersion
	var uid string
	var activeAt sql.NullTime

	err := row.Scan(
		&version.ID,
		&uid,
		&version.QuoteNo,
		&version.VersionNo,
		&version.Active,
		&activeAt,
		&version.CreatedBy,
		&version.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(uid)
	if err != nil {
		return nil, fmt.Errorf("invalid version uid %q: %w", uid, err)
	}
	version.UID = parsed
	version.ActiveAt = timePtr(activeAt)
	return &version, nil
}

// Verify interface compliance
var _ port.QuoteVersionRepository = (*QuoteVersionRepository)(nil)
