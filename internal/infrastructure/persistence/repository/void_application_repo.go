package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/garyjia/doc-lifecycle/internal/application/port"
	"github.com/garyjia/doc-lifecycle/internal/domain/entity"
	"github.com/garyjia/doc-lifecycle/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// VoidApplicationRepository implements port.VoidApplicationRepository
type VoidApplicationRepository struct {
	statusColumn
	db     *sql.DB
	logger *zap.Logger
}

// NewVoidApplicationRepository creates a new void application repository
func NewVoidApplicationRepository(db *sql.DB, logger *zap.Logger) port.VoidApplicationRepository {
	return &VoidApplicationRepository{
		statusColumn: statusColumn{db: db, table: "void_applications", column: "status", kind: "void application"},
		db:           db,
		logger:       logger,
	}
}

// Create creates a new void application
func (r *VoidApplicationRepository) Create(ctx context.Context, app *entity.VoidApplication) error {
	query := `
		INSERT INTO void_applications (
			quote_id, applicant_id, reason, attachments, status,
			auditor_id, audit_note, direct, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	attachments, err := encodeList(app.Attachments)
	if err != nil {
		return err
	}
	stamp(&app.CreatedAt, &app.UpdatedAt)

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		app.QuoteID,
		app.ApplicantID,
		app.Reason,
		attachments,
		app.Status,
		nullableInt64(app.AuditorID),
		app.AuditNote,
		app.Direct,
		app.CreatedAt,
		app.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create void application", zap.Int64("quote_id", app.QuoteID), zap.Error(err))
		return storageError("create void application", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return storageError("create void application", err)
	}

	app.ID = id
	return nil
}

// GetByID retrieves a void application by ID
func (r *VoidApplicationRepository) GetByID(ctx context.Context, id int64) (*entity.VoidApplication, error) {
	query := `
		SELECT id, quote_id, applicant_id, reason, attachments, status,
			auditor_id, audit_note, direct, created_at, updated_at
		FROM void_applications
		WHERE id = ?
	`

	var app entity.VoidApplication
	var attachments string
	var auditorID sql.NullInt64

	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&app.ID,
		&app.QuoteID,
		&app.ApplicantID,
		&app.Reason,
		&attachments,
		&app.Status,
		&auditorID,
		&app.AuditNote,
		&app.Direct,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("void application", id)
	}
	if err != nil {
		r.logger.Error("Failed to get void application", zap.Int64("id", id), zap.Error(err))
		return nil, storageError("get void application", err)
	}

	if app.Attachments, err = decodeList(attachments); err != nil {
		return nil, err
	}
	app.AuditorID = int64Ptr(auditorID)
	return &app, nil
}

// SetAudit records the auditor's decision note
func (r *VoidApplicationRepository) SetAudit(ctx context.Context, id int64, auditorID int64, note string) error {
	query := `UPDATE void_applications SET auditor_id = ?, audit_note = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	return updateRow(ctx, r.db, "set void audit", "void application", id, query, auditorID, note, id)
}

// Verify interface compliance
var _ port.VoidApplicationRepository = (*VoidApplicationRepository)(nil)
