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

// CorrectionRepository implements port.CorrectionRepository
type CorrectionRepository struct {
	statusColumn
	db     *sql.DB
	logger *zap.Logger
}

// NewCorrectionRepository creates a new correction repository
func NewCorrectionRepository(db *sql.DB, logger *zap.Logger) port.CorrectionRepository {
	return &CorrectionRepository{
		statusColumn: statusColumn{db: db, table: "corrections", column: "status", kind: "correction"},
		db:           db,
		logger:       logger,
	}
}

// Create creates a new correction
func (r *CorrectionRepository) Create(ctx context.Context, c *entity.Correction) error {
	query := `
		INSERT INTO corrections (
			correction_no, target_type, target_id, reason, changes, occurred_date,
			attachments, status, new_record_id, created_by, approved_by,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	attachments, err := encodeList(c.Attachments)
	if err != nil {
		return err
	}
	if c.Changes == "" {
		c.Changes = "{}"
	}
	stamp(&c.CreatedAt, &c.UpdatedAt)

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		c.CorrectionNo,
		c.TargetType,
		c.TargetID,
		c.Reason,
		c.Changes,
		nullableTime(c.OccurredDate),
		attachments,
		c.Status,
		nullableInt64(c.NewRecordID),
		c.CreatedBy,
		nullableInt64(c.ApprovedBy),
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create correction", zap.String("correction_no", c.CorrectionNo), zap.Error(err))
		return storageError("create correction", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return storageError("create correction", err)
	}

	c.ID = id
	return nil
}

// GetByID retrieves a correction by ID
func (r *CorrectionRepository) GetByID(ctx context.Context, id int64) (*entity.Correction, error) {
	query := `
		SELECT id, correction_no, target_type, target_id, reason, changes, occurred_date,
			attachments, status, new_record_id, created_by, approved_by,
			created_at, updated_at
		FROM corrections
		WHERE id = ?
	`

	var c entity.Correction
	var occurred sql.NullTime
	var attachments string
	var newRecordID, approvedBy sql.NullInt64

	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&c.ID,
		&c.CorrectionNo,
		&c.TargetType,
		&c.TargetID,
		&c.Reason,
		&c.Changes,
		&occurred,
		&attachments,
		&c.Status,
		&newRecordID,
		&c.CreatedBy,
		&approvedBy,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("correction", id)
	}
	if err != nil {
		r.logger.Error("Failed to get correction", zap.Int64("id", id), zap.Error(err))
		return nil, storageError("get correction", err)
	}

	if c.Attachments, err = decodeList(attachments); err != nil {
		return nil, err
	}
	c.OccurredDate = timePtr(occurred)
	c.NewRecordID = int64Ptr(newRecordID)
	c.ApprovedBy = int64Ptr(approvedBy)
	return &c, nil
}

// CountByNumberPrefix counts corrections whose number starts with prefix
func (r *CorrectionRepository) CountByNumberPrefix(ctx context.Context, prefix string) (int, error) {
	var n int
	err := sqlite.ExecutorFor(ctx, r.db).
		QueryRowContext(ctx, `SELECT COUNT(*) FROM corrections WHERE correction_no LIKE ? || '%'`, prefix).
		Scan(&n)
	if err != nil {
		return 0, storageError("count corrections", err)
	}
	return n, nil
}

// SetAttachments replaces the attachment list
func (r *CorrectionRepository) SetAttachments(ctx context.Context, id int64, attachments []string) error {
	encoded, err := encodeList(attachments)
	if err != nil {
		return err
	}
	query := `UPDATE corrections SET attachments = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	return updateRow(ctx, r.db, "set correction attachments", "correction", id, query, encoded, id)
}

// SetDecision records the approver and the replacement record, if any
func (r *CorrectionRepository) SetDecision(ctx context.Context, id int64, approvedBy int64, newRecordID *int64) error {
	query := `UPDATE corrections SET approved_by = ?, new_record_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	return updateRow(ctx, r.db, "set correction decision", "correction", id, query, approvedBy, nullableInt64(newRecordID), id)
}

// Verify interface compliance
var _ port.CorrectionRepository = (*CorrectionRepository)(nil)
