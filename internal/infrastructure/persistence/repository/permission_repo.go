package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/garyjia/doc-lifecycle/internal/application/port"
	"github.com/garyjia/doc-lifecycle/internal/domain/entity"
	"github.com/garyjia/doc-lifecycle/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// PermissionRequestRepository implements port.PermissionRequestRepository
type PermissionRequestRepository struct {
	statusColumn
	db     *sql.DB
	logger *zap.Logger
}

// NewPermissionRequestRepository creates a new permission request repository
func NewPermissionRequestRepository(db *sql.DB, logger *zap.Logger) port.PermissionRequestRepository {
	return &PermissionRequestRepository{
		statusColumn: statusColumn{db: db, table: "permission_requests", column: "status", kind: "permission request"},
		db:           db,
		logger:       logger,
	}
}

const permissionRequestColumns = `id, applicant_id, target_user_id, capabilities, reason, status,
	handled_by, handle_note, snapshot_before, snapshot_after, created_at, updated_at`

// Create creates a new permission request
func (r *PermissionRequestRepository) Create(ctx context.Context, req *entity.PermissionRequest) error {
	query := `
		INSERT INTO permission_requests (
			applicant_id, target_user_id, capabilities, reason, status,
			handled_by, handle_note, snapshot_before, snapshot_after,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	caps, err := encodeList(req.Capabilities)
	if err != nil {
		return err
	}
	before, err := encodeList(req.SnapshotBefore)
	if err != nil {
		return err
	}
	after, err := encodeList(req.SnapshotAfter)
	if err != nil {
		return err
	}
	stamp(&req.CreatedAt, &req.UpdatedAt)

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		req.ApplicantID,
		req.TargetUserID,
		caps,
		req.Reason,
		req.Status,
		nullableInt64(req.HandledBy),
		req.HandleNote,
		before,
		after,
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create permission request", zap.Int64("applicant_id", req.ApplicantID), zap.Error(err))
		return storageError("create permission request", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return storageError("create permission request", err)
	}

	req.ID = id
	return nil
}

// GetByID retrieves a permission request by ID
func (r *PermissionRequestRepository) GetByID(ctx context.Context, id int64) (*entity.PermissionRequest, error) {
	query := `SELECT ` + permissionRequestColumns + ` FROM permission_requests WHERE id = ?`
	req, err := scanPermissionRequest(sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("permission request", id)
	}
	if err != nil {
		return nil, storageError("get permission request", err)
	}
	return req, nil
}

// FindOpenByApplicant returns the applicant's pending or returned request, or nil
func (r *PermissionRequestRepository) FindOpenByApplicant(ctx context.Context, applicantID int64) (*entity.PermissionRequest, error) {
	query := `SELECT ` + permissionRequestColumns + `
		FROM permission_requests
		WHERE applicant_id = ? AND status IN (?, ?)
		ORDER BY id DESC
		LIMIT 1`

	req, err := scanPermissionRequest(sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query,
		applicantID, entity.PermissionRequestPending, entity.PermissionRequestReturned))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to find open permission request", zap.Int64("applicant_id", applicantID), zap.Error(err))
		return nil, storageError("find open permission request", err)
	}
	return req, nil
}

// SetDecision records the handler, note and capability snapshots
func (r *PermissionRequestRepository) SetDecision(ctx context.Context, id int64, handledBy int64, note string, before, after []string) error {
	encBefore, err := encodeList(before)
	if err != nil {
		return err
	}
	encAfter, err := encodeList(after)
	if err != nil {
		return err
	}

	query := `
		UPDATE permission_requests
		SET handled_by = ?, handle_note = ?, snapshot_before = ?, snapshot_after = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	return updateRow(ctx, r.db, "set permission decision", "permission request", id, query,
		handledBy, note, encBefore, encAfter, id)
}

func scanPermissionRequest(row rowScanner) (*entity.PermissionRequest, error) {
	var req entity.PermissionRequest
	var caps, before, after string
	var handledBy sql.NullInt64

	err := row.Scan(
		&req.ID,
		&req.ApplicantID,
		&req.TargetUserID,
		&caps,
		&req.Reason,
		&req.Status,
		&handledBy,
		&req.HandleNote,
		&before,
		&after,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if req.Capabilities, err = decodeList(caps); err != nil {
		return nil, err
	}
	if req.SnapshotBefore, err = decodeList(before); err != nil {
		return nil, err
	}
	if req.SnapshotAfter, err = decodeList(after); err != nil {
		return nil, err
	}
	req.HandledBy = int64Ptr(handledBy)
	return &req, nil
}

// CapabilityGrantRepository implements port.CapabilityGrantRepository
type CapabilityGrantRepository struct {
	db *sql.DB
}

// NewCapabilityGrantRepository creates a new grant repository
func NewCapabilityGrantRepository(db *sql.DB) port.CapabilityGrantRepository {
	return &CapabilityGrantRepository{db: db}
}

// ListByUser returns a user's granted capabilities in name order
func (r *CapabilityGrantRepository) ListByUser(ctx context.Context, userID int64) ([]string, error) {
	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx,
		`SELECT capability FROM user_capability_grants WHERE user_id = ? ORDER BY capability`, userID)
	if err != nil {
		return nil, storageError("list grants", err)
	}
	defer rows.Close()

	caps := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, storageError("scan grant", err)
		}
		caps = append(caps, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("list grants", err)
	}
	return caps, nil
}

// Grant adds capabilities to a user. Already granted capabilities are kept.
func (r *CapabilityGrantRepository) Grant(ctx context.Context, userID int64, capabilities []string, at time.Time) error {
	exec := sqlite.ExecutorFor(ctx, r.db)
	for _, c := range capabilities {
		_, err := exec.ExecContext(ctx,
			`INSERT OR IGNORE INTO user_capability_grants (user_id, capability, granted_at) VALUES (?, ?, ?)`,
			userID, c, at)
		if err != nil {
			return storageError("grant capability", err)
		}
	}
	return nil
}

// Verify interface compliance
var (
	_ port.PermissionRequestRepository = (*PermissionRequestRepository)(nil)
	_ port.CapabilityGrantRepository   = (*CapabilityGrantRepository)(nil)
)
