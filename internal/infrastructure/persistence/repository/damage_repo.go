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

// DamageRecordRepository implements port.DamageRecordRepository
type DamageRecordRepository struct {
	db            *sql.DB
	logger        *zap.Logger
	repairStages  statusColumn
	compensations statusColumn
}

// NewDamageRecordRepository creates a new damage record repository
func NewDamageRecordRepository(db *sql.DB, logger *zap.Logger) port.DamageRecordRepository {
	return &DamageRecordRepository{
		db:            db,
		logger:        logger,
		repairStages:  statusColumn{db: db, table: "damage_records", column: "repair_stage", kind: "damage repair"},
		compensations: statusColumn{db: db, table: "damage_records", column: "compensation_status", kind: "damage compensation"},
	}
}

// Create creates a new damage record
func (r *DamageRecordRepository) Create(ctx context.Context, d *entity.DamageRecord) error {
	query := `
		INSERT INTO damage_records (
			behavior, description, repair_stage, compensation_status,
			settlement_details, repair_fee, penalty_amount, compensation_amount,
			proof_urls, operator_id, created_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	proofs, err := encodeList(d.ProofURLs)
	if err != nil {
		return err
	}
	stamp(&d.CreatedAt, &d.UpdatedAt)

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		d.Behavior,
		d.Description,
		d.RepairStage,
		d.CompensationStatus,
		d.SettlementDetails,
		nullableFloat(d.RepairFee),
		nullableFloat(d.PenaltyAmount),
		nullableFloat(d.CompensationAmount),
		proofs,
		nullableInt64(d.OperatorID),
		d.CreatedBy,
		d.CreatedAt,
		d.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create damage record", zap.String("behavior", d.Behavior), zap.Error(err))
		return storageError("create damage record", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return storageError("create damage record", err)
	}

	d.ID = id
	return nil
}

// GetByID retrieves a damage record by ID
func (r *DamageRecordRepository) GetByID(ctx context.Context, id int64) (*entity.DamageRecord, error) {
	query := `
		SELECT id, behavior, description, repair_stage, compensation_status,
			settlement_details, repair_fee, penalty_amount, compensation_amount,
			proof_urls, operator_id, created_by, created_at, updated_at
		FROM damage_records
		WHERE id = ?
	`

	var d entity.DamageRecord
	var repairFee, penalty, compensation sql.NullFloat64
	var proofs string
	var operatorID sql.NullInt64

	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&d.ID,
		&d.Behavior,
		&d.Description,
		&d.RepairStage,
		&d.CompensationStatus,
		&d.SettlementDetails,
		&repairFee,
		&penalty,
		&compensation,
		&proofs,
		&operatorID,
		&d.CreatedBy,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("damage record", id)
	}
	if err != nil {
		r.logger.Error("Failed to get damage record", zap.Int64("id", id), zap.Error(err))
		return nil, storageError("get damage record", err)
	}

	if d.ProofURLs, err = decodeList(proofs); err != nil {
		return nil, err
	}
	d.RepairFee = floatPtr(repairFee)
	d.PenaltyAmount = floatPtr(penalty)
	d.CompensationAmount = floatPtr(compensation)
	d.OperatorID = int64Ptr(operatorID)
	return &d, nil
}

// RepairStages returns the status store for the repair stage column
func (r *DamageRecordRepository) RepairStages() port.StatusStore {
	return r.repairStages
}

// Compensations returns the status store for the compensation status column
func (r *DamageRecordRepository) Compensations() port.StatusStore {
	return r.compensations
}

// SetSettlement records the repair settlement
func (r *DamageRecordRepository) SetSettlement(ctx context.Context, id int64, details string, repairFee float64, penalty *float64, operatorID int64) error {
	query := `
		UPDATE damage_records
		SET settlement_details = ?, repair_fee = ?, penalty_amount = ?, operator_id = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	return updateRow(ctx, r.db, "set damage settlement", "damage record", id, query,
		details, repairFee, nullableFloat(penalty), operatorID, id)
}

// SetCompensation records the confirmed compensation and appends its proof
func (r *DamageRecordRepository) SetCompensation(ctx context.Context, id int64, amount float64, proofURL string, operatorID int64) error {
	d, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	proofs, err := encodeList(append(d.ProofURLs, proofURL))
	if err != nil {
		return err
	}

	query := `
		UPDATE damage_records
		SET compensation_amount = ?, proof_urls = ?, operator_id = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	return updateRow(ctx, r.db, "set damage compensation", "damage record", id, query,
		amount, proofs, operatorID, id)
}

// SetOperator records the last operator to move the record
func (r *DamageRecordRepository) SetOperator(ctx context.Context, id int64, operatorID int64) error {
	query := `UPDATE damage_records SET operator_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	return updateRow(ctx, r.db, "set damage operator", "damage record", id, query, operatorID, id)
}

// Verify interface compliance
var _ port.DamageRecordRepository = (*DamageRecordRepository)(nil)
