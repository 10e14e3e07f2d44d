package repository

import (
	"context"
	"database/sql"

	"github.com/garyjia/doc-lifecycle/internal/application/port"
	"github.com/garyjia/doc-lifecycle/internal/domain/entity"
	"github.com/garyjia/doc-lifecycle/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// HistoryRepository implements port.HistoryRepository.
// The table rejects UPDATE and DELETE through triggers.
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Append writes a history record
func (r *HistoryRepository) Append(ctx context.Context, record *entity.TransitionRecord) error {
	query := `
		INSERT INTO transition_history (
			subject_type, subject_id, actor_id, action,
			previous_status, new_status, reason, payload, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	stamp(&record.CreatedAt, nil)
	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		string(record.SubjectType),
		record.SubjectID,
		record.ActorID,
		record.Action,
		record.PreviousStatus,
		record.NewStatus,
		record.Reason,
		record.Payload,
		record.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to append history record",
			zap.String("subject", record.SubjectType.String()),
			zap.Int64("subject_id", record.SubjectID),
			zap.Error(err))
		return storageError("append history", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return storageError("append history", err)
	}

	record.ID = id
	return nil
}

// ListBySubject returns a subject's history, newest first
func (r *HistoryRepository) ListBySubject(ctx context.Context, subject entity.SubjectRef) ([]*entity.TransitionRecord, error) {
	query := `
		SELECT id, subject_type, subject_id, actor_id, action,
			previous_status, new_status, reason, payload, created_at
		FROM transition_history
		WHERE subject_type = ? AND subject_id = ?
		ORDER BY id DESC
	`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, string(subject.Type), subject.ID)
	if err != nil {
		r.logger.Error("Failed to list history", zap.String("subject", subject.String()), zap.Error(err))
		return nil, storageError("list history", err)
	}
	defer rows.Close()

	records := []*entity.TransitionRecord{}
	for rows.Next() {
		var record entity.TransitionRecord
		var subjectType string
		err := rows.Scan(
			&record.ID,
			&subjectType,
			&record.SubjectID,
			&record.ActorID,
			&record.Action,
			&record.PreviousStatus,
			&record.NewStatus,
			&record.Reason,
			&record.Payload,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, storageError("scan history", err)
		}
		record.SubjectType = entity.SubjectType(subjectType)
		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, storageError("list history", err)
	}
	return records, nil
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
