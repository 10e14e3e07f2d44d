package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/doc-lifecycle/internal/domain/workflow"
	"github.com/garyjia/doc-lifecycle/internal/infrastructure/persistence/sqlite"
)

// storageError marks a driver failure as ErrStorageUnavailable
func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", workflow.ErrStorageUnavailable, op, err)
}

func notFound(kind string, id int64) error {
	return fmt.Errorf("%w: %s %d", workflow.ErrSubjectNotFound, kind, id)
}

// statusColumn reads and compare-and-sets one status column of one table
type statusColumn struct {
	db     *sql.DB
	table  string
	column string
	kind   string
}

func (s statusColumn) GetStatus(ctx context.Context, id int64) (string, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", s.column, s.table)

	var status string
	err := sqlite.ExecutorFor(ctx, s.db).QueryRowContext(ctx, query, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", notFound(s.kind, id)
	}
	if err != nil {
		return "", storageError("get "+s.kind+" status", err)
	}
	return status, nil
}

func (s statusColumn) UpdateStatus(ctx context.Context, id int64, from, to string) error {
	query := fmt.Sprintf("UPDATE %s SET %s = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND %s = ?",
		s.table, s.column, s.column)

	result, err := sqlite.ExecutorFor(ctx, s.db).ExecContext(ctx, query, to, id, from)
	if err != nil {
		return storageError("update "+s.kind+" status", err)
	}
	return s.checkSwapped(ctx, result, id, from)
}

func (s statusColumn) checkSwapped(ctx context.Context, result sql.Result, id int64, from string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return storageError("update "+s.kind+" status", err)
	}
	if n == 1 {
		return nil
	}

	current, err := s.GetStatus(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s %d is %s, expected %s", workflow.ErrInvalidTransition, s.kind, id, current, from)
}

func encodeList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("failed to encode list: %w", err)
	}
	return string(b), nil
}

func decodeList(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("failed to decode list: %w", err)
	}
	if len(values) == 0 {
		return nil, nil
	}
	return values, nil
}

func nullableInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullableFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullableTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	x := v.Int64
	return &x
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	x := v.Float64
	return &x
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	x := v.Time
	return &x
}

func stamp(createdAt *time.Time, updatedAt *time.Time) {
	if createdAt.IsZero() {
		*createdAt = time.Now()
	}
	if updatedAt != nil && updatedAt.IsZero() {
		*updatedAt = *createdAt
	}
}

// updateRow runs an UPDATE addressed to a single row and reports a missing row as not found
func updateRow(ctx context.Context, db *sql.DB, op, kind string, id int64, query string, args ...interface{}) error {
	result, err := sqlite.ExecutorFor(ctx, db).ExecContext(ctx, query, args...)
	if err != nil {
		return storageError(op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return storageError(op, err)
	}
	if n == 0 {
		return notFound(kind, id)
	}
	return nil
}
