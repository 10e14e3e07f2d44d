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

// PaymentRepository implements port.PaymentRepository
type PaymentRepository struct {
	statusColumn
	db     *sql.DB
	logger *zap.Logger
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *sql.DB, logger *zap.Logger) port.PaymentRepository {
	return &PaymentRepository{
		statusColumn: statusColumn{db: db, table: "payments", column: "status", kind: "payment"},
		db:           db,
		logger:       logger,
	}
}

const paymentColumns = `id, quote_id, amount, status, submitter_id, confirmer_id, note, created_at, updated_at`

// Create creates a new payment
func (r *PaymentRepository) Create(ctx context.Context, payment *entity.Payment) error {
	query := `
		INSERT INTO payments (
			quote_id, amount, status, submitter_id, confirmer_id, note, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	stamp(&payment.CreatedAt, &payment.UpdatedAt)
	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		payment.QuoteID,
		payment.Amount,
		payment.Status,
		payment.SubmitterID,
		nullableInt64(payment.ConfirmerID),
		payment.Note,
		payment.CreatedAt,
		payment.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create payment", zap.Int64("quote_id", payment.QuoteID), zap.Error(err))
		return storageError("create payment", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return storageError("create payment", err)
	}

	payment.ID = id
	return nil
}

// GetByID retrieves a payment by ID
func (r *PaymentRepository) GetByID(ctx context.Context, id int64) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = ?`
	payment, err := scanPayment(sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("payment", id)
	}
	if err != nil {
		return nil, storageError("get payment", err)
	}
	return payment, nil
}

// ListByQuoteID returns the payments of a quote in creation order
func (r *PaymentRepository) ListByQuoteID(ctx context.Context, quoteID int64) ([]*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE quote_id = ? ORDER BY id`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, quoteID)
	if err != nil {
		r.logger.Error("Failed to list payments", zap.Int64("quote_id", quoteID), zap.Error(err))
		return nil, storageError("list payments", err)
	}
	defer rows.Close()

	payments := []*entity.Payment{}
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, storageError("scan payment", err)
		}
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("list payments", err)
	}
	return payments, nil
}

// SetConfirmer records who confirmed or returned the payment
func (r *PaymentRepository) SetConfirmer(ctx context.Context, id int64, confirmerID int64, note string) error {
	query := `UPDATE payments SET confirmer_id = ?, note = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	return updateRow(ctx, r.db, "set payment confirmer", "payment", id, query, confirmerID, note, id)
}

// SumConfirmed totals the confirmed payments of a quote
func (r *PaymentRepository) SumConfirmed(ctx context.Context, quoteID int64) (float64, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE quote_id = ? AND status = ?`

	var total float64
	err := sqlite.ExecutorFor(ctx, r.db).
		QueryRowContext(ctx, query, quoteID, entity.PaymentStatusConfirmed).
		Scan(&total)
	if err != nil {
		return 0, storageError("sum confirmed payments", err)
	}
	return total, nil
}

func scanPayment(row rowScanner) (*entity.Payment, error) {
	var payment entity.Payment
	var confirmerID sql.NullInt64

	err := row.Scan(
		&payment.ID,
		&payment.QuoteID,
		&payment.Amount,
		&payment.Status,
		&payment.SubmitterID,
		&confirmerID,
		&payment.Note,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	payment.ConfirmerID = int64Ptr(confirmerID)
	return &payment, nil
}

// Verify interface compliance
var _ port.PaymentRepository = (*PaymentRepository)(nil)
