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
	"go.uber.org/zap"
)

// QuoteRepository implements port.QuoteRepository
type QuoteRepository struct {
	statusColumn
	db     *sql.DB
	logger *zap.Logger
}

// NewQuoteRepository creates a new quote repository
func NewQuoteRepository(db *sql.DB, logger *zap.Logger) port.QuoteRepository {
	return &QuoteRepository{
		statusColumn: statusColumn{db: db, table: "quotes", column: "status", kind: "quote"},
		db:           db,
		logger:       logger,
	}
}

const quoteColumns = `id, quote_no, customer_name, total_amount, status, void_status,
	collector_id, customer_confirmer_id, first_submitted_at,
	created_by, created_at, updated_at`

// Create creates a new quote
func (r *QuoteRepository) Create(ctx context.Context, quote *entity.Quote) error {
	query := `
		INSERT INTO quotes (
			quote_no, customer_name, total_amount, status, void_status,
			collector_id, customer_confirmer_id, first_submitted_at,
			created_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	if quote.VoidStatus == "" {
		quote.VoidStatus = entity.VoidStatusNone
	}
	stamp(&quote.CreatedAt, &quote.UpdatedAt)

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		quote.QuoteNo,
		quote.CustomerName,
		quote.TotalAmount,
		quote.Status,
		quote.VoidStatus,
		nullableInt64(quote.CollectorID),
		nullableInt64(quote.CustomerConfirmerID),
		nullableTime(quote.FirstSubmittedAt),
		quote.CreatedBy,
		quote.CreatedAt,
		quote.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create quote", zap.String("quote_no", quote.QuoteNo), zap.Error(err))
		return storageError("create quote", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return storageError("create quote", err)
	}

	quote.ID = id
	return nil
}

// GetByID retrieves a quote by ID
func (r *QuoteRepository) GetByID(ctx context.Context, id int64) (*entity.Quote, error) {
	query := `SELECT ` + quoteColumns + ` FROM quotes WHERE id = ?`
	quote, err := scanQuote(sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("quote", id)
	}
	if err != nil {
		r.logger.Error("Failed to get quote by ID", zap.Int64("id", id), zap.Error(err))
		return nil, storageError("get quote", err)
	}
	return quote, nil
}

// GetByQuoteNo retrieves a quote by its business number
func (r *QuoteRepository) GetByQuoteNo(ctx context.Context, quoteNo string) (*entity.Quote, error) {
	query := `SELECT ` + quoteColumns + ` FROM quotes WHERE quote_no = ?`
	quote, err := scanQuote(sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, quoteNo))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: quote %s", workflow.ErrSubjectNotFound, quoteNo)
	}
	if err != nil {
		r.logger.Error("Failed to get quote by number", zap.String("quote_no", quoteNo), zap.Error(err))
		return nil, storageError("get quote", err)
	}
	return quote, nil
}

// SetSubmission records the customer confirmer and, on first submission, the submission time
func (r *QuoteRepository) SetSubmission(ctx context.Context, id int64, confirmerID *int64, submittedAt time.Time) error {
	query := `
		UPDATE quotes
		SET customer_confirmer_id = COALESCE(?, customer_confirmer_id),
			first_submitted_at = COALESCE(first_submitted_at, ?),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	return updateRow(ctx, r.db, "set quote submission", "quote", id, query, nullableInt64(confirmerID), submittedAt, id)
}

// SetCollector assigns the collector
func (r *QuoteRepository) SetCollector(ctx context.Context, id int64, collectorID int64) error {
	query := `UPDATE quotes SET collector_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	return updateRow(ctx, r.db, "set quote collector", "quote", id, query, collectorID, id)
}

// SetVoidStatus updates the void status tracked beside the quote status
func (r *QuoteRepository) SetVoidStatus(ctx context.Context, id int64, voidStatus string) error {
	query := `UPDATE quotes SET void_status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	return updateRow(ctx, r.db, "set quote void status", "quote", id, query, voidStatus, id)
}

func scanQuote(row rowScanner) (*entity.Quote, error) {
	var quote entity.Quote
	var collectorID, confirmerID sql.NullInt64
	var submittedAt sql.NullTime

	err := row.Scan(
		&quote.ID,
		&quote.QuoteNo,
		&quote.CustomerName,
		&quote.TotalAmount,
		&quote.Status,
		&quote.VoidStatus,
		&collectorID,
		&confirmerID,
		&submittedAt,
		&quote.CreatedBy,
		&quote.CreatedAt,
		&quote.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	quote.CollectorID = int64Ptr(collectorID)
	quote.CustomerConfirmerID = int64Ptr(confirmerID)
	quote.FirstSubmittedAt = timePtr(submittedAt)
	return &quote, nil
}

// Verify interface compliance
var _ port.QuoteRepository = (*QuoteRepository)(nil)
