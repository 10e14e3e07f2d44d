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

// InvoiceApplicationRepository implements port.InvoiceApplicationRepository
type InvoiceApplicationRepository struct {
	statusColumn
	db     *sql.DB
	logger *zap.Logger
}

// NewInvoiceApplicationRepository creates a new invoice application repository
func NewInvoiceApplicationRepository(db *sql.DB, logger *zap.Logger) port.InvoiceApplicationRepository {
	return &InvoiceApplicationRepository{
		statusColumn: statusColumn{db: db, table: "invoice_applications", column: "status", kind: "invoice application"},
		db:           db,
		logger:       logger,
	}
}

const invoiceApplicationColumns = `id, application_no, quote_id, amount, invoice_title, applicant_id,
	auditor_id, reject_reason, status, created_at, updated_at`

// Create creates a new invoice application
func (r *InvoiceApplicationRepository) Create(ctx context.Context, app *entity.InvoiceApplication) error {
	query := `
		INSERT INTO invoice_applications (
			application_no, quote_id, amount, invoice_title, applicant_id,
			auditor_id, reject_reason, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	stamp(&app.CreatedAt, &app.UpdatedAt)
	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		app.ApplicationNo,
		app.QuoteID,
		app.Amount,
		app.InvoiceTitle,
		app.ApplicantID,
		nullableInt64(app.AuditorID),
		app.RejectReason,
		app.Status,
		app.CreatedAt,
		app.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create invoice application", zap.String("application_no", app.ApplicationNo), zap.Error(err))
		return storageError("create invoice application", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return storageError("create invoice application", err)
	}

	app.ID = id
	return nil
}

// GetByID retrieves an invoice application by ID
func (r *InvoiceApplicationRepository) GetByID(ctx context.Context, id int64) (*entity.InvoiceApplication, error) {
	query := `SELECT ` + invoiceApplicationColumns + ` FROM invoice_applications WHERE id = ?`
	app, err := scanInvoiceApplication(sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("invoice application", id)
	}
	if err != nil {
		return nil, storageError("get invoice application", err)
	}
	return app, nil
}

// ListByQuoteID returns the invoice applications of a quote
func (r *InvoiceApplicationRepository) ListByQuoteID(ctx context.Context, quoteID int64) ([]*entity.InvoiceApplication, error) {
	query := `SELECT ` + invoiceApplicationColumns + ` FROM invoice_applications WHERE quote_id = ? ORDER BY id`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, quoteID)
	if err != nil {
		r.logger.Error("Failed to list invoice applications", zap.Int64("quote_id", quoteID), zap.Error(err))
		return nil, storageError("list invoice applications", err)
	}
	defer rows.Close()

	apps := []*entity.InvoiceApplication{}
	for rows.Next() {
		app, err := scanInvoiceApplication(rows)
		if err != nil {
			return nil, storageError("scan invoice application", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("list invoice applications", err)
	}
	return apps, nil
}

// SetAudit records the auditor and, on rejection, the reason
func (r *InvoiceApplicationRepository) SetAudit(ctx context.Context, id int64, auditorID int64, rejectReason string) error {
	query := `UPDATE invoice_applications SET auditor_id = ?, reject_reason = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	return updateRow(ctx, r.db, "set invoice audit", "invoice application", id, query, auditorID, rejectReason, id)
}

func scanInvoiceApplication(row rowScanner) (*entity.InvoiceApplication, error) {
	var app entity.InvoiceApplication
	var auditorID sql.NullInt64

	err := row.Scan(
		&app.ID,
		&app.ApplicationNo,
		&app.QuoteID,
		&app.Amount,
		&app.InvoiceTitle,
		&app.ApplicantID,
		&auditorID,
		&app.RejectReason,
		&app.Status,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	app.AuditorID = int64Ptr(auditorID)
	return &app, nil
}

// Verify interface compliance
var _ port.InvoiceApplicationRepository = (*InvoiceApplicationRepository)(nil)
