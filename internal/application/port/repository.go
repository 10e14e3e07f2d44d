package port

import (
	"context"
	"time"

	"github.com/garyjia/doc-lifecycle/internal/domain/entity"
)

// StatusStore reads and writes the status of one subject type.
// Only the workflow engine calls UpdateStatus.
type StatusStore interface {
	// GetStatus returns the current status or workflow.ErrSubjectNotFound
	GetStatus(ctx context.Context, id int64) (string, error)

	// UpdateStatus moves id from one status to another, failing with
	// workflow.ErrInvalidTransition if the stored status is no longer from
	UpdateStatus(ctx context.Context, id int64, from, to string) error
}

// HistoryRepository is the append-only transition log
type HistoryRepository interface {
	Append(ctx context.Context, record *entity.TransitionRecord) error
	ListBySubject(ctx context.Context, subject entity.SubjectRef) ([]*entity.TransitionRecord, error)
}

// QuoteRepository defines quote persistence operations
type QuoteRepository interface {
	StatusStore
	Create(ctx context.Context, quote *entity.Quote) error
	GetByID(ctx context.Context, id int64) (*entity.Quote, error)
	GetByQuoteNo(ctx context.Context, quoteNo string) (*entity.Quote, error)
	SetSubmission(ctx context.Context, id int64, confirmerID *int64, submittedAt time.Time) error
	SetCollector(ctx context.Context, id int64, collectorID int64) error
	SetVoidStatus(ctx context.Context, id int64, voidStatus string) error
}

// QuoteVersionRepository defines quote version persistence operations.
// Its StatusStore maps the active flag onto ACTIVE/INACTIVE.
type QuoteVersionRepository interface {
	StatusStore
	Create(ctx context.Context, version *entity.QuoteVersion) error
	GetByID(ctx context.Context, id int64) (*entity.QuoteVersion, error)
	GetByNumber(ctx context.Context, quoteNo string, versionNo int) (*entity.QuoteVersion, error)
	ListActive(ctx context.Context, quoteNo string) ([]*entity.QuoteVersion, error)
	ListByQuoteNo(ctx context.Context, quoteNo string) ([]*entity.QuoteVersion, error)
	SetActiveAt(ctx context.Context, id int64, at time.Time) error
}

// PaymentRepository defines payment persistence operations
type PaymentRepository interface {
	StatusStore
	Create(ctx context.Context, payment *entity.Payment) error
	GetByID(ctx context.Context, id int64) (*entity.Payment, error)
	ListByQuoteID(ctx context.Context, quoteID int64) ([]*entity.Payment, error)
	SetConfirmer(ctx context.Context, id int64, confirmerID int64, note string) error
	SumConfirmed(ctx context.Context, quoteID int64) (float64, error)
}

// VoidApplicationRepository defines void application persistence operations
type VoidApplicationRepository interface {
	StatusStore
	Create(ctx context.Context, app *entity.VoidApplication) error
	GetByID(ctx context.Context, id int64) (*entity.VoidApplication, error)
	SetAudit(ctx context.Context, id int64, auditorID int64, note string) error
}

// InvoiceApplicationRepository defines invoice application persistence operations
type InvoiceApplicationRepository interface {
	StatusStore
	Create(ctx context.Context, app *entity.InvoiceApplication) error
	GetByID(ctx context.Context, id int64) (*entity.InvoiceApplication, error)
	ListByQuoteID(ctx context.Context, quoteID int64) ([]*entity.InvoiceApplication, error)
	SetAudit(ctx context.Context, id int64, auditorID int64, rejectReason string) error
}

// CorrectionRepository defines correction persistence operations
type CorrectionRepository interface {
	StatusStore
	Create(ctx context.Context, correction *entity.Correction) error
	GetByID(ctx context.Context, id int64) (*entity.Correction, error)
	CountByNumberPrefix(ctx context.Context, prefix string) (int, error)
	SetAttachments(ctx context.Context, id int64, attachments []string) error
	SetDecision(ctx context.Context, id int64, approvedBy int64, newRecordID *int64) error
}

// PermissionRequestRepository defines permission request persistence operations
type PermissionRequestRepository interface {
	StatusStore
	Create(ctx context.Context, req *entity.PermissionRequest) error
	GetByID(ctx context.Context, id int64) (*entity.PermissionRequest, error)
	FindOpenByApplicant(ctx context.Context, applicantID int64) (*entity.PermissionRequest, error)
	SetDecision(ctx context.Context, id int64, handledBy int64, note string, before, after []string) error
}

// CapabilityGrantRepository stores capabilities granted to individual users
type CapabilityGrantRepository interface {
	ListByUser(ctx context.Context, userID int64) ([]string, error)
	Grant(ctx context.Context, userID int64, capabilities []string, at time.Time) error
}

// DamageRecordRepository defines damage record persistence operations.
// Repair stage and compensation status are two independent workflows.
type DamageRecordRepository interface {
	Create(ctx context.Context, record *entity.DamageRecord) error
	GetByID(ctx context.Context, id int64) (*entity.DamageRecord, error)
	RepairStages() StatusStore
	Compensations() StatusStore
	SetSettlement(ctx context.Context, id int64, details string, repairFee float64, penalty *float64, operatorID int64) error
	SetCompensation(ctx context.Context, id int64, amount float64, proofURL string, operatorID int64) error
	SetOperator(ctx context.Context, id int64, operatorID int64) error
}

// CarrierRuleRepository defines carrier rule persistence operations
type CarrierRuleRepository interface {
	Create(ctx context.Context, rule *entity.CarrierRule) error
	ListEnabled(ctx context.Context) ([]*entity.CarrierRule, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
