package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/garyjia/doc-lifecycle/internal/application/port"
	"github.com/garyjia/doc-lifecycle/internal/application/workflow"
	"github.com/garyjia/doc-lifecycle/internal/domain/entity"
	domainwf "github.com/garyjia/doc-lifecycle/internal/domain/workflow"
	"github.com/garyjia/doc-lifecycle/internal/infrastructure/persistence/repository"
	"github.com/garyjia/doc-lifecycle/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/doc-lifecycle/internal/testutil"
)

var testNow = time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

type env struct {
	engine workflow.Engine

	quotes      QuoteService
	payments    PaymentService
	voids       VoidService
	corrections CorrectionService
	invoices    InvoiceApplicationService
	permissions PermissionService
	damages     DamageService
	carriers    CarrierService

	quoteRepo   port.QuoteRepository
	paymentRepo port.PaymentRepository
	invoiceRepo port.InvoiceApplicationRepository
	grantRepo   port.CapabilityGrantRepository
	historyRepo port.HistoryRepository
}

func newEnv(t *testing.T) *env {
	t.Helper()

	db := testutil.NewDB(t)
	logger := zap.NewNop()

	e := &env{
		quoteRepo:   repository.NewQuoteRepository(db.DB, logger),
		paymentRepo: repository.NewPaymentRepository(db.DB, logger),
		invoiceRepo: repository.NewInvoiceApplicationRepository(db.DB, logger),
		grantRepo:   repository.NewCapabilityGrantRepository(db.DB),
		historyRepo: repository.NewHistoryRepository(db.DB, logger),
	}
	e.engine = workflow.NewEngine(e.historyRepo, sqlite.NewDB(db.DB, logger),
		workflow.WithClock(clocktesting.NewFakePassiveClock(testNow)))

	e.quotes = NewQuoteService(e.engine, e.quoteRepo, nil)
	e.payments = NewPaymentService(e.engine, e.paymentRepo, e.quoteRepo, nil)
	e.invoices = NewInvoiceApplicationService(e.engine, e.invoiceRepo, e.quoteRepo, nil)
	e.voids = NewVoidService(e.engine, repository.NewVoidApplicationRepository(db.DB, logger),
		e.quoteRepo, e.paymentRepo, e.invoiceRepo, nil)
	e.corrections = NewCorrectionService(e.engine, repository.NewCorrectionRepository(db.DB, logger),
		e.quoteRepo, e.paymentRepo, nil)
	e.permissions = NewPermissionService(e.engine,
		repository.NewPermissionRequestRepository(db.DB, logger), e.grantRepo, nil)
	e.damages = NewDamageService(e.engine, repository.NewDamageRecordRepository(db.DB, logger), nil)
	e.carriers = NewCarrierService(repository.NewCarrierRuleRepository(db.DB, logger), nil)

	require.NoError(t, e.engine.Validate())
	return e
}

func actorWith(id int64, caps ...domainwf.Capability) *entity.Actor {
	names := make([]string, len(caps))
	for i, c := range caps {
		names[i] = c.String()
	}
	return entity.NewActor(id, nil, names...)
}

var (
	sales   = actorWith(10, workflow.CapQuoteSubmit, workflow.CapCorrectionSubmit, workflow.CapPaymentSubmit)
	finance = actorWith(20,
		workflow.CapQuoteFinanceAudit,
		workflow.CapQuoteAssignCollector,
		workflow.CapQuoteFallback,
		workflow.CapVoidAudit,
		workflow.CapCorrectionApprove,
		workflow.CapInvoiceAudit,
		workflow.CapPaymentConfirm,
	)
	collector = actorWith(30, workflow.CapVoidApply, workflow.CapPaymentSubmit)
	admin     = actorWith(40, workflow.CapVoidDirect, workflow.CapPermissionDecide)
)

// confirmedQuote creates a quote and takes it through finance approval,
// assigning the collector actor
func (e *env) confirmedQuote(t *testing.T, quoteNo string, total float64) *entity.Quote {
	t.Helper()
	ctx := context.Background()

	q, err := e.quotes.Create(ctx, sales, CreateQuoteInput{QuoteNo: quoteNo, CustomerName: "ACME", TotalAmount: total})
	require.NoError(t, err)
	_, err = e.quotes.Submit(ctx, sales, q.ID, nil)
	require.NoError(t, err)

	collectorID := collector.ID
	_, err = e.quotes.FinanceAudit(ctx, finance, q.ID, AuditDecision{Pass: true, NewCollectorID: &collectorID})
	require.NoError(t, err)

	q, err = e.quotes.Get(ctx, q.ID)
	require.NoError(t, err)
	return q
}

// confirmedPayment records and confirms a payment against a quote
func (e *env) confirmedPayment(t *testing.T, quoteID int64, amount float64) *entity.Payment {
	t.Helper()
	ctx := context.Background()

	p, err := e.payments.Create(ctx, collector, quoteID, amount)
	require.NoError(t, err)
	_, err = e.payments.Submit(ctx, collector, p.ID)
	require.NoError(t, err)
	_, err = e.payments.Confirm(ctx, finance, p.ID, "received")
	require.NoError(t, err)

	p, err = e.payments.Get(ctx, p.ID)
	require.NoError(t, err)
	return p
}

func (e *env) quoteStatus(t *testing.T, id int64) string {
	t.Helper()
	q, err := e.quotes.Get(context.Background(), id)
	require.NoError(t, err)
	return q.Status
}

func (e *env) history(t *testing.T, subjectType entity.SubjectType, id int64) []*entity.TransitionRecord {
	t.Helper()
	records, err := e.historyRepo.ListBySubject(context.Background(), entity.SubjectRef{Type: subjectType, ID: id})
	require.NoError(t, err)
	return records
}

func actions(records []*entity.TransitionRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Action
	}
	return out
}
