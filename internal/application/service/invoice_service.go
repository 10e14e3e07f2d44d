package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/garyjia/doc-lifecycle/internal/application/port"
	"github.com/garyjia/doc-lifecycle/internal/application/workflow"
	"github.com/garyjia/doc-lifecycle/internal/domain/entity"
	domainwf "github.com/garyjia/doc-lifecycle/internal/domain/workflow"
	"github.com/garyjia/doc-lifecycle/pkg/utils"
)

// CreateInvoiceApplicationInput holds the fields of an invoice request
type CreateInvoiceApplicationInput struct {
	QuoteID      int64   `json:"quote_id"`
	Amount       float64 `json:"amount"`
	InvoiceTitle string  `json:"invoice_title"`
}

// InvoiceApplicationService handles requests for finance to issue invoices
type InvoiceApplicationService interface {
	Submit(ctx context.Context, actor *entity.Actor, in CreateInvoiceApplicationInput) (*entity.InvoiceApplication, error)
	Get(ctx context.Context, id int64) (*entity.InvoiceApplication, error)
	ListByQuote(ctx context.Context, quoteID int64) ([]*entity.InvoiceApplication, error)
	Audit(ctx context.Context, actor *entity.Actor, id int64, pass bool, reason string) (*workflow.TransitionResult, error)
	Cancel(ctx context.Context, actor *entity.Actor, id int64, reason string) (*workflow.TransitionResult, error)
}

type invoiceApplicationServiceImpl struct {
	engine      workflow.Engine
	invoiceRepo port.InvoiceApplicationRepository
	quoteRepo   port.QuoteRepository
	logger      Logger
}

// NewInvoiceApplicationService creates a new InvoiceApplicationService and
// binds the invoice application workflow to engine
func NewInvoiceApplicationService(
	engine workflow.Engine,
	invoiceRepo port.InvoiceApplicationRepository,
	quoteRepo port.QuoteRepository,
	logger Logger,
) InvoiceApplicationService {
	s := &invoiceApplicationServiceImpl{
		engine:      engine,
		invoiceRepo: invoiceRepo,
		quoteRepo:   quoteRepo,
		logger:      loggerOrNop(logger),
	}

	engine.Register(entity.SubjectInvoiceApplication, workflow.InvoiceApplicationDefinition(), invoiceRepo)
	engine.RegisterHook(workflow.HookInvoiceAudited, s.onAudited)
	return s
}

// Submit files an invoice application. The invoiced total of a quote may not
// exceed its amount.
func (s *invoiceApplicationServiceImpl) Submit(ctx context.Context, actor *entity.Actor, in CreateInvoiceApplicationInput) (*entity.InvoiceApplication, error) {
	in.InvoiceTitle = utils.SanitizeString(in.InvoiceTitle)
	if err := utils.RequireText("invoice title", in.InvoiceTitle); err != nil {
		return nil, invalid(err)
	}
	if err := utils.ValidateAmount(in.Amount); err != nil {
		return nil, invalid(err)
	}

	var app *entity.InvoiceApplication
	err := s.engine.Atomically(ctx, subjectKey(entity.SubjectQuote, in.QuoteID), func(ctx context.Context) error {
		quote, err := s.quoteRepo.GetByID(ctx, in.QuoteID)
		if err != nil {
			return err
		}
		switch quote.Status {
		case entity.QuoteStatusConfirmed, entity.QuoteStatusPartialPaid, entity.QuoteStatusPaid:
		default:
			return preconditionFailed("quote %d is %s and cannot be invoiced", quote.ID, quote.Status)
		}

		existing, err := s.invoiceRepo.ListByQuoteID(ctx, quote.ID)
		if err != nil {
			return err
		}
		invoiced := in.Amount
		for _, e := range existing {
			if e.Status == entity.InvoiceApplicationSubmitted || e.Status == entity.InvoiceApplicationApproved {
				invoiced += e.Amount
			}
		}
		if invoiced > quote.TotalAmount+amountEpsilon {
			return preconditionFailed("invoiced total %.2f would exceed quote amount %.2f", invoiced, quote.TotalAmount)
		}

		now := s.engine.Now()
		app = &entity.InvoiceApplication{
			ApplicationNo: fmt.Sprintf("%s-%s", dayPrefix("INV", now), strings.ToUpper(uuid.NewString()[:8])),
			QuoteID:       quote.ID,
			Amount:        in.Amount,
			InvoiceTitle:  in.InvoiceTitle,
			ApplicantID:   actorID(actor),
			Status:        workflow.InvoiceApplicationDefinition().Initial().String(),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		return s.invoiceRepo.Create(ctx, app)
	})
	if err != nil {
		s.logger.Error("Failed to submit invoice application", "error", err, "quote_id", in.QuoteID)
		return nil, err
	}

	s.logger.Info("Invoice application submitted", "application_no", app.ApplicationNo, "quote_id", in.QuoteID)
	return app, nil
}

func (s *invoiceApplicationServiceImpl) Get(ctx context.Context, id int64) (*entity.InvoiceApplication, error) {
	return s.invoiceRepo.GetByID(ctx, id)
}

func (s *invoiceApplicationServiceImpl) ListByQuote(ctx context.Context, quoteID int64) ([]*entity.InvoiceApplication, error) {
	return s.invoiceRepo.ListByQuoteID(ctx, quoteID)
}

func (s *invoiceApplicationServiceImpl) Audit(ctx context.Context, actor *entity.Actor, id int64, pass bool, reason string) (*workflow.TransitionResult, error) {
	action := domainwf.ActionReject
	if pass {
		action = domainwf.ActionApprove
	}
	return s.transition(ctx, actor, id, action, reason)
}

// Cancel withdraws an application. Only its applicant may do so.
func (s *invoiceApplicationServiceImpl) Cancel(ctx context.Context, actor *entity.Actor, id int64, reason string) (*workflow.TransitionResult, error) {
	app, err := s.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.ApplicantID != actorID(actor) {
		return nil, unauthorized("only the applicant may cancel invoice application %s", app.ApplicationNo)
	}
	return s.transition(ctx, actor, id, domainwf.ActionCancel, reason)
}

func (s *invoiceApplicationServiceImpl) transition(ctx context.Context, actor *entity.Actor, id int64, action domainwf.Action, reason string) (*workflow.TransitionResult, error) {
	result, err := s.engine.Transition(ctx, workflow.TransitionRequest{
		SubjectType: entity.SubjectInvoiceApplication,
		SubjectID:   id,
		Action:      action,
		Actor:       actor,
		Reason:      utils.SanitizeString(reason),
	})
	if err != nil {
		return nil, fmt.Errorf("invoice application %d %s: %w", id, action, err)
	}
	return result, nil
}

func (s *invoiceApplicationServiceImpl) onAudited(ctx context.Context, hc *workflow.HookContext) error {
	var rejectReason string
	if hc.Request.Action == domainwf.ActionReject {
		rejectReason = hc.Request.Reason
	}
	return s.invoiceRepo.SetAudit(ctx, hc.Request.SubjectID, hc.ActorID(), rejectReason)
}
