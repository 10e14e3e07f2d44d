package service

import (
	"context"
	"fmt"

	"github.com/garyjia/doc-lifecycle/internal/application/port"
	"github.com/garyjia/doc-lifecycle/internal/application/workflow"
	"github.com/garyjia/doc-lifecycle/internal/domain/entity"
	domainwf "github.com/garyjia/doc-lifecycle/internal/domain/workflow"
	"github.com/garyjia/doc-lifecycle/pkg/utils"
)

// VoidService cancels quotes, either through finance audit or directly
type VoidService interface {
	// Apply files a void application on behalf of the quote's collector
	Apply(ctx context.Context, actor *entity.Actor, quoteID int64, reason string, attachments []string) (*entity.VoidApplication, error)

	// Audit passes or rejects a submitted application. Passing cancels the quote.
	Audit(ctx context.Context, actor *entity.Actor, applicationID int64, pass bool, note string) (*workflow.TransitionResult, error)

	// DirectVoid cancels a quote without audit
	DirectVoid(ctx context.Context, actor *entity.Actor, quoteID int64, reason string) (*entity.VoidApplication, error)

	Get(ctx context.Context, id int64) (*entity.VoidApplication, error)
}

type voidServiceImpl struct {
	engine      workflow.Engine
	voidRepo    port.VoidApplicationRepository
	quoteRepo   port.QuoteRepository
	paymentRepo port.PaymentRepository
	invoiceRepo port.InvoiceApplicationRepository
	logger      Logger
}

// NewVoidService creates a new VoidService and binds the void workflow to engine
func NewVoidService(
	engine workflow.Engine,
	voidRepo port.VoidApplicationRepository,
	quoteRepo port.QuoteRepository,
	paymentRepo port.PaymentRepository,
	invoiceRepo port.InvoiceApplicationRepository,
	logger Logger,
) VoidService {
	s := &voidServiceImpl{
		engine:      engine,
		voidRepo:    voidRepo,
		quoteRepo:   quoteRepo,
		paymentRepo: paymentRepo,
		invoiceRepo: invoiceRepo,
		logger:      loggerOrNop(logger),
	}

	engine.Register(entity.SubjectVoidApplication, workflow.VoidApplicationDefinition(), voidRepo)
	engine.RegisterHook(workflow.HookVoidApplying, s.onApplying)
	engine.RegisterHook(workflow.HookVoidExecute, s.onExecute)
	engine.RegisterHook(workflow.HookVoidRejected, s.onRejected)
	return s
}

func (s *voidServiceImpl) Apply(ctx context.Context, actor *entity.Actor, quoteID int64, reason string, attachments []string) (*entity.VoidApplication, error) {
	reason = utils.SanitizeString(reason)
	if err := utils.RequireText("void reason", reason); err != nil {
		return nil, invalid(err)
	}

	var app *entity.VoidApplication
	err := s.engine.Atomically(ctx, subjectKey(entity.SubjectQuote, quoteID), func(ctx context.Context) error {
		quote, err := s.voidableQuote(ctx, quoteID)
		if err != nil {
			return err
		}
		if quote.CollectorID == nil || *quote.CollectorID != actorID(actor) {
			return unauthorized("only the collector of quote %d may apply to void it", quoteID)
		}
		if quote.VoidStatus == entity.VoidStatusApplying {
			return preconditionFailed("quote %d already has a void application under audit", quoteID)
		}

		app, err = s.draft(ctx, actor, quoteID, reason, utils.CleanList(attachments), false)
		if err != nil {
			return err
		}

		_, err = s.engine.Transition(ctx, workflow.TransitionRequest{
			SubjectType: entity.SubjectVoidApplication,
			SubjectID:   app.ID,
			Action:      domainwf.ActionSubmit,
			Actor:       actor,
			Reason:      reason,
		})
		return err
	})
	if err != nil {
		s.logger.Error("Failed to apply for void", "error", err, "quote_id", quoteID)
		return nil, err
	}

	s.logger.Info("Void application submitted", "application_id", app.ID, "quote_id", quoteID)
	return s.voidRepo.GetByID(ctx, app.ID)
}

func (s *voidServiceImpl) Audit(ctx context.Context, actor *entity.Actor, applicationID int64, pass bool, note string) (*workflow.TransitionResult, error) {
	action := domainwf.ActionReject
	if pass {
		action = domainwf.ActionApprove
	}

	result, err := s.engine.Transition(ctx, workflow.TransitionRequest{
		SubjectType: entity.SubjectVoidApplication,
		SubjectID:   applicationID,
		Action:      action,
		Actor:       actor,
		Reason:      utils.SanitizeString(note),
	})
	if err != nil {
		return nil, fmt.Errorf("void application %d %s: %w", applicationID, action, err)
	}
	return result, nil
}

func (s *voidServiceImpl) DirectVoid(ctx context.Context, actor *entity.Actor, quoteID int64, reason string) (*entity.VoidApplication, error) {
	reason = utils.SanitizeString(reason)

	var app *entity.VoidApplication
	err := s.engine.Atomically(ctx, subjectKey(entity.SubjectQuote, quoteID), func(ctx context.Context) error {
		if _, err := s.voidableQuote(ctx, quoteID); err != nil {
			return err
		}

		var err error
		app, err = s.draft(ctx, actor, quoteID, reason, nil, true)
		if err != nil {
			return err
		}

		_, err = s.engine.Transition(ctx, workflow.TransitionRequest{
			SubjectType: entity.SubjectVoidApplication,
			SubjectID:   app.ID,
			Action:      workflow.ActionDirectVoid,
			Actor:       actor,
			Reason:      reason,
		})
		return err
	})
	if err != nil {
		s.logger.Error("Failed to void quote directly", "error", err, "quote_id", quoteID)
		return nil, err
	}

	s.logger.Info("Quote voided directly", "application_id", app.ID, "quote_id", quoteID, "actor_id", actorID(actor))
	return s.voidRepo.GetByID(ctx, app.ID)
}

func (s *voidServiceImpl) Get(ctx context.Context, id int64) (*entity.VoidApplication, error) {
	return s.voidRepo.GetByID(ctx, id)
}

func (s *voidServiceImpl) voidableQuote(ctx context.Context, quoteID int64) (*entity.Quote, error) {
	quote, err := s.quoteRepo.GetByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if quote.Status == entity.QuoteStatusCancelled {
		return nil, preconditionFailed("quote %d is already cancelled", quoteID)
	}
	return quote, nil
}

func (s *voidServiceImpl) draft(ctx context.Context, actor *entity.Actor, quoteID int64, reason string, attachments []string, direct bool) (*entity.VoidApplication, error) {
	app := &entity.VoidApplication{
		QuoteID:     quoteID,
		ApplicantID: actorID(actor),
		Reason:      reason,
		Attachments: attachments,
		Status:      workflow.VoidApplicationDefinition().Initial().String(),
		Direct:      direct,
		CreatedAt:   s.engine.Now(),
		UpdatedAt:   s.engine.Now(),
	}
	if err := s.voidRepo.Create(ctx, app); err != nil {
		return nil, err
	}
	return app, nil
}

func (s *voidServiceImpl) onApplying(ctx context.Context, hc *workflow.HookContext) error {
	app, err := s.voidRepo.GetByID(ctx, hc.Request.SubjectID)
	if err != nil {
		return err
	}
	return s.quoteRepo.SetVoidStatus(ctx, app.QuoteID, entity.VoidStatusApplying)
}

// onExecute cancels the quote together with its unconfirmed payments and
// pending invoice applications
func (s *voidServiceImpl) onExecute(ctx context.Context, hc *workflow.HookContext) error {
	app, err := s.voidRepo.GetByID(ctx, hc.Request.SubjectID)
	if err != nil {
		return err
	}

	if _, err := s.engine.Transition(ctx, workflow.TransitionRequest{
		SubjectType: entity.SubjectQuote,
		SubjectID:   app.QuoteID,
		Action:      workflow.ActionVoid,
		Actor:       hc.Request.Actor,
		Reason:      app.Reason,
		Payload:     domainwf.Payload{"voidApplicationId": app.ID},
	}); err != nil {
		return err
	}
	if err := s.quoteRepo.SetVoidStatus(ctx, app.QuoteID, entity.VoidStatusVoided); err != nil {
		return err
	}

	payments, err := s.paymentRepo.ListByQuoteID(ctx, app.QuoteID)
	if err != nil {
		return err
	}
	for _, p := range payments {
		if !p.IsUnconfirmed() {
			continue
		}
		if err := s.cancel(ctx, hc, entity.SubjectPayment, p.ID); err != nil {
			return err
		}
	}

	invoices, err := s.invoiceRepo.ListByQuoteID(ctx, app.QuoteID)
	if err != nil {
		return err
	}
	for _, inv := range invoices {
		if !inv.IsPending() {
			continue
		}
		if err := s.cancel(ctx, hc, entity.SubjectInvoiceApplication, inv.ID); err != nil {
			return err
		}
	}

	return s.voidRepo.SetAudit(ctx, app.ID, hc.ActorID(), hc.Request.Reason)
}

func (s *voidServiceImpl) onRejected(ctx context.Context, hc *workflow.HookContext) error {
	app, err := s.voidRepo.GetByID(ctx, hc.Request.SubjectID)
	if err != nil {
		return err
	}
	if err := s.quoteRepo.SetVoidStatus(ctx, app.QuoteID, entity.VoidStatusRejected); err != nil {
		return err
	}
	return s.voidRepo.SetAudit(ctx, app.ID, hc.ActorID(), hc.Request.Reason)
}

func (s *voidServiceImpl) cancel(ctx context.Context, hc *workflow.HookContext, subjectType entity.SubjectType, id int64) error {
	_, err := s.engine.Transition(ctx, workflow.TransitionRequest{
		SubjectType: subjectType,
		SubjectID:   id,
		Action:      domainwf.ActionCancel,
		Actor:       hc.Request.Actor,
		Reason:      "quote voided",
	})
	return err
}
