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

// PaymentService records customer payments and keeps the quote's paid state in step
type PaymentService interface {
	Create(ctx context.Context, actor *entity.Actor, quoteID int64, amount float64) (*entity.Payment, error)
	Get(ctx context.Context, id int64) (*entity.Payment, error)
	ListByQuote(ctx context.Context, quoteID int64) ([]*entity.Payment, error)
	Submit(ctx context.Context, actor *entity.Actor, id int64) (*workflow.TransitionResult, error)
	Confirm(ctx context.Context, actor *entity.Actor, id int64, note string) (*workflow.TransitionResult, error)
	Return(ctx context.Context, actor *entity.Actor, id int64, reason string) (*workflow.TransitionResult, error)
	Cancel(ctx context.Context, actor *entity.Actor, id int64, reason string) (*workflow.TransitionResult, error)
}

type paymentServiceImpl struct {
	engine      workflow.Engine
	paymentRepo port.PaymentRepository
	quoteRepo   port.QuoteRepository
	settler     *quoteSettler
	logger      Logger
}

// NewPaymentService creates a new PaymentService and binds the payment workflow to engine
func NewPaymentService(
	engine workflow.Engine,
	paymentRepo port.PaymentRepository,
	quoteRepo port.QuoteRepository,
	logger Logger,
) PaymentService {
	s := &paymentServiceImpl{
		engine:      engine,
		paymentRepo: paymentRepo,
		quoteRepo:   quoteRepo,
		settler:     &quoteSettler{engine: engine, quoteRepo: quoteRepo, paymentRepo: paymentRepo},
		logger:      loggerOrNop(logger),
	}

	engine.Register(entity.SubjectPayment, workflow.PaymentDefinition(), paymentRepo)
	engine.RegisterHook(workflow.HookPaymentConfirmed, s.onConfirmed)
	engine.RegisterHook(workflow.HookPaymentHandled, s.onHandled)
	return s
}

// Create records a DRAFT payment against a confirmed quote
func (s *paymentServiceImpl) Create(ctx context.Context, actor *entity.Actor, quoteID int64, amount float64) (*entity.Payment, error) {
	if !actor.Has(workflow.CapPaymentSubmit.String()) {
		return nil, unauthorized("recording a payment requires %s", workflow.CapPaymentSubmit)
	}
	if err := utils.ValidateAmount(amount); err != nil {
		return nil, invalid(err)
	}

	quote, err := s.quoteRepo.GetByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if quote.Status != entity.QuoteStatusConfirmed && quote.Status != entity.QuoteStatusPartialPaid {
		return nil, preconditionFailed("quote %d is %s and cannot take payments", quoteID, quote.Status)
	}

	payment := &entity.Payment{
		QuoteID:     quoteID,
		Amount:      amount,
		Status:      workflow.PaymentDefinition().Initial().String(),
		SubmitterID: actorID(actor),
		CreatedAt:   s.engine.Now(),
		UpdatedAt:   s.engine.Now(),
	}
	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		s.logger.Error("Failed to create payment", "error", err, "quote_id", quoteID)
		return nil, err
	}

	s.logger.Info("Payment recorded", "payment_id", payment.ID, "quote_id", quoteID, "amount", amount)
	return payment, nil
}

func (s *paymentServiceImpl) Get(ctx context.Context, id int64) (*entity.Payment, error) {
	return s.paymentRepo.GetByID(ctx, id)
}

func (s *paymentServiceImpl) ListByQuote(ctx context.Context, quoteID int64) ([]*entity.Payment, error) {
	return s.paymentRepo.ListByQuoteID(ctx, quoteID)
}

func (s *paymentServiceImpl) Submit(ctx context.Context, actor *entity.Actor, id int64) (*workflow.TransitionResult, error) {
	return s.transition(ctx, actor, id, domainwf.ActionSubmit, "")
}

// Confirm marks the payment received and moves the quote to PARTIAL_PAID or PAID
func (s *paymentServiceImpl) Confirm(ctx context.Context, actor *entity.Actor, id int64, note string) (*workflow.TransitionResult, error) {
	return s.transition(ctx, actor, id, workflow.ActionConfirm, note)
}

func (s *paymentServiceImpl) Return(ctx context.Context, actor *entity.Actor, id int64, reason string) (*workflow.TransitionResult, error) {
	return s.transition(ctx, actor, id, domainwf.ActionReturn, reason)
}

// Cancel withdraws an unconfirmed payment. Only its submitter may do so; a
// voided quote cancels its payments through the void hook instead.
func (s *paymentServiceImpl) Cancel(ctx context.Context, actor *entity.Actor, id int64, reason string) (*workflow.TransitionResult, error) {
	payment, err := s.paymentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment.SubmitterID == 0 || payment.SubmitterID != actorID(actor) {
		return nil, unauthorized("only the submitter may cancel payment %d", id)
	}
	return s.transition(ctx, actor, id, domainwf.ActionCancel, reason)
}

func (s *paymentServiceImpl) transition(ctx context.Context, actor *entity.Actor, id int64, action domainwf.Action, reason string) (*workflow.TransitionResult, error) {
	result, err := s.engine.Transition(ctx, workflow.TransitionRequest{
		SubjectType: entity.SubjectPayment,
		SubjectID:   id,
		Action:      action,
		Actor:       actor,
		Reason:      utils.SanitizeString(reason),
	})
	if err != nil {
		return nil, fmt.Errorf("payment %d %s: %w", id, action, err)
	}
	return result, nil
}

func (s *paymentServiceImpl) onConfirmed(ctx context.Context, hc *workflow.HookContext) error {
	payment, err := s.paymentRepo.GetByID(ctx, hc.Request.SubjectID)
	if err != nil {
		return err
	}
	if err := s.paymentRepo.SetConfirmer(ctx, payment.ID, hc.ActorID(), hc.Request.Reason); err != nil {
		return err
	}
	return s.settler.sync(ctx, hc.Request.Actor, payment.QuoteID)
}

func (s *paymentServiceImpl) onHandled(ctx context.Context, hc *workflow.HookContext) error {
	return s.paymentRepo.SetConfirmer(ctx, hc.Request.SubjectID, hc.ActorID(), hc.Request.Reason)
}

// quoteSettler derives a quote's paid state from its confirmed payments
type quoteSettler struct {
	engine      workflow.Engine
	quoteRepo   port.QuoteRepository
	paymentRepo port.PaymentRepository
}

// sync moves the quote to PARTIAL_PAID or PAID to match the sum of its
// confirmed payments, in either direction. It must run inside the unit that changed the payments.
func (q *quoteSettler) sync(ctx context.Context, actor *entity.Actor, quoteID int64) error {
	quote, err := q.quoteRepo.GetByID(ctx, quoteID)
	if err != nil {
		return err
	}
	switch quote.Status {
	case entity.QuoteStatusConfirmed, entity.QuoteStatusPartialPaid, entity.QuoteStatusPaid:
	default:
		return nil
	}

	paid, err := q.paymentRepo.SumConfirmed(ctx, quoteID)
	if err != nil {
		return err
	}

	var action domainwf.Action
	switch {
	case paid+amountEpsilon >= quote.TotalAmount:
		action = workflow.ActionPayFull
	case paid > 0:
		action = workflow.ActionPayPartial
	default:
		return nil
	}

	_, err = q.engine.Transition(ctx, workflow.TransitionRequest{
		SubjectType: entity.SubjectQuote,
		SubjectID:   quoteID,
		Action:      action,
		Actor:       actor,
		Payload:     domainwf.Payload{"paidAmount": paid},
	})
	return err
}
