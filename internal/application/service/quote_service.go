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

// CreateQuoteInput holds the fields of a new quote
type CreateQuoteInput struct {
	QuoteNo      string  `json:"quote_no"`
	CustomerName string  `json:"customer_name"`
	TotalAmount  float64 `json:"total_amount"`
	CollectorID  *int64  `json:"collector_id,omitempty"`
}

// AuditDecision is finance's verdict on a submitted quote
type AuditDecision struct {
	Pass           bool   `json:"pass"`
	NewCollectorID *int64 `json:"new_collector_id,omitempty"`
	Reason         string `json:"reason"`
}

// QuoteService drives the quote approval workflow
type QuoteService interface {
	Create(ctx context.Context, actor *entity.Actor, in CreateQuoteInput) (*entity.Quote, error)
	Get(ctx context.Context, id int64) (*entity.Quote, error)
	Submit(ctx context.Context, actor *entity.Actor, id int64, customerConfirmerID *int64) (*workflow.TransitionResult, error)
	FinanceAudit(ctx context.Context, actor *entity.Actor, id int64, decision AuditDecision) (*workflow.TransitionResult, error)
	AssignCollector(ctx context.Context, actor *entity.Actor, id int64, collectorID int64) (*workflow.TransitionResult, error)
	Fallback(ctx context.Context, actor *entity.Actor, id int64, reason string) (*workflow.TransitionResult, error)
}

type quoteServiceImpl struct {
	engine    workflow.Engine
	quoteRepo port.QuoteRepository
	logger    Logger
}

// NewQuoteService creates a new QuoteService and binds the quote workflow to engine
func NewQuoteService(
	engine workflow.Engine,
	quoteRepo port.QuoteRepository,
	logger Logger,
) QuoteService {
	s := &quoteServiceImpl{
		engine:    engine,
		quoteRepo: quoteRepo,
		logger:    loggerOrNop(logger),
	}

	engine.Register(entity.SubjectQuote, workflow.QuoteDefinition(), quoteRepo)
	engine.RegisterHook(workflow.HookQuoteSubmitted, s.onSubmitted)
	engine.RegisterHook(workflow.HookQuoteCollector, s.onCollector)
	return s
}

// Create creates a quote in DRAFT
func (s *quoteServiceImpl) Create(ctx context.Context, actor *entity.Actor, in CreateQuoteInput) (*entity.Quote, error) {
	in.QuoteNo = utils.SanitizeString(in.QuoteNo)
	in.CustomerName = utils.SanitizeString(in.CustomerName)
	if err := utils.RequireText("quote number", in.QuoteNo); err != nil {
		return nil, invalid(err)
	}
	if err := utils.RequireText("customer name", in.CustomerName); err != nil {
		return nil, invalid(err)
	}
	if err := utils.ValidateAmount(in.TotalAmount); err != nil {
		return nil, invalid(err)
	}

	quote := &entity.Quote{
		QuoteNo:      in.QuoteNo,
		CustomerName: in.CustomerName,
		TotalAmount:  in.TotalAmount,
		Status:       workflow.QuoteDefinition().Initial().String(),
		VoidStatus:   entity.VoidStatusNone,
		CollectorID:  in.CollectorID,
		CreatedBy:    actorID(actor),
		CreatedAt:    s.engine.Now(),
		UpdatedAt:    s.engine.Now(),
	}
	if err := s.quoteRepo.Create(ctx, quote); err != nil {
		s.logger.Error("Failed to create quote", "error", err, "quote_no", in.QuoteNo)
		return nil, err
	}

	s.logger.Info("Quote created", "quote_id", quote.ID, "quote_no", quote.QuoteNo)
	return quote, nil
}

// Get retrieves a quote by ID
func (s *quoteServiceImpl) Get(ctx context.Context, id int64) (*entity.Quote, error) {
	return s.quoteRepo.GetByID(ctx, id)
}

// Submit sends a draft or returned quote to finance
func (s *quoteServiceImpl) Submit(ctx context.Context, actor *entity.Actor, id int64, customerConfirmerID *int64) (*workflow.TransitionResult, error) {
	var payload domainwf.Payload
	if customerConfirmerID != nil {
		payload = domainwf.Payload{workflow.KeyConfirmerID: *customerConfirmerID}
	}
	return s.transition(ctx, actor, id, domainwf.ActionSubmit, "", payload)
}

// FinanceAudit approves or rejects a submitted quote. An approval may hand
// the quote to a new collector in the same step.
func (s *quoteServiceImpl) FinanceAudit(ctx context.Context, actor *entity.Actor, id int64, decision AuditDecision) (*workflow.TransitionResult, error) {
	if !decision.Pass {
		return s.transition(ctx, actor, id, domainwf.ActionReject, decision.Reason, nil)
	}

	var payload domainwf.Payload
	if decision.NewCollectorID != nil {
		payload = domainwf.Payload{workflow.KeyCollectorID: *decision.NewCollectorID}
	}
	return s.transition(ctx, actor, id, domainwf.ActionApprove, decision.Reason, payload)
}

// AssignCollector hands a confirmed quote to another collector
func (s *quoteServiceImpl) AssignCollector(ctx context.Context, actor *entity.Actor, id int64, collectorID int64) (*workflow.TransitionResult, error) {
	if collectorID <= 0 {
		return nil, preconditionFailed("collector id must be positive")
	}
	return s.transition(ctx, actor, id, workflow.ActionAssignCollector, "",
		domainwf.Payload{workflow.KeyCollectorID: collectorID})
}

// Fallback returns a quote to its previous stage
func (s *quoteServiceImpl) Fallback(ctx context.Context, actor *entity.Actor, id int64, reason string) (*workflow.TransitionResult, error) {
	return s.transition(ctx, actor, id, workflow.ActionFallback, reason, nil)
}

func (s *quoteServiceImpl) transition(ctx context.Context, actor *entity.Actor, id int64, action domainwf.Action, reason string, payload domainwf.Payload) (*workflow.TransitionResult, error) {
	result, err := s.engine.Transition(ctx, workflow.TransitionRequest{
		SubjectType: entity.SubjectQuote,
		SubjectID:   id,
		Action:      action,
		Actor:       actor,
		Reason:      utils.SanitizeString(reason),
		Payload:     payload,
	})
	if err != nil {
		return nil, fmt.Errorf("quote %d %s: %w", id, action, err)
	}
	return result, nil
}

func (s *quoteServiceImpl) onSubmitted(ctx context.Context, hc *workflow.HookContext) error {
	var confirmer *int64
	if id, ok := hc.Request.Payload.Int64(workflow.KeyConfirmerID); ok {
		confirmer = &id
	}
	return s.quoteRepo.SetSubmission(ctx, hc.Request.SubjectID, confirmer, hc.Now)
}

func (s *quoteServiceImpl) onCollector(ctx context.Context, hc *workflow.HookContext) error {
	collectorID, ok := hc.Request.Payload.Int64(workflow.KeyCollectorID)
	if !ok {
		return nil
	}
	return s.quoteRepo.SetCollector(ctx, hc.Request.SubjectID, collectorID)
}
