package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/garyjia/doc-lifecycle/internal/application/port"
	"github.com/garyjia/doc-lifecycle/internal/application/workflow"
	"github.com/garyjia/doc-lifecycle/internal/domain/entity"
	domainwf "github.com/garyjia/doc-lifecycle/internal/domain/workflow"
	"github.com/garyjia/doc-lifecycle/pkg/utils"
)

// CreateCorrectionInput holds the fields of a correction draft
type CreateCorrectionInput struct {
	TargetType   string                 `json:"target_type"`
	TargetID     int64                  `json:"target_id"`
	Reason       string                 `json:"reason"`
	Changes      map[string]interface{} `json:"changes"`
	OccurredDate *time.Time             `json:"occurred_date,omitempty"`
}

// CorrectionService drafts, audits and executes corrections of settled records
type CorrectionService interface {
	Create(ctx context.Context, actor *entity.Actor, in CreateCorrectionInput) (*entity.Correction, error)
	Get(ctx context.Context, id int64) (*entity.Correction, error)

	// Submit sends the draft to audit. At least one attachment is required.
	Submit(ctx context.Context, actor *entity.Actor, id int64, attachments []string) (*workflow.TransitionResult, error)

	// Approve executes the correction and returns it with the replacement record set
	Approve(ctx context.Context, actor *entity.Actor, id int64) (*entity.Correction, error)

	Reject(ctx context.Context, actor *entity.Actor, id int64, reason string) (*workflow.TransitionResult, error)
}

// CorrectionExecutor voids a correction's target record and creates its
// replacement, returning the replacement's ID
type CorrectionExecutor interface {
	Execute(ctx context.Context, hc *workflow.HookContext, c *entity.Correction, changes domainwf.Payload) (int64, error)
}

var correctionTargets = map[string]bool{
	entity.CorrectionTargetQuote:       true,
	entity.CorrectionTargetPayment:     true,
	entity.CorrectionTargetExpense:     true,
	entity.CorrectionTargetFreightBill: true,
}

type correctionServiceImpl struct {
	engine         workflow.Engine
	correctionRepo port.CorrectionRepository
	quoteRepo      port.QuoteRepository
	paymentRepo    port.PaymentRepository
	executors      map[string]CorrectionExecutor
	logger         Logger
}

// NewCorrectionService creates a new CorrectionService and binds the
// correction workflow to engine
func NewCorrectionService(
	engine workflow.Engine,
	correctionRepo port.CorrectionRepository,
	quoteRepo port.QuoteRepository,
	paymentRepo port.PaymentRepository,
	logger Logger,
) CorrectionService {
	settler := &quoteSettler{engine: engine, quoteRepo: quoteRepo, paymentRepo: paymentRepo}
	s := &correctionServiceImpl{
		engine:         engine,
		correctionRepo: correctionRepo,
		quoteRepo:      quoteRepo,
		paymentRepo:    paymentRepo,
		executors: map[string]CorrectionExecutor{
			entity.CorrectionTargetQuote:   &quoteCorrector{engine: engine, quoteRepo: quoteRepo},
			entity.CorrectionTargetPayment: &paymentCorrector{engine: engine, paymentRepo: paymentRepo, settler: settler},
		},
		logger: loggerOrNop(logger),
	}

	engine.Register(entity.SubjectCorrection, workflow.CorrectionDefinition(), correctionRepo)
	engine.RegisterHook(workflow.HookCorrectionSubmitted, s.onSubmitted)
	engine.RegisterHook(workflow.HookCorrectionExecute, s.onExecute)
	engine.RegisterHook(workflow.HookCorrectionRejected, s.onRejected)
	return s
}

func (s *correctionServiceImpl) Create(ctx context.Context, actor *entity.Actor, in CreateCorrectionInput) (*entity.Correction, error) {
	if !actor.Has(workflow.CapCorrectionSubmit.String()) {
		return nil, unauthorized("drafting a correction requires %s", workflow.CapCorrectionSubmit)
	}
	if !correctionTargets[in.TargetType] {
		return nil, preconditionFailed("unknown correction target type %q", in.TargetType)
	}
	in.Reason = utils.SanitizeString(in.Reason)
	if err := utils.RequireText("correction reason", in.Reason); err != nil {
		return nil, invalid(err)
	}
	if err := s.checkTarget(ctx, in.TargetType, in.TargetID); err != nil {
		return nil, err
	}

	changes := "{}"
	if len(in.Changes) > 0 {
		b, err := json.Marshal(in.Changes)
		if err != nil {
			return nil, preconditionFailed("changes are not serialisable: %v", err)
		}
		changes = string(b)
	}

	now := s.engine.Now()
	prefix := dayPrefix("COR", now)

	var correction *entity.Correction
	err := s.engine.Atomically(ctx, "correction-number:"+prefix, func(ctx context.Context) error {
		n, err := s.correctionRepo.CountByNumberPrefix(ctx, prefix)
		if err != nil {
			return err
		}

		correction = &entity.Correction{
			CorrectionNo: documentNumber("COR", now, n+1),
			TargetType:   in.TargetType,
			TargetID:     in.TargetID,
			Reason:       in.Reason,
			Changes:      changes,
			OccurredDate: in.OccurredDate,
			Status:       workflow.CorrectionDefinition().Initial().String(),
			CreatedBy:    actorID(actor),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		return s.correctionRepo.Create(ctx, correction)
	})
	if err != nil {
		s.logger.Error("Failed to create correction", "error", err, "target_type", in.TargetType, "target_id", in.TargetID)
		return nil, err
	}

	s.logger.Info("Correction drafted", "correction_no", correction.CorrectionNo, "target_type", in.TargetType, "target_id", in.TargetID)
	return correction, nil
}

func (s *correctionServiceImpl) Get(ctx context.Context, id int64) (*entity.Correction, error) {
	return s.correctionRepo.GetByID(ctx, id)
}

func (s *correctionServiceImpl) Submit(ctx context.Context, actor *entity.Actor, id int64, attachments []string) (*workflow.TransitionResult, error) {
	return s.transition(ctx, actor, id, domainwf.ActionSubmit, "",
		domainwf.Payload{workflow.KeyAttachments: utils.CleanList(attachments)})
}

func (s *correctionServiceImpl) Approve(ctx context.Context, actor *entity.Actor, id int64) (*entity.Correction, error) {
	if _, err := s.transition(ctx, actor, id, domainwf.ActionApprove, "", nil); err != nil {
		return nil, err
	}
	return s.correctionRepo.GetByID(ctx, id)
}

func (s *correctionServiceImpl) Reject(ctx context.Context, actor *entity.Actor, id int64, reason string) (*workflow.TransitionResult, error) {
	return s.transition(ctx, actor, id, domainwf.ActionReject, reason, nil)
}

func (s *correctionServiceImpl) transition(ctx context.Context, actor *entity.Actor, id int64, action domainwf.Action, reason string, payload domainwf.Payload) (*workflow.TransitionResult, error) {
	result, err := s.engine.Transition(ctx, workflow.TransitionRequest{
		SubjectType: entity.SubjectCorrection,
		SubjectID:   id,
		Action:      action,
		Actor:       actor,
		Reason:      utils.SanitizeString(reason),
		Payload:     payload,
	})
	if err != nil {
		return nil, fmt.Errorf("correction %d %s: %w", id, action, err)
	}
	return result, nil
}

// checkTarget verifies that targets the service can execute exist
func (s *correctionServiceImpl) checkTarget(ctx context.Context, targetType string, targetID int64) error {
	var err error
	switch targetType {
	case entity.CorrectionTargetQuote:
		_, err = s.quoteRepo.GetByID(ctx, targetID)
	case entity.CorrectionTargetPayment:
		_, err = s.paymentRepo.GetByID(ctx, targetID)
	}
	return err
}

func (s *correctionServiceImpl) onSubmitted(ctx context.Context, hc *workflow.HookContext) error {
	return s.correctionRepo.SetAttachments(ctx, hc.Request.SubjectID, hc.Request.Payload.Strings(workflow.KeyAttachments))
}

func (s *correctionServiceImpl) onExecute(ctx context.Context, hc *workflow.HookContext) error {
	c, err := s.correctionRepo.GetByID(ctx, hc.Request.SubjectID)
	if err != nil {
		return err
	}

	executor, ok := s.executors[c.TargetType]
	if !ok {
		return preconditionFailed("corrections of %s records cannot be executed", c.TargetType)
	}

	var changes domainwf.Payload
	if err := json.Unmarshal([]byte(c.Changes), &changes); err != nil {
		return preconditionFailed("correction %s has unreadable changes: %v", c.CorrectionNo, err)
	}

	newID, err := executor.Execute(ctx, hc, c, changes)
	if err != nil {
		return err
	}
	s.logger.Info("Correction executed", "correction_no", c.CorrectionNo, "target_type", c.TargetType, "new_record_id", newID)
	return s.correctionRepo.SetDecision(ctx, c.ID, hc.ActorID(), &newID)
}

func (s *correctionServiceImpl) onRejected(ctx context.Context, hc *workflow.HookContext) error {
	return s.correctionRepo.SetDecision(ctx, hc.Request.SubjectID, hc.ActorID(), nil)
}

// quoteCorrector voids the old quote and clones it with the corrected fields
type quoteCorrector struct {
	engine    workflow.Engine
	quoteRepo port.QuoteRepository
}

func (q *quoteCorrector) Execute(ctx context.Context, hc *workflow.HookContext, c *entity.Correction, changes domainwf.Payload) (int64, error) {
	old, err := q.quoteRepo.GetByID(ctx, c.TargetID)
	if err != nil {
		return 0, err
	}

	replacement := &entity.Quote{
		QuoteNo:             old.QuoteNo + "-" + c.CorrectionNo,
		CustomerName:        old.CustomerName,
		TotalAmount:         old.TotalAmount,
		Status:              old.Status,
		VoidStatus:          entity.VoidStatusNone,
		CollectorID:         old.CollectorID,
		CustomerConfirmerID: old.CustomerConfirmerID,
		FirstSubmittedAt:    old.FirstSubmittedAt,
		CreatedBy:           hc.ActorID(),
		CreatedAt:           hc.Now,
		UpdatedAt:           hc.Now,
	}
	if name := utils.SanitizeString(changes.String("customerName")); name != "" {
		replacement.CustomerName = name
	}
	if amount, ok := changes.Float("totalAmount"); ok {
		if err := utils.ValidateAmount(amount); err != nil {
			return 0, invalid(err)
		}
		replacement.TotalAmount = amount
	}
	if collector, ok := changes.Int64(workflow.KeyCollectorID); ok {
		replacement.CollectorID = &collector
	}

	if _, err := q.engine.Transition(ctx, workflow.TransitionRequest{
		SubjectType: entity.SubjectQuote,
		SubjectID:   old.ID,
		Action:      workflow.ActionVoid,
		Actor:       hc.Request.Actor,
		Reason:      fmt.Sprintf("correction %s: %s", c.CorrectionNo, c.Reason),
		Payload:     domainwf.Payload{"correctionId": c.ID},
	}); err != nil {
		return 0, err
	}

	if err := q.quoteRepo.Create(ctx, replacement); err != nil {
		return 0, err
	}
	return replacement.ID, nil
}

// paymentCorrector cancels a confirmed payment and records the corrected one
type paymentCorrector struct {
	engine      workflow.Engine
	paymentRepo port.PaymentRepository
	settler     *quoteSettler
}

func (p *paymentCorrector) Execute(ctx context.Context, hc *workflow.HookContext, c *entity.Correction, changes domainwf.Payload) (int64, error) {
	old, err := p.paymentRepo.GetByID(ctx, c.TargetID)
	if err != nil {
		return 0, err
	}

	amount := old.Amount
	if v, ok := changes.Float(workflow.KeyAmount); ok {
		if err := utils.ValidateAmount(v); err != nil {
			return 0, invalid(err)
		}
		amount = v
	}

	if _, err := p.engine.Transition(ctx, workflow.TransitionRequest{
		SubjectType: entity.SubjectPayment,
		SubjectID:   old.ID,
		Action:      workflow.ActionCorrect,
		Actor:       hc.Request.Actor,
		Reason:      fmt.Sprintf("correction %s: %s", c.CorrectionNo, c.Reason),
		Payload:     domainwf.Payload{"correctionId": c.ID},
	}); err != nil {
		return 0, err
	}

	confirmer := hc.ActorID()
	replacement := &entity.Payment{
		QuoteID:     old.QuoteID,
		Amount:      amount,
		Status:      entity.PaymentStatusConfirmed,
		SubmitterID: old.SubmitterID,
		ConfirmerID: &confirmer,
		Note:        "correction " + c.CorrectionNo,
		CreatedAt:   hc.Now,
		UpdatedAt:   hc.Now,
	}
	if err := p.paymentRepo.Create(ctx, replacement); err != nil {
		return 0, err
	}

	if err := p.settler.sync(ctx, hc.Request.Actor, old.QuoteID); err != nil {
		return 0, err
	}
	return replacement.ID, nil
}
