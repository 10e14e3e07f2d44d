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

// Settlement closes a repair
type Settlement struct {
	Details       string   `json:"details"`
	RepairFee     float64  `json:"repair_fee"`
	PenaltyAmount *float64 `json:"penalty_amount,omitempty"`
}

// DamageService tracks damaged goods through repair or compensation
type DamageService interface {
	Create(ctx context.Context, actor *entity.Actor, behavior, description string) (*entity.DamageRecord, error)
	Get(ctx context.Context, id int64) (*entity.DamageRecord, error)

	// UpdateRepairStage moves a REPAIR record to stage. Reaching SETTLED
	// requires a settlement.
	UpdateRepairStage(ctx context.Context, actor *entity.Actor, id int64, stage string, settlement *Settlement) (*workflow.TransitionResult, error)

	// ConfirmCompensation marks a COMPENSATION record paid
	ConfirmCompensation(ctx context.Context, actor *entity.Actor, id int64, amount float64, proofURL string) (*workflow.TransitionResult, error)
}

type damageServiceImpl struct {
	engine     workflow.Engine
	damageRepo port.DamageRecordRepository
	logger     Logger
}

// NewDamageService creates a new DamageService and binds the repair and
// compensation workflows to engine
func NewDamageService(
	engine workflow.Engine,
	damageRepo port.DamageRecordRepository,
	logger Logger,
) DamageService {
	s := &damageServiceImpl{
		engine:     engine,
		damageRepo: damageRepo,
		logger:     loggerOrNop(logger),
	}

	engine.Register(entity.SubjectDamageRepair, workflow.DamageRepairDefinition(), damageRepo.RepairStages())
	engine.Register(entity.SubjectDamageCompensation, workflow.DamageCompensationDefinition(), damageRepo.Compensations())
	engine.RegisterHook(workflow.HookDamageOperator, s.onOperator)
	engine.RegisterHook(workflow.HookDamageSettled, s.onSettled)
	engine.RegisterHook(workflow.HookCompensationPaid, s.onCompensationPaid)
	return s
}

func (s *damageServiceImpl) Create(ctx context.Context, actor *entity.Actor, behavior, description string) (*entity.DamageRecord, error) {
	record := &entity.DamageRecord{
		Behavior:    behavior,
		Description: utils.SanitizeString(description),
		CreatedBy:   actorID(actor),
		CreatedAt:   s.engine.Now(),
		UpdatedAt:   s.engine.Now(),
	}

	switch behavior {
	case entity.DamageBehaviorRepair:
		record.RepairStage = workflow.DamageRepairDefinition().Initial().String()
	case entity.DamageBehaviorCompensation:
		record.CompensationStatus = workflow.DamageCompensationDefinition().Initial().String()
	default:
		return nil, preconditionFailed("unknown damage behaviour %q", behavior)
	}

	if err := s.damageRepo.Create(ctx, record); err != nil {
		s.logger.Error("Failed to create damage record", "error", err, "behavior", behavior)
		return nil, err
	}
	return record, nil
}

func (s *damageServiceImpl) Get(ctx context.Context, id int64) (*entity.DamageRecord, error) {
	return s.damageRepo.GetByID(ctx, id)
}

func (s *damageServiceImpl) UpdateRepairStage(ctx context.Context, actor *entity.Actor, id int64, stage string, settlement *Settlement) (*workflow.TransitionResult, error) {
	def, err := s.engine.Definition(entity.SubjectDamageRepair)
	if err != nil {
		return nil, err
	}

	var payload domainwf.Payload
	if settlement != nil {
		payload = domainwf.Payload{
			workflow.KeySettlementDetails: utils.SanitizeString(settlement.Details),
			workflow.KeyRepairFee:         settlement.RepairFee,
		}
		if settlement.PenaltyAmount != nil {
			payload[workflow.KeyPenaltyAmount] = *settlement.PenaltyAmount
		}
	}

	var result *workflow.TransitionResult
	err = s.engine.Atomically(ctx, subjectKey(entity.SubjectDamageRepair, id), func(ctx context.Context) error {
		record, err := s.damageRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if record.Behavior != entity.DamageBehaviorRepair {
			return preconditionFailed("damage record %d is handled by %s, not repair", id, record.Behavior)
		}

		action, ok := def.ActionTo(domainwf.State(record.RepairStage), domainwf.State(stage))
		if !ok {
			return fmt.Errorf("%w: repair of damage record %d cannot move from %s to %s",
				domainwf.ErrInvalidTransition, id, record.RepairStage, stage)
		}

		result, err = s.engine.Transition(ctx, workflow.TransitionRequest{
			SubjectType: entity.SubjectDamageRepair,
			SubjectID:   id,
			Action:      action,
			Actor:       actor,
			Payload:     payload,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *damageServiceImpl) ConfirmCompensation(ctx context.Context, actor *entity.Actor, id int64, amount float64, proofURL string) (*workflow.TransitionResult, error) {
	var result *workflow.TransitionResult
	err := s.engine.Atomically(ctx, subjectKey(entity.SubjectDamageCompensation, id), func(ctx context.Context) error {
		record, err := s.damageRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if record.Behavior != entity.DamageBehaviorCompensation {
			return preconditionFailed("damage record %d is handled by %s, not compensation", id, record.Behavior)
		}

		result, err = s.engine.Transition(ctx, workflow.TransitionRequest{
			SubjectType: entity.SubjectDamageCompensation,
			SubjectID:   id,
			Action:      workflow.ActionConfirm,
			Actor:       actor,
			Payload: domainwf.Payload{
				workflow.KeyAmount:   amount,
				workflow.KeyProofURL: utils.SanitizeString(proofURL),
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *damageServiceImpl) onOperator(ctx context.Context, hc *workflow.HookContext) error {
	return s.damageRepo.SetOperator(ctx, hc.Request.SubjectID, hc.ActorID())
}

func (s *damageServiceImpl) onSettled(ctx context.Context, hc *workflow.HookContext) error {
	fee, _ := hc.Request.Payload.Float(workflow.KeyRepairFee)
	var penalty *float64
	if v, ok := hc.Request.Payload.Float(workflow.KeyPenaltyAmount); ok {
		penalty = &v
	}
	return s.damageRepo.SetSettlement(ctx, hc.Request.SubjectID,
		hc.Request.Payload.String(workflow.KeySettlementDetails), fee, penalty, hc.ActorID())
}

func (s *damageServiceImpl) onCompensationPaid(ctx context.Context, hc *workflow.HookContext) error {
	amount, _ := hc.Request.Payload.Float(workflow.KeyAmount)
	return s.damageRepo.SetCompensation(ctx, hc.Request.SubjectID, amount,
		hc.Request.Payload.String(workflow.KeyProofURL), hc.ActorID())
}
