package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/garyjia/doc-lifecycle/internal/application/port"
	"github.com/garyjia/doc-lifecycle/internal/application/workflow"
	"github.com/garyjia/doc-lifecycle/internal/domain/entity"
	domainwf "github.com/garyjia/doc-lifecycle/internal/domain/workflow"
	"github.com/garyjia/doc-lifecycle/pkg/utils"
)

// PermissionService handles requests for additional capabilities
type PermissionService interface {
	// Request opens a request. An applicant may have one open request at a time.
	Request(ctx context.Context, actor *entity.Actor, targetUserID int64, capabilities []string, reason string) (*entity.PermissionRequest, error)

	// Decide approves, rejects or returns a pending request
	Decide(ctx context.Context, actor *entity.Actor, id int64, decision domainwf.Action, note string) (*entity.PermissionRequest, error)

	// Resubmit sends a returned request back for decision
	Resubmit(ctx context.Context, actor *entity.Actor, id int64) (*entity.PermissionRequest, error)

	Get(ctx context.Context, id int64) (*entity.PermissionRequest, error)
}

type permissionServiceImpl struct {
	engine      workflow.Engine
	requestRepo port.PermissionRequestRepository
	grantRepo   port.CapabilityGrantRepository
	logger      Logger
}

// NewPermissionService creates a new PermissionService and binds the
// permission request workflow to engine
func NewPermissionService(
	engine workflow.Engine,
	requestRepo port.PermissionRequestRepository,
	grantRepo port.CapabilityGrantRepository,
	logger Logger,
) PermissionService {
	s := &permissionServiceImpl{
		engine:      engine,
		requestRepo: requestRepo,
		grantRepo:   grantRepo,
		logger:      loggerOrNop(logger),
	}

	engine.Register(entity.SubjectPermissionRequest, workflow.PermissionRequestDefinition(), requestRepo)
	engine.RegisterHook(workflow.HookPermissionGrant, s.onGrant)
	engine.RegisterHook(workflow.HookPermissionHandled, s.onHandled)
	return s
}

func (s *permissionServiceImpl) Request(ctx context.Context, actor *entity.Actor, targetUserID int64, capabilities []string, reason string) (*entity.PermissionRequest, error) {
	if actor == nil {
		return nil, unauthorized("permission requests need an identified applicant")
	}
	capabilities = utils.CleanList(capabilities)
	if len(capabilities) == 0 {
		return nil, preconditionFailed("at least one capability is required")
	}
	reason = utils.SanitizeString(reason)
	if err := utils.RequireText("request reason", reason); err != nil {
		return nil, invalid(err)
	}
	if targetUserID == 0 {
		targetUserID = actor.ID
	}

	var req *entity.PermissionRequest
	err := s.engine.Atomically(ctx, "permission-applicant:"+strconv.FormatInt(actor.ID, 10), func(ctx context.Context) error {
		open, err := s.requestRepo.FindOpenByApplicant(ctx, actor.ID)
		if err != nil {
			return err
		}
		if open != nil {
			return preconditionFailed("applicant %d already has open request %d", actor.ID, open.ID)
		}

		req = &entity.PermissionRequest{
			ApplicantID:  actor.ID,
			TargetUserID: targetUserID,
			Capabilities: capabilities,
			Reason:       reason,
			Status:       workflow.PermissionRequestDefinition().Initial().String(),
			CreatedAt:    s.engine.Now(),
			UpdatedAt:    s.engine.Now(),
		}
		return s.requestRepo.Create(ctx, req)
	})
	if err != nil {
		s.logger.Error("Failed to open permission request", "error", err, "applicant_id", actor.ID)
		return nil, err
	}

	s.logger.Info("Permission request opened", "request_id", req.ID, "applicant_id", actor.ID, "capabilities", capabilities)
	return req, nil
}

func (s *permissionServiceImpl) Decide(ctx context.Context, actor *entity.Actor, id int64, decision domainwf.Action, note string) (*entity.PermissionRequest, error) {
	switch decision {
	case domainwf.ActionApprove, domainwf.ActionReject, domainwf.ActionReturn:
	default:
		return nil, preconditionFailed("unknown permission decision %q", decision)
	}

	if err := s.transition(ctx, actor, id, decision, note); err != nil {
		return nil, err
	}
	return s.requestRepo.GetByID(ctx, id)
}

func (s *permissionServiceImpl) Resubmit(ctx context.Context, actor *entity.Actor, id int64) (*entity.PermissionRequest, error) {
	req, err := s.requestRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.ApplicantID != actorID(actor) {
		return nil, unauthorized("only the applicant may resubmit permission request %d", id)
	}

	if err := s.transition(ctx, actor, id, domainwf.ActionResubmit, ""); err != nil {
		return nil, err
	}
	return s.requestRepo.GetByID(ctx, id)
}

func (s *permissionServiceImpl) Get(ctx context.Context, id int64) (*entity.PermissionRequest, error) {
	return s.requestRepo.GetByID(ctx, id)
}

func (s *permissionServiceImpl) transition(ctx context.Context, actor *entity.Actor, id int64, action domainwf.Action, reason string) error {
	_, err := s.engine.Transition(ctx, workflow.TransitionRequest{
		SubjectType: entity.SubjectPermissionRequest,
		SubjectID:   id,
		Action:      action,
		Actor:       actor,
		Reason:      utils.SanitizeString(reason),
	})
	if err != nil {
		return fmt.Errorf("permission request %d %s: %w", id, action, err)
	}
	return nil
}

// onGrant applies the requested capabilities and keeps before and after
// snapshots of the target user's grants
func (s *permissionServiceImpl) onGrant(ctx context.Context, hc *workflow.HookContext) error {
	req, err := s.requestRepo.GetByID(ctx, hc.Request.SubjectID)
	if err != nil {
		return err
	}

	before, err := s.grantRepo.ListByUser(ctx, req.TargetUserID)
	if err != nil {
		return err
	}
	if err := s.grantRepo.Grant(ctx, req.TargetUserID, req.Capabilities, hc.Now); err != nil {
		return err
	}
	after, err := s.grantRepo.ListByUser(ctx, req.TargetUserID)
	if err != nil {
		return err
	}

	return s.requestRepo.SetDecision(ctx, req.ID, hc.ActorID(), hc.Request.Reason, before, after)
}

func (s *permissionServiceImpl) onHandled(ctx context.Context, hc *workflow.HookContext) error {
	return s.requestRepo.SetDecision(ctx, hc.Request.SubjectID, hc.ActorID(), hc.Request.Reason, nil, nil)
}
