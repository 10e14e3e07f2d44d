package service

import (
	"context"

	"github.com/garyjia/doc-lifecycle/internal/application/port"
	"github.com/garyjia/doc-lifecycle/internal/domain/entity"
)

// ActorResolver turns an authenticated identity into an actor with capabilities
type ActorResolver interface {
	Resolve(ctx context.Context, userID int64, roles []string) (*entity.Actor, error)
}

type actorResolverImpl struct {
	policy    port.CapabilityPolicy
	grantRepo port.CapabilityGrantRepository
}

// NewActorResolver creates a resolver combining role capabilities with
// capabilities granted through permission requests
func NewActorResolver(policy port.CapabilityPolicy, grantRepo port.CapabilityGrantRepository) ActorResolver {
	return &actorResolverImpl{policy: policy, grantRepo: grantRepo}
}

func (r *actorResolverImpl) Resolve(ctx context.Context, userID int64, roles []string) (*entity.Actor, error) {
	var caps []string
	if r.policy != nil {
		caps = append(caps, r.policy.CapabilitiesFor(roles)...)
	}
	if r.grantRepo != nil && userID != 0 {
		granted, err := r.grantRepo.ListByUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		caps = append(caps, granted...)
	}
	return entity.NewActor(userID, roles, caps...), nil
}
