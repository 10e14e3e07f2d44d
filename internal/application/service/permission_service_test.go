package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/doc-lifecycle/internal/domain/entity"
	domainwf "github.com/garyjia/doc-lifecycle/internal/domain/workflow"
)

type stubPolicy map[string][]string

func (p stubPolicy) CapabilitiesFor(roles []string) []string {
	var out []string
	for _, r := range roles {
		out = append(out, p[r]...)
	}
	return out
}

func (p stubPolicy) RequiredCapability(entity.SubjectType, string) (string, bool) {
	return "", false
}

func TestPermissionService_OneOpenRequestPerApplicant(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.permissions.Request(ctx, sales, 0, []string{" ", ""}, "need it")
	assert.ErrorIs(t, err, domainwf.ErrPreconditionFailed)

	req, err := e.permissions.Request(ctx, sales, 0, []string{"quote.void.direct", "quote.void.direct"}, "covering for admin")
	require.NoError(t, err)
	assert.Equal(t, entity.PermissionRequestPending, req.Status)
	assert.Equal(t, sales.ID, req.TargetUserID)
	assert.Equal(t, []string{"quote.void.direct"}, req.Capabilities)

	_, err = e.permissions.Request(ctx, sales, 0, []string{"invoice.audit"}, "another")
	assert.ErrorIs(t, err, domainwf.ErrPreconditionFailed)

	// Other applicants are unaffected
	_, err = e.permissions.Request(ctx, finance, 0, []string{"invoice.audit"}, "month end")
	require.NoError(t, err)
}

func TestPermissionService_ApproveGrantsWithSnapshots(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	require.NoError(t, e.grantRepo.Grant(ctx, sales.ID, []string{"payment.submit"}, testNow))

	req, err := e.permissions.Request(ctx, sales, 0, []string{"quote.void.direct"}, "covering for admin")
	require.NoError(t, err)

	_, err = e.permissions.Decide(ctx, sales, req.ID, domainwf.ActionApprove, "")
	assert.ErrorIs(t, err, domainwf.ErrUnauthorized)

	req, err = e.permissions.Decide(ctx, admin, req.ID, domainwf.ActionApprove, "ok for one week")
	require.NoError(t, err)
	assert.Equal(t, entity.PermissionRequestApproved, req.Status)
	require.NotNil(t, req.HandledBy)
	assert.Equal(t, admin.ID, *req.HandledBy)
	assert.Equal(t, "ok for one week", req.HandleNote)
	assert.Equal(t, []string{"payment.submit"}, req.SnapshotBefore)
	assert.Equal(t, []string{"payment.submit", "quote.void.direct"}, req.SnapshotAfter)

	granted, err := e.grantRepo.ListByUser(ctx, sales.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"payment.submit", "quote.void.direct"}, granted)

	// Closed requests free the applicant
	_, err = e.permissions.Request(ctx, sales, 0, []string{"invoice.audit"}, "next")
	require.NoError(t, err)
}

func TestPermissionService_ReturnAndResubmit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	req, err := e.permissions.Request(ctx, sales, 0, []string{"invoice.audit"}, "month end")
	require.NoError(t, err)

	_, err = e.permissions.Decide(ctx, admin, req.ID, domainwf.ActionReturn, "")
	assert.ErrorIs(t, err, domainwf.ErrPreconditionFailed)

	req, err = e.permissions.Decide(ctx, admin, req.ID, domainwf.ActionReturn, "state the period")
	require.NoError(t, err)
	assert.Equal(t, entity.PermissionRequestReturned, req.Status)

	// Still open while returned
	_, err = e.permissions.Request(ctx, sales, 0, []string{"invoice.audit"}, "again")
	assert.ErrorIs(t, err, domainwf.ErrPreconditionFailed)

	_, err = e.permissions.Decide(ctx, admin, req.ID, domainwf.ActionResubmit, "")
	assert.ErrorIs(t, err, domainwf.ErrPreconditionFailed)

	_, err = e.permissions.Resubmit(ctx, admin, req.ID)
	assert.ErrorIs(t, err, domainwf.ErrUnauthorized)

	req, err = e.permissions.Resubmit(ctx, sales, req.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.PermissionRequestPending, req.Status)

	req, err = e.permissions.Decide(ctx, admin, req.ID, domainwf.ActionReject, "not needed")
	require.NoError(t, err)
	assert.Equal(t, entity.PermissionRequestRejected, req.Status)

	granted, err := e.grantRepo.ListByUser(ctx, sales.ID)
	require.NoError(t, err)
	assert.Empty(t, granted)
}

func TestActorResolver_CombinesRolesAndGrants(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	require.NoError(t, e.grantRepo.Grant(ctx, 55, []string{"invoice.audit"}, testNow))

	resolver := NewActorResolver(stubPolicy{"sales": {"quote.submit"}}, e.grantRepo)

	actor, err := resolver.Resolve(ctx, 55, []string{"sales", "unknown"})
	require.NoError(t, err)
	assert.Equal(t, int64(55), actor.ID)
	assert.Equal(t, []string{"invoice.audit", "quote.submit"}, actor.Capabilities())

	anonymous, err := resolver.Resolve(ctx, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, anonymous.Capabilities())
}
