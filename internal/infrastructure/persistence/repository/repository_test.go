package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/garyjia/doc-lifecycle/internal/domain/entity"
	"github.com/garyjia/doc-lifecycle/internal/domain/workflow"
	"github.com/garyjia/doc-lifecycle/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/doc-lifecycle/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHistoryRepository_AppendAndList(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewHistoryRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	subject := entity.SubjectRef{Type: entity.SubjectQuote, ID: 7}
	for i, action := range []string{"SUBMIT", "APPROVE"} {
		rec := &entity.TransitionRecord{
			SubjectType:    subject.Type,
			SubjectID:      subject.ID,
			ActorID:        int64(i + 1),
			Action:         action,
			PreviousStatus: "A",
			NewStatus:      "B",
			CreatedAt:      time.Date(2024, 3, 1, 10, i, 0, 0, time.UTC),
		}
		require.NoError(t, repo.Append(ctx, rec))
		assert.NotZero(t, rec.ID)
	}
	require.NoError(t, repo.Append(ctx, &entity.TransitionRecord{
		SubjectType: entity.SubjectPayment, SubjectID: 7, Action: "SUBMIT", PreviousStatus: "DRAFT", NewStatus: "SUBMITTED",
	}))

	records, err := repo.ListBySubject(ctx, subject)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "APPROVE", records[0].Action, "newest first")
	assert.Equal(t, "SUBMIT", records[1].Action)
	assert.Equal(t, entity.SubjectQuote, records[0].SubjectType)

	empty, err := repo.ListBySubject(ctx, entity.SubjectRef{Type: entity.SubjectQuote, ID: 99})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestHistoryRepository_RejectsRewrites(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewHistoryRepository(db.DB, zap.NewNop())
	require.NoError(t, repo.Append(context.Background(), &entity.TransitionRecord{
		SubjectType: entity.SubjectQuote, SubjectID: 1, Action: "SUBMIT", PreviousStatus: "DRAFT", NewStatus: "APPROVAL_PENDING",
	}))

	_, err := db.Exec(`UPDATE transition_history SET new_status = 'PAID'`)
	assert.ErrorContains(t, err, "append-only")
	_, err = db.Exec(`DELETE FROM transition_history`)
	assert.ErrorContains(t, err, "append-only")
}

func TestQuoteRepository_StatusCompareAndSet(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewQuoteRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	q := &entity.Quote{QuoteNo: "Q-001", CustomerName: "ACME", TotalAmount: 100, Status: entity.QuoteStatusDraft, CreatedBy: 1}
	require.NoError(t, repo.Create(ctx, q))

	require.NoError(t, repo.UpdateStatus(ctx, q.ID, entity.QuoteStatusDraft, entity.QuoteStatusApprovalPending))

	err := repo.UpdateStatus(ctx, q.ID, entity.QuoteStatusDraft, entity.QuoteStatusApprovalPending)
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition, "stale from status")

	err = repo.UpdateStatus(ctx, 404, entity.QuoteStatusDraft, entity.QuoteStatusApprovalPending)
	assert.ErrorIs(t, err, workflow.ErrSubjectNotFound)

	_, err = repo.GetStatus(ctx, 404)
	assert.ErrorIs(t, err, workflow.ErrSubjectNotFound)

	confirmer := int64(9)
	first := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, repo.SetSubmission(ctx, q.ID, &confirmer, first))
	require.NoError(t, repo.SetSubmission(ctx, q.ID, nil, first.Add(time.Hour)))
	require.NoError(t, repo.SetCollector(ctx, q.ID, 3))
	require.NoError(t, repo.SetVoidStatus(ctx, q.ID, entity.VoidStatusApplying))

	got, err := repo.GetByQuoteNo(ctx, "Q-001")
	require.NoError(t, err)
	assert.Equal(t, entity.QuoteStatusApprovalPending, got.Status)
	assert.Equal(t, entity.VoidStatusApplying, got.VoidStatus)
	require.NotNil(t, got.CustomerConfirmerID)
	assert.Equal(t, int64(9), *got.CustomerConfirmerID)
	require.NotNil(t, got.FirstSubmittedAt)
	assert.True(t, got.FirstSubmittedAt.Equal(first), "first submission time is kept")
	require.NotNil(t, got.CollectorID)
	assert.Equal(t, int64(3), *got.CollectorID)

	_, err = repo.GetByQuoteNo(ctx, "Q-404")
	assert.ErrorIs(t, err, workflow.ErrSubjectNotFound)
}

func TestQuoteVersionRepository_ActiveFlag(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewQuoteVersionRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	v1 := &entity.QuoteVersion{QuoteNo: "Q-001", VersionNo: 1, CreatedBy: 1}
	v2 := &entity.QuoteVersion{QuoteNo: "Q-001", VersionNo: 2, CreatedBy: 1}
	require.NoError(t, repo.Create(ctx, v1))
	require.NoError(t, repo.Create(ctx, v2))

	status, err := repo.GetStatus(ctx, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.VersionInactive, status)

	require.NoError(t, repo.UpdateStatus(ctx, v1.ID, entity.VersionInactive, entity.VersionActive))

	// the partial unique index refuses a second active version
	err = repo.UpdateStatus(ctx, v2.ID, entity.VersionInactive, entity.VersionActive)
	assert.ErrorIs(t, err, workflow.ErrStorageUnavailable)

	active, err := repo.ListActive(ctx, "Q-001")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, 1, active[0].VersionNo)

	got, err := repo.GetByNumber(ctx, "Q-001", 2)
	require.NoError(t, err)
	assert.Equal(t, v2.UID, got.UID)

	_, err = repo.GetByNumber(ctx, "Q-001", 9)
	assert.ErrorIs(t, err, workflow.ErrVersionNotFound)

	err = repo.UpdateStatus(ctx, v1.ID, "BOGUS", entity.VersionActive)
	assert.ErrorIs(t, err, workflow.ErrInvalidState)

	all, err := repo.ListByQuoteNo(ctx, "Q-001")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestPaymentRepository_SumConfirmed(t *testing.T) {
	db := testutil.NewDB(t)
	quotes := NewQuoteRepository(db.DB, zap.NewNop())
	repo := NewPaymentRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	q := &entity.Quote{QuoteNo: "Q-001", CustomerName: "ACME", TotalAmount: 100, Status: entity.QuoteStatusConfirmed, CreatedBy: 1}
	require.NoError(t, quotes.Create(ctx, q))

	for _, p := range []*entity.Payment{
		{QuoteID: q.ID, Amount: 30, Status: entity.PaymentStatusConfirmed, SubmitterID: 1},
		{QuoteID: q.ID, Amount: 20, Status: entity.PaymentStatusConfirmed, SubmitterID: 1},
		{QuoteID: q.ID, Amount: 50, Status: entity.PaymentStatusSubmitted, SubmitterID: 1},
	} {
		require.NoError(t, repo.Create(ctx, p))
	}

	total, err := repo.SumConfirmed(ctx, q.ID)
	require.NoError(t, err)
	assert.InDelta(t, 50, total, 0.001)

	list, err := repo.ListByQuoteID(ctx, q.ID)
	require.NoError(t, err)
	assert.Len(t, list, 3)
	assert.True(t, list[2].IsUnconfirmed())
}

func TestPermissionRequestRepository_FindOpen(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewPermissionRequestRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	open, err := repo.FindOpenByApplicant(ctx, 5)
	require.NoError(t, err)
	assert.Nil(t, open)

	req := &entity.PermissionRequest{
		ApplicantID: 5, TargetUserID: 5, Capabilities: []string{"quote.submit"},
		Reason: "new job", Status: entity.PermissionRequestPending,
	}
	require.NoError(t, repo.Create(ctx, req))

	open, err = repo.FindOpenByApplicant(ctx, 5)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, []string{"quote.submit"}, open.Capabilities)

	require.NoError(t, repo.UpdateStatus(ctx, req.ID, entity.PermissionRequestPending, entity.PermissionRequestApproved))
	require.NoError(t, repo.SetDecision(ctx, req.ID, 1, "ok", nil, []string{"quote.submit"}))

	open, err = repo.FindOpenByApplicant(ctx, 5)
	require.NoError(t, err)
	assert.Nil(t, open)

	got, err := repo.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Nil(t, got.SnapshotBefore)
	assert.Equal(t, []string{"quote.submit"}, got.SnapshotAfter)
}

func TestCapabilityGrantRepository_GrantIsIdempotent(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewCapabilityGrantRepository(db.DB)
	ctx := context.Background()

	require.NoError(t, repo.Grant(ctx, 2, []string{"quote.submit", "payment.submit"}, time.Now()))
	require.NoError(t, repo.Grant(ctx, 2, []string{"quote.submit"}, time.Now()))

	caps, err := repo.ListByUser(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"payment.submit", "quote.submit"}, caps)
}

func TestDamageRecordRepository_IndependentStores(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewDamageRecordRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	d := &entity.DamageRecord{Behavior: entity.DamageBehaviorRepair, RepairStage: entity.RepairStageReturned, CreatedBy: 1}
	require.NoError(t, repo.Create(ctx, d))

	require.NoError(t, repo.RepairStages().UpdateStatus(ctx, d.ID, entity.RepairStageReturned, entity.RepairStageRepairing))
	stage, err := repo.RepairStages().GetStatus(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RepairStageRepairing, stage)

	comp, err := repo.Compensations().GetStatus(ctx, d.ID)
	require.NoError(t, err)
	assert.Empty(t, comp)

	penalty := 5.0
	require.NoError(t, repo.SetSettlement(ctx, d.ID, "fixed hinge", 80, &penalty, 4))
	require.NoError(t, repo.SetCompensation(ctx, d.ID, 12, "https://proof/1.png", 4))

	got, err := repo.GetByID(ctx, d.ID)
	require.NoError(t, err)
	require.NotNil(t, got.RepairFee)
	assert.InDelta(t, 80, *got.RepairFee, 0.001)
	require.NotNil(t, got.PenaltyAmount)
	assert.Equal(t, []string{"https://proof/1.png"}, got.ProofURLs)
	assert.Equal(t, "fixed hinge", got.SettlementDetails)
}

func TestCarrierRuleRepository_ListEnabledOrder(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewCarrierRuleRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	for _, r := range []*entity.CarrierRule{
		{CarrierName: "A", Keyword: "x", Priority: 1, Enabled: true},
		{CarrierName: "B", Keyword: "y", Priority: 9, Enabled: true},
		{CarrierName: "C", Keyword: "z", Priority: 9, Enabled: true},
		{CarrierName: "D", Keyword: "w", Priority: 50, Enabled: false},
	} {
		require.NoError(t, repo.Create(ctx, r))
	}

	rules, err := repo.ListEnabled(ctx)
	require.NoError(t, err)
	var names []string
	for _, r := range rules {
		names = append(names, r.CarrierName)
	}
	assert.Equal(t, []string{"B", "C", "A"}, names)
}

func TestTransactionManager_RollsBackRepositoryWrites(t *testing.T) {
	db := testutil.NewDB(t)
	tm := sqlite.NewDB(db.DB, zap.NewNop())
	quotes := NewQuoteRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	boom := errors.New("boom")
	err := tm.WithTransaction(ctx, func(ctx context.Context) error {
		require.NotNil(t, sqlite.TxFromContext(ctx))
		if err := quotes.Create(ctx, &entity.Quote{QuoteNo: "Q-TX", CustomerName: "x", Status: entity.QuoteStatusDraft, CreatedBy: 1}); err != nil {
			return err
		}
		// nested calls join the outer transaction
		return tm.WithTransaction(ctx, func(context.Context) error { return boom })
	})
	assert.ErrorIs(t, err, boom)

	_, err = quotes.GetByQuoteNo(ctx, "Q-TX")
	assert.ErrorIs(t, err, workflow.ErrSubjectNotFound)

	require.NoError(t, tm.WithTransaction(ctx, func(ctx context.Context) error {
		return quotes.Create(ctx, &entity.Quote{QuoteNo: "Q-TX", CustomerName: "x", Status: entity.QuoteStatusDraft, CreatedBy: 1})
	}))
	_, err = quotes.GetByQuoteNo(ctx, "Q-TX")
	assert.NoError(t, err)
}
