package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/doc-lifecycle/internal/domain/entity"
	domainwf "github.com/garyjia/doc-lifecycle/internal/domain/workflow"
)

func TestQuoteService_SubmitAndApprove(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	q, err := e.quotes.Create(ctx, sales, CreateQuoteInput{QuoteNo: "Q-100", CustomerName: " ACME ", TotalAmount: 250})
	require.NoError(t, err)
	assert.Equal(t, entity.QuoteStatusDraft, q.Status)
	assert.Equal(t, entity.VoidStatusNone, q.VoidStatus)
	assert.Equal(t, "ACME", q.CustomerName)

	confirmer := int64(501)
	res, err := e.quotes.Submit(ctx, sales, q.ID, &confirmer)
	require.NoError(t, err)
	assert.Equal(t, domainwf.State(entity.QuoteStatusApprovalPending), res.NewStatus)

	q, err = e.quotes.Get(ctx, q.ID)
	require.NoError(t, err)
	require.NotNil(t, q.CustomerConfirmerID)
	assert.Equal(t, confirmer, *q.CustomerConfirmerID)
	require.NotNil(t, q.FirstSubmittedAt)
	assert.True(t, q.FirstSubmittedAt.Equal(testNow))

	newCollector := int64(42)
	_, err = e.quotes.FinanceAudit(ctx, finance, q.ID, AuditDecision{Pass: true, NewCollectorID: &newCollector})
	require.NoError(t, err)

	q, err = e.quotes.Get(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.QuoteStatusConfirmed, q.Status)
	require.NotNil(t, q.CollectorID)
	assert.Equal(t, newCollector, *q.CollectorID)

	assert.Equal(t, []string{"APPROVE", "SUBMIT"}, actions(e.history(t, entity.SubjectQuote, q.ID)))
}

func TestQuoteService_RejectThenResubmitKeepsConfirmer(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	q, err := e.quotes.Create(ctx, sales, CreateQuoteInput{QuoteNo: "Q-101", CustomerName: "ACME", TotalAmount: 80})
	require.NoError(t, err)
	confirmer := int64(7)
	_, err = e.quotes.Submit(ctx, sales, q.ID, &confirmer)
	require.NoError(t, err)

	_, err = e.quotes.FinanceAudit(ctx, finance, q.ID, AuditDecision{Pass: false, Reason: "wrong price"})
	require.NoError(t, err)
	assert.Equal(t, entity.QuoteStatusReturned, e.quoteStatus(t, q.ID))

	_, err = e.quotes.Submit(ctx, sales, q.ID, nil)
	require.NoError(t, err)

	q, err = e.quotes.Get(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.QuoteStatusApprovalPending, q.Status)
	require.NotNil(t, q.CustomerConfirmerID)
	assert.Equal(t, confirmer, *q.CustomerConfirmerID)

	records := e.history(t, entity.SubjectQuote, q.ID)
	require.Len(t, records, 3)
	assert.Equal(t, "wrong price", records[1].Reason)
}

func TestQuoteService_Fallback(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	q := e.confirmedQuote(t, "Q-102", 100)

	_, err := e.quotes.Fallback(ctx, finance, q.ID, "  ")
	assert.ErrorIs(t, err, domainwf.ErrPreconditionFailed)
	assert.Equal(t, entity.QuoteStatusConfirmed, e.quoteStatus(t, q.ID))

	res, err := e.quotes.Fallback(ctx, finance, q.ID, "customer changed scope")
	require.NoError(t, err)
	assert.Equal(t, domainwf.State(entity.QuoteStatusApprovalPending), res.NewStatus)
	assert.Equal(t, "customer changed scope", res.Record.Reason)
}

func TestQuoteService_AssignCollector(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	q := e.confirmedQuote(t, "Q-103", 100)

	_, err := e.quotes.AssignCollector(ctx, sales, q.ID, 77)
	assert.ErrorIs(t, err, domainwf.ErrUnauthorized)

	_, err = e.quotes.AssignCollector(ctx, finance, q.ID, 0)
	assert.ErrorIs(t, err, domainwf.ErrPreconditionFailed)

	res, err := e.quotes.AssignCollector(ctx, finance, q.ID, 77)
	require.NoError(t, err)
	assert.Equal(t, domainwf.State(entity.QuoteStatusConfirmed), res.NewStatus)

	q, err = e.quotes.Get(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(77), *q.CollectorID)
}

func TestQuoteService_InvalidTransitions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	q := e.confirmedQuote(t, "Q-104", 100)
	before := len(e.history(t, entity.SubjectQuote, q.ID))

	_, err := e.quotes.Submit(ctx, sales, q.ID, nil)
	assert.ErrorIs(t, err, domainwf.ErrInvalidTransition)
	assert.Equal(t, domainwf.KindInvalidTransition, domainwf.KindOf(err))

	_, err = e.quotes.FinanceAudit(ctx, finance, q.ID, AuditDecision{Pass: true})
	assert.ErrorIs(t, err, domainwf.ErrInvalidTransition)

	assert.Equal(t, entity.QuoteStatusConfirmed, e.quoteStatus(t, q.ID))
	assert.Len(t, e.history(t, entity.SubjectQuote, q.ID), before)
}

func TestQuoteService_CreateValidatesInput(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreateQuoteInput
	}{
		{"blank number", CreateQuoteInput{QuoteNo: " ", CustomerName: "ACME", TotalAmount: 1}},
		{"blank customer", CreateQuoteInput{QuoteNo: "Q-1", TotalAmount: 1}},
		{"zero amount", CreateQuoteInput{QuoteNo: "Q-1", CustomerName: "ACME"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.quotes.Create(ctx, sales, tt.in)
			assert.ErrorIs(t, err, domainwf.ErrPreconditionFailed)
		})
	}

	_, err := e.quotes.Get(ctx, 999)
	assert.ErrorIs(t, err, domainwf.ErrSubjectNotFound)
}
