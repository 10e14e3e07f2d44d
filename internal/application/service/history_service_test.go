package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/doc-lifecycle/internal/domain/entity"
	domainwf "github.com/garyjia/doc-lifecycle/internal/domain/workflow"
)

type recordingExporter struct {
	subject entity.SubjectRef
	records []*entity.TransitionRecord
	err     error
}

func (x *recordingExporter) Export(w io.Writer, subject entity.SubjectRef, records []*entity.TransitionRecord) error {
	if x.err != nil {
		return x.err
	}
	x.subject = subject
	x.records = records
	_, err := fmt.Fprintf(w, "%s:%d", subject, len(records))
	return err
}

func TestHistoryService_List(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	q := e.confirmedQuote(t, "Q-600", 100)

	svc := NewHistoryService(e.historyRepo, nil, nil)

	records, err := svc.List(ctx, entity.SubjectRef{Type: entity.SubjectQuote, ID: q.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"APPROVE", "SUBMIT"}, actions(records))
	assert.Equal(t, entity.QuoteStatusConfirmed, records[0].NewStatus)

	_, err = svc.List(ctx, entity.SubjectRef{Type: "SHIPMENT", ID: 1})
	assert.ErrorIs(t, err, domainwf.ErrInvalidState)

	records, err = svc.List(ctx, entity.SubjectRef{Type: entity.SubjectPayment, ID: 999})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestHistoryService_Export(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	q := e.confirmedQuote(t, "Q-601", 100)
	subject := entity.SubjectRef{Type: entity.SubjectQuote, ID: q.ID}

	err := NewHistoryService(e.historyRepo, nil, nil).Export(ctx, subject, io.Discard)
	assert.Error(t, err)

	exporter := &recordingExporter{}
	var buf bytes.Buffer
	require.NoError(t, NewHistoryService(e.historyRepo, exporter, nil).Export(ctx, subject, &buf))
	assert.Equal(t, subject, exporter.subject)
	assert.Len(t, exporter.records, 2)
	assert.Equal(t, fmt.Sprintf("QUOTE:%d:2", q.ID), buf.String())

	broken := &recordingExporter{err: errors.New("disk full")}
	err = NewHistoryService(e.historyRepo, broken, nil).Export(ctx, subject, &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}
