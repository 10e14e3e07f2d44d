package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/doc-lifecycle/internal/domain/entity"
)

func TestHistoryXLSXExporter_Export(t *testing.T) {
	exporter := NewHistoryXLSXExporter(zap.NewNop())
	subject := entity.SubjectRef{Type: entity.SubjectQuote, ID: 42}
	at := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

	records := []*entity.TransitionRecord{
		{ID: 2, SubjectType: entity.SubjectQuote, SubjectID: 42, ActorID: 20, Action: "APPROVE",
			PreviousStatus: "APPROVAL_PENDING", NewStatus: "CONFIRMED", CreatedAt: at.Add(time.Hour)},
		{ID: 1, SubjectType: entity.SubjectQuote, SubjectID: 42, ActorID: 10, Action: "SUBMIT",
			PreviousStatus: "DRAFT", NewStatus: "APPROVAL_PENDING", Reason: "ready", Payload: `{"confirmerId":7}`, CreatedAt: at},
	}

	var buf bytes.Buffer
	require.NoError(t, exporter.Export(&buf, subject, records))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{HistorySheet}, f.GetSheetList())

	rows, err := f.GetRows(HistorySheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, "Transition history of QUOTE:42", rows[0][0])
	assert.Equal(t, []string{"Time", "Action", "From", "To", "Actor", "Reason", "Payload"}, rows[1])
	assert.Equal(t, []string{"2024-05-06 10:00:00", "APPROVE", "APPROVAL_PENDING", "CONFIRMED", "20"}, rows[2])
	assert.Equal(t, []string{"2024-05-06 09:00:00", "SUBMIT", "DRAFT", "APPROVAL_PENDING", "10", "ready", `{"confirmerId":7}`}, rows[3])
}

func TestHistoryXLSXExporter_EmptyHistory(t *testing.T) {
	var buf bytes.Buffer
	err := NewHistoryXLSXExporter(zap.NewNop()).Export(&buf, entity.SubjectRef{Type: entity.SubjectPayment, ID: 1}, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(HistorySheet)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
