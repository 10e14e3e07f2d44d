package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/doc-lifecycle/internal/application/dispatcher"
	"github.com/garyjia/doc-lifecycle/internal/application/port"
	"github.com/garyjia/doc-lifecycle/internal/domain/entity"
	"github.com/garyjia/doc-lifecycle/internal/domain/event"
)

type stubNotifier struct {
	sent []port.Message
	err  error
}

func (n *stubNotifier) Notify(_ context.Context, msg port.Message) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

var eventTime = time.Date(2024, 5, 6, 9, 30, 0, 0, time.UTC)

func TestNotificationService_StatusChanged(t *testing.T) {
	notifier := &stubNotifier{}
	svc := NewNotificationService(notifier, nil)

	evt := event.NewEvent(event.TypeStatusChanged, entity.SubjectRef{Type: entity.SubjectQuote, ID: 7}, map[string]interface{}{
		event.KeyPreviousStatus: "CONFIRMED",
		event.KeyNewStatus:      "CANCELLED",
		event.KeyActorID:        int64(40),
		event.KeyReason:         "duplicate quote",
	}, eventTime)

	require.NoError(t, svc.NotifyStatusChanged(context.Background(), evt))
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "QUOTE:7 CANCELLED", notifier.sent[0].Title)
	assert.Equal(t, "QUOTE:7 moved from CONFIRMED to CANCELLED by user 40\nReason: duplicate quote\nAt: 2024-05-06 09:30:00",
		notifier.sent[0].Body)
}

func TestNotificationService_SystemActorWithoutReason(t *testing.T) {
	notifier := &stubNotifier{}
	svc := NewNotificationService(notifier, nil)

	evt := event.NewEvent(event.TypeStatusChanged, entity.SubjectRef{Type: entity.SubjectPayment, ID: 3}, map[string]interface{}{
		event.KeyPreviousStatus: "SUBMITTED",
		event.KeyNewStatus:      "CANCELLED",
	}, eventTime)

	require.NoError(t, svc.NotifyStatusChanged(context.Background(), evt))
	assert.Equal(t, "PAYMENT:3 moved from SUBMITTED to CANCELLED by system\nAt: 2024-05-06 09:30:00",
		notifier.sent[0].Body)
}

func TestNotificationService_VersionActivated(t *testing.T) {
	notifier := &stubNotifier{}
	svc := NewNotificationService(notifier, nil)

	evt := event.NewEvent(event.TypeVersionActivated, entity.SubjectRef{Type: entity.SubjectQuoteVersion, ID: 12}, map[string]interface{}{
		event.KeyDocumentKey: "Q-100",
		event.KeyVersionNo:   int64(3),
	}, eventTime)

	require.NoError(t, svc.NotifyVersionActivated(context.Background(), evt))
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "Quote Q-100 version changed", notifier.sent[0].Title)
	assert.Equal(t, "Version 3 of quote Q-100 is now active", notifier.sent[0].Body)
}

func TestNotificationService_NotifierError(t *testing.T) {
	cause := errors.New("webhook unreachable")
	svc := NewNotificationService(&stubNotifier{err: cause}, nil)

	evt := event.NewEvent(event.TypeStatusChanged, entity.SubjectRef{Type: entity.SubjectQuote, ID: 1}, nil, eventTime)
	err := svc.NotifyStatusChanged(context.Background(), evt)
	assert.ErrorIs(t, err, cause)
}

func TestNotificationService_Subscribe(t *testing.T) {
	notifier := &stubNotifier{}
	d := dispatcher.NewDispatcher()
	NewNotificationService(notifier, nil).Subscribe(d)

	assert.Equal(t, []string{"notification.status_changed"}, d.Handlers(event.TypeStatusChanged))
	assert.Equal(t, []string{"notification.version_activated"}, d.Handlers(event.TypeVersionActivated))

	evt := event.NewEvent(event.TypeStatusChanged, entity.SubjectRef{Type: entity.SubjectQuote, ID: 2}, map[string]interface{}{
		event.KeyPreviousStatus: "DRAFT",
		event.KeyNewStatus:      "APPROVAL_PENDING",
		event.KeyActorID:        int64(10),
	}, eventTime)
	require.NoError(t, d.Dispatch(context.Background(), evt))
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "QUOTE:2 APPROVAL_PENDING", notifier.sent[0].Title)
}
