package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/doc-lifecycle/internal/application/dispatcher"
	"github.com/garyjia/doc-lifecycle/internal/application/port"
	"github.com/garyjia/doc-lifecycle/internal/domain/event"
)

// NotificationService turns committed workflow events into messages
type NotificationService interface {
	// Subscribe registers the service's handlers with d
	Subscribe(d dispatcher.Dispatcher)

	NotifyStatusChanged(ctx context.Context, evt *event.Event) error
	NotifyVersionActivated(ctx context.Context, evt *event.Event) error
}

type notificationServiceImpl struct {
	notifier port.Notifier
	logger   Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(notifier port.Notifier, logger Logger) NotificationService {
	return &notificationServiceImpl{
		notifier: notifier,
		logger:   loggerOrNop(logger),
	}
}

func (s *notificationServiceImpl) Subscribe(d dispatcher.Dispatcher) {
	d.Subscribe(event.TypeStatusChanged, "notification.status_changed", s.NotifyStatusChanged)
	d.Subscribe(event.TypeVersionActivated, "notification.version_activated", s.NotifyVersionActivated)
}

// NotifyStatusChanged sends one line per committed transition
func (s *notificationServiceImpl) NotifyStatusChanged(ctx context.Context, evt *event.Event) error {
	title := fmt.Sprintf("%s %s", evt.Subject, evt.GetPayloadString(event.KeyNewStatus))

	var body strings.Builder
	fmt.Fprintf(&body, "%s moved from %s to %s by %s",
		evt.Subject,
		evt.GetPayloadString(event.KeyPreviousStatus),
		evt.GetPayloadString(event.KeyNewStatus),
		actorLabel(evt.GetPayloadInt(event.KeyActorID)))
	if reason := evt.GetPayloadString(event.KeyReason); reason != "" {
		fmt.Fprintf(&body, "\nReason: %s", reason)
	}
	fmt.Fprintf(&body, "\nAt: %s", evt.Timestamp.Format("2006-01-02 15:04:05"))

	return s.send(ctx, evt, port.Message{Title: title, Body: body.String()})
}

// NotifyVersionActivated announces the new active version of a quote
func (s *notificationServiceImpl) NotifyVersionActivated(ctx context.Context, evt *event.Event) error {
	msg := port.Message{
		Title: fmt.Sprintf("Quote %s version changed", evt.GetPayloadString(event.KeyDocumentKey)),
		Body: fmt.Sprintf("Version %d of quote %s is now active",
			evt.GetPayloadInt(event.KeyVersionNo), evt.GetPayloadString(event.KeyDocumentKey)),
	}
	return s.send(ctx, evt, msg)
}

func (s *notificationServiceImpl) send(ctx context.Context, evt *event.Event, msg port.Message) error {
	if err := s.notifier.Notify(ctx, msg); err != nil {
		s.logger.Error("Failed to send notification", "error", err, "event_id", evt.ID, "subject", evt.Subject.String())
		return fmt.Errorf("send notification: %w", err)
	}

	s.logger.Info("Notification sent", "event_id", evt.ID, "subject", evt.Subject.String())
	return nil
}

func actorLabel(id int64) string {
	if id == 0 {
		return "system"
	}
	return fmt.Sprintf("user %d", id)
}
