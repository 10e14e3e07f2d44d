package notifier

import (
	"context"

	"go.uber.org/zap"

	"github.com/garyjia/doc-lifecycle/internal/application/port"
)

// LogNotifier writes messages to the application log. It is the default
// channel when no IM receiver is configured.
type LogNotifier struct {
	logger *zap.Logger
}

var _ port.Notifier = (*LogNotifier)(nil)

// NewLogNotifier creates a new LogNotifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("notification")}
}

// Notify never fails
func (n *LogNotifier) Notify(_ context.Context, msg port.Message) error {
	n.logger.Info(msg.Title, zap.String("body", msg.Body))
	return nil
}
