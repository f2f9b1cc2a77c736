// Package log implements a Notifier that writes events to the logger.
package log

import (
	"context"

	"go.uber.org/zap"

	"github.com/talentwire/jobharvest/internal/pipeline"
)

// Notifier logs notification events. Used when no message broker is
// configured.
type Notifier struct {
	logger *zap.Logger
}

// New returns a log Notifier.
func New(logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{logger: logger}
}

// Notify writes the event as a structured log line.
func (n *Notifier) Notify(_ context.Context, event pipeline.Notification) {
	n.logger.Info("pipeline notification",
		zap.String("event", event.Event),
		zap.String("source_id", event.SourceID),
		zap.String("run_id", event.RunID),
		zap.String("job_id", event.JobID),
		zap.Any("detail", event.Detail),
	)
}
