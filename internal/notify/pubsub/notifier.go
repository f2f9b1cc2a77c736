// Package pubsub implements a Notifier backed by Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"encoding/json"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/talentwire/jobharvest/internal/pipeline"
)

// Notifier publishes notification events to a Pub/Sub topic. Delivery is
// best effort: failures are logged, never returned, so a broker outage
// cannot fail the pipeline operation that raised the event.
type Notifier struct {
	topic  *pubsub.Topic
	logger *zap.Logger
}

// New returns a Pub/Sub Notifier for the topic.
func New(topic *pubsub.Topic, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{topic: topic, logger: logger}
}

// Notify publishes the event as a JSON message with the event kind as an
// attribute for subscriber-side filtering.
func (n *Notifier) Notify(ctx context.Context, event pipeline.Notification) {
	if n.topic == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		n.logger.Error("marshal notification", zap.Error(err))
		return
	}

	result := n.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"event": event.Event},
	})
	if _, err := result.Get(ctx); err != nil {
		n.logger.Warn("publish notification failed",
			zap.String("event", event.Event),
			zap.Error(err),
		)
	}
}
