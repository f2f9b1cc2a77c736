// Package memory contains an in-memory Notifier for tests.
package memory

import (
	"context"
	"sync"

	"github.com/talentwire/jobharvest/internal/pipeline"
)

// Notifier stores delivered notifications for inspection.
type Notifier struct {
	mu     sync.RWMutex
	events []pipeline.Notification
}

// New returns a memory Notifier.
func New() *Notifier {
	return &Notifier{}
}

// Notify records the event.
func (n *Notifier) Notify(_ context.Context, event pipeline.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

// Events returns the recorded notifications.
func (n *Notifier) Events() []pipeline.Notification {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]pipeline.Notification, len(n.events))
	copy(out, n.events)
	return out
}
