package pipeline

import (
	"context"
	"time"
)

// Hasher computes digests for deduplication/integrity.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces record IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// Notification event kinds delivered to the notification collaborator.
const (
	EventManualReviewQueued = "manual_review_queued"
	EventJobFlagged         = "job_flagged"
	EventRunFailed          = "run_failed"
)

// Notification is a fire-and-forget message for operators.
type Notification struct {
	Event    string         `json:"event"`
	SourceID string         `json:"source_id,omitempty"`
	RunID    string         `json:"run_id,omitempty"`
	JobID    string         `json:"job_id,omitempty"`
	Detail   map[string]any `json:"detail,omitempty"`
}

// Notifier delivers notifications best-effort. Delivery failure must never
// fail the pipeline operation that triggered it.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}
