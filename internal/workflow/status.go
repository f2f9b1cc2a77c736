// Package workflow implements the job listing state machine.
//
// Valid status graph (cancelled is terminal):
//
//	draft ──► pending_approval ──► approved ──► active
//	              │    ▲                          │
//	              ▼    │                          ▼
//	          under_review              paused / flagged / closed / expired
//
// Every transition is checked against the table before any mutation, so
// illegal moves are a data-driven rejection.
package workflow

import (
	"fmt"

	"github.com/talentwire/jobharvest/internal/pipeline"
)

// validTransitions lists every allowed (from → to) pair.
var validTransitions = map[pipeline.ListingStatus][]pipeline.ListingStatus{
	pipeline.StatusDraft:           {pipeline.StatusPendingApproval, pipeline.StatusCancelled},
	pipeline.StatusPendingApproval: {pipeline.StatusApproved, pipeline.StatusRejected, pipeline.StatusUnderReview},
	pipeline.StatusUnderReview:     {pipeline.StatusApproved, pipeline.StatusRejected, pipeline.StatusPendingApproval},
	pipeline.StatusApproved:        {pipeline.StatusActive, pipeline.StatusRejected, pipeline.StatusCancelled},
	pipeline.StatusRejected:        {pipeline.StatusPendingApproval, pipeline.StatusCancelled},
	pipeline.StatusActive:          {pipeline.StatusPaused, pipeline.StatusClosed, pipeline.StatusExpired, pipeline.StatusFlagged},
	pipeline.StatusPaused:          {pipeline.StatusActive, pipeline.StatusClosed, pipeline.StatusCancelled},
	pipeline.StatusFlagged:         {pipeline.StatusUnderReview, pipeline.StatusActive, pipeline.StatusCancelled},
	pipeline.StatusClosed:          {pipeline.StatusActive},
	pipeline.StatusExpired:         {pipeline.StatusActive},
	// cancelled is terminal, no outgoing transitions
}

// ParseStatus converts a raw string to a ListingStatus, returning an
// error for unknown values.
func ParseStatus(s string) (pipeline.ListingStatus, error) {
	st := pipeline.ListingStatus(s)
	switch st {
	case pipeline.StatusDraft, pipeline.StatusPendingApproval, pipeline.StatusUnderReview,
		pipeline.StatusApproved, pipeline.StatusRejected, pipeline.StatusActive,
		pipeline.StatusPaused, pipeline.StatusFlagged, pipeline.StatusClosed,
		pipeline.StatusExpired, pipeline.StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown listing status %q", s)
}

// IsTransitionAllowed returns true when moving from → to is permitted by
// the state machine.
func IsTransitionAllowed(from, to pipeline.ListingStatus) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false // terminal state, no outgoing transitions
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}
