package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/talentwire/jobharvest/internal/metrics"
	"github.com/talentwire/jobharvest/internal/pipeline"
	"github.com/talentwire/jobharvest/internal/store"
)

// Workflow actions recorded in the audit log.
const (
	ActionSubmit     = "submit"
	ActionApprove    = "approve"
	ActionReject     = "reject"
	ActionReview     = "review"
	ActionPublish    = "publish"
	ActionPause      = "pause"
	ActionResume     = "resume"
	ActionClose      = "close"
	ActionReopen     = "reopen"
	ActionExpire     = "expire"
	ActionReactivate = "reactivate"
	ActionCancel     = "cancel"
	ActionFlag       = "flag"
	ActionUnflag     = "unflag"
)

// Engine applies workflow actions to job listings. Actions on the same
// job are serialized by a per-job mutex; the store-level compare-and-swap
// rejects writers from other processes.
type Engine struct {
	store    store.Store
	ids      pipeline.IDGenerator
	clock    pipeline.Clock
	notifier pipeline.Notifier
	logger   *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewEngine constructs an Engine.
func NewEngine(s store.Store, ids pipeline.IDGenerator, clock pipeline.Clock, notifier pipeline.Notifier, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:    s,
		ids:      ids,
		clock:    clock,
		notifier: notifier,
		logger:   logger,
		locks:    map[string]*sync.Mutex{},
	}
}

// Submit moves a draft listing into the approval queue.
func (e *Engine) Submit(ctx context.Context, jobID, actor string) (pipeline.JobListing, error) {
	return e.Transition(ctx, jobID, pipeline.StatusPendingApproval, ActionSubmit, actor, "")
}

// Approve marks the listing approved. With immediatePublish the approval
// folds directly into publication: the listing continues to active in the
// same call, with a log entry for each edge.
func (e *Engine) Approve(ctx context.Context, jobID, actor string, immediatePublish bool) (pipeline.JobListing, error) {
	listing, err := e.Transition(ctx, jobID, pipeline.StatusApproved, ActionApprove, actor, "")
	if err != nil {
		return listing, err
	}
	if !immediatePublish {
		return listing, nil
	}
	return e.Publish(ctx, jobID, actor)
}

// Reject declines a listing awaiting approval or review.
func (e *Engine) Reject(ctx context.Context, jobID, actor, reason string) (pipeline.JobListing, error) {
	return e.Transition(ctx, jobID, pipeline.StatusRejected, ActionReject, actor, reason)
}

// Review sends a listing to manual review.
func (e *Engine) Review(ctx context.Context, jobID, actor, reason string) (pipeline.JobListing, error) {
	return e.Transition(ctx, jobID, pipeline.StatusUnderReview, ActionReview, actor, reason)
}

// Publish makes an approved listing publicly active.
func (e *Engine) Publish(ctx context.Context, jobID, actor string) (pipeline.JobListing, error) {
	return e.Transition(ctx, jobID, pipeline.StatusActive, ActionPublish, actor, "")
}

// Pause takes an active listing offline without closing it.
func (e *Engine) Pause(ctx context.Context, jobID, actor string) (pipeline.JobListing, error) {
	return e.Transition(ctx, jobID, pipeline.StatusPaused, ActionPause, actor, "")
}

// Resume reactivates a paused listing.
func (e *Engine) Resume(ctx context.Context, jobID, actor string) (pipeline.JobListing, error) {
	return e.Transition(ctx, jobID, pipeline.StatusActive, ActionResume, actor, "")
}

// Close ends an active or paused listing.
func (e *Engine) Close(ctx context.Context, jobID, actor string) (pipeline.JobListing, error) {
	return e.Transition(ctx, jobID, pipeline.StatusClosed, ActionClose, actor, "")
}

// Reopen reactivates a closed listing.
func (e *Engine) Reopen(ctx context.Context, jobID, actor string) (pipeline.JobListing, error) {
	return e.Transition(ctx, jobID, pipeline.StatusActive, ActionReopen, actor, "")
}

// Expire marks an active listing as past its lifetime.
func (e *Engine) Expire(ctx context.Context, jobID, actor string) (pipeline.JobListing, error) {
	return e.Transition(ctx, jobID, pipeline.StatusExpired, ActionExpire, actor, "")
}

// Cancel terminates a listing. No transitions leave cancelled.
func (e *Engine) Cancel(ctx context.Context, jobID, actor, reason string) (pipeline.JobListing, error) {
	return e.Transition(ctx, jobID, pipeline.StatusCancelled, ActionCancel, actor, reason)
}

// Flag records a complaint against a listing. An active listing moves to
// flagged; in any other state only the flag metadata is set and no log
// entry is written.
func (e *Engine) Flag(ctx context.Context, jobID, actor, reason string) (pipeline.JobListing, error) {
	unlock := e.lockJob(jobID)
	defer unlock()

	listing, err := e.store.GetListing(ctx, jobID)
	if err != nil {
		return pipeline.JobListing{}, err
	}

	now := e.clock.Now()
	if listing.Status == pipeline.StatusActive {
		listing, err = e.transitionLocked(ctx, listing, pipeline.StatusFlagged, ActionFlag, actor, reason)
		if err != nil {
			return listing, err
		}
	}
	if err := e.store.SetListingFlag(ctx, jobID, true, reason, now); err != nil {
		return listing, fmt.Errorf("set listing flag: %w", err)
	}
	listing.Flagged = true
	listing.FlagReason = reason

	if e.notifier != nil {
		e.notifier.Notify(ctx, pipeline.Notification{
			Event:  pipeline.EventJobFlagged,
			JobID:  jobID,
			Detail: map[string]any{"reason": reason, "actor": actor},
		})
	}
	return listing, nil
}

// Unflag clears the flag metadata. A listing sitting in flagged status is
// returned to active.
func (e *Engine) Unflag(ctx context.Context, jobID, actor string) (pipeline.JobListing, error) {
	unlock := e.lockJob(jobID)
	defer unlock()

	listing, err := e.store.GetListing(ctx, jobID)
	if err != nil {
		return pipeline.JobListing{}, err
	}

	if listing.Status == pipeline.StatusFlagged {
		listing, err = e.transitionLocked(ctx, listing, pipeline.StatusActive, ActionUnflag, actor, "")
		if err != nil {
			return listing, err
		}
	}
	if err := e.store.SetListingFlag(ctx, jobID, false, "", e.clock.Now()); err != nil {
		return listing, fmt.Errorf("clear listing flag: %w", err)
	}
	listing.Flagged = false
	listing.FlagReason = ""
	return listing, nil
}

// Transition applies one edge of the state machine. An edge not in the
// table fails with ErrInvalidTransition and writes nothing.
func (e *Engine) Transition(ctx context.Context, jobID string, to pipeline.ListingStatus, action, actor, reason string) (pipeline.JobListing, error) {
	unlock := e.lockJob(jobID)
	defer unlock()

	listing, err := e.store.GetListing(ctx, jobID)
	if err != nil {
		return pipeline.JobListing{}, err
	}
	return e.transitionLocked(ctx, listing, to, action, actor, reason)
}

// transitionLocked performs the checked status write plus its log entry.
// Callers hold the per-job lock.
func (e *Engine) transitionLocked(ctx context.Context, listing pipeline.JobListing, to pipeline.ListingStatus, action, actor, reason string) (pipeline.JobListing, error) {
	from := listing.Status
	if !IsTransitionAllowed(from, to) {
		return listing, fmt.Errorf("%w: %s -> %s", pipeline.ErrInvalidTransition, from, to)
	}

	now := e.clock.Now()
	update := store.ListingUpdate{UpdatedAt: now}
	switch to {
	case pipeline.StatusApproved:
		update.ApprovedBy = actor
		update.ApprovedAt = &now
	case pipeline.StatusActive:
		if from == pipeline.StatusApproved {
			update.PublishedBy = actor
			update.PublishedAt = &now
		}
	}

	if err := e.store.UpdateListingStatus(ctx, listing.ID, from, to, update); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// Another writer landed first; this request's from-state no
			// longer holds.
			return listing, fmt.Errorf("%w: %s -> %s", pipeline.ErrInvalidTransition, from, to)
		}
		return listing, fmt.Errorf("update listing status: %w", err)
	}

	entryID, err := e.ids.NewID()
	if err != nil {
		return listing, fmt.Errorf("workflow log id: %w", err)
	}
	entry := pipeline.WorkflowLogEntry{
		ID:         entryID,
		JobID:      listing.ID,
		Action:     action,
		FromStatus: from,
		ToStatus:   to,
		Actor:      actor,
		Reason:     reason,
		CreatedAt:  now,
	}
	if err := e.store.AppendWorkflowLog(ctx, entry); err != nil {
		return listing, fmt.Errorf("append workflow log: %w", err)
	}
	metrics.ObserveTransition(action)

	e.logger.Info("workflow transition",
		zap.String("job_id", listing.ID),
		zap.String("action", action),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("actor", actor),
	)

	listing.Status = to
	listing.UpdatedAt = now
	if update.ApprovedAt != nil {
		listing.ApprovedBy = update.ApprovedBy
		listing.ApprovedAt = update.ApprovedAt
	}
	if update.PublishedAt != nil {
		listing.PublishedBy = update.PublishedBy
		listing.PublishedAt = update.PublishedAt
	}
	return listing, nil
}

func (e *Engine) lockJob(jobID string) func() {
	e.mu.Lock()
	l, ok := e.locks[jobID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[jobID] = l
	}
	e.mu.Unlock()
	l.Lock()
	return l.Unlock
}
