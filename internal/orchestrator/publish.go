package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/talentwire/jobharvest/internal/pipeline"
	"github.com/talentwire/jobharvest/internal/store"
	"github.com/talentwire/jobharvest/internal/workflow"
)

// PublishGate decides what happens to a scored normalized job: at or
// above the source threshold it is auto-published exactly once, below it
// the job is held for manual review and never silently discarded.
type PublishGate struct {
	store       store.Store
	workflow    *workflow.Engine
	notifier    pipeline.Notifier
	ids         pipeline.IDGenerator
	clock       pipeline.Clock
	systemActor string
	logger      *zap.Logger
}

// NewPublishGate constructs a PublishGate. systemActor is recorded in the
// workflow log for automatic publications.
func NewPublishGate(s store.Store, wf *workflow.Engine, notifier pipeline.Notifier, ids pipeline.IDGenerator, clock pipeline.Clock, systemActor string, logger *zap.Logger) *PublishGate {
	if systemActor == "" {
		systemActor = "system"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PublishGate{
		store:       s,
		workflow:    wf,
		notifier:    notifier,
		ids:         ids,
		clock:       clock,
		systemActor: systemActor,
		logger:      logger,
	}
}

// Decide applies the gate to a scored job. When published, the returned
// listing ID is also recorded on the normalized job; publication is
// exactly-once, enforced by the store's publish mark.
func (g *PublishGate) Decide(ctx context.Context, src pipeline.Source, job pipeline.NormalizedJob) (published bool, listingID string, err error) {
	if job.QualityScore < src.QualityThreshold {
		g.logger.Info("job held for manual review",
			zap.String("job_id", job.ID),
			zap.Float64("quality_score", job.QualityScore),
			zap.Float64("threshold", src.QualityThreshold),
		)
		if g.notifier != nil {
			g.notifier.Notify(ctx, pipeline.Notification{
				Event:    pipeline.EventManualReviewQueued,
				SourceID: src.ID,
				JobID:    job.ID,
				Detail:   map[string]any{"quality_score": job.QualityScore},
			})
		}
		return false, "", nil
	}

	listingID, err = g.autoPublish(ctx, src, job)
	if err != nil {
		return false, "", err
	}
	return true, listingID, nil
}

// autoPublish creates the public listing and walks it draft through
// active under the system actor, so the audit log records the automatic
// decision the same way it records a human one.
func (g *PublishGate) autoPublish(ctx context.Context, src pipeline.Source, job pipeline.NormalizedJob) (string, error) {
	id, err := g.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("listing id: %w", err)
	}

	now := g.clock.Now()
	listing := pipeline.JobListing{
		ID:              id,
		SourceID:        src.ID,
		NormalizedJobID: job.ID,
		Title:           job.Title,
		Company:         job.Company,
		Location:        job.Location,
		Description:     job.Description,
		URL:             job.URL,
		Status:          pipeline.StatusDraft,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := g.store.CreateListing(ctx, listing); err != nil {
		return "", fmt.Errorf("create listing: %w", err)
	}

	if _, err := g.workflow.Submit(ctx, id, g.systemActor); err != nil {
		return "", fmt.Errorf("submit listing: %w", err)
	}
	if _, err := g.workflow.Approve(ctx, id, g.systemActor, true); err != nil {
		return "", fmt.Errorf("approve listing: %w", err)
	}

	if err := g.store.MarkPublished(ctx, job.ID, id); err != nil {
		return "", fmt.Errorf("mark published: %w", err)
	}

	g.logger.Info("job auto-published",
		zap.String("job_id", job.ID),
		zap.String("listing_id", id),
		zap.Float64("quality_score", job.QualityScore),
	)
	return id, nil
}
