// Package orchestrator schedules and executes runs: fetch, extract,
// dedup, normalize, score, and the publish gate, as a chain of retryable
// units with partial-failure semantics.
package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/talentwire/jobharvest/internal/pipeline"
	"github.com/talentwire/jobharvest/internal/store"
)

// Service is the run control surface used by the API layer: start,
// cancel, and status queries.
type Service struct {
	store  store.Store
	queue  Queue
	ids    pipeline.IDGenerator
	clock  pipeline.Clock
	logger *zap.Logger
}

// NewService constructs a Service.
func NewService(s store.Store, queue Queue, ids pipeline.IDGenerator, clock pipeline.Clock, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  s,
		queue:  queue,
		ids:    ids,
		clock:  clock,
		logger: logger,
	}
}

// StartRun creates a pending run for the source and queues it. The run
// carries a snapshot of the source config so a concurrent source edit
// cannot change an executing run.
func (s *Service) StartRun(ctx context.Context, sourceID string, mode pipeline.RunMode, priority int) (pipeline.Run, error) {
	if mode == "" {
		mode = pipeline.RunModeManual
	}
	src, err := s.store.GetSource(ctx, sourceID)
	if err != nil {
		return pipeline.Run{}, fmt.Errorf("load source: %w", err)
	}
	if !src.Active {
		return pipeline.Run{}, fmt.Errorf("source %s is not active", sourceID)
	}

	id, err := s.ids.NewID()
	if err != nil {
		return pipeline.Run{}, fmt.Errorf("run id: %w", err)
	}
	run := pipeline.Run{
		ID:             id,
		SourceID:       sourceID,
		Mode:           mode,
		Status:         pipeline.RunStatusPending,
		Priority:       priority,
		Submitted:      s.clock.Now(),
		SourceSnapshot: src,
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		return pipeline.Run{}, fmt.Errorf("create run: %w", err)
	}
	if err := s.queue.Enqueue(ctx, id); err != nil {
		// The run stays pending; a failed enqueue is surfaced so the
		// caller can retry.
		return pipeline.Run{}, fmt.Errorf("enqueue run: %w", err)
	}

	s.logger.Info("run queued",
		zap.String("run_id", id),
		zap.String("source_id", sourceID),
		zap.String("mode", string(mode)),
	)
	return run, nil
}

// CancelRun marks a run cancelled. A pending run is skipped when a worker
// picks it up; a running one stops scheduling pages after the in-flight
// fetch. Partially produced raw items remain valid.
func (s *Service) CancelRun(ctx context.Context, runID string) (pipeline.Run, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return pipeline.Run{}, err
	}
	if run.Status.IsTerminal() {
		return run, fmt.Errorf("run %s already %s: %w", runID, run.Status, store.ErrConflict)
	}
	if err := s.store.UpdateRunStatus(ctx, runID, pipeline.RunStatusCancelled, "cancelled by operator"); err != nil {
		return pipeline.Run{}, err
	}
	return s.store.GetRun(ctx, runID)
}

// GetRun returns the run with its current counters.
func (s *Service) GetRun(ctx context.Context, runID string) (pipeline.Run, error) {
	return s.store.GetRun(ctx, runID)
}

// ListRuns returns runs for a source, newest first.
func (s *Service) ListRuns(ctx context.Context, sourceID string, limit, offset int) ([]pipeline.Run, error) {
	return s.store.ListRuns(ctx, sourceID, store.ListOptions{Limit: limit, Offset: offset, Desc: true})
}

// ListPages returns per-page diagnostics for a run.
func (s *Service) ListPages(ctx context.Context, runID string) ([]pipeline.FetchPage, error) {
	return s.store.ListPages(ctx, runID)
}
