package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/talentwire/jobharvest/internal/dedup"
	"github.com/talentwire/jobharvest/internal/fetch"
	"github.com/talentwire/jobharvest/internal/metrics"
	"github.com/talentwire/jobharvest/internal/normalize"
	"github.com/talentwire/jobharvest/internal/pipeline"
	"github.com/talentwire/jobharvest/internal/quality"
	"github.com/talentwire/jobharvest/internal/store"
)

// Item processing outcomes recorded per raw item.
const (
	outcomeCreated   = "created"
	outcomeReview    = "review"
	outcomeDuplicate = "duplicate"
	outcomeDropped   = "dropped"
	outcomeError     = "error"
)

// RunnerConfig controls run execution.
type RunnerConfig struct {
	// RunTimeout is the wall-clock ceiling for one run. Zero disables it.
	RunTimeout time.Duration
}

// Runner executes one run end to end: fetch, extract, dedup, normalize,
// score, gate. Per-item errors are recorded and absorbed; per-page errors
// end that page only. The run fails only when every page fails.
type Runner struct {
	store      store.Store
	engine     *fetch.Engine
	gate       *dedup.Gate
	normalizer *normalize.Normalizer
	publish    *PublishGate
	notifier   pipeline.Notifier
	ids        pipeline.IDGenerator
	clock      pipeline.Clock
	cfg        RunnerConfig
	logger     *zap.Logger
}

// NewRunner constructs a Runner.
func NewRunner(
	s store.Store,
	engine *fetch.Engine,
	gate *dedup.Gate,
	normalizer *normalize.Normalizer,
	publish *PublishGate,
	notifier pipeline.Notifier,
	ids pipeline.IDGenerator,
	clock pipeline.Clock,
	cfg RunnerConfig,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		store:      s,
		engine:     engine,
		gate:       gate,
		normalizer: normalizer,
		publish:    publish,
		notifier:   notifier,
		ids:        ids,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
	}
}

// Execute runs the pipeline for one run ID. Counters are written
// incrementally so progress can be polled while the run executes.
func (r *Runner) Execute(ctx context.Context, runID string) {
	run, err := r.store.GetRun(ctx, runID)
	if err != nil {
		r.logger.Error("load run failed", zap.String("run_id", runID), zap.Error(err))
		return
	}
	if run.Status.IsTerminal() {
		// Cancelled before a worker picked it up.
		return
	}
	if err := r.store.UpdateRunStatus(ctx, runID, pipeline.RunStatusRunning, ""); err != nil {
		r.logger.Error("mark run running failed", zap.String("run_id", runID), zap.Error(err))
		return
	}

	src := run.SourceSnapshot
	if src.ID == "" {
		src, err = r.store.GetSource(ctx, run.SourceID)
		if err != nil {
			r.finalize(ctx, runID, src, pipeline.RunCounters{}, fmt.Errorf("load source: %w", err))
			return
		}
	}

	runCtx := ctx
	if r.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.cfg.RunTimeout)
		defer cancel()
	}

	r.logger.Info("run started",
		zap.String("run_id", runID),
		zap.String("source_id", src.ID),
		zap.String("source", src.Name),
	)

	// The stop check lets an operator cancel land between pages: the
	// in-flight fetch completes, nothing further is scheduled.
	stop := func() bool { return r.runCancelled(runCtx, runID) }

	var counters pipeline.RunCounters
	pages := r.engine.FetchSource(runCtx, runID, src, stop)
	for _, page := range pages {
		r.recordPage(runCtx, &page)
		counters.Retries += page.Retries
		if page.Err != nil {
			counters.PagesFailed++
		} else {
			counters.PagesFetched++
		}
		metrics.ObserveFetch(page.Page.URL, fetchStatus(page), page.Page.Bytes, page.Page.Duration)

		for _, candidate := range page.Candidates {
			counters.ItemsFound++
			r.processItem(runCtx, runID, src, candidate, &counters)
		}
		counters.ItemsSkipped += page.Dropped

		if err := r.store.UpdateRunCounters(runCtx, runID, counters); err != nil {
			r.logger.Warn("update run counters failed", zap.String("run_id", runID), zap.Error(err))
		}
	}

	var runErr error
	if len(pages) > 0 && counters.PagesFetched == 0 {
		runErr = fmt.Errorf("all %d pages failed; last error: %s", counters.PagesFailed, pages[len(pages)-1].Page.ErrorText)
	}
	r.finalize(ctx, runID, src, counters, runErr)
}

// processItem takes one candidate through dedup, normalize, score and the
// publish gate. Errors are absorbed after being recorded.
func (r *Runner) processItem(ctx context.Context, runID string, src pipeline.Source, candidate pipeline.RawItemCandidate, counters *pipeline.RunCounters) {
	item, err := r.gate.Admit(ctx, src.ID, runID, candidate)
	if err != nil {
		if errors.Is(err, pipeline.ErrDuplicateItem) {
			counters.ItemsSkipped++
			metrics.ObserveItem(src.ID, outcomeDuplicate)
			return
		}
		if errors.Is(err, pipeline.ErrExtractionIncomplete) {
			counters.ItemsSkipped++
			metrics.ObserveItem(src.ID, outcomeDropped)
			return
		}
		counters.ItemsSkipped++
		metrics.ObserveItem(src.ID, outcomeError)
		r.logger.Warn("admit item failed", zap.String("run_id", runID), zap.Error(err))
		return
	}

	job, err := r.normalizer.Normalize(ctx, src, item)
	if err != nil {
		// Marked processed-with-error; the run continues.
		if markErr := r.store.MarkRawItemProcessed(ctx, item.ID, err.Error()); markErr != nil {
			r.logger.Warn("mark raw item failed", zap.String("raw_item_id", item.ID), zap.Error(markErr))
		}
		counters.ItemsProcessed++
		metrics.ObserveItem(src.ID, outcomeError)
		return
	}

	job.QualityScore = quality.Score(job)
	metrics.ObserveQualityScore(src.ID, job.QualityScore)

	if err := r.store.InsertNormalizedJob(ctx, job); err != nil {
		r.logger.Warn("insert normalized job failed", zap.String("raw_item_id", item.ID), zap.Error(err))
		counters.ItemsProcessed++
		metrics.ObserveItem(src.ID, outcomeError)
		return
	}
	if err := r.store.MarkRawItemProcessed(ctx, item.ID, ""); err != nil {
		r.logger.Warn("mark raw item failed", zap.String("raw_item_id", item.ID), zap.Error(err))
	}
	counters.ItemsProcessed++

	published, listingID, err := r.publish.Decide(ctx, src, job)
	if err != nil {
		r.logger.Warn("publish gate failed",
			zap.String("job_id", job.ID),
			zap.Error(err),
		)
		metrics.ObserveItem(src.ID, outcomeError)
		return
	}
	if published {
		counters.ItemsCreated++
		metrics.ObserveItem(src.ID, outcomeCreated)
		r.logger.Debug("listing created", zap.String("job_id", job.ID), zap.String("listing_id", listingID))
	} else {
		metrics.ObserveItem(src.ID, outcomeReview)
	}
}

// finalize writes the terminal run status and the source metrics. A run
// cancelled by an operator keeps its cancelled status.
func (r *Runner) finalize(ctx context.Context, runID string, src pipeline.Source, counters pipeline.RunCounters, runErr error) {
	status := pipeline.RunStatusCompleted
	errText := ""
	if runErr != nil {
		status = pipeline.RunStatusFailed
		errText = runErr.Error()
	}

	if err := r.store.UpdateRunStatus(ctx, runID, status, errText); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// Operator cancelled mid-run; that status wins.
			metrics.ObserveRun(string(pipeline.RunStatusCancelled))
			return
		}
		r.logger.Error("finalize run failed", zap.String("run_id", runID), zap.Error(err))
		return
	}
	metrics.ObserveRun(string(status))

	if status == pipeline.RunStatusFailed {
		r.logger.Error("run failed", zap.String("run_id", runID), zap.String("error", errText))
		if r.notifier != nil {
			r.notifier.Notify(ctx, pipeline.Notification{
				Event:    pipeline.EventRunFailed,
				SourceID: src.ID,
				RunID:    runID,
				Detail:   map[string]any{"error": errText},
			})
		}
	} else {
		r.logger.Info("run finished",
			zap.String("run_id", runID),
			zap.Int("items_found", counters.ItemsFound),
			zap.Int("items_created", counters.ItemsCreated),
			zap.Int("pages_fetched", counters.PagesFetched),
		)
	}

	if src.ID != "" {
		total := counters.PagesFetched + counters.PagesFailed
		rate := 0.0
		if total > 0 {
			rate = float64(counters.PagesFetched) / float64(total)
		}
		if err := r.store.UpdateSourceMetrics(ctx, src.ID, rate, r.clock.Now()); err != nil {
			r.logger.Warn("update source metrics failed", zap.String("source_id", src.ID), zap.Error(err))
		}
	}
}

func (r *Runner) runCancelled(ctx context.Context, runID string) bool {
	run, err := r.store.GetRun(ctx, runID)
	if err != nil {
		return false
	}
	return run.Status == pipeline.RunStatusCancelled
}

func (r *Runner) recordPage(ctx context.Context, result *fetch.PageResult) {
	id, err := r.ids.NewID()
	if err != nil {
		r.logger.Warn("page id failed", zap.Error(err))
		return
	}
	result.Page.ID = id
	if err := r.store.RecordPage(ctx, result.Page); err != nil {
		r.logger.Warn("record page failed", zap.String("run_id", result.Page.RunID), zap.Error(err))
	}
}

func fetchStatus(page fetch.PageResult) string {
	if page.Err != nil {
		return "error"
	}
	return "success"
}
