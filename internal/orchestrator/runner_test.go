package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	blobmemory "github.com/talentwire/jobharvest/internal/blob/memory"
	"github.com/talentwire/jobharvest/internal/dedup"
	"github.com/talentwire/jobharvest/internal/extract"
	"github.com/talentwire/jobharvest/internal/fetch"
	"github.com/talentwire/jobharvest/internal/hash/sha256"
	"github.com/talentwire/jobharvest/internal/id/uuid"
	"github.com/talentwire/jobharvest/internal/metrics"
	"github.com/talentwire/jobharvest/internal/normalize"
	notifymemory "github.com/talentwire/jobharvest/internal/notify/memory"
	"github.com/talentwire/jobharvest/internal/pipeline"
	"github.com/talentwire/jobharvest/internal/store"
	"github.com/talentwire/jobharvest/internal/store/memory"
	"github.com/talentwire/jobharvest/internal/workflow"
)

func TestMain(m *testing.M) {
	metrics.Init()
	m.Run()
}

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

type fakeFetcher struct {
	responses map[string]fetch.Response
	errs      map[string]error
}

func (f *fakeFetcher) Fetch(_ context.Context, req fetch.Request) (fetch.Response, error) {
	if err, ok := f.errs[req.URL]; ok {
		return fetch.Response{}, err
	}
	resp, ok := f.responses[req.URL]
	if !ok {
		return fetch.Response{}, &pipeline.FetchError{URL: req.URL, StatusCode: 404}
	}
	return resp, nil
}

// richItem renders one job card complete enough to score 1.0.
func richItem(title, href string) string {
	desc := "Build and operate distributed ingestion services in Go and Kubernetes. " +
		"You will own crawlers end to end, from fetch strategy to publication, " +
		"working with PostgreSQL, Redis and GCP. We offer health insurance and equity."
	return `<div class="job-card">` +
		`<h2 class="job-title"><a href="` + href + `">` + title + `</a></h2>` +
		`<span class="company">Acme Corp</span>` +
		`<span class="location">Remote</span>` +
		`<div class="description">` + desc + `</div>` +
		`<span class="salary">$120,000 - $150,000</span>` +
		`</div>`
}

// bareItem has only a title and link; it scores 0.25.
func bareItem(title, href string) string {
	return `<div class="job-card"><h2 class="job-title"><a href="` + href + `">` + title + `</a></h2></div>`
}

type testHarness struct {
	store    *memory.Store
	runner   *Runner
	service  *Service
	queue    *MemoryQueue
	notifier *notifymemory.Notifier
}

func newHarness(t *testing.T, fetcher fetch.PageFetcher) *testHarness {
	t.Helper()

	s := memory.New()
	ids := uuid.NewUUIDGenerator()
	clock := fakeClock{now: time.Unix(1700000000, 0).UTC()}
	notifier := notifymemory.New()
	logger := zap.NewNop()

	engine := fetch.NewEngine(
		fetcher,
		fetcher,
		extract.New(),
		fetch.NewLimiter(fetch.LimiterConfig{}),
		fetch.NewRenderDecision(false, nil),
		blobmemory.NewBlobStore(),
		clock,
		&pipeline.RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
		fetch.EngineConfig{UserAgent: "test-bot", BlobPrefix: "pages", Timeout: time.Second},
		logger,
	)

	wf := workflow.NewEngine(s, ids, clock, notifier, logger)
	gate := dedup.NewGate(s, sha256.New(), ids, clock)
	normalizer := normalize.New(normalize.DisabledParser{}, ids, clock, 0.7, logger)
	publish := NewPublishGate(s, wf, notifier, ids, clock, "system", logger)

	runner := NewRunner(s, engine, gate, normalizer, publish, notifier, ids, clock, RunnerConfig{}, logger)
	queue := NewMemoryQueue(8)
	service := NewService(s, queue, ids, clock, logger)

	return &testHarness{store: s, runner: runner, service: service, queue: queue, notifier: notifier}
}

func seedSource(t *testing.T, s *memory.Store, threshold float64) pipeline.Source {
	t.Helper()
	src := pipeline.Source{
		ID:               "src-1",
		Name:             "Test Board",
		Type:             pipeline.SourceTypeHTML,
		BaseURL:          "https://board.test/jobs",
		QualityThreshold: threshold,
		MaxPages:         3,
		Active:           true,
	}
	require.NoError(t, s.CreateSource(context.Background(), src))
	return src
}

func startRun(t *testing.T, h *testHarness, sourceID string) pipeline.Run {
	t.Helper()
	run, err := h.service.StartRun(context.Background(), sourceID, pipeline.RunModeManual, 0)
	require.NoError(t, err)
	return run
}

func TestExecute_AutoPublishesHighQualityJob(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{responses: map[string]fetch.Response{
		"https://board.test/jobs": {
			URL: "https://board.test/jobs", StatusCode: 200,
			Body: []byte("<html><body>" + richItem("Senior Go Engineer", "/jobs/1") + "</body></html>"),
		},
	}}
	h := newHarness(t, fetcher)
	ctx := context.Background()
	seedSource(t, h.store, 0.8)
	run := startRun(t, h, "src-1")

	h.runner.Execute(ctx, run.ID)

	got, err := h.store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.Equal(t, pipeline.RunStatusCompleted, got.Status)
	require.Equal(t, 1, got.Counters.ItemsFound)
	require.Equal(t, 1, got.Counters.ItemsProcessed)
	require.Equal(t, 1, got.Counters.ItemsCreated)
	require.Equal(t, 1, got.Counters.PagesFetched)

	// Nothing left for review: the single job went straight to a listing.
	jobs, err := h.store.ListPendingReview(ctx, store.ListOptions{})
	require.NoError(t, err)
	require.Empty(t, jobs)
	require.Empty(t, h.notifier.Events())
}

func TestPublishGate_AutoPublishWalksToActive(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeFetcher{})
	ctx := context.Background()
	src := seedSource(t, h.store, 0.8)

	job := pipeline.NormalizedJob{
		ID:           "job-1",
		RawItemID:    "raw-1",
		SourceID:     src.ID,
		Title:        "Senior Go Engineer",
		Company:      "Acme Corp",
		Location:     "Remote",
		Description:  "Long enough description.",
		URL:          "https://board.test/jobs/1",
		QualityScore: 0.92,
		Method:       pipeline.MethodRuleBased,
	}
	require.NoError(t, h.store.InsertNormalizedJob(ctx, job))

	gate := NewPublishGate(h.store, workflow.NewEngine(h.store, uuid.NewUUIDGenerator(), fakeClock{now: time.Now().UTC()}, h.notifier, zap.NewNop()), h.notifier, uuid.NewUUIDGenerator(), fakeClock{now: time.Now().UTC()}, "system", zap.NewNop())

	published, listingID, err := gate.Decide(ctx, src, job)
	require.NoError(t, err)
	require.True(t, published)
	require.NotEmpty(t, listingID)

	listing, err := h.store.GetListing(ctx, listingID)
	require.NoError(t, err)
	require.Equal(t, pipeline.StatusActive, listing.Status)
	require.Equal(t, job.ID, listing.NormalizedJobID)
	require.Equal(t, "system", listing.PublishedBy)
	require.NotNil(t, listing.PublishedAt)

	// The audit trail is a valid walk from draft to active, all entries
	// attributed to the system actor.
	logs, err := h.store.ListWorkflowLogs(ctx, listingID)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	prev := pipeline.StatusDraft
	for _, entry := range logs {
		require.Equal(t, prev, entry.FromStatus)
		require.True(t, workflow.IsTransitionAllowed(entry.FromStatus, entry.ToStatus))
		require.Equal(t, "system", entry.Actor)
		prev = entry.ToStatus
	}
	require.Equal(t, pipeline.StatusActive, prev)

	// The publish mark is recorded back on the normalized job.
	got, err := h.store.GetNormalizedJob(ctx, job.ID)
	require.NoError(t, err)
	require.True(t, got.IsPublished)
	require.Equal(t, listingID, got.JobPostID)
}

func TestExecute_LowQualityHeldForReview(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{responses: map[string]fetch.Response{
		"https://board.test/jobs": {
			URL: "https://board.test/jobs", StatusCode: 200,
			Body: []byte("<html><body>" + bareItem("Engineer needed", "/jobs/1") + "</body></html>"),
		},
	}}
	h := newHarness(t, fetcher)
	ctx := context.Background()
	seedSource(t, h.store, 0.8)
	run := startRun(t, h, "src-1")

	h.runner.Execute(ctx, run.ID)

	got, err := h.store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.Equal(t, pipeline.RunStatusCompleted, got.Status)
	require.Equal(t, 0, got.Counters.ItemsCreated)
	require.Equal(t, 1, got.Counters.ItemsProcessed)

	jobs, err := h.store.ListPendingReview(ctx, store.ListOptions{})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.False(t, jobs[0].IsPublished)
	require.Less(t, jobs[0].QualityScore, 0.8)

	// Manual review was announced.
	events := h.notifier.Events()
	require.Len(t, events, 1)
	require.Equal(t, pipeline.EventManualReviewQueued, events[0].Event)
}

func TestExecute_DuplicateItemsSkippedAcrossRuns(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{responses: map[string]fetch.Response{
		"https://board.test/jobs": {
			URL: "https://board.test/jobs", StatusCode: 200,
			Body: []byte("<html><body>" + richItem("Senior Go Engineer", "/jobs/1") + "</body></html>"),
		},
	}}
	h := newHarness(t, fetcher)
	ctx := context.Background()
	seedSource(t, h.store, 0.8)

	first := startRun(t, h, "src-1")
	h.runner.Execute(ctx, first.ID)

	second := startRun(t, h, "src-1")
	h.runner.Execute(ctx, second.ID)

	got, err := h.store.GetRun(ctx, second.ID)
	require.NoError(t, err)
	require.Equal(t, pipeline.RunStatusCompleted, got.Status)
	require.Equal(t, 1, got.Counters.ItemsFound)
	require.Equal(t, 1, got.Counters.ItemsSkipped)
	require.Equal(t, 0, got.Counters.ItemsCreated)
}

func TestExecute_AllPagesFailedFailsRun(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{errs: map[string]error{
		"https://board.test/jobs": &pipeline.FetchError{URL: "https://board.test/jobs", StatusCode: 500},
	}}
	h := newHarness(t, fetcher)
	ctx := context.Background()
	seedSource(t, h.store, 0.8)
	run := startRun(t, h, "src-1")

	h.runner.Execute(ctx, run.ID)

	got, err := h.store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.Equal(t, pipeline.RunStatusFailed, got.Status)
	require.NotEmpty(t, got.ErrorText)
	require.Equal(t, 1, got.Counters.PagesFailed)

	events := h.notifier.Events()
	require.Len(t, events, 1)
	require.Equal(t, pipeline.EventRunFailed, events[0].Event)
}

func TestExecute_PartialFailureStillCompletes(t *testing.T) {
	t.Parallel()

	// Page one succeeds and links to page two, which always fails.
	fetcher := &fakeFetcher{
		responses: map[string]fetch.Response{
			"https://board.test/jobs": {
				URL: "https://board.test/jobs", StatusCode: 200,
				Body: []byte("<html><body>" + richItem("Senior Go Engineer", "/jobs/1") +
					`<a rel="next" href="/jobs?page=2">next</a></body></html>`),
			},
		},
		errs: map[string]error{
			"https://board.test/jobs?page=2": &pipeline.FetchError{URL: "https://board.test/jobs?page=2", StatusCode: 500},
		},
	}
	h := newHarness(t, fetcher)
	ctx := context.Background()
	seedSource(t, h.store, 0.8)
	run := startRun(t, h, "src-1")

	h.runner.Execute(ctx, run.ID)

	got, err := h.store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.Equal(t, pipeline.RunStatusCompleted, got.Status)
	require.Equal(t, 1, got.Counters.PagesFetched)
	require.Equal(t, 1, got.Counters.PagesFailed)
	require.Equal(t, 1, got.Counters.ItemsCreated)

	pages, err := h.store.ListPages(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	require.NotEmpty(t, pages[1].ErrorText)
}

func TestExecute_CancelledBeforePickupIsSkipped(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{responses: map[string]fetch.Response{}}
	h := newHarness(t, fetcher)
	ctx := context.Background()
	seedSource(t, h.store, 0.8)
	run := startRun(t, h, "src-1")

	_, err := h.service.CancelRun(ctx, run.ID)
	require.NoError(t, err)

	h.runner.Execute(ctx, run.ID)

	got, err := h.store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.Equal(t, pipeline.RunStatusCancelled, got.Status)
	require.Zero(t, got.Counters.PagesFetched)
}

func TestService_StartRunRejectsInactiveSource(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeFetcher{})
	ctx := context.Background()
	src := pipeline.Source{ID: "src-off", Name: "Off", Type: pipeline.SourceTypeHTML, BaseURL: "https://x", Active: false}
	require.NoError(t, h.store.CreateSource(ctx, src))

	_, err := h.service.StartRun(ctx, "src-off", pipeline.RunModeManual, 0)
	require.Error(t, err)
}

func TestService_StartRunRecordsMode(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeFetcher{})
	ctx := context.Background()
	seedSource(t, h.store, 0.8)

	run, err := h.service.StartRun(ctx, "src-1", pipeline.RunModeScheduled, 0)
	require.NoError(t, err)
	require.Equal(t, pipeline.RunModeScheduled, run.Mode)

	stored, err := h.store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.Equal(t, pipeline.RunModeScheduled, stored.Mode)

	run, err = h.service.StartRun(ctx, "src-1", "", 0)
	require.NoError(t, err)
	require.Equal(t, pipeline.RunModeManual, run.Mode)
}

func TestService_CancelTerminalRunFails(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{errs: map[string]error{
		"https://board.test/jobs": &pipeline.FetchError{URL: "https://board.test/jobs", StatusCode: 500},
	}}
	h := newHarness(t, fetcher)
	ctx := context.Background()
	seedSource(t, h.store, 0.8)
	run := startRun(t, h, "src-1")
	h.runner.Execute(ctx, run.ID)

	_, err := h.service.CancelRun(ctx, run.ID)
	require.ErrorIs(t, err, store.ErrConflict)
}
