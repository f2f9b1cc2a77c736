package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/talentwire/jobharvest/internal/config"
	"github.com/talentwire/jobharvest/internal/id/uuid"
	"github.com/talentwire/jobharvest/internal/metrics"
	notifymemory "github.com/talentwire/jobharvest/internal/notify/memory"
	"github.com/talentwire/jobharvest/internal/orchestrator"
	"github.com/talentwire/jobharvest/internal/pipeline"
	"github.com/talentwire/jobharvest/internal/store/memory"
	"github.com/talentwire/jobharvest/internal/workflow"
)

func TestMain(m *testing.M) {
	metrics.Init()
	m.Run()
}

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

type testServer struct {
	server *Server
	store  *memory.Store
	queue  *orchestrator.MemoryQueue
}

func newTestServer(t *testing.T, cfg config.Config) *testServer {
	t.Helper()

	st := memory.New()
	ids := uuid.NewUUIDGenerator()
	clock := fakeClock{now: time.Unix(1700000000, 0).UTC()}
	queue := orchestrator.NewMemoryQueue(10)
	svc := orchestrator.NewService(st, queue, ids, clock, zap.NewNop())
	wf := workflow.NewEngine(st, ids, clock, notifymemory.New(), zap.NewNop())

	return &testServer{
		server: NewServer(svc, wf, st, cfg, zap.NewNop()),
		store:  st,
		queue:  queue,
	}
}

func seedSource(t *testing.T, ts *testServer) pipeline.Source {
	t.Helper()
	src := pipeline.Source{
		ID:      "src-1",
		Name:    "Test Board",
		Type:    pipeline.SourceTypeHTML,
		BaseURL: "https://board.test/jobs",
		Active:  true,
	}
	require.NoError(t, ts.store.CreateSource(context.Background(), src))
	return src
}

func seedListing(t *testing.T, ts *testServer, status pipeline.ListingStatus) pipeline.JobListing {
	t.Helper()
	listing := pipeline.JobListing{
		ID:      "listing-1",
		Title:   "Senior Go Engineer",
		Company: "Acme Corp",
		Status:  status,
	}
	require.NoError(t, ts.store.CreateListing(context.Background(), listing))
	return listing
}

func do(ts *testServer, method, path string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	}
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, config.Config{})
	rec := do(ts, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ok")
}

func TestServer_StartRun_EnqueuesRun(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, config.Config{})
	seedSource(t, ts)

	rec := do(ts, http.MethodPost, "/v1/runs/", `{"source_id":"src-1"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Contains(t, rec.Body.String(), "src-1")

	runID, err := ts.queue.Dequeue(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	run, err := ts.store.GetRun(context.Background(), runID)
	require.NoError(t, err)
	require.Equal(t, pipeline.RunModeManual, run.Mode)
}

func TestServer_StartRun_MissingSourceID(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, config.Config{})
	rec := do(ts, http.MethodPost, "/v1/runs/", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_StartRun_UnknownSource(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, config.Config{})
	rec := do(ts, http.MethodPost, "/v1/runs/", `{"source_id":"nope"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_CancelRun(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, config.Config{})
	seedSource(t, ts)

	rec := do(ts, http.MethodPost, "/v1/runs/", `{"source_id":"src-1"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	runID, err := ts.queue.Dequeue(context.Background())
	require.NoError(t, err)

	rec = do(ts, http.MethodPost, "/v1/runs/"+runID+"/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), string(pipeline.RunStatusCancelled))

	// Cancelling a terminal run conflicts.
	rec = do(ts, http.MethodPost, "/v1/runs/"+runID+"/cancel", "")
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestServer_GetRun_NotFound(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, config.Config{})
	rec := do(ts, http.MethodGet, "/v1/runs/missing/", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_CreateAndGetSource(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, config.Config{})
	rec := do(ts, http.MethodPost, "/v1/sources/", `{"name":"Board","base_url":"https://b.test","type":"html","active":true}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(ts, http.MethodPost, "/v1/sources/", `{"name":"Board"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_ListingActions_WalkToActive(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, config.Config{})
	seedListing(t, ts, pipeline.StatusDraft)

	rec := do(ts, http.MethodPost, "/v1/listings/listing-1/submit", `{"actor":"ops"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), string(pipeline.StatusPendingApproval))

	rec = do(ts, http.MethodPost, "/v1/listings/listing-1/approve", `{"actor":"ops","publish_immediately":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), string(pipeline.StatusActive))

	rec = do(ts, http.MethodGet, "/v1/listings/listing-1/log", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), workflow.ActionPublish)
}

func TestServer_ListingAction_InvalidTransitionConflicts(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, config.Config{})
	seedListing(t, ts, pipeline.StatusDraft)

	rec := do(ts, http.MethodPost, "/v1/listings/listing-1/pause", `{"actor":"ops"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestServer_ListingAction_RequiresActor(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, config.Config{})
	seedListing(t, ts, pipeline.StatusDraft)

	rec := do(ts, http.MethodPost, "/v1/listings/listing-1/submit", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_ListingAction_UnknownAction(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, config.Config{})
	seedListing(t, ts, pipeline.StatusDraft)

	rec := do(ts, http.MethodPost, "/v1/listings/listing-1/destroy", `{"actor":"ops"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_PendingReview(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, config.Config{})
	job := pipeline.NormalizedJob{
		ID:       "job-1",
		SourceID: "src-1",
		Title:    "Engineer needed",
	}
	require.NoError(t, ts.store.InsertNormalizedJob(context.Background(), job))

	rec := do(ts, http.MethodGet, "/v1/jobs/pending-review", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "job-1")

	rec = do(ts, http.MethodGet, "/v1/jobs/pending-review?limit=bad", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_APIKeyMiddleware(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, config.Config{Auth: config.AuthConfig{Enabled: true, APIKey: "sekret"}})
	seedSource(t, ts)

	rec := do(ts, http.MethodGet, "/v1/sources/", "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/sources/", nil)
	req.Header.Set("X-API-Key", "sekret")
	ok := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(ok, req)
	require.Equal(t, http.StatusOK, ok.Code)

	// Probes stay open without a key.
	rec = do(ts, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
}
