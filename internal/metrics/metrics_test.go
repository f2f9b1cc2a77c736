package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://boards.example.com/jobs", "boards.example.com"},
		{"standard https", "https://Boards.Example.com/jobs", "boards.example.com"},
		{"no scheme", "example.com/jobs", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if harvestPagesTotal == nil || harvestItemsTotal == nil ||
		httpRequestsTotal == nil || httpRequestDurationSeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}

	ObserveFetch("https://boards.test", "success", 1024, 250*time.Millisecond)
	if val := testutil.ToFloat64(harvestPagesTotal.WithLabelValues("boards.test", "success")); val != 1 {
		t.Errorf("Expected harvestPagesTotal to be 1, got %f", val)
	}
	if val := testutil.ToFloat64(harvestBytesTotal.WithLabelValues("boards.test")); val != 1024 {
		t.Errorf("Expected harvestBytesTotal to be 1024, got %f", val)
	}
	if count := testutil.CollectAndCount(harvestFetchSeconds); count != 1 {
		t.Errorf("Expected 1 fetch latency series, got %d", count)
	}

	ObserveTransition("approve")
	if val := testutil.ToFloat64(workflowTransitionsTotal.WithLabelValues("approve")); val != 1 {
		t.Errorf("Expected workflowTransitionsTotal to be 1, got %f", val)
	}

	ObserveRateLimitDelay("src-metrics", 100*time.Millisecond)
	if count := testutil.CollectAndCount(rateLimitDelaysSeconds); count != 1 {
		t.Errorf("Expected 1 rate limit delay series, got %d", count)
	}
}

func TestMiddleware(t *testing.T) {
	Init()
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/test", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	ts := httptest.NewServer(r)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/test")
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if errInner := resp.Body.Close(); errInner != nil {
			t.Log(errInner)
		}
	}()

	if val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "200")); val != 1 {
		t.Errorf("Expected httpRequestsTotal for GET /test to be 1, got %f", val)
	}
	if val := testutil.CollectAndCount(httpRequestDurationSeconds); val <= 0 {
		t.Errorf("Expected httpRequestDurationSeconds to be observed, got %d", val)
	}
}
