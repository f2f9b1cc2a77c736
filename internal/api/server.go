package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/talentwire/jobharvest/internal/config"
	"github.com/talentwire/jobharvest/internal/metrics"
	"github.com/talentwire/jobharvest/internal/orchestrator"
	"github.com/talentwire/jobharvest/internal/pipeline"
	"github.com/talentwire/jobharvest/internal/store"
	"github.com/talentwire/jobharvest/internal/workflow"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	requestTimeout   = 60 * time.Second
)

// Server wires HTTP handlers to the run service, the workflow engine, and
// the store.
type Server struct {
	router   chi.Router
	runs     *orchestrator.Service
	workflow *workflow.Engine
	store    store.Store
	cfg      config.Config
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	runs *orchestrator.Service,
	wf *workflow.Engine,
	st store.Store,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		runs:     runs,
		workflow: wf,
		store:    st,
		cfg:      cfg,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(requestTimeout))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Route("/sources", func(r chi.Router) {
			r.Post("/", s.createSource)
			r.Get("/", s.listSources)
			r.Get("/{source_id}", s.getSource)
		})
		r.Route("/runs", func(r chi.Router) {
			r.Post("/", s.startRun)
			r.Get("/", s.listRuns)
			r.Route("/{run_id}", func(r chi.Router) {
				r.Get("/", s.getRun)
				r.Get("/pages", s.listRunPages)
				r.Post("/cancel", s.cancelRun)
			})
		})
		r.Get("/jobs/pending-review", s.listPendingReview)
		r.Route("/listings/{listing_id}", func(r chi.Router) {
			r.Get("/", s.getListing)
			r.Get("/log", s.listWorkflowLog)
			r.Post("/{action}", s.listingAction)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	// The store is the only hard dependency; a failing lookup on a
	// nonexistent ID still proves it answers.
	if _, err := s.store.GetSource(r.Context(), "readyz-probe"); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type startRunRequest struct {
	SourceID string `json:"source_id"`
	Priority int    `json:"priority"`
}

func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SourceID == "" {
		s.writeError(w, http.StatusBadRequest, "source_id is required")
		return
	}
	run, err := s.runs.StartRun(r.Context(), req.SourceID, pipeline.RunModeManual, req.Priority)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "source not found")
			return
		}
		s.logger.Error("start run failed", zap.String("source_id", req.SourceID), zap.Error(err))
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]any{"run": run})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.GetRun(r.Context(), chi.URLParam(r, "run_id"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"run": run})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parseLimitOffset(r, defaultListLimit, maxListLimit)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	runs, err := s.runs.ListRuns(r.Context(), r.URL.Query().Get("source_id"), limit, offset)
	if err != nil {
		s.logger.Error("list runs failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) listRunPages(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")
	if _, err := s.runs.GetRun(r.Context(), runID); err != nil {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	pages, err := s.runs.ListPages(r.Context(), runID)
	if err != nil {
		s.logger.Error("list pages failed", zap.String("run_id", runID), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list pages")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"pages": pages})
}

func (s *Server) cancelRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.CancelRun(r.Context(), chi.URLParam(r, "run_id"))
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			s.writeError(w, http.StatusNotFound, "run not found")
		case errors.Is(err, store.ErrConflict):
			s.writeError(w, http.StatusConflict, err.Error())
		default:
			s.logger.Error("cancel run failed", zap.Error(err))
			s.writeError(w, http.StatusInternalServerError, "failed to cancel run")
		}
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"run": run})
}

func (s *Server) createSource(w http.ResponseWriter, r *http.Request) {
	var src pipeline.Source
	if err := json.NewDecoder(r.Body).Decode(&src); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if src.Name == "" || src.BaseURL == "" {
		s.writeError(w, http.StatusBadRequest, "name and base_url are required")
		return
	}
	if src.ID == "" {
		src.ID = uuid.NewString()
	}
	if err := s.store.CreateSource(r.Context(), src); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			s.writeError(w, http.StatusConflict, "source already exists")
			return
		}
		s.logger.Error("create source failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to create source")
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{"source": src})
}

func (s *Server) getSource(w http.ResponseWriter, r *http.Request) {
	src, err := s.store.GetSource(r.Context(), chi.URLParam(r, "source_id"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, "source not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"source": src})
}

func (s *Server) listSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.store.ListActiveSources(r.Context())
	if err != nil {
		s.logger.Error("list sources failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list sources")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sources": sources})
}

func (s *Server) listPendingReview(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parseLimitOffset(r, defaultListLimit, maxListLimit)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	jobs, err := s.store.ListPendingReview(r.Context(), store.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		s.logger.Error("list pending review failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		if val > maxLimit {
			val = maxLimit
		}
		limit = val
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type requestIDKey struct{}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// trimActor keeps actor strings tidy in the audit log.
func trimActor(actor string) string {
	return strings.TrimSpace(actor)
}
