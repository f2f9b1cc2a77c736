package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/talentwire/jobharvest/internal/pipeline"
	"github.com/talentwire/jobharvest/internal/store"
	"github.com/talentwire/jobharvest/internal/workflow"
)

type listingActionRequest struct {
	Actor            string `json:"actor"`
	Reason           string `json:"reason"`
	PublishImmediate bool   `json:"publish_immediately"`
}

func (s *Server) getListing(w http.ResponseWriter, r *http.Request) {
	listing, err := s.store.GetListing(r.Context(), chi.URLParam(r, "listing_id"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, "listing not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"listing": listing})
}

func (s *Server) listWorkflowLog(w http.ResponseWriter, r *http.Request) {
	listingID := chi.URLParam(r, "listing_id")
	if _, err := s.store.GetListing(r.Context(), listingID); err != nil {
		s.writeError(w, http.StatusNotFound, "listing not found")
		return
	}
	entries, err := s.store.ListWorkflowLogs(r.Context(), listingID)
	if err != nil {
		s.logger.Error("list workflow log failed", zap.String("listing_id", listingID), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list workflow log")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"log": entries})
}

// listingAction dispatches POST /v1/listings/{listing_id}/{action} to the
// workflow engine. Every action requires an actor for the audit trail.
func (s *Server) listingAction(w http.ResponseWriter, r *http.Request) {
	listingID := chi.URLParam(r, "listing_id")
	action := chi.URLParam(r, "action")

	var req listingActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	actor := trimActor(req.Actor)
	if actor == "" {
		s.writeError(w, http.StatusBadRequest, "actor is required")
		return
	}

	ctx := r.Context()
	var (
		listing pipeline.JobListing
		err     error
	)
	switch action {
	case workflow.ActionSubmit:
		listing, err = s.workflow.Submit(ctx, listingID, actor)
	case workflow.ActionApprove:
		listing, err = s.workflow.Approve(ctx, listingID, actor, req.PublishImmediate)
	case workflow.ActionReject:
		listing, err = s.workflow.Reject(ctx, listingID, actor, req.Reason)
	case workflow.ActionReview:
		listing, err = s.workflow.Review(ctx, listingID, actor, req.Reason)
	case workflow.ActionPublish:
		listing, err = s.workflow.Publish(ctx, listingID, actor)
	case workflow.ActionPause:
		listing, err = s.workflow.Pause(ctx, listingID, actor)
	case workflow.ActionResume:
		listing, err = s.workflow.Resume(ctx, listingID, actor)
	case workflow.ActionClose:
		listing, err = s.workflow.Close(ctx, listingID, actor)
	case workflow.ActionReopen:
		listing, err = s.workflow.Reopen(ctx, listingID, actor)
	case workflow.ActionExpire:
		listing, err = s.workflow.Expire(ctx, listingID, actor)
	case workflow.ActionCancel:
		listing, err = s.workflow.Cancel(ctx, listingID, actor, req.Reason)
	case workflow.ActionFlag:
		listing, err = s.workflow.Flag(ctx, listingID, actor, req.Reason)
	case workflow.ActionUnflag:
		listing, err = s.workflow.Unflag(ctx, listingID, actor)
	default:
		s.writeError(w, http.StatusNotFound, "unknown action")
		return
	}
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			s.writeError(w, http.StatusNotFound, "listing not found")
		case errors.Is(err, pipeline.ErrInvalidTransition):
			s.writeError(w, http.StatusConflict, err.Error())
		default:
			s.logger.Error("workflow action failed",
				zap.String("listing_id", listingID),
				zap.String("action", action),
				zap.Error(err),
			)
			s.writeError(w, http.StatusInternalServerError, "workflow action failed")
		}
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"listing": listing})
}
