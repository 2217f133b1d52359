package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noetic-labs/covenant/internal/domain"
	"github.com/noetic-labs/covenant/internal/service"
)

type ResolutionHandler struct {
	svc      *service.ResolutionService
	querySvc *service.QueryService
}

func NewResolutionHandler(svc *service.ResolutionService, querySvc *service.QueryService) *ResolutionHandler {
	return &ResolutionHandler{svc: svc, querySvc: querySvc}
}

type resolveRequest struct {
	ResolutionType string `json:"resolution_type"`
	Reason         string `json:"reason,omitempty"`
	ResolvedBy     string `json:"resolved_by,omitempty"`
}

func (h *ResolutionHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	reviewID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid review id")
		return
	}

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.svc.Resolve(r.Context(), reviewID,
		domain.DissonanceType(req.ResolutionType), req.Reason, req.ResolvedBy)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownResolutionType):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrReviewNotFound),
			errors.Is(err, service.ErrEdgeNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrReviewAlreadyResolved):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to resolve review")
		}
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

type resolutionListResponse struct {
	Resolutions []domain.ResolutionSummary `json:"resolutions"`
	Count       int                        `json:"count"`
}

func (h *ResolutionHandler) ListForNode(w http.ResponseWriter, r *http.Request) {
	nodeName := r.URL.Query().Get("node_name")
	if nodeName == "" {
		writeError(w, http.StatusBadRequest, "node_name parameter is required")
		return
	}

	summaries, err := h.querySvc.ResolutionsForNode(r.Context(), nodeName)
	if err != nil {
		if errors.Is(err, service.ErrNodeNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to list resolutions")
		return
	}

	writeJSON(w, http.StatusOK, resolutionListResponse{Resolutions: summaries, Count: len(summaries)})
}
