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

type DissonanceHandler struct {
	svc *service.DissonanceService
}

func NewDissonanceHandler(svc *service.DissonanceService) *DissonanceHandler {
	return &DissonanceHandler{svc: svc}
}

type classifyRequest struct {
	EdgeAID string `json:"edge_a_id"`
	EdgeBID string `json:"edge_b_id"`
}

func (h *DissonanceHandler) Classify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	edgeAID, err := uuid.Parse(req.EdgeAID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid edge_a_id")
		return
	}
	edgeBID, err := uuid.Parse(req.EdgeBID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid edge_b_id")
		return
	}

	result, err := h.svc.Classify(r.Context(), edgeAID, edgeBID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSameEdge):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrEdgeNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to classify dissonance")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type openReviewRequest struct {
	EdgeAID        string `json:"edge_a_id"`
	EdgeBID        string `json:"edge_b_id"`
	DissonanceType string `json:"dissonance_type"`
	Evidence       string `json:"evidence,omitempty"`
}

func (h *DissonanceHandler) OpenReview(w http.ResponseWriter, r *http.Request) {
	var req openReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	edgeAID, err := uuid.Parse(req.EdgeAID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid edge_a_id")
		return
	}
	edgeBID, err := uuid.Parse(req.EdgeBID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid edge_b_id")
		return
	}

	review, err := h.svc.OpenReview(r.Context(), &domain.DissonanceResult{
		EdgeAID:        edgeAID,
		EdgeBID:        edgeBID,
		DissonanceType: domain.DissonanceType(req.DissonanceType),
		Evidence:       req.Evidence,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidDissonanceType),
			errors.Is(err, service.ErrEvolutionNotReviewed):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to open review")
		}
		return
	}

	writeJSON(w, http.StatusCreated, review)
}

type reviewListResponse struct {
	Reviews []domain.ReviewProposal `json:"reviews"`
	Count   int                     `json:"count"`
}

func (h *DissonanceHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.svc.PendingReviews(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list reviews")
		return
	}

	writeJSON(w, http.StatusOK, reviewListResponse{Reviews: reviews, Count: len(reviews)})
}

func (h *DissonanceHandler) GetReview(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid review id")
		return
	}

	review, err := h.svc.FindReview(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrReviewNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get review")
		return
	}

	writeJSON(w, http.StatusOK, review)
}
