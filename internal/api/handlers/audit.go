package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/noetic-labs/covenant/internal/domain"
)

type AuditHandler struct {
	store domain.AuditStore
}

func NewAuditHandler(store domain.AuditStore) *AuditHandler {
	return &AuditHandler{store: store}
}

type auditListResponse struct {
	Entries []domain.AuditLogEntry `json:"entries"`
	Count   int                    `json:"count"`
}

func (h *AuditHandler) Query(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := domain.AuditFilter{
		Action: domain.AuditAction(q.Get("action")),
		Actor:  q.Get("actor"),
	}
	if edgeID := q.Get("edge_id"); edgeID != "" {
		id, err := uuid.Parse(edgeID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid edge_id")
			return
		}
		filter.EdgeID = &id
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}

	entries, err := h.store.Query(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query audit log")
		return
	}

	writeJSON(w, http.StatusOK, auditListResponse{Entries: entries, Count: len(entries)})
}
