package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noetic-labs/covenant/internal/domain"
	"github.com/noetic-labs/covenant/internal/service"
)

type GraphHandler struct {
	graphSvc *service.GraphService
	guardSvc *service.GuardService
	querySvc *service.QueryService
}

func NewGraphHandler(graphSvc *service.GraphService, guardSvc *service.GuardService, querySvc *service.QueryService) *GraphHandler {
	return &GraphHandler{
		graphSvc: graphSvc,
		guardSvc: guardSvc,
		querySvc: querySvc,
	}
}

type createNodeRequest struct {
	Name       string         `json:"name"`
	Label      string         `json:"label"`
	Properties map[string]any `json:"properties,omitempty"`
}

func (h *GraphHandler) CreateNode(w http.ResponseWriter, r *http.Request) {
	var req createNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	node, err := h.graphSvc.AddNode(r.Context(), req.Name, req.Label, req.Properties)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNodeNameRequired),
			errors.Is(err, service.ErrNodeLabelRequired):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to create node")
		}
		return
	}

	writeJSON(w, http.StatusCreated, node)
}

func (h *GraphHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid node id")
		return
	}

	node, err := h.graphSvc.GetNode(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNodeNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get node")
		return
	}

	writeJSON(w, http.StatusOK, node)
}

type setEmbeddingRequest struct {
	Embedding []float32 `json:"embedding"`
}

func (h *GraphHandler) SetNodeEmbedding(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid node id")
		return
	}

	var req setEmbeddingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.graphSvc.SetNodeEmbedding(r.Context(), id, req.Embedding); err != nil {
		switch {
		case errors.Is(err, service.ErrEmbeddingRequired):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrNodeNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to set embedding")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type similarNodesRequest struct {
	Embedding []float32 `json:"embedding"`
	Threshold float32   `json:"threshold,omitempty"`
	Limit     int       `json:"limit,omitempty"`
}

type similarNodesResponse struct {
	Nodes []domain.NodeWithScore `json:"nodes"`
	Count int                    `json:"count"`
}

func (h *GraphHandler) SimilarNodes(w http.ResponseWriter, r *http.Request) {
	var req similarNodesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Threshold <= 0 {
		req.Threshold = 0.7
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}

	nodes, err := h.graphSvc.SimilarNodes(r.Context(), req.Embedding, req.Threshold, req.Limit)
	if err != nil {
		if errors.Is(err, service.ErrEmbeddingRequired) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to find similar nodes")
		return
	}
	if nodes == nil {
		nodes = []domain.NodeWithScore{}
	}

	writeJSON(w, http.StatusOK, similarNodesResponse{Nodes: nodes, Count: len(nodes)})
}

type createEdgeRequest struct {
	SourceID   string                `json:"source_id"`
	TargetID   string                `json:"target_id"`
	Relation   string                `json:"relation"`
	Weight     float64               `json:"weight,omitempty"`
	Properties domain.EdgeProperties `json:"properties"`
}

func (h *GraphHandler) CreateEdge(w http.ResponseWriter, r *http.Request) {
	var req createEdgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sourceID, err := uuid.Parse(req.SourceID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid source_id")
		return
	}
	targetID, err := uuid.Parse(req.TargetID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid target_id")
		return
	}

	edge := &domain.Edge{
		SourceID:   sourceID,
		TargetID:   targetID,
		Relation:   req.Relation,
		Weight:     req.Weight,
		Properties: req.Properties,
	}
	if err := h.graphSvc.AddEdge(r.Context(), edge); err != nil {
		switch {
		case errors.Is(err, service.ErrRelationRequired),
			errors.Is(err, service.ErrEndpointRequired),
			errors.Is(err, domain.ErrInvalidEdgeType),
			errors.Is(err, domain.ErrInvalidImportance),
			errors.Is(err, domain.ErrConstitutiveMarkers),
			errors.Is(err, domain.ErrResolutionFieldsOnly),
			errors.Is(err, domain.ErrResolutionNeedsFields):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrNodeNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to create edge")
		}
		return
	}

	writeJSON(w, http.StatusCreated, edge)
}

func (h *GraphHandler) GetEdge(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid edge id")
		return
	}

	edge, err := h.graphSvc.GetEdge(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrEdgeNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get edge")
		return
	}

	writeJSON(w, http.StatusOK, edge)
}

// DeleteEdge routes all edge deletion through the constitutive guard. A
// blocked deletion is 409 with the guard's decision in the body.
func (h *GraphHandler) DeleteEdge(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid edge id")
		return
	}

	consent := r.URL.Query().Get("consent") == "true"

	result, err := h.guardSvc.DeleteEdge(r.Context(), id, consent)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrConsentRequired):
			writeJSON(w, http.StatusConflict, result)
		case errors.Is(err, service.ErrEdgeNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to delete edge")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type neighborsResponse struct {
	Neighbors []service.Neighbor `json:"neighbors"`
	Count     int                `json:"count"`
}

func (h *GraphHandler) Neighbors(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid node id")
		return
	}

	q := r.URL.Query()
	opts := service.NeighborOptions{
		Relation:          q.Get("relation"),
		IncludeSuperseded: q.Get("include_superseded") == "true",
	}
	if depth := q.Get("depth"); depth != "" {
		d, err := strconv.Atoi(depth)
		if err != nil || d < 1 {
			writeError(w, http.StatusBadRequest, "invalid depth")
			return
		}
		opts.MaxDepth = d
	}
	if dir := q.Get("direction"); dir != "" {
		if !domain.ValidDirection(dir) {
			writeError(w, http.StatusBadRequest, "invalid direction")
			return
		}
		opts.Direction = domain.Direction(dir)
	}

	neighbors, err := h.querySvc.Neighbors(r.Context(), id, opts)
	if err != nil {
		if errors.Is(err, service.ErrNodeNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get neighbors")
		return
	}

	writeJSON(w, http.StatusOK, neighborsResponse{Neighbors: neighbors, Count: len(neighbors)})
}

type pathsResponse struct {
	Paths []service.Path `json:"paths"`
	Count int            `json:"count"`
}

func (h *GraphHandler) FindPaths(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	fromID, err := uuid.Parse(q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid or missing from parameter")
		return
	}
	toID, err := uuid.Parse(q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid or missing to parameter")
		return
	}

	opts := service.PathOptions{
		IncludeSuperseded: q.Get("include_superseded") == "true",
	}
	if depth := q.Get("max_depth"); depth != "" {
		d, err := strconv.Atoi(depth)
		if err != nil || d < 1 {
			writeError(w, http.StatusBadRequest, "invalid max_depth")
			return
		}
		opts.MaxDepth = d
	}
	if limit := q.Get("max_paths"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid max_paths")
			return
		}
		opts.MaxPaths = n
	}

	paths, err := h.querySvc.FindPath(r.Context(), fromID, toID, opts)
	if err != nil {
		if errors.Is(err, service.ErrNodeNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to find paths")
		return
	}

	writeJSON(w, http.StatusOK, pathsResponse{Paths: paths, Count: len(paths)})
}
