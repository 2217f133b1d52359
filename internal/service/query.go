package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noetic-labs/covenant/internal/domain"
	"github.com/noetic-labs/covenant/internal/store"
)

var ErrNodeNotFound = errors.New("node not found")

const (
	defaultNeighborDepth = 1
	maxNeighborDepth     = 3
	defaultPathDepth     = 4
	maxPathDepth         = 6
	defaultMaxPaths      = 5
)

// QueryService reads the graph through the relevance engine: every returned
// edge carries its query-time score, traversal hits feed back into decay via
// access stats, and superseded edges are hidden unless asked for.
type QueryService struct {
	nodeStore domain.NodeStore
	edgeStore domain.EdgeStore
	logger    *zap.Logger
}

func NewQueryService(ns domain.NodeStore, es domain.EdgeStore, logger *zap.Logger) *QueryService {
	return &QueryService{
		nodeStore: ns,
		edgeStore: es,
		logger:    logger,
	}
}

type NeighborOptions struct {
	Relation          string
	MaxDepth          int
	Direction         domain.Direction
	IncludeSuperseded bool
}

type Neighbor struct {
	Node           *domain.Node     `json:"node"`
	Edge           domain.Edge      `json:"edge"`
	RelevanceScore float64          `json:"relevance_score"`
	Distance       int              `json:"distance"`
	Direction      domain.Direction `json:"direction"`
}

func (s *QueryService) Neighbors(ctx context.Context, nodeID uuid.UUID, opts NeighborOptions) ([]Neighbor, error) {
	if _, err := s.nodeStore.GetByID(ctx, nodeID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNodeNotFound
		}
		return nil, err
	}

	if opts.MaxDepth <= 0 {
		opts.MaxDepth = defaultNeighborDepth
	}
	if opts.MaxDepth > maxNeighborDepth {
		opts.MaxDepth = maxNeighborDepth
	}
	if opts.Direction == "" {
		opts.Direction = domain.DirectionBoth
	}

	now := time.Now()
	results := []Neighbor{}
	visited := map[uuid.UUID]bool{nodeID: true}
	seenEdges := map[uuid.UUID]bool{}
	frontier := []uuid.UUID{nodeID}

	for depth := 1; depth <= opts.MaxDepth && len(frontier) > 0; depth++ {
		var next []uuid.UUID

		for _, id := range frontier {
			edges, err := s.edgeStore.GetNeighbors(ctx, id, opts.Direction, opts.Relation)
			if err != nil {
				return nil, err
			}

			fresh := make([]domain.Edge, 0, len(edges))
			for _, e := range edges {
				if !seenEdges[e.ID] {
					seenEdges[e.ID] = true
					fresh = append(fresh, e)
				}
			}

			fresh, err = s.filterSuperseded(ctx, fresh, opts.IncludeSuperseded)
			if err != nil {
				return nil, err
			}

			for _, e := range fresh {
				neighborID := e.TargetID
				dir := domain.DirectionOutgoing
				if neighborID == id {
					neighborID = e.SourceID
					dir = domain.DirectionIncoming
				}

				node, err := s.nodeStore.GetByID(ctx, neighborID)
				if err != nil {
					if errors.Is(err, store.ErrNotFound) {
						continue
					}
					return nil, err
				}

				// A traversal hit reinforces the edge. Best-effort: a failed
				// stats bump never fails the read.
				if err := s.edgeStore.RecordAccess(ctx, e.ID); err != nil {
					s.logger.Warn("failed to record edge access",
						zap.String("edge_id", e.ID.String()),
						zap.Error(err))
				}

				results = append(results, Neighbor{
					Node:           node,
					Edge:           e,
					RelevanceScore: RelevanceScore(&e, now),
					Distance:       depth,
					Direction:      dir,
				})

				if !visited[neighborID] {
					visited[neighborID] = true
					next = append(next, neighborID)
				}
			}
		}

		frontier = next
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})
	return results, nil
}

type PathOptions struct {
	MaxDepth          int
	MaxPaths          int
	IncludeSuperseded bool
}

// Path is a route between two nodes. PathRelevance multiplies per-edge
// scores, so one stale link drags the whole route down.
type Path struct {
	Edges         []domain.Edge `json:"edges"`
	PathRelevance float64       `json:"path_relevance"`
}

func (s *QueryService) FindPath(ctx context.Context, fromID, toID uuid.UUID, opts PathOptions) ([]Path, error) {
	for _, id := range []uuid.UUID{fromID, toID} {
		if _, err := s.nodeStore.GetByID(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrNodeNotFound
			}
			return nil, err
		}
	}

	if opts.MaxDepth <= 0 {
		opts.MaxDepth = defaultPathDepth
	}
	if opts.MaxDepth > maxPathDepth {
		opts.MaxDepth = maxPathDepth
	}
	if opts.MaxPaths <= 0 {
		opts.MaxPaths = defaultMaxPaths
	}

	now := time.Now()
	type walk struct {
		nodeID    uuid.UUID
		edges     []domain.Edge
		onPath    map[uuid.UUID]bool
		relevance float64
	}

	paths := []Path{}
	queue := []walk{{
		nodeID:    fromID,
		onPath:    map[uuid.UUID]bool{fromID: true},
		relevance: 1.0,
	}}

	for len(queue) > 0 && len(paths) < opts.MaxPaths {
		current := queue[0]
		queue = queue[1:]

		if len(current.edges) >= opts.MaxDepth {
			continue
		}

		edges, err := s.edgeStore.GetNeighbors(ctx, current.nodeID, domain.DirectionBoth, "")
		if err != nil {
			return nil, err
		}
		edges, err = s.filterSuperseded(ctx, edges, opts.IncludeSuperseded)
		if err != nil {
			return nil, err
		}

		for _, e := range edges {
			neighborID := e.TargetID
			if neighborID == current.nodeID {
				neighborID = e.SourceID
			}
			if current.onPath[neighborID] {
				continue
			}

			newEdges := make([]domain.Edge, len(current.edges)+1)
			copy(newEdges, current.edges)
			newEdges[len(current.edges)] = e

			newRelevance := current.relevance * RelevanceScore(&e, now)

			if neighborID == toID {
				paths = append(paths, Path{Edges: newEdges, PathRelevance: newRelevance})
				if len(paths) >= opts.MaxPaths {
					break
				}
				continue
			}

			onPath := make(map[uuid.UUID]bool, len(current.onPath)+1)
			for id := range current.onPath {
				onPath[id] = true
			}
			onPath[neighborID] = true

			queue = append(queue, walk{
				nodeID:    neighborID,
				edges:     newEdges,
				onPath:    onPath,
				relevance: newRelevance,
			})
		}
	}

	sort.SliceStable(paths, func(i, j int) bool {
		return paths[i].PathRelevance > paths[j].PathRelevance
	})
	return paths, nil
}

// ResolutionsForNode summarizes every resolution hyperedge touching any node
// with the given name, across labels.
func (s *QueryService) ResolutionsForNode(ctx context.Context, nodeName string) ([]domain.ResolutionSummary, error) {
	nodes, err := s.nodeStore.FindByName(ctx, nodeName)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, ErrNodeNotFound
	}

	summaries := []domain.ResolutionSummary{}
	for _, node := range nodes {
		edges, err := s.edgeStore.ResolutionEdgesForNode(ctx, node.ID)
		if err != nil {
			return nil, err
		}

		// Both spokes of one hyperedge can land on the same node; report the
		// hyperedge once per node.
		seenAnchors := map[uuid.UUID]bool{}
		for _, e := range edges {
			if seenAnchors[e.SourceID] {
				continue
			}
			seenAnchors[e.SourceID] = true

			summaries = append(summaries, domain.ResolutionSummary{
				NodeID:         node.ID,
				AnchorID:       e.SourceID,
				ResolutionType: e.Properties.ResolutionType,
				Context:        e.Properties.Context,
				ResolvedBy:     e.Properties.ResolvedBy,
				ResolvedAt:     e.Properties.ResolvedAt,
				Supersedes:     e.Properties.Supersedes,
				SupersededBy:   e.Properties.SupersededBy,
				AffectedEdges:  e.Properties.AffectedEdges,
			})
		}
	}
	return summaries, nil
}

// filterSuperseded drops superseded edges unless asked to keep them.
// Resolution edges are never filtered; they are the record of supersession.
func (s *QueryService) filterSuperseded(ctx context.Context, edges []domain.Edge, include bool) ([]domain.Edge, error) {
	if include || len(edges) == 0 {
		return edges, nil
	}

	var candidates []uuid.UUID
	for _, e := range edges {
		if e.Properties.EdgeType != domain.EdgeResolution && !e.Properties.Superseded {
			candidates = append(candidates, e.ID)
		}
	}

	superseded := map[uuid.UUID]bool{}
	if len(candidates) > 0 {
		var err error
		superseded, err = s.edgeStore.SupersededIDs(ctx, candidates)
		if err != nil {
			return nil, err
		}
	}

	kept := make([]domain.Edge, 0, len(edges))
	for _, e := range edges {
		if e.Properties.EdgeType == domain.EdgeResolution {
			kept = append(kept, e)
			continue
		}
		if e.Properties.Superseded || superseded[e.ID] {
			continue
		}
		kept = append(kept, e)
	}
	return kept, nil
}
