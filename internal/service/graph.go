package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noetic-labs/covenant/internal/domain"
	"github.com/noetic-labs/covenant/internal/store"
)

var (
	ErrNodeNameRequired  = errors.New("name is required")
	ErrNodeLabelRequired = errors.New("label is required")
	ErrRelationRequired  = errors.New("relation is required")
	ErrEndpointRequired  = errors.New("source_id and target_id are required")
	ErrEmbeddingRequired = errors.New("embedding is required")
)

// GraphService is the write path for nodes and edges. Deletion is not here:
// edges leave the graph only through the constitutive guard.
type GraphService struct {
	nodeStore domain.NodeStore
	edgeStore domain.EdgeStore
	logger    *zap.Logger
}

func NewGraphService(ns domain.NodeStore, es domain.EdgeStore, logger *zap.Logger) *GraphService {
	return &GraphService{
		nodeStore: ns,
		edgeStore: es,
		logger:    logger,
	}
}

func (s *GraphService) AddNode(ctx context.Context, name, label string, properties map[string]any) (*domain.Node, error) {
	if name == "" {
		return nil, ErrNodeNameRequired
	}
	if label == "" {
		return nil, ErrNodeLabelRequired
	}

	node := &domain.Node{
		Label:      label,
		Name:       name,
		Properties: properties,
	}
	if err := s.nodeStore.Create(ctx, node); err != nil {
		return nil, err
	}
	return node, nil
}

func (s *GraphService) GetNode(ctx context.Context, id uuid.UUID) (*domain.Node, error) {
	node, err := s.nodeStore.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNodeNotFound
		}
		return nil, err
	}
	return node, nil
}

// SetNodeEmbedding stores a vector computed upstream. This core never
// generates embeddings.
func (s *GraphService) SetNodeEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error {
	if len(embedding) == 0 {
		return ErrEmbeddingRequired
	}
	err := s.nodeStore.UpdateEmbedding(ctx, id, embedding)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNodeNotFound
	}
	return err
}

// SimilarNodes is the candidate-pairing lookup used by the external
// comparator before it calls classify.
func (s *GraphService) SimilarNodes(ctx context.Context, embedding []float32, threshold float32, limit int) ([]domain.NodeWithScore, error) {
	if len(embedding) == 0 {
		return nil, ErrEmbeddingRequired
	}
	return s.nodeStore.FindSimilar(ctx, embedding, threshold, limit)
}

func (s *GraphService) AddEdge(ctx context.Context, e *domain.Edge) error {
	if e.Relation == "" {
		return ErrRelationRequired
	}
	if e.SourceID == uuid.Nil || e.TargetID == uuid.Nil {
		return ErrEndpointRequired
	}
	if err := e.Properties.Validate(); err != nil {
		return err
	}

	for _, id := range []uuid.UUID{e.SourceID, e.TargetID} {
		if _, err := s.nodeStore.GetByID(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrNodeNotFound
			}
			return err
		}
	}

	if e.Weight == 0 {
		e.Weight = 1.0
	}
	return s.edgeStore.Create(ctx, e)
}

func (s *GraphService) GetEdge(ctx context.Context, id uuid.UUID) (*domain.Edge, error) {
	edge, err := s.edgeStore.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrEdgeNotFound
		}
		return nil, err
	}
	return edge, nil
}
