package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noetic-labs/covenant/internal/domain"
	"github.com/noetic-labs/covenant/internal/store"
)

var (
	ErrUnknownResolutionType = errors.New("unknown resolution_type")
	ErrReviewAlreadyResolved = errors.New("review already resolved")
)

// ResolutionLabel is the label of hyperedge anchor nodes.
const ResolutionLabel = "Resolution"

// ResolutionService turns a reviewed conflict into a permanent annotation: a
// small hyperedge (anchor node, two RESOLVES spokes) documenting the outcome.
// The edges under review are never mutated or deleted.
type ResolutionService struct {
	edgeStore   domain.EdgeStore
	reviewStore domain.ReviewStore
	auditStore  domain.AuditStore
	applier     domain.ResolutionApplier
	logger      *zap.Logger
}

func NewResolutionService(es domain.EdgeStore, rs domain.ReviewStore, as domain.AuditStore, applier domain.ResolutionApplier, logger *zap.Logger) *ResolutionService {
	return &ResolutionService{
		edgeStore:   es,
		reviewStore: rs,
		auditStore:  as,
		applier:     applier,
		logger:      logger,
	}
}

func (s *ResolutionService) Resolve(ctx context.Context, reviewID uuid.UUID, resolutionType domain.DissonanceType, reason string, resolvedBy string) (*domain.ResolutionResult, error) {
	if !domain.ValidDissonanceType(string(resolutionType)) {
		return nil, ErrUnknownResolutionType
	}
	if resolvedBy == "" {
		resolvedBy = domain.ActorProtected
	}

	review, err := s.reviewStore.GetByID(ctx, reviewID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrReviewNotFound
		}
		return nil, err
	}
	if review.Status != domain.ReviewPending {
		return nil, ErrReviewAlreadyResolved
	}

	edgeA, err := s.edgeStore.GetByID(ctx, review.Dissonance.EdgeAID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrEdgeNotFound
		}
		return nil, err
	}
	edgeB, err := s.edgeStore.GetByID(ctx, review.Dissonance.EdgeBID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrEdgeNotFound
		}
		return nil, err
	}

	now := time.Now().UTC()
	props := domain.EdgeProperties{
		EdgeType:       domain.EdgeResolution,
		ResolutionType: resolutionType,
		Context:        reason,
		ResolvedAt:     &now,
		ResolvedBy:     resolvedBy,
	}
	switch resolutionType {
	case domain.DissonanceEvolution:
		props.Supersedes = []uuid.UUID{edgeA.ID}
		props.SupersededBy = []uuid.UUID{edgeB.ID}
	default:
		props.AffectedEdges = []uuid.UUID{edgeA.ID, edgeB.ID}
	}

	status := domain.ReviewReclassified
	if resolutionType == review.Dissonance.DissonanceType {
		status = domain.ReviewConfirmed
	}

	// Anchor named after the review: one resolution, one anchor.
	anchor := &domain.Node{
		Label: ResolutionLabel,
		Name:  "resolution:" + reviewID.String(),
		Properties: map[string]any{
			"review_id": reviewID.String(),
		},
	}
	spokes := []*domain.Edge{
		{TargetID: edgeA.TargetID, Relation: domain.RelationResolves, Weight: 1.0, Properties: props},
		{TargetID: edgeB.TargetID, Relation: domain.RelationResolves, Weight: 1.0, Properties: props},
	}

	write := &domain.ResolutionWrite{
		Anchor:       anchor,
		Spokes:       spokes,
		ReviewID:     reviewID,
		Status:       status,
		ReviewReason: reason,
		ReviewedAt:   now,
	}
	if err := s.applier.Apply(ctx, write); err != nil {
		if errors.Is(err, store.ErrAlreadyResolved) {
			return nil, ErrReviewAlreadyResolved
		}
		return nil, fmt.Errorf("apply resolution: %w", err)
	}

	// Informational trail entry; best-effort by policy.
	entry := &domain.AuditLogEntry{
		EdgeID:  edgeA.ID,
		Action:  domain.AuditResolutionApplied,
		Blocked: false,
		Reason:  reason,
		Actor:   resolvedBy,
		Properties: map[string]any{
			"review_id":       reviewID.String(),
			"resolution_type": string(resolutionType),
			"status":          string(status),
			"edge_b_id":       edgeB.ID.String(),
			"anchor_id":       anchor.ID.String(),
		},
	}
	if err := s.auditStore.Append(ctx, entry); err != nil {
		s.logger.Error("audit append failed for applied resolution",
			zap.String("review_id", reviewID.String()),
			zap.Error(err))
	}

	s.logger.Info("dissonance resolved",
		zap.String("review_id", reviewID.String()),
		zap.String("resolution_type", string(resolutionType)),
		zap.String("status", string(status)))

	edges := make([]domain.Edge, len(spokes))
	for i, spoke := range spokes {
		edges[i] = *spoke
	}
	return &domain.ResolutionResult{
		ReviewID:       reviewID,
		Status:         status,
		ResolutionType: resolutionType,
		Node:           anchor,
		Edges:          edges,
	}, nil
}
