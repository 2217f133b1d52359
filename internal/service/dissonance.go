package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noetic-labs/covenant/internal/domain"
	"github.com/noetic-labs/covenant/internal/store"
)

var (
	ErrReviewNotFound        = errors.New("review not found")
	ErrSameEdge              = errors.New("cannot classify an edge against itself")
	ErrEvolutionNotReviewed  = errors.New("evolution resolves directly and never opens a review")
	ErrInvalidDissonanceType = errors.New("invalid dissonance_type")
)

// DissonanceService classifies tension between two edges and routes
// CONTRADICTION and NUANCE to a store-backed review queue. The queue
// surviving restarts is the point: reviews are rows, not process state.
type DissonanceService struct {
	edgeStore   domain.EdgeStore
	reviewStore domain.ReviewStore
	auditStore  domain.AuditStore
	classifier  domain.DissonanceClassifier
	logger      *zap.Logger
}

func NewDissonanceService(es domain.EdgeStore, rs domain.ReviewStore, as domain.AuditStore, c domain.DissonanceClassifier, logger *zap.Logger) *DissonanceService {
	if c == nil {
		c = RuleClassifier{}
	}
	return &DissonanceService{
		edgeStore:   es,
		reviewStore: rs,
		auditStore:  as,
		classifier:  c,
		logger:      logger,
	}
}

func (s *DissonanceService) Classify(ctx context.Context, edgeAID, edgeBID uuid.UUID) (*domain.DissonanceResult, error) {
	if edgeAID == edgeBID {
		return nil, ErrSameEdge
	}

	a, err := s.edgeStore.GetByID(ctx, edgeAID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrEdgeNotFound
		}
		return nil, err
	}
	b, err := s.edgeStore.GetByID(ctx, edgeBID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrEdgeNotFound
		}
		return nil, err
	}

	result, err := s.classifier.Classify(ctx, a, b)
	if err != nil {
		return nil, fmt.Errorf("classify dissonance: %w", err)
	}
	if !domain.ValidDissonanceType(string(result.DissonanceType)) {
		return nil, ErrInvalidDissonanceType
	}
	return result, nil
}

// OpenReview stores a PENDING proposal for a non-evolution dissonance.
func (s *DissonanceService) OpenReview(ctx context.Context, result *domain.DissonanceResult) (*domain.ReviewProposal, error) {
	if !domain.ValidDissonanceType(string(result.DissonanceType)) {
		return nil, ErrInvalidDissonanceType
	}
	if result.DissonanceType == domain.DissonanceEvolution {
		return nil, ErrEvolutionNotReviewed
	}

	review := &domain.ReviewProposal{
		Dissonance: *result,
		Status:     domain.ReviewPending,
	}
	if err := s.reviewStore.Create(ctx, review); err != nil {
		return nil, err
	}

	// Informational trail entry; best-effort by policy.
	entry := &domain.AuditLogEntry{
		EdgeID:  result.EdgeAID,
		Action:  domain.AuditReviewOpened,
		Blocked: false,
		Reason:  string(result.DissonanceType),
		Actor:   domain.ActorSystem,
		Properties: map[string]any{
			"review_id": review.ID.String(),
			"edge_b_id": result.EdgeBID.String(),
			"evidence":  result.Evidence,
		},
	}
	if err := s.auditStore.Append(ctx, entry); err != nil {
		s.logger.Error("audit append failed for opened review",
			zap.String("review_id", review.ID.String()),
			zap.Error(err))
	}

	s.logger.Info("dissonance review opened",
		zap.String("review_id", review.ID.String()),
		zap.String("type", string(result.DissonanceType)))

	return review, nil
}

func (s *DissonanceService) PendingReviews(ctx context.Context) ([]domain.ReviewProposal, error) {
	return s.reviewStore.ListPending(ctx)
}

func (s *DissonanceService) FindReview(ctx context.Context, id uuid.UUID) (*domain.ReviewProposal, error) {
	review, err := s.reviewStore.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrReviewNotFound
		}
		return nil, err
	}
	return review, nil
}

// RuleClassifier is the built-in stand-in for the external decision function.
// Deployments with an NL comparator inject their own DissonanceClassifier;
// these rules only look at graph shape:
//
//   - same source, same relation, different target, B newer: the belief moved
//     on, EVOLUTION;
//   - relations that negate each other (one is "NOT_" + the other) over the
//     same endpoints: CONTRADICTION;
//   - anything else: NUANCE.
type RuleClassifier struct{}

func (RuleClassifier) Classify(_ context.Context, a, b *domain.Edge) (*domain.DissonanceResult, error) {
	result := &domain.DissonanceResult{
		EdgeAID: a.ID,
		EdgeBID: b.ID,
	}

	switch {
	case a.SourceID == b.SourceID && a.Relation == b.Relation &&
		a.TargetID != b.TargetID && b.CreatedAt.After(a.CreatedAt):
		result.DissonanceType = domain.DissonanceEvolution
		result.Evidence = fmt.Sprintf("same %s relation from one subject points at a newer object", a.Relation)

	case a.SourceID == b.SourceID && a.TargetID == b.TargetID && negates(a.Relation, b.Relation):
		result.DissonanceType = domain.DissonanceContradiction
		result.Evidence = fmt.Sprintf("relations %s and %s negate each other over the same endpoints", a.Relation, b.Relation)

	default:
		result.DissonanceType = domain.DissonanceNuance
		result.Evidence = "edges overlap without a clear replacement or negation"
	}
	return result, nil
}

func negates(a, b string) bool {
	return a == "NOT_"+b || b == "NOT_"+a ||
		strings.EqualFold(a, "not_"+b) || strings.EqualFold(b, "not_"+a)
}

var _ domain.DissonanceClassifier = RuleClassifier{}
