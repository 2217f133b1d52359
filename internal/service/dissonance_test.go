package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noetic-labs/covenant/internal/domain"
)

func newDissonanceFixture() (*DissonanceService, *mockEdgeStore, *mockReviewStore, *mockAuditStore) {
	audit := newMockAuditStore()
	edges := newMockEdgeStore(audit)
	reviews := newMockReviewStore()
	svc := NewDissonanceService(edges, reviews, audit, nil, zap.NewNop())
	return svc, edges, reviews, audit
}

func TestRuleClassifierEvolution(t *testing.T) {
	source := uuid.New()
	older := &domain.Edge{
		ID:        uuid.New(),
		SourceID:  source,
		TargetID:  uuid.New(),
		Relation:  "WORKS_AT",
		CreatedAt: time.Now().Add(-48 * time.Hour),
	}
	newer := &domain.Edge{
		ID:        uuid.New(),
		SourceID:  source,
		TargetID:  uuid.New(),
		Relation:  "WORKS_AT",
		CreatedAt: time.Now(),
	}

	result, err := RuleClassifier{}.Classify(context.Background(), older, newer)
	require.NoError(t, err)
	require.Equal(t, domain.DissonanceEvolution, result.DissonanceType)
	require.Equal(t, older.ID, result.EdgeAID)
	require.Equal(t, newer.ID, result.EdgeBID)
	require.NotEmpty(t, result.Evidence)
}

func TestRuleClassifierContradiction(t *testing.T) {
	source, target := uuid.New(), uuid.New()
	a := &domain.Edge{ID: uuid.New(), SourceID: source, TargetID: target, Relation: "LIKES"}
	b := &domain.Edge{ID: uuid.New(), SourceID: source, TargetID: target, Relation: "NOT_LIKES"}

	result, err := RuleClassifier{}.Classify(context.Background(), a, b)
	require.NoError(t, err)
	require.Equal(t, domain.DissonanceContradiction, result.DissonanceType)
}

func TestRuleClassifierNuance(t *testing.T) {
	a := &domain.Edge{ID: uuid.New(), SourceID: uuid.New(), TargetID: uuid.New(), Relation: "LIKES"}
	b := &domain.Edge{ID: uuid.New(), SourceID: uuid.New(), TargetID: uuid.New(), Relation: "AVOIDS"}

	result, err := RuleClassifier{}.Classify(context.Background(), a, b)
	require.NoError(t, err)
	require.Equal(t, domain.DissonanceNuance, result.DissonanceType)
}

func TestClassifyRejectsSameEdge(t *testing.T) {
	svc, _, _, _ := newDissonanceFixture()
	id := uuid.New()

	_, err := svc.Classify(context.Background(), id, id)
	require.ErrorIs(t, err, ErrSameEdge)
}

func TestClassifyMissingEdge(t *testing.T) {
	svc, edges, _, _ := newDissonanceFixture()
	e := seedEdge(t, edges, domain.EdgeProperties{EdgeType: domain.EdgeDescriptive})

	_, err := svc.Classify(context.Background(), e.ID, uuid.New())
	require.ErrorIs(t, err, ErrEdgeNotFound)
}

func TestClassifyLoadsBothEdges(t *testing.T) {
	svc, edges, _, _ := newDissonanceFixture()
	source, target := uuid.New(), uuid.New()

	a := &domain.Edge{SourceID: source, TargetID: target, Relation: "TRUSTS",
		Properties: domain.EdgeProperties{EdgeType: domain.EdgeDescriptive}}
	require.NoError(t, edges.Create(context.Background(), a))
	b := &domain.Edge{SourceID: source, TargetID: target, Relation: "NOT_TRUSTS",
		Properties: domain.EdgeProperties{EdgeType: domain.EdgeDescriptive}}
	require.NoError(t, edges.Create(context.Background(), b))

	result, err := svc.Classify(context.Background(), a.ID, b.ID)
	require.NoError(t, err)
	require.Equal(t, domain.DissonanceContradiction, result.DissonanceType)
}

func TestOpenReviewRejectsEvolution(t *testing.T) {
	svc, _, reviews, _ := newDissonanceFixture()

	_, err := svc.OpenReview(context.Background(), &domain.DissonanceResult{
		EdgeAID:        uuid.New(),
		EdgeBID:        uuid.New(),
		DissonanceType: domain.DissonanceEvolution,
	})
	require.ErrorIs(t, err, ErrEvolutionNotReviewed)
	require.Empty(t, reviews.reviews)
}

func TestOpenReviewRejectsUnknownType(t *testing.T) {
	svc, _, _, _ := newDissonanceFixture()

	_, err := svc.OpenReview(context.Background(), &domain.DissonanceResult{
		EdgeAID:        uuid.New(),
		EdgeBID:        uuid.New(),
		DissonanceType: "SHRUG",
	})
	require.ErrorIs(t, err, ErrInvalidDissonanceType)
}

func TestOpenReviewPersistsPending(t *testing.T) {
	svc, _, _, audit := newDissonanceFixture()
	result := &domain.DissonanceResult{
		EdgeAID:        uuid.New(),
		EdgeBID:        uuid.New(),
		DissonanceType: domain.DissonanceContradiction,
		Evidence:       "conflicting claims about the same subject",
	}

	review, err := svc.OpenReview(context.Background(), result)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, review.ID)
	require.Equal(t, domain.ReviewPending, review.Status)
	require.Nil(t, review.ReviewedAt)

	pending, err := svc.PendingReviews(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, review.ID, pending[0].ID)

	found, err := svc.FindReview(context.Background(), review.ID)
	require.NoError(t, err)
	require.Equal(t, result.Evidence, found.Dissonance.Evidence)

	require.Len(t, audit.entries, 1)
	require.Equal(t, domain.AuditReviewOpened, audit.entries[0].Action)
}

func TestOpenReviewSurvivesAuditFailure(t *testing.T) {
	svc, _, reviews, audit := newDissonanceFixture()
	audit.failNext = true

	review, err := svc.OpenReview(context.Background(), &domain.DissonanceResult{
		EdgeAID:        uuid.New(),
		EdgeBID:        uuid.New(),
		DissonanceType: domain.DissonanceNuance,
	})
	require.NoError(t, err)
	require.Contains(t, reviews.reviews, review.ID)
	require.Empty(t, audit.entries)
}

func TestFindReviewNotFound(t *testing.T) {
	svc, _, _, _ := newDissonanceFixture()

	_, err := svc.FindReview(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrReviewNotFound)
}
