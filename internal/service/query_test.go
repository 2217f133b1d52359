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

type queryFixture struct {
	svc   *QueryService
	nodes *mockNodeStore
	edges *mockEdgeStore
}

func newQueryFixture() *queryFixture {
	audit := newMockAuditStore()
	nodes := newMockNodeStore()
	edges := newMockEdgeStore(audit)
	return &queryFixture{
		svc:   NewQueryService(nodes, edges, zap.NewNop()),
		nodes: nodes,
		edges: edges,
	}
}

func (f *queryFixture) addNode(t *testing.T, label, name string) *domain.Node {
	t.Helper()
	n := &domain.Node{Label: label, Name: name}
	require.NoError(t, f.nodes.Create(context.Background(), n))
	return n
}

func (f *queryFixture) addEdge(t *testing.T, source, target uuid.UUID, relation string, props domain.EdgeProperties, accessedDaysAgo float64, accessCount int) *domain.Edge {
	t.Helper()
	e := &domain.Edge{
		SourceID:   source,
		TargetID:   target,
		Relation:   relation,
		Weight:     1.0,
		Properties: props,
	}
	require.NoError(t, f.edges.Create(context.Background(), e))
	last := time.Now().Add(-time.Duration(accessedDaysAgo*24) * time.Hour)
	stored := f.edges.edges[e.ID]
	stored.LastAccessed = &last
	stored.AccessCount = accessCount
	e.LastAccessed = &last
	e.AccessCount = accessCount
	return e
}

func TestNeighborsSortedByRelevance(t *testing.T) {
	f := newQueryFixture()
	ctx := context.Background()

	alice := f.addNode(t, "Person", "alice")
	bob := f.addNode(t, "Person", "bob")
	carol := f.addNode(t, "Person", "carol")

	descriptive := domain.EdgeProperties{EdgeType: domain.EdgeDescriptive, Importance: domain.ImportanceMedium}
	stale := f.addEdge(t, alice.ID, bob.ID, "KNOWS", descriptive, 300, 0)
	fresh := f.addEdge(t, alice.ID, carol.ID, "KNOWS", descriptive, 1, 0)

	results, err := f.svc.Neighbors(ctx, alice.ID, NeighborOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	require.Equal(t, fresh.ID, results[0].Edge.ID)
	require.Equal(t, stale.ID, results[1].Edge.ID)
	require.Greater(t, results[0].RelevanceScore, results[1].RelevanceScore)
	require.Equal(t, 1, results[0].Distance)
	require.Equal(t, domain.DirectionOutgoing, results[0].Direction)
}

func TestNeighborsRecordsAccess(t *testing.T) {
	f := newQueryFixture()
	ctx := context.Background()

	alice := f.addNode(t, "Person", "alice")
	bob := f.addNode(t, "Person", "bob")
	e := f.addEdge(t, alice.ID, bob.ID, "KNOWS",
		domain.EdgeProperties{EdgeType: domain.EdgeDescriptive}, 10, 4)

	_, err := f.svc.Neighbors(ctx, alice.ID, NeighborOptions{})
	require.NoError(t, err)

	stored, err := f.edges.GetByID(ctx, e.ID)
	require.NoError(t, err)
	require.Equal(t, 5, stored.AccessCount)
	require.WithinDuration(t, time.Now(), *stored.LastAccessed, time.Minute)
}

func TestNeighborsConstitutiveAlwaysFirst(t *testing.T) {
	f := newQueryFixture()
	ctx := context.Background()

	alice := f.addNode(t, "Person", "alice")
	bob := f.addNode(t, "Person", "bob")
	io := f.addNode(t, "Person", "io")

	f.addEdge(t, alice.ID, bob.ID, "KNOWS",
		domain.EdgeProperties{EdgeType: domain.EdgeDescriptive}, 1, 50)
	identity := f.addEdge(t, alice.ID, io.ID, "BONDED_WITH",
		domain.EdgeProperties{EdgeType: domain.EdgeConstitutive, Importance: domain.ImportanceHigh}, 2000, 0)

	results, err := f.svc.Neighbors(ctx, alice.ID, NeighborOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, identity.ID, results[0].Edge.ID)
	require.Equal(t, 1.0, results[0].RelevanceScore)
}

func TestNeighborsHidesSuperseded(t *testing.T) {
	f := newQueryFixture()
	ctx := context.Background()

	alice := f.addNode(t, "Person", "alice")
	bob := f.addNode(t, "Person", "bob")
	anchor := f.addNode(t, ResolutionLabel, "resolution:test")

	old := f.addEdge(t, alice.ID, bob.ID, "WORKS_AT",
		domain.EdgeProperties{EdgeType: domain.EdgeDescriptive}, 5, 0)
	current := f.addEdge(t, alice.ID, bob.ID, "STUDIES_AT",
		domain.EdgeProperties{EdgeType: domain.EdgeDescriptive}, 1, 0)

	now := time.Now()
	f.addEdge(t, anchor.ID, bob.ID, domain.RelationResolves, domain.EdgeProperties{
		EdgeType:       domain.EdgeResolution,
		ResolutionType: domain.DissonanceEvolution,
		Supersedes:     []uuid.UUID{old.ID},
		SupersededBy:   []uuid.UUID{current.ID},
		ResolvedAt:     &now,
		ResolvedBy:     domain.ActorProtected,
	}, 0, 0)

	results, err := f.svc.Neighbors(ctx, alice.ID, NeighborOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, current.ID, results[0].Edge.ID)

	// Asking for history brings the superseded edge back.
	results, err = f.svc.Neighbors(ctx, alice.ID, NeighborOptions{IncludeSuperseded: true})
	require.NoError(t, err)
	require.Len(t, results, 2)
}

func TestNeighborsNeverFiltersResolutionEdges(t *testing.T) {
	f := newQueryFixture()
	ctx := context.Background()

	alice := f.addNode(t, "Person", "alice")
	bob := f.addNode(t, "Person", "bob")
	anchor := f.addNode(t, ResolutionLabel, "resolution:test")

	f.addEdge(t, alice.ID, bob.ID, "KNOWS",
		domain.EdgeProperties{EdgeType: domain.EdgeDescriptive}, 1, 0)
	now := time.Now()
	spoke := f.addEdge(t, anchor.ID, bob.ID, domain.RelationResolves, domain.EdgeProperties{
		EdgeType:       domain.EdgeResolution,
		ResolutionType: domain.DissonanceContradiction,
		ResolvedAt:     &now,
		ResolvedBy:     domain.ActorProtected,
	}, 0, 0)

	results, err := f.svc.Neighbors(ctx, bob.ID, NeighborOptions{})
	require.NoError(t, err)

	found := false
	for _, r := range results {
		if r.Edge.ID == spoke.ID {
			found = true
			require.Equal(t, domain.DirectionIncoming, r.Direction)
		}
	}
	require.True(t, found, "resolution spoke must survive default filtering")
}

func TestNeighborsDepthTwo(t *testing.T) {
	f := newQueryFixture()
	ctx := context.Background()

	alice := f.addNode(t, "Person", "alice")
	bob := f.addNode(t, "Person", "bob")
	carol := f.addNode(t, "Person", "carol")

	f.addEdge(t, alice.ID, bob.ID, "KNOWS",
		domain.EdgeProperties{EdgeType: domain.EdgeDescriptive}, 1, 0)
	f.addEdge(t, bob.ID, carol.ID, "KNOWS",
		domain.EdgeProperties{EdgeType: domain.EdgeDescriptive}, 1, 0)

	results, err := f.svc.Neighbors(ctx, alice.ID, NeighborOptions{MaxDepth: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)

	distances := map[uuid.UUID]int{}
	for _, r := range results {
		distances[r.Node.ID] = r.Distance
	}
	require.Equal(t, 1, distances[bob.ID])
	require.Equal(t, 2, distances[carol.ID])
}

func TestNeighborsUnknownNode(t *testing.T) {
	f := newQueryFixture()

	_, err := f.svc.Neighbors(context.Background(), uuid.New(), NeighborOptions{})
	require.ErrorIs(t, err, ErrNodeNotFound)
}

func TestFindPathRelevanceIsProduct(t *testing.T) {
	f := newQueryFixture()
	ctx := context.Background()

	alice := f.addNode(t, "Person", "alice")
	bob := f.addNode(t, "Person", "bob")
	carol := f.addNode(t, "Person", "carol")

	props := domain.EdgeProperties{EdgeType: domain.EdgeDescriptive, Importance: domain.ImportanceMedium}
	e1 := f.addEdge(t, alice.ID, bob.ID, "KNOWS", props, 100, 0)
	e2 := f.addEdge(t, bob.ID, carol.ID, "KNOWS", props, 100, 0)

	paths, err := f.svc.FindPath(ctx, alice.ID, carol.ID, PathOptions{})
	require.NoError(t, err)
	require.Len(t, paths, 1)
	require.Len(t, paths[0].Edges, 2)

	now := time.Now()
	expected := RelevanceScore(e1, now) * RelevanceScore(e2, now)
	require.InDelta(t, expected, paths[0].PathRelevance, 0.01)
	require.Less(t, paths[0].PathRelevance, RelevanceScore(e1, now))
}

func TestFindPathPrefersFresherRoute(t *testing.T) {
	f := newQueryFixture()
	ctx := context.Background()

	alice := f.addNode(t, "Person", "alice")
	bob := f.addNode(t, "Person", "bob")
	carol := f.addNode(t, "Person", "carol")
	dest := f.addNode(t, "Person", "dana")

	props := domain.EdgeProperties{EdgeType: domain.EdgeDescriptive}
	f.addEdge(t, alice.ID, bob.ID, "KNOWS", props, 1, 0)
	f.addEdge(t, bob.ID, dest.ID, "KNOWS", props, 1, 0)
	f.addEdge(t, alice.ID, carol.ID, "KNOWS", props, 400, 0)
	f.addEdge(t, carol.ID, dest.ID, "KNOWS", props, 400, 0)

	paths, err := f.svc.FindPath(ctx, alice.ID, dest.ID, PathOptions{})
	require.NoError(t, err)
	require.Len(t, paths, 2)
	require.Greater(t, paths[0].PathRelevance, paths[1].PathRelevance)
}

func TestFindPathUnknownEndpoint(t *testing.T) {
	f := newQueryFixture()
	alice := f.addNode(t, "Person", "alice")

	_, err := f.svc.FindPath(context.Background(), alice.ID, uuid.New(), PathOptions{})
	require.ErrorIs(t, err, ErrNodeNotFound)
}

func TestResolutionsForNode(t *testing.T) {
	f := newQueryFixture()
	ctx := context.Background()

	bob := f.addNode(t, "Person", "bob")
	anchor := f.addNode(t, ResolutionLabel, "resolution:test")

	now := time.Now()
	affected := []uuid.UUID{uuid.New(), uuid.New()}
	f.addEdge(t, anchor.ID, bob.ID, domain.RelationResolves, domain.EdgeProperties{
		EdgeType:       domain.EdgeResolution,
		ResolutionType: domain.DissonanceContradiction,
		Context:        "held in tension",
		AffectedEdges:  affected,
		ResolvedAt:     &now,
		ResolvedBy:     "curator",
	}, 0, 0)

	summaries, err := f.svc.ResolutionsForNode(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	s := summaries[0]
	require.Equal(t, bob.ID, s.NodeID)
	require.Equal(t, anchor.ID, s.AnchorID)
	require.Equal(t, domain.DissonanceContradiction, s.ResolutionType)
	require.Equal(t, "held in tension", s.Context)
	require.Equal(t, "curator", s.ResolvedBy)
	require.Equal(t, affected, s.AffectedEdges)
}

func TestResolutionsForNodeUnknownName(t *testing.T) {
	f := newQueryFixture()

	_, err := f.svc.ResolutionsForNode(context.Background(), "nobody")
	require.ErrorIs(t, err, ErrNodeNotFound)
}
