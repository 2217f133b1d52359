package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/noetic-labs/covenant/internal/domain"
	"github.com/noetic-labs/covenant/internal/store"
)

type mockNodeStore struct {
	nodes map[uuid.UUID]*domain.Node
}

func newMockNodeStore() *mockNodeStore {
	return &mockNodeStore{nodes: make(map[uuid.UUID]*domain.Node)}
}

func (m *mockNodeStore) Create(_ context.Context, n *domain.Node) error {
	for _, existing := range m.nodes {
		if existing.Label == n.Label && existing.Name == n.Name {
			*n = *existing
			return nil
		}
	}
	n.ID = uuid.New()
	n.CreatedAt = time.Now()
	cp := *n
	m.nodes[n.ID] = &cp
	return nil
}

func (m *mockNodeStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Node, error) {
	n, ok := m.nodes[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (m *mockNodeStore) FindByLabelAndName(_ context.Context, label, name string) (*domain.Node, error) {
	for _, n := range m.nodes {
		if n.Label == label && n.Name == name {
			cp := *n
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockNodeStore) FindByName(_ context.Context, name string) ([]domain.Node, error) {
	var out []domain.Node
	for _, n := range m.nodes {
		if n.Name == name {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (m *mockNodeStore) UpdateProperties(_ context.Context, id uuid.UUID, properties map[string]any) error {
	n, ok := m.nodes[id]
	if !ok {
		return store.ErrNotFound
	}
	if n.Properties == nil {
		n.Properties = map[string]any{}
	}
	for k, v := range properties {
		n.Properties[k] = v
	}
	return nil
}

func (m *mockNodeStore) UpdateEmbedding(_ context.Context, id uuid.UUID, embedding []float32) error {
	n, ok := m.nodes[id]
	if !ok {
		return store.ErrNotFound
	}
	n.Embedding = embedding
	return nil
}

func (m *mockNodeStore) FindSimilar(_ context.Context, _ []float32, _ float32, _ int) ([]domain.NodeWithScore, error) {
	return nil, nil
}

type mockEdgeStore struct {
	edges map[uuid.UUID]*domain.Edge
	audit *mockAuditStore
}

func newMockEdgeStore(audit *mockAuditStore) *mockEdgeStore {
	return &mockEdgeStore{edges: make(map[uuid.UUID]*domain.Edge), audit: audit}
}

func (m *mockEdgeStore) put(e *domain.Edge) *domain.Edge {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	cp := *e
	m.edges[e.ID] = &cp
	return m.edges[e.ID]
}

func (m *mockEdgeStore) Create(_ context.Context, e *domain.Edge) error {
	if err := e.Properties.Validate(); err != nil {
		return err
	}
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	if e.LastAccessed == nil {
		now := e.CreatedAt
		e.LastAccessed = &now
	}
	cp := *e
	m.edges[e.ID] = &cp
	return nil
}

func (m *mockEdgeStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Edge, error) {
	e, ok := m.edges[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *mockEdgeStore) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.edges[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.edges, id)
	return nil
}

func (m *mockEdgeStore) DeleteWithAudit(ctx context.Context, id uuid.UUID, entry *domain.AuditLogEntry) error {
	if _, ok := m.edges[id]; !ok {
		return store.ErrNotFound
	}
	// Both or neither, like the transactional store path.
	if err := m.audit.Append(ctx, entry); err != nil {
		return err
	}
	delete(m.edges, id)
	return nil
}

func (m *mockEdgeStore) GetNeighbors(_ context.Context, nodeID uuid.UUID, direction domain.Direction, relation string) ([]domain.Edge, error) {
	var out []domain.Edge
	for _, e := range m.edges {
		if relation != "" && e.Relation != relation {
			continue
		}
		switch direction {
		case domain.DirectionOutgoing:
			if e.SourceID != nodeID {
				continue
			}
		case domain.DirectionIncoming:
			if e.TargetID != nodeID {
				continue
			}
		default:
			if e.SourceID != nodeID && e.TargetID != nodeID {
				continue
			}
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockEdgeStore) RecordAccess(_ context.Context, id uuid.UUID) error {
	e, ok := m.edges[id]
	if !ok {
		return store.ErrNotFound
	}
	e.AccessCount++
	now := time.Now()
	if e.LastAccessed == nil || now.After(*e.LastAccessed) {
		e.LastAccessed = &now
	}
	return nil
}

func (m *mockEdgeStore) SupersededIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	result := map[uuid.UUID]bool{}
	for _, id := range ids {
		e, ok := m.edges[id]
		if !ok {
			continue
		}
		if e.Properties.Superseded {
			result[id] = true
			continue
		}
		for _, r := range m.edges {
			if r.Properties.EdgeType != domain.EdgeResolution {
				continue
			}
			for _, sid := range r.Properties.Supersedes {
				if sid == id {
					result[id] = true
				}
			}
		}
	}
	return result, nil
}

func (m *mockEdgeStore) ResolutionEdgesForNode(_ context.Context, nodeID uuid.UUID) ([]domain.Edge, error) {
	var out []domain.Edge
	for _, e := range m.edges {
		if e.TargetID == nodeID && e.Relation == domain.RelationResolves &&
			e.Properties.EdgeType == domain.EdgeResolution {
			out = append(out, *e)
		}
	}
	return out, nil
}

type mockAuditStore struct {
	entries  []domain.AuditLogEntry
	failNext bool
}

func newMockAuditStore() *mockAuditStore {
	return &mockAuditStore{}
}

func (m *mockAuditStore) Append(_ context.Context, e *domain.AuditLogEntry) error {
	if m.failNext {
		m.failNext = false
		return errors.New("audit store unavailable")
	}
	if e.Actor == "" {
		e.Actor = domain.ActorSystem
	}
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	m.entries = append(m.entries, *e)
	return nil
}

func (m *mockAuditStore) Query(_ context.Context, filter domain.AuditFilter) ([]domain.AuditLogEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	out := []domain.AuditLogEntry{}
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := m.entries[i]
		if filter.EdgeID != nil && e.EdgeID != *filter.EdgeID {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if filter.Actor != "" && e.Actor != filter.Actor {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *mockAuditStore) Clear(_ context.Context) (int64, error) {
	n := int64(len(m.entries))
	m.entries = nil
	return n, nil
}

type mockReviewStore struct {
	reviews map[uuid.UUID]*domain.ReviewProposal
}

func newMockReviewStore() *mockReviewStore {
	return &mockReviewStore{reviews: make(map[uuid.UUID]*domain.ReviewProposal)}
}

func (m *mockReviewStore) Create(_ context.Context, r *domain.ReviewProposal) error {
	if r.Status == "" {
		r.Status = domain.ReviewPending
	}
	r.ID = uuid.New()
	r.DetectedAt = time.Now()
	cp := *r
	m.reviews[r.ID] = &cp
	return nil
}

func (m *mockReviewStore) GetByID(_ context.Context, id uuid.UUID) (*domain.ReviewProposal, error) {
	r, ok := m.reviews[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *mockReviewStore) ListPending(_ context.Context) ([]domain.ReviewProposal, error) {
	out := []domain.ReviewProposal{}
	for _, r := range m.reviews {
		if r.Status == domain.ReviewPending {
			out = append(out, *r)
		}
	}
	return out, nil
}

// mockApplier mirrors the transactional resolution write against the mocks.
type mockApplier struct {
	nodes   *mockNodeStore
	edges   *mockEdgeStore
	reviews *mockReviewStore

	nodesCreated int
	edgesCreated int
}

func newMockApplier(nodes *mockNodeStore, edges *mockEdgeStore, reviews *mockReviewStore) *mockApplier {
	return &mockApplier{nodes: nodes, edges: edges, reviews: reviews}
}

func (m *mockApplier) Apply(ctx context.Context, w *domain.ResolutionWrite) error {
	review, ok := m.reviews.reviews[w.ReviewID]
	if !ok || review.Status != domain.ReviewPending {
		return store.ErrAlreadyResolved
	}

	existing, err := m.nodes.FindByLabelAndName(ctx, w.Anchor.Label, w.Anchor.Name)
	if err == nil {
		w.Anchor.ID = existing.ID
		w.Anchor.CreatedAt = existing.CreatedAt
	} else {
		if err := m.nodes.Create(ctx, w.Anchor); err != nil {
			return err
		}
		m.nodesCreated++
	}

	for _, spoke := range w.Spokes {
		if spoke.SourceID == uuid.Nil {
			spoke.SourceID = w.Anchor.ID
		}
		if err := spoke.Properties.Validate(); err != nil {
			return err
		}
		spoke.ID = uuid.New()
		spoke.CreatedAt = time.Now()
		m.edges.put(spoke)
		m.edgesCreated++
	}

	review.Status = w.Status
	review.ReviewReason = w.ReviewReason
	reviewedAt := w.ReviewedAt
	review.ReviewedAt = &reviewedAt
	return nil
}
