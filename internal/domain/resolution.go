package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ResolutionWrite is the unit applied atomically when a review is resolved:
// the anchor node, both spokes, and the review transition either all land or
// none do. The transition only fires on a PENDING review, which is what gates
// double resolution.
type ResolutionWrite struct {
	Anchor       *Node
	Spokes       []*Edge
	ReviewID     uuid.UUID
	Status       ReviewStatus
	ReviewReason string
	ReviewedAt   time.Time
}

type ResolutionApplier interface {
	Apply(ctx context.Context, w *ResolutionWrite) error
}

// ResolutionResult reports what a resolution created. The original edges are
// never part of it; they are not touched.
type ResolutionResult struct {
	ReviewID       uuid.UUID      `json:"review_id"`
	Status         ReviewStatus   `json:"status"`
	ResolutionType DissonanceType `json:"resolution_type"`
	Node           *Node          `json:"node"`
	Edges          []Edge         `json:"edges"`
}

// ResolutionSummary is the read-side view of one resolution hyperedge as seen
// from a node it touches.
type ResolutionSummary struct {
	NodeID         uuid.UUID      `json:"node_id"`
	AnchorID       uuid.UUID      `json:"anchor_id"`
	ResolutionType DissonanceType `json:"resolution_type"`
	Context        string         `json:"context,omitempty"`
	ResolvedBy     string         `json:"resolved_by"`
	ResolvedAt     *time.Time     `json:"resolved_at,omitempty"`
	Supersedes     []uuid.UUID    `json:"supersedes,omitempty"`
	SupersededBy   []uuid.UUID    `json:"superseded_by,omitempty"`
	AffectedEdges  []uuid.UUID    `json:"affected_edges,omitempty"`
}
