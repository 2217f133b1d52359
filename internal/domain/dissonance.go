package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DissonanceType classifies the tension between two edges. The same closed
// set doubles as the resolution type recorded on resolution edges.
type DissonanceType string

const (
	// DissonanceEvolution: the newer belief replaces the older one.
	DissonanceEvolution DissonanceType = "EVOLUTION"
	// DissonanceContradiction: the beliefs cannot coexist unresolved.
	DissonanceContradiction DissonanceType = "CONTRADICTION"
	// DissonanceNuance: the beliefs coexist in documented tension.
	DissonanceNuance DissonanceType = "NUANCE"
)

func ValidDissonanceType(t string) bool {
	switch DissonanceType(t) {
	case DissonanceEvolution, DissonanceContradiction, DissonanceNuance:
		return true
	}
	return false
}

// DissonanceResult is the transient output of classification; it is only
// persisted as part of a ReviewProposal.
type DissonanceResult struct {
	EdgeAID        uuid.UUID      `json:"edge_a_id"`
	EdgeBID        uuid.UUID      `json:"edge_b_id"`
	DissonanceType DissonanceType `json:"dissonance_type"`
	Evidence       string         `json:"evidence,omitempty"`
}

// DissonanceClassifier is the pluggable decision function producing a
// classification for a candidate pair. The algorithm is external to this
// core; only the output contract is fixed.
type DissonanceClassifier interface {
	Classify(ctx context.Context, a, b *Edge) (*DissonanceResult, error)
}

type ReviewStatus string

const (
	ReviewPending      ReviewStatus = "PENDING"
	ReviewConfirmed    ReviewStatus = "CONFIRMED"
	ReviewReclassified ReviewStatus = "RECLASSIFIED"
)

// ReviewProposal is a store-backed human-in-the-loop review item. Created
// only for CONTRADICTION and NUANCE; EVOLUTION resolves without review.
type ReviewProposal struct {
	ID           uuid.UUID        `json:"id"`
	Dissonance   DissonanceResult `json:"dissonance"`
	Status       ReviewStatus     `json:"status"`
	ReviewReason string           `json:"review_reason,omitempty"`
	DetectedAt   time.Time        `json:"detected_at"`
	ReviewedAt   *time.Time       `json:"reviewed_at,omitempty"`
}

type ReviewStore interface {
	Create(ctx context.Context, r *ReviewProposal) error
	GetByID(ctx context.Context, id uuid.UUID) (*ReviewProposal, error)
	ListPending(ctx context.Context) ([]ReviewProposal, error)
}
