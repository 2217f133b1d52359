package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// EdgeType classifies an edge's mutation policy.
type EdgeType string

const (
	// EdgeDescriptive is an ordinary, freely deletable edge.
	EdgeDescriptive EdgeType = "descriptive"
	// EdgeConstitutive is an identity-defining edge; hard deletion requires
	// bilateral consent and is always audited.
	EdgeConstitutive EdgeType = "constitutive"
	// EdgeResolution is a spoke of a resolution hyperedge. It documents how a
	// dissonance was handled and never replaces the edges it references.
	EdgeResolution EdgeType = "resolution"
)

func ValidEdgeType(t string) bool {
	switch EdgeType(t) {
	case EdgeDescriptive, EdgeConstitutive, EdgeResolution:
		return true
	}
	return false
}

// Importance floors the memory-strength constant used by relevance scoring.
type Importance string

const (
	ImportanceLow    Importance = "low"
	ImportanceMedium Importance = "medium"
	ImportanceHigh   Importance = "high"
)

func ValidImportance(i string) bool {
	switch Importance(i) {
	case ImportanceLow, ImportanceMedium, ImportanceHigh:
		return true
	}
	return false
}

type Direction string

const (
	DirectionBoth     Direction = "both"
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
)

func ValidDirection(d string) bool {
	switch Direction(d) {
	case DirectionBoth, DirectionOutgoing, DirectionIncoming:
		return true
	}
	return false
}

// RelationResolves is the relation carried by resolution hyperedge spokes.
const RelationResolves = "RESOLVES"

// EdgeProperties is the typed form of the open properties document. Keeping
// it a struct instead of a raw map means an edge cannot carry contradictory
// markers (a constitutive edge with supersession fields, resolution fields on
// a descriptive edge) past Validate.
type EdgeProperties struct {
	EdgeType      EdgeType    `json:"edge_type"`
	Importance    Importance  `json:"importance,omitempty"`
	Supersedes    []uuid.UUID `json:"supersedes,omitempty"`
	SupersededBy  []uuid.UUID `json:"superseded_by,omitempty"`
	AffectedEdges []uuid.UUID `json:"affected_edges,omitempty"`
	// Superseded is an optional fast-path marker. The query layer also infers
	// supersession from resolution edges, so leaving it unset is always safe.
	Superseded bool `json:"superseded,omitempty"`

	// Resolution-only fields.
	ResolutionType DissonanceType `json:"resolution_type,omitempty"`
	Context        string         `json:"context,omitempty"`
	ResolvedAt     *time.Time     `json:"resolved_at,omitempty"`
	ResolvedBy     string         `json:"resolved_by,omitempty"`

	Extra map[string]any `json:"extra,omitempty"`
}

var (
	ErrInvalidEdgeType       = errors.New("invalid edge_type")
	ErrInvalidImportance     = errors.New("invalid importance")
	ErrConstitutiveMarkers   = errors.New("constitutive edge cannot carry supersession markers")
	ErrResolutionFieldsOnly  = errors.New("resolution fields are only valid on resolution edges")
	ErrResolutionNeedsFields = errors.New("resolution edge requires resolution_type")
)

// Validate checks the tagged-variant invariants. Zero EdgeType defaults to
// descriptive, zero Importance is left unset (scoring treats it as medium).
func (p *EdgeProperties) Validate() error {
	if p.EdgeType == "" {
		p.EdgeType = EdgeDescriptive
	}
	if !ValidEdgeType(string(p.EdgeType)) {
		return ErrInvalidEdgeType
	}
	if p.Importance != "" && !ValidImportance(string(p.Importance)) {
		return ErrInvalidImportance
	}
	switch p.EdgeType {
	case EdgeConstitutive:
		if len(p.Supersedes) > 0 || len(p.SupersededBy) > 0 || p.Superseded {
			return ErrConstitutiveMarkers
		}
		if p.ResolutionType != "" || p.ResolvedBy != "" || p.ResolvedAt != nil {
			return ErrResolutionFieldsOnly
		}
	case EdgeDescriptive:
		if p.ResolutionType != "" || p.ResolvedBy != "" || p.ResolvedAt != nil {
			return ErrResolutionFieldsOnly
		}
	case EdgeResolution:
		if p.ResolutionType == "" {
			return ErrResolutionNeedsFields
		}
	}
	return nil
}

// Node is a typed graph vertex. Identity (label, name) is immutable once
// created; only properties and the optional embedding may change.
type Node struct {
	ID         uuid.UUID      `json:"id"`
	Label      string         `json:"label"`
	Name       string         `json:"name"`
	Properties map[string]any `json:"properties,omitempty"`
	Embedding  []float32      `json:"embedding,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

type NodeWithScore struct {
	Node
	Score float32 `json:"score"`
}

// Edge is a typed relation between two nodes. An edge references its
// endpoints but does not own them; deleting an edge never touches a node.
type Edge struct {
	ID           uuid.UUID      `json:"id"`
	SourceID     uuid.UUID      `json:"source_id"`
	TargetID     uuid.UUID      `json:"target_id"`
	Relation     string         `json:"relation"`
	Weight       float64        `json:"weight"`
	Properties   EdgeProperties `json:"properties"`
	AccessCount  int            `json:"access_count"`
	LastAccessed *time.Time     `json:"last_accessed,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

type NodeStore interface {
	Create(ctx context.Context, n *Node) error
	GetByID(ctx context.Context, id uuid.UUID) (*Node, error)
	FindByLabelAndName(ctx context.Context, label, name string) (*Node, error)
	// FindByName matches across labels; name is only unique per label.
	FindByName(ctx context.Context, name string) ([]Node, error)
	UpdateProperties(ctx context.Context, id uuid.UUID, properties map[string]any) error
	UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error
	FindSimilar(ctx context.Context, embedding []float32, threshold float32, limit int) ([]NodeWithScore, error)
}

type EdgeStore interface {
	Create(ctx context.Context, e *Edge) error
	GetByID(ctx context.Context, id uuid.UUID) (*Edge, error)
	// Delete hard-deletes without auditing. Callers outside the constitutive
	// guard must not use it; the guard is the only deletion path.
	Delete(ctx context.Context, id uuid.UUID) error
	// DeleteWithAudit removes the edge and appends the audit entry in a
	// single transaction: either both happen or neither does.
	DeleteWithAudit(ctx context.Context, id uuid.UUID, entry *AuditLogEntry) error
	GetNeighbors(ctx context.Context, nodeID uuid.UUID, direction Direction, relation string) ([]Edge, error)
	// RecordAccess bumps access_count and moves last_accessed forward.
	RecordAccess(ctx context.Context, id uuid.UUID) error
	// SupersededIDs reports which of the given edges are superseded, either
	// by their own marker or by a resolution edge listing them in supersedes.
	SupersededIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error)
	// ResolutionEdgesForNode returns resolution spokes pointing at the node.
	ResolutionEdgesForNode(ctx context.Context, nodeID uuid.UUID) ([]Edge, error)
}
