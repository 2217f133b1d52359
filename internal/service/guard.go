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
	ErrEdgeNotFound    = errors.New("edge not found")
	ErrConsentRequired = errors.New("bilateral consent required")
)

const reasonBilateralConsent = "bilateral consent required"

// GuardService is the single deletion path for edges. Descriptive and
// resolution edges delete freely; constitutive edges only with bilateral
// consent. Every outcome, including refusals, lands in the audit log.
type GuardService struct {
	edgeStore  domain.EdgeStore
	auditStore domain.AuditStore
	logger     *zap.Logger
}

func NewGuardService(es domain.EdgeStore, as domain.AuditStore, logger *zap.Logger) *GuardService {
	return &GuardService{
		edgeStore:  es,
		auditStore: as,
		logger:     logger,
	}
}

// DeleteResult reports the guard decision. AuditDegraded is the one
// secondary condition: a blocked deletion whose audit append failed. The
// block still stands; the caller learns the trail is incomplete.
type DeleteResult struct {
	EdgeID        uuid.UUID `json:"edge_id"`
	Deleted       bool      `json:"deleted"`
	Blocked       bool      `json:"blocked"`
	AuditDegraded bool      `json:"audit_degraded,omitempty"`
}

func (s *GuardService) DeleteEdge(ctx context.Context, edgeID uuid.UUID, consentGiven bool) (*DeleteResult, error) {
	edge, err := s.edgeStore.GetByID(ctx, edgeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrEdgeNotFound
		}
		return nil, err
	}

	snapshot := snapshotProperties(edge)

	if edge.Properties.EdgeType != domain.EdgeConstitutive {
		entry := &domain.AuditLogEntry{
			EdgeID:     edge.ID,
			Action:     domain.AuditDeleteSuccess,
			Blocked:    false,
			Actor:      domain.ActorSystem,
			Properties: snapshot,
		}
		if err := s.edgeStore.DeleteWithAudit(ctx, edge.ID, entry); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrEdgeNotFound
			}
			return nil, err
		}
		return &DeleteResult{EdgeID: edge.ID, Deleted: true}, nil
	}

	if !consentGiven {
		result := &DeleteResult{EdgeID: edge.ID, Blocked: true}
		entry := &domain.AuditLogEntry{
			EdgeID:     edge.ID,
			Action:     domain.AuditDeleteAttempt,
			Blocked:    true,
			Reason:     reasonBilateralConsent,
			Actor:      domain.ActorSystem,
			Properties: snapshot,
		}
		if auditErr := s.auditStore.Append(ctx, entry); auditErr != nil {
			// The refusal stands either way; report the gap separately.
			s.logger.Error("audit append failed for blocked constitutive delete",
				zap.String("edge_id", edge.ID.String()),
				zap.Error(auditErr))
			result.AuditDegraded = true
		}
		return result, ErrConsentRequired
	}

	entry := &domain.AuditLogEntry{
		EdgeID:     edge.ID,
		Action:     domain.AuditDeleteSuccess,
		Blocked:    false,
		Reason:     "deleted with bilateral consent",
		Actor:      domain.ActorProtected,
		Properties: snapshot,
	}
	if err := s.edgeStore.DeleteWithAudit(ctx, edge.ID, entry); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrEdgeNotFound
		}
		return nil, err
	}

	s.logger.Info("constitutive edge deleted with bilateral consent",
		zap.String("edge_id", edge.ID.String()),
		zap.String("relation", edge.Relation))

	return &DeleteResult{EdgeID: edge.ID, Deleted: true}, nil
}

// snapshotProperties captures the edge's properties document as it was at
// decision time; the audit row must stay meaningful after the edge is gone.
func snapshotProperties(e *domain.Edge) map[string]any {
	snap := map[string]any{
		"edge_type": string(e.Properties.EdgeType),
		"relation":  e.Relation,
		"source_id": e.SourceID.String(),
		"target_id": e.TargetID.String(),
		"weight":    e.Weight,
	}
	if e.Properties.Importance != "" {
		snap["importance"] = string(e.Properties.Importance)
	}
	if len(e.Properties.AffectedEdges) > 0 {
		snap["affected_edges"] = uuidStrings(e.Properties.AffectedEdges)
	}
	if len(e.Properties.Supersedes) > 0 {
		snap["supersedes"] = uuidStrings(e.Properties.Supersedes)
	}
	if len(e.Properties.SupersededBy) > 0 {
		snap["superseded_by"] = uuidStrings(e.Properties.SupersededBy)
	}
	return snap
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
