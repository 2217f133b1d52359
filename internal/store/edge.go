package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noetic-labs/covenant/internal/domain"
)

const edgeColumns = `id, source_id, target_id, relation, weight, properties, access_count, last_accessed, created_at`

type EdgeStore struct {
	db *pgxpool.Pool
}

func NewEdgeStore(db *pgxpool.Pool) *EdgeStore {
	return &EdgeStore{db: db}
}

func (s *EdgeStore) Create(ctx context.Context, e *domain.Edge) error {
	if err := e.Properties.Validate(); err != nil {
		return err
	}
	propsJSON, err := json.Marshal(e.Properties)
	if err != nil {
		return fmt.Errorf("marshal edge properties: %w", err)
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO edges (source_id, target_id, relation, weight, properties)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, access_count, last_accessed, created_at`,
		e.SourceID, e.TargetID, e.Relation, e.Weight, propsJSON,
	).Scan(&e.ID, &e.AccessCount, &e.LastAccessed, &e.CreatedAt)
}

func (s *EdgeStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Edge, error) {
	e := &domain.Edge{}
	var propsJSON []byte
	err := s.db.QueryRow(ctx,
		`SELECT `+edgeColumns+` FROM edges WHERE id = $1`,
		id,
	).Scan(&e.ID, &e.SourceID, &e.TargetID, &e.Relation, &e.Weight, &propsJSON,
		&e.AccessCount, &e.LastAccessed, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(propsJSON, &e.Properties); err != nil {
		return nil, fmt.Errorf("unmarshal edge properties: %w", err)
	}
	return e, nil
}

func (s *EdgeStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM edges WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteWithAudit runs the delete and the audit append in one transaction so
// a guarded deletion is never recorded without taking effect, and never takes
// effect without being recorded.
func (s *EdgeStore) DeleteWithAudit(ctx context.Context, id uuid.UUID, entry *domain.AuditLogEntry) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `DELETE FROM edges WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if err := appendAudit(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *EdgeStore) GetNeighbors(ctx context.Context, nodeID uuid.UUID, direction domain.Direction, relation string) ([]domain.Edge, error) {
	var query string
	var args []any

	switch direction {
	case domain.DirectionOutgoing:
		query = `SELECT ` + edgeColumns + ` FROM edges WHERE source_id = $1`
		args = append(args, nodeID)
	case domain.DirectionIncoming:
		query = `SELECT ` + edgeColumns + ` FROM edges WHERE target_id = $1`
		args = append(args, nodeID)
	default: // both
		query = `SELECT ` + edgeColumns + ` FROM edges WHERE (source_id = $1 OR target_id = $1)`
		args = append(args, nodeID)
	}

	if relation != "" {
		query += fmt.Sprintf(" AND relation = $%d", len(args)+1)
		args = append(args, relation)
	}

	query += " ORDER BY created_at DESC"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEdges(rows)
}

// RecordAccess keeps both decay inputs monotonic: the count only grows and
// last_accessed only moves forward.
func (s *EdgeStore) RecordAccess(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE edges
		 SET access_count = access_count + 1,
		     last_accessed = GREATEST(last_accessed, NOW())
		 WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SupersededIDs checks the direct marker and the inferred form: any
// resolution edge whose supersedes array names the edge.
func (s *EdgeStore) SupersededIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	result := make(map[uuid.UUID]bool, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT e.id FROM edges e
		 WHERE e.id = ANY($1)
		   AND (
		     (e.properties->>'superseded')::boolean IS TRUE
		     OR EXISTS (
		       SELECT 1 FROM edges r
		       WHERE r.properties->>'edge_type' = 'resolution'
		         AND r.properties->'supersedes' @> to_jsonb(e.id::text)
		     )
		   )`,
		ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result[id] = true
	}
	return result, rows.Err()
}

func (s *EdgeStore) ResolutionEdgesForNode(ctx context.Context, nodeID uuid.UUID) ([]domain.Edge, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+edgeColumns+` FROM edges
		 WHERE target_id = $1
		   AND relation = $2
		   AND properties->>'edge_type' = 'resolution'
		 ORDER BY created_at DESC`,
		nodeID, domain.RelationResolves,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEdges(rows)
}

func scanEdges(rows pgx.Rows) ([]domain.Edge, error) {
	var edges []domain.Edge
	for rows.Next() {
		var e domain.Edge
		var propsJSON []byte
		if err := rows.Scan(&e.ID, &e.SourceID, &e.TargetID, &e.Relation, &e.Weight,
			&propsJSON, &e.AccessCount, &e.LastAccessed, &e.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(propsJSON, &e.Properties); err != nil {
			return nil, fmt.Errorf("unmarshal edge properties: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

var _ domain.EdgeStore = (*EdgeStore)(nil)
