package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/noetic-labs/covenant/internal/domain"
)

type NodeStore struct {
	db *pgxpool.Pool
}

func NewNodeStore(db *pgxpool.Pool) *NodeStore {
	return &NodeStore{db: db}
}

// Create upserts on (label, name): nodes come into being on first reference
// and keep their identity afterwards. Properties from later references are
// merged in; label and name never change.
func (s *NodeStore) Create(ctx context.Context, n *domain.Node) error {
	propsJSON, err := json.Marshal(nonNilProps(n.Properties))
	if err != nil {
		return fmt.Errorf("marshal node properties: %w", err)
	}

	var embedding *pgvector.Vector
	if len(n.Embedding) > 0 {
		v := pgvector.NewVector(n.Embedding)
		embedding = &v
	}

	var outProps []byte
	err = s.db.QueryRow(ctx,
		`INSERT INTO nodes (label, name, properties, embedding)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (label, name) DO UPDATE
		 SET properties = nodes.properties || EXCLUDED.properties
		 RETURNING id, properties, created_at`,
		n.Label, n.Name, propsJSON, embedding,
	).Scan(&n.ID, &outProps, &n.CreatedAt)
	if err != nil {
		return err
	}
	return json.Unmarshal(outProps, &n.Properties)
}

func (s *NodeStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Node, error) {
	return s.scanOne(s.db.QueryRow(ctx,
		`SELECT id, label, name, properties, created_at FROM nodes WHERE id = $1`,
		id,
	))
}

func (s *NodeStore) FindByLabelAndName(ctx context.Context, label, name string) (*domain.Node, error) {
	return s.scanOne(s.db.QueryRow(ctx,
		`SELECT id, label, name, properties, created_at
		 FROM nodes WHERE label = $1 AND name = $2`,
		label, name,
	))
}

func (s *NodeStore) FindByName(ctx context.Context, name string) ([]domain.Node, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, label, name, properties, created_at
		 FROM nodes WHERE LOWER(name) = LOWER($1)
		 ORDER BY label`,
		name,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []domain.Node
	for rows.Next() {
		var n domain.Node
		var propsJSON []byte
		if err := rows.Scan(&n.ID, &n.Label, &n.Name, &propsJSON, &n.CreatedAt); err != nil {
			return nil, err
		}
		if len(propsJSON) > 0 {
			_ = json.Unmarshal(propsJSON, &n.Properties)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

func (s *NodeStore) UpdateProperties(ctx context.Context, id uuid.UUID, properties map[string]any) error {
	propsJSON, err := json.Marshal(nonNilProps(properties))
	if err != nil {
		return fmt.Errorf("marshal node properties: %w", err)
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE nodes SET properties = properties || $2 WHERE id = $1`,
		id, propsJSON,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *NodeStore) UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error {
	vec := pgvector.NewVector(embedding)
	tag, err := s.db.Exec(ctx,
		`UPDATE nodes SET embedding = $2 WHERE id = $1`,
		id, vec,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FindSimilar returns nodes by cosine similarity against a caller-supplied
// embedding. The external comparator uses this to pair conflict candidates;
// embedding generation happens upstream.
func (s *NodeStore) FindSimilar(ctx context.Context, embedding []float32, threshold float32, limit int) ([]domain.NodeWithScore, error) {
	if limit <= 0 {
		limit = 10
	}
	vec := pgvector.NewVector(embedding)

	rows, err := s.db.Query(ctx,
		`SELECT id, label, name, properties, created_at,
		        1 - (embedding <=> $1) AS score
		 FROM nodes
		 WHERE embedding IS NOT NULL AND 1 - (embedding <=> $1) >= $2
		 ORDER BY score DESC
		 LIMIT $3`,
		vec, threshold, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("find similar nodes query: %w", err)
	}
	defer rows.Close()

	var results []domain.NodeWithScore
	for rows.Next() {
		var n domain.NodeWithScore
		var propsJSON []byte
		if err := rows.Scan(&n.ID, &n.Label, &n.Name, &propsJSON, &n.CreatedAt, &n.Score); err != nil {
			return nil, fmt.Errorf("scan similar node row: %w", err)
		}
		if len(propsJSON) > 0 {
			_ = json.Unmarshal(propsJSON, &n.Properties)
		}
		results = append(results, n)
	}
	return results, rows.Err()
}

func (s *NodeStore) scanOne(row pgx.Row) (*domain.Node, error) {
	n := &domain.Node{}
	var propsJSON []byte
	err := row.Scan(&n.ID, &n.Label, &n.Name, &propsJSON, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(propsJSON) > 0 {
		if err := json.Unmarshal(propsJSON, &n.Properties); err != nil {
			return nil, fmt.Errorf("unmarshal node properties: %w", err)
		}
	}
	return n, nil
}

func nonNilProps(p map[string]any) map[string]any {
	if p == nil {
		return map[string]any{}
	}
	return p
}

var _ domain.NodeStore = (*NodeStore)(nil)
