package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noetic-labs/covenant/internal/domain"
)

// ErrAlreadyResolved is returned when a resolution targets a review that has
// left the PENDING state.
var ErrAlreadyResolved = errors.New("review already resolved")

// ResolutionStore owns the one multi-row write path in the system: the
// hyperedge (anchor node + two spokes) and the review transition land in a
// single transaction, so a partial hyperedge can never be observed.
type ResolutionStore struct {
	db *pgxpool.Pool
}

func NewResolutionStore(db *pgxpool.Pool) *ResolutionStore {
	return &ResolutionStore{db: db}
}

func (s *ResolutionStore) Apply(ctx context.Context, w *domain.ResolutionWrite) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Transition the review first; the PENDING predicate is the re-entry
	// gate, including against concurrent resolvers.
	tag, err := tx.Exec(ctx,
		`UPDATE dissonance_reviews
		 SET status = $2, review_reason = $3, reviewed_at = $4
		 WHERE id = $1 AND status = $5`,
		w.ReviewID, w.Status, w.ReviewReason, w.ReviewedAt, domain.ReviewPending,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyResolved
	}

	anchor := w.Anchor
	anchorProps, err := json.Marshal(nonNilProps(anchor.Properties))
	if err != nil {
		return fmt.Errorf("marshal anchor properties: %w", err)
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO nodes (label, name, properties)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (label, name) DO UPDATE
		 SET properties = nodes.properties || EXCLUDED.properties
		 RETURNING id, created_at`,
		anchor.Label, anchor.Name, anchorProps,
	).Scan(&anchor.ID, &anchor.CreatedAt)
	if err != nil {
		return err
	}

	for _, spoke := range w.Spokes {
		if spoke.SourceID == uuid.Nil {
			spoke.SourceID = anchor.ID
		}
		if err := spoke.Properties.Validate(); err != nil {
			return err
		}
		propsJSON, err := json.Marshal(spoke.Properties)
		if err != nil {
			return fmt.Errorf("marshal spoke properties: %w", err)
		}
		err = tx.QueryRow(ctx,
			`INSERT INTO edges (source_id, target_id, relation, weight, properties)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id, access_count, last_accessed, created_at`,
			spoke.SourceID, spoke.TargetID, spoke.Relation, spoke.Weight, propsJSON,
		).Scan(&spoke.ID, &spoke.AccessCount, &spoke.LastAccessed, &spoke.CreatedAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

var _ domain.ResolutionApplier = (*ResolutionStore)(nil)
