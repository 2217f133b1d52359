package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noetic-labs/covenant/internal/domain"
)

type ReviewStore struct {
	db *pgxpool.Pool
}

func NewReviewStore(db *pgxpool.Pool) *ReviewStore {
	return &ReviewStore{db: db}
}

func (s *ReviewStore) Create(ctx context.Context, r *domain.ReviewProposal) error {
	if r.Status == "" {
		r.Status = domain.ReviewPending
	}
	return s.db.QueryRow(ctx,
		`INSERT INTO dissonance_reviews (edge_a_id, edge_b_id, dissonance_type, evidence, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, detected_at`,
		r.Dissonance.EdgeAID, r.Dissonance.EdgeBID, r.Dissonance.DissonanceType,
		r.Dissonance.Evidence, r.Status,
	).Scan(&r.ID, &r.DetectedAt)
}

func (s *ReviewStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.ReviewProposal, error) {
	r := &domain.ReviewProposal{}
	err := s.db.QueryRow(ctx,
		`SELECT id, edge_a_id, edge_b_id, dissonance_type, evidence, status, review_reason, detected_at, reviewed_at
		 FROM dissonance_reviews WHERE id = $1`,
		id,
	).Scan(&r.ID, &r.Dissonance.EdgeAID, &r.Dissonance.EdgeBID, &r.Dissonance.DissonanceType,
		&r.Dissonance.Evidence, &r.Status, &r.ReviewReason, &r.DetectedAt, &r.ReviewedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return r, nil
}

func (s *ReviewStore) ListPending(ctx context.Context) ([]domain.ReviewProposal, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, edge_a_id, edge_b_id, dissonance_type, evidence, status, review_reason, detected_at, reviewed_at
		 FROM dissonance_reviews
		 WHERE status = $1
		 ORDER BY detected_at ASC`,
		domain.ReviewPending,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reviews := []domain.ReviewProposal{}
	for rows.Next() {
		var r domain.ReviewProposal
		if err := rows.Scan(&r.ID, &r.Dissonance.EdgeAID, &r.Dissonance.EdgeBID,
			&r.Dissonance.DissonanceType, &r.Dissonance.Evidence, &r.Status,
			&r.ReviewReason, &r.DetectedAt, &r.ReviewedAt); err != nil {
			return nil, err
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

var _ domain.ReviewStore = (*ReviewStore)(nil)
