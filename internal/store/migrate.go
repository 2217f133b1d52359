package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate applies the schema idempotently. The DDL is self-contained so a
// fresh database is usable after a single call; reruns are no-ops.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,

		`CREATE TABLE IF NOT EXISTS nodes (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			label TEXT NOT NULL,
			name TEXT NOT NULL,
			properties JSONB NOT NULL DEFAULT '{}',
			embedding vector(1536),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (label, name)
		)`,

		`CREATE TABLE IF NOT EXISTS edges (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			source_id UUID NOT NULL REFERENCES nodes(id),
			target_id UUID NOT NULL REFERENCES nodes(id),
			relation TEXT NOT NULL,
			weight DOUBLE PRECISION NOT NULL DEFAULT 1.0,
			properties JSONB NOT NULL DEFAULT '{}',
			access_count INTEGER NOT NULL DEFAULT 0,
			last_accessed TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_source ON edges (source_id)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_target ON edges (target_id)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_relation ON edges (relation)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_supersedes ON edges USING GIN ((properties->'supersedes'))`,

		// edge_id is a plain reference: entries must outlive the edge, so no
		// foreign key and no cascade.
		`CREATE TABLE IF NOT EXISTS audit_log (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			edge_id UUID NOT NULL,
			action TEXT NOT NULL,
			blocked BOOLEAN NOT NULL DEFAULT FALSE,
			reason TEXT NOT NULL DEFAULT '',
			actor TEXT NOT NULL DEFAULT 'system',
			properties JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_created ON audit_log (created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_edge ON audit_log (edge_id)`,

		`CREATE TABLE IF NOT EXISTS dissonance_reviews (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			edge_a_id UUID NOT NULL,
			edge_b_id UUID NOT NULL,
			dissonance_type TEXT NOT NULL,
			evidence TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'PENDING',
			review_reason TEXT NOT NULL DEFAULT '',
			detected_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			reviewed_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_status ON dissonance_reviews (status)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
