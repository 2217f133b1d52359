package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noetic-labs/covenant/internal/domain"
)

const defaultAuditLimit = 100

type AuditStore struct {
	db *pgxpool.Pool
}

func NewAuditStore(db *pgxpool.Pool) *AuditStore {
	return &AuditStore{db: db}
}

// rowQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, so audit appends
// can join a caller's transaction or run standalone.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func appendAudit(ctx context.Context, q rowQuerier, e *domain.AuditLogEntry) error {
	if e.Actor == "" {
		e.Actor = domain.ActorSystem
	}
	propsJSON, err := json.Marshal(nonNilProps(e.Properties))
	if err != nil {
		return fmt.Errorf("marshal audit properties: %w", err)
	}

	return q.QueryRow(ctx,
		`INSERT INTO audit_log (edge_id, action, blocked, reason, actor, properties)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		e.EdgeID, e.Action, e.Blocked, e.Reason, e.Actor, propsJSON,
	).Scan(&e.ID, &e.CreatedAt)
}

func (s *AuditStore) Append(ctx context.Context, e *domain.AuditLogEntry) error {
	return appendAudit(ctx, s.db, e)
}

func (s *AuditStore) Query(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditLogEntry, error) {
	var conditions []string
	var args []any

	if filter.EdgeID != nil {
		conditions = append(conditions, fmt.Sprintf("edge_id = $%d", len(args)+1))
		args = append(args, *filter.EdgeID)
	}
	if filter.Action != "" {
		conditions = append(conditions, fmt.Sprintf("action = $%d", len(args)+1))
		args = append(args, filter.Action)
	}
	if filter.Actor != "" {
		conditions = append(conditions, fmt.Sprintf("actor = $%d", len(args)+1))
		args = append(args, filter.Actor)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}

	query := `SELECT id, edge_id, action, blocked, reason, actor, properties, created_at FROM audit_log`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit query: %w", err)
	}
	defer rows.Close()

	entries := []domain.AuditLogEntry{}
	for rows.Next() {
		var e domain.AuditLogEntry
		var propsJSON []byte
		if err := rows.Scan(&e.ID, &e.EdgeID, &e.Action, &e.Blocked, &e.Reason,
			&e.Actor, &propsJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		if len(propsJSON) > 0 {
			_ = json.Unmarshal(propsJSON, &e.Properties)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Clear truncates the log. Test-only; nothing in the service layer calls it.
func (s *AuditStore) Clear(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM audit_log`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ domain.AuditStore = (*AuditStore)(nil)
