package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AuditAction is an open string enum: the listed values are the ones this
// core writes, but the log accepts and returns any action so future
// proposal/approval/rejection flows can share the table.
type AuditAction string

const (
	AuditDeleteAttempt     AuditAction = "DELETE_ATTEMPT"
	AuditDeleteSuccess     AuditAction = "DELETE_SUCCESS"
	AuditReviewOpened      AuditAction = "REVIEW_OPENED"
	AuditResolutionApplied AuditAction = "RESOLUTION_APPLIED"
)

const (
	// ActorSystem marks actions taken by the subsystem itself.
	ActorSystem = "system"
	// ActorProtected is the protected identity on whose behalf bilateral
	// consent is exercised.
	ActorProtected = "I/O"
)

// AuditLogEntry is an append-only record of a guarded or conflict-resolving
// operation. EdgeID is a plain reference: the entry stays valid after the
// edge it names is deleted.
type AuditLogEntry struct {
	ID         uuid.UUID      `json:"id"`
	EdgeID     uuid.UUID      `json:"edge_id"`
	Action     AuditAction    `json:"action"`
	Blocked    bool           `json:"blocked"`
	Reason     string         `json:"reason,omitempty"`
	Actor      string         `json:"actor"`
	Properties map[string]any `json:"properties,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// AuditFilter narrows an audit query. Zero fields match everything.
type AuditFilter struct {
	EdgeID *uuid.UUID
	Action AuditAction
	Actor  string
	Limit  int
}

type AuditStore interface {
	Append(ctx context.Context, e *AuditLogEntry) error
	// Query returns entries newest-first. An empty store yields an empty
	// slice, not an error.
	Query(ctx context.Context, filter AuditFilter) ([]AuditLogEntry, error)
	// Clear truncates the log. Test-only.
	Clear(ctx context.Context) (int64, error)
}
