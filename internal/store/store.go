// Package store is the sole data-access layer for the sync core (component A).
// Every query it issues is tenant-scoped by construction: callers can never
// pass a query that spans tenants, and user-scoped entities are additionally
// filtered by owning user unless the caller explicitly asks for the
// all-users view permitted for check-ins (spec §3, invariant 2).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/oceanic-wellbeing/sync-core/internal/domain"
	"github.com/oceanic-wellbeing/sync-core/internal/syncx"
)

// ErrNotFound is returned by UpdateIfNewer when no row matches within the
// caller's tenant scope. FindByID reports a missing row as (nil, nil)
// instead.
var ErrNotFound = errors.New("store: record not found")

// ErrUnavailable wraps a transient backend failure (connection reset, pool
// exhaustion, deadline exceeded) that the orchestrator maps to a generic
// HTTP 500 without leaking detail to the client (spec §7).
var ErrUnavailable = errors.New("store: backend unavailable")

// Store opens transactions. Every sync call runs inside exactly one Tx so
// that pushes and the subsequent pull observe each other (spec §5).
type Store interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is a single logical unit of work: a batch of pushes, the pull that
// follows them, and the cursor advance that closes out the sync call. All
// methods are tenant-scoped; ctx carries the call deadline.
type Tx interface {
	// FindByID looks up a mutable entity row by id within a tenant, with no
	// user restriction — the merge engine applies user-ownership and
	// role-gating rules on top of this (spec §4.2, §4.3).
	FindByID(ctx context.Context, tenantID uuid.UUID, entity domain.Entity, id uuid.UUID) (*domain.Record, error)

	// Insert creates a brand-new row. It is the caller's responsibility to
	// have already checked that no row with this id exists in this tenant.
	Insert(ctx context.Context, entity domain.Entity, rec domain.Record) (domain.Record, error)

	// UpdateIfNewer applies a last-write-wins update: the write only takes
	// effect if rec.UpdatedAt (the caller's client-supplied candidate
	// timestamp) is strictly greater than the stored row's updated_at
	// (spec §4.3). When the guard accepts the write, the stored updated_at
	// and synced_at are stamped with the server clock, not rec.UpdatedAt —
	// the candidate only ever decides whether the write happens. The
	// returned bool reports whether the write was applied; the returned
	// Record is always the row's state after the call (either the newly
	// applied values, or the untouched existing row when the incoming
	// write lost).
	UpdateIfNewer(ctx context.Context, entity domain.Entity, rec domain.Record) (domain.Record, bool, error)

	// ListUpdatedSince enumerates rows for entity with updated_at > since,
	// ordered by (updated_at, id) ascending. When allUsers is false, results
	// are restricted to userID; when true (admin/psychologist reading
	// check-ins), every user within the tenant is visible. cursor, if
	// non-nil, resumes a previous page; limit caps the page size.
	ListUpdatedSince(ctx context.Context, tenantID, userID uuid.UUID, allUsers bool, entity domain.Entity, since time.Time, cursor *syncx.Cursor, limit int) ([]domain.Record, error)

	// ListResourcesUpdatedSince enumerates tenant-visible (tenant-owned or
	// global) resource rows with updated_at > since, ordered by
	// (updated_at, id) ascending.
	ListResourcesUpdatedSince(ctx context.Context, tenantID uuid.UUID, since time.Time, cursor *syncx.Cursor, limit int) ([]domain.Resource, error)

	// UpsertCursor persists a replication checkpoint for {tenant, user,
	// device, entity}.
	UpsertCursor(ctx context.Context, row domain.CursorRow) error

	// GetCursors returns the current checkpoint per entity for a device. The
	// orchestrator pulls each entity from its checkpoint, and uses the
	// request's lastSyncAt only for entities that have none.
	GetCursors(ctx context.Context, tenantID, userID, deviceID uuid.UUID) (map[domain.Entity]domain.CursorRow, error)

	// Commit and Rollback close out the transaction. Rollback after Commit
	// (or vice versa) is a no-op, matching pgx.Tx semantics.
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
