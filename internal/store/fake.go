package store

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/oceanic-wellbeing/sync-core/internal/domain"
	"github.com/oceanic-wellbeing/sync-core/internal/syncx"
)

// cursorKey identifies one sync_cursor row.
type cursorKey struct {
	tenantID uuid.UUID
	userID   uuid.UUID
	deviceID uuid.UUID
	entity   domain.Entity
}

// Fake is an in-memory Store used by the unit tests of every package that
// depends on Store (identity, merge, pull, synccursor), so those suites run
// without a database, matching the reference server's preference for a
// fake collaborator over mocks in pure-logic tests.
type Fake struct {
	records   map[domain.Entity]map[uuid.UUID]domain.Record
	resources []domain.Resource
	cursors   map[cursorKey]domain.CursorRow
}

// NewFake returns an empty fake store.
func NewFake() *Fake {
	return &Fake{
		records: make(map[domain.Entity]map[uuid.UUID]domain.Record),
		cursors: make(map[cursorKey]domain.CursorRow),
	}
}

// SeedRecord inserts a record directly, bypassing LWW, for test setup.
func (f *Fake) SeedRecord(entity domain.Entity, rec domain.Record) {
	if f.records[entity] == nil {
		f.records[entity] = make(map[uuid.UUID]domain.Record)
	}
	f.records[entity][rec.ID] = rec
}

// SeedResource appends a resource row for test setup.
func (f *Fake) SeedResource(r domain.Resource) {
	f.resources = append(f.resources, r)
}

func (f *Fake) Begin(ctx context.Context) (Tx, error) {
	records := make(map[domain.Entity]map[uuid.UUID]domain.Record, len(f.records))
	for e, m := range f.records {
		copied := make(map[uuid.UUID]domain.Record, len(m))
		for id, r := range m {
			copied[id] = r
		}
		records[e] = copied
	}
	resources := make([]domain.Resource, len(f.resources))
	copy(resources, f.resources)
	cursors := make(map[cursorKey]domain.CursorRow, len(f.cursors))
	for k, v := range f.cursors {
		cursors[k] = v
	}
	return &fakeTx{owner: f, records: records, resources: resources, cursors: cursors}, nil
}

type fakeTx struct {
	owner     *Fake
	records   map[domain.Entity]map[uuid.UUID]domain.Record
	resources []domain.Resource
	cursors   map[cursorKey]domain.CursorRow
	done      bool
}

func (t *fakeTx) Commit(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.owner.records = t.records
	t.owner.resources = t.resources
	t.owner.cursors = t.cursors
	t.done = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	t.done = true
	return nil
}

func (t *fakeTx) FindByID(ctx context.Context, tenantID uuid.UUID, entity domain.Entity, id uuid.UUID) (*domain.Record, error) {
	m := t.records[entity]
	if m == nil {
		return nil, nil
	}
	rec, ok := m[id]
	if !ok || rec.TenantID != tenantID {
		return nil, nil
	}
	out := rec
	return &out, nil
}

func (t *fakeTx) Insert(ctx context.Context, entity domain.Entity, rec domain.Record) (domain.Record, error) {
	if t.records[entity] == nil {
		t.records[entity] = make(map[uuid.UUID]domain.Record)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.SyncedAt = time.Now().UTC()
	t.records[entity][rec.ID] = rec
	return rec, nil
}

// UpdateIfNewer mirrors the Postgres implementation's gate-vs-stamp split:
// rec.UpdatedAt is only the candidate compared against the stored
// updated_at; once accepted, the stored row is stamped with the server
// clock rather than the candidate itself.
func (t *fakeTx) UpdateIfNewer(ctx context.Context, entity domain.Entity, rec domain.Record) (domain.Record, bool, error) {
	m := t.records[entity]
	if m == nil {
		return domain.Record{}, false, ErrNotFound
	}
	existing, ok := m[rec.ID]
	if !ok || existing.TenantID != rec.TenantID {
		return domain.Record{}, false, ErrNotFound
	}
	if !rec.UpdatedAt.After(existing.UpdatedAt) {
		return existing, false, nil
	}
	now := time.Now().UTC()
	existing.Attrs = rec.Attrs
	existing.UpdatedAt = now
	existing.IsDeleted = rec.IsDeleted
	existing.SyncedAt = now
	m[rec.ID] = existing
	return existing, true, nil
}

func (t *fakeTx) ListUpdatedSince(ctx context.Context, tenantID, userID uuid.UUID, allUsers bool, entity domain.Entity, since time.Time, cursor *syncx.Cursor, limit int) ([]domain.Record, error) {
	m := t.records[entity]
	out := make([]domain.Record, 0, len(m))
	for _, rec := range m {
		if rec.TenantID != tenantID {
			continue
		}
		if !allUsers && rec.UserID != userID {
			continue
		}
		if !rec.UpdatedAt.After(since) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if cursor != nil {
		cutoff := time.UnixMilli(cursor.Ms).UTC()
		filtered := out[:0]
		for _, rec := range out {
			if rec.UpdatedAt.After(cutoff) || (rec.UpdatedAt.Equal(cutoff) && rec.ID.String() > cursor.UID.String()) {
				filtered = append(filtered, rec)
			}
		}
		out = filtered
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *fakeTx) ListResourcesUpdatedSince(ctx context.Context, tenantID uuid.UUID, since time.Time, cursor *syncx.Cursor, limit int) ([]domain.Resource, error) {
	out := make([]domain.Resource, 0, len(t.resources))
	for _, r := range t.resources {
		if r.TenantID != nil && *r.TenantID != tenantID {
			continue
		}
		if !r.IsPublished {
			continue
		}
		if !r.UpdatedAt.After(since) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if cursor != nil {
		cutoff := time.UnixMilli(cursor.Ms).UTC()
		filtered := out[:0]
		for _, r := range out {
			if r.UpdatedAt.After(cutoff) || (r.UpdatedAt.Equal(cutoff) && r.ID.String() > cursor.UID.String()) {
				filtered = append(filtered, r)
			}
		}
		out = filtered
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *fakeTx) UpsertCursor(ctx context.Context, row domain.CursorRow) error {
	key := cursorKey{tenantID: row.TenantID, userID: row.UserID, deviceID: row.DeviceID, entity: row.Entity}
	t.cursors[key] = row
	return nil
}

func (t *fakeTx) GetCursors(ctx context.Context, tenantID, userID, deviceID uuid.UUID) (map[domain.Entity]domain.CursorRow, error) {
	out := make(map[domain.Entity]domain.CursorRow)
	for k, v := range t.cursors {
		if k.tenantID == tenantID && k.userID == userID && k.deviceID == deviceID {
			out[k.entity] = v
		}
	}
	return out, nil
}
