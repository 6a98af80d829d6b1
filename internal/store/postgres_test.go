package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oceanic-wellbeing/sync-core/internal/config"
	"github.com/oceanic-wellbeing/sync-core/internal/db"
	"github.com/oceanic-wellbeing/sync-core/internal/domain"
)

func getTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration tests")
	}

	if err := db.Migrate(dbURL); err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}

	pool, err := db.Open(context.Background(), config.DatabaseConfig{
		URL: dbURL, MaxConns: 5, MinConns: 1,
		MaxConnLifetime: time.Hour, MaxConnIdleTime: 30 * time.Minute,
	})
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	for _, table := range []string{"mood_log", "journal_entry", "check_in", "resource", "sync_cursor"} {
		if _, err := pool.Exec(context.Background(), "DELETE FROM "+table); err != nil {
			t.Fatalf("failed to clean table %s: %v", table, err)
		}
	}

	return pool
}

func TestPostgresStore_InsertAndFindByID(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool := getTestPool(t)
	defer pool.Close()

	s := New(pool)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	defer tx.Rollback(ctx)

	tenantID, userID, id := uuid.New(), uuid.New(), uuid.New()
	rec := domain.Record{
		ID:              id,
		TenantID:        tenantID,
		UserID:          userID,
		ClientCreatedAt: time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
		Attrs:           map[string]any{"mood": "good", "intensity": float64(3)},
	}

	inserted, err := tx.Insert(ctx, domain.EntityMoodLog, rec)
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if inserted.ID != id {
		t.Errorf("Insert() ID = %v, want %v", inserted.ID, id)
	}

	found, err := tx.FindByID(ctx, tenantID, domain.EntityMoodLog, id)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if found == nil {
		t.Fatal("FindByID() = nil, want a record")
	}
	if found.Attrs["mood"] != "good" {
		t.Errorf("FindByID() attrs[mood] = %v, want good", found.Attrs["mood"])
	}

	otherTenant := uuid.New()
	found, err = tx.FindByID(ctx, otherTenant, domain.EntityMoodLog, id)
	if err != nil {
		t.Fatalf("FindByID() cross-tenant error = %v", err)
	}
	if found != nil {
		t.Error("FindByID() should not find a row belonging to a different tenant")
	}

	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
}

func TestPostgresStore_UpdateIfNewerRejectsStaleWrite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool := getTestPool(t)
	defer pool.Close()

	s := New(pool)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	defer tx.Rollback(ctx)

	tenantID, userID, id := uuid.New(), uuid.New(), uuid.New()
	base := time.Now().UTC()
	rec := domain.Record{
		ID:              id,
		TenantID:        tenantID,
		UserID:          userID,
		ClientCreatedAt: base,
		UpdatedAt:       base,
		Attrs:           map[string]any{"mood": "okay"},
	}
	if _, err := tx.Insert(ctx, domain.EntityMoodLog, rec); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	stale := rec
	stale.UpdatedAt = base.Add(-time.Minute)
	stale.Attrs = map[string]any{"mood": "bad"}
	_, applied, err := tx.UpdateIfNewer(ctx, domain.EntityMoodLog, stale)
	if err != nil {
		t.Fatalf("UpdateIfNewer() stale error = %v", err)
	}
	if applied {
		t.Error("UpdateIfNewer() should reject a write older than the stored row")
	}

	fresh := rec
	fresh.UpdatedAt = base.Add(time.Minute)
	fresh.Attrs = map[string]any{"mood": "great"}
	updated, applied, err := tx.UpdateIfNewer(ctx, domain.EntityMoodLog, fresh)
	if err != nil {
		t.Fatalf("UpdateIfNewer() fresh error = %v", err)
	}
	if !applied {
		t.Error("UpdateIfNewer() should accept a write newer than the stored row")
	}
	if updated.Attrs["mood"] != "great" {
		t.Errorf("UpdateIfNewer() attrs[mood] = %v, want great", updated.Attrs["mood"])
	}

	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
}

func TestPostgresStore_ListResourcesUpdatedSinceScopesByTenantAndGlobal(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool := getTestPool(t)
	defer pool.Close()

	ctx := context.Background()
	tenantA, tenantB := uuid.New(), uuid.New()
	base := time.Now().UTC().Add(-time.Hour)

	scoped := domain.Resource{
		ID: uuid.New(), TenantID: &tenantA, Title: "Tenant-only article", Type: "article",
		Category: "stress", Tags: []string{"sleep"}, IsPublished: true, OfflineAvailable: true,
		CreatedAt: base, UpdatedAt: base.Add(time.Minute),
	}
	global := domain.Resource{
		ID: uuid.New(), TenantID: nil, Title: "Global exercise", Type: "exercise",
		Category: "breathing", Tags: []string{"calm"}, IsPublished: true, OfflineAvailable: false,
		CreatedAt: base, UpdatedAt: base.Add(2 * time.Minute),
	}
	unpublished := domain.Resource{
		ID: uuid.New(), TenantID: nil, Title: "Draft video", Type: "video",
		Category: "sleep", Tags: nil, IsPublished: false, OfflineAvailable: false,
		CreatedAt: base, UpdatedAt: base.Add(3 * time.Minute),
	}
	otherTenant := domain.Resource{
		ID: uuid.New(), TenantID: &tenantB, Title: "Other tenant's article", Type: "article",
		Category: "stress", Tags: nil, IsPublished: true, OfflineAvailable: false,
		CreatedAt: base, UpdatedAt: base.Add(4 * time.Minute),
	}

	for _, r := range []domain.Resource{scoped, global, unpublished, otherTenant} {
		_, err := pool.Exec(ctx, `
			INSERT INTO resource (id, tenant_id, title, type, category, tags, is_published, offline_available, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, r.ID, r.TenantID, r.Title, r.Type, r.Category, r.Tags, r.IsPublished, r.OfflineAvailable, r.CreatedAt, r.UpdatedAt)
		if err != nil {
			t.Fatalf("seed resource %q: %v", r.Title, err)
		}
	}

	s := New(pool)
	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	defer tx.Rollback(ctx)

	got, err := tx.ListResourcesUpdatedSince(ctx, tenantA, base, nil, 10)
	if err != nil {
		t.Fatalf("ListResourcesUpdatedSince() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListResourcesUpdatedSince() returned %d resources, want 2 (scoped + global, published only)", len(got))
	}
	for _, r := range got {
		if r.Title == otherTenant.Title {
			t.Error("ListResourcesUpdatedSince() leaked another tenant's scoped resource")
		}
		if r.Title == unpublished.Title {
			t.Error("ListResourcesUpdatedSince() returned an unpublished resource")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
}

func TestPostgresStore_CursorUpsertAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool := getTestPool(t)
	defer pool.Close()

	ctx := context.Background()
	s := New(pool)
	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	defer tx.Rollback(ctx)

	tenantID, userID, deviceID := uuid.New(), uuid.New(), uuid.New()
	first := time.Now().UTC().Add(-time.Hour)

	row := domain.CursorRow{
		TenantID: tenantID, UserID: userID, DeviceID: deviceID,
		Entity: domain.EntityMoodLog, LastSyncedAt: first,
	}
	if err := tx.UpsertCursor(ctx, row); err != nil {
		t.Fatalf("UpsertCursor() error = %v", err)
	}

	cursors, err := tx.GetCursors(ctx, tenantID, userID, deviceID)
	if err != nil {
		t.Fatalf("GetCursors() error = %v", err)
	}
	got, ok := cursors[domain.EntityMoodLog]
	if !ok {
		t.Fatal("GetCursors() missing mood_log checkpoint")
	}
	if !got.LastSyncedAt.Equal(first) {
		t.Errorf("GetCursors() LastSyncedAt = %v, want %v", got.LastSyncedAt, first)
	}

	second := first.Add(time.Minute)
	row.LastSyncedAt = second
	if err := tx.UpsertCursor(ctx, row); err != nil {
		t.Fatalf("UpsertCursor() re-upsert error = %v", err)
	}

	cursors, err = tx.GetCursors(ctx, tenantID, userID, deviceID)
	if err != nil {
		t.Fatalf("GetCursors() error = %v", err)
	}
	if len(cursors) != 1 {
		t.Fatalf("GetCursors() returned %d checkpoints, want 1 (upsert, not duplicate row)", len(cursors))
	}
	if !cursors[domain.EntityMoodLog].LastSyncedAt.Equal(second) {
		t.Errorf("GetCursors() LastSyncedAt after re-upsert = %v, want %v", cursors[domain.EntityMoodLog].LastSyncedAt, second)
	}

	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
}

func TestPostgresStore_ListUpdatedSinceOrdersAndScopesByTenant(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool := getTestPool(t)
	defer pool.Close()

	s := New(pool)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	defer tx.Rollback(ctx)

	tenantA, tenantB, userID := uuid.New(), uuid.New(), uuid.New()
	base := time.Now().UTC().Add(-time.Hour)

	for i, tenant := range []uuid.UUID{tenantA, tenantA, tenantB} {
		rec := domain.Record{
			ID:              uuid.New(),
			TenantID:        tenant,
			UserID:          userID,
			ClientCreatedAt: base,
			UpdatedAt:       base.Add(time.Duration(i+1) * time.Minute),
			Attrs:           map[string]any{"n": i},
		}
		if _, err := tx.Insert(ctx, domain.EntityMoodLog, rec); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	got, err := tx.ListUpdatedSince(ctx, tenantA, userID, false, domain.EntityMoodLog, base, nil, 10)
	if err != nil {
		t.Fatalf("ListUpdatedSince() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListUpdatedSince() returned %d records, want 2 (tenant isolation)", len(got))
	}
	if !got[0].UpdatedAt.Before(got[1].UpdatedAt) {
		t.Error("ListUpdatedSince() should order ascending by updated_at")
	}

	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
}
