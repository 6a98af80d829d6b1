package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oceanic-wellbeing/sync-core/internal/domain"
	"github.com/oceanic-wellbeing/sync-core/internal/syncx"
	"github.com/rs/zerolog/log"
)

// tableFor maps a mutable entity to its backing table. Only entities in
// domain.MutableEntities are valid inputs; callers must validate the entity
// before it ever reaches the store (the merge engine and pull planner do
// this against the closed enum, never against raw client input).
func tableFor(entity domain.Entity) (string, error) {
	switch entity {
	case domain.EntityMoodLog:
		return "mood_log", nil
	case domain.EntityJournalEntry:
		return "journal_entry", nil
	case domain.EntityCheckIn:
		return "check_in", nil
	default:
		return "", fmt.Errorf("store: unknown mutable entity %q", entity)
	}
}

// PostgresStore is the Postgres-backed Store, opening a pgx.Tx per sync
// call exactly as the reference server's service layer does per request.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// New wraps an already-open pool (see internal/db.Open) in a Store.
func New(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		log.Error().Err(err).Msg("store: failed to begin transaction")
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &postgresTx{tx: tx}, nil
}

type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *postgresTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

func (t *postgresTx) FindByID(ctx context.Context, tenantID uuid.UUID, entity domain.Entity, id uuid.UUID) (*domain.Record, error) {
	table, err := tableFor(entity)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, tenant_id, user_id, client_created_at, created_at, updated_at, synced_at, is_deleted, attrs
		FROM %s
		WHERE tenant_id = $1 AND id = $2
	`, table)

	rec, err := scanRecord(t.tx.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		log.Error().Err(err).Str("entity", string(entity)).Str("id", id.String()).Msg("store: FindByID failed")
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &rec, nil
}

func (t *postgresTx) Insert(ctx context.Context, entity domain.Entity, rec domain.Record) (domain.Record, error) {
	table, err := tableFor(entity)
	if err != nil {
		return domain.Record{}, err
	}

	attrsJSON, err := json.Marshal(rec.Attrs)
	if err != nil {
		return domain.Record{}, fmt.Errorf("store: marshal attrs: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, tenant_id, user_id, client_created_at, created_at, updated_at, synced_at, is_deleted, attrs)
		VALUES ($1, $2, $3, $4, now(), $5, now(), $6, $7)
		RETURNING id, tenant_id, user_id, client_created_at, created_at, updated_at, synced_at, is_deleted, attrs
	`, table)

	out, err := scanRecord(t.tx.QueryRow(ctx, query,
		rec.ID, rec.TenantID, rec.UserID, rec.ClientCreatedAt, rec.UpdatedAt, rec.IsDeleted, attrsJSON))
	if err != nil {
		log.Error().Err(err).Str("entity", string(entity)).Str("id", rec.ID.String()).Msg("store: Insert failed")
		return domain.Record{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out, nil
}

// UpdateIfNewer applies the LWW guard directly in the WHERE clause, in the
// idiom of the reference server's note upsert: the write is a no-op unless
// rec.UpdatedAt (the client-supplied candidate) is strictly greater than the
// stored updated_at, which also makes duplicate pushes of the same change
// idempotent. The candidate is only the gate — once it passes, the row's
// updated_at and synced_at are stamped with the server clock (spec §4.3
// step 4), so the next push only has to beat this write's execution time.
func (t *postgresTx) UpdateIfNewer(ctx context.Context, entity domain.Entity, rec domain.Record) (domain.Record, bool, error) {
	table, err := tableFor(entity)
	if err != nil {
		return domain.Record{}, false, err
	}

	attrsJSON, err := json.Marshal(rec.Attrs)
	if err != nil {
		return domain.Record{}, false, fmt.Errorf("store: marshal attrs: %w", err)
	}

	query := fmt.Sprintf(`
		UPDATE %s SET
			attrs = $3,
			updated_at = now(),
			synced_at = now(),
			is_deleted = $5
		WHERE tenant_id = $1 AND id = $2 AND $4 > updated_at
		RETURNING id, tenant_id, user_id, client_created_at, created_at, updated_at, synced_at, is_deleted, attrs
	`, table)

	row := t.tx.QueryRow(ctx, query, rec.TenantID, rec.ID, attrsJSON, rec.UpdatedAt, rec.IsDeleted)
	out, err := scanRecord(row)
	if err == nil {
		return out, true, nil
	}
	if err != pgx.ErrNoRows {
		log.Error().Err(err).Str("entity", string(entity)).Str("id", rec.ID.String()).Msg("store: UpdateIfNewer failed")
		return domain.Record{}, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// The guard rejected the write (stale or duplicate) or the row doesn't
	// exist within this tenant. Either way, report the current state.
	current, ferr := t.FindByID(ctx, rec.TenantID, entity, rec.ID)
	if ferr != nil {
		return domain.Record{}, false, ferr
	}
	if current == nil {
		return domain.Record{}, false, ErrNotFound
	}
	return *current, false, nil
}

func (t *postgresTx) ListUpdatedSince(ctx context.Context, tenantID, userID uuid.UUID, allUsers bool, entity domain.Entity, since time.Time, cursor *syncx.Cursor, limit int) ([]domain.Record, error) {
	table, err := tableFor(entity)
	if err != nil {
		return nil, err
	}

	args := []any{tenantID, since}
	where := "tenant_id = $1 AND updated_at > $2"
	if !allUsers {
		args = append(args, userID)
		where += fmt.Sprintf(" AND user_id = $%d", len(args))
	}
	if cursor != nil {
		args = append(args, time.UnixMilli(cursor.Ms).UTC(), cursor.UID)
		where += fmt.Sprintf(" AND (updated_at, id) > ($%d, $%d)", len(args)-1, len(args))
	}
	// A NULL limit is no limit; a non-positive limit means unbounded.
	var limitArg any
	if limit > 0 {
		limitArg = limit
	}
	args = append(args, limitArg)

	query := fmt.Sprintf(`
		SELECT id, tenant_id, user_id, client_created_at, created_at, updated_at, synced_at, is_deleted, attrs
		FROM %s
		WHERE %s
		ORDER BY updated_at ASC, id ASC
		LIMIT $%d
	`, table, where, len(args))

	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		log.Error().Err(err).Str("entity", string(entity)).Msg("store: ListUpdatedSince failed")
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var out []domain.Record
	for rows.Next() {
		rec, err := scanRecordFromRows(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out, nil
}

func (t *postgresTx) ListResourcesUpdatedSince(ctx context.Context, tenantID uuid.UUID, since time.Time, cursor *syncx.Cursor, limit int) ([]domain.Resource, error) {
	args := []any{tenantID, since}
	where := "(tenant_id = $1 OR tenant_id IS NULL) AND updated_at > $2 AND is_published"
	if cursor != nil {
		args = append(args, time.UnixMilli(cursor.Ms).UTC(), cursor.UID)
		where += fmt.Sprintf(" AND (updated_at, id) > ($%d, $%d)", len(args)-1, len(args))
	}
	// A NULL limit is no limit; a non-positive limit means unbounded.
	var limitArg any
	if limit > 0 {
		limitArg = limit
	}
	args = append(args, limitArg)

	query := fmt.Sprintf(`
		SELECT id, tenant_id, title, type, category, tags, is_published, offline_available, created_at, updated_at
		FROM resource
		WHERE %s
		ORDER BY updated_at ASC, id ASC
		LIMIT $%d
	`, where, len(args))

	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		log.Error().Err(err).Msg("store: ListResourcesUpdatedSince failed")
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var out []domain.Resource
	for rows.Next() {
		var r domain.Resource
		if err := rows.Scan(&r.ID, &r.TenantID, &r.Title, &r.Type, &r.Category, &r.Tags, &r.IsPublished, &r.OfflineAvailable, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out, nil
}

func (t *postgresTx) UpsertCursor(ctx context.Context, row domain.CursorRow) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO sync_cursor (tenant_id, user_id, device_id, entity, last_synced_at, last_record_id, sync_cursor)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id, user_id, device_id, entity) DO UPDATE SET
			last_synced_at = EXCLUDED.last_synced_at,
			last_record_id = EXCLUDED.last_record_id,
			sync_cursor    = EXCLUDED.sync_cursor
	`, row.TenantID, row.UserID, row.DeviceID, row.Entity, row.LastSyncedAt, row.LastRecordID, row.SyncCursor)
	if err != nil {
		log.Error().Err(err).Str("entity", string(row.Entity)).Msg("store: UpsertCursor failed")
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (t *postgresTx) GetCursors(ctx context.Context, tenantID, userID, deviceID uuid.UUID) (map[domain.Entity]domain.CursorRow, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT tenant_id, user_id, device_id, entity, last_synced_at, last_record_id, sync_cursor
		FROM sync_cursor
		WHERE tenant_id = $1 AND user_id = $2 AND device_id = $3
	`, tenantID, userID, deviceID)
	if err != nil {
		log.Error().Err(err).Msg("store: GetCursors failed")
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	out := make(map[domain.Entity]domain.CursorRow)
	for rows.Next() {
		var c domain.CursorRow
		if err := rows.Scan(&c.TenantID, &c.UserID, &c.DeviceID, &c.Entity, &c.LastSyncedAt, &c.LastRecordID, &c.SyncCursor); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		out[c.Entity] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out, nil
}

// rowScanner abstracts pgx.Row/pgx.Rows enough for a shared scan helper.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (domain.Record, error) {
	var rec domain.Record
	var attrsJSON []byte
	if err := row.Scan(&rec.ID, &rec.TenantID, &rec.UserID, &rec.ClientCreatedAt, &rec.CreatedAt, &rec.UpdatedAt, &rec.SyncedAt, &rec.IsDeleted, &attrsJSON); err != nil {
		return domain.Record{}, err
	}
	if len(attrsJSON) > 0 {
		if err := json.Unmarshal(attrsJSON, &rec.Attrs); err != nil {
			return domain.Record{}, err
		}
	}
	return rec, nil
}

func scanRecordFromRows(rows pgx.Rows) (domain.Record, error) {
	return scanRecord(rows)
}
