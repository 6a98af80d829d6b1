// Package synccursor implements the Sync Cursor Manager (component E):
// it persists and advances the per-{tenant, user, device, entity}
// replication checkpoints that let the pull planner resume from where a
// device last left off instead of rescanning full history on every call.
package synccursor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oceanic-wellbeing/sync-core/internal/domain"
	"github.com/oceanic-wellbeing/sync-core/internal/store"
)

// Checkpoints is the per-entity watermark a device has already observed.
type Checkpoints map[domain.Entity]time.Time

// Load fetches the current checkpoints for a device, one per entity it has
// synced at least once before. Entities with no prior checkpoint are
// simply absent from the result; the caller (the orchestrator) falls back
// to the request's lastSyncAt for those.
func Load(ctx context.Context, tx store.Tx, tenantID, userID, deviceID uuid.UUID) (Checkpoints, error) {
	rows, err := tx.GetCursors(ctx, tenantID, userID, deviceID)
	if err != nil {
		return nil, fmt.Errorf("synccursor: load: %w", err)
	}
	out := make(Checkpoints, len(rows))
	for entity, row := range rows {
		out[entity] = row.LastSyncedAt
	}
	return out, nil
}

// Advance persists a fresh checkpoint for every entity the sync call just
// pulled, at the tail of the sync orchestrator's transaction (spec §4.5).
// syncedAt is the single timestamp stamped across every entity so a
// partial failure can never leave one entity's cursor ahead of another's
// within the same sync call.
func Advance(ctx context.Context, tx store.Tx, tenantID, userID, deviceID uuid.UUID, entities []domain.Entity, syncedAt time.Time) error {
	for _, entity := range entities {
		row := domain.CursorRow{
			TenantID:     tenantID,
			UserID:       userID,
			DeviceID:     deviceID,
			Entity:       entity,
			LastSyncedAt: syncedAt,
		}
		if err := tx.UpsertCursor(ctx, row); err != nil {
			return fmt.Errorf("synccursor: advance %s: %w", entity, err)
		}
	}
	return nil
}
