// Package pull implements the Pull Planner (component D): for a given
// {tenant, user, since}, it enumerates every mutable entity's rows updated
// after the watermark, scoped by role, plus tenant-visible resources,
// ordered by updated_at ascending so a capped page always has a
// deterministic continuation point.
package pull

import (
	"context"
	"fmt"
	"time"

	"github.com/oceanic-wellbeing/sync-core/internal/domain"
	"github.com/oceanic-wellbeing/sync-core/internal/store"
	"github.com/oceanic-wellbeing/sync-core/internal/syncx"
)

// Plan is the set of server-originated changes a sync call returns.
type Plan struct {
	Records   map[domain.Entity][]domain.Record
	Resources []domain.Resource
}

// Since carries the per-entity watermark the planner pulls from. The
// orchestrator builds this from the sync cursor manager's checkpoints,
// falling back to the request's lastSyncAt for entities with no prior
// checkpoint (spec §4.4, §9).
type Since struct {
	PerEntity map[domain.Entity]time.Time
	Resources time.Time
}

// Run enumerates changes for every mutable entity the principal can read,
// plus tenant-visible resources. limit, when positive, caps each entity's
// page independently; a zero limit means unbounded.
func Run(ctx context.Context, tx store.Tx, principal domain.Principal, since Since, limit int) (Plan, error) {
	plan := Plan{Records: make(map[domain.Entity][]domain.Record, len(domain.MutableEntities))}

	for _, entity := range domain.MutableEntities {
		allUsers := entity == domain.EntityCheckIn && principal.CanReadAllUsers()
		watermark := since.PerEntity[entity]

		records, err := tx.ListUpdatedSince(ctx, principal.TenantID, principal.UserID, allUsers, entity, watermark, nil, limit)
		if err != nil {
			return Plan{}, fmt.Errorf("pull: list %s: %w", entity, err)
		}
		plan.Records[entity] = records
	}

	resources, err := tx.ListResourcesUpdatedSince(ctx, principal.TenantID, since.Resources, nil, limit)
	if err != nil {
		return Plan{}, fmt.Errorf("pull: list resources: %w", err)
	}
	plan.Resources = resources

	return plan, nil
}

// pagedLimit normalizes a client-requested page size against the server's
// configured cap; zero or negative means "use the default".
func pagedLimit(requested, def, max int) int {
	if requested <= 0 {
		return def
	}
	if requested > max {
		return max
	}
	return requested
}

// ContinuationCursor builds the next-page cursor for a list of records as
// an encoded syncx.Cursor, which syncx.DecodeCursor turns back into the
// cursor argument the Store's list methods resume from.
func ContinuationCursor(records []domain.Record) (string, bool) {
	if len(records) == 0 {
		return "", false
	}
	last := records[len(records)-1]
	return syncx.EncodeCursor(syncx.Cursor{Ms: last.UpdatedAt.UnixMilli(), UID: last.ID}), true
}
