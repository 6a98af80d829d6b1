// Package identity implements the Identity Reconciler (component B): it
// maps a change's sync identifier to the canonical row the merge engine
// should act on. Because client-minted identifiers double as the canonical
// server identifier (the dual-identity model, spec §3/§9), reconciliation
// never needs a translation table — it only needs to know whether this id
// has been seen before within the tenant, which determines insert-vs-update
// routing.
package identity

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/oceanic-wellbeing/sync-core/internal/domain"
	"github.com/oceanic-wellbeing/sync-core/internal/store"
)

// Decision is the reconciler's verdict for one change: whether the merge
// engine should insert a new row or update an existing one, and the
// existing row's state when one was found.
type Decision struct {
	IsNew    bool
	Existing *domain.Record
}

// Resolve looks up id within tenantID's scope for entity and reports
// whether the change is a first-seen insert or an update of a row already
// known to the server. The lookup is tenant-scoped only, not user-scoped,
// so that a psychologist reviewing another crew member's check-in
// reconciles against the same canonical row the crew member's device
// created (spec §3, invariant 2).
func Resolve(ctx context.Context, tx store.Tx, tenantID uuid.UUID, entity domain.Entity, id uuid.UUID) (Decision, error) {
	existing, err := tx.FindByID(ctx, tenantID, entity, id)
	if err != nil {
		return Decision{}, fmt.Errorf("identity: resolve %s/%s: %w", entity, id, err)
	}
	if existing == nil {
		return Decision{IsNew: true}, nil
	}
	return Decision{IsNew: false, Existing: existing}, nil
}
