// Package merge implements the Merge Engine (component C): the per-entity
// upsert that applies a pushed change with last-write-wins semantics,
// timestamps derived from the client at insert and from the server clock at
// update, and the role-gated authorization rules around check-in review
// fields and cross-user writes.
package merge

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oceanic-wellbeing/sync-core/internal/domain"
	"github.com/oceanic-wellbeing/sync-core/internal/identity"
	"github.com/oceanic-wellbeing/sync-core/internal/store"
	"github.com/oceanic-wellbeing/sync-core/internal/syncx"
)

// Outcome reports what happened to a single pushed change. A non-empty
// RejectReason means the change was not applied but the batch continues
// (spec §7); Err is the underlying error for logging and is never sent to
// the client verbatim.
type Outcome struct {
	ID           string
	Applied      bool
	RejectReason string
	Err          error
	Record       *domain.Record
}

func reject(id, reason string, err error) Outcome {
	return Outcome{ID: id, Applied: false, RejectReason: reason, Err: err}
}

// Apply reconciles and merges one pushed change for entity, enforcing the
// ownership and role rules of spec §3 before touching the Store.
func Apply(ctx context.Context, tx store.Tx, principal domain.Principal, entity domain.Entity, item map[string]any) Outcome {
	env, err := syncx.ExtractEnvelope(item)
	if err != nil {
		return reject("", "invalid envelope", fmt.Errorf("%w: %v", ErrValidation, err))
	}
	idStr := env.ID.String()

	attrs := stripEnvelope(item)
	if err := validateAttrs(entity, attrs); err != nil {
		return reject(idStr, "schema validation failed", err)
	}

	decision, err := identity.Resolve(ctx, tx, principal.TenantID, entity, env.ID)
	if err != nil {
		return reject(idStr, "lookup failed", err)
	}

	ownerID, attrs, err := authorize(principal, entity, decision, attrs)
	if err != nil {
		return reject(idStr, "not permitted", err)
	}

	if decision.IsNew {
		if !env.HasClientCreatedAt {
			return reject(idStr, "schema validation failed", fmt.Errorf("%w: clientCreatedAt is required on insert", ErrValidation))
		}
		updatedAt := env.ClientCreatedAt
		if env.HasUpdatedAt {
			updatedAt = env.UpdatedAt
		}

		rec := domain.Record{
			ID:              env.ID,
			TenantID:        principal.TenantID,
			UserID:          ownerID,
			ClientCreatedAt: env.ClientCreatedAt,
			UpdatedAt:       updatedAt,
			IsDeleted:       env.IsDeleted,
			Attrs:           attrs,
		}
		inserted, err := tx.Insert(ctx, entity, rec)
		if err != nil {
			return reject(idStr, "store insert failed", err)
		}
		return Outcome{ID: idStr, Applied: true, Record: &inserted}
	}

	// Update: the gate value is the client-supplied timestamp, per the
	// hybrid client/server LWW rule (spec §4.3 step 4) — client_updated_at
	// decides whether the write happens at all, compared against the
	// stored row's updated_at. Once the Store accepts the write it stamps
	// the row's updated_at/synced_at with its own clock, not the client's
	// value, so a later push only needs to beat the server time of the
	// last accepted write.
	var clientUpdatedAt time.Time
	switch {
	case env.HasUpdatedAt:
		clientUpdatedAt = env.UpdatedAt
	case env.HasClientCreatedAt:
		clientUpdatedAt = env.ClientCreatedAt
	default:
		return reject(idStr, "schema validation failed", fmt.Errorf("%w: updatedAt or clientCreatedAt is required on update", ErrValidation))
	}

	rec := domain.Record{
		ID:              env.ID,
		TenantID:        principal.TenantID,
		UserID:          ownerID,
		ClientCreatedAt: decision.Existing.ClientCreatedAt,
		UpdatedAt:       clientUpdatedAt,
		IsDeleted:       env.IsDeleted,
		Attrs:           attrs,
	}
	updated, applied, err := tx.UpdateIfNewer(ctx, entity, rec)
	if err != nil {
		return reject(idStr, "store update failed", err)
	}
	return Outcome{ID: idStr, Applied: applied, Record: &updated}
}

// authorize decides the record's true owner and the set of attrs the
// caller is actually permitted to write, or rejects the change outright.
// Every mutable entity except check_in is strictly single-user: the caller
// can only ever write their own rows, regardless of what the payload says.
// Check-in additionally allows a psychologist to update another user's row,
// but only its review fields (spec §3, invariant 2).
func authorize(principal domain.Principal, entity domain.Entity, decision identity.Decision, attrs map[string]any) (ownerID uuid.UUID, outAttrs map[string]any, err error) {
	if entity != domain.EntityCheckIn {
		if !decision.IsNew && decision.Existing.UserID != principal.UserID {
			return uuid.Nil, nil, fmt.Errorf("%w: %s is owned by a different user", ErrForbidden, entity)
		}
		return principal.UserID, attrs, nil
	}

	if decision.IsNew {
		if principal.Role != domain.RolePsychologist && hasAnyField(attrs, reviewFields) {
			return uuid.Nil, nil, fmt.Errorf("%w: review fields may only be set by a psychologist", ErrForbidden)
		}
		return principal.UserID, attrs, nil
	}

	if decision.Existing.UserID == principal.UserID {
		if principal.Role != domain.RolePsychologist && hasAnyField(attrs, reviewFields) {
			return uuid.Nil, nil, fmt.Errorf("%w: review fields may only be set by a psychologist", ErrForbidden)
		}
		return principal.UserID, attrs, nil
	}

	// Cross-user write: only a psychologist may touch someone else's
	// check-in, and only to change its review fields.
	if principal.Role != domain.RolePsychologist {
		return uuid.Nil, nil, fmt.Errorf("%w: only a psychologist may update another user's check-in", ErrForbidden)
	}
	for k, v := range attrs {
		if hasAnyField(map[string]any{k: v}, reviewFields) {
			continue
		}
		if existingV, ok := decision.Existing.Attrs[k]; !ok || !equalJSON(existingV, v) {
			return uuid.Nil, nil, fmt.Errorf("%w: a psychologist may only change review fields on another user's check-in", ErrForbidden)
		}
	}
	return decision.Existing.UserID, attrs, nil
}

func equalJSON(a, b any) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func stripEnvelope(item map[string]any) map[string]any {
	out := make(map[string]any, len(item))
	for k, v := range item {
		switch k {
		case "id", "clientCreatedAt", "updatedAt", "isDeleted", "tenantId", "userId":
			continue
		default:
			out[k] = v
		}
	}
	return out
}
