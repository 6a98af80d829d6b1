// Package syncengine implements the Sync Orchestrator (component F): the
// public entry point that validates a sync request, drives the merge
// engine over each pushed change, runs the pull planner, advances the sync
// cursors, and assembles the response — all inside one logical transaction
// so a pull always observes the pushes that preceded it in the same call
// (spec §5).
package syncengine

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/oceanic-wellbeing/sync-core/internal/domain"
	"github.com/oceanic-wellbeing/sync-core/internal/merge"
	"github.com/oceanic-wellbeing/sync-core/internal/pull"
	"github.com/oceanic-wellbeing/sync-core/internal/store"
	"github.com/oceanic-wellbeing/sync-core/internal/synccursor"
	"github.com/rs/zerolog"
)

// Config bounds a sync call's resource usage (spec §4.7, §5). Zero values
// are replaced with the package defaults in New.
type Config struct {
	MaxChangesPerEntity int
	PullPageLimit       int
	CallTimeout         time.Duration
}

const (
	defaultMaxChangesPerEntity = 500
	defaultPullPageLimit       = 500
	defaultCallTimeout         = 30 * time.Second
)

func (c Config) withDefaults() Config {
	if c.MaxChangesPerEntity <= 0 {
		c.MaxChangesPerEntity = defaultMaxChangesPerEntity
	}
	if c.PullPageLimit <= 0 {
		c.PullPageLimit = defaultPullPageLimit
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = defaultCallTimeout
	}
	return c
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("rfc3339", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if s == "" {
			return true
		}
		_, err := time.Parse(time.RFC3339Nano, s)
		return err == nil
	})
	return v
}

// Orchestrator wires the Store to the rest of the component chain.
type Orchestrator struct {
	Store  store.Store
	Config Config
	Logger zerolog.Logger
}

// New builds an Orchestrator with the given Store and config.
func New(s store.Store, cfg Config, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{Store: s, Config: cfg.withDefaults(), Logger: logger}
}

// Run executes one full sync call for principal.
func (o *Orchestrator) Run(ctx context.Context, principal domain.Principal, req Request) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, o.Config.CallTimeout)
	defer cancel()

	if err := validate.Struct(req); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrEnvelopeInvalid, err)
	}
	deviceID, err := uuid.Parse(req.DeviceID)
	if err != nil {
		return Response{}, fmt.Errorf("%w: deviceId is not a uuid", ErrEnvelopeInvalid)
	}
	for key, items := range req.Changes {
		if _, ok := entityForJSONKey(key); !ok {
			return Response{}, fmt.Errorf("%w: unrecognized entity %q", ErrEnvelopeInvalid, key)
		}
		if len(items) > o.Config.MaxChangesPerEntity {
			return Response{}, fmt.Errorf("%w: %q has %d changes, max is %d", ErrBatchTooLarge, key, len(items), o.Config.MaxChangesPerEntity)
		}
	}

	tx, err := o.Store.Begin(ctx)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	var rejected []Rejection
	for _, entity := range domain.MutableEntities {
		key := entityJSONKeys[entity]
		items, ok := req.Changes[key]
		if !ok {
			continue
		}
		for _, item := range items {
			outcome := merge.Apply(ctx, tx, principal, entity, item)
			if !outcome.Applied {
				if outcome.Err != nil {
					o.Logger.Warn().Err(outcome.Err).Str("entity", string(entity)).Str("id", outcome.ID).Msg("rejected pushed change")
				}
				rejected = append(rejected, Rejection{Entity: key, ID: outcome.ID, Reason: outcome.RejectReason})
			}
		}
	}

	checkpoints, err := synccursor.Load(ctx, tx, principal.TenantID, principal.UserID, deviceID)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	since := pull.Since{PerEntity: map[domain.Entity]time.Time{}}
	fallback := parseFallbackSince(req.LastSyncAt)
	for _, entity := range domain.MutableEntities {
		if ts, ok := checkpoints[entity]; ok {
			since.PerEntity[entity] = ts
		} else {
			since.PerEntity[entity] = fallback
		}
	}
	if ts, ok := checkpoints[domain.EntityResource]; ok {
		since.Resources = ts
	} else {
		since.Resources = fallback
	}

	plan, err := pull.Run(ctx, tx, principal, since, o.Config.PullPageLimit)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	syncedAt := time.Now().UTC()
	cursorEntities := append(append([]domain.Entity{}, domain.MutableEntities...), domain.EntityResource)
	if err := synccursor.Advance(ctx, tx, principal.TenantID, principal.UserID, deviceID, cursorEntities, syncedAt); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	committed = true

	resp := Response{
		Success: true,
		ServerChanges: ServerChanges{
			MoodLogs:       toJSONList(plan.Records[domain.EntityMoodLog]),
			JournalEntries: toJSONList(plan.Records[domain.EntityJournalEntry]),
			CheckIns:       toJSONList(plan.Records[domain.EntityCheckIn]),
			Resources:      resourcesToJSONList(plan.Resources),
		},
		LastSyncAt: syncedAt.Format(time.RFC3339Nano),
		Conflicts:  []any{},
		Rejected:   rejected,
	}
	return resp, nil
}

func toJSONList(records []domain.Record) []map[string]any {
	out := make([]map[string]any, 0, len(records))
	for _, r := range records {
		out = append(out, r.ToJSON())
	}
	return out
}

func resourcesToJSONList(resources []domain.Resource) []map[string]any {
	out := make([]map[string]any, 0, len(resources))
	for _, r := range resources {
		out = append(out, r.ToJSON())
	}
	return out
}

// parseFallbackSince reads the request's lastSyncAt for entities the
// device has never checkpointed before; the zero time means "since the
// beginning of history".
func parseFallbackSince(lastSyncAt string) time.Time {
	if lastSyncAt == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, lastSyncAt)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
