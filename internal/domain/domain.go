// Package domain holds the types shared by every layer of the sync core:
// the mutable-entity envelope, the read-only resource shape, sync cursors,
// and the trusted identity tuple the authentication collaborator attaches
// to a request.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is the caller's permission level within a tenant.
type Role string

const (
	RoleCrew         Role = "crew"
	RoleAdmin        Role = "admin"
	RolePsychologist Role = "psychologist"
)

// Entity names the mutable record kinds the sync core merges and replicates.
// Resource is read-only and is not an Entity for push purposes, but shares
// the Entity string space for cursor bookkeeping (see synccursor.Advance).
type Entity string

const (
	EntityMoodLog      Entity = "mood_log"
	EntityJournalEntry Entity = "journal_entry"
	EntityCheckIn      Entity = "check_in"
	EntityResource     Entity = "resource"
)

// MutableEntities lists the entity kinds a client may push changes for, in
// the order the orchestrator applies them within a batch.
var MutableEntities = []Entity{EntityMoodLog, EntityJournalEntry, EntityCheckIn}

// Mood is the closed enumeration shared by mood logs, journal entries, and
// check-ins.
type Mood string

const (
	MoodGreat    Mood = "great"
	MoodGood     Mood = "good"
	MoodOkay     Mood = "okay"
	MoodBad      Mood = "bad"
	MoodTerrible Mood = "terrible"
)

// ValidMood reports whether m is one of the closed enum values. An empty
// string is not a valid mood — callers check for presence separately.
func ValidMood(m string) bool {
	switch Mood(m) {
	case MoodGreat, MoodGood, MoodOkay, MoodBad, MoodTerrible:
		return true
	default:
		return false
	}
}

// Principal is the trusted {tenant, user, role} tuple the authentication
// collaborator attaches to the request context. The sync core never derives
// this itself; it only consumes it.
type Principal struct {
	TenantID uuid.UUID
	UserID   uuid.UUID
	Role     Role
}

// CanReadAllUsers reports whether the principal's role permits cross-user
// reads of check-ins (invariant 2, spec §3). All other user-owned entities
// remain strictly user-scoped regardless of role.
func (p Principal) CanReadAllUsers() bool {
	return p.Role == RoleAdmin || p.Role == RolePsychologist
}

// Record is the generic shape of a mutable entity row. Entity-specific
// attributes (mood, intensity, scheduled_for, ...) live in Attrs as a JSON
// object so the Store, Merge Engine, and Pull Planner can stay entity-agnostic
// about everything except the envelope columns that drive merge ordering and
// tenant isolation.
type Record struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	UserID          uuid.UUID
	ClientCreatedAt time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	SyncedAt        time.Time
	IsDeleted       bool
	Attrs           map[string]any
}

// ToJSON renders a Record back into the wire shape a client expects in
// serverChanges: the envelope fields plus the flattened attrs.
func (r Record) ToJSON() map[string]any {
	out := make(map[string]any, len(r.Attrs)+8)
	for k, v := range r.Attrs {
		out[k] = v
	}
	out["id"] = r.ID.String()
	out["tenantId"] = r.TenantID.String()
	out["userId"] = r.UserID.String()
	out["clientCreatedAt"] = r.ClientCreatedAt.UTC().Format(time.RFC3339Nano)
	out["createdAt"] = r.CreatedAt.UTC().Format(time.RFC3339Nano)
	out["updatedAt"] = r.UpdatedAt.UTC().Format(time.RFC3339Nano)
	out["syncedAt"] = r.SyncedAt.UTC().Format(time.RFC3339Nano)
	out["isDeleted"] = r.IsDeleted
	return out
}

// Resource is the read-only, tenant-or-global content-library row consumed
// only by the pull planner.
type Resource struct {
	ID               uuid.UUID
	TenantID         *uuid.UUID // nil means global, visible to every tenant
	Title            string
	Type             string
	Category         string
	Tags             []string
	IsPublished      bool
	OfflineAvailable bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ToJSON renders a Resource into the wire shape for serverChanges.resources.
func (r Resource) ToJSON() map[string]any {
	out := map[string]any{
		"id":               r.ID.String(),
		"title":            r.Title,
		"type":             r.Type,
		"category":         r.Category,
		"tags":             r.Tags,
		"isPublished":      r.IsPublished,
		"offlineAvailable": r.OfflineAvailable,
		"createdAt":        r.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updatedAt":        r.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if r.TenantID != nil {
		out["tenantId"] = r.TenantID.String()
	} else {
		out["tenantId"] = nil
	}
	return out
}

// ValidResourceType reports whether t is one of the closed resource types.
func ValidResourceType(t string) bool {
	switch t {
	case "article", "video", "exercise", "audio":
		return true
	default:
		return false
	}
}

// CursorRow is one {tenant, user, device, entity} replication checkpoint
// (spec §3, Sync cursor).
type CursorRow struct {
	TenantID     uuid.UUID
	UserID       uuid.UUID
	DeviceID     uuid.UUID
	Entity       Entity
	LastSyncedAt time.Time
	LastRecordID *uuid.UUID
	SyncCursor   *string
}
