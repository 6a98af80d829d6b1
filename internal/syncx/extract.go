package syncx

import (
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Extracted holds the envelope fields common to every mutable entity
// (mood_log, journal_entry, check_in), parsed out of a client-supplied
// change payload.
type Extracted struct {
	ID                 uuid.UUID
	ClientCreatedAt    time.Time
	HasClientCreatedAt bool
	UpdatedAt          time.Time
	HasUpdatedAt       bool
	IsDeleted          bool
}

// GetString safely extracts a string value from a decoded JSON object.
func GetString(m map[string]any, k string) (string, bool) {
	if v, ok := m[k]; ok {
		if s, ok2 := v.(string); ok2 {
			return s, true
		}
	}
	return "", false
}

// GetBool safely extracts a bool value from a decoded JSON object.
func GetBool(m map[string]any, k string) (bool, bool) {
	if v, ok := m[k]; ok {
		if b, ok2 := v.(bool); ok2 {
			return b, true
		}
	}
	return false, false
}

// ParseUUID parses a UUID string, reporting failure instead of panicking.
func ParseUUID(s string) (uuid.UUID, bool) {
	if s == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s)
	return id, err == nil
}

// ParseTime accepts RFC3339 (with or without fractional seconds) and falls
// back to a bare Unix-millisecond integer, the two shapes mobile clients are
// observed to send.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), true
	}
	return time.Time{}, false
}

// ExtractEnvelope parses the id/clientCreatedAt/updatedAt/isDeleted envelope
// fields common to every change (spec §3, §6). It does not validate
// entity-specific attributes — that is the merge engine's job once it knows
// which entity schema applies.
func ExtractEnvelope(item map[string]any) (Extracted, error) {
	var out Extracted

	idStr, _ := GetString(item, "id")
	id, ok := ParseUUID(idStr)
	if !ok {
		return out, errors.New("missing or invalid id")
	}
	out.ID = id

	if s, ok := GetString(item, "clientCreatedAt"); ok {
		if t, ok2 := ParseTime(s); ok2 {
			out.ClientCreatedAt = t
			out.HasClientCreatedAt = true
		}
	}

	if s, ok := GetString(item, "updatedAt"); ok {
		if t, ok2 := ParseTime(s); ok2 {
			out.UpdatedAt = t
			out.HasUpdatedAt = true
		}
	}

	if b, ok := GetBool(item, "isDeleted"); ok {
		out.IsDeleted = b
	}

	return out, nil
}
