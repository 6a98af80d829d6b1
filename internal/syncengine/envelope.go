package syncengine

import "github.com/oceanic-wellbeing/sync-core/internal/domain"

// Request is the wire shape of POST /api/sync's body (spec §6). Changes is
// keyed by the plural camelCase entity name the mobile clients use;
// unrecognized keys are rejected as an invalid envelope rather than
// silently ignored, so a client typo surfaces immediately instead of
// silently dropping data.
type Request struct {
	DeviceID   string                      `json:"deviceId" validate:"required,uuid"`
	LastSyncAt string                      `json:"lastSyncAt" validate:"omitempty,rfc3339"`
	Changes    map[string][]map[string]any `json:"changes"`
}

// entityJSONKeys maps the wire key for each mutable entity's change list
// and server-changes bucket.
var entityJSONKeys = map[domain.Entity]string{
	domain.EntityMoodLog:      "moodLogs",
	domain.EntityJournalEntry: "journalEntries",
	domain.EntityCheckIn:      "checkIns",
}

func entityForJSONKey(key string) (domain.Entity, bool) {
	for entity, k := range entityJSONKeys {
		if k == key {
			return entity, true
		}
	}
	return "", false
}

// Rejection reports one pushed change that could not be applied, without
// aborting the rest of the batch (spec §7).
type Rejection struct {
	Entity string `json:"entity"`
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason"`
}

// ServerChanges is the server-originated delta half of the response.
type ServerChanges struct {
	MoodLogs       []map[string]any `json:"moodLogs"`
	JournalEntries []map[string]any `json:"journalEntries"`
	CheckIns       []map[string]any `json:"checkIns"`
	Resources      []map[string]any `json:"resources"`
}

// Response is the wire shape of POST /api/sync's reply (spec §6).
// Conflicts is always present and always empty: this core does not surface
// concurrent edits as user-visible conflicts (spec §1, Non-goals).
type Response struct {
	Success       bool          `json:"success"`
	ServerChanges ServerChanges `json:"serverChanges"`
	LastSyncAt    string        `json:"lastSyncAt"`
	Conflicts     []any         `json:"conflicts"`
	Rejected      []Rejection   `json:"rejected,omitempty"`
	Error         string        `json:"error,omitempty"`
}
