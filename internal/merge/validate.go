package merge

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/oceanic-wellbeing/sync-core/internal/domain"
	"github.com/oceanic-wellbeing/sync-core/internal/syncx"
)

// reviewFields are the check-in attributes spec §3 (invariant 2) restricts
// to psychologist writers.
var reviewFields = []string{"needsAttention", "reviewedBy", "reviewedAt", "reviewNotes"}

func hasAnyField(attrs map[string]any, fields []string) bool {
	for _, f := range fields {
		if _, ok := attrs[f]; ok {
			return true
		}
	}
	return false
}

var attrsValidate = newAttrsValidator()

// newAttrsValidator mirrors the sync orchestrator's own validator.New()
// setup (syncengine.newValidator), registering the entity-schema tags the
// merge engine needs on top of validator/v10's built-ins.
func newAttrsValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("moodenum", func(fl validator.FieldLevel) bool {
		return domain.ValidMood(fl.Field().String())
	})
	_ = v.RegisterValidation("looseTimestamp", func(fl validator.FieldLevel) bool {
		_, ok := syncx.ParseTime(fl.Field().String())
		return ok
	})
	return v
}

type moodLogAttrs struct {
	Mood string `json:"mood" validate:"required,moodenum"`
	Note string `json:"note" validate:"omitempty"`
}

type journalEntryAttrs struct {
	Content string `json:"content" validate:"required"`
	Mood    string `json:"mood" validate:"omitempty,moodenum"`
	Title   string `json:"title" validate:"omitempty,max=500"`
}

// checkInAttrs follows spec §3: scheduledFor is the only required field;
// mood, like the other review-adjacent fields, is optional.
type checkInAttrs struct {
	ScheduledFor   string `json:"scheduledFor" validate:"required,looseTimestamp"`
	Mood           string `json:"mood" validate:"omitempty,moodenum"`
	CompletedAt    string `json:"completedAt" validate:"omitempty,looseTimestamp"`
	NeedsAttention *bool  `json:"needsAttention" validate:"omitempty"`
	ReviewedBy     string `json:"reviewedBy" validate:"omitempty"`
	ReviewedAt     string `json:"reviewedAt" validate:"omitempty,looseTimestamp"`
	ReviewNotes    string `json:"reviewNotes" validate:"omitempty"`
}

// validateAttrs checks an entity's attrs against its closed schema via
// validator/v10 struct tags. It does not check role-based permission to
// write those fields — that is authorize's job — only that the values, if
// present, are well-formed.
func validateAttrs(entity domain.Entity, attrs map[string]any) error {
	switch entity {
	case domain.EntityMoodLog:
		return validateStruct(entity, attrs, &moodLogAttrs{})
	case domain.EntityJournalEntry:
		return validateStruct(entity, attrs, &journalEntryAttrs{})
	case domain.EntityCheckIn:
		return validateStruct(entity, attrs, &checkInAttrs{})
	default:
		return fmt.Errorf("%w: unknown entity %q", ErrValidation, entity)
	}
}

// validateStruct decodes attrs — already-parsed JSON — into dst's shape and
// runs it through validator/v10, the same struct-tag validation library the
// sync orchestrator uses for the request envelope.
func validateStruct(entity domain.Entity, attrs map[string]any, dst any) error {
	raw, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrValidation, entity, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrValidation, entity, err)
	}
	if err := attrsValidate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrValidation, entity, err)
	}
	return nil
}
