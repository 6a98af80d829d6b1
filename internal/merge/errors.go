package merge

import "errors"

// ErrValidation means the change's attrs failed entity-specific schema
// validation (missing required field, value outside a closed enum). The
// orchestrator records this as a per-change rejection without aborting the
// surrounding transaction (spec §7).
var ErrValidation = errors.New("merge: validation failed")

// ErrForbidden means the caller's role does not permit the write it
// attempted — most commonly a crew member touching another user's row, or
// a non-psychologist attempting to set check-in review fields.
var ErrForbidden = errors.New("merge: forbidden")
