package syncengine

import "errors"

// ErrEnvelopeInvalid means the request body failed envelope validation
// (missing/malformed deviceId, malformed lastSyncAt, unknown entity key)
// before any Store call was made. The HTTP layer maps this to 400.
var ErrEnvelopeInvalid = errors.New("syncengine: invalid sync envelope")

// ErrBatchTooLarge means a single entity's change list exceeded the
// configured per-batch cap. The HTTP layer maps this to 413.
var ErrBatchTooLarge = errors.New("syncengine: batch too large")

// ErrStoreUnavailable wraps a store-layer failure that aborted the whole
// sync call (as opposed to a per-change rejection, which never aborts).
// The HTTP layer maps this to a generic 500.
var ErrStoreUnavailable = errors.New("syncengine: store unavailable")
