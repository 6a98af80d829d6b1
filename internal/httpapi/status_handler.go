package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/oceanic-wellbeing/sync-core/internal/auth"
	"github.com/oceanic-wellbeing/sync-core/internal/synccursor"
)

type cursorStatus struct {
	Entity       string `json:"entity"`
	LastSyncedAt string `json:"lastSyncedAt"`
}

type statusResponse struct {
	DeviceID string         `json:"deviceId"`
	Cursors  []cursorStatus `json:"cursors"`
}

// Status handles GET /api/sync/status?deviceId=<uuid>: the caller's current
// replication checkpoints, so a client can tell whether it needs to sync
// without actually performing one (spec §6).
func (s *Server) Status(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	deviceID, err := uuid.Parse(r.URL.Query().Get("deviceId"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "deviceId query parameter must be a uuid")
		return
	}

	tx, err := s.Store.Begin(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "status unavailable")
		return
	}
	defer tx.Rollback(r.Context())

	checkpoints, err := synccursor.Load(r.Context(), tx, principal.TenantID, principal.UserID, deviceID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "status unavailable")
		return
	}

	cursors := make([]cursorStatus, 0, len(checkpoints))
	for entity, ts := range checkpoints {
		cursors = append(cursors, cursorStatus{Entity: string(entity), LastSyncedAt: ts.UTC().Format(time.RFC3339Nano)})
	}

	writeJSON(w, http.StatusOK, statusResponse{DeviceID: deviceID.String(), Cursors: cursors})
}
