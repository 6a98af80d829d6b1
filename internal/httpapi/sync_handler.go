package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/oceanic-wellbeing/sync-core/internal/auth"
	"github.com/oceanic-wellbeing/sync-core/internal/metrics"
	"github.com/oceanic-wellbeing/sync-core/internal/syncengine"
	"github.com/rs/zerolog/log"
)

// Sync handles POST /api/sync: decode the envelope, run the orchestrator,
// and map its result onto the wire response (spec §6, §7).
func (s *Server) Sync(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	body := http.MaxBytesReader(w, r.Body, s.maxBodyBytes())
	var req syncengine.Request
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}

	start := time.Now()
	if s.Metrics != nil {
		s.Metrics.TxOpened()
		defer s.Metrics.TxClosed()
	}

	resp, err := s.Orchestrator.Run(r.Context(), principal, req)

	result := "success"
	if err != nil {
		result = "error"
	}
	if s.Metrics != nil {
		s.Metrics.ObserveCallDuration(result, time.Since(start))
	}

	if err != nil {
		status, message := classifySyncError(err)
		log.Warn().Err(err).Str("correlation_id", GetCorrelationID(r.Context())).Msg("sync call failed")
		writeError(w, r, status, message)
		return
	}

	if s.Metrics != nil {
		s.Metrics.RecordPull("mood_log", len(resp.ServerChanges.MoodLogs))
		s.Metrics.RecordPull("journal_entry", len(resp.ServerChanges.JournalEntries))
		s.Metrics.RecordPull("check_in", len(resp.ServerChanges.CheckIns))
		s.Metrics.RecordPull("resource", len(resp.ServerChanges.Resources))
		for _, rej := range resp.Rejected {
			s.Metrics.RecordPush(rej.Entity, metrics.OutcomeRejected)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) maxBodyBytes() int64 {
	if s.MaxBodyBytes > 0 {
		return s.MaxBodyBytes
	}
	return 10 << 20
}

// classifySyncError maps an orchestrator error to the external response
// shape of spec §7, never leaking internal detail (constraint names, SQL
// text) to the client.
func classifySyncError(err error) (int, string) {
	switch {
	case errors.Is(err, syncengine.ErrEnvelopeInvalid):
		return http.StatusBadRequest, "invalid sync request"
	case errors.Is(err, syncengine.ErrBatchTooLarge):
		return http.StatusRequestEntityTooLarge, "batch too large"
	default:
		return http.StatusInternalServerError, "sync failed"
	}
}
