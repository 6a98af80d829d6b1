package httpapi

import (
	"net/http"
	"time"

	"github.com/oceanic-wellbeing/sync-core/internal/domain"
)

// ServerInfo describes the sync core's capabilities for capability
// discovery, in the idiom of the reference server's /v1/sync/info.
type ServerInfo struct {
	APIVersion       string                      `json:"apiVersion"`
	ServerTime       string                      `json:"serverTime"`
	Entities         map[string]EntityCapability `json:"entities"`
	RecommendedBatch int                         `json:"recommendedBatch"`
}

// EntityCapability describes capabilities for a specific entity type.
type EntityCapability struct {
	MaxLimit int  `json:"maxLimit"`
	Enabled  bool `json:"enabled"`
}

// Info handles GET /api/sync/info: unauthenticated capability discovery so
// a client can learn the supported entities and recommended batch size
// before it ever authenticates.
func (s *Server) Info(w http.ResponseWriter, r *http.Request) {
	entities := make(map[string]EntityCapability, len(domain.MutableEntities)+1)
	for _, e := range domain.MutableEntities {
		entities[string(e)] = EntityCapability{MaxLimit: s.Orchestrator.Config.MaxChangesPerEntity, Enabled: true}
	}
	entities[string(domain.EntityResource)] = EntityCapability{MaxLimit: s.Orchestrator.Config.PullPageLimit, Enabled: true}

	info := ServerInfo{
		APIVersion:       "1.0",
		ServerTime:       time.Now().UTC().Format(time.RFC3339Nano),
		Entities:         entities,
		RecommendedBatch: s.Orchestrator.Config.MaxChangesPerEntity,
	}
	writeJSON(w, http.StatusOK, info)
}
