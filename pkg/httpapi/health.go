package httpapi

import (
	"net/http"

	"github.com/cuemby/conclave/pkg/ids"
)

type healthzResponse struct {
	Status        string `json:"status"`
	UptimeMs      int64  `json:"uptime_ms"`
	AgentsTotal   int    `json:"agents_total"`
	TasksTotal    int    `json:"tasks_total"`
	KnowledgeKeys int    `json:"knowledge_keys"`
}

// handleHealthz reports liveness and a coarse readiness summary, mirroring
// the teacher's combined health/ready payload but collapsed into a single
// endpoint per the facade's surface.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	stats := s.orch.GetStats()
	writeJSON(w, http.StatusOK, healthzResponse{
		Status:        "healthy",
		UptimeMs:      ids.NowMillis() - s.startedMs,
		AgentsTotal:   stats.AgentsTotal,
		TasksTotal:    stats.TasksTotal,
		KnowledgeKeys: len(s.orch.Knowledge.Keys()),
	})
}

// handleStats exposes the orchestrator's aggregated counts at
// GET /v1/agents/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.GetStats())
}
