package httpapi

import (
	"net/http"

	"github.com/cuemby/conclave/pkg/agent"
	"github.com/cuemby/conclave/pkg/apierrors"
	"github.com/go-chi/chi/v5"
)

type spawnAgentRequest struct {
	Role         string   `json:"role"`
	SlotID       int      `json:"slot_id"`
	Capabilities []string `json:"capabilities,omitempty"`
	Config       any      `json:"config,omitempty"`
}

type spawnAgentResponse struct {
	AgentID string `json:"agent_id"`
	Role    string `json:"role"`
	SlotID  int    `json:"slot_id"`
	Status  string `json:"status"`
}

type agentView struct {
	AgentID      string   `json:"agent_id"`
	Role         string   `json:"role"`
	Slot         int      `json:"slot"`
	Capabilities []string `json:"capabilities"`
	State        string   `json:"state"`
	CurrentTask  string   `json:"current_task,omitempty"`
	CreatedAt    int64    `json:"created_at"`
	LastActivity int64    `json:"last_activity"`
}

func viewOf(a *agent.Agent) agentView {
	return agentView{
		AgentID:      a.ID(),
		Role:         a.Role(),
		Slot:         a.Slot(),
		Capabilities: a.Capabilities(),
		State:        string(a.State()),
		CurrentTask:  a.CurrentTask(),
		CreatedAt:    a.CreatedAt(),
		LastActivity: a.LastActivity(),
	}
}

func (s *Server) handleSpawnAgent(w http.ResponseWriter, r *http.Request) {
	var req spawnAgentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Role == "" {
		writeError(w, apierrors.ErrInput)
		return
	}

	a, err := s.orch.SpawnAgent(r.Context(), req.Role, req.SlotID, req.Capabilities, req.Config)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, spawnAgentResponse{
		AgentID: a.ID(),
		Role:    a.Role(),
		SlotID:  a.Slot(),
		Status:  "spawned",
	})
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	all := s.orch.Registry.GetAllAgents()
	views := make([]agentView, 0, len(all))
	for _, a := range all {
		views = append(views, viewOf(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": views, "count": len(views)})
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "agentID")
	a, ok := s.orch.Registry.GetAgent(id)
	if !ok {
		writeError(w, apierrors.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(a))
}

func (s *Server) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "agentID")
	if err := s.orch.TerminateAgent(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"agent_id": id,
		"status":   "terminated",
	})
}
