package httpapi

import (
	"net/http"
	"strings"

	"github.com/cuemby/conclave/pkg/apierrors"
	"github.com/go-chi/chi/v5"
)

type putKnowledgeRequest struct {
	Key     string   `json:"key"`
	Value   any      `json:"value"`
	AgentID string   `json:"agent_id,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

func (s *Server) handlePutKnowledge(w http.ResponseWriter, r *http.Request) {
	var req putKnowledgeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Key == "" {
		writeError(w, apierrors.ErrInput)
		return
	}

	entry := s.orch.Knowledge.Put(req.Key, req.Value, req.AgentID, req.Tags)
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleGetKnowledge(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	entry, ok := s.orch.Knowledge.Get(key)
	if !ok {
		writeError(w, apierrors.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleQueryKnowledge(w http.ResponseWriter, r *http.Request) {
	var tags []string
	if raw := r.URL.Query().Get("tags"); raw != "" {
		tags = strings.Split(raw, ",")
	}
	entries := s.orch.Knowledge.Query(tags)
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}
