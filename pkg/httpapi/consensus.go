package httpapi

import (
	"net/http"

	"github.com/cuemby/conclave/pkg/apierrors"
	"github.com/cuemby/conclave/pkg/consensus"
	"github.com/go-chi/chi/v5"
)

type createVoteRequest struct {
	Question   string         `json:"question"`
	Options    []string       `json:"options"`
	Type       consensus.Type `json:"type,omitempty"`
	DeadlineMs int64          `json:"deadline,omitempty"`
}

func (s *Server) handleCreateVote(w http.ResponseWriter, r *http.Request) {
	var req createVoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Question == "" || len(req.Options) == 0 {
		writeError(w, apierrors.ErrInput)
		return
	}
	if req.Type == "" {
		req.Type = consensus.SimpleMajority
	}

	voteID := s.orch.Consensus.CreateVote(req.Question, req.Options, req.Type, req.DeadlineMs)
	writeJSON(w, http.StatusOK, map[string]string{"vote_id": voteID})
}

type castVoteRequest struct {
	AgentID string  `json:"agent_id"`
	Option  string  `json:"option"`
	Weight  float64 `json:"weight,omitempty"`
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	voteID := chi.URLParam(r, "voteID")
	var req castVoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if !s.orch.Consensus.CastVote(voteID, req.AgentID, req.Option, req.Weight) {
		writeError(w, apierrors.ErrPolicy)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"vote_id": voteID, "status": "cast"})
}

func (s *Server) handleGetVote(w http.ResponseWriter, r *http.Request) {
	voteID := chi.URLParam(r, "voteID")
	v, ok := s.orch.Consensus.GetVote(voteID)
	if !ok {
		writeError(w, apierrors.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
