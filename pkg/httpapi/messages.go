package httpapi

import (
	"net/http"
	"strconv"

	"github.com/cuemby/conclave/pkg/apierrors"
	"github.com/cuemby/conclave/pkg/wire"
	"github.com/go-chi/chi/v5"
)

type sendMessageRequest struct {
	From         string `json:"from"`
	To           string `json:"to"`
	Kind         string `json:"kind"`
	Payload      any    `json:"payload,omitempty"`
	Subject      string `json:"subject,omitempty"`
	Conversation string `json:"conversation,omitempty"`
	Priority     int    `json:"priority,omitempty"`
}

func (req sendMessageRequest) build() (*wire.Message, error) {
	kind, ok := wire.ParseKind(req.Kind)
	if !ok {
		return nil, apierrors.ErrInput
	}
	msg, err := wire.New(kind, req.From, req.To, req.Payload)
	if err != nil {
		return nil, apierrors.ErrInput
	}
	msg.Subject = req.Subject
	msg.Conversation = req.Conversation
	msg.Priority = req.Priority
	return msg, nil
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	msg, err := req.build()
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.orch.SendMessage(msg); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message_id": msg.ID, "status": "sent"})
}

func (s *Server) handleBroadcastMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	req.To = ""
	msg, err := req.build()
	if err != nil {
		writeError(w, err)
		return
	}
	s.orch.BroadcastMessage(msg)
	writeJSON(w, http.StatusOK, map[string]string{"message_id": msg.ID, "status": "broadcast"})
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "agentID")
	maxCount := 0
	if raw := r.URL.Query().Get("max_count"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			maxCount = n
		}
	}
	msgs := s.orch.GetMessages(id, maxCount)
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs, "count": len(msgs)})
}
