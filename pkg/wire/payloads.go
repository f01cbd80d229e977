package wire

import "encoding/json"

// LockRequestPayload is the payload of a LOCK_REQUEST message.
type LockRequestPayload struct {
	SectionIndex int `json:"section_index"`
}

// LockReleasePayload is the payload of a LOCK_RELEASE message.
type LockReleasePayload struct {
	SectionIndex int `json:"section_index"`
}

// LockAcquiredPayload is the payload of a LOCK_ACQUIRED reply.
type LockAcquiredPayload struct {
	SectionIndex int `json:"section_index"`
}

// LockDeniedPayload is the payload of a LOCK_DENIED reply.
type LockDeniedPayload struct {
	SectionIndex int    `json:"section_index"`
	Reason       string `json:"reason,omitempty"`
}

// DocEditPayload is the payload of a DOC_EDIT message.
type DocEditPayload struct {
	SectionIndex int    `json:"section_index"`
	Bytes        []byte `json:"bytes"`
}

// DocUpdatePayload is the payload of a DOC_UPDATE broadcast.
type DocUpdatePayload struct {
	SectionIndex int `json:"section_index"`
}

// ErrorPayload is the payload of an ERROR message sent to a supervisor when
// a handler fails.
type ErrorPayload struct {
	AgentID string `json:"agent_id"`
	Reason  string `json:"reason"`
}

// TaskAssignmentPayload is the payload of a TASK message dispatching work to
// an agent.
type TaskAssignmentPayload struct {
	TaskID      string          `json:"task_id"`
	Type        string          `json:"type"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// TaskResultPayload is the payload of a TASK_RESULT message reporting the
// outcome of an assignment.
type TaskResultPayload struct {
	TaskID     string `json:"task_id"`
	AgentID    string `json:"agent_id"`
	Success    bool   `json:"success"`
	Output     string `json:"output,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// ConsensusPayload is the payload of a CONSENSUS message notifying agents of
// a vote's creation or finalisation.
type ConsensusPayload struct {
	VoteID   string `json:"vote_id"`
	Question string `json:"question,omitempty"`
	Result   string `json:"result,omitempty"`
}
