// Package ids provides monotonic millisecond timestamps and collision-resistant
// identifiers for agents, tasks, votes, and messages within a single process run.
package ids

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// lastMillis holds the largest value NowMillis has returned, so NowMillis
// never goes backwards. It does not make values strictly increasing: calls
// within the same millisecond return the same value (the knowledge base's
// per-key version counter uses its own sequence instead).
var lastMillis atomic.Int64

// NowMillis returns the current time as milliseconds since the Unix epoch.
// It is monotonic with respect to previous calls from this process: if the
// wall clock is observed to go backwards (NTP step), the previous value is
// returned instead of a smaller one.
func NowMillis() int64 {
	now := time.Now().UnixMilli()
	for {
		prev := lastMillis.Load()
		if now <= prev {
			return prev
		}
		if lastMillis.CompareAndSwap(prev, now) {
			return now
		}
	}
}

// New returns a new collision-resistant identifier, prefixed so that ids
// are visually distinguishable by kind in logs and wire payloads.
func New(prefix string) string {
	return prefix + "_" + uuid.New().String()
}

// NewAgentID returns a new agent identifier.
func NewAgentID() string { return New("agent") }

// NewMessageID returns a new message identifier.
func NewMessageID() string { return New("msg") }

// NewTaskID returns a new task identifier.
func NewTaskID() string { return New("task") }

// NewVoteID returns a new vote identifier.
func NewVoteID() string { return New("vote") }

// NewWorkflowID returns a new workflow (task batch) identifier.
func NewWorkflowID() string { return New("wf") }
