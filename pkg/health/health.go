// Package health tracks per-agent liveness: the last heartbeat timestamp and
// a derived healthy flag, the way pkg/health tracked container check results
// in the teacher repo, simplified from a pluggable checker down to the
// heartbeat-only model this runtime needs.
package health

import "sync"

// DefaultTimeoutMs is the default staleness window after which an agent with
// no heartbeat is considered unhealthy.
const DefaultTimeoutMs int64 = 5000

// Record tracks one agent's heartbeat state. Reads and writes are
// serialised by an internal mutex since the supervisor's health monitor and
// the agent's own message loop touch it concurrently.
type Record struct {
	mu              sync.Mutex
	lastHeartbeatMs int64
	timeoutMs       int64
}

// NewRecord creates a Record with the given timeout and an initial
// heartbeat at nowMs, so a freshly created agent is healthy until it stops
// reporting in.
func NewRecord(nowMs int64, timeoutMs int64) *Record {
	if timeoutMs <= 0 {
		timeoutMs = DefaultTimeoutMs
	}
	return &Record{lastHeartbeatMs: nowMs, timeoutMs: timeoutMs}
}

// Beat records a heartbeat at nowMs.
func (r *Record) Beat(nowMs int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastHeartbeatMs = nowMs
}

// LastHeartbeatMs returns the timestamp of the last recorded heartbeat.
func (r *Record) LastHeartbeatMs() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastHeartbeatMs
}

// Healthy reports whether the agent has heartbeat within its timeout as of
// nowMs: now - last_heartbeat_ms < timeout_ms.
func (r *Record) Healthy(nowMs int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return nowMs-r.lastHeartbeatMs < r.timeoutMs
}

// TimeoutMs returns the configured timeout.
func (r *Record) TimeoutMs() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timeoutMs
}

// SetTimeoutMs updates the timeout, e.g. from per-agent config.
func (r *Record) SetTimeoutMs(timeoutMs int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if timeoutMs > 0 {
		r.timeoutMs = timeoutMs
	}
}
