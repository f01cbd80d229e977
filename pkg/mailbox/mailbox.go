// Package mailbox implements a bounded, drop-oldest FIFO queue of inbound
// messages with a blocking receive, the way an agent's inbox is described in
// the coordination runtime: capacity Q (default 10000), FIFO per recipient,
// cross-recipient order unspecified.
package mailbox

import (
	"sync"
	"time"
)

// DefaultCapacity is the default mailbox capacity.
const DefaultCapacity = 10000

// Message is the minimal shape the mailbox needs to know about: an ordering
// timestamp for retention sweeps. The concrete wire type lives in pkg/wire.
type Message interface {
	TimestampMs() int64
}

// Mailbox is a bounded FIFO queue of Message. Overflow drops the oldest
// queued message. Receive blocks with an optional timeout; Send never
// blocks.
type Mailbox struct {
	mu       sync.Mutex
	queue    []Message
	capacity int
	signal   chan struct{}
	dropped  int64
}

// New creates a Mailbox with the given capacity. A capacity <= 0 uses
// DefaultCapacity.
func New(capacity int) *Mailbox {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Mailbox{
		capacity: capacity,
		signal:   make(chan struct{}, 1),
	}
}

// Send enqueues msg. If the mailbox is at capacity, the oldest queued
// message is dropped to make room. Send never blocks.
func (m *Mailbox) Send(msg Message) {
	m.mu.Lock()
	if len(m.queue) >= m.capacity {
		m.queue = m.queue[1:]
		m.dropped++
	}
	m.queue = append(m.queue, msg)
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
}

// TryReceive returns the oldest queued message without blocking. ok is
// false if the mailbox is empty.
func (m *Mailbox) TryReceive() (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return nil, false
	}
	msg := m.queue[0]
	m.queue = m.queue[1:]
	return msg, true
}

// Receive blocks until a message is available or timeout elapses. A
// timeout <= 0 waits indefinitely (the caller is expected to still observe
// an external stop signal via its own select).
func (m *Mailbox) Receive(timeout time.Duration) (Message, bool) {
	if msg, ok := m.TryReceive(); ok {
		return msg, true
	}

	var deadline time.Time
	hasDeadline := timeout > 0
	if hasDeadline {
		deadline = time.Now().Add(timeout)
	}

	for {
		var wait <-chan time.Time
		if hasDeadline {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return nil, false
			}
			wait = time.After(remaining)
		}

		select {
		case <-m.signal:
			if msg, ok := m.TryReceive(); ok {
				return msg, true
			}
			// spurious wake (another goroutine drained it first); loop.
		case <-wait:
			return nil, false
		}
	}
}

// Len returns the number of currently queued messages.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Dropped returns the number of messages discarded due to overflow.
func (m *Mailbox) Dropped() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}

// DiscardOlderThan removes queued messages whose TimestampMs is strictly
// less than cutoffMs, as used by the housekeeping loop's retention sweep. It
// returns the number of messages discarded.
func (m *Mailbox) DiscardOlderThan(cutoffMs int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.queue[:0]
	discarded := 0
	for _, msg := range m.queue {
		if msg.TimestampMs() < cutoffMs {
			discarded++
			continue
		}
		kept = append(kept, msg)
	}
	m.queue = kept
	return discarded
}
