// Package knowledge implements the versioned key-value knowledge base:
// append-only history per key, tag queries over latest versions, and a
// subscriber set notified by outbound EVENT messages rather than in-line
// callbacks, preserving the single-threaded-per-agent invariant per the
// runtime's design notes. Locking follows the teacher's reader-writer
// discipline for shared in-memory state (pkg/state in the teacher repo).
package knowledge

import (
	"sync"

	"github.com/cuemby/conclave/pkg/apierrors"
	"github.com/cuemby/conclave/pkg/ids"
	"github.com/cuemby/conclave/pkg/log"
	"github.com/cuemby/conclave/pkg/wire"
	"github.com/rs/zerolog"
)

// Entry is one versioned knowledge-base record.
type Entry struct {
	Key         string   `json:"key"`
	Value       any      `json:"value"`
	Contributor string   `json:"contributor"`
	TimestampMs int64    `json:"timestamp_ms"`
	Version     int      `json:"version"`
	Tags        []string `json:"tags,omitempty"`
}

// Notifier delivers an update notification to a subscribed agent. The base
// models this as an outbound EVENT message through a Router rather than an
// in-line callback.
type Notifier interface {
	Route(msg *wire.Message) error
}

// Base is the versioned key-value knowledge base.
type Base struct {
	router Notifier
	logger zerolog.Logger

	mu          sync.RWMutex
	history     map[string][]Entry
	subscribers map[string]map[string]struct{}
}

// New creates an empty Base.
func New() *Base {
	return &Base{
		history:     make(map[string][]Entry),
		subscribers: make(map[string]map[string]struct{}),
		logger:      log.WithComponent("knowledge"),
	}
}

// SetRouter assigns the router used to notify subscribers of new entries.
func (b *Base) SetRouter(r Notifier) { b.router = r }

// Put appends a new Entry for key with version = previous version + 1 (or 1
// if none exists), then notifies every subscriber of key via an outbound
// EVENT message.
func (b *Base) Put(key string, value any, contributor string, tags []string) Entry {
	b.mu.Lock()
	prev := b.history[key]
	version := 1
	if len(prev) > 0 {
		version = prev[len(prev)-1].Version + 1
	}
	entry := Entry{
		Key:         key,
		Value:       value,
		Contributor: contributor,
		TimestampMs: ids.NowMillis(),
		Version:     version,
		Tags:        append([]string(nil), tags...),
	}
	b.history[key] = append(prev, entry)
	subs := make([]string, 0, len(b.subscribers[key]))
	for agentID := range b.subscribers[key] {
		subs = append(subs, agentID)
	}
	b.mu.Unlock()

	b.notify(key, entry, subs)
	return entry
}

func (b *Base) notify(key string, entry Entry, subscribers []string) {
	if b.router == nil {
		return
	}
	for _, agentID := range subscribers {
		msg, err := wire.New(wire.KindEvent, "knowledge", agentID, entry)
		if err != nil {
			continue
		}
		msg.Subject = key
		if routeErr := b.router.Route(msg); routeErr != nil {
			b.logger.Warn().Err(routeErr).Str("agent_id", agentID).Str("key", key).Msg("subscriber notification failed")
		}
	}
}

// Get returns the latest Entry for key.
func (b *Base) Get(key string) (Entry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	entries := b.history[key]
	if len(entries) == 0 {
		return Entry{}, false
	}
	return entries[len(entries)-1], true
}

// History returns every Entry for key, oldest first.
func (b *Base) History(key string) []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	entries := b.history[key]
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

// Query returns the latest Entry for every key whose latest entry contains
// all of tags. Order is unspecified beyond key iteration order.
func (b *Base) Query(tags []string) []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Entry
	for _, entries := range b.history {
		if len(entries) == 0 {
			continue
		}
		latest := entries[len(entries)-1]
		if hasAllTags(latest.Tags, tags) {
			out = append(out, latest)
		}
	}
	return out
}

func hasAllTags(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, t := range have {
		set[t] = struct{}{}
	}
	for _, t := range want {
		if _, ok := set[t]; !ok {
			return false
		}
	}
	return true
}

// Subscribe adds agentID to key's subscriber set. Idempotent.
func (b *Base) Subscribe(key, agentID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subscribers[key] == nil {
		b.subscribers[key] = make(map[string]struct{})
	}
	b.subscribers[key][agentID] = struct{}{}
}

// Unsubscribe removes agentID from key's subscriber set. Idempotent.
func (b *Base) Unsubscribe(key, agentID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers[key], agentID)
}

// Keys returns every key with at least one entry.
func (b *Base) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.history))
	for k := range b.history {
		out = append(out, k)
	}
	return out
}

// Count returns the total number of entries across all keys.
func (b *Base) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, entries := range b.history {
		n += len(entries)
	}
	return n
}

// Export returns every Entry across every key, grouped by key and ordered
// oldest-first within each key, suitable for lossless persistence.
func (b *Base) Export() []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []Entry
	for _, entries := range b.history {
		out = append(out, entries...)
	}
	return out
}

// Import replaces all current state with entries, which must already be
// ordered oldest-first per key.
func (b *Base) Import(entries []Entry) error {
	byKey := make(map[string][]Entry)
	for _, e := range entries {
		if len(byKey[e.Key]) > 0 {
			last := byKey[e.Key][len(byKey[e.Key])-1]
			if e.Version != last.Version+1 {
				return apierrors.ErrInput
			}
		} else if e.Version != 1 {
			return apierrors.ErrInput
		}
		byKey[e.Key] = append(byKey[e.Key], e)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.history = byKey
	return nil
}
