// Package document implements the section-locked shared document: the
// coordinator is itself hosted by an *agent.Agent (per the runtime's design,
// document mutation is serialised by a single message loop rather than an
// external lock), with an additional internal mutex guarding lookup paths for
// read/write symmetry, following the teacher's pattern of pairing a
// message-driven mutator with a directly-queryable snapshot.
package document

import (
	"context"
	"fmt"
	"sync"

	"github.com/cuemby/conclave/pkg/agent"
	"github.com/cuemby/conclave/pkg/log"
	"github.com/cuemby/conclave/pkg/wire"
	"github.com/rs/zerolog"
)

// SectionWidth is the fixed section size in bytes. The source drafts use a
// fixed 1000-byte width regardless of document length; edits are truncated
// to the section's actual width, which may be smaller for the final section.
const SectionWidth = 1000

// Section is one contiguous, non-overlapping range of the document.
type Section struct {
	Start    int
	End      int
	LockedBy string
}

func (s Section) width() int { return s.End - s.Start }

// Router delivers point-to-point messages and broadcasts with sender
// exclusion; *registry.Registry satisfies this structurally.
type Router interface {
	Route(msg *wire.Message) error
	Broadcast(msg *wire.Message, exceptID string)
}

// Coordinator hosts a shared document partitioned into fixed-width sections,
// mediates exclusive per-section locks, and broadcasts DOC_UPDATE on every
// accepted edit.
type Coordinator struct {
	self   *agent.Agent
	router Router
	logger zerolog.Logger

	mu         sync.RWMutex
	doc        []byte
	sections   []Section
	agentLocks map[string]map[int]struct{}
}

// New creates a Coordinator hosted by an agent with the given id, over the
// given initial document bytes.
func New(id string, initialDoc []byte) *Coordinator {
	c := &Coordinator{
		doc:        append([]byte(nil), initialDoc...),
		agentLocks: make(map[string]map[int]struct{}),
		logger:     log.WithComponent("document").With().Str("coordinator_id", id).Logger(),
	}
	c.sections = partition(len(c.doc))

	c.self = agent.New(agent.Config{ID: id, Role: "document-coordinator", Slot: -2})
	c.self.RegisterHandler(wire.KindLockRequest, c.handleLockRequest)
	c.self.RegisterHandler(wire.KindLockRelease, c.handleLockRelease)
	c.self.RegisterHandler(wire.KindDocEdit, c.handleDocEdit)
	return c
}

func partition(docLen int) []Section {
	if docLen == 0 {
		return []Section{{Start: 0, End: 0}}
	}
	n := (docLen + SectionWidth - 1) / SectionWidth
	out := make([]Section, n)
	for i := 0; i < n; i++ {
		start := i * SectionWidth
		end := start + SectionWidth
		if end > docLen {
			end = docLen
		}
		out[i] = Section{Start: start, End: end}
	}
	return out
}

// Agent returns the coordinator's hosting agent, for registration in a
// Registry.
func (c *Coordinator) Agent() *agent.Agent { return c.self }

// SetRouter assigns the router used for direct replies and broadcasts.
func (c *Coordinator) SetRouter(r Router) {
	c.router = r
	c.self.SetRouter(r)
}

// SectionCount returns the number of sections the document is partitioned
// into.
func (c *Coordinator) SectionCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sections)
}

// Sections returns a snapshot of the current section table.
func (c *Coordinator) Sections() []Section {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Section, len(c.sections))
	copy(out, c.sections)
	return out
}

// Bytes returns a copy of the current document contents.
func (c *Coordinator) Bytes() []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]byte(nil), c.doc...)
}

func (c *Coordinator) handleLockRequest(_ context.Context, msg *wire.Message) error {
	payload, err := wire.DecodePayload[wire.LockRequestPayload](msg)
	if err != nil {
		return c.deny(msg.From, 0, "malformed lock request")
	}

	c.mu.Lock()
	idx := payload.SectionIndex
	if idx < 0 || idx >= len(c.sections) {
		c.mu.Unlock()
		return c.deny(msg.From, idx, "section index out of range")
	}
	if c.sections[idx].LockedBy != "" {
		c.mu.Unlock()
		return c.deny(msg.From, idx, "section already locked")
	}

	c.sections[idx].LockedBy = msg.From
	if c.agentLocks[msg.From] == nil {
		c.agentLocks[msg.From] = make(map[int]struct{})
	}
	c.agentLocks[msg.From][idx] = struct{}{}
	c.mu.Unlock()

	return c.reply(msg.From, wire.KindLockAcquired, wire.LockAcquiredPayload{SectionIndex: idx})
}

func (c *Coordinator) deny(to string, idx int, reason string) error {
	return c.reply(to, wire.KindLockDenied, wire.LockDeniedPayload{SectionIndex: idx, Reason: reason})
}

func (c *Coordinator) handleLockRelease(_ context.Context, msg *wire.Message) error {
	payload, err := wire.DecodePayload[wire.LockReleasePayload](msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	idx := payload.SectionIndex
	if idx < 0 || idx >= len(c.sections) {
		return nil
	}
	if c.sections[idx].LockedBy != msg.From {
		return nil
	}
	c.sections[idx].LockedBy = ""
	delete(c.agentLocks[msg.From], idx)
	return nil
}

func (c *Coordinator) handleDocEdit(_ context.Context, msg *wire.Message) error {
	payload, err := wire.DecodePayload[wire.DocEditPayload](msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	idx := payload.SectionIndex
	if idx < 0 || idx >= len(c.sections) {
		c.mu.Unlock()
		return fmt.Errorf("document: section %d out of range", idx)
	}
	sec := c.sections[idx]
	if sec.LockedBy != msg.From {
		c.mu.Unlock()
		return fmt.Errorf("document: %s does not hold lock on section %d", msg.From, idx)
	}

	n := len(payload.Bytes)
	if n > sec.width() {
		n = sec.width()
	}
	copy(c.doc[sec.Start:sec.Start+n], payload.Bytes[:n])
	c.mu.Unlock()

	if c.router == nil {
		return nil
	}
	update, err := wire.New(wire.KindDocUpdate, c.self.ID(), "", wire.DocUpdatePayload{SectionIndex: idx})
	if err != nil {
		return err
	}
	c.router.Broadcast(update, msg.From)
	return nil
}

func (c *Coordinator) reply(to string, kind wire.Kind, payload any) error {
	if c.router == nil {
		return fmt.Errorf("document: no router configured")
	}
	msg, err := wire.New(kind, c.self.ID(), to, payload)
	if err != nil {
		return err
	}
	return c.router.Route(msg)
}
