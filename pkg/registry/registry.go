// Package registry implements the global, name-indexed lookup of agents and
// slot reservation, and is the sole message router between agents: it
// delivers routed and broadcast messages into recipient mailboxes. The
// locking discipline (a single reader-writer mutex guarding maps, no I/O
// under the lock) follows the teacher's pkg/manager node table.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cuemby/conclave/pkg/agent"
	"github.com/cuemby/conclave/pkg/apierrors"
	"github.com/cuemby/conclave/pkg/log"
	"github.com/cuemby/conclave/pkg/wire"
	"github.com/rs/zerolog"
)

// Registry is the process-wide agent directory and message router.
type Registry struct {
	mu     sync.RWMutex
	byID   map[string]*agent.Agent
	bySlot map[int]string
	logger zerolog.Logger
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		byID:   make(map[string]*agent.Agent),
		bySlot: make(map[int]string),
		logger: log.WithComponent("registry"),
	}
}

// RegisterAgent registers a into the directory. It fails with ConflictError
// if the agent's id is already present or its slot is already reserved by
// another agent.
func (r *Registry) RegisterAgent(a *agent.Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[a.ID()]; exists {
		return fmt.Errorf("registry: agent id %q already registered: %w", a.ID(), apierrors.ErrConflict)
	}
	if existingID, taken := r.bySlot[a.Slot()]; taken && existingID != a.ID() {
		return fmt.Errorf("registry: slot %d already reserved by %q: %w", a.Slot(), existingID, apierrors.ErrConflict)
	}

	a.SetRouter(r)
	r.byID[a.ID()] = a
	r.bySlot[a.Slot()] = a.ID()
	r.logger.Info().Str("agent_id", a.ID()).Str("role", a.Role()).Msg("agent registered")
	return nil
}

// UnregisterAgent removes the agent from the directory.
func (r *Registry) UnregisterAgent(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("registry: agent %q: %w", id, apierrors.ErrNotFound)
	}
	delete(r.byID, id)
	delete(r.bySlot, a.Slot())
	return nil
}

// GetAgent returns the agent with the given id.
func (r *Registry) GetAgent(id string) (*agent.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	return a, ok
}

// GetAgentBySlot returns the agent occupying the given slot.
func (r *Registry) GetAgentBySlot(slot int) (*agent.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.bySlot[slot]
	if !ok {
		return nil, false
	}
	a, ok := r.byID[id]
	return a, ok
}

// IsSlotTaken reports whether slot is currently reserved.
func (r *Registry) IsSlotTaken(slot int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.bySlot[slot]
	return ok
}

// GetAgentsByRole returns all agents with the given role, ordered by id for
// deterministic iteration.
func (r *Registry) GetAgentsByRole(role string) []*agent.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*agent.Agent
	for _, a := range r.byID {
		if a.Role() == role {
			out = append(out, a)
		}
	}
	sortAgentsByID(out)
	return out
}

// GetAgentsByState returns all agents currently in the given state.
func (r *Registry) GetAgentsByState(state agent.State) []*agent.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*agent.Agent
	for _, a := range r.byID {
		if a.State() == state {
			out = append(out, a)
		}
	}
	sortAgentsByID(out)
	return out
}

// GetAllAgents returns every registered agent, ordered by id.
func (r *Registry) GetAllAgents() []*agent.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*agent.Agent, 0, len(r.byID))
	for _, a := range r.byID {
		out = append(out, a)
	}
	sortAgentsByID(out)
	return out
}

// Count returns the number of registered agents.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func sortAgentsByID(agents []*agent.Agent) {
	sort.Slice(agents, func(i, j int) bool { return agents[i].ID() < agents[j].ID() })
}

// Route delivers msg to its recipient's mailbox. If msg.To is empty, Route
// broadcasts to every agent except msg.From. Route implements agent.Router.
func (r *Registry) Route(msg *wire.Message) error {
	if msg.IsBroadcast() {
		r.Broadcast(msg, "")
		return nil
	}

	r.mu.RLock()
	recipient, ok := r.byID[msg.To]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("registry: route to %q: %w", msg.To, apierrors.ErrNotFound)
	}
	recipient.Send(msg)
	return nil
}

// Broadcast delivers an independent copy of msg to every registered agent
// except msg.From and, if non-empty, exceptID. Per-recipient delivery order
// is FIFO; cross-recipient order is unspecified.
func (r *Registry) Broadcast(msg *wire.Message, exceptID string) {
	r.mu.RLock()
	recipients := make([]*agent.Agent, 0, len(r.byID))
	for id, a := range r.byID {
		if id == msg.From || (exceptID != "" && id == exceptID) {
			continue
		}
		recipients = append(recipients, a)
	}
	r.mu.RUnlock()

	for _, a := range recipients {
		copyMsg := *msg
		a.Send(&copyMsg)
	}
}
