// Package agent implements the runtime that hosts a single agent: its
// private mailbox, cooperative message loop, health monitor, and circuit
// breaker, matching the worker loop idiom used throughout the teacher
// repo's pkg/worker (ticker-free select loop, stopCh, lifecycle hooks) but
// driven by a mailbox instead of a fixed ticker interval.
package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/conclave/pkg/breaker"
	"github.com/cuemby/conclave/pkg/health"
	"github.com/cuemby/conclave/pkg/ids"
	"github.com/cuemby/conclave/pkg/log"
	"github.com/cuemby/conclave/pkg/mailbox"
	"github.com/cuemby/conclave/pkg/wire"
	"github.com/rs/zerolog"
)

// State is one of the agent lifecycle states.
type State string

const (
	StateCreated  State = "CREATED"
	StateStarting State = "STARTING"
	StateRunning  State = "RUNNING"
	StateStopping State = "STOPPING"
	StateStopped  State = "STOPPED"
	StateFailed   State = "FAILED"
)

// pollInterval bounds how often the message loop wakes to re-check the stop
// flag while the mailbox is empty.
const pollInterval = 100 * time.Millisecond

// Handler processes one inbound message. A returned error is recorded as a
// transient failure on the agent's circuit breaker and reported to its
// supervisor; it never terminates the agent.
type Handler func(ctx context.Context, msg *wire.Message) error

// Router delivers a message to its recipient. The registry implements this;
// keeping it as a narrow interface here avoids an import cycle between
// pkg/agent and pkg/registry.
type Router interface {
	Route(msg *wire.Message) error
}

// Config configures a new Agent.
type Config struct {
	ID                 string
	Role               string
	Slot               int
	Capabilities       []string
	SupervisorID       string
	HeartbeatTimeoutMs int64
	MailboxCapacity    int
	FailureThreshold   int
	SuccessThreshold   int
	OpenTimeoutMs      int64
	UserConfig         any
	OnStart            func(ctx context.Context) error
	OnStop             func(ctx context.Context) error
	OnMessage          Handler
}

// Agent hosts one agent's mailbox, message loop, health record, and circuit
// breaker.
type Agent struct {
	id           string
	role         string
	slot         int
	capabilities map[string]struct{}
	userConfig   any
	createdAt    int64

	mu           sync.RWMutex
	state        State
	currentTask  string
	lastActivity int64

	mailbox *mailbox.Mailbox
	cb      *breaker.Breaker
	hp      *health.Record

	handlersMu sync.RWMutex
	handlers   map[wire.Kind]Handler
	onMessage  Handler

	onStart func(ctx context.Context) error
	onStop  func(ctx context.Context) error

	supervisorID string
	router       Router

	logger zerolog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New creates an agent in the CREATED state. router may be nil at
// construction and set later via SetRouter (the registry typically creates
// the agent then assigns itself as the router once the agent is
// registered).
func New(cfg Config) *Agent {
	if cfg.MailboxCapacity <= 0 {
		cfg.MailboxCapacity = mailbox.DefaultCapacity
	}
	caps := make(map[string]struct{}, len(cfg.Capabilities))
	for _, c := range cfg.Capabilities {
		caps[c] = struct{}{}
	}
	now := ids.NowMillis()

	cbCfg := breaker.DefaultConfig()
	if cfg.FailureThreshold > 0 {
		cbCfg.FailureThreshold = cfg.FailureThreshold
	}
	if cfg.SuccessThreshold > 0 {
		cbCfg.SuccessThreshold = cfg.SuccessThreshold
	}
	if cfg.OpenTimeoutMs > 0 {
		cbCfg.OpenTimeout = time.Duration(cfg.OpenTimeoutMs) * time.Millisecond
	}

	a := &Agent{
		id:           cfg.ID,
		role:         cfg.Role,
		slot:         cfg.Slot,
		capabilities: caps,
		userConfig:   cfg.UserConfig,
		createdAt:    now,
		state:        StateCreated,
		lastActivity: now,
		mailbox:      mailbox.New(cfg.MailboxCapacity),
		cb:           breaker.New(cbCfg),
		hp:           health.NewRecord(now, cfg.HeartbeatTimeoutMs),
		handlers:     make(map[wire.Kind]Handler),
		onMessage:    cfg.OnMessage,
		onStart:      cfg.OnStart,
		onStop:       cfg.OnStop,
		supervisorID: cfg.SupervisorID,
		logger:       log.WithAgentID(cfg.ID),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}

	a.RegisterHandler(wire.KindHeartbeat, a.handleHeartbeat)
	a.RegisterHandler(wire.KindShutdown, a.handleShutdown)
	return a
}

// ID, Role, Slot, Capabilities, CreatedAt are immutable accessors.
func (a *Agent) ID() string             { return a.id }
func (a *Agent) Role() string           { return a.role }
func (a *Agent) Slot() int              { return a.slot }
func (a *Agent) CreatedAt() int64       { return a.createdAt }
func (a *Agent) UserConfig() any        { return a.userConfig }
func (a *Agent) Breaker() *breaker.Breaker { return a.cb }
func (a *Agent) Health() *health.Record    { return a.hp }

// HasCapability reports whether the agent declares the given capability.
func (a *Agent) HasCapability(c string) bool {
	_, ok := a.capabilities[c]
	return ok
}

// Capabilities returns a copy of the declared capability set.
func (a *Agent) Capabilities() []string {
	out := make([]string, 0, len(a.capabilities))
	for c := range a.capabilities {
		out = append(out, c)
	}
	return out
}

// SetRouter assigns the message router used by SendTo and error reporting.
func (a *Agent) SetRouter(r Router) { a.router = r }

// State returns the current lifecycle state.
func (a *Agent) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

func (a *Agent) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// CurrentTask returns the id of the task currently assigned to this agent,
// if any.
func (a *Agent) CurrentTask() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.currentTask
}

// SetCurrentTask records the task id assigned to this agent.
func (a *Agent) SetCurrentTask(taskID string) {
	a.mu.Lock()
	a.currentTask = taskID
	a.mu.Unlock()
}

// LastActivity returns the timestamp of the last successfully handled
// message.
func (a *Agent) LastActivity() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastActivity
}

// RegisterHandler records fn as the handler for the given message kind,
// replacing any prior registration.
func (a *Agent) RegisterHandler(kind wire.Kind, fn Handler) {
	a.handlersMu.Lock()
	defer a.handlersMu.Unlock()
	a.handlers[kind] = fn
}

// Start transitions CREATED->STARTING->RUNNING, spawning the message loop.
// It is idempotent when already STARTING or RUNNING.
func (a *Agent) Start(ctx context.Context) error {
	a.mu.Lock()
	switch a.state {
	case StateRunning, StateStarting:
		a.mu.Unlock()
		return nil
	}
	a.state = StateStarting
	a.stopOnce = sync.Once{}
	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	a.mu.Unlock()

	if a.onStart != nil {
		if err := a.onStart(ctx); err != nil {
			a.setState(StateFailed)
			return fmt.Errorf("agent %s: on_start: %w", a.id, err)
		}
	}

	a.setState(StateRunning)
	go a.loop(ctx)
	a.logger.Info().Str("role", a.role).Msg("agent started")
	return nil
}

// Stop transitions to STOPPING, waits for the message loop to drain its
// current message and exit, runs on_stop, then transitions to STOPPED. Stop
// is idempotent.
func (a *Agent) Stop(ctx context.Context) error {
	a.mu.Lock()
	if a.state == StateStopped || a.state == StateStopping {
		stopping := a.state == StateStopping
		a.mu.Unlock()
		if stopping {
			<-a.doneCh
		}
		return nil
	}
	if a.state != StateRunning && a.state != StateStarting {
		a.state = StateStopped
		a.mu.Unlock()
		return nil
	}
	a.state = StateStopping
	a.mu.Unlock()

	a.stopOnce.Do(func() { close(a.stopCh) })
	<-a.doneCh

	if a.onStop != nil {
		if err := a.onStop(ctx); err != nil {
			a.logger.Warn().Err(err).Msg("on_stop returned error")
		}
	}

	a.setState(StateStopped)
	a.logger.Info().Msg("agent stopped")
	return nil
}

// Send enqueues msg iff the agent is RUNNING; otherwise it is silently
// dropped. Send never blocks.
func (a *Agent) Send(msg *wire.Message) {
	if a.State() != StateRunning {
		return
	}
	a.mailbox.Send(msg)
}

// SendTo constructs a message from this agent and forwards it through the
// router.
func (a *Agent) SendTo(to string, kind wire.Kind, payload any) error {
	msg, err := wire.New(kind, a.id, to, payload)
	if err != nil {
		return err
	}
	if a.router == nil {
		return fmt.Errorf("agent %s: no router configured", a.id)
	}
	return a.router.Route(msg)
}

// MailboxLen reports how many messages are currently queued.
func (a *Agent) MailboxLen() int { return a.mailbox.Len() }

// DiscardMailboxOlderThan sweeps stale queued messages, used by the
// orchestrator's housekeeping loop.
func (a *Agent) DiscardMailboxOlderThan(cutoffMs int64) int {
	return a.mailbox.DiscardOlderThan(cutoffMs)
}

func (a *Agent) handleHeartbeat(_ context.Context, msg *wire.Message) error {
	if a.router != nil && msg.From != "" {
		reply, err := wire.New(wire.KindHeartbeatAck, a.id, msg.From, nil)
		if err != nil {
			return err
		}
		return a.router.Route(reply)
	}
	return nil
}

func (a *Agent) handleShutdown(_ context.Context, _ *wire.Message) error {
	a.stopOnce.Do(func() { close(a.stopCh) })
	return nil
}

// loop is the cooperative message loop: block on the mailbox (waking at
// least every pollInterval to check the stop flag), drain everything
// currently queued, dispatch each message to its handler, and record
// success/failure on the circuit breaker. On stop, it finishes the message
// currently in hand and exits without processing the remainder.
func (a *Agent) loop(ctx context.Context) {
	defer close(a.doneCh)
	defer a.recoverFatal()

	for {
		msg, ok := a.mailbox.Receive(pollInterval)
		if !ok {
			if a.stopRequested() {
				return
			}
			continue
		}

		a.dispatch(ctx, msg.(*wire.Message))
		if a.stopRequested() {
			return
		}

		for {
			next, ok := a.mailbox.TryReceive()
			if !ok {
				break
			}
			a.dispatch(ctx, next.(*wire.Message))
			if a.stopRequested() {
				return
			}
		}
	}
}

func (a *Agent) stopRequested() bool {
	select {
	case <-a.stopCh:
		return true
	default:
		return false
	}
}

func (a *Agent) dispatch(ctx context.Context, msg *wire.Message) {
	handler, hasSpecific := a.lookupHandler(msg.Kind)
	if !hasSpecific {
		handler = a.onMessage
		if handler == nil {
			handler = func(context.Context, *wire.Message) error { return nil }
		}
	}

	err := a.invoke(ctx, handler, msg)
	now := time.Now()
	if err != nil {
		a.cb.RecordFailure(now)
		a.logger.Warn().Err(err).Str("kind", string(msg.Kind)).Str("msg_id", msg.ID).Msg("handler failed")
		a.notifySupervisor(err)
		return
	}

	a.cb.RecordSuccess()
	a.mu.Lock()
	a.lastActivity = ids.NowMillis()
	a.mu.Unlock()
	a.hp.Beat(a.lastActivity)
}

func (a *Agent) lookupHandler(kind wire.Kind) (Handler, bool) {
	a.handlersMu.RLock()
	defer a.handlersMu.RUnlock()
	h, ok := a.handlers[kind]
	return h, ok
}

// invoke recovers a panicking handler into a transient error: per the
// runtime's failure model, handler exceptions never promote the agent to
// FAILED.
func (a *Agent) invoke(ctx context.Context, h Handler, msg *wire.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, msg)
}

// recoverFatal catches anything that escapes the loop itself (not a
// handler) and promotes the agent to FAILED, per the state machine: FAILED
// is reserved for the runtime being unable to continue.
func (a *Agent) recoverFatal() {
	if r := recover(); r != nil {
		a.setState(StateFailed)
		a.logger.Error().Interface("panic", r).Msg("agent runtime failed")
	}
}

func (a *Agent) notifySupervisor(cause error) {
	if a.supervisorID == "" || a.router == nil {
		return
	}
	payload := wire.ErrorPayload{AgentID: a.id, Reason: cause.Error()}
	msg, err := wire.New(wire.KindError, a.id, a.supervisorID, payload)
	if err != nil {
		return
	}
	_ = a.router.Route(msg)
}
