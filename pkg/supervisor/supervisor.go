// Package supervisor implements the supervision hierarchy: health-monitor
// driven failure detection via heartbeats, and restart policies subject to
// a sliding-window rate limit, mirroring the ticker-driven monitor loop in
// the teacher's pkg/worker/health_monitor.go and the reconcile-cycle
// structure of pkg/reconciler/reconciler.go.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/conclave/pkg/agent"
	"github.com/cuemby/conclave/pkg/ids"
	"github.com/cuemby/conclave/pkg/log"
	"github.com/cuemby/conclave/pkg/wire"
	"github.com/rs/zerolog"
)

// Strategy is one of the three restart policies.
type Strategy string

const (
	OneForOne  Strategy = "ONE_FOR_ONE"
	OneForAll  Strategy = "ONE_FOR_ALL"
	RestForOne Strategy = "REST_FOR_ONE"
)

// Config configures a Supervisor's health monitor and restart rate limit.
type Config struct {
	ID                    string
	HealthCheckIntervalMs int64
	MaxRestartWindowMs    int64
	MaxRestarts           int
	Strategy              Strategy
}

// DefaultConfig returns the spec defaults.
func DefaultConfig() Config {
	return Config{
		HealthCheckIntervalMs: 1000,
		MaxRestartWindowMs:    60000,
		MaxRestarts:           3,
		Strategy:              OneForOne,
	}
}

// Router delivers the supervisor's own heartbeat probes to children.
type Router interface {
	Route(msg *wire.Message) error
}

// Supervisor owns a list of child agents, detects failure via heartbeats and
// ERROR messages, and restarts children per its configured strategy within
// the restart-rate window. A Supervisor is itself hosted by an *agent.Agent
// (so it has a mailbox, can receive ERROR reports from children, and may in
// turn be supervised by another Supervisor), but health monitoring runs on
// its own ticking goroutine, independent from the message loop.
type Supervisor struct {
	self   *agent.Agent
	router Router
	cfg    Config
	logger zerolog.Logger

	mu                sync.Mutex
	childOrder        []string
	children          map[string]*agent.Agent
	restartTimestamps map[string][]int64

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New creates a Supervisor hosted by a fresh agent with the given id.
func New(cfg Config) *Supervisor {
	if cfg.HealthCheckIntervalMs <= 0 {
		cfg.HealthCheckIntervalMs = DefaultConfig().HealthCheckIntervalMs
	}
	if cfg.MaxRestartWindowMs <= 0 {
		cfg.MaxRestartWindowMs = DefaultConfig().MaxRestartWindowMs
	}
	if cfg.MaxRestarts <= 0 {
		cfg.MaxRestarts = DefaultConfig().MaxRestarts
	}
	if cfg.Strategy == "" {
		cfg.Strategy = OneForOne
	}

	s := &Supervisor{
		cfg:               cfg,
		children:          make(map[string]*agent.Agent),
		restartTimestamps: make(map[string][]int64),
		logger:            log.WithComponent("supervisor").With().Str("supervisor_id", cfg.ID).Logger(),
		stopCh:            make(chan struct{}),
		doneCh:            make(chan struct{}),
	}
	s.self = agent.New(agent.Config{ID: cfg.ID, Role: "supervisor", Slot: -1})
	s.self.RegisterHandler(wire.KindError, s.handleChildErrorMessage)
	return s
}

// Agent returns the supervisor's own hosting agent, for registration in a
// Registry.
func (s *Supervisor) Agent() *agent.Agent { return s.self }

// ID returns the supervisor's agent id.
func (s *Supervisor) ID() string { return s.self.ID() }

// SetRouter assigns the router used to send heartbeat probes to children.
func (s *Supervisor) SetRouter(r Router) { s.router = r }

// AddChild registers an agent as a child of this supervisor, appended after
// any existing children (insertion order matters for ONE_FOR_ALL and
// REST_FOR_ONE).
func (s *Supervisor) AddChild(child *agent.Agent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.children[child.ID()]; exists {
		return
	}
	s.children[child.ID()] = child
	s.childOrder = append(s.childOrder, child.ID())
}

// RemoveChild unregisters a child agent from supervision.
func (s *Supervisor) RemoveChild(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.children, id)
	delete(s.restartTimestamps, id)
	for i, cid := range s.childOrder {
		if cid == id {
			s.childOrder = append(s.childOrder[:i], s.childOrder[i+1:]...)
			break
		}
	}
}

// Start starts the supervisor's own agent, then all children in insertion
// order, then begins the health monitor loop.
func (s *Supervisor) Start(ctx context.Context) error {
	if err := s.self.Start(ctx); err != nil {
		return fmt.Errorf("supervisor %s: start self: %w", s.ID(), err)
	}

	s.mu.Lock()
	order := append([]string(nil), s.childOrder...)
	s.mu.Unlock()

	for _, id := range order {
		child := s.children[id]
		if child == nil {
			continue
		}
		if err := child.Start(ctx); err != nil {
			s.logger.Error().Err(err).Str("agent_id", id).Msg("child failed to start")
		}
	}

	go s.monitorLoop(ctx)
	s.logger.Info().Int("children", len(order)).Msg("supervisor started")
	return nil
}

// Stop halts the health monitor, then stops all children in reverse
// insertion order, then the supervisor's own agent.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh

	s.mu.Lock()
	order := append([]string(nil), s.childOrder...)
	s.mu.Unlock()

	for i := len(order) - 1; i >= 0; i-- {
		child := s.children[order[i]]
		if child == nil {
			continue
		}
		if err := child.Stop(ctx); err != nil {
			s.logger.Warn().Err(err).Str("agent_id", order[i]).Msg("child failed to stop cleanly")
		}
	}

	return s.self.Stop(ctx)
}

func (s *Supervisor) monitorLoop(ctx context.Context) {
	defer close(s.doneCh)
	ticker := time.NewTicker(time.Duration(s.cfg.HealthCheckIntervalMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.checkChildren(ctx)
		case <-s.stopCh:
			return
		}
	}
}

func (s *Supervisor) checkChildren(ctx context.Context) {
	s.mu.Lock()
	order := append([]string(nil), s.childOrder...)
	s.mu.Unlock()

	now := ids.NowMillis()
	for _, id := range order {
		child := s.children[id]
		if child == nil || child.State() != agent.StateRunning {
			continue
		}
		s.probe(child)
		if !child.Health().Healthy(now) {
			s.logger.Warn().Str("agent_id", id).Msg("child missed heartbeat deadline")
			s.HandleChildFailure(ctx, id)
		}
	}
}

func (s *Supervisor) probe(child *agent.Agent) {
	hb, err := wire.New(wire.KindHeartbeat, s.ID(), child.ID(), nil)
	if err != nil {
		return
	}
	if s.router != nil {
		_ = s.router.Route(hb)
	} else {
		child.Send(hb)
	}
}

func (s *Supervisor) handleChildErrorMessage(_ context.Context, msg *wire.Message) error {
	payload, err := wire.DecodePayload[wire.ErrorPayload](msg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	child := s.children[payload.AgentID]
	s.mu.Unlock()
	if child == nil {
		return nil
	}
	s.logger.Warn().Str("agent_id", payload.AgentID).Str("reason", payload.Reason).Msg("child reported error")
	if child.Breaker().State().String() == "OPEN" {
		s.HandleChildFailure(context.Background(), payload.AgentID)
	}
	return nil
}

// HandleChildFailure applies the configured restart strategy to the given
// child, subject to the sliding-window restart rate limit. It is exported
// so callers outside this package can also trigger it.
func (s *Supervisor) HandleChildFailure(ctx context.Context, childID string) {
	if !s.shouldRestart(childID, ids.NowMillis()) {
		s.logger.Warn().Str("agent_id", childID).Msg("restart rate limit exceeded; leaving child stopped")
		if child := s.childByID(childID); child != nil {
			_ = child.Stop(ctx)
		}
		return
	}

	switch s.cfg.Strategy {
	case OneForAll:
		s.restartAll(ctx)
	case RestForOne:
		s.restartRestForOne(ctx, childID)
	default:
		s.restartOne(ctx, childID)
	}
}

func (s *Supervisor) childByID(id string) *agent.Agent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.children[id]
}

// shouldRestart enforces the sliding-window restart-rate limit: a child may
// be restarted at most max_restarts times within max_restart_window_ms.
func (s *Supervisor) shouldRestart(childID string, nowMs int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := nowMs - s.cfg.MaxRestartWindowMs
	timestamps := s.restartTimestamps[childID]
	kept := timestamps[:0]
	for _, ts := range timestamps {
		if ts >= cutoff {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= s.cfg.MaxRestarts {
		s.restartTimestamps[childID] = kept
		return false
	}

	s.restartTimestamps[childID] = append(kept, nowMs)
	return true
}

func (s *Supervisor) restartOne(ctx context.Context, childID string) {
	child := s.childByID(childID)
	if child == nil {
		return
	}
	s.logger.Info().Str("agent_id", childID).Msg("restarting child (ONE_FOR_ONE)")
	_ = child.Stop(ctx)
	_ = child.Start(ctx)
}

func (s *Supervisor) restartAll(ctx context.Context) {
	s.mu.Lock()
	order := append([]string(nil), s.childOrder...)
	s.mu.Unlock()

	s.logger.Info().Msg("restarting all children (ONE_FOR_ALL)")
	for i := len(order) - 1; i >= 0; i-- {
		if child := s.childByID(order[i]); child != nil {
			_ = child.Stop(ctx)
		}
	}
	for _, id := range order {
		if child := s.childByID(id); child != nil {
			_ = child.Start(ctx)
		}
	}
}

func (s *Supervisor) restartRestForOne(ctx context.Context, childID string) {
	s.mu.Lock()
	order := append([]string(nil), s.childOrder...)
	s.mu.Unlock()

	idx := -1
	for i, id := range order {
		if id == childID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return
	}
	affected := order[idx:]

	s.logger.Info().Str("agent_id", childID).Msg("restarting child and dependents (REST_FOR_ONE)")
	for i := len(affected) - 1; i >= 0; i-- {
		if child := s.childByID(affected[i]); child != nil {
			_ = child.Stop(ctx)
		}
	}
	for _, id := range affected {
		if child := s.childByID(id); child != nil {
			_ = child.Start(ctx)
		}
	}
}
