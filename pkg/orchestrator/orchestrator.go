// Package orchestrator composes the registry, supervisor, knowledge base,
// task scheduler, and consensus manager into a single process-wide facade,
// and runs the housekeeping worker that sweeps stale messages. It mirrors
// the composition role of the teacher's pkg/manager, which wires together
// the worker pool, health monitor, scheduler, and reconciler behind one
// entry point.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/conclave/pkg/agent"
	"github.com/cuemby/conclave/pkg/apierrors"
	"github.com/cuemby/conclave/pkg/breaker"
	"github.com/cuemby/conclave/pkg/consensus"
	"github.com/cuemby/conclave/pkg/document"
	"github.com/cuemby/conclave/pkg/ids"
	"github.com/cuemby/conclave/pkg/knowledge"
	"github.com/cuemby/conclave/pkg/log"
	"github.com/cuemby/conclave/pkg/registry"
	"github.com/cuemby/conclave/pkg/scheduler"
	"github.com/cuemby/conclave/pkg/supervisor"
	"github.com/cuemby/conclave/pkg/wire"
	"github.com/rs/zerolog"
)

// Config configures the orchestrator and the defaults handed to every
// spawned agent.
type Config struct {
	MaxAgents                  int
	DefaultAgentTimeoutMs      int64
	MailboxCapacity            int
	RetentionMs                int64
	HousekeepingIntervalMs     int64
	MessageLogCapacityPerAgent int
	Breaker                    breaker.Config
	Supervisor                 supervisor.Config
}

// DefaultConfig returns the spec's §6.4 defaults.
func DefaultConfig() Config {
	return Config{
		MaxAgents:                  10,
		DefaultAgentTimeoutMs:      300000,
		MailboxCapacity:            10000,
		RetentionMs:                86400000,
		HousekeepingIntervalMs:     10000,
		MessageLogCapacityPerAgent: 100,
		Breaker:                    breaker.DefaultConfig(),
		Supervisor:                 supervisor.DefaultConfig(),
	}
}

// Orchestrator is the single process-wide coordinator.
type Orchestrator struct {
	cfg Config

	Registry   *registry.Registry
	Supervisor *supervisor.Supervisor
	Knowledge  *knowledge.Base
	Scheduler  *scheduler.Scheduler
	Consensus  *consensus.Manager
	Document   *document.Coordinator

	spawnedMu    sync.Mutex
	spawnedCount int

	msgLogMu sync.Mutex
	msgLog   map[string][]*wire.Message

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}

	logger zerolog.Logger
}

// New creates an Orchestrator with its own root supervisor, registry,
// knowledge base, scheduler, and consensus manager, all wired together.
func New(cfg Config) *Orchestrator {
	if cfg.MaxAgents <= 0 {
		cfg = DefaultConfig()
	}

	o := &Orchestrator{
		cfg:      cfg,
		Registry: registry.New(),
		Scheduler: scheduler.New(),
		Consensus: consensus.New(),
		msgLog:   make(map[string][]*wire.Message),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		logger:   log.WithComponent("orchestrator"),
	}

	supCfg := cfg.Supervisor
	supCfg.ID = "root-supervisor"
	o.Supervisor = supervisor.New(supCfg)
	o.Supervisor.SetRouter(o.Registry)
	_ = o.Registry.RegisterAgent(o.Supervisor.Agent())

	o.Knowledge = knowledge.New()
	o.Knowledge.SetRouter(o.Registry)

	o.Document = document.New("document-coordinator", nil)
	o.Document.SetRouter(o.Registry)
	_ = o.Registry.RegisterAgent(o.Document.Agent())

	return o
}

// Start starts the root supervisor and the housekeeping loop.
func (o *Orchestrator) Start(ctx context.Context) error {
	if err := o.Supervisor.Start(ctx); err != nil {
		return err
	}
	if err := o.Document.Agent().Start(ctx); err != nil {
		return err
	}
	go o.housekeepingLoop()
	o.logger.Info().Msg("orchestrator started")
	return nil
}

// Stop stops the housekeeping loop and the root supervisor (and, through it,
// every spawned agent).
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.stopOnce.Do(func() { close(o.stopCh) })
	<-o.doneCh
	_ = o.Document.Agent().Stop(ctx)
	return o.Supervisor.Stop(ctx)
}

func (o *Orchestrator) housekeepingLoop() {
	defer close(o.doneCh)
	interval := time.Duration(o.cfg.HousekeepingIntervalMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			o.sweepRetention()
		case <-o.stopCh:
			return
		}
	}
}

func (o *Orchestrator) sweepRetention() {
	cutoff := ids.NowMillis() - o.cfg.RetentionMs
	total := 0
	for _, a := range o.Registry.GetAllAgents() {
		total += a.DiscardMailboxOlderThan(cutoff)
	}
	if total > 0 {
		o.logger.Debug().Int("discarded", total).Msg("housekeeping retention sweep")
	}
}

// SpawnAgent creates, registers, supervises, and starts a new agent.
func (o *Orchestrator) SpawnAgent(ctx context.Context, role string, slotID int, capabilities []string, userConfig any) (*agent.Agent, error) {
	o.spawnedMu.Lock()
	if o.spawnedCount >= o.cfg.MaxAgents {
		o.spawnedMu.Unlock()
		return nil, apierrors.ErrPolicy
	}
	o.spawnedMu.Unlock()

	if o.Registry.IsSlotTaken(slotID) {
		return nil, apierrors.ErrConflict
	}

	a := agent.New(agent.Config{
		ID:                 ids.NewAgentID(),
		Role:               role,
		Slot:               slotID,
		Capabilities:       capabilities,
		SupervisorID:       o.Supervisor.ID(),
		HeartbeatTimeoutMs: o.cfg.DefaultAgentTimeoutMs,
		MailboxCapacity:    o.cfg.MailboxCapacity,
		FailureThreshold:   o.cfg.Breaker.FailureThreshold,
		SuccessThreshold:   o.cfg.Breaker.SuccessThreshold,
		OpenTimeoutMs:      o.cfg.Breaker.OpenTimeout.Milliseconds(),
		UserConfig:         userConfig,
	})

	if err := o.Registry.RegisterAgent(a); err != nil {
		return nil, err
	}
	o.Supervisor.AddChild(a)
	if err := a.Start(ctx); err != nil {
		return nil, err
	}

	o.spawnedMu.Lock()
	o.spawnedCount++
	o.spawnedMu.Unlock()
	return a, nil
}

// TerminateAgent stops and unregisters an agent.
func (o *Orchestrator) TerminateAgent(ctx context.Context, agentID string) error {
	a, ok := o.Registry.GetAgent(agentID)
	if !ok {
		return apierrors.ErrNotFound
	}
	o.Supervisor.RemoveChild(agentID)
	if err := a.Stop(ctx); err != nil {
		return err
	}
	if err := o.Registry.UnregisterAgent(agentID); err != nil {
		return err
	}

	o.spawnedMu.Lock()
	o.spawnedCount--
	o.spawnedMu.Unlock()
	return nil
}

// SubmitTask assigns a task id if absent and submits it to the scheduler.
func (o *Orchestrator) SubmitTask(t scheduler.Task) (string, error) {
	if t.ID == "" {
		t.ID = ids.NewTaskID()
	}
	if err := o.Scheduler.Submit(t); err != nil {
		return "", err
	}
	return t.ID, nil
}

// SubmitWorkflow submits every task in tasks under a shared generated
// workflow id, recorded as each task's Parent.
func (o *Orchestrator) SubmitWorkflow(tasks []scheduler.Task) (string, []string, error) {
	workflowID := ids.NewWorkflowID()
	taskIDs := make([]string, 0, len(tasks))
	for _, t := range tasks {
		if t.ID == "" {
			t.ID = ids.NewTaskID()
		}
		t.Parent = workflowID
		if err := o.Scheduler.Submit(t); err != nil {
			return "", nil, err
		}
		taskIDs = append(taskIDs, t.ID)
	}
	return workflowID, taskIDs, nil
}

// SendMessage routes msg through the registry and records it in the
// recipient's direct-call message log.
func (o *Orchestrator) SendMessage(msg *wire.Message) error {
	if err := o.Registry.Route(msg); err != nil {
		return err
	}
	o.logMessage(msg.To, msg)
	return nil
}

// BroadcastMessage broadcasts msg to every agent except its sender and
// records it in every recipient's message log.
func (o *Orchestrator) BroadcastMessage(msg *wire.Message) {
	o.Registry.Broadcast(msg, "")
	for _, a := range o.Registry.GetAllAgents() {
		if a.ID() != msg.From {
			o.logMessage(a.ID(), msg)
		}
	}
}

func (o *Orchestrator) logMessage(agentID string, msg *wire.Message) {
	o.msgLogMu.Lock()
	defer o.msgLogMu.Unlock()
	limit := o.cfg.MessageLogCapacityPerAgent
	if limit <= 0 {
		limit = DefaultConfig().MessageLogCapacityPerAgent
	}
	entries := append(o.msgLog[agentID], msg)
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	o.msgLog[agentID] = entries
}

// GetMessages returns up to maxCount of the most recently logged messages
// addressed to agentID, oldest first.
func (o *Orchestrator) GetMessages(agentID string, maxCount int) []*wire.Message {
	o.msgLogMu.Lock()
	defer o.msgLogMu.Unlock()
	all := o.msgLog[agentID]
	if maxCount <= 0 || maxCount > len(all) {
		maxCount = len(all)
	}
	out := make([]*wire.Message, maxCount)
	copy(out, all[len(all)-maxCount:])
	return out
}

// Stats summarises the orchestrator's current state for /v1/agents/stats.
type Stats struct {
	AgentsTotal     int
	AgentsIdle      int
	AgentsBusy      int
	AgentsError     int
	AgentsOffline   int
	TasksTotal      int
	TasksPending    int
	TasksCompleted  int
	TasksFailed     int
	KnowledgeCount  int
}

// GetStats aggregates counts across agents, tasks, and the knowledge base.
func (o *Orchestrator) GetStats() Stats {
	var s Stats
	for _, a := range o.Registry.GetAllAgents() {
		s.AgentsTotal++
		switch a.State() {
		case agent.StateRunning:
			if a.CurrentTask() != "" {
				s.AgentsBusy++
			} else {
				s.AgentsIdle++
			}
		case agent.StateFailed:
			s.AgentsError++
		case agent.StateStopped, agent.StateStopping:
			s.AgentsOffline++
		}
	}

	for _, t := range o.Scheduler.GetAllTasks() {
		s.TasksTotal++
		switch t.Status {
		case scheduler.StatusPending:
			s.TasksPending++
		case scheduler.StatusCompleted:
			s.TasksCompleted++
		case scheduler.StatusFailed:
			s.TasksFailed++
		}
	}

	s.KnowledgeCount = o.Knowledge.Count()
	return s
}
