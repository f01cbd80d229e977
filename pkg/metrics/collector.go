package metrics

import (
	"time"

	"github.com/cuemby/conclave/pkg/agent"
	"github.com/cuemby/conclave/pkg/orchestrator"
	"github.com/cuemby/conclave/pkg/scheduler"
)

// Collector periodically refreshes the gauge metrics from the orchestrator's
// live state, the way the teacher's pkg/metrics.Collector polls the manager.
type Collector struct {
	orch     *orchestrator.Orchestrator
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a Collector over orch, sampling every interval (zero
// defaults to 15s).
func NewCollector(orch *orchestrator.Orchestrator, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{orch: orch, interval: interval, stopCh: make(chan struct{})}
}

// Start begins the collection loop in its own goroutine.
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts the collection loop.
func (c *Collector) Stop() { close(c.stopCh) }

func (c *Collector) collect() {
	c.collectAgents()
	c.collectTasks()
	KnowledgeEntriesTotal.Set(float64(c.orch.Knowledge.Count()))
}

func (c *Collector) collectAgents() {
	counts := map[agent.State]int{}
	for _, a := range c.orch.Registry.GetAllAgents() {
		counts[a.State()]++
	}
	for _, state := range []agent.State{
		agent.StateCreated, agent.StateStarting, agent.StateRunning,
		agent.StateStopping, agent.StateStopped, agent.StateFailed,
	} {
		AgentsTotal.WithLabelValues(string(state)).Set(float64(counts[state]))
	}
}

func (c *Collector) collectTasks() {
	counts := map[scheduler.Status]int{}
	for _, t := range c.orch.Scheduler.GetAllTasks() {
		counts[t.Status]++
	}
	for _, status := range []scheduler.Status{
		scheduler.StatusPending, scheduler.StatusAssigned, scheduler.StatusExecuting,
		scheduler.StatusCompleted, scheduler.StatusFailed, scheduler.StatusCancelled,
	} {
		TasksTotal.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}
