// Package scheduler implements the priority task queue, dependency graph,
// and role-based dispatch. State is guarded by a single mutex per the
// design's "short critical section, no I/O under the lock" discipline,
// mirroring the teacher's pkg/scheduler ticker-and-mutex structure adapted
// here to a direct-call API rather than a ticking dispatch loop.
package scheduler

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cuemby/conclave/pkg/apierrors"
	"github.com/cuemby/conclave/pkg/ids"
	"github.com/cuemby/conclave/pkg/log"
	"github.com/rs/zerolog"
)

// Type is one of the recognised task types.
type Type string

const (
	TypeAnalyze   Type = "ANALYZE"
	TypeGenerate  Type = "GENERATE"
	TypeTest      Type = "TEST"
	TypeReview    Type = "REVIEW"
	TypeRefactor  Type = "REFACTOR"
	TypeDocument  Type = "DOCUMENT"
	TypeConsensus Type = "CONSENSUS"
	TypeCustom    Type = "CUSTOM"
)

// Status is one of the task lifecycle states.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusAssigned  Status = "ASSIGNED"
	StatusExecuting Status = "EXECUTING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// Task is one unit of work.
type Task struct {
	ID            string
	Type          Type
	Description   string
	Parameters    any
	Dependencies  []string
	RequiredRoles []string
	Priority      int
	Parent        string
	CreatedAt     int64
	DeadlineMs    int64
	Status        Status
	AssignedAgent string
}

// Result is the outcome of executing a Task.
type Result struct {
	TaskID     string
	AgentID    string
	Success    bool
	Output     string
	Error      string
	DurationMs int64
}

// Scheduler holds the task map, dependency graph, and priority ready queue.
type Scheduler struct {
	mu sync.Mutex

	tasks      map[string]*Task
	results    map[string]Result
	dependents map[string][]string // dep task id -> dependent task ids

	ready     []*readyEntry
	submitSeq int64

	logger zerolog.Logger
}

type readyEntry struct {
	task *Task
	seq  int64
}

// New creates an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{
		tasks:      make(map[string]*Task),
		results:    make(map[string]Result),
		dependents: make(map[string][]string),
		logger:     log.WithComponent("scheduler"),
	}
}

// Submit records t, wires its dependency edges, and — if every dependency is
// already COMPLETED — places it in the ready queue. Duplicate task ids are
// rejected without mutating existing state.
func (s *Scheduler) Submit(t Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[t.ID]; exists {
		return fmt.Errorf("scheduler: task %q already submitted: %w", t.ID, apierrors.ErrConflict)
	}
	if t.ID == "" {
		t.ID = ids.NewTaskID()
	}
	if t.CreatedAt == 0 {
		t.CreatedAt = ids.NowMillis()
	}
	t.Status = StatusPending
	stored := t
	s.tasks[t.ID] = &stored

	for _, dep := range t.Dependencies {
		s.dependents[dep] = append(s.dependents[dep], t.ID)
	}

	if s.allDependenciesCompleted(&stored) {
		s.insertReady(&stored)
	}
	return nil
}

func (s *Scheduler) allDependenciesCompleted(t *Task) bool {
	for _, dep := range t.Dependencies {
		depTask, ok := s.tasks[dep]
		if !ok || depTask.Status != StatusCompleted {
			return false
		}
	}
	return true
}

func (s *Scheduler) insertReady(t *Task) {
	s.submitSeq++
	s.ready = append(s.ready, &readyEntry{task: t, seq: s.submitSeq})
	sort.SliceStable(s.ready, func(i, j int) bool {
		if s.ready[i].task.Priority != s.ready[j].task.Priority {
			return s.ready[i].task.Priority > s.ready[j].task.Priority
		}
		return s.ready[i].seq < s.ready[j].seq
	})
}

// GetNextTask scans the ready queue from highest priority down and returns
// the first task whose required roles are empty or intersect roles, removing
// it from the queue. A nil, false result means no matching task is ready.
func (s *Scheduler) GetNextTask(roles []string) (*Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	roleSet := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		roleSet[r] = struct{}{}
	}

	for i, entry := range s.ready {
		if roleMatches(entry.task.RequiredRoles, roleSet) {
			s.ready = append(s.ready[:i:i], s.ready[i+1:]...)
			cp := *entry.task
			return &cp, true
		}
	}
	return nil, false
}

func roleMatches(required []string, have map[string]struct{}) bool {
	if len(required) == 0 {
		return true
	}
	for _, r := range required {
		if _, ok := have[r]; ok {
			return true
		}
	}
	return false
}

// UpdateStatus sets t's status and, if agentID is non-empty, its assigned
// agent.
func (s *Scheduler) UpdateStatus(taskID string, status Status, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return fmt.Errorf("scheduler: task %q: %w", taskID, apierrors.ErrNotFound)
	}
	t.Status = status
	if agentID != "" {
		t.AssignedAgent = agentID
	}
	return nil
}

// CompleteTask marks taskID COMPLETED, stores its result, and promotes every
// dependent whose dependencies are now all COMPLETED into the ready queue,
// exactly once per dependent.
func (s *Scheduler) CompleteTask(taskID string, result Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return fmt.Errorf("scheduler: task %q: %w", taskID, apierrors.ErrNotFound)
	}
	t.Status = StatusCompleted
	s.results[taskID] = result

	promoted := make(map[string]struct{})
	for _, depID := range s.dependents[taskID] {
		if _, seen := promoted[depID]; seen {
			continue
		}
		promoted[depID] = struct{}{}
		dep, ok := s.tasks[depID]
		if !ok || dep.Status != StatusPending {
			continue
		}
		if s.allDependenciesCompleted(dep) {
			s.insertReady(dep)
		}
	}
	return nil
}

// FailTask marks taskID FAILED and stores an error Result. Dependents remain
// blocked indefinitely; this spec does not cascade failure.
func (s *Scheduler) FailTask(taskID string, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return fmt.Errorf("scheduler: task %q: %w", taskID, apierrors.ErrNotFound)
	}
	t.Status = StatusFailed
	s.results[taskID] = Result{TaskID: taskID, Success: false, Error: errMsg}
	return nil
}

// CancelTask marks taskID CANCELLED and removes it from the ready queue if
// present.
func (s *Scheduler) CancelTask(taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return fmt.Errorf("scheduler: task %q: %w", taskID, apierrors.ErrNotFound)
	}
	t.Status = StatusCancelled
	for i, entry := range s.ready {
		if entry.task.ID == taskID {
			s.ready = append(s.ready[:i:i], s.ready[i+1:]...)
			break
		}
	}
	return nil
}

// GetTask returns a copy of the task with the given id.
func (s *Scheduler) GetTask(taskID string) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// GetResult returns the stored Result for a completed or failed task.
func (s *Scheduler) GetResult(taskID string) (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[taskID]
	return r, ok
}

// GetAllTasks returns every submitted task, in id order.
func (s *Scheduler) GetAllTasks() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetPendingCount returns the number of tasks currently PENDING.
func (s *Scheduler) GetPendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if t.Status == StatusPending {
			n++
		}
	}
	return n
}
