package orchestrator

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cuemby/conclave/pkg/apierrors"
	"github.com/cuemby/conclave/pkg/scheduler"
	"github.com/cuemby/conclave/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func newTestOrchestrator(t *testing.T) *Orchestrator {
	cfg := DefaultConfig()
	cfg.MaxAgents = 2
	cfg.HousekeepingIntervalMs = 20
	o := New(cfg)
	require.NoError(t, o.Start(context.Background()))
	t.Cleanup(func() { o.Stop(context.Background()) })
	return o
}

func TestSpawnAgentRegistersAndStarts(t *testing.T) {
	o := newTestOrchestrator(t)
	a, err := o.SpawnAgent(context.Background(), "worker", 0, nil, nil)
	require.NoError(t, err)

	got, ok := o.Registry.GetAgent(a.ID())
	require.True(t, ok)
	assert.Equal(t, "worker", got.Role())
}

func TestSpawnAgentRejectsDuplicateSlot(t *testing.T) {
	o := newTestOrchestrator(t)
	_, err := o.SpawnAgent(context.Background(), "worker", 0, nil, nil)
	require.NoError(t, err)

	_, err = o.SpawnAgent(context.Background(), "worker", 0, nil, nil)
	assert.ErrorIs(t, err, apierrors.ErrConflict)
}

func TestSpawnAgentRejectsOverMaxAgents(t *testing.T) {
	o := newTestOrchestrator(t)
	_, err := o.SpawnAgent(context.Background(), "worker", 0, nil, nil)
	require.NoError(t, err)
	_, err = o.SpawnAgent(context.Background(), "worker", 1, nil, nil)
	require.NoError(t, err)

	_, err = o.SpawnAgent(context.Background(), "worker", 2, nil, nil)
	assert.ErrorIs(t, err, apierrors.ErrPolicy)
}

func TestTerminateAgentUnregisters(t *testing.T) {
	o := newTestOrchestrator(t)
	a, err := o.SpawnAgent(context.Background(), "worker", 0, nil, nil)
	require.NoError(t, err)

	require.NoError(t, o.TerminateAgent(context.Background(), a.ID()))
	_, ok := o.Registry.GetAgent(a.ID())
	assert.False(t, ok)
}

func TestSubmitWorkflowSharesParent(t *testing.T) {
	o := newTestOrchestrator(t)
	workflowID, taskIDs, err := o.SubmitWorkflow([]scheduler.Task{
		{Priority: 5},
		{Priority: 1},
	})
	require.NoError(t, err)
	require.Len(t, taskIDs, 2)

	for _, id := range taskIDs {
		task, ok := o.Scheduler.GetTask(id)
		require.True(t, ok)
		assert.Equal(t, workflowID, task.Parent)
	}
}

func TestSendMessageRecordsInLog(t *testing.T) {
	o := newTestOrchestrator(t)
	a, err := o.SpawnAgent(context.Background(), "worker", 0, nil, nil)
	require.NoError(t, err)

	msg, _ := wire.New(wire.KindUser, "caller", a.ID(), nil)
	require.NoError(t, o.SendMessage(msg))

	got := o.GetMessages(a.ID(), 10)
	require.Len(t, got, 1)
	assert.Equal(t, "caller", got[0].From)
}

func TestBroadcastMessageExcludesSenderFromLog(t *testing.T) {
	o := newTestOrchestrator(t)
	sender, err := o.SpawnAgent(context.Background(), "worker", 0, nil, nil)
	require.NoError(t, err)
	other, err := o.SpawnAgent(context.Background(), "worker", 1, nil, nil)
	require.NoError(t, err)

	msg, _ := wire.New(wire.KindEvent, sender.ID(), "", nil)
	o.BroadcastMessage(msg)

	assert.Empty(t, o.GetMessages(sender.ID(), 10))
	assert.Len(t, o.GetMessages(other.ID(), 10), 1)
}

func TestGetStatsCountsAgentsAndTasks(t *testing.T) {
	o := newTestOrchestrator(t)
	_, err := o.SpawnAgent(context.Background(), "worker", 0, nil, nil)
	require.NoError(t, err)
	_, err = o.SubmitTask(scheduler.Task{})
	require.NoError(t, err)

	stats := o.GetStats()
	assert.Equal(t, 3, stats.AgentsTotal) // spawned worker + root supervisor + document coordinator
	assert.Equal(t, 1, stats.TasksTotal)
	assert.Equal(t, 1, stats.TasksPending)
}

func TestHousekeepingSweepDiscardsStaleMessages(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxAgents = 2
	cfg.HousekeepingIntervalMs = 20
	cfg.RetentionMs = 1
	o := New(cfg)
	require.NoError(t, o.Start(context.Background()))
	defer o.Stop(context.Background())

	var handled atomic.Int32
	blockFirst := make(chan struct{})
	a, err := o.SpawnAgent(context.Background(), "worker", 0, nil, nil)
	require.NoError(t, err)
	a.RegisterHandler(wire.KindUser, func(context.Context, *wire.Message) error {
		if handled.Add(1) == 1 {
			<-blockFirst
		}
		return nil
	})

	msg1, _ := wire.New(wire.KindUser, "caller", a.ID(), nil)
	a.Send(msg1)
	waitFor(t, func() bool { return handled.Load() == 1 })

	msg2, _ := wire.New(wire.KindUser, "caller", a.ID(), nil)
	a.Send(msg2)
	time.Sleep(50 * time.Millisecond) // msg2 ages past the 1ms retention window
	waitFor(t, func() bool { return a.MailboxLen() == 0 })

	close(blockFirst)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), handled.Load())
}
