package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityAndDependencyDispatchOrder(t *testing.T) {
	s := New()
	require.NoError(t, s.Submit(Task{ID: "A", Priority: 10}))
	require.NoError(t, s.Submit(Task{ID: "B", Priority: 8, Dependencies: []string{"A"}}))
	require.NoError(t, s.Submit(Task{ID: "C", Priority: 9, Dependencies: []string{"A"}}))

	next, ok := s.GetNextTask(nil)
	require.True(t, ok)
	assert.Equal(t, "A", next.ID)

	_, ok = s.GetNextTask(nil)
	assert.False(t, ok)

	require.NoError(t, s.CompleteTask("A", Result{TaskID: "A", Success: true}))

	next, ok = s.GetNextTask(nil)
	require.True(t, ok)
	assert.Equal(t, "C", next.ID)

	next, ok = s.GetNextTask(nil)
	require.True(t, ok)
	assert.Equal(t, "B", next.ID)
}

func TestDuplicateSubmissionRejected(t *testing.T) {
	s := New()
	require.NoError(t, s.Submit(Task{ID: "A"}))
	err := s.Submit(Task{ID: "A", Description: "rewrite attempt"})
	assert.Error(t, err)

	got, _ := s.GetTask("A")
	assert.Empty(t, got.Description)
}

func TestUnknownDependencyNeverBecomesReady(t *testing.T) {
	s := New()
	require.NoError(t, s.Submit(Task{ID: "A", Dependencies: []string{"ghost"}}))

	_, ok := s.GetNextTask(nil)
	assert.False(t, ok)
}

func TestRoleMatchFiltersReadyQueue(t *testing.T) {
	s := New()
	require.NoError(t, s.Submit(Task{ID: "A", Priority: 5, RequiredRoles: []string{"reviewer"}}))
	require.NoError(t, s.Submit(Task{ID: "B", Priority: 1}))

	next, ok := s.GetNextTask([]string{"writer"})
	require.True(t, ok)
	assert.Equal(t, "B", next.ID)

	next, ok = s.GetNextTask([]string{"reviewer"})
	require.True(t, ok)
	assert.Equal(t, "A", next.ID)
}

func TestFailTaskLeavesDependentsBlocked(t *testing.T) {
	s := New()
	require.NoError(t, s.Submit(Task{ID: "A"}))
	require.NoError(t, s.Submit(Task{ID: "B", Dependencies: []string{"A"}}))
	_, _ = s.GetNextTask(nil) // dispatch A before it fails

	require.NoError(t, s.FailTask("A", "boom"))

	_, ok := s.GetNextTask(nil)
	assert.False(t, ok)

	result, ok := s.GetResult("A")
	require.True(t, ok)
	assert.False(t, result.Success)
	assert.Equal(t, "boom", result.Error)
}

func TestCancelTaskRemovesFromReadyQueue(t *testing.T) {
	s := New()
	require.NoError(t, s.Submit(Task{ID: "A"}))
	require.NoError(t, s.CancelTask("A"))

	_, ok := s.GetNextTask(nil)
	assert.False(t, ok)

	got, _ := s.GetTask("A")
	assert.Equal(t, StatusCancelled, got.Status)
}

func TestCompleteTaskPromotesEachDependentExactlyOnce(t *testing.T) {
	s := New()
	require.NoError(t, s.Submit(Task{ID: "A"}))
	require.NoError(t, s.Submit(Task{ID: "B", Dependencies: []string{"A"}}))
	_, _ = s.GetNextTask(nil) // drain A from ready queue

	require.NoError(t, s.CompleteTask("A", Result{TaskID: "A", Success: true}))

	next, ok := s.GetNextTask(nil)
	require.True(t, ok)
	assert.Equal(t, "B", next.ID)

	_, ok = s.GetNextTask(nil)
	assert.False(t, ok)
}

func TestGetPendingCount(t *testing.T) {
	s := New()
	require.NoError(t, s.Submit(Task{ID: "A"}))
	require.NoError(t, s.Submit(Task{ID: "B"}))
	assert.Equal(t, 2, s.GetPendingCount())

	require.NoError(t, s.UpdateStatus("A", StatusExecuting, "agent1"))
	assert.Equal(t, 1, s.GetPendingCount())
}
