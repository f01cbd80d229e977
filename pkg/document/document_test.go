package document

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/conclave/pkg/agent"
	"github.com/cuemby/conclave/pkg/registry"
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

type editor struct {
	*agent.Agent
	mu       sync.Mutex
	acquired []wire.LockAcquiredPayload
	denied   []wire.LockDeniedPayload
	updates  []wire.DocUpdatePayload
}

func newEditor(id string) *editor {
	e := &editor{Agent: agent.New(agent.Config{ID: id, Role: "editor"})}
	e.RegisterHandler(wire.KindLockAcquired, func(_ context.Context, msg *wire.Message) error {
		p, _ := wire.DecodePayload[wire.LockAcquiredPayload](msg)
		e.mu.Lock()
		e.acquired = append(e.acquired, p)
		e.mu.Unlock()
		return nil
	})
	e.RegisterHandler(wire.KindLockDenied, func(_ context.Context, msg *wire.Message) error {
		p, _ := wire.DecodePayload[wire.LockDeniedPayload](msg)
		e.mu.Lock()
		e.denied = append(e.denied, p)
		e.mu.Unlock()
		return nil
	})
	e.RegisterHandler(wire.KindDocUpdate, func(_ context.Context, msg *wire.Message) error {
		p, _ := wire.DecodePayload[wire.DocUpdatePayload](msg)
		e.mu.Lock()
		e.updates = append(e.updates, p)
		e.mu.Unlock()
		return nil
	})
	return e
}

func (e *editor) acquiredCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.acquired)
}

func (e *editor) deniedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.denied)
}

func (e *editor) updateCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.updates)
}

func setupCoordinator(t *testing.T, doc []byte) (*registry.Registry, *Coordinator) {
	r := registry.New()
	c := New("doc-1", doc)
	require.NoError(t, r.RegisterAgent(c.Agent()))
	c.SetRouter(r)
	require.NoError(t, c.Agent().Start(context.Background()))
	t.Cleanup(func() { c.Agent().Stop(context.Background()) })
	return r, c
}

func TestPartitionFixedWidth(t *testing.T) {
	assert.Len(t, partition(2500), 3)
	assert.Equal(t, Section{Start: 2000, End: 2500}, partition(2500)[2])
	assert.Len(t, partition(0), 1)
}

func TestLockRequestAcquireThenDenyThenReleaseThenRetry(t *testing.T) {
	r, _ := setupCoordinator(t, make([]byte, 2000))

	e1 := newEditor("e1")
	e2 := newEditor("e2")
	require.NoError(t, r.RegisterAgent(e1.Agent))
	require.NoError(t, r.RegisterAgent(e2.Agent))
	require.NoError(t, e1.Start(context.Background()))
	require.NoError(t, e2.Start(context.Background()))
	defer e1.Stop(context.Background())
	defer e2.Stop(context.Background())

	req1, _ := wire.New(wire.KindLockRequest, "e1", "doc-1", wire.LockRequestPayload{SectionIndex: 0})
	require.NoError(t, r.Route(req1))
	waitFor(t, func() bool { return e1.acquiredCount() == 1 })

	req2, _ := wire.New(wire.KindLockRequest, "e2", "doc-1", wire.LockRequestPayload{SectionIndex: 0})
	require.NoError(t, r.Route(req2))
	waitFor(t, func() bool { return e2.deniedCount() == 1 })

	release, _ := wire.New(wire.KindLockRelease, "e1", "doc-1", wire.LockReleasePayload{SectionIndex: 0})
	require.NoError(t, r.Route(release))

	retry, _ := wire.New(wire.KindLockRequest, "e2", "doc-1", wire.LockRequestPayload{SectionIndex: 0})
	require.NoError(t, r.Route(retry))
	waitFor(t, func() bool { return e2.acquiredCount() == 1 })
}

func TestDocEditRequiresLockAndBroadcastsExcludingSender(t *testing.T) {
	r, c := setupCoordinator(t, make([]byte, 1000))

	editorAgent := newEditor("e1")
	observer := newEditor("observer")
	require.NoError(t, r.RegisterAgent(editorAgent.Agent))
	require.NoError(t, r.RegisterAgent(observer.Agent))
	require.NoError(t, editorAgent.Start(context.Background()))
	require.NoError(t, observer.Start(context.Background()))
	defer editorAgent.Stop(context.Background())
	defer observer.Stop(context.Background())

	req, _ := wire.New(wire.KindLockRequest, "e1", "doc-1", wire.LockRequestPayload{SectionIndex: 0})
	require.NoError(t, r.Route(req))
	waitFor(t, func() bool { return editorAgent.acquiredCount() == 1 })

	edit, _ := wire.New(wire.KindDocEdit, "e1", "doc-1", wire.DocEditPayload{SectionIndex: 0, Bytes: []byte("hello")})
	require.NoError(t, r.Route(edit))

	waitFor(t, func() bool { return observer.updateCount() == 1 })
	assert.Equal(t, 0, editorAgent.updateCount())
	assert.Equal(t, []byte("hello"), c.Bytes()[:5])
}

func TestDocEditTruncatedToSectionWidth(t *testing.T) {
	_, c := setupCoordinator(t, make([]byte, 1000))
	c.mu.Lock()
	c.sections[0].LockedBy = "e1"
	c.mu.Unlock()

	payload := wire.DocEditPayload{SectionIndex: 0, Bytes: make([]byte, 5000)}
	for i := range payload.Bytes {
		payload.Bytes[i] = 'x'
	}
	msg, _ := wire.New(wire.KindDocEdit, "e1", "doc-1", payload)
	require.NoError(t, c.handleDocEdit(context.Background(), msg))
	assert.Len(t, c.Bytes(), 1000)
}

func TestDocEditWithoutLockFails(t *testing.T) {
	_, c := setupCoordinator(t, make([]byte, 1000))
	msg, _ := wire.New(wire.KindDocEdit, "e1", "doc-1", wire.DocEditPayload{SectionIndex: 0, Bytes: []byte("x")})
	err := c.handleDocEdit(context.Background(), msg)
	assert.Error(t, err)
}
