package knowledge

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cuemby/conclave/pkg/agent"
	"github.com/cuemby/conclave/pkg/registry"
	"github.com/cuemby/conclave/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutAssignsMonotonicVersions(t *testing.T) {
	b := New()
	b.Put("api_design", "v1", "a1", nil)
	b.Put("api_design", "v2", "a1", nil)

	hist := b.History("api_design")
	require.Len(t, hist, 2)
	assert.Equal(t, 1, hist[0].Version)
	assert.Equal(t, 2, hist[1].Version)

	latest, ok := b.Get("api_design")
	require.True(t, ok)
	assert.Equal(t, 2, latest.Version)
	assert.Equal(t, "v2", latest.Value)
}

func TestGetMissingKeyNotFound(t *testing.T) {
	b := New()
	_, ok := b.Get("missing")
	assert.False(t, ok)
}

func TestQueryRequiresAllTags(t *testing.T) {
	b := New()
	b.Put("a", "1", "x", []string{"go", "backend"})
	b.Put("b", "2", "x", []string{"go"})
	b.Put("c", "3", "x", []string{"go", "backend", "urgent"})

	results := b.Query([]string{"go", "backend"})
	keys := make(map[string]bool)
	for _, e := range results {
		keys[e.Key] = true
		for _, want := range []string{"go", "backend"} {
			assert.Contains(t, e.Tags, want)
		}
	}
	assert.True(t, keys["a"])
	assert.True(t, keys["c"])
	assert.False(t, keys["b"])
}

func TestSubscribeUnsubscribeIdempotent(t *testing.T) {
	b := New()
	b.Subscribe("k", "agent1")
	b.Subscribe("k", "agent1")
	assert.Len(t, b.subscribers["k"], 1)

	b.Unsubscribe("k", "agent1")
	b.Unsubscribe("k", "agent1")
	assert.Len(t, b.subscribers["k"], 0)
}

func TestSubscriberNotifiedExactlyTwice(t *testing.T) {
	r := registry.New()
	b := New()
	b.SetRouter(r)

	subscriber := agent.New(agent.Config{ID: "x", Role: "subscriber"})
	var count atomic.Int32
	subscriber.RegisterHandler(wire.KindEvent, func(context.Context, *wire.Message) error {
		count.Add(1)
		return nil
	})
	require.NoError(t, r.RegisterAgent(subscriber))
	require.NoError(t, subscriber.Start(context.Background()))
	defer subscriber.Stop(context.Background())

	b.Subscribe("api_design", "x")
	b.Put("api_design", "v1", "contributor", nil)
	b.Put("api_design", "v2", "contributor", nil)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && count.Load() < 2 {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, int32(2), count.Load())

	latest, ok := b.Get("api_design")
	require.True(t, ok)
	assert.Equal(t, 2, latest.Version)
}

func TestExportImportRoundTrip(t *testing.T) {
	b := New()
	b.Put("a", "1", "x", []string{"t1"})
	b.Put("a", "2", "x", []string{"t1"})
	b.Put("b", "1", "y", nil)

	exported := b.Export()

	b2 := New()
	require.NoError(t, b2.Import(exported))

	for _, key := range []string{"a", "b"} {
		want := b.History(key)
		got := b2.History(key)
		assert.Equal(t, want, got)
	}
}

func TestImportRejectsNonContiguousVersions(t *testing.T) {
	b := New()
	err := b.Import([]Entry{{Key: "a", Version: 2}})
	assert.Error(t, err)
}

func TestCountAcrossKeys(t *testing.T) {
	b := New()
	b.Put("a", "1", "x", nil)
	b.Put("a", "2", "x", nil)
	b.Put("b", "1", "x", nil)
	assert.Equal(t, 3, b.Count())
}
