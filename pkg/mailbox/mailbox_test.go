package mailbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type testMsg struct {
	id string
	ts int64
}

func (m testMsg) TimestampMs() int64 { return m.ts }

func TestFIFOOrder(t *testing.T) {
	mb := New(10)
	mb.Send(testMsg{id: "a", ts: 1})
	mb.Send(testMsg{id: "b", ts: 2})
	mb.Send(testMsg{id: "c", ts: 3})

	m1, ok := mb.TryReceive()
	assert.True(t, ok)
	assert.Equal(t, "a", m1.(testMsg).id)

	m2, _ := mb.TryReceive()
	assert.Equal(t, "b", m2.(testMsg).id)

	m3, _ := mb.TryReceive()
	assert.Equal(t, "c", m3.(testMsg).id)
}

func TestDropOldestOnOverflow(t *testing.T) {
	mb := New(2)
	mb.Send(testMsg{id: "a", ts: 1})
	mb.Send(testMsg{id: "b", ts: 2})
	mb.Send(testMsg{id: "c", ts: 3})

	assert.Equal(t, 2, mb.Len())
	assert.Equal(t, int64(1), mb.Dropped())

	m1, _ := mb.TryReceive()
	assert.Equal(t, "b", m1.(testMsg).id)
}

func TestReceiveBlocksThenUnblocks(t *testing.T) {
	mb := New(10)
	done := make(chan testMsg, 1)
	go func() {
		msg, ok := mb.Receive(time.Second)
		if ok {
			done <- msg.(testMsg)
		}
	}()

	time.Sleep(20 * time.Millisecond)
	mb.Send(testMsg{id: "x", ts: 1})

	select {
	case msg := <-done:
		assert.Equal(t, "x", msg.id)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestReceiveTimesOut(t *testing.T) {
	mb := New(10)
	_, ok := mb.Receive(20 * time.Millisecond)
	assert.False(t, ok)
}

func TestDiscardOlderThan(t *testing.T) {
	mb := New(10)
	mb.Send(testMsg{id: "old", ts: 100})
	mb.Send(testMsg{id: "new", ts: 500})

	discarded := mb.DiscardOlderThan(300)
	assert.Equal(t, 1, discarded)
	assert.Equal(t, 1, mb.Len())

	m, _ := mb.TryReceive()
	assert.Equal(t, "new", m.(testMsg).id)
}
