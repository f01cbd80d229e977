package breaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOpensAfterFailureThreshold(t *testing.T) {
	b := New(Config{FailureThreshold: 5, SuccessThreshold: 2, OpenTimeout: 30 * time.Second})
	now := time.Now()

	for i := 0; i < 4; i++ {
		assert.True(t, b.AllowRequest(now))
		b.RecordFailure(now)
		assert.Equal(t, Closed, b.State())
	}
	assert.True(t, b.AllowRequest(now))
	b.RecordFailure(now)
	assert.Equal(t, Open, b.State())
	assert.False(t, b.AllowRequest(now))
}

func TestHalfOpenAfterTimeoutThenRecovers(t *testing.T) {
	b := New(Config{FailureThreshold: 1, SuccessThreshold: 2, OpenTimeout: time.Second})
	t0 := time.Now()
	assert.True(t, b.AllowRequest(t0))
	b.RecordFailure(t0)
	assert.Equal(t, Open, b.State())

	assert.False(t, b.AllowRequest(t0.Add(500*time.Millisecond)))

	probeTime := t0.Add(2 * time.Second)
	assert.True(t, b.AllowRequest(probeTime))
	assert.Equal(t, HalfOpen, b.State())

	b.RecordSuccess()
	assert.Equal(t, HalfOpen, b.State())
	b.RecordSuccess()
	assert.Equal(t, Closed, b.State())
}

func TestHalfOpenFailureReopens(t *testing.T) {
	b := New(Config{FailureThreshold: 1, SuccessThreshold: 2, OpenTimeout: time.Second})
	t0 := time.Now()
	b.AllowRequest(t0)
	b.RecordFailure(t0)

	probeTime := t0.Add(2 * time.Second)
	b.AllowRequest(probeTime)
	assert.Equal(t, HalfOpen, b.State())

	b.RecordFailure(probeTime)
	assert.Equal(t, Open, b.State())
}

func TestClosedSuccessResetsFailureCount(t *testing.T) {
	b := New(Config{FailureThreshold: 3, SuccessThreshold: 2, OpenTimeout: time.Second})
	now := time.Now()
	b.RecordFailure(now)
	b.RecordFailure(now)
	b.RecordSuccess()
	snap := b.Snapshot()
	assert.Equal(t, 0, snap.FailureCount)
}
