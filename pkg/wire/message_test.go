package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original, err := New(KindLockRequest, "agent-1", "coordinator", LockRequestPayload{SectionIndex: 3})
	require.NoError(t, err)
	original.Subject = "section lock"
	original.Conversation = "conv-1"
	original.Priority = 5

	data, err := Encode(original)
	require.NoError(t, err)

	decoded, err := DecodeMessage(data)
	require.NoError(t, err)

	assert.Equal(t, original.ID, decoded.ID)
	assert.Equal(t, original.From, decoded.From)
	assert.Equal(t, original.To, decoded.To)
	assert.Equal(t, original.Kind, decoded.Kind)
	assert.Equal(t, original.Subject, decoded.Subject)
	assert.Equal(t, original.Conversation, decoded.Conversation)
	assert.Equal(t, original.Priority, decoded.Priority)
	assert.Equal(t, original.Timestamp, decoded.Timestamp)

	payload, err := DecodePayload[LockRequestPayload](decoded)
	require.NoError(t, err)
	assert.Equal(t, 3, payload.SectionIndex)
}

func TestBroadcastHasNoRecipient(t *testing.T) {
	msg, err := New(KindEvent, "agent-1", "", nil)
	require.NoError(t, err)
	assert.True(t, msg.IsBroadcast())
}

func TestKindStringLowerSnakeCase(t *testing.T) {
	assert.Equal(t, "heartbeat_ack", KindHeartbeatAck.String())
	assert.Equal(t, "lock_acquired", KindLockAcquired.String())
}

func TestKindValid(t *testing.T) {
	assert.True(t, KindTask.Valid())
	assert.False(t, Kind("NOT_A_KIND").Valid())
}
