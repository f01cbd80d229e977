package wire

import "strings"

// Kind is one of the canonical, wire-tagged message kinds. The set is
// closed: every message's Kind must be one of these.
type Kind string

const (
	KindUser         Kind = "USER"
	KindHeartbeat    Kind = "HEARTBEAT"
	KindHeartbeatAck Kind = "HEARTBEAT_ACK"
	KindShutdown     Kind = "SHUTDOWN"
	KindError        Kind = "ERROR"
	KindTask         Kind = "TASK"
	KindTaskResult   Kind = "TASK_RESULT"
	KindDocEdit      Kind = "DOC_EDIT"
	KindDocUpdate    Kind = "DOC_UPDATE"
	KindLockRequest  Kind = "LOCK_REQUEST"
	KindLockRelease  Kind = "LOCK_RELEASE"
	KindLockAcquired Kind = "LOCK_ACQUIRED"
	KindLockDenied   Kind = "LOCK_DENIED"
	KindRequest      Kind = "REQUEST"
	KindResponse     Kind = "RESPONSE"
	KindBroadcast    Kind = "BROADCAST"
	KindDirect       Kind = "DIRECT"
	KindEvent        Kind = "EVENT"
	KindConsensus    Kind = "CONSENSUS"
)

// Valid reports whether k is one of the canonical kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindUser, KindHeartbeat, KindHeartbeatAck, KindShutdown, KindError,
		KindTask, KindTaskResult, KindDocEdit, KindDocUpdate,
		KindLockRequest, KindLockRelease, KindLockAcquired, KindLockDenied,
		KindRequest, KindResponse, KindBroadcast, KindDirect, KindEvent,
		KindConsensus:
		return true
	default:
		return false
	}
}

// String returns the wire tag in lower_snake_case, matching the enum
// convention used on the HTTP/JSON facade.
func (k Kind) String() string {
	out := make([]byte, 0, len(k))
	for i := 0; i < len(k); i++ {
		c := k[i]
		if c >= 'A' && c <= 'Z' {
			out = append(out, c-'A'+'a')
		} else {
			out = append(out, c)
		}
	}
	return string(out)
}

// ParseKind parses the lower_snake_case wire form (as accepted over the
// HTTP/JSON facade) back into a Kind. It also accepts the canonical
// upper-case form for convenience.
func ParseKind(s string) (Kind, bool) {
	k := Kind(strings.ToUpper(s))
	if k.Valid() {
		return k, true
	}
	return "", false
}
