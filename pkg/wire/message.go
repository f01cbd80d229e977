// Package wire defines the canonical inter-agent message envelope and its
// closed set of kinds. Per the design notes, opaque payloads are modelled as
// tagged variants over this closed kind set rather than raw bytes parsed at
// the destination; LOCK_* and DOC_* payloads carry typed section indices.
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/cuemby/conclave/pkg/ids"
)

// Message is one inter-agent message. To == "" means broadcast.
type Message struct {
	ID           string          `json:"id"`
	From         string          `json:"from"`
	To           string          `json:"to,omitempty"`
	Kind         Kind            `json:"kind"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Subject      string          `json:"subject,omitempty"`
	Conversation string          `json:"conversation,omitempty"`
	Priority     int             `json:"priority"`
	Timestamp    int64           `json:"timestamp_ms"`
}

// TimestampMs implements mailbox.Message.
func (m *Message) TimestampMs() int64 { return m.Timestamp }

// IsBroadcast reports whether the message has no specific recipient.
func (m *Message) IsBroadcast() bool { return m.To == "" }

// New builds a Message with a fresh id and timestamp. payload may be nil,
// in which case Payload is left empty.
func New(kind Kind, from, to string, payload any) (*Message, error) {
	msg := &Message{
		ID:        ids.NewMessageID(),
		From:      from,
		To:        to,
		Kind:      kind,
		Priority:  0,
		Timestamp: ids.NowMillis(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("wire: marshal payload for kind %s: %w", kind, err)
		}
		msg.Payload = raw
	}
	return msg, nil
}

// Encode serialises a Message to JSON.
func Encode(m *Message) ([]byte, error) {
	return json.Marshal(m)
}

// DecodeMessage deserialises a Message from JSON.
func DecodeMessage(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("wire: decode message: %w", err)
	}
	return &m, nil
}

// DecodePayload unmarshals m's payload into a value of type T.
func DecodePayload[T any](m *Message) (T, error) {
	var v T
	if len(m.Payload) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(m.Payload, &v); err != nil {
		return v, fmt.Errorf("wire: decode payload for kind %s: %w", m.Kind, err)
	}
	return v, nil
}
