// Package protocol defines the message model and the channel-kind vocabulary
// shared between the driver and the external discovery collaborator.
package protocol

import (
	"crypto/rand"
	"encoding/hex"
	"io"
	"time"
)

// Message is the unit of exchange between peers. The driver treats it as an
// immutable, fully-serializable value; payload semantics belong to the caller.
type Message struct {
	// Source names the sending peer.
	Source string `json:"source" cbor:"1,keyasint"`
	// Destination names the target peer. Meaningful for unicast only;
	// ignored for broadcast.
	Destination string `json:"destination,omitempty" cbor:"2,keyasint,omitempty"`
	// Tag is the kind discriminator used for routing decisions by the caller.
	Tag string `json:"tag" cbor:"3,keyasint"`
	// SessionID groups messages belonging to one logical conversation.
	SessionID string `json:"session_id,omitempty" cbor:"4,keyasint,omitempty"`
	// MessageID uniquely identifies this message.
	MessageID string `json:"message_id" cbor:"5,keyasint"`
	// SentAt is the send timestamp in unix milliseconds, set by NewMessage.
	SentAt int64 `json:"sent_at_unix_ms,omitempty" cbor:"6,keyasint,omitempty"`
	// Payload is the opaque application payload.
	Payload []byte `json:"payload,omitempty" cbor:"7,keyasint,omitempty"`
}

// NewMessage builds a Message with a fresh MessageID and timestamp.
func NewMessage(tag, source, destination string, payload []byte) Message {
	return Message{
		Source:      source,
		Destination: destination,
		Tag:         tag,
		MessageID:   NewMessageID(),
		SentAt:      time.Now().UnixMilli(),
		Payload:     payload,
	}
}

// NewMessageID generates a random 16-byte id, hex encoded.
func NewMessageID() string {
	var b [16]byte
	if _, err := io.ReadFull(rand.Reader, b[:]); err != nil {
		return ""
	}
	return hex.EncodeToString(b[:])
}
