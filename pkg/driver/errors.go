package driver

import (
	"errors"
	"fmt"

	"peerbus/pkg/protocol"
)

// Sentinel errors surfaced through the typed errors below.
var (
	// ErrPeerNotConnected means a send named a destination that was never
	// passed to Connect.
	ErrPeerNotConnected = errors.New("peer not connected")
	// ErrClosed means the driver has been closed.
	ErrClosed = errors.New("driver closed")
)

// ChannelKindError reports an unrecognized channel-kind discriminator
// supplied to Connect.
type ChannelKindError struct {
	Kind protocol.ChannelKind
}

func (e *ChannelKindError) Error() string {
	return fmt.Sprintf("unrecognized channel kind %d", int(e.Kind))
}

// PeerConnectionError reports a failed outbound connection to one peer's
// advertised address. Peers processed before the failure stay connected.
type PeerConnectionError struct {
	Peer string
	Err  error
}

func (e *PeerConnectionError) Error() string {
	return fmt.Sprintf("cannot connect to peer %s: %v", e.Peer, e.Err)
}

func (e *PeerConnectionError) Unwrap() error { return e.Err }

// SendError reports a failed unicast or broadcast write, or an unknown
// destination. It is returned, never panicked, so callers can retry or log.
type SendError struct {
	// Destination is the target peer name; empty for broadcast.
	Destination string
	Err         error
}

func (e *SendError) Error() string {
	if e.Destination == "" {
		return fmt.Sprintf("broadcast failed: %v", e.Err)
	}
	return fmt.Sprintf("send to %s failed: %v", e.Destination, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// ReceiveError reports that the multiplexed wait itself failed (not a
// timeout). It terminates the receive sequence.
type ReceiveError struct {
	Err error
}

func (e *ReceiveError) Error() string { return fmt.Sprintf("receive failed: %v", e.Err) }

func (e *ReceiveError) Unwrap() error { return e.Err }
