// Package transport defines the pluggable transport layer underneath the
// messaging driver and provides implementations (tcp, quic, mem).
//
// Key concepts:
// - Transport: dials/listens for framed connections of a specific Kind
// - Listener: accepts inbound connections
// - Conn: a bidirectional frame channel (length-prefixed byte frames)
//
// A Conn carries opaque frames; the driver layers its message codec on top.
package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"
)

// Kind identifies the transport/link type.
type Kind int

const (
	KindUnknown Kind = iota
	KindTCP
	KindQUIC
	KindMem
)

func (k Kind) String() string {
	switch k {
	case KindTCP:
		return "tcp"
	case KindQUIC:
		return "quic"
	case KindMem:
		return "mem"
	default:
		return "unknown"
	}
}

// Conn is a bidirectional frame channel to one remote endpoint.
// SendBytes is safe for concurrent use; RecvBytes expects a single reader.
type Conn interface {
	// SendBytes sends one frame as opaque bytes.
	SendBytes([]byte) error
	// RecvBytes receives the next frame and returns its bytes.
	RecvBytes() ([]byte, error)
	// SetWriteDeadline bounds subsequent SendBytes calls. The zero time
	// means no deadline.
	SetWriteDeadline(t time.Time) error
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
	Close() error
}

// Listener accepts inbound connections.
type Listener interface {
	// Accept blocks until an inbound connection is available or ctx is done.
	Accept(ctx context.Context) (Conn, error)
	// Addr returns the local listening address.
	Addr() net.Addr
	// Close stops the listener and unblocks Accept.
	Close() error
}

// Transport provides dialing/listening for a specific link kind.
type Transport interface {
	Kind() Kind
	// Listen starts accepting inbound connections on address
	// (transport-specific format; tcp/quic accept "host:0" for an
	// OS-assigned port).
	Listen(ctx context.Context, address string) (Listener, error)
	// Dial creates an outbound connection to address.
	Dial(ctx context.Context, address string) (Conn, error)
}

// Factory builds a Transport instance for a protocol identifier.
type Factory func() Transport

var (
	facMu     sync.RWMutex
	factories = map[string]Factory{}
)

// RegisterFactory makes a transport constructible by protocol name.
// Implementations register themselves from init.
func RegisterFactory(name string, f Factory) {
	facMu.Lock()
	defer facMu.Unlock()
	factories[name] = f
}

// New resolves a protocol identifier ("tcp", "quic", "mem") to a fresh
// Transport. Unknown protocols are an error, surfaced at driver construction.
func New(protocol string) (Transport, error) {
	facMu.RLock()
	f := factories[protocol]
	facMu.RUnlock()
	if f == nil {
		return nil, fmt.Errorf("transport: unknown protocol %q", protocol)
	}
	return f(), nil
}
