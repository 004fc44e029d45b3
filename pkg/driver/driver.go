// Package driver implements the peer-to-peer messaging driver: unicast send
// to a named peer, broadcast to all subscribed peers, and a multiplexed
// blocking receive stream, over a pluggable transport.
//
// A process binds two inbound endpoints at construction (unicast and
// broadcast, each on an OS-assigned port), publishes their addresses through
// Address, connects outbound endpoints to discovered peers via Connect, and
// then exchanges messages with Send/Broadcast/Receive. Discovery itself and
// payload semantics belong to the layer above.
package driver

import (
	"context"
	"errors"
	"iter"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"peerbus/pkg/codec"
	"peerbus/pkg/protocol"
	"peerbus/pkg/registry"
	"peerbus/pkg/transport"
)

// NoTimeout disables the corresponding send or receive bound.
const NoTimeout time.Duration = -1

// Options configures a Driver. The zero value is usable: tcp transport, CBOR
// codec, no timeouts, no-op logger.
type Options struct {
	// Protocol identifies the transport ("tcp", "quic", "mem").
	Protocol string
	// SendTimeout bounds each unicast/broadcast write. Zero or negative
	// means no timeout.
	SendTimeout time.Duration
	// ReceiveTimeout bounds each multiplexed wait. Zero or negative means
	// no timeout; an elapsed wait is retried, not an error.
	ReceiveTimeout time.Duration
	// Codec serializes messages end-to-end. Must be symmetric across peers.
	Codec codec.Codec
	// Logger defaults to zap.NewNop.
	Logger *zap.Logger
}

type subscriber struct {
	peer string
	conn transport.Conn
}

// Driver owns all endpoints exclusively. Send on distinct peers may proceed
// concurrently; concurrent Broadcast, or Send on the same peer from multiple
// goroutines, needs external synchronization.
type Driver struct {
	sendTimeout time.Duration
	recvTimeout time.Duration
	codec       codec.Codec
	log         *zap.Logger
	tr          transport.Transport
	reg         *registry.Registry
	p           *poller

	ctx    context.Context
	cancel context.CancelFunc

	uniListener   transport.Listener
	bcastListener transport.Listener

	mu         sync.RWMutex
	unicastOut map[string]transport.Conn
	bcastOut   []subscriber
	closed     bool
}

// New binds the two inbound endpoints, records their addresses, and starts
// the inbound pumps. No network I/O to peers happens here. Port binding
// failure is fatal; there is no fallback port range.
func New(opts Options) (*Driver, error) {
	if opts.Protocol == "" {
		opts.Protocol = "tcp"
	}
	tr, err := transport.New(opts.Protocol)
	if err != nil {
		return nil, err
	}
	c := opts.Codec
	if c == nil {
		if c, err = codec.CBOR(); err != nil {
			return nil, err
		}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Driver{
		sendTimeout: opts.SendTimeout,
		recvTimeout: opts.ReceiveTimeout,
		codec:       c,
		log:         log,
		tr:          tr,
		reg:         registry.New(),
		p:           newPoller(),
		ctx:         ctx,
		cancel:      cancel,
		unicastOut:  make(map[string]transport.Conn),
	}

	bind := d.bindAddress()
	if d.uniListener, err = tr.Listen(ctx, bind); err != nil {
		cancel()
		return nil, err
	}
	if d.bcastListener, err = tr.Listen(ctx, bind); err != nil {
		_ = d.uniListener.Close()
		cancel()
		return nil, err
	}

	uniAddr := d.uniListener.Addr().String()
	bcastAddr := d.bcastListener.Addr().String()
	d.reg.SetOwnAddress(protocol.UnicastInbound, uniAddr)
	d.reg.SetOwnAddress(protocol.BroadcastInbound, bcastAddr)
	log.Debug("inbound endpoints bound",
		zap.String("unicast", uniAddr),
		zap.String("broadcast", bcastAddr))

	go d.acceptLoop(d.uniListener, protocol.UnicastInbound)
	go d.acceptLoop(d.bcastListener, protocol.BroadcastInbound)
	return d, nil
}

// bindAddress picks the local listen address: the host's reachable IP with an
// OS-assigned port, or the transport's own ephemeral form for mem.
func (d *Driver) bindAddress() string {
	if d.tr.Kind() == transport.KindMem {
		return ""
	}
	return net.JoinHostPort(localIP(), "0")
}

// Address returns the process's bound address per inbound channel kind, for
// distribution to peers by the external discovery collaborator.
func (d *Driver) Address() protocol.AddressMap {
	return d.reg.OwnAddresses()
}

// Registry exposes the address/peer bookkeeping for inspection.
func (d *Driver) Registry() *registry.Registry { return d.reg }

// Connect dials outbound endpoints for every peer in the table: a dedicated
// unicast endpoint per peer advertising UnicastInbound, and one more
// subscriber on the shared broadcast fan-out per peer advertising
// BroadcastInbound. A failure aborts the call; peers connected before the
// failure stay connected; there is no rollback across peers.
func (d *Driver) Connect(peers protocol.PeerAddressTable) error {
	for peerName, addrs := range peers {
		for kind, addr := range addrs {
			switch kind {
			case protocol.UnicastInbound:
				conn, err := d.dial(addr)
				if err != nil {
					return &PeerConnectionError{Peer: peerName, Err: err}
				}
				d.mu.Lock()
				if old := d.unicastOut[peerName]; old != nil {
					_ = old.Close()
				}
				d.unicastOut[peerName] = conn
				d.mu.Unlock()
				d.log.Debug("connected to peer via unicast",
					zap.String("peer", peerName), zap.String("addr", addr))
			case protocol.BroadcastInbound:
				conn, err := d.dial(addr)
				if err != nil {
					return &PeerConnectionError{Peer: peerName, Err: err}
				}
				d.mu.Lock()
				d.bcastOut = append(d.bcastOut, subscriber{peer: peerName, conn: conn})
				d.mu.Unlock()
				d.log.Debug("connected to peer via broadcast",
					zap.String("peer", peerName), zap.String("addr", addr))
			default:
				return &ChannelKindError{Kind: kind}
			}
		}
		d.reg.RecordPeer(peerName, addrs)
	}
	return nil
}

func (d *Driver) dial(addr string) (transport.Conn, error) {
	ctx := d.ctx
	if d.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.sendTimeout)
		defer cancel()
	}
	conn, err := d.tr.Dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	go func() { <-d.ctx.Done(); _ = conn.Close() }()
	return conn, nil
}

// Send writes the message to the destination peer's unicast endpoint, subject
// to the send timeout. An unknown destination is a SendError wrapping
// ErrPeerNotConnected, never a silent no-op.
func (d *Driver) Send(msg protocol.Message) error {
	d.mu.RLock()
	conn := d.unicastOut[msg.Destination]
	d.mu.RUnlock()
	if conn == nil {
		return &SendError{Destination: msg.Destination, Err: ErrPeerNotConnected}
	}
	frame, err := d.codec.Marshal(msg)
	if err != nil {
		return &SendError{Destination: msg.Destination, Err: err}
	}
	if err := d.write(conn, frame); err != nil {
		return &SendError{Destination: msg.Destination, Err: err}
	}
	d.reg.RecordExchange(msg.Destination, uint64(len(frame)))
	d.log.Debug("sent message",
		zap.String("tag", msg.Tag), zap.String("dest", msg.Destination))
	return nil
}

// Broadcast writes the message to every connected subscriber, subject to the
// send timeout. Per-subscriber failures are joined into one SendError;
// delivery to healthy subscribers still happens.
func (d *Driver) Broadcast(msg protocol.Message) error {
	frame, err := d.codec.Marshal(msg)
	if err != nil {
		return &SendError{Err: err}
	}
	d.mu.RLock()
	subs := make([]subscriber, len(d.bcastOut))
	copy(subs, d.bcastOut)
	d.mu.RUnlock()

	var errs []error
	for _, s := range subs {
		if err := d.write(s.conn, frame); err != nil {
			errs = append(errs, &PeerConnectionError{Peer: s.peer, Err: err})
			continue
		}
		d.reg.RecordExchange(s.peer, uint64(len(frame)))
	}
	if len(errs) > 0 {
		return &SendError{Err: errors.Join(errs...)}
	}
	d.log.Debug("broadcast message",
		zap.String("tag", msg.Tag), zap.Int("subscribers", len(subs)))
	return nil
}

func (d *Driver) write(conn transport.Conn, frame []byte) error {
	if d.sendTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(d.sendTimeout)); err != nil {
			return err
		}
	}
	return conn.SendBytes(frame)
}

// Receive returns a lazy blocking sequence of inbound messages, multiplexed
// across both inbound endpoints. Each pull waits up to the receive timeout;
// an elapsed wait retries silently. A failed wait yields one ReceiveError and
// ends the sequence. With continuous=false the sequence yields at most one
// message; it is not restartable. The caller stops a continuous sequence by
// breaking out of the range loop.
func (d *Driver) Receive(continuous bool) iter.Seq2[protocol.Message, error] {
	return func(yield func(protocol.Message, error) bool) {
		for {
			frame, kind, ok, err := d.p.poll(d.recvTimeout)
			if err != nil {
				yield(protocol.Message{}, &ReceiveError{Err: err})
				return
			}
			if !ok {
				continue // timeout: no event, keep waiting
			}
			var msg protocol.Message
			if err := d.codec.Unmarshal(frame, &msg); err != nil {
				yield(protocol.Message{}, &ReceiveError{Err: err})
				return
			}
			d.log.Debug("received message",
				zap.String("source", msg.Source), zap.Stringer("channel", kind))
			if !yield(msg, nil) {
				return
			}
			if !continuous {
				return
			}
		}
	}
}

// ReceiveOnce blocks for the next single message.
func (d *Driver) ReceiveOnce() (protocol.Message, error) {
	for msg, err := range d.Receive(false) {
		return msg, err
	}
	return protocol.Message{}, &ReceiveError{Err: ErrClosed}
}

// Close tears down both listeners and every inbound and outbound endpoint.
// Pending and subsequent Receive pulls terminate with a ReceiveError.
// Idempotent.
func (d *Driver) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	conns := make([]transport.Conn, 0, len(d.unicastOut)+len(d.bcastOut))
	for _, c := range d.unicastOut {
		conns = append(conns, c)
	}
	for _, s := range d.bcastOut {
		conns = append(conns, s.conn)
	}
	d.mu.Unlock()

	d.cancel()
	d.p.close()
	err := d.uniListener.Close()
	if e := d.bcastListener.Close(); err == nil {
		err = e
	}
	for _, c := range conns {
		_ = c.Close()
	}
	return err
}

// acceptLoop accepts inbound connections for one endpoint and starts a reader
// pump per connection. A listener failure after construction is fatal to the
// receive sequence.
func (d *Driver) acceptLoop(l transport.Listener, kind protocol.ChannelKind) {
	for {
		conn, err := l.Accept(d.ctx)
		if err != nil {
			if d.ctx.Err() == nil {
				d.p.fail(err)
			}
			return
		}
		go func() { <-d.ctx.Done(); _ = conn.Close() }()
		go d.readLoop(conn, kind)
	}
}

// readLoop pumps frames from one inbound connection into the poller. A read
// failure only ends that connection; the peer may reconnect.
func (d *Driver) readLoop(conn transport.Conn, kind protocol.ChannelKind) {
	defer conn.Close()
	for {
		frame, err := conn.RecvBytes()
		if err != nil {
			if d.ctx.Err() == nil {
				d.log.Debug("inbound connection closed",
					zap.Stringer("channel", kind), zap.Error(err))
			}
			return
		}
		if !d.p.push(kind, frame) {
			return
		}
	}
}
