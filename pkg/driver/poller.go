package driver

import (
	"time"

	"peerbus/pkg/protocol"
)

// poller multiplexes the two inbound endpoints. Reader pumps feed raw frames
// into per-endpoint channels; poll waits on both with a bounded timeout and
// checks unicast before broadcast when both hold data in the same cycle.
type poller struct {
	unicast   chan []byte
	broadcast chan []byte
	errCh     chan error
	closeCh   chan struct{}
}

const pollerDepth = 64

func newPoller() *poller {
	return &poller{
		unicast:   make(chan []byte, pollerDepth),
		broadcast: make(chan []byte, pollerDepth),
		errCh:     make(chan error, 1),
		closeCh:   make(chan struct{}),
	}
}

// fail records a fatal endpoint failure. The first failure wins; later ones
// are dropped.
func (p *poller) fail(err error) {
	select {
	case p.errCh <- err:
	default:
	}
}

// poll waits up to timeout for a frame on either endpoint. A zero or negative
// timeout blocks indefinitely. Returns ok=false with a nil error when the
// timeout elapsed with no data; the caller retries. A non-nil error means the
// wait itself failed and the receive sequence must terminate.
func (p *poller) poll(timeout time.Duration) (frame []byte, kind protocol.ChannelKind, ok bool, err error) {
	// Unicast takes precedence when already ready.
	select {
	case b := <-p.unicast:
		return b, protocol.UnicastInbound, true, nil
	default:
	}

	var timer *time.Timer
	var fire <-chan time.Time
	if timeout > 0 {
		timer = time.NewTimer(timeout)
		defer timer.Stop()
		fire = timer.C
	}

	select {
	case b := <-p.unicast:
		return b, protocol.UnicastInbound, true, nil
	case b := <-p.broadcast:
		return b, protocol.BroadcastInbound, true, nil
	case e := <-p.errCh:
		return nil, protocol.ChannelUnknown, false, e
	case <-p.closeCh:
		return nil, protocol.ChannelUnknown, false, ErrClosed
	case <-fire:
		return nil, protocol.ChannelUnknown, false, nil
	}
}

// push delivers one inbound frame to the endpoint channel, giving up when the
// poller closes.
func (p *poller) push(kind protocol.ChannelKind, frame []byte) bool {
	var ch chan []byte
	if kind == protocol.UnicastInbound {
		ch = p.unicast
	} else {
		ch = p.broadcast
	}
	select {
	case ch <- frame:
		return true
	case <-p.closeCh:
		return false
	}
}

func (p *poller) close() {
	select {
	case <-p.closeCh:
	default:
		close(p.closeCh)
	}
}
