package driver

import (
	"testing"
	"time"

	"peerbus/pkg/protocol"
)

func TestPollTimeoutIsNotAnError(t *testing.T) {
	p := newPoller()
	defer p.close()

	start := time.Now()
	frame, _, ok, err := p.poll(20 * time.Millisecond)
	if err != nil {
		t.Fatalf("timeout must not be an error: %v", err)
	}
	if ok || frame != nil {
		t.Fatalf("timeout must not yield data")
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Fatalf("poll returned before the timeout elapsed")
	}
}

func TestPollUnicastPrecedence(t *testing.T) {
	p := newPoller()
	defer p.close()

	// Both endpoints hold data in the same cycle; unicast must win.
	if !p.push(protocol.BroadcastInbound, []byte("bcast")) {
		t.Fatalf("push broadcast failed")
	}
	if !p.push(protocol.UnicastInbound, []byte("uni")) {
		t.Fatalf("push unicast failed")
	}

	frame, kind, ok, err := p.poll(time.Second)
	if err != nil || !ok {
		t.Fatalf("poll: ok=%v err=%v", ok, err)
	}
	if kind != protocol.UnicastInbound || string(frame) != "uni" {
		t.Fatalf("unicast did not take precedence: kind=%v frame=%q", kind, frame)
	}

	frame, kind, ok, err = p.poll(time.Second)
	if err != nil || !ok {
		t.Fatalf("second poll: ok=%v err=%v", ok, err)
	}
	if kind != protocol.BroadcastInbound || string(frame) != "bcast" {
		t.Fatalf("broadcast lost: kind=%v frame=%q", kind, frame)
	}
}

func TestPollSurfacesFailure(t *testing.T) {
	p := newPoller()
	defer p.close()

	p.fail(ErrClosed)
	_, _, ok, err := p.poll(time.Second)
	if ok {
		t.Fatalf("failed poll must not yield data")
	}
	if err == nil {
		t.Fatalf("expected the recorded failure")
	}
}

func TestPollUnblocksOnClose(t *testing.T) {
	p := newPoller()

	done := make(chan error, 1)
	go func() {
		_, _, _, err := p.poll(NoTimeout)
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	p.close()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected error after close")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("poll did not unblock after close")
	}
}
