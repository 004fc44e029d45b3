package tcp

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestFrameRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr := New()
	l, err := tr.Listen(ctx, "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()

	dialed, err := tr.Dial(ctx, l.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer dialed.Close()

	accepted, err := l.Accept(ctx)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	defer accepted.Close()

	want := []byte("hello over tcp")
	if err := dialed.SendBytes(want); err != nil {
		t.Fatalf("send: %v", err)
	}
	got, err := accepted.RecvBytes()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("frame mismatch: %q != %q", got, want)
	}

	// and back the other way
	if err := accepted.SendBytes([]byte("pong")); err != nil {
		t.Fatalf("send back: %v", err)
	}
	got, err = dialed.RecvBytes()
	if err != nil {
		t.Fatalf("recv back: %v", err)
	}
	if string(got) != "pong" {
		t.Fatalf("frame mismatch: %q", got)
	}
}

func TestEmptyFrame(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr := New()
	l, err := tr.Listen(ctx, "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()

	dialed, err := tr.Dial(ctx, l.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer dialed.Close()
	accepted, err := l.Accept(ctx)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	defer accepted.Close()

	if err := dialed.SendBytes(nil); err != nil {
		t.Fatalf("send empty: %v", err)
	}
	got, err := accepted.RecvBytes()
	if err != nil {
		t.Fatalf("recv empty: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("want empty frame, got %d bytes", len(got))
	}
}

func TestAcceptUnblocksOnClose(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr := New()
	l, err := tr.Listen(ctx, "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := l.Accept(context.Background())
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	_ = l.Close()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected error from Accept after Close")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Accept did not unblock after Close")
	}
}
