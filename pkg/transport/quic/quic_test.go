package quic

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestFrameRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
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

	// The listener surfaces the connection once the dialer's stream opens;
	// the first frame forces the stream open on the wire.
	want := []byte("hello over quic")
	if err := dialed.SendBytes(want); err != nil {
		t.Fatalf("send: %v", err)
	}

	accepted, err := l.Accept(ctx)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	defer accepted.Close()

	got, err := accepted.RecvBytes()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("frame mismatch: %q != %q", got, want)
	}

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
