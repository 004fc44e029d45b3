package mem

import (
	"bytes"
	"context"
	"testing"
)

func TestEphemeralNames(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr := New()
	l1, err := tr.Listen(ctx, "")
	if err != nil {
		t.Fatalf("listen 1: %v", err)
	}
	defer l1.Close()
	l2, err := tr.Listen(ctx, "")
	if err != nil {
		t.Fatalf("listen 2: %v", err)
	}
	defer l2.Close()
	if l1.Addr().String() == l2.Addr().String() {
		t.Fatalf("ephemeral names collide: %s", l1.Addr())
	}
}

func TestDuplicateNameRejected(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr := New()
	l, err := tr.Listen(ctx, "dup-test")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	if _, err := tr.Listen(ctx, "dup-test"); err == nil {
		t.Fatalf("expected duplicate listener error")
	}
}

func TestDialUnknownName(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr := New()
	if _, err := tr.Dial(ctx, "no-such-listener"); err == nil {
		t.Fatalf("expected dial error for unknown name")
	}
}

func TestFrameRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr := New()
	l, err := tr.Listen(ctx, "")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()

	type recvRes struct {
		b   []byte
		err error
	}
	got := make(chan recvRes, 1)
	go func() {
		c, err := l.Accept(ctx)
		if err != nil {
			got <- recvRes{err: err}
			return
		}
		b, err := c.RecvBytes()
		got <- recvRes{b: b, err: err}
	}()

	dialed, err := tr.Dial(ctx, l.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer dialed.Close()

	want := []byte{0x00, 0x01, 0xFE, 0xFF}
	if err := dialed.SendBytes(want); err != nil {
		t.Fatalf("send: %v", err)
	}
	res := <-got
	if res.err != nil {
		t.Fatalf("recv: %v", res.err)
	}
	if !bytes.Equal(res.b, want) {
		t.Fatalf("frame mismatch: %x != %x", res.b, want)
	}
}
