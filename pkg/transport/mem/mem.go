package mem

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"peerbus/pkg/transport"
)

// Transport is an in-process transport using net.Pipe. Useful for tests and
// as a stand-in for shared memory style transport. Listener addresses are
// process-global names of the form "mem:<n>"; Listen("") picks a fresh name
// (the mem analogue of an OS-assigned ephemeral port).
type Transport struct{}

func New() *Transport { return &Transport{} }

func init() {
	transport.RegisterFactory("mem", func() transport.Transport { return New() })
}

var (
	regMu     sync.Mutex
	listeners = map[string]*listener{}
	nextName  atomic.Uint64
)

func (t *Transport) Kind() transport.Kind { return transport.KindMem }

func (t *Transport) Listen(ctx context.Context, name string) (transport.Listener, error) {
	if name == "" || name == ":0" {
		name = fmt.Sprintf("mem:%d", nextName.Add(1))
	}
	regMu.Lock()
	defer regMu.Unlock()
	if _, ok := listeners[name]; ok {
		return nil, errors.New("mem: listener already exists")
	}
	l := &listener{name: name, newCh: make(chan *conn, 8), closeCh: make(chan struct{})}
	listeners[name] = l
	go func() {
		<-ctx.Done()
		_ = l.Close()
	}()
	return l, nil
}

func (t *Transport) Dial(ctx context.Context, name string) (transport.Conn, error) {
	regMu.Lock()
	l := listeners[name]
	regMu.Unlock()
	if l == nil {
		return nil, errors.New("mem: no such listener")
	}
	c1, c2 := net.Pipe()
	srv := newConn(c1, l.name)
	cli := newConn(c2, l.name)
	select {
	case l.newCh <- srv:
	case <-l.closeCh:
		_ = srv.Close()
		_ = cli.Close()
		return nil, errors.New("mem: listener closed")
	case <-ctx.Done():
		_ = srv.Close()
		_ = cli.Close()
		return nil, ctx.Err()
	}
	return cli, nil
}

type listener struct {
	name    string
	newCh   chan *conn
	closeCh chan struct{}
}

func (l *listener) Addr() net.Addr { return memAddr(l.name) }

func (l *listener) Accept(ctx context.Context) (transport.Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.closeCh:
		return nil, errors.New("mem listener closed")
	case c := <-l.newCh:
		return c, nil
	}
}

func (l *listener) Close() error {
	select {
	case <-l.closeCh:
	default:
		close(l.closeCh)
	}
	regMu.Lock()
	delete(listeners, l.name)
	regMu.Unlock()
	return nil
}

type memAddr string

func (a memAddr) Network() string { return "mem" }
func (a memAddr) String() string  { return string(a) }

type conn struct {
	mu   sync.Mutex
	name string
	c    net.Conn
	br   *bufio.Reader
	bw   *bufio.Writer
}

func newConn(c net.Conn, name string) *conn {
	return &conn{name: name, c: c, br: bufio.NewReader(c), bw: bufio.NewWriter(c)}
}

func (c *conn) LocalAddr() net.Addr  { return memAddr(c.name) }
func (c *conn) RemoteAddr() net.Addr { return memAddr(c.name) }
func (c *conn) Close() error         { return c.c.Close() }

func (c *conn) SetWriteDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.c.SetWriteDeadline(t)
}

// Frame format matches tcp: u32 LE length prefix.
func (c *conn) SendBytes(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var lenbuf [4]byte
	binary.LittleEndian.PutUint32(lenbuf[:], uint32(len(b)))
	if _, err := c.bw.Write(lenbuf[:]); err != nil {
		return err
	}
	if _, err := c.bw.Write(b); err != nil {
		return err
	}
	return c.bw.Flush()
}

func (c *conn) RecvBytes() ([]byte, error) {
	var lenbuf [4]byte
	if _, err := io.ReadFull(c.br, lenbuf[:]); err != nil {
		return nil, err
	}
	n := int(binary.LittleEndian.Uint32(lenbuf[:]))
	if n < 0 || n > (1<<24) {
		return nil, errors.New("invalid frame size")
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.br, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
