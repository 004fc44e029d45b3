package quic

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/binary"
	"errors"
	"io"
	"math/big"
	"net"
	"sync"
	"time"

	quicgo "github.com/quic-go/quic-go"

	"peerbus/pkg/transport"
)

const alpnProto = "peerbus"

// Transport implements QUIC-based connections with length-prefixed frames on
// a single bidirectional stream per connection (opened by the dialer,
// accepted by the listener).
type Transport struct {
	tlsConf  *tls.Config
	quicConf *quicgo.Config
}

func New() *Transport {
	// Ephemeral self-signed certificate for the server side. Peer identity
	// is the concern of the layer above, not the transport.
	cert, _ := selfSignedCert()
	tlsConf := &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{alpnProto},
		MinVersion:   tls.VersionTLS13,
	}
	return &Transport{tlsConf: tlsConf, quicConf: &quicgo.Config{}}
}

func init() {
	transport.RegisterFactory("quic", func() transport.Transport { return New() })
}

func (t *Transport) Kind() transport.Kind { return transport.KindQUIC }

func (t *Transport) Listen(ctx context.Context, address string) (transport.Listener, error) {
	l, err := quicgo.ListenAddr(address, t.tlsConf, t.quicConf)
	if err != nil {
		return nil, err
	}
	ql := &listener{l: l, newCh: make(chan *conn, 8), closeCh: make(chan struct{})}
	go ql.acceptLoop(ctx)
	go func() { <-ctx.Done(); _ = ql.Close() }()
	return ql, nil
}

func (t *Transport) Dial(ctx context.Context, address string) (transport.Conn, error) {
	tlsClient := &tls.Config{
		InsecureSkipVerify: true, // NOTE: identity is verified at application layer.
		NextProtos:         []string{alpnProto},
		MinVersion:         tls.VersionTLS13,
	}
	c, err := quicgo.DialAddr(ctx, address, tlsClient, t.quicConf)
	if err != nil {
		return nil, err
	}
	st, err := c.OpenStreamSync(ctx)
	if err != nil {
		_ = c.CloseWithError(0, "open stream failed")
		return nil, err
	}
	return &conn{c: c, st: st}, nil
}

type listener struct {
	l       *quicgo.Listener
	newCh   chan *conn
	closeCh chan struct{}
}

func (l *listener) Addr() net.Addr { return l.l.Addr() }

func (l *listener) Accept(ctx context.Context) (transport.Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.closeCh:
		return nil, errors.New("quic listener closed")
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
	return l.l.Close()
}

func (l *listener) acceptLoop(ctx context.Context) {
	for {
		qc, err := l.l.Accept(ctx)
		if err != nil {
			return
		}
		go func(qc quicgo.Connection) {
			st, err := qc.AcceptStream(ctx)
			if err != nil {
				_ = qc.CloseWithError(0, "accept stream failed")
				return
			}
			select {
			case l.newCh <- &conn{c: qc, st: st}:
			case <-l.closeCh:
				_ = qc.CloseWithError(0, "listener closed")
			}
		}(qc)
	}
}

type conn struct {
	mu sync.Mutex
	c  quicgo.Connection
	st quicgo.Stream
}

func (c *conn) LocalAddr() net.Addr  { return c.c.LocalAddr() }
func (c *conn) RemoteAddr() net.Addr { return c.c.RemoteAddr() }

func (c *conn) Close() error {
	_ = c.st.Close()
	return c.c.CloseWithError(0, "")
}

func (c *conn) SetWriteDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st.SetWriteDeadline(t)
}

// Frame format matches tcp: u32 LE length prefix.
func (c *conn) SendBytes(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var lenbuf [4]byte
	binary.LittleEndian.PutUint32(lenbuf[:], uint32(len(b)))
	if _, err := c.st.Write(lenbuf[:]); err != nil {
		return err
	}
	_, err := c.st.Write(b)
	return err
}

func (c *conn) RecvBytes() ([]byte, error) {
	var lenbuf [4]byte
	if _, err := io.ReadFull(c.st, lenbuf[:]); err != nil {
		return nil, err
	}
	n := int(binary.LittleEndian.Uint32(lenbuf[:]))
	if n < 0 || n > (1<<24) {
		return nil, errors.New("invalid frame size")
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.st, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func selfSignedCert() (tls.Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, err
	}
	tmpl := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "peerbus"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * 365 * time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, err
	}
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}, nil
}
