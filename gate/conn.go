package gate

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/pivotal-cf/protogate/policy"
)

var errClosedEarly = errors.New("connection closed before the handshake completed")

// Conn is a TLS connection whose handshake is gated by a protocol policy.
// Read and Write complete the handshake first, so no application data
// moves until the policy has accepted the negotiated version.
type Conn struct {
	*tls.Conn

	attempt  *Attempt
	enforcer *Enforcer
	timeout  time.Duration
	prepare  func(ctx context.Context) error

	once sync.Once
	err  error
}

func newConn(tlsConn *tls.Conn, attempt *Attempt, enforcer *Enforcer, timeout time.Duration) *Conn {
	return &Conn{
		Conn:     tlsConn,
		attempt:  attempt,
		enforcer: enforcer,
		timeout:  timeout,
	}
}

func (c *Conn) Attempt() *Attempt {
	return c.attempt
}

func (c *Conn) Handshake() error {
	return c.HandshakeContext(context.Background())
}

// HandshakeContext runs the handshake once. Later calls return the first
// result. Errors are *policy.HandshakeRejected or *policy.TransportError.
func (c *Conn) HandshakeContext(ctx context.Context) error {
	c.once.Do(func() {
		c.err = c.handshake(ctx)
	})
	return c.err
}

func (c *Conn) handshake(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if c.prepare != nil {
		if err := c.prepare(ctx); err != nil {
			return c.fail(err)
		}
	}

	if err := c.Conn.HandshakeContext(ctx); err != nil {
		return c.fail(err)
	}

	c.attempt.establish()
	return nil
}

func (c *Conn) fail(err error) error {
	decision, byPolicy := c.attempt.abort(err)
	if byPolicy {
		return decision.Err()
	}

	c.enforcer.record(c.attempt.Handshake(), decision)
	return &policy.TransportError{Op: "handshake", Err: err}
}

func (c *Conn) Read(b []byte) (int, error) {
	if err := c.Handshake(); err != nil {
		return 0, err
	}
	return c.Conn.Read(b)
}

func (c *Conn) Write(b []byte) (int, error) {
	if err := c.Handshake(); err != nil {
		return 0, err
	}
	return c.Conn.Write(b)
}

func (c *Conn) Close() error {
	if c.attempt.close(errClosedEarly) {
		c.enforcer.record(c.attempt.Handshake(), c.attempt.Decision())
	}
	return c.Conn.Close()
}

// AttemptOf returns the attempt behind a connection produced by this
// package, for example inside http.Server.ConnContext.
func AttemptOf(conn net.Conn) (*Attempt, bool) {
	gc, ok := conn.(*Conn)
	if !ok {
		return nil, false
	}
	return gc.attempt, true
}

// bufferedConn lets the ClientHello be peeked and then read again by the
// TLS library.
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *bufferedConn) Read(b []byte) (int, error) {
	return c.r.Read(b)
}
