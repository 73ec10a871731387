package gate

import (
	"bufio"
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/pivotal-cf/protogate"
	"github.com/pivotal-cf/protogate/hello"
	"github.com/pivotal-cf/protogate/policy"
)

// ListenerFactory makes listeners whose connections are gated by a
// protocol policy. Attach with Enforcer.AttachToServer before the first
// Listen or NewListener; that call freezes the factory.
type ListenerFactory struct {
	Config *tls.Config
	// HandshakeTimeout bounds reading the ClientHello plus the handshake.
	HandshakeTimeout time.Duration

	binding
}

func NewListenerFactory(config *tls.Config) *ListenerFactory {
	return &ListenerFactory{
		Config:           config,
		HandshakeTimeout: defaultTimeout,
	}
}

func (f *ListenerFactory) attach(e *Enforcer, p policy.Policy, config *tls.Config) error {
	return f.binding.attach("listener", e, p, config)
}

func (f *ListenerFactory) Listen(network, addr string) (net.Listener, error) {
	if _, _, _, err := f.freeze("listener"); err != nil {
		return nil, err
	}

	inner, err := net.Listen(network, addr)
	if err != nil {
		return nil, &policy.TransportError{Op: "listen", Err: err}
	}

	return f.NewListener(inner)
}

// NewListener wraps inner. Accept returns *Conn values that handshake on
// first use, so a slow client never stalls the accept loop.
func (f *ListenerFactory) NewListener(inner net.Listener) (net.Listener, error) {
	e, p, config, err := f.freeze("listener")
	if err != nil {
		return nil, err
	}

	return &listener{
		Listener: inner,
		enforcer: e,
		policy:   p,
		config:   config,
		timeout:  f.HandshakeTimeout,
	}, nil
}

type listener struct {
	net.Listener

	enforcer *Enforcer
	policy   policy.Policy
	config   *tls.Config
	timeout  time.Duration
}

func (l *listener) Accept() (net.Conn, error) {
	rawConn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}

	return l.serverConn(rawConn), nil
}

func (l *listener) serverConn(rawConn net.Conn) *Conn {
	reader := bufio.NewReaderSize(rawConn, hello.MaxRecordSize)
	attempt := newAttempt(policy.ServerSide, rawConn.RemoteAddr().String())

	var selected protogate.ProtocolVersion

	config := l.config.Clone()
	config.VerifyConnection = l.enforcer.verifyVersion(l.policy, attempt, config.VerifyConnection)
	// Any GetConfigForClient on the base config is replaced: the pinned
	// version must come from the policy.
	config.GetConfigForClient = func(*tls.ClientHelloInfo) (*tls.Config, error) {
		pinned := config.Clone()
		pinned.GetConfigForClient = nil
		pinned.MinVersion = selected.TLSVersion()
		pinned.MaxVersion = selected.TLSVersion()
		return pinned, nil
	}

	conn := newConn(tls.Server(&bufferedConn{Conn: rawConn, r: reader}, config), attempt, l.enforcer, l.timeout)
	conn.prepare = func(ctx context.Context) error {
		if deadline, ok := ctx.Deadline(); ok {
			rawConn.SetReadDeadline(deadline)
			defer rawConn.SetReadDeadline(time.Time{})
		}

		clientHello, err := hello.Read(reader)
		if err != nil {
			return err
		}

		version, ok := l.policy.Select(clientHello.Offered())
		if !ok {
			decision := l.enforcer.Evaluate(attempt.propose(clientHello.Highest()), l.policy)
			attempt.decide(decision)
			hello.WriteAlert(rawConn, clientHello.RecordVersion, hello.AlertProtocolVersion)
			return decision.Err()
		}

		attempt.propose(version)
		selected = version
		return nil
	}

	return conn
}
