package gate

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/pivotal-cf/protogate"
	"github.com/pivotal-cf/protogate/policy"
)

const defaultTimeout = 10 * time.Second

// ClientFactory makes outbound TLS connections. Set Config, Dialer and
// Verifier, attach a policy with Enforcer.AttachToClient, then dial. The
// first dial freezes the factory.
type ClientFactory struct {
	Config *tls.Config
	Dialer *net.Dialer
	// Verifier replaces the TLS library's hostname check when set.
	Verifier HostnameVerifier

	binding
}

func NewClientFactory(config *tls.Config) *ClientFactory {
	return &ClientFactory{
		Config: config,
		Dialer: &net.Dialer{Timeout: defaultTimeout},
	}
}

func (f *ClientFactory) attach(e *Enforcer, p policy.Policy, config *tls.Config) error {
	return f.binding.attach("client", e, p, config)
}

// DialContext connects to addr and completes a handshake whose version the
// policy accepts.
func (f *ClientFactory) DialContext(ctx context.Context, network, addr string) (*Conn, error) {
	e, p, base, err := f.freeze("client")
	if err != nil {
		return nil, err
	}

	dialer := f.Dialer
	if dialer == nil {
		dialer = &net.Dialer{Timeout: defaultTimeout}
	}

	rawConn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, &policy.TransportError{Op: "dial", Err: err}
	}

	attempt := newAttempt(policy.ClientSide, addr)
	conn := newConn(tls.Client(rawConn, f.connConfig(e, p, base, addr, attempt)), attempt, e, dialer.Timeout)

	// The client proposes the newest version it is allowed to offer; the
	// server may pick any other offered one.
	attempt.propose(protogate.FromTLS(base.MaxVersion))

	if err := conn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	return conn, nil
}

func (f *ClientFactory) Dial(network, addr string) (*Conn, error) {
	return f.DialContext(context.Background(), network, addr)
}

func (f *ClientFactory) connConfig(e *Enforcer, p policy.Policy, base *tls.Config, addr string, attempt *Attempt) *tls.Config {
	config := base.Clone()

	// If no ServerName is set, infer the ServerName
	// from the hostname we're connecting to.
	if config.ServerName == "" {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}
		config.ServerName = host
	}

	next := config.VerifyConnection
	if f.Verifier != nil {
		verifier := f.Verifier
		roots := config.RootCAs
		userVerify := next

		config.InsecureSkipVerify = true
		next = func(cs tls.ConnectionState) error {
			if err := verifier.VerifyPeer(cs, roots); err != nil {
				return err
			}
			if userVerify != nil {
				return userVerify(cs)
			}
			return nil
		}
	}

	config.VerifyConnection = e.verifyVersion(p, attempt, next)
	return config
}
