package probe

import (
	"bufio"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"time"

	"github.com/pivotal-cf/protogate"
	"github.com/pivotal-cf/protogate/gatelog"
	"github.com/pivotal-cf/protogate/hello"
	"github.com/pivotal-cf/protogate/policy"
)

var ErrExpectedAbort = errors.New("tls: aborting handshake")

type handshakeOutcome struct {
	providesCert bool
	wantsCert    bool
	err          error
}

// attemptHandshake offers exactly one version and reports whether the
// server answered with a certificate under it. We never send secret
// information over these connections; they only probe.
func attemptHandshake(ctx context.Context, logger gatelog.Logger, dialer *net.Dialer, addr string, version protogate.ProtocolVersion) (handshakeOutcome, error) {
	rawConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return handshakeOutcome{}, &policy.TransportError{Op: "dial", Err: err}
	}
	defer rawConn.Close()

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	outcome := handshakeOutcome{}
	config := &tls.Config{
		ServerName:         host,
		MinVersion:         version.TLSVersion(),
		MaxVersion:         version.TLSVersion(),
		InsecureSkipVerify: true,
		VerifyPeerCertificate: func(rawCerts [][]byte, verifiedChains [][]*x509.Certificate) error {
			outcome.providesCert = true
			return nil
		},
		GetClientCertificate: func(*tls.CertificateRequestInfo) (*tls.Certificate, error) {
			outcome.wantsCert = true
			return nil, ErrExpectedAbort
		},
	}

	if dialer.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, dialer.Timeout)
		defer cancel()
	}

	conn := tls.Client(rawConn, config)
	outcome.err = conn.HandshakeContext(ctx)

	state := conn.ConnectionState()
	logger.Debugf("Connection state after handshake: version %s, suite %s, complete %t",
		protogate.FromTLS(state.Version), tls.CipherSuiteName(state.CipherSuite), state.HandshakeComplete)

	if outcome.err == nil {
		conn.Close()
	}

	return outcome, nil
}

// attemptLegacyHandshake writes a hand-built ClientHello for versions the
// TLS library no longer speaks and reads the server's first answer.
func attemptLegacyHandshake(ctx context.Context, logger gatelog.Logger, dialer *net.Dialer, addr string, version protogate.ProtocolVersion) (handshakeOutcome, error) {
	rawConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return handshakeOutcome{}, &policy.TransportError{Op: "dial", Err: err}
	}
	defer rawConn.Close()

	if dialer.Timeout > 0 {
		rawConn.SetDeadline(time.Now().Add(dialer.Timeout))
	}

	host, _, _ := net.SplitHostPort(addr)
	record, err := hello.Marshal(version, host)
	if err != nil {
		return handshakeOutcome{}, err
	}

	if _, err := rawConn.Write(record); err != nil {
		return handshakeOutcome{err: err}, nil
	}

	response, err := hello.ReadServerResponse(bufio.NewReader(rawConn))
	if err != nil {
		return handshakeOutcome{err: err}, nil
	}

	logger.Debugf("Legacy handshake response: version %s, alert %t (%d)",
		response.Version, response.Alert, response.AlertDescription)

	if response.Alert {
		return handshakeOutcome{err: errors.New("remote error: alert " + alertName(response.AlertDescription))}, nil
	}

	return handshakeOutcome{providesCert: response.Accepted() && response.Version == version}, nil
}

func alertName(description uint8) string {
	switch description {
	case hello.AlertProtocolVersion:
		return "protocol version not supported"
	case 40:
		return "handshake failure"
	default:
		return "unknown"
	}
}
