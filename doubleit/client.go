package doubleit

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/pivotal-cf/protogate/gate"
	"github.com/pivotal-cf/protogate/policy"
)

// ClientConfig is everything a caller chooses for one client. Policy is
// the client's own allow-list, independent of any server's.
type ClientConfig struct {
	Endpoint  string
	Policy    policy.Policy
	TLSConfig *tls.Config
	// Verifier is nil for full hostname verification.
	Verifier  gate.HostnameVerifier
	Username  string
	Passwords PasswordCallback
	Timeout   time.Duration
}

type Client struct {
	endpoint  string
	username  string
	passwords PasswordCallback
	transport *http.Transport
	http      *http.Client
}

func NewClient(enforcer *gate.Enforcer, config ClientConfig) (*Client, error) {
	factory := gate.NewClientFactory(config.TLSConfig)
	factory.Verifier = config.Verifier

	if err := enforcer.AttachToClient(config.Policy, factory); err != nil {
		return nil, err
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := factory.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			return conn, nil
		},
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
	}

	passwords := config.Passwords
	if passwords == nil {
		passwords = StaticPassword("")
	}

	return &Client{
		endpoint:  config.Endpoint,
		username:  config.Username,
		passwords: passwords,
		transport: transport,
		http: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
	}, nil
}

// DoubleIt asks the service to double number. A rejected handshake
// surfaces as a *policy.HandshakeRejected in the error chain and a
// service fault as *Fault.
func (c *Client) DoubleIt(ctx context.Context, number int) (int, error) {
	password, err := c.passwords(c.username)
	if err != nil {
		return 0, fmt.Errorf("failed to obtain password for %q: %w", c.username, err)
	}

	payload, err := marshalRequest(number, newUsernameToken(c.username, password))
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", `""`)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRequestSize))
	if err != nil {
		return 0, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusInternalServerError {
		return 0, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	return unmarshalResponse(body)
}

func (c *Client) Close() {
	c.transport.CloseIdleConnections()
}
