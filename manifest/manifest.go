package manifest

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/pivotal-cf/paraphernalia/secure/tlsconfig"

	"github.com/pivotal-cf/protogate/gate"
	"github.com/pivotal-cf/protogate/policy"
)

type Manifest struct {
	Server *Server `yaml:"server"`
	Client *Client `yaml:"client"`
	Probe  *Probe  `yaml:"probe"`
}

// Server describes the DoubleIt endpoint and the versions it accepts.
type Server struct {
	Listen      string            `yaml:"listen"`
	Certificate string            `yaml:"certificate"`
	PrivateKey  string            `yaml:"private_key"`
	Protocols   []string          `yaml:"protocols"`
	Users       map[string]string `yaml:"users"`
}

// Client describes the caller's side. Its protocol list is separate from
// the server's and is never merged with it.
type Client struct {
	Endpoint             string   `yaml:"endpoint"`
	CACertificate        string   `yaml:"ca_certificate"`
	Protocols            []string `yaml:"protocols"`
	InsecureSkipHostname bool     `yaml:"insecure_skip_hostname"`
	Username             string   `yaml:"username"`
	Password             string   `yaml:"password"`
}

// Probe lists endpoints to probe and the versions they are expected to
// restrict themselves to.
type Probe struct {
	Targets   []string `yaml:"targets"`
	Protocols []string `yaml:"protocols"`
}

func (s *Server) Policy() (policy.Policy, error) {
	return policy.Parse(s.Protocols)
}

// TLSConfig loads the server identity. Version limits are left to the
// enforcer.
func (s *Server) TLSConfig() (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(s.Certificate, s.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load server key pair: %w", err)
	}

	return tlsconfig.Build(tlsconfig.WithIdentity(cert)).Server(), nil
}

func (c *Client) Policy() (policy.Policy, error) {
	return policy.Parse(c.Protocols)
}

func (c *Client) TLSConfig() (*tls.Config, error) {
	config := &tls.Config{}
	if c.CACertificate == "" {
		return config, nil
	}

	pem, err := os.ReadFile(c.CACertificate)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in %s", c.CACertificate)
	}
	config.RootCAs = pool

	return config, nil
}

// Verifier is nil unless the manifest explicitly opts out of hostname
// checks.
func (c *Client) Verifier() gate.HostnameVerifier {
	if c.InsecureSkipHostname {
		return gate.InsecureSkipHostnameVerifier
	}
	return nil
}

func (p *Probe) Policy() (policy.Policy, error) {
	return policy.Parse(p.Protocols)
}
