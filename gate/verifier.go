package gate

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
)

// HostnameVerifier checks the server's identity in place of the TLS
// library's default verification.
type HostnameVerifier interface {
	VerifyPeer(state tls.ConnectionState, roots *x509.CertPool) error
}

// InsecureSkipHostnameVerifier checks the server's chain against the
// configured roots but ignores the name it was issued for. It exists for
// test servers whose certificates do not carry their address and must
// never be a default.
var InsecureSkipHostnameVerifier HostnameVerifier = insecureSkipHostname{}

type insecureSkipHostname struct{}

func (insecureSkipHostname) VerifyPeer(state tls.ConnectionState, roots *x509.CertPool) error {
	if len(state.PeerCertificates) == 0 {
		return errors.New("tls: server presented no certificate")
	}

	intermediates := x509.NewCertPool()
	for _, cert := range state.PeerCertificates[1:] {
		intermediates.AddCert(cert)
	}

	_, err := state.PeerCertificates[0].Verify(x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	})
	return err
}
