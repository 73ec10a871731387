package hello

import (
	"bufio"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/cryptobyte"

	"github.com/pivotal-cf/protogate"
)

// AlertProtocolVersion is the alert a server sends when it will not use any
// version the client offered.
const AlertProtocolVersion uint8 = 70

const alertLevelFatal uint8 = 2

// Suites old enough for SSLv3 peers and still common on TLS 1.0-1.2.
var legacyCipherSuites = []uint16{
	0xc014, // TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA
	0xc013, // TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA
	0xc00a, // TLS_ECDHE_ECDSA_WITH_AES_256_CBC_SHA
	0xc009, // TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA
	0x0035, // TLS_RSA_WITH_AES_256_CBC_SHA
	0x002f, // TLS_RSA_WITH_AES_128_CBC_SHA
	0x000a, // TLS_RSA_WITH_3DES_EDE_CBC_SHA
	0x00ff, // TLS_EMPTY_RENEGOTIATION_INFO_SCSV
}

// Marshal builds a ClientHello record that proposes exactly version. It
// only covers versions without supported_versions negotiation (SSLv3 up to
// TLSv1.2); TLSv1.3 hellos need key shares and belong to crypto/tls.
func Marshal(version protogate.ProtocolVersion, serverName string) ([]byte, error) {
	if !version.Known() || version > protogate.VersionTLS12 {
		return nil, fmt.Errorf("hello: cannot build a ClientHello for %s", version)
	}

	random := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, random); err != nil {
		return nil, fmt.Errorf("hello: short read from rand: %w", err)
	}

	recordVersion := version
	if recordVersion > protogate.VersionTLS10 {
		recordVersion = protogate.VersionTLS10
	}

	var b cryptobyte.Builder
	b.AddUint8(recordTypeHandshake)
	b.AddUint16(uint16(recordVersion))
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddUint8(typeClientHello)
		b.AddUint24LengthPrefixed(func(b *cryptobyte.Builder) {
			b.AddUint16(uint16(version))
			b.AddBytes(random)
			b.AddUint8LengthPrefixed(func(*cryptobyte.Builder) {})
			b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
				for _, suite := range legacyCipherSuites {
					b.AddUint16(suite)
				}
			})
			b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
				b.AddUint8(0) // null compression
			})

			// SSLv3 predates extensions.
			if version == protogate.VersionSSL30 || serverName == "" {
				return
			}
			b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
				b.AddUint16(extensionServerName)
				b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
					b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
						b.AddUint8(0)
						b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
							b.AddBytes([]byte(serverName))
						})
					})
				})
			})
		})
	})

	return b.Bytes()
}

// WriteAlert sends a single fatal alert record.
func WriteAlert(w io.Writer, recordVersion protogate.ProtocolVersion, description uint8) error {
	if recordVersion < protogate.VersionSSL30 || recordVersion > protogate.VersionTLS12 {
		recordVersion = protogate.VersionTLS10
	}

	record := []byte{recordTypeAlert, 0, 0, 0, 2, alertLevelFatal, description}
	binary.BigEndian.PutUint16(record[1:3], uint16(recordVersion))

	_, err := w.Write(record)
	return err
}

// ServerResponse is the first record a server answers a ClientHello with.
type ServerResponse struct {
	// Version is the server_version of a ServerHello; zero for alerts.
	Version protogate.ProtocolVersion
	Alert   bool
	// AlertDescription is set when Alert is true.
	AlertDescription uint8
}

func (r ServerResponse) Accepted() bool {
	return !r.Alert && r.Version != 0
}

// ReadServerResponse reads the server's first record. Only the head of a
// ServerHello is examined.
func ReadServerResponse(r *bufio.Reader) (ServerResponse, error) {
	header := make([]byte, recordHeaderLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return ServerResponse{}, err
	}

	length := int(binary.BigEndian.Uint16(header[3:5]))
	if length == 0 || length > maxPlaintext+2048 {
		return ServerResponse{}, ErrMalformed
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return ServerResponse{}, err
	}

	switch header[0] {
	case recordTypeAlert:
		if len(body) < 2 {
			return ServerResponse{}, ErrMalformed
		}
		return ServerResponse{Alert: true, AlertDescription: body[1]}, nil
	case recordTypeHandshake:
		s := cryptobyte.String(body)
		var (
			msgType uint8
			version uint16
		)
		if !s.ReadUint8(&msgType) || msgType != typeServerHello {
			return ServerResponse{}, ErrMalformed
		}
		// The ServerHello may continue into the next record; its version
		// field sits right after the length.
		if !s.Skip(3) {
			return ServerResponse{}, ErrMalformed
		}
		if !s.ReadUint16(&version) {
			return ServerResponse{}, ErrMalformed
		}
		return ServerResponse{Version: protogate.ProtocolVersion(version)}, nil
	default:
		return ServerResponse{}, ErrNotHandshake
	}
}
