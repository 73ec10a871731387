// Package hello reads and writes the few TLS handshake records needed to
// see which protocol versions a peer proposes before the TLS library takes
// over the connection.
package hello

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/crypto/cryptobyte"

	"github.com/pivotal-cf/protogate"
)

const (
	recordTypeAlert     uint8 = 21
	recordTypeHandshake uint8 = 22

	typeClientHello uint8 = 1
	typeServerHello uint8 = 2

	extensionServerName        uint16 = 0
	extensionSupportedVersions uint16 = 43

	recordHeaderLen = 5
	maxPlaintext    = 16384

	// MaxRecordSize is the buffer size a reader needs to peek a whole record.
	MaxRecordSize = recordHeaderLen + maxPlaintext
)

var (
	ErrNotHandshake = errors.New("hello: first record is not a TLS handshake")
	ErrMalformed    = errors.New("hello: malformed handshake record")
)

type ClientHello struct {
	RecordVersion protogate.ProtocolVersion
	LegacyVersion protogate.ProtocolVersion
	// SupportedVersions is empty when the client sent no
	// supported_versions extension.
	SupportedVersions []protogate.ProtocolVersion
	ServerName        string
}

// Offered returns the recognised versions the client is willing to use,
// most recent first. A hello without supported_versions offers every
// version up to its legacy client_version.
func (h *ClientHello) Offered() []protogate.ProtocolVersion {
	var offered []protogate.ProtocolVersion

	if len(h.SupportedVersions) > 0 {
		for _, v := range h.SupportedVersions {
			if v.Known() {
				offered = append(offered, v)
			}
		}
	} else {
		for _, v := range protogate.ProtocolVersions {
			if v <= h.LegacyVersion {
				offered = append(offered, v)
			}
		}
	}

	sort.Slice(offered, func(i, j int) bool { return offered[i] > offered[j] })
	return offered
}

// Highest is the most recent version the client offers, or the legacy
// client_version when it offers nothing recognised.
func (h *ClientHello) Highest() protogate.ProtocolVersion {
	offered := h.Offered()
	if len(offered) == 0 {
		return h.LegacyVersion
	}
	return offered[0]
}

// Read peeks the first record buffered in r and parses it as a ClientHello.
// Nothing is consumed, so the TLS library can read the same bytes later.
// r must have been created with at least MaxRecordSize bytes of buffer.
func Read(r *bufio.Reader) (*ClientHello, error) {
	header, err := r.Peek(recordHeaderLen)
	if err != nil {
		return nil, err
	}

	if header[0] != recordTypeHandshake {
		return nil, ErrNotHandshake
	}

	length := int(binary.BigEndian.Uint16(header[3:5]))
	if length == 0 || length > maxPlaintext {
		return nil, ErrMalformed
	}

	record, err := r.Peek(recordHeaderLen + length)
	if err != nil {
		return nil, err
	}

	hello, err := parseClientHello(record[recordHeaderLen:])
	if err != nil {
		return nil, err
	}
	hello.RecordVersion = protogate.ProtocolVersion(binary.BigEndian.Uint16(header[1:3]))

	return hello, nil
}

func parseClientHello(data []byte) (*ClientHello, error) {
	s := cryptobyte.String(data)

	var (
		msgType uint8
		body    cryptobyte.String
	)
	if !s.ReadUint8(&msgType) || msgType != typeClientHello {
		return nil, ErrNotHandshake
	}
	// A ClientHello split across records is legal but rare enough that we
	// refuse it rather than reassemble.
	if !s.ReadUint24LengthPrefixed(&body) {
		return nil, ErrMalformed
	}

	var (
		legacy        uint16
		sessionID     cryptobyte.String
		cipherSuites  cryptobyte.String
		compression   cryptobyte.String
		extensionsRaw cryptobyte.String
	)

	if !body.ReadUint16(&legacy) ||
		!body.Skip(32) ||
		!body.ReadUint8LengthPrefixed(&sessionID) ||
		!body.ReadUint16LengthPrefixed(&cipherSuites) ||
		!body.ReadUint8LengthPrefixed(&compression) {
		return nil, ErrMalformed
	}

	hello := &ClientHello{LegacyVersion: protogate.ProtocolVersion(legacy)}

	if body.Empty() {
		return hello, nil
	}

	if !body.ReadUint16LengthPrefixed(&extensionsRaw) || !body.Empty() {
		return nil, ErrMalformed
	}

	for !extensionsRaw.Empty() {
		var (
			extension uint16
			extData   cryptobyte.String
		)
		if !extensionsRaw.ReadUint16(&extension) || !extensionsRaw.ReadUint16LengthPrefixed(&extData) {
			return nil, ErrMalformed
		}

		switch extension {
		case extensionSupportedVersions:
			var list cryptobyte.String
			if !extData.ReadUint8LengthPrefixed(&list) || list.Empty() {
				return nil, ErrMalformed
			}
			for !list.Empty() {
				var v uint16
				if !list.ReadUint16(&v) {
					return nil, ErrMalformed
				}
				hello.SupportedVersions = append(hello.SupportedVersions, protogate.ProtocolVersion(v))
			}
		case extensionServerName:
			name, err := parseServerName(extData)
			if err != nil {
				return nil, err
			}
			hello.ServerName = name
		}
	}

	return hello, nil
}

func parseServerName(data cryptobyte.String) (string, error) {
	var list cryptobyte.String
	if !data.ReadUint16LengthPrefixed(&list) {
		return "", ErrMalformed
	}

	for !list.Empty() {
		var (
			nameType uint8
			name     cryptobyte.String
		)
		if !list.ReadUint8(&nameType) || !list.ReadUint16LengthPrefixed(&name) {
			return "", ErrMalformed
		}
		// host_name
		if nameType == 0 {
			return string(name), nil
		}
	}

	return "", nil
}

func (h *ClientHello) String() string {
	return fmt.Sprintf("ClientHello(legacy=%s offered=%v sni=%q)", h.LegacyVersion, h.Offered(), h.ServerName)
}
