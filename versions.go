package protogate

import (
	"crypto/tls"
	"fmt"
	"strings"
)

// ProtocolVersion identifies an SSL/TLS protocol version by its wire value.
// Higher values are more recent releases.
type ProtocolVersion uint16

const (
	VersionSSL30 ProtocolVersion = 0x0300
	VersionTLS10 ProtocolVersion = tls.VersionTLS10
	VersionTLS11 ProtocolVersion = tls.VersionTLS11
	VersionTLS12 ProtocolVersion = tls.VersionTLS12
	VersionTLS13 ProtocolVersion = tls.VersionTLS13
)

type versionInfo struct {
	Version ProtocolVersion
	Name    string
	// crypto/tls dropped SSLv3 entirely.
	Speakable bool
}

var versionTable = []versionInfo{
	{Version: VersionSSL30, Name: "SSLv3", Speakable: false},
	{Version: VersionTLS10, Name: "TLSv1", Speakable: true},
	{Version: VersionTLS11, Name: "TLSv1.1", Speakable: true},
	{Version: VersionTLS12, Name: "TLSv1.2", Speakable: true},
	{Version: VersionTLS13, Name: "TLSv1.3", Speakable: true},
}

// ProtocolVersions lists every recognised version, oldest first.
var ProtocolVersions = func() []ProtocolVersion {
	versions := make([]ProtocolVersion, 0, len(versionTable))
	for _, info := range versionTable {
		versions = append(versions, info.Version)
	}
	return versions
}()

func lookup(v ProtocolVersion) (versionInfo, bool) {
	for _, info := range versionTable {
		if info.Version == v {
			return info, true
		}
	}
	return versionInfo{}, false
}

// ParseProtocolVersion maps a configuration string such as "TLSv1.2" to its
// version. Matching is exact; "tls1.2" or "TLS1.2" are not accepted.
func ParseProtocolVersion(name string) (ProtocolVersion, error) {
	trimmed := strings.TrimSpace(name)
	for _, info := range versionTable {
		if info.Name == trimmed {
			return info.Version, nil
		}
	}

	return 0, fmt.Errorf("unrecognized protocol version %q", name)
}

// Known reports whether v is one of the recognised versions.
func (v ProtocolVersion) Known() bool {
	_, ok := lookup(v)
	return ok
}

// Speakable reports whether crypto/tls can negotiate v.
func (v ProtocolVersion) Speakable() bool {
	info, ok := lookup(v)
	return ok && info.Speakable
}

// TLSVersion returns the value used in tls.Config.MinVersion/MaxVersion.
func (v ProtocolVersion) TLSVersion() uint16 {
	return uint16(v)
}

func (v ProtocolVersion) String() string {
	if info, ok := lookup(v); ok {
		return info.Name
	}
	return fmt.Sprintf("unknown(0x%04x)", uint16(v))
}

// FromTLS converts a negotiated tls.ConnectionState.Version.
func FromTLS(version uint16) ProtocolVersion {
	return ProtocolVersion(version)
}

// SpeakableRange returns the lowest and highest crypto/tls versions covered
// by versions. ok is false when none of them is speakable.
func SpeakableRange(versions []ProtocolVersion) (lo, hi uint16, ok bool) {
	for _, v := range versions {
		if !v.Speakable() {
			continue
		}
		id := v.TLSVersion()
		if !ok || id < lo {
			lo = id
		}
		if !ok || id > hi {
			hi = id
		}
		ok = true
	}
	return lo, hi, ok
}
