package policy

import (
	"sort"
	"strings"

	"github.com/pivotal-cf/protogate"
)

// Policy is an immutable allow-list of protocol versions for one endpoint.
// The zero value allows nothing; use Build or Parse.
type Policy struct {
	allowed []protogate.ProtocolVersion
}

// Build returns a policy allowing exactly versions. Duplicates collapse.
func Build(versions ...protogate.ProtocolVersion) (Policy, error) {
	if len(versions) == 0 {
		return Policy{}, configErrorf("allow-list is empty")
	}

	seen := map[protogate.ProtocolVersion]bool{}
	allowed := make([]protogate.ProtocolVersion, 0, len(versions))

	for _, v := range versions {
		if !v.Known() {
			return Policy{}, configErrorf("unrecognized protocol version %s", v)
		}
		if seen[v] {
			continue
		}
		seen[v] = true
		allowed = append(allowed, v)
	}

	sort.Slice(allowed, func(i, j int) bool { return allowed[i] < allowed[j] })

	return Policy{allowed: allowed}, nil
}

// Parse builds a policy from configuration strings such as "TLSv1.2".
// Every unrecognized string is reported.
func Parse(names []string) (Policy, error) {
	if len(names) == 0 {
		return Policy{}, configErrorf("allow-list is empty")
	}

	var (
		versions []protogate.ProtocolVersion
		unknown  []string
	)

	for _, name := range names {
		v, err := protogate.ParseProtocolVersion(name)
		if err != nil {
			unknown = append(unknown, name)
			continue
		}
		versions = append(versions, v)
	}

	if len(unknown) > 0 {
		return Policy{}, configErrorf("unrecognized protocol version(s) %q", unknown)
	}

	return Build(versions...)
}

func (p Policy) IsZero() bool {
	return len(p.allowed) == 0
}

func (p Policy) Allows(v protogate.ProtocolVersion) bool {
	for _, a := range p.allowed {
		if a == v {
			return true
		}
	}
	return false
}

// Versions returns the allowed versions, oldest first.
func (p Policy) Versions() []protogate.ProtocolVersion {
	return append([]protogate.ProtocolVersion(nil), p.allowed...)
}

func (p Policy) Lowest() protogate.ProtocolVersion {
	if p.IsZero() {
		return 0
	}
	return p.allowed[0]
}

func (p Policy) Highest() protogate.ProtocolVersion {
	if p.IsZero() {
		return 0
	}
	return p.allowed[len(p.allowed)-1]
}

// Speakable returns the allowed versions the TLS library can negotiate.
func (p Policy) Speakable() []protogate.ProtocolVersion {
	var speakable []protogate.ProtocolVersion
	for _, v := range p.allowed {
		if v.Speakable() {
			speakable = append(speakable, v)
		}
	}
	return speakable
}

// Select picks the most recent of offered that the policy allows.
func (p Policy) Select(offered []protogate.ProtocolVersion) (protogate.ProtocolVersion, bool) {
	var (
		best  protogate.ProtocolVersion
		found bool
	)
	for _, v := range offered {
		if p.Allows(v) && (!found || v > best) {
			best = v
			found = true
		}
	}
	return best, found
}

func (p Policy) Names() []string {
	names := make([]string, 0, len(p.allowed))
	for _, v := range p.allowed {
		names = append(names, v.String())
	}
	return names
}

func (p Policy) String() string {
	return "[" + strings.Join(p.Names(), " ") + "]"
}
