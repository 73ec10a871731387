package probe

import (
	"sort"

	"github.com/pivotal-cf/protogate"
	"github.com/pivotal-cf/protogate/policy"
)

type VersionResult struct {
	Version  protogate.ProtocolVersion
	Accepted bool
	// Mutual is set when the server asked for a client certificate.
	Mutual bool
	// Detail is the handshake failure for refused versions.
	Detail string
	// Err is set when the endpoint could not be reached at all.
	Err error
}

type Result struct {
	Host     string
	Port     string
	Versions map[protogate.ProtocolVersion]VersionResult
}

func newResult(host, port string) Result {
	return Result{
		Host:     host,
		Port:     port,
		Versions: map[protogate.ProtocolVersion]VersionResult{},
	}
}

// Accepted lists the versions the endpoint handshook with, oldest first.
func (r Result) Accepted() []protogate.ProtocolVersion {
	var accepted []protogate.ProtocolVersion
	for v, vr := range r.Versions {
		if vr.Accepted {
			accepted = append(accepted, v)
		}
	}
	sort.Slice(accepted, func(i, j int) bool { return accepted[i] < accepted[j] })
	return accepted
}

func (r Result) HasTLS() bool {
	return len(r.Accepted()) > 0
}

func (r Result) HasMutual() bool {
	for _, vr := range r.Versions {
		if vr.Mutual {
			return true
		}
	}
	return false
}

// Violations lists accepted versions that p does not allow.
func (r Result) Violations(p policy.Policy) []protogate.ProtocolVersion {
	var violations []protogate.ProtocolVersion
	for _, v := range r.Accepted() {
		if !p.Allows(v) {
			violations = append(violations, v)
		}
	}
	return violations
}

// Errors returns the transport errors hit while probing, keyed by version.
func (r Result) Errors() map[protogate.ProtocolVersion]error {
	errs := map[protogate.ProtocolVersion]error{}
	for v, vr := range r.Versions {
		if vr.Err != nil {
			errs[v] = vr.Err
		}
	}
	return errs
}
