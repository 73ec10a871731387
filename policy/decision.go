package policy

import (
	"fmt"

	"github.com/pivotal-cf/protogate"
)

type Side int

const (
	ClientSide Side = iota
	ServerSide
)

func (s Side) String() string {
	if s == ServerSide {
		return "server"
	}
	return "client"
}

// HandshakeAttempt is the version proposed for one connection attempt. It
// lives only until a Decision is made.
type HandshakeAttempt struct {
	Version protogate.ProtocolVersion
	Side    Side
	Remote  string
}

// Verdict's zero value is Reject so an empty Decision never admits a
// connection.
type Verdict int

const (
	Reject Verdict = iota
	Accept
)

func (v Verdict) String() string {
	if v == Accept {
		return "accept"
	}
	return "reject"
}

type Decision struct {
	Verdict Verdict
	Version protogate.ProtocolVersion
	Reason  string
}

func (d Decision) Accepted() bool {
	return d.Verdict == Accept
}

// Err returns a *HandshakeRejected for a reject and nil otherwise.
func (d Decision) Err() error {
	if d.Accepted() {
		return nil
	}
	return &HandshakeRejected{Decision: d}
}

// Evaluate accepts attempt iff its version is in p. It has no side effects.
func Evaluate(attempt HandshakeAttempt, p Policy) Decision {
	if p.Allows(attempt.Version) {
		return Decision{Verdict: Accept, Version: attempt.Version}
	}

	return Decision{
		Verdict: Reject,
		Version: attempt.Version,
		Reason: fmt.Sprintf(
			"%s policy does not allow protocol version %s (allowed: %s)",
			attempt.Side, attempt.Version, p,
		),
	}
}

// Aborted is the decision recorded when the TLS library gives up on a
// handshake before the policy could rule on it.
func Aborted(attempt HandshakeAttempt, cause error) Decision {
	return Decision{
		Verdict: Reject,
		Version: attempt.Version,
		Reason:  fmt.Sprintf("%s handshake aborted: %s", attempt.Side, cause),
	}
}
