package gate

import (
	"sync"

	"github.com/pivotal-cf/protogate"
	"github.com/pivotal-cf/protogate/policy"
)

// State is the lifecycle position of one connection attempt.
type State int

const (
	Initiated State = iota
	VersionProposed
	Accepted
	Rejected
	DataExchange
	Closed
)

var stateNames = map[State]string{
	Initiated:       "initiated",
	VersionProposed: "version-proposed",
	Accepted:        "accepted",
	Rejected:        "rejected",
	DataExchange:    "data-exchange",
	Closed:          "closed",
}

func (s State) String() string {
	return stateNames[s]
}

// Accepted may still fall to Rejected: the version check runs before the
// final handshake messages, and the library can abort after it.
var transitions = map[State][]State{
	Initiated:       {VersionProposed, Rejected},
	VersionProposed: {Accepted, Rejected},
	Accepted:        {DataExchange, Rejected},
	DataExchange:    {Closed},
	Rejected:        {Closed},
}

// Attempt tracks one connection from dial or accept until close. The TLS
// library's callbacks and the connection's owner both update it.
type Attempt struct {
	mu        sync.Mutex
	handshake policy.HandshakeAttempt
	state     State
	decision  policy.Decision
	aborted   bool
	history   []State
}

func newAttempt(side policy.Side, remote string) *Attempt {
	return &Attempt{
		handshake: policy.HandshakeAttempt{Side: side, Remote: remote},
		state:     Initiated,
		history:   []State{Initiated},
	}
}

func (a *Attempt) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// History lists every state the attempt has passed through, in order.
func (a *Attempt) History() []State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]State(nil), a.history...)
}

func (a *Attempt) Decision() policy.Decision {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.decision
}

// Aborted reports whether the attempt ended without the policy ruling on
// it: a timeout, an alert from the peer or an I/O failure.
func (a *Attempt) Aborted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.aborted
}

func (a *Attempt) Handshake() policy.HandshakeAttempt {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.handshake
}

// moveLocked ignores transitions the state machine does not allow.
func (a *Attempt) moveLocked(to State) bool {
	for _, next := range transitions[a.state] {
		if next == to {
			a.state = to
			a.history = append(a.history, to)
			return true
		}
	}
	return false
}

func (a *Attempt) propose(version protogate.ProtocolVersion) policy.HandshakeAttempt {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handshake.Version = version
	a.moveLocked(VersionProposed)
	return a.handshake
}

// negotiated records the version the library settled on, which the
// policy is about to rule on.
func (a *Attempt) negotiated(version protogate.ProtocolVersion) policy.HandshakeAttempt {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handshake.Version = version
	if a.state == Initiated {
		a.moveLocked(VersionProposed)
	}
	return a.handshake
}

func (a *Attempt) decide(d policy.Decision) {
	a.mu.Lock()
	defer a.mu.Unlock()

	to := Rejected
	if d.Accepted() {
		to = Accepted
	}
	if a.moveLocked(to) {
		a.decision = d
	}
}

// abort records a library or transport failure. It returns the policy's
// own rejection when that is what ended the handshake.
func (a *Attempt) abort(cause error) (policy.Decision, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == Rejected || a.state == Closed {
		return a.decision, !a.aborted
	}

	a.decision = policy.Aborted(a.handshake, cause)
	a.aborted = true
	a.moveLocked(Rejected)
	return a.decision, false
}

func (a *Attempt) establish() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.moveLocked(DataExchange)
}

// close reports whether closing cut a handshake short.
func (a *Attempt) close(cause error) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	cut := false
	if a.state != DataExchange && a.state != Rejected && a.state != Closed {
		a.decision = policy.Aborted(a.handshake, cause)
		a.aborted = true
		a.moveLocked(Rejected)
		cut = true
	}
	a.moveLocked(Closed)
	return cut
}
