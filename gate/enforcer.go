// Package gate attaches protocol policies to TLS dialers and listeners and
// tracks each connection attempt through its handshake.
package gate

import (
	"crypto/tls"

	"github.com/pivotal-cf/protogate"
	"github.com/pivotal-cf/protogate/gatelog"
	"github.com/pivotal-cf/protogate/policy"
)

// Observer sees every decision the enforcer makes, including aborts.
type Observer func(policy.HandshakeAttempt, policy.Decision)

type Option func(*Enforcer)

func WithObserver(observer Observer) Option {
	return func(e *Enforcer) {
		e.observer = observer
	}
}

// Enforcer holds no per-connection state. One value can serve any number
// of factories and concurrent handshakes.
type Enforcer struct {
	logger   gatelog.Logger
	observer Observer
}

func NewEnforcer(logger gatelog.Logger, opts ...Option) *Enforcer {
	if logger == nil {
		logger = gatelog.NewNopLogger()
	}

	e := &Enforcer{logger: logger}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Evaluate is policy.Evaluate plus logging and observation.
func (e *Enforcer) Evaluate(attempt policy.HandshakeAttempt, p policy.Policy) policy.Decision {
	decision := policy.Evaluate(attempt, p)
	e.record(attempt, decision)
	return decision
}

func (e *Enforcer) record(attempt policy.HandshakeAttempt, decision policy.Decision) {
	logger := e.logger.With(
		"side", attempt.Side.String(),
		"remote", attempt.Remote,
		"version", attempt.Version.String(),
	)

	if decision.Accepted() {
		logger.Debugf("Accepted handshake")
	} else {
		logger.Warnf("Rejected handshake: %s", decision.Reason)
	}

	if e.observer != nil {
		e.observer(attempt, decision)
	}
}

// AttachToClient limits f to the versions p allows. Versions the TLS
// library cannot speak are dropped from what the client offers; if nothing
// is left the policy cannot be attached.
func (e *Enforcer) AttachToClient(p policy.Policy, f *ClientFactory) error {
	if f == nil {
		return policy.NewConfigError("client factory is nil")
	}

	config, err := e.pin(p, f.Config)
	if err != nil {
		return err
	}

	return f.attach(e, p, config)
}

// AttachToServer limits l to the versions p allows. Clients that offer
// none of them are turned away before the TLS library or any handler sees
// the connection.
func (e *Enforcer) AttachToServer(p policy.Policy, l *ListenerFactory) error {
	if l == nil {
		return policy.NewConfigError("listener factory is nil")
	}

	config, err := e.pin(p, l.Config)
	if err != nil {
		return err
	}

	return l.attach(e, p, config)
}

func (e *Enforcer) pin(p policy.Policy, base *tls.Config) (*tls.Config, error) {
	if p.IsZero() {
		return nil, policy.NewConfigError("allow-list is empty")
	}

	lo, hi, ok := protogate.SpeakableRange(p.Versions())
	if !ok {
		return nil, policy.NewConfigError("no version in %s can be negotiated by crypto/tls", p)
	}

	var config *tls.Config
	if base == nil {
		config = &tls.Config{}
	} else {
		config = base.Clone()
	}

	config.MinVersion = lo
	config.MaxVersion = hi

	return config, nil
}
