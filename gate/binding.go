package gate

import (
	"crypto/tls"
	"sync"

	"github.com/pivotal-cf/protogate"
	"github.com/pivotal-cf/protogate/policy"
)

// binding is the configure-then-freeze part shared by both factories. The
// first dial or listen freezes it; attaching afterwards is an error.
type binding struct {
	mu       sync.Mutex
	frozen   bool
	enforcer *Enforcer
	policy   policy.Policy
	config   *tls.Config
}

func (b *binding) attach(kind string, e *Enforcer, p policy.Policy, config *tls.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frozen {
		return policy.NewConfigError("%s factory is already in use; build a new one to change its policy", kind)
	}

	b.enforcer = e
	b.policy = p
	b.config = config

	return nil
}

func (b *binding) freeze(kind string) (*Enforcer, policy.Policy, *tls.Config, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.enforcer == nil {
		return nil, policy.Policy{}, nil, policy.NewConfigError("no protocol policy attached to %s factory", kind)
	}

	b.frozen = true
	return b.enforcer, b.policy, b.config, nil
}

// Policy returns the attached policy; the zero Policy if none is.
func (b *binding) Policy() policy.Policy {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.policy
}

// verifyVersion rules on the version the library negotiated. It runs
// inside the handshake, so a reject aborts it before application data.
func (e *Enforcer) verifyVersion(p policy.Policy, a *Attempt, next func(tls.ConnectionState) error) func(tls.ConnectionState) error {
	return func(cs tls.ConnectionState) error {
		decision := e.Evaluate(a.negotiated(protogate.FromTLS(cs.Version)), p)
		a.decide(decision)
		if err := decision.Err(); err != nil {
			return err
		}

		if next != nil {
			return next(cs)
		}
		return nil
	}
}
