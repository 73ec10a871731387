package policy

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigError is returned at setup time for an unusable allow-list or a
// factory that cannot take a policy. It is fatal to startup.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "protocol policy: " + e.Reason
}

func configErrorf(format string, args ...interface{}) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// NewConfigError is used by attachment code outside this package.
func NewConfigError(format string, args ...interface{}) *ConfigError {
	return configErrorf(format, args...)
}

// HandshakeRejected means a connection attempt used a version outside the
// applicable policy. It is never retried.
type HandshakeRejected struct {
	Decision Decision
}

func (e *HandshakeRejected) Error() string {
	return "handshake rejected: " + e.Decision.Reason
}

// TransportError wraps an I/O or TLS library failure unrelated to the
// version policy.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e.Op == "" {
		return "transport: " + e.Err.Error()
	}
	return strings.Join([]string{"transport", e.Op, e.Err.Error()}, ": ")
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the wrapped error was a timeout.
func (e *TransportError) Timeout() bool {
	var t interface{ Timeout() bool }
	return errors.As(e.Err, &t) && t.Timeout()
}
