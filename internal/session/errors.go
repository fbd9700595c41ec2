package session

import (
	"errors"
	"fmt"
)

// ErrInvalidCredential is returned by Verify for every rejected credential:
// bad signature, malformed structure, wrong algorithm, or expiry. Callers
// must treat it as "unauthenticated" and must not expose the wrapped detail.
var ErrInvalidCredential = errors.New("invalid session credential")

// ConfigurationError reports a codec that cannot be built. It is fatal at
// startup: a service without a signing secret cannot issue sessions.
type ConfigurationError struct {
	Setting string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("session configuration: %s %s", e.Setting, e.Reason)
}
