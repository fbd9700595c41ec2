package idp

import (
	"errors"
	"fmt"

	"golang.org/x/oauth2"
)

// Operation names a provider call for errors and metrics.
type Operation string

const (
	OpExchange Operation = "exchange"
	OpRefresh  Operation = "refresh"
	OpIdentity Operation = "identity"
)

// ProviderError is returned by every Provider method that fails.
// StatusCode is zero when no HTTP response was received.
type ProviderError struct {
	Op         Operation
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s failed (status %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s failed: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// newProviderError wraps err, lifting the HTTP status out of oauth2 token
// endpoint failures.
func newProviderError(op Operation, err error) *ProviderError {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}

	status := 0
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		status = re.Response.StatusCode
	}
	return &ProviderError{Op: op, StatusCode: status, Err: err}
}

var errMissingSubject = errors.New("user profile has no id")
