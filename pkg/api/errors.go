package api

import (
	"errors"
	"fmt"
)

// Error taxonomy for transport failures. Poll-driven callers treat network
// and server errors as transient (retried on the next tick); validation and
// not-found errors are surfaced to the user and never retried.
var (
	ErrNetwork    = errors.New("network error")
	ErrServer     = errors.New("server error")
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
)

// classifyStatus maps an HTTP response status to the error taxonomy.
func classifyStatus(status int, body string) error {
	switch {
	case status == 404:
		return fmt.Errorf("%w: %s", ErrNotFound, body)
	case status >= 400 && status < 500:
		return fmt.Errorf("%w: status %d: %s", ErrValidation, status, body)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrServer, status, body)
	}
}

// IsTransient reports whether err should be retried by the poll loop.
func IsTransient(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrServer)
}
