// Package errors provides the sentinel errors shared across the delivery
// engine. Handlers map these to HTTP status codes; everything else wraps
// them with context via Wrap.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates input failed validation at the registry boundary.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEndpointInactive indicates the operation requires a deliverable endpoint.
	ErrEndpointInactive = errors.New("endpoint inactive")
)

// Wrap adds context while preserving the error chain.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
