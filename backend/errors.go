package backend

import (
	"errors"
	"fmt"
)

// TransportFailure reports that a remote call did not complete successfully:
// either the request never got a response or the response status was not 2xx.
type TransportFailure struct {
	Op     string // list, create, update, remove
	Status int    // HTTP status, 0 when no response was received
	Err    error
}

// Error implements the error interface.
func (f *TransportFailure) Error() string {
	switch {
	case f.Status != 0 && f.Err != nil:
		return fmt.Sprintf("failed to %s items: status %d: %v", f.Op, f.Status, f.Err)
	case f.Status != 0:
		return fmt.Sprintf("failed to %s items: status %d", f.Op, f.Status)
	case f.Err != nil:
		return fmt.Sprintf("failed to %s items: %v", f.Op, f.Err)
	default:
		return fmt.Sprintf("failed to %s items", f.Op)
	}
}

// Unwrap returns the underlying cause.
func (f *TransportFailure) Unwrap() error {
	return f.Err
}

// IsTransportFailure reports whether err (or anything it wraps) is a TransportFailure.
func IsTransportFailure(err error) bool {
	var tf *TransportFailure
	return errors.As(err, &tf)
}
