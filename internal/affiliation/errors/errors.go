// Package errors defines the error taxonomy shared across the
// affiliation workflow and its remote gateway.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a 404 from the backend for the requested record.
	ErrNotFound = fmt.Errorf("not found")
	// ErrInvalidTransition signals a transition attempted from a state it
	// is not defined for. Raised client-side before any network call, and
	// also mapped from backend rejections of already-transitioned records.
	ErrInvalidTransition = fmt.Errorf("invalid transition")
	// ErrMissingReason signals a rejection attempted without a reason.
	// Detected client-side; never sent to the network.
	ErrMissingReason = fmt.Errorf("missing rejection reason")
	// ErrUnauthorized signals a 401 from the backend. Propagated distinctly
	// so the caller can trigger re-authentication instead of retrying.
	ErrUnauthorized = fmt.Errorf("unauthorized")
)

// RemoteError carries a non-2xx or transport-level failure from one of
// the backend operations.
type RemoteError struct {
	// Op names the backend operation that failed.
	Op string
	// StatusCode is the upstream HTTP status, 0 for transport failures.
	StatusCode int
	// Message is derived from the response body when available, otherwise
	// a generic message keyed to the status.
	Message string
}

func (e *RemoteError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Message, e.StatusCode)
}

// AsRemote unwraps err into a RemoteError when one is in the chain.
func AsRemote(err error) (*RemoteError, bool) {
	var re *RemoteError
	ok := errors.As(err, &re)
	return re, ok
}
