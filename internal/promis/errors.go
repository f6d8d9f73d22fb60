package promis

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the provider does not know the requested form OID.
var ErrNotFound = errors.New("form not found")

// ErrMissingCredentials is fatal at startup: the client cannot be built without
// a registration/token pair.
var ErrMissingCredentials = errors.New("promis: registration and token are required")

// InvalidArgumentError marks caller errors (missing form OID, empty response
// list where one is required). Not retryable.
type InvalidArgumentError struct {
	Msg string
}

func (e *InvalidArgumentError) Error() string { return e.Msg }

// UpstreamError is a non-success answer from the assessment provider. The
// session state machine treats it as recoverable: it rolls back the optimistic
// mutation and leaves the session resumable. Malformed provider JSON is folded
// in here with a message synthesized from the HTTP status.
type UpstreamError struct {
	Status int
	Detail string
}

func (e *UpstreamError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("assessment provider error (HTTP %d): %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("assessment provider error (HTTP %d)", e.Status)
}
