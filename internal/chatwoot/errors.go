package chatwoot

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnrecognizedResponse means the request succeeded but the payload matched
// none of the known wrapper shapes. This points at an upstream contract change
// rather than a connectivity problem, so it is kept distinct from transport
// failures.
var ErrUnrecognizedResponse = errors.New("chatwoot: unrecognized response shape")

// ErrTimeout marks requests that were abandoned after the client timeout.
var ErrTimeout = errors.New("chatwoot: request timed out")

// RejectedError is a request that completed with a non-success status.
type RejectedError struct {
	Status int
	Body   string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("chatwoot: rejected with status %d: %s", e.Status, e.Body)
}

// Conflict reports whether the rejection signals a uniqueness violation on a
// create call. Chatwoot answers 422 with a "taken" validation message for
// duplicate identifiers and source ids; some deployments answer 409.
func (e *RejectedError) Conflict() bool {
	return e.Status == http.StatusConflict || e.Status == http.StatusUnprocessableEntity
}

// IsConflict reports whether err is a uniqueness-violation rejection.
func IsConflict(err error) bool {
	var rejected *RejectedError
	return errors.As(err, &rejected) && rejected.Conflict()
}

// IsTimeout reports whether err is a timed-out request.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
