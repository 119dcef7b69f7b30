package lifecycle

import "errors"

// Failure taxonomy for orchestrator operations. Callers branch with
// errors.Is; the HTTP layer maps each sentinel to a status code.
var (
	ErrNotFound        = errors.New("lifecycle: not found")
	ErrForbidden       = errors.New("lifecycle: forbidden")
	ErrConflict        = errors.New("lifecycle: conflict")
	ErrInvalidState    = errors.New("lifecycle: invalid state")
	ErrInvalidArgument = errors.New("lifecycle: invalid argument")

	// ErrProviderFailure marks a failed room/token provider call. The
	// triggering operation is aborted with no local writes.
	ErrProviderFailure = errors.New("lifecycle: room provider failure")
)
