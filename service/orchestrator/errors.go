package orchestrator

import "errors"

var (
	// ErrUnknownProcess is returned for a nonexistent or already terminated id.
	ErrUnknownProcess = errors.New("orchestrator: unknown process")

	// ErrInvalidRequest is returned when a submission fails validation.
	ErrInvalidRequest = errors.New("orchestrator: invalid request")

	// ErrStarted is returned when Start is called twice.
	ErrStarted = errors.New("orchestrator: already started")
)
