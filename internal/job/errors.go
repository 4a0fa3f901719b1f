package job

import (
	"errors"
	"fmt"
)

var (
	// ErrQueueFull rejects an enqueue when the backlog is at capacity.
	// Callers may retry later.
	ErrQueueFull = errors.New("queue full")

	ErrNotFound  = errors.New("job not found")
	ErrForbidden = errors.New("requester does not own job")

	// ErrConflict is returned when an operation is illegal in the job's
	// current state, e.g. cancelling an active job.
	ErrConflict = errors.New("conflicting job state")

	// ErrInvalidTransition wraps ErrConflict for mutator calls made out of
	// order, such as reporting progress on a completed job.
	ErrInvalidTransition = fmt.Errorf("invalid transition: %w", ErrConflict)

	// ErrRunnerFailure marks failures raised by a runner. They are recorded
	// on the job and never returned to scheduler callers.
	ErrRunnerFailure = errors.New("runner failure")

	ErrUnknownKind    = errors.New("unknown job kind")
	ErrInvalidRequest = errors.New("invalid request")
	ErrClosed         = errors.New("scheduler closed")
)
