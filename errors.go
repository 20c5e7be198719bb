package taskengine

import "errors"

// ErrSaturated is returned by Submit under RejectFailFast when the
// admission queue is at capacity. The task was not executed; the caller
// decides whether to retry later.
var ErrSaturated = errors.New("taskengine: engine saturated")

// ErrClosed is returned by Submit once Shutdown has been initiated.
var ErrClosed = errors.New("taskengine: engine closed")

// ErrInvalidConfig wraps all construction-time validation failures.
// Use errors.Is to detect it regardless of the specific parameter
// that was rejected.
var ErrInvalidConfig = errors.New("taskengine: invalid configuration")

// ErrNilFunc is returned when a submitted Task has a nil Fn.
var ErrNilFunc = errors.New("taskengine: task func is nil")
