package taskengine

import (
	"time"

	"github.com/google/uuid"
)

// Outcome classifies how a task attempt ended. The engine never
// inspects payload errors itself; the task function reports its own
// classification so retry branching stays unambiguous.
type Outcome int

const (
	// OutcomeSuccess means the attempt completed normally.
	OutcomeSuccess Outcome = iota

	// OutcomeTransient means the attempt failed in a way that is
	// likely to succeed if retried.
	OutcomeTransient

	// OutcomePermanent means the attempt failed and retrying would
	// not help.
	OutcomePermanent
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "Success"
	case OutcomeTransient:
		return "TransientFailure"
	case OutcomePermanent:
		return "PermanentFailure"
	default:
		return "Unknown"
	}
}

// Result is the tagged outcome of a single task attempt.
type Result struct {
	Outcome Outcome
	Err     error
}

// Success reports a completed attempt.
func Success() Result { return Result{Outcome: OutcomeSuccess} }

// TransientFailure reports a recoverable failure. The engine will
// retry the task while attempts remain.
func TransientFailure(err error) Result {
	return Result{Outcome: OutcomeTransient, Err: err}
}

// PermanentFailure reports a non-recoverable failure. No retry is
// attempted.
func PermanentFailure(err error) Result {
	return Result{Outcome: OutcomePermanent, Err: err}
}

// TaskFunc executes one attempt for a payload and classifies how it
// went.
type TaskFunc[T any] func(T) Result

// TaskResult is handed to Task.Done exactly once, when the task
// reaches a terminal state: success, permanent failure, or a transient
// failure that exhausted its retry attempts.
type TaskResult struct {
	// ID is the engine-assigned identifier of the task.
	ID string

	// Outcome is OutcomeSuccess or OutcomePermanent. A transient
	// failure promoted by retry exhaustion is reported as permanent.
	Outcome Outcome

	// Err is the error from the final attempt, nil on success.
	Err error

	// Attempts is how many times the task was executed.
	Attempts int
}

// Task is a single unit of work submitted to the engine.
type Task[T any] struct {
	// Payload is passed to Fn on every attempt.
	Payload T

	// Fn executes one attempt. Required.
	Fn TaskFunc[T]

	// Done, if set, is invoked exactly once with the terminal
	// outcome. It runs on the goroutine that executed the final
	// attempt and is the only per-task completion channel the
	// engine offers.
	Done func(TaskResult)

	// Retry overrides the engine retry policy for this task.
	// Zero fields fall back to the engine default.
	Retry *RetryPolicy
}

// envelope wraps a task for its trip through the admission queue.
// One envelope lives for the whole retry chain of its task; attempt
// is bumped by the retry scheduler on each resubmission.
type envelope[T any] struct {
	id         string
	task       Task[T]
	enqueuedAt time.Time
	attempt    int
	policy     RetryPolicy
	backoff    delaySource
}

// delaySource yields successive retry delays. Satisfied by the backoff
// package without naming its concrete type.
type delaySource interface {
	Next() time.Duration
}

func newEnvelope[T any](task Task[T], defaults RetryPolicy) *envelope[T] {
	return &envelope[T]{
		id:      uuid.NewString(),
		task:    task,
		attempt: 1,
		policy:  defaults.merge(task.Retry),
	}
}

// terminal builds the TaskResult reported through Task.Done.
func (e *envelope[T]) terminal(out Outcome, err error) TaskResult {
	return TaskResult{
		ID:       e.id,
		Outcome:  out,
		Err:      err,
		Attempts: e.attempt,
	}
}
