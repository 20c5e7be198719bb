package taskengine

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultIdleTimeout   = 30 * time.Second
	defaultRetryAttempts = 3
	defaultRetryDelay    = 200 * time.Millisecond
	defaultMaxRetryDelay = 5 * time.Second
)

// RejectionMode selects what Submit does when the admission queue is
// at capacity.
type RejectionMode int

const (
	// RejectFailFast makes Submit return ErrSaturated immediately.
	// The task is never executed by the engine.
	RejectFailFast RejectionMode = iota

	// RejectCallerExecutes runs the task synchronously on the
	// producer's own goroutine, bypassing the queue. Submit blocks
	// for the full execution and then returns nil. This is the
	// back-pressure mechanism: producer speed is coupled to consumer
	// capacity. The rejected counter is still incremented so
	// saturation events stay visible.
	RejectCallerExecutes
)

func (m RejectionMode) String() string {
	switch m {
	case RejectFailFast:
		return "FailFast"
	case RejectCallerExecutes:
		return "CallerExecutes"
	default:
		return "Unknown"
	}
}

// RetryPolicy describes how many times and how often a failed task is
// retried. Zero values are treated as "use engine defaults".
type RetryPolicy struct {
	// Attempts is the maximum number of tries for a task, including
	// the first one. Once exceeded, a transient failure is promoted
	// to permanent.
	Attempts int

	// Delay is the wait before the first retry.
	Delay time.Duration

	// MaxDelay caps the backoff growth between later retries.
	MaxDelay time.Duration
}

// merge overlays non-zero per-task values onto the engine default.
func (p RetryPolicy) merge(override *RetryPolicy) RetryPolicy {
	if override == nil {
		return p
	}
	if override.Attempts > 0 {
		p.Attempts = override.Attempts
	}
	if override.Delay > 0 {
		p.Delay = override.Delay
	}
	if override.MaxDelay > 0 {
		p.MaxDelay = override.MaxDelay
	}
	return p
}

// Config holds all engine parameters. Everything is fixed at
// construction; there is no runtime mutation.
type Config struct {
	// CoreWorkers is the number of persistent worker goroutines.
	CoreWorkers int

	// MaxWorkers bounds the total worker count. Workers above
	// CoreWorkers are spawned on demand when the queue is non-empty
	// and every current worker is busy, and retire themselves after
	// IdleTimeout without work.
	MaxWorkers int

	// QueueCapacity is the fixed size of the admission queue.
	QueueCapacity int

	// IdleTimeout is how long a burst worker waits for work before
	// retiring.
	IdleTimeout time.Duration

	// RejectionMode selects the full-queue policy.
	RejectionMode RejectionMode

	// Retry is the engine-wide retry policy for transient failures.
	// Individual tasks may override it via Task.Retry.
	Retry RetryPolicy

	// Logger receives engine events. Defaults to a no-op logger.
	Logger *zap.Logger

	// OnTaskError, if set, receives every payload error, transient or
	// permanent. Must be safe for concurrent use.
	OnTaskError func(error)

	// OnInternalError, if set, receives non-task failures such as a
	// panicking Done callback.
	OnInternalError func(error)
}

func (c *Config) fillDefaults() {
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.Retry.Attempts <= 0 {
		c.Retry.Attempts = defaultRetryAttempts
	}
	if c.Retry.Delay <= 0 {
		c.Retry.Delay = defaultRetryDelay
	}
	if c.Retry.MaxDelay <= 0 {
		c.Retry.MaxDelay = defaultMaxRetryDelay
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

func (c *Config) validate() error {
	if c.CoreWorkers < 1 {
		return fmt.Errorf("%w: core workers must be >= 1, got %d", ErrInvalidConfig, c.CoreWorkers)
	}
	if c.MaxWorkers < c.CoreWorkers {
		return fmt.Errorf("%w: max workers %d below core workers %d", ErrInvalidConfig, c.MaxWorkers, c.CoreWorkers)
	}
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("%w: queue capacity must be > 0, got %d", ErrInvalidConfig, c.QueueCapacity)
	}
	return nil
}
