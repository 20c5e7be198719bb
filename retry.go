package taskengine

import (
	"sync"
	"time"

	boff "github.com/Andrej220/go-utils/backoff"
)

type scheduleResult int

const (
	// retryArmed: a timer was set, the envelope will be resubmitted.
	retryArmed scheduleResult = iota

	// retryExhausted: the attempts ceiling is reached; the caller
	// promotes the failure to permanent.
	retryExhausted

	// retryClosed: shutdown has begun; the envelope is abandoned.
	retryClosed
)

// retryScheduler arms one independent timer per transiently-failed
// envelope and resubmits it through the same admission path external
// producers use, so a saturated engine treats a retry exactly like
// fresh work. The attempts ceiling lives here, not in the worker.
type retryScheduler[T any] struct {
	resubmit func(*envelope[T])
	abandon  func(*envelope[T])

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

func newRetryScheduler[T any](resubmit, abandon func(*envelope[T])) *retryScheduler[T] {
	return &retryScheduler[T]{
		resubmit: resubmit,
		abandon:  abandon,
		timers:   make(map[string]*time.Timer),
	}
}

// Schedule arms a retry for e after its next backoff delay. The first
// delay is the policy's Delay; later delays grow with jitter, capped
// at MaxDelay.
func (s *retryScheduler[T]) Schedule(e *envelope[T]) scheduleResult {
	if e.attempt >= e.policy.Attempts {
		return retryExhausted
	}
	if e.backoff == nil {
		e.backoff = boff.New(e.policy.Delay, e.policy.MaxDelay, time.Now().UnixNano())
	}
	delay := e.backoff.Next()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return retryClosed
	}
	s.timers[e.id] = time.AfterFunc(delay, func() { s.fire(e) })
	return retryArmed
}

// fire runs on the timer goroutine. A timer that fires after CancelAll
// observes the closed flag and abandons the envelope instead of
// resubmitting.
func (s *retryScheduler[T]) fire(e *envelope[T]) {
	s.mu.Lock()
	delete(s.timers, e.id)
	closed := s.closed
	s.mu.Unlock()

	if closed {
		s.abandon(e)
		return
	}
	e.attempt++
	s.resubmit(e)
}

// Pending returns the number of armed timers.
func (s *retryScheduler[T]) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// CancelAll stops every armed timer and closes the scheduler. It
// returns how many retries were cancelled before firing; timers that
// already fired take the abandon path on their own goroutine.
func (s *retryScheduler[T]) CancelAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0
	}
	s.closed = true
	cancelled := 0
	for id, t := range s.timers {
		if t.Stop() {
			cancelled++
		}
		delete(s.timers, id)
	}
	return cancelled
}
