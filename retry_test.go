package taskengine

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryThenSuccess(t *testing.T) {
	e := newTestEngine(t, Config{
		CoreWorkers:   1,
		MaxWorkers:    1,
		QueueCapacity: 4,
		Retry:         fastRetry, // 3 attempts
	})

	var attempts atomic.Int32
	var got TaskResult
	done := make(chan struct{})
	require.NoError(t, e.Submit(Task[int]{
		Fn: func(int) Result {
			if attempts.Add(1) < 3 {
				return TransientFailure(errors.New("not yet"))
			}
			return Success()
		},
		Done: func(r TaskResult) {
			got = r
			close(done)
		},
	}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not succeed after retries")
	}
	assert.Equal(t, int32(3), attempts.Load())
	assert.Equal(t, OutcomeSuccess, got.Outcome)
	assert.Equal(t, 3, got.Attempts)

	s := e.Snapshot()
	assert.Equal(t, uint64(1), s.Completed, "only the terminal attempt is a completion event")
	assert.Equal(t, uint64(2), s.Retried)
	assert.Equal(t, uint64(0), s.Failed)
}

func TestRetryExhaustedPromotesToPermanent(t *testing.T) {
	e := newTestEngine(t, Config{
		CoreWorkers:   1,
		MaxWorkers:    1,
		QueueCapacity: 4,
		Retry:         RetryPolicy{Attempts: 2, Delay: 2 * time.Millisecond, MaxDelay: 5 * time.Millisecond},
	})

	boom := errors.New("boom")
	var attempts atomic.Int32
	var calls atomic.Int32
	var got TaskResult
	done := make(chan struct{})
	require.NoError(t, e.Submit(Task[int]{
		Fn: func(int) Result {
			attempts.Add(1)
			return TransientFailure(boom)
		},
		Done: func(r TaskResult) {
			if calls.Add(1) == 1 {
				got = r
				close(done)
			}
		},
	}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("permanent failure never reported")
	}
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, int32(2), attempts.Load(), "a 2-attempt policy executes exactly twice")
	assert.Equal(t, int32(1), calls.Load(), "Done must fire exactly once")
	assert.Equal(t, OutcomePermanent, got.Outcome)
	require.ErrorIs(t, got.Err, boom)

	s := e.Snapshot()
	assert.Equal(t, uint64(1), s.Failed)
	assert.Equal(t, uint64(1), s.Retried)
	assert.Equal(t, uint64(1), s.Completed)
}

func TestPerTaskRetryOverride(t *testing.T) {
	e := newTestEngine(t, Config{
		CoreWorkers:   1,
		MaxWorkers:    1,
		QueueCapacity: 4,
		Retry:         RetryPolicy{Attempts: 1, Delay: 2 * time.Millisecond, MaxDelay: 5 * time.Millisecond},
	})

	var attempts atomic.Int32
	done := make(chan struct{})
	require.NoError(t, e.Submit(Task[int]{
		Retry: &RetryPolicy{Attempts: 3},
		Fn: func(int) Result {
			if attempts.Add(1) < 3 {
				return TransientFailure(errors.New("again"))
			}
			return Success()
		},
		Done: func(TaskResult) { close(done) },
	}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("override policy not honored")
	}
	assert.Equal(t, int32(3), attempts.Load())
}

func TestRetryFacesAdmissionPolicy(t *testing.T) {
	e := newTestEngine(t, Config{
		CoreWorkers:   1,
		MaxWorkers:    1,
		QueueCapacity: 1,
		RejectionMode: RejectFailFast,
		Retry:         RetryPolicy{Attempts: 2, Delay: 50 * time.Millisecond, MaxDelay: 60 * time.Millisecond},
	})

	var got TaskResult
	done := make(chan struct{})
	require.NoError(t, e.Submit(Task[int]{
		Fn: func(int) Result { return TransientFailure(errors.New("flaky")) },
		Done: func(r TaskResult) {
			got = r
			close(done)
		},
	}))
	waitUntil(t, time.Second, func() bool { return e.Snapshot().Retried == 1 })

	// saturate the engine before the retry timer fires
	release := make(chan struct{})
	defer close(release)
	blocker := Task[int]{Fn: func(int) Result { <-release; return Success() }}
	require.NoError(t, e.Submit(blocker))
	waitUntil(t, time.Second, func() bool { return e.ActiveWorkers() == 1 })
	require.NoError(t, e.Submit(blocker))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("rejected retry was silently dropped")
	}
	assert.Equal(t, OutcomePermanent, got.Outcome)
	require.ErrorIs(t, got.Err, ErrSaturated)
}

func TestShutdownCancelsArmedRetries(t *testing.T) {
	e, err := New[int](Config{
		CoreWorkers:   1,
		MaxWorkers:    1,
		QueueCapacity: 4,
		Retry:         RetryPolicy{Attempts: 3, Delay: time.Minute, MaxDelay: time.Minute},
	})
	require.NoError(t, err)

	require.NoError(t, e.Submit(Task[int]{
		Fn: func(int) Result { return TransientFailure(errors.New("later")) },
	}))
	waitUntil(t, time.Second, func() bool { return e.Snapshot().Retried == 1 })

	rep := e.Shutdown(time.Second)
	assert.Equal(t, 1, rep.RetriesCancelled)
}

func TestSchedulerCeiling(t *testing.T) {
	s := newRetryScheduler[int](func(*envelope[int]) {}, func(*envelope[int]) {})

	env := testEnvelope(1)
	env.policy = RetryPolicy{Attempts: 2, Delay: time.Millisecond, MaxDelay: time.Millisecond}
	env.attempt = 2
	assert.Equal(t, retryExhausted, s.Schedule(env))

	env.attempt = 1
	assert.Equal(t, retryArmed, s.Schedule(env))
	assert.Equal(t, 1, s.Pending())
	s.CancelAll()
}

func TestSchedulerClosedRejectsNewRetries(t *testing.T) {
	s := newRetryScheduler[int](func(*envelope[int]) {}, func(*envelope[int]) {})
	s.CancelAll()

	env := testEnvelope(1)
	env.policy = RetryPolicy{Attempts: 5, Delay: time.Millisecond, MaxDelay: time.Millisecond}
	assert.Equal(t, retryClosed, s.Schedule(env))
}
