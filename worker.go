package taskengine

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// worker is one execution loop. Core workers block on Dequeue until
// shutdown; burst workers use the idle-bounded variant and retire
// themselves after IdleTimeout without work.
func (e *Engine[T]) worker(burst bool) {
	defer func() {
		e.running.Add(-1)
		e.retired.Add(1)
		e.wg.Done()
	}()
	for {
		var env *envelope[T]
		var ok bool
		if burst {
			env, ok = e.queue.DequeueTimeout(e.cfg.IdleTimeout)
		} else {
			env, ok = e.queue.Dequeue()
		}
		if !ok {
			return
		}
		e.runEnvelope(env, false)
	}
}

// runEnvelope executes one attempt and routes its outcome. inline
// marks a CallerExecutes run: the envelope never queued, so its
// queue-wait is recorded as zero.
//
// Timing and the completed counter are recorded only for terminal
// attempts; a transient failure with retries left is not a completion
// event. Averages derived from the snapshot stay sum/completed.
func (e *Engine[T]) runEnvelope(env *envelope[T], inline bool) {
	e.busy.Add(1)
	defer e.busy.Add(-1)

	start := time.Now()
	res := e.invoke(env)
	exec := time.Since(start)

	var wait time.Duration
	if !inline {
		wait = start.Sub(env.enqueuedAt)
	}

	switch res.Outcome {
	case OutcomeTransient:
		e.reportTaskError(res.Err)
		switch e.retry.Schedule(env) {
		case retryArmed:
			e.metrics.incRetried()
			e.log.Warn("task failed transiently, retry armed",
				zap.String("task_id", env.id),
				zap.Int("attempt", env.attempt),
				zap.Error(res.Err),
			)
		case retryExhausted:
			e.metrics.observeCompletion(wait, exec)
			e.metrics.incFailed()
			e.log.Error("task failed permanently, attempts exhausted",
				zap.String("task_id", env.id),
				zap.Int("attempt", env.attempt),
				zap.Error(res.Err),
			)
			e.finish(env, OutcomePermanent, res.Err)
		case retryClosed:
			e.abandonedLate.Add(1)
			e.log.Warn("retry not armed, engine closed",
				zap.String("task_id", env.id),
			)
		}

	case OutcomePermanent:
		e.reportTaskError(res.Err)
		e.metrics.observeCompletion(wait, exec)
		e.metrics.incFailed()
		e.log.Error("task failed permanently",
			zap.String("task_id", env.id),
			zap.Int("attempt", env.attempt),
			zap.Error(res.Err),
		)
		e.finish(env, OutcomePermanent, res.Err)

	default:
		e.metrics.observeCompletion(wait, exec)
		e.log.Debug("task completed",
			zap.String("task_id", env.id),
			zap.Int("attempt", env.attempt),
			zap.Duration("queue_wait", wait),
			zap.Duration("exec", exec),
		)
		e.finish(env, OutcomeSuccess, nil)
	}
}

// invoke runs the payload with panic containment. A panicking payload
// must never kill a worker; it is classified as a permanent failure.
func (e *Engine[T]) invoke(env *envelope[T]) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("taskengine: task panicked: %v", r)
			e.log.Error("task panicked",
				zap.String("task_id", env.id),
				zap.Any("panic", r),
			)
			res = PermanentFailure(err)
		}
	}()
	return env.task.Fn(env.task.Payload)
}

// finish delivers the terminal outcome through the task's callback.
// The callback runs on the goroutine that executed the final attempt;
// a panic in it is contained the same way payload panics are.
func (e *Engine[T]) finish(env *envelope[T], out Outcome, err error) {
	if env.task.Done == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.reportInternalError(fmt.Errorf("taskengine: done callback panicked: %v", r))
		}
	}()
	env.task.Done(env.terminal(out, err))
}

// reportTaskError forwards a payload error to the configured handler.
// Task errors never stop worker execution.
func (e *Engine[T]) reportTaskError(err error) {
	if e.cfg.OnTaskError != nil && err != nil {
		e.cfg.OnTaskError(err)
	}
}

// reportInternalError reports a non-task failure such as a panicking
// callback. Silently ignored when no handler is registered.
func (e *Engine[T]) reportInternalError(err error) {
	if e.cfg.OnInternalError != nil {
		e.cfg.OnInternalError(err)
	}
}
