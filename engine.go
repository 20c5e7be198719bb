package taskengine

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Engine is an admission-controlled worker pool. Producers hand it
// tasks through Submit; the engine queues them under a fixed capacity,
// executes them on core workers (plus burst workers up to MaxWorkers),
// retries transient failures after a delay, and keeps per-task timing
// in an atomic metrics aggregator.
//
// All methods are safe for concurrent use.
type Engine[T any] struct {
	cfg     Config
	log     *zap.Logger
	queue   *admissionQueue[T]
	metrics *metrics
	retry   *retryScheduler[T]

	wg      sync.WaitGroup
	running atomic.Int32 // live workers, core and burst
	busy    atomic.Int32 // workers currently executing a payload
	retired atomic.Int32 // workers that exited their loop cleanly

	// retries that fired or surfaced after shutdown began
	abandonedLate atomic.Int32

	closed   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	report   ShutdownReport
}

// New validates cfg, fills defaults, and starts the core workers.
func New[T any](cfg Config) (*Engine[T], error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.fillDefaults()

	e := &Engine[T]{
		cfg:     cfg,
		log:     cfg.Logger,
		queue:   newAdmissionQueue[T](cfg.QueueCapacity),
		metrics: &metrics{},
		closed:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	e.retry = newRetryScheduler[T](e.resubmit, e.abandonRetry)

	e.running.Add(int32(cfg.CoreWorkers))
	for i := 0; i < cfg.CoreWorkers; i++ {
		e.wg.Add(1)
		go e.worker(false)
	}

	e.log.Info("engine started",
		zap.Int("core_workers", cfg.CoreWorkers),
		zap.Int("max_workers", cfg.MaxWorkers),
		zap.Int("queue_capacity", cfg.QueueCapacity),
		zap.String("rejection_mode", cfg.RejectionMode.String()),
	)
	return e, nil
}

// Submit offers a task to the engine. It returns nil once the task is
// queued (or, under CallerExecutes with a full queue, once it has run
// to completion on the calling goroutine), ErrSaturated under FailFast
// with a full queue, and ErrClosed after Shutdown has been initiated.
func (e *Engine[T]) Submit(task Task[T]) error {
	if task.Fn == nil {
		return ErrNilFunc
	}
	select {
	case <-e.closed:
		return ErrClosed
	default:
	}
	return e.admit(newEnvelope(task, e.cfg.Retry))
}

// admit is the single admission path. Retry resubmissions come through
// here too, so they face the same capacity bound and rejection policy
// as fresh work.
func (e *Engine[T]) admit(env *envelope[T]) error {
	e.metrics.incSubmitted()
	if e.queue.TryEnqueue(env) {
		e.metrics.incAccepted()
		e.log.Debug("task queued",
			zap.String("task_id", env.id),
			zap.Int("attempt", env.attempt),
			zap.Int("queue_len", e.queue.Len()),
		)
		e.maybeSpawnBurst()
		return nil
	}
	return e.rejectFull(env)
}

// rejectFull applies the configured rejection policy to an envelope
// the queue would not take. The rejected counter is bumped in both
// modes; under CallerExecutes the task still runs, and the counter is
// the saturation signal.
func (e *Engine[T]) rejectFull(env *envelope[T]) error {
	e.metrics.incRejected()
	switch e.cfg.RejectionMode {
	case RejectCallerExecutes:
		e.log.Debug("queue full, executing on caller",
			zap.String("task_id", env.id),
			zap.Int("attempt", env.attempt),
		)
		e.runEnvelope(env, true)
		return nil
	default:
		e.log.Debug("queue full, rejecting", zap.String("task_id", env.id))
		return ErrSaturated
	}
}

// resubmit is the retry scheduler's re-entry into the admission path.
// A retry rejected under FailFast has no caller to hand ErrSaturated
// to, so it terminates as a permanent failure instead of vanishing.
func (e *Engine[T]) resubmit(env *envelope[T]) {
	select {
	case <-e.closed:
		e.abandonRetry(env)
		return
	default:
	}
	if err := e.admit(env); err != nil {
		e.metrics.incFailed()
		e.log.Error("retry rejected, failing permanently",
			zap.String("task_id", env.id),
			zap.Int("attempt", env.attempt),
			zap.Error(err),
		)
		e.finish(env, OutcomePermanent, err)
	}
}

// abandonRetry handles a retry that met the closed engine. Abandoned
// work is reported in aggregate only.
func (e *Engine[T]) abandonRetry(env *envelope[T]) {
	e.abandonedLate.Add(1)
	e.log.Warn("retry skipped, engine closed", zap.String("task_id", env.id))
}

// maybeSpawnBurst adds a worker when queued work exists, every live
// worker is busy, and the pool is below MaxWorkers. The CAS on running
// keeps concurrent submitters from overshooting the bound.
func (e *Engine[T]) maybeSpawnBurst() {
	select {
	case <-e.closed:
		return
	default:
	}
	for {
		cur := e.running.Load()
		if int(cur) >= e.cfg.MaxWorkers || e.busy.Load() < cur || e.queue.Len() == 0 {
			return
		}
		if e.running.CompareAndSwap(cur, cur+1) {
			e.wg.Add(1)
			go e.worker(true)
			e.log.Debug("burst worker spawned", zap.Int32("workers", cur+1))
			return
		}
	}
}

// Snapshot returns a non-blocking point-in-time view of the counters.
// Safe to call at any time, including during shutdown.
func (e *Engine[T]) Snapshot() Snapshot { return e.metrics.snapshot() }

// ActiveWorkers returns the number of workers executing a payload.
func (e *Engine[T]) ActiveWorkers() int32 { return e.busy.Load() }

// QueueLength returns the number of envelopes waiting in the
// admission queue.
func (e *Engine[T]) QueueLength() int { return e.queue.Len() }

// ShutdownReport summarizes what Shutdown found and did.
type ShutdownReport struct {
	// WorkersRetired is how many workers exited their loop cleanly
	// before the drain deadline.
	WorkersRetired int

	// QueuedAtShutdown is the queue length at the moment Shutdown
	// was initiated.
	QueuedAtShutdown int

	// Abandoned counts envelopes that were still queued or in flight
	// when the drain gave up, plus retries that fired into the
	// closed engine.
	Abandoned int

	// RetriesCancelled is how many armed retry timers were stopped
	// before firing.
	RetriesCancelled int
}

// Shutdown stops admissions immediately, cancels armed retries, lets
// workers drain the queue for up to drainTimeout, then abandons
// whatever is left. In-flight payloads are not cancellable; a
// drainTimeout of zero abandons everything queued or running right
// away. Shutdown is idempotent: every call returns the same report.
func (e *Engine[T]) Shutdown(drainTimeout time.Duration) ShutdownReport {
	e.stopOnce.Do(func() {
		defer close(e.done)
		close(e.closed)

		queued := e.queue.Len()
		cancelled := e.retry.CancelAll()
		e.queue.BeginDrain()

		e.log.Info("engine shutting down",
			zap.Int("queued", queued),
			zap.Int("retries_cancelled", cancelled),
			zap.Duration("drain_timeout", drainTimeout),
		)

		if drainTimeout > 0 {
			drained := make(chan struct{})
			go func() {
				defer close(drained)
				e.wg.Wait()
			}()
			timer := time.NewTimer(drainTimeout)
			select {
			case <-drained:
			case <-timer.C:
				e.log.Warn("drain timeout elapsed, abandoning remaining work")
			}
			timer.Stop()
		}

		e.queue.Stop()
		abandoned := e.queue.Discard() + int(e.busy.Load()) + int(e.abandonedLate.Load())

		e.report = ShutdownReport{
			WorkersRetired:   int(e.retired.Load()),
			QueuedAtShutdown: queued,
			Abandoned:        abandoned,
			RetriesCancelled: cancelled,
		}
		e.log.Info("engine stopped",
			zap.Int("workers_retired", e.report.WorkersRetired),
			zap.Int("abandoned", e.report.Abandoned),
		)
	})
	<-e.done
	return e.report
}

// Stop is Shutdown with an effectively unbounded drain. It blocks
// until every worker has retired.
func (e *Engine[T]) Stop() ShutdownReport {
	return e.Shutdown(24 * time.Hour)
}
