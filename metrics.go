package taskengine

import (
	"sync/atomic"
	"time"
)

// metrics holds the engine's process-wide counters and cumulative
// timers. Writes are lock-free atomics on the hot path; reads happen
// on the cold path through Snapshot. The counters never share a lock
// with the admission queue.
type metrics struct {
	submitted atomic.Uint64
	accepted  atomic.Uint64
	rejected  atomic.Uint64

	_ [40]byte // padding to avoid false sharing with the completion-side counters

	completed atomic.Uint64
	retried   atomic.Uint64
	failed    atomic.Uint64

	queueWaitNanos atomic.Int64
	execNanos      atomic.Int64
}

func (m *metrics) incSubmitted() { m.submitted.Add(1) }
func (m *metrics) incAccepted()  { m.accepted.Add(1) }
func (m *metrics) incRejected()  { m.rejected.Add(1) }
func (m *metrics) incRetried()   { m.retried.Add(1) }
func (m *metrics) incFailed()    { m.failed.Add(1) }

// observeCompletion records the timing of a terminal attempt and bumps
// the completed counter. Each sum is updated atomically on its own;
// the snapshot invariants only need to hold at quiescent points.
func (m *metrics) observeCompletion(queueWait, exec time.Duration) {
	m.queueWaitNanos.Add(int64(queueWait))
	m.execNanos.Add(int64(exec))
	m.completed.Add(1)
}

func (m *metrics) snapshot() Snapshot {
	return Snapshot{
		Submitted:      m.submitted.Load(),
		Accepted:       m.accepted.Load(),
		Rejected:       m.rejected.Load(),
		Completed:      m.completed.Load(),
		Retried:        m.retried.Load(),
		Failed:         m.failed.Load(),
		TotalQueueWait: time.Duration(m.queueWaitNanos.Load()),
		TotalExec:      time.Duration(m.execNanos.Load()),
	}
}

// Snapshot is an immutable point-in-time view of the engine counters.
//
// Counters are monotonically non-decreasing. At any quiescent point
// Accepted + Rejected == Submitted; mid-update the sums may transiently
// differ.
type Snapshot struct {
	// Submitted counts every admission attempt, including retry
	// resubmissions.
	Submitted uint64

	// Accepted counts envelopes that entered the queue.
	Accepted uint64

	// Rejected counts full-queue events. Under CallerExecutes the
	// task still runs, but the rejection is counted for saturation
	// visibility.
	Rejected uint64

	// Completed counts terminal attempts: successes and permanent
	// failures. Transient failures that will be retried are not
	// completion events.
	Completed uint64

	// Retried counts armed retries.
	Retried uint64

	// Failed counts permanent failures, including transient failures
	// that exhausted their attempts.
	Failed uint64

	// TotalQueueWait and TotalExec are cumulative over completed
	// attempts.
	TotalQueueWait time.Duration
	TotalExec      time.Duration
}

// AvgQueueWait is TotalQueueWait / Completed, zero when nothing has
// completed.
func (s Snapshot) AvgQueueWait() time.Duration {
	if s.Completed == 0 {
		return 0
	}
	return s.TotalQueueWait / time.Duration(s.Completed)
}

// AvgExec is TotalExec / Completed, zero when nothing has completed.
func (s Snapshot) AvgExec() time.Duration {
	if s.Completed == 0 {
		return 0
	}
	return s.TotalExec / time.Duration(s.Completed)
}
