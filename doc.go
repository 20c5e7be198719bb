// Package taskengine provides a bounded concurrent task-execution
// engine: an admission-controlled worker pool with capacity-bounded
// queueing, configurable back-pressure, per-task timing, and delayed
// retry of transient failures.
//
// # Design goals
//
// The engine optimizes for predictable behavior under overload rather
// than raw throughput:
//
//   - A fixed-capacity FIFO admission queue bounds memory
//   - Admission never blocks; the rejection policy decides what a
//     full queue means for the producer
//   - Timing separates queue wait from execution latency
//   - Shutdown drains, then abandons, and reports both numerically
//
// # Architecture overview
//
// The engine is composed of five owned pieces:
//
//  1. Admission queue
//     A fixed-capacity FIFO between producers and workers. Enqueue is
//     non-blocking; dequeue blocks workers until work arrives or the
//     engine shuts down.
//
//  2. Worker pool
//     CoreWorkers persistent loops, plus burst workers up to
//     MaxWorkers spawned while the queue is non-empty and every
//     worker is busy. Burst workers retire after IdleTimeout idle.
//     A panicking payload never kills a worker.
//
//  3. Rejection policy
//     FailFast returns ErrSaturated to the producer. CallerExecutes
//     runs the task synchronously on the producer's goroutine; the
//     producer stalls for the full execution, which is the
//     back-pressure mechanism, not a defect. Both modes count the
//     event in the rejected metric.
//
//  4. Retry scheduler
//     Task functions classify their own outcome as success,
//     transient failure, or permanent failure. Transient failures
//     are re-armed on independent timers with jittered backoff and
//     resubmitted through the same admission path as fresh work,
//     until the attempts ceiling promotes them to permanent.
//
//  5. Metrics aggregator
//     Atomic counters and cumulative timers, read as immutable
//     snapshots. A Prometheus Collector is provided for scrape
//     registries.
//
// # Error handling
//
// Nothing in the engine is fatal to the process. Saturation and
// closed-engine errors are returned synchronously from Submit.
// Payload failures surface through the per-task Done callback and the
// engine-wide OnTaskError hook; work still pending when a shutdown
// drain gives up is reported in aggregate through the ShutdownReport.
//
// # Intended use cases
//
// taskengine suits in-process workloads that need admission control
// and retry without a broker: request-driven side effects, fan-out
// pipelines, and background work behind a service front end. It is
// not a distributed job queue, keeps no durable state, and schedules
// strictly FIFO.
package taskengine
