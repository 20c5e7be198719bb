package taskengine

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Snapshotter is anything that can produce a metrics Snapshot. Engine
// satisfies it for every payload type.
type Snapshotter interface {
	Snapshot() Snapshot
}

// Collector exposes an engine's counters to a Prometheus registry as
// const metrics built from snapshots at scrape time. Register it with
// prometheus.MustRegister(NewCollector(engine)).
type Collector struct {
	src Snapshotter

	submitted *prometheus.Desc
	accepted  *prometheus.Desc
	rejected  *prometheus.Desc
	completed *prometheus.Desc
	retried   *prometheus.Desc
	failed    *prometheus.Desc
	queueWait *prometheus.Desc
	exec      *prometheus.Desc
}

// NewCollector builds a Collector over src under the "taskengine"
// namespace.
func NewCollector(src Snapshotter) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(
			prometheus.BuildFQName("taskengine", "tasks", name),
			help, nil, nil,
		)
	}
	return &Collector{
		src:       src,
		submitted: desc("submitted_total", "Total admission attempts, including retry resubmissions"),
		accepted:  desc("accepted_total", "Total envelopes accepted into the admission queue"),
		rejected:  desc("rejected_total", "Total full-queue rejection events"),
		completed: desc("completed_total", "Total terminal attempts (successes and permanent failures)"),
		retried:   desc("retried_total", "Total retries armed for transient failures"),
		failed:    desc("failed_total", "Total permanent failures"),
		queueWait: desc("queue_wait_seconds_total", "Cumulative queue wait of completed attempts"),
		exec:      desc("exec_seconds_total", "Cumulative execution time of completed attempts"),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.submitted
	ch <- c.accepted
	ch <- c.rejected
	ch <- c.completed
	ch <- c.retried
	ch <- c.failed
	ch <- c.queueWait
	ch <- c.exec
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Snapshot()
	counter := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, v)
	}
	counter(c.submitted, float64(s.Submitted))
	counter(c.accepted, float64(s.Accepted))
	counter(c.rejected, float64(s.Rejected))
	counter(c.completed, float64(s.Completed))
	counter(c.retried, float64(s.Retried))
	counter(c.failed, float64(s.Failed))
	counter(c.queueWait, s.TotalQueueWait.Seconds())
	counter(c.exec, s.TotalExec.Seconds())
}
