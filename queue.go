package taskengine

import (
	"sync"
	"time"
)

// admissionQueue is the fixed-capacity FIFO buffer between producers
// and workers. It is built on a buffered channel: the channel is the
// mutex-and-condvar pair in one primitive, gives strict FIFO order,
// and enforces the capacity bound by construction.
//
// The channel itself is never closed, so a Submit racing with Shutdown
// can at worst enqueue an envelope that drain or discard will pick up;
// it can never panic on a closed channel. Shutdown is signalled through
// two latches instead: drain (stop blocking once empty) and stop
// (abandon whatever is left).
type admissionQueue[T any] struct {
	ch   chan *envelope[T]
	cap  int
	stop chan struct{}

	drain     chan struct{}
	drainOnce sync.Once
	stopOnce  sync.Once
}

func newAdmissionQueue[T any](capacity int) *admissionQueue[T] {
	return &admissionQueue[T]{
		ch:    make(chan *envelope[T], capacity),
		cap:   capacity,
		stop:  make(chan struct{}),
		drain: make(chan struct{}),
	}
}

// TryEnqueue places e at the tail if there is room. It never blocks;
// false means the queue was full (or the queue is draining) and the
// envelope was not accepted. On success the envelope's enqueuedAt is
// stamped, since that is the moment it enters the admission path.
func (q *admissionQueue[T]) TryEnqueue(e *envelope[T]) bool {
	select {
	case <-q.drain:
		return false
	default:
	}
	e.enqueuedAt = time.Now()
	select {
	case q.ch <- e:
		return true
	default:
		return false
	}
}

// Dequeue blocks until an envelope is available or the queue shuts
// down. ok == false is the shutdown sentinel: either the queue was
// drained empty, or a hard stop abandoned the remainder.
func (q *admissionQueue[T]) Dequeue() (e *envelope[T], ok bool) {
	select {
	case <-q.stop:
		return nil, false
	default:
	}
	select {
	case e = <-q.ch:
		return e, true
	case <-q.stop:
		return nil, false
	case <-q.drain:
		return q.drainOne()
	}
}

// DequeueTimeout is Dequeue with an idle bound, used by burst workers.
// ok == false on timeout as well as on shutdown; a burst worker
// retires either way.
func (q *admissionQueue[T]) DequeueTimeout(d time.Duration) (e *envelope[T], ok bool) {
	select {
	case <-q.stop:
		return nil, false
	default:
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case e = <-q.ch:
		return e, true
	case <-q.stop:
		return nil, false
	case <-q.drain:
		return q.drainOne()
	case <-timer.C:
		return nil, false
	}
}

// drainOne serves remaining buffered envelopes during drain without
// ever blocking again.
func (q *admissionQueue[T]) drainOne() (*envelope[T], bool) {
	select {
	case <-q.stop:
		return nil, false
	default:
	}
	select {
	case e := <-q.ch:
		return e, true
	default:
		return nil, false
	}
}

// BeginDrain stops admissions and lets workers run the queue empty.
// Blocked Dequeue calls wake and return the shutdown sentinel once
// nothing is buffered.
func (q *admissionQueue[T]) BeginDrain() {
	q.drainOnce.Do(func() { close(q.drain) })
}

// Stop abandons the drain: blocked Dequeue calls return immediately
// and buffered envelopes stay where they are until Discard counts
// them.
func (q *admissionQueue[T]) Stop() {
	q.stopOnce.Do(func() { close(q.stop) })
}

// Discard empties the queue and reports how many envelopes were
// thrown away. Only meaningful after Stop.
func (q *admissionQueue[T]) Discard() int {
	n := 0
	for {
		select {
		case <-q.ch:
			n++
		default:
			return n
		}
	}
}

// Len returns the number of buffered envelopes.
func (q *admissionQueue[T]) Len() int { return len(q.ch) }

// Cap returns the fixed capacity.
func (q *admissionQueue[T]) Cap() int { return q.cap }
