package queue

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/ValentinKolb/litemap/lib/db"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("queue")

// ErrClosed is returned for operations submitted after Close was called.
var ErrClosed = errors.New("operation queue is closed")

// PanicError is the failure of an operation that panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("operation panicked: %v", e.Value)
}

// Op is a unit of work executed against the database of a queue.
type Op[T any] func(database db.KVDB) (T, error)

// task is a type erased operation in the queue
type task struct {
	run func(database db.KVDB)
}

// Queue executes operations against one database strictly one at a time, in
// submission order. A failing or panicking operation settles only its own
// Future, the queue continues with the next operation.
//
// Thread-safety: Submit, Len and Close are safe for concurrent use.
type Queue struct {
	name     string
	database db.KVDB
	tasks    *mpsc[task]
	done     chan struct{}
	closeOne sync.Once

	submitted *metrics.Counter
	completed *metrics.Counter
	failed    *metrics.Counter
	pending   *metrics.Counter
}

// New creates a queue for database and starts its worker.
// The name labels the metrics and log lines of the queue, usually the store identifier.
func New(name string, database db.KVDB) *Queue {
	q := &Queue{
		name:      name,
		database:  database,
		tasks:     newMPSC[task](),
		done:      make(chan struct{}),
		submitted: metrics.GetOrCreateCounter(metricName("litemap_queue_submitted_total", name)),
		completed: metrics.GetOrCreateCounter(metricName("litemap_queue_completed_total", name)),
		failed:    metrics.GetOrCreateCounter(metricName("litemap_queue_failed_total", name)),
		pending:   metrics.GetOrCreateCounter(metricName("litemap_queue_pending", name)),
	}
	go q.work()
	return q
}

// metricName builds a metric name labeled with the store
func metricName(base, store string) string {
	return fmt.Sprintf("%s{store=%q}", base, store)
}

// work runs the queued tasks until the queue is closed and drained
func (q *Queue) work() {
	defer close(q.done)
	for t := range q.tasks.recv() {
		t.run(q.database)
	}
	log.Debugf("queue for %s drained", q.name)
}

// Submit appends op to the queue and returns a Future for its result.
// If the queue is closed the Future is already settled with ErrClosed.
func Submit[T any](q *Queue, op Op[T]) *Future[T] {
	f := newFuture[T]()
	t := &task{run: func(database db.KVDB) {
		value, err := execute(op, database)
		// count before settling, a waiter may read the metrics right away
		q.finished(err)
		f.settle(value, err)
	}}

	q.pending.Inc()
	if !q.tasks.push(t) {
		q.pending.Dec()
		var zero T
		f.settle(zero, ErrClosed)
		return f
	}
	q.submitted.Inc()
	return f
}

// finished updates the metrics for a completed operation
func (q *Queue) finished(err error) {
	q.pending.Dec()
	if err != nil {
		q.failed.Inc()
	} else {
		q.completed.Inc()
	}
}

// execute runs op and turns a panic into a *PanicError
func execute[T any](op Op[T], database db.KVDB) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("recovered panic in queued operation: %v", r)
			var zero T
			value, err = zero, &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return op(database)
}

// Len returns the number of operations waiting to be started.
func (q *Queue) Len() int {
	return q.tasks.len()
}

// Name returns the name the queue was created with.
func (q *Queue) Name() string {
	return q.name
}

// Close stops accepting operations and waits until every accepted operation
// has finished. It returns early with the context error if ctx is done first,
// the remaining operations still complete in the background.
// Calling Close more than once is allowed.
func (q *Queue) Close(ctx context.Context) error {
	q.closeOne.Do(q.tasks.close)
	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
