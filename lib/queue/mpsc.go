package queue

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// node represents a single element in the list
type node[T any] struct {
	value *T
	next  atomic.Pointer[node[T]]
}

// mpsc is a multi-producer single-consumer queue backed by a linked list.
// Producers append with atomic compare-and-swap, a single goroutine forwards
// the items in append order to the channel returned by recv.
//
// Items are delivered in the order in which their append succeeded.
type mpsc[T any] struct {
	head atomic.Pointer[node[T]]
	tail atomic.Pointer[node[T]]
	out  chan *T

	// closing holds off Close while a push is between its closed check and its append
	closing sync.RWMutex
	closed  atomic.Bool

	// wake-up of the forwarding goroutine
	mu   sync.Mutex
	cond *sync.Cond
}

func newMPSC[T any]() *mpsc[T] {
	sentinel := &node[T]{}

	q := &mpsc[T]{
		out: make(chan *T),
	}
	q.cond = sync.NewCond(&q.mu)
	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	go q.forward()

	return q
}

// push appends value to the queue.
// Returns false if value is nil or the queue is closed.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (q *mpsc[T]) push(value *T) bool {
	if value == nil {
		return false
	}

	q.closing.RLock()
	defer q.closing.RUnlock()

	if q.closed.Load() {
		return false
	}

	newNode := &node[T]{value: value}

	var backoff uint8
	for {
		tailNode := q.tail.Load()
		next := tailNode.next.Load()
		if next == nil {
			if tailNode.next.CompareAndSwap(nil, newNode) {
				// may fail if another producer already advanced the tail
				q.tail.CompareAndSwap(tailNode, newNode)
				q.signal()
				return true
			}
		} else {
			// help a producer that appended but has not moved the tail yet
			q.tail.CompareAndSwap(tailNode, next)
		}

		// exponential backoff under contention
		if backoff < 10 {
			backoff++
			for i := 0; i < 1<<backoff; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

func (q *mpsc[T]) signal() {
	q.mu.Lock()
	q.cond.Signal()
	q.mu.Unlock()
}

// forward moves items from the list to the out channel until the queue is
// closed and drained.
func (q *mpsc[T]) forward() {
	defer close(q.out)

	for {
		head := q.head.Load()
		next := head.next.Load()

		if next != nil {
			value := next.value
			q.head.Store(next)
			q.out <- value
			next.value = nil
			continue
		}

		q.mu.Lock()
		// re-check under the lock, producers signal while holding it
		if q.head.Load().next.Load() == nil {
			if q.closed.Load() {
				q.mu.Unlock()
				return
			}
			q.cond.Wait()
		}
		q.mu.Unlock()
	}
}

// recv returns the channel the queued items are delivered on.
// The channel is closed once the queue is closed and every item was delivered.
func (q *mpsc[T]) recv() <-chan *T {
	return q.out
}

// close rejects further pushes. Items already queued are still delivered.
func (q *mpsc[T]) close() {
	q.closing.Lock()
	q.closed.Store(true)
	q.closing.Unlock()

	q.signal()
}

// len returns the number of items not yet handed to the consumer.
// This is O(n).
func (q *mpsc[T]) len() int {
	count := 0
	current := q.head.Load()
	for {
		next := current.next.Load()
		if next == nil {
			return count
		}
		count++
		current = next
	}
}
