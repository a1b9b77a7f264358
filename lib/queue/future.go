package queue

import (
	"context"
)

// Future is the pending result of a queued operation.
// It settles exactly once.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// settle stores the result and releases all waiters. Must be called once.
func (f *Future[T]) settle(value T, err error) {
	f.value, f.err = value, err
	close(f.done)
}

// Done returns a channel that is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the operation finished and returns its result.
// If ctx is done first, Wait returns the context error. The operation itself
// is not cancelled and still runs in its turn.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result waits without a deadline.
func (f *Future[T]) Result() (T, error) {
	<-f.done
	return f.value, f.err
}
