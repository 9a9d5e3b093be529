package scheduler

import (
	"context"
)

// Work is a unit of work. It should return once ctx is done.
type Work[T any] func(ctx context.Context) (T, error)

type Result[T any] struct {
	Data T
	Err  error
}

// Future delivers exactly one value on C.
type Future[T any] struct {
	input  chan T
	cancel context.CancelFunc
}

func NewFuture[T any](input chan T, cancel context.CancelFunc) *Future[T] {
	return &Future[T]{input: input, cancel: cancel}
}

func (f *Future[T]) C() <-chan T {
	return f.input
}

// Stop cancels the context the work runs with. The result is still
// delivered on C.
func (f *Future[T]) Stop() {
	f.cancel()
}
