package scheduler

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

type queue[T any] []T

func (q *queue[T]) Len() int { return len(*q) }

func (q *queue[T]) Pop() T {
	old := *q
	x := old[0]
	*q = old[1:]
	return x
}

func (q *queue[T]) Push(t T) {
	*q = append(*q, t)
}

type request struct {
	fn  Work[any]
	c   chan Result[any]
	ctx context.Context
}

// Scheduler runs submitted work on a fixed number of workers. Work beyond
// that waits in a FIFO queue.
type Scheduler struct {
	idle     int
	pending  *queue[request]
	submit   chan request
	finished chan struct{}
	stop     chan struct{}
	stopped  chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	once     sync.Once
	metrics  *Metrics
	log      *zap.SugaredLogger
}

type Option func(*Scheduler)

func WithMetrics(m *Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

func NewScheduler(workers int, opts ...Option) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		idle:     workers,
		pending:  &queue[request]{},
		submit:   make(chan request),
		finished: make(chan struct{}, workers),
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
		log:      zap.S().Named("scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.run()
	return s
}

// AddWork queues w and returns its future. After Close the future resolves
// immediately with context.Canceled.
func (s *Scheduler) AddWork(w Work[any]) *Future[Result[any]] {
	c := make(chan Result[any], 1)
	ctx, cancel := context.WithCancel(s.ctx)

	if s.ctx.Err() != nil {
		c <- Result[any]{Err: context.Canceled}
		return NewFuture(c, cancel)
	}

	select {
	case <-s.ctx.Done():
		c <- Result[any]{Err: context.Canceled}
	case s.submit <- request{fn: w, c: c, ctx: ctx}:
	}
	return NewFuture(c, cancel)
}

// Close cancels all work, fails whatever is still queued and waits for
// running work to return. It is safe to call more than once.
func (s *Scheduler) Close() {
	s.once.Do(func() {
		s.cancel()
		close(s.stop)
		<-s.stopped
	})
}

func (s *Scheduler) run() {
	defer close(s.stopped)
	for {
		select {
		case r := <-s.submit:
			s.pending.Push(r)
			s.metrics.queued(s.pending.Len())
			s.dispatch()
		case <-s.finished:
			s.idle++
			s.dispatch()
		case <-s.stop:
			for s.pending.Len() > 0 {
				s.pending.Pop().c <- Result[any]{Err: context.Canceled}
			}
			s.metrics.queued(0)
			s.wg.Wait()
			return
		}
	}
}

// dispatch starts as much queued work as there are idle workers.
func (s *Scheduler) dispatch() {
	for s.idle > 0 && s.pending.Len() > 0 {
		r := s.pending.Pop()
		s.idle--
		s.wg.Add(1)
		go s.work(r)
	}
	s.metrics.queued(s.pending.Len())
}

func (s *Scheduler) work(r request) {
	s.metrics.started()
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Errorw("work panicked", "panic", rec)
			r.c <- Result[any]{Err: fmt.Errorf("worker panicked: %v", rec)}
		}
		s.metrics.finished()
		s.finished <- struct{}{}
		s.wg.Done()
	}()

	if err := r.ctx.Err(); err != nil {
		r.c <- Result[any]{Err: err}
		return
	}
	v, err := r.fn(r.ctx)
	r.c <- Result[any]{Data: v, Err: err}
}

// Run submits w and waits for it. When ctx ends first the work is stopped
// and Run still waits for it to return, so nothing it started outlives the
// call.
func Run[T any](ctx context.Context, s *Scheduler, w Work[T]) (T, error) {
	future := s.AddWork(func(ctx context.Context) (any, error) {
		return w(ctx)
	})

	var r Result[any]
	select {
	case r = <-future.C():
	case <-ctx.Done():
		future.Stop()
		r = <-future.C()
	}
	// release the work context
	future.Stop()

	var zero T
	if r.Err != nil {
		return zero, r.Err
	}
	v, ok := r.Data.(T)
	if !ok && r.Data != nil {
		return zero, fmt.Errorf("work returned %T", r.Data)
	}
	return v, nil
}
