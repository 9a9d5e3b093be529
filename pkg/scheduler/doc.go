// Package scheduler runs work on a bounded pool of goroutines.
//
// A Scheduler owns N workers and a FIFO queue. AddWork hands a Work function
// to the scheduler loop and returns a Future whose channel receives exactly
// one Result. When every worker is busy the request waits in the queue.
//
//	AddWork ──► submit ──► run loop ──► queue ──► worker ──► Future.C()
//	                          ▲                      │
//	                          └──── finished ◄───────┘
//
// Cancellation: each request gets a context derived from the scheduler's.
// Future.Stop cancels that one request; Close cancels all of them, answers
// queued requests with context.Canceled and waits for running work to
// return.
//
// Run is the typed, blocking form used by the services:
//
//	wo, err := scheduler.Run(ctx, s, func(ctx context.Context) (*models.CompositeRecord, error) {
//		return writer.CreateComposite(ctx, parent, items)
//	})
//
// When the caller's ctx ends first, Run stops the work and still waits for
// it, so a write transaction is rolled back before Run returns.
package scheduler
