package engine

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// JobChannel is a channel used to queue and dispatch TransferJobs to workers
// in the worker pool.
type JobChannel chan *TransferJob

// JobHandler is a function that processes a TransferJob to completion.
type JobHandler func(context.Context, *TransferJob) error

// WorkerPool runs a fixed number of workers pulling jobs from a shared
// channel. A worker that is done with a job takes the next queued one, so
// the pool stays saturated even when job sizes differ.
type WorkerPool struct {
	size    int
	handler JobHandler
}

// NewWorkerPool creates a pool of size workers. Sizes below one are raised to one.
func NewWorkerPool(size int, handler JobHandler) *WorkerPool {
	if size < 1 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		handler: handler,
	}
}

// Size returns the number of workers the pool starts.
func (p *WorkerPool) Size() int {
	return p.size
}

// Run starts the workers and blocks until jobs is closed and drained, or until
// a handler fails. The first handler error cancels the context passed to the
// other workers and is returned.
func (p *WorkerPool) Run(ctx context.Context, jobs JobChannel) error {
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < p.size; i++ {
		g.Go(func() error {
			for {
				// Prioritize cancellation over picking up more work
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}

				select {
				case <-ctx.Done():
					return ctx.Err()
				case job, ok := <-jobs:
					if !ok {
						return nil
					}
					if err := p.handler(ctx, job); err != nil {
						return err
					}
				}
			}
		})
	}

	return g.Wait()
}
