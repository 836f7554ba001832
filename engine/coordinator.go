package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/franksops/datarouter/logctx"
)

// DefaultParallelism is the number of concurrent jobs used when the caller
// does not pick one.
const DefaultParallelism = 2

// Options configures a Coordinator.
type Options struct {
	// MaxParallelism bounds the number of jobs copied at the same time.
	MaxParallelism int
	// ChunkSize is the number of bytes copied per read/write cycle.
	ChunkSize int
	// Renderer, if set, is called after every chunk.
	Renderer Renderer
	// Tracker, if set, journals job states. Journal failures are logged and
	// never abort a run.
	Tracker *JobTracker
}

// Coordinator runs batches of TransferJobs on a bounded worker pool and
// reports aggregate statistics.
type Coordinator struct {
	opts        Options
	now         func() time.Time
	newRegistry func() *Registry
}

// NewCoordinator creates a Coordinator with the given options.
func NewCoordinator(opts Options) *Coordinator {
	return &Coordinator{
		opts:        opts,
		now:         time.Now,
		newRegistry: NewRegistry,
	}
}

func (c *Coordinator) validate() error {
	if c.opts.MaxParallelism < 1 {
		return &ConfigError{Field: "parallelism", Value: c.opts.MaxParallelism, Reason: "must be at least one"}
	}
	if c.opts.ChunkSize <= 0 {
		return &ConfigError{Field: "chunk size", Value: c.opts.ChunkSize, Reason: "must be greater than zero"}
	}
	return nil
}

// Run copies every job and returns the batch report. The coordinator owns the
// jobs from the moment Run is called: each one is released exactly once,
// whether the run succeeds, fails or is cancelled.
//
// Configuration problems are reported before any byte is copied. A chunk
// failure or a broken registry invariant aborts the whole run.
func (c *Coordinator) Run(ctx context.Context, jobs []*TransferJob) (*Report, error) {
	logger := logctx.LoggerFromContext(ctx)

	if err := c.prepare(jobs); err != nil {
		releaseAll(ctx, jobs)
		return nil, err
	}

	if len(jobs) == 0 {
		return newReport(0, 0, c.opts.ChunkSize, c.opts.MaxParallelism, 0), nil
	}

	registry := c.newRegistry()
	defer c.teardown(ctx, registry)

	var totalBytes int64
	queue := make(JobChannel, len(jobs))
	for _, job := range jobs {
		if err := registry.Add(job); err != nil {
			releaseAll(ctx, jobs)
			return nil, err
		}
		c.journal(ctx, job, "init", func(t *JobTracker) error { return t.InitJob(job) })
		totalBytes += job.TotalBytes()
		queue <- job
	}
	close(queue)

	logger.Info("starting transfer",
		"files", len(jobs),
		"size", humanize.Bytes(uint64(totalBytes)),
		"parallelism", c.opts.MaxParallelism,
		"chunk_size", humanize.Bytes(uint64(c.opts.ChunkSize)),
	)

	start := c.now()
	pool := NewWorkerPool(c.opts.MaxParallelism, func(ctx context.Context, job *TransferJob) error {
		return c.transfer(ctx, job, registry, jobs, start)
	})
	err := pool.Run(ctx, queue)
	elapsed := c.now().Sub(start)

	if err != nil {
		logger.Error("transfer aborted", "elapsed", elapsed.String(), "err", err)
		return nil, err
	}

	report := newReport(totalBytes, len(jobs), c.opts.ChunkSize, c.opts.MaxParallelism, elapsed)
	logger.Info("transfer finished",
		"files", report.FileCount,
		"size", humanize.Bytes(uint64(report.TotalBytes)),
		"elapsed", report.Elapsed.String(),
		"speed", humanize.Bytes(uint64(report.AverageSpeed))+"/s",
	)
	return report, nil
}

// prepare checks the run settings and configures every job.
func (c *Coordinator) prepare(jobs []*TransferJob) error {
	if err := c.validate(); err != nil {
		return err
	}
	for _, job := range jobs {
		if err := job.Configure(c.opts.ChunkSize); err != nil {
			return err
		}
	}
	return nil
}

// transfer drives one job to completion on the calling worker.
func (c *Coordinator) transfer(ctx context.Context, job *TransferJob, registry *Registry, all []*TransferJob, start time.Time) error {
	logger := logctx.LoggerFromContext(ctx)
	logger.Debug("copying", "file", job.Name(), "size", humanize.Bytes(uint64(job.TotalBytes())))
	c.journal(ctx, job, "start", func(t *JobTracker) error { return t.MarkInProgress(job.ID()) })

	for {
		if err := ctx.Err(); err != nil {
			c.fail(ctx, job, err)
			return fmt.Errorf("job %s: %w", job.Name(), err)
		}

		more, err := job.CopyChunk()
		c.render(all, start)
		if err != nil {
			c.fail(ctx, job, err)
			return err
		}
		if !more {
			break
		}
	}

	if _, err := registry.Remove(job.ID()); err != nil {
		// teardown only sees registered jobs
		_ = job.Release()
		c.fail(ctx, job, err)
		return err
	}
	if err := job.Release(); err != nil {
		return err
	}

	c.journal(ctx, job, "complete", func(t *JobTracker) error { return t.MarkCompleted(job.ID(), job.BytesTransferred()) })
	logger.Debug("copy successful", "file", job.Name())
	return nil
}

func (c *Coordinator) render(all []*TransferJob, start time.Time) {
	if c.opts.Renderer == nil {
		return
	}
	c.opts.Renderer.Render(Frame{
		Elapsed: c.now().Sub(start),
		Jobs:    snapshotAll(all),
	})
}

func (c *Coordinator) fail(ctx context.Context, job *TransferJob, cause error) {
	c.journal(ctx, job, "fail", func(t *JobTracker) error { return t.MarkFailed(job.ID(), job.BytesTransferred(), cause) })
}

func (c *Coordinator) journal(ctx context.Context, job *TransferJob, op string, fn func(*JobTracker) error) {
	if c.opts.Tracker == nil {
		return
	}
	if err := fn(c.opts.Tracker); err != nil {
		logctx.LoggerFromContext(ctx).Warn("failed to journal job", "op", op, "file", job.Name(), "err", err)
	}
}

// teardown releases whatever an aborted run left in the registry.
func (c *Coordinator) teardown(ctx context.Context, registry *Registry) {
	releaseAll(ctx, registry.Drain())
}

func releaseAll(ctx context.Context, jobs []*TransferJob) {
	var errs []error
	for _, job := range jobs {
		if err := job.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		logctx.LoggerFromContext(ctx).Warn("failed to release jobs", "err", err)
	}
}
