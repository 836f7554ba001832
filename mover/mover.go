// Package mover moves the matching files of a source directory into a target
// directory using the chunked transfer engine.
package mover

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/franksops/datarouter/engine"
	"github.com/franksops/datarouter/logctx"
	"github.com/franksops/datarouter/provider"
)

// ErrIncompleteCopy is returned when a target file does not match its source
// after a run that reported success.
var ErrIncompleteCopy = errors.New("incomplete copy at target")


// Options configures a Mover.
type Options struct {
	// SourceDir and DestDir are relative to the providers' roots.
	SourceDir string
	DestDir   string

	Walk        engine.WalkOptions
	Parallelism int
	ChunkSize   int

	// KeepSource leaves source files in place, turning the move into a copy.
	KeepSource bool

	Renderer engine.Renderer
	Tracker  *engine.JobTracker
}

// Result is the outcome of a Move.
type Result struct {
	Moved   int
	Skipped int
	Report  *engine.Report
}

// Mover moves files between two providers.
type Mover struct {
	src  provider.Provider
	dst  provider.Provider
	opts Options
}

// New creates a Mover. Zero parallelism and chunk size fall back to the
// engine defaults.
func New(src, dst provider.Provider, opts Options) *Mover {
	if opts.SourceDir == "" {
		opts.SourceDir = "."
	}
	if opts.DestDir == "" {
		opts.DestDir = "."
	}
	if opts.Parallelism == 0 {
		opts.Parallelism = engine.DefaultParallelism
	}
	if opts.ChunkSize == 0 {
		opts.ChunkSize = engine.DefaultChunkSize
	}
	return &Mover{src: src, dst: dst, opts: opts}
}

// Move discovers the files to move, copies them and removes the sources once
// every target is confirmed. Nothing is removed when the copy fails.
func (m *Mover) Move(ctx context.Context) (*Result, error) {
	logger := logctx.LoggerFromContext(ctx)

	if err := m.checkTarget(ctx); err != nil {
		return nil, err
	}

	walker := engine.NewWalker(m.src, m.dst, m.opts.Walk)
	selected, skipped, err := walker.Walk(ctx, m.opts.SourceDir, m.opts.DestDir)
	if err != nil {
		return nil, fmt.Errorf("discover files: %w", err)
	}
	logger.Info("discovered files", "selected", len(selected), "skipped", len(skipped))

	jobs, err := m.open(ctx, selected)
	if err != nil {
		return nil, err
	}

	coordinator := engine.NewCoordinator(engine.Options{
		MaxParallelism: m.opts.Parallelism,
		ChunkSize:      m.opts.ChunkSize,
		Renderer:       m.opts.Renderer,
		Tracker:        m.opts.Tracker,
	})

	report, err := coordinator.Run(ctx, jobs)
	if err != nil {
		m.cleanup(ctx, selected, jobs)
		return nil, fmt.Errorf("copy files: %w", err)
	}

	moved := 0
	for _, c := range selected {
		if err := m.confirm(ctx, c); err != nil {
			return nil, err
		}
		if !m.opts.KeepSource {
			if err := m.src.Remove(ctx, c.SourcePath); err != nil {
				return nil, fmt.Errorf("remove source: %w", err)
			}
		}
		moved++
	}

	if m.opts.Tracker != nil {
		if err := m.opts.Tracker.RecordRun(m.opts.SourceDir, m.opts.DestDir, report); err != nil {
			logger.Warn("failed to record run", "err", err)
		}
	}

	return &Result{Moved: moved, Skipped: len(skipped), Report: report}, nil
}

// open turns candidates into jobs. When a later one fails, the streams already
// opened are closed and their targets removed.
func (m *Mover) open(ctx context.Context, candidates []engine.Candidate) ([]*engine.TransferJob, error) {
	pool := engine.NewBufferPool(m.opts.ChunkSize)
	jobs := make([]*engine.TransferJob, 0, len(candidates))

	fail := func(err error) ([]*engine.TransferJob, error) {
		for i, j := range jobs {
			_ = j.Release()
			_ = m.dst.Remove(ctx, candidates[i].DestinationPath)
		}
		return nil, err
	}

	for _, c := range candidates {
		r, err := m.src.OpenRead(ctx, c.SourcePath)
		if err != nil {
			return fail(fmt.Errorf("open source: %w", err))
		}

		info, err := m.src.Stat(ctx, c.SourcePath)
		if err != nil {
			r.Close()
			return fail(err)
		}

		w, err := m.dst.OpenWrite(ctx, c.DestinationPath, info)
		if err != nil {
			r.Close()
			return fail(fmt.Errorf("open target: %w", err))
		}

		jobs = append(jobs, engine.NewTransferJob(
			filepath.Base(c.SourcePath), r, info.Size(), w,
			engine.WithID(c.SourcePath),
			engine.WithBufferPool(pool),
		))
	}
	return jobs, nil
}

// checkTarget makes sure the destination directory exists. Targets are never
// created at the top level.
func (m *Mover) checkTarget(ctx context.Context) error {
	info, err := m.dst.Stat(ctx, m.opts.DestDir)
	if err != nil {
		return fmt.Errorf("target directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("target %s: %w", m.opts.DestDir, engine.ErrNotDirectory)
	}
	return nil
}

// confirm checks the target exists with the source's size.
func (m *Mover) confirm(ctx context.Context, c engine.Candidate) error {
	src, err := m.src.Stat(ctx, c.SourcePath)
	if err != nil {
		return err
	}
	dst, err := m.dst.Stat(ctx, c.DestinationPath)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", c.DestinationPath, ErrIncompleteCopy, err)
	}
	if dst.Size() != src.Size() {
		return fmt.Errorf("%s: %w: %d of %d bytes", c.DestinationPath, ErrIncompleteCopy, dst.Size(), src.Size())
	}
	return nil
}

// cleanup removes partial targets left by an aborted run.
func (m *Mover) cleanup(ctx context.Context, candidates []engine.Candidate, jobs []*engine.TransferJob) {
	logger := logctx.LoggerFromContext(ctx)
	// the run context may be the one that got cancelled
	ctx = context.WithoutCancel(ctx)

	for i, job := range jobs {
		if job.State() == engine.StateFinished {
			continue
		}
		if err := m.dst.Remove(ctx, candidates[i].DestinationPath); err != nil {
			logger.Warn("failed to remove partial target", "file", candidates[i].DestinationPath, "err", err)
		}
	}
}
