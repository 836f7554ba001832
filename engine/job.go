package engine

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// JobState is the lifecycle stage of a TransferJob.
type JobState int

const (
	// StatePending means no byte has been copied yet.
	StatePending JobState = iota
	// StateRunning means some bytes were copied and more remain.
	StateRunning
	// StateFinished means every byte was copied and the streams were released.
	StateFinished
)

func (s JobState) String() string {
	switch s {
	case StatePending:
		return "Pending"
	case StateRunning:
		return "Running"
	case StateFinished:
		return "Finished"
	default:
		return fmt.Sprintf("JobState(%d)", int(s))
	}
}

// flusher is implemented by buffered destinations.
type flusher interface {
	Flush() error
}

// TransferJob copies one source stream into one destination stream, chunk by
// chunk, and keeps track of progress and throughput.
//
// A job is driven by a single goroutine at a time. Progress queries and
// Snapshot may be called from any goroutine.
type TransferJob struct {
	id   string
	name string

	src   io.ReadCloser
	dst   io.WriteCloser
	total int64

	chunkSize int
	buf       *[]byte
	pool      *BufferPool

	transferred atomic.Int64
	finished    atomic.Bool
	released    atomic.Bool
	releaseOnce sync.Once
	releaseErr  error

	sampler *SpeedSampler
}

// JobOption customizes a TransferJob at creation.
type JobOption func(*TransferJob)

// WithID sets the registry key of the job. It defaults to the job name.
func WithID(id string) JobOption {
	return func(j *TransferJob) {
		j.id = id
	}
}

// WithBufferPool makes the job borrow its chunk buffer from pool instead of
// allocating its own. The buffer is only taken once copying starts.
func WithBufferPool(pool *BufferPool) JobOption {
	return func(j *TransferJob) {
		j.pool = pool
	}
}

// WithClock replaces the clock used to timestamp speed samples.
func WithClock(now func() time.Time) JobOption {
	return func(j *TransferJob) {
		j.sampler = NewSpeedSampler(now)
	}
}

// NewTransferJob creates a job copying size bytes from src to dst. Both
// streams are owned by the job from now on and closed by Release.
func NewTransferJob(name string, src io.ReadCloser, size int64, dst io.WriteCloser, opts ...JobOption) *TransferJob {
	if size < 0 {
		size = 0
	}
	j := &TransferJob{
		id:      name,
		name:    name,
		src:     src,
		dst:     dst,
		total:   size,
		sampler: NewSpeedSampler(nil),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// ID returns the registry key of the job.
func (j *TransferJob) ID() string { return j.id }

// Name returns the human readable name of the job.
func (j *TransferJob) Name() string { return j.name }

// TotalBytes returns the size of the source at open time.
func (j *TransferJob) TotalBytes() int64 { return j.total }

// BytesTransferred returns the number of bytes copied so far.
func (j *TransferJob) BytesTransferred() int64 { return j.transferred.Load() }

// ChunkSize returns the configured chunk size, 0 when not configured.
func (j *TransferJob) ChunkSize() int { return j.chunkSize }

// Configure sets the chunk size. Without a buffer pool the chunk buffer is
// allocated right away.
func (j *TransferJob) Configure(chunkSize int) error {
	if chunkSize <= 0 {
		return &ConfigError{Job: j.name, Field: "chunk size", Value: chunkSize, Reason: "must be greater than zero"}
	}
	if j.transferred.Load() > 0 || j.released.Load() {
		return &ConfigError{Job: j.name, Field: "chunk size", Value: chunkSize, Reason: "job already started"}
	}

	j.chunkSize = chunkSize
	if j.pool != nil && j.pool.Size() == chunkSize {
		// borrowed lazily in buffer()
		return nil
	}
	j.pool = nil
	b := make([]byte, chunkSize)
	j.buf = &b
	return nil
}

func (j *TransferJob) buffer() []byte {
	if j.buf == nil && j.pool != nil {
		j.buf = j.pool.Get()
	}
	return (*j.buf)[:j.chunkSize]
}

// CopyChunk copies the next chunk. It returns false once the source is
// exhausted, after releasing both streams. I/O failures are returned as
// *ChunkError and leave the job where it was.
func (j *TransferJob) CopyChunk() (bool, error) {
	if j.chunkSize <= 0 {
		return false, fmt.Errorf("job %s: %w", j.name, ErrPrematureBufferUse)
	}
	if j.released.Load() {
		return false, fmt.Errorf("job %s: %w", j.name, ErrJobReleased)
	}

	offset := j.transferred.Load()
	remaining := j.total - offset
	if remaining <= 0 {
		j.finished.Store(true)
		if err := j.Release(); err != nil {
			return false, err
		}
		return false, nil
	}

	n := int64(j.chunkSize)
	if remaining < n {
		n = remaining
	}
	chunk := j.buffer()[:n]

	if _, err := io.ReadFull(j.src, chunk); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return false, &ChunkError{Job: j.name, Op: "read", Offset: offset, Err: err}
	}
	if _, err := j.dst.Write(chunk); err != nil {
		return false, &ChunkError{Job: j.name, Op: "write", Offset: offset, Err: err}
	}
	if f, ok := j.dst.(flusher); ok {
		if err := f.Flush(); err != nil {
			return false, &ChunkError{Job: j.name, Op: "flush", Offset: offset, Err: err}
		}
	}

	j.sampler.Record(n)
	j.transferred.Add(n)
	return true, nil
}

// Progress returns the copied fraction in [0, 1]. It is 0 when the fraction is
// not defined, as for an empty source.
func (j *TransferJob) Progress() float64 {
	return progressOf(j.transferred.Load(), j.total)
}

// RemainingBytes returns how many bytes are still to be copied.
func (j *TransferJob) RemainingBytes() int64 {
	r := j.total - j.transferred.Load()
	if r < 0 {
		return 0
	}
	return r
}

// Speed returns the instantaneous throughput in bytes per second.
func (j *TransferJob) Speed() float64 {
	return j.sampler.Rate()
}

// IsCopying reports whether some bytes were copied and the job is not done.
func (j *TransferJob) IsCopying() bool {
	return j.transferred.Load() > 0 && !j.HasFinished()
}

// HasFinished reports whether no bytes remain.
func (j *TransferJob) HasFinished() bool {
	return j.RemainingBytes() == 0
}

// State returns the lifecycle stage of the job.
func (j *TransferJob) State() JobState {
	switch {
	case j.finished.Load():
		return StateFinished
	case j.transferred.Load() > 0:
		return StateRunning
	default:
		return StatePending
	}
}

// Release closes both streams and gives the buffer back. Only the first call
// does anything; later calls return the same result.
func (j *TransferJob) Release() error {
	j.releaseOnce.Do(func() {
		j.released.Store(true)

		var errs []error
		if j.src != nil {
			if err := j.src.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close source: %w", err))
			}
		}
		if j.dst != nil {
			if err := j.dst.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close destination: %w", err))
			}
		}
		if j.pool != nil && j.buf != nil {
			j.pool.Put(j.buf)
		}
		j.buf = nil

		if err := errors.Join(errs...); err != nil {
			j.releaseErr = fmt.Errorf("job %s: %w", j.name, err)
		}
	})
	return j.releaseErr
}

// Released reports whether Release was called.
func (j *TransferJob) Released() bool {
	return j.released.Load()
}

// Snapshot returns a copy of the job's observable state.
func (j *TransferJob) Snapshot() Snapshot {
	return Snapshot{
		ID:               j.id,
		Name:             j.name,
		State:            j.State(),
		TotalBytes:       j.total,
		BytesTransferred: j.transferred.Load(),
		Speed:            j.sampler.Rate(),
	}
}

func progressOf(done, total int64) float64 {
	if total <= 0 {
		return 0
	}
	p := float64(done) / float64(total)
	if p > 1 {
		return 1
	}
	return p
}
