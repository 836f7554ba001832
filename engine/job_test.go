package engine

import (
	"bytes"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSource struct {
	*bytes.Reader
	closed atomic.Int32
}

func newMemSource(data []byte) *memSource {
	return &memSource{Reader: bytes.NewReader(data)}
}

func (s *memSource) Close() error {
	s.closed.Add(1)
	return nil
}

type memSink struct {
	bytes.Buffer
	writes   int
	closed   atomic.Int32
	failWith error
	closeErr error
}

func (s *memSink) Write(p []byte) (int, error) {
	if s.failWith != nil {
		return 0, s.failWith
	}
	s.writes++
	return s.Buffer.Write(p)
}

func (s *memSink) Close() error {
	s.closed.Add(1)
	return s.closeErr
}

func payload(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func newMemJob(t *testing.T, name string, data []byte, opts ...JobOption) (*TransferJob, *memSource, *memSink) {
	t.Helper()
	src := newMemSource(data)
	dst := &memSink{}
	return NewTransferJob(name, src, int64(len(data)), dst, opts...), src, dst
}

func drain(t *testing.T, job *TransferJob) int {
	t.Helper()
	chunks := 0
	for {
		more, err := job.CopyChunk()
		require.NoError(t, err)
		if !more {
			return chunks
		}
		chunks++
	}
}

func TestTransferJob_ChunkCount(t *testing.T) {
	tests := []struct {
		name      string
		size      int
		chunkSize int
		chunks    int
	}{
		{"exact multiple", 30, 10, 3},
		{"remainder", 25, 10, 3},
		{"smaller than chunk", 7, 10, 1},
		{"single byte chunks", 5, 1, 5},
		{"empty", 0, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := payload(tt.size)
			job, src, dst := newMemJob(t, "file.bin", data)
			require.NoError(t, job.Configure(tt.chunkSize))

			assert.Equal(t, tt.chunks, drain(t, job))
			assert.Equal(t, tt.chunks, dst.writes)
			assert.True(t, bytes.Equal(data, dst.Bytes()), "copied bytes differ")
			assert.Len(t, dst.Bytes(), tt.size)
			assert.Equal(t, int64(tt.size), job.BytesTransferred())
			assert.True(t, job.HasFinished())
			assert.Equal(t, StateFinished, job.State())
			assert.EqualValues(t, 1, src.closed.Load())
			assert.EqualValues(t, 1, dst.closed.Load())
		})
	}
}

func TestTransferJob_LastChunkIsShort(t *testing.T) {
	job, _, _ := newMemJob(t, "file.bin", payload(25))
	require.NoError(t, job.Configure(10))

	var steps []int64
	for {
		more, err := job.CopyChunk()
		require.NoError(t, err)
		if !more {
			break
		}
		steps = append(steps, job.BytesTransferred())
	}
	assert.Equal(t, []int64{10, 20, 25}, steps)
}

func TestTransferJob_CopyAfterFinish(t *testing.T) {
	job, _, _ := newMemJob(t, "file.bin", payload(3))
	require.NoError(t, job.Configure(10))
	drain(t, job)

	more, err := job.CopyChunk()
	assert.False(t, more)
	assert.ErrorIs(t, err, ErrJobReleased)
	assert.Equal(t, int64(3), job.BytesTransferred())
}

func TestTransferJob_NotConfigured(t *testing.T) {
	job, _, dst := newMemJob(t, "file.bin", payload(3))

	more, err := job.CopyChunk()
	assert.False(t, more)
	assert.ErrorIs(t, err, ErrPrematureBufferUse)
	assert.Zero(t, dst.Len())
	assert.Equal(t, StatePending, job.State())
}

func TestTransferJob_ConfigureRejects(t *testing.T) {
	job, _, _ := newMemJob(t, "file.bin", payload(30))

	for _, size := range []int{0, -1} {
		err := job.Configure(size)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidConfiguration)

		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "file.bin", cfgErr.Job)
		assert.Equal(t, size, cfgErr.Value)
	}
	assert.Zero(t, job.ChunkSize())

	require.NoError(t, job.Configure(10))
	_, err := job.CopyChunk()
	require.NoError(t, err)

	err = job.Configure(5)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
	assert.Equal(t, 10, job.ChunkSize())
}

func TestTransferJob_ReadFailure(t *testing.T) {
	// the source is shorter than announced
	src := newMemSource(payload(15))
	dst := &memSink{}
	job := NewTransferJob("short.bin", src, 30, dst)
	require.NoError(t, job.Configure(10))

	more, err := job.CopyChunk()
	require.NoError(t, err)
	require.True(t, more)

	more, err = job.CopyChunk()
	assert.False(t, more)

	var chunkErr *ChunkError
	require.ErrorAs(t, err, &chunkErr)
	assert.Equal(t, "read", chunkErr.Op)
	assert.Equal(t, int64(10), chunkErr.Offset)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	assert.Equal(t, int64(10), job.BytesTransferred())
	assert.False(t, job.Released())
}

func TestTransferJob_WriteFailure(t *testing.T) {
	diskFull := errors.New("disk full")
	src := newMemSource(payload(20))
	dst := &memSink{failWith: diskFull}
	job := NewTransferJob("file.bin", src, 20, dst)
	require.NoError(t, job.Configure(10))

	_, err := job.CopyChunk()
	assert.ErrorIs(t, err, diskFull)

	var chunkErr *ChunkError
	require.ErrorAs(t, err, &chunkErr)
	assert.Equal(t, "write", chunkErr.Op)
	assert.Zero(t, job.BytesTransferred())
}

func TestTransferJob_Progress(t *testing.T) {
	job, _, _ := newMemJob(t, "file.bin", payload(40))
	require.NoError(t, job.Configure(10))

	assert.Zero(t, job.Progress())
	assert.False(t, job.IsCopying())
	assert.Equal(t, int64(40), job.RemainingBytes())

	prev := 0.0
	for {
		more, err := job.CopyChunk()
		require.NoError(t, err)
		if !more {
			break
		}
		p := job.Progress()
		assert.GreaterOrEqual(t, p, prev)
		assert.LessOrEqual(t, p, 1.0)
		prev = p
		if !job.HasFinished() {
			assert.True(t, job.IsCopying())
			assert.Equal(t, StateRunning, job.State())
		}
	}

	assert.Equal(t, 1.0, job.Progress())
	assert.Zero(t, job.RemainingBytes())
	assert.False(t, job.IsCopying())
}

func TestTransferJob_EmptySource(t *testing.T) {
	job, _, _ := newMemJob(t, "empty.bin", nil)

	assert.Zero(t, job.Progress())
	assert.True(t, job.HasFinished())
	assert.False(t, job.IsCopying())

	require.NoError(t, job.Configure(10))
	more, err := job.CopyChunk()
	require.NoError(t, err)
	assert.False(t, more)
	assert.True(t, job.Released())
}

func TestTransferJob_Speed(t *testing.T) {
	clock := newFakeClock()
	job, _, _ := newMemJob(t, "file.bin", payload(30), WithClock(clock.Now))
	require.NoError(t, job.Configure(10))

	assert.Zero(t, job.Speed())

	_, err := job.CopyChunk()
	require.NoError(t, err)
	_, err = job.CopyChunk()
	require.NoError(t, err)
	assert.Equal(t, float64(20), job.Speed())

	clock.Advance(1500 * time.Millisecond)
	assert.Zero(t, job.Speed())
}

func TestTransferJob_ReleaseOnce(t *testing.T) {
	closeErr := errors.New("close failed")
	src := newMemSource(payload(5))
	dst := &memSink{closeErr: closeErr}
	job := NewTransferJob("file.bin", src, 5, dst)

	err := job.Release()
	assert.ErrorIs(t, err, closeErr)
	assert.True(t, job.Released())

	assert.Equal(t, err, job.Release())
	assert.EqualValues(t, 1, src.closed.Load())
	assert.EqualValues(t, 1, dst.closed.Load())

	assert.ErrorIs(t, job.Configure(5), ErrInvalidConfiguration)
}

func TestTransferJob_ReleasedJobDoesNotCopy(t *testing.T) {
	job, _, dst := newMemJob(t, "file.bin", payload(5))
	require.NoError(t, job.Configure(5))
	require.NoError(t, job.Release())

	more, err := job.CopyChunk()
	assert.False(t, more)
	assert.ErrorIs(t, err, ErrJobReleased)
	assert.Zero(t, dst.Len())
}

func TestTransferJob_SharedBufferPool(t *testing.T) {
	pool := NewBufferPool(8)
	a, _, dstA := newMemJob(t, "a.bin", payload(20), WithBufferPool(pool))
	b, _, dstB := newMemJob(t, "b.bin", payload(20), WithBufferPool(pool))

	require.NoError(t, a.Configure(8))
	require.NoError(t, b.Configure(8))

	drain(t, a)
	drain(t, b)

	assert.Equal(t, payload(20), dstA.Bytes())
	assert.Equal(t, payload(20), dstB.Bytes())
}

func TestTransferJob_PoolSizeMismatch(t *testing.T) {
	pool := NewBufferPool(8)
	job, _, dst := newMemJob(t, "a.bin", payload(20), WithBufferPool(pool))

	require.NoError(t, job.Configure(4))
	assert.Equal(t, 5, drain(t, job))
	assert.Equal(t, payload(20), dst.Bytes())
}

func TestTransferJob_Identity(t *testing.T) {
	job, _, _ := newMemJob(t, "movie.mkv", payload(1))
	assert.Equal(t, "movie.mkv", job.ID())
	assert.Equal(t, "movie.mkv", job.Name())

	job, _, _ = newMemJob(t, "movie.mkv", payload(1), WithID("/in/a/movie.mkv"))
	assert.Equal(t, "/in/a/movie.mkv", job.ID())
	assert.Equal(t, "movie.mkv", job.Name())
	assert.Equal(t, int64(1), job.TotalBytes())

	snap := job.Snapshot()
	assert.Equal(t, "/in/a/movie.mkv", snap.ID)
	assert.Equal(t, StatePending, snap.State)
	assert.Equal(t, "Pending", snap.State.String())
}
