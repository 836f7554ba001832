package engine

import "time"

// Snapshot is an immutable view of a TransferJob at one point in time.
type Snapshot struct {
	ID               string
	Name             string
	State            JobState
	TotalBytes       int64
	BytesTransferred int64
	Speed            float64 // bytes per second over the last SpeedWindow
}

// Progress returns the copied fraction in [0, 1].
func (s Snapshot) Progress() float64 {
	return progressOf(s.BytesTransferred, s.TotalBytes)
}

// RemainingBytes returns how many bytes are still to be copied.
func (s Snapshot) RemainingBytes() int64 {
	if r := s.TotalBytes - s.BytesTransferred; r > 0 {
		return r
	}
	return 0
}

// HasFinished reports whether no bytes remain.
func (s Snapshot) HasFinished() bool {
	return s.RemainingBytes() == 0
}

// IsCopying reports whether the copy started and is not done.
func (s Snapshot) IsCopying() bool {
	return s.BytesTransferred > 0 && !s.HasFinished()
}

// Frame is what a Renderer receives after every chunk: the time spent so far
// in the run and a snapshot of every job of the batch, in input order.
type Frame struct {
	Elapsed time.Duration
	Jobs    []Snapshot
}

// Renderer displays progress. Render is called synchronously from worker
// goroutines, possibly concurrently, so implementations must serialize their
// own output and return quickly.
type Renderer interface {
	Render(Frame)
}

// RendererFunc adapts a plain function to the Renderer interface.
type RendererFunc func(Frame)

// Render calls f(frame).
func (f RendererFunc) Render(frame Frame) {
	f(frame)
}

func snapshotAll(jobs []*TransferJob) []Snapshot {
	out := make([]Snapshot, len(jobs))
	for i, j := range jobs {
		out[i] = j.Snapshot()
	}
	return out
}
