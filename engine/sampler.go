package engine

import (
	"sync"
	"time"
)

// SpeedWindow is the span of recent samples used to estimate throughput.
const SpeedWindow = time.Second

type sample struct {
	at    time.Time
	bytes int64
}

// SpeedSampler estimates instantaneous throughput as the number of bytes
// recorded during the last SpeedWindow.
//
// Samples are kept in recording order and pruned by timestamp comparison, so
// several chunks landing in the same millisecond are all counted.
type SpeedSampler struct {
	mu      sync.Mutex
	now     func() time.Time
	samples []sample
}

// NewSpeedSampler creates a sampler using the given clock. A nil clock means
// time.Now.
func NewSpeedSampler(now func() time.Time) *SpeedSampler {
	if now == nil {
		now = time.Now
	}
	return &SpeedSampler{now: now}
}

// Record appends a sample of n bytes stamped with the current time.
func (s *SpeedSampler) Record(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, sample{at: s.now(), bytes: n})
}

// Rate drops samples older than the window and returns the sum of the
// remaining ones, in bytes per second.
func (s *SpeedSampler) Rate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-SpeedWindow)

	// samples are ordered, find the first one still inside the window
	i := 0
	for i < len(s.samples) && s.samples[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		s.samples = append(s.samples[:0], s.samples[i:]...)
	}

	var total int64
	for _, smp := range s.samples {
		total += smp.bytes
	}
	return float64(total)
}

// Len returns the number of samples currently held.
func (s *SpeedSampler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples)
}
