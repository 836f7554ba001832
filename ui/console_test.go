package ui

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/franksops/datarouter/engine"
)

func sampleFrame() engine.Frame {
	return engine.Frame{
		Elapsed: 65 * time.Second,
		Jobs: []engine.Snapshot{
			{Name: "a.mkv", TotalBytes: 100, BytesTransferred: 100},
			{Name: "b.mp4", TotalBytes: 2_000_000, BytesTransferred: 500_000, Speed: 3_000_000},
			{Name: "c.avi", TotalBytes: 50},
		},
	}
}

func TestConsoleRenderer_Render(t *testing.T) {
	var out bytes.Buffer
	r := NewConsoleRenderer(&out)

	r.Render(sampleFrame())

	got := out.String()
	assert.Contains(t, got, "Elapsed time: 00:01:05")
	assert.Contains(t, got, "[a.mkv] ")
	assert.Contains(t, got, "Transferred successfully")
	assert.Contains(t, got, "25.00% / 100% - 1.5 MB - 3.0 MB/s")
	assert.Contains(t, got, "Queued, waiting for copy...")
	assert.NotContains(t, got, clearScreen)
}

func TestConsoleRenderer_IntervalDropsFrames(t *testing.T) {
	var out bytes.Buffer
	now := time.Unix(0, 0)
	r := NewConsoleRenderer(&out, WithInterval(time.Second), WithClearScreen())
	r.now = func() time.Time { return now }

	r.Render(sampleFrame())
	now = now.Add(100 * time.Millisecond)
	r.Render(sampleFrame())
	assert.Equal(t, 1, strings.Count(out.String(), clearScreen))

	// a frame with everything finished is never dropped
	now = now.Add(100 * time.Millisecond)
	r.Render(engine.Frame{Jobs: []engine.Snapshot{{Name: "a.mkv", TotalBytes: 1, BytesTransferred: 1}}})
	assert.Equal(t, 2, strings.Count(out.String(), clearScreen))

	now = now.Add(2 * time.Second)
	r.Render(sampleFrame())
	assert.Equal(t, 3, strings.Count(out.String(), clearScreen))
}

func TestConsoleRenderer_ConcurrentRender(t *testing.T) {
	var out bytes.Buffer
	r := NewConsoleRenderer(&out)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Render(sampleFrame())
		}()
	}
	wg.Wait()

	assert.Equal(t, 8, strings.Count(out.String(), "Elapsed time:"))
}

func TestConsoleRenderer_Summary(t *testing.T) {
	var out bytes.Buffer
	NewConsoleRenderer(&out).Summary(&engine.Report{
		TotalBytes:     26_000_000,
		FileCount:      3,
		ChunkSizeBytes: 10_000_000,
		Elapsed:        2 * time.Second,
		AverageSpeed:   13_000_000,
		Parallelism:    2,
	})

	assert.Equal(t, "3 file(s), 26 MB in 00:00:02 (13 MB/s, 2 parallel, 10 MB chunks)\n", out.String())
}
