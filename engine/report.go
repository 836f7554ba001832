package engine

import "time"

// Report summarizes a completed batch run.
type Report struct {
	TotalBytes     int64
	FileCount      int
	ChunkSizeBytes int
	Elapsed        time.Duration
	AverageSpeed   float64 // bytes per second
	// Parallelism is the configured maximum number of concurrent jobs, not the
	// number of workers that ended up running.
	Parallelism int
}

// ElapsedSeconds returns the run duration in seconds.
func (r Report) ElapsedSeconds() float64 {
	return r.Elapsed.Seconds()
}

func newReport(totalBytes int64, fileCount, chunkSize, parallelism int, elapsed time.Duration) *Report {
	r := &Report{
		TotalBytes:     totalBytes,
		FileCount:      fileCount,
		ChunkSizeBytes: chunkSize,
		Elapsed:        elapsed,
		Parallelism:    parallelism,
	}
	if secs := elapsed.Seconds(); secs > 0 {
		r.AverageSpeed = float64(totalBytes) / secs
	}
	return r
}
