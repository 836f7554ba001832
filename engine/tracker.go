package engine

import (
	"time"

	"github.com/franksops/datarouter/store"
)

// JobTracker journals the state of every job of one run in a store.
type JobTracker struct {
	store store.Store
	runID string
}

// NewJobTracker creates a tracker writing records tagged with runID.
func NewJobTracker(s store.Store, runID string) *JobTracker {
	return &JobTracker{
		store: s,
		runID: runID,
	}
}

// RunID returns the identifier of the run being journaled.
func (jt *JobTracker) RunID() string {
	return jt.runID
}

// InitJob records a job as pending.
func (jt *JobTracker) InitJob(job *TransferJob) error {
	record := &store.JobRecord{
		RunID:      jt.runID,
		ID:         job.ID(),
		Name:       job.Name(),
		State:      store.StatePending,
		TotalBytes: job.TotalBytes(),
		UpdatedAt:  time.Now().UTC(),
	}
	return jt.store.SaveJob(record)
}

// MarkInProgress updates a job's state to InProgress.
func (jt *JobTracker) MarkInProgress(jobID string) error {
	return jt.update(jobID, func(r *store.JobRecord) {
		r.State = store.StateInProgress
	})
}

// MarkCompleted updates a job's state to Completed.
func (jt *JobTracker) MarkCompleted(jobID string, bytes int64) error {
	return jt.update(jobID, func(r *store.JobRecord) {
		r.State = store.StateCompleted
		r.BytesTransferred = bytes
	})
}

// MarkFailed updates a job's state to Failed with an error message.
func (jt *JobTracker) MarkFailed(jobID string, bytes int64, err error) error {
	return jt.update(jobID, func(r *store.JobRecord) {
		r.State = store.StateFailed
		r.BytesTransferred = bytes
		if err != nil {
			r.Error = err.Error()
		}
	})
}

// RecordRun stores the report of the finished run.
func (jt *JobTracker) RecordRun(source, destination string, report *Report) error {
	return jt.store.SaveRun(&store.RunRecord{
		ID:             jt.runID,
		Source:         source,
		Destination:    destination,
		FinishedAt:     time.Now().UTC(),
		TotalBytes:     report.TotalBytes,
		FileCount:      report.FileCount,
		ChunkSizeBytes: report.ChunkSizeBytes,
		ElapsedSeconds: report.ElapsedSeconds(),
		AverageSpeed:   report.AverageSpeed,
		Parallelism:    report.Parallelism,
	})
}

func (jt *JobTracker) update(jobID string, mutate func(*store.JobRecord)) error {
	record, err := jt.store.GetJob(jt.runID, jobID)
	if err != nil {
		return err
	}
	mutate(record)
	record.UpdatedAt = time.Now().UTC()
	return jt.store.SaveJob(record)
}
