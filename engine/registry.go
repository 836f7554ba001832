package engine

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is the set of jobs of a run that are not finished yet, keyed by
// job ID. It is safe for concurrent use.
type Registry struct {
	mu   sync.Mutex
	jobs map[string]*TransferJob
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*TransferJob)}
}

// Add registers job. Two jobs sharing an ID cannot be told apart, so a
// duplicate is rejected.
func (r *Registry) Add(job *TransferJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[job.ID()]; ok {
		return fmt.Errorf("duplicate job id %q: %w", job.ID(), ErrInvalidConfiguration)
	}
	r.jobs[job.ID()] = job
	return nil
}

// Remove unregisters the job with the given id. A missing job is a broken
// invariant and reported as ErrRegistryInvariant.
func (r *Registry) Remove(id string) (*TransferJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, fmt.Errorf("cannot remove %q: %w", id, ErrRegistryInvariant)
	}
	delete(r.jobs, id)
	return job, nil
}

// Len returns the number of active jobs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// Drain empties the registry and returns what was left in it, ordered by ID.
func (r *Registry) Drain() []*TransferJob {
	r.mu.Lock()
	defer r.mu.Unlock()

	left := make([]*TransferJob, 0, len(r.jobs))
	for id, job := range r.jobs {
		left = append(left, job)
		delete(r.jobs, id)
	}
	sort.Slice(left, func(a, b int) bool { return left[a].ID() < left[b].ID() })
	return left
}
