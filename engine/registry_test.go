package engine

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_AddRemove(t *testing.T) {
	r := NewRegistry()
	a, _, _ := newMemJob(t, "a.mkv", payload(1))
	b, _, _ := newMemJob(t, "b.mkv", payload(1))

	require.NoError(t, r.Add(a))
	require.NoError(t, r.Add(b))
	assert.Equal(t, 2, r.Len())

	got, err := r.Remove("a.mkv")
	require.NoError(t, err)
	assert.Same(t, a, got)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_DuplicateID(t *testing.T) {
	r := NewRegistry()
	a, _, _ := newMemJob(t, "a.mkv", payload(1), WithID("same"))
	b, _, _ := newMemJob(t, "b.mkv", payload(1), WithID("same"))

	require.NoError(t, r.Add(a))
	err := r.Add(b)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_RemoveMissing(t *testing.T) {
	r := NewRegistry()

	_, err := r.Remove("ghost.mkv")
	assert.ErrorIs(t, err, ErrRegistryInvariant)

	a, _, _ := newMemJob(t, "a.mkv", payload(1))
	require.NoError(t, r.Add(a))
	_, err = r.Remove("a.mkv")
	require.NoError(t, err)

	_, err = r.Remove("a.mkv")
	assert.ErrorIs(t, err, ErrRegistryInvariant)
}

func TestRegistry_Drain(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"c.mkv", "a.mkv", "b.mkv"} {
		job, _, _ := newMemJob(t, name, payload(1))
		require.NoError(t, r.Add(job))
	}

	left := r.Drain()
	require.Len(t, left, 3)
	assert.Equal(t, "a.mkv", left[0].ID())
	assert.Equal(t, "b.mkv", left[1].ID())
	assert.Equal(t, "c.mkv", left[2].ID())
	assert.Zero(t, r.Len())
	assert.Empty(t, r.Drain())
}

func TestRegistry_Concurrent(t *testing.T) {
	r := NewRegistry()
	jobs := make([]*TransferJob, 50)
	for i := range jobs {
		jobs[i], _, _ = newMemJob(t, fmt.Sprintf("file-%02d.mkv", i), payload(1))
		require.NoError(t, r.Add(jobs[i]))
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(jobs))
	for _, job := range jobs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := r.Remove(id)
			errs <- err
		}(job.ID())
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Zero(t, r.Len())
}
