package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration is returned when a job or a run is configured with
	// a chunk size or parallelism that cannot be used.
	ErrInvalidConfiguration = errors.New("invalid transfer configuration")

	// ErrPrematureBufferUse is returned when CopyChunk is called on a job that
	// has not been configured yet.
	ErrPrematureBufferUse = errors.New("transfer buffer used before configuration")

	// ErrRegistryInvariant is returned when a finished job is missing from the
	// active registry. It always points at a concurrency bug and aborts the run.
	ErrRegistryInvariant = errors.New("active job registry invariant violated")

	// ErrJobReleased is returned when an operation is attempted on a job whose
	// streams were already released.
	ErrJobReleased = errors.New("transfer job already released")

	// ErrNotDirectory is returned when a source or target folder is a file.
	ErrNotDirectory = errors.New("not a directory")
)

// ConfigError describes a rejected job or run configuration.
type ConfigError struct {
	Job    string // Job name, empty for run level settings
	Field  string // The setting that was rejected
	Value  int
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Job == "" {
		return fmt.Sprintf("invalid %s %d: %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("job %s: invalid %s %d: %s", e.Job, e.Field, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfiguration
}

// ChunkError wraps an I/O failure that happened while copying a chunk.
type ChunkError struct {
	Job    string // Job name
	Op     string // "read", "write" or "flush"
	Offset int64  // Offset of the chunk within the source
	Err    error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("job %s: %s at offset %d: %v", e.Job, e.Op, e.Offset, e.Err)
}

func (e *ChunkError) Unwrap() error {
	return e.Err
}
