package stats

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franksops/datarouter/engine"
)

func TestRowFromReport(t *testing.T) {
	row := RowFromReport(&engine.Report{
		TotalBytes:     26_000_000,
		FileCount:      3,
		ChunkSizeBytes: 10_000_000,
		Elapsed:        2 * time.Second,
		AverageSpeed:   13_000_000,
		Parallelism:    2,
	})

	assert.Equal(t, "26,2,3,10,2,13", row.String())
}

func TestCSVLogger_AppendWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.csv")
	logger := NewCSVLogger(path)

	first := &engine.Report{TotalBytes: 1_500_000, FileCount: 1, ChunkSizeBytes: 1_000_000, Elapsed: time.Second, AverageSpeed: 1_500_000, Parallelism: 2}
	second := &engine.Report{ChunkSizeBytes: 1_000_000, Parallelism: 4}

	require.NoError(t, logger.Append(first))
	require.NoError(t, logger.Append(second))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, Header, lines[0])
	assert.Equal(t, "1.5,2,1,1,1,1.5", lines[1])
	assert.Equal(t, "0,4,0,1,0,0", lines[2])
}

func TestCSVLogger_AppendsToExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.csv")
	require.NoError(t, os.WriteFile(path, []byte(Header+"\n1,1,1,1,1,1\n"), 0644))

	require.NoError(t, NewCSVLogger(path).Append(&engine.Report{Parallelism: 1, ChunkSizeBytes: 2_000_000}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), Header))
	assert.True(t, strings.HasSuffix(string(data), "0,1,0,2,0,0\n"))
}
