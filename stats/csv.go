// Package stats appends run reports to a delimited text file.
package stats

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/gofrs/flock"

	"github.com/franksops/datarouter/engine"
)

// Header is the first line of every statistics file.
const Header = "size (MB), thread(s), file count, chunk size (MB), elapsed time(s), speed(MB)"

// megabyte is the SI megabyte used for every size column.
const megabyte = 1_000_000

// Row is one line of the statistics file, in the header's units.
type Row struct {
	SizeMB        float64
	Threads       int
	FileCount     int
	ChunkSizeMB   float64
	ElapsedSecs   float64
	SpeedMBPerSec float64
}

// RowFromReport converts a report to header units.
func RowFromReport(r *engine.Report) Row {
	return Row{
		SizeMB:        float64(r.TotalBytes) / megabyte,
		Threads:       r.Parallelism,
		FileCount:     r.FileCount,
		ChunkSizeMB:   float64(r.ChunkSizeBytes) / megabyte,
		ElapsedSecs:   r.ElapsedSeconds(),
		SpeedMBPerSec: r.AverageSpeed / megabyte,
	}
}

func (r Row) String() string {
	fields := []string{
		formatFloat(r.SizeMB),
		strconv.Itoa(r.Threads),
		strconv.Itoa(r.FileCount),
		formatFloat(r.ChunkSizeMB),
		formatFloat(r.ElapsedSecs),
		formatFloat(r.SpeedMBPerSec),
	}
	return strings.Join(fields, ",")
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// CSVLogger appends one row per run to a statistics file. The file gets the
// header when it is created. A lock file next to it keeps rows of concurrent
// processes from interleaving.
type CSVLogger struct {
	path string
	lock *flock.Flock
}

// NewCSVLogger creates a logger for the file at path.
func NewCSVLogger(path string) *CSVLogger {
	return &CSVLogger{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the statistics file path.
func (l *CSVLogger) Path() string {
	return l.path
}

// Append writes the row for report, creating the file with its header first
// if needed.
func (l *CSVLogger) Append(report *engine.Report) error {
	if err := l.lock.Lock(); err != nil {
		return fmt.Errorf("lock %s: %w", l.path, err)
	}
	defer l.lock.Unlock()

	var lines []string
	if _, err := os.Stat(l.path); errors.Is(err, fs.ErrNotExist) {
		lines = append(lines, Header)
	} else if err != nil {
		return fmt.Errorf("stat %s: %w", l.path, err)
	}
	lines = append(lines, RowFromReport(report).String())

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open %s: %w", l.path, err)
	}

	_, err = f.WriteString(strings.Join(lines, "\n") + "\n")
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", l.path, err)
	}
	return nil
}
