package logctx

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	slogmulti "github.com/samber/slog-multi"
)

// Options configures the process logger built by New.
type Options struct {
	// Dir receives one JSON log file per day, named logYYYYMMDD.txt.
	Dir   string
	Level slog.Level
	// Console, when set, also gets human readable records.
	Console io.Writer
	Now     func() time.Time
}

// FileName returns the path of the log file used for the day of t.
func FileName(dir string, t time.Time) string {
	return filepath.Join(dir, "log"+t.Format("20060102")+".txt")
}

// New builds a logger fanning out to the daily log file and, optionally, the
// console. The returned closer closes the log file.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("create log dir %s: %w", opts.Dir, err)
	}

	f, err := os.OpenFile(FileName(opts.Dir, now()), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	handlerOpts := &slog.HandlerOptions{Level: opts.Level}
	handlers := []slog.Handler{slog.NewJSONHandler(f, handlerOpts)}
	if opts.Console != nil {
		handlers = append(handlers, slog.NewTextHandler(opts.Console, handlerOpts))
	}

	return slog.New(slogmulti.Fanout(handlers...)), f, nil
}
