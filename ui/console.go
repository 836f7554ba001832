package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/franksops/datarouter/engine"
)

const clearScreen = "\033[H\033[2J"

// ConsoleRenderer prints the state of every job of a batch as plain text.
// It is safe to call from several workers at once.
type ConsoleRenderer struct {
	mu       sync.Mutex
	out      io.Writer
	clear    bool
	interval time.Duration
	last     time.Time
	now      func() time.Time

	doneStyle    lipgloss.Style
	queuedStyle  lipgloss.Style
	runningStyle lipgloss.Style
}

// ConsoleOption customizes a ConsoleRenderer.
type ConsoleOption func(*ConsoleRenderer)

// WithClearScreen redraws in place instead of appending frames.
func WithClearScreen() ConsoleOption {
	return func(c *ConsoleRenderer) {
		c.clear = true
	}
}

// WithInterval drops frames arriving less than d after the last printed one.
// Frames where every job is finished are always printed.
func WithInterval(d time.Duration) ConsoleOption {
	return func(c *ConsoleRenderer) {
		c.interval = d
	}
}

// NewConsoleRenderer creates a renderer writing to out.
func NewConsoleRenderer(out io.Writer, opts ...ConsoleOption) *ConsoleRenderer {
	c := &ConsoleRenderer{
		out:          out,
		now:          time.Now,
		doneStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		queuedStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		runningStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("78")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Render implements engine.Renderer.
func (c *ConsoleRenderer) Render(frame engine.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.interval > 0 && !c.last.IsZero() && now.Sub(c.last) < c.interval && !allFinished(frame) {
		return
	}
	c.last = now

	var sb strings.Builder
	if c.clear {
		sb.WriteString(clearScreen)
	}
	sb.WriteString(c.format(frame))
	sb.WriteString("\n")

	_, _ = io.WriteString(c.out, sb.String())
}

func (c *ConsoleRenderer) format(frame engine.Frame) string {
	var sb strings.Builder
	sb.WriteString("Elapsed time: " + formatElapsed(frame.Elapsed))

	for _, job := range frame.Jobs {
		sb.WriteString("\n[" + job.Name + "] ")

		switch {
		case job.HasFinished():
			sb.WriteString(c.doneStyle.Render("Transferred successfully"))
		case !job.IsCopying():
			sb.WriteString(c.queuedStyle.Render("Queued, waiting for copy..."))
		default:
			sb.WriteString(c.runningStyle.Render(fmt.Sprintf("%.2f%% / 100%% - %s - %s",
				job.Progress()*100,
				humanize.Bytes(uint64(job.RemainingBytes())),
				formatSpeed(job.Speed),
			)))
		}
	}
	return sb.String()
}

// Summary prints the final report of a run.
func (c *ConsoleRenderer) Summary(report *engine.Report) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.out, "%d file(s), %s in %s (%s, %d parallel, %s chunks)\n",
		report.FileCount,
		humanize.Bytes(uint64(report.TotalBytes)),
		formatElapsed(report.Elapsed),
		formatSpeed(report.AverageSpeed),
		report.Parallelism,
		humanize.Bytes(uint64(report.ChunkSizeBytes)),
	)
}

func allFinished(frame engine.Frame) bool {
	for _, job := range frame.Jobs {
		if !job.HasFinished() {
			return false
		}
	}
	return true
}
