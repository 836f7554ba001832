package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/franksops/datarouter/engine"
)

const (
	// jobBarWidth is fixed so file names always fit next to the bar.
	jobBarWidth = 30
	maxNameLen  = 40
)

// FrameMsg carries the latest engine frame to the TUI.
type FrameMsg struct {
	Frame engine.Frame
}

// DoneMsg is sent once the run is over.
type DoneMsg struct {
	Report *engine.Report
	Err    error
}

// TUIModel implements the tea.Model interface
type TUIModel struct {
	frame       engine.Frame
	parallelism int
	report      *engine.Report
	err         error
	done        bool
	onQuit      func()

	spinner  spinner.Model
	progress progress.Model
	jobBar   progress.Model
	viewport viewport.Model

	width  int
	height int

	// Styles
	titleStyle   lipgloss.Style
	infoStyle    lipgloss.Style
	streamStyle  lipgloss.Style
	helpStyle    lipgloss.Style
	errorStyle   lipgloss.Style
	successStyle lipgloss.Style
}

// NewTUIModel creates the model. onQuit is called when the user quits before
// the run is over.
func NewTUIModel(parallelism int, onQuit func()) TUIModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	prog := progress.New(progress.WithDefaultGradient())
	jobBar := progress.New(progress.WithDefaultGradient(), progress.WithWidth(jobBarWidth))

	return TUIModel{
		parallelism:  parallelism,
		onQuit:       onQuit,
		spinner:      s,
		progress:     prog,
		jobBar:       jobBar,
		titleStyle:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Padding(0, 1),
		infoStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		streamStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("78")),
		helpStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")).MarginTop(1),
		errorStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		successStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
	}
}

func (m TUIModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m TUIModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if !m.done && m.onQuit != nil {
				m.onQuit()
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = msg.Width - 14

		headerHeight := 5
		footerHeight := 2
		m.viewport = viewport.New(msg.Width, msg.Height-headerHeight-footerHeight)

	case FrameMsg:
		m.frame = msg.Frame

	case DoneMsg:
		m.done = true
		m.report = msg.Report
		m.err = msg.Err

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// totals sums the frame's jobs.
func (m TUIModel) totals() (total, completed int64, speed float64, active int) {
	for _, job := range m.frame.Jobs {
		total += job.TotalBytes
		completed += job.BytesTransferred
		speed += job.Speed
		if job.IsCopying() {
			active++
		}
	}
	return total, completed, speed, active
}

func (m TUIModel) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var sb strings.Builder

	header := fmt.Sprintf("%s datarouter %s", m.spinner.View(), m.titleStyle.Render("Chunked Parallel Transfer"))
	sb.WriteString(header + "\n")

	total, completed, speed, active := m.totals()
	var percent float64
	if total > 0 {
		percent = float64(completed) / float64(total)
	}

	opsInfo := fmt.Sprintf("Elapsed: %s | ETA: %s | Streams: %d/%d | %s | %.2f GB / %.2f GB",
		formatElapsed(m.frame.Elapsed),
		formatETA(speed, total, completed),
		active, m.parallelism,
		formatSpeed(speed),
		float64(completed)/1e9, float64(total)/1e9)

	sb.WriteString(m.infoStyle.Render(opsInfo) + "\n")
	sb.WriteString(m.progress.ViewAs(percent) + "\n\n")

	sb.WriteString("Files:\n")
	var streamContent strings.Builder

	if len(m.frame.Jobs) == 0 {
		streamContent.WriteString(m.infoStyle.Render("Waiting for files..."))
	} else {
		for _, job := range m.frame.Jobs {
			name := job.Name
			if len(name) > maxNameLen {
				name = "..." + name[len(name)-maxNameLen+3:]
			}

			var status string
			switch {
			case job.HasFinished():
				status = m.successStyle.Render("done")
			case !job.IsCopying():
				status = m.infoStyle.Render("queued")
			default:
				status = m.streamStyle.Render(formatSpeed(job.Speed))
			}

			// Format: movie.mkv | 45 MB/s | [===       ] 30%
			streamContent.WriteString(fmt.Sprintf("%-*s | %-10s | %s\n",
				maxNameLen, name, status, m.jobBar.ViewAs(job.Progress())))
		}
	}

	m.viewport.SetContent(streamContent.String())
	sb.WriteString(m.viewport.View())

	help := m.helpStyle.Render("q/ctrl+c: abort")
	switch {
	case m.done && m.err != nil:
		help = m.errorStyle.Render("Transfer failed: "+m.err.Error()) + " Press 'q' to exit."
	case m.done && m.report != nil:
		help = m.successStyle.Render("Transfer complete!") +
			fmt.Sprintf(" %d file(s) at %s. Press 'q' to exit.", m.report.FileCount, formatSpeed(m.report.AverageSpeed))
	case m.done:
		help = m.successStyle.Render("Transfer complete!") + " Press 'q' to exit."
	}
	sb.WriteString("\n" + help)

	return sb.String()
}

// TUIRenderer forwards frames to a running bubbletea program.
type TUIRenderer struct {
	program *tea.Program
}

// NewTUIRenderer wraps program as an engine.Renderer.
func NewTUIRenderer(program *tea.Program) *TUIRenderer {
	return &TUIRenderer{program: program}
}

// Render implements engine.Renderer. tea.Program.Send is goroutine safe.
func (r *TUIRenderer) Render(frame engine.Frame) {
	r.program.Send(FrameMsg{Frame: frame})
}

// Done tells the TUI the run is over.
func (r *TUIRenderer) Done(report *engine.Report, err error) {
	r.program.Send(DoneMsg{Report: report, Err: err})
}
