package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize/english"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/franksops/datarouter/config"
	"github.com/franksops/datarouter/engine"
	"github.com/franksops/datarouter/logctx"
	"github.com/franksops/datarouter/mover"
	"github.com/franksops/datarouter/provider"
	"github.com/franksops/datarouter/stats"
	"github.com/franksops/datarouter/store"
	"github.com/franksops/datarouter/ui"
)

const (
	stateFile       = "state.db"
	consoleInterval = 100 * time.Millisecond
)

func newMoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "move",
		Short: "Move the matching files of a source folder into a target folder",
		Long: `Move copies every video file of the source folder that is not already in the
target folder, several at a time and chunk by chunk, then removes the sources.

Settings are read from DATAROUTER_* environment variables; flags override them.`,
		Example: `  datarouter move --source ~/Downloads --dest /mnt/plex/Movies
  datarouter move --source in --dest out --parallel 4 --chunk-size 1000000 --tui`,
		Args: cobra.NoArgs,
		RunE: runMove,
	}

	f := cmd.Flags()
	f.String("source", "", "Source folder")
	f.String("dest", "", "Target folder")
	f.Int("parallel", engine.DefaultParallelism, "Maximum number of files copied at the same time")
	f.Int("chunk-size", engine.DefaultChunkSize, "Bytes copied per read/write cycle")
	f.StringSlice("extensions", engine.DefaultExtensions, "File extensions to move")
	f.Bool("include-text", false, "Also move .txt files")
	f.Bool("recursive", false, "Descend into subfolders, keeping their layout")
	f.Bool("sniff", false, "Check file contents against their extension")
	f.Bool("keep-source", false, "Copy without removing the sources")
	f.Bool("tui", false, "Show the interactive progress view")
	f.String("stats-file", "stats.csv", "CSV file receiving one row per run")
	f.String("state-dir", ".datarouter", "Folder of the job journal")
	f.String("log-dir", "logs", "Folder of the daily log files")
	f.String("log-level", "INFO", "DEBUG, INFO, WARN or ERROR")

	return cmd
}

// applyMoveFlags overrides cfg with the flags set on the command line.
func applyMoveFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	str := func(name string, dst *string) {
		if f.Changed(name) {
			*dst, _ = f.GetString(name)
		}
	}
	num := func(name string, dst *int) {
		if f.Changed(name) {
			*dst, _ = f.GetInt(name)
		}
	}
	flag := func(name string, dst *bool) {
		if f.Changed(name) {
			*dst, _ = f.GetBool(name)
		}
	}

	str("source", &cfg.Source)
	str("dest", &cfg.Dest)
	num("parallel", &cfg.Parallelism)
	num("chunk-size", &cfg.ChunkSize)
	if f.Changed("extensions") {
		cfg.Extensions, _ = f.GetStringSlice("extensions")
	}
	flag("include-text", &cfg.IncludeText)
	flag("recursive", &cfg.Recursive)
	flag("sniff", &cfg.Sniff)
	flag("keep-source", &cfg.KeepSource)
	flag("tui", &cfg.TUI)
	str("stats-file", &cfg.StatsFile)
	str("state-dir", &cfg.StateDir)
	str("log-dir", &cfg.LogDir)
	str("log-level", &cfg.LogLevel)
}

func runMove(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	applyMoveFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Console logs would fight with the renderers, keep them for debugging
	var console io.Writer
	if cfg.SlogLevel() == slog.LevelDebug && !cfg.TUI {
		console = cmd.ErrOrStderr()
	}
	logger, logFile, err := logctx.New(logctx.Options{Dir: cfg.LogDir, Level: cfg.SlogLevel(), Console: console})
	if err != nil {
		return err
	}
	defer logFile.Close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	source, err := filepath.Abs(cfg.Source)
	if err != nil {
		return err
	}
	dest, err := filepath.Abs(cfg.Dest)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.StateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	stateStore, err := store.NewBoltStore(filepath.Join(cfg.StateDir, stateFile))
	if err != nil {
		return fmt.Errorf("failed to initialize state store: %w", err)
	}
	defer stateStore.Close()

	runID := uuid.NewString()
	logger = logger.With("run_id", runID)
	ctx = logctx.WithLogger(ctx, logger)

	opts := mover.Options{
		SourceDir: source,
		DestDir:   dest,
		Walk: engine.WalkOptions{
			Extensions: cfg.FileExtensions(),
			Recursive:  cfg.Recursive,
			Sniff:      cfg.Sniff,
		},
		Parallelism: cfg.Parallelism,
		ChunkSize:   cfg.ChunkSize,
		KeepSource:  cfg.KeepSource,
		Tracker:     engine.NewJobTracker(stateStore, runID),
	}
	// Paths are absolute, the providers are not rooted
	src := provider.NewLocalProvider("")
	dst := provider.NewLocalProvider("")

	var res *mover.Result
	if cfg.TUI {
		res, err = moveWithTUI(ctx, cancel, cfg.Parallelism, src, dst, opts)
	} else {
		res, err = moveWithConsole(ctx, cmd.OutOrStdout(), src, dst, opts)
	}
	if err != nil {
		logger.Error("Something went wrong trying to move files from source to target", "err", err)
		return err
	}

	if res.Report.FileCount > 0 {
		if err := stats.NewCSVLogger(cfg.StatsFile).Append(res.Report); err != nil {
			logger.Warn("failed to write statistics", "file", cfg.StatsFile, "err", err)
		}
	}

	logger.Info("Successfully moved "+english.Plural(res.Moved, "file", ""), "skipped", res.Skipped)
	return nil
}

func moveWithConsole(ctx context.Context, out io.Writer, src, dst provider.Provider, opts mover.Options) (*mover.Result, error) {
	console := ui.NewConsoleRenderer(out, ui.WithClearScreen(), ui.WithInterval(consoleInterval))
	opts.Renderer = console

	res, err := mover.New(src, dst, opts).Move(ctx)
	if err != nil {
		return nil, err
	}
	console.Summary(res.Report)
	return res, nil
}

// moveWithTUI runs the move in the background while the TUI owns the
// terminal. Quitting the TUI early cancels the move.
func moveWithTUI(ctx context.Context, cancel context.CancelFunc, parallelism int, src, dst provider.Provider, opts mover.Options) (*mover.Result, error) {
	program := tea.NewProgram(ui.NewTUIModel(parallelism, cancel), tea.WithAltScreen())
	renderer := ui.NewTUIRenderer(program)
	opts.Renderer = renderer

	var (
		res     *mover.Result
		moveErr error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		res, moveErr = mover.New(src, dst, opts).Move(ctx)
		var report *engine.Report
		if res != nil {
			report = res.Report
		}
		renderer.Done(report, moveErr)
	}()

	if _, err := program.Run(); err != nil {
		cancel()
		<-done
		return nil, fmt.Errorf("tui: %w", err)
	}
	<-done
	return res, moveErr
}
