package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/franksops/datarouter/config"
	"github.com/franksops/datarouter/store"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the runs recorded in the state folder",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}
	cmd.Flags().String("state-dir", ".datarouter", "Folder of the job journal")
	cmd.Flags().Int("limit", 20, "Number of most recent runs to show, 0 for all")
	return cmd
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("state-dir") {
		cfg.StateDir, _ = cmd.Flags().GetString("state-dir")
	}
	limit, _ := cmd.Flags().GetInt("limit")

	stateStore, err := store.NewBoltStore(filepath.Join(cfg.StateDir, stateFile))
	if err != nil {
		return fmt.Errorf("failed to open state store: %w", err)
	}
	defer stateStore.Close()

	runs, err := stateStore.Runs()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet.")
		return nil
	}
	if limit > 0 && len(runs) > limit {
		runs = runs[len(runs)-limit:]
	}

	fmt.Fprintln(cmd.OutOrStdout(), historyTable(runs))
	return nil
}

func historyTable(runs []*store.RunRecord) string {
	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		}).
		Headers("RUN", "FINISHED", "SOURCE", "DESTINATION", "FILES", "SIZE", "ELAPSED", "SPEED", "PARALLEL", "CHUNK")

	for _, r := range runs {
		t.Row(
			shortID(r.ID),
			r.FinishedAt.Local().Format(time.DateTime),
			r.Source,
			r.Destination,
			strconv.Itoa(r.FileCount),
			humanize.Bytes(uint64(r.TotalBytes)),
			(time.Duration(r.ElapsedSeconds * float64(time.Second))).Round(time.Millisecond).String(),
			humanize.Bytes(uint64(r.AverageSpeed))+"/s",
			strconv.Itoa(r.Parallelism),
			humanize.Bytes(uint64(r.ChunkSizeBytes)),
		)
	}
	return t.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
