package main

import (
	"github.com/spf13/cobra"
)

// Version information, set via ldflags during build
var Version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "datarouter",
		Short:        "Move video files between folders with chunked parallel copies",
		Long:         `datarouter moves the video files of a source folder into a target folder, copying several files at once in fixed size chunks and reporting progress live.`,
		Version:      Version,
		SilenceUsage: true,
	}

	root.AddCommand(newMoveCmd(), newHistoryCmd())
	return root
}
