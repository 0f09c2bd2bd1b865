package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gitgraph/internal/repostate"
)

var statusFormat string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show repository and graph state",
	Long: `Show the repository's current state and what the graph knows about it.

Reports the HEAD commit, the state id used for cache invalidation,
whether the working tree is dirty, and the graph's build statistics.

Examples:
  gitgraph status
  gitgraph status --format=json`,
	Args: cobra.NoArgs,
	Run:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	logger := newLogger(statusFormat)

	g := mustOpenGraph(logger)
	stats := g.Stats()

	resp := &StatusResponseCLI{
		Root:       stats.Root,
		Built:      stats.Built,
		Generation: stats.Generation,
		Commits:    stats.Commits,
		Files:      stats.Files,
		Queries:    stats.Queries,
	}

	if state, err := repostate.Compute(stats.Root); err == nil {
		resp.HeadCommit = state.HeadCommit
		resp.StateID = state.StateID
		resp.Dirty = state.Dirty
	} else {
		logger.Warn("Failed to compute repository state", map[string]interface{}{
			"error": err.Error(),
		})
	}

	output, err := FormatResponse(resp, OutputFormat(statusFormat))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(output)
}
