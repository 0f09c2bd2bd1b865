package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var scanFormat string

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Build or refresh the similarity graph",
	Long: `Build or refresh the similarity graph for a repository.

Queries build the graph lazily on first use; scan forces the work up
front. Running scan again after new commits folds only the commits
and file contents that changed since the last build.

Examples:
  gitgraph scan
  gitgraph scan --repo /path/to/repo`,
	Args: cobra.NoArgs,
	Run:  runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) {
	start := time.Now()
	logger := newLogger(scanFormat)

	g := mustOpenGraph(logger)

	if err := g.Rescan(newContext()); err != nil {
		fmt.Fprintf(os.Stderr, "Error scanning repository: %v\n", err)
		os.Exit(1)
	}

	stats := g.Stats()
	output, err := FormatResponse(&ScanResponseCLI{
		Root:       stats.Root,
		Generation: stats.Generation,
		Commits:    stats.Commits,
		Files:      stats.Files,
		ElapsedMs:  time.Since(start).Milliseconds(),
	}, OutputFormat(scanFormat))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(output)
}
