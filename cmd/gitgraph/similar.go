package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	similarK      int
	similarFormat string
)

var similarCmd = &cobra.Command{
	Use:   "similar <file>",
	Short: "Find files similar to a given file",
	Long: `Find the files most similar to a given file.

Similarity combines two signals: how often files changed together in
git history (recent commits weigh more, bulk commits weigh less) and
how much their content overlaps. Results are ranked by a composite
score; ties order alphabetically.

Examples:
  gitgraph similar src/auth/login.go
  gitgraph similar -k 5 internal/server/handler.go
  gitgraph similar --format=human pkg/parser/lexer.go`,
	Args: cobra.ExactArgs(1),
	Run:  runSimilar,
}

func init() {
	similarCmd.Flags().IntVarP(&similarK, "top", "k", 10, "Maximum results to return")
	similarCmd.Flags().StringVar(&similarFormat, "format", "json", "Output format (json, human)")
	rootCmd.AddCommand(similarCmd)
}

func runSimilar(cmd *cobra.Command, args []string) {
	start := time.Now()
	logger := newLogger(similarFormat)
	target := args[0]

	g := mustOpenGraph(logger)

	ctx := newContext()
	handle, err := g.OpenFile(ctx, target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	results, err := handle.FindSimilarFiles(ctx, similarK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error finding similar files: %v\n", err)
		os.Exit(1)
	}

	output, err := FormatResponse(&SimilarResponseCLI{
		Path:    handle.Path(),
		K:       similarK,
		Results: results,
	}, OutputFormat(similarFormat))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(output)

	logger.Debug("Similarity query completed", map[string]interface{}{
		"target":   target,
		"results":  len(results),
		"duration": time.Since(start).Milliseconds(),
	})
}
