package main

import (
	"gitgraph/internal/version"

	"github.com/spf13/cobra"
)

var (
	// repoFlag is the CLI --repo flag value
	repoFlag string
)

var rootCmd = &cobra.Command{
	Use:   "gitgraph",
	Short: "gitgraph - file similarity over git history",
	Long: `gitgraph builds a similarity graph over a local git repository.

It combines two signals: which files historically change together
(recency-weighted co-change analysis) and how much their content
overlaps (MinHash sketches). Queries return the files most similar
to a given file, ranked by a composite score.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("gitgraph version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&repoFlag, "repo", "",
		"Repository root (default: current directory)")
}
