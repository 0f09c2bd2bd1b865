package main

import (
	"context"
	"fmt"
	"os"

	"gitgraph/internal/gitgraph"
	"gitgraph/internal/logging"
)

// getRepoRoot returns the repository root directory.
func getRepoRoot() (string, error) {
	if repoFlag != "" {
		return repoFlag, nil
	}
	return os.Getwd()
}

// mustGetRepoRoot returns the repository root or exits on error.
func mustGetRepoRoot() string {
	repoRoot, err := getRepoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return repoRoot
}

// mustOpenGraph returns the shared graph for the repository or exits on error.
func mustOpenGraph(logger *logging.Logger) *gitgraph.LocalGitGraph {
	g, err := gitgraph.Open(mustGetRepoRoot(), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening repository: %v\n", err)
		os.Exit(1)
	}
	return g
}

// newContext creates a new context for command execution.
func newContext() context.Context {
	return context.Background()
}

// newLogger creates a logger with the specified format.
func newLogger(format string) *logging.Logger {
	logFormat := logging.HumanFormat
	if format == "json" {
		logFormat = logging.JSONFormat
	}
	return logging.NewLogger(logging.Config{
		Format: logFormat,
		Level:  logging.InfoLevel,
	})
}
