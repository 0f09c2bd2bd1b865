package gitgraph

import (
	"path/filepath"
	"sync"

	"gitgraph/internal/config"
	"gitgraph/internal/errors"
	"gitgraph/internal/logging"
)

// registry holds one LocalGitGraph per resolved repository root so every
// caller in the process shares the same graph and its caches.
var registry = struct {
	mu     sync.Mutex
	graphs map[string]*LocalGitGraph
}{graphs: make(map[string]*LocalGitGraph)}

// Open returns the process-wide graph for the repository at root, creating
// it on first use. Roots are resolved to absolute symlink-free paths, so
// different spellings of the same directory share one graph.
func Open(root string, logger *logging.Logger) (*LocalGitGraph, error) {
	resolved, err := resolveRoot(root)
	if err != nil {
		return nil, err
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	if g, ok := registry.graphs[resolved]; ok {
		return g, nil
	}

	cfg, err := config.LoadConfig(resolved)
	if err != nil {
		return nil, err
	}

	g, err := New(resolved, cfg, logger)
	if err != nil {
		return nil, err
	}
	registry.graphs[resolved] = g
	return g, nil
}

// ResetRegistry closes and discards every registered graph. Intended for
// tests that need isolation between cases.
func ResetRegistry() {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	for root, g := range registry.graphs {
		if err := g.Close(); err != nil {
			g.logger.Warn("failed to close graph", map[string]interface{}{
				"root":  root,
				"error": err.Error(),
			})
		}
	}
	registry.graphs = make(map[string]*LocalGitGraph)
}

func resolveRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", errors.New(errors.RepositoryUnavailable,
			"failed to resolve repository root", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", errors.New(errors.RepositoryUnavailable,
			"repository root does not exist", err).
			WithDetails(map[string]interface{}{"root": root})
	}
	return resolved, nil
}
