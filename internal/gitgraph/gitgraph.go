// Package gitgraph exposes file similarity over a local git repository.
// A LocalGitGraph builds a co-change graph and content sketch index lazily
// on first query and serves ranked similar-file lookups from it.
package gitgraph

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"gitgraph/internal/cochange"
	"gitgraph/internal/config"
	"gitgraph/internal/errors"
	"gitgraph/internal/history"
	"gitgraph/internal/logging"
	"gitgraph/internal/simindex"
	"gitgraph/internal/storage"
)

// LocalGitGraph is the entry point for one repository. It is safe for
// concurrent use; queries share a read lock while (re)builds take the
// write lock, so a query never observes a half-built graph.
type LocalGitGraph struct {
	root   string
	cfg    *config.Config
	logger *logging.Logger
	reader *history.Reader

	db    *storage.DB
	store *storage.Store

	mu         sync.RWMutex
	graph      *cochange.Graph
	index      *simindex.Index
	generation uint64
	built      bool

	builds  atomic.Uint64
	queries atomic.Uint64
}

// Stats describes the current state of a graph.
type Stats struct {
	Root       string `json:"root"`
	Generation uint64 `json:"generation"`
	Builds     uint64 `json:"builds"`
	Queries    uint64 `json:"queries"`
	Commits    int    `json:"commits"`
	Files      int    `json:"files"`
	Built      bool   `json:"built"`
}

// New creates a graph for the repository at root. The repository must exist
// and be readable or a RepositoryUnavailable error is returned. No history
// is read until the first query or an explicit Rescan.
func New(root string, cfg *config.Config, logger *logging.Logger) (*LocalGitGraph, error) {
	reader, err := history.NewReader(root, logger)
	if err != nil {
		return nil, err
	}

	g := &LocalGitGraph{
		root:   reader.Root(),
		cfg:    cfg,
		logger: logger,
		reader: reader,
	}

	if cfg.Cache.Persist {
		db, err := storage.Open(g.root, logger)
		if err != nil {
			// A broken cache must not take queries down with it.
			logger.Warn("persistent cache unavailable, continuing without", map[string]interface{}{
				"root":  g.root,
				"error": err.Error(),
			})
		} else {
			g.db = db
			g.store = storage.NewStore(db)
		}
	}

	return g, nil
}

// Root returns the resolved repository root.
func (g *LocalGitGraph) Root() string {
	return g.root
}

// OpenFile returns a handle for a repository-relative path. The path must
// name an existing regular file in the working tree; otherwise a
// PathNotFound error is returned. Opening a file is cheap and does not
// trigger a graph build.
func (g *LocalGitGraph) OpenFile(ctx context.Context, path string) (*FileHandle, error) {
	rel, err := g.normalize(path)
	if err != nil {
		return nil, err
	}

	info, statErr := os.Stat(filepath.Join(g.root, filepath.FromSlash(rel)))
	if statErr != nil || !info.Mode().IsRegular() {
		return nil, errors.New(errors.PathNotFound,
			"file not found in working tree", statErr).
			WithDetails(map[string]interface{}{"path": rel})
	}

	return &FileHandle{path: rel, owner: g}, nil
}

// Rescan rebuilds the graph from the repository's current state. Commits
// already folded are skipped; sketches are recomputed only for files whose
// content changed. On success the generation counter advances, invalidating
// every handle's memoized results. On failure the published graph and index
// are left exactly as they were.
func (g *LocalGitGraph) Rescan(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rebuildLocked(ctx, g.graph)
}

// Generation returns the current build generation. It is zero until the
// first successful build.
func (g *LocalGitGraph) Generation() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.generation
}

// Stats returns a snapshot of the graph's state without triggering a build.
func (g *LocalGitGraph) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	s := Stats{
		Root:       g.root,
		Generation: g.generation,
		Builds:     g.builds.Load(),
		Queries:    g.queries.Load(),
		Built:      g.built,
	}
	if g.graph != nil {
		s.Commits = g.graph.Commits()
	}
	if g.index != nil {
		s.Files = len(g.index.Paths())
	}
	return s
}

// Close releases the persistent cache, if any. The graph must not be used
// afterwards.
func (g *LocalGitGraph) Close() error {
	if g.db != nil {
		return g.db.Close()
	}
	return nil
}

// ensureBuilt builds the graph on first use. Concurrent callers block until
// one of them finishes the build.
func (g *LocalGitGraph) ensureBuilt(ctx context.Context) error {
	g.mu.RLock()
	built := g.built
	g.mu.RUnlock()
	if built {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.built {
		return nil
	}
	return g.rebuildLocked(ctx, nil)
}

// topK serves one ranked query against the published index.
func (g *LocalGitGraph) topK(path string, k int) []simindex.Result {
	g.queries.Add(1)
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.index == nil {
		return nil
	}
	return g.index.TopK(path, k)
}

// normalize converts path to a clean repository-relative slash form.
func (g *LocalGitGraph) normalize(path string) (string, error) {
	if path == "" {
		return "", errors.New(errors.InvalidArgument, "path must not be empty", nil)
	}
	if filepath.IsAbs(path) {
		return "", errors.New(errors.InvalidArgument,
			"path must be relative to the repository root", nil).
			WithDetails(map[string]interface{}{"path": path})
	}

	rel := filepath.ToSlash(filepath.Clean(filepath.FromSlash(path)))
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", errors.New(errors.InvalidArgument,
			"path escapes the repository root", nil).
			WithDetails(map[string]interface{}{"path": path})
	}
	return rel, nil
}
