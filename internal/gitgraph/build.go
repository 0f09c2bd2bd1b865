package gitgraph

import (
	"context"
	"database/sql"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"

	"gitgraph/internal/cochange"
	"gitgraph/internal/config"
	"gitgraph/internal/errors"
	"gitgraph/internal/featurize"
	"gitgraph/internal/history"
	"gitgraph/internal/repostate"
	"gitgraph/internal/simindex"
	"gitgraph/internal/storage"
)

// rebuildLocked rebuilds graph and index from the repository's current
// state. The caller holds the write lock. base carries forward an existing
// co-change graph so already-folded commits are skipped; pass nil for a
// build from scratch (persisted commits are still reused). All folding
// happens on scratch state: base is never mutated, and the new graph and
// index are published together only if every stage succeeds, so a failed
// or cancelled rebuild leaves the published state untouched.
func (g *LocalGitGraph) rebuildLocked(ctx context.Context, base *cochange.Graph) error {
	start := time.Now()

	var graph *cochange.Graph
	if base != nil {
		graph = base.Clone()
	} else {
		graph = cochange.NewGraph(cochange.Options{
			HalfLifeDays:   g.cfg.History.HalfLifeDays,
			MaxCommitFiles: g.cfg.History.MaxCommitFiles,
		})
		g.loadPersistedCommits(graph)
	}

	newCommits, err := g.scanHistory(ctx, graph)
	if err != nil {
		return err
	}

	files, err := g.listFiles()
	if err != nil {
		return err
	}

	sketches, err := g.sketchFiles(ctx, files)
	if err != nil {
		return err
	}

	index := simindex.New(simindex.Options{
		CoChangeWeight: g.cfg.Index.CoChangeWeight,
		ContentWeight:  g.cfg.Index.ContentWeight,
		Bands:          g.cfg.Index.Bands,
		MaxCandidates:  g.cfg.Index.MaxCandidates,
	}, graph)
	for path, sketch := range sketches {
		index.AddSketch(path, sketch)
	}

	g.persistBuild(newCommits)

	g.graph = graph
	g.index = index
	g.generation++
	g.built = true
	g.builds.Add(1)

	g.logger.Info("graph build complete", map[string]interface{}{
		"root":        g.root,
		"generation":  g.generation,
		"commits":     graph.Commits(),
		"new_commits": len(newCommits),
		"files":       len(files),
		"elapsed_ms":  time.Since(start).Milliseconds(),
	})
	return nil
}

// scanHistory folds unseen commits into graph, newest first, and returns
// them for persistence. The walk stops early at the first already-known
// commit: everything older was folded by a previous build.
func (g *LocalGitGraph) scanHistory(ctx context.Context, graph *cochange.Graph) ([]history.CommitRecord, error) {
	opts := history.ScanOptions{
		MaxCommits:  g.cfg.History.MaxCommits,
		SkipCorrupt: g.cfg.History.SkipCorrupt,
		Ignore:      g.cfg.Ignored,
	}
	if g.cfg.History.WindowDays > 0 {
		opts.Since = time.Now().AddDate(0, 0, -g.cfg.History.WindowDays)
	}

	var fresh []history.CommitRecord
	_, err := g.reader.Scan(ctx, opts, func(rec history.CommitRecord) error {
		if graph.HasCommit(rec.Hash) {
			return history.ErrStop
		}
		if graph.Fold(rec) {
			fresh = append(fresh, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fresh, nil
}

// listFiles walks the working tree and returns repository-relative slash
// paths of every regular file that is not ignored.
func (g *LocalGitGraph) listFiles() ([]string, error) {
	var files []string
	err := filepath.WalkDir(g.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" || d.Name() == config.ConfigDir {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(g.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if g.cfg.Ignored(rel) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, errors.New(errors.RepositoryUnavailable,
			"failed to walk working tree", err)
	}
	sort.Strings(files)
	return files, nil
}

// sketchFiles computes content sketches for files with a bounded worker
// pool, reusing persisted sketches whose content hash still matches.
func (g *LocalGitGraph) sketchFiles(ctx context.Context, files []string) (map[string]featurize.Sketch, error) {
	f := featurize.New(featurize.Options{
		ShingleSize:      g.cfg.Featurize.ShingleSize,
		NumHashes:        g.cfg.Featurize.NumHashes,
		MaxFileSizeBytes: g.cfg.Featurize.MaxFileSizeBytes,
	})

	cached := g.loadPersistedSketches()

	workers := g.cfg.Featurize.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	var (
		mu       sync.Mutex
		sketches = make(map[string]featurize.Sketch, len(files))
		dirty    = make(map[string]storage.StoredSketch)
	)

	jobs := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rel := range jobs {
				content, err := os.ReadFile(filepath.Join(g.root, filepath.FromSlash(rel)))
				if err != nil {
					g.logger.Warn("skipping unreadable file", map[string]interface{}{
						"path":  rel,
						"error": err.Error(),
					})
					continue
				}

				hash := featurize.ContentHash(content)
				var sketch featurize.Sketch
				if prev, ok := cached[rel]; ok && prev.ContentHash == hash {
					sketch = prev.Sketch
				} else {
					sketch = f.Sketch(content)
					mu.Lock()
					dirty[rel] = storage.StoredSketch{Path: rel, ContentHash: hash, Sketch: sketch}
					mu.Unlock()
				}

				mu.Lock()
				sketches[rel] = sketch
				mu.Unlock()
			}
		}()
	}

	var cancelled error
feed:
	for _, rel := range files {
		select {
		case <-ctx.Done():
			cancelled = errors.New(errors.ScanCancelled, "sketching cancelled", ctx.Err())
			break feed
		case jobs <- rel:
		}
	}
	close(jobs)
	wg.Wait()

	if cancelled != nil {
		return nil, cancelled
	}

	g.persistSketches(dirty)
	return sketches, nil
}

// loadPersistedCommits refolds every cached commit so unchanged history is
// not re-diffed. Cache problems degrade to a full scan.
func (g *LocalGitGraph) loadPersistedCommits(graph *cochange.Graph) {
	if g.store == nil {
		return
	}
	if !g.cacheUsable() {
		return
	}

	loaded := 0
	err := g.store.LoadCommits(func(rec storage.StoredCommit) error {
		changes := make([]history.FileChange, 0, len(rec.Paths))
		for _, p := range rec.Paths {
			changes = append(changes, history.FileChange{Path: p, Kind: history.Modified})
		}
		if graph.Fold(history.CommitRecord{Hash: rec.Sha, When: rec.When, Changes: changes}) {
			loaded++
		}
		return nil
	})
	if err != nil {
		g.logger.Warn("failed to load cached commits", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if loaded > 0 {
		g.logger.Debug("reused cached commits", map[string]interface{}{
			"commits": loaded,
		})
	}
}

func (g *LocalGitGraph) loadPersistedSketches() map[string]storage.StoredSketch {
	if g.store == nil {
		return nil
	}

	cached := make(map[string]storage.StoredSketch)
	err := g.store.LoadSketches(func(rec storage.StoredSketch) error {
		cached[rec.Path] = rec
		return nil
	})
	if err != nil {
		g.logger.Warn("failed to load cached sketches", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}
	return cached
}

// cacheUsable verifies the persisted cache was produced with the current
// sketch parameters, resetting it otherwise.
func (g *LocalGitGraph) cacheUsable() bool {
	stored, ok, err := g.store.GetMeta(storage.MetaNumHashes)
	if err != nil {
		return false
	}
	if !ok {
		return true // fresh cache
	}
	if stored == strconv.Itoa(g.cfg.Featurize.NumHashes) {
		return true
	}

	g.logger.Info("sketch parameters changed, resetting cache", map[string]interface{}{
		"stored":  stored,
		"current": g.cfg.Featurize.NumHashes,
	})
	if err := g.store.Reset(); err != nil {
		g.logger.Warn("cache reset failed", map[string]interface{}{
			"error": err.Error(),
		})
		return false
	}
	return true
}

// persistBuild writes newly folded commits and build metadata. Persistence
// failures are logged, never fatal: the in-memory build already succeeded.
func (g *LocalGitGraph) persistBuild(fresh []history.CommitRecord) {
	if g.store == nil {
		return
	}

	state, stateErr := repostate.Compute(g.root)

	err := g.store.WithTx(func(tx *sql.Tx) error {
		for _, rec := range fresh {
			ids := make([]int64, 0, len(rec.Changes))
			for _, fc := range rec.Changes {
				if fc.Kind == history.Deleted {
					continue
				}
				id, err := g.store.InternPath(tx, fc.Path)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			if err := g.store.SaveCommit(tx, rec.Hash, rec.When, ids); err != nil {
				return err
			}
		}

		if err := g.store.SetMeta(tx, storage.MetaNumHashes,
			strconv.Itoa(g.cfg.Featurize.NumHashes)); err != nil {
			return err
		}
		if stateErr == nil {
			return g.store.MarkBuild(tx, state.HeadCommit, state.StateID)
		}
		return nil
	})
	if err != nil {
		g.logger.Warn("failed to persist build", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (g *LocalGitGraph) persistSketches(dirty map[string]storage.StoredSketch) {
	if g.store == nil || len(dirty) == 0 {
		return
	}

	err := g.store.WithTx(func(tx *sql.Tx) error {
		for _, rec := range dirty {
			if err := g.store.SaveSketch(tx, rec.Path, rec.ContentHash, rec.Sketch); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		g.logger.Warn("failed to persist sketches", map[string]interface{}{
			"count": len(dirty),
			"error": err.Error(),
		})
	}
}
