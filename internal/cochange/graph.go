// Package cochange folds commit change sets into an undirected weighted
// graph of files that historically change together.
package cochange

import (
	"math"
	"time"

	"gitgraph/internal/history"
)

// Options controls edge weighting
type Options struct {
	// HalfLifeDays is the decay half-life: a co-change this many days old
	// contributes half the weight of one made now.
	HalfLifeDays float64
	// MaxCommitFiles skips commits whose change set exceeds this size,
	// suppressing bulk sweeps that would link unrelated files (0 = no cap).
	MaxCommitFiles int
	// Now anchors decay computation. Zero means the time of construction.
	Now time.Time
}

// Neighbor is one co-change edge endpoint as seen from a queried path
type Neighbor struct {
	Path   string  `json:"path"`
	Weight float64 `json:"weight"`
}

// Graph is a sparse undirected co-change graph over repository paths.
// Zero-weight edges are never materialized. The graph is deterministic
// given the same commit records: folding is idempotent per commit hash.
//
// Graph is not safe for concurrent mutation; callers serialize Fold against
// reads.
type Graph struct {
	opts      Options
	now       time.Time
	edges     map[string]map[string]float64
	seen      map[string]struct{}
	maxWeight float64
	commits   int
}

// NewGraph creates an empty co-change graph.
func NewGraph(opts Options) *Graph {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	if opts.HalfLifeDays <= 0 {
		opts.HalfLifeDays = 180
	}

	return &Graph{
		opts:  opts,
		now:   now,
		edges: make(map[string]map[string]float64),
		seen:  make(map[string]struct{}),
	}
}

// Clone returns an independent copy of the graph. Folding further commits
// into the copy never mutates the original, so a rebuild can accumulate
// scratch state and publish it only once every stage has succeeded.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		opts:      g.opts,
		now:       g.now,
		edges:     make(map[string]map[string]float64, len(g.edges)),
		seen:      make(map[string]struct{}, len(g.seen)),
		maxWeight: g.maxWeight,
		commits:   g.commits,
	}
	for a, row := range g.edges {
		dst := make(map[string]float64, len(row))
		for b, w := range row {
			dst[b] = w
		}
		c.edges[a] = dst
	}
	for hash := range g.seen {
		c.seen[hash] = struct{}{}
	}
	return c
}

// Fold accumulates one commit into the graph. It reports whether the commit
// contributed weight; a commit already folded, a bulk commit over the file
// cap, or a commit with fewer than two contributing paths contributes none.
// Pure deletes never contribute: a deleted file has no future signal.
func (g *Graph) Fold(rec history.CommitRecord) bool {
	if _, dup := g.seen[rec.Hash]; dup {
		return false
	}
	g.seen[rec.Hash] = struct{}{}

	paths := contributingPaths(rec.Changes)
	if len(paths) == 0 {
		return false
	}

	g.commits++

	if len(paths) < 2 {
		return false
	}
	if g.opts.MaxCommitFiles > 0 && len(paths) > g.opts.MaxCommitFiles {
		return false
	}

	// Each pair in a commit touching N files gets decay(age)/(N-1), so a
	// focused two-file commit carries full decayed weight and a sweep is
	// dampened proportionally.
	w := g.decay(rec.When) / float64(len(paths)-1)

	for i := 0; i < len(paths); i++ {
		for j := i + 1; j < len(paths); j++ {
			g.addEdge(paths[i], paths[j], w)
		}
	}
	return true
}

// Neighbors returns every edge incident to path with its accumulated weight.
// Order is unspecified at this layer.
func (g *Graph) Neighbors(path string) []Neighbor {
	adj := g.edges[path]
	if len(adj) == 0 {
		return nil
	}

	neighbors := make([]Neighbor, 0, len(adj))
	for other, w := range adj {
		neighbors = append(neighbors, Neighbor{Path: other, Weight: w})
	}
	return neighbors
}

// Weight returns the accumulated edge weight between two paths (0 if none).
func (g *Graph) Weight(a, b string) float64 {
	return g.edges[a][b]
}

// MaxWeight returns the largest edge weight in the graph, used to normalize
// co-change scores into [0,1].
func (g *Graph) MaxWeight() float64 {
	return g.maxWeight
}

// Commits returns how many distinct commits contributed to the graph.
func (g *Graph) Commits() int {
	return g.commits
}

// Nodes returns how many paths have at least one edge.
func (g *Graph) Nodes() int {
	return len(g.edges)
}

// Paths returns every path with at least one edge, in unspecified order.
func (g *Graph) Paths() []string {
	paths := make([]string, 0, len(g.edges))
	for p := range g.edges {
		paths = append(paths, p)
	}
	return paths
}

// HasCommit reports whether a commit hash was already folded.
func (g *Graph) HasCommit(hash string) bool {
	_, ok := g.seen[hash]
	return ok
}

func (g *Graph) addEdge(a, b string, w float64) {
	if w <= 0 || a == b {
		return
	}
	if g.edges[a] == nil {
		g.edges[a] = make(map[string]float64)
	}
	if g.edges[b] == nil {
		g.edges[b] = make(map[string]float64)
	}
	g.edges[a][b] += w
	g.edges[b][a] += w
	if g.edges[a][b] > g.maxWeight {
		g.maxWeight = g.edges[a][b]
	}
}

// decay is monotonically non-increasing in commit age.
func (g *Graph) decay(when time.Time) float64 {
	ageDays := g.now.Sub(when).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	return math.Pow(0.5, ageDays/g.opts.HalfLifeDays)
}

// contributingPaths extracts the paths that carry future similarity signal.
func contributingPaths(changes []history.FileChange) []string {
	paths := make([]string, 0, len(changes))
	for _, fc := range changes {
		if fc.Kind == history.Deleted {
			continue
		}
		paths = append(paths, fc.Path)
	}
	return paths
}
