// Package simindex ranks files by a composite similarity score combining
// co-change history and content sketch overlap.
package simindex

import (
	"sort"

	"gitgraph/internal/cochange"
	"gitgraph/internal/featurize"
)

// Options controls scoring and candidate selection.
type Options struct {
	// CoChangeWeight scales the normalized co-change component
	CoChangeWeight float64
	// ContentWeight scales the estimated Jaccard component
	ContentWeight float64
	// Bands is the number of LSH bands over sketch signatures
	Bands int
	// MaxCandidates bounds how many files are scored per query (0 = no bound)
	MaxCandidates int
}

// Result is one ranked similar file.
type Result struct {
	Path  string  `json:"path"`
	Score float64 `json:"score"`
}

// Index answers top-K similarity queries over a co-change graph and a set of
// content sketches. Build it fully before querying; it does not lock.
type Index struct {
	opts     Options
	graph    *cochange.Graph
	sketches map[string]featurize.Sketch
	buckets  map[uint64][]string
}

// New creates an empty index over graph. Sketches are attached with AddSketch.
func New(opts Options, graph *cochange.Graph) *Index {
	if opts.Bands < 1 {
		opts.Bands = 16
	}
	if opts.CoChangeWeight < 0 {
		opts.CoChangeWeight = 0
	}
	if opts.ContentWeight < 0 {
		opts.ContentWeight = 0
	}
	return &Index{
		opts:     opts,
		graph:    graph,
		sketches: make(map[string]featurize.Sketch),
		buckets:  make(map[uint64][]string),
	}
}

// AddSketch registers the content sketch for path and files it into LSH
// buckets. Unsketchable sketches are recorded but bucket nowhere, so such
// files surface only through co-change edges.
func (ix *Index) AddSketch(path string, s featurize.Sketch) {
	ix.sketches[path] = s
	for band := 0; band < ix.opts.Bands; band++ {
		if key, ok := s.BandKey(band, ix.opts.Bands); ok {
			ix.buckets[key] = append(ix.buckets[key], path)
		}
	}
}

// Paths returns every path known to the index, from either source.
func (ix *Index) Paths() []string {
	seen := make(map[string]struct{})
	for _, p := range ix.graph.Paths() {
		seen[p] = struct{}{}
	}
	for p := range ix.sketches {
		seen[p] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// TopK returns up to k files most similar to path, highest score first.
// Equal scores order by ascending path. path itself is never included.
// The result is the prefix property holder: TopK(p, j) for j < k is always
// a prefix of TopK(p, k).
func (ix *Index) TopK(path string, k int) []Result {
	if k <= 0 {
		return []Result{}
	}

	candidates := ix.candidates(path)
	if len(candidates) == 0 {
		return []Result{}
	}

	maxWeight := ix.graph.MaxWeight()
	querySketch := ix.sketches[path]

	results := make([]Result, 0, len(candidates))
	for _, cand := range candidates {
		score := ix.score(path, cand, querySketch, maxWeight)
		if score <= 0 {
			continue
		}
		results = append(results, Result{Path: cand, Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Path < results[j].Path
	})

	if len(results) > k {
		results = results[:k]
	}
	return results
}

// score computes the composite similarity of candidate to path. Both
// components are in [0, 1] before weighting.
func (ix *Index) score(path, candidate string, querySketch featurize.Sketch, maxWeight float64) float64 {
	var co float64
	if maxWeight > 0 {
		co = ix.graph.Weight(path, candidate) / maxWeight
	}
	content := featurize.Similarity(querySketch, ix.sketches[candidate])
	return ix.opts.CoChangeWeight*co + ix.opts.ContentWeight*content
}

// candidates gathers files worth scoring against path: every co-change
// neighbor plus every file sharing an LSH bucket, excluding path itself.
// When MaxCandidates is set, co-change neighbors win by descending weight
// and bucket mates fill the remainder in path order, keeping the cut
// deterministic.
func (ix *Index) candidates(path string) []string {
	neighbors := ix.graph.Neighbors(path)
	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Weight != neighbors[j].Weight {
			return neighbors[i].Weight > neighbors[j].Weight
		}
		return neighbors[i].Path < neighbors[j].Path
	})

	seen := map[string]struct{}{path: {}}
	ordered := make([]string, 0, len(neighbors))
	for _, n := range neighbors {
		if _, dup := seen[n.Path]; dup {
			continue
		}
		seen[n.Path] = struct{}{}
		ordered = append(ordered, n.Path)
	}

	var mates []string
	if s, ok := ix.sketches[path]; ok {
		for band := 0; band < ix.opts.Bands; band++ {
			key, valid := s.BandKey(band, ix.opts.Bands)
			if !valid {
				continue
			}
			for _, other := range ix.buckets[key] {
				if _, dup := seen[other]; dup {
					continue
				}
				seen[other] = struct{}{}
				mates = append(mates, other)
			}
		}
	}
	sort.Strings(mates)
	ordered = append(ordered, mates...)

	if ix.opts.MaxCandidates > 0 && len(ordered) > ix.opts.MaxCandidates {
		ordered = ordered[:ix.opts.MaxCandidates]
	}
	return ordered
}
