package gitgraph

import (
	"context"
	"sync"

	"gitgraph/internal/errors"
)

// SimilarFile is one ranked result of a similarity query.
type SimilarFile struct {
	Path  string  `json:"path"`
	Score float64 `json:"score"`
}

// FileHandle is a live reference to one file in an open graph. Handles are
// cheap; results are memoized per requested k and stay valid until the
// graph's generation advances.
type FileHandle struct {
	path  string
	owner *LocalGitGraph

	mu       sync.Mutex
	cacheGen uint64
	cache    map[int][]SimilarFile
}

// Path returns the handle's repository-relative path.
func (h *FileHandle) Path() string {
	return h.path
}

// FindSimilarFiles returns up to k files most similar to this one, highest
// score first, with equal scores ordered by ascending path. The file itself
// is never included. k must be positive or an InvalidArgument error is
// returned. The first call triggers the graph build; repeated calls with
// the same k return the memoized result until a rescan. The returned slice
// is the caller's to keep.
func (h *FileHandle) FindSimilarFiles(ctx context.Context, k int) ([]SimilarFile, error) {
	if k <= 0 {
		return nil, errors.New(errors.InvalidArgument,
			"k must be positive", nil).
			WithDetails(map[string]interface{}{"k": k})
	}

	if err := h.owner.ensureBuilt(ctx); err != nil {
		return nil, err
	}
	gen := h.owner.Generation()

	h.mu.Lock()
	if h.cacheGen != gen {
		h.cache = nil
		h.cacheGen = gen
	}
	if cached, ok := h.cache[k]; ok {
		h.mu.Unlock()
		return copyResults(cached), nil
	}
	h.mu.Unlock()

	ranked := h.owner.topK(h.path, k)
	results := make([]SimilarFile, len(ranked))
	for i, r := range ranked {
		results[i] = SimilarFile{Path: r.Path, Score: r.Score}
	}

	h.mu.Lock()
	// A rescan may have finished while we computed; only memoize results
	// that belong to the generation we read them under.
	if h.cacheGen == gen {
		if h.cache == nil {
			h.cache = make(map[int][]SimilarFile)
		}
		h.cache[k] = results
	}
	h.mu.Unlock()

	return copyResults(results), nil
}

// copyResults keeps the memoized slice private: callers are free to mutate
// what they get back without corrupting later calls for the same k.
func copyResults(in []SimilarFile) []SimilarFile {
	out := make([]SimilarFile, len(in))
	copy(out, in)
	return out
}
