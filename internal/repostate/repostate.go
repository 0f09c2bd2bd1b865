// Package repostate computes repository state identity for cache invalidation.
package repostate

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"

	"gitgraph/internal/errors"
)

// RepoState represents the current state of the repository
type RepoState struct {
	// StateID is a composite hash of the head commit and the working tree
	StateID    string `json:"stateId"`
	HeadCommit string `json:"headCommit"`
	TreeHash   string `json:"treeHash"`
	Dirty      bool   `json:"dirty"`
	ComputedAt string `json:"computedAt"`
}

// Compute computes the current repository state.
// The StateID changes whenever the head commit moves or the working tree
// content for any tracked or untracked path changes.
func Compute(repoRoot string) (*RepoState, error) {
	repo, err := git.PlainOpen(repoRoot)
	if err != nil {
		return nil, errors.New(
			errors.RepositoryUnavailable,
			"not a git repository",
			err,
		).WithDetails(map[string]interface{}{"root": repoRoot})
	}

	head, err := repo.Head()
	if err != nil {
		return nil, errors.New(
			errors.RepositoryUnavailable,
			"repository has no HEAD commit",
			err,
		).WithDetails(map[string]interface{}{"root": repoRoot})
	}
	headCommit := head.Hash().String()

	wt, err := repo.Worktree()
	if err != nil {
		return nil, errors.New(errors.InternalError, "cannot open worktree", err)
	}

	status, err := wt.Status()
	if err != nil {
		return nil, errors.New(errors.InternalError, "cannot read worktree status", err)
	}

	treeHash, dirty := hashStatus(status)

	return &RepoState{
		StateID:    hashString(headCommit + ":" + treeHash),
		HeadCommit: headCommit,
		TreeHash:   treeHash,
		Dirty:      dirty,
		ComputedAt: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// hashStatus folds the worktree status into a stable hash.
func hashStatus(status git.Status) (string, bool) {
	if status.IsClean() {
		return "clean", false
	}

	lines := make([]string, 0, len(status))
	for path, st := range status {
		if st.Staging == git.Unmodified && st.Worktree == git.Unmodified {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s:%c%c", path, st.Staging, st.Worktree))
	}
	if len(lines) == 0 {
		return "clean", false
	}
	sort.Strings(lines)

	return hashString(strings.Join(lines, "\n")), true
}

// IsGitRepository checks if the given path is a git repository
func IsGitRepository(repoRoot string) bool {
	_, err := git.PlainOpen(repoRoot)
	return err == nil
}

// hashString computes the SHA256 hash of a string
func hashString(s string) string {
	h := sha256.New()
	h.Write([]byte(s))
	return fmt.Sprintf("%x", h.Sum(nil))
}
