// Package history streams commit change sets from a local git repository.
package history

import (
	"context"
	stderrors "errors"
	"io"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"

	"gitgraph/internal/errors"
	"gitgraph/internal/logging"
)

// ChangeKind classifies how a commit touched a path
type ChangeKind string

const (
	// Added indicates the path first appeared in this commit
	Added ChangeKind = "add"
	// Modified indicates the path's content changed
	Modified ChangeKind = "modify"
	// Deleted indicates the path was removed
	Deleted ChangeKind = "delete"
	// Renamed indicates the path moved; FromPath holds the old name
	Renamed ChangeKind = "rename"
)

// FileChange is one (path, change-kind) pair inside a commit
type FileChange struct {
	Path     string     `json:"path"`
	FromPath string     `json:"fromPath,omitempty"` // set for renames
	Kind     ChangeKind `json:"kind"`
}

// CommitRecord is an immutable snapshot of one commit's change set
type CommitRecord struct {
	Hash    string       `json:"hash"`
	Parents []string     `json:"parents"`
	When    time.Time    `json:"when"`
	Changes []FileChange `json:"changes"`
}

// ScanOptions controls a history scan
type ScanOptions struct {
	// MaxCommits caps the number of commits visited (0 = unlimited)
	MaxCommits int
	// Since drops commits older than this instant (zero = unlimited)
	Since time.Time
	// SkipCorrupt records and skips unreadable commits instead of failing
	SkipCorrupt bool
	// Ignore filters paths out of change sets (nil = keep everything)
	Ignore func(path string) bool
}

// ScanStats summarizes a completed scan
type ScanStats struct {
	Commits int `json:"commits"`
	Skipped int `json:"skipped"`
}

// ErrStop terminates a scan early without error from a ScanFunc.
var ErrStop = stderrors.New("history: stop scan")

// ScanFunc receives commit records newest-first. Returning ErrStop ends the
// scan cleanly; any other error aborts it.
type ScanFunc func(CommitRecord) error

// Reader streams commits from a repository in reverse-chronological order.
// It never mutates the repository.
type Reader struct {
	repo   *git.Repository
	root   string
	logger *logging.Logger
}

// NewReader opens the repository at root.
func NewReader(root string, logger *logging.Logger) (*Reader, error) {
	repo, err := git.PlainOpen(root)
	if err != nil {
		return nil, errors.New(
			errors.RepositoryUnavailable,
			"not a git repository",
			err,
		).WithDetails(map[string]interface{}{"root": root})
	}

	return &Reader{repo: repo, root: root, logger: logger}, nil
}

// Root returns the repository root this reader was opened on.
func (r *Reader) Root() string {
	return r.root
}

// HeadHash returns the current head commit hash, or "" for an empty repository.
func (r *Reader) HeadHash() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		if stderrors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", nil
		}
		return "", errors.New(errors.RepositoryUnavailable, "cannot resolve HEAD", err)
	}
	return head.Hash().String(), nil
}

// Scan walks the commit log newest-first, yielding one CommitRecord per
// commit. Merge commits are attributed by comparing against every parent,
// with paths deduplicated so a path touched identically against two parents
// counts once.
func (r *Reader) Scan(ctx context.Context, opts ScanOptions, fn ScanFunc) (*ScanStats, error) {
	head, err := r.repo.Head()
	if err != nil {
		if stderrors.Is(err, plumbing.ErrReferenceNotFound) {
			// Empty repository: nothing to scan
			return &ScanStats{}, nil
		}
		return nil, errors.New(errors.RepositoryUnavailable, "cannot resolve HEAD", err)
	}

	iter, err := r.repo.Log(&git.LogOptions{
		From:  head.Hash(),
		Order: git.LogOrderCommitterTime,
	})
	if err != nil {
		return nil, errors.New(errors.CorruptObject, "cannot walk commit log", err)
	}
	defer iter.Close()

	stats := &ScanStats{}

	for {
		if err := ctx.Err(); err != nil {
			return nil, errors.New(errors.ScanCancelled, "history scan cancelled", err)
		}

		commit, err := iter.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if opts.SkipCorrupt {
				stats.Skipped++
				r.logger.Warn("Skipping unreadable commit", map[string]interface{}{
					"error": err.Error(),
				})
				continue
			}
			return nil, errors.New(errors.CorruptObject, "cannot read commit", err)
		}

		if !opts.Since.IsZero() && commit.Committer.When.Before(opts.Since) {
			// Log order is newest-first; everything beyond here is older.
			break
		}

		record, err := r.changeSet(ctx, commit, opts.Ignore)
		if err != nil {
			if errors.HasCode(err, errors.ScanCancelled) {
				return nil, err
			}
			if opts.SkipCorrupt {
				stats.Skipped++
				r.logger.Warn("Skipping commit with unreadable objects", map[string]interface{}{
					"commit": commit.Hash.String(),
					"error":  err.Error(),
				})
				continue
			}
			return nil, err
		}

		stats.Commits++
		if err := fn(*record); err != nil {
			if err == ErrStop {
				return stats, nil
			}
			return nil, err
		}

		if opts.MaxCommits > 0 && stats.Commits >= opts.MaxCommits {
			break
		}
	}

	return stats, nil
}

// changeSet computes the deduplicated change set for one commit.
func (r *Reader) changeSet(ctx context.Context, commit *object.Commit, ignore func(string) bool) (*CommitRecord, error) {
	tree, err := commit.Tree()
	if err != nil {
		return nil, errors.New(errors.CorruptObject, "cannot read commit tree", err).
			WithDetails(map[string]interface{}{"commit": commit.Hash.String()})
	}

	record := &CommitRecord{
		Hash: commit.Hash.String(),
		When: commit.Committer.When,
	}
	for _, p := range commit.ParentHashes {
		record.Parents = append(record.Parents, p.String())
	}

	if commit.NumParents() == 0 {
		// Root commit: every tree entry is an addition.
		err := tree.Files().ForEach(func(f *object.File) error {
			if ignore != nil && ignore(f.Name) {
				return nil
			}
			record.Changes = append(record.Changes, FileChange{Path: f.Name, Kind: Added})
			return nil
		})
		if err != nil {
			return nil, errors.New(errors.CorruptObject, "cannot walk root commit tree", err)
		}
		return record, nil
	}

	// Union across parents with path-keyed dedup.
	seen := make(map[string]FileChange)

	err = commit.Parents().ForEach(func(parent *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return errors.New(errors.ScanCancelled, "history scan cancelled", err)
		}

		parentTree, err := parent.Tree()
		if err != nil {
			return errors.New(errors.CorruptObject, "cannot read parent tree", err).
				WithDetails(map[string]interface{}{"commit": parent.Hash.String()})
		}

		changes, err := object.DiffTreeWithOptions(ctx, parentTree, tree, object.DefaultDiffTreeOptions)
		if err != nil {
			return errors.New(errors.CorruptObject, "cannot diff trees", err).
				WithDetails(map[string]interface{}{"commit": commit.Hash.String()})
		}

		for _, change := range changes {
			fc, ok := classify(change)
			if !ok {
				continue
			}
			if ignore != nil && ignore(fc.Path) {
				continue
			}
			if _, dup := seen[fc.Path]; !dup {
				seen[fc.Path] = fc
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	record.Changes = make([]FileChange, 0, len(seen))
	for _, fc := range seen {
		record.Changes = append(record.Changes, fc)
	}
	sortChanges(record.Changes)

	return record, nil
}

// classify maps a go-git tree change to a FileChange.
func classify(change *object.Change) (FileChange, bool) {
	action, err := change.Action()
	if err != nil {
		return FileChange{}, false
	}

	switch action {
	case merkletrie.Insert:
		return FileChange{Path: change.To.Name, Kind: Added}, true
	case merkletrie.Delete:
		return FileChange{Path: change.From.Name, Kind: Deleted}, true
	case merkletrie.Modify:
		if change.From.Name != change.To.Name {
			return FileChange{Path: change.To.Name, FromPath: change.From.Name, Kind: Renamed}, true
		}
		return FileChange{Path: change.To.Name, Kind: Modified}, true
	}
	return FileChange{}, false
}

func sortChanges(changes []FileChange) {
	// Insertion sort keeps the hot path allocation-free; change sets are small.
	for i := 1; i < len(changes); i++ {
		for j := i; j > 0 && changes[j].Path < changes[j-1].Path; j-- {
			changes[j], changes[j-1] = changes[j-1], changes[j]
		}
	}
}
