package storage

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"gitgraph/internal/featurize"
)

// Meta keys recorded per build.
const (
	MetaHeadCommit = "head_commit"
	MetaStateID    = "state_id"
	MetaBuildID    = "build_id"
	MetaNumHashes  = "num_hashes"
)

// zstd is concurrency-safe in EncodeAll/DecodeAll mode, so one pair of
// package-level codecs serves every store.
var (
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

// Store persists processed history and content sketches so a graph rebuild
// only touches commits and files that changed since the last run.
type Store struct {
	db *DB
}

// NewStore wraps an open database.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// WithTx exposes the underlying transaction helper.
func (s *Store) WithTx(fn func(*sql.Tx) error) error {
	return s.db.WithTx(fn)
}

// InternPath returns the stable integer id for path, inserting it on first
// sight.
func (s *Store) InternPath(tx *sql.Tx, path string) (int64, error) {
	var id int64
	err := tx.QueryRow("SELECT id FROM paths WHERE path = ?", path).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to look up path: %w", err)
	}

	res, err := tx.Exec("INSERT INTO paths (path) VALUES (?)", path)
	if err != nil {
		return 0, fmt.Errorf("failed to intern path: %w", err)
	}
	return res.LastInsertId()
}

// SaveCommit records a processed commit and its contributing change set.
// Saving the same sha again is a no-op.
func (s *Store) SaveCommit(tx *sql.Tx, sha string, when time.Time, pathIDs []int64) error {
	blob := encodePathIDs(pathIDs)
	_, err := tx.Exec(`
		INSERT OR IGNORE INTO commits (sha, committed_at, changed_paths)
		VALUES (?, ?, ?)
	`, sha, when.Unix(), blob)
	if err != nil {
		return fmt.Errorf("failed to save commit %s: %w", sha, err)
	}
	return nil
}

// HasCommit reports whether sha was already processed.
func (s *Store) HasCommit(sha string) (bool, error) {
	var one int
	err := s.db.QueryRow("SELECT 1 FROM commits WHERE sha = ?", sha).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// StoredCommit is one persisted commit with its change set resolved back to
// paths.
type StoredCommit struct {
	Sha   string
	When  time.Time
	Paths []string
}

// LoadCommits streams every stored commit, newest first. The callback may
// return an error to abort the scan.
func (s *Store) LoadCommits(fn func(StoredCommit) error) error {
	paths, err := s.pathsByID()
	if err != nil {
		return err
	}

	rows, err := s.db.Query(`
		SELECT sha, committed_at, changed_paths
		FROM commits
		ORDER BY committed_at DESC, sha
	`)
	if err != nil {
		return fmt.Errorf("failed to load commits: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			sha  string
			ts   int64
			blob []byte
		)
		if err := rows.Scan(&sha, &ts, &blob); err != nil {
			return err
		}

		ids, err := decodePathIDs(blob)
		if err != nil {
			return fmt.Errorf("corrupt change set for commit %s: %w", sha, err)
		}

		rec := StoredCommit{Sha: sha, When: time.Unix(ts, 0).UTC()}
		rec.Paths = make([]string, 0, len(ids))
		for _, id := range ids {
			if p, ok := paths[id]; ok {
				rec.Paths = append(rec.Paths, p)
			}
		}

		if err := fn(rec); err != nil {
			return err
		}
	}
	return rows.Err()
}

// CommitCount returns how many commits are stored.
func (s *Store) CommitCount() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM commits").Scan(&n)
	return n, err
}

// SaveSketch upserts the sketch for path. Unsketchable sketches persist as a
// NULL blob so the file is remembered without a signature.
func (s *Store) SaveSketch(tx *sql.Tx, path, contentHash string, sketch featurize.Sketch) error {
	id, err := s.InternPath(tx, path)
	if err != nil {
		return err
	}

	var blob []byte
	if !sketch.Unsketchable {
		blob = zstdEncoder.EncodeAll(sketch.Marshal(), nil)
	}

	_, err = tx.Exec(`
		INSERT INTO sketches (path_id, content_hash, sketch)
		VALUES (?, ?, ?)
		ON CONFLICT(path_id) DO UPDATE SET
			content_hash = excluded.content_hash,
			sketch = excluded.sketch
	`, id, contentHash, blob)
	if err != nil {
		return fmt.Errorf("failed to save sketch for %s: %w", path, err)
	}
	return nil
}

// StoredSketch is one persisted content sketch.
type StoredSketch struct {
	Path        string
	ContentHash string
	Sketch      featurize.Sketch
}

// LoadSketch returns the stored sketch for path, if any.
func (s *Store) LoadSketch(path string) (StoredSketch, bool, error) {
	var (
		hash string
		blob []byte
	)
	err := s.db.QueryRow(`
		SELECT s.content_hash, s.sketch
		FROM sketches s JOIN paths p ON p.id = s.path_id
		WHERE p.path = ?
	`, path).Scan(&hash, &blob)
	if err == sql.ErrNoRows {
		return StoredSketch{}, false, nil
	}
	if err != nil {
		return StoredSketch{}, false, err
	}

	sketch, err := decodeSketch(blob)
	if err != nil {
		return StoredSketch{}, false, fmt.Errorf("corrupt sketch for %s: %w", path, err)
	}
	return StoredSketch{Path: path, ContentHash: hash, Sketch: sketch}, true, nil
}

// LoadSketches streams every stored sketch.
func (s *Store) LoadSketches(fn func(StoredSketch) error) error {
	rows, err := s.db.Query(`
		SELECT p.path, s.content_hash, s.sketch
		FROM sketches s JOIN paths p ON p.id = s.path_id
		ORDER BY p.path
	`)
	if err != nil {
		return fmt.Errorf("failed to load sketches: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec StoredSketch
		var blob []byte
		if err := rows.Scan(&rec.Path, &rec.ContentHash, &blob); err != nil {
			return err
		}
		rec.Sketch, err = decodeSketch(blob)
		if err != nil {
			return fmt.Errorf("corrupt sketch for %s: %w", rec.Path, err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return rows.Err()
}

// DeleteSketch removes the sketch for path, if present.
func (s *Store) DeleteSketch(tx *sql.Tx, path string) error {
	_, err := tx.Exec(`
		DELETE FROM sketches
		WHERE path_id IN (SELECT id FROM paths WHERE path = ?)
	`, path)
	return err
}

// GetMeta returns the stored value for key, reporting whether it exists.
func (s *Store) GetMeta(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SetMeta upserts one metadata key.
func (s *Store) SetMeta(tx *sql.Tx, key, value string) error {
	_, err := tx.Exec(`
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// MarkBuild records the completed build's identity: head commit, repository
// state id, and a fresh build id.
func (s *Store) MarkBuild(tx *sql.Tx, headCommit, stateID string) error {
	if err := s.SetMeta(tx, MetaHeadCommit, headCommit); err != nil {
		return err
	}
	if err := s.SetMeta(tx, MetaStateID, stateID); err != nil {
		return err
	}
	return s.SetMeta(tx, MetaBuildID, uuid.NewString())
}

// Reset drops all cached data, keeping the schema. Used when sketch
// parameters change and persisted signatures are no longer comparable.
func (s *Store) Reset() error {
	return s.db.WithTx(func(tx *sql.Tx) error {
		for _, table := range []string{"sketches", "commits", "paths", "meta"} {
			if _, err := tx.Exec("DELETE FROM " + table); err != nil {
				return fmt.Errorf("failed to reset %s: %w", table, err)
			}
		}
		return nil
	})
}

func (s *Store) pathsByID() (map[int64]string, error) {
	rows, err := s.db.Query("SELECT id, path FROM paths")
	if err != nil {
		return nil, fmt.Errorf("failed to load paths: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]string)
	for rows.Next() {
		var id int64
		var p string
		if err := rows.Scan(&id, &p); err != nil {
			return nil, err
		}
		out[id] = p
	}
	return out, rows.Err()
}

func decodeSketch(blob []byte) (featurize.Sketch, error) {
	if len(blob) == 0 {
		return featurize.Sketch{Unsketchable: true}, nil
	}
	raw, err := zstdDecoder.DecodeAll(blob, nil)
	if err != nil {
		return featurize.Sketch{}, err
	}
	return featurize.UnmarshalSketch(raw), nil
}

// encodePathIDs packs ids as consecutive uvarints.
func encodePathIDs(ids []int64) []byte {
	buf := make([]byte, 0, len(ids)*2)
	var tmp [binary.MaxVarintLen64]byte
	for _, id := range ids {
		n := binary.PutUvarint(tmp[:], uint64(id))
		buf = append(buf, tmp[:n]...)
	}
	return buf
}

func decodePathIDs(blob []byte) ([]int64, error) {
	ids := make([]int64, 0, len(blob)/2)
	for len(blob) > 0 {
		v, n := binary.Uvarint(blob)
		if n <= 0 {
			return nil, fmt.Errorf("invalid varint at offset %d", len(blob))
		}
		ids = append(ids, int64(v))
		blob = blob[n:]
	}
	return ids, nil
}
