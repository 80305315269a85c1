// Package ledger persists a content-addressed snapshot of project
// files and diffs it against the current tree to drive incremental
// indexing.
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"

	"github.com/semantica-dev/semantica/internal/errors"
)

// FileName is the snapshot file under the project data directory.
const FileName = "change-ledger.json"

// entry is one file in the snapshot. isDirectory is always false
// today; the field is kept in the format so a future tree-shaped
// snapshot stays readable.
type entry struct {
	Hash        string `json:"hash"`
	IsDirectory bool   `json:"isDirectory"`
}

type rootEntry struct {
	Hash     string           `json:"hash"`
	Children map[string]entry `json:"children"`
}

// snapshot is the on-disk format.
type snapshot struct {
	Root      rootEntry `json:"root"`
	Timestamp time.Time `json:"timestamp"`
	FileCount int       `json:"fileCount"`
	TotalHash string    `json:"totalHash"`
}

// Changes is the result of diffing the current tree against the
// stored snapshot.
type Changes struct {
	Added    []string `json:"added"`
	Modified []string `json:"modified"`
	Deleted  []string `json:"deleted"`
}

// Empty reports whether no files changed.
func (c Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Modified) == 0 && len(c.Deleted) == 0
}

// Total returns the number of changed paths.
func (c Changes) Total() int {
	return len(c.Added) + len(c.Modified) + len(c.Deleted)
}

// Ledger reads and writes the snapshot for one project. Pipeline runs
// are already mutually exclusive per project; the file lock guards
// against a second process writing the same snapshot file.
type Ledger struct {
	path string
	lock *flock.Flock
}

// New creates a ledger stored in dataDir (the project's .semantica
// directory).
func New(dataDir string) *Ledger {
	path := filepath.Join(dataDir, FileName)
	return &Ledger{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the snapshot file location.
func (l *Ledger) Path() string {
	return l.path
}

// Exists reports whether a snapshot has been committed before.
func (l *Ledger) Exists() bool {
	_, err := os.Stat(l.path)
	return err == nil
}

// Diff compares currentPaths against the stored snapshot. Paths absent
// from the snapshot are added; paths present in both are rehashed and
// reported modified when the hash differs; snapshot paths missing from
// the input are deleted. With no snapshot on disk every current path
// is added.
func (l *Ledger) Diff(currentPaths []string) (Changes, error) {
	stored, err := l.load()
	if err != nil {
		return Changes{}, err
	}

	var changes Changes
	if stored == nil {
		changes.Added = append(changes.Added, currentPaths...)
		sort.Strings(changes.Added)
		return changes, nil
	}

	current := make(map[string]bool, len(currentPaths))
	for _, p := range currentPaths {
		current[p] = true

		prev, ok := stored.Root.Children[p]
		if !ok {
			changes.Added = append(changes.Added, p)
			continue
		}
		hash, err := HashFile(p)
		if err != nil {
			// Unreadable files are treated as modified so the pipeline
			// surfaces the error where it can be reported per file.
			changes.Modified = append(changes.Modified, p)
			continue
		}
		if hash != prev.Hash {
			changes.Modified = append(changes.Modified, p)
		}
	}

	for p := range stored.Root.Children {
		if !current[p] {
			changes.Deleted = append(changes.Deleted, p)
		}
	}

	sort.Strings(changes.Added)
	sort.Strings(changes.Modified)
	sort.Strings(changes.Deleted)
	return changes, nil
}

// Commit replaces the stored snapshot with the hashes of currentPaths.
// The write is atomic: a temp file in the same directory is renamed
// over the snapshot.
func (l *Ledger) Commit(currentPaths []string) error {
	children := make(map[string]entry, len(currentPaths))
	for _, p := range currentPaths {
		hash, err := HashFile(p)
		if err != nil {
			return errors.Wrap(errors.KindFile, fmt.Sprintf("hash %s", p), err)
		}
		children[p] = entry{Hash: hash}
	}

	total := totalHash(children)
	snap := snapshot{
		Root:      rootEntry{Hash: total, Children: children},
		Timestamp: time.Now().UTC(),
		FileCount: len(children),
		TotalHash: total,
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return errors.Wrap(errors.KindInternal, "encode snapshot", err)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return errors.Wrap(errors.KindFile, "create data directory", err)
	}

	locked, err := l.lock.TryLock()
	if err != nil {
		return errors.Wrap(errors.KindFile, "lock snapshot file", err)
	}
	if !locked {
		return errors.New(errors.KindBusy, "snapshot file is locked by another process")
	}
	defer func() { _ = l.lock.Unlock() }()

	tmp, err := os.CreateTemp(filepath.Dir(l.path), FileName+".tmp-*")
	if err != nil {
		return errors.Wrap(errors.KindFile, "create temp snapshot", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return errors.Wrap(errors.KindFile, "write temp snapshot", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(errors.KindFile, "close temp snapshot", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(errors.KindFile, "replace snapshot", err)
	}
	return nil
}

// Delete removes the snapshot. Used by full state resets.
func (l *Ledger) Delete() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(errors.KindFile, "delete snapshot", err)
	}
	return nil
}

// load reads the stored snapshot, returning nil when none exists.
func (l *Ledger) load() (*snapshot, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(errors.KindFile, "read snapshot", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.Wrap(errors.KindFile, "decode snapshot", err)
	}
	if snap.Root.Children == nil {
		snap.Root.Children = make(map[string]entry)
	}
	return &snap, nil
}

// HashFile returns the hex sha256 of the file's bytes.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashBytes returns the hex sha256 of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// totalHash digests the sorted path:hash pairs so the snapshot carries
// a single fingerprint of the whole tree.
func totalHash(children map[string]entry) string {
	paths := make([]string, 0, len(children))
	for p := range children {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	h := sha256.New()
	for _, p := range paths {
		h.Write([]byte(p))
		h.Write([]byte(":"))
		h.Write([]byte(children[p].Hash))
		h.Write([]byte("\n"))
	}
	return hex.EncodeToString(h.Sum(nil))
}
