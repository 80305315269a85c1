package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDiffWithoutSnapshotReportsAllAdded(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.go", "package a")
	b := writeFile(t, dir, "b.go", "package b")

	l := New(filepath.Join(dir, ".semantica"))
	changes, err := l.Diff([]string{b, a})
	require.NoError(t, err)

	assert.Equal(t, []string{a, b}, changes.Added)
	assert.Empty(t, changes.Modified)
	assert.Empty(t, changes.Deleted)
}

func TestDiffDetectsAddModifyDelete(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.go", "package a")
	b := writeFile(t, dir, "b.go", "package b")

	l := New(filepath.Join(dir, ".semantica"))
	require.NoError(t, l.Commit([]string{a, b}))

	// a is edited, b is gone, c is new.
	writeFile(t, dir, "a.go", "package a // edited")
	c := writeFile(t, dir, "c.go", "package c")

	changes, err := l.Diff([]string{a, c})
	require.NoError(t, err)

	assert.Equal(t, []string{c}, changes.Added)
	assert.Equal(t, []string{a}, changes.Modified)
	assert.Equal(t, []string{b}, changes.Deleted)
	assert.Equal(t, 3, changes.Total())
}

func TestDiffUnchangedIsEmpty(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.go", "package a")

	l := New(filepath.Join(dir, ".semantica"))
	require.NoError(t, l.Commit([]string{a}))

	changes, err := l.Diff([]string{a})
	require.NoError(t, err)
	assert.True(t, changes.Empty())
}

func TestDiffIsIdempotentUntilCommit(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.go", "package a")

	l := New(filepath.Join(dir, ".semantica"))
	require.NoError(t, l.Commit([]string{a}))

	writeFile(t, dir, "a.go", "package a // edited")

	first, err := l.Diff([]string{a})
	require.NoError(t, err)
	second, err := l.Diff([]string{a})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, []string{a}, second.Modified)

	// After commit the same diff is clean.
	require.NoError(t, l.Commit([]string{a}))
	third, err := l.Diff([]string{a})
	require.NoError(t, err)
	assert.True(t, third.Empty())
}

func TestCommitWritesSnapshotFormat(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.go", "package a")

	l := New(filepath.Join(dir, ".semantica"))
	require.NoError(t, l.Commit([]string{a}))
	assert.True(t, l.Exists())

	data, err := os.ReadFile(l.Path())
	require.NoError(t, err)

	var snap map[string]any
	require.NoError(t, json.Unmarshal(data, &snap))

	root, ok := snap["root"].(map[string]any)
	require.True(t, ok)
	children, ok := root["children"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, children, a)

	child := children[a].(map[string]any)
	assert.NotEmpty(t, child["hash"])
	assert.Equal(t, false, child["isDirectory"])

	assert.Equal(t, float64(1), snap["fileCount"])
	assert.NotEmpty(t, snap["totalHash"])
	assert.Equal(t, root["hash"], snap["totalHash"])
	assert.NotEmpty(t, snap["timestamp"])
}

func TestCommitLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.go", "package a")
	dataDir := filepath.Join(dir, ".semantica")

	l := New(dataDir)
	require.NoError(t, l.Commit([]string{a}))

	entries, err := os.ReadDir(dataDir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{FileName, FileName + ".lock"}, names)
}

func TestCommitMissingFileFails(t *testing.T) {
	dir := t.TempDir()
	l := New(filepath.Join(dir, ".semantica"))
	err := l.Commit([]string{filepath.Join(dir, "missing.go")})
	require.Error(t, err)
}

func TestDeleteRemovesSnapshot(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.go", "package a")

	l := New(filepath.Join(dir, ".semantica"))
	require.NoError(t, l.Commit([]string{a}))
	require.NoError(t, l.Delete())
	assert.False(t, l.Exists())

	// Deleting an absent snapshot is not an error.
	require.NoError(t, l.Delete())
}

func TestHashFileMatchesHashBytes(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "x.txt", "hello")

	fromFile, err := HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, HashBytes([]byte("hello")), fromFile)
	assert.Len(t, fromFile, 64)
}
