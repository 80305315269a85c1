package mcp

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semantica-dev/semantica/internal/async"
	"github.com/semantica-dev/semantica/internal/config"
	"github.com/semantica-dev/semantica/internal/errors"
	"github.com/semantica-dev/semantica/internal/index"
	"github.com/semantica-dev/semantica/internal/ledger"
	"github.com/semantica-dev/semantica/internal/preflight"
	"github.com/semantica-dev/semantica/internal/search"
	"github.com/semantica-dev/semantica/internal/store"
)

type stubIndexer struct {
	mu         sync.Mutex
	indexCalls int
	reindexed  *index.ReindexOptions
	indexErr   error
}

func (s *stubIndexer) IndexCodebase(ctx context.Context, onProgress index.ProgressFunc) (*index.IndexingResult, error) {
	s.mu.Lock()
	s.indexCalls++
	s.mu.Unlock()
	if s.indexErr != nil {
		return nil, s.indexErr
	}
	if onProgress != nil {
		onProgress(index.Progress{Phase: index.PhaseEmbedding, Current: 5, Total: 10})
	}
	return &index.IndexingResult{Success: true, TotalFiles: 2, TotalChunks: 8, EmbeddedChunks: 8, StoredChunks: 8}, nil
}

func (s *stubIndexer) ReindexChangedFiles(ctx context.Context, opts index.ReindexOptions, onProgress index.ProgressFunc) (*index.IncrementalResult, error) {
	s.mu.Lock()
	s.reindexed = &opts
	s.mu.Unlock()
	return &index.IncrementalResult{Success: true, Modified: opts.SpecificFiles}, nil
}

func (s *stubIndexer) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexCalls
}

type stubSearcher struct {
	results []search.Result
	err     error
}

func (s *stubSearcher) Search(ctx context.Context, query string, opts search.Options) ([]search.Result, error) {
	return s.results, s.err
}

type stubPreflight struct{ est preflight.Estimate }

func (s *stubPreflight) Run(ctx context.Context) (*preflight.Estimate, error) {
	est := s.est
	return &est, nil
}

type stubVectorStore struct {
	store.VectorStore
	mu      sync.Mutex
	exists  bool
	deleted bool
	stats   store.Stats
}

func (s *stubVectorStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exists, nil
}

func (s *stubVectorStore) DeleteCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = true
	s.exists = false
	return nil
}

func (s *stubVectorStore) GetStats(ctx context.Context, name string) (store.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats, nil
}

func newTestServer(t *testing.T, root string) (*Server, *stubIndexer, *stubVectorStore) {
	t.Helper()
	indexer := &stubIndexer{}
	st := &stubVectorStore{}
	srv, err := NewServer(config.Default(root), Deps{
		Indexer:   indexer,
		Searcher:  &stubSearcher{},
		Preflight: &stubPreflight{est: preflight.Estimate{FilesCount: 2}},
		Store:     st,
		Registry:  async.NewRegistry(nil),
	})
	require.NoError(t, err)
	return srv, indexer, st
}

func TestNewServerValidation(t *testing.T) {
	_, err := NewServer(nil, Deps{})
	require.Error(t, err)

	_, err = NewServer(config.Default(""), Deps{})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindConfig))
}

func TestIndexCodebaseBackground(t *testing.T) {
	srv, indexer, _ := newTestServer(t, t.TempDir())

	_, out, err := srv.handleIndexCodebase(context.Background(), nil, IndexCodebaseInput{})
	require.NoError(t, err)

	assert.NotEmpty(t, out.JobID)
	assert.Nil(t, out.Result)
	require.NotNil(t, out.Estimate)
	assert.Equal(t, 2, out.Estimate.FilesCount)

	assert.Eventually(t, func() bool {
		job := srv.registry.GetJob(out.JobID)
		return job != nil && job.Status == async.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, indexer.calls())
}

func TestIndexCodebaseBackgroundPrunesFinishedJobs(t *testing.T) {
	srv, _, _ := newTestServer(t, t.TempDir())

	ids := make([]string, 0, 12)
	for i := 0; i < 12; i++ {
		_, out, err := srv.handleIndexCodebase(context.Background(), nil, IndexCodebaseInput{})
		require.NoError(t, err)
		ids = append(ids, out.JobID)

		jobID := out.JobID
		require.Eventually(t, func() bool {
			job := srv.registry.GetJob(jobID)
			return job == nil || !job.Running()
		}, 2*time.Second, 10*time.Millisecond)
	}

	// Every terminal job triggers a cleanup, so a long-lived server
	// keeps only the most recent records.
	assert.Eventually(t, func() bool {
		return srv.registry.Len() == 10
	}, 2*time.Second, 10*time.Millisecond)
	assert.Nil(t, srv.registry.GetJob(ids[0]))
	assert.NotNil(t, srv.registry.GetJob(ids[len(ids)-1]))
}

func TestIndexCodebaseForeground(t *testing.T) {
	srv, _, _ := newTestServer(t, t.TempDir())

	bg := false
	_, out, err := srv.handleIndexCodebase(context.Background(), nil, IndexCodebaseInput{Background: &bg})
	require.NoError(t, err)

	assert.Empty(t, out.JobID)
	require.NotNil(t, out.Result)
	assert.True(t, out.Result.Success)
}

func TestIndexCodebaseWrongPath(t *testing.T) {
	srv, _, _ := newTestServer(t, t.TempDir())

	_, _, err := srv.handleIndexCodebase(context.Background(), nil, IndexCodebaseInput{Path: "/elsewhere"})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindConfig))
}

func TestSearchCodeRequiresQuery(t *testing.T) {
	srv, _, _ := newTestServer(t, t.TempDir())

	_, _, err := srv.handleSearchCode(context.Background(), nil, SearchCodeInput{})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindSearch))
}

func TestSearchCodePassthrough(t *testing.T) {
	root := t.TempDir()
	srv, _, _ := newTestServer(t, root)
	srv.searcher = &stubSearcher{results: []search.Result{
		{Rank: 1, FilePath: "a.go", Score: 0.9},
	}}

	_, out, err := srv.handleSearchCode(context.Background(), nil, SearchCodeInput{Query: "login"})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Total)
	assert.Equal(t, "a.go", out.Results[0].FilePath)
}

func TestGetIndexStatusRunningJob(t *testing.T) {
	srv, _, _ := newTestServer(t, t.TempDir())

	id := async.NewJobID(async.KindIndexing)
	_, err := srv.registry.StartJob(id, async.KindIndexing)
	require.NoError(t, err)
	srv.registry.UpdateProgress(id, index.PhaseParsing, 3, 10)

	_, out, err := srv.handleGetIndexStatus(context.Background(), nil, GetIndexStatusInput{})
	require.NoError(t, err)
	require.NotNil(t, out.Indexing)
	assert.Equal(t, index.PhaseParsing, out.Indexing.Phase)
	assert.Nil(t, out.Stats)
}

func TestGetIndexStatusStats(t *testing.T) {
	srv, _, st := newTestServer(t, t.TempDir())
	st.exists = true
	st.stats = store.Stats{PointsCount: 42, Status: "green"}

	_, out, err := srv.handleGetIndexStatus(context.Background(), nil, GetIndexStatusInput{})
	require.NoError(t, err)
	assert.Nil(t, out.Indexing)
	require.NotNil(t, out.Stats)
	assert.Equal(t, uint64(42), out.Stats.PointsCount)
}

func TestReindexChangedFiles(t *testing.T) {
	srv, indexer, _ := newTestServer(t, t.TempDir())

	_, out, err := srv.handleReindexChangedFiles(context.Background(), nil, ReindexChangedFilesInput{
		Files: []string{"a.go"},
		Force: true,
	})
	require.NoError(t, err)
	assert.True(t, out.Result.Success)
	require.NotNil(t, indexer.reindexed)
	assert.Equal(t, []string{"a.go"}, indexer.reindexed.SpecificFiles)
	assert.True(t, indexer.reindexed.Force)
}

func TestClearIndexRequiresConfirm(t *testing.T) {
	srv, _, st := newTestServer(t, t.TempDir())
	st.exists = true

	_, _, err := srv.handleClearIndex(context.Background(), nil, ClearIndexInput{})
	require.Error(t, err)
	assert.False(t, st.deleted)

	_, out, err := srv.handleClearIndex(context.Background(), nil, ClearIndexInput{Confirm: true})
	require.NoError(t, err)
	assert.True(t, out.Cleared)
	assert.True(t, st.deleted)
}

func TestClearIndexAbsentCollection(t *testing.T) {
	srv, _, st := newTestServer(t, t.TempDir())

	_, out, err := srv.handleClearIndex(context.Background(), nil, ClearIndexInput{Confirm: true})
	require.NoError(t, err)
	assert.False(t, out.Cleared)
	assert.False(t, st.deleted)
}

func TestResetState(t *testing.T) {
	root := t.TempDir()
	srv, _, _ := newTestServer(t, root)

	dataDir := filepath.Join(root, config.DataDirName)
	require.NoError(t, os.MkdirAll(dataDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, ledger.FileName), []byte("{}"), 0o644))

	_, out, err := srv.handleResetState(context.Background(), nil, ResetStateInput{})
	require.NoError(t, err)
	assert.Equal(t, []string{ledger.FileName}, out.Removed)

	_, statErr := os.Stat(filepath.Join(dataDir, ledger.FileName))
	assert.True(t, os.IsNotExist(statErr))
}

func TestOnboardProject(t *testing.T) {
	root := t.TempDir()
	srv, _, _ := newTestServer(t, root)

	_, out, err := srv.handleOnboardProject(context.Background(), nil, OnboardProjectInput{})
	require.NoError(t, err)
	assert.True(t, out.Created)
	assert.FileExists(t, out.ConfigPath)
	require.NotNil(t, out.Estimate)

	// A second onboarding leaves the existing config alone.
	_, again, err := srv.handleOnboardProject(context.Background(), nil, OnboardProjectInput{})
	require.NoError(t, err)
	assert.False(t, again.Created)
}

func TestInstallGitHooks(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git", "hooks"), 0o755))

	installed, err := InstallGitHooks(root, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"post-commit", "post-merge", "post-checkout"}, installed)

	raw, err := os.ReadFile(filepath.Join(root, ".git", "hooks", "post-commit"))
	require.NoError(t, err)
	script := string(raw)
	assert.True(t, strings.HasPrefix(script, "#!/bin/sh"))
	assert.Contains(t, script, hookMarker)
	assert.Contains(t, script, "reindex-trigger.json")
	assert.Contains(t, script, `"trigger":"post-commit"`)

	// Reinstall overwrites our own hooks.
	again, err := InstallGitHooks(root, []string{"post-commit"})
	require.NoError(t, err)
	assert.Equal(t, []string{"post-commit"}, again)
}

func TestInstallGitHooksSkipsForeign(t *testing.T) {
	root := t.TempDir()
	hooksDir := filepath.Join(root, ".git", "hooks")
	require.NoError(t, os.MkdirAll(hooksDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(hooksDir, "post-commit"),
		[]byte("#!/bin/sh\necho mine\n"), 0o755))

	installed, err := InstallGitHooks(root, []string{"post-commit"})
	require.NoError(t, err)
	assert.Empty(t, installed)

	raw, err := os.ReadFile(filepath.Join(hooksDir, "post-commit"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "echo mine")
}

func TestInstallGitHooksNotARepo(t *testing.T) {
	_, err := InstallGitHooks(t.TempDir(), nil)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindFile))
}
