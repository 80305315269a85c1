package async

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semantica-dev/semantica/internal/errors"
)

func TestJobLifecycle(t *testing.T) {
	r := NewRegistry(nil)

	job, err := r.StartJob("job-1", KindIndexing)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, job.Status)
	assert.False(t, job.StartedAt.IsZero())

	r.UpdateProgress("job-1", "embedding", 64, 200)
	got := r.GetJob("job-1")
	require.NotNil(t, got)
	assert.Equal(t, "embedding", got.Phase)
	assert.Equal(t, 64, got.Current)
	assert.Equal(t, 200, got.Total)

	require.NoError(t, r.CompleteJob("job-1", map[string]int{"chunks": 200}))
	got = r.GetJob("job-1")
	assert.Equal(t, StatusCompleted, got.Status)
	require.NotNil(t, got.EndedAt)
	assert.NotNil(t, got.Result)
}

func TestFailJob(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.StartJob("job-1", KindIndexing)
	require.NoError(t, err)

	require.NoError(t, r.FailJob("job-1", errors.New(errors.KindEmbedding, "provider down")))
	got := r.GetJob("job-1")
	assert.Equal(t, StatusFailed, got.Status)
	assert.Contains(t, got.Error, "provider down")
}

func TestTerminalStateIsFinal(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.StartJob("job-1", KindIndexing)
	require.NoError(t, err)
	require.NoError(t, r.CompleteJob("job-1", nil))

	assert.Error(t, r.CompleteJob("job-1", nil))
	assert.Error(t, r.FailJob("job-1", nil))

	// Progress updates after the end are dropped.
	r.UpdateProgress("job-1", "late", 1, 2)
	assert.Empty(t, r.GetJob("job-1").Phase)
}

func TestCurrentIndexingJob(t *testing.T) {
	r := NewRegistry(nil)

	assert.Nil(t, r.GetCurrentIndexingJob())

	_, err := r.StartJob("idx-1", KindIndexing)
	require.NoError(t, err)
	require.NotNil(t, r.GetCurrentIndexingJob())
	assert.Equal(t, "idx-1", r.GetCurrentIndexingJob().ID)

	// The last started indexing job is current.
	_, err = r.StartJob("idx-2", KindIndexing)
	require.NoError(t, err)
	assert.Equal(t, "idx-2", r.GetCurrentIndexingJob().ID)

	// Search jobs do not take over.
	_, err = r.StartJob("search-1", KindSearch)
	require.NoError(t, err)
	assert.Equal(t, "idx-2", r.GetCurrentIndexingJob().ID)

	require.NoError(t, r.CompleteJob("idx-2", nil))
	assert.Nil(t, r.GetCurrentIndexingJob())
}

func TestDuplicateJobID(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.StartJob("job-1", KindIndexing)
	require.NoError(t, err)
	_, err = r.StartJob("job-1", KindSearch)
	require.Error(t, err)
}

func TestCleanupRetainsTenMostRecent(t *testing.T) {
	r := NewRegistry(nil)

	for i := 0; i < 15; i++ {
		id := fmt.Sprintf("job-%02d", i)
		_, err := r.StartJob(id, KindSearch)
		require.NoError(t, err)
		require.NoError(t, r.CompleteJob(id, nil))
	}
	// A running job is never cleaned up.
	_, err := r.StartJob("running", KindIndexing)
	require.NoError(t, err)

	removed := r.Cleanup()
	assert.Equal(t, 5, removed)
	assert.Equal(t, 11, r.Len())
	assert.NotNil(t, r.GetJob("running"))
	// The most recently ended jobs survive.
	assert.NotNil(t, r.GetJob("job-14"))
}

func TestSnapshotIsolation(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.StartJob("job-1", KindIndexing)
	require.NoError(t, err)

	got := r.GetJob("job-1")
	got.Status = StatusFailed
	got.Phase = "tampered"

	fresh := r.GetJob("job-1")
	assert.Equal(t, StatusRunning, fresh.Status)
	assert.Empty(t, fresh.Phase)
}

func TestConcurrentUpdates(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.StartJob("job-1", KindIndexing)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			r.UpdateProgress("job-1", "embedding", n, 50)
			_ = r.GetJob("job-1")
		}(i)
	}
	wg.Wait()

	got := r.GetJob("job-1")
	assert.Equal(t, StatusRunning, got.Status)
	assert.Equal(t, 50, got.Total)
}

func TestNewJobID(t *testing.T) {
	a := NewJobID(KindIndexing)
	b := NewJobID(KindIndexing)
	assert.NotEqual(t, a, b)
	assert.Contains(t, a, KindIndexing)
}
