package preflight

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semantica-dev/semantica/internal/config"
	"github.com/semantica-dev/semantica/internal/store"
)

type stubStore struct {
	store.VectorStore
	healthy bool
}

func (s stubStore) HealthCheck(ctx context.Context) bool { return s.healthy }

type stubProvider struct {
	healthy     bool
	costPerCall float64
}

func (stubProvider) Name() string      { return "stub" }
func (stubProvider) ModelName() string { return "stub-model" }
func (stubProvider) Dimensions() int   { return 4 }
func (stubProvider) MaxTokens() int    { return 8192 }
func (stubProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0, 0}, nil
}
func (stubProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, nil
}
func (p stubProvider) HealthCheck(ctx context.Context) bool { return p.healthy }
func (p stubProvider) EstimateCost(tokens int) float64 {
	return float64(tokens) * p.costPerCall
}
func (stubProvider) Close() error { return nil }

func TestEstimateChunks(t *testing.T) {
	assert.Equal(t, 600, EstimateChunks(100, "typescript"))
	assert.Equal(t, 600, EstimateChunks(100, "javascript"))
	assert.Equal(t, 350, EstimateChunks(100, "ruby"))
	assert.Equal(t, 450, EstimateChunks(100, "python"))
	assert.Equal(t, 400, EstimateChunks(100, "go"))
	assert.Equal(t, 0, EstimateChunks(0, "go"))
}

func TestEmbeddingRate(t *testing.T) {
	assert.Equal(t, float64(28), EmbeddingRate("local", 8))
	assert.Equal(t, float64(85), EmbeddingRate("remote", 5))
	assert.Equal(t, float64(85), EmbeddingRate("remote", 12))
	assert.Equal(t, float64(70), EmbeddingRate("remote", 4))
	assert.Equal(t, float64(50), EmbeddingRate("remote", 3))
	assert.Equal(t, float64(35), EmbeddingRate("remote", 2))
	assert.Equal(t, float64(35), EmbeddingRate("remote", 1))
}

func TestEstimateDuration(t *testing.T) {
	// 280 chunks at 28/s is 10s, 700 files at 700/s is 1s, plus the
	// 10s buffer.
	d := EstimateDuration(700, 280, 28)
	assert.Equal(t, 21*time.Second, d)

	// Empty project still pays the startup buffer.
	assert.Equal(t, startupBuffer, EstimateDuration(0, 0, 28))
}

func TestRunEmptyProject(t *testing.T) {
	root := t.TempDir()
	cfg := config.Default(root)
	require.NoError(t, cfg.Validate())

	e := New(cfg, stubStore{healthy: true}, stubProvider{healthy: true}, nil)
	est, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, est.FilesCount)
	assert.Equal(t, 0, est.EstimatedChunks)
	assert.Equal(t, float64(0), est.EstimatedCost)
	assert.Contains(t, est.Warnings, "no indexable files found")
	assert.False(t, est.Checks.ConfigExists)
	assert.True(t, est.Checks.VectorDBHealthy)
	assert.True(t, est.Checks.EmbeddingHealthy)
}

func TestRunCountsAndChecks(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a.go", "b.go", "c.go"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("package x\n"), 0o644))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(root, config.DataDirName), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(root, config.DataDirName, config.ConfigFileName), []byte("{}"), 0o644))

	cfg := config.Default(root)
	require.NoError(t, cfg.Validate())

	e := New(cfg, stubStore{healthy: true}, stubProvider{healthy: true, costPerCall: 0.001}, nil)
	est, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, est.FilesCount)
	assert.Equal(t, 12, est.EstimatedChunks) // 3 files x 4 chunks for go
	assert.InDelta(t, float64(12*tokensPerChunk)*0.001, est.EstimatedCost, 1e-9)
	assert.True(t, est.Checks.ConfigExists)
	assert.Empty(t, est.Warnings)
	assert.Greater(t, est.EstimatedTime, startupBuffer)
}

func TestRunUnhealthyCollaborators(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package x\n"), 0o644))

	cfg := config.Default(root)
	require.NoError(t, cfg.Validate())

	e := New(cfg, stubStore{healthy: false}, stubProvider{healthy: false}, nil)
	est, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, est.Checks.VectorDBHealthy)
	assert.False(t, est.Checks.EmbeddingHealthy)
	assert.Contains(t, est.Warnings, "vector database is unreachable")
	assert.Contains(t, est.Warnings, "embedding provider is unreachable")
}

func TestPrimaryLanguage(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a.py", "b.py", "c.go"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("x = 1\n"), 0o644))
	}
	cfg := config.Default(root)
	require.NoError(t, cfg.Validate())

	e := New(cfg, stubStore{healthy: true}, stubProvider{healthy: true}, nil)
	est, err := e.Run(context.Background())
	require.NoError(t, err)

	// Python dominates: 3 files x 4.5 chunks, rounded.
	assert.Equal(t, 14, est.EstimatedChunks)
}
