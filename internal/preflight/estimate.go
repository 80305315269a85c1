// Package preflight estimates the size, duration, and cost of an
// indexing run and probes the collaborating services before work
// starts.
package preflight

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/semantica-dev/semantica/internal/config"
	"github.com/semantica-dev/semantica/internal/embed"
	"github.com/semantica-dev/semantica/internal/scanner"
	"github.com/semantica-dev/semantica/internal/store"
)

// tokensPerChunk is the average chunk size assumed for cost estimates.
const tokensPerChunk = 175

// largeProjectFiles is the file count above which a warning is issued.
const largeProjectFiles = 10000

// startupBuffer covers collection setup and connection establishment.
const startupBuffer = 10 * time.Second

// parseRate is how many files per second the parsing phase handles.
const parseRate = 700

// Checks are the go/no-go probes run before indexing.
type Checks struct {
	ConfigExists       bool `json:"configExists"`
	VectorDBHealthy    bool `json:"vectorDBHealthy"`
	EmbeddingHealthy   bool `json:"embeddingHealthy"`
	DiskSpaceAvailable bool `json:"diskSpaceAvailable"`
}

// Estimate is the pre-flight report.
type Estimate struct {
	FilesCount      int           `json:"filesCount"`
	EstimatedChunks int           `json:"estimatedChunks"`
	EstimatedTime   time.Duration `json:"estimatedTime"`
	EstimatedCost   float64       `json:"estimatedCost"`
	Checks          Checks        `json:"checks"`
	Warnings        []string      `json:"warnings,omitempty"`
}

// Estimator runs the pre-flight analysis for one project.
type Estimator struct {
	cfg      *config.Config
	store    store.VectorStore
	provider embed.Provider
	logger   *slog.Logger
}

// New creates an estimator over live collaborators.
func New(cfg *config.Config, st store.VectorStore, provider embed.Provider, logger *slog.Logger) *Estimator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Estimator{cfg: cfg, store: st, provider: provider, logger: logger}
}

// Run scans the project, derives the estimates, and probes the
// collaborators. Probe failures surface as warnings, never as errors.
func (e *Estimator) Run(ctx context.Context) (*Estimate, error) {
	s := scanner.New(scanner.Options{
		Root:        e.cfg.ProjectRoot,
		Include:     e.cfg.Include,
		Exclude:     e.cfg.Exclude,
		IgnoreRules: e.cfg.IgnoreRules(),
		MaxFileSize: e.cfg.MaxFileSizeBytes(),
	}, e.logger)

	records, err := s.Scan(ctx)
	if err != nil {
		return nil, err
	}

	files := len(records)
	chunks := EstimateChunks(files, primaryLanguage(records))
	rate := EmbeddingRate(e.cfg.Embedding.Provider, e.cfg.Embedding.Concurrency)

	est := &Estimate{
		FilesCount:      files,
		EstimatedChunks: chunks,
		EstimatedTime:   EstimateDuration(files, chunks, rate),
		EstimatedCost:   e.provider.EstimateCost(chunks * tokensPerChunk),
	}

	est.Checks = Checks{
		ConfigExists:       configExists(e.cfg),
		VectorDBHealthy:    e.store.HealthCheck(ctx),
		EmbeddingHealthy:   e.provider.HealthCheck(ctx),
		DiskSpaceAvailable: diskSpaceAvailable(e.cfg.ProjectRoot),
	}

	est.Warnings = warnings(est)
	return est, nil
}

// EstimateChunks predicts chunk volume from the file count and the
// dominant language's typical symbols-per-file density.
func EstimateChunks(files int, language string) int {
	var perFile float64
	switch language {
	case "typescript", "javascript":
		perFile = 6
	case "ruby":
		perFile = 3.5
	case "python":
		perFile = 4.5
	default:
		perFile = 4
	}
	return int(math.Round(float64(files) * perFile))
}

// EmbeddingRate is the expected chunks-per-second throughput of the
// embedding phase. Remote throughput scales with concurrency.
func EmbeddingRate(provider string, concurrency int) float64 {
	if provider != embed.ProviderRemote {
		return 28
	}
	switch {
	case concurrency >= 5:
		return 85
	case concurrency == 4:
		return 70
	case concurrency == 3:
		return 50
	default:
		return 35
	}
}

// EstimateDuration combines embedding throughput, parse throughput,
// and a fixed startup buffer.
func EstimateDuration(files, chunks int, rate float64) time.Duration {
	seconds := float64(chunks)/rate + float64(files)/parseRate
	return time.Duration(seconds*float64(time.Second)) + startupBuffer
}

// primaryLanguage is the most common language across the scanned
// files, empty for an empty project.
func primaryLanguage(records []scanner.FileRecord) string {
	counts := make(map[string]int)
	best, bestCount := "", 0
	for _, rec := range records {
		counts[rec.Language]++
		if counts[rec.Language] > bestCount ||
			(counts[rec.Language] == bestCount && rec.Language < best) {
			best, bestCount = rec.Language, counts[rec.Language]
		}
	}
	return best
}

func configExists(cfg *config.Config) bool {
	if _, err := os.Stat(filepath.Join(cfg.DataDir(), config.ConfigFileName)); err == nil {
		return true
	}
	_, err := os.Stat(filepath.Join(cfg.ProjectRoot, config.YAMLConfigFileName))
	return err == nil
}

func warnings(est *Estimate) []string {
	var out []string
	if est.FilesCount == 0 {
		out = append(out, "no indexable files found")
	}
	if est.FilesCount > largeProjectFiles {
		out = append(out, fmt.Sprintf("large project: %d files, indexing may take a while", est.FilesCount))
	}
	if !est.Checks.VectorDBHealthy {
		out = append(out, "vector database is unreachable")
	}
	if !est.Checks.EmbeddingHealthy {
		out = append(out, "embedding provider is unreachable")
	}
	if !est.Checks.DiskSpaceAvailable {
		out = append(out, "low disk space")
	}
	return out
}
