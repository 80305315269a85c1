// Package embed abstracts embedding providers behind a single
// interface with retry, caching, and cost estimation.
package embed

import (
	"context"
)

// Provider turns text into vectors. Implementations guarantee that the
// i-th output vector of EmbedBatch corresponds to the i-th input text.
type Provider interface {
	// Name identifies the provider variant (local, remote).
	Name() string

	// ModelName is the embedding model in use.
	ModelName() string

	// Dimensions is the output vector width.
	Dimensions() int

	// MaxTokens is the largest input the model accepts.
	MaxTokens() int

	// Embed produces the vector for one text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch produces vectors for texts, preserving input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// HealthCheck reports whether the backing service is reachable.
	HealthCheck(ctx context.Context) bool

	// EstimateCost returns the USD cost of embedding tokens tokens.
	EstimateCost(tokens int) float64

	// Close releases connections. Safe to call more than once.
	Close() error
}

// Provider names.
const (
	ProviderLocal  = "local"
	ProviderRemote = "remote"
)

// maxBatchTexts is the largest batch a remote request may carry.
// Larger batches are split into ordered sub-batches.
const maxBatchTexts = 2048
