// Package store abstracts the vector database behind a narrow
// interface and provides the qdrant-backed implementation.
package store

import (
	"context"

	"github.com/semantica-dev/semantica/internal/chunk"
)

// SearchOptions tune one vector search.
type SearchOptions struct {
	// Limit caps the number of results.
	Limit int

	// MinScore drops results below this cosine similarity, applied
	// server-side.
	MinScore float32

	// Filters are conjunctive equality conditions on scalar payload
	// fields (language, chunkType, filePath), applied server-side.
	Filters map[string]string
}

// Result is one search hit: the stored chunk plus its similarity score.
type Result struct {
	ID       string
	Score    float32
	Content  string
	Metadata chunk.Metadata
}

// Stats summarize one collection.
type Stats struct {
	PointsCount   uint64 `json:"pointsCount"`
	VectorDim     int    `json:"vectorDim"`
	SegmentsCount uint64 `json:"segmentsCount"`
	Status        string `json:"status"`
}

// VectorStore is the persistence boundary for embedded chunks.
// Implementations index by cosine similarity and return scores in
// [0,1] in descending order.
type VectorStore interface {
	// Connect establishes the connection. Idempotent.
	Connect(ctx context.Context) error

	// Close releases the connection.
	Close() error

	// CreateCollection creates a collection sized for dim-wide vectors.
	// Fails with collection-exists when it is already present; on
	// success the collection is immediately ready for search.
	CreateCollection(ctx context.Context, name string, dim int) error

	// DeleteCollection drops a collection and all its points.
	DeleteCollection(ctx context.Context, name string) error

	// CollectionExists reports whether the collection is present.
	CollectionExists(ctx context.Context, name string) (bool, error)

	// Insert upserts embedded chunks. Re-inserting an id replaces the
	// row. Fails with collection-not-found when the collection is
	// absent; the write is flushed before returning.
	Insert(ctx context.Context, name string, chunks []*chunk.Chunk) error

	// Search returns at most opts.Limit results for the query vector.
	// Fails with collection-not-found when the collection is absent.
	Search(ctx context.Context, name string, vector []float32, opts SearchOptions) ([]Result, error)

	// Delete removes points by id.
	Delete(ctx context.Context, name string, ids []string) error

	// DeleteByFilePath removes every chunk of one file via a metadata
	// filter.
	DeleteByFilePath(ctx context.Context, name string, filePath string) error

	// CountByFilePath returns the number of chunks stored for one file.
	CountByFilePath(ctx context.Context, name string, filePath string) (uint64, error)

	// GetStats summarizes the collection.
	GetStats(ctx context.Context, name string) (Stats, error)

	// HealthCheck reports whether the backend is reachable.
	HealthCheck(ctx context.Context) bool
}
