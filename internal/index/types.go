// Package index runs the staged ingestion pipeline: discover files,
// parse and chunk them, embed in bounded-concurrency batches, and
// persist to the vector store. The incremental path reindexes only
// what the change ledger reports.
package index

import (
	"time"
)

// Pipeline phases, in order.
const (
	PhaseDiscovery = "discovery"
	PhaseParsing   = "parsing"
	PhaseEmbedding = "embedding"
	PhaseStoring   = "storing"
)

// StoreBatchSize is how many chunks one insert carries.
const StoreBatchSize = 100

// successThreshold is the embedded/total ratio a run must reach to
// count as successful.
const successThreshold = 0.80

// Progress is one pipeline progress event.
type Progress struct {
	Phase   string
	Current int
	Total   int
}

// ProgressFunc receives progress events. May be nil.
type ProgressFunc func(Progress)

// IndexingResult summarizes a full pipeline run.
type IndexingResult struct {
	Success        bool              `json:"success"`
	TotalFiles     int               `json:"totalFiles"`
	TotalChunks    int               `json:"totalChunks"`
	EmbeddedChunks int               `json:"embeddedChunks"`
	StoredChunks   int               `json:"storedChunks"`
	Errors         map[string]string `json:"errors,omitempty"`
	Duration       time.Duration     `json:"duration"`
}

// IncrementalResult summarizes an incremental run.
type IncrementalResult struct {
	Added          []string          `json:"added"`
	Modified       []string          `json:"modified"`
	Deleted        []string          `json:"deleted"`
	TotalChunks    int               `json:"totalChunks"`
	EmbeddedChunks int               `json:"embeddedChunks"`
	StoredChunks   int               `json:"storedChunks"`
	Success        bool              `json:"success"`
	Errors         map[string]string `json:"errors,omitempty"`
	Duration       time.Duration     `json:"duration"`
}
