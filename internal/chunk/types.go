// Package chunk turns parsed source files into size-bounded semantic
// chunks using a split-then-merge pass over the AST.
package chunk

import (
	"context"
	"time"
)

// Default chunker parameters.
const (
	DefaultMaxTokens = 250
	DefaultMinTokens = 30

	// MaxKeywords caps the identifier-derived keywords stored per chunk.
	MaxKeywords = 10

	// MergeGapLines is the largest line gap the merge pass will bridge
	// between adjacent sibling chunks.
	MergeGapLines = 3
)

// ChunkType classifies the semantic unit a chunk was cut from.
type ChunkType string

const (
	ChunkTypeFile      ChunkType = "file"
	ChunkTypeFunction  ChunkType = "function"
	ChunkTypeMethod    ChunkType = "method"
	ChunkTypeClass     ChunkType = "class"
	ChunkTypeModule    ChunkType = "module"
	ChunkTypeInterface ChunkType = "interface"
	ChunkTypeType      ChunkType = "type"
	ChunkTypeBlock     ChunkType = "block"
)

// Metadata carries everything the store persists alongside a vector.
// Content is co-stored so search responses can render snippets without
// re-reading files.
type Metadata struct {
	FilePath     string    `json:"filePath"` // project-relative
	AbsolutePath string    `json:"absolutePath"`
	Language     string    `json:"language"`
	StartLine    int       `json:"startLine"` // 1-indexed, inclusive
	EndLine      int       `json:"endLine"`   // 1-indexed, inclusive
	StartChar    int       `json:"startChar"`
	EndChar      int       `json:"endChar"`
	ChunkType    ChunkType `json:"chunkType"`
	Granularity  string    `json:"granularity"` // chunker name
	SymbolName   string    `json:"symbolName,omitempty"`
	Keywords     []string  `json:"keywords"`
	Dependencies []string  `json:"dependencies,omitempty"`
	TokenCount   int       `json:"tokenCount,omitempty"`
	LastModified time.Time `json:"lastModified"`
}

// Chunk is the unit of indexing: a contiguous slice of one source file.
type Chunk struct {
	ID        string    // deterministic, derived from (filePath, startLine, endLine)
	Content   string    // verbatim source substring
	Embedding []float32 // absent until embedded
	Metadata  Metadata
}

// CodeNode is the chunker input: one node of a language-specific AST
// walk, with 1-indexed inclusive line spans and byte char offsets.
type CodeNode struct {
	Type      ChunkType
	Name      string
	Content   string
	StartLine int
	EndLine   int
	StartChar int
	EndChar   int
	Children  []*CodeNode
}

// Parser produces a CodeNode tree from source. Implementations wrap a
// concrete grammar library; the chunker never assumes one.
type Parser interface {
	// Parse returns the node tree for the given source, or an error if
	// the language is unsupported or the source cannot be parsed.
	Parse(ctx context.Context, source []byte, language string) (*CodeNode, error)

	// Close releases parser resources.
	Close()
}

// Options configure the split-merge chunker.
type Options struct {
	MaxTokens int

	// MinTokens is accepted and defaulted but not consulted by split
	// or merge; reserved for gating merge candidates by size.
	MinTokens int

	MergeSiblings bool
}

// DefaultOptions returns the default chunker configuration.
func DefaultOptions() Options {
	return Options{
		MaxTokens:     DefaultMaxTokens,
		MinTokens:     DefaultMinTokens,
		MergeSiblings: true,
	}
}
