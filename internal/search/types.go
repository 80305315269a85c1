// Package search runs the query pipeline: preprocessing, embedding,
// vector retrieval, hybrid re-ranking, and a fallback ladder for
// vocabulary mismatches between prose queries and code.
package search

// Options tune one search call. Zero values fall back to the
// configured defaults.
type Options struct {
	// MaxResults caps the result list.
	MaxResults int

	// MinScore drops hits below this similarity.
	MinScore float64

	// Language restricts hits to one language when set.
	Language string

	// PathPattern keeps only hits whose file path matches this
	// case-insensitive regular expression.
	PathPattern string
}

// Result is one formatted search hit.
type Result struct {
	Rank       int     `json:"rank"`
	FilePath   string  `json:"filePath"`
	Language   string  `json:"language"`
	StartLine  int     `json:"startLine"`
	EndLine    int     `json:"endLine"`
	SymbolName string  `json:"symbolName,omitempty"`
	ChunkType  string  `json:"chunkType"`
	Score      float64 `json:"score"`
	Snippet    string  `json:"snippet"`
}

// Result formats.
const (
	FormatSnippet = "snippet"
	FormatContext = "context"
	FormatHybrid  = "hybrid"
)

// Strategies.
const (
	StrategyHybrid = "hybrid"
	StrategyVector = "vector"
)
