package search

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/semantica-dev/semantica/internal/chunk"
	"github.com/semantica-dev/semantica/internal/config"
	"github.com/semantica-dev/semantica/internal/embed"
	"github.com/semantica-dev/semantica/internal/errors"
	"github.com/semantica-dev/semantica/internal/store"
)

const (
	// fallbackScoreScale relaxes the threshold for synonym retries.
	fallbackScoreScale = 0.8

	// fallbackMinScore is the last-resort threshold.
	fallbackMinScore = 0.3

	// queryKeywordLimit caps the keywords extracted for re-ranking.
	queryKeywordLimit = 10
)

// Engine executes searches against the vector store. Query embeddings
// go through an LRU cache so repeated queries skip the provider.
type Engine struct {
	cfg      *config.Config
	store    store.VectorStore
	provider embed.Provider
	logger   *slog.Logger
}

// NewEngine wraps the provider in an embedding cache and returns a
// ready engine.
func NewEngine(cfg *config.Config, st store.VectorStore, provider embed.Provider, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cached, err := embed.NewCachedProvider(provider, embed.DefaultCacheSize); err == nil {
		provider = cached
	}
	return &Engine{cfg: cfg, store: st, provider: provider, logger: logger}
}

// scored carries a hit through re-ranking, keeping the raw vector
// score for tie-breaks.
type scored struct {
	hit         store.Result
	vectorScore float64
	finalScore  float64
}

// Search runs the full query pipeline and returns ranked, formatted
// results.
func (e *Engine) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New(errors.KindSearch, "empty query")
	}
	e.applyDefaults(&opts)

	var pathRe *regexp.Regexp
	if opts.PathPattern != "" {
		re, err := regexp.Compile("(?i)" + opts.PathPattern)
		if err != nil {
			return nil, errors.Wrap(errors.KindSearch, "invalid path pattern", err)
		}
		pathRe = re
	}

	processed := Preprocess(query)

	hits, err := e.query(ctx, processed, opts.MinScore, opts)
	if err != nil {
		return nil, err
	}

	if len(hits) == 0 {
		hits, err = e.fallback(ctx, processed, opts)
		if err != nil {
			return nil, err
		}
	}

	ranked := e.rank(processed, hits)

	if pathRe != nil {
		filtered := ranked[:0]
		for _, s := range ranked {
			if pathRe.MatchString(s.hit.Metadata.FilePath) {
				filtered = append(filtered, s)
			}
		}
		ranked = filtered
	}

	if len(ranked) > opts.MaxResults {
		ranked = ranked[:opts.MaxResults]
	}
	return e.format(ranked), nil
}

func (e *Engine) applyDefaults(opts *Options) {
	if opts.MaxResults <= 0 {
		opts.MaxResults = e.cfg.Search.MaxResults
	}
	if opts.MinScore <= 0 {
		opts.MinScore = e.cfg.Search.MinScore
	}
}

// query embeds one query string and runs the vector search.
func (e *Engine) query(ctx context.Context, text string, minScore float64, opts Options) ([]store.Result, error) {
	vector, err := e.provider.Embed(ctx, text)
	if err != nil {
		return nil, errors.Wrap(errors.KindSearch, "embed query", err)
	}

	filters := make(map[string]string)
	if opts.Language != "" {
		filters["language"] = opts.Language
	}

	return e.store.Search(ctx, e.cfg.Store.Collection, vector, store.SearchOptions{
		Limit:    opts.MaxResults,
		MinScore: float32(minScore),
		Filters:  filters,
	})
}

// fallback climbs the retry ladder: synonym variants at a relaxed
// threshold first, then the original query at the floor threshold.
func (e *Engine) fallback(ctx context.Context, processed string, opts Options) ([]store.Result, error) {
	relaxed := opts.MinScore * fallbackScoreScale
	for _, variant := range SynonymVariants(processed) {
		hits, err := e.query(ctx, variant, relaxed, opts)
		if err != nil {
			return nil, err
		}
		if len(hits) > 0 {
			e.logger.Debug("fallback variant matched",
				slog.String("variant", variant),
				slog.Int("hits", len(hits)))
			return hits, nil
		}
	}
	return e.query(ctx, processed, fallbackMinScore, opts)
}

// rank applies hybrid re-ranking when configured, otherwise preserves
// vector order. Ties break on raw vector score, then id.
func (e *Engine) rank(processed string, hits []store.Result) []scored {
	ranked := make([]scored, len(hits))
	for i, h := range hits {
		ranked[i] = scored{hit: h, vectorScore: float64(h.Score), finalScore: float64(h.Score)}
	}

	if e.cfg.Search.Strategy == StrategyHybrid {
		queryKeywords := chunk.ExtractKeywords(processed, queryKeywordLimit)
		vw, kw := queryWeights(processed)
		for i := range ranked {
			ks := keywordScore(queryKeywords, ranked[i].hit.Metadata.Keywords)
			ranked[i].finalScore = vw*ranked[i].vectorScore + kw*ks
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].finalScore != ranked[j].finalScore {
			return ranked[i].finalScore > ranked[j].finalScore
		}
		if ranked[i].vectorScore != ranked[j].vectorScore {
			return ranked[i].vectorScore > ranked[j].vectorScore
		}
		return ranked[i].hit.ID < ranked[j].hit.ID
	})
	return ranked
}

// queryWeights picks the vector/keyword blend from the query's shape.
// Code-looking queries lean on the vector; long prose leans on
// keywords.
func queryWeights(query string) (vector, keyword float64) {
	if looksLikeCode(query) {
		return 0.8, 0.2
	}
	if len(strings.Fields(query)) > 3 {
		return 0.6, 0.4
	}
	return 0.7, 0.3
}

func looksLikeCode(query string) bool {
	if strings.ContainsAny(query, "{}()[];,.<>") || strings.ContainsAny(query, "=+-*/%&|^~") {
		return true
	}
	if strings.Contains(query, "_") {
		return true
	}
	return chunk.HasCamelCase(query)
}

// keywordScore is the fraction of query keywords present in the chunk.
func keywordScore(queryKeywords, chunkKeywords []string) float64 {
	if len(queryKeywords) == 0 {
		return 0
	}
	set := make(map[string]bool, len(chunkKeywords))
	for _, k := range chunkKeywords {
		set[strings.ToLower(k)] = true
	}
	matched := 0
	for _, k := range queryKeywords {
		if set[strings.ToLower(k)] {
			matched++
		}
	}
	return float64(matched) / float64(len(queryKeywords))
}

// format assigns ranks and shapes snippets per the configured result
// format.
func (e *Engine) format(ranked []scored) []Result {
	results := make([]Result, len(ranked))
	for i, s := range ranked {
		m := s.hit.Metadata
		results[i] = Result{
			Rank:       i + 1,
			FilePath:   m.FilePath,
			Language:   m.Language,
			StartLine:  m.StartLine,
			EndLine:    m.EndLine,
			SymbolName: m.SymbolName,
			ChunkType:  string(m.ChunkType),
			Score:      s.finalScore,
			Snippet:    formatSnippet(s.hit.Content, e.cfg.Search.ResultFormat),
		}
	}
	return results
}
