package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/semantica-dev/semantica/internal/chunk"
	"github.com/semantica-dev/semantica/internal/config"
	"github.com/semantica-dev/semantica/internal/embed"
	"github.com/semantica-dev/semantica/internal/errors"
	"github.com/semantica-dev/semantica/internal/ledger"
	"github.com/semantica-dev/semantica/internal/lock"
	"github.com/semantica-dev/semantica/internal/scanner"
	"github.com/semantica-dev/semantica/internal/store"
)

// Pipeline wires the ingestion stages together for one project.
type Pipeline struct {
	cfg    *config.Config
	store  store.VectorStore
	parser chunk.Parser
	ledger *ledger.Ledger
	lock   *lock.Lock
	logger *slog.Logger

	// newProvider is swappable for tests.
	newProvider func() (embed.Provider, error)
}

// New creates a pipeline over the given store.
func New(cfg *config.Config, st store.VectorStore, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:    cfg,
		store:  st,
		parser: chunk.NewTreeSitterParser(nil),
		ledger: ledger.New(cfg.DataDir()),
		lock:   lock.New(cfg.DataDir(), cfg.ProjectRoot, logger),
		logger: logger,
		newProvider: func() (embed.Provider, error) {
			return embed.NewProvider(cfg.Embedding, logger)
		},
	}
}

// Lock exposes the project lock for signal cleanup.
func (p *Pipeline) Lock() *lock.Lock {
	return p.lock
}

// Ledger exposes the change ledger for status reporting and resets.
func (p *Pipeline) Ledger() *ledger.Ledger {
	return p.ledger
}

// IndexCodebase runs the full pipeline: discovery, parsing, embedding,
// storing. Per-file and per-batch failures are recorded; auth and
// model-unavailable errors from the provider abort the run. The run
// succeeds when at least 80% of chunks got embedded. The ledger is
// committed only on success so a failed run re-processes the same
// files next time.
func (p *Pipeline) IndexCodebase(ctx context.Context, onProgress ProgressFunc) (*IndexingResult, error) {
	start := time.Now()

	acquired, err := p.lock.Acquire("indexing")
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, errors.New(errors.KindBusy, "another indexing operation is running")
	}
	defer func() { _ = p.lock.Release() }()

	provider, err := p.newProvider()
	if err != nil {
		return nil, err
	}
	defer func() { _ = provider.Close() }()

	result := &IndexingResult{Errors: make(map[string]string)}

	// Phase 1: discovery.
	records, err := p.discover(ctx)
	if err != nil {
		return nil, err
	}
	result.TotalFiles = len(records)
	emit(onProgress, Progress{Phase: PhaseDiscovery, Current: len(records), Total: len(records)})

	// Phase 2: parsing and chunking, sequential for deterministic
	// chunk ordering.
	chunks := p.parseAndChunk(ctx, records, result.Errors, onProgress)
	result.TotalChunks = len(chunks)

	// Phase 3: embedding with bounded fan-out.
	embedded, err := p.embedChunks(ctx, provider, chunks, result.Errors, onProgress)
	if err != nil {
		return nil, err
	}
	result.EmbeddedChunks = embedded

	// Phase 4: storing.
	stored, storeErr := p.storeChunks(ctx, provider.Dimensions(), withEmbeddings(chunks), result.Errors, onProgress)
	result.StoredChunks = stored
	if storeErr != nil {
		return nil, storeErr
	}

	result.Success = succeeded(result.EmbeddedChunks, result.TotalChunks)
	result.Duration = time.Since(start)

	if result.Success {
		if err := p.commitLedger(records); err != nil {
			p.logger.Warn("ledger commit failed", slog.String("error", err.Error()))
			result.Errors["ledger"] = err.Error()
		}
	}

	p.logger.Info("indexing finished",
		slog.Bool("success", result.Success),
		slog.Int("files", result.TotalFiles),
		slog.Int("chunks", result.TotalChunks),
		slog.Int("embedded", result.EmbeddedChunks),
		slog.Int("errors", len(result.Errors)),
		slog.Duration("duration", result.Duration))
	return result, nil
}

// discover runs the file enumerator with the configured filters.
func (p *Pipeline) discover(ctx context.Context) ([]scanner.FileRecord, error) {
	s := scanner.New(scanner.Options{
		Root:        p.cfg.ProjectRoot,
		Include:     p.cfg.Include,
		Exclude:     p.cfg.Exclude,
		IgnoreRules: p.cfg.IgnoreRules(),
		MaxFileSize: p.cfg.MaxFileSizeBytes(),
	}, p.logger)
	return s.Scan(ctx)
}

// parseAndChunk turns file records into chunks. Per-file errors land in
// errs keyed by relative path.
func (p *Pipeline) parseAndChunk(ctx context.Context, records []scanner.FileRecord, errs map[string]string, onProgress ProgressFunc) []*chunk.Chunk {
	chunker := chunk.NewChunker(chunk.Options{
		MaxTokens:     p.cfg.Chunker.MaxTokens,
		MinTokens:     p.cfg.Chunker.MinTokens,
		MergeSiblings: p.cfg.Chunker.MergeSiblings,
	})

	var chunks []*chunk.Chunk
	for i, rec := range records {
		select {
		case <-ctx.Done():
			return chunks
		default:
		}

		fileChunks, err := p.chunkFile(ctx, chunker, rec)
		if err != nil {
			errs[rec.RelativePath] = err.Error()
		} else {
			chunks = append(chunks, fileChunks...)
		}
		emit(onProgress, Progress{Phase: PhaseParsing, Current: i + 1, Total: len(records)})
	}
	return chunks
}

func (p *Pipeline) chunkFile(ctx context.Context, chunker *chunk.Chunker, rec scanner.FileRecord) ([]*chunk.Chunk, error) {
	source, err := os.ReadFile(rec.AbsolutePath)
	if err != nil {
		return nil, errors.Wrap(errors.KindFile, "read file", err)
	}

	root, err := p.parser.Parse(ctx, source, rec.Language)
	if err != nil {
		return nil, err
	}

	return chunker.Chunk(root, chunk.FileContext{
		RelPath:      rec.RelativePath,
		AbsPath:      rec.AbsolutePath,
		Language:     rec.Language,
		LastModified: rec.LastModified,
		Dependencies: chunk.ExtractDependencies(source, rec.Language),
	}), nil
}

// embedChunks partitions chunks into batches and embeds them with at
// most cfg.Embedding.Concurrency batches in flight. Failed batches are
// recorded under "batch-<startIndex>" and skipped, except for fatal
// kinds (auth, model unavailable): those cancel the remaining batches
// and are returned to abort the run. Returns the number of chunks that
// received vectors.
func (p *Pipeline) embedChunks(ctx context.Context, provider embed.Provider, chunks []*chunk.Chunk, errs map[string]string, onProgress ProgressFunc) (int, error) {
	total := len(chunks)
	if total == 0 {
		return 0, nil
	}

	batchSize := p.cfg.Embedding.BatchSize
	if batchSize <= 0 {
		batchSize = 64
	}

	var mu sync.Mutex
	embedded := 0
	completedBatches := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Embedding.Concurrency)

	for start := 0; start < total; start += batchSize {
		end := start + batchSize
		if end > total {
			end = total
		}
		batch := chunks[start:end]
		startIndex := start

		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}

			texts := make([]string, len(batch))
			for i, c := range batch {
				texts[i] = c.Content
			}

			vectors, err := provider.EmbedBatch(gctx, texts)
			if err != nil && errors.IsFatal(err) {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs[fmt.Sprintf("batch-%d", startIndex)] = err.Error()
			} else {
				for i, vec := range vectors {
					batch[i].Embedding = vec
				}
				embedded += len(batch)
			}
			completedBatches++
			current := completedBatches * batchSize
			if current > total {
				current = total
			}
			emit(onProgress, Progress{Phase: PhaseEmbedding, Current: current, Total: total})
			return nil
		})
	}

	// Goroutines record recoverable failures instead of returning
	// them; Wait only surfaces a fatal error or cancellation.
	if err := g.Wait(); err != nil {
		return embedded, err
	}
	return embedded, nil
}

// storeChunks ensures the collection exists and inserts embedded
// chunks in store batches. Per-batch failures are recorded; a missing
// connection is fatal.
func (p *Pipeline) storeChunks(ctx context.Context, dim int, chunks []*chunk.Chunk, errs map[string]string, onProgress ProgressFunc) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	collection := p.cfg.Store.Collection
	exists, err := p.store.CollectionExists(ctx, collection)
	if err != nil {
		return 0, err
	}
	if !exists {
		if err := p.store.CreateCollection(ctx, collection, dim); err != nil && !errors.IsKind(err, errors.KindCollectionExists) {
			return 0, err
		}
	}

	stored := 0
	for start := 0; start < len(chunks); start += StoreBatchSize {
		end := start + StoreBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		if err := p.store.Insert(ctx, collection, batch); err != nil {
			errs[fmt.Sprintf("store-batch-%d", start)] = err.Error()
		} else {
			stored += len(batch)
		}
		emit(onProgress, Progress{Phase: PhaseStoring, Current: end, Total: len(chunks)})
	}
	return stored, nil
}

func (p *Pipeline) commitLedger(records []scanner.FileRecord) error {
	paths := make([]string, 0, len(records))
	for _, rec := range records {
		paths = append(paths, rec.AbsolutePath)
	}
	return p.ledger.Commit(paths)
}

// withEmbeddings filters to chunks that received a vector.
func withEmbeddings(chunks []*chunk.Chunk) []*chunk.Chunk {
	out := make([]*chunk.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if len(c.Embedding) > 0 {
			out = append(out, c)
		}
	}
	return out
}

// succeeded applies the 80% threshold; an empty run is vacuously
// successful.
func succeeded(embedded, total int) bool {
	if total == 0 {
		return true
	}
	return float64(embedded)/float64(total) >= successThreshold
}

func emit(fn ProgressFunc, p Progress) {
	if fn != nil {
		fn(p)
	}
}
