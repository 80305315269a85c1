package store

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/semantica-dev/semantica/internal/chunk"
	"github.com/semantica-dev/semantica/internal/config"
	"github.com/semantica-dev/semantica/internal/errors"
)

// Payload field names. Search filters take these as keys.
const (
	fieldFilePath     = "filePath"
	fieldAbsolutePath = "absolutePath"
	fieldLanguage     = "language"
	fieldStartLine    = "startLine"
	fieldEndLine      = "endLine"
	fieldChunkType    = "chunkType"
	fieldGranularity  = "granularity"
	fieldSymbolName   = "symbolName"
	fieldKeywords     = "keywords"
	fieldContent      = "content"
	fieldTokenCount   = "tokenCount"
	fieldLastModified = "lastModified"
)

// QdrantStore is the qdrant-backed VectorStore. All traffic goes over
// the gRPC API.
type QdrantStore struct {
	host   string
	port   int
	useTLS bool
	apiKey string
	client *qdrant.Client
	logger *slog.Logger
}

var _ VectorStore = (*QdrantStore)(nil)

// NewQdrantStore creates a store from configuration. The connection is
// opened by Connect.
func NewQdrantStore(cfg config.StoreConfig, logger *slog.Logger) *QdrantStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &QdrantStore{
		host:   cfg.Host,
		port:   cfg.Port,
		useTLS: cfg.UseTLS,
		apiKey: cfg.APIKey,
		logger: logger,
	}
}

// Connect opens the gRPC channel. Calling it twice is a no-op.
func (s *QdrantStore) Connect(context.Context) error {
	if s.client != nil {
		return nil
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   s.host,
		Port:   s.port,
		UseTLS: s.useTLS,
		APIKey: s.apiKey,
	})
	if err != nil {
		return errors.Wrap(errors.KindStore, "connect to qdrant", err)
	}
	s.client = client
	return nil
}

// Close shuts the gRPC channel down.
func (s *QdrantStore) Close() error {
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

func (s *QdrantStore) ensureConnected(ctx context.Context) error {
	return s.Connect(ctx)
}

// CreateCollection creates a cosine-distance collection.
func (s *QdrantStore) CreateCollection(ctx context.Context, name string, dim int) error {
	if err := s.ensureConnected(ctx); err != nil {
		return err
	}

	exists, err := s.CollectionExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return errors.Newf(errors.KindCollectionExists, "collection already exists: %s", name)
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return errors.Wrap(errors.KindStore, "create collection", err)
	}

	s.logger.Info("created collection",
		slog.String("collection", name),
		slog.Int("dimensions", dim))
	return nil
}

// DeleteCollection drops the collection. Dropping an absent collection
// is not an error.
func (s *QdrantStore) DeleteCollection(ctx context.Context, name string) error {
	if err := s.ensureConnected(ctx); err != nil {
		return err
	}
	if err := s.client.DeleteCollection(ctx, name); err != nil {
		return errors.Wrap(errors.KindStore, "delete collection", err)
	}
	return nil
}

// CollectionExists reports collection presence.
func (s *QdrantStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	if err := s.ensureConnected(ctx); err != nil {
		return false, err
	}
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return false, errors.Wrap(errors.KindStore, "check collection", err)
	}
	return exists, nil
}

// Insert upserts chunks with wait=true so the write is flushed before
// returning.
func (s *QdrantStore) Insert(ctx context.Context, name string, chunks []*chunk.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := s.requireCollection(ctx, name); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return errors.Newf(errors.KindStore, "chunk %s has no embedding", c.ID)
		}
		points = append(points, pointFromChunk(c))
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: name,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return errors.Wrap(errors.KindStore, "upsert points", err)
	}
	return nil
}

// Search runs a cosine query with server-side score threshold and
// conjunctive equality filters.
func (s *QdrantStore) Search(ctx context.Context, name string, vector []float32, opts SearchOptions) ([]Result, error) {
	if err := s.requireCollection(ctx, name); err != nil {
		return nil, err
	}
	if opts.Limit <= 0 {
		opts.Limit = 10
	}

	query := &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(opts.Limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         buildFilter(opts.Filters),
	}
	if opts.MinScore > 0 {
		query.ScoreThreshold = qdrant.PtrOf(opts.MinScore)
	}

	points, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(errors.KindSearch, "query collection", err)
	}

	results := make([]Result, 0, len(points))
	for _, p := range points {
		results = append(results, resultFromPoint(p))
	}
	return results, nil
}

// Delete removes points by id.
func (s *QdrantStore) Delete(ctx context.Context, name string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.requireCollection(ctx, name); err != nil {
		return err
	}

	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewIDUUID(id))
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: name,
		Points:         qdrant.NewPointsSelector(pointIDs...),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return errors.Wrap(errors.KindStore, "delete points", err)
	}
	return nil
}

// DeleteByFilePath removes every chunk whose filePath payload matches.
func (s *QdrantStore) DeleteByFilePath(ctx context.Context, name string, filePath string) error {
	if err := s.requireCollection(ctx, name); err != nil {
		return err
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: name,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(fieldFilePath, filePath)},
		}),
		Wait: qdrant.PtrOf(true),
	})
	if err != nil {
		return errors.Wrap(errors.KindStore, "delete points by file path", err)
	}
	return nil
}

// CountByFilePath counts the chunks stored for one file.
func (s *QdrantStore) CountByFilePath(ctx context.Context, name string, filePath string) (uint64, error) {
	if err := s.requireCollection(ctx, name); err != nil {
		return 0, err
	}
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: name,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(fieldFilePath, filePath)},
		},
	})
	if err != nil {
		return 0, errors.Wrap(errors.KindStore, "count points", err)
	}
	return count, nil
}

// GetStats summarizes the collection.
func (s *QdrantStore) GetStats(ctx context.Context, name string) (Stats, error) {
	if err := s.requireCollection(ctx, name); err != nil {
		return Stats{}, err
	}

	info, err := s.client.GetCollectionInfo(ctx, name)
	if err != nil {
		return Stats{}, errors.Wrap(errors.KindStore, "collection info", err)
	}

	stats := Stats{
		PointsCount:   info.GetPointsCount(),
		SegmentsCount: info.GetSegmentsCount(),
		Status:        info.GetStatus().String(),
	}
	if params := info.GetConfig().GetParams().GetVectorsConfig().GetParams(); params != nil {
		stats.VectorDim = int(params.GetSize())
	}
	return stats, nil
}

// HealthCheck probes the backend.
func (s *QdrantStore) HealthCheck(ctx context.Context) bool {
	if err := s.ensureConnected(ctx); err != nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.client.HealthCheck(ctx); err != nil {
		s.logger.Debug("qdrant health check failed", slog.String("error", err.Error()))
		return false
	}
	return true
}

func (s *QdrantStore) requireCollection(ctx context.Context, name string) error {
	exists, err := s.CollectionExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return errors.Newf(errors.KindCollectionNotFound, "collection not found: %s", name)
	}
	return nil
}

// buildFilter converts equality filters to a conjunctive qdrant filter.
// Nil is returned for an empty map so unfiltered queries stay
// unfiltered.
func buildFilter(filters map[string]string) *qdrant.Filter {
	if len(filters) == 0 {
		return nil
	}
	conditions := make([]*qdrant.Condition, 0, len(filters))
	for key, value := range filters {
		conditions = append(conditions, qdrant.NewMatch(key, value))
	}
	return &qdrant.Filter{Must: conditions}
}

// pointFromChunk flattens a chunk into a qdrant point. Keywords are
// stored comma-joined; they never contain commas themselves.
func pointFromChunk(c *chunk.Chunk) *qdrant.PointStruct {
	m := c.Metadata
	return &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(c.ID),
		Vectors: qdrant.NewVectors(c.Embedding...),
		Payload: map[string]*qdrant.Value{
			fieldFilePath:     qdrant.NewValueString(m.FilePath),
			fieldAbsolutePath: qdrant.NewValueString(m.AbsolutePath),
			fieldLanguage:     qdrant.NewValueString(m.Language),
			fieldStartLine:    qdrant.NewValueInt(int64(m.StartLine)),
			fieldEndLine:      qdrant.NewValueInt(int64(m.EndLine)),
			fieldChunkType:    qdrant.NewValueString(string(m.ChunkType)),
			fieldGranularity:  qdrant.NewValueString(m.Granularity),
			fieldSymbolName:   qdrant.NewValueString(m.SymbolName),
			fieldKeywords:     qdrant.NewValueString(strings.Join(m.Keywords, ",")),
			fieldContent:      qdrant.NewValueString(c.Content),
			fieldTokenCount:   qdrant.NewValueInt(int64(m.TokenCount)),
			fieldLastModified: qdrant.NewValueString(m.LastModified.UTC().Format(time.RFC3339)),
		},
	}
}

// resultFromPoint rebuilds a Result from a scored point's payload.
func resultFromPoint(p *qdrant.ScoredPoint) Result {
	payload := p.GetPayload()

	var keywords []string
	if joined := payload[fieldKeywords].GetStringValue(); joined != "" {
		keywords = strings.Split(joined, ",")
	}

	lastModified, _ := time.Parse(time.RFC3339, payload[fieldLastModified].GetStringValue())

	return Result{
		ID:      p.GetId().GetUuid(),
		Score:   p.GetScore(),
		Content: payload[fieldContent].GetStringValue(),
		Metadata: chunk.Metadata{
			FilePath:     payload[fieldFilePath].GetStringValue(),
			AbsolutePath: payload[fieldAbsolutePath].GetStringValue(),
			Language:     payload[fieldLanguage].GetStringValue(),
			StartLine:    int(payload[fieldStartLine].GetIntegerValue()),
			EndLine:      int(payload[fieldEndLine].GetIntegerValue()),
			ChunkType:    chunk.ChunkType(payload[fieldChunkType].GetStringValue()),
			Granularity:  payload[fieldGranularity].GetStringValue(),
			SymbolName:   payload[fieldSymbolName].GetStringValue(),
			Keywords:     keywords,
			TokenCount:   int(payload[fieldTokenCount].GetIntegerValue()),
			LastModified: lastModified,
		},
	}
}
