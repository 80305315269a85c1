package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/semantica-dev/semantica/internal/errors"
)

// modelPricing is USD per million tokens for known remote models.
// Unknown models estimate at the default rate rather than zero so cost
// warnings never undershoot silently.
var modelPricing = map[string]float64{
	"text-embedding-3-small": 0.02,
	"text-embedding-3-large": 0.13,
	"text-embedding-ada-002": 0.10,
}

const defaultPricePerMillion = 0.10

// RemoteProvider talks to an OpenAI-compatible embeddings API with a
// native batch endpoint. Concurrency is bounded by a semaphore and
// request rate by a limiter; token usage is tracked for cost reporting.
type RemoteProvider struct {
	baseURL     string
	apiKey      string
	model       string
	dimensions  int
	client      *http.Client
	sem         *semaphore.Weighted
	limiter     *rate.Limiter
	logger      *slog.Logger
	totalTokens atomic.Int64

	encoderOnce sync.Once
	encoder     *tiktoken.Tiktoken
}

var _ Provider = (*RemoteProvider)(nil)

// RemoteOptions configure the remote provider.
type RemoteOptions struct {
	BaseURL           string // default https://api.openai.com
	APIKey            string
	Model             string
	Dimensions        int
	Concurrency       int // max requests in flight, default 3
	RequestsPerMinute int // 0 disables rate limiting
	Timeout           time.Duration
	Logger            *slog.Logger
}

// NewRemoteProvider creates a provider against a remote embeddings API.
func NewRemoteProvider(opts RemoteOptions) (*RemoteProvider, error) {
	if opts.APIKey == "" {
		return nil, errors.New(errors.KindConfig, "remote embedding provider requires an API key")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.openai.com"
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 3
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(opts.RequestsPerMinute)/60.0), opts.RequestsPerMinute)
	}

	return &RemoteProvider{
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		model:      opts.Model,
		dimensions: opts.Dimensions,
		client:     &http.Client{Timeout: opts.Timeout},
		sem:        semaphore.NewWeighted(int64(opts.Concurrency)),
		limiter:    limiter,
		logger:     opts.Logger,
	}, nil
}

func (p *RemoteProvider) Name() string      { return ProviderRemote }
func (p *RemoteProvider) ModelName() string { return p.model }
func (p *RemoteProvider) Dimensions() int   { return p.dimensions }
func (p *RemoteProvider) MaxTokens() int    { return 8191 }

// EstimateCost converts a token count to USD using the model's price.
func (p *RemoteProvider) EstimateCost(tokens int) float64 {
	price, ok := modelPricing[p.model]
	if !ok {
		price = defaultPricePerMillion
	}
	return float64(tokens) * price / 1e6
}

// TotalTokens reports the tokens consumed since creation.
func (p *RemoteProvider) TotalTokens() int64 {
	return p.totalTokens.Load()
}

// Embed produces the vector for one text.
func (p *RemoteProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts, splitting batches above the API's 2048-text
// ceiling into ordered sub-batches and concatenating the results.
func (p *RemoteProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatchTexts {
		end := start + maxBatchTexts
		if end > len(texts) {
			end = len(texts)
		}
		sub, err := p.embedSubBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, sub...)
	}
	return vectors, nil
}

type remoteEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type remoteEmbedDatum struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

type remoteEmbedResponse struct {
	Data  []remoteEmbedDatum `json:"data"`
	Usage struct {
		TotalTokens int64 `json:"total_tokens"`
	} `json:"usage"`
}

func (p *RemoteProvider) embedSubBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.sem.Release(1)

	var out remoteEmbedResponse
	err := withRetry(ctx, func() error {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
		return p.doRequest(ctx, texts, &out)
	})
	if err != nil {
		return nil, err
	}

	if len(out.Data) != len(texts) {
		return nil, errors.Newf(errors.KindEmbedding,
			"embedding API returned %d vectors for %d texts", len(out.Data), len(texts))
	}

	// The API may return data out of order; the index field is
	// authoritative.
	sort.Slice(out.Data, func(i, j int) bool { return out.Data[i].Index < out.Data[j].Index })

	if out.Usage.TotalTokens > 0 {
		p.totalTokens.Add(out.Usage.TotalTokens)
	} else {
		var n int64
		for _, t := range texts {
			n += int64(p.countTokens(t))
		}
		p.totalTokens.Add(n)
	}

	vectors := make([][]float32, len(out.Data))
	for i, d := range out.Data {
		if p.dimensions > 0 && len(d.Embedding) != p.dimensions {
			return nil, errors.Newf(errors.KindEmbedding,
				"dimension mismatch: model returned %d, configured %d", len(d.Embedding), p.dimensions)
		}
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

func (p *RemoteProvider) doRequest(ctx context.Context, texts []string, out *remoteEmbedResponse) error {
	body, err := json.Marshal(remoteEmbedRequest{Model: p.model, Input: texts})
	if err != nil {
		return errors.Wrap(errors.KindInternal, "encode embeddings request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(errors.KindInternal, "build embeddings request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return networkError(err, "embedding API unreachable")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return classifyHTTPError(resp, p.model)
	}

	*out = remoteEmbedResponse{}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(errors.KindEmbedding, "decode embeddings response", err)
	}
	return nil
}

// countTokens counts tokens with the model's encoding, falling back to
// a whitespace split when no encoding is available. The encoding table
// is loaded lazily: most responses report usage directly and never
// need it.
func (p *RemoteProvider) countTokens(text string) int {
	p.encoderOnce.Do(func() {
		enc, err := tiktoken.EncodingForModel(p.model)
		if err != nil {
			enc, err = tiktoken.GetEncoding("cl100k_base")
			if err != nil {
				p.logger.Debug("no token encoding available", slog.String("model", p.model))
				return
			}
		}
		p.encoder = enc
	})
	if p.encoder != nil {
		return len(p.encoder.Encode(text, nil, nil))
	}
	return len(strings.Fields(text))
}

// HealthCheck probes the models endpoint with the configured key.
func (p *RemoteProvider) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Debug("remote provider health check failed", slog.String("error", err.Error()))
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// Close is a no-op for the HTTP client.
func (p *RemoteProvider) Close() error { return nil }
