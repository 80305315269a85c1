package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/semantica-dev/semantica/internal/errors"
)

// LocalProvider talks to a local embedding daemon (Ollama-compatible
// API). Requests are sequential per text; the daemon does the batching
// internally and usage is free.
type LocalProvider struct {
	baseURL    string
	model      string
	dimensions int
	client     *http.Client
	logger     *slog.Logger
}

var _ Provider = (*LocalProvider)(nil)

// LocalOptions configure the local provider.
type LocalOptions struct {
	BaseURL    string // daemon address, default http://localhost:11434
	Model      string
	Dimensions int
	Timeout    time.Duration
	Logger     *slog.Logger
}

// NewLocalProvider creates a provider against a local daemon.
func NewLocalProvider(opts LocalOptions) *LocalProvider {
	if opts.BaseURL == "" {
		opts.BaseURL = "http://localhost:11434"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &LocalProvider{
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		model:      opts.Model,
		dimensions: opts.Dimensions,
		client:     &http.Client{Timeout: opts.Timeout},
		logger:     opts.Logger,
	}
}

func (p *LocalProvider) Name() string      { return ProviderLocal }
func (p *LocalProvider) ModelName() string { return p.model }
func (p *LocalProvider) Dimensions() int   { return p.dimensions }
func (p *LocalProvider) MaxTokens() int    { return 8192 }

// EstimateCost is always zero: the daemon runs on local hardware.
func (p *LocalProvider) EstimateCost(int) float64 { return 0 }

type localEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type localEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed requests the vector for one text, with retry.
func (p *LocalProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := withRetry(ctx, func() error {
		v, err := p.embedOnce(ctx, text)
		if err != nil {
			return err
		}
		vec = v
		return nil
	})
	return vec, err
}

func (p *LocalProvider) embedOnce(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(localEmbedRequest{Model: p.model, Prompt: text})
	if err != nil {
		return nil, errors.Wrap(errors.KindInternal, "encode embed request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(errors.KindInternal, "build embed request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, networkError(err, "embedding daemon unreachable")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(resp, p.model)
	}

	var out localEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(errors.KindEmbedding, "decode embed response", err)
	}
	if len(out.Embedding) == 0 {
		return nil, errors.New(errors.KindEmbedding, "daemon returned an empty embedding")
	}
	if p.dimensions > 0 && len(out.Embedding) != p.dimensions {
		return nil, errors.Newf(errors.KindEmbedding,
			"dimension mismatch: model returned %d, configured %d", len(out.Embedding), p.dimensions)
	}
	return out.Embedding, nil
}

// EmbedBatch loops over texts sequentially; the daemon exposes no
// native batch endpoint worth using.
func (p *LocalProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for i, text := range texts {
		vec, err := p.Embed(ctx, text)
		if err != nil {
			return nil, errors.Wrap(errors.KindEmbedding, fmt.Sprintf("embed text %d of %d", i+1, len(texts)), err)
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

// HealthCheck probes the daemon's model listing endpoint.
func (p *LocalProvider) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Debug("local provider health check failed", slog.String("error", err.Error()))
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// Close is a no-op for the HTTP client.
func (p *LocalProvider) Close() error { return nil }
