package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semantica-dev/semantica/internal/errors"
)

func remoteAPI(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func newTestRemote(t *testing.T, baseURL string) *RemoteProvider {
	t.Helper()
	p, err := NewRemoteProvider(RemoteOptions{
		BaseURL:    baseURL,
		APIKey:     "test-key",
		Model:      "text-embedding-3-small",
		Dimensions: 2,
	})
	require.NoError(t, err)
	return p
}

func TestRemoteRequiresAPIKey(t *testing.T) {
	_, err := NewRemoteProvider(RemoteOptions{Model: "m"})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindConfig))
}

func TestRemoteEmbedBatchSortsByIndex(t *testing.T) {
	srv := remoteAPI(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/embeddings", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req remoteEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Input, 3)

		// Deliberately out of order: index is authoritative.
		resp := remoteEmbedResponse{Data: []remoteEmbedDatum{
			{Index: 2, Embedding: []float32{2, 2}},
			{Index: 0, Embedding: []float32{0, 0}},
			{Index: 1, Embedding: []float32{1, 1}},
		}}
		resp.Usage.TotalTokens = 9
		_ = json.NewEncoder(w).Encode(resp)
	})

	p := newTestRemote(t, srv.URL)
	vectors, err := p.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)

	require.Len(t, vectors, 3)
	assert.Equal(t, []float32{0, 0}, vectors[0])
	assert.Equal(t, []float32{1, 1}, vectors[1])
	assert.Equal(t, []float32{2, 2}, vectors[2])
	assert.Equal(t, int64(9), p.TotalTokens())
}

func TestRemoteEmbedCountMismatch(t *testing.T) {
	srv := remoteAPI(t, func(w http.ResponseWriter, r *http.Request) {
		resp := remoteEmbedResponse{Data: []remoteEmbedDatum{{Index: 0, Embedding: []float32{1, 1}}}}
		resp.Usage.TotalTokens = 1
		_ = json.NewEncoder(w).Encode(resp)
	})

	p := newTestRemote(t, srv.URL)
	_, err := p.EmbedBatch(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindEmbedding))
}

func TestRemoteAuthErrorIsFatal(t *testing.T) {
	var calls atomic.Int32
	srv := remoteAPI(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	})

	p := newTestRemote(t, srv.URL)
	_, err := p.Embed(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindAuth))
	assert.True(t, errors.IsFatal(err))
	// Fatal errors are not retried.
	assert.Equal(t, int32(1), calls.Load())
}

func TestRemoteMissingModelIsFatal(t *testing.T) {
	srv := remoteAPI(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "the model does not exist", http.StatusNotFound)
	})

	p := newTestRemote(t, srv.URL)
	_, err := p.Embed(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindModelUnavailable))
	assert.True(t, errors.IsFatal(err))
}

func TestRemoteRateLimitIsRetryable(t *testing.T) {
	var calls atomic.Int32
	srv := remoteAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		resp := remoteEmbedResponse{Data: []remoteEmbedDatum{{Index: 0, Embedding: []float32{1, 1}}}}
		resp.Usage.TotalTokens = 1
		_ = json.NewEncoder(w).Encode(resp)
	})

	p := newTestRemote(t, srv.URL)
	vec, err := p.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1}, vec)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRemoteEstimateCost(t *testing.T) {
	p := newTestRemote(t, "http://unused")
	assert.InDelta(t, 0.02, p.EstimateCost(1_000_000), 1e-9)
	assert.InDelta(t, 0.002, p.EstimateCost(100_000), 1e-9)

	unknown, err := NewRemoteProvider(RemoteOptions{APIKey: "k", Model: "custom-model"})
	require.NoError(t, err)
	assert.InDelta(t, 0.10, unknown.EstimateCost(1_000_000), 1e-9)
}

func TestRemoteEmptyBatch(t *testing.T) {
	p := newTestRemote(t, "http://unused")
	vectors, err := p.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}
