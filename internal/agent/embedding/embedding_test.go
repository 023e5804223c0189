package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chative-commerce/storefront-agent/internal/agent/model"
	errx "github.com/chative-commerce/storefront-agent/internal/core/error"
	"github.com/chative-commerce/storefront-agent/pkg/retry"
)

var testPolicy = retry.Policy{
	MaxRetries:    3,
	InitialDelay:  time.Millisecond,
	MaxDelay:      5 * time.Millisecond,
	BackoffFactor: 2,
}

func newTestGateway(url string, batch int) *Gateway {
	return NewGateway(model.EmbeddingConfig{
		APIKey:    "test-key",
		BaseURL:   url,
		Model:     "voyage-test",
		BatchSize: batch,
		Timeout:   5 * time.Second,
	}, testPolicy)
}

// textIndex decodes "t-<n>" into n so the fake provider can echo a
// recognizable vector for every input.
func textIndex(t string) float32 {
	n, _ := strconv.Atoi(strings.TrimPrefix(t, "t-"))
	return float32(n)
}

func reversingServer(t *testing.T, calls *int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		var req embedRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		type item struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]item, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, item{Embedding: []float32{textIndex(req.Input[i])}, Index: i})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
}

func TestEmbedBatch_PreservesOrderAcrossChunks(t *testing.T) {
	var calls int32
	srv := reversingServer(t, &calls)
	defer srv.Close()

	g := newTestGateway(srv.URL, 128)
	texts := make([]string, 300)
	for i := range texts {
		texts[i] = fmt.Sprintf("t-%d", i)
	}

	vecs, err := g.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, 300)
	for i, v := range vecs {
		assert.Equal(t, []float32{float32(i)}, v, "index %d", i)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestEmbed_RetriesRateLimitThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"detail":"rate limited"}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2],"index":0}]}`))
	}))
	defer srv.Close()

	vec, err := newTestGateway(srv.URL, 0).Embed(context.Background(), "blue shoes")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, vec)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestEmbed_NonRateLimitFailsWithoutRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestGateway(srv.URL, 0).EmbedForQuery(context.Background(), "x")
	require.Error(t, err)
	var up *errx.UpstreamError
	require.ErrorAs(t, err, &up)
	assert.Equal(t, http.StatusBadRequest, up.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestEmbed_ExhaustedRetriesCarryStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestGateway(srv.URL, 0).Embed(context.Background(), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, retry.ErrExhausted)
	assert.True(t, errx.IsRateLimited(err))
	assert.Equal(t, int32(testPolicy.MaxRetries+1), atomic.LoadInt32(&calls))
}

func TestEmbed_BlankInputIsLocalError(t *testing.T) {
	var calls int32
	srv := reversingServer(t, &calls)
	defer srv.Close()
	g := newTestGateway(srv.URL, 0)

	_, err := g.Embed(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = g.EmbedBatch(context.Background(), []string{"t-1", "\n"})
	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestEmbed_QueryModeIsSent(t *testing.T) {
	var got InputType
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		got = req.InputType
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[{"embedding":[1],"index":0}]}`))
	}))
	defer srv.Close()

	_, err := newTestGateway(srv.URL, 0).EmbedForQuery(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, InputQuery, got)
}

func TestEmbed_RejectsUnexpectedDimensions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3],"index":0}]}`))
	}))
	defer srv.Close()

	g := NewGateway(model.EmbeddingConfig{BaseURL: srv.URL, Model: "voyage-test", Dimensions: 4}, testPolicy)
	_, err := g.Embed(context.Background(), "mug")
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	g = NewGateway(model.EmbeddingConfig{BaseURL: srv.URL, Model: "voyage-test", Dimensions: 3}, testPolicy)
	v, err := g.Embed(context.Background(), "mug")
	require.NoError(t, err)
	assert.Len(t, v, 3)
}
