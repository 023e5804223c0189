package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/chative-commerce/storefront-agent/internal/agent/model"
	errx "github.com/chative-commerce/storefront-agent/internal/core/error"
	logx "github.com/chative-commerce/storefront-agent/pkg/logger"
	"github.com/chative-commerce/storefront-agent/pkg/retry"
)

// InputType tells the provider whether a text is indexed or searched with.
type InputType string

const (
	InputDocument InputType = "document"
	InputQuery    InputType = "query"
)

// MaxBatchSize is the provider's per-request input limit.
const MaxBatchSize = 128

const serviceName = "embedding"

var (
	// ErrEmptyInput is returned before any network call when a text is blank.
	ErrEmptyInput = errors.New("embedding input must not be empty")
	// ErrDimensionMismatch means the provider returned vectors of a size the
	// store cannot hold.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

type embedRequest struct {
	Model     string    `json:"model"`
	Input     []string  `json:"input"`
	InputType InputType `json:"input_type"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

type Gateway struct {
	client    *resty.Client
	model     string
	batchSize int
	dims      int
	policy    retry.Policy
}

func NewGateway(cfg model.EmbeddingConfig, policy retry.Policy) *Gateway {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(cfg.APIKey)

	size := cfg.BatchSize
	if size <= 0 || size > MaxBatchSize {
		size = MaxBatchSize
	}
	return &Gateway{client: client, model: cfg.Model, batchSize: size, dims: cfg.Dimensions, policy: policy}
}

// Embed embeds one text for indexing.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	return g.embedOne(ctx, text, InputDocument)
}

// EmbedForQuery embeds one text for similarity search.
func (g *Gateway) EmbedForQuery(ctx context.Context, text string) ([]float32, error) {
	return g.embedOne(ctx, text, InputQuery)
}

// EmbedBatch embeds texts for indexing; out[i] belongs to texts[i].
func (g *Gateway) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return g.embedMany(ctx, texts, InputDocument)
}

func (g *Gateway) embedOne(ctx context.Context, text string, mode InputType) ([]float32, error) {
	out, err := g.embedMany(ctx, []string{text}, mode)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (g *Gateway) embedMany(ctx context.Context, texts []string, mode InputType) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("input %d: %w", i, ErrEmptyInput)
		}
	}

	out := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += g.batchSize {
		end := min(start+g.batchSize, len(texts))
		chunk := texts[start:end]

		resp, err := retry.Do(ctx, g.policy, "embeddings", func(ctx context.Context) (*embedResponse, error) {
			return g.call(ctx, chunk, mode)
		})
		if err != nil {
			return nil, err
		}

		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(chunk) {
				return nil, fmt.Errorf("embedding response index %d out of range for chunk of %d", d.Index, len(chunk))
			}
			if g.dims > 0 && len(d.Embedding) != g.dims {
				return nil, fmt.Errorf("model %s returned %d values, want %d: %w", g.model, len(d.Embedding), g.dims, ErrDimensionMismatch)
			}
			out[start+d.Index] = d.Embedding
		}
		for i := start; i < end; i++ {
			if out[i] == nil {
				return nil, fmt.Errorf("embedding response missing index %d", i-start)
			}
		}

		logx.Debug().
			Int("chunk_start", start).
			Int("chunk_size", len(chunk)).
			Int("tokens", resp.Usage.TotalTokens).
			Str("input_type", string(mode)).
			Msg("embedded chunk")
	}
	return out, nil
}

func (g *Gateway) call(ctx context.Context, chunk []string, mode InputType) (*embedResponse, error) {
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(embedRequest{Model: g.model, Input: chunk, InputType: mode}).
		Post("/v1/embeddings")
	if err != nil {
		return nil, fmt.Errorf("embeddings request: %w", err)
	}
	if resp.IsError() {
		return nil, errx.NewUpstream(serviceName, resp.StatusCode(), resp.String(), resp.Header().Get("Retry-After"))
	}
	var result embedResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("decode embeddings response: %w", err)
	}
	return &result, nil
}
