package retrieval

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/chative-commerce/storefront-agent/internal/agent/model"
	logx "github.com/chative-commerce/storefront-agent/pkg/logger"
)

// QueryEmbedder embeds a search query in query mode.
type QueryEmbedder interface {
	EmbedForQuery(ctx context.Context, text string) ([]float32, error)
}

// Store runs tenant-scoped nearest-neighbour lookups. Rows come back ordered
// by similarity, highest first.
type Store interface {
	MatchProducts(ctx context.Context, tenantID string, embedding []float32, limit int) ([]model.ProductHit, error)
	MatchFAQs(ctx context.Context, tenantID string, embedding []float32, limit int) ([]model.FAQHit, error)
}

type Options struct {
	MinSimilarity float64
	CatalogLimit  int
	FAQLimit      int
}

func DefaultOptions() Options {
	return Options{MinSimilarity: 0.25, CatalogLimit: 5, FAQLimit: 3}
}

// OptionsFromConfig fills unset values with the defaults.
func OptionsFromConfig(cfg model.RetrievalConfig) Options {
	o := DefaultOptions()
	if cfg.MinSimilarity > 0 {
		o.MinSimilarity = cfg.MinSimilarity
	}
	if cfg.CatalogLimit > 0 {
		o.CatalogLimit = cfg.CatalogLimit
	}
	if cfg.FAQLimit > 0 {
		o.FAQLimit = cfg.FAQLimit
	}
	return o
}

type Retriever struct {
	embedder QueryEmbedder
	store    Store
	opts     Options
}

func NewRetriever(embedder QueryEmbedder, store Store, opts Options) *Retriever {
	return &Retriever{embedder: embedder, store: store, opts: opts}
}

// SearchCatalog returns at most limit products at or above the similarity
// floor. limit <= 0 uses the configured default.
func (r *Retriever) SearchCatalog(ctx context.Context, tenantID, query string, limit int) ([]model.ProductHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []model.ProductHit{}, nil
	}
	if limit <= 0 {
		limit = r.opts.CatalogLimit
	}

	vec, err := r.embedder.EmbedForQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed catalog query: %w", err)
	}
	hits, err := r.store.MatchProducts(ctx, tenantID, vec, limit)
	if err != nil {
		return nil, fmt.Errorf("match products: %w", err)
	}
	return floorFilter(hits, limit, r.opts.MinSimilarity, func(h model.ProductHit) float64 { return h.Similarity }), nil
}

// SearchHelp is SearchCatalog for help articles.
func (r *Retriever) SearchHelp(ctx context.Context, tenantID, query string, limit int) ([]model.FAQHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []model.FAQHit{}, nil
	}
	if limit <= 0 {
		limit = r.opts.FAQLimit
	}

	vec, err := r.embedder.EmbedForQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed help query: %w", err)
	}
	hits, err := r.store.MatchFAQs(ctx, tenantID, vec, limit)
	if err != nil {
		return nil, fmt.Errorf("match faqs: %w", err)
	}
	return floorFilter(hits, limit, r.opts.MinSimilarity, func(h model.FAQHit) float64 { return h.Similarity }), nil
}

// Search runs both lookups concurrently with their default limits.
func (r *Retriever) Search(ctx context.Context, tenantID, query string) (model.SearchResult, error) {
	var res model.SearchResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := r.SearchCatalog(gctx, tenantID, query, r.opts.CatalogLimit)
		res.Catalog = hits
		return err
	})
	g.Go(func() error {
		hits, err := r.SearchHelp(gctx, tenantID, query, r.opts.FAQLimit)
		res.Help = hits
		return err
	})
	if err := g.Wait(); err != nil {
		logx.Warn().Err(err).Str("tenant_id", tenantID).Msg("retrieval search failed")
		return model.SearchResult{}, err
	}
	return res, nil
}

func floorFilter[T any](hits []T, limit int, floor float64, score func(T) float64) []T {
	out := make([]T, 0, min(len(hits), limit))
	for _, h := range hits {
		if len(out) == limit {
			break
		}
		if score(h) >= floor {
			out = append(out, h)
		}
	}
	return out
}
