package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chative-commerce/storefront-agent/internal/agent/model"
	logx "github.com/chative-commerce/storefront-agent/pkg/logger"
)

// DefaultPageSize is how many products are fetched per catalog page.
const DefaultPageSize = 50

// ErrNoStorefront is returned when a tenant has no storefront credentials to
// read its catalog with.
var ErrNoStorefront = errors.New("tenant has no storefront credentials")

type DocumentEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ProductSource pages through a live catalog. next is empty on the last page.
type ProductSource interface {
	ListProducts(ctx context.Context, after string, first int) (products []model.Product, next string, err error)
}

// SourceFunc resolves the live catalog of a tenant.
type SourceFunc func(cfg *model.TenantConfig) (ProductSource, bool)

type TenantLookup interface {
	GetTenant(ctx context.Context, id string) (*model.TenantConfig, error)
}

type Store interface {
	UpsertProducts(ctx context.Context, tenantID string, items []model.IndexedProduct) error
	UpsertFAQs(ctx context.Context, tenantID string, items []model.IndexedFAQ) error
	PruneProducts(ctx context.Context, tenantID string, keep []string) (int64, error)
}

// SyncStats summarises one indexing run.
type SyncStats struct {
	Indexed int
	Pruned  int64
}

type Indexer struct {
	embedder DocumentEmbedder
	store    Store
	tenants  TenantLookup
	source   SourceFunc
	pageSize int
}

func NewIndexer(embedder DocumentEmbedder, store Store, tenants TenantLookup, source SourceFunc) *Indexer {
	return &Indexer{embedder: embedder, store: store, tenants: tenants, source: source, pageSize: DefaultPageSize}
}

// SyncProducts re-embeds the tenant's whole live catalog page by page and
// then removes indexed products that no longer exist.
func (ix *Indexer) SyncProducts(ctx context.Context, tenantID string) (SyncStats, error) {
	var stats SyncStats
	cfg, err := ix.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return stats, fmt.Errorf("load tenant %s: %w", tenantID, err)
	}
	src, ok := ix.source(cfg)
	if !ok {
		return stats, fmt.Errorf("%s: %w", tenantID, ErrNoStorefront)
	}

	seen := make([]string, 0, ix.pageSize)
	cursor := ""
	for page := 1; ; page++ {
		products, next, err := src.ListProducts(ctx, cursor, ix.pageSize)
		if err != nil {
			return stats, fmt.Errorf("list products page %d: %w", page, err)
		}
		kept := make([]model.Product, 0, len(products))
		texts := make([]string, 0, len(products))
		for _, p := range products {
			text := productText(p)
			if text == "" {
				logx.Warn().Str("tenant_id", tenantID).Str("product_id", p.ID).Msg("skipping product without title")
				continue
			}
			kept = append(kept, p)
			texts = append(texts, text)
			seen = append(seen, p.ID)
		}
		if len(kept) > 0 {
			vectors, err := ix.embedder.EmbedBatch(ctx, texts)
			if err != nil {
				return stats, fmt.Errorf("embed products page %d: %w", page, err)
			}
			items := make([]model.IndexedProduct, len(kept))
			for i, p := range kept {
				items[i] = model.IndexedProduct{Product: p, Embedding: vectors[i]}
			}
			if err := ix.store.UpsertProducts(ctx, tenantID, items); err != nil {
				return stats, fmt.Errorf("store products page %d: %w", page, err)
			}
			stats.Indexed += len(items)
		}
		logx.Debug().Str("tenant_id", tenantID).Int("page", page).Int("products", len(products)).Msg("catalog page indexed")
		if next == "" {
			break
		}
		cursor = next
	}

	stats.Pruned, err = ix.store.PruneProducts(ctx, tenantID, seen)
	if err != nil {
		return stats, fmt.Errorf("prune products: %w", err)
	}
	logx.Info().Str("tenant_id", tenantID).Int("indexed", stats.Indexed).Int64("pruned", stats.Pruned).Msg("catalog sync finished")
	return stats, nil
}

// IndexFAQs embeds and stores help articles. Articles with an empty question
// or answer are skipped.
func (ix *Indexer) IndexFAQs(ctx context.Context, tenantID string, faqs []model.FAQ) (int, error) {
	kept := make([]model.FAQ, 0, len(faqs))
	texts := make([]string, 0, len(faqs))
	for _, f := range faqs {
		if strings.TrimSpace(f.Question) == "" || strings.TrimSpace(f.Answer) == "" {
			logx.Warn().Str("tenant_id", tenantID).Str("faq_id", f.ID).Msg("skipping incomplete faq")
			continue
		}
		kept = append(kept, f)
		texts = append(texts, faqText(f))
	}
	if len(kept) == 0 {
		return 0, nil
	}

	vectors, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed faqs: %w", err)
	}
	items := make([]model.IndexedFAQ, len(kept))
	for i, f := range kept {
		items[i] = model.IndexedFAQ{FAQ: f, Embedding: vectors[i]}
	}
	if err := ix.store.UpsertFAQs(ctx, tenantID, items); err != nil {
		return 0, fmt.Errorf("store faqs: %w", err)
	}
	logx.Info().Str("tenant_id", tenantID).Int("faqs", len(items)).Msg("faqs indexed")
	return len(items), nil
}

func productText(p model.Product) string {
	title := strings.TrimSpace(p.Title)
	desc := strings.TrimSpace(p.Description)
	if desc == "" {
		return title
	}
	return title + "\n" + desc
}

func faqText(f model.FAQ) string {
	return strings.TrimSpace(f.Question) + "\n" + strings.TrimSpace(f.Answer)
}
