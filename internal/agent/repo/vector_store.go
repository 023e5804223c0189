package repo

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/chative-commerce/storefront-agent/internal/agent/model"
	errx "github.com/chative-commerce/storefront-agent/internal/core/error"
	logx "github.com/chative-commerce/storefront-agent/pkg/logger"
)

// VectorStore keeps the per-tenant product and FAQ embeddings in pgvector
// tables and answers nearest-neighbour queries through the match_* functions.
type VectorStore struct {
	db *pgxpool.Pool
}

func NewVectorStore(db *pgxpool.Pool) *VectorStore {
	return &VectorStore{db: db}
}

// MatchProducts returns up to limit products of tenantID ordered by
// descending similarity to embedding.
func (s *VectorStore) MatchProducts(ctx context.Context, tenantID string, embedding []float32, limit int) ([]model.ProductHit, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, handle, title, description, price::text, currency, variant_id, similarity
		FROM match_products($1::vector, $2, $3)`,
		vectorLiteral(embedding), tenantID, limit,
	)
	if err != nil {
		logx.Error().Err(err).Str("tenant_id", tenantID).Msg("match_products failed")
		return nil, errx.WrapPostgres(err)
	}
	defer rows.Close()

	hits := make([]model.ProductHit, 0, limit)
	for rows.Next() {
		var (
			h     model.ProductHit
			price string
		)
		if err := rows.Scan(&h.ID, &h.Handle, &h.Title, &h.Description, &price, &h.Currency, &h.VariantID, &h.Similarity); err != nil {
			return nil, fmt.Errorf("scan product hit: %w", err)
		}
		if h.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parse price %q of %s: %w", price, h.ID, err)
		}
		h.Similarity = clampSimilarity(h.Similarity)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.WrapPostgres(err)
	}
	return hits, nil
}

func (s *VectorStore) MatchFAQs(ctx context.Context, tenantID string, embedding []float32, limit int) ([]model.FAQHit, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, question, answer, similarity
		FROM match_faqs($1::vector, $2, $3)`,
		vectorLiteral(embedding), tenantID, limit,
	)
	if err != nil {
		logx.Error().Err(err).Str("tenant_id", tenantID).Msg("match_faqs failed")
		return nil, errx.WrapPostgres(err)
	}
	defer rows.Close()

	hits := make([]model.FAQHit, 0, limit)
	for rows.Next() {
		var h model.FAQHit
		if err := rows.Scan(&h.ID, &h.Question, &h.Answer, &h.Similarity); err != nil {
			return nil, fmt.Errorf("scan faq hit: %w", err)
		}
		h.Similarity = clampSimilarity(h.Similarity)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.WrapPostgres(err)
	}
	return hits, nil
}

// UpsertProducts writes products in one batch.
func (s *VectorStore) UpsertProducts(ctx context.Context, tenantID string, items []model.IndexedProduct) error {
	if len(items) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, it := range items {
		p := it.Product
		batch.Queue(`
			INSERT INTO products (tenant_id, id, handle, title, description, price, currency, variant_id, available, embedding, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9, $10::vector, now())
			ON CONFLICT (tenant_id, id) DO UPDATE SET
				handle = EXCLUDED.handle,
				title = EXCLUDED.title,
				description = EXCLUDED.description,
				price = EXCLUDED.price,
				currency = EXCLUDED.currency,
				variant_id = EXCLUDED.variant_id,
				available = EXCLUDED.available,
				embedding = EXCLUDED.embedding,
				updated_at = now()`,
			tenantID, p.ID, p.Handle, p.Title, p.Description, p.Price.StringFixed(2),
			p.Currency, p.DefaultVariantID(), p.Available, vectorLiteral(it.Embedding),
		)
	}
	return s.sendBatch(ctx, batch)
}

func (s *VectorStore) UpsertFAQs(ctx context.Context, tenantID string, items []model.IndexedFAQ) error {
	if len(items) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(`
			INSERT INTO faqs (tenant_id, id, question, answer, embedding, updated_at)
			VALUES ($1, $2, $3, $4, $5::vector, now())
			ON CONFLICT (tenant_id, id) DO UPDATE SET
				question = EXCLUDED.question,
				answer = EXCLUDED.answer,
				embedding = EXCLUDED.embedding,
				updated_at = now()`,
			tenantID, it.FAQ.ID, it.FAQ.Question, it.FAQ.Answer, vectorLiteral(it.Embedding),
		)
	}
	return s.sendBatch(ctx, batch)
}

// PruneProducts deletes the tenant's products whose id is not in keep and
// reports how many rows went away.
func (s *VectorStore) PruneProducts(ctx context.Context, tenantID string, keep []string) (int64, error) {
	if keep == nil {
		keep = []string{}
	}
	tag, err := s.db.Exec(ctx,
		`DELETE FROM products WHERE tenant_id = $1 AND NOT (id = ANY($2))`,
		tenantID, keep,
	)
	if err != nil {
		return 0, errx.WrapPostgres(err)
	}
	return tag.RowsAffected(), nil
}

func (s *VectorStore) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	br := s.db.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("batch statement %d: %w", i, errx.WrapPostgres(err))
		}
	}
	return errx.WrapPostgres(br.Close())
}

// vectorLiteral renders v in pgvector's text input format.
func vectorLiteral(v []float32) string {
	var sb strings.Builder
	sb.Grow(len(v)*10 + 2)
	sb.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(x), 'g', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}

// clampSimilarity maps cosine similarity onto [0,1]; opposite vectors count as unrelated.
func clampSimilarity(s float64) float64 {
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}
