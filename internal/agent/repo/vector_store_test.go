package repo

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4/source"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chative-commerce/storefront-agent/internal/agent/model"
	errx "github.com/chative-commerce/storefront-agent/internal/core/error"
)

func TestVectorLiteral(t *testing.T) {
	assert.Equal(t, "[]", vectorLiteral(nil))
	assert.Equal(t, "[0.5,-1,0.125]", vectorLiteral([]float32{0.5, -1, 0.125}))
	assert.Equal(t, "[0.1]", vectorLiteral([]float32{0.1}))
}

func TestClampSimilarity(t *testing.T) {
	assert.Equal(t, 0.0, clampSimilarity(-0.3))
	assert.Equal(t, 0.42, clampSimilarity(0.42))
	assert.Equal(t, 1.0, clampSimilarity(1.0000001))
}

func readUp(t *testing.T, src source.Driver, version uint) string {
	t.Helper()
	r, ident, err := src.ReadUp(version)
	require.NoError(t, err)
	defer r.Close()
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.NotEmpty(t, ident)
	return string(b)
}

func TestMigrationSourceIsOrdered(t *testing.T) {
	src, err := migrationSource()
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	second, err := src.Next(first)
	require.NoError(t, err)
	third, err := src.Next(second)
	require.NoError(t, err)
	assert.Equal(t, []uint{2, 3}, []uint{second, third})

	_, err = src.Next(third)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	assert.Contains(t, readUp(t, src, second), "CREATE EXTENSION IF NOT EXISTS vector")
	fns := readUp(t, src, third)
	assert.True(t, strings.Contains(fns, "match_products") && strings.Contains(fns, "match_faqs"))
}

// testPool connects to TEST_DATABASE_URL, a scratch database with pgvector
// available. Tests using it are skipped when the variable is unset.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = Migrate(ctx, pool)
	require.NoError(t, err)
	return pool
}

func unitVector(hot int) []float32 {
	v := make([]float32, 512)
	v[hot] = 1
	return v
}

func TestVectorStore_Postgres(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()

	_, err := pool.Exec(ctx, `
		INSERT INTO tenants (id, name, custom_instructions, store_domain, storefront_token)
		VALUES ('repo-test', 'Repo Test', 'Be brief.', 'repo.myshopify.com', 'sf')
		ON CONFLICT (id) DO NOTHING`)
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = pool.Exec(ctx, `DELETE FROM tenants WHERE id = 'repo-test'`) })

	tenants := NewTenantStore(pool)
	cfg, err := tenants.GetTenant(ctx, "repo-test")
	require.NoError(t, err)
	assert.Equal(t, "Be brief.", cfg.CustomInstructions)
	assert.True(t, cfg.Commerce.HasStorefront())
	assert.False(t, cfg.Commerce.HasAdmin())

	_, err = tenants.GetTenant(ctx, "no-such-tenant")
	assert.True(t, errors.Is(err, errx.ErrNotFound))

	store := NewVectorStore(pool)
	require.NoError(t, store.UpsertProducts(ctx, "repo-test", []model.IndexedProduct{
		{Product: model.Product{ID: "p1", Handle: "red", Title: "Red Shoe", Price: decimal.RequireFromString("19.5"), Currency: "USD", Available: true}, Embedding: unitVector(0)},
		{Product: model.Product{ID: "p2", Handle: "blue", Title: "Blue Shoe", Price: decimal.RequireFromString("24.99"), Currency: "USD", Available: true}, Embedding: unitVector(1)},
	}))
	require.NoError(t, store.UpsertFAQs(ctx, "repo-test", []model.IndexedFAQ{
		{FAQ: model.FAQ{ID: "f1", Question: "Returns?", Answer: "30 days."}, Embedding: unitVector(2)},
	}))

	hits, err := store.MatchProducts(ctx, "repo-test", unitVector(1), 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "p2", hits[0].ID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-6)
	assert.True(t, hits[0].Price.Equal(decimal.RequireFromString("24.99")))
	assert.GreaterOrEqual(t, hits[0].Similarity, hits[1].Similarity)

	faqs, err := store.MatchFAQs(ctx, "repo-test", unitVector(2), 3)
	require.NoError(t, err)
	require.Len(t, faqs, 1)
	assert.Equal(t, "30 days.", faqs[0].Answer)

	n, err := store.PruneProducts(ctx, "repo-test", []string{"p2"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
