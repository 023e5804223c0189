package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chative-commerce/storefront-agent/internal/agent/embedding"
	"github.com/chative-commerce/storefront-agent/internal/agent/model"
	"github.com/chative-commerce/storefront-agent/internal/agent/repo"
	"github.com/chative-commerce/storefront-agent/internal/catalog"
	"github.com/chative-commerce/storefront-agent/internal/commerce"
	logx "github.com/chative-commerce/storefront-agent/pkg/logger"
)

func newMigrateCmd(cfg *AppConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := cfg.Postgres.New(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			version, err := repo.Migrate(cmd.Context(), pool)
			if err != nil {
				return err
			}
			logx.Info().Uint("version", version).Msg("database is up to date")
			return nil
		},
	}
}

func newIndexCmd(cfg *AppConfig) *cobra.Command {
	var tenantID string

	index := &cobra.Command{
		Use:   "index",
		Short: "Embed and store a tenant's catalog or help articles",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Root().PersistentPreRunE(cmd, args); err != nil {
				return err
			}
			if tenantID == "" {
				return errors.New("--tenant is required")
			}
			return nil
		},
	}
	index.PersistentFlags().StringVar(&tenantID, "tenant", "", "tenant id")

	products := &cobra.Command{
		Use:   "products",
		Short: "Sync the live product catalog into the vector index",
		RunE: func(cmd *cobra.Command, args []string) error {
			ix, closeFn, err := newIndexer(cmd, cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			stats, err := ix.SyncProducts(cmd.Context(), tenantID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d products, pruned %d\n", stats.Indexed, stats.Pruned)
			return nil
		},
	}

	var file string
	faqs := &cobra.Command{
		Use:   "faqs",
		Short: "Index help articles from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := catalog.LoadFAQs(file)
			if err != nil {
				return err
			}
			ix, closeFn, err := newIndexer(cmd, cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			n, err := ix.IndexFAQs(cmd.Context(), tenantID, list)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d faqs\n", n)
			return nil
		},
	}
	faqs.Flags().StringVar(&file, "file", "faqs.yaml", "YAML file with question/answer entries")

	index.AddCommand(products, faqs)
	return index
}

func newIndexer(cmd *cobra.Command, cfg *AppConfig) (*catalog.Indexer, func(), error) {
	pool, err := cfg.Postgres.New(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	policy := cfg.retryPolicy()
	shops := commerce.NewFactory(cfg.Commerce, policy)
	source := func(t *model.TenantConfig) (catalog.ProductSource, bool) {
		c, ok := shops.StorefrontClient(t)
		if !ok {
			return nil, false
		}
		return c, true
	}
	ix := catalog.NewIndexer(
		embedding.NewGateway(cfg.Embedding, policy),
		repo.NewVectorStore(pool),
		repo.NewTenantStore(pool),
		source,
	)
	return ix, pool.Close, nil
}
