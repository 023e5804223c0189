package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chative-commerce/storefront-agent/internal/agent/model"
	errx "github.com/chative-commerce/storefront-agent/internal/core/error"
)

type TenantStore struct {
	db *pgxpool.Pool
}

func NewTenantStore(db *pgxpool.Pool) *TenantStore {
	return &TenantStore{db: db}
}

// GetTenant loads one tenant row. A missing row is errx.ErrNotFound.
func (s *TenantStore) GetTenant(ctx context.Context, id string) (*model.TenantConfig, error) {
	var cfg model.TenantConfig
	err := s.db.QueryRow(ctx, `
		SELECT id, name,
		       COALESCE(custom_instructions, ''),
		       COALESCE(store_domain, ''),
		       COALESCE(storefront_token, ''),
		       COALESCE(admin_token, '')
		FROM tenants
		WHERE id = $1`, id,
	).Scan(
		&cfg.ID, &cfg.Name, &cfg.CustomInstructions,
		&cfg.Commerce.StoreDomain, &cfg.Commerce.StorefrontToken, &cfg.Commerce.AdminToken,
	)
	if err != nil {
		return nil, errx.WrapPostgres(err)
	}
	return &cfg, nil
}
