package tools

import (
	"context"

	"github.com/chative-commerce/storefront-agent/internal/agent/model"
)

// CatalogSearcher is the semantic retrieval used by the search tools.
type CatalogSearcher interface {
	SearchCatalog(ctx context.Context, tenantID, query string, limit int) ([]model.ProductHit, error)
	SearchHelp(ctx context.Context, tenantID, query string, limit int) ([]model.FAQHit, error)
}

// TenantLookup returns nil for tenants that do not exist.
type TenantLookup interface {
	GetTenant(ctx context.Context, id string) (*model.TenantConfig, error)
}

// Storefront is the public commerce surface. Missing products and carts are
// reported as errx.ErrNotFound.
type Storefront interface {
	SearchProducts(ctx context.Context, query string, limit int) ([]model.Product, error)
	ProductByHandle(ctx context.Context, handle string) (*model.Product, error)
	CreateCart(ctx context.Context, lines []model.CartLine) (*model.Cart, error)
	AddCartLines(ctx context.Context, cartID string, lines []model.CartLine) (*model.Cart, error)
	GetCart(ctx context.Context, cartID string) (*model.Cart, error)
}

// Admin is the privileged commerce surface.
type Admin interface {
	CreateDraftOrder(ctx context.Context, in model.DraftOrderInput) (*model.DraftOrder, error)
}

// CommerceProvider hands out per-tenant clients. ok is false when the tenant
// has no credentials for that surface.
type CommerceProvider interface {
	Storefront(cfg *model.TenantConfig) (Storefront, bool)
	Admin(cfg *model.TenantConfig) (Admin, bool)
}

// Deps are the collaborators of the tool handlers. Any of them may be nil;
// the affected tools then degrade instead of failing.
type Deps struct {
	Catalog  CatalogSearcher
	Tenants  TenantLookup
	Commerce CommerceProvider
	Sessions model.CartSessionStore
}
