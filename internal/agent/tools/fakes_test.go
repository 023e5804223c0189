package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/chative-commerce/storefront-agent/internal/agent/model"
	errx "github.com/chative-commerce/storefront-agent/internal/core/error"
)

type fakeStorefront struct {
	mu       sync.Mutex
	calls    int
	products []model.Product
	carts    map[string]*model.Cart
	nextID   int
	panicOn  string
	cartErr  error
}

func newFakeStorefront() *fakeStorefront {
	return &fakeStorefront{carts: map[string]*model.Cart{}}
}

func (f *fakeStorefront) touch(op string) {
	f.calls++
	if f.panicOn == op {
		panic("storefront exploded")
	}
}

func (f *fakeStorefront) SearchProducts(ctx context.Context, query string, limit int) ([]model.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touch("search")
	if len(f.products) > limit {
		return f.products[:limit], nil
	}
	return f.products, nil
}

func (f *fakeStorefront) ProductByHandle(ctx context.Context, handle string) (*model.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touch("product")
	for i := range f.products {
		if f.products[i].Handle == handle {
			p := f.products[i]
			return &p, nil
		}
	}
	return nil, fmt.Errorf("product %q: %w", handle, errx.ErrNotFound)
}

func (f *fakeStorefront) CreateCart(ctx context.Context, lines []model.CartLine) (*model.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touch("create")
	if f.cartErr != nil {
		return nil, f.cartErr
	}
	f.nextID++
	id := fmt.Sprintf("gid://shop/Cart/%d", f.nextID)
	c := &model.Cart{ID: id, CheckoutURL: "https://shop.example/checkout/" + id}
	c.Lines = append(c.Lines, lines...)
	f.carts[id] = c
	cp := *c
	return &cp, nil
}

func (f *fakeStorefront) AddCartLines(ctx context.Context, cartID string, lines []model.CartLine) (*model.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touch("add")
	c, ok := f.carts[cartID]
	if !ok {
		return nil, errx.ErrNotFound
	}
	c.Lines = append(c.Lines, lines...)
	cp := *c
	return &cp, nil
}

func (f *fakeStorefront) GetCart(ctx context.Context, cartID string) (*model.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touch("get")
	c, ok := f.carts[cartID]
	if !ok {
		return nil, errx.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

type fakeAdmin struct {
	calls int
	got   model.DraftOrderInput
}

func (f *fakeAdmin) CreateDraftOrder(ctx context.Context, in model.DraftOrderInput) (*model.DraftOrder, error) {
	f.calls++
	f.got = in
	return &model.DraftOrder{
		ID:         "gid://shop/DraftOrder/9",
		Name:       "#D9",
		InvoiceURL: "https://shop.example/invoices/9",
		Total:      decimal.RequireFromString("42.00"),
		Currency:   "USD",
		Status:     "OPEN",
	}, nil
}

type fakeCommerce struct {
	sf    *fakeStorefront
	admin *fakeAdmin
}

func (f *fakeCommerce) Storefront(cfg *model.TenantConfig) (Storefront, bool) {
	if f.sf == nil || !cfg.Commerce.HasStorefront() {
		return nil, false
	}
	return f.sf, true
}

func (f *fakeCommerce) Admin(cfg *model.TenantConfig) (Admin, bool) {
	if f.admin == nil || !cfg.Commerce.HasAdmin() {
		return nil, false
	}
	return f.admin, true
}

type fakeTenants struct {
	cfg   *model.TenantConfig
	calls int
}

func (f *fakeTenants) GetTenant(ctx context.Context, id string) (*model.TenantConfig, error) {
	f.calls++
	return f.cfg, nil
}

type fakeCatalog struct {
	products []model.ProductHit
	faqs     []model.FAQHit
	err      error
	calls    int
}

func (f *fakeCatalog) SearchCatalog(ctx context.Context, tenantID, query string, limit int) ([]model.ProductHit, error) {
	f.calls++
	return f.products, f.err
}

func (f *fakeCatalog) SearchHelp(ctx context.Context, tenantID, query string, limit int) ([]model.FAQHit, error) {
	f.calls++
	return f.faqs, f.err
}

func storefrontOnlyTenant() *model.TenantConfig {
	return &model.TenantConfig{
		ID:   "t1",
		Name: "Shoe Shop",
		Commerce: model.CommerceCredentials{
			StoreDomain:     "shoes.example",
			StorefrontToken: "public-token",
		},
	}
}
