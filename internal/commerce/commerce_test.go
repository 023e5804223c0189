package commerce

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chative-commerce/storefront-agent/internal/agent/model"
	errx "github.com/chative-commerce/storefront-agent/internal/core/error"
	"github.com/chative-commerce/storefront-agent/pkg/retry"
)

var fastPolicy = retry.Policy{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffFactor: 2}

type recorded struct {
	Path      string
	Header    http.Header
	Query     string
	Variables map[string]any
}

type recorder struct {
	mu   sync.Mutex
	reqs []recorded
}

func (r *recorder) add(rec recorded) {
	r.mu.Lock()
	r.reqs = append(r.reqs, rec)
	r.mu.Unlock()
}

func (r *recorder) all() []recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recorded(nil), r.reqs...)
}

// shop serves canned GraphQL answers chosen by operation name.
func shop(t *testing.T, answers map[string]string, seen *recorder) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req gqlRequest
		assert.NoError(t, json.Unmarshal(body, &req))
		if seen != nil {
			seen.add(recorded{Path: r.URL.Path, Header: r.Header.Clone(), Query: req.Query, Variables: req.Variables})
		}
		for op, answer := range answers {
			if strings.Contains(req.Query, op) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, answer)
				return
			}
		}
		http.Error(w, "unexpected operation", http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func tenantFor(srv *httptest.Server) *model.TenantConfig {
	return &model.TenantConfig{ID: "t1", Commerce: model.CommerceCredentials{
		StoreDomain: srv.URL, StorefrontToken: "sf-token", AdminToken: "admin-token",
	}}
}

func newFactory() *Factory {
	return NewFactory(model.CommerceConfig{APIVersion: "2024-10", Timeout: 5 * time.Second}, fastPolicy)
}

const productJSON = `{
  "id": "gid://shopify/Product/1", "handle": "blue-canvas", "title": "Blue Canvas Sneaker",
  "description": "Light and comfy.", "availableForSale": true,
  "featuredImage": {"url": "https://cdn/img.png"},
  "priceRange": {"minVariantPrice": {"amount": "24.99", "currencyCode": "USD"}},
  "variants": {"edges": [
    {"node": {"id": "gid://shopify/ProductVariant/10", "title": "8", "availableForSale": false, "price": {"amount": "24.99", "currencyCode": "USD"}}},
    {"node": {"id": "gid://shopify/ProductVariant/11", "title": "9", "availableForSale": true, "price": {"amount": "24.99", "currencyCode": "USD"}}}
  ]}
}`

const cartJSON = `{
  "id": "gid://shopify/Cart/c1", "checkoutUrl": "https://shop/checkout/c1",
  "cost": {"subtotalAmount": {"amount": "49.98", "currencyCode": "USD"}},
  "lines": {"edges": [{"node": {"quantity": 2, "merchandise": {
    "id": "gid://shopify/ProductVariant/11", "title": "9",
    "price": {"amount": "24.99", "currencyCode": "USD"}, "product": {"title": "Blue Canvas Sneaker"}}}}]}
}`

func TestStorefront_SearchAndDetails(t *testing.T) {
	seen := &recorder{}
	srv := shop(t, map[string]string{
		"query SearchProducts":  `{"data":{"products":{"edges":[{"node":` + productJSON + `}]}}}`,
		"query ProductByHandle": `{"data":{"product":null}}`,
	}, seen)

	sf, ok := newFactory().StorefrontClient(tenantFor(srv))
	require.True(t, ok)

	products, err := sf.SearchProducts(context.Background(), "blue shoes", 5)
	require.NoError(t, err)
	require.Len(t, products, 1)
	p := products[0]
	assert.Equal(t, "blue-canvas", p.Handle)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("24.99")))
	assert.Equal(t, "USD", p.Currency)
	assert.Equal(t, "https://cdn/img.png", p.ImageURL)
	assert.Equal(t, "gid://shopify/ProductVariant/11", p.DefaultVariantID())

	reqs := seen.all()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/api/2024-10/graphql.json", reqs[0].Path)
	assert.Equal(t, "sf-token", reqs[0].Header.Get(storefrontTokenHeader))
	assert.Equal(t, "blue shoes", reqs[0].Variables["query"])
	assert.EqualValues(t, 5, reqs[0].Variables["first"])

	_, err = sf.ProductByHandle(context.Background(), "missing")
	assert.ErrorIs(t, err, errx.ErrNotFound)
}

func TestStorefront_Carts(t *testing.T) {
	seen := &recorder{}
	srv := shop(t, map[string]string{
		"mutation CartCreate":   `{"data":{"cartCreate":{"cart":` + cartJSON + `,"userErrors":[]}}}`,
		"mutation CartLinesAdd": `{"data":{"cartLinesAdd":{"cart":null,"userErrors":[{"field":["lines","0","merchandiseId"],"message":"The merchandise does not exist."}]}}}`,
		"query Cart":            `{"data":{"cart":null}}`,
	}, seen)
	sf, _ := newFactory().StorefrontClient(tenantFor(srv))
	ctx := context.Background()

	cart, err := sf.CreateCart(ctx, []model.CartLine{{MerchandiseID: "gid://shopify/ProductVariant/11", Quantity: 2}})
	require.NoError(t, err)
	assert.Equal(t, "gid://shopify/Cart/c1", cart.ID)
	assert.Equal(t, "https://shop/checkout/c1", cart.CheckoutURL)
	assert.Equal(t, 2, cart.TotalQuantity())
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, "Blue Canvas Sneaker - 9", cart.Lines[0].Title)
	assert.True(t, cart.Subtotal.Equal(decimal.RequireFromString("49.98")))

	lines := seen.all()[0].Variables["lines"].([]any)
	require.Len(t, lines, 1)
	assert.EqualValues(t, 2, lines[0].(map[string]any)["quantity"])

	_, err = sf.AddCartLines(ctx, "gid://shopify/Cart/c1", []model.CartLine{{MerchandiseID: "bogus", Quantity: 1}})
	var ue *UserError
	require.ErrorAs(t, err, &ue)
	assert.Contains(t, ue.Error(), "merchandise does not exist")

	_, err = sf.GetCart(ctx, "gid://shopify/Cart/expired")
	assert.ErrorIs(t, err, errx.ErrNotFound)
}

func TestStorefront_ListProductsPages(t *testing.T) {
	srv := shop(t, map[string]string{
		"query ListProducts": `{"data":{"products":{"pageInfo":{"hasNextPage":true,"endCursor":"abc"},"edges":[{"node":` + productJSON + `}]}}}`,
	}, nil)
	sf, _ := newFactory().StorefrontClient(tenantFor(srv))

	products, next, err := sf.ListProducts(context.Background(), "", 50)
	require.NoError(t, err)
	assert.Len(t, products, 1)
	assert.Equal(t, "abc", next)
}

func TestGraphQL_ErrorsAndThrottling(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/admin/api/2024-10/graphql.json") && n == 1:
			_, _ = io.WriteString(w, `{"errors":[{"message":"Throttled","extensions":{"code":"THROTTLED"}}]}`)
		case strings.HasSuffix(r.URL.Path, "/admin/api/2024-10/graphql.json"):
			assert.Equal(t, "admin-token", r.Header.Get(adminTokenHeader))
			_, _ = io.WriteString(w, `{"data":{"draftOrderCreate":{"draftOrder":{"id":"gid://shopify/DraftOrder/5","name":"#D5","invoiceUrl":"https://shop/invoices/5","status":"OPEN","totalPriceSet":{"shopMoney":{"amount":"49.98","currencyCode":"USD"}}},"userErrors":[]}}}`)
		default:
			_, _ = io.WriteString(w, `{"errors":[{"message":"Field 'bogus' doesn't exist"}]}`)
		}
	}))
	defer srv.Close()
	f := newFactory()
	cfg := tenantFor(srv)

	admin, ok := f.Admin(cfg)
	require.True(t, ok)
	order, err := admin.CreateDraftOrder(context.Background(), model.DraftOrderInput{
		Email: "a@b.co",
		Lines: []model.CartLine{{MerchandiseID: "gid://shopify/ProductVariant/11", Quantity: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, "https://shop/invoices/5", order.InvoiceURL)
	assert.True(t, order.Total.Equal(decimal.RequireFromString("49.98")))

	sf, _ := f.StorefrontClient(cfg)
	_, err = sf.SearchProducts(context.Background(), "x", 1)
	var gqlErr *GraphQLError
	require.ErrorAs(t, err, &gqlErr)
	assert.Equal(t, storefrontService, gqlErr.Service)
}

func TestGraphQL_HTTPFailureIsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid token", http.StatusUnauthorized)
	}))
	defer srv.Close()
	sf, _ := newFactory().StorefrontClient(tenantFor(srv))

	_, err := sf.GetCart(context.Background(), "c1")
	var up *errx.UpstreamError
	require.True(t, errors.As(err, &up))
	assert.Equal(t, http.StatusUnauthorized, up.Status)
	assert.False(t, errors.Is(err, errx.ErrNotFound))
}

func TestFactory_CredentialsGateClients(t *testing.T) {
	f := newFactory()
	_, ok := f.Storefront(&model.TenantConfig{ID: "t"})
	assert.False(t, ok)
	_, ok = f.Admin(&model.TenantConfig{ID: "t", Commerce: model.CommerceCredentials{StoreDomain: "s.myshopify.com", StorefrontToken: "x"}})
	assert.False(t, ok)
	_, ok = f.Storefront(nil)
	assert.False(t, ok)

	assert.Equal(t, "https://s.myshopify.com", shopBaseURL("s.myshopify.com/"))
	assert.Equal(t, "http://127.0.0.1:9", shopBaseURL("http://127.0.0.1:9"))
}
