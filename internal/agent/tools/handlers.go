package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/chative-commerce/storefront-agent/internal/agent/model"
	errx "github.com/chative-commerce/storefront-agent/internal/core/error"
	logx "github.com/chative-commerce/storefront-agent/pkg/logger"
)

const (
	defaultProductLimit = 5
	maxProductLimit     = 20
	defaultFAQLimit     = 3
	maxFAQLimit         = 10
	maxQuantity         = 100
)

var (
	errNoAgentContext = errors.New("missing agent context")
	errInvalidEmail   = errors.New("Valid email address is required")
)

type searchProductsInput struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type productDetailsInput struct {
	Handle string `json:"handle"`
}

type addToCartInput struct {
	VariantID string `json:"variantId"`
	Quantity  int    `json:"quantity,omitempty"`
}

type getCartInput struct{}

type searchFAQsInput struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type createOrderInput struct {
	Email string `json:"email"`
	Note  string `json:"note,omitempty"`
}

type productSummary struct {
	ID          string          `json:"id"`
	Handle      string          `json:"handle"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency,omitempty"`
	VariantID   string          `json:"variantId,omitempty"`
	Available   *bool           `json:"available,omitempty"`
	Similarity  float64         `json:"similarity,omitempty"`
}

type productList struct {
	Products []productSummary `json:"products"`
	Source   string           `json:"source,omitempty"`
	Message  string           `json:"message,omitempty"`
}

type faqList struct {
	FAQs    []model.FAQHit `json:"faqs"`
	Message string         `json:"message,omitempty"`
}

type cartPayload struct {
	model.Cart
	TotalQuantity int    `json:"totalQuantity"`
	Message       string `json:"message,omitempty"`
}

type orderPayload struct {
	OrderID     string           `json:"orderId,omitempty"`
	InvoiceURL  string           `json:"invoiceUrl,omitempty"`
	Total       *decimal.Decimal `json:"total,omitempty"`
	Currency    string           `json:"currency,omitempty"`
	Status      string           `json:"status,omitempty"`
	CartID      string           `json:"cartId,omitempty"`
	CheckoutURL string           `json:"checkoutUrl,omitempty"`
	Message     string           `json:"message"`
}

type handlers struct {
	deps Deps
}

func (h *handlers) searchProducts(ctx context.Context, in searchProductsInput) (*productList, error) {
	agent := AgentContextFrom(ctx)
	if agent == nil {
		return nil, errNoAgentContext
	}
	if in.Query == "" {
		return nil, errors.New("query is required")
	}
	limit := in.Limit
	if limit <= 0 {
		limit = defaultProductLimit
	}
	limit = clampInt(limit, 1, maxProductLimit)

	if h.deps.Catalog != nil {
		hits, err := h.deps.Catalog.SearchCatalog(ctx, agent.TenantID, in.Query, limit)
		if err != nil {
			logx.Warn().Err(err).Str("tenant_id", agent.TenantID).Msg("indexed catalog search failed; trying live catalog")
		} else if len(hits) > 0 {
			out := &productList{Source: "index", Products: make([]productSummary, 0, len(hits))}
			for _, hit := range hits {
				out.Products = append(out.Products, productSummary{
					ID:          hit.ID,
					Handle:      hit.Handle,
					Title:       hit.Title,
					Description: truncate(hit.Description, 200),
					Price:       hit.Price,
					Currency:    hit.Currency,
					VariantID:   hit.VariantID,
					Similarity:  hit.Similarity,
				})
			}
			return out, nil
		}
	}

	sf, err := h.storefront(ctx, agent)
	if err != nil {
		return nil, err
	}
	if sf == nil {
		return &productList{
			Products: []productSummary{},
			Message:  "Product search is not available for this store right now.",
		}, nil
	}

	products, err := sf.SearchProducts(ctx, in.Query, limit)
	if err != nil {
		return nil, unavailable("Product search is unavailable right now", fmt.Errorf("live product search: %w", err))
	}
	out := &productList{Source: "live", Products: make([]productSummary, 0, len(products))}
	for _, p := range products {
		available := p.Available
		out.Products = append(out.Products, productSummary{
			ID:          p.ID,
			Handle:      p.Handle,
			Title:       p.Title,
			Description: truncate(p.Description, 200),
			Price:       p.Price,
			Currency:    p.Currency,
			VariantID:   p.DefaultVariantID(),
			Available:   &available,
		})
	}
	if len(out.Products) == 0 {
		out.Message = fmt.Sprintf("No products matched %q.", in.Query)
	}
	return out, nil
}

func (h *handlers) getProductDetails(ctx context.Context, in productDetailsInput) (*model.Product, error) {
	agent := AgentContextFrom(ctx)
	if agent == nil {
		return nil, errNoAgentContext
	}
	if in.Handle == "" {
		return nil, errors.New("handle is required")
	}
	sf, err := h.storefront(ctx, agent)
	if err != nil {
		return nil, err
	}
	if sf == nil {
		return nil, errors.New("Product details are not available for this store")
	}

	p, err := sf.ProductByHandle(ctx, in.Handle)
	if errors.Is(err, errx.ErrNotFound) {
		return nil, fmt.Errorf("Product not found: %s", in.Handle)
	}
	if err != nil {
		return nil, unavailable("Product details are unavailable right now", fmt.Errorf("product lookup: %w", err))
	}
	return p, nil
}

func (h *handlers) addToCart(ctx context.Context, in addToCartInput) (*cartPayload, error) {
	agent := AgentContextFrom(ctx)
	if agent == nil {
		return nil, errNoAgentContext
	}
	if in.VariantID == "" {
		return nil, errors.New("variantId is required")
	}
	qty := in.Quantity
	if qty <= 0 {
		qty = 1
	}
	qty = min(qty, maxQuantity)

	sf, err := h.storefront(ctx, agent)
	if err != nil {
		return nil, err
	}
	if sf == nil {
		return nil, errors.New("Cart is not available for this store")
	}

	lines := []model.CartLine{{MerchandiseID: in.VariantID, Quantity: qty}}
	var cart *model.Cart
	if cartID := h.knownCart(ctx, agent); cartID != "" {
		cart, err = sf.AddCartLines(ctx, cartID, lines)
		if errors.Is(err, errx.ErrNotFound) {
			logx.Info().Str("cart_id", cartID).Str("session", agent.SessionKey()).Msg("remembered cart expired; creating a new one")
			cart, err = sf.CreateCart(ctx, lines)
		}
	} else {
		cart, err = sf.CreateCart(ctx, lines)
	}
	if err != nil {
		return nil, unavailable("The cart could not be updated right now", fmt.Errorf("cart update: %w", err))
	}

	h.remember(ctx, agent, cart.ID)
	return &cartPayload{
		Cart:          *cart,
		TotalQuantity: cart.TotalQuantity(),
		Message:       fmt.Sprintf("Added %d x %s to the cart.", qty, in.VariantID),
	}, nil
}

func (h *handlers) getCart(ctx context.Context, _ getCartInput) (*cartPayload, error) {
	agent := AgentContextFrom(ctx)
	if agent == nil {
		return nil, errNoAgentContext
	}
	cartID := h.knownCart(ctx, agent)
	if cartID == "" {
		return emptyCart("The cart is empty."), nil
	}
	sf, err := h.storefront(ctx, agent)
	if err != nil {
		return nil, err
	}
	if sf == nil {
		return emptyCart("The cart is empty."), nil
	}

	cart, err := sf.GetCart(ctx, cartID)
	if err != nil {
		if errors.Is(err, errx.ErrNotFound) {
			h.forget(ctx, agent)
		}
		logx.Warn().Err(err).Str("cart_id", cartID).Msg("cart fetch failed; reporting it as empty")
		return emptyCart("The previous cart has expired, so the cart is now empty."), nil
	}
	return &cartPayload{Cart: *cart, TotalQuantity: cart.TotalQuantity()}, nil
}

func (h *handlers) searchFAQs(ctx context.Context, in searchFAQsInput) (*faqList, error) {
	agent := AgentContextFrom(ctx)
	if agent == nil {
		return nil, errNoAgentContext
	}
	if in.Query == "" {
		return nil, errors.New("query is required")
	}
	if h.deps.Catalog == nil {
		return &faqList{FAQs: []model.FAQHit{}, Message: "Help articles are not available right now."}, nil
	}
	limit := in.Limit
	if limit <= 0 {
		limit = defaultFAQLimit
	}
	limit = clampInt(limit, 1, maxFAQLimit)

	hits, err := h.deps.Catalog.SearchHelp(ctx, agent.TenantID, in.Query, limit)
	if err != nil {
		return nil, unavailable("Help search is unavailable right now", fmt.Errorf("help search: %w", err))
	}
	if len(hits) == 0 {
		return &faqList{FAQs: []model.FAQHit{}, Message: "No help articles matched that question."}, nil
	}
	return &faqList{FAQs: hits}, nil
}

func (h *handlers) createOrder(ctx context.Context, in createOrderInput) (*orderPayload, error) {
	agent := AgentContextFrom(ctx)
	if agent == nil {
		return nil, errNoAgentContext
	}
	if !strings.Contains(in.Email, "@") {
		return nil, errInvalidEmail
	}
	cartID := h.knownCart(ctx, agent)
	if cartID == "" {
		return nil, errors.New("The cart is empty; add items before placing an order")
	}

	cfg, err := h.tenant(ctx, agent)
	if err != nil {
		return nil, err
	}
	sf, ok := h.storefrontFor(cfg)
	if !ok {
		return nil, errors.New("Ordering is not available for this store")
	}

	cart, err := sf.GetCart(ctx, cartID)
	if errors.Is(err, errx.ErrNotFound) {
		h.forget(ctx, agent)
		return nil, errors.New("The cart has expired; please add the items again")
	}
	if err != nil {
		return nil, unavailable("The cart could not be loaded right now", fmt.Errorf("cart lookup: %w", err))
	}
	if len(cart.Lines) == 0 {
		return nil, errors.New("The cart is empty; add items before placing an order")
	}

	admin, ok := h.adminFor(cfg)
	if !ok {
		return &orderPayload{
			CartID:      cart.ID,
			CheckoutURL: cart.CheckoutURL,
			Message:     "Please complete your purchase using the checkout link.",
		}, nil
	}

	order, err := admin.CreateDraftOrder(ctx, model.DraftOrderInput{
		Email: in.Email,
		Note:  in.Note,
		Lines: cart.Lines,
	})
	if err != nil {
		return nil, unavailable("The order could not be created right now", fmt.Errorf("draft order creation: %w", err))
	}
	return &orderPayload{
		OrderID:     order.ID,
		InvoiceURL:  order.InvoiceURL,
		Total:       &order.Total,
		Currency:    order.Currency,
		Status:      order.Status,
		CartID:      cart.ID,
		CheckoutURL: cart.CheckoutURL,
		Message:     fmt.Sprintf("Order %s was created; an invoice will be sent to %s.", order.Name, in.Email),
	}, nil
}

// knownCart prefers the request supplied cart id and remembers it for the
// session; otherwise it falls back to the session store.
func (h *handlers) knownCart(ctx context.Context, agent *model.AgentContext) string {
	if agent.CartID != "" {
		h.remember(ctx, agent, agent.CartID)
		return agent.CartID
	}
	if h.deps.Sessions == nil {
		return ""
	}
	id, ok, err := h.deps.Sessions.GetCartID(ctx, agent.SessionKey())
	if err != nil {
		logx.Warn().Err(err).Str("session", agent.SessionKey()).Msg("cart session lookup failed")
		return ""
	}
	if ok {
		agent.CartID = id
	}
	return id
}

func (h *handlers) remember(ctx context.Context, agent *model.AgentContext, cartID string) {
	agent.CartID = cartID
	if h.deps.Sessions == nil {
		return
	}
	if err := h.deps.Sessions.SetCartID(ctx, agent.SessionKey(), cartID); err != nil {
		logx.Warn().Err(err).Str("session", agent.SessionKey()).Msg("cart session write failed")
	}
}

func (h *handlers) forget(ctx context.Context, agent *model.AgentContext) {
	agent.CartID = ""
	if h.deps.Sessions == nil {
		return
	}
	if err := h.deps.Sessions.Forget(ctx, agent.SessionKey()); err != nil {
		logx.Warn().Err(err).Str("session", agent.SessionKey()).Msg("cart session delete failed")
	}
}

func (h *handlers) tenant(ctx context.Context, agent *model.AgentContext) (*model.TenantConfig, error) {
	if h.deps.Tenants == nil {
		return nil, nil
	}
	cfg, err := h.deps.Tenants.GetTenant(ctx, agent.TenantID)
	if err != nil {
		return nil, unavailable("Store settings could not be loaded right now", fmt.Errorf("tenant lookup: %w", err))
	}
	return cfg, nil
}

// storefront returns nil without error when the tenant has no storefront.
func (h *handlers) storefront(ctx context.Context, agent *model.AgentContext) (Storefront, error) {
	cfg, err := h.tenant(ctx, agent)
	if err != nil {
		return nil, err
	}
	sf, ok := h.storefrontFor(cfg)
	if !ok {
		return nil, nil
	}
	return sf, nil
}

func (h *handlers) storefrontFor(cfg *model.TenantConfig) (Storefront, bool) {
	if cfg == nil || h.deps.Commerce == nil {
		return nil, false
	}
	return h.deps.Commerce.Storefront(cfg)
}

func (h *handlers) adminFor(cfg *model.TenantConfig) (Admin, bool) {
	if cfg == nil || h.deps.Commerce == nil {
		return nil, false
	}
	return h.deps.Commerce.Admin(cfg)
}

// unavailable hides err behind msg unless err already carries a message meant
// for shoppers. The cause stays reachable for logging.
func unavailable(msg string, err error) error {
	var pub *errx.PublicError
	if errors.As(err, &pub) {
		return err
	}
	return errx.Public(err, msg)
}

func emptyCart(msg string) *cartPayload {
	return &cartPayload{Cart: model.Cart{Lines: []model.CartLine{}}, Message: msg}
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return strings.TrimSpace(s[:cut]) + "..."
}
