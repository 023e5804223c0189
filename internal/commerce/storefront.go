package commerce

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/chative-commerce/storefront-agent/internal/agent/model"
	errx "github.com/chative-commerce/storefront-agent/internal/core/error"
)

type money struct {
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currencyCode"`
}

type productNode struct {
	ID               string `json:"id"`
	Handle           string `json:"handle"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	AvailableForSale bool   `json:"availableForSale"`
	FeaturedImage    *struct {
		URL string `json:"url"`
	} `json:"featuredImage"`
	PriceRange struct {
		MinVariantPrice money `json:"minVariantPrice"`
	} `json:"priceRange"`
	Variants struct {
		Edges []struct {
			Node struct {
				ID               string `json:"id"`
				Title            string `json:"title"`
				AvailableForSale bool   `json:"availableForSale"`
				Price            money  `json:"price"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"variants"`
}

func (n productNode) toModel() model.Product {
	p := model.Product{
		ID:          n.ID,
		Handle:      n.Handle,
		Title:       n.Title,
		Description: n.Description,
		Price:       n.PriceRange.MinVariantPrice.Amount,
		Currency:    n.PriceRange.MinVariantPrice.CurrencyCode,
		Available:   n.AvailableForSale,
	}
	if n.FeaturedImage != nil {
		p.ImageURL = n.FeaturedImage.URL
	}
	for _, e := range n.Variants.Edges {
		p.Variants = append(p.Variants, model.Variant{
			ID:        e.Node.ID,
			Title:     e.Node.Title,
			Price:     e.Node.Price.Amount,
			Available: e.Node.AvailableForSale,
		})
	}
	return p
}

type productEdges struct {
	Edges []struct {
		Node productNode `json:"node"`
	} `json:"edges"`
}

func (e productEdges) toModel() []model.Product {
	out := make([]model.Product, 0, len(e.Edges))
	for _, edge := range e.Edges {
		out = append(out, edge.Node.toModel())
	}
	return out
}

type cartNode struct {
	ID          string `json:"id"`
	CheckoutURL string `json:"checkoutUrl"`
	Cost        struct {
		SubtotalAmount money `json:"subtotalAmount"`
	} `json:"cost"`
	Lines struct {
		Edges []struct {
			Node struct {
				Quantity    int `json:"quantity"`
				Merchandise struct {
					ID      string `json:"id"`
					Title   string `json:"title"`
					Price   money  `json:"price"`
					Product struct {
						Title string `json:"title"`
					} `json:"product"`
				} `json:"merchandise"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"lines"`
}

func (n cartNode) toModel() *model.Cart {
	c := &model.Cart{
		ID:          n.ID,
		CheckoutURL: n.CheckoutURL,
		Lines:       make([]model.CartLine, 0, len(n.Lines.Edges)),
		Subtotal:    n.Cost.SubtotalAmount.Amount,
		Currency:    n.Cost.SubtotalAmount.CurrencyCode,
	}
	for _, e := range n.Lines.Edges {
		m := e.Node.Merchandise
		c.Lines = append(c.Lines, model.CartLine{
			MerchandiseID: m.ID,
			Title:         lineTitle(m.Product.Title, m.Title),
			Quantity:      e.Node.Quantity,
			Price:         m.Price.Amount,
		})
	}
	return c
}

// lineTitle drops the placeholder title Shopify gives single-variant products.
func lineTitle(product, variant string) string {
	if variant == "" || variant == "Default Title" {
		return product
	}
	if product == "" {
		return variant
	}
	return product + " - " + variant
}

type cartMutationPayload struct {
	Cart       *cartNode   `json:"cart"`
	UserErrors []userError `json:"userErrors"`
}

func (p cartMutationPayload) result() (*model.Cart, error) {
	if err := userErrorsErr(p.UserErrors); err != nil {
		return nil, err
	}
	if p.Cart == nil {
		return nil, errx.ErrNotFound
	}
	return p.Cart.toModel(), nil
}

// StorefrontClient talks to one shop's public Storefront API.
type StorefrontClient struct {
	gql *graphqlClient
}

func (c *StorefrontClient) SearchProducts(ctx context.Context, query string, limit int) ([]model.Product, error) {
	var out struct {
		Products productEdges `json:"products"`
	}
	if err := c.gql.do(ctx, "searchProducts", searchProductsQuery, map[string]any{"query": query, "first": limit}, &out); err != nil {
		return nil, err
	}
	return out.Products.toModel(), nil
}

func (c *StorefrontClient) ProductByHandle(ctx context.Context, handle string) (*model.Product, error) {
	var out struct {
		Product *productNode `json:"product"`
	}
	if err := c.gql.do(ctx, "productByHandle", productByHandleQuery, map[string]any{"handle": handle}, &out); err != nil {
		return nil, err
	}
	if out.Product == nil {
		return nil, fmt.Errorf("product %q: %w", handle, errx.ErrNotFound)
	}
	p := out.Product.toModel()
	return &p, nil
}

// ListProducts returns one page of the catalog. next is empty on the last page.
func (c *StorefrontClient) ListProducts(ctx context.Context, after string, first int) (products []model.Product, next string, err error) {
	vars := map[string]any{"first": first}
	if after != "" {
		vars["after"] = after
	}
	var out struct {
		Products struct {
			productEdges
			PageInfo struct {
				HasNextPage bool   `json:"hasNextPage"`
				EndCursor   string `json:"endCursor"`
			} `json:"pageInfo"`
		} `json:"products"`
	}
	if err := c.gql.do(ctx, "listProducts", listProductsQuery, vars, &out); err != nil {
		return nil, "", err
	}
	if out.Products.PageInfo.HasNextPage {
		next = out.Products.PageInfo.EndCursor
	}
	return out.Products.toModel(), next, nil
}

func (c *StorefrontClient) CreateCart(ctx context.Context, lines []model.CartLine) (*model.Cart, error) {
	var out struct {
		CartCreate cartMutationPayload `json:"cartCreate"`
	}
	if err := c.gql.do(ctx, "cartCreate", cartCreateMutation, map[string]any{"lines": lineInputs(lines)}, &out); err != nil {
		return nil, err
	}
	return out.CartCreate.result()
}

func (c *StorefrontClient) AddCartLines(ctx context.Context, cartID string, lines []model.CartLine) (*model.Cart, error) {
	var out struct {
		CartLinesAdd cartMutationPayload `json:"cartLinesAdd"`
	}
	vars := map[string]any{"cartId": cartID, "lines": lineInputs(lines)}
	if err := c.gql.do(ctx, "cartLinesAdd", cartLinesAddMutation, vars, &out); err != nil {
		return nil, err
	}
	return out.CartLinesAdd.result()
}

// GetCart returns errx.ErrNotFound for carts that expired or never existed.
func (c *StorefrontClient) GetCart(ctx context.Context, cartID string) (*model.Cart, error) {
	var out struct {
		Cart *cartNode `json:"cart"`
	}
	if err := c.gql.do(ctx, "cart", cartQuery, map[string]any{"id": cartID}, &out); err != nil {
		return nil, err
	}
	if out.Cart == nil {
		return nil, fmt.Errorf("cart %q: %w", cartID, errx.ErrNotFound)
	}
	return out.Cart.toModel(), nil
}

func lineInputs(lines []model.CartLine) []map[string]any {
	out := make([]map[string]any, 0, len(lines))
	for _, l := range lines {
		qty := l.Quantity
		if qty <= 0 {
			qty = 1
		}
		out = append(out, map[string]any{"merchandiseId": l.MerchandiseID, "quantity": qty})
	}
	return out
}
