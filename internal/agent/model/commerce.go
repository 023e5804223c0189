package model

import "github.com/shopspring/decimal"

type Product struct {
	ID          string          `json:"id"`
	Handle      string          `json:"handle"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency,omitempty"`
	Available   bool            `json:"available"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	Variants    []Variant       `json:"variants,omitempty"`
}

type Variant struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Available bool            `json:"available"`
}

// DefaultVariantID returns the first available variant, or the first variant.
func (p Product) DefaultVariantID() string {
	for _, v := range p.Variants {
		if v.Available {
			return v.ID
		}
	}
	if len(p.Variants) > 0 {
		return p.Variants[0].ID
	}
	return ""
}

// Cart is owned by the commerce platform; the agent only carries its id around.
type Cart struct {
	ID          string          `json:"cartId"`
	CheckoutURL string          `json:"checkoutUrl"`
	Lines       []CartLine      `json:"lines"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Currency    string          `json:"currency,omitempty"`
}

type CartLine struct {
	MerchandiseID string          `json:"variantId"`
	Title         string          `json:"title,omitempty"`
	Quantity      int             `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
}

// TotalQuantity sums the line quantities.
func (c Cart) TotalQuantity() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

type DraftOrderInput struct {
	Email string
	Note  string
	Lines []CartLine
}

type DraftOrder struct {
	ID         string          `json:"orderId"`
	Name       string          `json:"name,omitempty"`
	InvoiceURL string          `json:"invoiceUrl"`
	Total      decimal.Decimal `json:"total"`
	Currency   string          `json:"currency,omitempty"`
	Status     string          `json:"status"`
}
