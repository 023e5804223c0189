package commerce

import (
	"context"
	"errors"

	"github.com/chative-commerce/storefront-agent/internal/agent/model"
)

// AdminClient talks to one shop's Admin API.
type AdminClient struct {
	gql *graphqlClient
}

func (c *AdminClient) CreateDraftOrder(ctx context.Context, in model.DraftOrderInput) (*model.DraftOrder, error) {
	items := make([]map[string]any, 0, len(in.Lines))
	for _, l := range in.Lines {
		items = append(items, map[string]any{"variantId": l.MerchandiseID, "quantity": l.Quantity})
	}
	input := map[string]any{"email": in.Email, "lineItems": items}
	if in.Note != "" {
		input["note"] = in.Note
	}

	var out struct {
		DraftOrderCreate struct {
			DraftOrder *struct {
				ID            string `json:"id"`
				Name          string `json:"name"`
				InvoiceURL    string `json:"invoiceUrl"`
				Status        string `json:"status"`
				TotalPriceSet struct {
					ShopMoney money `json:"shopMoney"`
				} `json:"totalPriceSet"`
			} `json:"draftOrder"`
			UserErrors []userError `json:"userErrors"`
		} `json:"draftOrderCreate"`
	}
	if err := c.gql.do(ctx, "draftOrderCreate", draftOrderCreateMutation, map[string]any{"input": input}, &out); err != nil {
		return nil, err
	}
	payload := out.DraftOrderCreate
	if err := userErrorsErr(payload.UserErrors); err != nil {
		return nil, err
	}
	if payload.DraftOrder == nil {
		return nil, errors.New("admin: draftOrderCreate returned no draft order")
	}
	d := payload.DraftOrder
	return &model.DraftOrder{
		ID:         d.ID,
		Name:       d.Name,
		InvoiceURL: d.InvoiceURL,
		Total:      d.TotalPriceSet.ShopMoney.Amount,
		Currency:   d.TotalPriceSet.ShopMoney.CurrencyCode,
		Status:     d.Status,
	}, nil
}
