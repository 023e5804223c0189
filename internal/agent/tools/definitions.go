package tools

import (
	"github.com/cloudwego/eino/schema"

	"github.com/chative-commerce/storefront-agent/internal/agent/model"
)

const (
	ToolSearchProducts    = "search_products"
	ToolGetProductDetails = "get_product_details"
	ToolAddToCart         = "add_to_cart"
	ToolGetCart           = "get_cart"
	ToolSearchFAQs        = "search_faqs"
	ToolCreateOrder       = "create_order"
)

// Definitions is the fixed tool set, in the order it is offered to the model.
func Definitions() []model.ToolDefinition {
	return []model.ToolDefinition{
		{
			Name:        ToolSearchProducts,
			Description: "Search the store's product catalog by keywords. Use it whenever the customer asks about products, availability, or prices.",
			Params: map[string]*schema.ParameterInfo{
				"query": {Type: schema.String, Desc: "Search keywords, e.g. 'blue running shoes'", Required: true},
				"limit": {Type: schema.Integer, Desc: "Maximum number of products to return (1-20, default 5)"},
			},
		},
		{
			Name:        ToolGetProductDetails,
			Description: "Get full details for one product, including its variants and their ids, by product handle.",
			Params: map[string]*schema.ParameterInfo{
				"handle": {Type: schema.String, Desc: "Product handle as returned by search_products", Required: true},
			},
		},
		{
			Name:        ToolAddToCart,
			Description: "Add a product variant to the customer's cart. Creates the cart on first use.",
			Params: map[string]*schema.ParameterInfo{
				"variantId": {Type: schema.String, Desc: "Variant id from get_product_details or search_products", Required: true},
				"quantity":  {Type: schema.Integer, Desc: "Quantity to add (default 1)"},
			},
		},
		{
			Name:        ToolGetCart,
			Description: "Show the current contents of the customer's cart and its checkout link.",
			Params:      map[string]*schema.ParameterInfo{},
		},
		{
			Name:        ToolSearchFAQs,
			Description: "Search the store's help articles (shipping, returns, payments, policies).",
			Params: map[string]*schema.ParameterInfo{
				"query": {Type: schema.String, Desc: "The customer's question", Required: true},
				"limit": {Type: schema.Integer, Desc: "Maximum number of articles to return (1-10, default 3)"},
			},
		},
		{
			Name:        ToolCreateOrder,
			Description: "Place an order for the items in the cart. Requires the customer's email address; confirm it with the customer first.",
			Params: map[string]*schema.ParameterInfo{
				"email": {Type: schema.String, Desc: "Customer email address", Required: true},
				"note":  {Type: schema.String, Desc: "Optional note for the merchant"},
			},
		},
	}
}
