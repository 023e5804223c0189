package model

import (
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
)

func TestResolvePricing_LongestPrefixWins(t *testing.T) {
	assert.Equal(t, 0.10, ResolvePricing("gemini-2.5-flash-lite").InputPerM)
	assert.Equal(t, 0.30, ResolvePricing("gemini-2.5-flash").InputPerM)
	assert.Equal(t, 0.80, ResolvePricing("claude-3-5-haiku-20241022").InputPerM)
	assert.Equal(t, Pricing{}, ResolvePricing("unknown-model"))
}

func TestComputeCost(t *testing.T) {
	in, out, total := ComputeCost(&schema.TokenUsage{PromptTokens: 1_000_000, CompletionTokens: 500_000}, Pricing{InputPerM: 1, OutputPerM: 4})
	assert.InDelta(t, 1.0, in, 1e-9)
	assert.InDelta(t, 2.0, out, 1e-9)
	assert.InDelta(t, 3.0, total, 1e-9)

	in, out, total = ComputeCost(nil, Pricing{InputPerM: 1})
	assert.Zero(t, in+out+total)
}

func TestToolDefinition_InputSchema(t *testing.T) {
	def := ToolDefinition{
		Name: "add_to_cart",
		Params: map[string]*schema.ParameterInfo{
			"variantId": {Type: schema.String, Desc: "variant", Required: true},
			"quantity":  {Type: schema.Integer, Desc: "qty"},
		},
	}
	props, required := def.InputSchema()
	assert.Equal(t, []string{"variantId"}, required)
	assert.Equal(t, map[string]any{"type": "integer", "description": "qty"}, props["quantity"])
	assert.Equal(t, "add_to_cart", def.ToolInfo().Name)
}

func TestToolResult_CartState(t *testing.T) {
	r := ToolResult{Success: true, Data: []byte(`{"cartId":"c1","checkoutUrl":"https://x/checkout","lines":[]}`)}
	assert.Equal(t, CartState{CartID: "c1", CheckoutURL: "https://x/checkout"}, r.CartState())

	failed := ToolResult{Success: false, Data: []byte(`{"cartId":"c1"}`)}
	assert.Equal(t, CartState{}, failed.CartState())
}

func TestLastUserMessage(t *testing.T) {
	h := []ConversationTurn{
		{Role: RoleUser, Content: "first"},
		{Role: RoleAssistant, Content: "reply"},
		{Role: RoleUser, Content: "  second  "},
		{Role: RoleAssistant, Content: ""},
	}
	assert.Equal(t, "second", LastUserMessage(h))
	assert.Equal(t, "", LastUserMessage(nil))
}
