package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/chative-commerce/storefront-agent/internal/agent/tools"
)

//go:embed template/system_prompt.txt
var coreSystemPrompt string

// SystemInput is the per-turn data merged into the system prompt.
type SystemInput struct {
	StoreName    string
	Instructions string
	// Context is the rendered retrieval block; empty omits the section.
	Context string
}

// RenderSystem renders the system prompt through the eino chat template so
// prompt callbacks fire for it.
func RenderSystem(ctx context.Context, in SystemInput) (string, error) {
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(coreSystemPrompt),
	)
	vars := map[string]any{
		"StoreName":    strings.TrimSpace(in.StoreName),
		"Instructions": strings.TrimSpace(in.Instructions),
		"Context":      strings.TrimSpace(in.Context),
		"SearchTool":   tools.ToolSearchProducts,
		"DetailsTool":  tools.ToolGetProductDetails,
		"CartTool":     tools.ToolAddToCart,
		"CartViewTool": tools.ToolGetCart,
		"FAQTool":      tools.ToolSearchFAQs,
		"OrderTool":    tools.ToolCreateOrder,
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("system prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("system prompt render: empty result")
	}
	return strings.TrimSpace(msgs[0].Content), nil
}
