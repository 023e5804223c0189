package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/chative-commerce/storefront-agent/internal/agent/model"
	errx "github.com/chative-commerce/storefront-agent/internal/core/error"
	logx "github.com/chative-commerce/storefront-agent/pkg/logger"
)

// Registry maps tool names to their invokable implementations. It is built
// once and read-only afterwards.
type Registry struct {
	defs  []model.ToolDefinition
	byDef map[string]model.ToolDefinition
	node  *compose.ToolsNode
}

func NewRegistry(deps Deps) *Registry {
	h := &handlers{deps: deps}
	r := &Registry{byDef: make(map[string]model.ToolDefinition)}

	var invokable []tool.BaseTool
	for _, def := range Definitions() {
		var t tool.InvokableTool
		switch def.Name {
		case ToolSearchProducts:
			t = newTool(def, h.searchProducts)
		case ToolGetProductDetails:
			t = newTool(def, h.getProductDetails)
		case ToolAddToCart:
			t = newTool(def, h.addToCart)
		case ToolGetCart:
			t = newTool(def, h.getCart)
		case ToolSearchFAQs:
			t = newTool(def, h.searchFAQs)
		case ToolCreateOrder:
			t = newTool(def, h.createOrder)
		default:
			continue
		}
		r.defs = append(r.defs, def)
		r.byDef[def.Name] = def
		invokable = append(invokable, t)
	}

	// Info on utils.NewTool tools returns the static ToolInfo, so building
	// the node cannot fail.
	node, err := compose.NewToolNode(context.Background(), &compose.ToolsNodeConfig{
		Tools:               invokable,
		ExecuteSequentially: true,
		UnknownToolsHandler: func(ctx context.Context, name, input string) (string, error) {
			logx.Warn().Str("tool_name", name).Str("arguments", truncate(input, 200)).Msg("unknown tool requested")
			return encodeResult(model.ToolResult{Success: false, Error: "Unknown tool: " + name}), nil
		},
		ToolArgumentsHandler: func(ctx context.Context, name, arguments string) (string, error) {
			return SanitizeArguments(r.byDef[name], arguments), nil
		},
	})
	if err != nil {
		panic(fmt.Sprintf("tools: build tools node: %v", err))
	}
	r.node = node
	return r
}

// Definitions returns the declarations offered to the model.
func (r *Registry) Definitions() []model.ToolDefinition {
	out := make([]model.ToolDefinition, len(r.defs))
	copy(out, r.defs)
	return out
}

// Execute runs one invocation through the tools node. The orchestrator calls
// it once per tool call so every result can be reported as it lands. It never
// panics and never returns an error: every failure ends up in the result
// envelope.
func (r *Registry) Execute(ctx context.Context, call model.ToolInvocation, agent *model.AgentContext) (result model.ToolResult) {
	ctx = WithAgentContext(ctx, agent)

	defer func() {
		if p := recover(); p != nil {
			logx.Error().
				Str("tool_name", call.Name).
				Interface("panic", p).
				Bytes("stack", debug.Stack()).
				Msg("tool panicked")
			result = model.ToolResult{Success: false, Error: fmt.Sprintf("Tool %s failed unexpectedly", call.Name)}
		}
	}()

	msgs, err := r.node.Invoke(ctx, &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{{
			ID:       call.ID,
			Type:     "function",
			Function: schema.FunctionCall{Name: call.Name, Arguments: string(call.Input)},
		}},
	})
	if err != nil {
		logx.Warn().Err(err).Str("tool_name", call.Name).Msg("tool invocation rejected")
		return model.ToolResult{Success: false, Error: fmt.Sprintf("Invalid arguments for %s", call.Name)}
	}
	if len(msgs) != 1 || msgs[0] == nil {
		logx.Error().Int("messages", len(msgs)).Str("tool_name", call.Name).Msg("tools node returned no result")
		return model.ToolResult{Success: false, Error: fmt.Sprintf("Tool %s failed unexpectedly", call.Name)}
	}

	if err := json.Unmarshal([]byte(msgs[0].Content), &result); err != nil {
		logx.Error().Err(err).Str("tool_name", call.Name).Msg("tool produced an unreadable result")
		return model.ToolResult{Success: false, Error: fmt.Sprintf("Tool %s failed unexpectedly", call.Name)}
	}
	return result
}

func encodeResult(res model.ToolResult) string {
	b, err := json.Marshal(res)
	if err != nil {
		return `{"success":false,"error":"could not encode tool result"}`
	}
	return string(b)
}

// newTool adapts a typed handler into an eino tool whose output is always a
// ToolResult. Handler errors become failed results; only argument decoding
// errors surface from InvokableRun.
func newTool[T any, D any](def model.ToolDefinition, fn func(ctx context.Context, in T) (D, error)) tool.InvokableTool {
	return utils.NewTool(def.ToolInfo(), func(ctx context.Context, in T) (model.ToolResult, error) {
		data, err := fn(ctx, in)
		if err != nil {
			return failure(def.Name, err), nil
		}
		return success(data), nil
	})
}

func success(data any) model.ToolResult {
	b, err := json.Marshal(data)
	if err != nil {
		return model.ToolResult{Success: false, Error: "could not encode tool result"}
	}
	return model.ToolResult{Success: true, Data: b}
}

// failure reports err to the model. Errors wrapped by errx.Public show only
// their public message; the cause goes to the log.
func failure(toolName string, err error) model.ToolResult {
	var pub *errx.PublicError
	if errors.As(err, &pub) {
		logx.Warn().Err(pub.Unwrap()).Str("tool_name", toolName).Msg("tool failed")
		return model.ToolResult{Success: false, Error: pub.Message}
	}
	return model.ToolResult{Success: false, Error: err.Error()}
}
