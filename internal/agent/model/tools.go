package model

import (
	"encoding/json"
	"sort"

	"github.com/cloudwego/eino/schema"
)

// ToolDefinition is the static declaration of one agent action.
type ToolDefinition struct {
	Name        string
	Description string
	Params      map[string]*schema.ParameterInfo
}

// ToolInfo converts the definition into eino's tool description.
func (d ToolDefinition) ToolInfo() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name:        d.Name,
		Desc:        d.Description,
		ParamsOneOf: schema.NewParamsOneOfByParams(d.Params),
	}
}

// InputSchema renders the parameters as a JSON-schema "properties" map plus
// the sorted list of required names.
func (d ToolDefinition) InputSchema() (map[string]any, []string) {
	props := make(map[string]any, len(d.Params))
	var required []string
	for name, p := range d.Params {
		if p == nil {
			continue
		}
		prop := map[string]any{"type": string(p.Type)}
		if p.Desc != "" {
			prop["description"] = p.Desc
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		props[name] = prop
		if p.Required {
			required = append(required, name)
		}
	}
	sort.Strings(required)
	return props, required
}

// ToolInvocation is one call requested by the model. Input is untrusted.
type ToolInvocation struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult is the uniform envelope every tool execution ends in.
type ToolResult struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ExecutedTool is an entry of the tool log returned to callers.
type ExecutedTool struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Input  json.RawMessage `json:"input"`
	Result ToolResult      `json:"result"`
}

// CartState is the subset of a tool payload the orchestrator threads into responses.
type CartState struct {
	CartID      string `json:"cartId,omitempty"`
	CheckoutURL string `json:"checkoutUrl,omitempty"`
}

// CartState extracts cart id / checkout url from a successful payload.
func (r ToolResult) CartState() CartState {
	var s CartState
	if !r.Success || len(r.Data) == 0 {
		return s
	}
	_ = json.Unmarshal(r.Data, &s)
	return s
}
