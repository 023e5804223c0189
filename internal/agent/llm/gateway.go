package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/chative-commerce/storefront-agent/internal/agent/model"
	"github.com/chative-commerce/storefront-agent/pkg/retry"
)

// Gateway is the chat-completion boundary used by the orchestrator.
//
// CompleteWithTools returns an assistant message whose ToolCalls hold the
// requested invocations (in model order) and whose ResponseMeta.FinishReason
// carries the provider stop reason.
type Gateway interface {
	Complete(ctx context.Context, msgs []*schema.Message, system string) (string, error)
	CompleteStream(ctx context.Context, msgs []*schema.Message, system string) (*schema.StreamReader[string], error)
	CompleteWithTools(ctx context.Context, msgs []*schema.Message, system string, tools []model.ToolDefinition) (*schema.Message, error)
}

const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// New builds the gateway selected by cfg.Provider.
func New(ctx context.Context, cfg model.LLMConfig, policy retry.Policy) (Gateway, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for provider %q", ProviderAnthropic)
		}
		return NewAnthropicGateway(cfg, policy), nil
	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for provider %q", ProviderGemini)
		}
		return NewGeminiGateway(ctx, cfg, policy)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}

// extraToolError marks a tool message whose result is a failure.
const extraToolError = "tool_error"

// ToolResultMessage is the turn that answers one tool invocation.
func ToolResultMessage(callID, toolName, content string, failed bool) *schema.Message {
	msg := &schema.Message{
		Role:       schema.Tool,
		Content:    content,
		ToolCallID: callID,
		ToolName:   toolName,
	}
	if failed {
		msg.Extra = map[string]any{extraToolError: true}
	}
	return msg
}

func isToolError(m *schema.Message) bool {
	if m == nil || m.Extra == nil {
		return false
	}
	v, _ := m.Extra[extraToolError].(bool)
	return v
}

// FinishReason returns the stop reason of a completion, if any.
func FinishReason(m *schema.Message) string {
	if m == nil || m.ResponseMeta == nil {
		return ""
	}
	return m.ResponseMeta.FinishReason
}
