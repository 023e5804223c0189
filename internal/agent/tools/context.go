package tools

import (
	"context"

	"github.com/chative-commerce/storefront-agent/internal/agent/model"
)

type agentContextKey struct{}

// WithAgentContext attaches the per-request agent context for tool handlers.
func WithAgentContext(ctx context.Context, a *model.AgentContext) context.Context {
	return context.WithValue(ctx, agentContextKey{}, a)
}

// AgentContextFrom returns the attached agent context, or nil.
func AgentContextFrom(ctx context.Context) *model.AgentContext {
	a, _ := ctx.Value(agentContextKey{}).(*model.AgentContext)
	return a
}
