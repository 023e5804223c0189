package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/chative-commerce/storefront-agent/internal/agent/llm"
	"github.com/chative-commerce/storefront-agent/internal/agent/model"
	"github.com/chative-commerce/storefront-agent/internal/agent/prompts"
	"github.com/chative-commerce/storefront-agent/internal/agent/retrieval"
	errx "github.com/chative-commerce/storefront-agent/internal/core/error"
	logx "github.com/chative-commerce/storefront-agent/pkg/logger"
)

const (
	DefaultMaxIterations = 5
	DefaultMaxTurns      = 20
	defaultStoreName     = "our store"
)

var (
	ErrUnknownTenant  = errors.New("unknown tenant")
	ErrInvalidRequest = errors.New("invalid request")
)

// ToolExecutor runs tool invocations. Execute must not panic or fail; every
// outcome is a ToolResult.
type ToolExecutor interface {
	Definitions() []model.ToolDefinition
	Execute(ctx context.Context, call model.ToolInvocation, agent *model.AgentContext) model.ToolResult
}

type Retriever interface {
	Search(ctx context.Context, tenantID, query string) (model.SearchResult, error)
}

// TenantResolver returns nil for tenants that do not exist.
type TenantResolver interface {
	GetTenant(ctx context.Context, id string) (*model.TenantConfig, error)
}

type Config struct {
	MaxIterations       int
	MaxTurns            int
	DefaultStoreName    string
	DefaultInstructions string
	// ModelName labels model callbacks and picks the cost table.
	ModelName string
	Handlers  []callbacks.Handler
}

// Result is the outcome of one processing cycle.
type Result struct {
	Reply       string               `json:"reply"`
	ToolCalls   []model.ExecutedTool `json:"toolCalls,omitempty"`
	CartID      string               `json:"cartId,omitempty"`
	CheckoutURL string               `json:"checkoutUrl,omitempty"`
}

type Orchestrator struct {
	llm       llm.Gateway
	tools     ToolExecutor
	retriever Retriever
	tenants   TenantResolver
	cfg       Config
}

func New(gateway llm.Gateway, tools ToolExecutor, retriever Retriever, tenants TenantResolver, cfg Config) *Orchestrator {
	cfg.MaxIterations = normalizeMaxIterations(cfg.MaxIterations)
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}
	if strings.TrimSpace(cfg.DefaultStoreName) == "" {
		cfg.DefaultStoreName = defaultStoreName
	}
	return &Orchestrator{llm: gateway, tools: tools, retriever: retriever, tenants: tenants, cfg: cfg}
}

// ProcessMessage runs the tool-calling loop to completion. Returned errors
// are *errx.PublicError values carrying only the apology text; the cause stays
// reachable with errors.Is / errors.As for logging and status mapping.
func (o *Orchestrator) ProcessMessage(ctx context.Context, history []model.ConversationTurn, agent *model.AgentContext) (*Result, error) {
	res, err := o.safeRun(ctx, history, agent, nil)
	if err != nil {
		return nil, errx.Public(err, errx.ApologyMessage)
	}
	return res, nil
}

func (o *Orchestrator) safeRun(ctx context.Context, history []model.ConversationTurn, agent *model.AgentContext, emit func(Event)) (res *Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			logx.Error().Interface("panic", p).Bytes("stack", debug.Stack()).Msg("orchestrator panicked")
			res, err = nil, fmt.Errorf("orchestrator panic: %v", p)
		}
	}()
	res, err = o.run(ctx, history, agent, emit)
	if err != nil {
		ev := logx.Error().Err(err)
		if agent != nil {
			ev = ev.Str("tenant_id", agent.TenantID).Str("session_id", agent.SessionID)
		}
		ev.Msg("conversation cycle failed")
	}
	return res, err
}

func (o *Orchestrator) run(ctx context.Context, history []model.ConversationTurn, agent *model.AgentContext, emit func(Event)) (*Result, error) {
	if err := validate(history, agent); err != nil {
		return nil, err
	}
	ctx = callbacks.InitCallbacks(ctx, &callbacks.RunInfo{
		Name:      "storefront-agent",
		Type:      "Orchestrator",
		Component: components.Component("Agent"),
	}, o.cfg.Handlers...)

	tenant, err := o.tenants.GetTenant(ctx, agent.TenantID)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTenant, agent.TenantID)
	}

	system, err := o.systemPrompt(ctx, tenant, model.LastUserMessage(history))
	if err != nil {
		return nil, err
	}

	msgs := toMessages(trimTail(history, o.cfg.MaxTurns))
	defs := o.tools.Definitions()
	res := &Result{}

	var lastText string
	for iter := 1; iter <= o.cfg.MaxIterations; iter++ {
		resp, err := o.callModel(ctx, msgs, system, defs)
		if err != nil {
			return nil, err
		}
		lastText = resp.Content

		if len(resp.ToolCalls) == 0 {
			res.Reply = resp.Content
			o.finish(res, agent)
			return res, nil
		}

		msgs = append(msgs, &schema.Message{
			Role:      schema.Assistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, tc := range resp.ToolCalls {
			executed := o.executeTool(ctx, tc, agent)
			res.ToolCalls = append(res.ToolCalls, executed)

			state := executed.Result.CartState()
			if state.CartID != "" {
				res.CartID = state.CartID
			}
			if state.CheckoutURL != "" {
				res.CheckoutURL = state.CheckoutURL
			}
			if emit != nil {
				ev := executed
				emit(Event{Type: EventTool, Tool: &ev})
			}

			content, err := json.Marshal(executed.Result)
			if err != nil {
				content = []byte(`{"success":false,"error":"unreadable tool result"}`)
			}
			msgs = append(msgs, llm.ToolResultMessage(tc.ID, tc.Function.Name, string(content), !executed.Result.Success))
		}
	}

	logx.Warn().
		Str("tenant_id", agent.TenantID).
		Str("session_id", agent.SessionID).
		Int("max_iterations", o.cfg.MaxIterations).
		Int("tool_calls", len(res.ToolCalls)).
		Msg("iteration cap reached without a final answer")
	res.Reply = lastText
	o.finish(res, agent)
	return res, nil
}

// finish threads the session cart into the result when no tool reported one.
func (o *Orchestrator) finish(res *Result, agent *model.AgentContext) {
	if res.CartID == "" {
		res.CartID = agent.CartID
	}
}

func (o *Orchestrator) executeTool(ctx context.Context, tc schema.ToolCall, agent *model.AgentContext) model.ExecutedTool {
	input := json.RawMessage(tc.Function.Arguments)
	if !json.Valid(input) {
		input = json.RawMessage("{}")
	}
	call := model.ToolInvocation{ID: tc.ID, Name: tc.Function.Name, Input: input}
	return model.ExecutedTool{
		ID:     call.ID,
		Name:   call.Name,
		Input:  call.Input,
		Result: o.tools.Execute(ctx, call, agent),
	}
}

func (o *Orchestrator) callModel(ctx context.Context, msgs []*schema.Message, system string, defs []model.ToolDefinition) (*schema.Message, error) {
	infos := make([]*schema.ToolInfo, len(defs))
	for i, d := range defs {
		infos[i] = d.ToolInfo()
	}
	ctx = callbacks.ReuseHandlers(ctx, &callbacks.RunInfo{
		Name:      o.cfg.ModelName,
		Type:      "LLMGateway",
		Component: components.ComponentOfChatModel,
	})
	ctx = callbacks.OnStart(ctx, &einomodel.CallbackInput{Messages: msgs, Tools: infos})

	out, err := o.llm.CompleteWithTools(ctx, msgs, system, defs)
	if err != nil {
		callbacks.OnError(ctx, err)
		return nil, fmt.Errorf("model call: %w", err)
	}
	if out == nil {
		out = &schema.Message{Role: schema.Assistant}
	}
	callbacks.OnEnd(ctx, &einomodel.CallbackOutput{Message: out})
	return out, nil
}

// systemPrompt merges tenant instructions with context retrieved for query.
// Retrieval problems only cost the context block.
func (o *Orchestrator) systemPrompt(ctx context.Context, tenant *model.TenantConfig, query string) (string, error) {
	in := prompts.SystemInput{
		StoreName:    tenant.Name,
		Instructions: tenant.CustomInstructions,
	}
	if strings.TrimSpace(in.StoreName) == "" {
		in.StoreName = o.cfg.DefaultStoreName
	}
	if strings.TrimSpace(in.Instructions) == "" {
		in.Instructions = o.cfg.DefaultInstructions
	}

	if o.retriever != nil && query != "" {
		found, err := o.retriever.Search(ctx, tenant.ID, query)
		if err != nil {
			logx.Warn().Err(err).Str("tenant_id", tenant.ID).Msg("retrieval failed; continuing without context")
		} else {
			in.Context = retrieval.BuildContext(found)
		}
	}
	return prompts.RenderSystem(ctx, in)
}

func validate(history []model.ConversationTurn, agent *model.AgentContext) error {
	if agent == nil || strings.TrimSpace(agent.TenantID) == "" {
		return fmt.Errorf("%w: tenantId is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(agent.SessionID) == "" {
		return fmt.Errorf("%w: sessionId is required", ErrInvalidRequest)
	}
	if model.LastUserMessage(history) == "" {
		return fmt.Errorf("%w: a non-empty user message is required", ErrInvalidRequest)
	}
	return nil
}

// normalizeMaxIterations returns a sane default when the provided value is invalid.
func normalizeMaxIterations(n int) int {
	if n <= 0 {
		return DefaultMaxIterations
	}
	return n
}
