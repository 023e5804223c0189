package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/cloudwego/eino/schema"
	"github.com/go-resty/resty/v2"

	"github.com/chative-commerce/storefront-agent/internal/agent/model"
	errx "github.com/chative-commerce/storefront-agent/internal/core/error"
	logx "github.com/chative-commerce/storefront-agent/pkg/logger"
	"github.com/chative-commerce/storefront-agent/pkg/retry"
)

const anthropicService = "anthropic"

// AnthropicGateway talks to the Messages API. The SDK types are used as the
// wire codec only; transport and retries stay with resty and pkg/retry.
type AnthropicGateway struct {
	client      *resty.Client
	model       anthropic.Model
	maxTokens   int64
	temperature float32
	policy      retry.Policy
}

func NewAnthropicGateway(cfg model.LLMConfig, policy retry.Policy) *AnthropicGateway {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.AnthropicBaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("x-api-key", cfg.AnthropicAPIKey).
		SetHeader("anthropic-version", cfg.AnthropicVersion)

	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &AnthropicGateway{
		client:      client,
		model:       anthropic.Model(cfg.AnthropicModel),
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		policy:      policy,
	}
}

func (g *AnthropicGateway) Complete(ctx context.Context, msgs []*schema.Message, system string) (string, error) {
	out, err := g.CompleteWithTools(ctx, msgs, system, nil)
	if err != nil {
		return "", err
	}
	return out.Content, nil
}

func (g *AnthropicGateway) CompleteWithTools(ctx context.Context, msgs []*schema.Message, system string, tools []model.ToolDefinition) (*schema.Message, error) {
	params := g.buildParams(msgs, system, tools)

	return retry.Do(ctx, g.policy, "anthropic.messages", func(ctx context.Context) (*schema.Message, error) {
		resp, err := g.client.R().
			SetContext(ctx).
			SetBody(params).
			Post("/v1/messages")
		if err != nil {
			return nil, fmt.Errorf("anthropic request: %w", err)
		}
		if resp.IsError() {
			return nil, errx.NewUpstream(anthropicService, resp.StatusCode(), resp.String(), resp.Header().Get("Retry-After"))
		}

		var msg anthropic.Message
		if err := json.Unmarshal(resp.Body(), &msg); err != nil {
			return nil, fmt.Errorf("decode anthropic response: %w", err)
		}
		return fromAnthropicMessage(&msg), nil
	})
}

func (g *AnthropicGateway) CompleteStream(ctx context.Context, msgs []*schema.Message, system string) (*schema.StreamReader[string], error) {
	body, err := streamingBody(g.buildParams(msgs, system, nil))
	if err != nil {
		return nil, err
	}

	resp, err := retry.Do(ctx, g.policy, "anthropic.stream", func(ctx context.Context) (*resty.Response, error) {
		resp, err := g.client.R().
			SetContext(ctx).
			SetHeader("Accept", "text/event-stream").
			SetBody(body).
			SetDoNotParseResponse(true).
			Post("/v1/messages")
		if err != nil {
			return nil, fmt.Errorf("anthropic stream request: %w", err)
		}
		if resp.IsError() {
			raw := resp.RawBody()
			defer raw.Close()
			b, _ := io.ReadAll(io.LimitReader(raw, 4096))
			return nil, errx.NewUpstream(anthropicService, resp.StatusCode(), string(b), resp.Header().Get("Retry-After"))
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	sr, sw := schema.Pipe[string](16)
	go func() {
		raw := resp.RawBody()
		defer raw.Close()
		defer sw.Close()

		err := ReadTextDeltas(raw, func(text string) bool {
			return sw.Send(text, nil)
		})
		if err != nil {
			logx.Error().Err(err).Msg("anthropic stream aborted")
			sw.Send("", err)
		}
	}()
	return sr, nil
}

func (g *AnthropicGateway) buildParams(msgs []*schema.Message, system string, tools []model.ToolDefinition) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     g.model,
		MaxTokens: g.maxTokens,
		Messages:  toAnthropicMessages(msgs),
	}
	if strings.TrimSpace(system) != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if g.temperature > 0 {
		params.Temperature = anthropic.Float(float64(g.temperature))
	}
	if len(tools) > 0 {
		params.Tools = toAnthropicTools(tools)
	}
	return params
}

// streamingBody adds the stream flag, which MessageNewParams does not carry.
func streamingBody(params anthropic.MessageNewParams) (map[string]any, error) {
	b, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode anthropic params: %w", err)
	}
	var body map[string]any
	if err := json.Unmarshal(b, &body); err != nil {
		return nil, fmt.Errorf("encode anthropic params: %w", err)
	}
	body["stream"] = true
	return body, nil
}

func toAnthropicTools(defs []model.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(defs))
	for i, def := range defs {
		props, required := def.InputSchema()
		schemaParam := anthropic.ToolInputSchemaParam{Properties: props}
		if len(required) > 0 {
			schemaParam.Required = required
		}
		out[i] = anthropic.ToolUnionParamOfTool(schemaParam, def.Name)
		if def.Description != "" {
			out[i].OfTool.Description = anthropic.String(def.Description)
		}
	}
	return out
}

// toAnthropicMessages converts the eino message list. Assistant tool calls are
// replayed as tool_use blocks and consecutive tool messages are folded into a
// single user turn of tool_result blocks. System messages are dropped; the
// system prompt travels top level.
func toAnthropicMessages(msgs []*schema.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	var results []anthropic.ContentBlockParamUnion

	flush := func() {
		if len(results) > 0 {
			out = append(out, anthropic.NewUserMessage(results...))
			results = nil
		}
	}

	for _, m := range msgs {
		if m == nil {
			continue
		}
		if m.Role == schema.Tool {
			results = append(results, anthropic.NewToolResultBlock(m.ToolCallID, m.Content, isToolError(m)))
			continue
		}
		flush()

		switch m.Role {
		case schema.User:
			if strings.TrimSpace(m.Content) == "" {
				continue
			}
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case schema.Assistant:
			var blocks []anthropic.ContentBlockParamUnion
			if strings.TrimSpace(m.Content) != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				input := json.RawMessage(tc.Function.Arguments)
				if !json.Valid(input) {
					input = json.RawMessage("{}")
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Function.Name))
			}
			if len(blocks) == 0 {
				continue
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		}
	}
	flush()
	return out
}

func fromAnthropicMessage(msg *anthropic.Message) *schema.Message {
	out := &schema.Message{Role: schema.Assistant}
	var text strings.Builder
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(b.Text)
		case anthropic.ToolUseBlock:
			args := string(b.Input)
			if strings.TrimSpace(args) == "" {
				args = "{}"
			}
			out.ToolCalls = append(out.ToolCalls, schema.ToolCall{
				ID:       b.ID,
				Type:     "function",
				Function: schema.FunctionCall{Name: b.Name, Arguments: args},
			})
		}
	}
	out.Content = text.String()
	out.ResponseMeta = &schema.ResponseMeta{
		FinishReason: string(msg.StopReason),
		Usage: &schema.TokenUsage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}
	return out
}

var _ Gateway = (*AnthropicGateway)(nil)
