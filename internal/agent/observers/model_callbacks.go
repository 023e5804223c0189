package observers

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"

	agentmodel "github.com/chative-commerce/storefront-agent/internal/agent/model"
	logx "github.com/chative-commerce/storefront-agent/pkg/logger"
)

type startedAtKey struct{}

func withStart(ctx context.Context) context.Context {
	return context.WithValue(ctx, startedAtKey{}, time.Now())
}

func elapsed(ctx context.Context) time.Duration {
	if t, ok := ctx.Value(startedAtKey{}).(time.Time); ok {
		return time.Since(t)
	}
	return 0
}

// newModelHandler logs model calls and records usage, cost and latency.
func newModelHandler(m *Metrics, modelName string) *callbackHelper.ModelCallbackHandler {
	pricing := agentmodel.ResolvePricing(modelName)
	return &callbackHelper.ModelCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *model.CallbackInput) context.Context {
			ev := logx.Debug().Str("component", info.Type).Str("name", info.Name)
			if input != nil {
				ev = ev.Int("messages", len(input.Messages)).Int("tools", len(input.Tools))
				if um := lastUserContent(input.Messages); um != "" {
					ev = ev.Str("user", truncate(um, 200))
				}
			}
			ev.Msg("model call start")
			return withStart(ctx)
		},
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *model.CallbackOutput) context.Context {
			took := elapsed(ctx)
			m.ModelCalls.WithLabelValues("ok").Inc()
			m.ModelDuration.Observe(took.Seconds())

			ev := logx.Debug().Str("component", info.Type).Dur("took", took)
			if output != nil && output.Message != nil {
				msg := output.Message
				ev = ev.Int("tool_calls", len(msg.ToolCalls))
				if content := strings.TrimSpace(msg.Content); content != "" {
					ev = ev.Str("assistant", truncate(content, 200))
				}
				if usage := usageOf(output); usage != nil {
					in, out, total := agentmodel.ComputeCost(usage, pricing)
					m.ModelTokens.WithLabelValues("prompt").Add(float64(usage.PromptTokens))
					m.ModelTokens.WithLabelValues("completion").Add(float64(usage.CompletionTokens))
					m.ModelCostUSD.Add(total)
					ev = ev.Int("prompt_tokens", usage.PromptTokens).
						Int("completion_tokens", usage.CompletionTokens).
						Float64("cost_input_usd", in).
						Float64("cost_output_usd", out)
				}
			}
			ev.Msg("model call end")
			return ctx
		},
		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			m.ModelCalls.WithLabelValues("error").Inc()
			logx.Error().Err(err).Str("component", info.Type).Dur("took", elapsed(ctx)).Msg("model call failed")
			return ctx
		},
	}
}

func usageOf(output *model.CallbackOutput) *schema.TokenUsage {
	if output.Message != nil && output.Message.ResponseMeta != nil && output.Message.ResponseMeta.Usage != nil {
		return output.Message.ResponseMeta.Usage
	}
	if output.TokenUsage != nil {
		return &schema.TokenUsage{
			PromptTokens:     output.TokenUsage.PromptTokens,
			CompletionTokens: output.TokenUsage.CompletionTokens,
			TotalTokens:      output.TokenUsage.TotalTokens,
		}
	}
	return nil
}

func lastUserContent(msgs []*schema.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m == nil {
			continue
		}
		if m.Role == schema.User {
			return strings.TrimSpace(m.Content)
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
