package observers

import (
	"context"
	"encoding/json"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/components/tool"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"

	logx "github.com/chative-commerce/storefront-agent/pkg/logger"
)

func newToolHandler(m *Metrics) *callbackHelper.ToolCallbackHandler {
	return &callbackHelper.ToolCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *tool.CallbackInput) context.Context {
			ev := logx.Debug().Str("tool_name", info.Name)
			if input != nil {
				ev = ev.Str("arguments", truncate(input.ArgumentsInJSON, 500))
			}
			ev.Msg("tool start")
			return withStart(ctx)
		},
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *tool.CallbackOutput) context.Context {
			status := "ok"
			var res struct {
				Success bool   `json:"success"`
				Error   string `json:"error"`
			}
			if output != nil && json.Unmarshal([]byte(output.Response), &res) == nil && !res.Success {
				status = "failed"
			}
			took := elapsed(ctx)
			m.ToolCalls.WithLabelValues(info.Name, status).Inc()
			m.ToolDuration.WithLabelValues(info.Name).Observe(took.Seconds())

			ev := logx.Info().Str("tool_name", info.Name).Str("status", status).Dur("took", took)
			if res.Error != "" {
				ev = ev.Str("tool_error", res.Error)
			}
			ev.Msg("tool end")
			return ctx
		},
		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			m.ToolCalls.WithLabelValues(info.Name, "error").Inc()
			logx.Warn().Err(err).Str("tool_name", info.Name).Msg("tool error")
			return ctx
		},
	}
}

func newPromptHandler() *callbackHelper.PromptCallbackHandler {
	return &callbackHelper.PromptCallbackHandler{
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *prompt.CallbackOutput) context.Context {
			if output != nil && len(output.Result) > 0 && output.Result[0] != nil {
				logx.Debug().Int("system_prompt_chars", len(output.Result[0].Content)).Msg("system prompt rendered")
			}
			return ctx
		},
		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			logx.Error().Err(err).Msg("prompt render failed")
			return ctx
		},
	}
}
