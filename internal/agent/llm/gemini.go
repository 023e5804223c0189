package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/chative-commerce/storefront-agent/internal/agent/model"
	errx "github.com/chative-commerce/storefront-agent/internal/core/error"
	logx "github.com/chative-commerce/storefront-agent/pkg/logger"
	"github.com/chative-commerce/storefront-agent/pkg/retry"
)

const geminiService = "gemini"

// GeminiGateway serves the same contract through the eino Gemini chat model.
type GeminiGateway struct {
	cm     *gemini.ChatModel
	policy retry.Policy
}

func NewGeminiGateway(ctx context.Context, cfg model.LLMConfig, policy retry.Policy) (*GeminiGateway, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.GeminiBaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.GeminiBaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	maxTokens := cfg.MaxTokens
	temperature := cfg.Temperature
	cm, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       cfg.GeminiModel,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini chat model")
		return nil, fmt.Errorf("error creating Gemini chat model: %w", err)
	}
	return &GeminiGateway{cm: cm, policy: policy}, nil
}

func (g *GeminiGateway) Complete(ctx context.Context, msgs []*schema.Message, system string) (string, error) {
	out, err := g.generate(ctx, withSystem(msgs, system))
	if err != nil {
		return "", err
	}
	return out.Content, nil
}

func (g *GeminiGateway) CompleteWithTools(ctx context.Context, msgs []*schema.Message, system string, tools []model.ToolDefinition) (*schema.Message, error) {
	var opts []einomodel.Option
	if len(tools) > 0 {
		infos := make([]*schema.ToolInfo, len(tools))
		for i, t := range tools {
			infos[i] = t.ToolInfo()
		}
		opts = append(opts, einomodel.WithTools(infos))
	}
	return g.generate(ctx, withSystem(msgs, system), opts...)
}

func (g *GeminiGateway) CompleteStream(ctx context.Context, msgs []*schema.Message, system string) (*schema.StreamReader[string], error) {
	in := withSystem(msgs, system)
	sr, err := retry.Do(ctx, g.policy, "gemini.stream", func(ctx context.Context) (*schema.StreamReader[*schema.Message], error) {
		sr, err := g.cm.Stream(ctx, in)
		if err != nil {
			return nil, mapGeminiError(err)
		}
		return sr, nil
	})
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderWithConvert(sr, func(m *schema.Message) (string, error) {
		if m == nil || m.Content == "" {
			return "", schema.ErrNoValue
		}
		return m.Content, nil
	}), nil
}

func (g *GeminiGateway) generate(ctx context.Context, in []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	return retry.Do(ctx, g.policy, "gemini.generate", func(ctx context.Context) (*schema.Message, error) {
		out, err := g.cm.Generate(ctx, in, opts...)
		if err != nil {
			return nil, mapGeminiError(err)
		}
		return out, nil
	})
}

func withSystem(msgs []*schema.Message, system string) []*schema.Message {
	out := make([]*schema.Message, 0, len(msgs)+1)
	if system != "" {
		out = append(out, schema.SystemMessage(system))
	}
	for _, m := range msgs {
		if m == nil || m.Role == schema.System {
			continue
		}
		out = append(out, m)
	}
	return out
}

// mapGeminiError lifts genai API failures into UpstreamError so the shared
// retry policy can recognise throttling.
func mapGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %w", errx.NewUpstream(geminiService, apiErr.Code, apiErr.Message, ""), err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return fmt.Errorf("%w: %w", errx.NewUpstream(geminiService, apiErrPtr.Code, apiErrPtr.Message, ""), err)
	}
	return fmt.Errorf("%s: %w", geminiService, err)
}

var _ Gateway = (*GeminiGateway)(nil)
