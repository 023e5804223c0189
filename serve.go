package main

import (
	"fmt"

	"github.com/cloudwego/eino/callbacks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/chative-commerce/storefront-agent/internal/agent/conversations"
	"github.com/chative-commerce/storefront-agent/internal/agent/embedding"
	"github.com/chative-commerce/storefront-agent/internal/agent/llm"
	"github.com/chative-commerce/storefront-agent/internal/agent/model"
	"github.com/chative-commerce/storefront-agent/internal/agent/observers"
	"github.com/chative-commerce/storefront-agent/internal/agent/orchestrator"
	"github.com/chative-commerce/storefront-agent/internal/agent/repo"
	"github.com/chative-commerce/storefront-agent/internal/agent/retrieval"
	"github.com/chative-commerce/storefront-agent/internal/agent/tenant"
	"github.com/chative-commerce/storefront-agent/internal/agent/tools"
	"github.com/chative-commerce/storefront-agent/internal/commerce"
	"github.com/chative-commerce/storefront-agent/internal/server"
	logx "github.com/chative-commerce/storefront-agent/pkg/logger"
)

func newServeCmd(cfg *AppConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the chat HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd, cfg)
		},
	}
}

func serve(cmd *cobra.Command, cfg *AppConfig) error {
	ctx := cmd.Context()
	policy := cfg.retryPolicy()

	pool, err := cfg.Postgres.New(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()
	logx.Info().Msg("connected to postgres")

	embedder := embedding.NewGateway(cfg.Embedding, policy)
	retriever := retrieval.NewRetriever(embedder, repo.NewVectorStore(pool), retrieval.OptionsFromConfig(cfg.Retrieval))

	resolver, err := tenant.NewResolver(repo.NewTenantStore(pool), cfg.TenantCache)
	if err != nil {
		return fmt.Errorf("tenant resolver: %w", err)
	}

	var (
		sessions model.CartSessionStore = tools.NewMemoryCartSessions()
		history  *conversations.MessagesManager
	)
	if cfg.Redis.Enabled() {
		rdb, err := cfg.Redis.New(ctx)
		if err != nil {
			return fmt.Errorf("failed to initialise Redis client: %w", err)
		}
		defer rdb.Close()
		logx.Info().Msg("connected to redis; cart sessions and history are shared")
		sessions = repo.NewRedisCartSessions(rdb, cfg.Commerce.CartSessionTTL)
		history = conversations.NewMessagesManager(repo.NewRedisConversationRepository(rdb, cfg.Conversation), cfg.Conversation)
	}

	registry := tools.NewRegistry(tools.Deps{
		Catalog:  retriever,
		Tenants:  resolver,
		Commerce: commerce.NewFactory(cfg.Commerce, policy),
		Sessions: sessions,
	})

	gateway, err := llm.New(ctx, cfg.LLM, policy)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := observers.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	modelName := cfg.LLM.AnthropicModel
	if cfg.LLM.Provider == llm.ProviderGemini {
		modelName = cfg.LLM.GeminiModel
	}
	agent := orchestrator.New(gateway, registry, retriever, resolver, orchestrator.Config{
		MaxIterations:       cfg.Agent.MaxIterations,
		MaxTurns:            cfg.Conversation.MaxTurns,
		DefaultStoreName:    cfg.Agent.DefaultStoreName,
		DefaultInstructions: cfg.Agent.DefaultInstructions,
		ModelName:           modelName,
		Handlers:            []callbacks.Handler{observers.NewAllCallbacks(metrics, modelName)},
	})

	srv := server.New(cfg.HTTP, cfg.env(), server.Deps{
		Agent:         agent,
		Tenants:       resolver,
		Conversations: history,
		Gatherer:      reg,
	})
	logx.Info().Str("provider", cfg.LLM.Provider).Str("model", modelName).Msg("storefront agent ready")
	return srv.Run(ctx)
}
