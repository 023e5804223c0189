package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"

	"github.com/chative-commerce/storefront-agent/internal/agent/model"
	"github.com/chative-commerce/storefront-agent/internal/core"
	"github.com/chative-commerce/storefront-agent/internal/server"
	logx "github.com/chative-commerce/storefront-agent/pkg/logger"
	"github.com/chative-commerce/storefront-agent/pkg/postgres"
	pkgredis "github.com/chative-commerce/storefront-agent/pkg/redis"
	"github.com/chative-commerce/storefront-agent/pkg/retry"
)

// AppConfig defines all configurable parameters of the service, sourced from
// environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"APP_ENV" default:"development"`

	// Infrastructure
	HTTP     server.Config
	Postgres postgres.Config
	Redis    pkgredis.Config

	// Agent configs
	Agent        model.AgentConfig
	Conversation model.ConversationConfig
	LLM          model.LLMConfig
	Embedding    model.EmbeddingConfig
	Retry        model.RetryConfig
	Retrieval    model.RetrievalConfig
	TenantCache  model.TenantCacheConfig
	Commerce     model.CommerceConfig
}

func (c AppConfig) env() core.Environment {
	return core.ParseEnvironment(c.Environment)
}

func (c AppConfig) retryPolicy() retry.Policy {
	return retry.Policy{
		MaxRetries:    c.Retry.MaxRetries,
		InitialDelay:  c.Retry.InitialDelay,
		MaxDelay:      c.Retry.MaxDelay,
		BackoffFactor: c.Retry.BackoffFactor,
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logx.Error().Err(err).Msg("command failed")
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg AppConfig

	root := &cobra.Command{
		Use:           "storefront-agent",
		Short:         "Multi-tenant storefront support agent",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file
			if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
				logx.Warn().Err(err).Msg("could not load .env file")
			}
			if err := envconfig.Process("", &cfg); err != nil {
				return err
			}
			logx.Init(logx.LoggerOpts{Environment: cfg.env(), Service: "storefront-agent"})
			return nil
		},
	}

	root.AddCommand(
		newServeCmd(&cfg),
		newMigrateCmd(&cfg),
		newIndexCmd(&cfg),
	)
	return root
}
