package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chative-commerce/storefront-agent/internal/agent/conversations"
	"github.com/chative-commerce/storefront-agent/internal/agent/model"
	"github.com/chative-commerce/storefront-agent/internal/agent/orchestrator"
	"github.com/chative-commerce/storefront-agent/internal/core"
	logx "github.com/chative-commerce/storefront-agent/pkg/logger"
)

type Config struct {
	Addr            string        `envconfig:"HTTP_ADDR" default:":8080"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"15s"`
	// AdminToken guards the admin routes; they are not mounted when empty.
	AdminToken string `envconfig:"ADMIN_TOKEN"`
}

// Agent is the conversation core behind the chat routes.
type Agent interface {
	ProcessMessage(ctx context.Context, history []model.ConversationTurn, agent *model.AgentContext) (*orchestrator.Result, error)
	ProcessMessageStream(ctx context.Context, history []model.ConversationTurn, agent *model.AgentContext) <-chan orchestrator.Event
}

type TenantCache interface {
	ClearCache(ids ...string)
}

// Deps are the collaborators of the HTTP layer. Conversations is optional;
// without it callers must send the whole conversation with each request.
type Deps struct {
	Agent         Agent
	Tenants       TenantCache
	Conversations *conversations.MessagesManager
	Gatherer      prometheus.Gatherer
}

type Server struct {
	cfg    Config
	engine *gin.Engine
}

func New(cfg Config, env core.Environment, deps Deps) *Server {
	if env.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), RequestID(), AccessLog())

	h := &handler{agent: deps.Agent, tenants: deps.Tenants, conversations: deps.Conversations}

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	if deps.Gatherer != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := engine.Group("/v1")
	v1.POST("/chat", h.chat)
	v1.POST("/chat/stream", h.chatStream)

	if cfg.AdminToken != "" && deps.Tenants != nil {
		admin := v1.Group("/admin", AdminAuth(cfg.AdminToken))
		admin.DELETE("/tenants/:id/cache", h.clearTenantCache)
	}

	return &Server{cfg: cfg, engine: engine}
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logx.Info().Str("addr", s.cfg.Addr).Msg("HTTP server listening")
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		logx.Info().Msg("context cancelled, shutting down HTTP server")
	case err := <-errCh:
		return err
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
