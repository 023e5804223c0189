package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/chative-commerce/storefront-agent/internal/agent/conversations"
	"github.com/chative-commerce/storefront-agent/internal/agent/model"
	"github.com/chative-commerce/storefront-agent/internal/agent/orchestrator"
	errx "github.com/chative-commerce/storefront-agent/internal/core/error"
	logx "github.com/chative-commerce/storefront-agent/pkg/logger"
)

type turnDTO struct {
	Role    model.Role `json:"role" binding:"required,oneof=user assistant"`
	Content string     `json:"content"`
}

type chatRequest struct {
	TenantID  string    `json:"tenantId" binding:"required"`
	SessionID string    `json:"sessionId" binding:"required"`
	CartID    string    `json:"cartId"`
	Messages  []turnDTO `json:"messages" binding:"omitempty,dive"`
	Message   string    `json:"message"`
}

type chatResponse struct {
	*orchestrator.Result
	RequestID string `json:"requestId,omitempty"`
}

type handler struct {
	agent         Agent
	tenants       TenantCache
	conversations *conversations.MessagesManager
}

// conversation is a parsed chat request. stored is set when the history came
// from the conversation store and the new exchange must be written back.
type conversation struct {
	agent   *model.AgentContext
	history []model.ConversationTurn
	query   string
	stored  bool
}

func (h *handler) bind(c *gin.Context) (*conversation, bool) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return nil, false
	}
	conv := &conversation{agent: &model.AgentContext{
		TenantID:  strings.TrimSpace(req.TenantID),
		SessionID: strings.TrimSpace(req.SessionID),
		CartID:    strings.TrimSpace(req.CartID),
	}}

	switch {
	case len(req.Messages) > 0:
		conv.history = make([]model.ConversationTurn, 0, len(req.Messages)+1)
		for _, m := range req.Messages {
			conv.history = append(conv.history, model.ConversationTurn{Role: m.Role, Content: m.Content})
		}
		if strings.TrimSpace(req.Message) != "" {
			conv.history = append(conv.history, model.ConversationTurn{Role: model.RoleUser, Content: req.Message})
		}
	case strings.TrimSpace(req.Message) != "":
		conv.query = req.Message
		conv.history = []model.ConversationTurn{{Role: model.RoleUser, Content: req.Message}}
		if h.conversations != nil {
			conv.stored = true
			history, err := h.conversations.BuildHistory(c.Request.Context(), conv.agent.SessionKey(), req.Message)
			if err != nil {
				logx.Warn().Err(err).Str("session", conv.agent.SessionKey()).Msg("could not load stored history; continuing without it")
			} else {
				conv.history = history
			}
		}
	default:
		abortWith(c, http.StatusBadRequest, "either messages or message is required")
		return nil, false
	}
	return conv, true
}

func (h *handler) chat(c *gin.Context) {
	conv, ok := h.bind(c)
	if !ok {
		return
	}
	res, err := h.agent.ProcessMessage(c.Request.Context(), conv.history, conv.agent)
	if err != nil {
		_ = c.Error(err)
		status, msg := statusFor(err)
		abortWith(c, status, msg)
		return
	}
	h.remember(c.Request.Context(), conv, res)
	c.JSON(http.StatusOK, chatResponse{Result: res, RequestID: c.GetString(requestIDKey)})
}

func (h *handler) chatStream(c *gin.Context) {
	conv, ok := h.bind(c)
	if !ok {
		return
	}
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		abortWith(c, http.StatusInternalServerError, "streaming not supported")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	ctx := c.Request.Context()
	for ev := range h.agent.ProcessMessageStream(ctx, conv.history, conv.agent) {
		if ev.Type == orchestrator.EventDone {
			h.remember(ctx, conv, ev.Result)
		}
		if err := writeEvent(c.Writer, ev); err != nil {
			logx.Warn().Err(err).Str("request_id", c.GetString(requestIDKey)).Msg("client went away during stream")
			return
		}
		flusher.Flush()
	}
}

func (h *handler) clearTenantCache(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	h.tenants.ClearCache(id)
	logx.Info().Str("tenant_id", id).Msg("tenant cache cleared")
	c.Status(http.StatusNoContent)
}

// remember writes the exchange back to stored history.
func (h *handler) remember(ctx context.Context, conv *conversation, res *orchestrator.Result) {
	if !conv.stored || res == nil {
		return
	}
	if err := h.conversations.SaveExchange(ctx, conv.agent.SessionKey(), conv.query, res.Reply); err != nil {
		logx.Warn().Err(err).Str("session", conv.agent.SessionKey()).Msg("could not store conversation turns")
	}
}

func writeEvent(w http.ResponseWriter, ev orchestrator.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	return err
}

// statusFor maps core failures onto HTTP. Only public messages leave the process.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, orchestrator.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, orchestrator.ErrUnknownTenant):
		return http.StatusNotFound, "unknown tenant"
	default:
		return http.StatusBadGateway, errx.PublicMessage(err)
	}
}

func abortWith(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "requestId": c.GetString(requestIDKey)})
}
