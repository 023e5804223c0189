package model

import (
	"context"
	"strings"
	"time"
)

// Role of a ConversationTurn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is one exchange unit of the caller-owned history. Content
// may be empty when only tool activity happened.
type ConversationTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// AgentContext is created per request. CartID is filled in by cart tools and
// threaded back into the response.
type AgentContext struct {
	TenantID  string `json:"tenantId"`
	SessionID string `json:"sessionId"`
	CartID    string `json:"cartId,omitempty"`
}

// SessionKey scopes per-session tool state to a tenant.
func (a *AgentContext) SessionKey() string {
	return a.TenantID + ":" + a.SessionID
}

// LastUserMessage returns the trimmed content of the most recent user turn.
func LastUserMessage(history []ConversationTurn) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == RoleUser {
			return strings.TrimSpace(history[i].Content)
		}
	}
	return ""
}

type ConversationRepository interface {
	// AddTurns appends turns to the stored history of a session.
	AddTurns(ctx context.Context, sessionKey string, turns ...ConversationTurn) error

	// LoadHistory returns the stored turns of a session, oldest first.
	LoadHistory(ctx context.Context, sessionKey string) ([]ConversationTurn, error)

	// ClearHistory removes the stored history of a session.
	ClearHistory(ctx context.Context, sessionKey string) error
}

// CartSessionStore remembers which cart belongs to a tenant:session key.
// Implementations must be safe for concurrent use.
type CartSessionStore interface {
	GetCartID(ctx context.Context, sessionKey string) (string, bool, error)
	SetCartID(ctx context.Context, sessionKey, cartID string) error
	Forget(ctx context.Context, sessionKey string) error
}

// CartSessionTTL is how long a remembered cart id survives without activity.
const CartSessionTTL = 72 * time.Hour
