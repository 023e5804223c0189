package conversations

import (
	"context"
	"strings"

	"github.com/chative-commerce/storefront-agent/internal/agent/model"
)

// MessagesManager keeps server-side history for callers that send only the
// newest message.
type MessagesManager struct {
	conversationRepo model.ConversationRepository
	maxTurns         int
}

func NewMessagesManager(conversationRepo model.ConversationRepository, config model.ConversationConfig) *MessagesManager {
	return &MessagesManager{
		conversationRepo: conversationRepo,
		maxTurns:         config.MaxTurns,
	}
}

// BuildHistory returns the stored turns of the session followed by query.
// Nothing is written until SaveExchange, so a failed cycle leaves no
// unanswered user turn behind.
func (cm *MessagesManager) BuildHistory(ctx context.Context, sessionKey, query string) ([]model.ConversationTurn, error) {
	stored, err := cm.conversationRepo.LoadHistory(ctx, sessionKey)
	if err != nil {
		return nil, err
	}
	stored = trimTail(stored, cm.maxTurns-1)

	history := make([]model.ConversationTurn, 0, len(stored)+1)
	for _, t := range stored {
		if strings.TrimSpace(t.Content) == "" {
			continue
		}
		history = append(history, t)
	}
	return append(history, model.ConversationTurn{Role: model.RoleUser, Content: query}), nil
}

// SaveExchange appends the user message and the reply that answered it.
func (cm *MessagesManager) SaveExchange(ctx context.Context, sessionKey, query, reply string) error {
	return cm.conversationRepo.AddTurns(ctx, sessionKey,
		model.ConversationTurn{Role: model.RoleUser, Content: query},
		model.ConversationTurn{Role: model.RoleAssistant, Content: reply},
	)
}

// Reset forgets the stored history of the session.
func (cm *MessagesManager) Reset(ctx context.Context, sessionKey string) error {
	return cm.conversationRepo.ClearHistory(ctx, sessionKey)
}

// ====================== Helper function ======================
func trimTail(turns []model.ConversationTurn, maxTurns int) []model.ConversationTurn {
	if maxTurns <= 0 || len(turns) <= maxTurns {
		return turns
	}
	return turns[len(turns)-maxTurns:]
}
