package orchestrator

import (
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/chative-commerce/storefront-agent/internal/agent/model"
)

// trimTail keeps the last maxTurns turns.
func trimTail(turns []model.ConversationTurn, maxTurns int) []model.ConversationTurn {
	if maxTurns <= 0 || len(turns) <= maxTurns {
		return turns
	}
	return turns[len(turns)-maxTurns:]
}

// toMessages converts caller history into model messages. Empty turns carry
// nothing the model can use and are skipped; the list starts at the first
// user turn.
func toMessages(turns []model.ConversationTurn) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(turns))
	for _, t := range turns {
		content := strings.TrimSpace(t.Content)
		if content == "" {
			continue
		}
		switch t.Role {
		case model.RoleUser:
			msgs = append(msgs, schema.UserMessage(content))
		case model.RoleAssistant:
			if len(msgs) == 0 {
				continue
			}
			msgs = append(msgs, schema.AssistantMessage(content, nil))
		}
	}
	return msgs
}
