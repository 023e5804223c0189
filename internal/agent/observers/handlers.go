package observers

import (
	einocb "github.com/cloudwego/eino/callbacks"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"
)

// NewAllCallbacks aggregates the model, tool and prompt observers into one callbacks.Handler.
func NewAllCallbacks(m *Metrics, modelName string) einocb.Handler {
	return callbackHelper.NewHandlerHelper().
		Tool(newToolHandler(m)).
		ChatModel(newModelHandler(m, modelName)).
		Prompt(newPromptHandler()).
		Handler()
}
