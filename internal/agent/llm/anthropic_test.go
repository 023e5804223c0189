package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chative-commerce/storefront-agent/internal/agent/model"
	errx "github.com/chative-commerce/storefront-agent/internal/core/error"
	"github.com/chative-commerce/storefront-agent/pkg/retry"
)

const toolUseResponse = `{
  "id": "msg_01",
  "type": "message",
  "role": "assistant",
  "model": "claude-test",
  "content": [
    {"type": "text", "text": "Let me look that up."},
    {"type": "tool_use", "id": "toolu_01", "name": "search_products", "input": {"query": "blue shoes"}}
  ],
  "stop_reason": "tool_use",
  "usage": {"input_tokens": 42, "output_tokens": 7}
}`

const textResponse = `{
  "id": "msg_02",
  "type": "message",
  "role": "assistant",
  "model": "claude-test",
  "content": [{"type": "text", "text": "Hello there"}],
  "stop_reason": "end_turn",
  "usage": {"input_tokens": 3, "output_tokens": 2}
}`

func newTestAnthropic(url string) *AnthropicGateway {
	return NewAnthropicGateway(model.LLMConfig{
		AnthropicAPIKey:  "sk-test",
		AnthropicBaseURL: url,
		AnthropicModel:   "claude-test",
		AnthropicVersion: "2023-06-01",
		MaxTokens:        256,
		Timeout:          5 * time.Second,
	}, retry.Policy{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffFactor: 2})
}

func TestCompleteWithTools_ParsesToolUseAndSendsWireShape(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-test", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(toolUseResponse))
	}))
	defer srv.Close()

	history := []*schema.Message{
		schema.UserMessage("add the red mug"),
		{
			Role: schema.Assistant,
			ToolCalls: []schema.ToolCall{
				{ID: "toolu_a", Function: schema.FunctionCall{Name: "search_products", Arguments: `{"query":"red mug"}`}},
				{ID: "toolu_b", Function: schema.FunctionCall{Name: "get_cart", Arguments: ``}},
			},
		},
		ToolResultMessage("toolu_a", "search_products", `{"success":true}`, false),
		ToolResultMessage("toolu_b", "get_cart", `{"success":false,"error":"boom"}`, true),
	}
	tools := []model.ToolDefinition{{
		Name:        "search_products",
		Description: "Search the catalog",
		Params: map[string]*schema.ParameterInfo{
			"query": {Type: schema.String, Desc: "keywords", Required: true},
		},
	}}

	out, err := newTestAnthropic(srv.URL).CompleteWithTools(context.Background(), history, "be helpful", tools)
	require.NoError(t, err)

	assert.Equal(t, "Let me look that up.", out.Content)
	assert.Equal(t, "tool_use", FinishReason(out))
	require.Len(t, out.ToolCalls, 1)
	assert.Equal(t, "toolu_01", out.ToolCalls[0].ID)
	assert.Equal(t, "search_products", out.ToolCalls[0].Function.Name)
	assert.JSONEq(t, `{"query":"blue shoes"}`, out.ToolCalls[0].Function.Arguments)
	assert.Equal(t, 42, out.ResponseMeta.Usage.PromptTokens)

	assert.Equal(t, "claude-test", body["model"])
	assert.EqualValues(t, 256, body["max_tokens"])
	_, streaming := body["stream"]
	assert.False(t, streaming)

	system := body["system"].([]any)
	assert.Equal(t, "be helpful", system[0].(map[string]any)["text"])

	toolsSent := body["tools"].([]any)
	require.Len(t, toolsSent, 1)
	tool := toolsSent[0].(map[string]any)
	assert.Equal(t, "search_products", tool["name"])
	assert.Equal(t, "Search the catalog", tool["description"])
	inputSchema := tool["input_schema"].(map[string]any)
	assert.Equal(t, []any{"query"}, inputSchema["required"])

	msgs := body["messages"].([]any)
	require.Len(t, msgs, 3)

	assistant := msgs[1].(map[string]any)
	assert.Equal(t, "assistant", assistant["role"])
	uses := assistant["content"].([]any)
	require.Len(t, uses, 2)
	assert.Equal(t, "tool_use", uses[0].(map[string]any)["type"])
	assert.Equal(t, "toolu_a", uses[0].(map[string]any)["id"])
	assert.Equal(t, map[string]any{}, uses[1].(map[string]any)["input"])

	results := msgs[2].(map[string]any)
	assert.Equal(t, "user", results["role"])
	blocks := results["content"].([]any)
	require.Len(t, blocks, 2)
	assert.Equal(t, "tool_result", blocks[0].(map[string]any)["type"])
	assert.Equal(t, "toolu_a", blocks[0].(map[string]any)["tool_use_id"])
	assert.Equal(t, true, blocks[1].(map[string]any)["is_error"])
}

func TestComplete_RetriesOnlyRateLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(textResponse))
	}))
	defer srv.Close()

	text, err := newTestAnthropic(srv.URL).Complete(context.Background(), []*schema.Message{schema.UserMessage("hi")}, "")
	require.NoError(t, err)
	assert.Equal(t, "Hello there", text)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestComplete_HardFailureIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"internal"}}`))
	}))
	defer srv.Close()

	_, err := newTestAnthropic(srv.URL).Complete(context.Background(), []*schema.Message{schema.UserMessage("hi")}, "")
	var up *errx.UpstreamError
	require.ErrorAs(t, err, &up)
	assert.Equal(t, http.StatusInternalServerError, up.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCompleteStream_EmitsTextDeltas(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, sampleStream)
	}))
	defer srv.Close()

	sr, err := newTestAnthropic(srv.URL).CompleteStream(context.Background(), []*schema.Message{schema.UserMessage("hi")}, "sys")
	require.NoError(t, err)
	defer sr.Close()

	var sb strings.Builder
	for {
		chunk, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		sb.WriteString(chunk)
	}
	assert.Equal(t, "Hello world", sb.String())
	assert.Equal(t, true, body["stream"])
}

func TestCompleteStream_RateLimitExhaustion(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestAnthropic(srv.URL).CompleteStream(context.Background(), []*schema.Message{schema.UserMessage("hi")}, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, retry.ErrExhausted)
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}
