package orchestrator

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chative-commerce/storefront-agent/internal/agent/tools"
	errx "github.com/chative-commerce/storefront-agent/internal/core/error"
)

func drain(ch <-chan Event) []Event {
	var out []Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func script() func(int, []*schema.Message) (*schema.Message, error) {
	return func(n int, _ []*schema.Message) (*schema.Message, error) {
		switch n {
		case 1:
			return toolUse("One moment.", call("a", tools.ToolSearchFAQs, `{"query":"returns"}`)), nil
		case 2:
			return toolUse("", call("b", tools.ToolGetCart, `{}`)), nil
		}
		return text("Returns are free within 30 days. Your cart is empty."), nil
	}
}

func TestProcessMessageStream_MatchesSync(t *testing.T) {
	syncRes, err := newOrch(&scriptedGateway{script: script()}, &recordingTools{}, nil).
		ProcessMessage(context.Background(), userSays("returns?"), agentCtx())
	require.NoError(t, err)

	events := drain(newOrch(&scriptedGateway{script: script()}, &recordingTools{}, nil).
		ProcessMessageStream(context.Background(), userSays("returns?"), agentCtx()))
	require.NotEmpty(t, events)

	var sb strings.Builder
	var toolIDs []string
	for _, ev := range events[:len(events)-1] {
		switch ev.Type {
		case EventTool:
			toolIDs = append(toolIDs, ev.Tool.ID)
		case EventText:
			sb.WriteString(ev.Text)
		default:
			t.Fatalf("unexpected event %q before done", ev.Type)
		}
	}
	assert.Equal(t, []string{"a", "b"}, toolIDs)
	assert.Equal(t, syncRes.Reply, sb.String())

	last := events[len(events)-1]
	require.Equal(t, EventDone, last.Type)
	assert.Equal(t, syncRes, last.Result)
}

func TestProcessMessageStream_ErrorIsSanitized(t *testing.T) {
	gw := &scriptedGateway{script: func(n int, _ []*schema.Message) (*schema.Message, error) {
		if n == 1 {
			return toolUse("", call("a", tools.ToolGetCart, `{}`)), nil
		}
		return nil, errx.NewUpstream("anthropic", http.StatusUnauthorized, "invalid x-api-key sk-live-123", "")
	}}

	events := drain(newOrch(gw, &recordingTools{}, nil).ProcessMessageStream(context.Background(), userSays("hi"), agentCtx()))
	require.Len(t, events, 2)
	assert.Equal(t, EventTool, events[0].Type)
	assert.Equal(t, EventError, events[1].Type)
	assert.Equal(t, errx.ApologyMessage, events[1].Error)
	assert.NotContains(t, events[1].Error, "sk-live")
}

func TestProcessMessageStream_PanicBecomesErrorEvent(t *testing.T) {
	gw := &scriptedGateway{script: func(int, []*schema.Message) (*schema.Message, error) { panic("boom") }}

	events := drain(newOrch(gw, &recordingTools{}, nil).ProcessMessageStream(context.Background(), userSays("hi"), agentCtx()))
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Type)
	assert.Equal(t, errx.ApologyMessage, events[0].Error)
}
