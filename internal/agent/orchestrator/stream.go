package orchestrator

import (
	"context"
	"unicode"
	"unicode/utf8"

	"github.com/chative-commerce/storefront-agent/internal/agent/model"
	errx "github.com/chative-commerce/storefront-agent/internal/core/error"
)

type EventType string

const (
	EventTool  EventType = "tool"
	EventText  EventType = "text"
	EventDone  EventType = "done"
	EventError EventType = "error"
)

// Event is one item of a streamed processing cycle. Exactly one of Tool,
// Text, Result or Error is set, matching Type.
type Event struct {
	Type   EventType           `json:"type"`
	Tool   *model.ExecutedTool `json:"tool,omitempty"`
	Text   string              `json:"text,omitempty"`
	Result *Result             `json:"result,omitempty"`
	Error  string              `json:"error,omitempty"`
}

// ProcessMessageStream runs the same loop as ProcessMessage and reports it as
// events: one tool event per executed tool, text events whose concatenation
// is the reply, then done. A failure ends the stream with a single error
// event carrying only the apology text. The channel is closed when the
// cycle ends or ctx is cancelled.
func (o *Orchestrator) ProcessMessageStream(ctx context.Context, history []model.ConversationTurn, agent *model.AgentContext) <-chan Event {
	ch := make(chan Event, 16)
	go func() {
		defer close(ch)
		send := func(ev Event) bool {
			select {
			case ch <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		res, err := o.safeRun(ctx, history, agent, func(ev Event) { send(ev) })
		if err != nil {
			send(Event{Type: EventError, Error: errx.ApologyMessage})
			return
		}
		for _, chunk := range chunkText(res.Reply) {
			if !send(Event{Type: EventText, Text: chunk}) {
				return
			}
		}
		send(Event{Type: EventDone, Result: res})
	}()
	return ch
}

// chunkText splits s into word-sized pieces, each keeping its trailing
// whitespace, so the pieces concatenate back to s.
func chunkText(s string) []string {
	var out []string
	start := 0
	inSpace := false
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		space := unicode.IsSpace(r)
		if inSpace && !space {
			out = append(out, s[start:i])
			start = i
		}
		inSpace = space
		i += size
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
