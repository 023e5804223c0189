package llm

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	errx "github.com/chative-commerce/storefront-agent/internal/core/error"
	logx "github.com/chative-commerce/storefront-agent/pkg/logger"
)

const maxSSELine = 1024 * 1024

type sseHead struct {
	Type  string `json:"type"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// ReadTextDeltas scans a Messages API event stream and hands every text delta
// to emit, in order. Lines that are not data lines, fail to decode, or carry
// any other event type are skipped. emit returning true stops the scan
// early. An in-stream error event ends the scan with an UpstreamError.
func ReadTextDeltas(r io.Reader, emit func(text string) (stop bool)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELine)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}

		var head sseHead
		if err := json.Unmarshal([]byte(payload), &head); err != nil {
			logx.Debug().Err(err).Int("length", len(payload)).Msg("skipping malformed stream line")
			continue
		}

		switch head.Type {
		case "message_stop":
			return nil
		case "error":
			msg := "stream error"
			if head.Error != nil {
				msg = head.Error.Type + ": " + head.Error.Message
			}
			return &errx.UpstreamError{Service: anthropicService, Status: http.StatusBadGateway, Body: msg}
		case "content_block_delta":
			var ev anthropic.MessageStreamEventUnion
			if err := json.Unmarshal([]byte(payload), &ev); err != nil {
				continue
			}
			delta, ok := ev.AsAny().(anthropic.ContentBlockDeltaEvent)
			if !ok {
				continue
			}
			if td, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok && td.Text != "" {
				if emit(td.Text) {
					return nil
				}
			}
		}
	}
	return scanner.Err()
}
