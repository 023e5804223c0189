package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errx "github.com/chative-commerce/storefront-agent/internal/core/error"
)

const sampleStream = `event: message_start
data: {"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"claude-test","content":[],"stop_reason":null,"usage":{"input_tokens":5,"output_tokens":1}}}

event: ping
data: {"type":"ping"}

event: content_block_start
data: {"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello"}}

data: {"type":"content_block_delta","index":0,"delta":{"type":"text_del

data: not json at all
: keep-alive comment

event: content_block_delta
data: {"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"q\":"}}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":" world"}}

event: content_block_stop
data: {"type":"content_block_stop","index":0}

event: message_delta
data: {"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":3}}

event: message_stop
data: {"type":"message_stop"}

data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"after stop"}}
`

func collect(t *testing.T, stream string) (string, error) {
	t.Helper()
	var sb strings.Builder
	err := ReadTextDeltas(strings.NewReader(stream), func(text string) bool {
		sb.WriteString(text)
		return false
	})
	return sb.String(), err
}

func TestReadTextDeltas_SkipsMalformedAndForeignEvents(t *testing.T) {
	text, err := collect(t, sampleStream)
	require.NoError(t, err)
	assert.Equal(t, "Hello world", text)
}

func TestReadTextDeltas_ErrorEvent(t *testing.T) {
	stream := `data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"par"}}
data: {"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}
data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"tial"}}
`
	text, err := collect(t, stream)
	assert.Equal(t, "par", text)
	var up *errx.UpstreamError
	require.ErrorAs(t, err, &up)
	assert.Contains(t, up.Body, "overloaded_error")
}

func TestReadTextDeltas_StopsWhenConsumerGoesAway(t *testing.T) {
	var got []string
	err := ReadTextDeltas(strings.NewReader(sampleStream), func(text string) bool {
		got = append(got, text)
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello"}, got)
}

func TestReadTextDeltas_EndOfBodyWithoutStop(t *testing.T) {
	text, err := collect(t, `data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"cut"}}`)
	require.NoError(t, err)
	assert.Equal(t, "cut", text)
}
