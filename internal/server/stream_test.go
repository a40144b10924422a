package server

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laisky/relay-gateway/internal/translate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestBridge(t *testing.T, ingressStyle, upstreamStyle string) (*streamBridge, *httptest.ResponseRecorder) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("POST", "/", nil)
	bridge := newStreamBridge(c, ingressStyle, upstreamStyle, "msg_1", "gpt-4o")
	return bridge, w
}

func TestWriteChunkGeminiIngressEmitsCandidateJSON(t *testing.T) {
	bridge, w := newTestBridge(t, "gemini", "openai")

	finish := "stop"
	chunk := translate.StreamChunk{}
	chunk.Choices = []struct {
		Index        int                   `json:"index"`
		Delta        translate.ChatMessage `json:"delta"`
		FinishReason *string               `json:"finish_reason"`
	}{{Delta: translate.ChatMessage{Content: "hi there"}, FinishReason: &finish}}

	require.NoError(t, bridge.writeChunk(chunk))

	body := w.Body.String()
	assert.Contains(t, body, "data: ")
	assert.Contains(t, body, `"candidates"`)
	assert.Contains(t, body, "hi there")
	assert.Contains(t, body, `"finishReason":"STOP"`)
}

func TestDecodeUpstreamFrameGeminiParsesCandidateJSON(t *testing.T) {
	raw := []byte(`data: {"candidates":[{"content":{"role":"model","parts":[{"text":"hi"}]}}]}`)
	chunks, finished := decodeUpstreamFrame("gemini", raw)

	require.Len(t, chunks, 1)
	assert.False(t, finished)
	require.Len(t, chunks[0].Choices, 1)
	assert.Equal(t, "hi", chunks[0].Choices[0].Delta.Content)
}

func TestWriteChunkOpenAIIngressMarshalsChunkDirectly(t *testing.T) {
	bridge, w := newTestBridge(t, "openai", "anthropic")

	chunk := translate.StreamChunk{ID: "c1", Model: "gpt-4o"}
	require.NoError(t, bridge.writeChunk(chunk))

	assert.True(t, strings.Contains(w.Body.String(), "data: "))
}
