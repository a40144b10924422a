package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/laisky/relay-gateway/internal/provider"
	"github.com/laisky/relay-gateway/internal/translate"
)

// streamBridge adapts a provider.Sink onto a gin response writer, cross-
// translating frames between the upstream's wire format and the caller's
// requested ingress format per §4.5.2. When both formats match, frames pass
// through untouched (the common, cheap case); otherwise each frame is
// decoded into the OpenAI-shaped hub chunk and re-encoded for the ingress
// format via the Started->Streaming->Completed state machine.
type streamBridge struct {
	w             gin.ResponseWriter
	ingressStyle  string
	upstreamStyle string
	encodeState   *translate.StreamState
}

var _ provider.Sink = (*streamBridge)(nil)

func newStreamBridge(c *gin.Context, ingressStyle, upstreamStyle, messageID, model string) *streamBridge {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	return &streamBridge{
		w:             c.Writer,
		ingressStyle:  ingressStyle,
		upstreamStyle: upstreamStyle,
		encodeState:   translate.NewStreamState(messageID, model),
	}
}

// Write implements provider.Sink.
func (b *streamBridge) Write(frame provider.StreamFrame) error {
	if frame.Done {
		if flusher, ok := b.w.(interface{ Flush() }); ok {
			flusher.Flush()
		}
		return nil
	}

	if b.ingressStyle == b.upstreamStyle {
		return b.writeRaw(frame.Raw)
	}

	chunks, finished := decodeUpstreamFrame(b.upstreamStyle, frame.Raw)
	for _, chunk := range chunks {
		if err := b.writeChunk(chunk); err != nil {
			return err
		}
	}
	_ = finished
	return nil
}

func (b *streamBridge) writeChunk(chunk translate.StreamChunk) error {
	switch b.ingressStyle {
	case "anthropic":
		for _, ev := range b.encodeState.OpenAIChunkToAnthropicEvents(chunk) {
			data, err := json.Marshal(ev.Data)
			if err != nil {
				continue
			}
			if err := b.writeRaw([]byte("event: " + ev.Event + "\ndata: " + string(data) + "\n\n")); err != nil {
				return err
			}
		}
		return nil
	case "gemini":
		data, err := json.Marshal(translate.OpenAIChunkToGeminiResponse(chunk))
		if err != nil {
			return nil
		}
		return b.writeRaw([]byte("data: " + string(data) + "\n\n"))
	default:
		data, err := json.Marshal(chunk)
		if err != nil {
			return nil
		}
		return b.writeRaw([]byte("data: " + string(data) + "\n\n"))
	}
}

func (b *streamBridge) writeRaw(raw []byte) error {
	_, err := b.w.Write(raw)
	if flusher, ok := b.w.(interface{ Flush() }); ok {
		flusher.Flush()
	}
	return err
}

// decodeUpstreamFrame parses one raw upstream SSE frame into zero or more
// OpenAI-hub-shaped stream chunks, tolerating malformed frames by skipping
// them rather than aborting the stream, per §4.4.
func decodeUpstreamFrame(upstreamStyle string, raw []byte) (chunks []translate.StreamChunk, finished bool) {
	switch upstreamStyle {
	case "anthropic":
		event, data, ok := parseAnthropicFrame(raw)
		if !ok {
			return nil, false
		}
		state := translate.NewStreamState("", "")
		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			return nil, false
		}
		return state.AnthropicEventToOpenAIChunks(event, decoded), event == "message_stop"
	case "gemini":
		payload, ok := extractSSEData(raw)
		if !ok {
			return nil, false
		}
		var resp translate.GeminiResponse
		if err := json.Unmarshal(payload, &resp); err != nil {
			return nil, false
		}
		return []translate.StreamChunk{geminiResponseToChunk(resp)}, false
	default:
		payload, ok := extractSSEData(raw)
		if !ok || string(payload) == "[DONE]" {
			return nil, string(payload) == "[DONE]"
		}
		chunk, ok := translate.DecodeSSEData(payload)
		if !ok {
			return nil, false
		}
		return []translate.StreamChunk{chunk}, false
	}
}

func extractSSEData(raw []byte) ([]byte, bool) {
	for _, line := range bytes.Split(raw, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if bytes.HasPrefix(line, []byte("data:")) {
			return bytes.TrimSpace(bytes.TrimPrefix(line, []byte("data:"))), true
		}
	}
	return nil, false
}

func parseAnthropicFrame(raw []byte) (event string, data []byte, ok bool) {
	lines := strings.Split(string(raw), "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = []byte(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	return event, data, event != "" && len(data) > 0
}

func geminiResponseToChunk(resp translate.GeminiResponse) translate.StreamChunk {
	var chunk translate.StreamChunk
	if resp.UsageMetadata != nil {
		chunk.Usage = &translate.Usage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		}
	}
	if len(resp.Candidates) == 0 {
		return chunk
	}
	cand := resp.Candidates[0]
	var text string
	for _, p := range cand.Content.Parts {
		text += p.Text
	}
	entry := struct {
		Index        int                   `json:"index"`
		Delta        translate.ChatMessage `json:"delta"`
		FinishReason *string               `json:"finish_reason"`
	}{Delta: translate.ChatMessage{Content: text}}
	if cand.FinishReason != "" {
		finish := cand.FinishReason
		entry.FinishReason = &finish
	}
	chunk.Choices = []struct {
		Index        int                   `json:"index"`
		Delta        translate.ChatMessage `json:"delta"`
		FinishReason *string               `json:"finish_reason"`
	}{entry}
	return chunk
}
