// Streaming response translation: the Started->Streaming->Completed state
// machine from §4.5.2, translating OpenAI-shaped stream chunks into
// Anthropic SSE events (and back), plus the GLM reasoning_content merge
// rule from §4.4. Grounded on unified_streaming.go's StreamState/
// processChunk state machine in the teacher, which drives the same
// three-phase lifecycle for its own chunk-to-SSE-event translation.
package translate

import "encoding/json"

// StreamPhase is the lifecycle phase of one streamed response.
type StreamPhase int

const (
	// StreamStarted is the phase before any content has been seen: the
	// translator still owes the client a message_start event.
	StreamStarted StreamPhase = iota
	// StreamStreaming is the phase once content deltas are flowing.
	StreamStreaming
	// StreamCompleted is the terminal phase after a finish_reason / stop
	// event has been observed; further chunks are ignored.
	StreamCompleted
)

// AnthropicSSEEvent is one Anthropic-style SSE frame: an event name plus a
// JSON-encodable payload.
type AnthropicSSEEvent struct {
	Event string
	Data  any
}

// StreamState carries the translator's state across an entire streamed
// response. One StreamState is created per forwarded request and fed every
// chunk from the upstream in order; it is not safe for concurrent use.
type StreamState struct {
	Phase StreamPhase

	MessageID string
	Model     string

	textBlockOpen bool
	blockIndex    int

	PromptTokens     int
	CompletionTokens int
}

// NewStreamState starts a translator in the Started phase for the given
// message id / model (used in the Anthropic message_start event payload).
func NewStreamState(messageID, model string) *StreamState {
	return &StreamState{Phase: StreamStarted, MessageID: messageID, Model: model}
}

// OpenAIChunkToAnthropicEvents consumes one OpenAI stream chunk and returns
// zero or more Anthropic SSE events, advancing s.Phase as needed. The GLM
// reasoning_content field, when present alongside or instead of content, is
// merged into the same text content block as content rather than a
// separate block, per §4.4: "merge it into the same text delta as content
// (separated by a single space when both are present in the same frame)."
func (s *StreamState) OpenAIChunkToAnthropicEvents(chunk StreamChunk) []AnthropicSSEEvent {
	if s.Phase == StreamCompleted {
		return nil
	}

	var events []AnthropicSSEEvent

	if s.Phase == StreamStarted {
		s.Phase = StreamStreaming
		events = append(events, AnthropicSSEEvent{
			Event: "message_start",
			Data: map[string]any{
				"type": "message_start",
				"message": map[string]any{
					"id":    s.MessageID,
					"type":  "message",
					"role":  "assistant",
					"model": s.Model,
				},
			},
		})
	}

	if len(chunk.Choices) == 0 {
		if chunk.Usage != nil {
			s.PromptTokens, s.CompletionTokens, _ = ExtractUsage(*chunk.Usage)
		}
		return events
	}

	choice := chunk.Choices[0]

	reasoning := choice.Delta.ReasoningContent
	content := asText(choice.Delta.Content)
	text := mergeReasoningAndText(reasoning, content)
	if text != "" {
		if !s.textBlockOpen {
			s.textBlockOpen = true
			events = append(events, s.startBlock("text"))
		}
		events = append(events, AnthropicSSEEvent{
			Event: "content_block_delta",
			Data: map[string]any{
				"type":  "content_block_delta",
				"index": s.blockIndex,
				"delta": map[string]any{"type": "text_delta", "text": text},
			},
		})
	}

	if chunk.Usage != nil {
		s.PromptTokens, s.CompletionTokens, _ = ExtractUsage(*chunk.Usage)
	}

	if choice.FinishReason != nil {
		if s.textBlockOpen {
			events = append(events, s.stopBlock())
			s.textBlockOpen = false
		}
		events = append(events,
			AnthropicSSEEvent{
				Event: "message_delta",
				Data: map[string]any{
					"type":  "message_delta",
					"delta": map[string]any{"stop_reason": OpenAIFinishToAnthropicStop(*choice.FinishReason)},
					"usage": map[string]any{"output_tokens": s.CompletionTokens},
				},
			},
			AnthropicSSEEvent{Event: "message_stop", Data: map[string]any{"type": "message_stop"}},
		)
		s.Phase = StreamCompleted
	}

	return events
}

// mergeReasoningAndText implements §4.4's GLM reasoning_content merge: both
// fields land in the one open text block, joined by a single space when
// both are present in the same frame.
func mergeReasoningAndText(reasoning, content string) string {
	switch {
	case reasoning != "" && content != "":
		return reasoning + " " + content
	case reasoning != "":
		return reasoning
	default:
		return content
	}
}

func (s *StreamState) startBlock(blockType string) AnthropicSSEEvent {
	ev := AnthropicSSEEvent{
		Event: "content_block_start",
		Data: map[string]any{
			"type":          "content_block_start",
			"index":         s.blockIndex,
			"content_block": map[string]any{"type": blockType},
		},
	}
	return ev
}

func (s *StreamState) stopBlock() AnthropicSSEEvent {
	ev := AnthropicSSEEvent{
		Event: "content_block_stop",
		Data:  map[string]any{"type": "content_block_stop", "index": s.blockIndex},
	}
	s.blockIndex++
	return ev
}

// AnthropicEventToOpenAIChunks is the inverse direction: consumes one
// Anthropic SSE event (already decoded into name + payload) and returns
// zero or more OpenAI stream chunks. Events this translator doesn't
// recognize produce no chunks rather than erroring, mirroring §4.4's
// malformed-frame-skip-not-abort rule applied to semantically-unknown (not
// just syntactically-broken) frames.
func (s *StreamState) AnthropicEventToOpenAIChunks(event string, data map[string]any) []StreamChunk {
	switch event {
	case "content_block_delta":
		delta, _ := data["delta"].(map[string]any)
		if delta == nil {
			return nil
		}
		switch delta["type"] {
		case "text_delta":
			text, _ := delta["text"].(string)
			return []StreamChunk{s.textChunk(text, nil)}
		case "thinking_delta":
			thinking, _ := delta["thinking"].(string)
			return []StreamChunk{s.reasoningChunk(thinking)}
		}
		return nil
	case "message_delta":
		delta, _ := data["delta"].(map[string]any)
		stopReason, _ := delta["stop_reason"].(string)
		finish := AnthropicStopToOpenAIFinish(stopReason)
		return []StreamChunk{s.textChunk("", &finish)}
	default:
		return nil
	}
}

func (s *StreamState) textChunk(text string, finish *string) StreamChunk {
	var chunk StreamChunk
	chunk.ID = s.MessageID
	chunk.Object = "chat.completion.chunk"
	chunk.Model = s.Model
	chunk.Choices = []struct {
		Index        int         `json:"index"`
		Delta        ChatMessage `json:"delta"`
		FinishReason *string     `json:"finish_reason"`
	}{{Index: 0, Delta: ChatMessage{Content: text}, FinishReason: finish}}
	return chunk
}

func (s *StreamState) reasoningChunk(text string) StreamChunk {
	var chunk StreamChunk
	chunk.ID = s.MessageID
	chunk.Object = "chat.completion.chunk"
	chunk.Model = s.Model
	chunk.Choices = []struct {
		Index        int         `json:"index"`
		Delta        ChatMessage `json:"delta"`
		FinishReason *string     `json:"finish_reason"`
	}{{Index: 0, Delta: ChatMessage{ReasoningContent: text}}}
	return chunk
}

// DecodeSSEData unmarshals one SSE "data:" payload into a StreamChunk,
// returning ok=false on malformed JSON so the caller can skip the frame
// instead of aborting the stream, per §4.4: "a single malformed frame is
// skipped, not treated as a stream-ending error."
func DecodeSSEData(raw []byte) (StreamChunk, bool) {
	var chunk StreamChunk
	if err := json.Unmarshal(raw, &chunk); err != nil {
		return StreamChunk{}, false
	}
	return chunk, true
}
