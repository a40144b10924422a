package translate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicOpenAIRoundTripPreservesTextAndRoles(t *testing.T) {
	original := ClaudeRequest{
		Model:  "claude-3-opus",
		System: "be terse",
		Messages: []ClaudeMessage{
			{Role: "user", Content: "hello"},
			{Role: "assistant", Content: "hi there"},
		},
		MaxTokens: 512,
	}

	openai := AnthropicToOpenAI(original)
	back := OpenAIToAnthropic(openai)

	require.Len(t, back.Messages, 2)
	assert.Equal(t, "be terse", back.System)
	assert.Equal(t, "user", back.Messages[0].Role)
	assert.Equal(t, "hello", back.Messages[0].Content)
	assert.Equal(t, "assistant", back.Messages[1].Role)
	assert.Equal(t, "hi there", back.Messages[1].Content)
}

func TestFinishReasonLengthMapsToMaxTokensAndBack(t *testing.T) {
	assert.Equal(t, "max_tokens", OpenAIFinishToAnthropicStop("length"))
	assert.Equal(t, "length", AnthropicStopToOpenAIFinish("max_tokens"))
}

func TestExtractUsageReportsAbsence(t *testing.T) {
	_, _, ok := ExtractUsage(Usage{})
	assert.False(t, ok)

	p, c, ok := ExtractUsage(Usage{PromptTokens: 10, CompletionTokens: 5})
	assert.True(t, ok)
	assert.Equal(t, 10, p)
	assert.Equal(t, 5, c)
}

func TestStreamStateEmitsMessageStartOnlyOnce(t *testing.T) {
	state := NewStreamState("msg_1", "gpt-4o")

	chunk1 := StreamChunk{}
	chunk1.Choices = []struct {
		Index        int         `json:"index"`
		Delta        ChatMessage `json:"delta"`
		FinishReason *string     `json:"finish_reason"`
	}{{Delta: ChatMessage{Content: "hi"}}}

	events1 := state.OpenAIChunkToAnthropicEvents(chunk1)
	require.GreaterOrEqual(t, len(events1), 1)
	assert.Equal(t, "message_start", events1[0].Event)

	chunk2 := StreamChunk{}
	chunk2.Choices = chunk1.Choices
	events2 := state.OpenAIChunkToAnthropicEvents(chunk2)
	for _, ev := range events2 {
		assert.NotEqual(t, "message_start", ev.Event)
	}
}

// TestStreamStateMergesReasoningContentIntoSameTextBlock mirrors the §8
// scenario-2 worked example: a GLM upstream's reasoning_content and content
// deltas land in the same text content block at index 0, not a separate
// thinking block.
func TestStreamStateMergesReasoningContentIntoSameTextBlock(t *testing.T) {
	state := NewStreamState("msg_1", "glm-4.7")

	reasoning := StreamChunk{}
	reasoning.Choices = []struct {
		Index        int         `json:"index"`
		Delta        ChatMessage `json:"delta"`
		FinishReason *string     `json:"finish_reason"`
	}{{Delta: ChatMessage{ReasoningContent: "Let"}}}
	events := state.OpenAIChunkToAnthropicEvents(reasoning)

	require.Len(t, events, 3)
	assert.Equal(t, "message_start", events[0].Event)
	require.Equal(t, "content_block_start", events[1].Event)
	startBlock := events[1].Data.(map[string]any)["content_block"].(map[string]any)
	assert.Equal(t, "text", startBlock["type"])
	require.Equal(t, "content_block_delta", events[2].Event)
	delta := events[2].Data.(map[string]any)["delta"].(map[string]any)
	assert.Equal(t, "text_delta", delta["type"])
	assert.Equal(t, "Let", delta["text"])

	text := StreamChunk{}
	text.Choices = []struct {
		Index        int         `json:"index"`
		Delta        ChatMessage `json:"delta"`
		FinishReason *string     `json:"finish_reason"`
	}{{Delta: ChatMessage{Content: "me"}}}
	events2 := state.OpenAIChunkToAnthropicEvents(text)

	require.Len(t, events2, 1)
	assert.Equal(t, "content_block_delta", events2[0].Event)
	delta2 := events2[0].Data.(map[string]any)["delta"].(map[string]any)
	assert.Equal(t, "text_delta", delta2["type"])
	assert.Equal(t, "me", delta2["text"])

	for _, ev := range append(events, events2...) {
		assert.NotEqual(t, "thinking_delta", ev.Event)
	}
}

// TestStreamStateMergesReasoningAndContentInSameFrame covers the case where
// both fields arrive together in one chunk: the merge joins them with a
// single space, per §4.4.
func TestStreamStateMergesReasoningAndContentInSameFrame(t *testing.T) {
	state := NewStreamState("msg_1", "glm-4.7")

	chunk := StreamChunk{}
	chunk.Choices = []struct {
		Index        int         `json:"index"`
		Delta        ChatMessage `json:"delta"`
		FinishReason *string     `json:"finish_reason"`
	}{{Delta: ChatMessage{ReasoningContent: "Let me", Content: "think"}}}
	events := state.OpenAIChunkToAnthropicEvents(chunk)

	var sawText bool
	for _, ev := range events {
		if ev.Event == "content_block_delta" {
			delta := ev.Data.(map[string]any)["delta"].(map[string]any)
			if delta["type"] == "text_delta" {
				assert.Equal(t, "Let me think", delta["text"])
				sawText = true
			}
		}
	}
	assert.True(t, sawText)
}

func TestStreamStateIgnoresChunksAfterCompletion(t *testing.T) {
	state := NewStreamState("msg_1", "gpt-4o")
	finish := "stop"

	done := StreamChunk{}
	done.Choices = []struct {
		Index        int         `json:"index"`
		Delta        ChatMessage `json:"delta"`
		FinishReason *string     `json:"finish_reason"`
	}{{Delta: ChatMessage{Content: "bye"}, FinishReason: &finish}}
	state.OpenAIChunkToAnthropicEvents(done)
	assert.Equal(t, StreamCompleted, state.Phase)

	more := StreamChunk{}
	more.Choices = []struct {
		Index        int         `json:"index"`
		Delta        ChatMessage `json:"delta"`
		FinishReason *string     `json:"finish_reason"`
	}{{Delta: ChatMessage{Content: "should be ignored"}}}
	events := state.OpenAIChunkToAnthropicEvents(more)
	assert.Empty(t, events)
}

func TestDecodeSSEDataSkipsMalformedFrame(t *testing.T) {
	_, ok := DecodeSSEData([]byte("{not json"))
	assert.False(t, ok)

	chunk, ok := DecodeSSEData([]byte(`{"id":"c1","model":"gpt-4o"}`))
	assert.True(t, ok)
	assert.Equal(t, "c1", chunk.ID)
}

func TestGeminiOpenAIRoundTripPreservesSystemAndRoles(t *testing.T) {
	req := ChatRequest{
		Model: "gemini-1.5-pro",
		Messages: []ChatMessage{
			{Role: "system", Content: "be terse"},
			{Role: "user", Content: "hello"},
			{Role: "assistant", Content: "hi"},
		},
	}
	gem := OpenAIToGemini(req)
	require.NotNil(t, gem.SystemInstruction)
	back := GeminiToOpenAI(gem, "gemini-1.5-pro")

	require.Len(t, back.Messages, 3)
	assert.Equal(t, "system", back.Messages[0].Role)
	assert.Equal(t, "user", back.Messages[1].Role)
	assert.Equal(t, "assistant", back.Messages[2].Role)
}

func TestOpenAIToGeminiResponseMapsChoiceAndUsage(t *testing.T) {
	resp := ChatResponse{
		Usage: Usage{PromptTokens: 10, CompletionTokens: 4, TotalTokens: 14},
	}
	resp.Choices = []struct {
		Index        int         `json:"index"`
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	}{{Index: 0, Message: ChatMessage{Role: "assistant", Content: "hi there"}, FinishReason: "length"}}

	gem := OpenAIToGeminiResponse(resp)

	require.Len(t, gem.Candidates, 1)
	assert.Equal(t, "model", gem.Candidates[0].Content.Role)
	require.Len(t, gem.Candidates[0].Content.Parts, 1)
	assert.Equal(t, "hi there", gem.Candidates[0].Content.Parts[0].Text)
	assert.Equal(t, "MAX_TOKENS", gem.Candidates[0].FinishReason)
	require.NotNil(t, gem.UsageMetadata)
	assert.Equal(t, 10, gem.UsageMetadata.PromptTokenCount)
	assert.Equal(t, 4, gem.UsageMetadata.CandidatesTokenCount)
}

func TestOpenAIChunkToGeminiResponseMergesReasoningAndEmitsFinish(t *testing.T) {
	finish := "stop"
	chunk := StreamChunk{}
	chunk.Choices = []struct {
		Index        int         `json:"index"`
		Delta        ChatMessage `json:"delta"`
		FinishReason *string     `json:"finish_reason"`
	}{{Delta: ChatMessage{ReasoningContent: "Let", Content: "me"}, FinishReason: &finish}}

	gem := OpenAIChunkToGeminiResponse(chunk)

	require.Len(t, gem.Candidates, 1)
	assert.Equal(t, "Let me", gem.Candidates[0].Content.Parts[0].Text)
	assert.Equal(t, "STOP", gem.Candidates[0].FinishReason)
}

func TestOpenAIChunkToGeminiResponseEmptyChoicesCarriesUsageOnly(t *testing.T) {
	chunk := StreamChunk{Usage: &Usage{PromptTokens: 3, CompletionTokens: 1}}
	gem := OpenAIChunkToGeminiResponse(chunk)

	assert.Empty(t, gem.Candidates)
	require.NotNil(t, gem.UsageMetadata)
	assert.Equal(t, 3, gem.UsageMetadata.PromptTokenCount)
}
