package translate

// Finish/stop reason mapping, per §4.5.2's boundary behavior:
// "finish_reason=length maps to stop_reason:max_tokens and vice versa."

// OpenAIFinishToAnthropicStop maps an OpenAI finish_reason onto Anthropic's
// stop_reason vocabulary.
func OpenAIFinishToAnthropicStop(finish string) string {
	switch finish {
	case "length":
		return "max_tokens"
	case "tool_calls":
		return "tool_use"
	case "content_filter":
		return "stop_sequence"
	case "stop", "":
		return "end_turn"
	default:
		return "end_turn"
	}
}

// AnthropicStopToOpenAIFinish is the inverse of OpenAIFinishToAnthropicStop.
func AnthropicStopToOpenAIFinish(stop string) string {
	switch stop {
	case "max_tokens":
		return "length"
	case "tool_use":
		return "tool_calls"
	case "stop_sequence":
		return "stop"
	case "end_turn", "":
		return "stop"
	default:
		return "stop"
	}
}

// geminiFinishToOpenAI maps a Gemini finishReason onto an OpenAI
// finish_reason.
func geminiFinishToOpenAI(finish string) string {
	switch finish {
	case "MAX_TOKENS":
		return "length"
	case "STOP", "":
		return "stop"
	case "SAFETY", "RECITATION":
		return "content_filter"
	default:
		return "stop"
	}
}

// openAIFinishToGemini is the inverse of geminiFinishToOpenAI.
func openAIFinishToGemini(finish string) string {
	switch finish {
	case "length":
		return "MAX_TOKENS"
	case "content_filter":
		return "SAFETY"
	case "stop", "":
		return "STOP"
	default:
		return "STOP"
	}
}

// AnthropicToOpenAIResponse translates a non-streaming Claude response into
// an OpenAI chat/completions response, per §4.5.1/§4.5.3.
func AnthropicToOpenAIResponse(resp ClaudeResponse) ChatResponse {
	var text string
	for _, part := range resp.Content {
		if part.Type == "text" || part.Text != "" {
			text += part.Text
		}
	}

	out := ChatResponse{
		ID:     resp.ID,
		Object: "chat.completion",
		Model:  resp.Model,
		Usage: Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}
	out.Choices = []struct {
		Index        int         `json:"index"`
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	}{{
		Index:        0,
		Message:      ChatMessage{Role: "assistant", Content: text},
		FinishReason: AnthropicStopToOpenAIFinish(resp.StopReason),
	}}
	return out
}

// OpenAIToAnthropicResponse is the inverse of AnthropicToOpenAIResponse.
func OpenAIToAnthropicResponse(resp ChatResponse) ClaudeResponse {
	out := ClaudeResponse{
		ID:    resp.ID,
		Type:  "message",
		Role:  "assistant",
		Model: resp.Model,
		Usage: ClaudeUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}
	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		out.StopReason = OpenAIFinishToAnthropicStop(choice.FinishReason)
		text := asText(choice.Message.Content)
		if text != "" {
			out.Content = append(out.Content, ContentPart{Type: "text", Text: text})
		}
	}
	return out
}

// GeminiToOpenAIResponse translates a non-streaming Gemini response into an
// OpenAI chat/completions response.
func GeminiToOpenAIResponse(resp GeminiResponse, model string) ChatResponse {
	out := ChatResponse{Object: "chat.completion", Model: model}
	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		}
	}
	for i, cand := range resp.Candidates {
		var text string
		for _, p := range cand.Content.Parts {
			text += p.Text
		}
		out.Choices = append(out.Choices, struct {
			Index        int         `json:"index"`
			Message      ChatMessage `json:"message"`
			FinishReason string      `json:"finish_reason"`
		}{
			Index:        i,
			Message:      ChatMessage{Role: "assistant", Content: text},
			FinishReason: geminiFinishToOpenAI(cand.FinishReason),
		})
	}
	return out
}

// OpenAIToGeminiResponse is the inverse of GeminiToOpenAIResponse, closing
// the Gemini direction of §4.5.1's bidirectional response mapping: a
// Gemini-ingress client whose resolved route is served by a non-Gemini
// upstream needs its OpenAI-shaped response translated back into Gemini's
// candidates/usageMetadata shape before it reaches the wire.
func OpenAIToGeminiResponse(resp ChatResponse) GeminiResponse {
	out := GeminiResponse{}
	if resp.Usage.PromptTokens != 0 || resp.Usage.CompletionTokens != 0 || resp.Usage.TotalTokens != 0 {
		out.UsageMetadata = &GeminiUsageMetadata{
			PromptTokenCount:     resp.Usage.PromptTokens,
			CandidatesTokenCount: resp.Usage.CompletionTokens,
			TotalTokenCount:      resp.Usage.TotalTokens,
		}
	}
	for _, choice := range resp.Choices {
		text := asText(choice.Message.Content)
		out.Candidates = append(out.Candidates, struct {
			Content      GeminiContent `json:"content"`
			FinishReason string        `json:"finishReason,omitempty"`
		}{
			Content:      GeminiContent{Role: "model", Parts: []GeminiPart{{Text: text}}},
			FinishReason: openAIFinishToGemini(choice.FinishReason),
		})
	}
	return out
}

// OpenAIChunkToGeminiResponse translates one OpenAI-hub stream chunk into a
// single Gemini streamGenerateContent frame, the streaming counterpart of
// OpenAIToGeminiResponse: a Gemini-ingress client whose route is served by
// a non-Gemini upstream needs each cross-translated chunk re-encoded into
// Gemini's candidates/usageMetadata shape before it reaches the wire.
func OpenAIChunkToGeminiResponse(chunk StreamChunk) GeminiResponse {
	var out GeminiResponse
	if chunk.Usage != nil {
		out.UsageMetadata = &GeminiUsageMetadata{
			PromptTokenCount:     chunk.Usage.PromptTokens,
			CandidatesTokenCount: chunk.Usage.CompletionTokens,
			TotalTokenCount:      chunk.Usage.TotalTokens,
		}
	}
	if len(chunk.Choices) == 0 {
		return out
	}

	choice := chunk.Choices[0]
	text := mergeReasoningAndText(choice.Delta.ReasoningContent, asText(choice.Delta.Content))
	cand := struct {
		Content      GeminiContent `json:"content"`
		FinishReason string        `json:"finishReason,omitempty"`
	}{
		Content: GeminiContent{Role: "model", Parts: []GeminiPart{{Text: text}}},
	}
	if choice.FinishReason != nil {
		cand.FinishReason = openAIFinishToGemini(*choice.FinishReason)
	}
	out.Candidates = append(out.Candidates, cand)
	return out
}

// ExtractUsage implements §4.5.3's "authoritative overrides estimate" rule:
// when the upstream response carries a usage block, that is the final
// word; callers should only fall back to token-estimation when no usage
// block is present at all (handled by usage.EstimateTokens).
func ExtractUsage(u Usage) (promptTokens, completionTokens int, ok bool) {
	if u.PromptTokens == 0 && u.CompletionTokens == 0 && u.TotalTokens == 0 {
		return 0, 0, false
	}
	return u.PromptTokens, u.CompletionTokens, true
}
