package translate

import "encoding/json"

// asText coerces an OpenAI/Anthropic "string or []ContentPart" content
// field down to plain text, concatenating text parts and dropping
// non-text parts (images, files) since the gateway's job is token
// accounting and routing, not rendering. Grounded on
// claude_convert.go's contentToString helper.
func asText(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []any:
		var out string
		for _, raw := range v {
			b, err := json.Marshal(raw)
			if err != nil {
				continue
			}
			var part ContentPart
			if err := json.Unmarshal(b, &part); err != nil {
				continue
			}
			if part.Type == "text" || part.Text != "" {
				out += part.Text
			}
		}
		return out
	case []ContentPart:
		var out string
		for _, part := range v {
			out += part.Text
		}
		return out
	default:
		return ""
	}
}

// RequestText concatenates every message's text content, for callers that
// need a crude token-estimation input (§4.4's "≈4 bytes per token"
// heuristic) before an authoritative usage block is available.
func RequestText(req ChatRequest) string {
	var out string
	for _, m := range req.Messages {
		out += asText(m.Content)
	}
	return out
}

// AnthropicToOpenAI translates a Claude Messages-API request into an OpenAI
// chat/completions request, per §4.5.1. The system block (string or
// content-part array) becomes a leading "system" message; stop_sequences
// becomes stop; max_tokens, temperature, and top_p carry straight across.
// Grounded on claude_convert.go's ConvertClaudeRequestToOpenAI.
func AnthropicToOpenAI(req ClaudeRequest) ChatRequest {
	out := ChatRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.StopSequences,
		Stream:      req.Stream,
	}

	if req.System != nil {
		if sysText := asText(req.System); sysText != "" {
			out.Messages = append(out.Messages, ChatMessage{Role: "system", Content: sysText})
		}
	}

	for _, m := range req.Messages {
		out.Messages = append(out.Messages, ChatMessage{
			Role:    m.Role,
			Content: asText(m.Content),
		})
	}

	return out
}

// OpenAIToAnthropic translates an OpenAI chat/completions request into a
// Claude Messages-API request, per §4.5.1. A leading "system" message is
// pulled out into the top-level system field (Anthropic has no system role
// inside messages); subsequent messages carry across unchanged. Grounded on
// claude_convert.go's ConvertOpenAIRequestToClaude.
func OpenAIToAnthropic(req ChatRequest) ClaudeRequest {
	out := ClaudeRequest{
		Model:         req.Model,
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		StopSequences: req.Stop,
		Stream:        req.Stream,
	}
	if out.MaxTokens == 0 {
		out.MaxTokens = 4096 // Anthropic requires max_tokens; teacher's convert uses the same fallback
	}

	messages := req.Messages
	if len(messages) > 0 && messages[0].Role == "system" {
		out.System = asText(messages[0].Content)
		messages = messages[1:]
	}

	for _, m := range messages {
		out.Messages = append(out.Messages, ClaudeMessage{
			Role:    m.Role,
			Content: asText(m.Content),
		})
	}

	return out
}

// geminiRoleFor maps an OpenAI/Anthropic role onto Gemini's two-role model
// ("user" and "model"); assistant turns become "model", anything else
// (user, tool-as-user) stays "user".
func geminiRoleFor(role string) string {
	if role == "assistant" {
		return "model"
	}
	return "user"
}

// OpenAIToGemini translates an OpenAI chat/completions request into a
// Gemini generateContent request. A leading system message becomes
// systemInstruction; max_tokens/temperature/top_p map onto
// generationConfig's camelCase fields. Authored fresh in the shape of
// AnthropicToOpenAI/OpenAIToAnthropic above, since the teacher's Gemini
// adaptor source was not retrieved.
func OpenAIToGemini(req ChatRequest) GeminiRequest {
	out := GeminiRequest{}
	messages := req.Messages
	if len(messages) > 0 && messages[0].Role == "system" {
		if text := asText(messages[0].Content); text != "" {
			out.SystemInstruction = &GeminiContent{Parts: []GeminiPart{{Text: text}}}
		}
		messages = messages[1:]
	}

	for _, m := range messages {
		out.Contents = append(out.Contents, GeminiContent{
			Role:  geminiRoleFor(m.Role),
			Parts: []GeminiPart{{Text: asText(m.Content)}},
		})
	}

	if req.MaxTokens != 0 || req.Temperature != nil || req.TopP != nil {
		out.GenerationConfig = &GeminiGenerationConfig{
			MaxOutputTokens: req.MaxTokens,
			Temperature:     req.Temperature,
			TopP:            req.TopP,
		}
	}

	return out
}

// GeminiToOpenAI translates a Gemini generateContent request into an OpenAI
// chat/completions request, the inverse of OpenAIToGemini.
func GeminiToOpenAI(req GeminiRequest, model string) ChatRequest {
	out := ChatRequest{Model: model}

	if req.SystemInstruction != nil {
		var text string
		for _, p := range req.SystemInstruction.Parts {
			text += p.Text
		}
		if text != "" {
			out.Messages = append(out.Messages, ChatMessage{Role: "system", Content: text})
		}
	}

	for _, content := range req.Contents {
		role := "user"
		if content.Role == "model" {
			role = "assistant"
		}
		var text string
		for _, p := range content.Parts {
			text += p.Text
		}
		out.Messages = append(out.Messages, ChatMessage{Role: role, Content: text})
	}

	if req.GenerationConfig != nil {
		out.MaxTokens = req.GenerationConfig.MaxOutputTokens
		out.Temperature = req.GenerationConfig.Temperature
		out.TopP = req.GenerationConfig.TopP
	}

	return out
}
