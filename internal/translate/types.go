// Package translate implements the Format Translator (C6): bidirectional
// request, response, and streaming-frame conversion between the OpenAI,
// Anthropic, and Gemini wire formats, per §4.5. Grounded on
// relay/adaptor/openai_compatible/{claude_convert.go,claude_messages.go,
// unified_streaming.go,utils.go} for the OpenAI<->Anthropic direction (fully
// present in the teacher); the Gemini direction is authored fresh, in the
// same shape, since the teacher's relay/adaptor/gemini implementation was
// not retrieved — only its tests survived.
package translate

import "encoding/json"

// OpenAI wire types (request + non-streaming response + stream chunk).

// ChatMessage is one OpenAI-style chat message.
type ChatMessage struct {
	Role             string          `json:"role" validate:"required"`
	Content          any             `json:"content,omitempty"` // string or []ContentPart
	ReasoningContent string          `json:"reasoning_content,omitempty"` // GLM-style sibling field, §4.4
	ToolCalls        []ToolCall      `json:"tool_calls,omitempty"`
	ToolCallID       string          `json:"tool_call_id,omitempty"`
	Name             string          `json:"name,omitempty"`
}

// ContentPart is one element of an OpenAI/Anthropic array-form content
// block.
type ContentPart struct {
	Type   string          `json:"type"`
	Text   string          `json:"text,omitempty"`
	Source json.RawMessage `json:"source,omitempty"` // image/file source, preserved opaquely
}

// ToolCall is an OpenAI-style tool call.
type ToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// ChatRequest is the OpenAI chat/completions request shape.
type ChatRequest struct {
	Model         string        `json:"model"`
	Messages      []ChatMessage `json:"messages" validate:"required,min=1,dive"`
	MaxTokens     int           `json:"max_tokens,omitempty"`
	Temperature   *float64      `json:"temperature,omitempty"`
	TopP          *float64      `json:"top_p,omitempty"`
	Stop          []string      `json:"stop,omitempty"`
	Stream        bool          `json:"stream,omitempty"`
}

// Usage is the OpenAI-shaped usage block, authoritative when present per
// §4.5.3.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// ChatResponse is the OpenAI non-streaming chat/completions response shape.
type ChatResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

// StreamChunk is one OpenAI SSE `data:` payload.
type StreamChunk struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Delta        ChatMessage `json:"delta"`
		FinishReason *string     `json:"finish_reason"`
	} `json:"choices"`
	Usage *Usage `json:"usage,omitempty"`
}

// Anthropic wire types.

// ClaudeMessage is one Anthropic Messages-API message.
type ClaudeMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []ContentPart
}

// ClaudeRequest is the Anthropic /v1/messages request shape.
type ClaudeRequest struct {
	Model         string          `json:"model"`
	System        any             `json:"system,omitempty"` // string or []ContentPart
	Messages      []ClaudeMessage `json:"messages"`
	MaxTokens     int             `json:"max_tokens"`
	Temperature   *float64        `json:"temperature,omitempty"`
	TopP          *float64        `json:"top_p,omitempty"`
	StopSequences []string        `json:"stop_sequences,omitempty"`
	Stream        bool            `json:"stream,omitempty"`
}

// ClaudeUsage is the Anthropic usage block.
type ClaudeUsage struct {
	InputTokens  int `json:"input_tokens,omitempty"`
	OutputTokens int `json:"output_tokens,omitempty"`
}

// ClaudeResponse is the Anthropic non-streaming response shape.
type ClaudeResponse struct {
	ID         string        `json:"id"`
	Type       string        `json:"type"`
	Role       string        `json:"role"`
	Model      string        `json:"model"`
	Content    []ContentPart `json:"content"`
	StopReason string        `json:"stop_reason,omitempty"`
	Usage      ClaudeUsage   `json:"usage"`
}

// Gemini wire types.

// GeminiPart is one element of a Gemini content's parts array.
type GeminiPart struct {
	Text string `json:"text,omitempty"`
}

// GeminiContent is one turn of a Gemini request/response.
type GeminiContent struct {
	Role  string       `json:"role,omitempty"` // "user" or "model"
	Parts []GeminiPart `json:"parts"`
}

// GeminiGenerationConfig mirrors Gemini's generationConfig block.
type GeminiGenerationConfig struct {
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
}

// GeminiRequest is the :generateContent / :streamGenerateContent request
// shape.
type GeminiRequest struct {
	Contents          []GeminiContent         `json:"contents"`
	SystemInstruction *GeminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *GeminiGenerationConfig `json:"generationConfig,omitempty"`
}

// GeminiUsageMetadata is Gemini's usage block.
type GeminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount,omitempty"`
	CandidatesTokenCount int `json:"candidatesTokenCount,omitempty"`
	TotalTokenCount      int `json:"totalTokenCount,omitempty"`
}

// GeminiResponse is the Gemini response/stream-chunk shape (both share this
// structure; streaming just emits a sequence of these as NDJSON / SSE).
type GeminiResponse struct {
	Candidates []struct {
		Content      GeminiContent `json:"content"`
		FinishReason string        `json:"finishReason,omitempty"`
	} `json:"candidates"`
	UsageMetadata *GeminiUsageMetadata `json:"usageMetadata,omitempty"`
}
