package translate

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
)

// validate is a single shared validator instance, the same "construct once,
// reuse across requests" pattern the teacher's dto validation uses (the
// Validate.Struct call is safe for concurrent use).
var validate = validator.New()

// RequestToOpenAI decodes a wire-format request body (in the given API
// style) into the OpenAI canonical shape, which every other translation in
// this package treats as the hub format, per §4.5.1's "translate via the
// OpenAI shape as the common intermediate" design note. The decoded
// request is struct-tag validated (messages non-empty, each with a role)
// before being handed to the router, per §4.1's ingress validation step.
// The model name is not validated here.
func RequestToOpenAI(style string, body []byte) (ChatRequest, error) {
	var out ChatRequest
	var err error

	switch style {
	case "anthropic":
		var req ClaudeRequest
		if err = json.Unmarshal(body, &req); err != nil {
			return ChatRequest{}, err
		}
		out = AnthropicToOpenAI(req)
	case "gemini":
		var req GeminiRequest
		if err = json.Unmarshal(body, &req); err != nil {
			return ChatRequest{}, err
		}
		out = GeminiToOpenAI(req, "")
	default:
		if err = json.Unmarshal(body, &out); err != nil {
			return ChatRequest{}, err
		}
	}

	if err := validate.Struct(out); err != nil {
		return ChatRequest{}, err
	}
	return out, nil
}

// RequestFromOpenAI encodes the OpenAI canonical request shape into the
// wire bytes for the given upstream API style.
func RequestFromOpenAI(style string, req ChatRequest) ([]byte, error) {
	switch style {
	case "anthropic":
		return json.Marshal(OpenAIToAnthropic(req))
	case "gemini":
		return json.Marshal(OpenAIToGemini(req))
	default:
		return json.Marshal(req)
	}
}

// ResponseToOpenAI decodes a non-streaming upstream response (in the given
// API style) into the OpenAI canonical response shape.
func ResponseToOpenAI(style string, body []byte, model string) (ChatResponse, error) {
	switch style {
	case "anthropic":
		var resp ClaudeResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return ChatResponse{}, err
		}
		return AnthropicToOpenAIResponse(resp), nil
	case "gemini":
		var resp GeminiResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return ChatResponse{}, err
		}
		return GeminiToOpenAIResponse(resp, model), nil
	default:
		var resp ChatResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return ChatResponse{}, err
		}
		return resp, nil
	}
}

// ResponseFromOpenAI encodes the OpenAI canonical response shape into the
// wire bytes for the given ingress API style (what the caller asked for).
func ResponseFromOpenAI(style string, resp ChatResponse) ([]byte, error) {
	switch style {
	case "anthropic":
		return json.Marshal(OpenAIToAnthropicResponse(resp))
	case "gemini":
		return json.Marshal(OpenAIToGeminiResponse(resp))
	default:
		return json.Marshal(resp)
	}
}
