package provider

import "github.com/laisky/relay-gateway/internal/gwconfig"

// ForStyle returns the Handler for a given upstream API style. Grounded on
// relay/adaptor/common.go's GetAdaptor channel-type switch in the teacher,
// narrowed to the three styles this gateway speaks.
func ForStyle(style gwconfig.APIStyle) Handler {
	switch style {
	case gwconfig.APIStyleAnthropic:
		return AnthropicHandler{}
	case gwconfig.APIStyleGemini:
		return GeminiHandler{}
	default:
		return OpenAIHandler{}
	}
}
