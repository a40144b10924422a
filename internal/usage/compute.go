package usage

import "github.com/laisky/relay-gateway/internal/gwconfig"

// ComputeCostUSD prices a usage record against a Model's flat
// prompt/completion price-per-1k-tokens, per §3's Model data model. This is
// deliberately simpler than the teacher's tiered/cached-input pricing
// (relay/quota/quota.go): spec.md's Model type carries only two flat rates.
func ComputeCostUSD(model gwconfig.Model, promptTokens, completionTokens int) float64 {
	promptCost := float64(promptTokens) / 1000 * model.PromptPricePer1K
	completionCost := float64(completionTokens) / 1000 * model.CompletionPricePer1K
	return promptCost + completionCost
}
