// Copyright 2025 NutriChat
// SPDX-License-Identifier: Apache-2.0

package quota

// Assistant model pricing as of mid 2025.
// Prices stored in cents per 1M tokens to avoid floating point issues.
// All prices are USD.

// ModelPricing contains pricing for a specific model
type ModelPricing struct {
	PromptCostPer1M     int // cents per 1M prompt tokens
	CompletionCostPer1M int // cents per 1M completion tokens
}

// modelPricing maps model identifiers to pricing
var modelPricing = map[string]ModelPricing{
	"gpt-4o":        {250, 1000}, // $2.50/$10.00 per 1M tokens
	"gpt-4o-mini":   {15, 60},    // $0.15/$0.60 per 1M tokens
	"gpt-4-turbo":   {1000, 3000},
	"gpt-3.5-turbo": {50, 150},

	// Conservative fallback for unknown models
	"default": {250, 1000},
}

// CalculateCostUSD calculates the dollar cost of a completed assistant job
// from its token usage. Unknown models fall back to the default pricing.
func CalculateCostUSD(model string, promptTokens, completionTokens int) float64 {
	pricing, ok := modelPricing[model]
	if !ok {
		pricing = modelPricing["default"]
	}

	promptCents := float64(promptTokens) * float64(pricing.PromptCostPer1M) / 1_000_000
	completionCents := float64(completionTokens) * float64(pricing.CompletionCostPer1M) / 1_000_000

	return (promptCents + completionCents) / 100
}

// PricingFor returns the pricing for a model, reporting whether it was an
// exact match
func PricingFor(model string) (ModelPricing, bool) {
	p, ok := modelPricing[model]
	return p, ok
}
