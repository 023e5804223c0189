package model

import (
	"strings"

	"github.com/cloudwego/eino/schema"
)

// Pricing defines USD cost per 1M tokens for input/output.
type Pricing struct {
	InputPerM  float64
	OutputPerM float64
}

// defaultPricing is keyed by model family prefix so dated model ids resolve.
var defaultPricing = map[string]Pricing{
	"claude-3-5-haiku":  {InputPerM: 0.80, OutputPerM: 4.00},
	"claude-3-haiku":    {InputPerM: 0.25, OutputPerM: 1.25},
	"claude-sonnet-4":   {InputPerM: 3.00, OutputPerM: 15.00},
	"claude-3-7-sonnet": {InputPerM: 3.00, OutputPerM: 15.00},
	"claude-haiku-4":    {InputPerM: 1.00, OutputPerM: 5.00},

	"gemini-2.5-flash-lite": {InputPerM: 0.10, OutputPerM: 0.40},
	"gemini-2.5-flash":      {InputPerM: 0.30, OutputPerM: 2.50},
}

// ResolvePricing returns the pricing of the longest matching model prefix,
// or zero pricing for unknown models.
func ResolvePricing(model string) Pricing {
	var (
		best    Pricing
		bestLen int
	)
	for prefix, p := range defaultPricing {
		if strings.HasPrefix(model, prefix) && len(prefix) > bestLen {
			best, bestLen = p, len(prefix)
		}
	}
	return best
}

// ComputeCost converts token usage to USD cost using per-1M Pricing.
func ComputeCost(usage *schema.TokenUsage, p Pricing) (inputCost, outputCost, total float64) {
	if usage == nil {
		return 0, 0, 0
	}
	inputCost = p.InputPerM * float64(usage.PromptTokens) / 1_000_000.0
	outputCost = p.OutputPerM * float64(usage.CompletionTokens) / 1_000_000.0
	total = inputCost + outputCost
	return
}
