package metrics

import (
	"strings"

	"schemaforge/internal/port"
)

// modelPrice holds USD per million tokens.
type modelPrice struct {
	prompt     float64
	completion float64
}

// prices covers the models the default profiles use. Unknown models cost 0
// rather than guessing.
var prices = map[string]modelPrice{
	"gpt-4o":        {prompt: 2.50, completion: 10.00},
	"gpt-4o-mini":   {prompt: 0.15, completion: 0.60},
	"gpt-4.1":       {prompt: 2.00, completion: 8.00},
	"gpt-4.1-mini":  {prompt: 0.40, completion: 1.60},
	"gpt-3.5-turbo": {prompt: 0.50, completion: 1.50},
}

// EstimateCost returns the estimated USD cost of one call. Model names are
// matched by prefix so dated snapshots price like their base model.
func EstimateCost(model string, usage port.Usage) float64 {
	p, ok := prices[model]
	if !ok {
		// Longest prefix wins so "gpt-4o-mini-2024..." prices as
		// gpt-4o-mini, not gpt-4o.
		best := ""
		for name, candidate := range prices {
			if strings.HasPrefix(model, name) && len(name) > len(best) {
				p = candidate
				best = name
				ok = true
			}
		}
	}
	if !ok {
		return 0
	}
	return float64(usage.PromptTokens)*p.prompt/1e6 + float64(usage.CompletionTokens)*p.completion/1e6
}
