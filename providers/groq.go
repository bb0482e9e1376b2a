package providers

import "github.com/blueberrycongee/llmroute/pkg/provider"

// Groq free-tier limits, per console.groq.com/docs/rate-limits. Limits
// are per model; the versatile 70b gets a tighter daily token cap.
var groqDescriptor = Descriptor{
	Kind:        provider.KindGroq,
	DisplayName: "Groq",
	BaseURL:     "https://api.groq.com/openai/v1",
	Models: []provider.ModelRecord{
		{
			CanonicalID: "llama-3.3-70b",
			ProviderID:  "llama-3.3-70b-versatile",
			Limits: provider.RateLimits{
				RequestsPerMinute: provider.Int64(30),
				RequestsPerDay:    provider.Int64(1000),
				TokensPerMinute:   provider.Int64(12000),
				TokensPerDay:      provider.Int64(100000),
			},
		},
		{
			CanonicalID: "llama-3.1-8b",
			ProviderID:  "llama-3.1-8b-instant",
			Limits: provider.RateLimits{
				RequestsPerMinute: provider.Int64(30),
				RequestsPerDay:    provider.Int64(14400),
				TokensPerMinute:   provider.Int64(6000),
				TokensPerDay:      provider.Int64(500000),
			},
		},
		{
			CanonicalID: "deepseek-r1",
			ProviderID:  "deepseek-r1-distill-llama-70b",
			Limits: provider.RateLimits{
				RequestsPerMinute: provider.Int64(30),
				RequestsPerDay:    provider.Int64(1000),
				TokensPerMinute:   provider.Int64(6000),
			},
		},
		{
			CanonicalID: "qwen-3-32b",
			ProviderID:  "qwen/qwen3-32b",
			Limits: provider.RateLimits{
				RequestsPerMinute: provider.Int64(60),
				RequestsPerDay:    provider.Int64(1000),
				TokensPerMinute:   provider.Int64(6000),
			},
		},
		{
			CanonicalID: "gemma-2-9b",
			ProviderID:  "gemma2-9b-it",
			Limits: provider.RateLimits{
				RequestsPerMinute: provider.Int64(30),
				RequestsPerDay:    provider.Int64(14400),
				TokensPerMinute:   provider.Int64(15000),
				TokensPerDay:      provider.Int64(500000),
			},
		},
	},
}
