package providers

import "github.com/blueberrycongee/llmroute/pkg/provider"

// Cerebras free-tier limits: generous per-minute throughput with a
// daily token ceiling shared across models.
var cerebrasDescriptor = Descriptor{
	Kind:        provider.KindCerebras,
	DisplayName: "Cerebras",
	BaseURL:     "https://api.cerebras.ai/v1",
	Models: []provider.ModelRecord{
		{
			CanonicalID: "llama-3.3-70b",
			ProviderID:  "llama-3.3-70b",
			Limits: provider.RateLimits{
				RequestsPerMinute: provider.Int64(30),
				RequestsPerHour:   provider.Int64(900),
				RequestsPerDay:    provider.Int64(14400),
				TokensPerMinute:   provider.Int64(60000),
				TokensPerHour:     provider.Int64(1000000),
				TokensPerDay:      provider.Int64(1000000),
			},
		},
		{
			CanonicalID: "llama-3.1-8b",
			ProviderID:  "llama3.1-8b",
			Limits: provider.RateLimits{
				RequestsPerMinute: provider.Int64(30),
				RequestsPerHour:   provider.Int64(900),
				RequestsPerDay:    provider.Int64(14400),
				TokensPerMinute:   provider.Int64(60000),
				TokensPerDay:      provider.Int64(1000000),
			},
		},
		{
			CanonicalID: "qwen-3-32b",
			ProviderID:  "qwen-3-32b",
			Limits: provider.RateLimits{
				RequestsPerMinute: provider.Int64(30),
				RequestsPerDay:    provider.Int64(14400),
				TokensPerMinute:   provider.Int64(60000),
				TokensPerDay:      provider.Int64(1000000),
			},
		},
	},
}
