package providers

import "github.com/blueberrycongee/llmroute/pkg/provider"

// SambaNova publishes per-model request rates only; token budgets are
// unmetered on the free tier.
var sambanovaDescriptor = Descriptor{
	Kind:        provider.KindSambaNova,
	DisplayName: "SambaNova",
	BaseURL:     "https://api.sambanova.ai/v1",
	Models: []provider.ModelRecord{
		{
			CanonicalID: "llama-3.1-405b",
			ProviderID:  "Meta-Llama-3.1-405B-Instruct",
			Limits: provider.RateLimits{
				RequestsPerMinute: provider.Int64(10),
				RequestsPerDay:    provider.Int64(120),
			},
		},
		{
			CanonicalID: "llama-3.3-70b",
			ProviderID:  "Meta-Llama-3.3-70B-Instruct",
			Limits: provider.RateLimits{
				RequestsPerMinute: provider.Int64(20),
			},
		},
		{
			CanonicalID: "llama-3.1-8b",
			ProviderID:  "Meta-Llama-3.1-8B-Instruct",
			Limits: provider.RateLimits{
				RequestsPerMinute: provider.Int64(30),
			},
		},
		{
			CanonicalID: "deepseek-r1",
			ProviderID:  "DeepSeek-R1",
			Limits: provider.RateLimits{
				RequestsPerMinute: provider.Int64(10),
				RequestsPerDay:    provider.Int64(120),
			},
		},
		{
			CanonicalID: "deepseek-v3",
			ProviderID:  "DeepSeek-V3-0324",
			Limits: provider.RateLimits{
				RequestsPerMinute: provider.Int64(10),
			},
		},
		{
			CanonicalID: "qwen-2.5-72b",
			ProviderID:  "Qwen2.5-72B-Instruct",
			Limits: provider.RateLimits{
				RequestsPerMinute: provider.Int64(20),
			},
		},
	},
}
