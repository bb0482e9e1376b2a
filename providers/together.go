package providers

import "github.com/blueberrycongee/llmroute/pkg/provider"

// Together runs on promotional credits rather than a standing free
// tier, so it is flagged FreeCredits and ranks behind credit-free
// providers at equal priority in user configurations.
var togetherDescriptor = Descriptor{
	Kind:        provider.KindTogether,
	DisplayName: "Together AI",
	BaseURL:     "https://api.together.xyz/v1",
	FreeCredits: true,
	Models: []provider.ModelRecord{
		{
			CanonicalID: "llama-3.1-405b",
			ProviderID:  "meta-llama/Meta-Llama-3.1-405B-Instruct-Turbo",
			Limits: provider.RateLimits{
				RequestsPerMinute: provider.Int64(60),
			},
		},
		{
			CanonicalID: "llama-3.3-70b",
			ProviderID:  "meta-llama/Llama-3.3-70B-Instruct-Turbo",
			Limits: provider.RateLimits{
				RequestsPerMinute: provider.Int64(60),
			},
		},
		{
			CanonicalID: "llama-3.1-8b",
			ProviderID:  "meta-llama/Meta-Llama-3.1-8B-Instruct-Turbo",
			Limits: provider.RateLimits{
				RequestsPerMinute: provider.Int64(600),
			},
		},
		{
			CanonicalID: "deepseek-r1",
			ProviderID:  "deepseek-ai/DeepSeek-R1",
			Limits: provider.RateLimits{
				RequestsPerMinute: provider.Int64(60),
			},
		},
		{
			CanonicalID: "deepseek-v3",
			ProviderID:  "deepseek-ai/DeepSeek-V3",
			Limits: provider.RateLimits{
				RequestsPerMinute: provider.Int64(60),
			},
		},
		{
			CanonicalID: "qwen-2.5-72b",
			ProviderID:  "Qwen/Qwen2.5-72B-Instruct-Turbo",
			Limits: provider.RateLimits{
				RequestsPerMinute: provider.Int64(60),
			},
		},
		{
			CanonicalID: "gemma-2-27b",
			ProviderID:  "google/gemma-2-27b-it",
			Limits: provider.RateLimits{
				RequestsPerMinute: provider.Int64(60),
			},
		},
		{
			CanonicalID: "gemma-2-9b",
			ProviderID:  "google/gemma-2-9b-it",
			Limits: provider.RateLimits{
				RequestsPerMinute: provider.Int64(600),
			},
		},
	},
}
