package providers

import "github.com/blueberrycongee/llmroute/pkg/provider"

// OpenRouter :free variants share one account-wide request budget; the
// same limits are recorded on every model so any of them can trip the
// local bookkeeping first.
var openrouterDescriptor = Descriptor{
	Kind:        provider.KindOpenRouter,
	DisplayName: "OpenRouter",
	BaseURL:     "https://openrouter.ai/api/v1",
	Models: []provider.ModelRecord{
		{
			CanonicalID: "llama-3.1-405b",
			ProviderID:  "meta-llama/llama-3.1-405b-instruct:free",
			Limits:      openrouterFreeLimits,
		},
		{
			CanonicalID: "llama-3.3-70b",
			ProviderID:  "meta-llama/llama-3.3-70b-instruct:free",
			Limits:      openrouterFreeLimits,
		},
		{
			CanonicalID: "llama-3.1-8b",
			ProviderID:  "meta-llama/llama-3.1-8b-instruct:free",
			Limits:      openrouterFreeLimits,
		},
		{
			CanonicalID: "deepseek-r1",
			ProviderID:  "deepseek/deepseek-r1:free",
			Limits:      openrouterFreeLimits,
		},
		{
			CanonicalID: "deepseek-v3",
			ProviderID:  "deepseek/deepseek-chat:free",
			Limits:      openrouterFreeLimits,
		},
		{
			CanonicalID: "qwen-2.5-72b",
			ProviderID:  "qwen/qwen-2.5-72b-instruct:free",
			Limits:      openrouterFreeLimits,
		},
		{
			CanonicalID: "gemma-2-9b",
			ProviderID:  "google/gemma-2-9b-it:free",
			Limits:      openrouterFreeLimits,
		},
	},
}

var openrouterFreeLimits = provider.RateLimits{
	RequestsPerMinute: provider.Int64(20),
	RequestsPerDay:    provider.Int64(50),
}
