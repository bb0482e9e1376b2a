// Package llmroute routes OpenAI-compatible chat completion requests
// across multiple free-tier LLM providers. It tracks local rate-limit
// usage in tumbling aligned windows, selects providers by model quality
// tier and a pluggable strategy, and fails over automatically on 429s
// and upstream errors.
//
// Basic usage:
//
//	r, err := llmroute.New(
//	    llmroute.WithProvider(llmroute.ProviderConfig{
//	        Type:   provider.KindGroq,
//	        APIKey: os.Getenv("GROQ_API_KEY"),
//	    }),
//	    llmroute.WithProvider(llmroute.ProviderConfig{
//	        Type:     provider.KindCerebras,
//	        APIKey:   os.Getenv("CEREBRAS_API_KEY"),
//	        Priority: 1,
//	    }),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
//	resp, err := r.ChatCompletion(ctx, &types.ChatRequest{
//	    Model:    "best-large",
//	    Messages: []types.ChatMessage{types.Text("user", "hello")},
//	})
//
// Model names accept canonical ids ("llama-3.3-70b"), per-model aliases
// ("llama-70b"), and generic tier tokens ("best", "best-large", "fast").
package llmroute

import (
	"github.com/blueberrycongee/llmroute/pkg/types"
)

// Re-exported request/response types for convenience.
type (
	ChatRequest  = types.ChatRequest
	ChatMessage  = types.ChatMessage
	ChatResponse = types.ChatResponse
	StreamChunk  = types.StreamChunk
	Usage        = types.Usage
)

// Text creates a plain-text chat message.
func Text(role, content string) ChatMessage {
	return types.Text(role, content)
}
