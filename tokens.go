package llmroute

import (
	"github.com/blueberrycongee/llmroute/pkg/types"
)

// TokenEstimator predicts the token cost of a request before it is sent.
// The estimate feeds pre-flight quota checks and streaming usage
// recording; it never replaces the upstream's own usage accounting for
// non-streaming responses.
type TokenEstimator func(messages []types.ChatMessage) int64

// Per-message and per-request overheads of the chat format framing.
const (
	tokensPerMessage = 4
	tokensPerRequest = 3
)

// EstimateTokens is the default estimator: roughly four characters per
// token plus framing overhead. Callers with non-Latin or code-heavy
// content should supply their own via WithTokenEstimator.
func EstimateTokens(messages []types.ChatMessage) int64 {
	var chars int64
	for _, m := range messages {
		chars += int64(len(m.TextContent()))
	}

	tokens := (chars + 3) / 4
	tokens += int64(len(messages)) * tokensPerMessage
	tokens += tokensPerRequest
	return tokens
}
