package llmroute

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmerrors "github.com/blueberrycongee/llmroute/pkg/errors"
	"github.com/blueberrycongee/llmroute/pkg/provider"
	"github.com/blueberrycongee/llmroute/pkg/types"
	"github.com/blueberrycongee/llmroute/pkg/window"
)

const testModelsYAML = `
models:
  - id: llama-3.3-70b
    tier: 3
    family: llama
    aliases: [llama-70b]
  - id: qwen-3-32b
    tier: 2
    family: qwen
generic_aliases:
  best: {min_tier: 1}
  best-large: {tier: 3}
`

// upstreamDouble is an httptest-backed provider endpoint with a call
// counter.
type upstreamDouble struct {
	srv   *httptest.Server
	calls atomic.Int64
}

func (u *upstreamDouble) URL() string  { return u.srv.URL }
func (u *upstreamDouble) Calls() int64 { return u.calls.Load() }

func newUpstream(t *testing.T, handler http.HandlerFunc) *upstreamDouble {
	t.Helper()
	u := &upstreamDouble{}
	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(u.srv.Close)
	return u
}

func completionHandler(id string, totalTokens int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{
			"id": %q,
			"model": "whatever",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "ok"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": %d, "completion_tokens": 1, "total_tokens": %d}
		}`, id, totalTokens-1, totalTokens)
	}
}

func rateLimitHandler(retryAfter string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if retryAfter != "" {
			w.Header().Set("Retry-After", retryAfter)
		}
		w.WriteHeader(http.StatusTooManyRequests)
	}
}

func userRequest(model string) *types.ChatRequest {
	return &types.ChatRequest{
		Model:    model,
		Messages: []types.ChatMessage{types.Text("user", "hi")},
	}
}

// singleProviderYAML declares one provider "alpha" serving llama-3.3-70b
// with the given limits block.
func singleProviderYAML(baseURL, limits string) []byte {
	return []byte(fmt.Sprintf(`
providers:
  - name: alpha
    display_name: Alpha
    base_url: %s
    models:
      - canonical: llama-3.3-70b
        id: alpha-llama-70b
        limits: {%s}
`, baseURL, limits))
}

// twoProviderYAML declares "alpha" and "beta", both serving
// llama-3.3-70b with requests_per_minute: 100.
func twoProviderYAML(alphaURL, betaURL string) []byte {
	return []byte(fmt.Sprintf(`
providers:
  - name: alpha
    base_url: %s
    models:
      - canonical: llama-3.3-70b
        id: alpha-llama-70b
        limits: {requests_per_minute: 100}
  - name: beta
    base_url: %s
    models:
      - canonical: llama-3.3-70b
        id: beta-llama-70b
        limits: {requests_per_minute: 100}
`, alphaURL, betaURL))
}

func TestChatCompletion_SingleProvider(t *testing.T) {
	up := newUpstream(t, completionHandler("alpha-1", 10))

	r, err := New(
		WithCatalogBundle(modelsSource(), singleProviderYAML(up.URL(), "requests_per_minute: 30")),
		WithProvider(ProviderConfig{Type: "alpha", APIKey: "k"}),
	)
	require.NoError(t, err)
	defer r.Close()

	resp, meta, err := r.ChatCompletionWithMetadata(context.Background(), userRequest("llama-3.3-70b"))
	require.NoError(t, err)

	assert.Equal(t, "alpha-1", resp.ID)
	assert.Equal(t, "alpha", meta.Provider)
	assert.Equal(t, "llama-3.3-70b", meta.ModelID)
	assert.Equal(t, 0, meta.RetryCount)
	assert.NotEmpty(t, meta.RequestID)
	assert.EqualValues(t, 1, up.Calls())

	// One request consumed from the minute budget.
	status, err := r.QuotaStatus(context.Background(), "alpha", "llama-3.3-70b")
	require.NoError(t, err)
	require.NotNil(t, status.Minute.RequestsRemaining)
	assert.EqualValues(t, 29, *status.Minute.RequestsRemaining)
}

func TestChatCompletion_AliasAndCaseInsensitive(t *testing.T) {
	up := newUpstream(t, completionHandler("alpha-1", 10))

	r, err := New(
		WithCatalogBundle(modelsSource(), singleProviderYAML(up.URL(), "requests_per_minute: 30")),
		WithProvider(ProviderConfig{Type: "alpha", APIKey: "k"}),
	)
	require.NoError(t, err)
	defer r.Close()

	_, meta, err := r.ChatCompletionWithMetadata(context.Background(), userRequest("LLaMA-70B"))
	require.NoError(t, err)
	assert.Equal(t, "llama-3.3-70b", meta.ModelID)
}

func TestChatCompletion_FailoverOn429(t *testing.T) {
	alpha := newUpstream(t, rateLimitHandler("30"))
	beta := newUpstream(t, completionHandler("beta-1", 10))

	clk := window.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	r, err := New(
		WithCatalogBundle(modelsSource(), twoProviderYAML(alpha.URL(), beta.URL())),
		WithProvider(ProviderConfig{Type: "alpha", APIKey: "k", Priority: 0}),
		WithProvider(ProviderConfig{Type: "beta", APIKey: "k", Priority: 1}),
		WithClock(clk),
	)
	require.NoError(t, err)
	defer r.Close()

	resp, meta, err := r.ChatCompletionWithMetadata(context.Background(), userRequest("llama-3.3-70b"))
	require.NoError(t, err)

	assert.Equal(t, "beta-1", resp.ID)
	assert.Equal(t, "beta", meta.Provider)
	assert.Equal(t, 1, meta.RetryCount)
	assert.EqualValues(t, 1, alpha.Calls())
	assert.EqualValues(t, 1, beta.Calls())

	// Alpha is cooling down until the Retry-After horizon.
	status, err := r.QuotaStatus(context.Background(), "alpha", "llama-3.3-70b")
	require.NoError(t, err)
	require.NotNil(t, status.CooldownUntil)
	assert.Equal(t, clk.Now().Add(30*time.Second), *status.CooldownUntil)
}

func TestChatCompletion_PreflightPruneWithoutRetryCharge(t *testing.T) {
	alpha := newUpstream(t, completionHandler("alpha-1", 10))
	beta := newUpstream(t, completionHandler("beta-1", 10))

	providersYAML := []byte(fmt.Sprintf(`
providers:
  - name: alpha
    base_url: %s
    models:
      - canonical: llama-3.3-70b
        id: alpha-llama-70b
        limits: {requests_per_minute: 1}
  - name: beta
    base_url: %s
    models:
      - canonical: llama-3.3-70b
        id: beta-llama-70b
        limits: {requests_per_minute: 100}
`, alpha.URL(), beta.URL()))

	r, err := New(
		WithCatalogBundle(modelsSource(), providersYAML),
		WithProvider(ProviderConfig{Type: "alpha", APIKey: "k", Priority: 0}),
		WithProvider(ProviderConfig{Type: "beta", APIKey: "k", Priority: 1}),
	)
	require.NoError(t, err)
	defer r.Close()

	// First request exhausts alpha's single-request minute budget.
	_, meta, err := r.ChatCompletionWithMetadata(context.Background(), userRequest("llama-3.3-70b"))
	require.NoError(t, err)
	assert.Equal(t, "alpha", meta.Provider)

	// Second request prunes alpha pre-flight and goes to beta without
	// consuming a retry slot or calling alpha.
	_, meta, err = r.ChatCompletionWithMetadata(context.Background(), userRequest("llama-3.3-70b"))
	require.NoError(t, err)
	assert.Equal(t, "beta", meta.Provider)
	assert.Equal(t, 0, meta.RetryCount)
	assert.EqualValues(t, 1, alpha.Calls())
	assert.EqualValues(t, 1, beta.Calls())
}

func TestChatCompletion_AllProvidersExhausted(t *testing.T) {
	alpha := newUpstream(t, rateLimitHandler(""))

	clk := window.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	r, err := New(
		WithCatalogBundle(modelsSource(), singleProviderYAML(alpha.URL(), "requests_per_minute: 30")),
		WithProvider(ProviderConfig{Type: "alpha", APIKey: "k"}),
		WithRetryPolicy(RetryPolicy{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 2}),
		WithClock(clk),
	)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.ChatCompletion(context.Background(), userRequest("llama-3.3-70b"))

	var exhausted *llmerrors.AllProvidersExhausted
	require.ErrorAs(t, err, &exhausted)
	require.Len(t, exhausted.Attempted, 1)
	assert.Equal(t, "alpha", exhausted.Attempted[0].Provider)
	assert.Equal(t, "llama-3.3-70b", exhausted.Attempted[0].Model)

	// Without Retry-After, the default cooldown anchors the reset time.
	require.NotNil(t, exhausted.EarliestReset)
	assert.Equal(t, clk.Now().Add(60*time.Second), *exhausted.EarliestReset)

	// A single upstream call: follow-up attempts are pruned by the
	// cooldown, not re-sent.
	assert.EqualValues(t, 1, alpha.Calls())
}

func TestChatCompletion_GenericAliasRouting(t *testing.T) {
	alpha := newUpstream(t, completionHandler("alpha-1", 10))
	beta := newUpstream(t, completionHandler("beta-1", 10))

	providersYAML := []byte(fmt.Sprintf(`
providers:
  - name: alpha
    base_url: %s
    models:
      - canonical: qwen-3-32b
        id: alpha-qwen-32b
        limits: {requests_per_minute: 100}
  - name: beta
    base_url: %s
    models:
      - canonical: llama-3.3-70b
        id: beta-llama-70b
        limits: {requests_per_minute: 100}
`, alpha.URL(), beta.URL()))

	r, err := New(
		WithCatalogBundle(modelsSource(), providersYAML),
		WithProvider(ProviderConfig{Type: "alpha", APIKey: "k", Priority: 0}),
		WithProvider(ProviderConfig{Type: "beta", APIKey: "k", Priority: 1}),
	)
	require.NoError(t, err)
	defer r.Close()

	// best-large is exactly tier 3: only beta's llama qualifies, even
	// though alpha has better priority.
	_, meta, err := r.ChatCompletionWithMetadata(context.Background(), userRequest("best-large"))
	require.NoError(t, err)
	assert.Equal(t, "beta", meta.Provider)
	assert.Equal(t, "llama-3.3-70b", meta.ModelID)
	assert.EqualValues(t, 0, alpha.Calls())

	// best accepts any tier, but the tier-3 llama still outranks the
	// tier-2 qwen.
	_, meta, err = r.ChatCompletionWithMetadata(context.Background(), userRequest("best"))
	require.NoError(t, err)
	assert.Equal(t, "beta", meta.Provider)
}

func TestChatCompletion_LeastUsedStrategy(t *testing.T) {
	alpha := newUpstream(t, completionHandler("alpha-1", 10))
	beta := newUpstream(t, completionHandler("beta-1", 10))

	clk := window.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 30, 0, time.UTC))
	r, err := New(
		WithCatalogBundle(modelsSource(), twoProviderYAML(alpha.URL(), beta.URL())),
		WithProvider(ProviderConfig{Type: "alpha", APIKey: "k", Priority: 0}),
		WithProvider(ProviderConfig{Type: "beta", APIKey: "k", Priority: 1}),
		WithStrategy("least-used"),
		WithClock(clk),
	)
	require.NoError(t, err)
	defer r.Close()

	// Seed the shared store: alpha has 20 requests this minute (score
	// 0.8), beta has 60 (score 0.4).
	st := r.cfg.Store
	ws := window.Start(window.Minute, clk.Now())
	key := func(prov string) string { return window.UsageKey(prov, "llama-3.3-70b", window.Minute) }
	_, err = st.IncrementUsage(context.Background(), key("alpha"), 20, 200, ws, time.Minute)
	require.NoError(t, err)
	_, err = st.IncrementUsage(context.Background(), key("beta"), 60, 600, ws, time.Minute)
	require.NoError(t, err)

	_, meta, err := r.ChatCompletionWithMetadata(context.Background(), userRequest("llama-3.3-70b"))
	require.NoError(t, err)
	assert.Equal(t, "alpha", meta.Provider)
	assert.EqualValues(t, 1, alpha.Calls())
	assert.EqualValues(t, 0, beta.Calls())
}

func TestChatCompletion_ModelNotFound(t *testing.T) {
	up := newUpstream(t, completionHandler("alpha-1", 10))

	r, err := New(
		WithCatalogBundle(modelsSource(), singleProviderYAML(up.URL(), "requests_per_minute: 30")),
		WithProvider(ProviderConfig{Type: "alpha", APIKey: "k"}),
	)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.ChatCompletion(context.Background(), userRequest("qwen-3-32b"))

	var nf *llmerrors.ModelNotFound
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "qwen-3-32b", nf.Model)
	assert.EqualValues(t, 0, up.Calls())
}

func TestChatCompletion_ValidatesRequest(t *testing.T) {
	up := newUpstream(t, completionHandler("alpha-1", 10))

	r, err := New(
		WithCatalogBundle(modelsSource(), singleProviderYAML(up.URL(), "requests_per_minute: 30")),
		WithProvider(ProviderConfig{Type: "alpha", APIKey: "k"}),
	)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.ChatCompletion(context.Background(), nil)
	assert.Error(t, err)

	_, err = r.ChatCompletion(context.Background(), &types.ChatRequest{Model: "llama-3.3-70b"})
	assert.Error(t, err)

	_, err = r.ChatCompletion(context.Background(), &types.ChatRequest{
		Messages: []types.ChatMessage{types.Text("user", "hi")},
	})
	assert.Error(t, err)
}

func TestListModelsAndProviders(t *testing.T) {
	alpha := newUpstream(t, completionHandler("alpha-1", 10))
	beta := newUpstream(t, completionHandler("beta-1", 10))

	r, err := New(
		WithCatalogBundle(modelsSource(), twoProviderYAML(alpha.URL(), beta.URL())),
		WithProvider(ProviderConfig{Type: "alpha", APIKey: "k"}),
		WithProvider(ProviderConfig{Type: "beta", APIKey: "k"}),
	)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, []string{"llama-3.3-70b"}, r.ListModels())

	provs := r.Providers()
	require.Len(t, provs, 2)
	assert.Equal(t, provider.Kind("alpha"), provs[0].Kind)
}

func modelsSource() []byte { return []byte(testModelsYAML) }
