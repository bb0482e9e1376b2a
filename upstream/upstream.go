// Package upstream implements the default OpenAI-compatible HTTP client
// used to reach providers. All built-in providers speak this dialect;
// the client posts to ${base_url}/chat/completions with Bearer auth and
// maps upstream failures onto the routing error taxonomy.
package upstream

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	llmerrors "github.com/blueberrycongee/llmroute/pkg/errors"
	"github.com/blueberrycongee/llmroute/pkg/provider"
	"github.com/blueberrycongee/llmroute/pkg/types"
	"github.com/blueberrycongee/llmroute/pkg/window"
)

const chatEndpoint = "/chat/completions"

// maxErrorBodyBytes caps how much of an upstream error body is retained
// in ProviderError.Raw.
const maxErrorBodyBytes = 4096

// Client sends chat completion requests to OpenAI-compatible endpoints.
type Client struct {
	httpClient *http.Client
	clock      window.Clock
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithClock overrides the clock used to anchor Retry-After parsing.
func WithClock(clk window.Clock) Option {
	return func(c *Client) { c.clock = clk }
}

// NewClient creates an upstream client. The zero-value http.Client is
// used by default; per-call deadlines come from the request context.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		clock:      window.RealClock{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ChatCompletion performs a non-streaming chat completion against the
// provider. The request's model field must already carry the
// provider-native model id.
func (c *Client) ChatCompletion(ctx context.Context, p *provider.Provider, req *types.ChatRequest) (*types.ChatResponse, error) {
	resp, err := c.do(ctx, p, req, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", p.Name(), err)
	}

	var chatResp types.ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, &llmerrors.ProviderError{
			Provider: p.Name(),
			Status:   resp.StatusCode,
			Raw:      "malformed response body: " + err.Error(),
		}
	}
	return &chatResp, nil
}

// ChatCompletionStream opens a streaming chat completion and returns a
// StreamReader over the SSE body. The caller owns the reader and must
// close it.
func (c *Client) ChatCompletionStream(ctx context.Context, p *provider.Provider, req *types.ChatRequest) (*StreamReader, error) {
	streamReq := req.Clone()
	streamReq.Stream = true

	resp, err := c.do(ctx, p, streamReq, true)
	if err != nil {
		return nil, err
	}
	return newStreamReader(resp.Body), nil
}

func (c *Client) do(ctx context.Context, p *provider.Provider, req *types.ChatRequest, streaming bool) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimSuffix(p.BaseURL, "/") + chatEndpoint
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.APIKey)
	if streaming {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	start := c.clock.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if d, ok := ctx.Deadline(); ok && stderrors.Is(err, context.DeadlineExceeded) {
			return nil, &llmerrors.Timeout{
				Provider:  p.Name(),
				TimeoutMS: deadlineMS(start, d),
			}
		}
		return nil, &llmerrors.ProviderError{Provider: p.Name(), Raw: err.Error()}
	}

	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}

	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &llmerrors.RateLimited{
			Provider: p.Name(),
			Model:    req.Model,
			ResetAt:  c.parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	return nil, &llmerrors.ProviderError{
		Provider: p.Name(),
		Status:   resp.StatusCode,
		Raw:      errorMessage(raw),
	}
}

// parseRetryAfter converts a Retry-After header into an absolute reset
// time. Only the integer-seconds form is honored; the HTTP-date form and
// junk values yield nil so the caller falls back to its default cooldown.
func (c *Client) parseRetryAfter(header string) *time.Time {
	if header == "" {
		return nil
	}
	secs, err := strconv.ParseInt(strings.TrimSpace(header), 10, 64)
	if err != nil || secs < 0 {
		return nil
	}
	t := c.clock.Now().Add(time.Duration(secs) * time.Second)
	return &t
}

// errorMessage extracts the OpenAI-style error message from a response
// body, falling back to the raw body.
func errorMessage(raw []byte) string {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &errResp); err == nil && errResp.Error.Message != "" {
		return errResp.Error.Message
	}
	return strings.TrimSpace(string(raw))
}

func deadlineMS(now, deadline time.Time) int64 {
	ms := deadline.Sub(now).Milliseconds()
	if ms < 0 {
		return 0
	}
	return ms
}
