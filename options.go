package llmroute

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/blueberrycongee/llmroute/pkg/provider"
	"github.com/blueberrycongee/llmroute/pkg/ratelimit"
	"github.com/blueberrycongee/llmroute/pkg/store"
	"github.com/blueberrycongee/llmroute/pkg/window"
)

// ProviderConfig declares one upstream provider for the router.
//
// Example:
//
//	llmroute.WithProvider(llmroute.ProviderConfig{
//	    Type:   provider.KindGroq,
//	    APIKey: os.Getenv("GROQ_API_KEY"),
//	})
type ProviderConfig struct {
	// Type selects a registered provider kind ("groq", "cerebras", ...).
	Type provider.Kind

	// APIKey authenticates against the provider.
	APIKey string

	// Priority orders providers for the priority strategy; lower wins.
	Priority int

	// Enabled defaults to true when nil.
	Enabled *bool

	// FreeCredits overrides the descriptor's free-credits flag.
	FreeCredits *bool

	// BaseURL overrides the provider's default endpoint.
	BaseURL string
}

// RetryPolicy bounds the driver's failover loop.
type RetryPolicy struct {
	// MaxRetries is the number of retry attempts after the first try.
	MaxRetries int

	// InitialBackoff seeds the exponential backoff for non-429 failures.
	InitialBackoff time.Duration

	// MaxBackoff caps the backoff growth.
	MaxBackoff time.Duration

	// Multiplier is the exponential growth factor.
	Multiplier float64
}

// Config holds all router configuration. Use New with Options rather
// than constructing it directly.
type Config struct {
	Providers []ProviderConfig

	// Routing
	Strategy     string
	ModelAliases map[string]string

	// Optional YAML catalog bundle replacing the built-in model set.
	ModelsYAML    []byte
	ProvidersYAML []byte

	// Driver
	Timeout          time.Duration
	Retry            RetryPolicy
	ThrowOnExhausted bool

	// Rate limiting
	Store           store.Store
	DefaultCooldown time.Duration

	// Streaming: when set, usage recorded from the pre-stream estimate is
	// corrected with the provider's usage block after the stream ends.
	ReconcileStreamUsage bool

	// Ambient
	Logger     *slog.Logger
	Clock      window.Clock
	Estimator  TokenEstimator
	HTTPClient *http.Client
}

// Option configures the Router.
type Option func(*Config)

// defaultConfig returns sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Timeout: 60 * time.Second,
		Retry: RetryPolicy{
			MaxRetries:     3,
			InitialBackoff: time.Second,
			MaxBackoff:     30 * time.Second,
			Multiplier:     2,
		},
		ThrowOnExhausted: true,
		DefaultCooldown:  ratelimit.DefaultCooldown,
		Logger:           slog.Default(),
		Clock:            window.RealClock{},
		Estimator:        EstimateTokens,
	}
}

// WithProvider adds a provider configuration. At least one enabled
// provider is required.
func WithProvider(cfg ProviderConfig) Option {
	return func(c *Config) {
		c.Providers = append(c.Providers, cfg)
	}
}

// WithStrategy selects the routing strategy by name: "priority"
// (default), "least-used" or "lowest-latency".
func WithStrategy(name string) Option {
	return func(c *Config) {
		c.Strategy = name
	}
}

// WithModelAliases installs user alias overrides. They take precedence
// over built-in aliases and generic tokens.
func WithModelAliases(aliases map[string]string) Option {
	return func(c *Config) {
		c.ModelAliases = aliases
	}
}

// WithCatalogBundle replaces the built-in model catalog and provider
// descriptors with the two YAML sources.
func WithCatalogBundle(modelsYAML, providersYAML []byte) Option {
	return func(c *Config) {
		c.ModelsYAML = modelsYAML
		c.ProvidersYAML = providersYAML
	}
}

// WithTimeout sets the per-call upstream deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithRetryPolicy replaces the retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Config) {
		c.Retry = p
	}
}

// WithThrowOnExhausted controls the terminal error shape: when true
// (default) exhaustion raises AllProvidersExhausted, when false the last
// upstream error propagates instead.
func WithThrowOnExhausted(enabled bool) Option {
	return func(c *Config) {
		c.ThrowOnExhausted = enabled
	}
}

// WithStore replaces the default in-memory state store. The router
// closes the store on Close.
//
// Example:
//
//	st, _ := redisstore.New(redisstore.Options{Addr: "localhost:6379"})
//	llmroute.WithStore(st)
func WithStore(st store.Store) Option {
	return func(c *Config) {
		c.Store = st
	}
}

// WithDefaultCooldown sets the cooldown applied to 429 responses that
// carry no Retry-After header.
func WithDefaultCooldown(d time.Duration) Option {
	return func(c *Config) {
		c.DefaultCooldown = d
	}
}

// WithStreamUsageReconciliation corrects streaming usage bookkeeping
// with the provider's final usage block once the stream completes.
func WithStreamUsageReconciliation(enabled bool) Option {
	return func(c *Config) {
		c.ReconcileStreamUsage = enabled
	}
}

// WithLogger sets the logger for the router.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithClock injects a clock. Test code uses this to drive window
// boundaries and cooldown expiry deterministically.
func WithClock(clock window.Clock) Option {
	return func(c *Config) {
		c.Clock = clock
	}
}

// WithTokenEstimator replaces the default token estimator.
func WithTokenEstimator(e TokenEstimator) Option {
	return func(c *Config) {
		c.Estimator = e
	}
}

// WithHTTPClient replaces the HTTP client used for upstream calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Config) {
		c.HTTPClient = hc
	}
}

// Bool returns a pointer to v, for the optional ProviderConfig fields.
func Bool(v bool) *bool { return &v }
