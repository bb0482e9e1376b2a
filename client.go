package llmroute

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/blueberrycongee/llmroute/pkg/catalog"
	llmerrors "github.com/blueberrycongee/llmroute/pkg/errors"
	"github.com/blueberrycongee/llmroute/pkg/provider"
	"github.com/blueberrycongee/llmroute/pkg/ratelimit"
	"github.com/blueberrycongee/llmroute/pkg/router"
	"github.com/blueberrycongee/llmroute/pkg/store/memstore"
	"github.com/blueberrycongee/llmroute/pkg/types"
	"github.com/blueberrycongee/llmroute/pkg/window"
	"github.com/blueberrycongee/llmroute/providers"
	"github.com/blueberrycongee/llmroute/routers"
	"github.com/blueberrycongee/llmroute/upstream"
)

// Router dispatches chat completion requests across the configured
// providers, keeping local rate-limit bookkeeping and failing over on
// upstream errors.
//
// Router is safe for concurrent use by multiple goroutines. All mutable
// state lives in the store; everything else is read-only after New.
type Router struct {
	cfg       *Config
	catalog   *catalog.Catalog
	providers map[provider.Kind]*provider.Provider
	tracker   *ratelimit.Tracker
	strategy  router.Strategy
	upstream  *upstream.Client
	logger    *slog.Logger
	clock     window.Clock
	estimate  TokenEstimator
}

// ResponseMetadata describes how a request was routed.
type ResponseMetadata struct {
	// RequestID is a unique id assigned by the router.
	RequestID string

	// Provider is the provider that served the request.
	Provider string

	// ModelID is the canonical model id that was dispatched.
	ModelID string

	// LatencyMS is the upstream round-trip time. Zero for streaming,
	// where the router hands off before the response completes.
	LatencyMS int64

	// RetryCount is how many retry slots the request consumed.
	RetryCount int
}

// New creates a Router from the given options.
//
// Example:
//
//	r, err := llmroute.New(
//	    llmroute.WithProvider(llmroute.ProviderConfig{
//	        Type:   provider.KindGroq,
//	        APIKey: os.Getenv("GROQ_API_KEY"),
//	    }),
//	    llmroute.WithStrategy("least-used"),
//	)
func New(opts ...Option) (*Router, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	strategy, err := routers.New(cfg.Strategy)
	if err != nil {
		return nil, llmerrors.NewConfigurationError("%v", err)
	}

	cat, templates, err := buildCatalog(cfg)
	if err != nil {
		return nil, err
	}
	cat.SetUserAliases(cfg.ModelAliases)

	r := &Router{
		cfg:       cfg,
		catalog:   cat,
		providers: make(map[provider.Kind]*provider.Provider),
		strategy:  strategy,
		logger:    cfg.Logger,
		clock:     cfg.Clock,
		estimate:  cfg.Estimator,
	}

	for _, pc := range cfg.Providers {
		if pc.Enabled != nil && !*pc.Enabled {
			continue
		}
		p, err := buildProvider(pc, templates)
		if err != nil {
			return nil, err
		}
		if _, dup := r.providers[p.Kind]; dup {
			return nil, llmerrors.NewConfigurationError("provider %s configured twice", p.Name())
		}
		if err := cat.RegisterProvider(p); err != nil {
			return nil, err
		}
		r.providers[p.Kind] = p
	}
	if len(r.providers) == 0 {
		return nil, llmerrors.NewConfigurationError("no enabled providers configured")
	}

	if cfg.Store == nil {
		cfg.Store = memstore.New(memstore.WithClock(cfg.Clock))
	}
	r.tracker = ratelimit.NewTracker(cfg.Store,
		ratelimit.WithClock(cfg.Clock),
		ratelimit.WithDefaultCooldown(cfg.DefaultCooldown),
		ratelimit.WithLogger(cfg.Logger),
	)

	upOpts := []upstream.Option{upstream.WithClock(cfg.Clock)}
	if cfg.HTTPClient != nil {
		upOpts = append(upOpts, upstream.WithHTTPClient(cfg.HTTPClient))
	}
	r.upstream = upstream.NewClient(upOpts...)

	r.logger.Info("router initialized",
		"providers", len(r.providers),
		"strategy", strategy.Name(),
	)

	return r, nil
}

func buildCatalog(cfg *Config) (*catalog.Catalog, map[provider.Kind]*provider.Provider, error) {
	if len(cfg.ModelsYAML) == 0 && len(cfg.ProvidersYAML) == 0 {
		return catalog.New(), nil, nil
	}

	cat, bundled, err := catalog.LoadBundle(cfg.ModelsYAML, cfg.ProvidersYAML)
	if err != nil {
		return nil, nil, err
	}
	templates := make(map[provider.Kind]*provider.Provider, len(bundled))
	for _, p := range bundled {
		templates[p.Kind] = p
	}
	return cat, templates, nil
}

func buildProvider(pc ProviderConfig, templates map[provider.Kind]*provider.Provider) (*provider.Provider, error) {
	var p *provider.Provider
	if templates != nil {
		tmpl, ok := templates[pc.Type]
		if !ok {
			return nil, llmerrors.NewConfigurationError("provider type %q not declared in bundle", pc.Type)
		}
		clone := *tmpl
		clone.Models = make([]provider.ModelRecord, len(tmpl.Models))
		copy(clone.Models, tmpl.Models)
		clone.APIKey = pc.APIKey
		clone.Priority = pc.Priority
		if pc.BaseURL != "" {
			clone.BaseURL = pc.BaseURL
		}
		p = &clone
	} else {
		built, err := providers.Build(pc.Type, providers.Settings{
			APIKey:   pc.APIKey,
			Priority: pc.Priority,
			BaseURL:  pc.BaseURL,
		})
		if err != nil {
			return nil, llmerrors.NewConfigurationError("%v", err)
		}
		p = built
	}

	if pc.FreeCredits != nil {
		p.FreeCredits = *pc.FreeCredits
	}
	return p, nil
}

// ChatCompletion routes a chat completion request and returns the
// upstream response.
func (r *Router) ChatCompletion(ctx context.Context, req *types.ChatRequest) (*types.ChatResponse, error) {
	resp, _, err := r.ChatCompletionWithMetadata(ctx, req)
	return resp, err
}

// ChatCompletionWithMetadata routes a chat completion request and also
// reports which provider served it.
func (r *Router) ChatCompletionWithMetadata(ctx context.Context, req *types.ChatRequest) (*types.ChatResponse, *ResponseMetadata, error) {
	if err := validateRequest(req); err != nil {
		return nil, nil, err
	}
	out, meta, err := r.dispatch(ctx, req, false)
	if err != nil {
		return nil, nil, err
	}
	return out.resp, meta, nil
}

// ChatCompletionStream routes a streaming chat completion request. The
// returned Stream is handed off as soon as the upstream accepts the
// request; usage is recorded from the pre-stream token estimate.
func (r *Router) ChatCompletionStream(ctx context.Context, req *types.ChatRequest) (*Stream, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	out, meta, err := r.dispatch(ctx, req, true)
	if err != nil {
		return nil, err
	}
	return newStream(r, out.stream, out.cancel, *meta, r.estimate(req.Messages)), nil
}

// QuotaStatus reports the remaining budget for one (provider, canonical
// model) pair.
func (r *Router) QuotaStatus(ctx context.Context, kind provider.Kind, canonicalID string) (ratelimit.QuotaStatus, error) {
	p, ok := r.providers[kind]
	if !ok {
		return ratelimit.QuotaStatus{}, llmerrors.NewProviderNotFound(string(kind))
	}
	rec, ok := p.Model(canonicalID)
	if !ok {
		return ratelimit.QuotaStatus{}, &llmerrors.ModelNotFound{Model: canonicalID}
	}
	return r.tracker.GetQuotaStatus(ctx, p.Name(), canonicalID, rec.Limits)
}

// ListModels returns the canonical model ids served by at least one
// configured provider, sorted.
func (r *Router) ListModels() []string {
	seen := make(map[string]struct{})
	for _, p := range r.providers {
		for _, rec := range p.Models {
			seen[rec.CanonicalID] = struct{}{}
		}
	}
	models := make([]string, 0, len(seen))
	for id := range seen {
		models = append(models, id)
	}
	sort.Strings(models)
	return models
}

// Providers returns the configured providers in catalog registration
// order.
func (r *Router) Providers() []*provider.Provider {
	return r.catalog.Providers()
}

// Close releases the state store.
func (r *Router) Close() error {
	return r.cfg.Store.Close()
}

// attemptOutcome is the successful result of one driver pass.
type attemptOutcome struct {
	resp   *types.ChatResponse
	stream *upstream.StreamReader
	cancel context.CancelFunc
}

// dispatch runs the failover loop: select a candidate, pre-flight check
// it, invoke the upstream, and classify failures. 429 responses cool the
// pair down and fail over immediately; other errors back off
// exponentially. Pre-flight prunes do not consume retry slots.
func (r *Router) dispatch(ctx context.Context, req *types.ChatRequest, streaming bool) (*attemptOutcome, *ResponseMetadata, error) {
	model := req.Model
	policy := r.cfg.Retry

	excluded := make(map[provider.Kind]bool)
	retries := 0
	var lastErr error
	var attempted []llmerrors.AttemptedPair

	estimate := r.estimate(req.Messages)

	for retries <= policy.MaxRetries {
		reqCtx := &router.Context{
			Model:           model,
			Excluded:        excluded,
			RetryCount:      retries,
			EstimatedTokens: estimate,
		}

		cand, err := r.selectCandidate(ctx, model, reqCtx)
		if err != nil {
			var selErr *llmerrors.SelectionError
			if !stderrors.As(err, &selErr) {
				return nil, nil, err
			}
			if selErr.Reason == llmerrors.ReasonNoMatchingProviders {
				return nil, nil, &llmerrors.ModelNotFound{Model: model}
			}
			if len(attempted) > 0 && retries < policy.MaxRetries {
				// Nothing selectable right now, but we have tried and
				// may try again: spend a retry slot and re-admit the
				// excluded providers. Cooldowns keep filtering.
				retries++
				excluded = make(map[provider.Kind]bool)
				continue
			}
			break
		}

		provName := cand.Provider.Name()
		canonical := cand.Record.CanonicalID

		ok, err := r.tracker.CanMakeRequest(ctx, provName, canonical, cand.Record.Limits, estimate)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			// Pre-flight prune: not a failure, no retry charge.
			r.logger.Debug("pre-flight prune",
				"provider", provName, "model", canonical)
			excluded[cand.Provider.Kind] = true
			continue
		}

		attempted = appendAttempt(attempted, provName, canonical)

		upstreamReq := req.Clone()
		upstreamReq.Model = cand.Record.ProviderID

		outcome, latencyMS, err := r.invoke(ctx, cand.Provider, upstreamReq, streaming)
		if err == nil {
			meta := &ResponseMetadata{
				RequestID:  uuid.NewString(),
				Provider:   provName,
				ModelID:    canonical,
				RetryCount: retries,
			}

			if streaming {
				if rerr := r.tracker.RecordUsage(ctx, provName, canonical, estimate); rerr != nil {
					r.logger.Warn("stream usage record failed",
						"provider", provName, "model", canonical, "error", rerr)
				}
				return outcome, meta, nil
			}

			tokens := estimate
			if outcome.resp.Usage != nil {
				tokens = int64(outcome.resp.Usage.TotalTokens)
			}
			if rerr := r.tracker.RecordUsage(ctx, provName, canonical, tokens); rerr != nil {
				r.logger.Warn("usage record failed",
					"provider", provName, "model", canonical, "error", rerr)
			}
			if lerr := r.tracker.UpdateLatency(ctx, provName, canonical, float64(latencyMS)); lerr != nil {
				r.logger.Warn("latency record failed",
					"provider", provName, "model", canonical, "error", lerr)
			}
			meta.LatencyMS = latencyMS
			return outcome, meta, nil
		}

		lastErr = err
		excluded[cand.Provider.Kind] = true
		retries++

		var rle *llmerrors.RateLimited
		if stderrors.As(err, &rle) {
			// Immediate failover: waiting on a rate-limited provider
			// offers no benefit.
			if merr := r.tracker.MarkRateLimited(ctx, provName, canonical, rle.ResetAt); merr != nil {
				r.logger.Warn("cooldown write failed",
					"provider", provName, "model", canonical, "error", merr)
			}
			r.logger.Debug("rate limited, failing over",
				"provider", provName, "model", canonical, "retries", retries)
			continue
		}

		if retries <= policy.MaxRetries {
			backoff := backoffFor(policy, retries)
			r.logger.Debug("upstream error, backing off",
				"provider", provName, "model", canonical,
				"backoff", backoff, "error", err)
			select {
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	if r.cfg.ThrowOnExhausted || lastErr == nil {
		return nil, nil, r.exhausted(ctx, model, attempted)
	}
	return nil, nil, lastErr
}

// invoke performs one upstream call under the per-call deadline.
func (r *Router) invoke(ctx context.Context, p *provider.Provider, req *types.ChatRequest, streaming bool) (*attemptOutcome, int64, error) {
	if streaming {
		// No deadline on the stream itself; the caller controls its
		// lifetime through the Stream and the request context.
		streamCtx, cancel := context.WithCancel(ctx)
		reader, err := r.upstream.ChatCompletionStream(streamCtx, p, req)
		if err != nil {
			cancel()
			return nil, 0, err
		}
		return &attemptOutcome{stream: reader, cancel: cancel}, 0, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := r.upstream.ChatCompletion(callCtx, p, req)
	if err != nil {
		return nil, 0, err
	}
	return &attemptOutcome{resp: resp}, time.Since(start).Milliseconds(), nil
}

// selectCandidate implements the selection pipeline: resolve the model
// token, gather raw (provider, record) pairs, filter exclusions and
// cooldowns, snapshot quotas, sort by tier descending and let the
// strategy pick.
func (r *Router) selectCandidate(ctx context.Context, model string, reqCtx *router.Context) (*router.Candidate, error) {
	resolved := r.catalog.Resolve(model)

	var pairs []catalog.ProviderModel
	if g, ok := r.catalog.GenericConfig(resolved); ok {
		pairs = r.catalog.ProvidersMatchingGeneric(g)
	} else {
		pairs = r.catalog.ProvidersSupporting(resolved)
	}
	if len(pairs) == 0 {
		return nil, llmerrors.NewNoMatchingProviders(model)
	}

	candidates := make([]router.Candidate, 0, len(pairs))
	for _, pm := range pairs {
		if reqCtx.Excludes(pm.Provider.Kind) {
			continue
		}

		provName := pm.Provider.Name()
		canonical := pm.Record.CanonicalID

		inCooldown, err := r.tracker.IsInCooldown(ctx, provName, canonical)
		if err != nil {
			return nil, err
		}
		if inCooldown {
			continue
		}

		quota, err := r.tracker.GetQuotaStatus(ctx, provName, canonical, pm.Record.Limits)
		if err != nil {
			return nil, err
		}
		latencyMS, err := r.tracker.LatencyMS(ctx, provName, canonical)
		if err != nil {
			return nil, err
		}

		tier := 0
		if m, ok := r.catalog.ModelByID(canonical); ok {
			tier = m.Tier
		}

		candidates = append(candidates, router.Candidate{
			Provider:    pm.Provider,
			Record:      pm.Record,
			Tier:        tier,
			Quota:       quota,
			Priority:    pm.Provider.Priority,
			LatencyMS:   latencyMS,
			FreeCredits: pm.Provider.FreeCredits,
		})
	}
	if len(candidates) == 0 {
		return nil, llmerrors.NewNoAvailableCandidates(model)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Tier > candidates[j].Tier
	})

	choice, err := r.strategy.Select(candidates, reqCtx)
	if err != nil {
		return nil, llmerrors.NewStrategyError(err)
	}
	return choice, nil
}

// exhausted builds the terminal error, annotated with the earliest
// cooldown expiry among the attempted pairs.
func (r *Router) exhausted(ctx context.Context, model string, attempted []llmerrors.AttemptedPair) error {
	var earliest *time.Time
	for _, pair := range attempted {
		until, err := r.tracker.CooldownUntil(ctx, pair.Provider, pair.Model)
		if err != nil || until == nil {
			continue
		}
		if earliest == nil || until.Before(*earliest) {
			earliest = until
		}
	}
	return &llmerrors.AllProvidersExhausted{
		Model:         model,
		Attempted:     attempted,
		EarliestReset: earliest,
	}
}

func validateRequest(req *types.ChatRequest) error {
	if req == nil {
		return stderrors.New("request must not be nil")
	}
	if req.Model == "" {
		return stderrors.New("request model must not be empty")
	}
	if len(req.Messages) == 0 {
		return stderrors.New("request must contain at least one message")
	}
	return nil
}

func appendAttempt(attempted []llmerrors.AttemptedPair, prov, model string) []llmerrors.AttemptedPair {
	for _, a := range attempted {
		if a.Provider == prov && a.Model == model {
			return attempted
		}
	}
	return append(attempted, llmerrors.AttemptedPair{Provider: prov, Model: model})
}

// backoffFor computes the bounded exponential backoff for the given
// retry number (1-based).
func backoffFor(p RetryPolicy, retry int) time.Duration {
	backoff := float64(p.InitialBackoff)
	for i := 1; i < retry; i++ {
		backoff *= p.Multiplier
	}
	if ceiling := float64(p.MaxBackoff); p.MaxBackoff > 0 && backoff > ceiling {
		backoff = ceiling
	}
	return time.Duration(backoff)
}
