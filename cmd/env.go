package main

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/enrich-cli/internal/acquire"
	"github.com/sells-group/enrich-cli/internal/config"
	"github.com/sells-group/enrich-cli/internal/consolidate"
	"github.com/sells-group/enrich-cli/internal/cost"
	"github.com/sells-group/enrich-cli/internal/extract"
	"github.com/sells-group/enrich-cli/internal/metrics"
	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/orchestrate"
	"github.com/sells-group/enrich-cli/internal/ratelimit"
	"github.com/sells-group/enrich-cli/internal/resilience"
	"github.com/sells-group/enrich-cli/internal/store"
	anthropicpkg "github.com/sells-group/enrich-cli/pkg/anthropic"
	"github.com/sells-group/enrich-cli/pkg/firecrawl"
	"github.com/sells-group/enrich-cli/pkg/google"
	"github.com/sells-group/enrich-cli/pkg/jina"
	"github.com/sells-group/enrich-cli/pkg/perplexity"
)

// persistTimeout bounds the final run write, which outlives the request
// context so shutdown still records degraded runs.
const persistTimeout = 10 * time.Second

// enrichEnv holds the store, rate guard, acquisition chain and
// orchestrator needed by the run/batch/serve commands.
type enrichEnv struct {
	Store        store.Store
	Guard        *ratelimit.Guard
	Breakers     *resilience.Breakers
	Chain        *acquire.Chain
	Orchestrator *orchestrate.Orchestrator
	Metrics      *metrics.Metrics
}

// Close releases resources held by the environment.
func (e *enrichEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	return store.Open(ctx, c.Store.Driver, c.Store.DatabaseURL, &c.Store.Pool)
}

// initEnv validates config for mode, opens the store and builds the
// pipeline. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string, reg prometheus.Registerer) (*enrichEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}

	env, err := buildEnv(ctx, cfg, st, reg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return env, nil
}

// buildEnv wires every component on top of an open store.
func buildEnv(ctx context.Context, c *config.Config, st store.Store, reg prometheus.Registerer) (*enrichEnv, error) {
	priority, err := c.Priority()
	if err != nil {
		return nil, eris.Wrap(err, "strategy priority")
	}

	m := metrics.New(metrics.WithRegisterer(reg))

	guard := ratelimit.NewGuard(st, c.Providers)
	guard.Load(ctx)

	breakers := resilience.NewBreakers(c.Breaker)

	chainOpts := []acquire.ChainOption{
		acquire.WithGuard(guard),
		acquire.WithBreakers(breakers),
		acquire.WithCache(acquire.NewCache(c.Cache.Size, c.Cache.TTL, st)),
		acquire.WithPathMatcher(acquire.NewPathMatcher(c.Acquire.ExcludePaths)),
		acquire.WithObserver(m),
	}
	if c.Acquire.CallTimeout > 0 {
		chainOpts = append(chainOpts, acquire.WithCallTimeout(c.Acquire.CallTimeout))
	}
	searchers := buildSearchers(c)
	if len(searchers) > 0 {
		chainOpts = append(chainOpts, acquire.WithSearchers(searchers...))
	}
	chain := acquire.NewChain(buildProviders(c), chainOpts...)

	var llm extract.Completer
	if c.Anthropic.Key != "" {
		completer := anthropicpkg.NewCompleter(
			anthropicpkg.NewClient(c.Anthropic.Key),
			anthropicpkg.WithModel(c.Anthropic.Model),
			anthropicpkg.WithMaxTokens(c.Anthropic.MaxTokens),
			anthropicpkg.WithCacheTTL(c.Anthropic.CacheTTL),
			anthropicpkg.WithUsageHook(logUsage(cost.NewCalculator(c.Pricing))),
		)
		llm = chain.Completer("anthropic", completer)
		zap.L().Info("llm strategy enabled", zap.String("model", completer.Model()))
	} else {
		zap.L().Debug("ENRICH_ANTHROPIC_KEY not set, llm strategy disabled")
	}

	runner := extract.NewRunner(
		extract.Default(time.Now, llm),
		extract.WithTimeout(c.Strategies.Timeout),
		extract.WithObserver(m),
	)

	orchOpts := []orchestrate.Option{orchestrate.WithObserver(m)}
	if len(searchers) > 0 {
		orchOpts = append(orchOpts, orchestrate.WithSearcher(chain))
	}
	orch := orchestrate.New(chain, runner, consolidate.New(priority), c.Orchestrator, orchOpts...)

	zap.L().Info("pipeline ready",
		zap.Strings("providers", chain.Providers()),
		zap.Int("searchers", len(searchers)),
		zap.Int("strategies", len(runner.Methods())),
		zap.String("store", c.Store.Driver),
	)

	return &enrichEnv{
		Store:        st,
		Guard:        guard,
		Breakers:     breakers,
		Chain:        chain,
		Orchestrator: orch,
		Metrics:      m,
	}, nil
}

// logUsage logs token counts and the estimated cost of each model call.
// Cache writes are billed at the input rate.
func logUsage(calc *cost.Calculator) anthropicpkg.UsageFunc {
	return func(modelID string, u anthropicpkg.TokenUsage) {
		zap.L().Debug("llm usage",
			zap.String("model", modelID),
			zap.Int64("input_tokens", u.InputTokens),
			zap.Int64("output_tokens", u.OutputTokens),
			zap.Int64("cache_write_tokens", u.CacheCreationInputTokens),
			zap.Int64("cache_read_tokens", u.CacheReadInputTokens),
			zap.Float64("estimated_cost_usd", calc.Claude(
				int(u.InputTokens+u.CacheCreationInputTokens),
				int(u.CacheReadInputTokens),
				int(u.OutputTokens),
			)),
		)
	}
}

// buildProviders returns fetch providers in configured order, skipping
// paid providers that have no key.
func buildProviders(c *config.Config) []acquire.Provider {
	var out []acquire.Provider
	for _, name := range c.Acquire.Providers {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case config.ProviderLocal:
			out = append(out, acquire.NewLocalHTTP(acquire.WithUserAgent(c.Acquire.UserAgent)))
		case config.ProviderJina:
			if c.Jina.Key == "" {
				zap.L().Debug("jina key not set, skipping provider")
				continue
			}
			out = append(out, acquire.NewJina(newJinaClient(c)))
		case config.ProviderFirecrawl:
			if c.Firecrawl.Key == "" {
				zap.L().Debug("firecrawl key not set, skipping provider")
				continue
			}
			out = append(out, acquire.NewFirecrawl(firecrawl.NewClient(c.Firecrawl.Key, firecrawl.WithBaseURL(c.Firecrawl.BaseURL))))
		case config.ProviderPerplexity:
			if c.Perplexity.Key == "" {
				zap.L().Debug("perplexity key not set, skipping provider")
				continue
			}
			out = append(out, acquire.NewPerplexity(perplexity.NewClient(c.Perplexity.Key,
				perplexity.WithBaseURL(c.Perplexity.BaseURL),
				perplexity.WithModel(c.Perplexity.Model),
			)))
		}
	}
	return out
}

// buildSearchers returns the configured search providers: Jina web search
// first, Google Places second.
func buildSearchers(c *config.Config) []acquire.Searcher {
	var out []acquire.Searcher
	if c.Jina.Key != "" {
		out = append(out, acquire.NewJinaSearch(newJinaClient(c)))
	}
	if c.Google.Key != "" {
		out = append(out, acquire.NewPlacesSearch(google.NewClient(c.Google.Key, google.WithBaseURL(c.Google.BaseURL))))
	}
	return out
}

func newJinaClient(c *config.Config) jina.Client {
	opts := []jina.Option{jina.WithBaseURL(c.Jina.BaseURL)}
	if c.Jina.SearchBaseURL != "" {
		opts = append(opts, jina.WithSearchBaseURL(c.Jina.SearchBaseURL))
	}
	return jina.NewClient(c.Jina.Key, opts...)
}

// persistPolicy retries run writes on anything but a missing run.
func persistPolicy() resilience.Policy {
	p := resilience.DefaultPolicy()
	p.ShouldRetry = func(err error) bool { return !errors.Is(err, store.ErrNotFound) }
	p.OnRetry = resilience.RetryLogger("store", "complete_run")
	return p
}

// enrich resolves ref and records the run. A store failure is logged and
// never hides the record.
func (e *enrichEnv) enrich(ctx context.Context, ref model.EntityReference) *model.Run {
	log := zap.L().With(zap.String("reference", ref.Label()))

	run, err := e.Store.CreateRun(ctx, ref)
	if err != nil {
		log.Warn("create run failed, continuing unpersisted", zap.Error(err))
		now := time.Now().UTC()
		run = &model.Run{Reference: ref, CreatedAt: now, UpdatedAt: now}
	}

	rec := e.Orchestrator.Resolve(ctx, ref)
	run.Record = rec
	run.Status = model.StatusFor(rec.Outcome)
	run.Confidence = rec.ConfidenceScore
	run.UpdatedAt = time.Now().UTC()

	if run.ID == "" {
		return run
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	err = resilience.Do(pctx, persistPolicy(), func(ctx context.Context) error {
		return e.Store.CompleteRun(ctx, run.ID, rec)
	})
	if err != nil {
		log.Warn("complete run failed", zap.String("run_id", run.ID), zap.Error(err))
	}
	return run
}
