package acquire

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/enrich-cli/internal/extract"
	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/ratelimit"
	"github.com/sells-group/enrich-cli/internal/resilience"
)

// Observer receives one event per guarded provider call. It may be nil.
type Observer interface {
	ObserveCall(provider string, d time.Duration, err error)
}

// Chain tries providers in priority order, returning the first success.
// Every call passes the provider's circuit breaker and rate budget first.
type Chain struct {
	providers   []Provider
	searchers   []Searcher
	guard       *ratelimit.Guard
	breakers    *resilience.Breakers
	cache       *Cache
	matcher     *PathMatcher
	callTimeout time.Duration
	observer    Observer
	now         func() time.Time
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithGuard enforces rate budgets. Without one every provider is unlimited.
func WithGuard(g *ratelimit.Guard) ChainOption {
	return func(c *Chain) { c.guard = g }
}

// WithBreakers takes failing providers out of rotation.
func WithBreakers(b *resilience.Breakers) ChainOption {
	return func(c *Chain) { c.breakers = b }
}

// WithCache serves repeated fetches without spending budget.
func WithCache(cache *Cache) ChainOption {
	return func(c *Chain) { c.cache = cache }
}

// WithPathMatcher replaces the default exclude patterns.
func WithPathMatcher(m *PathMatcher) ChainOption {
	return func(c *Chain) { c.matcher = m }
}

// WithCallTimeout bounds every provider call. Exceeding it is transient.
func WithCallTimeout(d time.Duration) ChainOption {
	return func(c *Chain) { c.callTimeout = d }
}

// WithObserver reports provider calls.
func WithObserver(o Observer) ChainOption {
	return func(c *Chain) { c.observer = o }
}

// WithSearchers sets the search providers, tried in order.
func WithSearchers(s ...Searcher) ChainOption {
	return func(c *Chain) { c.searchers = append(c.searchers, s...) }
}

// NewChain creates a Chain over providers. Nil providers are skipped.
func NewChain(providers []Provider, opts ...ChainOption) *Chain {
	c := &Chain{
		matcher:     NewPathMatcher(nil),
		callTimeout: 45 * time.Second,
		now:         time.Now,
	}
	for _, p := range providers {
		if p != nil {
			c.providers = append(c.providers, p)
		}
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Providers lists the fetch providers in order.
func (c *Chain) Providers() []string {
	out := make([]string, len(c.providers))
	for i, p := range c.providers {
		out[i] = p.Name()
	}
	return out
}

// FetchError collects every provider failure for one target. Kind is
// transient when any provider failed transiently, quota when every
// provider was out of budget, and permanent otherwise.
type FetchError struct {
	Target string
	Kind   resilience.Kind
	Errs   []error
}

func (e *FetchError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("acquire: %s failed for %s: %s", e.Kind, e.Target, strings.Join(msgs, "; "))
}

// Unwrap returns the first error of the summarized kind, so Classify and
// errors.Is see the same class as Kind.
func (e *FetchError) Unwrap() error {
	for _, err := range e.Errs {
		if resilience.Classify(err) == e.Kind {
			return err
		}
	}
	for _, err := range e.Errs {
		if k := resilience.Classify(err); k != resilience.KindQuota && k != resilience.KindTransient {
			return err
		}
	}
	return nil
}

func newFetchError(ctx context.Context, target string, errs []error) *FetchError {
	fe := &FetchError{Target: target, Errs: errs, Kind: resilience.KindPermanent}
	if err := ctx.Err(); err != nil {
		fe.Kind = resilience.Classify(err)
		fe.Errs = append(fe.Errs, err)
		return fe
	}
	quota := 0
	for _, err := range errs {
		switch resilience.Classify(err) {
		case resilience.KindTransient:
			fe.Kind = resilience.KindTransient
			return fe
		case resilience.KindQuota:
			quota++
		}
	}
	if quota > 0 && quota == len(errs) {
		fe.Kind = resilience.KindQuota
	}
	return fe
}

// Fetch returns content for target from the first provider that succeeds.
// Login-wall pages for profile targets count as failures so a research
// provider gets its turn.
func (c *Chain) Fetch(ctx context.Context, target string, opts FetchOptions) (*model.RawContent, error) {
	if !isWeb(target) {
		return nil, eris.Wrapf(ErrInvalidTarget, "acquire: %q", target)
	}
	if c.matcher.IsExcluded(target) {
		return nil, eris.Wrapf(ErrExcluded, "acquire: %s", target)
	}

	key := CacheKey(target, opts)
	if rc, ok := c.cache.Get(ctx, key); ok {
		zap.L().Debug("acquire: cache hit", zap.String("target", target), zap.String("provider", rc.Provider))
		return rc, nil
	}

	profile := IsProfileTarget(target)
	var errs []error
	for _, p := range c.providers {
		if !p.Supports(target) {
			continue
		}
		rc, err := guarded(ctx, c, p.Name(), c.timeoutFor(opts), func(ctx context.Context) (*model.RawContent, error) {
			rc, err := p.Fetch(ctx, target, opts)
			if err == nil && profile && p.Name() != perplexityName && isLoginWall(rc.Body) {
				return nil, &BlockError{Provider: p.Name(), Type: BlockLoginWall}
			}
			return rc, err
		})
		if err == nil && rc != nil {
			if rc.FetchedAt.IsZero() {
				rc.FetchedAt = c.now()
			}
			c.cache.Put(ctx, key, *rc)
			return rc, nil
		}
		if err == nil {
			err = eris.Wrapf(ErrEmpty, "%s: no content", p.Name())
		}
		zap.L().Debug("acquire: provider failed, trying next",
			zap.String("provider", p.Name()),
			zap.String("target", target),
			zap.Error(err),
		)
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return nil, eris.Wrapf(ErrNoProvider, "acquire: %s", target)
	}
	return nil, newFetchError(ctx, target, errs)
}

// Search returns results from the first searcher with any. An empty result
// moves on to the next searcher.
func (c *Chain) Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, eris.New("acquire: empty search query")
	}
	var errs []error
	for _, s := range c.searchers {
		results, err := guarded(ctx, c, s.Name(), c.callTimeout, func(ctx context.Context) ([]SearchResult, error) {
			return s.Search(ctx, query, opts)
		})
		if err != nil {
			zap.L().Debug("acquire: searcher failed, trying next",
				zap.String("searcher", s.Name()),
				zap.String("query", query),
				zap.Error(err),
			)
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if len(results) > 0 {
			return results, nil
		}
	}
	if len(errs) > 0 {
		return nil, newFetchError(ctx, query, errs)
	}
	return nil, nil
}

// Completer guards an LLM completer with the same breaker and budget as
// fetch providers. It returns nil when inner is nil so the LLM strategy
// reports itself unconfigured.
func (c *Chain) Completer(name string, inner extract.Completer) extract.Completer {
	if inner == nil {
		return nil
	}
	return &guardedCompleter{chain: c, name: name, inner: inner}
}

type guardedCompleter struct {
	chain *Chain
	name  string
	inner extract.Completer
}

func (g *guardedCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	return guarded(ctx, g.chain, g.name, 0, func(ctx context.Context) (string, error) {
		return g.inner.Complete(ctx, system, prompt)
	})
}

func (c *Chain) timeoutFor(opts FetchOptions) time.Duration {
	if opts.Timeout > 0 && (c.callTimeout <= 0 || opts.Timeout+opts.Wait < c.callTimeout) {
		return opts.Timeout + opts.Wait
	}
	return c.callTimeout
}

// guarded runs one provider call: breaker admission, budget, per-call
// deadline, then outcome recording.
func guarded[T any](ctx context.Context, c *Chain, name string, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if c.breakers != nil {
		if err := c.breakers.Allow(name); err != nil {
			err = eris.Wrapf(err, "%s", name)
			c.observe(name, 0, err)
			return zero, err
		}
	}
	if c.guard != nil {
		if err := c.guard.Acquire(ctx, name); err != nil {
			if c.breakers != nil {
				c.breakers.Release(name)
			}
			c.observe(name, 0, err)
			return zero, err
		}
	}

	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := c.now()
	val, err := fn(callCtx)
	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		err = resilience.NewTransientError(eris.Wrapf(err, "%s: call timed out after %s", name, timeout), 0)
	}
	elapsed := c.now().Sub(start)

	if c.breakers != nil {
		if ctx.Err() != nil {
			c.breakers.Release(name)
		} else {
			c.breakers.Record(name, err)
		}
	}
	c.observe(name, elapsed, err)
	return val, err
}

func (c *Chain) observe(name string, d time.Duration, err error) {
	if c.observer != nil {
		c.observer.ObserveCall(name, d, err)
	}
}
