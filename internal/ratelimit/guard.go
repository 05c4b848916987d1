// Package ratelimit enforces per-provider monthly call budgets and minimum
// call spacing. In-memory state is authoritative; the BudgetStore only
// carries it across restarts.
package ratelimit

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/resilience"
)

// BudgetStore persists budget state between processes.
type BudgetStore interface {
	LoadBudgets(ctx context.Context) ([]model.BudgetState, error)
	SaveBudget(ctx context.Context, state model.BudgetState) error
}

// Limit configures one provider. A zero MonthlyLimit is unlimited and a
// zero MinInterval disables pacing.
type Limit struct {
	MonthlyLimit int           `mapstructure:"monthly_limit" yaml:"monthly_limit"`
	MinInterval  time.Duration `mapstructure:"min_interval" yaml:"min_interval"`
}

type provider struct {
	mu      sync.Mutex
	limit   Limit
	state   model.BudgetState
	limiter *rate.Limiter
}

// Guard hands out permission to call providers.
type Guard struct {
	store  BudgetStore
	limits map[string]Limit
	now    func() time.Time

	mu        sync.Mutex
	providers map[string]*provider
}

// Option configures a Guard.
type Option func(*Guard)

// WithClock replaces the time source used for month keys.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// NewGuard builds a guard. store may be nil for memory-only budgets.
// Providers missing from limits are unlimited.
func NewGuard(store BudgetStore, limits map[string]Limit, opts ...Option) *Guard {
	g := &Guard{
		store:     store,
		limits:    make(map[string]Limit, len(limits)),
		now:       time.Now,
		providers: make(map[string]*provider),
	}
	for name, l := range limits {
		g.limits[normalize(name)] = l
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func normalize(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

func newLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// get returns name's provider, creating fresh state for the current month.
func (g *Guard) get(name string) *provider {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.providers[name]
	if !ok {
		l := g.limits[name]
		p = &provider{
			limit:   l,
			state:   model.BudgetState{Provider: name, MonthKey: model.MonthKey(g.now())},
			limiter: newLimiter(l.MinInterval),
		}
		g.providers[name] = p
	}
	return p
}

// Load restores persisted state. Unreadable or invalid state is replaced
// by a fresh budget for the current month; it never fails startup.
func (g *Guard) Load(ctx context.Context) {
	if g.store == nil {
		return
	}
	states, err := g.store.LoadBudgets(ctx)
	if err != nil {
		zap.L().Warn("ratelimit: budget state unreadable, starting fresh", zap.Error(err))
		return
	}

	month := model.MonthKey(g.now())
	for _, s := range states {
		name := normalize(s.Provider)
		if !s.Valid() || name == "" {
			zap.L().Warn("ratelimit: discarding invalid budget state",
				zap.String("provider", s.Provider),
				zap.String("month_key", s.MonthKey),
				zap.Int("calls", s.Calls),
			)
			continue
		}
		p := g.get(name)
		p.mu.Lock()
		if s.MonthKey == month {
			p.state.Calls = s.Calls
		}
		p.state.LastCallAt = s.LastCallAt
		if !s.LastCallAt.IsZero() {
			p.limiter.AllowN(s.LastCallAt, 1)
		}
		p.mu.Unlock()
	}
}

// rollover resets the counter when the calendar month has changed.
func (p *provider) rollover(month string) {
	if p.state.MonthKey != month {
		p.state.MonthKey = month
		p.state.Calls = 0
	}
}

// Acquire records one call to name. It fails fast with a
// *resilience.QuotaError once the month's budget is spent, and otherwise
// waits out the minimum interval. Check, increment and persist happen
// under one per-provider lock.
func (g *Guard) Acquire(ctx context.Context, name string) error {
	name = normalize(name)
	p := g.get(name)
	p.mu.Lock()
	defer p.mu.Unlock()

	p.rollover(model.MonthKey(g.now()))
	if p.limit.MonthlyLimit > 0 && p.state.Calls >= p.limit.MonthlyLimit {
		return &resilience.QuotaError{Provider: name, MonthKey: p.state.MonthKey, Limit: p.limit.MonthlyLimit}
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return eris.Wrapf(err, "ratelimit: wait for %s", name)
	}

	p.state.Calls++
	p.state.LastCallAt = g.now()
	g.persist(ctx, p.state)
	return nil
}

func (g *Guard) persist(ctx context.Context, s model.BudgetState) {
	if g.store == nil {
		return
	}
	if err := g.store.SaveBudget(ctx, s); err != nil {
		zap.L().Warn("ratelimit: persist budget failed",
			zap.String("provider", s.Provider),
			zap.Error(err),
		)
	}
}

// Budget reports name's live budget.
func (g *Guard) Budget(name string) model.RateBudget {
	name = normalize(name)
	p := g.get(name)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rollover(model.MonthKey(g.now()))
	return model.RateBudget{
		Provider:     name,
		MonthKey:     p.state.MonthKey,
		Calls:        p.state.Calls,
		MonthlyLimit: p.limit.MonthlyLimit,
		MinInterval:  p.limit.MinInterval,
		LastCallAt:   p.state.LastCallAt,
	}
}

// Snapshot reports every configured or used provider, sorted by name.
func (g *Guard) Snapshot() []model.RateBudget {
	g.mu.Lock()
	names := make([]string, 0, len(g.providers)+len(g.limits))
	for n := range g.limits {
		names = append(names, n)
	}
	for n := range g.providers {
		if _, ok := g.limits[n]; !ok {
			names = append(names, n)
		}
	}
	g.mu.Unlock()

	slices.Sort(names)
	out := make([]model.RateBudget, len(names))
	for i, n := range names {
		out[i] = g.Budget(n)
	}
	return out
}

// Reset zeroes name's counter for the current month and persists it.
func (g *Guard) Reset(ctx context.Context, name string) error {
	name = normalize(name)
	if name == "" {
		return eris.New("ratelimit: provider name required")
	}
	p := g.get(name)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.MonthKey = model.MonthKey(g.now())
	p.state.Calls = 0
	if g.store == nil {
		return nil
	}
	return eris.Wrapf(g.store.SaveBudget(ctx, p.state), "ratelimit: reset %s", name)
}
