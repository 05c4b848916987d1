package resilience

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// BreakerState is the state of one provider's circuit.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned while a provider's circuit is open.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// BreakerConfig controls when a provider is taken out of rotation.
type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	ResetTimeout     time.Duration `mapstructure:"reset_timeout"`
}

type breaker struct {
	state    BreakerState
	failures int
	openedAt time.Time
	probing  bool
}

// Breakers keeps one circuit per provider name. Only transient failures
// count toward opening; a success closes the circuit.
type Breakers struct {
	cfg BreakerConfig
	now func() time.Time

	mu       sync.Mutex
	circuits map[string]*breaker

	// OnStateChange, if set, is called with the lock held.
	OnStateChange func(provider string, from, to BreakerState)
}

// NewBreakers builds a registry. Zero config values get defaults of five
// failures and a 30s reset.
func NewBreakers(cfg BreakerConfig) *Breakers {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	return &Breakers{cfg: cfg, now: time.Now, circuits: make(map[string]*breaker)}
}

// SetClock replaces the time source.
func (b *Breakers) SetClock(now func() time.Time) { b.now = now }

func (b *Breakers) get(name string) *breaker {
	c, ok := b.circuits[name]
	if !ok {
		c = &breaker{}
		b.circuits[name] = c
	}
	return c
}

// Allow returns ErrCircuitOpen when name should not be called. After the
// reset timeout one trial call is let through.
func (b *Breakers) Allow(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.get(name)
	switch c.state {
	case BreakerOpen:
		if b.now().Sub(c.openedAt) < b.cfg.ResetTimeout {
			return ErrCircuitOpen
		}
		b.transition(name, c, BreakerHalfOpen)
		c.probing = true
		return nil
	case BreakerHalfOpen:
		if c.probing {
			return ErrCircuitOpen
		}
		c.probing = true
	}
	return nil
}

// Release frees a trial slot taken by Allow when the call never ran.
func (b *Breakers) Release(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.circuits[name]; ok {
		c.probing = false
	}
}

// Record updates name's circuit with the outcome of a call.
func (b *Breakers) Record(name string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.get(name)
	c.probing = false
	if err == nil || !IsTransient(err) {
		c.failures = 0
		if c.state != BreakerClosed {
			b.transition(name, c, BreakerClosed)
		}
		return
	}

	c.failures++
	if c.state == BreakerHalfOpen || c.failures >= b.cfg.FailureThreshold {
		c.openedAt = b.now()
		if c.state != BreakerOpen {
			b.transition(name, c, BreakerOpen)
		}
	}
}

// State reports name's current state.
func (b *Breakers) State(name string) BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.circuits[name]
	if !ok {
		return BreakerClosed
	}
	if c.state == BreakerOpen && b.now().Sub(c.openedAt) >= b.cfg.ResetTimeout {
		return BreakerHalfOpen
	}
	return c.state
}

// States snapshots every known circuit.
func (b *Breakers) States() map[string]BreakerState {
	b.mu.Lock()
	names := make([]string, 0, len(b.circuits))
	for n := range b.circuits {
		names = append(names, n)
	}
	b.mu.Unlock()

	out := make(map[string]BreakerState, len(names))
	for _, n := range names {
		out[n] = b.State(n)
	}
	return out
}

func (b *Breakers) transition(name string, c *breaker, to BreakerState) {
	from := c.state
	c.state = to
	if b.OnStateChange != nil {
		b.OnStateChange(name, from, to)
	}
}
