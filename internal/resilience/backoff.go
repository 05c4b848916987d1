package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Backoff computes exponential delays: Base * Multiplier^attempt, capped
// at Max, with ±Jitter fraction of noise.
type Backoff struct {
	Base       time.Duration `mapstructure:"base" yaml:"base"`
	Max        time.Duration `mapstructure:"max" yaml:"max"`
	Multiplier float64       `mapstructure:"multiplier" yaml:"multiplier"`
	Jitter     float64       `mapstructure:"jitter" yaml:"jitter"`
}

// DefaultBackoff is 1s doubling to 30s with 20% jitter.
func DefaultBackoff() Backoff {
	return Backoff{
		Base:       time.Second,
		Max:        30 * time.Second,
		Multiplier: 2,
		Jitter:     0.2,
	}
}

func (b Backoff) withDefaults() Backoff {
	d := DefaultBackoff()
	if b.Base <= 0 {
		b.Base = d.Base
	}
	if b.Max <= 0 {
		b.Max = d.Max
	}
	if b.Multiplier <= 0 {
		b.Multiplier = d.Multiplier
	}
	if b.Jitter < 0 {
		b.Jitter = 0
	}
	return b
}

// Delay returns the wait before retry number attempt (0-based).
func (b Backoff) Delay(attempt int) time.Duration {
	b = b.withDefaults()
	if attempt < 0 {
		attempt = 0
	}
	delay := float64(b.Base) * math.Pow(b.Multiplier, float64(attempt))
	if delay > float64(b.Max) {
		delay = float64(b.Max)
	}
	if b.Jitter > 0 {
		delay += (rand.Float64()*2 - 1) * delay * b.Jitter
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// Sleep waits d or until ctx is done, returning ctx's error in that case.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
