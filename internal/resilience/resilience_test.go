package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"transient", NewTransientError(errors.New("503"), 503), KindTransient},
		{"wrapped transient", eris.Wrap(NewTransientError(errors.New("x"), 429), "fetch"), KindTransient},
		{"quota", &QuotaError{Provider: "jina", MonthKey: "2026-03", Limit: 10}, KindQuota},
		{"wrapped quota", fmt.Errorf("acquire: %w", &QuotaError{Provider: "jina"}), KindQuota},
		{"malformed", NewMalformedError("json-ld", 2), KindMalformed},
		{"canceled", eris.Wrap(context.Canceled, "fetch"), KindCanceled},
		{"circuit open", ErrCircuitOpen, KindTransient},
		{"network", errors.New("read tcp: connection reset by peer"), KindTransient},
		{"permanent", errors.New("404 not found"), KindPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestQuotaErrorIs(t *testing.T) {
	t.Parallel()

	err := eris.Wrap(&QuotaError{Provider: "firecrawl", MonthKey: "2026-03", Limit: 500}, "acquire")
	assert.ErrorIs(t, err, ErrQuotaExhausted)
	assert.Contains(t, err.Error(), "firecrawl")

	var qe *QuotaError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, 500, qe.Limit)
}

func TestHTTPError(t *testing.T) {
	t.Parallel()

	assert.True(t, IsTransient(HTTPError("jina", 503, "busy")))
	assert.True(t, IsTransient(HTTPError("jina", 429, "slow down")))
	assert.False(t, IsTransient(HTTPError("jina", 404, "missing")))
	assert.Contains(t, HTTPError("jina", 400, "bad").Error(), "status 400")
}

type statusErr struct{ code int }

func (e statusErr) Error() string   { return fmt.Sprintf("status %d", e.code) }
func (e statusErr) Retryable() bool { return e.code == 429 || e.code >= 500 }

func TestIsTransient_SelfDescribing(t *testing.T) {
	t.Parallel()

	assert.True(t, IsTransient(fmt.Errorf("llm: %w", statusErr{529})))
	assert.False(t, IsTransient(fmt.Errorf("llm: %w", statusErr{400})))
	assert.Equal(t, KindTransient, Classify(statusErr{429}))
}

func TestBackoffDelay(t *testing.T) {
	t.Parallel()

	b := Backoff{Base: 100 * time.Millisecond, Max: time.Second, Multiplier: 2}
	assert.Equal(t, 100*time.Millisecond, b.Delay(0))
	assert.Equal(t, 200*time.Millisecond, b.Delay(1))
	assert.Equal(t, 800*time.Millisecond, b.Delay(3))
	assert.Equal(t, time.Second, b.Delay(10))

	j := Backoff{Base: time.Second, Max: time.Minute, Multiplier: 2, Jitter: 0.5}
	for i := 0; i < 50; i++ {
		d := j.Delay(1)
		assert.GreaterOrEqual(t, d, time.Second)
		assert.LessOrEqual(t, d, 3*time.Second)
	}
}

func TestSleepCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, Sleep(context.Background(), 0))
}

func TestDoRetriesTransient(t *testing.T) {
	t.Parallel()

	var calls int
	var retried []int
	p := Policy{
		Attempts: 3,
		Backoff:  Backoff{Base: time.Millisecond, Max: time.Millisecond},
		OnRetry:  func(attempt int, _ error) { retried = append(retried, attempt) },
	}
	err := Do(context.Background(), p, func(context.Context) error {
		calls++
		if calls < 3 {
			return NewTransientError(errors.New("busy"), 503)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDoStopsOnPermanent(t *testing.T) {
	t.Parallel()

	var calls int
	err := Do(context.Background(), Policy{Attempts: 5}, func(context.Context) error {
		calls++
		return errors.New("bad request")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoValExhausted(t *testing.T) {
	t.Parallel()

	var calls int
	p := Policy{Attempts: 2, Backoff: Backoff{Base: time.Millisecond, Max: time.Millisecond}}
	v, err := DoVal(context.Background(), p, func(context.Context) (int, error) {
		calls++
		return 7, NewTransientError(errors.New("busy"), 502)
	})
	assert.Error(t, err)
	assert.Zero(t, v)
	assert.Equal(t, 2, calls)
}

func TestBreakers(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreakers(BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute})
	b.SetClock(func() time.Time { return now })

	var transitions []string
	b.OnStateChange = func(p string, from, to BreakerState) {
		transitions = append(transitions, p+":"+from.String()+">"+to.String())
	}

	busy := NewTransientError(errors.New("busy"), 503)

	require.NoError(t, b.Allow("jina"))
	b.Record("jina", busy)
	assert.Equal(t, BreakerClosed, b.State("jina"))

	// Permanent failures do not count.
	b.Record("jina", errors.New("404"))
	b.Record("jina", busy)
	assert.Equal(t, BreakerClosed, b.State("jina"))

	b.Record("jina", busy)
	assert.Equal(t, BreakerOpen, b.State("jina"))
	assert.ErrorIs(t, b.Allow("jina"), ErrCircuitOpen)
	assert.NoError(t, b.Allow("firecrawl"))

	now = now.Add(2 * time.Minute)
	assert.Equal(t, BreakerHalfOpen, b.State("jina"))
	require.NoError(t, b.Allow("jina"))
	assert.ErrorIs(t, b.Allow("jina"), ErrCircuitOpen, "only one trial call at a time")

	b.Record("jina", nil)
	assert.Equal(t, BreakerClosed, b.State("jina"))
	assert.Equal(t, []string{
		"jina:closed>open",
		"jina:open>half-open",
		"jina:half-open>closed",
	}, transitions)

	assert.Equal(t, map[string]BreakerState{"jina": BreakerClosed, "firecrawl": BreakerClosed}, b.States())
}

func TestBreakersHalfOpenFailureReopens(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreakers(BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Second})
	b.SetClock(func() time.Time { return now })

	busy := NewTransientError(errors.New("busy"), 503)
	b.Record("p", busy)
	assert.Equal(t, BreakerOpen, b.State("p"))

	now = now.Add(2 * time.Second)
	require.NoError(t, b.Allow("p"))
	b.Record("p", busy)
	assert.Equal(t, BreakerOpen, b.State("p"))
	assert.ErrorIs(t, b.Allow("p"), ErrCircuitOpen)
}
