package acquire

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/ratelimit"
	"github.com/sells-group/enrich-cli/internal/resilience"
)

type fakeProvider struct {
	name     string
	profiles bool
	body     string
	err      error
	fetch    func(ctx context.Context) (*model.RawContent, error)
	calls    atomic.Int32
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Supports(target string) bool {
	if f.profiles {
		return IsProfileTarget(target)
	}
	return isWeb(target)
}

func (f *fakeProvider) Fetch(ctx context.Context, target string, _ FetchOptions) (*model.RawContent, error) {
	f.calls.Add(1)
	if f.fetch != nil {
		return f.fetch(ctx)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &model.RawContent{Target: target, Provider: f.name, Type: model.ContentMarkdown, Body: f.body}, nil
}

type fakeSearcher struct {
	name    string
	results []SearchResult
	err     error
	calls   atomic.Int32
}

func (f *fakeSearcher) Name() string { return f.name }

func (f *fakeSearcher) Search(context.Context, string, SearchOptions) ([]SearchResult, error) {
	f.calls.Add(1)
	return f.results, f.err
}

type callLog struct {
	mu    sync.Mutex
	calls map[string][]error
}

func (c *callLog) ObserveCall(provider string, _ time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls == nil {
		c.calls = make(map[string][]error)
	}
	c.calls[provider] = append(c.calls[provider], err)
}

func transient(msg string) error {
	return resilience.NewTransientError(errors.New(msg), 503)
}

func TestChain_FirstSuccess(t *testing.T) {
	t.Parallel()

	p1 := &fakeProvider{name: "primary", body: longMarkdown}
	p2 := &fakeProvider{name: "fallback", body: longMarkdown}
	obs := &callLog{}

	c := NewChain([]Provider{p1, nil, p2}, WithObserver(obs))
	rc, err := c.Fetch(context.Background(), "https://acme.com", FetchOptions{})

	require.NoError(t, err)
	assert.Equal(t, "primary", rc.Provider)
	assert.False(t, rc.FetchedAt.IsZero())
	assert.Equal(t, int32(0), p2.calls.Load())
	assert.Equal(t, []string{"primary", "fallback"}, c.Providers())
	assert.Equal(t, []error{nil}, obs.calls["primary"])
}

func TestChain_FallbackOnError(t *testing.T) {
	t.Parallel()

	p1 := &fakeProvider{name: "primary", err: &BlockError{Provider: "primary", Type: BlockCaptcha}}
	p2 := &fakeProvider{name: "fallback", body: longMarkdown}

	rc, err := NewChain([]Provider{p1, p2}).Fetch(context.Background(), "https://acme.com", FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, "fallback", rc.Provider)
}

func TestChain_FailureKinds(t *testing.T) {
	t.Parallel()

	permanent := errors.New("404 not found")
	tests := []struct {
		name string
		errs []error
		kind resilience.Kind
	}{
		{"any transient", []error{permanent, transient("503")}, resilience.KindTransient},
		{"all permanent", []error{permanent, &BlockError{Provider: "b", Type: BlockCloudflare}}, resilience.KindPermanent},
		{"all quota", []error{&resilience.QuotaError{Provider: "a"}, &resilience.QuotaError{Provider: "b"}}, resilience.KindQuota},
		{"quota and permanent", []error{&resilience.QuotaError{Provider: "a"}, permanent}, resilience.KindPermanent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var providers []Provider
			for i, e := range tt.errs {
				providers = append(providers, &fakeProvider{name: string(rune('a' + i)), err: e})
			}
			_, err := NewChain(providers).Fetch(context.Background(), "https://acme.com", FetchOptions{})
			require.Error(t, err)

			var fe *FetchError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.kind, fe.Kind)
			assert.Equal(t, tt.kind, resilience.Classify(err))
			assert.Len(t, fe.Errs, len(tt.errs))
		})
	}
}

func TestChain_QuotaSkipsNetwork(t *testing.T) {
	t.Parallel()

	g := ratelimit.NewGuard(nil, map[string]ratelimit.Limit{
		"jina":      {MonthlyLimit: 1},
		"firecrawl": {MonthlyLimit: 1},
	})
	jina := &fakeProvider{name: "jina", body: longMarkdown}
	fc := &fakeProvider{name: "firecrawl", body: longMarkdown}
	c := NewChain([]Provider{jina, fc}, WithGuard(g))

	rc, err := c.Fetch(context.Background(), "https://acme.com/a", FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, "jina", rc.Provider)

	rc, err = c.Fetch(context.Background(), "https://acme.com/b", FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, "firecrawl", rc.Provider)

	_, err = c.Fetch(context.Background(), "https://acme.com/c", FetchOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, resilience.ErrQuotaExhausted)
	assert.Equal(t, resilience.KindQuota, resilience.Classify(err))
	assert.Equal(t, int32(1), jina.calls.Load())
	assert.Equal(t, int32(1), fc.calls.Load())
}

func TestChain_LoginWallFallsThroughToResearch(t *testing.T) {
	t.Parallel()

	local := &fakeProvider{name: "local_http", body: "Sign in to view Acme's full profile. Join now to see who you know."}
	research := &fakeProvider{name: perplexityName, profiles: true, body: "Name: Acme"}

	c := NewChain([]Provider{local, research})
	rc, err := c.Fetch(context.Background(), "https://www.linkedin.com/company/acme", FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, perplexityName, rc.Provider)

	// Non-profile targets skip both the wall check and the research provider.
	rc, err = c.Fetch(context.Background(), "https://acme.com", FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, "local_http", rc.Provider)
	assert.Equal(t, int32(1), research.calls.Load())
}

func TestChain_LoginWallOnly(t *testing.T) {
	t.Parallel()

	local := &fakeProvider{name: "local_http", body: "authwall"}
	_, err := NewChain([]Provider{local}).Fetch(context.Background(), "https://www.linkedin.com/company/acme", FetchOptions{})
	assert.ErrorIs(t, err, ErrLoginWall)
}

func TestChain_BreakerOpens(t *testing.T) {
	t.Parallel()

	b := resilience.NewBreakers(resilience.BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Hour})
	flaky := &fakeProvider{name: "flaky", err: transient("502")}
	stable := &fakeProvider{name: "stable", body: longMarkdown}
	c := NewChain([]Provider{flaky, stable}, WithBreakers(b))

	for i := 0; i < 4; i++ {
		rc, err := c.Fetch(context.Background(), "https://acme.com/page"+string(rune('a'+i)), FetchOptions{})
		require.NoError(t, err)
		assert.Equal(t, "stable", rc.Provider)
	}
	assert.Equal(t, int32(2), flaky.calls.Load())
	assert.Equal(t, resilience.BreakerOpen, b.State("flaky"))
	assert.Equal(t, resilience.BreakerClosed, b.State("stable"))
}

func TestChain_Cache(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{name: "jina", body: longMarkdown}
	c := NewChain([]Provider{p}, WithCache(NewCache(8, time.Hour, nil)))

	for i := 0; i < 3; i++ {
		rc, err := c.Fetch(context.Background(), "https://acme.com/", FetchOptions{})
		require.NoError(t, err)
		assert.Equal(t, "jina", rc.Provider)
	}
	_, err := c.Fetch(context.Background(), "https://acme.com", FetchOptions{IncludeHTML: true})
	require.NoError(t, err)
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestChain_RejectsTargets(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{name: "jina", body: longMarkdown}
	c := NewChain([]Provider{p})

	_, err := c.Fetch(context.Background(), "ftp://acme.com/file", FetchOptions{})
	assert.ErrorIs(t, err, ErrInvalidTarget)

	_, err = c.Fetch(context.Background(), "https://acme.com/brochure.pdf", FetchOptions{})
	assert.ErrorIs(t, err, ErrExcluded)

	_, err = NewChain([]Provider{&fakeProvider{name: perplexityName, profiles: true}}).
		Fetch(context.Background(), "https://acme.com", FetchOptions{})
	assert.ErrorIs(t, err, ErrNoProvider)

	assert.Equal(t, int32(0), p.calls.Load())
}

func TestChain_CallTimeoutIsTransient(t *testing.T) {
	t.Parallel()

	slow := &fakeProvider{name: "slow", fetch: func(ctx context.Context) (*model.RawContent, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	c := NewChain([]Provider{slow}, WithCallTimeout(20*time.Millisecond))

	_, err := c.Fetch(context.Background(), "https://acme.com", FetchOptions{})
	require.Error(t, err)
	assert.Equal(t, resilience.KindTransient, resilience.Classify(err))
	assert.Contains(t, err.Error(), "timed out")
}

func TestChain_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	p1 := &fakeProvider{name: "first", fetch: func(context.Context) (*model.RawContent, error) {
		cancel()
		return nil, context.Canceled
	}}
	p2 := &fakeProvider{name: "second", body: longMarkdown}

	_, err := NewChain([]Provider{p1, p2}).Fetch(ctx, "https://acme.com", FetchOptions{})
	require.Error(t, err)
	assert.Equal(t, resilience.KindCanceled, resilience.Classify(err))
	assert.Equal(t, int32(0), p2.calls.Load())
}

func TestChain_Search(t *testing.T) {
	t.Parallel()

	empty := &fakeSearcher{name: "empty"}
	broken := &fakeSearcher{name: "broken", err: transient("503")}
	good := &fakeSearcher{name: "good", results: []SearchResult{{URL: "https://acme.com", Title: "Acme"}}}

	c := NewChain(nil, WithSearchers(empty, broken, good))
	got, err := c.Search(context.Background(), " Acme Corp ", SearchOptions{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "https://acme.com", got[0].URL)
	assert.Equal(t, int32(1), empty.calls.Load())

	none, err := NewChain(nil, WithSearchers(empty)).Search(context.Background(), "Acme", SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = NewChain(nil, WithSearchers(broken)).Search(context.Background(), "Acme", SearchOptions{})
	assert.Equal(t, resilience.KindTransient, resilience.Classify(err))

	_, err = c.Search(context.Background(), "   ", SearchOptions{})
	assert.Error(t, err)
}

type echoCompleter struct{ calls atomic.Int32 }

func (e *echoCompleter) Complete(_ context.Context, _, prompt string) (string, error) {
	e.calls.Add(1)
	return strings.ToUpper(prompt), nil
}

func TestChain_Completer(t *testing.T) {
	t.Parallel()

	g := ratelimit.NewGuard(nil, map[string]ratelimit.Limit{"anthropic": {MonthlyLimit: 1}})
	c := NewChain(nil, WithGuard(g))

	assert.Nil(t, c.Completer("anthropic", nil))

	inner := &echoCompleter{}
	comp := c.Completer("anthropic", inner)
	require.NotNil(t, comp)

	out, err := comp.Complete(context.Background(), "sys", "hello")
	require.NoError(t, err)
	assert.Equal(t, "HELLO", out)

	_, err = comp.Complete(context.Background(), "sys", "again")
	assert.ErrorIs(t, err, resilience.ErrQuotaExhausted)
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestFetchError_Message(t *testing.T) {
	t.Parallel()

	fe := &FetchError{Target: "https://acme.com", Kind: resilience.KindPermanent, Errs: []error{errors.New("a"), errors.New("b")}}
	assert.Equal(t, "acquire: permanent failed for https://acme.com: a; b", fe.Error())
	assert.EqualError(t, fe.Unwrap(), "a")
}
