package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/enrich-cli/internal/config"
	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/orchestrate"
	"github.com/sells-group/enrich-cli/internal/resilience"
	"github.com/sells-group/enrich-cli/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := &config.Config{}
	c.Store.Driver = store.DriverSQLite
	c.Store.DatabaseURL = filepath.Join(t.TempDir(), "enrich.db")
	c.Orchestrator = orchestrate.DefaultConfig()
	c.Cache.Size = 16
	c.Cache.TTL = time.Hour
	c.Breaker = resilience.BreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute}
	c.Strategies.Timeout = 5 * time.Second
	return c
}

func TestBuildProviders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func(c *config.Config)
		want  []string
	}{
		{
			name:  "keyless providers skipped",
			setup: func(c *config.Config) { c.Acquire.Providers = []string{"local_http", "jina", "firecrawl", "perplexity"} },
			want:  []string{"local_http"},
		},
		{
			name: "configured order kept",
			setup: func(c *config.Config) {
				c.Acquire.Providers = []string{"perplexity", " Jina ", "local_http"}
				c.Jina.Key = "j"
				c.Perplexity.Key = "p"
			},
			want: []string{"perplexity", "jina", "local_http"},
		},
		{
			name:  "empty list",
			setup: func(*config.Config) {},
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := testConfig(t)
			tt.setup(c)

			var names []string
			for _, p := range buildProviders(c) {
				names = append(names, p.Name())
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestBuildSearchers(t *testing.T) {
	t.Parallel()
	c := testConfig(t)
	assert.Empty(t, buildSearchers(c))

	c.Jina.Key = "j"
	c.Google.Key = "g"
	s := buildSearchers(c)
	require.Len(t, s, 2)
	assert.Equal(t, "jina_search", s[0].Name())
	assert.Equal(t, "google_places", s[1].Name())
}

func TestBuildEnv_RejectsBadPriority(t *testing.T) {
	c := testConfig(t)
	c.Strategies.Priority = []string{"vibes"}

	st, err := store.Open(context.Background(), c.Store.Driver, c.Store.DatabaseURL, nil)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	_, err = buildEnv(context.Background(), c, st, prometheus.NewRegistry())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strategy priority")
}

func TestEnrich_PersistsDegradedRun(t *testing.T) {
	ctx := context.Background()
	c := testConfig(t)

	st, err := store.Open(ctx, c.Store.Driver, c.Store.DatabaseURL, nil)
	require.NoError(t, err)

	env, err := buildEnv(ctx, c, st, prometheus.NewRegistry())
	require.NoError(t, err)
	defer env.Close()

	assert.Empty(t, env.Chain.Providers())

	run := env.enrich(ctx, model.EntityReference{Domain: "acme.example"})
	require.NotNil(t, run)
	require.NotNil(t, run.Record)
	require.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusDegraded, run.Status)
	assert.Equal(t, model.OutcomeDegraded, run.Record.Outcome)

	got, err := env.Store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusDegraded, got.Status)
	assert.Equal(t, "acme.example", got.Reference.Domain)
	require.NotNil(t, got.Record)
}

func TestPersistPolicy(t *testing.T) {
	t.Parallel()
	p := persistPolicy()
	assert.Equal(t, 3, p.Attempts)
	assert.False(t, p.ShouldRetry(eris.Wrap(store.ErrNotFound, "run x")))
	assert.True(t, p.ShouldRetry(eris.New("database is locked")))
	require.NotNil(t, p.OnRetry)
}
