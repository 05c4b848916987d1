package config

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/enrich-cli/internal/consolidate"
	"github.com/sells-group/enrich-cli/internal/cost"
	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/orchestrate"
	"github.com/sells-group/enrich-cli/internal/ratelimit"
	"github.com/sells-group/enrich-cli/internal/resilience"
	"github.com/sells-group/enrich-cli/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store        StoreConfig                `yaml:"store" mapstructure:"store"`
	Log          LogConfig                  `yaml:"log" mapstructure:"log"`
	Server       ServerConfig               `yaml:"server" mapstructure:"server"`
	Batch        BatchConfig                `yaml:"batch" mapstructure:"batch"`
	Jina         JinaConfig                 `yaml:"jina" mapstructure:"jina"`
	Firecrawl    FirecrawlConfig            `yaml:"firecrawl" mapstructure:"firecrawl"`
	Perplexity   PerplexityConfig           `yaml:"perplexity" mapstructure:"perplexity"`
	Anthropic    AnthropicConfig            `yaml:"anthropic" mapstructure:"anthropic"`
	Google       GoogleConfig               `yaml:"google" mapstructure:"google"`
	Acquire      AcquireConfig              `yaml:"acquire" mapstructure:"acquire"`
	Orchestrator orchestrate.Config         `yaml:"orchestrator" mapstructure:"orchestrator"`
	Providers    map[string]ratelimit.Limit `yaml:"providers" mapstructure:"providers"`
	Strategies   StrategiesConfig           `yaml:"strategies" mapstructure:"strategies"`
	Cache        CacheConfig                `yaml:"cache" mapstructure:"cache"`
	Breaker      resilience.BreakerConfig   `yaml:"breaker" mapstructure:"breaker"`
	Monitoring   MonitoringConfig           `yaml:"monitoring" mapstructure:"monitoring"`
	Pricing      cost.Rates                 `yaml:"pricing" mapstructure:"pricing"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int           `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string      `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// JinaConfig holds Jina AI Reader and search settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// FirecrawlConfig holds Firecrawl API settings.
type FirecrawlConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig holds Anthropic API settings for the LLM strategy.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	CacheTTL  string `yaml:"cache_ttl" mapstructure:"cache_ttl"`
}

// GoogleConfig holds Google Places API settings.
type GoogleConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AcquireConfig configures the content acquisition chain.
type AcquireConfig struct {
	Providers    []string      `yaml:"providers" mapstructure:"providers"`
	UserAgent    string        `yaml:"user_agent" mapstructure:"user_agent"`
	CallTimeout  time.Duration `yaml:"call_timeout" mapstructure:"call_timeout"`
	ExcludePaths []string      `yaml:"exclude_paths" mapstructure:"exclude_paths"`
}

// StrategiesConfig configures extraction.
type StrategiesConfig struct {
	Priority     []string      `yaml:"priority" mapstructure:"priority"`
	PriorityFile string        `yaml:"priority_file" mapstructure:"priority_file"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// CacheConfig configures the acquired-content cache.
type CacheConfig struct {
	Size int           `yaml:"size" mapstructure:"size"`
	TTL  time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// MonitoringConfig configures background health checks and alerting.
type MonitoringConfig struct {
	Enabled               bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL            string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	DegradedRateThreshold float64 `yaml:"degraded_rate_threshold" mapstructure:"degraded_rate_threshold"`
	BudgetWarnRatio       float64 `yaml:"budget_warn_ratio" mapstructure:"budget_warn_ratio"`
	LookbackWindowHours   int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	CheckIntervalSecs     int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
}

// Provider names recognised in the acquire.providers order.
const (
	ProviderLocal      = "local_http"
	ProviderJina       = "jina"
	ProviderFirecrawl  = "firecrawl"
	ProviderPerplexity = "perplexity"
)

var knownProviders = map[string]bool{
	ProviderLocal:      true,
	ProviderJina:       true,
	ProviderFirecrawl:  true,
	ProviderPerplexity: true,
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ENRICH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", store.DriverSQLite)
	v.SetDefault("store.database_url", "enrich.db")
	v.SetDefault("store.pool.max_conns", 10)
	v.SetDefault("store.pool.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.request_timeout", 5*time.Minute)
	v.SetDefault("batch.max_concurrent", 5)

	// Keys default to empty so ENRICH_*_KEY env vars are picked up.
	v.SetDefault("jina.key", "")
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("firecrawl.key", "")
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v1")
	v.SetDefault("perplexity.key", "")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("anthropic.cache_ttl", "5m")
	v.SetDefault("google.key", "")
	v.SetDefault("google.base_url", "https://places.googleapis.com/v1")

	v.SetDefault("acquire.providers", []string{ProviderLocal, ProviderJina, ProviderFirecrawl, ProviderPerplexity})
	v.SetDefault("acquire.user_agent", "")
	v.SetDefault("acquire.call_timeout", 45*time.Second)
	v.SetDefault("acquire.exclude_paths", []string{})

	o := orchestrate.DefaultConfig()
	v.SetDefault("orchestrator.quality_threshold", o.QualityThreshold)
	v.SetDefault("orchestrator.max_retries", o.MaxRetries)
	v.SetDefault("orchestrator.backoff.base", o.Backoff.Base)
	v.SetDefault("orchestrator.backoff.max", o.Backoff.Max)
	v.SetDefault("orchestrator.backoff.multiplier", o.Backoff.Multiplier)
	v.SetDefault("orchestrator.backoff.jitter", o.Backoff.Jitter)
	v.SetDefault("orchestrator.deadline", o.Deadline)
	v.SetDefault("orchestrator.search_threshold", o.SearchThreshold)
	v.SetDefault("orchestrator.search_limit", o.SearchLimit)
	v.SetDefault("orchestrator.max_search_candidates", o.MaxSearchCandidates)
	v.SetDefault("orchestrator.max_discovered", o.MaxDiscovered)
	v.SetDefault("orchestrator.max_contact_pages", o.MaxContactPages)
	v.SetDefault("orchestrator.contact_paths", o.ContactPaths)
	v.SetDefault("orchestrator.fetch.include_html", o.Fetch.IncludeHTML)
	v.SetDefault("orchestrator.fetch.wait", o.Fetch.Wait)
	v.SetDefault("orchestrator.fetch.timeout", o.Fetch.Timeout)
	v.SetDefault("orchestrator.fetch.scroll_to_bottom", o.Fetch.ScrollToBottom)

	v.SetDefault("providers.local_http.min_interval", 250*time.Millisecond)
	v.SetDefault("providers.jina.monthly_limit", 10000)
	v.SetDefault("providers.jina.min_interval", 500*time.Millisecond)
	v.SetDefault("providers.jina_search.monthly_limit", 2000)
	v.SetDefault("providers.jina_search.min_interval", time.Second)
	v.SetDefault("providers.firecrawl.monthly_limit", 3000)
	v.SetDefault("providers.firecrawl.min_interval", time.Second)
	v.SetDefault("providers.perplexity.monthly_limit", 1000)
	v.SetDefault("providers.perplexity.min_interval", time.Second)
	v.SetDefault("providers.google_places.monthly_limit", 5000)
	v.SetDefault("providers.google_places.min_interval", 200*time.Millisecond)
	v.SetDefault("providers.anthropic.monthly_limit", 5000)

	v.SetDefault("strategies.priority", []string{})
	v.SetDefault("strategies.priority_file", "")
	v.SetDefault("strategies.timeout", 30*time.Second)

	v.SetDefault("cache.size", 512)
	v.SetDefault("cache.ttl", 24*time.Hour)

	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.reset_timeout", time.Minute)

	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.degraded_rate_threshold", 0.5)
	v.SetDefault("monitoring.budget_warn_ratio", 0.9)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.check_interval_secs", 300)

	r := cost.DefaultRates()
	v.SetDefault("pricing.anthropic.input", r.Anthropic.Input)
	v.SetDefault("pricing.anthropic.output", r.Anthropic.Output)
	v.SetDefault("pricing.anthropic.cache_read_mul", r.Anthropic.CacheReadMul)
	v.SetDefault("pricing.anthropic.input_per_call", r.Anthropic.InputPerCall)
	v.SetDefault("pricing.anthropic.cached_per_call", r.Anthropic.CachedPerCall)
	v.SetDefault("pricing.anthropic.output_per_call", r.Anthropic.OutputPerCall)
	v.SetDefault("pricing.jina.per_mtok", r.Jina.PerMTok)
	v.SetDefault("pricing.jina.tokens_per_call", r.Jina.TokensPerCall)
	v.SetDefault("pricing.jina_search.per_query", r.JinaSearch.PerQuery)
	v.SetDefault("pricing.perplexity.per_query", r.Perplexity.PerQuery)
	v.SetDefault("pricing.firecrawl.plan_monthly", r.Firecrawl.PlanMonthly)
	v.SetDefault("pricing.firecrawl.credits_included", r.Firecrawl.CreditsIncluded)
	v.SetDefault("pricing.google_places.per_query", r.GooglePlaces.PerQuery)
}

// Validate rejects configuration that can never work for mode ("run",
// "batch" or "serve"). It is run once at startup; a failure aborts the
// process.
func (c *Config) Validate(mode string) error {
	var errs []string
	switch mode {
	case "run", "batch", "serve":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "", store.DriverSQLite, store.DriverPostgres:
	default:
		errs = append(errs, fmt.Sprintf("unknown store driver %q", c.Store.Driver))
	}
	if c.Store.Driver == store.DriverPostgres && c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required for postgres")
	}
	switch c.Log.Format {
	case "", "json", "console":
	default:
		errs = append(errs, fmt.Sprintf("unknown log format %q", c.Log.Format))
	}

	o := c.Orchestrator
	if o.QualityThreshold < 0 || o.QualityThreshold > 1 {
		errs = append(errs, "orchestrator.quality_threshold must be between 0 and 1")
	}
	if o.SearchThreshold < 0 || o.SearchThreshold > 1 {
		errs = append(errs, "orchestrator.search_threshold must be between 0 and 1")
	}
	if o.MaxRetries < 0 || o.MaxContactPages < 0 || o.MaxDiscovered < 0 {
		errs = append(errs, "orchestrator limits must be >= 0")
	}
	if o.Deadline < 0 {
		errs = append(errs, "orchestrator.deadline must be >= 0")
	}

	for _, name := range slices.Sorted(maps.Keys(c.Providers)) {
		if l := c.Providers[name]; l.MonthlyLimit < 0 || l.MinInterval < 0 {
			errs = append(errs, fmt.Sprintf("providers.%s limits must be >= 0", name))
		}
	}
	for _, p := range c.Acquire.Providers {
		if !knownProviders[strings.ToLower(strings.TrimSpace(p))] {
			errs = append(errs, fmt.Sprintf("unknown acquisition provider %q", p))
		}
	}
	if _, err := c.Priority(); err != nil {
		errs = append(errs, err.Error())
	}

	switch mode {
	case "batch":
		if c.Batch.MaxConcurrent < 1 || c.Batch.MaxConcurrent > 50 {
			errs = append(errs, "batch.max_concurrent must be between 1 and 50")
		}
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Priority resolves the strategy priority: the override file when set,
// otherwise the inline list, otherwise the built-in order.
func (c *Config) Priority() ([]model.Method, error) {
	if c.Strategies.PriorityFile != "" {
		return consolidate.LoadPriorityFile(c.Strategies.PriorityFile)
	}
	return consolidate.ParsePriority(c.Strategies.Priority)
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
