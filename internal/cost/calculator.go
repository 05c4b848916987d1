// Package cost estimates provider spend from monthly call counts.
package cost

import "github.com/sells-group/enrich-cli/internal/model"

// Rates holds per-provider pricing configuration.
type Rates struct {
	Anthropic    ModelRate     `yaml:"anthropic" mapstructure:"anthropic"`
	Jina         JinaRate      `yaml:"jina" mapstructure:"jina"`
	JinaSearch   QueryRate     `yaml:"jina_search" mapstructure:"jina_search"`
	Perplexity   QueryRate     `yaml:"perplexity" mapstructure:"perplexity"`
	Firecrawl    FirecrawlRate `yaml:"firecrawl" mapstructure:"firecrawl"`
	GooglePlaces QueryRate     `yaml:"google_places" mapstructure:"google_places"`
}

// ModelRate holds token pricing (per million tokens) and the typical token
// counts of one extraction call.
type ModelRate struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
	InputPerCall  int     `yaml:"input_per_call" mapstructure:"input_per_call"`
	CachedPerCall int     `yaml:"cached_per_call" mapstructure:"cached_per_call"`
	OutputPerCall int     `yaml:"output_per_call" mapstructure:"output_per_call"`
}

// JinaRate holds Jina Reader pricing.
type JinaRate struct {
	PerMTok       float64 `yaml:"per_mtok" mapstructure:"per_mtok"`
	TokensPerCall int     `yaml:"tokens_per_call" mapstructure:"tokens_per_call"`
}

// QueryRate is a flat price per request.
type QueryRate struct {
	PerQuery float64 `yaml:"per_query" mapstructure:"per_query"`
}

// FirecrawlRate holds Firecrawl plan pricing.
type FirecrawlRate struct {
	PlanMonthly     float64 `yaml:"plan_monthly" mapstructure:"plan_monthly"`
	CreditsIncluded float64 `yaml:"credits_included" mapstructure:"credits_included"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Claude computes the cost of one call with the given token counts.
func (c *Calculator) Claude(input, cacheRead, output int) float64 {
	r := c.rates.Anthropic
	inCost := (float64(input) / 1e6) * r.Input
	crCost := (float64(cacheRead) / 1e6) * r.Input * r.CacheReadMul
	outCost := (float64(output) / 1e6) * r.Output
	return inCost + crCost + outCost
}

// Jina computes the cost for Jina Reader token usage.
func (c *Calculator) Jina(tokens int) float64 {
	return (float64(tokens) / 1e6) * c.rates.Jina.PerMTok
}

// FirecrawlCredit is the effective price of one scrape credit.
func (c *Calculator) FirecrawlCredit() float64 {
	if c.rates.Firecrawl.CreditsIncluded <= 0 {
		return 0
	}
	return c.rates.Firecrawl.PlanMonthly / c.rates.Firecrawl.CreditsIncluded
}

// PerCall returns the estimated price of one call to provider. Unknown and
// self-hosted providers cost nothing.
func (c *Calculator) PerCall(provider string) float64 {
	switch provider {
	case "anthropic":
		r := c.rates.Anthropic
		return c.Claude(r.InputPerCall, r.CachedPerCall, r.OutputPerCall)
	case "jina":
		return c.Jina(c.rates.Jina.TokensPerCall)
	case "jina_search":
		return c.rates.JinaSearch.PerQuery
	case "perplexity":
		return c.rates.Perplexity.PerQuery
	case "firecrawl":
		return c.FirecrawlCredit()
	case "google_places":
		return c.rates.GooglePlaces.PerQuery
	default:
		return 0
	}
}

// Estimate returns the month-to-date spend implied by b's call count.
func (c *Calculator) Estimate(b model.RateBudget) float64 {
	return float64(b.Calls) * c.PerCall(b.Provider)
}

// Total sums Estimate across budgets.
func (c *Calculator) Total(budgets []model.RateBudget) float64 {
	var sum float64
	for _, b := range budgets {
		sum += c.Estimate(b)
	}
	return sum
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: ModelRate{
			Input: 0.80, Output: 4.00, CacheReadMul: 0.1,
			InputPerCall: 6000, CachedPerCall: 800, OutputPerCall: 400,
		},
		Jina:         JinaRate{PerMTok: 0.02, TokensPerCall: 8000},
		JinaSearch:   QueryRate{PerQuery: 0.002},
		Perplexity:   QueryRate{PerQuery: 0.005},
		Firecrawl:    FirecrawlRate{PlanMonthly: 19.00, CreditsIncluded: 3000},
		GooglePlaces: QueryRate{PerQuery: 0.032},
	}
}
