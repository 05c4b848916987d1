// Package orchestrate resolves an entity reference into a consolidated
// record. Attempts run one at a time: each is fetched, extracted,
// consolidated and scored, and the next attempt only runs while the best
// record is below the quality threshold.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/enrich-cli/internal/acquire"
	"github.com/sells-group/enrich-cli/internal/consolidate"
	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/platform"
	"github.com/sells-group/enrich-cli/internal/resilience"
	"github.com/sells-group/enrich-cli/internal/score"
)

// Fetcher acquires content for a target. *acquire.Chain satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, target string, opts acquire.FetchOptions) (*model.RawContent, error)
}

// Searcher finds candidate pages for a query. *acquire.Chain satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string, opts acquire.SearchOptions) ([]acquire.SearchResult, error)
}

// Extractor runs the extraction strategies. *extract.Runner satisfies it.
type Extractor interface {
	Run(ctx context.Context, content model.RawContent) []model.ExtractionResult
}

// Observer receives attempt and resolution events. It may be nil.
type Observer interface {
	ObserveAttempt(kind string, d time.Duration, err error)
	ObserveResolution(outcome model.Outcome, confidence float64, d time.Duration)
}

// Config tunes the state machine.
type Config struct {
	QualityThreshold    float64              `mapstructure:"quality_threshold" yaml:"quality_threshold"`
	MaxRetries          int                  `mapstructure:"max_retries" yaml:"max_retries"`
	Backoff             resilience.Backoff   `mapstructure:"backoff" yaml:"backoff"`
	Deadline            time.Duration        `mapstructure:"deadline" yaml:"deadline"`
	SearchThreshold     float64              `mapstructure:"search_threshold" yaml:"search_threshold"`
	SearchLimit         int                  `mapstructure:"search_limit" yaml:"search_limit"`
	MaxSearchCandidates int                  `mapstructure:"max_search_candidates" yaml:"max_search_candidates"`
	MaxDiscovered       int                  `mapstructure:"max_discovered" yaml:"max_discovered"`
	MaxContactPages     int                  `mapstructure:"max_contact_pages" yaml:"max_contact_pages"`
	ContactPaths        []string             `mapstructure:"contact_paths" yaml:"contact_paths"`
	Fetch               acquire.FetchOptions `mapstructure:"fetch" yaml:"fetch"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		QualityThreshold:    0.4,
		MaxRetries:          2,
		Backoff:             resilience.Backoff{Base: time.Second, Max: 8 * time.Second, Multiplier: 2, Jitter: 0.2},
		Deadline:            3 * time.Minute,
		SearchThreshold:     0.6,
		SearchLimit:         10,
		MaxSearchCandidates: 3,
		MaxDiscovered:       1,
		MaxContactPages:     2,
		ContactPaths:        []string{"/contact", "/contact-us", "/about", "/about-us", "/impressum"},
		Fetch:               acquire.FetchOptions{IncludeHTML: true},
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.QualityThreshold <= 0 {
		c.QualityThreshold = d.QualityThreshold
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.SearchThreshold <= 0 {
		c.SearchThreshold = d.SearchThreshold
	}
	if c.SearchLimit <= 0 {
		c.SearchLimit = d.SearchLimit
	}
	if c.MaxSearchCandidates <= 0 {
		c.MaxSearchCandidates = d.MaxSearchCandidates
	}
	if c.MaxDiscovered < 0 {
		c.MaxDiscovered = 0
	}
	if c.ContactPaths == nil {
		c.ContactPaths = d.ContactPaths
	}
	return c
}

// Orchestrator runs resolutions. It is safe for concurrent use; each
// resolution keeps its own state.
type Orchestrator struct {
	fetcher      Fetcher
	searcher     Searcher
	extractor    Extractor
	consolidator *consolidate.Consolidator
	cfg          Config
	observer     Observer
	sleep        func(ctx context.Context, d time.Duration) error
	now          func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSearcher enables name and phone search attempts.
func WithSearcher(s Searcher) Option {
	return func(o *Orchestrator) { o.searcher = s }
}

// WithObserver reports attempts and outcomes.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

// WithSleep replaces the backoff sleep.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = sleep }
}

// WithClock replaces the time source used for durations.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New builds an Orchestrator. fetcher, extractor and consolidator are
// required.
func New(fetcher Fetcher, extractor Extractor, c *consolidate.Consolidator, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		fetcher:      fetcher,
		extractor:    extractor,
		consolidator: c,
		cfg:          cfg.withDefaults(),
		sleep:        resilience.Sleep,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Config returns the effective configuration.
func (o *Orchestrator) Config() Config { return o.cfg }

// resolution is the private state of one Resolve call.
type resolution struct {
	ref      model.EntityReference
	log      *zap.Logger
	state    State
	queue    []Attempt
	seen     map[string]bool
	best     *model.ConsolidatedRecord
	attempts []model.AttemptSummary
	lastErr  error
}

func (r *resolution) to(s State) {
	r.log.Debug("orchestrate: transition", zap.Stringer("from", r.state), zap.Stringer("to", s))
	r.state = s
}

// push queues attempts ahead of the rest, skipping ones already seen.
func (r *resolution) push(front bool, as ...Attempt) {
	var fresh []Attempt
	for _, a := range as {
		k := a.key()
		if r.seen[k] {
			continue
		}
		r.seen[k] = true
		fresh = append(fresh, a)
	}
	if front {
		r.queue = append(fresh, r.queue...)
	} else {
		r.queue = append(r.queue, fresh...)
	}
}

func (r *resolution) pop() (Attempt, bool) {
	if len(r.queue) == 0 {
		return Attempt{}, false
	}
	a := r.queue[0]
	r.queue = r.queue[1:]
	return a, true
}

// Resolve always returns a record. Failures surface as a degraded
// record with a reason and confidence 0.
func (o *Orchestrator) Resolve(ctx context.Context, ref model.EntityReference) *model.ConsolidatedRecord {
	start := o.now()
	ref = ref.Trimmed()
	r := &resolution{
		ref:  ref,
		log:  zap.L().With(zap.String("reference", ref.Label())),
		seen: make(map[string]bool),
	}

	if o.cfg.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Deadline)
		defer cancel()
	}

	r.to(StateResolving)
	if err := ref.Validate(); err != nil {
		return o.finish(r, start, err.Error())
	}
	r.push(false, Plan(ref)...)
	if len(r.queue) == 0 {
		return o.finish(r, start, resilience.ErrNoCandidates.Error())
	}

	for ctx.Err() == nil {
		a, ok := r.pop()
		if !ok {
			break
		}

		if a.Kind == KindSearch {
			o.expandSearch(ctx, r, a)
			continue
		}

		content, rec := o.attempt(ctx, r, a)
		if rec == nil {
			continue
		}

		r.to(StateConsolidating)
		r.best = o.keepBest(r.best, rec)
		if a.Kind == KindWebsite || a.Kind == KindPhone {
			r.push(true, discover(*content, rec, o.cfg.MaxDiscovered)...)
		}

		r.to(StateQualityCheck)
		if o.meetsThreshold(r.best) {
			break
		}
	}

	if r.best != nil && ctx.Err() == nil {
		o.contactPass(ctx, r)
	}

	reason := ""
	switch {
	case r.best == nil && r.lastErr != nil:
		reason = fmt.Sprintf("all %d attempts failed: %v", len(r.attempts), r.lastErr)
	case r.best == nil:
		reason = resilience.ErrNoCandidates.Error()
	case !o.meetsThreshold(r.best):
		reason = fmt.Sprintf("confidence %.2f below threshold %.2f after %d attempts",
			r.best.ConfidenceScore, o.cfg.QualityThreshold, len(r.attempts))
	}
	if reason != "" && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		reason += " (deadline exceeded)"
	}
	return o.finish(r, start, reason)
}

func (o *Orchestrator) meetsThreshold(rec *model.ConsolidatedRecord) bool {
	return rec != nil && rec.ConfidenceScore >= o.cfg.QualityThreshold
}

// canRetry reports whether a failed attempt should be repeated.
func (o *Orchestrator) canRetry(ctx context.Context, err error, retries int) bool {
	return ctx.Err() == nil && retries < o.cfg.MaxRetries && resilience.Classify(err) == resilience.KindTransient
}

// keepBest merges rec into the accumulated record and keeps whichever
// of the merged and previous records scores higher.
func (o *Orchestrator) keepBest(best, rec *model.ConsolidatedRecord) *model.ConsolidatedRecord {
	if best == nil {
		score.Apply(rec)
		return rec
	}
	merged := o.consolidator.Merge(best, rec)
	if score.Apply(merged) >= best.ConfidenceScore {
		return merged
	}
	return best
}

// attempt fetches and extracts one target, retrying transient failures
// with backoff. It returns nil when the attempt produced no content.
func (o *Orchestrator) attempt(ctx context.Context, r *resolution, a Attempt) (*model.RawContent, *model.ConsolidatedRecord) {
	sum := model.AttemptSummary{Kind: string(a.Kind), Target: a.Target}
	defer func() { r.attempts = append(r.attempts, sum) }()

	for retries := 0; ; retries++ {
		r.to(StateExtracting)
		start := o.now()
		content, err := o.fetcher.Fetch(ctx, a.Target, o.cfg.Fetch)
		o.observeAttempt(a.Kind, o.now().Sub(start), err)
		sum.Retries = retries

		if err == nil {
			sum.Provider, sum.Error = content.Provider, ""
			rec := o.extract(ctx, r.ref, a, content)
			sum.Confidence = rec.ConfidenceScore
			r.log.Info("orchestrate: attempt complete",
				zap.String("kind", string(a.Kind)),
				zap.String("target", a.Target),
				zap.String("provider", content.Provider),
				zap.Float64("confidence", rec.ConfidenceScore),
			)
			return content, rec
		}

		r.lastErr = err
		sum.Error = err.Error()
		if !o.canRetry(ctx, err, retries) {
			r.log.Info("orchestrate: attempt failed",
				zap.String("kind", string(a.Kind)),
				zap.String("target", a.Target),
				zap.Stringer("error_kind", resilience.Classify(err)),
				zap.Int("retries", retries),
				zap.Error(err),
			)
			return nil, nil
		}

		r.to(StateRetrying)
		delay := o.cfg.Backoff.Delay(retries)
		r.log.Debug("orchestrate: retrying attempt",
			zap.String("target", a.Target),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if o.sleep(ctx, delay) != nil {
			return nil, nil
		}
	}
}

// extract runs the strategies over content and scores the result.
func (o *Orchestrator) extract(ctx context.Context, ref model.EntityReference, a Attempt, content *model.RawContent) *model.ConsolidatedRecord {
	rec := o.consolidator.Consolidate(ref, o.extractor.Run(ctx, *content))
	if a.Kind == KindProfile || a.Kind == KindDiscovered {
		addFetchedProfile(rec, a.Target, content.Provider)
	}
	if a.Kind == KindWebsite || a.Kind == KindContact {
		if _, ok := rec.Get(model.FieldWebsite); !ok {
			if home := homepage(content); home != "" {
				v := model.Text(home)
				v.Method = model.MethodMetadata
				v.Source = content.Provider
				rec.Fields[model.FieldWebsite] = v
				rec.ExtractionMethods = appendMethod(rec.ExtractionMethods, model.MethodMetadata, o.consolidator.Priority())
			}
		}
	}
	score.Apply(rec)
	return rec
}

// homepage is the scheme and host the content was served from. Pages
// served from a social platform have no homepage of their own.
func homepage(content *model.RawContent) string {
	raw := content.FinalURL
	if raw == "" {
		raw = content.Target
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	home := u.Scheme + "://" + strings.TrimPrefix(u.Host, "www.")
	if _, social := platform.HostPlatform(home); social {
		return ""
	}
	return home
}

// fetchedProfileConfidence is the confidence of a profile link that was
// fetched directly.
const fetchedProfileConfidence = 0.9

// addFetchedProfile records the profile a profile attempt fetched when no
// strategy reported it. It leaves the scored fields alone.
func addFetchedProfile(rec *model.ConsolidatedRecord, target, provider string) {
	m, ok := platform.Classify(target)
	if !ok {
		return
	}
	if _, found := rec.Get(model.FieldProfileURL); !found {
		v := model.Text(m.URL)
		v.Method = model.MethodMetadata
		v.Source = provider
		rec.Fields[model.FieldProfileURL] = v
	}
	for _, l := range rec.SocialLinks {
		if l.Platform == m.Platform && strings.EqualFold(l.URL, m.URL) {
			return
		}
	}
	rec.SocialLinks = append([]model.SocialLink{{
		Platform:   m.Platform,
		URL:        m.URL,
		Handle:     m.Handle,
		Confidence: fetchedProfileConfidence,
		Method:     model.MethodMetadata,
	}}, rec.SocialLinks...)
}

// appendMethod adds m to ms if missing, keeping priority order.
func appendMethod(ms []model.Method, m model.Method, priority []model.Method) []model.Method {
	for _, x := range ms {
		if x == m {
			return ms
		}
	}
	rank := make(map[model.Method]int, len(priority))
	for i, p := range priority {
		rank[p] = i
	}
	out := make([]model.Method, 0, len(ms)+1)
	inserted := false
	for _, x := range ms {
		if !inserted && rank[m] < rank[x] {
			out = append(out, m)
			inserted = true
		}
		out = append(out, x)
	}
	if !inserted {
		out = append(out, m)
	}
	return out
}

// expandSearch replaces a search attempt with its accepted candidates.
func (o *Orchestrator) expandSearch(ctx context.Context, r *resolution, a Attempt) {
	if o.searcher == nil {
		return
	}
	start := o.now()
	cands, err := o.candidates(ctx, r.ref, a)
	o.observeAttempt(a.Kind, o.now().Sub(start), err)
	if err != nil {
		r.lastErr = err
		r.attempts = append(r.attempts, model.AttemptSummary{Kind: string(KindSearch), Target: a.Query, Error: err.Error()})
		r.log.Info("orchestrate: search failed", zap.String("query", a.Query), zap.Error(err))
		return
	}
	r.log.Debug("orchestrate: search candidates", zap.String("query", a.Query), zap.Int("accepted", len(cands)))
	r.push(true, cands...)
}

func (o *Orchestrator) observeAttempt(kind AttemptKind, d time.Duration, err error) {
	if o.observer != nil {
		o.observer.ObserveAttempt(string(kind), d, err)
	}
}

// finish stamps the outcome on the best record, or an empty one.
func (o *Orchestrator) finish(r *resolution, start time.Time, reason string) *model.ConsolidatedRecord {
	rec := r.best
	if rec == nil {
		rec = model.NewRecord(r.ref)
	}
	rec.Reference = r.ref
	rec.Attempts = r.attempts
	if reason == "" && o.meetsThreshold(rec) {
		rec.Outcome = model.OutcomeDone
		rec.Reason = ""
		r.to(StateDone)
	} else {
		rec.Outcome = model.OutcomeDegraded
		rec.Reason = reason
		if r.best == nil {
			rec.ConfidenceScore = 0
		}
		r.to(StateDegraded)
	}

	r.log.Info("orchestrate: resolution finished",
		zap.String("outcome", string(rec.Outcome)),
		zap.Float64("confidence", rec.ConfidenceScore),
		zap.Int("attempts", len(rec.Attempts)),
		zap.String("reason", rec.Reason),
	)
	if o.observer != nil {
		o.observer.ObserveResolution(rec.Outcome, rec.ConfidenceScore, o.now().Sub(start))
	}
	return rec
}
