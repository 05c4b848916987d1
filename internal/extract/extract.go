// Package extract runs independent extraction strategies over fetched
// content. A strategy failure degrades to an empty result; it never
// fails the run.
package extract

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/enrich-cli/internal/model"
)

// Strategy extracts candidate fields from one document.
type Strategy interface {
	Method() model.Method
	Extract(ctx context.Context, doc *Document) (*model.ExtractionResult, error)
}

// Optional is implemented by strategies that depend on an external
// collaborator and may be unconfigured.
type Optional interface {
	Configured() bool
}

// Observer receives per-strategy timings. It may be nil.
type Observer interface {
	ObserveStrategy(method model.Method, d time.Duration, found bool, err error)
}

// Runner fans content out to every configured strategy concurrently.
type Runner struct {
	strategies []Strategy
	timeout    time.Duration
	observer   Observer
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithTimeout bounds each strategy individually.
func WithTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) { r.timeout = d }
}

// WithObserver reports strategy timings.
func WithObserver(o Observer) RunnerOption {
	return func(r *Runner) { r.observer = o }
}

// NewRunner keeps only configured strategies, in the given order.
func NewRunner(strategies []Strategy, opts ...RunnerOption) *Runner {
	r := &Runner{timeout: 20 * time.Second}
	for _, o := range opts {
		o(r)
	}
	for _, s := range strategies {
		if s == nil {
			continue
		}
		if o, ok := s.(Optional); ok && !o.Configured() {
			zap.L().Info("extract: strategy not configured, skipping", zap.String("method", string(s.Method())))
			continue
		}
		r.strategies = append(r.strategies, s)
	}
	return r
}

// Methods lists the active strategies.
func (r *Runner) Methods() []model.Method {
	out := make([]model.Method, len(r.strategies))
	for i, s := range r.strategies {
		out[i] = s.Method()
	}
	return out
}

// Run executes every strategy and returns one result per strategy in
// strategy order. Results from failed strategies are empty.
func (r *Runner) Run(ctx context.Context, content model.RawContent) []model.ExtractionResult {
	doc := NewDocument(content)
	results := make([]model.ExtractionResult, len(r.strategies))

	var g errgroup.Group
	for i, s := range r.strategies {
		g.Go(func() error {
			results[i] = r.runOne(ctx, s, doc)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

type outcome struct {
	res *model.ExtractionResult
	err error
}

func (r *Runner) runOne(ctx context.Context, s Strategy, doc *Document) model.ExtractionResult {
	method := s.Method()
	start := time.Now()

	sctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: eris.Errorf("extract: %s panicked: %v", method, p)}
			}
		}()
		res, err := s.Extract(sctx, doc)
		done <- outcome{res: res, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-sctx.Done():
		out = outcome{err: sctx.Err()}
	}

	result := model.NewExtractionResult(method)
	if out.err != nil {
		zap.L().Debug("extract: strategy failed",
			zap.String("method", string(method)),
			zap.String("target", doc.Content.Target),
			zap.Error(out.err),
		)
		result.Err = out.err.Error()
	} else if out.res != nil {
		result = out.res
		result.Method = method
	}
	stamp(result, method, doc.Content.Provider)

	if r.observer != nil {
		r.observer.ObserveStrategy(method, time.Since(start), !result.Empty(), out.err)
	}
	return *result
}

// stamp records provenance on every value and link.
func stamp(r *model.ExtractionResult, method model.Method, source string) {
	r.Source = source
	if r.Fields == nil {
		r.Fields = make(map[model.Field][]model.FieldValue)
	}
	for f, vs := range r.Fields {
		for i := range vs {
			vs[i].Method = method
			vs[i].Source = source
		}
		r.Fields[f] = vs
	}
	for i := range r.Links {
		r.Links[i].Method = method
	}
}

// Default returns the built-in strategies in priority order. llm may be nil.
func Default(now func() time.Time, llm Completer) []Strategy {
	return []Strategy{
		NewStructuredData(),
		NewStructural(),
		NewMetadata(),
		NewPattern(),
		NewContextual(now),
		NewLLM(llm),
	}
}
