// Package consolidate merges extraction results into one record. For each
// field the highest-priority strategy with a valid value wins; links are
// unioned.
package consolidate

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/go-set/v2"

	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/platform"
)

// methodConfidence is the base confidence of a link found by each method.
var methodConfidence = map[model.Method]float64{
	model.MethodStructuredData: 0.9,
	model.MethodStructural:     0.8,
	model.MethodMetadata:       0.75,
	model.MethodPattern:        0.6,
	model.MethodContextual:     0.4,
	model.MethodLLM:            0.85,
}

const (
	unknownMethodConfidence = 0.5
	verifiedBoost           = 0.1
)

// Consolidator resolves candidates by a fixed strategy priority.
type Consolidator struct {
	priority []model.Method
	rank     map[model.Method]int
	now      func() time.Time
}

// Option configures a Consolidator.
type Option func(*Consolidator)

// WithClock sets the time source used to bound founding years.
func WithClock(now func() time.Time) Option {
	return func(c *Consolidator) { c.now = now }
}

// New builds a Consolidator. An empty priority uses model.DefaultPriority.
func New(priority []model.Method, opts ...Option) *Consolidator {
	if len(priority) == 0 {
		priority = model.DefaultPriority
	}
	c := &Consolidator{
		priority: slices.Clone(priority),
		rank:     make(map[model.Method]int, len(priority)),
		now:      time.Now,
	}
	for i, m := range priority {
		if _, dup := c.rank[m]; !dup {
			c.rank[m] = i
		}
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Priority returns the strategy order, most trusted first.
func (c *Consolidator) Priority() []model.Method { return slices.Clone(c.priority) }

func (c *Consolidator) rankOf(m model.Method) int {
	if r, ok := c.rank[m]; ok {
		return r
	}
	return len(c.priority)
}

func (c *Consolidator) compareMethods(a, b model.Method) int {
	return cmp.Or(cmp.Compare(c.rankOf(a), c.rankOf(b)), strings.Compare(string(a), string(b)))
}

// ordered sorts results by priority. Results of the same method keep
// their input order.
func (c *Consolidator) ordered(results []model.ExtractionResult) []model.ExtractionResult {
	out := slices.Clone(results)
	slices.SortStableFunc(out, func(a, b model.ExtractionResult) int {
		return c.compareMethods(a.Method, b.Method)
	})
	return out
}

// Consolidate resolves results from one content unit into a record for
// ref. The confidence score is left at zero.
func (c *Consolidator) Consolidate(ref model.EntityReference, results []model.ExtractionResult) *model.ConsolidatedRecord {
	rec := model.NewRecord(ref)
	ordered := c.ordered(results)
	now := c.now()

	contributed := set.New[model.Method](len(ordered))
	sources := set.New[string](len(ordered))
	credit := func(res model.ExtractionResult) {
		contributed.Insert(res.Method)
		if res.Source != "" {
			sources.Insert(res.Source)
		}
	}

	for _, spec := range model.Fields() {
		for _, res := range ordered {
			for _, cand := range res.Fields[spec.Field] {
				if cand.Method == "" {
					cand.Method = res.Method
				}
				if cand.Source == "" {
					cand.Source = res.Source
				}
				v, ok := clean(spec, cand, now)
				if !ok {
					continue
				}
				credit(res)
				if _, taken := rec.Fields[spec.Field]; !taken {
					rec.Fields[spec.Field] = v
				}
			}
		}
	}

	rec.SocialLinks = c.consolidateLinks(ordered, credit)
	rec.ExtractionMethods = c.sortMethods(contributed.Slice())
	rec.DataSources = sortedStrings(sources.Slice())
	return rec
}

type linkGroup struct {
	link    model.SocialLink
	methods *set.Set[model.Method]
}

// consolidateLinks re-classifies every link, merges duplicates by platform
// and canonical URL, and orders them most confident first. A link found
// by two or more methods is verified.
func (c *Consolidator) consolidateLinks(ordered []model.ExtractionResult, credit func(model.ExtractionResult)) []model.SocialLink {
	groups := make(map[string]*linkGroup)
	var keys []string

	for _, res := range ordered {
		for _, l := range res.Links {
			m, ok := platform.Classify(l.URL)
			if !ok {
				continue
			}
			credit(res)
			method := l.Method
			if method == "" {
				method = res.Method
			}
			key := linkKey(m.Platform, m.URL)
			g, seen := groups[key]
			if !seen {
				g = &linkGroup{
					link:    model.SocialLink{Platform: m.Platform, URL: m.URL, Handle: m.Handle, Method: method},
					methods: set.New[model.Method](2),
				}
				groups[key] = g
				keys = append(keys, key)
			}
			g.methods.Insert(method)
			g.link.Confidence = max(g.link.Confidence, linkConfidence(method, l.Confidence))
		}
	}

	out := make([]model.SocialLink, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		if g.methods.Size() >= 2 {
			g.link.Verified = true
			g.link.Confidence = min(g.link.Confidence+verifiedBoost, 1)
		}
		out = append(out, g.link)
	}
	sortLinks(out)
	return out
}

func linkConfidence(m model.Method, reported float64) float64 {
	if reported > 0 {
		return min(reported, 1)
	}
	if c, ok := methodConfidence[m]; ok {
		return c
	}
	return unknownMethodConfidence
}

func linkKey(p model.Platform, u string) string {
	return string(p) + "|" + strings.ToLower(u)
}

func sortLinks(links []model.SocialLink) {
	slices.SortStableFunc(links, func(a, b model.SocialLink) int {
		return cmp.Compare(b.Confidence, a.Confidence)
	})
}

func (c *Consolidator) sortMethods(ms []model.Method) []model.Method {
	slices.SortFunc(ms, c.compareMethods)
	return ms
}

func sortedStrings(s []string) []string {
	slices.Sort(s)
	return s
}

// Merge combines records from two content units. Scalar fields keep the
// value from the higher-priority method, preferring a on ties. List fields
// and social links are unioned. a's reference and attempts are kept.
func (c *Consolidator) Merge(a, b *model.ConsolidatedRecord) *model.ConsolidatedRecord {
	switch {
	case a == nil && b == nil:
		return model.NewRecord(model.EntityReference{})
	case a == nil:
		return c.Merge(model.NewRecord(b.Reference), b)
	case b == nil:
		return c.Merge(a, model.NewRecord(a.Reference))
	}

	out := model.NewRecord(a.Reference)
	out.Attempts = slices.Clone(a.Attempts)
	out.Outcome, out.Reason = a.Outcome, a.Reason

	for _, spec := range model.Fields() {
		av, aok := a.Get(spec.Field)
		bv, bok := b.Get(spec.Field)
		switch {
		case aok && bok && spec.Kind == model.KindList:
			merged := av
			merged.List = unionList(av.List, bv.List)
			out.Fields[spec.Field] = merged
		case aok && bok:
			if c.compareMethods(bv.Method, av.Method) < 0 {
				out.Fields[spec.Field] = bv
			} else {
				out.Fields[spec.Field] = av
			}
		case aok:
			out.Fields[spec.Field] = av
		case bok:
			out.Fields[spec.Field] = bv
		}
	}

	out.SocialLinks = mergeLinks(a.SocialLinks, b.SocialLinks)

	methods := set.From(a.ExtractionMethods)
	methods.InsertSlice(b.ExtractionMethods)
	out.ExtractionMethods = c.sortMethods(methods.Slice())

	sources := set.From(a.DataSources)
	sources.InsertSlice(b.DataSources)
	out.DataSources = sortedStrings(sources.Slice())
	return out
}

func unionList(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(slices.Clone(a), b...) {
		k := strings.ToLower(s)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}

// mergeLinks unions two consolidated link lists. A link present in both
// with different methods becomes verified.
func mergeLinks(a, b []model.SocialLink) []model.SocialLink {
	idx := make(map[string]int, len(a)+len(b))
	out := make([]model.SocialLink, 0, len(a)+len(b))
	for _, l := range append(slices.Clone(a), b...) {
		key := linkKey(l.Platform, l.URL)
		i, seen := idx[key]
		if !seen {
			idx[key] = len(out)
			out = append(out, l)
			continue
		}
		cur := &out[i]
		if l.Verified || l.Method != cur.Method {
			if !cur.Verified {
				cur.Confidence = min(max(cur.Confidence, l.Confidence)+verifiedBoost, 1)
			}
			cur.Verified = true
		}
		cur.Confidence = max(cur.Confidence, l.Confidence)
	}
	sortLinks(out)
	return out
}
