package orchestrate

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/enrich-cli/internal/extract"
	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/platform"
	"github.com/sells-group/enrich-cli/internal/resilience"
	"github.com/sells-group/enrich-cli/internal/validate"
)

// contactSite returns the website to search for contact pages, or "" when
// the record has no identified site or all contact fields are filled.
func contactSite(rec *model.ConsolidatedRecord, ref model.EntityReference) string {
	if rec == nil || len(rec.MissingContact()) == 0 {
		return ""
	}
	if len(rec.SocialLinks) == 0 {
		if _, ok := rec.Get(model.FieldWebsite); !ok {
			return ""
		}
	}
	for _, raw := range []string{rec.TextOf(model.FieldWebsite), ref.Domain} {
		u, ok := validate.ParseURL(raw)
		if !ok {
			continue
		}
		if _, isPlatform := platform.HostPlatform(u.String()); isPlatform {
			continue
		}
		return u.Scheme + "://" + u.Host
	}
	return ""
}

// contactPass fetches well-known contact and about pages on the record's
// site until the contact fields are filled or the page budget runs out.
// Failures are logged and never change the outcome.
func (o *Orchestrator) contactPass(ctx context.Context, r *resolution) {
	site := contactSite(r.best, r.ref)
	if site == "" || o.cfg.MaxContactPages <= 0 {
		return
	}

	fetched := 0
	for _, p := range o.cfg.ContactPaths {
		if fetched >= o.cfg.MaxContactPages || ctx.Err() != nil || len(r.best.MissingContact()) == 0 {
			return
		}
		a := Attempt{Kind: KindContact, Target: site + "/" + strings.TrimPrefix(p, "/")}
		if r.seen[a.key()] {
			continue
		}
		r.seen[a.key()] = true
		fetched++

		start := o.now()
		content, err := o.fetcher.Fetch(ctx, a.Target, o.cfg.Fetch)
		o.observeAttempt(a.Kind, o.now().Sub(start), err)
		sum := model.AttemptSummary{Kind: string(a.Kind), Target: a.Target}
		if err != nil {
			sum.Error = err.Error()
			r.attempts = append(r.attempts, sum)
			r.log.Debug("orchestrate: contact page failed", zap.String("target", a.Target), zap.Error(err))
			if errors.Is(err, resilience.ErrQuotaExhausted) {
				return
			}
			continue
		}

		rec := o.extract(ctx, r.ref, a, content)
		sum.Provider, sum.Confidence = content.Provider, rec.ConfidenceScore
		r.attempts = append(r.attempts, sum)
		r.best = o.keepBest(r.best, onlyContact(rec))
	}
}

// onlyContact keeps the contact fields and links of rec.
func onlyContact(rec *model.ConsolidatedRecord) *model.ConsolidatedRecord {
	out := model.NewRecord(rec.Reference)
	for _, f := range model.ContactFields() {
		if v, ok := rec.Get(f); ok {
			out.Fields[f] = v
		}
	}
	out.SocialLinks = rec.SocialLinks
	out.DataSources = rec.DataSources
	return out
}

// extractLinks returns every outbound link in content.
func extractLinks(content model.RawContent) []string {
	return extract.NewDocument(content).Links()
}
