package orchestrate

import (
	"context"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/enrich-cli/internal/acquire"
	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/platform"
	"github.com/sells-group/enrich-cli/internal/validate"
)

// AttemptKind says where an attempt's target came from.
type AttemptKind string

const (
	KindProfile    AttemptKind = "profile"
	KindDiscovered AttemptKind = "discovered_profile"
	KindWebsite    AttemptKind = "website"
	KindSearch     AttemptKind = "search"
	KindPhone      AttemptKind = "phone"
	KindContact    AttemptKind = "contact_page"
)

// Attempt is one planned acquisition. Search attempts carry a Query and
// expand into website or profile attempts when reached.
type Attempt struct {
	Kind   AttemptKind
	Target string
	Query  string
	Region string
	Score  float64
}

func (a Attempt) key() string {
	if a.Kind == KindSearch {
		return "search:" + strings.ToLower(a.Query)
	}
	return strings.ToLower(a.Target)
}

// Plan orders the attempts for ref: a given profile URL first, then the
// website from the domain or a non-freemail email, then a name search,
// then the phone number.
func Plan(ref model.EntityReference) []Attempt {
	var out []Attempt
	seen := make(map[string]bool)
	add := func(a Attempt) {
		if k := a.key(); !seen[k] {
			seen[k] = true
			out = append(out, a)
		}
	}

	if ref.ProfileURL != "" {
		if m, ok := platform.Classify(ref.ProfileURL); ok {
			add(Attempt{Kind: KindProfile, Target: m.URL})
		} else if u, ok := validate.URL(ref.ProfileURL); ok {
			add(Attempt{Kind: KindWebsite, Target: u})
		}
	}

	if d, ok := validate.Domain(ref.Domain); ok {
		add(Attempt{Kind: KindWebsite, Target: "https://" + d})
	}
	if email, ok := validate.Email(ref.Email); ok {
		d := email[strings.LastIndexByte(email, '@')+1:]
		if !validate.FreemailDomains[d] {
			add(Attempt{Kind: KindWebsite, Target: "https://" + d})
		}
	}

	region, regionName, _ := Region(ref.Region)
	if name, ok := validate.Text(ref.Name); ok {
		q := name
		switch {
		case regionName != "":
			q += " " + regionName
		case strings.TrimSpace(ref.Region) != "":
			q += " " + strings.Join(strings.Fields(ref.Region), " ")
		}
		add(Attempt{Kind: KindSearch, Query: q, Region: region})
	}

	if phone, ok := validate.Phone(ref.Phone); ok {
		if u, ok := platform.Build(model.PlatformWhatsApp, phone); ok {
			add(Attempt{Kind: KindPhone, Target: u})
		}
		add(Attempt{Kind: KindSearch, Query: phone, Region: region})
	}
	return out
}

// candidates runs a search attempt and keeps the best-matching results.
func (o *Orchestrator) candidates(ctx context.Context, ref model.EntityReference, a Attempt) ([]Attempt, error) {
	results, err := o.searcher.Search(ctx, a.Query, acquire.SearchOptions{Region: a.Region, Limit: o.cfg.SearchLimit})
	if err != nil {
		return nil, err
	}

	phoneDigits := ""
	if p, ok := validate.Phone(ref.Phone); ok && a.Query == p {
		phoneDigits = validate.Digits(p)
	}

	var out []Attempt
	for _, r := range results {
		u, ok := validate.URL(r.URL)
		if !ok {
			continue
		}
		var s float64
		if phoneDigits != "" {
			s = phoneMatch(phoneDigits, r)
		} else {
			s = Similarity(ref.Name, r.Title, r.Description, u)
		}
		if s < o.cfg.SearchThreshold {
			zap.L().Debug("orchestrate: discarding search candidate",
				zap.String("url", u),
				zap.String("title", r.Title),
				zap.Float64("similarity", s),
			)
			continue
		}
		kind := KindWebsite
		if m, ok := platform.Classify(u); ok && platform.IsProfilePlatform(m.Platform) {
			kind, u = KindProfile, m.URL
		} else if _, isPlatform := platform.HostPlatform(u); isPlatform {
			continue
		}
		out = append(out, Attempt{Kind: kind, Target: u, Score: s})
	}

	slices.SortStableFunc(out, func(x, y Attempt) int {
		switch {
		case x.Score > y.Score:
			return -1
		case x.Score < y.Score:
			return 1
		}
		return 0
	})
	if len(out) > o.cfg.MaxSearchCandidates {
		out = out[:o.cfg.MaxSearchCandidates]
	}
	return out, nil
}

// phoneMatch is 1 when the result text carries the number's national part.
func phoneMatch(digits string, r acquire.SearchResult) float64 {
	if len(digits) > 9 {
		digits = digits[len(digits)-9:]
	}
	if strings.Contains(validate.Digits(r.Title+" "+r.Description), digits) {
		return 1
	}
	return 0
}

// discover returns profile attempts for platform links found in content,
// at most limit of them, in platform order.
func discover(content model.RawContent, rec *model.ConsolidatedRecord, limit int) []Attempt {
	if limit <= 0 {
		return nil
	}
	var urls []string
	if rec != nil {
		for _, l := range rec.SocialLinks {
			urls = append(urls, l.URL)
		}
	}
	urls = append(urls, extractLinks(content)...)

	byPlatform := make(map[model.Platform]string)
	for _, u := range urls {
		m, ok := platform.Classify(u)
		if !ok || !platform.IsProfilePlatform(m.Platform) {
			continue
		}
		if _, taken := byPlatform[m.Platform]; !taken {
			byPlatform[m.Platform] = m.URL
		}
	}

	var out []Attempt
	for _, p := range platform.All() {
		if u, ok := byPlatform[p]; ok && len(out) < limit {
			out = append(out, Attempt{Kind: KindDiscovered, Target: u})
		}
	}
	return out
}
