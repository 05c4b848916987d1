package orchestrate

import (
	"strings"
	"sync"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/biter777/countries"
	"github.com/hashicorp/go-set/v2"

	"github.com/sells-group/enrich-cli/internal/validate"
)

const (
	coverageWeight      = 0.7
	jaroWinklerWeight   = 0.3
	countryFuzzyMinimum = 0.85
)

// Name words that carry no identity.
var stopTokens = set.From([]string{
	"inc", "llc", "ltd", "co", "corp", "corporation", "company", "gmbh", "sa", "ag", "plc", "the", "and", "of",
})

func orderedTokens(s string) []string {
	var out []string
	for _, t := range validate.Tokens(s) {
		if !stopTokens.Contains(t) {
			out = append(out, t)
		}
	}
	return out
}

func significantTokens(s string) *set.Set[string] {
	return set.From(orderedTokens(s))
}

// Similarity scores how well a search result describes name: the share
// of name's significant tokens found in the candidate text, blended with
// the Jaro-Winkler similarity of name and title. The result is in [0,1].
func Similarity(name, title, description, rawURL string) float64 {
	want := significantTokens(name)
	if want.Empty() {
		return 0
	}

	have := significantTokens(title + " " + description)
	if d, ok := validate.Domain(rawURL); ok {
		have.InsertSet(significantTokens(strings.ReplaceAll(d, ".", " ")))
		// "acmerockets.com" covers "Acme Rockets".
		if label := strings.Join(orderedTokens(name), ""); strings.HasPrefix(d, label+".") || strings.Contains(d, "."+label+".") {
			have.InsertSet(want)
		}
	}

	coverage := float64(want.Intersect(have).Size()) / float64(want.Size())
	jw := strutil.Similarity(validate.Fold(name), validate.Fold(title), metrics.NewJaroWinkler())
	return coverageWeight*coverage + jaroWinklerWeight*jw
}

var (
	countryNames     map[string]countries.CountryCode
	countryNamesOnce sync.Once
)

func loadCountryNames() map[string]countries.CountryCode {
	countryNamesOnce.Do(func() {
		all := countries.All()
		countryNames = make(map[string]countries.CountryCode, len(all))
		for _, c := range all {
			if c == countries.Unknown {
				continue
			}
			countryNames[strings.ToLower(c.Info().Name)] = c
		}
	})
	return countryNames
}

// Region resolves a free-form region (country name, alpha-2 or alpha-3
// code, or ISO 3166-2 subdivision) to its alpha-2 code and English name.
// Unknown regions return ok false.
func Region(input string) (code, name string, ok bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", "", false
	}
	if c := countries.ByName(input); c != countries.Unknown {
		return c.Alpha2(), c.Info().Name, true
	}
	if i := strings.IndexByte(input, '-'); i >= 2 && i <= 3 {
		if c := countries.ByName(input[:i]); c != countries.Unknown {
			return c.Alpha2(), c.Info().Name, true
		}
	}

	lower := strings.ToLower(input)
	metric := metrics.NewJaroWinkler()
	best, bestScore := countries.Unknown, 0.0
	for n, c := range loadCountryNames() {
		if s := strutil.Similarity(lower, n, metric); s > bestScore || (s == bestScore && c < best) {
			best, bestScore = c, s
		}
	}
	if bestScore >= countryFuzzyMinimum && best != countries.Unknown {
		return best.Alpha2(), best.Info().Name, true
	}
	return "", "", false
}
