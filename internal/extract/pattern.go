package extract

import (
	"context"
	"regexp"
	"strings"

	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/platform"
)

type fieldPattern struct {
	field model.Field
	res   []*regexp.Regexp
}

// Regexes run over the raw body. Group 1 is the value.
var rawPatterns = []fieldPattern{
	{model.FieldFollowers, []*regexp.Regexp{
		regexp.MustCompile(`(?i)"followerCount"\s*:\s*"?([\d.,]+)`),
		regexp.MustCompile(`(?i)([\d][\d.,]*\s?[KMB]?)\+?\s+followers`),
	}},
	{model.FieldEmployees, []*regexp.Regexp{
		regexp.MustCompile(`(?i)"staffCount"\s*:\s*(\d+)`),
		regexp.MustCompile(`(?i)"employeeCount"\s*:\s*"?([\d.,]+)`),
		regexp.MustCompile(`(?i)([\d][\d.,]*\s?[KM]?)\+?\s+employees on linkedin`),
	}},
	{model.FieldSize, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(\d{1,3}(?:,\d{3})?\s?-\s?\d{1,3}(?:,\d{3})*)\s+employees\b`),
		regexp.MustCompile(`(?i)\b(\d{1,3}(?:,\d{3})+\+|\d+\+)\s+employees\b`),
	}},
	{model.FieldFounded, []*regexp.Regexp{
		regexp.MustCompile(`(?i)"(?:foundedOn|foundingDate|founded)"\s*:\s*(?:\{\s*"year"\s*:\s*)?"?(\d{4})`),
	}},
	{model.FieldIndustry, []*regexp.Regexp{
		regexp.MustCompile(`(?i)"industr(?:y|ies)"\s*:\s*\[?\s*"([^"]{3,80})"`),
	}},
	{model.FieldEmail, []*regexp.Regexp{
		regexp.MustCompile(`(?i)mailto:([A-Z0-9._%+\-]+@[A-Z0-9.\-]+\.[A-Z]{2,})`),
		regexp.MustCompile(`(?i)\b([A-Z0-9._%+\-]+@[A-Z0-9.\-]+\.[A-Z]{2,})\b`),
	}},
	{model.FieldPhone, []*regexp.Regexp{
		regexp.MustCompile(`(?i)tel:(\+?[\d\-. ()]{7,20})`),
		regexp.MustCompile(`(\+\d{1,3}[\s.\-]?\(?\d{1,4}\)?[\s.\-]?\d{2,4}[\s.\-]?\d{2,4}(?:[\s.\-]?\d{2,4})?)`),
	}},
}

// Pattern applies field regexes to the raw body and scans it for
// platform URLs.
type Pattern struct{}

// NewPattern returns the raw-body regex strategy.
func NewPattern() *Pattern { return &Pattern{} }

// Method implements Strategy.
func (p *Pattern) Method() model.Method { return model.MethodPattern }

// Extract implements Strategy. The first capture longer than one
// character wins for each field.
func (p *Pattern) Extract(ctx context.Context, doc *Document) (*model.ExtractionResult, error) {
	res := model.NewExtractionResult(model.MethodPattern)
	body := doc.Content.Body

	for _, fp := range rawPatterns {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
	patterns:
		for _, re := range fp.res {
			for _, m := range re.FindAllStringSubmatch(body, 8) {
				if v := strings.TrimSpace(m[1]); len(v) > 1 {
					res.Add(fp.field, model.Text(v))
					break patterns
				}
			}
		}
	}

	for _, m := range platform.ExtractAll(body) {
		res.AddLink(model.SocialLink{Platform: m.Platform, URL: m.URL, Handle: m.Handle})
	}
	return res, nil
}
