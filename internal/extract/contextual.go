package extract

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/platform"
	"github.com/sells-group/enrich-cli/internal/validate"
)

// Cue-anchored regexes over the visible text.
var contextualPatterns = []fieldPattern{
	{model.FieldFounded, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:founded|established|incorporated|started)\b(?:\s+in)?\s+(\d{4})`),
		regexp.MustCompile(`(?i)\b(?:since|est\.?)\s+(\d{4})`),
	}},
	{model.FieldHeadquarters, []*regexp.Regexp{
		regexp.MustCompile(`\b(?i:headquarter(?:s|ed)?)\b\s*(?:(?i:in)|:)?\s*([A-Z][\w'.\-]*(?: [A-Z][\w'.\-]*)*(?:,\s*[A-Z][\w'.\-]*(?: [A-Z][\w'.\-]*)*){0,2})`),
		regexp.MustCompile(`\b(?i:based in)\s+([A-Z][\w'.\-]*(?: [A-Z][\w'.\-]*)*(?:,\s*[A-Z][\w'.\-]*(?: [A-Z][\w'.\-]*)*){0,2})`),
	}},
	{model.FieldIndustry, []*regexp.Regexp{
		regexp.MustCompile(`(?im)^\s*industry\s*[:\n]\s*([^\n]{3,80})$`),
	}},
	{model.FieldSize, []*regexp.Regexp{
		regexp.MustCompile(`(?im)^\s*company size\s*[:\n]\s*([^\n]{2,40})$`),
	}},
	{model.FieldSpecialties, []*regexp.Regexp{
		regexp.MustCompile(`(?im)^\s*specialt(?:ies|y)\s*[:\n]\s*([^\n]{3,400})$`),
	}},
	{model.FieldWebsite, []*regexp.Regexp{
		regexp.MustCompile(`(?im)^\s*website\s*[:\n]\s*(\S{4,200})$`),
	}},
	{model.FieldPhone, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:call us|phone|tel(?:ephone)?|ph)\b\.?\s*(?:at|:)?\s*(\+?[\d][\d\s().\-]{6,20}\d)`),
	}},
	{model.FieldEmail, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:email|e-mail|write to)\b\s*(?:us)?\s*(?:at|:)?\s*([A-Z0-9._%+\-]+@[A-Z0-9.\-]+\.[A-Z]{2,})`),
	}},
	{model.FieldAddress, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\baddress\s*:\s*([^\n]{8,160})`),
		regexp.MustCompile(`(\d{1,6}\s+[A-Z][\w.\- ]{2,40}\s(?:Street|St\.?|Avenue|Ave\.?|Road|Rd\.?|Boulevard|Blvd\.?|Lane|Ln\.?|Drive|Dr\.?|Way|Suite|Place|Pl\.?)\b[^\n]{0,80})`),
	}},
}

// "follow us on instagram @acme", "twitter: @acme".
var socialCueRe = regexp.MustCompile(`(?i)\b(instagram|twitter|x|tiktok|youtube|facebook|telegram|github)\b\s*[:\-]?\s*@([A-Za-z0-9_.]{2,40})`)

var cuePlatforms = map[string]model.Platform{
	"instagram": model.PlatformInstagram,
	"twitter":   model.PlatformTwitter,
	"x":         model.PlatformTwitter,
	"tiktok":    model.PlatformTikTok,
	"youtube":   model.PlatformYouTube,
	"facebook":  model.PlatformFacebook,
	"telegram":  model.PlatformTelegram,
	"github":    model.PlatformGitHub,
}

// Contextual mines visible free text for cue phrases.
type Contextual struct {
	now func() time.Time
}

// NewContextual returns the free-text strategy. now bounds founding years.
func NewContextual(now func() time.Time) *Contextual {
	if now == nil {
		now = time.Now
	}
	return &Contextual{now: now}
}

// Method implements Strategy.
func (c *Contextual) Method() model.Method { return model.MethodContextual }

// Extract implements Strategy.
func (c *Contextual) Extract(ctx context.Context, doc *Document) (*model.ExtractionResult, error) {
	res := model.NewExtractionResult(model.MethodContextual)
	text := doc.Text()
	if text == "" {
		return res, nil
	}

	for _, fp := range contextualPatterns {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
	patterns:
		for _, re := range fp.res {
			for _, m := range re.FindAllStringSubmatch(text, 8) {
				v := strings.TrimRight(strings.TrimSpace(m[1]), ".,;")
				if fp.field == model.FieldFounded {
					y, ok := validate.Year(v, c.now())
					if !ok {
						continue
					}
					v = strconv.Itoa(y)
				}
				if len(v) > 1 {
					res.Add(fp.field, model.Text(v))
					break patterns
				}
			}
		}
	}

	for _, m := range socialCueRe.FindAllStringSubmatch(text, -1) {
		p := cuePlatforms[strings.ToLower(m[1])]
		if u, ok := platform.Build(p, m[2]); ok {
			res.AddLink(model.SocialLink{Platform: p, URL: u, Handle: strings.TrimRight(m[2], ".")})
		}
	}
	for _, m := range platform.ExtractAll(text) {
		res.AddLink(model.SocialLink{Platform: m.Platform, URL: m.URL, Handle: m.Handle})
	}
	return res, nil
}
