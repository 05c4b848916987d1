package extract

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/platform"
	"github.com/sells-group/enrich-cli/internal/validate"
)

// selector reads text, or an attribute when attr is set.
type selector struct {
	css  string
	attr string
}

type fieldSelectors struct {
	field     model.Field
	selectors []selector
}

// Ordered selector lists per field. The first selector yielding a usable
// value wins for that field.
var structuralSelectors = []fieldSelectors{
	{model.FieldName, []selector{
		{css: `[data-test-id="about-us__name"]`},
		{css: `h1.top-card-layout__title`},
		{css: `h1.org-top-card-summary__title`},
		{css: `[itemtype*="Organization"] [itemprop="name"]`},
		{css: `[itemprop="name"]`},
		{css: `.company-name`},
	}},
	{model.FieldDescription, []selector{
		{css: `[data-test-id="about-us__description"]`},
		{css: `p.about-us__description`},
		{css: `section.about-us p`},
		{css: `[itemtype*="Organization"] [itemprop="description"]`},
		{css: `[itemprop="description"]`},
	}},
	{model.FieldIndustry, []selector{
		{css: `[data-test-id="about-us__industry"] dd`},
		{css: `[data-test-id="about-us__industry"]`},
		{css: `h2.top-card-layout__headline`},
		{css: `[itemprop="industry"]`},
	}},
	{model.FieldSize, []selector{
		{css: `[data-test-id="about-us__size"] dd`},
		{css: `[data-test-id="about-us__size"]`},
	}},
	{model.FieldHeadquarters, []selector{
		{css: `[data-test-id="about-us__headquarters"] dd`},
		{css: `[data-test-id="about-us__headquarters"]`},
		{css: `[itemprop="address"]`},
	}},
	{model.FieldWebsite, []selector{
		{css: `[data-test-id="about-us__website"] a`, attr: "href"},
		{css: `a[data-tracking-control-name="about_website"]`, attr: "href"},
		{css: `[itemprop="url"]`, attr: "href"},
	}},
	{model.FieldFounded, []selector{
		{css: `[data-test-id="about-us__foundedOn"] dd`},
		{css: `[data-test-id="about-us__foundedOn"]`},
		{css: `[itemprop="foundingDate"]`},
	}},
	{model.FieldSpecialties, []selector{
		{css: `[data-test-id="about-us__specialties"] dd`},
		{css: `[data-test-id="about-us__specialties"]`},
	}},
	{model.FieldFollowers, []selector{
		{css: `.top-card-layout__first-subline`},
		{css: `[data-test-id="followers-count"]`},
	}},
	{model.FieldEmployees, []selector{
		{css: `[itemprop="numberOfEmployees"]`},
		{css: `a[data-tracking-control-name*="employees"]`},
	}},
	{model.FieldPhone, []selector{
		{css: `a[href^="tel:"]`, attr: "href"},
		{css: `[itemprop="telephone"]`},
	}},
	{model.FieldEmail, []selector{
		{css: `a[href^="mailto:"]`, attr: "href"},
		{css: `[itemprop="email"]`},
	}},
	{model.FieldAddress, []selector{
		{css: `address`},
		{css: `[itemprop="streetAddress"]`},
	}},
	{model.FieldLogo, []selector{
		{css: `img.top-card-layout__entity-image`, attr: "src"},
		{css: `[itemprop="logo"]`, attr: "src"},
		{css: `img[alt*="logo"]`, attr: "src"},
	}},
}

// Structural reads fields from known page selectors and collects
// platform links from anchors.
type Structural struct{}

// NewStructural returns the DOM selector strategy.
func NewStructural() *Structural { return &Structural{} }

// Method implements Strategy.
func (s *Structural) Method() model.Method { return model.MethodStructural }

// Extract implements Strategy.
func (s *Structural) Extract(ctx context.Context, doc *Document) (*model.ExtractionResult, error) {
	res := model.NewExtractionResult(model.MethodStructural)
	dom := doc.HTML()
	if dom == nil {
		return res, nil
	}

	for _, fs := range structuralSelectors {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if v, ok := firstMatch(doc, fs.selectors); ok {
			res.Add(fs.field, model.Text(v))
		}
	}

	dom.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if m, ok := platform.Classify(doc.resolve(href)); ok {
			res.AddLink(model.SocialLink{Platform: m.Platform, URL: m.URL, Handle: m.Handle})
		}
	})
	return res, nil
}

func firstMatch(doc *Document, sels []selector) (string, bool) {
	for _, sel := range sels {
		var found string
		doc.HTML().Find(sel.css).EachWithBreak(func(_ int, n *goquery.Selection) bool {
			var raw string
			if sel.attr != "" {
				raw, _ = n.Attr(sel.attr)
				switch {
				case raw == "" && sel.attr == "href":
					raw = n.Text()
				case raw != "" && (sel.attr == "href" || sel.attr == "src"):
					if !hasScheme(raw, "tel:", "mailto:") {
						raw = doc.resolve(raw)
					}
				}
			} else {
				raw = n.Text()
			}
			if v, ok := validate.Text(raw); ok {
				found = v
				return false
			}
			return true
		})
		if found != "" {
			return found, true
		}
	}
	return "", false
}

func hasScheme(s string, schemes ...string) bool {
	for _, p := range schemes {
		if len(s) >= len(p) && strings.EqualFold(s[:len(p)], p) {
			return true
		}
	}
	return false
}
