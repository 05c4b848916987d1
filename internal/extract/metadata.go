package extract

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/platform"
	"github.com/sells-group/enrich-cli/internal/validate"
)

var titleSepRe = regexp.MustCompile(`\s+[|–—·:\-]\s+|\s*[|–—·]\s*`)

// Title segments that never name the entity.
var genericTitleSegments = map[string]bool{
	"home":             true,
	"homepage":         true,
	"home page":        true,
	"welcome":          true,
	"official site":    true,
	"official website": true,
	"linkedin":         true,
	"instagram":        true,
	"facebook":         true,
	"x":                true,
	"twitter":          true,
	"about":            true,
	"about us":         true,
	"contact":          true,
	"contact us":       true,
}

// CleanTitle picks the entity name out of a page title such as
// "Example Corp – Official Site" or "Acme | LinkedIn".
func CleanTitle(title string) string {
	for _, seg := range titleSepRe.Split(validate.CollapseSpace(title), -1) {
		seg = strings.TrimSpace(seg)
		if seg == "" || genericTitleSegments[strings.ToLower(seg)] {
			continue
		}
		if strings.HasPrefix(strings.ToLower(seg), "welcome to ") {
			seg = strings.TrimSpace(seg[len("welcome to "):])
		}
		return seg
	}
	return ""
}

// Metadata reads <title>, <meta> and <link> tags.
type Metadata struct{}

// NewMetadata returns the page metadata strategy.
func NewMetadata() *Metadata { return &Metadata{} }

// Method implements Strategy.
func (m *Metadata) Method() model.Method { return model.MethodMetadata }

// Extract implements Strategy. Markdown content contributes only the
// provider-reported title.
func (m *Metadata) Extract(_ context.Context, doc *Document) (*model.ExtractionResult, error) {
	res := model.NewExtractionResult(model.MethodMetadata)

	dom := doc.HTML()
	if dom == nil {
		if name := CleanTitle(doc.Content.Title); name != "" {
			res.Add(model.FieldName, model.Text(name))
		}
		return res, nil
	}

	meta := metaTags(dom)

	if v := meta["og:site_name"]; v != "" && !genericTitleSegments[strings.ToLower(v)] {
		res.AddKey("og:site_name", model.Text(v))
	}
	for _, k := range []string{"og:title", "twitter:title"} {
		if v := CleanTitle(meta[k]); v != "" {
			res.Add(model.FieldName, model.Text(v))
		}
	}
	if v := CleanTitle(doc.Title()); v != "" {
		res.Add(model.FieldName, model.Text(v))
	}
	if v := meta["application-name"]; v != "" {
		res.Add(model.FieldName, model.Text(v))
	}

	for _, k := range []string{"description", "og:description", "twitter:description"} {
		if v := meta[k]; v != "" {
			res.Add(model.FieldDescription, model.Text(v))
		}
	}

	canonical, _ := dom.Find(`link[rel="canonical"]`).First().Attr("href")
	for _, u := range []string{canonical, meta["og:url"]} {
		if u == "" {
			continue
		}
		u = doc.resolve(u)
		if pm, ok := platform.Classify(u); ok {
			res.Add(model.FieldProfileURL, model.Text(pm.URL))
			res.AddLink(model.SocialLink{Platform: pm.Platform, URL: pm.URL, Handle: pm.Handle})
		} else {
			res.Add(model.FieldWebsite, model.Text(u))
		}
	}

	for _, k := range []string{"og:logo", "og:image", "twitter:image"} {
		if v := meta[k]; v != "" {
			res.Add(model.FieldLogo, model.Text(doc.resolve(v)))
		}
	}

	for _, k := range []string{"og:email", "email"} {
		if v := meta[k]; v != "" {
			res.Add(model.FieldEmail, model.Text(v))
		}
	}
	if v := meta["og:phone_number"]; v != "" {
		res.Add(model.FieldPhone, model.Text(v))
	}
	if hq := joinNonEmpty(meta["og:locality"], meta["og:region"], meta["og:country-name"]); hq != "" {
		res.Add(model.FieldHeadquarters, model.Text(hq))
	}
	if v := meta["og:street-address"]; v != "" {
		res.Add(model.FieldAddress, model.Text(joinNonEmpty(v, meta["og:locality"], meta["og:postal-code"])))
	}

	for _, k := range []string{"twitter:site", "twitter:creator"} {
		if u, ok := platform.Build(model.PlatformTwitter, meta[k]); ok {
			res.AddLink(model.SocialLink{Platform: model.PlatformTwitter, URL: u, Handle: strings.TrimPrefix(meta[k], "@")})
		}
	}
	for _, k := range []string{"article:publisher", "og:see_also"} {
		if pm, ok := platform.Classify(meta[k]); ok {
			res.AddLink(model.SocialLink{Platform: pm.Platform, URL: pm.URL, Handle: pm.Handle})
		}
	}
	return res, nil
}

// metaTags indexes <meta> content by lowercased name or property.
// The first occurrence of each key wins.
func metaTags(dom *goquery.Document) map[string]string {
	out := make(map[string]string)
	dom.Find("meta").Each(func(_ int, s *goquery.Selection) {
		key, ok := s.Attr("property")
		if !ok || key == "" {
			key, _ = s.Attr("name")
		}
		key = strings.ToLower(strings.TrimSpace(key))
		content, _ := s.Attr("content")
		content = validate.CollapseSpace(content)
		if key == "" || content == "" {
			return
		}
		if _, seen := out[key]; !seen {
			out[key] = content
		}
	})
	return out
}

func joinNonEmpty(parts ...string) string {
	var keep []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			keep = append(keep, p)
		}
	}
	return strings.Join(keep, ", ")
}
