package extract

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/platform"
	"github.com/sells-group/enrich-cli/internal/resilience"
	"github.com/sells-group/enrich-cli/internal/validate"
)

// jsonLDScriptRe finds JSON-LD blocks in non-HTML bodies (e.g. raw
// markup returned inside a markdown response).
var jsonLDScriptRe = regexp.MustCompile(`(?is)<script[^>]+application/ld\+json[^>]*>(.*?)</script>`)

// entityTypes are the schema.org types whose properties describe the entity.
var entityTypes = map[string]bool{
	"organization":            true,
	"corporation":             true,
	"localbusiness":           true,
	"onlinebusiness":          true,
	"onlinestore":             true,
	"store":                   true,
	"ngo":                     true,
	"educationalorganization": true,
	"governmentorganization":  true,
	"medicalorganization":     true,
	"newsmediaorganization":   true,
	"professionalservice":     true,
	"brand":                   true,
	"person":                  true,
}

// StructuredData reads schema.org JSON-LD blocks.
type StructuredData struct{}

// NewStructuredData returns the JSON-LD strategy.
func NewStructuredData() *StructuredData { return &StructuredData{} }

// Method implements Strategy.
func (s *StructuredData) Method() model.Method { return model.MethodStructuredData }

// Extract implements Strategy. Malformed blocks are skipped.
func (s *StructuredData) Extract(ctx context.Context, doc *Document) (*model.ExtractionResult, error) {
	res := model.NewExtractionResult(model.MethodStructuredData)

	for i, block := range jsonLDBlocks(doc) {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if !gjson.Valid(block) {
			zap.L().Debug("extract: skipping malformed json-ld block",
				zap.String("target", doc.Content.Target),
				zap.Error(resilience.NewMalformedError("json-ld", i)),
			)
			continue
		}
		walkJSONLD(gjson.Parse(block), res, false)
	}
	return res, nil
}

func jsonLDBlocks(doc *Document) []string {
	var blocks []string
	if dom := doc.HTML(); dom != nil {
		dom.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
			if b := strings.TrimSpace(s.Text()); b != "" {
				blocks = append(blocks, b)
			}
		})
		return blocks
	}
	for _, m := range jsonLDScriptRe.FindAllStringSubmatch(doc.Content.Body, -1) {
		if b := strings.TrimSpace(m[1]); b != "" {
			blocks = append(blocks, b)
		}
	}
	return blocks
}

// walkJSONLD visits every object depth-first. Properties are mapped only
// from the outermost entity-typed objects; sameAs links are collected
// everywhere.
func walkJSONLD(v gjson.Result, res *model.ExtractionResult, inEntity bool) {
	switch {
	case v.IsArray():
		v.ForEach(func(_, item gjson.Result) bool {
			walkJSONLD(item, res, inEntity)
			return true
		})
	case v.IsObject():
		entity := isEntityType(v.Get("@type"))
		if entity && !inEntity {
			mapEntity(v, res)
		}
		collectSameAs(v.Get("sameAs"), res)
		v.ForEach(func(key, child gjson.Result) bool {
			if key.String() != "sameAs" && (child.IsObject() || child.IsArray()) {
				walkJSONLD(child, res, inEntity || entity)
			}
			return true
		})
	}
}

func isEntityType(t gjson.Result) bool {
	if t.IsArray() {
		found := false
		t.ForEach(func(_, item gjson.Result) bool {
			found = entityTypes[strings.ToLower(item.String())]
			return !found
		})
		return found
	}
	return entityTypes[strings.ToLower(t.String())]
}

func mapEntity(obj gjson.Result, res *model.ExtractionResult) {
	obj.ForEach(func(key, val gjson.Result) bool {
		k := key.String()
		switch strings.ToLower(k) {
		case "address", "location":
			if hq := postalAddress(val, false); hq != "" {
				res.Add(model.FieldHeadquarters, model.Text(hq))
			}
			if full := postalAddress(val, true); full != "" {
				res.Add(model.FieldAddress, model.Text(full))
			}
		case "numberofemployees":
			if n, ok := employeeCount(val); ok {
				res.AddKey(k, model.Int(n))
			}
		case "logo", "image":
			if u := firstString(val, "url", "contentUrl"); u != "" {
				res.AddKey(k, model.Text(u))
			}
		case "contactpoint":
			forEachObject(val, func(cp gjson.Result) {
				if t := cp.Get("telephone").String(); t != "" {
					res.Add(model.FieldPhone, model.Text(t))
				}
				if e := cp.Get("email").String(); e != "" {
					res.Add(model.FieldEmail, model.Text(e))
				}
			})
		case "knowsabout", "industry":
			if val.IsArray() {
				res.AddKey(k, model.List(stringsOf(val)...))
			} else if val.Type == gjson.String {
				res.AddKey(k, model.Text(val.String()))
			}
		case "url":
			if u := val.String(); u != "" {
				if m, ok := platform.Classify(u); ok {
					res.Add(model.FieldProfileURL, model.Text(m.URL))
				} else {
					res.AddKey(k, model.Text(u))
				}
			}
		case "@type", "@context", "@id", "sameas":
		default:
			switch val.Type {
			case gjson.String:
				res.AddKey(k, model.Text(val.String()))
			case gjson.Number:
				res.AddKey(k, model.Int(val.Int()))
			}
		}
		return true
	})
}

// postalAddress flattens a schema.org address. Without street it yields
// the city-level location used for headquarters.
func postalAddress(v gjson.Result, street bool) string {
	if v.Type == gjson.String {
		return validate.CollapseSpace(v.String())
	}
	if v.IsArray() {
		return postalAddress(v.Get("0"), street)
	}
	if !v.IsObject() {
		return ""
	}
	if a := v.Get("address"); a.Exists() {
		return postalAddress(a, street)
	}
	keys := []string{"addressLocality", "addressRegion"}
	if street {
		keys = []string{"streetAddress", "addressLocality", "addressRegion", "postalCode"}
	}
	var parts []string
	for _, k := range keys {
		if s := strings.TrimSpace(v.Get(k).String()); s != "" {
			parts = append(parts, s)
		}
	}
	country := v.Get("addressCountry")
	if country.IsObject() {
		country = country.Get("name")
	}
	if s := strings.TrimSpace(country.String()); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, ", ")
}

func employeeCount(v gjson.Result) (int64, bool) {
	switch {
	case v.Type == gjson.Number:
		return v.Int(), true
	case v.Type == gjson.String:
		return validate.Count(v.String())
	case v.IsObject():
		for _, k := range []string{"value", "maxValue", "minValue"} {
			if f := v.Get(k); f.Exists() {
				return employeeCount(f)
			}
		}
	}
	return 0, false
}

func collectSameAs(v gjson.Result, res *model.ExtractionResult) {
	for _, s := range stringsOf(v) {
		if m, ok := platform.Classify(s); ok {
			res.AddLink(model.SocialLink{Platform: m.Platform, URL: m.URL, Handle: m.Handle})
		}
	}
}

func stringsOf(v gjson.Result) []string {
	if !v.Exists() {
		return nil
	}
	if !v.IsArray() {
		if v.Type == gjson.String {
			return []string{v.String()}
		}
		return nil
	}
	var out []string
	v.ForEach(func(_, item gjson.Result) bool {
		if item.Type == gjson.String {
			out = append(out, item.String())
		}
		return true
	})
	return out
}

func firstString(v gjson.Result, keys ...string) string {
	if v.Type == gjson.String {
		return v.String()
	}
	if v.IsArray() {
		return firstString(v.Get("0"), keys...)
	}
	for _, k := range keys {
		if s := v.Get(k).String(); s != "" {
			return s
		}
	}
	return ""
}

func forEachObject(v gjson.Result, fn func(gjson.Result)) {
	if v.IsArray() {
		v.ForEach(func(_, item gjson.Result) bool {
			if item.IsObject() {
				fn(item)
			}
			return true
		})
		return
	}
	if v.IsObject() {
		fn(v)
	}
}
