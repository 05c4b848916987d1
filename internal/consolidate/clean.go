package consolidate

import (
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/platform"
	"github.com/sells-group/enrich-cli/internal/validate"
)

// clean applies the field's cleaner to v. The returned value keeps v's
// provenance and is in the field's canonical shape.
func clean(spec model.FieldSpec, v model.FieldValue, now time.Time) (model.FieldValue, bool) {
	out := model.FieldValue{Key: v.Key, Method: v.Method, Source: v.Source}

	switch spec.Kind {
	case model.KindText:
		s, ok := validate.Text(v.String())
		if !ok {
			return out, false
		}
		out.Kind, out.Text = model.ValueText, s

	case model.KindList:
		var items []string
		if v.Kind == model.ValueList {
			for _, it := range v.List {
				items = append(items, validate.SplitList(it)...)
			}
			items = validate.DedupeStrings(items)
		} else {
			items = validate.SplitList(v.String())
		}
		if len(items) == 0 {
			return out, false
		}
		out.Kind, out.List = model.ValueList, items

	case model.KindCount:
		n, ok := countOf(v)
		if !ok {
			return out, false
		}
		out.Kind, out.Int = model.ValueInt, n

	case model.KindYear:
		raw := v.Text
		if v.Kind == model.ValueInt {
			raw = strconv.FormatInt(v.Int, 10)
		}
		y, ok := validate.Year(raw, now)
		if !ok {
			return out, false
		}
		out.Kind, out.Int = model.ValueInt, int64(y)

	case model.KindURL:
		u, ok := cleanURL(spec.Field, v.String())
		if !ok {
			return out, false
		}
		out.Kind, out.Text = model.ValueText, u

	case model.KindEmail:
		s, ok := validate.Email(v.String())
		if !ok {
			return out, false
		}
		out.Kind, out.Text = model.ValueText, s

	case model.KindPhone:
		s, ok := validate.Phone(v.String())
		if !ok {
			return out, false
		}
		out.Kind, out.Text = model.ValueText, s

	default:
		return out, false
	}
	return out, true
}

func countOf(v model.FieldValue) (int64, bool) {
	switch v.Kind {
	case model.ValueInt:
		return v.Int, v.Int >= 0
	case model.ValueText:
		return validate.Count(v.Text)
	}
	return 0, false
}

// cleanURL normalizes u. A website must not point at a social platform and
// a profile URL must name a specific account on one.
func cleanURL(f model.Field, raw string) (string, bool) {
	switch f {
	case model.FieldProfileURL:
		m, ok := platform.Classify(raw)
		if !ok || !platform.IsProfilePlatform(m.Platform) {
			return "", false
		}
		return m.URL, true
	case model.FieldWebsite:
		u, ok := validate.URL(raw)
		if !ok {
			return "", false
		}
		if _, social := platform.HostPlatform(u); social {
			return "", false
		}
		return u, true
	default:
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(raw)), "data:") {
			return "", false
		}
		return validate.URL(raw)
	}
}
