package validate

import (
	"net/url"
	"strings"
)

// trackingParams are dropped from every normalized URL, along with the
// utm_* and ref* families.
var trackingParams = map[string]bool{
	"fbclid":  true,
	"gclid":   true,
	"igshid":  true,
	"mc_cid":  true,
	"mc_eid":  true,
	"si":      true,
	"trk":     true,
	"_ga":     true,
	"hl":      true,
}

// URL normalizes raw into an absolute http(s) URL: scheme added when
// missing, host lowercased, fragment and tracking parameters removed,
// trailing slash trimmed.
func URL(raw string) (string, bool) {
	u, ok := ParseURL(raw)
	if !ok {
		return "", false
	}
	return u.String(), true
}

// ParseURL is URL returning the parsed form.
func ParseURL(raw string) (*url.URL, bool) {
	s := strings.TrimSpace(raw)
	if s == "" || strings.ContainsAny(s, " \t\n<>\"") {
		return nil, false
	}
	if strings.HasPrefix(s, "//") {
		s = "https:" + s
	}
	lower := strings.ToLower(s)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		if strings.Contains(s, "://") || strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "tel:") || strings.HasPrefix(lower, "javascript:") {
			return nil, false
		}
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return nil, false
	}
	host := strings.ToLower(u.Hostname())
	if !validHost(host) {
		return nil, false
	}
	if p := u.Port(); p != "" {
		u.Host = host + ":" + p
	} else {
		u.Host = host
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil
	StripTracking(u)
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	return u, true
}

// StripTracking removes utm_*, ref* and known click-id parameters in place.
func StripTracking(u *url.URL) {
	if u.RawQuery == "" {
		return
	}
	q := u.Query()
	for k := range q {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "utm_") || strings.HasPrefix(lk, "ref") || trackingParams[lk] {
			q.Del(k)
		}
	}
	u.RawQuery = q.Encode()
}

// Domain returns the bare host of raw without a leading "www.".
// raw may be a URL, a host, or an email address.
func Domain(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if i := strings.LastIndexByte(s, '@'); i >= 0 && !strings.Contains(s, "/") {
		s = s[i+1:]
	}
	u, ok := ParseURL(s)
	if !ok {
		return "", false
	}
	return strings.TrimPrefix(u.Hostname(), "www."), true
}

func validHost(host string) bool {
	if host == "" || !strings.Contains(host, ".") || strings.HasPrefix(host, ".") || strings.HasSuffix(host, ".") {
		return false
	}
	for _, r := range host {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.':
		default:
			return false
		}
	}
	tld := host[strings.LastIndexByte(host, '.')+1:]
	return len(tld) >= 2
}
