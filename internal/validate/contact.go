package validate

import (
	"regexp"
	"strings"
)

var (
	emailRe  = regexp.MustCompile(`(?i)^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)
	handleRe = regexp.MustCompile(`^[A-Za-z0-9._\-]{1,100}$`)

	// Addresses that appear in page templates rather than belonging to
	// the entity.
	junkEmailDomains = map[string]bool{
		"example.com":    true,
		"sentry.io":      true,
		"wixpress.com":   true,
		"domain.com":     true,
		"email.com":      true,
		"yourdomain.com": true,
	}

	// FreemailDomains never identify an organization's website.
	FreemailDomains = map[string]bool{
		"gmail.com":      true,
		"googlemail.com": true,
		"yahoo.com":      true,
		"hotmail.com":    true,
		"outlook.com":    true,
		"live.com":       true,
		"icloud.com":     true,
		"aol.com":        true,
		"proton.me":      true,
		"protonmail.com": true,
		"gmx.com":        true,
		"mail.ru":        true,
		"yandex.ru":      true,
	}
)

// Email lowercases and checks an address, dropping template addresses.
func Email(raw string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "mailto:")))
	if i := strings.IndexByte(s, '?'); i >= 0 {
		s = s[:i]
	}
	if !emailRe.MatchString(s) {
		return "", false
	}
	domain := s[strings.LastIndexByte(s, '@')+1:]
	if junkEmailDomains[domain] {
		return "", false
	}
	for _, ext := range []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp"} {
		if strings.HasSuffix(s, ext) {
			return "", false
		}
	}
	return s, true
}

// Phone keeps digits and a leading plus. It accepts 7 to 15 digits.
func Phone(raw string) (string, bool) {
	s := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "tel:"))
	var b strings.Builder
	digits := 0
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			digits++
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ', r == '-', r == '.', r == '(', r == ')', r == '/', r == '\u00a0':
		default:
			return "", false
		}
	}
	if digits < 7 || digits > 15 {
		return "", false
	}
	return b.String(), true
}

// Digits returns only the digits of s.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Handle strips a leading "@" and checks the handle charset.
func Handle(raw string) (string, bool) {
	s := strings.TrimPrefix(strings.TrimSpace(raw), "@")
	if !handleRe.MatchString(s) || strings.Trim(s, "._-") == "" {
		return "", false
	}
	return s, true
}
