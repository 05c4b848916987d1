// Package validate holds pure cleaners for extracted values. Every
// function returns the normalized value and whether it is usable.
package validate

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	wsRe = regexp.MustCompile(`\s+`)

	placeholders = map[string]bool{
		"":               true,
		"-":              true,
		"--":             true,
		"n/a":            true,
		"na":             true,
		"none":           true,
		"null":           true,
		"nil":            true,
		"undefined":      true,
		"unknown":        true,
		"not available":  true,
		"not specified":  true,
		"tbd":            true,
		"...":            true,
		"lorem ipsum":    true,
		"untitled":       true,
		"page not found": true,
	}
)

// CollapseSpace trims s and folds runs of whitespace into one space.
func CollapseSpace(s string) string {
	return strings.TrimSpace(wsRe.ReplaceAllString(s, " "))
}

// IsPlaceholder reports whether s is an empty or filler value.
func IsPlaceholder(s string) bool {
	return placeholders[strings.ToLower(CollapseSpace(s))]
}

// Text normalizes whitespace and rejects placeholders and one-rune values.
func Text(raw string) (string, bool) {
	s := CollapseSpace(raw)
	if IsPlaceholder(s) || len([]rune(s)) < 2 {
		return "", false
	}
	return s, true
}

// Truncate cuts s to at most n runes on a word boundary when possible.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	cut := string(r[:n])
	if i := strings.LastIndexByte(cut, ' '); i > n/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}

// Fold lowercases s and strips diacritics ("Café" -> "cafe").
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// Tokens folds s and splits it into alphanumeric words.
func Tokens(s string) []string {
	return strings.FieldsFunc(Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// SplitList splits a delimited string into cleaned, de-duplicated items.
func SplitList(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		switch r {
		case ',', ';', '|', '•', '·', '\n':
			return true
		}
		return false
	})
	return DedupeStrings(parts)
}

// DedupeStrings cleans each item and drops case-insensitive repeats,
// keeping first-seen order.
func DedupeStrings(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := Text(strings.TrimPrefix(strings.TrimSpace(it), "and "))
		if !ok {
			continue
		}
		k := Fold(s)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}
