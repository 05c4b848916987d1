package validate

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	countRe     = regexp.MustCompile(`(?i)([-−]\s*)?(\d[\d.,\s]*)\s*(k|m|b|thousand|million|billion|mil|mn|bn)?\b`)
	thousandsRe = regexp.MustCompile(`^\d{1,3}([,.]\d{3})+$`)
	yearRe      = regexp.MustCompile(`\b(1[89]\d{2}|2\d{3})\b`)
)

// Count parses human counts such as "1.2k", "3,4 M" or "12,345 followers".
// A comma followed by exactly three digits groups thousands; any other
// comma is a decimal separator.
func Count(raw string) (int64, bool) {
	idx := countRe.FindStringSubmatchIndex(raw)
	if idx == nil {
		return 0, false
	}
	// A minus sign makes the count negative unless it joins two words,
	// as in "top-5".
	if idx[2] >= 0 && (idx[2] == 0 || !isAlnum(raw[idx[2]-1])) {
		return 0, false
	}
	num := strings.Join(strings.Fields(raw[idx[4]:idx[5]]), "")
	num = strings.TrimRight(num, ".,")
	suffix := ""
	if idx[6] >= 0 {
		suffix = strings.ToLower(raw[idx[6]:idx[7]])
	}

	f, ok := parseDecimal(num, suffix != "")
	if !ok {
		return 0, false
	}
	switch suffix {
	case "k", "thousand":
		f *= 1e3
	case "m", "million", "mil", "mn":
		f *= 1e6
	case "b", "billion", "bn":
		f *= 1e9
	}
	if f < 0 || f > math.MaxInt64/2 {
		return 0, false
	}
	return int64(math.Round(f)), true
}

func isAlnum(b byte) bool {
	return b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

func parseDecimal(num string, scaled bool) (float64, bool) {
	if num == "" {
		return 0, false
	}
	hasComma := strings.Contains(num, ",")
	hasDot := strings.Contains(num, ".")

	switch {
	case hasComma && hasDot:
		// The later separator is the decimal mark.
		if strings.LastIndex(num, ",") > strings.LastIndex(num, ".") {
			num = strings.ReplaceAll(num, ".", "")
			num = strings.Replace(num, ",", ".", 1)
		} else {
			num = strings.ReplaceAll(num, ",", "")
		}
	case hasComma:
		if thousandsRe.MatchString(num) {
			num = strings.ReplaceAll(num, ",", "")
		} else {
			num = strings.Replace(num, ",", ".", 1)
		}
	case hasDot:
		if !scaled && thousandsRe.MatchString(num) {
			num = strings.ReplaceAll(num, ".", "")
		}
	}

	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Year extracts a four-digit year between 1800 and now's year.
func Year(raw string, now time.Time) (int, bool) {
	for _, m := range yearRe.FindAllString(raw, -1) {
		y, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		if y >= 1800 && y <= now.Year() {
			return y, true
		}
	}
	return 0, false
}
