package dataset

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Score bounds; parsed scores outside them are treated as missing.
const (
	MinScore = 1.0
	MaxScore = 10.0
)

// ParseFloat coerces numeric text. Empty text, placeholders such as "Unknown" or
// "N/A", NaN and infinities all map to nil.
func ParseFloat(s string) *float64 {
	raw := strings.TrimSpace(strings.ReplaceAll(s, "\u00A0", " "))
	if raw == "" {
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// ParseScore is ParseFloat restricted to [MinScore, MaxScore].
func ParseScore(s string) *float64 {
	f := ParseFloat(s)
	if f == nil || *f < MinScore || *f > MaxScore {
		return nil
	}
	return f
}

// ParseCount coerces a non-negative integer count. Thousands separators are
// stripped; fractional, negative and unparseable values map to nil.
func ParseCount(s string) *int {
	raw := strings.TrimSpace(s)
	raw = strings.NewReplacer(",", "", "_", "", " ", "", "\u00A0", "").Replace(raw)
	if raw == "" {
		return nil
	}
	if n, err := strconv.Atoi(raw); err == nil {
		if n < 0 {
			return nil
		}
		return &n
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return nil
	}
	n := int(f)
	return &n
}

// a four-digit run not touching other digits
var yearRE = regexp.MustCompile(`(?:^|[^0-9])([0-9]{4})(?:[^0-9]|$)`)

// ExtractYear returns the first run of exactly four digits in aired text, or nil.
func ExtractYear(aired string) *int {
	m := yearRE.FindStringSubmatch(aired)
	if len(m) < 2 {
		return nil
	}
	y, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &y
}

// SplitGenres splits a comma-separated genre list into labels. The result is
// never nil and never contains empty labels; duplicates keep their first position.
func SplitGenres(raw string) []string {
	out := []string{}
	if strings.TrimSpace(raw) == "" {
		return out
	}
	seen := map[string]struct{}{}
	for _, part := range strings.Split(raw, ",") {
		g := strings.TrimSpace(part)
		if g == "" {
			continue
		}
		if _, dup := seen[g]; dup {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}
	return out
}
