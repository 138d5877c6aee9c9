package scoring

import (
	"regexp"
	"strings"
)

// localePrefix matches taxonomy prefixes such as "en:" or "fr:".
var localePrefix = regexp.MustCompile(`^[a-z]{2,3}:`)

// normalizeTag lowercases a taxonomy tag and strips its locale prefix.
func normalizeTag(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	return localePrefix.ReplaceAllString(tag, "")
}

// countryTokens splits a comma separated country list into normalized
// country names: "en:united-states, Mexico" -> ["united states", "mexico"].
func countryTokens(s string) []string {
	var tokens []string
	for _, part := range strings.Split(s, ",") {
		tok := normalizeTag(part)
		tok = strings.NewReplacer("-", " ", "_", " ").Replace(tok)
		tok = strings.TrimSpace(tok)
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

func containsAny(s string, keys []string) bool {
	for _, k := range keys {
		if k != "" && strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func anyTokenContains(tokens []string, keys []string) bool {
	for _, tok := range tokens {
		if containsAny(tok, keys) {
			return true
		}
	}
	return false
}

// firstAdjustment returns the first entry whose key occurs in s.
func firstAdjustment(s string, table []Adjustment) (Adjustment, bool) {
	for _, a := range table {
		if a.Key != "" && strings.Contains(s, a.Key) {
			return a, true
		}
	}
	return Adjustment{}, false
}

func clamp(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// clampScore bounds a score to [0,100].
func clampScore(x int) int {
	return clamp(x, 0, 100)
}
