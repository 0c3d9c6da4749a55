// Package textkit provides text normalization utilities used for
// deduplication keys. This is part of the platform layer and contains no
// business logic.
package textkit

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var diacriticStripper = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// StripDiacritics removes combining marks, so "Müller" becomes "Muller".
func StripDiacritics(s string) string {
	out, _, err := transform.String(diacriticStripper, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeKey produces a dedup key: lowercased, diacritics stripped, runs of
// non-alphanumerics collapsed to single hyphens, no leading/trailing hyphen.
// "Blue Harbor Health Alliance" -> "blue-harbor-health-alliance".
func NormalizeKey(s string) string {
	lowered := strings.ToLower(StripDiacritics(strings.TrimSpace(s)))

	var b strings.Builder
	b.Grow(len(lowered))
	lastHyphen := true // suppress a leading hyphen
	for _, r := range lowered {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastHyphen = false
			continue
		}
		if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}

	return strings.TrimSuffix(b.String(), "-")
}

// NormalizeEmail lowers and trims an email address for case-insensitive matching.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
