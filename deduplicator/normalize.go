package deduplicator

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// NormalizeTitle returns the comparison form of a title: NFKC normalized,
// lowercased, punctuation removed and whitespace collapsed to single spaces.
func NormalizeTitle(title string) string {
	if title == "" {
		return ""
	}
	normed := norm.NFKC.String(title)
	normed = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return ' '
		}
		return unicode.ToLower(r)
	}, normed)
	return strings.Join(strings.Fields(normed), " ")
}
