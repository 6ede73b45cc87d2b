package ingest

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// bidi and zero-width controls that survive copy/paste from marketplace
// exports and silently break header matching.
var invisibleRunes = map[rune]struct{}{
	'\u200b': {}, '\u200c': {}, '\u200d': {}, '\u200e': {}, '\u200f': {},
	'\u202a': {}, '\u202b': {}, '\u202c': {}, '\u202d': {}, '\u202e': {},
	'\ufeff': {},
}

var identifierPattern = regexp.MustCompile(`^asin_*$`)

// cleanHeader normalizes one column name: NFKC, invisible-control strip,
// whitespace collapse, lowercase, spaces to underscores.
func cleanHeader(h string) string {
	h = norm.NFKC.String(h)
	var b strings.Builder
	b.Grow(len(h))
	for _, r := range h {
		if _, invisible := invisibleRunes[r]; invisible {
			continue
		}
		b.WriteRune(r)
	}
	h = strings.Join(strings.Fields(b.String()), " ")
	h = strings.ToLower(h)
	return strings.ReplaceAll(h, " ", "_")
}

// identifierColumn returns the index of the product-identifier column among
// cleaned headers, or -1 when absent. Trailing underscores are tolerated
// because stripped trailing bidi marks leave them behind.
func identifierColumn(headers []string) int {
	for i, h := range headers {
		if identifierPattern.MatchString(h) {
			return i
		}
	}
	return -1
}
