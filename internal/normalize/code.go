// Package normalize canonicalizes product codes and other identifiers so values
// coming from different marketplace stores compare equal.
package normalize

import (
	"strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/width"
)

// fullwidthASCII is the U+FF01..U+FF5E block, the full-width forms of printable ASCII
var fullwidthASCII = runes.Predicate(func(r rune) bool {
	return r >= 0xFF01 && r <= 0xFF5E
})

// Code returns the canonical form of a product or catalog code: surrounding
// whitespace trimmed, full-width ASCII folded to half-width, ASCII letters upper-cased.
// Code never fails and Code(Code(x)) == Code(x).
func Code(code string) string {
	s := strings.TrimSpace(code)
	if s == "" {
		return ""
	}
	return upperASCII(Narrow(s))
}

// Narrow folds full-width ASCII characters to their half-width form and leaves
// everything else untouched.
func Narrow(s string) string {
	t := runes.If(fullwidthASCII, width.Narrow, nil)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func upperASCII(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
