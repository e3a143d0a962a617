// Package grid implements the reconciliation grid engine: header
// normalization, column catalogs, cell resolution over an edit overlay,
// derived field computation and per-tab row selection. All state is owned
// by explicit values passed in by the caller; the package keeps nothing
// global.
package grid

import (
	"strings"
	"unicode"
)

// quoteGlyphs are the quote characters upstream exports wrap header parts
// in, in both ASCII and typographic forms.
const quoteGlyphs = "\"'`„“”‚‘’"

// Normalize canonicalizes a column header so differently decorated exports
// of the same logical column compare equal: a matched [ ] pair is removed,
// quote glyphs are dropped, whitespace runs collapse to a single space and
// the result is trimmed. Case is preserved. Normalize is idempotent.
func Normalize(header string) string {
	s := strings.TrimSpace(header)
	for len(s) >= 2 && s[0] == '[' && s[len(s)-1] == ']' {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		switch {
		case strings.ContainsRune(quoteGlyphs, r):
		case unicode.IsSpace(r):
			pendingSpace = true
		default:
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SameColumn reports whether two headers denote the same logical column.
func SameColumn(a, b string) bool {
	if a == b {
		return true
	}
	return Normalize(a) == Normalize(b)
}
