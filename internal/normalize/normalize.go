// Package normalize provides Arabic-aware text normalization for indexing.
// Folding spelling variants to one canonical form means a query spelled with
// (or without) diacritics or hamza seats still retrieves the same chunks.
package normalize

import "strings"

// Tashkeel marks and the tatweel stretch character are dropped entirely.
const (
	fathatan  = 'ً'
	sukun     = 'ْ'
	superAlef = 'ٰ'
	tatweel   = 'ـ'
)

// Arabic returns text with Arabic spelling variants folded to a canonical
// form: hamza-seated and madda alef variants become bare alef, alef maqsura
// becomes yeh, teh marbuta becomes heh, waw/yeh hamza carriers become bare
// hamza, and diacritics (tashkeel) and tatweel are removed. All other runes,
// including non-Arabic scripts and control characters, pass through
// unchanged. The function is pure, deterministic, and idempotent; empty
// input yields empty output.
func Arabic(text string) string {
	if text == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r >= fathatan && r <= sukun, r == superAlef, r == tatweel:
			// drop
		case r == 'أ', r == 'إ', r == 'آ', r == 'ٱ':
			b.WriteRune('ا') // alef variants -> alef
		case r == 'ى':
			b.WriteRune('ي') // alef maqsura -> yeh
		case r == 'ة':
			b.WriteRune('ه') // teh marbuta -> heh
		case r == 'ؤ', r == 'ئ':
			b.WriteRune('ء') // hamza on waw/yeh -> hamza
		case r == 'گ':
			b.WriteRune('ك') // gaf -> kaf
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
