// Package textnorm folds free text into the accent-free, lower-case form that
// keyword matching and the catalog search_text column share.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var ligatureReplacer = strings.NewReplacer("œ", "oe", "æ", "ae")

// Fold lower-cases s and strips diacritics ("Canapé" -> "canape").
// Punctuation is kept so dimension patterns still see "x", ":" and "ø".
func Fold(s string) string {
	lowered := ligatureReplacer.Replace(strings.ToLower(s))

	// Transformers carry state, so each call builds its own chain
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, lowered)
	if err != nil {
		return lowered
	}
	return folded
}

// TokenSpace folds s and reduces it to space-separated letter/digit runs,
// padded with one space on each side: "Canapé-lit, 3 places" -> " canape lit 3 places ".
// Returns "" when s has no letters or digits.
func TokenSpace(s string) string {
	folded := Fold(s)

	var b strings.Builder
	b.Grow(len(folded) + 2)
	b.WriteByte(' ')
	lastSpace := true
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			b.WriteByte(' ')
			lastSpace = true
		}
	}
	if !lastSpace {
		b.WriteByte(' ')
	}

	out := b.String()
	if strings.TrimSpace(out) == "" {
		return ""
	}
	return out
}

// Term returns the trimmed TokenSpace form of a keyword ("Tête de lit" -> "tete de lit").
func Term(keyword string) string {
	return strings.TrimSpace(TokenSpace(keyword))
}
