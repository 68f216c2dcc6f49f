package usecase

import (
	"slices"
	"strings"

	"github.com/shopassist/backend/internal/textnorm"
)

// Shared with the catalog repository, which stores the same form in search_text
var (
	foldText   = textnorm.Fold
	tokenSpace = textnorm.TokenSpace
)

// keywordPattern turns a table keyword into its whole-word pattern (" tete de lit ").
func keywordPattern(keyword string) string {
	term := textnorm.Term(keyword)
	if term == "" {
		return ""
	}
	return " " + term + " "
}

// pluralPatterns returns the plural spellings of a keyword: last word, first
// word and every word pluralized (" canapes ", " tables de chevet ").
func pluralPatterns(keyword string) []string {
	words := strings.Fields(textnorm.Term(keyword))
	if len(words) == 0 {
		return nil
	}

	last := slices.Clone(words)
	last[len(last)-1] = plural(last[len(last)-1])

	first := slices.Clone(words)
	first[0] = plural(first[0])

	every := make([]string, len(words))
	for i, w := range words {
		every[i] = plural(w)
	}

	var out []string
	for _, ws := range [][]string{last, first, every} {
		pattern := " " + strings.Join(ws, " ") + " "
		if !slices.Contains(out, pattern) {
			out = append(out, pattern)
		}
	}
	return out
}

func plural(word string) string {
	switch {
	case len(word) <= 2:
		return word
	case strings.HasSuffix(word, "s"), strings.HasSuffix(word, "x"), strings.HasSuffix(word, "z"):
		return word
	case strings.HasSuffix(word, "au"):
		return word + "x"
	default:
		return word + "s"
	}
}

// containsTerm reports whether term, singular or plural, occurs as whole words in s.
func containsTerm(s, term string) bool {
	text := tokenSpace(s)
	pattern := keywordPattern(term)
	if text == "" || pattern == "" {
		return false
	}
	if strings.Contains(text, pattern) {
		return true
	}
	for _, p := range pluralPatterns(term) {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
