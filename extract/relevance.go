package extract

import (
	"strings"

	"github.com/kljensen/snowball"
)

const minStemPrefix = 4

// Relevance scores how well a block of text matches the query, in [0,1].
// Query terms are stem-folded so "programming" still hits "programs", and
// earlier occurrences weigh more than matches buried at the end of the
// page. Matching is case-insensitive.
func Relevance(text, query string) float64 {
	lowerText := strings.ToLower(text)
	terms := queryStems(query)
	if len(terms) == 0 || len(lowerText) == 0 {
		return 0.0
	}

	total := 0.0
	for _, term := range terms {
		pos := strings.Index(lowerText, term)
		if pos < 0 {
			continue
		}
		// Position weight decays linearly but never below 0.3; a match is
		// a match even at the bottom of the page.
		weight := 1.0 - 0.7*float64(pos)/float64(len(lowerText))
		total += weight
	}
	return total / float64(len(terms))
}

// queryStems folds each significant query term to its stem, keeping at
// least minStemPrefix characters so the substring match stays meaningful.
func queryStems(query string) []string {
	words := strings.Fields(strings.ToLower(query))
	stems := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.Trim(w, ".,!?\"'():;[]{}")
		if len(w) < 3 {
			continue
		}
		stem, err := snowball.Stem(w, "english", true)
		if err != nil || len(stem) < minStemPrefix {
			stems = append(stems, w)
			continue
		}
		stems = append(stems, stem)
	}
	return stems
}
