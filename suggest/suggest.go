// Package suggest generates local query refinements: intent rewrites,
// technical-context suffixes, frequent title terms and a current-year
// variant. No network, no LLM; at most five suggestions, never echoing
// the original query.
package suggest

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"ansera/search"

	"github.com/kljensen/snowball"
	"go.uber.org/zap"
)

const (
	maxSuggestions = 5
	titleResults   = 10
	minTermLength  = 4
	minTermCount   = 2
)

var refinements = map[string][]string{
	"how to":  {"tutorial", "guide", "step by step", "learn"},
	"what is": {"definition", "explained", "meaning", "overview"},
	"best":    {"top", "recommended", "comparison", "review"},
	"vs":      {"comparison", "difference between", "which is better"},
}

var techKeywords = map[string]bool{
	"python": true, "javascript": true, "java": true, "rust": true,
	"golang": true, "typescript": true, "react": true, "vue": true,
	"angular": true, "node": true, "django": true, "flask": true,
	"docker": true, "kubernetes": true, "aws": true, "azure": true, "gcp": true,
}

var timeKeywords = []string{"latest", "current", "new", "recent", "modern", "updated"}

var wordPattern = regexp.MustCompile(`\b\w{4,}\b`)

type Suggester struct {
	now    func() time.Time
	logger *zap.Logger
}

func New(logger *zap.Logger) *Suggester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Suggester{now: time.Now, logger: logger}
}

// Suggest builds refinement queries from the raw query and the result
// titles. Queries shorter than three characters yield nothing.
func (s *Suggester) Suggest(query string, results []search.Result) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	if len(q) < 3 {
		return nil
	}

	var candidates []string

	patterns := make([]string, 0, len(refinements))
	for p := range refinements {
		patterns = append(patterns, p)
	}
	sort.Strings(patterns)
	for _, pattern := range patterns {
		rewrites := refinements[pattern]
		if !strings.Contains(q, pattern) {
			continue
		}
		base := strings.TrimSpace(strings.ReplaceAll(q, pattern, ""))
		for _, rw := range rewrites {
			if !strings.Contains(q, rw) {
				candidates = append(candidates, rw+" "+base)
			}
		}
	}

	queryWords := make(map[string]bool)
	for _, w := range strings.Fields(q) {
		queryWords[w] = true
	}
	hasTech := false
	for w := range queryWords {
		if techKeywords[w] {
			hasTech = true
			break
		}
	}
	if hasTech {
		if !strings.Contains(q, "tutorial") && !strings.Contains(q, "guide") {
			candidates = append(candidates, q+" tutorial")
		}
		if !strings.Contains(q, "documentation") && !strings.Contains(q, "docs") {
			candidates = append(candidates, q+" documentation")
		}
		if !strings.Contains(q, "example") {
			candidates = append(candidates, q+" examples")
		}
	}

	candidates = append(candidates, s.titleTerms(q, queryWords, results)...)

	for _, kw := range timeKeywords {
		if strings.Contains(q, kw) {
			year := fmt.Sprintf("%d", s.now().Year())
			if !strings.Contains(q, year) {
				candidates = append(candidates, q+" "+year)
			}
			break
		}
	}
	if strings.Contains(q, "best") || strings.Contains(q, "top") {
		if !strings.Contains(q, "alternative") {
			candidates = append(candidates, q+" alternatives")
		}
	}

	out := dedupe(q, candidates)
	s.logger.Info("suggestions_result",
		zap.String("query", q),
		zap.Int("count", len(out)))
	return out
}

// titleTerms finds significant words appearing in at least minTermCount of
// the top result titles. Counting is stem-folded so "containers" and
// "container" tally together; the surface form seen first is suggested.
func (s *Suggester) titleTerms(q string, queryWords map[string]bool, results []search.Result) []string {
	counts := make(map[string]int)
	surface := make(map[string]string)
	top := results
	if len(top) > titleResults {
		top = top[:titleResults]
	}
	for _, r := range top {
		for _, w := range wordPattern.FindAllString(strings.ToLower(r.Title), -1) {
			if len(w) < minTermLength || queryWords[w] {
				continue
			}
			key := w
			if stem, err := snowball.Stem(w, "english", true); err == nil && stem != "" {
				key = stem
			}
			counts[key]++
			if _, ok := surface[key]; !ok {
				surface[key] = w
			}
		}
	}

	type termCount struct {
		term  string
		count int
	}
	var terms []termCount
	for key, n := range counts {
		term := surface[key]
		if n >= minTermCount && !strings.Contains(q, term) {
			terms = append(terms, termCount{term: term, count: n})
		}
	}
	// Map iteration order is random; sort so suggestions are stable.
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].count != terms[j].count {
			return terms[i].count > terms[j].count
		}
		return terms[i].term < terms[j].term
	})

	out := make([]string, 0, len(terms))
	for _, tc := range terms {
		out = append(out, q+" "+tc.term)
	}
	return out
}

func dedupe(q string, candidates []string) []string {
	seen := make(map[string]bool, len(candidates))
	out := make([]string, 0, maxSuggestions)
	for _, c := range candidates {
		norm := strings.ToLower(strings.TrimSpace(c))
		if norm == "" || norm == q || seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, strings.TrimSpace(c))
		if len(out) >= maxSuggestions {
			break
		}
	}
	return out
}
