// Package enhance is the always-on local pass over the result list: exact
// URL and near-duplicate title dedupe, a domain badge, content-kind
// detection, and a reading-time estimate. No network, no LLM; annotations
// ride in each result's metadata map and the original order is preserved.
package enhance

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"ansera/search"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

const wordsPerMinute = 200

var (
	docPatterns  = regexp.MustCompile(`docs?\.|/documentation|/manual|/guide|readthedocs|/api|/reference`)
	newsPatterns = regexp.MustCompile(`/news/|/article/|\.com/\d{4}/\d{2}/`)

	codeDomains     = []string{"github.com", "gitlab.com", "bitbucket.org"}
	videoDomains    = []string{"youtube.com", "vimeo.com", "youtu.be"}
	academicDomains = []string{"arxiv.org", "scholar.google", "ieee.org", "acm.org", "springer.com"}
)

type Enhancer struct {
	sanitize *bluemonday.Policy
	logger   *zap.Logger
}

func New(logger *zap.Logger) *Enhancer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enhancer{sanitize: bluemonday.StrictPolicy(), logger: logger}
}

// Enhance returns a filtered, annotated copy of the result list. The input
// is never mutated; annotation keys are "domain", "kind" and
// "reading_time".
func (e *Enhancer) Enhance(results []search.Result) []search.Result {
	seenURLs := make(map[string]bool, len(results))
	seenTitles := make(map[string]bool, len(results))
	out := make([]search.Result, 0, len(results))

	for _, r := range results {
		if r.URL == "" || seenURLs[r.URL] {
			continue
		}
		titleKey := strings.TrimSpace(strings.ToLower(r.Title))
		if len(titleKey) > 10 && seenTitles[titleKey] {
			continue
		}
		seenURLs[r.URL] = true
		seenTitles[titleKey] = true

		annotated := r
		annotated.Metadata = make(map[string]string, 3)
		for k, v := range r.Metadata {
			annotated.Metadata[k] = v
		}

		if parsed, err := url.Parse(r.URL); err == nil && parsed.Host != "" {
			annotated.Metadata["domain"] = strings.TrimPrefix(parsed.Host, "www.")
		}
		if kind := classify(r.URL); kind != "" {
			annotated.Metadata["kind"] = kind
		}

		snippet := e.sanitize.Sanitize(r.Snippet)
		if words := len(strings.Fields(snippet)); words > 50 {
			minutes := max(1, words/wordsPerMinute)
			annotated.Metadata["reading_time"] = fmt.Sprintf("%d min", minutes)
		}

		out = append(out, annotated)
	}

	e.logger.Info("enhance_result",
		zap.Int("in", len(results)),
		zap.Int("out", len(out)))
	return out
}

func classify(rawURL string) string {
	lower := strings.ToLower(rawURL)
	switch {
	case docPatterns.MatchString(lower):
		return "docs"
	case containsAny(lower, codeDomains):
		return "code"
	case containsAny(lower, videoDomains):
		return "video"
	case containsAny(lower, academicDomains):
		return "academic"
	case newsPatterns.MatchString(lower):
		return "news"
	}
	return ""
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
