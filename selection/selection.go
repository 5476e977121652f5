// Package selection asks the LLM which result URLs are worth opening.
// The model's reply is untrusted text: it is validated against the offered
// set and discarded wholesale on any violation. Selection can degrade but
// never fail; the deterministic rank-order fallback always produces a
// usable list.
package selection

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ansera/llm"
	"ansera/search"

	"go.uber.org/zap"
)

type Stage struct {
	completer  llm.Completer
	maxOffered int
	selectK    int
	timeout    time.Duration
	logger     *zap.Logger
}

func NewStage(completer llm.Completer, maxOffered, selectK int, timeout time.Duration, logger *zap.Logger) *Stage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stage{
		completer:  completer,
		maxOffered: maxOffered,
		selectK:    selectK,
		timeout:    timeout,
		logger:     logger,
	}
}

type offeredItem struct {
	Rank    int    `json:"rank"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

type selectionReply struct {
	URLs []string `json:"urls"`
}

// Select returns up to selectK URLs ordered by the model's relevance
// judgement, or the first selectK offered URLs by rank when the model
// times out, replies with garbage, or names a URL it was never offered.
func (s *Stage) Select(ctx context.Context, query string, results []search.Result) []string {
	offered := s.offer(results)
	if len(offered) == 0 {
		return nil
	}

	urls, err := s.ask(ctx, query, offered)
	if err != nil {
		s.logger.Warn("selection_fallback",
			zap.String("query", query),
			zap.Int("offered", len(offered)),
			zap.Error(err))
		return s.fallback(offered)
	}

	s.logger.Info("selection_result",
		zap.String("query", query),
		zap.Int("offered", len(offered)),
		zap.Int("selected", len(urls)))
	return urls
}

// offer trims the result list to the candidates worth showing the model:
// http(s) URLs only, capped at maxOffered, whitespace collapsed.
func (s *Stage) offer(results []search.Result) []offeredItem {
	items := make([]offeredItem, 0, len(results))
	for _, r := range results {
		if !search.IsHTTP(r.URL) {
			continue
		}
		items = append(items, offeredItem{
			Rank:    r.Rank,
			Title:   collapse(r.Title),
			Snippet: collapse(r.Snippet),
			URL:     r.URL,
		})
		if len(items) >= s.maxOffered {
			break
		}
	}
	return items
}

func (s *Stage) ask(ctx context.Context, query string, offered []offeredItem) ([]string, error) {
	encoded, err := json.Marshal(offered)
	if err != nil {
		return nil, fmt.Errorf("failed to encode offered results: %w", err)
	}

	prompt := fmt.Sprintf(`You are choosing which search results to open to best answer the user.

User query: %s

Pick up to %d URLs that maximize:
- coverage of different subtopics
- credibility (prefer official/primary sources where relevant)
- non-duplication
- depth (likely to contain substantial info)

Return ONLY valid JSON in this exact shape:
{"urls": ["https://...", "..."]}

Search results:
%s`, query, s.selectK, encoded)

	reply, err := s.completer.Complete(ctx, llm.Request{
		Prompt:      prompt,
		Temperature: 0.2,
		JSONMode:    true,
		Timeout:     s.timeout,
	})
	if err != nil {
		return nil, err
	}

	var parsed selectionReply
	if err := json.Unmarshal([]byte(reply), &parsed); err != nil {
		return nil, fmt.Errorf("selection reply not JSON: %w", llm.ErrMalformed)
	}

	member := make(map[string]bool, len(offered))
	for _, item := range offered {
		member[item.URL] = true
	}

	seen := make(map[string]bool, len(parsed.URLs))
	urls := make([]string, 0, s.selectK)
	for _, u := range parsed.URLs {
		if !search.IsHTTP(u) {
			continue
		}
		// One unknown URL poisons the whole reply; never trust it partially.
		if !member[u] {
			return nil, fmt.Errorf("selection reply named unoffered url %q: %w", u, llm.ErrMalformed)
		}
		if seen[u] {
			continue
		}
		seen[u] = true
		urls = append(urls, u)
		if len(urls) >= s.selectK {
			break
		}
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("selection reply contained no usable urls: %w", llm.ErrMalformed)
	}
	return urls, nil
}

// fallback takes the first selectK offered URLs in their original rank
// order. It must stay side-effect-free; the pipeline proceeds on it as if
// the model had answered.
func (s *Stage) fallback(offered []offeredItem) []string {
	n := min(s.selectK, len(offered))
	urls := make([]string, 0, n)
	for _, item := range offered[:n] {
		urls = append(urls, item.URL)
	}
	return urls
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
