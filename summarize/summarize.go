// Package summarize holds the two answer-producing stages. Both treat the
// model's reply as untrusted: the structured summary is validated for
// bullet count and link membership before anything reaches the host, and
// any violation means no answer at all rather than a partial one.
package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ansera/llm"

	"go.uber.org/zap"
)

const (
	minBullets = 3
	maxBullets = 7
)

// Source is one input document: extracted page text for fetched URLs, the
// original search snippet for failed ones.
type Source struct {
	URL   string
	Title string
	Text  string
}

// Link is a suggested link with the model's one-line justification.
type Link struct {
	URL    string `json:"url"`
	Title  string `json:"title"`
	Reason string `json:"why"`
}

// Answer is the validated summary handed back to the host panel.
type Answer struct {
	Bullets   []string `json:"summary"`
	Links     []Link   `json:"links"`
	FollowUps []string `json:"follow_ups"`
}

type Stage struct {
	completer llm.Completer
	timeout   time.Duration
	logger    *zap.Logger
}

func NewStage(completer llm.Completer, timeout time.Duration, logger *zap.Logger) *Stage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stage{completer: completer, timeout: timeout, logger: logger}
}

// Summarize produces a validated Answer from the sources, or an error when
// the model times out or the reply fails validation. Callers must treat
// any error as "no answer"; there is no partial result.
func (s *Stage) Summarize(ctx context.Context, query string, sources []Source) (*Answer, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no sources to summarize: %w", llm.ErrMalformed)
	}

	var sb strings.Builder
	for i, src := range sources {
		if i > 0 {
			sb.WriteString("\n\n---\n\n")
		}
		fmt.Fprintf(&sb, "URL: %s\nTITLE: %s\nTEXT: %s", src.URL, src.Title, src.Text)
	}

	prompt := fmt.Sprintf(`User query: %s

Write a structured summary of the sources below.

Return ONLY valid JSON in this exact shape:
{
  "summary": ["3 to 7 factual, cautious bullet points"],
  "links": [{"url": "https://...", "title": "...", "why": "one short line"}],
  "follow_ups": ["3 to 7 short follow-up searches"]
}

Rules:
- Only cite URLs that appear in SOURCES.
- If evidence is weak or conflicting, say so.
- Do not make up details.

SOURCES:
%s`, query, sb.String())

	reply, err := s.completer.Complete(ctx, llm.Request{
		Prompt:      prompt,
		Temperature: 0.2,
		JSONMode:    true,
		Timeout:     s.timeout,
	})
	if err != nil {
		return nil, err
	}

	var answer Answer
	if err := json.Unmarshal([]byte(reply), &answer); err != nil {
		return nil, fmt.Errorf("summary reply not JSON: %w", llm.ErrMalformed)
	}
	if err := validate(&answer, sources); err != nil {
		s.logger.Warn("summary_rejected", zap.String("query", query), zap.Error(err))
		return nil, err
	}

	s.logger.Info("summary_result",
		zap.String("query", query),
		zap.Int("bullets", len(answer.Bullets)),
		zap.Int("links", len(answer.Links)),
		zap.Int("follow_ups", len(answer.FollowUps)))
	return &answer, nil
}

// validate enforces the bullet-count bounds and the URL-subset invariant.
// A reply violating either is discarded wholesale.
func validate(answer *Answer, sources []Source) error {
	bullets := answer.Bullets[:0]
	for _, b := range answer.Bullets {
		if b = strings.TrimSpace(b); b != "" {
			bullets = append(bullets, b)
		}
	}
	answer.Bullets = bullets
	if len(answer.Bullets) < minBullets || len(answer.Bullets) > maxBullets {
		return fmt.Errorf("summary has %d bullets, want %d-%d: %w",
			len(answer.Bullets), minBullets, maxBullets, llm.ErrMalformed)
	}

	member := make(map[string]bool, len(sources))
	for _, src := range sources {
		member[src.URL] = true
	}
	for _, l := range answer.Links {
		if !member[l.URL] {
			return fmt.Errorf("summary cites unknown url %q: %w", l.URL, llm.ErrMalformed)
		}
	}
	return nil
}

// RenderPanel formats the answer into the text block the host panel shows.
func (a *Answer) RenderPanel() string {
	var sb strings.Builder
	sb.WriteString("SUMMARY:\n")
	for _, b := range a.Bullets {
		fmt.Fprintf(&sb, "- %s\n", b)
	}
	if len(a.Links) > 0 {
		sb.WriteString("\nSUGGESTED LINKS:\n")
		for i, l := range a.Links {
			fmt.Fprintf(&sb, "%d. %s — %s\n", i+1, l.URL, l.Reason)
		}
	}
	if len(a.FollowUps) > 0 {
		sb.WriteString("\nFOLLOW-UP QUERIES:\n")
		for _, f := range a.FollowUps {
			fmt.Fprintf(&sb, "- %s\n", f)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
