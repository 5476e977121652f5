package summarize

import (
	"context"
	"fmt"
	"time"

	"ansera/llm"

	"go.uber.org/zap"
)

const quickMaxTokens = 500

// QuickAnswer is the terminal artifact of the no-fetch flow.
type QuickAnswer struct {
	Text string `json:"text"`
}

// QuickStage answers the cleaned query directly with a single bounded
// completion. No selection, no fetching.
type QuickStage struct {
	completer llm.Completer
	timeout   time.Duration
	logger    *zap.Logger
}

func NewQuickStage(completer llm.Completer, timeout time.Duration, logger *zap.Logger) *QuickStage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuickStage{completer: completer, timeout: timeout, logger: logger}
}

func (q *QuickStage) Answer(ctx context.Context, query string) (*QuickAnswer, error) {
	prompt := fmt.Sprintf(`Provide a concise, accurate answer to the following question.

Question: %s

Requirements:
- Keep the answer under 3 paragraphs
- Be factual and precise
- If you're uncertain, say so
- Include key points in bullet format if appropriate
- Do not make up information

Answer:`, query)

	reply, err := q.completer.Complete(ctx, llm.Request{
		System:      "You are a helpful assistant that provides accurate, concise answers to questions.",
		Prompt:      prompt,
		Temperature: 0.3,
		MaxTokens:   quickMaxTokens,
		Timeout:     q.timeout,
	})
	if err != nil {
		return nil, err
	}

	q.logger.Info("quick_answer_result",
		zap.String("query", query),
		zap.Int("length", len(reply)))
	return &QuickAnswer{Text: reply}, nil
}
