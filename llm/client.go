// Package llm wraps a single OpenAI-compatible chat completions endpoint.
// Every call is one synchronous round trip bounded by the caller's timeout;
// there are no retries and no streaming.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

var (
	// ErrTimeout marks a completion that exceeded its stage budget.
	ErrTimeout = errors.New("llm: completion timed out")
	// ErrMalformed marks a reply that could not be parsed or validated.
	// The stages own the validation; this sentinel is shared so callers
	// can branch with errors.Is.
	ErrMalformed = errors.New("llm: malformed completion")
	// ErrEmpty marks a completion with no choices or empty content.
	ErrEmpty = errors.New("llm: empty completion")
)

const systemPrompt = "Follow instructions exactly. Do not invent facts."

// Request is one completion call. Timeout must be set by the caller; a
// zero timeout is a programming error and fails fast.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
	JSONMode    bool
	Timeout     time.Duration
}

// Completer is the single-call surface the stages depend on. Tests inject
// fakes; production uses Client.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

type Client struct {
	model  llms.Model
	logger *zap.Logger
}

// New builds a client against an OpenAI-compatible endpoint. baseURL may
// be empty to use the upstream default.
func New(apiKey, baseURL, model string, logger *zap.Logger) (*Client, error) {
	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(strings.TrimRight(baseURL, "/")))
	}
	m, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}
	return NewWithModel(m, logger), nil
}

// NewWithModel wires an existing langchaingo model, used by tests.
func NewWithModel(m llms.Model, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{model: m, logger: logger}
}

func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if req.Timeout <= 0 {
		return "", fmt.Errorf("llm: request without timeout")
	}
	ctx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	system := req.System
	if system == "" {
		system = systemPrompt
	}
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt),
	}

	opts := []llms.CallOption{llms.WithTemperature(req.Temperature)}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}
	if req.JSONMode {
		opts = append(opts, llms.WithJSONMode())
	}

	start := time.Now()
	resp, err := c.model.GenerateContent(ctx, messages, opts...)
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			c.logger.Warn("llm_timeout",
				zap.Duration("budget", req.Timeout),
				zap.Duration("elapsed", elapsed))
			return "", fmt.Errorf("completion exceeded %s: %w", req.Timeout, ErrTimeout)
		}
		return "", fmt.Errorf("completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmpty
	}
	content := strings.TrimSpace(resp.Choices[0].Content)
	if content == "" {
		return "", ErrEmpty
	}

	c.logger.Info("llm_completion",
		zap.Duration("elapsed", elapsed),
		zap.Int("content_length", len(content)),
		zap.Bool("json_mode", req.JSONMode))

	return content, nil
}
