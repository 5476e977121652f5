// Package fetch performs the bounded page retrievals behind the summarize
// flow: one GET per URL, truncated at a byte ceiling, classified into a
// typed failure taxonomy instead of returned errors. Failures are data
// here; the pipeline degrades per URL and never aborts on them.
package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// Reason classifies a failed retrieval.
type Reason string

const (
	ReasonTimeout      Reason = "timeout"
	ReasonTooLarge     Reason = "too_large"
	ReasonHTTPError    Reason = "http_error"
	ReasonBlocked      Reason = "blocked"
	ReasonNetworkError Reason = "network_error"
)

// Result is the outcome for one dispatched URL. Reason is empty on
// success. A body truncated at the byte ceiling is still a success.
type Result struct {
	URL         string
	Body        []byte
	ContentType string
	Truncated   bool
	Reason      Reason
}

func (r Result) OK() bool {
	return r.Reason == ""
}

func failure(url string, reason Reason) Result {
	return Result{URL: url, Reason: reason}
}

type Fetcher struct {
	client           *http.Client
	maxBytes         int64
	timeout          time.Duration
	userAgent        string
	truncateOversize bool
	logger           *zap.Logger
}

// NewFetcher builds a fetcher with the given per-request budget. When
// truncateOversize is false, a body exceeding maxBytes is rejected as
// TooLarge instead of being cut; the default policy is to truncate.
func NewFetcher(client *http.Client, maxBytes int64, timeout time.Duration, userAgent string,
	truncateOversize bool, logger *zap.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		client:           client,
		maxBytes:         maxBytes,
		timeout:          timeout,
		userAgent:        userAgent,
		truncateOversize: truncateOversize,
		logger:           logger,
	}
}

// Fetch performs exactly one retrieval. It never returns an error: every
// outcome is a Result, and failed URLs degrade downstream to their
// search snippet.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) Result {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return failure(rawURL, ReasonNetworkError)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return failure(rawURL, ReasonNetworkError)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		reason := ReasonNetworkError
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			reason = ReasonTimeout
		}
		f.logger.Warn("fetch_failed",
			zap.String("url", rawURL),
			zap.String("reason", string(reason)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return failure(rawURL, reason)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reason := ReasonHTTPError
		// 403/429 are the usual bot-wall signatures.
		if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
			reason = ReasonBlocked
		}
		f.logger.Warn("fetch_failed",
			zap.String("url", rawURL),
			zap.String("reason", string(reason)),
			zap.Int("status", resp.StatusCode))
		return failure(rawURL, reason)
	}

	if !f.truncateOversize && resp.ContentLength > f.maxBytes {
		return failure(rawURL, ReasonTooLarge)
	}

	// +1 so a body landing exactly on the ceiling is not flagged truncated.
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		reason := ReasonNetworkError
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			reason = ReasonTimeout
		}
		return failure(rawURL, reason)
	}

	truncated := int64(len(body)) > f.maxBytes
	if truncated {
		if !f.truncateOversize {
			return failure(rawURL, ReasonTooLarge)
		}
		body = body[:f.maxBytes]
	}

	f.logger.Info("fetch_result",
		zap.String("url", rawURL),
		zap.Int("status", resp.StatusCode),
		zap.Int("body_size", len(body)),
		zap.Bool("truncated", truncated),
		zap.Duration("elapsed", time.Since(start)))

	return Result{
		URL:         rawURL,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		Truncated:   truncated,
	}
}
