package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ansera/config"
	"ansera/fetch"
	"ansera/llm"
	"ansera/search"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type scriptedCompleter struct {
	complete func(req llm.Request) (string, error)
	calls    int
}

func (s *scriptedCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	s.calls++
	return s.complete(req)
}

// failingTransport fails the test on any HTTP request.
type failingTransport struct{ t *testing.T }

func (f *failingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	f.t.Errorf("unexpected network call to %s", r.URL)
	return nil, fmt.Errorf("network disabled in this test")
}

func testConfig() *config.Config {
	return &config.Config{
		APIKey:              "test-key",
		Trigger:             "!!sum",
		QuickTrigger:        "!!ask",
		ResultsForSelection: 40,
		SelectK:             12,
		FetchK:              7,
		FetchTimeout:        2 * time.Second,
		SelectTimeout:       time.Second,
		SummarizeTimeout:    time.Second,
		QuickTimeout:        time.Second,
		FetchMaxBytes:       700000,
		ExtractMaxChars:     9000,
		UserAgent:           "test-agent/1.0",
	}
}

func articleBody(topic string) string {
	var sb strings.Builder
	sb.WriteString("<html><head><title>" + topic + "</title></head><body><article>")
	for i := 0; i < 5; i++ {
		fmt.Fprintf(&sb, "<p>Substantial paragraph %d about %s with enough real prose to pass extraction thresholds comfortably.</p>", i, topic)
	}
	sb.WriteString("</article></body></html>")
	return sb.String()
}

func resultsFor(urls []string) []search.Result {
	out := make([]search.Result, len(urls))
	for i, u := range urls {
		out[i] = search.Result{
			URL:     u,
			Title:   fmt.Sprintf("Result %d", i+1),
			Snippet: fmt.Sprintf("Snippet number %d describing the page contents in brief.", i+1),
			Rank:    i + 1,
		}
	}
	return out
}

func selectionReply(urls []string) string {
	quoted := make([]string, len(urls))
	for i, u := range urls {
		quoted[i] = fmt.Sprintf("%q", u)
	}
	return fmt.Sprintf(`{"urls": [%s]}`, strings.Join(quoted, ", "))
}

func summaryReply(linkURL string) string {
	return fmt.Sprintf(`{
		"summary": ["Finding one.", "Finding two.", "Finding three."],
		"links": [{"url": %q, "title": "Best source", "why": "most depth"}],
		"follow_ups": ["follow up one"]
	}`, linkURL)
}

func TestNoTriggerMakesNoNetworkCalls(t *testing.T) {
	completer := &scriptedCompleter{complete: func(llm.Request) (string, error) {
		t.Error("unexpected llm call")
		return "", nil
	}}
	client := &http.Client{Transport: &failingTransport{t: t}}
	p := NewWithClients(testConfig(), completer, client, nil)

	results := resultsFor([]string{"https://a.example/one", "https://b.example/two"})
	aug := p.Run(context.Background(), "plain query without trigger", results)

	assert.Nil(t, aug.Answer)
	assert.Nil(t, aug.Quick)
	assert.Zero(t, completer.calls)
	require.Len(t, aug.Results, 2)
	assert.Equal(t, "https://a.example/one", aug.Results[0].URL)
}

func TestMissingAPIKeyAbortsBeforeNetwork(t *testing.T) {
	cfg := testConfig()
	cfg.APIKey = ""
	client := &http.Client{Transport: &failingTransport{t: t}}
	p := NewWithClients(cfg, nil, client, nil)

	results := resultsFor([]string{"https://a.example/one"})
	aug := p.Run(context.Background(), "some query !!sum", results)

	assert.Nil(t, aug.Answer)
	assert.Len(t, aug.Results, 1)
}

func TestSummarizeFlowEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(articleBody("golang concurrency" + r.URL.Path)))
	}))
	defer srv.Close()

	urls := make([]string, 7)
	for i := range urls {
		urls[i] = fmt.Sprintf("%s/page/%d", srv.URL, i+1)
	}

	completer := &scriptedCompleter{}
	completer.complete = func(req llm.Request) (string, error) {
		if completer.calls == 1 {
			return selectionReply(urls), nil
		}
		// The summary may only cite dispatched URLs.
		require.Contains(t, req.Prompt, urls[0])
		return summaryReply(urls[0]), nil
	}
	p := NewWithClients(testConfig(), completer, &http.Client{}, nil)

	aug := p.Run(context.Background(), "golang concurrency !!sum", resultsFor(urls))

	require.NotNil(t, aug.Answer)
	assert.Len(t, aug.Answer.Bullets, 3)
	require.Len(t, aug.Answer.Links, 1)
	assert.Contains(t, urls, aug.Answer.Links[0].URL)
	assert.Contains(t, aug.AnswerText, "SUMMARY:")
	assert.Contains(t, aug.AnswerText, "FOLLOW-UP QUERIES:")
	assert.Equal(t, 2, completer.calls)
}

func TestAllFetchesBlockedFallsBackToSnippets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	urls := make([]string, 7)
	for i := range urls {
		urls[i] = fmt.Sprintf("%s/blocked/%d", srv.URL, i+1)
	}
	results := resultsFor(urls)

	completer := &scriptedCompleter{}
	completer.complete = func(req llm.Request) (string, error) {
		if completer.calls == 1 {
			return selectionReply(urls), nil
		}
		// Every source degraded to its search snippet.
		require.Contains(t, req.Prompt, results[0].Snippet)
		return summaryReply(urls[2]), nil
	}
	p := NewWithClients(testConfig(), completer, &http.Client{}, nil)

	aug := p.Run(context.Background(), "blocked topic !!sum", results)

	require.NotNil(t, aug.Answer)
	assert.Equal(t, urls[2], aug.Answer.Links[0].URL)
}

func TestMalformedSummaryMeansNoAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(articleBody("anything")))
	}))
	defer srv.Close()

	urls := []string{srv.URL + "/a", srv.URL + "/b"}
	completer := &scriptedCompleter{}
	completer.complete = func(req llm.Request) (string, error) {
		if completer.calls == 1 {
			return selectionReply(urls), nil
		}
		return `{"summary": ["only one", "and two"], "links": [], "follow_ups": []}`, nil
	}
	p := NewWithClients(testConfig(), completer, &http.Client{}, nil)

	aug := p.Run(context.Background(), "topic !!sum", resultsFor(urls))

	assert.Nil(t, aug.Answer)
	assert.Empty(t, aug.AnswerText)
	assert.NotEmpty(t, aug.Results, "host results must survive an aborted answer")
}

func TestSelectionFailureStillProducesAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(articleBody("fallback ranking")))
	}))
	defer srv.Close()

	urls := []string{srv.URL + "/a", srv.URL + "/b", srv.URL + "/c"}
	completer := &scriptedCompleter{}
	completer.complete = func(req llm.Request) (string, error) {
		if completer.calls == 1 {
			return "", llm.ErrTimeout
		}
		return summaryReply(urls[0]), nil
	}
	p := NewWithClients(testConfig(), completer, &http.Client{}, nil)

	aug := p.Run(context.Background(), "topic !!sum", resultsFor(urls))

	// Selection degraded to rank order; the pipeline still finished.
	require.NotNil(t, aug.Answer)
	assert.Equal(t, urls[0], aug.Answer.Links[0].URL)
}

func TestQuickAnswerFlow(t *testing.T) {
	completer := &scriptedCompleter{complete: func(req llm.Request) (string, error) {
		assert.Contains(t, req.Prompt, "what is a monad")
		return "A monad is a structure for sequencing computations.", nil
	}}
	client := &http.Client{Transport: &failingTransport{t: t}}
	p := NewWithClients(testConfig(), completer, client, nil)

	aug := p.Run(context.Background(), "what is a monad !!ask", resultsFor([]string{"https://a.example/one"}))

	require.NotNil(t, aug.Quick)
	assert.Equal(t, "A monad is a structure for sequencing computations.", aug.Quick.Text)
	assert.Nil(t, aug.Answer)
	assert.Equal(t, 1, completer.calls)
}

func TestQuickAnswerTimeoutFailsClosed(t *testing.T) {
	completer := &scriptedCompleter{complete: func(llm.Request) (string, error) {
		return "", llm.ErrTimeout
	}}
	p := NewWithClients(testConfig(), completer, &http.Client{}, nil)

	aug := p.Run(context.Background(), "anything !!ask", nil)

	assert.Nil(t, aug.Quick)
}

func TestQuickAnswerFailureEndsAborted(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	completer := &scriptedCompleter{complete: func(llm.Request) (string, error) {
		return "", llm.ErrTimeout
	}}
	client := &http.Client{Transport: &failingTransport{t: t}}
	p := NewWithClients(testConfig(), completer, client, zap.New(core))

	aug := p.Run(context.Background(), "anything !!ask", nil)
	assert.Nil(t, aug.Quick)

	var last string
	for _, entry := range logs.FilterMessage("pipeline_state").All() {
		last, _ = entry.ContextMap()["to"].(string)
	}
	assert.Equal(t, string(StateAborted), last)
}

func TestBuildSourcesUsesMarkdownRendition(t *testing.T) {
	client := &http.Client{Transport: &failingTransport{t: t}}
	p := NewWithClients(testConfig(), nil, client, nil)

	const pageURL = "https://docs.example/guide"
	body := []byte(articleBody("markdown rendition"))
	fetched := map[string]fetch.Result{pageURL: {URL: pageURL, Body: body}}

	sources := p.buildSources(zap.NewNop(), []string{pageURL}, fetched, resultsFor([]string{pageURL}), "markdown rendition")
	require.Len(t, sources, 1)

	page, err := p.extractor.Extract(body, pageURL, "markdown rendition")
	require.NoError(t, err)
	require.NotEmpty(t, page.Markdown)
	assert.Equal(t, page.Markdown, sources[0].Text)
	assert.Contains(t, sources[0].Text, "markdown rendition")
}

func TestSuggestionsAndAnnotationsAlwaysOn(t *testing.T) {
	completer := &scriptedCompleter{complete: func(llm.Request) (string, error) {
		t.Error("unexpected llm call")
		return "", nil
	}}
	client := &http.Client{Transport: &failingTransport{t: t}}
	p := NewWithClients(testConfig(), completer, client, nil)

	results := []search.Result{
		{URL: "https://github.com/golang/go", Title: "golang repository", Rank: 1},
		{URL: "https://github.com/golang/go", Title: "duplicate", Rank: 2},
	}
	aug := p.Run(context.Background(), "how to learn python", results)

	require.Len(t, aug.Results, 1, "exact URL duplicates are dropped")
	assert.Equal(t, "github.com", aug.Results[0].Metadata["domain"])
	assert.Equal(t, "code", aug.Results[0].Metadata["kind"])
	assert.NotEmpty(t, aug.Suggestions)
}
