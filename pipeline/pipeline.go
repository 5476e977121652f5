// Package pipeline sequences the stages behind the two AI flows and
// applies the fail-closed policy at every boundary: whatever goes wrong
// internally, the host gets its result list back, at worst without an
// answer attached.
package pipeline

import (
	"context"
	"net/http"

	"ansera/config"
	"ansera/enhance"
	"ansera/extract"
	"ansera/fetch"
	"ansera/llm"
	"ansera/search"
	"ansera/selection"
	"ansera/suggest"
	"ansera/summarize"
	"ansera/trigger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State names the coordinator's position. Transitions are strictly
// forward; Aborted is terminal and reachable from any state.
type State string

const (
	StateIdle           State = "idle"
	StateTriggerChecked State = "trigger_checked"
	StateSelecting      State = "selecting"
	StateFetching       State = "fetching"
	StateExtracting     State = "extracting"
	StateSummarizing    State = "summarizing"
	StateDone           State = "done"
	StateAborted        State = "aborted"
)

// Augmentation is everything handed back to the host for one query. A nil
// Answer and nil Quick means pass-through; Results and Suggestions are
// always populated by the local passes.
type Augmentation struct {
	Answer      *summarize.Answer      `json:"answer,omitempty"`
	AnswerText  string                 `json:"answer_text,omitempty"`
	Quick       *summarize.QuickAnswer `json:"quick_answer,omitempty"`
	Results     []search.Result        `json:"results"`
	Suggestions []string               `json:"suggestions,omitempty"`
}

const minExtractChars = 80

type Pipeline struct {
	cfg        *config.Config
	completer  llm.Completer
	selection  *selection.Stage
	orch       *fetch.Orchestrator
	extractor  *extract.Extractor
	summarizer *summarize.Stage
	quick      *summarize.QuickStage
	enhancer   *enhance.Enhancer
	suggester  *suggest.Suggester
	logger     *zap.Logger
}

// New wires the production pipeline. The LLM client is only built when an
// API key is configured; without one every triggered query aborts before
// any network call.
func New(cfg *config.Config, logger *zap.Logger) (*Pipeline, error) {
	var completer llm.Completer
	if cfg.APIKey != "" {
		client, err := llm.New(cfg.APIKey, cfg.BaseURL, cfg.Model, logger)
		if err != nil {
			return nil, err
		}
		completer = client
	}
	return NewWithClients(cfg, completer, &http.Client{}, logger), nil
}

// NewWithClients wires the pipeline around injected collaborators, used
// by tests and by hosts that manage their own HTTP transport.
func NewWithClients(cfg *config.Config, completer llm.Completer, httpClient *http.Client, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	fetcher := fetch.NewFetcher(httpClient, cfg.FetchMaxBytes, cfg.FetchTimeout, cfg.UserAgent, true, logger)
	return &Pipeline{
		cfg:        cfg,
		completer:  completer,
		selection:  selection.NewStage(completer, cfg.ResultsForSelection, cfg.SelectK, cfg.SelectTimeout, logger),
		orch:       fetch.NewOrchestrator(fetcher, cfg.FetchK, cfg.FetchTimeout, logger),
		extractor:  extract.NewExtractor(cfg.ExtractMaxChars, minExtractChars, logger),
		summarizer: summarize.NewStage(completer, cfg.SummarizeTimeout, logger),
		quick:      summarize.NewQuickStage(completer, cfg.QuickTimeout, logger),
		enhancer:   enhance.New(logger),
		suggester:  suggest.New(logger),
		logger:     logger,
	}
}

// Run processes one search request. It never returns an error and never
// panics outward; any internal failure resolves to an Augmentation
// without an answer. The host's result list always comes back, annotated.
func (p *Pipeline) Run(ctx context.Context, rawQuery string, results []search.Result) *Augmentation {
	requestID := uuid.NewString()
	logger := p.logger.With(zap.String("request_id", requestID))

	sum := trigger.Parse(rawQuery, p.cfg.Trigger)
	quick := trigger.Parse(rawQuery, p.cfg.QuickTrigger)

	// The local passes run on the query with any trigger tokens removed.
	cleaned := trigger.Parse(quick.Cleaned, p.cfg.Trigger).Cleaned

	aug := &Augmentation{
		Results:     p.enhancer.Enhance(results),
		Suggestions: p.suggester.Suggest(cleaned, results),
	}

	state := p.transition(logger, StateIdle, StateTriggerChecked)
	if !sum.Active && !quick.Active {
		return aug
	}

	// No API key means no flow runs at all: straight to Aborted before
	// any network activity.
	if p.cfg.APIKey == "" || p.completer == nil {
		p.transition(logger, state, StateAborted)
		return aug
	}

	quickFailed := false
	if quick.Active {
		if answer, err := p.quick.Answer(ctx, quick.Cleaned); err != nil {
			logger.Warn("quick_answer_aborted", zap.Error(err))
			quickFailed = true
		} else {
			aug.Quick = answer
		}
	}

	if sum.Active {
		if answer, done := p.runSummarize(ctx, logger, state, sum.Cleaned, results); done {
			aug.Answer = answer
			aug.AnswerText = answer.RenderPanel()
		}
	} else if quickFailed {
		p.transition(logger, state, StateAborted)
	} else {
		p.transition(logger, state, StateDone)
	}

	return aug
}

// runSummarize walks Selecting through Summarizing. Returns done=false
// when the flow aborted; per-URL failures degrade inside the flow and do
// not abort it.
func (p *Pipeline) runSummarize(ctx context.Context, logger *zap.Logger, state State,
	query string, results []search.Result) (*summarize.Answer, bool) {

	state = p.transition(logger, state, StateSelecting)
	selected := p.selection.Select(ctx, query, results)
	if len(selected) == 0 {
		p.transition(logger, state, StateAborted)
		return nil, false
	}

	state = p.transition(logger, state, StateFetching)
	fetched := p.orch.FetchAll(ctx, selected)

	state = p.transition(logger, state, StateExtracting)
	sources := p.buildSources(logger, selected, fetched, results, query)

	state = p.transition(logger, state, StateSummarizing)
	answer, err := p.summarizer.Summarize(ctx, query, sources)
	if err != nil {
		logger.Warn("summarize_aborted", zap.Error(err))
		p.transition(logger, state, StateAborted)
		return nil, false
	}

	p.transition(logger, state, StateDone)
	return answer, true
}

// buildSources produces exactly one summarization source per dispatched
// URL: extracted page text when the fetch and extraction both succeeded,
// the original search snippet otherwise.
func (p *Pipeline) buildSources(logger *zap.Logger, selected []string,
	fetched map[string]fetch.Result, results []search.Result, query string) []summarize.Source {

	byURL := make(map[string]search.Result, len(results))
	for _, r := range results {
		if _, ok := byURL[r.URL]; !ok {
			byURL[r.URL] = r
		}
	}

	sources := make([]summarize.Source, 0, len(fetched))
	for _, u := range selected {
		fr, ok := fetched[u]
		if !ok {
			continue // beyond FETCH_K, never dispatched
		}
		original := byURL[u]
		if fr.OK() {
			page, err := p.extractor.Extract(fr.Body, u, query)
			if err == nil {
				title := page.Title
				if title == "" {
					title = original.Title
				}
				// The markdown rendition keeps headings and links intact
				// for the prompt; plain text is the fallback.
				text := page.Text
				if page.Markdown != "" {
					text = page.Markdown
				}
				sources = append(sources, summarize.Source{URL: u, Title: title, Text: text})
				continue
			}
			logger.Info("extraction_fallback", zap.String("url", u), zap.Error(err))
		}
		sources = append(sources, summarize.Source{URL: u, Title: original.Title, Text: original.Snippet})
	}
	return sources
}

func (p *Pipeline) transition(logger *zap.Logger, from, to State) State {
	logger.Info("pipeline_state",
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	return to
}
