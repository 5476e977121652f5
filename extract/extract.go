// Package extract turns raw fetched HTML into clean, bounded plain text.
// The chain runs goquery pre-cleaning, trafilatura as the primary engine,
// readability as the secondary, a scored paragraph walk, and a bluemonday
// strip as the last resort. Output length is capped in runes and the cut
// lands on a sentence or paragraph boundary where one is close enough.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/markusmobius/go-trafilatura"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// ErrInsufficient marks a page that yielded no usable text. Downstream the
// page degrades to its search snippet; the pipeline never aborts on it.
var ErrInsufficient = errors.New("extract: no usable text")

// Structural regions that never carry article content.
const junkSelectors = `script, style, noscript, iframe, form, nav, header, footer, aside, ` +
	`[class*="ad-"], [class*="-ad"], [class*="advert"], [class*="banner"], [class*="social"], ` +
	`[class*="share"], [class*="comment"], [class*="sidebar"], [class*="widget"], [class*="promo"], ` +
	`[class*="cookie"], [class*="newsletter"], [class*="related"], [id*="sidebar"], [id*="comment"]`

const minBlockChars = 50

// Page is the extraction output for one fetched URL.
type Page struct {
	URL      string
	Title    string
	Text     string
	Markdown string
}

type Extractor struct {
	maxChars  int
	minChars  int
	stripHTML *bluemonday.Policy
	logger    *zap.Logger
}

func NewExtractor(maxChars, minChars int, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		maxChars:  maxChars,
		minChars:  minChars,
		stripHTML: bluemonday.StrictPolicy(),
		logger:    logger,
	}
}

// Extract runs the engine chain over the raw body. The query steers block
// selection in the paragraph walk; pass the cleaned user query. Returns
// ErrInsufficient when every engine comes up short.
func (e *Extractor) Extract(body []byte, pageURL, query string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	docTitle := strings.TrimSpace(doc.Find("title").First().Text())
	doc.Find(junkSelectors).Remove()

	cleaned, err := doc.Html()
	if err != nil {
		return nil, fmt.Errorf("failed to render cleaned html: %w", err)
	}

	text, title, markdown, engine := e.runChain(doc, cleaned, pageURL, query)
	if title == "" {
		title = docTitle
	}

	text = strings.TrimSpace(text)
	if len([]rune(text)) < e.minChars {
		e.logger.Info("extraction_insufficient",
			zap.String("url", pageURL),
			zap.String("engine", engine),
			zap.Int("chars", len([]rune(text))))
		return nil, fmt.Errorf("%s yielded %d chars: %w", engine, len([]rune(text)), ErrInsufficient)
	}

	text = truncateAtBoundary(text, e.maxChars)
	if markdown != "" {
		markdown = truncateAtBoundary(markdown, e.maxChars)
	}
	e.logger.Info("extraction_result",
		zap.String("url", pageURL),
		zap.String("engine", engine),
		zap.Int("chars", len([]rune(text))),
		zap.Float64("density", Density(text)))

	return &Page{URL: pageURL, Title: title, Text: text, Markdown: markdown}, nil
}

// runChain tries each engine in order and keeps the first result that
// clears the density gate. Returns the engine name for logging.
func (e *Extractor) runChain(doc *goquery.Document, cleaned, pageURL, query string) (text, title, markdown, engine string) {
	if text, title, markdown = e.withTrafilatura(cleaned, pageURL); usable(text) {
		return text, title, markdown, "trafilatura"
	}
	if text, title = e.withReadability(cleaned, pageURL); usable(text) {
		return text, title, "", "readability"
	}
	if text = e.paragraphWalk(doc, query); usable(text) {
		return text, "", "", "paragraph_walk"
	}
	text = collapse(e.stripHTML.Sanitize(cleaned))
	return text, "", "", "strip"
}

func usable(text string) bool {
	return len(text) >= minBlockChars && Density(text) > 0.3
}

func (e *Extractor) withTrafilatura(cleaned, pageURL string) (text, title, markdown string) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", "", ""
	}
	result, err := trafilatura.Extract(strings.NewReader(cleaned), trafilatura.Options{
		OriginalURL:     parsed,
		ExcludeComments: true,
		ExcludeTables:   true,
	})
	if err != nil {
		e.logger.Debug("trafilatura_failed", zap.String("url", pageURL), zap.Error(err))
		return "", "", ""
	}
	text = strings.TrimSpace(result.ContentText)
	title = result.Metadata.Title
	if result.ContentNode != nil {
		if nodeHTML, err := renderNode(result.ContentNode); err == nil {
			if md, err := htmltomarkdown.ConvertString(nodeHTML); err == nil {
				markdown = strings.TrimSpace(md)
			}
		}
	}
	return text, title, markdown
}

func (e *Extractor) withReadability(cleaned, pageURL string) (text, title string) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", ""
	}
	parser := readability.NewParser()
	article, err := parser.Parse(strings.NewReader(cleaned), parsed)
	if err != nil {
		e.logger.Debug("readability_failed", zap.String("url", pageURL), zap.Error(err))
		return "", ""
	}
	return strings.TrimSpace(article.TextContent), article.Title
}

// paragraphWalk collects paragraph-level blocks and keeps the best-scoring
// ones until the char ceiling. Score blends prose density with query
// relevance so the walk prefers on-topic sections of mixed pages.
func (e *Extractor) paragraphWalk(doc *goquery.Document, query string) string {
	type block struct {
		text  string
		order int
		score float64
	}
	var blocks []block
	doc.Find("p, li, blockquote, td").Each(func(i int, s *goquery.Selection) {
		text := collapse(s.Text())
		if len([]rune(text)) < minBlockChars {
			return
		}
		score := 0.6*Density(text) + 0.4*Relevance(text, query)
		blocks = append(blocks, block{text: text, order: i, score: score})
	})
	if len(blocks) == 0 {
		return ""
	}

	sort.SliceStable(blocks, func(i, j int) bool { return blocks[i].score > blocks[j].score })
	kept := blocks[:0]
	budget := 0
	for _, b := range blocks {
		if b.score <= 0.2 {
			break
		}
		kept = append(kept, b)
		budget += len([]rune(b.text))
		if budget >= e.maxChars {
			break
		}
	}
	// Re-emit in document order so the text reads top to bottom.
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].order < kept[j].order })

	parts := make([]string, 0, len(kept))
	for _, b := range kept {
		parts = append(parts, b.text)
	}
	return strings.Join(parts, "\n\n")
}

func renderNode(n *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
