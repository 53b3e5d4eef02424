// Package extract implements the content extractor: raw markup in, clean
// text (or markdown) out. It never fails a caller for ordinary bad markup;
// anything unextractable degrades to ErrNoContent.
package extract

import (
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/PuerkitoBio/goquery"
)

// ErrNoContent means nothing extractable was found. It is distinct from an
// empty-string result, which means the markup parsed but carried no visible
// text; callers treat both as insufficient but log them differently.
var ErrNoContent = errors.New("no extractable content")

// Extractor runs the extraction pipeline:
//
//	strip noise → readability → candidate selectors → pruning scorer → body text
//
// The markdown converter is created once and reused across all requests
// (goroutine-safe).
type Extractor struct {
	md  *converter.Converter
	log *slog.Logger
}

// NewExtractor builds an Extractor. A nil logger uses slog.Default.
func NewExtractor(log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{
		md:  newMarkdownConverter(),
		log: log.With("component", "extract"),
	}
}

// Extract returns the main content of rawHTML as plain text. urlHint, when
// non-empty, resolves relative references during readability parsing.
//
// The stages fall through in order; the first one yielding usable text wins:
//  1. readability article extraction,
//  2. first matching main-content selector (main, article, #content, ...),
//  3. scoring-based pruning of body blocks,
//  4. visible text of the whole filtered document.
//
// Malformed markup never propagates a parser failure: the result is either
// best-effort text, "", or ErrNoContent.
func (e *Extractor) Extract(rawHTML, urlHint string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Warn("parser panic", "url", urlHint, "panic", r)
			text, err = "", ErrNoContent
		}
	}()

	if strings.TrimSpace(rawHTML) == "" {
		return "", ErrNoContent
	}

	cleaned := removeNodes(rawHTML, noiseSelectors)

	if article, ok := e.readabilityArticle(cleaned, urlHint); ok {
		return normalizeSpace(article.TextContent), nil
	}

	degraded := removeNodes(cleaned, chromeSelectors)

	if frag, ok := mainContentBySelector(degraded); ok {
		if t := strings.TrimSpace(stripTags(frag)); t != "" {
			return normalizeSpace(t), nil
		}
	}

	if pruned, perr := pruneContent(degraded); perr == nil {
		if t := strings.TrimSpace(stripTags(pruned)); t != "" {
			return normalizeSpace(t), nil
		}
	}

	t := strings.TrimSpace(stripTags(degraded))
	if t != "" {
		return normalizeSpace(t), nil
	}
	if strings.Contains(rawHTML, "<") {
		// Parsed as markup but zero visible text.
		return "", nil
	}
	return "", ErrNoContent
}

// ExtractMarkdown returns the main content rendered as markdown. citations
// converts inline links to reference-style citations. Conversion failures
// degrade to the plain-text extraction rather than surfacing an error.
func (e *Extractor) ExtractMarkdown(rawHTML, urlHint string, citations bool) (md string, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Warn("parser panic", "url", urlHint, "panic", r)
			md, err = "", ErrNoContent
		}
	}()

	if strings.TrimSpace(rawHTML) == "" {
		return "", ErrNoContent
	}

	cleaned := removeNodes(rawHTML, noiseSelectors)

	var contentHTML string
	if article, ok := e.readabilityArticle(cleaned, urlHint); ok {
		contentHTML = article.Content
	} else if frag, ok := mainContentBySelector(removeNodes(cleaned, chromeSelectors)); ok {
		contentHTML = frag
	} else if pruned, perr := pruneContent(cleaned); perr == nil {
		contentHTML = pruned
	} else {
		contentHTML = cleaned
	}

	out, cerr := e.md.ConvertString(contentHTML, converter.WithDomain(urlHint))
	if cerr != nil || strings.TrimSpace(out) == "" {
		if cerr != nil {
			e.log.Warn("markdown conversion failed, falling back to text", "url", urlHint, "error", cerr)
		}
		return e.Extract(rawHTML, urlHint)
	}

	out = strings.TrimSpace(out)
	if citations {
		out = toCitations(out)
	}
	return out, nil
}

// noiseSelectors are always removed before any extraction stage.
var noiseSelectors = []string{"script", "style", "noscript", "iframe", "template"}

// chromeSelectors are page chrome removed on the fallback paths, where no
// algorithm separates content from boilerplate.
var chromeSelectors = []string{"nav", "header", "footer", "aside", "form", "button"}

// removeNodes drops all elements matching the selectors. Unparseable input
// is returned unchanged.
func removeNodes(rawHTML string, selectors []string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return rawHTML
	}
	doc.Find(strings.Join(selectors, ", ")).Remove()
	out, err := doc.Html()
	if err != nil {
		return rawHTML
	}
	return out
}

// stripTags extracts visible text from an HTML fragment via goquery.
func stripTags(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	return strings.TrimSpace(doc.Text())
}

var reMultiBlank = regexp.MustCompile(`\n{3,}`)

// normalizeSpace collapses runs of spaces within lines and runs of blank
// lines, so extracted text is stable across extraction stages.
func normalizeSpace(s string) string {
	lines := strings.Split(s, "\n")
	for i, ln := range lines {
		lines[i] = strings.Join(strings.Fields(ln), " ")
	}
	out := strings.Join(lines, "\n")
	out = reMultiBlank.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
