package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/use-agent/harvest/extract"
	"github.com/use-agent/harvest/fetch"
	"github.com/use-agent/harvest/models"
)

// HTTPRung is the first and cheapest rung: one request through the
// Chrome-fingerprint HTTP client, no browser, tokenizer-level extraction.
type HTTPRung struct {
	client *fetch.Client
	ex     *extract.Extractor
}

func NewHTTPRung(client *fetch.Client, ex *extract.Extractor) *HTTPRung {
	return &HTTPRung{client: client, ex: ex}
}

func (r *HTTPRung) Method() models.FetchMethod { return models.MethodHTTP }

func (r *HTTPRung) Attempt(ctx context.Context, req *models.ScrapeRequest, st *State) (string, error) {
	resp, err := r.client.Get(ctx, req.URL, req.Headers)
	if err != nil {
		return "", models.Categorize(err, "http fetch failed")
	}
	st.StatusCode = resp.StatusCode
	st.FinalURL = resp.FinalURL

	if err := statusError(resp.StatusCode); err != nil {
		return "", err
	}

	if !resp.IsHTML() {
		if resp.IsTextual() {
			// Plain text, JSON and XML bodies are already content.
			return string(resp.Body), nil
		}
		return "", models.NewScrapeError(models.ErrCodeParse,
			"unsupported content type "+resp.ContentType, nil)
	}

	st.HTML = string(resp.Body)
	st.Title = extract.Title(resp.Body)

	text := extract.VisibleText(resp.Body)
	if needsBrowser(resp.Body, text) {
		return text, fmt.Errorf("%w: page needs javascript rendering", ErrInsufficient)
	}

	return contentFor(r.ex, req, st.HTML, text, st.FinalURL)
}

// statusError maps upstream statuses the ladder cares about. 403, 429 and
// 503 are how bot walls answer, so they count as blocks rather than plain
// failures.
func statusError(code int) error {
	switch code {
	case http.StatusForbidden, http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return models.NewScrapeError(models.ErrCodeBlocked,
			fmt.Sprintf("upstream returned blocking status %d", code), nil)
	}
	if code >= 400 {
		return models.NewScrapeError(models.ErrCodeNetwork,
			fmt.Sprintf("upstream returned status %d", code), nil)
	}
	return nil
}

// contentFor renders content in the request's format. The http rung passes
// its already-computed visible text so the plain-text format stays cheap;
// other rungs pass "" and get the full extraction pipeline.
func contentFor(ex *extract.Extractor, req *models.ScrapeRequest, rawHTML, visibleText, urlHint string) (string, error) {
	var (
		content string
		err     error
	)
	switch req.Format {
	case models.FormatMarkdown:
		content, err = ex.ExtractMarkdown(rawHTML, urlHint, false)
	case models.FormatMarkdownCitations:
		content, err = ex.ExtractMarkdown(rawHTML, urlHint, true)
	default:
		if visibleText != "" {
			return visibleText, nil
		}
		content, err = ex.Extract(rawHTML, urlHint)
	}
	if err != nil {
		if errors.Is(err, extract.ErrNoContent) {
			return "", fmt.Errorf("%w: nothing extractable", ErrInsufficient)
		}
		return "", models.NewScrapeError(models.ErrCodeParse, "content extraction failed", err)
	}
	return content, nil
}

var reNoscriptJS = regexp.MustCompile(`<noscript[^>]*>[^<]*(enable|activate|turn on|requires?)\s+javascript`)

// needsBrowser decides whether a fetched document is a JavaScript shell
// that only a real browser can fill in.
func needsBrowser(body []byte, visibleText string) bool {
	// Very little visible text means an SPA shell or an empty document.
	if len(visibleText) < 200 {
		return true
	}

	lower := strings.ToLower(string(body))

	if hasEmptySPARoot(lower) {
		return true
	}
	if reNoscriptJS.MatchString(lower) {
		return true
	}
	// Script-heavy page with thin text: the content is rendered client-side.
	if strings.Count(lower, "<script") > 10 && len(visibleText) < 500 {
		return true
	}
	return false
}

// hasEmptySPARoot detects unrendered single-page-app mount points. A #root
// with no immediate element child is an empty shell; server-side rendering
// nests content directly inside it.
func hasEmptySPARoot(lower string) bool {
	if strings.Contains(lower, `<div id="root"></div>`) ||
		strings.Contains(lower, `<div id="app"></div>`) ||
		strings.Contains(lower, `<div id="__next"></div>`) {
		return true
	}
	return strings.Contains(lower, `<div id="root">`) &&
		!strings.Contains(lower, `<div id="root"><div`)
}
