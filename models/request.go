package models

import (
	"net/url"
	"strings"
	"time"
)

// Output formats for scraped content.
const (
	FormatText              = "text"
	FormatMarkdown          = "markdown"
	FormatMarkdownCitations = "markdown_citations"
)

// ScrapeRequest describes one URL to run through the fallback ladder.
// A request is built once per call and not mutated afterwards.
type ScrapeRequest struct {
	// URL is the target page. Required, http(s) only.
	URL string `json:"url"`

	// MaxRetries bounds transient-error retries inside a single rung.
	// Escalation to the next rung does not count against it.
	// Default: 3. Max: 10.
	MaxRetries int `json:"max_retries,omitempty"`

	// RungTimeout is the deadline for one rung attempt.
	// Default: 30s. Range: 1s-120s.
	RungTimeout time.Duration `json:"-"`

	// Format controls the content rendering: "text" (default), "markdown",
	// or "markdown_citations" (markdown with reference-style links).
	Format string `json:"format,omitempty"`

	// Headers are merged over the default browser header profile for
	// rung-1 fetches.
	Headers map[string]string `json:"headers,omitempty"`
}

// ValidateURL checks that raw is an absolute http(s) URL and returns it
// trimmed. Anything else yields an INVALID_INPUT error.
func ValidateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", NewScrapeError(ErrCodeInvalidInput, "url is required", nil)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", NewScrapeError(ErrCodeInvalidInput, "url must be absolute http(s): "+raw, err)
	}
	return raw, nil
}

// Normalize applies defaults and clamps to a request. It returns an
// INVALID_INPUT error when the URL is missing or not absolute http(s).
func (r *ScrapeRequest) Normalize(defaultTimeout time.Duration) error {
	u, err := ValidateURL(r.URL)
	if err != nil {
		return err
	}
	r.URL = u
	if r.MaxRetries < 0 {
		r.MaxRetries = 0
	}
	if r.MaxRetries == 0 {
		r.MaxRetries = 3
	}
	if r.MaxRetries > 10 {
		r.MaxRetries = 10
	}
	if r.RungTimeout == 0 {
		r.RungTimeout = defaultTimeout
	}
	if r.RungTimeout < time.Second {
		r.RungTimeout = time.Second
	}
	if r.RungTimeout > 120*time.Second {
		r.RungTimeout = 120 * time.Second
	}
	switch r.Format {
	case "":
		r.Format = FormatText
	case FormatText, FormatMarkdown, FormatMarkdownCitations:
	default:
		return NewScrapeError(ErrCodeInvalidInput, "format must be text, markdown or markdown_citations", nil)
	}
	return nil
}

// SearchRequest describes one search query.
type SearchRequest struct {
	// Query is the search string. Required.
	Query string `json:"query"`

	// NumResults bounds the returned URL list. Default: 10. Max: 50.
	NumResults int `json:"num_results,omitempty"`
}

// Normalize applies defaults and clamps to a search request.
func (r *SearchRequest) Normalize() error {
	r.Query = strings.TrimSpace(r.Query)
	if r.Query == "" {
		return NewScrapeError(ErrCodeInvalidInput, "query is required", nil)
	}
	if r.NumResults <= 0 {
		r.NumResults = 10
	}
	if r.NumResults > 50 {
		r.NumResults = 50
	}
	return nil
}
