package models

// FetchMethod names the ladder rung that produced a result.
type FetchMethod string

const (
	MethodHTTP        FetchMethod = "http"
	MethodStaticParse FetchMethod = "static_parse"
	MethodHeadless    FetchMethod = "headless"
	MethodHeadful     FetchMethod = "headful"
)

// ScrapeStatus is the terminal state of one scrape request.
type ScrapeStatus string

const (
	// StatusSuccess: some rung met the success predicate.
	StatusSuccess ScrapeStatus = "success"

	// StatusPartial: every rung fell short, but at least one produced
	// non-empty content; the longest such content is returned best-effort.
	StatusPartial ScrapeStatus = "partial"

	// StatusFailure: the ladder was exhausted with nothing usable.
	StatusFailure ScrapeStatus = "failure"
)

// ScrapeResult is the outcome of running one URL through the ladder.
// It is produced exactly once per request and never mutated after return.
type ScrapeResult struct {
	// URL is the requested URL.
	URL string `json:"url"`

	// Title is the page title when one was seen. Best effort.
	Title string `json:"title,omitempty"`

	// Content is the extracted text (or markdown, per request format).
	// Empty when Status is "failure".
	Content string `json:"content"`

	// Method is the rung that produced Content, or the last rung
	// attempted when no rung succeeded.
	Method FetchMethod `json:"method_used"`

	// Status reports how the ladder ended.
	Status ScrapeStatus `json:"status"`

	// Error is populated when Status is not "success".
	Error *ErrorDetail `json:"error,omitempty"`

	// ElapsedMs is the wall-clock duration of the whole ladder run.
	ElapsedMs int64 `json:"elapsed_ms"`
}

// Clone returns a deep copy, so cached results can be handed out without
// aliasing.
func (r *ScrapeResult) Clone() *ScrapeResult {
	if r == nil {
		return nil
	}
	out := *r
	if r.Error != nil {
		e := *r.Error
		out.Error = &e
	}
	return &out
}

// SearchSource names the provider strategy that produced a search result.
type SearchSource string

const (
	// SourceAPI: the structured search API answered.
	SourceAPI SearchSource = "api"

	// SourceScrape: a results page was fetched and parsed.
	SourceScrape SearchSource = "scrape"
)

// SearchResult is the outcome of one search query.
type SearchResult struct {
	// Query is the requested search string.
	Query string `json:"query"`

	// URLs are deduplicated candidate URLs in provider-relevance order,
	// truncated to the requested count.
	URLs []string `json:"urls"`

	// Provider reports which strategy produced the URLs.
	Provider SearchSource `json:"provider"`

	// Status is "success" or "failure"; a search never ends partial.
	Status ScrapeStatus `json:"status"`

	// Error is populated when Status is "failure".
	Error *ErrorDetail `json:"error,omitempty"`
}
