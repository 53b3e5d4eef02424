package toolserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/harvest/cache"
	"github.com/use-agent/harvest/extract"
	"github.com/use-agent/harvest/governor"
	"github.com/use-agent/harvest/models"
)

func (s *Server) registerScrapeTools() {
	scrapeURLTool := mcp.NewTool("scrape_url",
		mcp.WithDescription("Scrape a web page and return its main content. Falls back from a plain HTTP fetch through static parsing to a headless and finally a visible browser until the page yields enough text."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the web page to scrape"),
		),
		mcp.WithNumber("max_retries",
			mcp.Description("Retries for transient errors within each fallback stage (default: 3, max: 10)"),
		),
		mcp.WithString("format",
			mcp.Description("Content format: 'text' (default), 'markdown', or 'markdown_citations' (markdown with reference-style links)"),
			mcp.Enum("text", "markdown", "markdown_citations"),
		),
	)
	s.mcp.AddTool(scrapeURLTool, s.handleScrapeURL())

	scrapeMultipleTool := mcp.NewTool("scrape_multiple",
		mcp.WithDescription("Scrape multiple URLs in parallel with bounded concurrency. Results come back in input order; one page failing does not affect the others."),
		mcp.WithArray("urls",
			mcp.Required(),
			mcp.Description("List of URLs to scrape"),
		),
		mcp.WithNumber("max_concurrent",
			mcp.Description("Maximum number of pages scraped at once (default: 10, max: 20)"),
		),
		mcp.WithString("format",
			mcp.Description("Content format: 'text' (default), 'markdown', or 'markdown_citations'"),
			mcp.Enum("text", "markdown", "markdown_citations"),
		),
	)
	s.mcp.AddTool(scrapeMultipleTool, s.handleScrapeMultiple())

	extractContentTool := mcp.NewTool("extract_content",
		mcp.WithDescription("Extract the main textual content from raw HTML without fetching anything."),
		mcp.WithString("html",
			mcp.Required(),
			mcp.Description("The raw HTML to extract content from"),
		),
		mcp.WithString("url",
			mcp.Description("Origin URL of the HTML, used to resolve relative references"),
		),
	)
	s.mcp.AddTool(extractContentTool, s.handleExtractContent())
}

func (s *Server) handleScrapeURL() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}
		format := request.GetString("format", "")
		maxRetries := request.GetInt("max_retries", 0)

		if key, cached := s.cachedResult(url, format); cached != nil {
			s.log.Debug("cache hit", "url", url, "key", key[:8])
			return resultJSON(cached)
		}

		res := s.deps.Scraper.Scrape(ctx, &models.ScrapeRequest{
			URL:        url,
			Format:     format,
			MaxRetries: maxRetries,
		})
		s.storeResult(url, format, res)
		return resultJSON(res)
	}
}

func (s *Server) handleScrapeMultiple() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		urls, err := request.RequireStringSlice("urls")
		if err != nil {
			return mcp.NewToolResultError("urls is required and must be an array of strings"), nil
		}
		if len(urls) == 0 {
			return mcp.NewToolResultError("urls must not be empty"), nil
		}
		if len(urls) > s.cfg.Batch.MaxURLs {
			return mcp.NewToolResultError(fmt.Sprintf("too many urls: %d exceeds the limit of %d", len(urls), s.cfg.Batch.MaxURLs)), nil
		}
		format := request.GetString("format", "")
		maxConcurrent := clamp(request.GetInt("max_concurrent", 10), 1, s.cfg.Batch.MaxConcurrent)

		outcomes := governor.Map(ctx, urls, maxConcurrent,
			func(ctx context.Context, url string) (*models.ScrapeResult, error) {
				if _, cached := s.cachedResult(url, format); cached != nil {
					return cached, nil
				}
				res := s.deps.Scraper.Scrape(ctx, &models.ScrapeRequest{URL: url, Format: format})
				s.storeResult(url, format, res)
				return res, nil
			})

		results := make([]*models.ScrapeResult, len(outcomes))
		for i, out := range outcomes {
			if out.Err != nil {
				results[i] = failedResult(urls[i], out.Err)
				continue
			}
			results[i] = out.Value
		}
		return resultJSON(results)
	}
}

func (s *Server) handleExtractContent() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rawHTML, err := request.RequireString("html")
		if err != nil {
			return mcp.NewToolResultError("html is required"), nil
		}
		urlHint := request.GetString("url", "")

		content, err := s.deps.Extractor.Extract(rawHTML, urlHint)
		if err != nil {
			if errors.Is(err, extract.ErrNoContent) {
				return mcp.NewToolResultError("no extractable content in the provided html"), nil
			}
			return toolError(err), nil
		}
		return mcp.NewToolResultText(content), nil
	}
}

// cachedResult looks up a previous successful scrape of url in format.
// An empty format keys as the text default so both spellings share an entry.
func (s *Server) cachedResult(url, format string) (string, *models.ScrapeResult) {
	key := cacheKey(url, format)
	if res, ok := s.deps.Cache.Get(key); ok {
		return key, res
	}
	return key, nil
}

func (s *Server) storeResult(url, format string, res *models.ScrapeResult) {
	s.deps.Cache.Set(cacheKey(url, format), res)
}

func cacheKey(url, format string) string {
	if format == "" {
		format = models.FormatText
	}
	return cache.Key(url, format)
}

// failedResult fills a batch slot for a worker that did not return a result.
func failedResult(url string, err error) *models.ScrapeResult {
	return &models.ScrapeResult{
		URL:    url,
		Status: models.StatusFailure,
		Error:  models.AsDetail(err),
	}
}

// resultJSON renders any result payload as an indented JSON text response.
func resultJSON(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
