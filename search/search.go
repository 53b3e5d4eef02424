// Package search resolves free-text queries to candidate page URLs.
//
// Engines are tried in configuration order until one produces URLs: the
// DuckDuckGo Instant Answer API first, then results-page scraping. An engine
// error or an empty answer falls through to the next engine without changing
// the output contract.
package search

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/fetch"
	"github.com/use-agent/harvest/models"
)

// Engine is one strategy for turning a query into URLs. Implementations
// return raw candidate URLs in relevance order; the manager normalizes,
// deduplicates and truncates them.
type Engine interface {
	Name() string
	Source() models.SearchSource
	Search(ctx context.Context, query string, limit int) ([]string, error)
}

// Manager runs the engine fallback chain.
type Manager struct {
	engines []Engine
	timeout time.Duration
	log     *slog.Logger
}

// NewManager builds the engine chain from configuration. A "duckduckgo"
// entry expands to the Instant Answer API followed by the HTML results page.
func NewManager(cfg config.SearchConfig, client *fetch.Client, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	var engines []Engine
	for _, name := range cfg.Engines {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "duckduckgo":
			engines = append(engines, &DDGAPI{client: client}, &DDGHTML{client: client})
		case "google":
			engines = append(engines, &Google{client: client})
		default:
			log.Warn("unknown search engine in config", "engine", name)
		}
	}
	return newManager(engines, cfg.Timeout, log)
}

func newManager(engines []Engine, timeout time.Duration, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Manager{
		engines: engines,
		timeout: timeout,
		log:     log.With("component", "search"),
	}
}

// Search answers req with the first engine that produces URLs. The returned
// result always has a non-nil URL slice; all engines failing yields status
// failure with the last error attached.
func (m *Manager) Search(ctx context.Context, req *models.SearchRequest) *models.SearchResult {
	res := &models.SearchResult{Query: req.Query, URLs: []string{}}
	if err := req.Normalize(); err != nil {
		res.Status = models.StatusFailure
		res.Error = models.AsDetail(err)
		return res
	}
	res.Query = req.Query

	var lastErr error
	for _, eng := range m.engines {
		if ctx.Err() != nil {
			lastErr = models.Categorize(ctx.Err(), "search interrupted")
			break
		}

		engCtx, cancel := context.WithTimeout(ctx, m.timeout)
		raw, err := eng.Search(engCtx, req.Query, req.NumResults)
		cancel()
		if err != nil {
			m.log.Warn("search engine failed", "engine", eng.Name(), "error", err)
			lastErr = err
			continue
		}

		urls := dedupe(raw, req.NumResults)
		if len(urls) == 0 {
			m.log.Debug("search engine returned nothing", "engine", eng.Name(), "query", req.Query)
			continue
		}

		res.URLs = urls
		res.Provider = eng.Source()
		res.Status = models.StatusSuccess
		m.log.Info("search complete", "engine", eng.Name(), "query", req.Query, "urls", len(urls))
		return res
	}

	if lastErr == nil {
		lastErr = models.NewScrapeError(models.ErrCodeInternal, "no search engine returned results", nil)
	}
	res.Status = models.StatusFailure
	res.Error = models.AsDetail(lastErr)
	return res
}

// codeForStatus maps a results-page or API status to the error taxonomy.
func codeForStatus(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return models.ErrCodeUnauthorized
	case http.StatusTooManyRequests:
		return models.ErrCodeRateLimited
	case http.StatusForbidden, http.StatusServiceUnavailable:
		return models.ErrCodeBlocked
	}
	return models.ErrCodeNetwork
}
