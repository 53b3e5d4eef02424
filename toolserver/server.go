// Package toolserver exposes the scraper, search provider and browser
// session as MCP tools, served over streamable HTTP or stdio.
package toolserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/harvest/browser"
	"github.com/use-agent/harvest/cache"
	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/models"
)

const serverName = "harvest"

// Version is reported in the MCP handshake and the health payload.
const Version = "1.0.0"

// Scraper runs one URL through the fallback ladder.
type Scraper interface {
	Scrape(ctx context.Context, req *models.ScrapeRequest) *models.ScrapeResult
}

// Searcher resolves one query to candidate URLs.
type Searcher interface {
	Search(ctx context.Context, req *models.SearchRequest) *models.SearchResult
}

// Browser is the interactive session driven by the browser_* tools.
type Browser interface {
	Navigate(ctx context.Context, url string) (*browser.NavInfo, error)
	NavigateHeadful(ctx context.Context, url string) (*browser.NavInfo, error)
	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string, submit bool) error
	Evaluate(ctx context.Context, script string) (string, error)
	Screenshot(ctx context.Context, name, selector string) (string, error)
	Text(ctx context.Context) (string, error)
	FullText(ctx context.Context) (string, error)
	Close(ctx context.Context) error
}

// Extractor turns raw markup into clean text.
type Extractor interface {
	Extract(rawHTML, urlHint string) (string, error)
}

// Deps are the wired components behind the tool surface.
type Deps struct {
	Scraper   Scraper
	Searcher  Searcher
	Browser   Browser
	Extractor Extractor
	Cache     *cache.Cache
}

// Server owns the MCP server and its tool registrations.
type Server struct {
	mcp  *server.MCPServer
	cfg  *config.Config
	deps Deps
	log  *slog.Logger
}

// New builds the tool server and registers all tools.
func New(cfg *config.Config, deps Deps, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		mcp: server.NewMCPServer(
			serverName,
			Version,
			server.WithToolCapabilities(false),
		),
		cfg:  cfg,
		deps: deps,
		log:  log.With("component", "toolserver"),
	}
	s.registerScrapeTools()
	s.registerSearchTools()
	s.registerBrowserTools()
	return s
}

// ServeStdio serves the tool surface over stdin/stdout until EOF.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// HTTPHandler returns the streamable HTTP endpoint for mounting under /mcp.
// Stateless: every request carries its full context.
func (s *Server) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp,
		server.WithEndpointPath("/mcp"),
		server.WithStateLess(true),
	)
}

// toolError renders err as a failed tool call, code first so the calling
// agent can branch on it.
func toolError(err error) *mcp.CallToolResult {
	d := models.AsDetail(err)
	return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", d.Code, d.Message))
}
