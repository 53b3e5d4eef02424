package toolserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/harvest/governor"
	"github.com/use-agent/harvest/models"
)

func (s *Server) registerSearchTools() {
	searchQueryTool := mcp.NewTool("search_query",
		mcp.WithDescription("Search the web and return a list of result URLs in relevance order. Tries a search API first and falls back to scraping results pages."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The search query"),
		),
		mcp.WithNumber("num_results",
			mcp.Description("Maximum number of URLs to return (default: 10, max: 50)"),
		),
	)
	s.mcp.AddTool(searchQueryTool, s.handleSearchQuery())

	searchMultipleTool := mcp.NewTool("search_multiple",
		mcp.WithDescription("Run multiple web searches in parallel with bounded concurrency. Results come back in input order; one query failing does not affect the others."),
		mcp.WithArray("queries",
			mcp.Required(),
			mcp.Description("List of search queries"),
		),
		mcp.WithNumber("max_concurrent",
			mcp.Description("Maximum number of searches running at once (default: 5)"),
		),
		mcp.WithNumber("num_results",
			mcp.Description("Maximum number of URLs to return per query (default: 10, max: 50)"),
		),
	)
	s.mcp.AddTool(searchMultipleTool, s.handleSearchMultiple())
}

func (s *Server) handleSearchQuery() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError("query is required"), nil
		}
		numResults := request.GetInt("num_results", 0)

		res := s.deps.Searcher.Search(ctx, &models.SearchRequest{
			Query:      query,
			NumResults: numResults,
		})
		return resultJSON(res)
	}
}

func (s *Server) handleSearchMultiple() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		queries, err := request.RequireStringSlice("queries")
		if err != nil {
			return mcp.NewToolResultError("queries is required and must be an array of strings"), nil
		}
		if len(queries) == 0 {
			return mcp.NewToolResultError("queries must not be empty"), nil
		}
		if len(queries) > s.cfg.Batch.MaxQueries {
			return mcp.NewToolResultError(fmt.Sprintf("too many queries: %d exceeds the limit of %d", len(queries), s.cfg.Batch.MaxQueries)), nil
		}
		numResults := request.GetInt("num_results", 0)
		maxConcurrent := clamp(request.GetInt("max_concurrent", 5), 1, s.cfg.Batch.MaxConcurrent)

		outcomes := governor.Map(ctx, queries, maxConcurrent,
			func(ctx context.Context, query string) (*models.SearchResult, error) {
				return s.deps.Searcher.Search(ctx, &models.SearchRequest{
					Query:      query,
					NumResults: numResults,
				}), nil
			})

		results := make([]*models.SearchResult, len(outcomes))
		for i, out := range outcomes {
			if out.Err != nil {
				results[i] = &models.SearchResult{
					Query:  queries[i],
					URLs:   []string{},
					Status: models.StatusFailure,
					Error:  models.AsDetail(out.Err),
				}
				continue
			}
			results[i] = out.Value
		}
		return resultJSON(results)
	}
}
