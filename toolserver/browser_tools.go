package toolserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/harvest/browser"
)

func (s *Server) registerBrowserTools() {
	navigateTool := mcp.NewTool("browser_navigate",
		mcp.WithDescription("Open a URL in the managed headless browser session. Later browser_* calls act on this page."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL to navigate to"),
		),
	)
	s.mcp.AddTool(navigateTool, s.handleNavigate(false))

	navigateHeadfulTool := mcp.NewTool("browser_navigate_headful",
		mcp.WithDescription("Open a URL in a visible browser window. Use for pages that detect headless browsers or need a human to watch. A live headless session is replaced."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL to navigate to"),
		),
	)
	s.mcp.AddTool(navigateHeadfulTool, s.handleNavigate(true))

	clickTool := mcp.NewTool("browser_click",
		mcp.WithDescription("Click the first element matching a CSS selector on the current page."),
		mcp.WithString("selector",
			mcp.Required(),
			mcp.Description("CSS selector of the element to click"),
		),
	)
	s.mcp.AddTool(clickTool, s.handleClick())

	typeTool := mcp.NewTool("browser_type",
		mcp.WithDescription("Type text into the first element matching a CSS selector, optionally pressing Enter afterwards."),
		mcp.WithString("selector",
			mcp.Required(),
			mcp.Description("CSS selector of the input element"),
		),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("The text to type"),
		),
		mcp.WithBoolean("submit",
			mcp.Description("Press Enter after typing (default: false)"),
		),
	)
	s.mcp.AddTool(typeTool, s.handleType())

	evaluateTool := mcp.NewTool("browser_evaluate",
		mcp.WithDescription("Evaluate a JavaScript expression on the current page and return its result as a string."),
		mcp.WithString("script",
			mcp.Required(),
			mcp.Description("JavaScript to evaluate in the page"),
		),
	)
	s.mcp.AddTool(evaluateTool, s.handleEvaluate())

	screenshotTool := mcp.NewTool("browser_screenshot",
		mcp.WithDescription("Capture a screenshot of the current page, or of a single element, as a PNG data URL."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Name for the screenshot"),
		),
		mcp.WithString("selector",
			mcp.Description("CSS selector of an element to capture instead of the full page"),
		),
	)
	s.mcp.AddTool(screenshotTool, s.handleScreenshot())

	getTextTool := mcp.NewTool("browser_get_text",
		mcp.WithDescription("Return the visible text of the current page, truncated to a readable size."),
	)
	s.mcp.AddTool(getTextTool, s.handleGetText())

	getFullTextTool := mcp.NewTool("browser_get_full_text",
		mcp.WithDescription("Return the text of the current page combined with an article extraction pass, for long pages where browser_get_text truncates too much."),
	)
	s.mcp.AddTool(getFullTextTool, s.handleGetFullText())

	closeTool := mcp.NewTool("browser_close",
		mcp.WithDescription("Close the browser session and release its resources. Safe to call when no session is open."),
	)
	s.mcp.AddTool(closeTool, s.handleClose())
}

func (s *Server) handleNavigate(headful bool) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		var info *browser.NavInfo
		if headful {
			info, err = s.deps.Browser.NavigateHeadful(ctx, url)
		} else {
			info, err = s.deps.Browser.Navigate(ctx, url)
		}
		if err != nil {
			return toolError(err), nil
		}
		return mcp.NewToolResultText(navSummary(info, headful)), nil
	}
}

func navSummary(info *browser.NavInfo, headful bool) string {
	var b strings.Builder
	if headful {
		b.WriteString("Opened in visible browser: ")
	} else {
		b.WriteString("Navigated to: ")
	}
	b.WriteString(info.FinalURL)
	if info.Title != "" {
		b.WriteString("\nTitle: ")
		b.WriteString(info.Title)
	}
	if info.Preview != "" {
		b.WriteString("\n\n")
		b.WriteString(info.Preview)
	}
	return b.String()
}

func (s *Server) handleClick() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		selector, err := request.RequireString("selector")
		if err != nil {
			return mcp.NewToolResultError("selector is required"), nil
		}
		if err := s.deps.Browser.Click(ctx, selector); err != nil {
			return toolError(err), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Clicked element: %s", selector)), nil
	}
}

func (s *Server) handleType() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		selector, err := request.RequireString("selector")
		if err != nil {
			return mcp.NewToolResultError("selector is required"), nil
		}
		text, err := request.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError("text is required"), nil
		}
		submit := request.GetBool("submit", false)

		if err := s.deps.Browser.Type(ctx, selector, text, submit); err != nil {
			return toolError(err), nil
		}
		msg := fmt.Sprintf("Typed %d characters into %s", len(text), selector)
		if submit {
			msg += " and pressed Enter"
		}
		return mcp.NewToolResultText(msg), nil
	}
}

func (s *Server) handleEvaluate() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		script, err := request.RequireString("script")
		if err != nil {
			return mcp.NewToolResultError("script is required"), nil
		}
		out, err := s.deps.Browser.Evaluate(ctx, script)
		if err != nil {
			return toolError(err), nil
		}
		return mcp.NewToolResultText(out), nil
	}
}

func (s *Server) handleScreenshot() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := request.RequireString("name")
		if err != nil {
			return mcp.NewToolResultError("name is required"), nil
		}
		selector := request.GetString("selector", "")

		dataURL, err := s.deps.Browser.Screenshot(ctx, name, selector)
		if err != nil {
			return toolError(err), nil
		}
		return mcp.NewToolResultText(dataURL), nil
	}
}

func (s *Server) handleGetText() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := s.deps.Browser.Text(ctx)
		if err != nil {
			return toolError(err), nil
		}
		return mcp.NewToolResultText(text), nil
	}
}

func (s *Server) handleGetFullText() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := s.deps.Browser.FullText(ctx)
		if err != nil {
			return toolError(err), nil
		}
		return mcp.NewToolResultText(text), nil
	}
}

func (s *Server) handleClose() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := s.deps.Browser.Close(ctx); err != nil {
			return toolError(err), nil
		}
		return mcp.NewToolResultText("Browser session closed"), nil
	}
}
