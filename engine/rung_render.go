package engine

import (
	"context"
	"time"

	"github.com/use-agent/harvest/browser"
	"github.com/use-agent/harvest/extract"
	"github.com/use-agent/harvest/models"
)

// Renderer is the browser surface the render rungs need.
type Renderer interface {
	Render(ctx context.Context, req browser.RenderRequest) (*browser.RenderResult, error)
}

// RenderRung loads the page in a real browser through the shared session
// and extracts from the rendered document. The headless and headful rungs
// are the same type in different modes.
type RenderRung struct {
	renderer Renderer
	ex       *extract.Extractor
	mode     browser.Mode
	method   models.FetchMethod
	settle   time.Duration
}

func NewHeadlessRung(renderer Renderer, ex *extract.Extractor) *RenderRung {
	return &RenderRung{
		renderer: renderer,
		ex:       ex,
		mode:     browser.ModeHeadless,
		method:   models.MethodHeadless,
	}
}

// NewHeadfulRung builds the last rung. settle is the extra wait after load,
// giving anti-bot checks time to pass and rewrite the document.
func NewHeadfulRung(renderer Renderer, ex *extract.Extractor, settle time.Duration) *RenderRung {
	return &RenderRung{
		renderer: renderer,
		ex:       ex,
		mode:     browser.ModeHeadful,
		method:   models.MethodHeadful,
		settle:   settle,
	}
}

func (r *RenderRung) Method() models.FetchMethod { return r.method }

func (r *RenderRung) Attempt(ctx context.Context, req *models.ScrapeRequest, st *State) (string, error) {
	res, err := r.renderer.Render(ctx, browser.RenderRequest{
		URL:     req.URL,
		Mode:    r.mode,
		Headers: req.Headers,
		Settle:  r.settle,
	})
	if err != nil {
		return "", err
	}

	st.HTML = res.HTML
	st.Title = res.Title
	st.FinalURL = res.FinalURL

	return contentFor(r.ex, req, res.HTML, "", res.FinalURL)
}
