package browser

import (
	"context"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/use-agent/harvest/models"
)

// RenderRequest asks for one throwaway page load on behalf of the scrape
// ladder. Mode must be ModeHeadless or ModeHeadful.
type RenderRequest struct {
	URL     string
	Mode    Mode
	Headers map[string]string

	// Settle is an extra wait after DOM stability, for pages whose anti-bot
	// checks or late scripts rewrite the document well after load.
	Settle time.Duration
}

// RenderResult is the rendered document.
type RenderResult struct {
	HTML     string
	Title    string
	FinalURL string
}

// Render loads req.URL in a fresh tab and returns the rendered document.
//
// The session mutex is held for the whole render, so renders and session
// operations never interleave. When the live session matches the requested
// mode its browser hosts the tab; otherwise a scoped browser is launched
// and torn down before returning. Session state is never changed either
// way: a render leaves mode, page and history exactly as it found them.
func (s *Session) Render(ctx context.Context, req RenderRequest) (*RenderResult, error) {
	target, err := models.ValidateURL(req.URL)
	if err != nil {
		return nil, err
	}
	if req.Mode != ModeHeadless && req.Mode != ModeHeadful {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "render mode must be headless or headful", nil)
	}

	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()

	var (
		page    *rod.Page
		cleanup func()
	)
	if s.mode == req.Mode && s.aliveLocked() {
		p, perr := s.browser.Page(proto.TargetCreateTarget{})
		if perr != nil {
			return nil, s.opErrorLocked(perr, "failed to open render tab")
		}
		page = p
		cleanup = func() { _ = p.Close() }
	} else {
		b, l, lerr := launch(s.cfg, req.Mode)
		if lerr != nil {
			return nil, lerr
		}
		p, perr := b.Page(proto.TargetCreateTarget{})
		if perr != nil {
			_ = b.Close()
			l.Kill()
			return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to open render tab", perr)
		}
		page = p
		cleanup = func() {
			_ = b.Close()
			l.Kill()
		}
	}
	defer cleanup()

	return s.renderOn(ctx, page, target, req)
}

func (s *Session) renderOn(ctx context.Context, page *rod.Page, target string, req RenderRequest) (*RenderResult, error) {
	headers := map[string]string{}
	if _, has := req.Headers["Referer"]; !has {
		if ref := searchReferer(target); ref != "" {
			headers["Referer"] = ref
		}
	}
	for k, v := range req.Headers {
		headers[k] = v
	}

	blockTypes := s.cfg.BlockedResourceTypes
	if req.Mode == ModeHeadful {
		blockTypes = nil
	}
	router := preparePage(page, s.cfg, headers, blockTypes, s.log)
	if router != nil {
		defer func() { _ = router.Stop() }()
	}

	p := page.Context(ctx)

	if err := p.Navigate(target); err != nil {
		return nil, models.Categorize(err, "render navigation failed")
	}
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		s.log.Debug("dom did not stabilize, using current state", "url", target, "error", err)
	}
	if req.Settle > 0 {
		select {
		case <-time.After(req.Settle):
		case <-ctx.Done():
			return nil, models.Categorize(ctx.Err(), "render interrupted during settle wait")
		}
	}

	html, err := p.HTML()
	if err != nil {
		return nil, models.Categorize(err, "failed to read rendered page")
	}
	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = target
	}

	return &RenderResult{
		HTML:     html,
		Title:    evalStringOrEmpty(p, `() => document.title`),
		FinalURL: finalURL,
	}, nil
}
