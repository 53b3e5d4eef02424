package browser

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"

	"github.com/use-agent/harvest/extract"
	"github.com/use-agent/harvest/models"
	"github.com/use-agent/harvest/textdupe"
)

// fullTextDupeBits is the fingerprint distance below which the raw text dump
// and the extractor's reading count as the same content.
const fullTextDupeBits = 3

// Click waits for the first element matching selector and clicks it.
func (s *Session) Click(ctx context.Context, selector string) error {
	if selector == "" {
		return models.NewScrapeError(models.ErrCodeInvalidInput, "selector is required", nil)
	}
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()
	if err := s.requireActiveLocked(); err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()
	p := s.page.Context(opCtx)

	el, err := p.Element(selector)
	if err != nil {
		return s.elementError(selector, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return s.opErrorLocked(err, fmt.Sprintf("click on %q failed", selector))
	}

	// Clicks often trigger a navigation or DOM rewrite.
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		s.log.Debug("dom did not stabilize after click", "selector", selector, "error", err)
	}
	s.ops++
	return nil
}

// Type replaces the content of the element matching selector with text.
// With submit set it presses Enter afterwards, which submits most forms.
func (s *Session) Type(ctx context.Context, selector, text string, submit bool) error {
	if selector == "" {
		return models.NewScrapeError(models.ErrCodeInvalidInput, "selector is required", nil)
	}
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()
	if err := s.requireActiveLocked(); err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()
	p := s.page.Context(opCtx)

	el, err := p.Element(selector)
	if err != nil {
		return s.elementError(selector, err)
	}
	if err := el.SelectAllText(); err != nil {
		s.log.Debug("select-all before typing failed", "selector", selector, "error", err)
	}
	if err := el.Input(text); err != nil {
		return s.opErrorLocked(err, fmt.Sprintf("typing into %q failed", selector))
	}
	if submit {
		if err := p.Keyboard.Press(input.Enter); err != nil {
			return s.opErrorLocked(err, "submitting after typing failed")
		}
		if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
			s.log.Debug("dom did not stabilize after submit", "selector", selector, "error", err)
		}
	}
	s.ops++
	return nil
}

// Evaluate runs script in the page and returns its result. Strings come
// back as-is; everything else is rendered as JSON.
func (s *Session) Evaluate(ctx context.Context, script string) (string, error) {
	if script == "" {
		return "", models.NewScrapeError(models.ErrCodeInvalidInput, "script is required", nil)
	}
	if err := s.lock(ctx); err != nil {
		return "", err
	}
	defer s.unlock()
	if err := s.requireActiveLocked(); err != nil {
		return "", err
	}

	opCtx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()
	p := s.page.Context(opCtx)

	// Rod evaluates function definitions only, while callers pass arbitrary
	// expressions or statement lists. Routing through eval accepts both.
	quoted, err := json.Marshal(script)
	if err != nil {
		return "", models.NewScrapeError(models.ErrCodeScriptEvaluation, "script is not encodable", err)
	}
	res, err := p.Eval("() => eval(" + string(quoted) + ")")
	if err != nil {
		if crashErr := s.opErrorLocked(err, "script evaluation failed"); models.CodeOf(crashErr) == models.ErrCodeBrowserCrash {
			return "", crashErr
		}
		return "", models.NewScrapeError(models.ErrCodeScriptEvaluation, "script evaluation failed", err)
	}
	s.ops++

	if res == nil {
		return "null", nil
	}
	switch v := res.Value.Val().(type) {
	case nil:
		return "null", nil
	case string:
		return v, nil
	default:
		return res.Value.JSON("", ""), nil
	}
}

// Screenshot captures the element matching selector, or the full page when
// selector is empty, as a PNG data URL. Name only labels the capture in logs.
func (s *Session) Screenshot(ctx context.Context, name, selector string) (string, error) {
	if err := s.lock(ctx); err != nil {
		return "", err
	}
	defer s.unlock()
	if err := s.requireActiveLocked(); err != nil {
		return "", err
	}

	opCtx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()
	p := s.page.Context(opCtx)

	var (
		bin []byte
		err error
	)
	if selector != "" {
		el, elErr := p.Element(selector)
		if elErr != nil {
			return "", s.elementError(selector, elErr)
		}
		bin, err = el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
	} else {
		bin, err = p.Screenshot(true, &proto.PageCaptureScreenshot{
			Format: proto.PageCaptureScreenshotFormatPng,
		})
	}
	if err != nil {
		return "", s.opErrorLocked(err, "screenshot failed")
	}
	s.ops++
	s.log.Debug("screenshot captured", "name", name, "selector", selector, "bytes", len(bin))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(bin), nil
}

// Text returns the visible text of the current page, truncated to the
// configured limit.
func (s *Session) Text(ctx context.Context) (string, error) {
	if err := s.lock(ctx); err != nil {
		return "", err
	}
	defer s.unlock()
	if err := s.requireActiveLocked(); err != nil {
		return "", err
	}

	opCtx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	text, err := s.pageText(opCtx)
	if err != nil {
		return "", err
	}
	s.ops++
	return truncateRunes(text, s.cfg.TextLimit), nil
}

// FullText combines the page's raw text dump with the extractor's reading of
// the same document and returns the merged view under the full-text limit.
func (s *Session) FullText(ctx context.Context) (string, error) {
	if err := s.lock(ctx); err != nil {
		return "", err
	}
	defer s.unlock()
	if err := s.requireActiveLocked(); err != nil {
		return "", err
	}

	opCtx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()
	p := s.page.Context(opCtx)

	html, err := p.HTML()
	if err != nil {
		return "", s.opErrorLocked(err, "failed to read page")
	}
	visible := extract.VisibleText([]byte(html))

	// Boilerplate-only pages have nothing for the extractor; the raw dump
	// still stands on its own.
	extracted, exErr := s.ex.Extract(html, s.lastURL)
	if exErr != nil {
		extracted = ""
	}

	s.ops++
	return truncateRunes(mergeViews(visible, extracted), s.cfg.FullTextLimit), nil
}

// mergeViews folds the DOM text dump and the extracted article into one dump.
// Near-identical views collapse to the longer one; distinct views are
// concatenated with each line kept once.
func mergeViews(visible, extracted string) string {
	switch {
	case extracted == "":
		return visible
	case visible == "":
		return extracted
	}
	if textdupe.NearDuplicate(visible, extracted, fullTextDupeBits) {
		if len(extracted) > len(visible) {
			return extracted
		}
		return visible
	}

	seen := make(map[string]struct{})
	var lines []string
	for _, view := range []string{visible, extracted} {
		for _, line := range strings.Split(view, "\n") {
			key := strings.TrimSpace(line)
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func (s *Session) pageText(ctx context.Context) (string, error) {
	p := s.page.Context(ctx)
	html, err := p.HTML()
	if err != nil {
		return "", s.opErrorLocked(err, "failed to read page")
	}
	return extract.VisibleText([]byte(html)), nil
}

// elementError reports a missing element, unless the real problem is that
// the browser died underneath the lookup.
func (s *Session) elementError(selector string, err error) error {
	if crashErr := s.opErrorLocked(err, "element lookup failed"); models.CodeOf(crashErr) == models.ErrCodeBrowserCrash {
		return crashErr
	}
	return models.NewScrapeError(models.ErrCodeElementNotFound,
		fmt.Sprintf("no element matches %q", selector), err)
}
