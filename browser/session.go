// Package browser manages the single long-lived Rod browser session and the
// throwaway renders the scrape ladder runs on top of it.
//
// All public methods serialize on one mutex: at most one navigation, element
// operation or render is in flight at any moment, and state transitions are
// only ever observed in a settled state.
package browser

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/extract"
	"github.com/use-agent/harvest/models"
)

// Session owns the interactive browser. The zero state is closed; Navigate
// or NavigateHeadful launches the browser, Close tears it down, and a dead
// browser process forces the session back to closed on the next operation.
type Session struct {
	mu  chan struct{} // 1-slot semaphore, see lock/unlock
	cfg config.BrowserConfig
	log *slog.Logger
	ex  *extract.Extractor

	// Guarded by mu.
	mode     Mode
	browser  *rod.Browser
	launcher *launcher.Launcher
	page     *rod.Page
	router   *rod.HijackRouter
	lastURL  string
	ops      int64
}

// NavInfo reports the outcome of a session navigation.
type NavInfo struct {
	FinalURL string
	Title    string
	Preview  string
}

// Status is a point-in-time snapshot for health reporting.
type Status struct {
	Mode string `json:"mode"`
	URL  string `json:"current_url,omitempty"`
	Ops  int64  `json:"ops"`
}

// NewSession returns a closed session. No browser is launched until the
// first navigation.
func NewSession(cfg config.BrowserConfig, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	mu := make(chan struct{}, 1)
	mu <- struct{}{}
	return &Session{
		mu:  mu,
		cfg: cfg,
		log: log.With("component", "browser"),
		ex:  extract.NewExtractor(log),
	}
}

// lock acquires the session mutex, honouring context cancellation so a
// caller queued behind a slow render can still give up.
func (s *Session) lock(ctx context.Context) error {
	select {
	case <-s.mu:
		return nil
	case <-ctx.Done():
		return models.Categorize(ctx.Err(), "waiting for browser session")
	}
}

func (s *Session) unlock() {
	s.mu <- struct{}{}
}

// Navigate opens url in the headless session, launching or relaunching the
// browser as needed.
func (s *Session) Navigate(ctx context.Context, rawURL string) (*NavInfo, error) {
	return s.navigate(ctx, rawURL, ModeHeadless)
}

// NavigateHeadful opens url in a visible browser window. A live headless
// session is replaced by a headful one.
func (s *Session) NavigateHeadful(ctx context.Context, rawURL string) (*NavInfo, error) {
	return s.navigate(ctx, rawURL, ModeHeadful)
}

func (s *Session) navigate(ctx context.Context, rawURL string, mode Mode) (*NavInfo, error) {
	target, err := models.ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()

	if s.mode != mode || !s.aliveLocked() {
		s.closeLocked()
		if err := s.launchLocked(mode); err != nil {
			return nil, err
		}
	}

	navCtx, cancel := context.WithTimeout(ctx, s.cfg.NavigationTimeout)
	defer cancel()
	p := s.page.Context(navCtx)

	if err := p.Navigate(target); err != nil {
		return nil, s.opErrorLocked(err, "navigation failed")
	}
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		s.log.Debug("dom did not stabilize, using current state", "url", target, "error", err)
	}

	html, err := p.HTML()
	if err != nil {
		return nil, s.opErrorLocked(err, "failed to read page after navigation")
	}
	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = target
	}

	s.lastURL = finalURL
	s.ops++
	return &NavInfo{
		FinalURL: finalURL,
		Title:    evalStringOrEmpty(p, `() => document.title`),
		Preview:  truncateRunes(extract.VisibleText([]byte(html)), s.cfg.PreviewChars),
	}, nil
}

// Close tears the browser down. Closing a closed session is a no-op.
func (s *Session) Close(ctx context.Context) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()
	s.closeLocked()
	return nil
}

// Snapshot reports the current state without launching anything. When an
// operation holds the session longer than a health probe can wait, the
// snapshot reports "busy" instead of blocking behind it.
func (s *Session) Snapshot() Status {
	select {
	case <-s.mu:
		defer s.unlock()
		return Status{
			Mode: s.mode.String(),
			URL:  s.lastURL,
			Ops:  s.ops,
		}
	case <-time.After(250 * time.Millisecond):
		return Status{Mode: "busy"}
	}
}

// launchLocked starts a browser in the given mode and opens the session tab.
// Callers hold the mutex and have already torn down any previous browser.
func (s *Session) launchLocked(mode Mode) error {
	b, l, err := launch(s.cfg, mode)
	if err != nil {
		return err
	}

	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = b.Close()
		l.Kill()
		return models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to open session tab", err)
	}

	// Headful windows are watched by a human, so they load every resource.
	blockTypes := s.cfg.BlockedResourceTypes
	if mode == ModeHeadful {
		blockTypes = nil
	}
	router := preparePage(page, s.cfg, nil, blockTypes, s.log)

	s.browser = b
	s.launcher = l
	s.page = page
	s.router = router
	s.mode = mode
	s.log.Info("browser session started", "mode", mode.String())
	return nil
}

func (s *Session) closeLocked() {
	if s.browser == nil {
		s.mode = ModeClosed
		return
	}
	if s.router != nil {
		_ = s.router.Stop()
	}
	if err := s.browser.Close(); err != nil {
		s.log.Warn("browser close failed", "error", err)
	}
	if s.launcher != nil {
		s.launcher.Kill()
	}
	s.browser = nil
	s.launcher = nil
	s.page = nil
	s.router = nil
	s.lastURL = ""
	s.mode = ModeClosed
	s.log.Info("browser session closed")
}

// aliveLocked probes the browser process with a cheap CDP call.
func (s *Session) aliveLocked() bool {
	if s.browser == nil {
		return false
	}
	_, err := s.browser.Version()
	return err == nil
}

// requireActiveLocked gates element and script operations on a live session.
func (s *Session) requireActiveLocked() error {
	if s.mode == ModeClosed || s.browser == nil {
		return models.NewScrapeError(models.ErrCodeSessionNotActive,
			"no active browser session, call browser_navigate first", nil)
	}
	return nil
}

// opErrorLocked classifies an operation failure. A dead browser process
// forces the session to closed and reports a crash instead of the raw error.
func (s *Session) opErrorLocked(err error, msg string) error {
	if !s.aliveLocked() {
		s.closeLocked()
		return models.NewScrapeError(models.ErrCodeBrowserCrash, msg+": browser process died", err)
	}
	return models.Categorize(err, msg)
}

// launch starts a Chromium process in the given mode and connects to it.
// It touches no session state, so renders can use it for scoped browsers.
func launch(cfg config.BrowserConfig, mode Mode) (*rod.Browser, *launcher.Launcher, error) {
	l := launcher.New().
		Headless(mode != ModeHeadful).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.DefaultProxy != "" {
		l = l.Proxy(cfg.DefaultProxy)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-ipc-flooding-protection"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-prompt-on-repost"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}
	return b, l, nil
}

// preparePage applies stealth, headers and resource blocking to a fresh tab.
// Stealth and header setup must run before the first navigation; they only
// affect documents loaded afterwards.
func preparePage(page *rod.Page, cfg config.BrowserConfig, extraHeaders map[string]string, blockTypes []string, log *slog.Logger) *rod.HijackRouter {
	if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
		log.Warn("stealth injection failed, continuing without it", "error", err)
	}

	headers := map[string]string{}
	if cfg.AcceptLanguage != "" {
		headers["Accept-Language"] = cfg.AcceptLanguage
	}
	for k, v := range extraHeaders {
		headers[k] = v
	}
	if len(headers) > 0 {
		_ = proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(headers)}.Call(page)
	}

	return mountHijack(page, blockTypes, cfg.BlockAds)
}

// toHeadersMap converts a string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// searchReferer fakes arrival from a search results page for the target's
// host, which some sites require before serving full content.
func searchReferer(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return ""
	}
	return "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())
}

func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
