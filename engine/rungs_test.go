package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/use-agent/harvest/browser"
	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/extract"
	"github.com/use-agent/harvest/fetch"
	"github.com/use-agent/harvest/models"
)

func testClient(t *testing.T) *fetch.Client {
	t.Helper()
	return fetch.NewClient(config.Load().Fetch, "")
}

func articlePage() string {
	para := strings.Repeat("The archive service keeps one copy of every fetched page on disk. ", 10)
	return fmt.Sprintf(`<!DOCTYPE html><html><head><title>Archive Notes</title></head>
<body><article><h1>Archive Notes</h1><p>%s</p></article></body></html>`, para)
}

func TestHTTPRungFetchesAndExtracts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, articlePage())
	}))
	defer srv.Close()

	rung := NewHTTPRung(testClient(t), extract.NewExtractor(nil))
	st := &State{}
	req := &models.ScrapeRequest{URL: srv.URL, Format: models.FormatText}

	content, err := rung.Attempt(context.Background(), req, st)
	if err != nil {
		t.Fatalf("Attempt() error = %v", err)
	}
	if !strings.Contains(content, "archive service") {
		t.Errorf("content missing article text: %q", content)
	}
	if st.Title != "Archive Notes" {
		t.Errorf("State.Title = %q", st.Title)
	}
	if st.HTML == "" {
		t.Error("State.HTML not carried forward")
	}
	if st.StatusCode != http.StatusOK {
		t.Errorf("State.StatusCode = %d", st.StatusCode)
	}
}

func TestHTTPRungBlockingStatuses(t *testing.T) {
	for _, status := range []int{http.StatusForbidden, http.StatusTooManyRequests, http.StatusServiceUnavailable} {
		t.Run(fmt.Sprint(status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			}))
			defer srv.Close()

			rung := NewHTTPRung(testClient(t), extract.NewExtractor(nil))
			_, err := rung.Attempt(context.Background(), &models.ScrapeRequest{URL: srv.URL}, &State{})
			if models.CodeOf(err) != models.ErrCodeBlocked {
				t.Errorf("error = %v, want BLOCKED", err)
			}
			if models.IsTransient(err) {
				t.Error("blocking status must not be transient")
			}
		})
	}
}

func TestHTTPRungServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	rung := NewHTTPRung(testClient(t), extract.NewExtractor(nil))
	_, err := rung.Attempt(context.Background(), &models.ScrapeRequest{URL: srv.URL}, &State{})
	if models.CodeOf(err) != models.ErrCodeNetwork {
		t.Errorf("error = %v, want NETWORK_ERROR", err)
	}
	if !models.IsTransient(err) {
		t.Error("5xx should be retryable")
	}
}

func TestHTTPRungPlainText(t *testing.T) {
	body := "plain text document with enough words to matter"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	rung := NewHTTPRung(testClient(t), extract.NewExtractor(nil))
	content, err := rung.Attempt(context.Background(), &models.ScrapeRequest{URL: srv.URL}, &State{})
	if err != nil {
		t.Fatalf("Attempt() error = %v", err)
	}
	if content != body {
		t.Errorf("content = %q, want raw body", content)
	}
}

func TestHTTPRungUnsupportedType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.7"))
	}))
	defer srv.Close()

	rung := NewHTTPRung(testClient(t), extract.NewExtractor(nil))
	_, err := rung.Attempt(context.Background(), &models.ScrapeRequest{URL: srv.URL}, &State{})
	if models.CodeOf(err) != models.ErrCodeParse {
		t.Errorf("error = %v, want PARSE_ERROR", err)
	}
}

func TestHTTPRungSPAShellIsInsufficient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>App</title></head><body><div id="root"></div><script src="/bundle.js"></script></body></html>`)
	}))
	defer srv.Close()

	rung := NewHTTPRung(testClient(t), extract.NewExtractor(nil))
	_, err := rung.Attempt(context.Background(), &models.ScrapeRequest{URL: srv.URL}, &State{})
	if !IsInsufficient(err) {
		t.Errorf("error = %v, want insufficient (SPA shell)", err)
	}
}

func TestStaticRungReusesCarriedDocument(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	rung := NewStaticRung(testClient(t), extract.NewExtractor(nil))
	st := &State{HTML: articlePage(), Title: "Archive Notes", FinalURL: srv.URL}

	content, err := rung.Attempt(context.Background(), &models.ScrapeRequest{URL: srv.URL, Format: models.FormatText}, st)
	if err != nil {
		t.Fatalf("Attempt() error = %v", err)
	}
	if !strings.Contains(content, "archive service") {
		t.Errorf("content = %q", content)
	}
	if hits.Load() != 0 {
		t.Errorf("server hit %d times, want 0 (document was carried over)", hits.Load())
	}
}

func TestStaticRungRefetchesWhenStateEmpty(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, articlePage())
	}))
	defer srv.Close()

	rung := NewStaticRung(testClient(t), extract.NewExtractor(nil))
	st := &State{}

	content, err := rung.Attempt(context.Background(), &models.ScrapeRequest{URL: srv.URL, Format: models.FormatText}, st)
	if err != nil {
		t.Fatalf("Attempt() error = %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("server hit %d times, want 1", hits.Load())
	}
	if !strings.Contains(content, "archive service") {
		t.Errorf("content = %q", content)
	}
	if st.HTML == "" {
		t.Error("State.HTML not populated by refetch")
	}
}

func TestStaticRungMarkdownFormat(t *testing.T) {
	rung := NewStaticRung(testClient(t), extract.NewExtractor(nil))
	st := &State{HTML: articlePage(), FinalURL: "https://example.com/notes"}

	content, err := rung.Attempt(context.Background(), &models.ScrapeRequest{URL: "https://example.com/notes", Format: models.FormatMarkdown}, st)
	if err != nil {
		t.Fatalf("Attempt() error = %v", err)
	}
	if !strings.Contains(content, "archive service") {
		t.Errorf("markdown missing article text: %q", content)
	}
}

type fakeRenderer struct {
	res  *browser.RenderResult
	err  error
	last browser.RenderRequest
}

func (f *fakeRenderer) Render(_ context.Context, req browser.RenderRequest) (*browser.RenderResult, error) {
	f.last = req
	return f.res, f.err
}

func TestRenderRungExtractsFromRenderedDocument(t *testing.T) {
	renderer := &fakeRenderer{res: &browser.RenderResult{
		HTML:     articlePage(),
		Title:    "Archive Notes",
		FinalURL: "https://example.com/notes",
	}}
	rung := NewHeadlessRung(renderer, extract.NewExtractor(nil))

	st := &State{}
	content, err := rung.Attempt(context.Background(), &models.ScrapeRequest{URL: "https://example.com/notes", Format: models.FormatText}, st)
	if err != nil {
		t.Fatalf("Attempt() error = %v", err)
	}
	if !strings.Contains(content, "archive service") {
		t.Errorf("content = %q", content)
	}
	if st.Title != "Archive Notes" || st.HTML == "" {
		t.Errorf("state not updated: %+v", st)
	}
	if renderer.last.Mode != browser.ModeHeadless {
		t.Errorf("render mode = %v, want headless", renderer.last.Mode)
	}
	if rung.Method() != models.MethodHeadless {
		t.Errorf("Method() = %s", rung.Method())
	}
}

func TestHeadfulRungCarriesSettle(t *testing.T) {
	renderer := &fakeRenderer{res: &browser.RenderResult{HTML: articlePage(), FinalURL: "https://example.com"}}
	rung := NewHeadfulRung(renderer, extract.NewExtractor(nil), 10*time.Second)

	_, err := rung.Attempt(context.Background(), &models.ScrapeRequest{URL: "https://example.com", Format: models.FormatText}, &State{})
	if err != nil {
		t.Fatalf("Attempt() error = %v", err)
	}
	if renderer.last.Settle != 10*time.Second {
		t.Errorf("settle = %v, want 10s", renderer.last.Settle)
	}
	if renderer.last.Mode != browser.ModeHeadful {
		t.Errorf("mode = %v, want headful", renderer.last.Mode)
	}
	if rung.Method() != models.MethodHeadful {
		t.Errorf("Method() = %s", rung.Method())
	}
}

func TestRenderRungPassesErrorsThrough(t *testing.T) {
	wantErr := models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to launch browser", errors.New("exec: chrome not found"))
	renderer := &fakeRenderer{err: wantErr}
	rung := NewHeadlessRung(renderer, extract.NewExtractor(nil))

	_, err := rung.Attempt(context.Background(), &models.ScrapeRequest{URL: "https://example.com"}, &State{})
	if models.CodeOf(err) != models.ErrCodeBrowserCrash {
		t.Errorf("error = %v, want BROWSER_CRASH passed through", err)
	}
}

func TestNeedsBrowser(t *testing.T) {
	longText := strings.Repeat("visible words on the page keep accumulating here ", 12)

	tests := []struct {
		name string
		html string
		want bool
	}{
		{
			name: "rich static page",
			html: "<html><body><p>" + longText + "</p></body></html>",
			want: false,
		},
		{
			name: "thin text",
			html: "<html><body><p>Loading...</p></body></html>",
			want: true,
		},
		{
			name: "empty react root",
			html: `<html><body><div id="root"></div><p>` + longText + `</p></body></html>`,
			want: true,
		},
		{
			name: "prerendered react root",
			html: `<html><body><div id="root"><div><p>` + longText + `</p></div></div></body></html>`,
			want: false,
		},
		{
			name: "noscript warning",
			html: `<html><body><noscript>Please enable JavaScript to continue</noscript><p>` + longText + `</p></body></html>`,
			want: true,
		},
		{
			name: "script heavy thin page",
			html: `<html><body>` + strings.Repeat(`<script src="/x.js"></script>`, 12) + `<p>some words here but not very many of them at all in the end honestly just filler to cross two hundred characters of visible text which this sentence does manage to reach eventually with room to spare for safety</p></body></html>`,
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := extract.VisibleText([]byte(tt.html))
			if got := needsBrowser([]byte(tt.html), text); got != tt.want {
				t.Errorf("needsBrowser() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatusError(t *testing.T) {
	tests := []struct {
		code     int
		wantCode string
	}{
		{200, ""},
		{301, ""},
		{403, models.ErrCodeBlocked},
		{404, models.ErrCodeNetwork},
		{429, models.ErrCodeBlocked},
		{500, models.ErrCodeNetwork},
		{503, models.ErrCodeBlocked},
	}

	for _, tt := range tests {
		err := statusError(tt.code)
		if tt.wantCode == "" {
			if err != nil {
				t.Errorf("statusError(%d) = %v, want nil", tt.code, err)
			}
			continue
		}
		if models.CodeOf(err) != tt.wantCode {
			t.Errorf("statusError(%d) code = %s, want %s", tt.code, models.CodeOf(err), tt.wantCode)
		}
	}
}
