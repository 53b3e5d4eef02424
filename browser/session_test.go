package browser

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/models"
)

func testSession(t *testing.T) *Session {
	t.Helper()
	cfg := config.Load().Browser
	return NewSession(cfg, nil)
}

func TestModeString(t *testing.T) {
	tests := []struct {
		mode Mode
		want string
	}{
		{ModeClosed, "closed"},
		{ModeHeadless, "headless"},
		{ModeHeadful, "headful"},
		{Mode(99), "closed"},
	}
	for _, tt := range tests {
		if got := tt.mode.String(); got != tt.want {
			t.Errorf("Mode(%d).String() = %q, want %q", tt.mode, got, tt.want)
		}
	}
}

func TestOpsRequireActiveSession(t *testing.T) {
	s := testSession(t)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"click", func() error { return s.Click(ctx, "#btn") }},
		{"type", func() error { return s.Type(ctx, "#field", "hello", false) }},
		{"type submit", func() error { return s.Type(ctx, "#field", "hello", true) }},
		{"evaluate", func() error { _, err := s.Evaluate(ctx, "1 + 1"); return err }},
		{"screenshot", func() error { _, err := s.Screenshot(ctx, "page", ""); return err }},
		{"element screenshot", func() error { _, err := s.Screenshot(ctx, "hero", "#hero"); return err }},
		{"get text", func() error { _, err := s.Text(ctx); return err }},
		{"get full text", func() error { _, err := s.FullText(ctx); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if err == nil {
				t.Fatal("expected error on closed session")
			}
			if code := models.CodeOf(err); code != models.ErrCodeSessionNotActive {
				t.Errorf("error code = %s, want %s", code, models.ErrCodeSessionNotActive)
			}
			if !strings.Contains(err.Error(), "browser_navigate") {
				t.Errorf("error should point at browser_navigate, got %q", err.Error())
			}
		})
	}
}

func TestOpsValidateInput(t *testing.T) {
	s := testSession(t)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"click empty selector", func() error { return s.Click(ctx, "") }},
		{"type empty selector", func() error { return s.Type(ctx, "", "x", false) }},
		{"evaluate empty script", func() error { _, err := s.Evaluate(ctx, ""); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if code := models.CodeOf(err); code != models.ErrCodeInvalidInput {
				t.Errorf("error code = %s, want %s", code, models.ErrCodeInvalidInput)
			}
		})
	}
}

func TestCloseIdempotent(t *testing.T) {
	s := testSession(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.Close(ctx); err != nil {
			t.Fatalf("Close() #%d on closed session = %v, want nil", i+1, err)
		}
	}
	if st := s.Snapshot(); st.Mode != "closed" {
		t.Errorf("Snapshot().Mode = %q after Close, want closed", st.Mode)
	}
}

func TestSnapshotClosed(t *testing.T) {
	s := testSession(t)

	st := s.Snapshot()
	if st.Mode != "closed" || st.URL != "" || st.Ops != 0 {
		t.Errorf("Snapshot() = %+v, want closed/empty/0", st)
	}
}

func TestSnapshotDoesNotBlockBehindOperations(t *testing.T) {
	s := testSession(t)

	// Hold the session mutex as an in-flight operation would.
	<-s.mu
	defer func() { s.mu <- struct{}{} }()

	done := make(chan Status, 1)
	go func() { done <- s.Snapshot() }()

	select {
	case st := <-done:
		if st.Mode != "busy" {
			t.Errorf("Snapshot().Mode = %q while an operation is in flight, want busy", st.Mode)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Snapshot blocked behind the session mutex")
	}
}

func TestNavigateRejectsBadURL(t *testing.T) {
	s := testSession(t)
	ctx := context.Background()

	for _, bad := range []string{"", "   ", "ftp://example.com/x", "example.com/no-scheme", "http://"} {
		if _, err := s.Navigate(ctx, bad); models.CodeOf(err) != models.ErrCodeInvalidInput {
			t.Errorf("Navigate(%q) error = %v, want INVALID_INPUT", bad, err)
		}
	}
}

func TestRenderValidatesRequest(t *testing.T) {
	s := testSession(t)
	ctx := context.Background()

	if _, err := s.Render(ctx, RenderRequest{URL: "nonsense", Mode: ModeHeadless}); models.CodeOf(err) != models.ErrCodeInvalidInput {
		t.Errorf("Render(bad url) error = %v, want INVALID_INPUT", err)
	}
	if _, err := s.Render(ctx, RenderRequest{URL: "https://example.com", Mode: ModeClosed}); models.CodeOf(err) != models.ErrCodeInvalidInput {
		t.Errorf("Render(closed mode) error = %v, want INVALID_INPUT", err)
	}
}

func TestLockHonorsContext(t *testing.T) {
	s := testSession(t)

	// Hold the session mutex so the op has to queue.
	<-s.mu
	defer s.unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.Click(ctx, "#btn")
	if err == nil {
		t.Fatal("expected error when session mutex is held past the deadline")
	}
	if code := models.CodeOf(err); code != models.ErrCodeTimeout {
		t.Errorf("error code = %s, want %s", code, models.ErrCodeTimeout)
	}
}

func TestIsAdDomain(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"doubleclick.net", true},
		{"pagead2.googlesyndication.com", true},
		{"DOUBLECLICK.NET", true},
		{"static.ads-twitter.com", true},
		{"example.com", false},
		{"notdoubleclick.net", false},
		{"net", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isAdDomain(tt.host); got != tt.want {
			t.Errorf("isAdDomain(%q) = %v, want %v", tt.host, got, tt.want)
		}
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{"under limit", "hello", 10, "hello"},
		{"at limit", "hello", 5, "hello"},
		{"over limit", "hello world", 5, "hello"},
		{"zero keeps all", "hello", 0, "hello"},
		{"multibyte", "héllo wörld", 7, "héllo w"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncateRunes(tt.in, tt.limit); got != tt.want {
				t.Errorf("truncateRunes(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.want)
			}
		})
	}
}

func TestSearchReferer(t *testing.T) {
	got := searchReferer("https://blog.example.com/post/1")
	want := "https://www.google.com/search?q=blog.example.com"
	if got != want {
		t.Errorf("searchReferer() = %q, want %q", got, want)
	}
}

func TestResourceTypeMapping(t *testing.T) {
	for _, name := range config.Load().Browser.BlockedResourceTypes {
		if _, ok := resourceTypeByName[name]; !ok {
			t.Errorf("default blocked resource %q has no protocol mapping", name)
		}
	}
}

func TestMergeViews(t *testing.T) {
	// Long repeated vocabularies keep the fingerprint comparison stable:
	// a single extra word cannot flip any simhash lane, and disjoint
	// vocabularies land far apart.
	base := strings.TrimSpace(strings.Repeat("alpha beta gamma delta epsilon ", 40))
	boiler := strings.TrimSpace(strings.Repeat("menu navigation footer banner sidebar ", 30))
	article := strings.TrimSpace(strings.Repeat("article paragraph prose body story ", 30))

	tests := []struct {
		name      string
		visible   string
		extracted string
		want      string
	}{
		{
			name:      "empty extraction keeps dump",
			visible:   "raw page text",
			extracted: "",
			want:      "raw page text",
		},
		{
			name:      "empty dump keeps extraction",
			visible:   "",
			extracted: "clean article",
			want:      "clean article",
		},
		{
			name:      "near duplicates keep the longer view",
			visible:   base,
			extracted: base + " omega",
			want:      base + " omega",
		},
		{
			name:      "distinct views concatenate without repeating lines",
			visible:   boiler + "\nShared Headline",
			extracted: "Shared Headline\n" + article,
			want:      boiler + "\nShared Headline\n" + article,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mergeViews(tt.visible, tt.extracted); got != tt.want {
				t.Errorf("mergeViews() = %q, want %q", got, tt.want)
			}
		})
	}
}
