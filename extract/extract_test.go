package extract

import (
	"errors"
	"strings"
	"testing"
)

const articleHTML = `<!DOCTYPE html>
<html>
<head><title>Migrating a Monolith</title></head>
<body>
<nav><a href="/">Home</a> <a href="/blog">Blog</a> <a href="/about">About</a></nav>
<article>
<h1>Migrating a Monolith</h1>
<p>When the billing service finally outgrew its shared database, the team spent
three months untangling foreign keys before a single line of service code moved.
The lesson was that data ownership, not code ownership, decides migration order.</p>
<p>The second lesson arrived during the cutover weekend. Every consumer of the
old reporting tables had to be found by grepping dashboards, because nobody had
recorded who read from them. An inventory of readers is worth more than any
architecture diagram when you start splitting storage.</p>
<h2>Finding the seams</h2>
<p>By the end of the quarter the monolith still existed, but it no longer owned
payments, invoicing, or tax calculation. Each extraction got easier than the
last because the seams were already cut.</p>
</article>
<footer>Subscribe to our newsletter for weekly updates.</footer>
</body>
</html>`

func TestExtractArticle(t *testing.T) {
	e := NewExtractor(nil)

	got, err := e.Extract(articleHTML, "https://example.com/blog/monolith")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !strings.Contains(got, "data ownership, not code ownership") {
		t.Errorf("Extract() missing article body, got %q", got)
	}
	if strings.Contains(got, "Subscribe to our newsletter") {
		t.Errorf("Extract() kept footer boilerplate: %q", got)
	}
}

func TestExtractNoContent(t *testing.T) {
	e := NewExtractor(nil)

	for _, input := range []string{"", "   ", "\n\t  \n"} {
		if _, err := e.Extract(input, ""); !errors.Is(err, ErrNoContent) {
			t.Errorf("Extract(%q) error = %v, want ErrNoContent", input, err)
		}
	}
}

func TestExtractEmptyMarkup(t *testing.T) {
	e := NewExtractor(nil)

	got, err := e.Extract(`<html><body><div><span></span></div></body></html>`, "")
	if err != nil {
		t.Fatalf("Extract() error = %v, want nil for empty markup", err)
	}
	if got != "" {
		t.Errorf("Extract() = %q, want empty string", got)
	}
}

func TestExtractPlainText(t *testing.T) {
	e := NewExtractor(nil)

	got, err := e.Extract("just a stray line of text", "")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got != "just a stray line of text" {
		t.Errorf("Extract() = %q", got)
	}
}

func TestExtractSelectorFallback(t *testing.T) {
	e := NewExtractor(nil)

	// Too little text for readability, so the candidate-selector probe must
	// find #content after nav and footer are stripped.
	page := `<html><body>
<nav>Home About Contact</nav>
<div id="content">Short note.</div>
<footer>Copyright</footer>
</body></html>`

	got, err := e.Extract(page, "")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got != "Short note." {
		t.Errorf("Extract() = %q, want %q", got, "Short note.")
	}
}

func TestExtractMarkdown(t *testing.T) {
	e := NewExtractor(nil)

	got, err := e.ExtractMarkdown(articleHTML, "https://example.com/blog/monolith", false)
	if err != nil {
		t.Fatalf("ExtractMarkdown() error = %v", err)
	}
	if !strings.Contains(got, "## Finding the seams") {
		t.Errorf("ExtractMarkdown() missing section heading, got %q", got)
	}
	if !strings.Contains(got, "data ownership") {
		t.Errorf("ExtractMarkdown() missing body, got %q", got)
	}
}

func TestExtractMarkdownCitations(t *testing.T) {
	e := NewExtractor(nil)

	page := `<html><body><article>
<h1>Links</h1>
<p>The language reference lives at <a href="https://go.dev/ref/spec">the spec page</a>
and the standard library documentation at <a href="https://pkg.go.dev/std">pkg.go.dev</a>.
Most newcomers start with <a href="https://go.dev/ref/spec">the spec page</a> anyway,
which is a long document covering every corner of the language in painstaking detail.</p>
</article></body></html>`

	got, err := e.ExtractMarkdown(page, "https://example.com", true)
	if err != nil {
		t.Fatalf("ExtractMarkdown() error = %v", err)
	}
	if !strings.Contains(got, "[1]: https://go.dev/ref/spec") {
		t.Errorf("ExtractMarkdown() missing reference list, got %q", got)
	}
	if strings.Contains(got, "](https://go.dev/ref/spec)") {
		t.Errorf("ExtractMarkdown() left inline link in place, got %q", got)
	}
}

func TestExtractMarkdownNoContent(t *testing.T) {
	e := NewExtractor(nil)

	if _, err := e.ExtractMarkdown("", "", false); !errors.Is(err, ErrNoContent) {
		t.Errorf("ExtractMarkdown(\"\") error = %v, want ErrNoContent", err)
	}
}

func TestMainContentBySelector(t *testing.T) {
	tests := []struct {
		name    string
		html    string
		want    string
		wantOK  bool
		contain bool
	}{
		{
			name:    "main element",
			html:    `<html><body><main><p>primary</p></main></body></html>`,
			want:    "primary",
			wantOK:  true,
			contain: true,
		},
		{
			name:    "skips empty main for content div",
			html:    `<html><body><main></main><div id="content">fallback text</div></body></html>`,
			want:    "fallback text",
			wantOK:  true,
			contain: true,
		},
		{
			name:   "no candidates",
			html:   `<html><body><div class="misc">nothing special</div></body></html>`,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frag, ok := mainContentBySelector(tt.html)
			if ok != tt.wantOK {
				t.Fatalf("mainContentBySelector() ok = %v, want %v", ok, tt.wantOK)
			}
			if tt.contain && !strings.Contains(frag, tt.want) {
				t.Errorf("mainContentBySelector() = %q, want it to contain %q", frag, tt.want)
			}
		})
	}
}

func TestPruneContent(t *testing.T) {
	page := `<html><body>
<div class="sidebar"><a href="/a">one</a> <a href="/b">two</a> <a href="/c">three</a></div>
<article><p>The scheduler assigns each incoming job to the least loaded worker,
falling back to round robin when load reports are stale. Jobs carry a deadline
and workers drop anything already expired before starting execution, which
keeps the queue from filling with work nobody will ever read.</p></article>
</body></html>`

	got, err := pruneContent(page)
	if err != nil {
		t.Fatalf("pruneContent() error = %v", err)
	}
	if !strings.Contains(got, "least loaded worker") {
		t.Errorf("pruneContent() dropped the article, got %q", got)
	}
	if strings.Contains(got, "sidebar") {
		t.Errorf("pruneContent() kept the sidebar, got %q", got)
	}
}

func TestPruneContentFallback(t *testing.T) {
	// Nothing clears the threshold, so the whole body comes back.
	page := `<html><body><div class="nav menu"><a href="/x">x</a></div></body></html>`

	got, err := pruneContent(page)
	if err != nil {
		t.Fatalf("pruneContent() error = %v", err)
	}
	if !strings.Contains(got, `href="/x"`) {
		t.Errorf("pruneContent() fallback lost body content, got %q", got)
	}
}

func TestTitle(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"simple", `<html><head><title>Hello</title></head><body></body></html>`, "Hello"},
		{"whitespace", `<html><head><title>  Trimmed  </title></head></html>`, "Trimmed"},
		{"missing", `<html><head></head><body>no title</body></html>`, ""},
		{"empty title", `<html><head><title></title></head></html>`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Title([]byte(tt.body)); got != tt.want {
				t.Errorf("Title() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestVisibleText(t *testing.T) {
	page := `<html><head><title>T</title><style>body{color:red}</style></head>
<body><h1>Header</h1><script>var x = "hidden";</script><p>Visible paragraph.</p>
<noscript>Enable JS</noscript></body></html>`

	got := VisibleText([]byte(page))
	for _, want := range []string{"Header", "Visible paragraph."} {
		if !strings.Contains(got, want) {
			t.Errorf("VisibleText() missing %q, got %q", want, got)
		}
	}
	for _, bad := range []string{"hidden", "color:red", "Enable JS", "T"} {
		if strings.Contains(got, bad) {
			t.Errorf("VisibleText() leaked %q, got %q", bad, got)
		}
	}
}

func TestWordCount(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"one", 1},
		{"a b  c\n d", 4},
	}

	for _, tt := range tests {
		if got := WordCount(tt.in); got != tt.want {
			t.Errorf("WordCount(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"empty", "", 0},
		{"short rounds up", "ab", 1},
		{"english", strings.Repeat("word ", 12), 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateTokens(tt.in); got != tt.want {
				t.Errorf("EstimateTokens() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestToCitations(t *testing.T) {
	in := "See [Go](https://go.dev) and [docs](https://pkg.go.dev) and [Go again](https://go.dev)."
	got := toCitations(in)

	for _, want := range []string{"[Go][1]", "[docs][2]", "[Go again][1]", "[1]: https://go.dev", "[2]: https://pkg.go.dev"} {
		if !strings.Contains(got, want) {
			t.Errorf("toCitations() missing %q in %q", want, got)
		}
	}

	plain := "no links here"
	if got := toCitations(plain); got != plain {
		t.Errorf("toCitations() changed link-free text: %q", got)
	}
}

func TestNormalizeSpace(t *testing.T) {
	in := "a   b\n\n\n\n\nc  d  \n"
	want := "a b\n\nc d"
	if got := normalizeSpace(in); got != want {
		t.Errorf("normalizeSpace() = %q, want %q", got, want)
	}
}
