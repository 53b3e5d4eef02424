package extract

import (
	"bytes"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// contentCandidates are probed in order when readability misses. They cover
// the containers most sites use for their primary content.
var contentCandidates = []string{
	"main",
	"article",
	`[role="main"]`,
	"#content",
	"#main",
	".content",
	".post",
	".article-body",
}

var contentSelectors []cascadia.Sel

func init() {
	for _, c := range contentCandidates {
		sel, err := cascadia.Parse(c)
		if err != nil {
			continue
		}
		contentSelectors = append(contentSelectors, sel)
	}
}

// mainContentBySelector returns the outer HTML of the first candidate match
// that carries visible text. ok is false when no candidate matches.
func mainContentBySelector(rawHTML string) (string, bool) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", false
	}

	for _, sel := range contentSelectors {
		for _, n := range cascadia.QueryAll(doc, sel) {
			if strings.TrimSpace(nodeText(n)) == "" {
				continue
			}
			var buf bytes.Buffer
			if err := html.Render(&buf, n); err != nil {
				continue
			}
			return buf.String(), true
		}
	}
	return "", false
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(nodeText(c))
	}
	return b.String()
}
