package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// inlineLinkRe matches markdown inline links: [text](url)
var inlineLinkRe = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)

// toCitations rewrites inline markdown links as reference-style citations
// and appends the numbered reference list after a rule. Repeated URLs share
// a number.
//
//	See [Go](https://go.dev) → See [Go][1] ... [1]: https://go.dev
func toCitations(markdown string) string {
	matches := inlineLinkRe.FindAllStringSubmatchIndex(markdown, -1)
	if len(matches) == 0 {
		return markdown
	}

	numberFor := make(map[string]int)
	var ordered []string

	var b strings.Builder
	b.Grow(len(markdown))
	prev := 0
	for _, m := range matches {
		text := markdown[m[2]:m[3]]
		url := markdown[m[4]:m[5]]

		n, seen := numberFor[url]
		if !seen {
			ordered = append(ordered, url)
			n = len(ordered)
			numberFor[url] = n
		}

		b.WriteString(markdown[prev:m[0]])
		fmt.Fprintf(&b, "[%s][%d]", text, n)
		prev = m[1]
	}
	b.WriteString(markdown[prev:])

	b.WriteString("\n\n---\n")
	for i, url := range ordered {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[%d]: %s", i+1, url)
	}
	return b.String()
}
