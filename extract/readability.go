package extract

import (
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// minContentLength is the threshold below which a readability result is
// treated as a miss and the next extraction stage runs instead.
const minContentLength = 50

// readabilityArticle runs go-readability over the markup. ok is false when
// parsing fails or the article text is too short to be the real content.
func (e *Extractor) readabilityArticle(rawHTML, urlHint string) (readability.Article, bool) {
	pageURL, err := url.Parse(urlHint)
	if err != nil {
		e.log.Debug("readability skipped, bad origin url", "url", urlHint, "error", err)
		return readability.Article{}, false
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), pageURL)
	if err != nil {
		e.log.Debug("readability parse failed", "url", urlHint, "error", err)
		return readability.Article{}, false
	}

	if len(strings.TrimSpace(article.TextContent)) < minContentLength {
		return readability.Article{}, false
	}
	return article, true
}
