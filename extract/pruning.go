package extract

import (
	"math"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// contentHints mark class/id attributes of content containers; chromeHints
// mark boilerplate. Each direction biases a block's score at most once.
var (
	contentHints = []string{
		"article", "body", "content", "entry", "main", "post", "text",
	}
	chromeHints = []string{
		"ad", "banner", "comment", "cookie", "footer", "header", "menu",
		"modal", "nav", "popup", "promo", "recommend", "related",
		"share", "sidebar", "social", "widget",
	}
)

// pruneContent keeps the top-level <body> blocks whose weighted score is
// positive. When nothing clears zero, the full body is returned so the
// pipeline still has something to work with.
func pruneContent(rawHTML string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return rawHTML, err
	}

	body := doc.Find("body")
	if body.Length() == 0 {
		return rawHTML, nil
	}

	kept := body.Children().FilterFunction(func(_ int, el *goquery.Selection) bool {
		return readSignals(el).score() > 0
	})

	var retained []string
	kept.Each(func(_ int, el *goquery.Selection) {
		if h, err := goquery.OuterHtml(el); err == nil {
			retained = append(retained, h)
		}
	})

	if len(retained) == 0 {
		h, err := body.Html()
		if err != nil {
			return rawHTML, nil
		}
		return h, nil
	}
	return strings.Join(retained, "\n"), nil
}

// blockSignals are the per-block features the pruning scorer weighs.
type blockSignals struct {
	textDensity float64
	linkDensity float64
	tagBias     float64
	hintBias    float64
	textLog     float64
}

// score combines the signals. Dense prose scores up, link farms and chrome
// containers score down, longer text earns a log-scale bonus.
func (s blockSignals) score() float64 {
	return 3.0*s.textDensity -
		2.0*s.linkDensity +
		1.5*s.tagBias +
		1.0*s.hintBias +
		0.5*s.textLog
}

func readSignals(el *goquery.Selection) blockSignals {
	var s blockSignals

	outer, err := goquery.OuterHtml(el)
	if err != nil {
		return s
	}
	text := strings.TrimSpace(el.Text())

	if len(outer) > 0 {
		s.textDensity = float64(len(text)) / float64(len(outer))
	}

	anchorChars := 0
	el.Find("a").Each(func(_ int, a *goquery.Selection) {
		anchorChars += len(strings.TrimSpace(a.Text()))
	})
	if len(text) > 0 {
		s.linkDensity = float64(anchorChars) / float64(len(text))
	}

	switch goquery.NodeName(el) {
	case "article", "main", "section":
		s.tagBias = 5.0
	case "nav", "footer", "aside", "header":
		s.tagBias = -5.0
	}

	s.hintBias = hintBias(el)
	s.textLog = math.Log10(float64(len(text)) + 1)
	return s
}

// hintBias scans class and id attributes for content and chrome hints.
func hintBias(el *goquery.Selection) float64 {
	class, _ := el.Attr("class")
	id, _ := el.Attr("id")
	combined := strings.ToLower(class + " " + id)

	bias := 0.0
	for _, hint := range contentHints {
		if strings.Contains(combined, hint) {
			bias += 3.0
			break
		}
	}
	for _, hint := range chromeHints {
		if strings.Contains(combined, hint) {
			bias -= 3.0
			break
		}
	}
	return bias
}
