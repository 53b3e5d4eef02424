package search

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/harvest/fetch"
	"github.com/use-agent/harvest/models"
)

const googleBase = "https://www.google.com"

// Google scrapes the Google results page. Organic results live in div.g
// containers; consent interstitials and blocks simply yield zero results,
// which the manager treats as a fall-through.
type Google struct {
	client *fetch.Client
	base   string // test override
}

func (e *Google) Name() string                { return "google" }
func (e *Google) Source() models.SearchSource { return models.SourceScrape }

func (e *Google) Search(ctx context.Context, query string, limit int) ([]string, error) {
	base := e.base
	if base == "" {
		base = googleBase
	}
	endpoint := base + "/search?q=" + url.QueryEscape(query) + "&num=" + strconv.Itoa(limit)

	resp, err := e.client.Get(ctx, endpoint, nil)
	if err != nil {
		return nil, models.Categorize(err, "results page request failed")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, models.NewScrapeError(codeForStatus(resp.StatusCode),
			fmt.Sprintf("results page returned status %d", resp.StatusCode), nil)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeParse, "results page is not parseable html", err)
	}

	var urls []string
	doc.Find("div.g").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if href, ok := sel.Find("a[href]").First().Attr("href"); ok {
			if target := decodeGoogleHref(href); target != "" {
				urls = append(urls, target)
			}
		}
		return len(urls) < limit
	})
	return urls, nil
}

// decodeGoogleHref unwraps Google's /url?q= redirect hrefs and passes direct
// absolute links through.
func decodeGoogleHref(href string) string {
	if strings.HasPrefix(href, "/url?") {
		u, err := url.Parse(href)
		if err != nil {
			return ""
		}
		return u.Query().Get("q")
	}
	u, err := url.Parse(href)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return href
}
