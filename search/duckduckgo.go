package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/harvest/fetch"
	"github.com/use-agent/harvest/models"
)

const (
	ddgAPIBase  = "https://api.duckduckgo.com"
	ddgHTMLBase = "https://html.duckduckgo.com"
)

// DDGAPI queries the DuckDuckGo Instant Answer API. No key required; the
// API answers entity-style queries well and open-ended ones poorly, which is
// why the HTML engine sits behind it.
type DDGAPI struct {
	client *fetch.Client
	base   string // test override
}

func (e *DDGAPI) Name() string                { return "duckduckgo_api" }
func (e *DDGAPI) Source() models.SearchSource { return models.SourceAPI }

// instantAnswer is the subset of the Instant Answer payload carrying URLs.
// RelatedTopics mixes direct results with named groups of nested Topics.
type instantAnswer struct {
	AbstractURL   string         `json:"AbstractURL"`
	RelatedTopics []relatedTopic `json:"RelatedTopics"`
}

type relatedTopic struct {
	FirstURL string         `json:"FirstURL"`
	Topics   []relatedTopic `json:"Topics"`
}

func (t relatedTopic) appendURLs(urls []string, limit int) []string {
	if len(urls) >= limit {
		return urls
	}
	if t.FirstURL != "" {
		urls = append(urls, t.FirstURL)
	}
	for _, sub := range t.Topics {
		if len(urls) >= limit {
			break
		}
		urls = sub.appendURLs(urls, limit)
	}
	return urls
}

func (e *DDGAPI) Search(ctx context.Context, query string, limit int) ([]string, error) {
	base := e.base
	if base == "" {
		base = ddgAPIBase
	}
	endpoint := base + "/?q=" + url.QueryEscape(query) + "&format=json&no_html=1&skip_disambig=1"

	resp, err := e.client.Get(ctx, endpoint, nil)
	if err != nil {
		return nil, models.Categorize(err, "instant answer request failed")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, models.NewScrapeError(codeForStatus(resp.StatusCode),
			fmt.Sprintf("instant answer api returned status %d", resp.StatusCode), nil)
	}

	var answer instantAnswer
	if err := json.Unmarshal(resp.Body, &answer); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeParse, "malformed instant answer payload", err)
	}

	var urls []string
	if answer.AbstractURL != "" {
		urls = append(urls, answer.AbstractURL)
	}
	for _, topic := range answer.RelatedTopics {
		if len(urls) >= limit {
			break
		}
		urls = topic.appendURLs(urls, limit)
	}
	return urls, nil
}

// DDGHTML scrapes the DuckDuckGo HTML results page.
type DDGHTML struct {
	client *fetch.Client
	base   string // test override
}

func (e *DDGHTML) Name() string                { return "duckduckgo_html" }
func (e *DDGHTML) Source() models.SearchSource { return models.SourceScrape }

func (e *DDGHTML) Search(ctx context.Context, query string, limit int) ([]string, error) {
	base := e.base
	if base == "" {
		base = ddgHTMLBase
	}
	endpoint := base + "/html/?q=" + url.QueryEscape(query)

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
	doc.Find("a.result__a").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if href, ok := sel.Attr("href"); ok {
			if target := decodeDDGHref(href); target != "" {
				urls = append(urls, target)
			}
		}
		return len(urls) < limit
	})
	return urls, nil
}

// decodeDDGHref unwraps DuckDuckGo's /l/?uddg= redirect hrefs. Direct
// absolute links pass through; anything else is dropped.
func decodeDDGHref(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme != "" && u.Host != "" {
		return href
	}
	return ""
}
