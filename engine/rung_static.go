package engine

import (
	"context"

	"github.com/use-agent/harvest/extract"
	"github.com/use-agent/harvest/fetch"
	"github.com/use-agent/harvest/models"
)

// StaticRung runs the full extraction pipeline (readability, selector
// probing, pruning) over the document already fetched by the http rung.
// It refetches only when no document was carried over.
type StaticRung struct {
	client *fetch.Client
	ex     *extract.Extractor
}

func NewStaticRung(client *fetch.Client, ex *extract.Extractor) *StaticRung {
	return &StaticRung{client: client, ex: ex}
}

func (r *StaticRung) Method() models.FetchMethod { return models.MethodStaticParse }

func (r *StaticRung) Attempt(ctx context.Context, req *models.ScrapeRequest, st *State) (string, error) {
	if st.HTML == "" {
		resp, err := r.client.Get(ctx, req.URL, req.Headers)
		if err != nil {
			return "", models.Categorize(err, "static fetch failed")
		}
		st.StatusCode = resp.StatusCode
		st.FinalURL = resp.FinalURL

		if err := statusError(resp.StatusCode); err != nil {
			return "", err
		}
		if !resp.IsHTML() {
			if resp.IsTextual() {
				return string(resp.Body), nil
			}
			return "", models.NewScrapeError(models.ErrCodeParse,
				"unsupported content type "+resp.ContentType, nil)
		}
		st.HTML = string(resp.Body)
		st.Title = extract.Title(resp.Body)
	}

	urlHint := st.FinalURL
	if urlHint == "" {
		urlHint = req.URL
	}
	return contentFor(r.ex, req, st.HTML, "", urlHint)
}
