// Package engine runs the progressive fallback ladder: plain HTTP first,
// then a full static parse, then a headless render, then a headful render.
// Each rung is cheaper than the next; the ladder climbs only as far as it
// must and reports how far it got.
package engine

import (
	"context"
	"errors"

	"github.com/use-agent/harvest/models"
)

// Rung is one strategy on the ladder.
type Rung interface {
	// Method identifies the rung in results and logs.
	Method() models.FetchMethod

	// Attempt tries to produce content for the request. The returned
	// string is the extracted content in the request's format; err is nil
	// only when the rung itself considers the attempt complete (the ladder
	// still applies the success predicate afterwards).
	Attempt(ctx context.Context, req *models.ScrapeRequest, st *State) (string, error)
}

// State carries artifacts forward between rungs within a single scrape, so
// later rungs can reuse earlier work instead of refetching.
type State struct {
	// HTML is the most recent raw document, from the http rung or a render.
	HTML string

	// Title, FinalURL and StatusCode describe the most recent fetch.
	Title      string
	FinalURL   string
	StatusCode int
}

// ErrInsufficient means the rung completed but its content cannot satisfy
// the request. The ladder escalates immediately, without retrying the rung.
var ErrInsufficient = errors.New("insufficient content")

// IsInsufficient reports whether err ends a rung for content reasons.
func IsInsufficient(err error) bool {
	return errors.Is(err, ErrInsufficient)
}
