package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/extract"
	"github.com/use-agent/harvest/models"
)

// Ladder walks the rungs in order until one satisfies the success
// predicate. It never returns an error: every outcome, including total
// failure, is encoded in the ScrapeResult.
type Ladder struct {
	rungs  []Rung
	policy *Policy
	cfg    config.ScraperConfig
	log    *slog.Logger
}

func NewLadder(rungs []Rung, policy *Policy, cfg config.ScraperConfig, log *slog.Logger) *Ladder {
	if log == nil {
		log = slog.Default()
	}
	return &Ladder{
		rungs:  rungs,
		policy: policy,
		cfg:    cfg,
		log:    log.With("component", "ladder"),
	}
}

// Scrape runs req through the ladder.
//
// Within a rung, transient errors are retried up to req.MaxRetries with a
// linear backoff; insufficient content and non-transient errors escalate to
// the next rung immediately. When every rung has been exhausted, the result
// is partial if any rung produced non-empty content (the longest such
// content wins), failure otherwise. Method reports the successful rung, or
// the last one attempted.
func (l *Ladder) Scrape(ctx context.Context, req *models.ScrapeRequest) *models.ScrapeResult {
	start := time.Now()
	res := &models.ScrapeResult{URL: req.URL, Status: models.StatusFailure}

	if err := req.Normalize(l.cfg.RungTimeout); err != nil {
		res.Error = models.AsDetail(err)
		res.ElapsedMs = time.Since(start).Milliseconds()
		return res
	}
	res.URL = req.URL

	var (
		st          = &State{}
		bestContent string
		lastErr     error
	)
	for _, rung := range l.rungs {
		res.Method = rung.Method()

		content, err := l.runRung(ctx, rung, req, st)
		if err == nil {
			res.Status = models.StatusSuccess
			res.Content = content
			res.Title = st.Title
			res.ElapsedMs = time.Since(start).Milliseconds()
			l.log.Info("scrape succeeded",
				"url", req.URL,
				"method", res.Method,
				"chars", len(content),
				"tokens", extract.EstimateTokens(content),
				"elapsed_ms", res.ElapsedMs,
			)
			return res
		}
		lastErr = err
		if len(content) > len(bestContent) {
			bestContent = content
		}
		l.log.Debug("rung exhausted, escalating",
			"url", req.URL, "method", rung.Method(), "error", err)

		if ctx.Err() != nil {
			break
		}
	}

	res.Title = st.Title
	res.Error = failureDetail(lastErr)
	if bestContent != "" {
		res.Status = models.StatusPartial
		res.Content = bestContent
	}
	res.ElapsedMs = time.Since(start).Milliseconds()
	l.log.Warn("scrape did not succeed",
		"url", req.URL,
		"status", res.Status,
		"method", res.Method,
		"error", lastErr,
		"elapsed_ms", res.ElapsedMs,
	)
	return res
}

// runRung drives one rung to completion: attempt, predicate, and transient
// retries. On failure it returns the best content the rung produced so the
// ladder can fall back to a partial result.
func (l *Ladder) runRung(ctx context.Context, rung Rung, req *models.ScrapeRequest, st *State) (string, error) {
	var (
		kept    string
		lastErr error
	)
	for attempt := 0; ; attempt++ {
		rungCtx, cancel := context.WithTimeout(ctx, req.RungTimeout)
		content, err := rung.Attempt(rungCtx, req, st)
		cancel()

		if err == nil {
			err = l.policy.Check(rung.Method(), content, st.Title)
		}
		if err == nil {
			return content, nil
		}
		lastErr = err

		// A block page's text must never surface as partial content.
		if models.CodeOf(err) != models.ErrCodeBlocked && len(content) > len(kept) {
			kept = content
		}

		if IsInsufficient(err) || !models.IsTransient(err) || attempt >= req.MaxRetries || ctx.Err() != nil {
			return kept, lastErr
		}

		backoff := time.Duration(attempt+1) * l.cfg.RetryBackoff
		l.log.Debug("transient failure, retrying rung",
			"url", req.URL, "method", rung.Method(), "attempt", attempt+1, "backoff", backoff, "error", err)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return kept, lastErr
		}
	}
}

// failureDetail renders the terminal error of an exhausted ladder.
// Insufficient-content failures surface as parse errors; everything else
// keeps its own code.
func failureDetail(err error) *models.ErrorDetail {
	if err == nil {
		return nil
	}
	if IsInsufficient(err) {
		return &models.ErrorDetail{Code: models.ErrCodeParse, Message: err.Error()}
	}
	return models.AsDetail(err)
}
