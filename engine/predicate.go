package engine

import (
	"fmt"
	"strings"

	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/extract"
	"github.com/use-agent/harvest/models"
)

// blockScanChars bounds how much content is scanned for block signatures.
// Interstitial pages are short; scanning everything would flag long articles
// that merely mention a signature phrase.
const blockScanChars = 4096

// Policy is the table-driven success predicate the ladder applies to every
// rung result: a per-rung content minimum plus a block-signature scan.
type Policy struct {
	minWords       int
	minStaticChars int
	minRenderChars int
	signatures     []string
}

// NewPolicy builds the predicate from scraper config. Signatures are
// matched case-insensitively.
func NewPolicy(cfg config.ScraperConfig) *Policy {
	sigs := make([]string, 0, len(cfg.BlockSignatures))
	for _, s := range cfg.BlockSignatures {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			sigs = append(sigs, s)
		}
	}
	return &Policy{
		minWords:       cfg.MinWords,
		minStaticChars: cfg.MinStaticChars,
		minRenderChars: cfg.MinRenderChars,
		signatures:     sigs,
	}
}

// Check decides whether content from the given rung counts as a success.
// It returns nil on success, a BLOCKED error when a block signature is
// present, or an ErrInsufficient-wrapped error when the content is too thin.
func (p *Policy) Check(method models.FetchMethod, content, title string) error {
	if sig := p.matchSignature(content, title); sig != "" {
		return models.NewScrapeError(models.ErrCodeBlocked,
			fmt.Sprintf("block page detected (matched %q)", sig), nil)
	}

	switch method {
	case models.MethodHTTP:
		if words := extract.WordCount(content); words < p.minWords {
			return fmt.Errorf("%w: %d words below minimum %d", ErrInsufficient, words, p.minWords)
		}
	case models.MethodStaticParse:
		if n := len(content); n < p.minStaticChars {
			return fmt.Errorf("%w: %d chars below minimum %d", ErrInsufficient, n, p.minStaticChars)
		}
	default:
		if n := len(content); n < p.minRenderChars {
			return fmt.Errorf("%w: %d chars below minimum %d", ErrInsufficient, n, p.minRenderChars)
		}
	}
	return nil
}

// matchSignature returns the first block signature found in the title or the
// head of the content, or "".
func (p *Policy) matchSignature(content, title string) string {
	head := content
	if len(head) > blockScanChars {
		head = head[:blockScanChars]
	}
	haystack := strings.ToLower(title + "\n" + head)
	for _, sig := range p.signatures {
		if strings.Contains(haystack, sig) {
			return sig
		}
	}
	return ""
}
