package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Fetch     FetchConfig
	Scraper   ScraperConfig
	Browser   BrowserConfig
	Search    SearchConfig
	Batch     BatchConfig
	Cache     CacheConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
}

// ServerConfig controls the process surface.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8919

	// Mode is the gin mode: "debug", "release", "test". Default: "release".
	Mode string

	// Transport selects how tools are served: "http" (streamable HTTP
	// endpoint + health route) or "stdio". Default: "http".
	Transport string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// FetchConfig controls the Chrome-fingerprint HTTP client used by the
// rung-1 fetch and by search-engine requests.
type FetchConfig struct {
	// Timeout is the per-request deadline when the caller supplies none.
	Timeout time.Duration // default: 15s

	// MaxBodyBytes caps response body reads.
	MaxBodyBytes int64 // default: 10 MiB

	// MaxRedirects caps redirect following.
	MaxRedirects int // default: 10

	// UserAgent overrides the default Chrome user agent string.
	UserAgent string
}

// ScraperConfig controls the fallback ladder.
type ScraperConfig struct {
	// RungTimeout is the default deadline for one rung attempt.
	RungTimeout time.Duration // default: 30s

	// RetryBackoff is the base of the linear in-rung retry backoff
	// (attempt N sleeps N * RetryBackoff).
	RetryBackoff time.Duration // default: 1s

	// MinWords is the rung-1 success threshold on visible words.
	MinWords int // default: 100

	// MinStaticChars is the static-parse success threshold on extracted
	// characters.
	MinStaticChars int // default: 100

	// MinRenderChars is the browser-rung success threshold on extracted
	// characters.
	MinRenderChars int // default: 50

	// BlockSignatures are case-insensitive patterns that mark a fetched
	// body as an anti-bot challenge rather than content.
	BlockSignatures []string

	// HeadfulSettle is the extra wait after a headful render so that a
	// human can clear an interactive challenge.
	HeadfulSettle time.Duration // default: 10s
}

// BrowserConfig controls the Rod browser session.
type BrowserConfig struct {
	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// DefaultProxy is the proxy URL for all browser traffic.
	DefaultProxy string

	// NavigationTimeout is the max time for page.Navigate alone.
	NavigationTimeout time.Duration // default: 15s

	// OpTimeout bounds one session operation (click, type, evaluate, ...).
	OpTimeout time.Duration // default: 30s

	// AcceptLanguage is sent as an extra header on every session page.
	AcceptLanguage string // default: "en-US,en;q=0.9"

	// BlockedResourceTypes lists resource types dropped during renders.
	// default: ["Image", "Stylesheet", "Font", "Media"]
	BlockedResourceTypes []string

	// BlockAds drops render requests to known ad and tracking domains.
	BlockAds bool // default: true

	// PreviewChars bounds the navigate preview.
	PreviewChars int // default: 500

	// TextLimit bounds browser_get_text output.
	TextLimit int // default: 2000

	// FullTextLimit bounds browser_get_full_text output.
	FullTextLimit int // default: 10000
}

// SearchConfig controls the search provider chain.
type SearchConfig struct {
	// Timeout is the per-engine deadline.
	Timeout time.Duration // default: 10s

	// Engines orders the fallback chain. Known: "duckduckgo", "google".
	// The DuckDuckGo entry expands to its API strategy followed by its
	// results-page strategy.
	Engines []string // default: ["duckduckgo", "google"]
}

// BatchConfig controls batch tool limits.
type BatchConfig struct {
	// MaxConcurrent caps the per-call max_concurrent argument.
	MaxConcurrent int // default: 20

	// MaxURLs caps scrape_multiple input size.
	MaxURLs int // default: 100

	// MaxQueries caps search_multiple input size.
	MaxQueries int // default: 50
}

// CacheConfig controls the scrape result cache.
type CacheConfig struct {
	// Enabled toggles caching of successful scrapes.
	Enabled bool // default: true

	// TTL is how long a cached result stays valid.
	TTL time.Duration // default: 5m

	// MaxEntries is the maximum number of cached results.
	MaxEntries int // default: 512
}

// AuthConfig controls API key authentication on the RPC endpoint.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-identity rate limiting on the RPC endpoint.
type RateLimitConfig struct {
	// Enabled toggles rate limiting.
	Enabled bool // default: true

	// RequestsPerSecond is the sustained rate per identity.
	RequestsPerSecond float64 // default: 10

	// Burst is the maximum burst size per identity.
	Burst int // default: 20
}

// DefaultBlockSignatures mark common anti-bot challenge pages. The list is
// policy, not ladder logic: it can be replaced wholesale via
// HARVEST_BLOCK_SIGNATURES.
var DefaultBlockSignatures = []string{
	"verify you are human",
	"checking your browser",
	"cloudflare",
	"captcha",
	"access denied",
	"unusual traffic",
	"enable javascript and cookies",
	"rate limited",
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:      envOr("HARVEST_HOST", "0.0.0.0"),
			Port:      envIntOr("HARVEST_PORT", 8919),
			Mode:      envOr("HARVEST_MODE", "release"),
			Transport: envOr("HARVEST_TRANSPORT", "http"),
		},
		Log: LogConfig{
			Level:  envOr("HARVEST_LOG_LEVEL", "info"),
			Format: envOr("HARVEST_LOG_FORMAT", "json"),
		},
		Fetch: FetchConfig{
			Timeout:      envDurationOr("HARVEST_FETCH_TIMEOUT", 15*time.Second),
			MaxBodyBytes: int64(envIntOr("HARVEST_FETCH_MAX_BODY", 10*1024*1024)),
			MaxRedirects: envIntOr("HARVEST_FETCH_MAX_REDIRECTS", 10),
			UserAgent:    os.Getenv("HARVEST_USER_AGENT"),
		},
		Scraper: ScraperConfig{
			RungTimeout:     envDurationOr("HARVEST_RUNG_TIMEOUT", 30*time.Second),
			RetryBackoff:    envDurationOr("HARVEST_RETRY_BACKOFF", time.Second),
			MinWords:        envIntOr("HARVEST_MIN_WORDS", 100),
			MinStaticChars:  envIntOr("HARVEST_MIN_STATIC_CHARS", 100),
			MinRenderChars:  envIntOr("HARVEST_MIN_RENDER_CHARS", 50),
			BlockSignatures: envSliceOr("HARVEST_BLOCK_SIGNATURES", DefaultBlockSignatures),
			HeadfulSettle:   envDurationOr("HARVEST_HEADFUL_SETTLE", 10*time.Second),
		},
		Browser: BrowserConfig{
			NoSandbox:         envBoolOr("HARVEST_NO_SANDBOX", false),
			BrowserBin:        os.Getenv("HARVEST_BROWSER_BIN"),
			DefaultProxy:      os.Getenv("HARVEST_PROXY"),
			NavigationTimeout: envDurationOr("HARVEST_NAV_TIMEOUT", 15*time.Second),
			OpTimeout:         envDurationOr("HARVEST_BROWSER_OP_TIMEOUT", 30*time.Second),
			AcceptLanguage:    envOr("HARVEST_ACCEPT_LANGUAGE", "en-US,en;q=0.9"),
			BlockedResourceTypes: envSliceOr("HARVEST_BLOCKED_RESOURCES", []string{
				"Image", "Stylesheet", "Font", "Media",
			}),
			BlockAds:      envBoolOr("HARVEST_BLOCK_ADS", true),
			PreviewChars:  envIntOr("HARVEST_PREVIEW_CHARS", 500),
			TextLimit:     envIntOr("HARVEST_TEXT_LIMIT", 2000),
			FullTextLimit: envIntOr("HARVEST_FULL_TEXT_LIMIT", 10000),
		},
		Search: SearchConfig{
			Timeout: envDurationOr("HARVEST_SEARCH_TIMEOUT", 10*time.Second),
			Engines: envSliceOr("HARVEST_SEARCH_ENGINES", []string{"duckduckgo", "google"}),
		},
		Batch: BatchConfig{
			MaxConcurrent: envIntOr("HARVEST_BATCH_MAX_CONCURRENT", 20),
			MaxURLs:       envIntOr("HARVEST_BATCH_MAX_URLS", 100),
			MaxQueries:    envIntOr("HARVEST_BATCH_MAX_QUERIES", 50),
		},
		Cache: CacheConfig{
			Enabled:    envBoolOr("HARVEST_CACHE_ENABLED", true),
			TTL:        envDurationOr("HARVEST_CACHE_TTL", 5*time.Minute),
			MaxEntries: envIntOr("HARVEST_CACHE_MAX_ENTRIES", 512),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("HARVEST_AUTH_ENABLED", false),
			APIKeys: envSliceOr("HARVEST_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			Enabled:           envBoolOr("HARVEST_RATE_ENABLED", true),
			RequestsPerSecond: envFloatOr("HARVEST_RATE_RPS", 10.0),
			Burst:             envIntOr("HARVEST_RATE_BURST", 20),
		},
	}
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Server.Port)
	}
	switch c.Server.Transport {
	case "http", "stdio":
	default:
		return fmt.Errorf("config: unknown transport %q", c.Server.Transport)
	}
	if c.Auth.Enabled && len(c.Auth.APIKeys) == 0 {
		return fmt.Errorf("config: auth enabled but HARVEST_API_KEYS is empty")
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("config: rate limit rps must be positive")
	}
	if c.Scraper.RungTimeout < time.Second {
		return fmt.Errorf("config: rung timeout below 1s")
	}
	if c.Batch.MaxConcurrent < 1 {
		return fmt.Errorf("config: batch max concurrent must be at least 1")
	}
	return nil
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
