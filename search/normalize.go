package search

import (
	"net/url"
	"strings"
)

// normalizeURL canonicalizes a candidate URL for output and deduplication:
// scheme and host are lowercased, the fragment is dropped, query keys are
// sorted and the trailing slash is trimmed. Non-absolute and non-http(s)
// URLs are rejected.
func normalizeURL(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}
	u.Scheme = scheme
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	if u.RawQuery != "" {
		// Encode rebuilds the query with sorted keys.
		u.RawQuery = u.Query().Encode()
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String(), true
}

// dedupe normalizes urls, drops duplicates keeping first-seen order, and
// truncates to limit.
func dedupe(urls []string, limit int) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, min(len(urls), limit))
	for _, raw := range urls {
		if len(out) >= limit {
			break
		}
		u, ok := normalizeURL(raw)
		if !ok {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
