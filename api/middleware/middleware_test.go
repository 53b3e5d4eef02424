package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/models"
)

func init() { gin.SetMode(gin.TestMode) }

func authRig(keys []string) *gin.Engine {
	r := gin.New()
	r.Use(Auth(keys))
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func TestAuthHeaderStyles(t *testing.T) {
	r := authRig([]string{"secret"})

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"x-api-key", "X-API-Key", "secret", http.StatusOK},
		{"bearer", "Authorization", "Bearer secret", http.StatusOK},
		{"wrong key", "X-API-Key", "nope", http.StatusUnauthorized},
		{"wrong bearer", "Authorization", "Bearer nope", http.StatusUnauthorized},
		{"basic auth ignored", "Authorization", "Basic secret", http.StatusUnauthorized},
		{"missing", "", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestAuthOpenWhenNoKeys(t *testing.T) {
	r := authRig(nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with an empty key list", w.Code)
	}
}

func TestAuthErrorPayloadCarriesCode(t *testing.T) {
	r := authRig([]string{"secret"})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	var body errorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("body is not valid JSON: %v", err)
	}
	if body.Error == nil || body.Error.Code != models.ErrCodeUnauthorized {
		t.Errorf("body = %+v, want code %s", body, models.ErrCodeUnauthorized)
	}
}

func TestRateLimitEnforcesBurst(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2}))
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	var codes []int
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}
}

func TestRateLimitIsolatesIdentities(t *testing.T) {
	r := gin.New()
	// Identity comes from the auth layer when present.
	r.Use(func(c *gin.Context) { c.Set("api_key", c.GetHeader("X-API-Key")) })
	r.Use(RateLimit(config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1}))
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	get := func(key string) int {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("X-API-Key", key)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	if got := get("alice"); got != http.StatusOK {
		t.Fatalf("first alice request = %d, want 200", got)
	}
	if got := get("alice"); got != http.StatusTooManyRequests {
		t.Errorf("second alice request = %d, want 429", got)
	}
	if got := get("bob"); got != http.StatusOK {
		t.Errorf("first bob request = %d, want 200 from its own bucket", got)
	}
}
