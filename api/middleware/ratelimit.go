package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/models"
)

const (
	limiterMaxIdle    = time.Hour
	limiterSweepEvery = 5 * time.Minute
)

// limiterPool hands out one token bucket per caller identity and evicts
// buckets idle past limiterMaxIdle.
type limiterPool struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rps     rate.Limit
	burst   int
}

type bucket struct {
	lim     *rate.Limiter
	lastUse time.Time
}

func newLimiterPool(cfg config.RateLimitConfig) *limiterPool {
	p := &limiterPool{
		buckets: make(map[string]*bucket),
		rps:     rate.Limit(cfg.RequestsPerSecond),
		burst:   cfg.Burst,
	}
	go p.sweep()
	return p
}

func (p *limiterPool) get(identity string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.buckets[identity]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(p.rps, p.burst)}
		p.buckets[identity] = b
	}
	b.lastUse = time.Now()
	return b.lim
}

func (p *limiterPool) sweep() {
	ticker := time.NewTicker(limiterSweepEvery)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-limiterMaxIdle)
		p.mu.Lock()
		for id, b := range p.buckets {
			if b.lastUse.Before(cutoff) {
				delete(p.buckets, id)
			}
		}
		p.mu.Unlock()
	}
}

// RateLimit returns per-identity token-bucket rate limiting middleware
// backed by golang.org/x/time/rate. Identity is the API key set by Auth,
// or the client IP when the request carries none.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	pool := newLimiterPool(cfg)

	return func(c *gin.Context) {
		if !pool.get(clientIdentity(c)).Allow() {
			abortWith(c, http.StatusTooManyRequests, models.ErrCodeRateLimited,
				"rate limit exceeded, please slow down")
			return
		}
		c.Next()
	}
}

func clientIdentity(c *gin.Context) string {
	if key := c.GetString("api_key"); key != "" {
		return key
	}
	return c.ClientIP()
}
