package middleware

import (
	"net/http"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/avelichko/promo-cms/pkg/httputil"
	"github.com/avelichko/promo-cms/pkg/observability"
)

// RateLimitConfig defines the general API rate limit.
type RateLimitConfig struct {
	// RPS is the sustained allowed request rate per client.
	RPS float64
	// Burst is the token bucket size per client.
	Burst int
	// Skip exempts matching requests (health probes) from limiting.
	Skip func(*http.Request) bool
}

// DefaultRateLimitConfig allows one request per second sustained with a
// burst of 60 per client.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{RPS: 1, Burst: 60}
}

// maxTrackedClients bounds limiter memory; evicted clients simply start
// with a full bucket again.
const maxTrackedClients = 8192

// RateLimiter enforces a per-client token bucket over the whole API.
// Clients are keyed by IP; buckets live in an LRU cache so an address scan
// cannot grow memory without bound.
type RateLimiter struct {
	config  RateLimitConfig
	buckets *lru.Cache[string, *rate.Limiter]
	metrics *observability.Metrics
}

// NewRateLimiter creates a rate limiter. metrics may be nil.
func NewRateLimiter(config RateLimitConfig, metrics *observability.Metrics) *RateLimiter {
	buckets, _ := lru.New[string, *rate.Limiter](maxTrackedClients)
	return &RateLimiter{config: config, buckets: buckets, metrics: metrics}
}

// Allow reports whether the client identified by key may proceed.
func (rl *RateLimiter) Allow(key string) bool {
	lim, ok := rl.buckets.Get(key)
	if !ok {
		lim = rate.NewLimiter(rate.Limit(rl.config.RPS), rl.config.Burst)
		rl.buckets.Add(key, lim)
	}
	return lim.Allow()
}

// Handler wraps next with the rate limit.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.config.Skip != nil && rl.config.Skip(r) {
			next.ServeHTTP(w, r)
			return
		}
		if !rl.Allow(httputil.ClientIP(r)) {
			if rl.metrics != nil {
				rl.metrics.RateLimitRejections.WithLabelValues("api").Inc()
			}
			w.Header().Set("Retry-After", "1")
			httputil.WriteTooManyRequests(w, "too_many_requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
