package shield

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hazyhaar/argos/kit"
)

// Limits is the per-client request budget.
type Limits struct {
	PerMinute int
	Burst     int
	// IdleTTL is how long an unused client bucket is kept.
	IdleTTL time.Duration
}

// DefaultLimits allows 30 requests a minute per client with bursts of 5.
func DefaultLimits() Limits {
	return Limits{PerMinute: 30, Burst: 5, IdleTTL: 10 * time.Minute}
}

type client struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimiter limits requests per client IP with a token bucket each.
type RateLimiter struct {
	limits  Limits
	mu      sync.Mutex
	clients map[string]*client
	exclude []string // path prefixes not limited
	now     func() time.Time
}

// NewRateLimiter creates a limiter. Paths with one of excludePrefixes are
// never limited.
func NewRateLimiter(limits Limits, excludePrefixes ...string) *RateLimiter {
	if limits.PerMinute <= 0 {
		limits.PerMinute = DefaultLimits().PerMinute
	}
	if limits.Burst <= 0 {
		limits.Burst = 1
	}
	if limits.IdleTTL <= 0 {
		limits.IdleTTL = DefaultLimits().IdleTTL
	}
	return &RateLimiter{
		limits:  limits,
		clients: make(map[string]*client),
		exclude: excludePrefixes,
		now:     time.Now,
	}
}

func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	c, ok := rl.clients[ip]
	if !ok {
		rl.gc(now)
		c = &client{lim: rate.NewLimiter(rate.Limit(float64(rl.limits.PerMinute)/60), rl.limits.Burst)}
		rl.clients[ip] = c
	}
	c.seen = now
	return c.lim.AllowN(now, 1)
}

// gc drops idle buckets. Caller holds mu.
func (rl *RateLimiter) gc(now time.Time) {
	for ip, c := range rl.clients {
		if now.Sub(c.seen) > rl.limits.IdleTTL {
			delete(rl.clients, ip)
		}
	}
}

// Middleware rejects over-budget requests with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, p := range rl.exclude {
			if strings.HasPrefix(r.URL.Path, p) {
				next.ServeHTTP(w, r)
				return
			}
		}
		if !rl.allow(ExtractIP(r)) {
			w.Header().Set("Retry-After", "60")
			kit.WriteJSON(w, http.StatusTooManyRequests, map[string]string{
				"error": "rate limit exceeded",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ExtractIP returns the client IP: the first X-Forwarded-For hop, then
// X-Real-IP, then the connection address.
func ExtractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
