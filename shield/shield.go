// Package shield provides the HTTP middleware the argos API runs behind:
// security headers, a JSON body limit, request IDs and per-client rate
// limiting.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.APIStack(logger, shield.DefaultLimits()) {
//	    r.Use(mw)
//	}
package shield

import (
	"log/slog"
	"net/http"
)

// APIStack returns the middleware stack for the JSON API.
// Order: HeadToGet, SecurityHeaders, MaxBody, RequestID, RateLimiter.
func APIStack(logger *slog.Logger, limits Limits) []func(http.Handler) http.Handler {
	rl := NewRateLimiter(limits, "/health")
	return []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
		MaxBody(64 * 1024),
		RequestID(logger),
		rl.Middleware,
	}
}

// HeadToGet serves HEAD as GET so read-only routes answer probes from load
// balancers; net/http drops the body.
func HeadToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			r.Method = http.MethodGet
		}
		next.ServeHTTP(w, r)
	})
}
