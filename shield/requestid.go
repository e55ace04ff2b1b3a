package shield

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/hazyhaar/argos/idgen"
	"github.com/hazyhaar/argos/kit"
)

var requestIDs = idgen.Prefixed("req_", idgen.UUIDv7())

// RequestID assigns each request an ID, echoes it in X-Request-ID, stores
// it under kit.RequestIDKey and logs the request when it completes.
func RequestID(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" || len(id) > 64 {
				id = requestIDs()
			}
			w.Header().Set("X-Request-ID", id)
			ctx := kit.WithRequestID(r.Context(), id)

			start := time.Now()
			next.ServeHTTP(w, r.WithContext(ctx))
			logger.Info("shield: request",
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
				"duration", time.Since(start))
		})
	}
}
