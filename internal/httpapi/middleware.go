package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vorn/vorn/internal/observability"
	"github.com/vorn/vorn/internal/observability/logging"
)

// OpIDHeader lets callers correlate a request with its log events.
const OpIDHeader = "X-Op-Id"

// observe gives every request an op id, the server logger and start/complete
// events, and counts it by route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ctx := observability.WithOpIDValue(r.Context(), r.Header.Get(OpIDHeader))
		ctx = observability.WithComponent(ctx, "http")
		ctx = logging.WithLogger(ctx, s.logger)
		w.Header().Set(OpIDHeader, observability.OpID(ctx))

		s.logger.Event(ctx, "http.start", map[string]any{
			"method": r.Method,
			"path":   r.URL.Path,
		})

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}

		result := "success"
		if status >= 400 {
			result = "fail"
		}
		s.logger.Event(ctx, "http.complete", map[string]any{
			"method":      r.Method,
			"route":       route,
			"status":      status,
			"duration_ms": time.Since(start).Milliseconds(),
			"result":      result,
		})
		if s.metrics != nil {
			s.metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		}
	})
}
