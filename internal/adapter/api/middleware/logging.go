package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/V4T54L/vetclinic/internal/adapter/metrics"
)

// responseWriter is a wrapper that captures the HTTP status code for logging.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// requestFields collects attributes set by inner middleware.
type requestFields struct {
	tenant string
}

type requestFieldsKey struct{}

func setLogTenant(ctx context.Context, subdomain string) {
	if f, ok := ctx.Value(requestFieldsKey{}).(*requestFields); ok {
		f.tenant = subdomain
	}
}

// Logging is a middleware factory that logs HTTP requests with the resolved
// tenant and counts responses by status code. m may be nil.
func Logging(logger *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			fields := &requestFields{}
			r = r.WithContext(context.WithValue(r.Context(), requestFieldsKey{}, fields))
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			duration := time.Since(start)
			if m != nil {
				m.HTTPRequests.WithLabelValues(strconv.Itoa(rw.statusCode)).Inc()
			}

			logger.Info("handled request",
				"method", r.Method,
				"host", r.Host,
				"path", r.URL.Path,
				"tenant", fields.tenant,
				"request_id", chimw.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
				"status", rw.statusCode,
				"duration_ms", duration.Milliseconds(),
			)
		})
	}
}
