package middleware

import (
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/avelichko/promo-cms/pkg/httputil"
	"github.com/avelichko/promo-cms/pkg/observability"
)

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// RequestLogger logs each request and records HTTP metrics. Either logger
// or metrics may be nil.
func RequestLogger(logger *observability.Logger, metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			duration := time.Since(start)
			if metrics != nil {
				metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rw.statusCode)).Inc()
				metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration.Seconds())
			}
			if logger != nil {
				logger.WithField("method", r.Method).
					WithField("path", r.URL.Path).
					WithField("status", rw.statusCode).
					WithField("duration_ms", duration.Milliseconds()).
					Debug("request handled")
			}
		})
	}
}

// Recovery converts handler panics into 500 responses so one bad request
// cannot take down the process.
func Recovery(logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if logger != nil {
						logger.WithField("panic", rec).
							WithField("method", r.Method).
							WithField("path", r.URL.Path).
							WithField("stack", string(debug.Stack())).
							Error("handler panicked")
					}
					httputil.WriteInternalError(w, "internal_error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
