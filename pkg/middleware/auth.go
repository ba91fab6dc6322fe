// Package middleware provides the HTTP middleware used by the CMS server:
// bearer-token admin auth, general API rate limiting, a login attempt
// limiter, and request logging.
package middleware

import (
	"net/http"

	"github.com/avelichko/promo-cms/pkg/httputil"
	"github.com/avelichko/promo-cms/pkg/observability"
	"github.com/avelichko/promo-cms/pkg/sessions"
)

// RequireAuth rejects requests whose Authorization header does not carry a
// valid admin session token. A missing, malformed, or expired token yields
// 401 "unauthorized"; an internal failure during validation yields 500
// "auth_failed" without leaking details.
func RequireAuth(svc *sessions.Service, logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := httputil.BearerToken(r)
			ok, err := svc.Validate(r.Context(), token)
			if err != nil {
				if logger != nil {
					logger.WithError(err).
						WithField("method", r.Method).
						WithField("path", r.URL.Path).
						Error("session validation failed")
				}
				httputil.WriteInternalError(w, "auth_failed")
				return
			}
			if !ok {
				httputil.WriteUnauthorized(w, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
