package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/avelichko/promo-cms/pkg/httputil"
)

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// login handles POST /api/auth/login. Attempts count against the source
// address before the credentials are examined, so failed and successful
// logins spend the same budget.
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if !s.loginLimiter.Allow(httputil.ClientIP(r)) {
		if s.metrics != nil {
			s.metrics.RateLimitRejections.WithLabelValues("login").Inc()
		}
		httputil.WriteTooManyRequests(w, "too_many_attempts")
		return
	}

	var req loginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	loginOK := subtle.ConstantTimeCompare([]byte(req.Login), []byte(s.config.AdminLogin)) == 1
	passwordOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.config.AdminPassword)) == 1
	if !loginOK || !passwordOK {
		httputil.WriteUnauthorized(w, "invalid_credentials")
		return
	}

	sess, err := s.sessions.Create(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if s.metrics != nil {
		s.metrics.SessionsIssuedTotal.Inc()
	}
	httputil.WriteSuccess(w, map[string]any{"token": sess.Token, "expiresAt": sess.ExpiresAt})
}

// logout handles POST /api/auth/logout. Always succeeds; a missing or
// unknown token is simply ignored.
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if token := httputil.BearerToken(r); token != "" {
		if err := s.sessions.Delete(r.Context(), token); err != nil {
			s.writeStoreError(w, r, err)
			return
		}
	}
	httputil.WriteSuccess(w, map[string]any{"ok": true})
}
