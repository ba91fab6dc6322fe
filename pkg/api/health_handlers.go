package api

import (
	"net/http"

	"github.com/avelichko/promo-cms/pkg/httputil"
)

// getHealth handles GET /api/health: 200 with ok=true when the storage
// probe succeeds, 503 otherwise.
func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"ok":      true,
		"storage": s.config.StorageName,
		"uploads": s.sink != nil,
		"version": s.config.Version,
	}
	if !s.health.Healthy(r.Context()) {
		body["ok"] = false
		body["error"] = "storage_unavailable"
		httputil.WriteJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	httputil.WriteSuccess(w, body)
}

// getReady handles GET /api/ready, the minimal readiness probe.
func (s *Server) getReady(w http.ResponseWriter, r *http.Request) {
	if !s.health.Healthy(r.Context()) {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"ready": false})
		return
	}
	httputil.WriteSuccess(w, map[string]any{"ready": true})
}
