package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/avelichko/promo-cms/pkg/httputil"
	"github.com/avelichko/promo-cms/pkg/uploads"
)

type uploadRequest struct {
	DataURL string `json:"dataUrl"`
}

// uploadImage handles POST /api/uploads and /api/admin/uploads.
func (s *Server) uploadImage(w http.ResponseWriter, r *http.Request) {
	if s.sink == nil {
		httputil.WriteNotFound(w, "not_found")
		return
	}

	var req uploadRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	result, err := s.sink.Store(strings.TrimSpace(req.DataURL))
	if err != nil {
		if s.metrics != nil {
			s.metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		}
		switch {
		case errors.Is(err, uploads.ErrFileTooLarge):
			httputil.WriteValidationError(w, "file_too_large")
		case errors.Is(err, uploads.ErrInvalidImage):
			httputil.WriteValidationError(w, "invalid_image")
		default:
			s.writeStoreError(w, r, err)
		}
		return
	}

	if s.metrics != nil {
		s.metrics.UploadsTotal.WithLabelValues("stored").Inc()
		s.metrics.UploadedBytesTotal.Add(float64(result.Size))
	}
	httputil.WriteCreated(w, map[string]any{
		"url":  s.publicBase(r) + result.Path,
		"path": result.Path,
	})
}

// publicBase derives the absolute URL prefix for stored images: the
// configured public base first, then forwarded headers, then the request's
// own host.
func (s *Server) publicBase(r *http.Request) string {
	if base := strings.TrimRight(strings.TrimSpace(s.config.PublicBaseURL), "/"); base != "" {
		return base
	}

	proto := strings.ToLower(strings.TrimSpace(strings.Split(r.Header.Get("X-Forwarded-Proto"), ",")[0]))
	host := strings.TrimSpace(strings.Split(r.Header.Get("X-Forwarded-Host"), ",")[0])
	if (proto == "http" || proto == "https") && host != "" {
		return proto + "://" + host
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
