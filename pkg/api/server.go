package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/avelichko/promo-cms/pkg/httputil"
	"github.com/avelichko/promo-cms/pkg/middleware"
	"github.com/avelichko/promo-cms/pkg/observability"
	"github.com/avelichko/promo-cms/pkg/sessions"
	"github.com/avelichko/promo-cms/pkg/uploads"
)

// ServerConfig carries the handler-level settings.
type ServerConfig struct {
	// AdminLogin and AdminPassword are the credentials accepted by the
	// login endpoint.
	AdminLogin    string
	AdminPassword string
	// Production collapses unexpected errors to a generic code.
	Production bool
	// PublicBaseURL, when set, wins over forwarded headers when deriving
	// absolute upload URLs.
	PublicBaseURL string
	// Version is reported by the health endpoint.
	Version string
	// StorageName identifies the active backend in health output.
	StorageName string
}

// Server routes the HTTP API onto a Store.
type Server struct {
	store        Store
	router       *mux.Router
	config       ServerConfig
	sessions     *sessions.Service
	sink         *uploads.Sink
	loginLimiter *middleware.LoginLimiter
	rateLimiter  *middleware.RateLimiter
	health       *observability.HealthChecker
	logger       *observability.Logger
	metrics      *observability.Metrics
}

// ServerOption configures a Server before its routes are built.
type ServerOption func(*Server)

// WithLogger attaches a logger.
func WithLogger(logger *observability.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

// WithMetrics attaches Prometheus metrics and exposes /metrics.
func WithMetrics(metrics *observability.Metrics) ServerOption {
	return func(s *Server) { s.metrics = metrics }
}

// WithSessionService overrides the session service, used by tests to
// inject a controlled clock.
func WithSessionService(svc *sessions.Service) ServerOption {
	return func(s *Server) { s.sessions = svc }
}

// WithLoginLimiter overrides the login attempt limiter.
func WithLoginLimiter(limiter *middleware.LoginLimiter) ServerOption {
	return func(s *Server) { s.loginLimiter = limiter }
}

// WithRateLimiter enables the general API rate limit.
func WithRateLimiter(limiter *middleware.RateLimiter) ServerOption {
	return func(s *Server) { s.rateLimiter = limiter }
}

// NewServer creates the API server. sink may be nil when uploads are
// disabled; every other collaborator gets a default unless overridden.
func NewServer(store Store, sink *uploads.Sink, config ServerConfig, opts ...ServerOption) *Server {
	s := &Server{
		store:  store,
		router: mux.NewRouter(),
		config: config,
		sink:   sink,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sessions == nil {
		s.sessions = sessions.NewService(store)
	}
	if s.loginLimiter == nil {
		s.loginLimiter = middleware.NewLoginLimiter()
	}
	s.health = observability.NewHealthChecker(store, 0)

	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes.
func (s *Server) setupRoutes() {
	s.router.Use(middleware.Recovery(s.logger))
	s.router.Use(middleware.RequestLogger(s.logger, s.metrics))
	if s.rateLimiter != nil {
		s.router.Use(s.rateLimiter.Handler)
	}

	// Public routes
	s.router.HandleFunc("/api/modules", s.listModules).Methods("GET")
	s.router.HandleFunc("/api/modules/{slug}", s.getModuleBySlug).Methods("GET")
	s.router.HandleFunc("/api/documents/{id}", s.getDocument).Methods("GET")
	s.router.HandleFunc("/api/health", s.getHealth).Methods("GET")
	s.router.HandleFunc("/api/ready", s.getReady).Methods("GET")

	// Auth routes
	s.router.HandleFunc("/api/auth/login", s.login).Methods("POST")
	s.router.HandleFunc("/api/auth/logout", s.logout).Methods("POST")

	// Admin routes
	admin := s.router.PathPrefix("/api/admin").Subrouter()
	admin.Use(middleware.RequireAuth(s.sessions, s.logger))
	admin.HandleFunc("/modules", s.listModulesAdmin).Methods("GET")
	admin.HandleFunc("/modules", s.createModule).Methods("POST")
	admin.HandleFunc("/modules/{id}", s.getModuleAdmin).Methods("GET")
	admin.HandleFunc("/modules/{id}", s.updateModule).Methods("PUT")
	admin.HandleFunc("/modules/{id}", s.deleteModule).Methods("DELETE")
	admin.HandleFunc("/modules/{moduleId}/documents", s.createDocument).Methods("POST")
	admin.HandleFunc("/documents/{id}", s.updateDocument).Methods("PUT")
	admin.HandleFunc("/documents/{id}", s.deleteDocument).Methods("DELETE")
	admin.HandleFunc("/uploads", s.uploadImage).Methods("POST")

	// The bare upload route carries the same auth requirement.
	s.router.Handle("/api/uploads",
		middleware.RequireAuth(s.sessions, s.logger)(http.HandlerFunc(s.uploadImage))).Methods("POST")

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}

	if s.sink != nil {
		fileServer := http.FileServer(http.Dir(s.sink.Dir()))
		s.router.PathPrefix("/uploads/").Handler(
			http.StripPrefix("/uploads/", corpHeader(fileServer)))
	}

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFound(w, "not_found")
	})
}

// corpHeader lets images be embedded from other origins.
func corpHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cross-Origin-Resource-Policy", "cross-origin")
		next.ServeHTTP(w, r)
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// writeStoreError maps domain errors to their HTTP shape. Anything not in
// the taxonomy is logged and collapses to internal_error in production.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrTitleRequired):
		httputil.WriteValidationError(w, "title_required")
	case errors.Is(err, ErrModuleNotFound):
		httputil.WriteNotFound(w, "module_not_found")
	case errors.Is(err, ErrNotFound):
		httputil.WriteNotFound(w, "not_found")
	default:
		if s.logger != nil {
			s.logger.WithError(err).
				WithField("method", r.Method).
				WithField("path", r.URL.Path).
				Error("request failed")
		}
		if s.metrics != nil {
			s.metrics.StorageErrorsTotal.WithLabelValues(r.Method + " " + r.URL.Path).Inc()
		}
		if s.config.Production {
			httputil.WriteInternalError(w, "internal_error")
			return
		}
		httputil.WriteInternalError(w, "error")
	}
}
