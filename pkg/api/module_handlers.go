package api

import (
	"net/http"

	"github.com/avelichko/promo-cms/pkg/httputil"
)

// listModules handles GET /api/modules.
func (s *Server) listModules(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListModules(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]any{"modules": toPublicSummaries(list)})
}

// getModuleBySlug handles GET /api/modules/{slug}.
func (s *Server) getModuleBySlug(w http.ResponseWriter, r *http.Request) {
	detail, err := s.store.GetModuleBySlug(r.Context(), httputil.PathVar(r, "slug"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]any{"module": toPublicModule(detail)})
}

// listModulesAdmin handles GET /api/admin/modules.
func (s *Server) listModulesAdmin(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListModules(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]any{"modules": toAdminSummaries(list)})
}

// getModuleAdmin handles GET /api/admin/modules/{id}.
func (s *Server) getModuleAdmin(w http.ResponseWriter, r *http.Request) {
	detail, err := s.store.GetModuleByID(r.Context(), httputil.PathVar(r, "id"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]any{"module": toAdminModule(detail)})
}

// createModule handles POST /api/admin/modules.
func (s *Server) createModule(w http.ResponseWriter, r *http.Request) {
	var draft ModuleDraft
	if !httputil.ParseJSONOrError(w, r, &draft) {
		return
	}

	detail, err := s.store.CreateModule(r.Context(), draft)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	httputil.WriteCreated(w, map[string]any{"module": toAdminModule(detail)})
}

// updateModule handles PUT /api/admin/modules/{id}.
func (s *Server) updateModule(w http.ResponseWriter, r *http.Request) {
	var upd ModuleUpdate
	if !httputil.ParseJSONOrError(w, r, &upd) {
		return
	}

	detail, err := s.store.UpdateModule(r.Context(), httputil.PathVar(r, "id"), upd)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]any{"module": toAdminModule(detail)})
}

// deleteModule handles DELETE /api/admin/modules/{id}.
func (s *Server) deleteModule(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteModule(r.Context(), httputil.PathVar(r, "id")); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]any{"ok": true})
}
