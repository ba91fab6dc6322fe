package api

import (
	"net/http"

	"github.com/avelichko/promo-cms/pkg/httputil"
)

// getDocument handles GET /api/documents/{id}.
func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.GetDocument(r.Context(), httputil.PathVar(r, "id"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]any{"document": doc})
}

// createDocument handles POST /api/admin/modules/{moduleId}/documents.
func (s *Server) createDocument(w http.ResponseWriter, r *http.Request) {
	var draft DocumentDraft
	if !httputil.ParseJSONOrError(w, r, &draft) {
		return
	}

	doc, err := s.store.CreateDocument(r.Context(), httputil.PathVar(r, "moduleId"), draft)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	httputil.WriteCreated(w, map[string]any{"document": doc})
}

// updateDocument handles PUT /api/admin/documents/{id}.
func (s *Server) updateDocument(w http.ResponseWriter, r *http.Request) {
	var upd DocumentUpdate
	if !httputil.ParseJSONOrError(w, r, &upd) {
		return
	}

	doc, err := s.store.UpdateDocument(r.Context(), httputil.PathVar(r, "id"), upd)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]any{"document": doc})
}

// deleteDocument handles DELETE /api/admin/documents/{id}.
func (s *Server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteDocument(r.Context(), httputil.PathVar(r, "id")); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]any{"ok": true})
}
