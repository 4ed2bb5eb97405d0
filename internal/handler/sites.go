package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/KashanAdnan02/GroundZeroBackend2/internal/model"
)

// SiteHandler serves /sites.
type SiteHandler struct {
	svc SiteService
}

// NewSiteHandler constructs a SiteHandler.
func NewSiteHandler(svc SiteService) *SiteHandler {
	return &SiteHandler{svc: svc}
}

func (h *SiteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.SiteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	s, err := h.svc.Create(r.Context(), identity(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

func (h *SiteHandler) List(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.List(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *SiteHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *SiteHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req model.SiteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	s, err := h.svc.Update(r.Context(), identity(r), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// ToggleStatus handles PATCH /sites/{id}/toggle-status
func (h *SiteHandler) ToggleStatus(w http.ResponseWriter, r *http.Request) {
	active, err := h.svc.Toggle(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"is_active": active})
}

// Delete handles DELETE /sites/{id}
func (h *SiteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), identity(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
