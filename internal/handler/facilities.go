package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/KashanAdnan02/GroundZeroBackend2/internal/model"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/repository"
)

// FacilityHandler serves /facilities.
type FacilityHandler struct {
	svc FacilityService
}

// NewFacilityHandler constructs a FacilityHandler.
func NewFacilityHandler(svc FacilityService) *FacilityHandler {
	return &FacilityHandler{svc: svc}
}

// Create handles POST /facilities
func (h *FacilityHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.FacilityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	f, err := h.svc.Create(r.Context(), identity(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

// List handles GET /facilities?site_id=&sport=
func (h *FacilityHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := h.svc.List(r.Context(), identity(r), repository.FacilityFilter{
		SiteID: q.Get("site_id"),
		Sport:  q.Get("sport"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Get handles GET /facilities/{id}
func (h *FacilityHandler) Get(w http.ResponseWriter, r *http.Request) {
	f, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// Update handles PUT /facilities/{id}
func (h *FacilityHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req model.FacilityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	f, err := h.svc.Update(r.Context(), identity(r), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// Delete handles DELETE /facilities/{id}
func (h *FacilityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), identity(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Bulk handles POST /facilities/bulk
func (h *FacilityHandler) Bulk(w http.ResponseWriter, r *http.Request) {
	var req model.BulkFacilityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.svc.Bulk(r.Context(), identity(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if res.Operation == model.BulkCreate {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

// Availability handles GET /facilities/{id}/availability?date=YYYY-MM-DD&duration=
func (h *FacilityHandler) Availability(w http.ResponseWriter, r *http.Request) {
	duration, err := queryInt(r, "duration", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	day, err := h.svc.Availability(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("date"), duration)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, day)
}

// Stats handles GET /facilities/{id}/booking-stats
func (h *FacilityHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
