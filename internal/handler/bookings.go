package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/KashanAdnan02/GroundZeroBackend2/internal/model"
)

// BookingHandler serves /bookings.
type BookingHandler struct {
	svc      BookingService
	payments PaymentService
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(svc BookingService, payments PaymentService) *BookingHandler {
	return &BookingHandler{svc: svc, payments: payments}
}

// Create handles POST /bookings
// Books a facility window for the caller; the booking starts pending.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateBookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	b, err := h.svc.Create(r.Context(), identity(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// CreateForUser handles POST /bookings/admin
func (h *BookingHandler) CreateForUser(w http.ResponseWriter, r *http.Request) {
	var req model.AdminBookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	b, err := h.svc.CreateForUser(r.Context(), identity(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// Mine handles GET /bookings/mine?status=&upcoming=&page=&limit=
func (h *BookingHandler) Mine(w http.ResponseWriter, r *http.Request) {
	f, err := bookingFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := h.svc.ListMine(r.Context(), identity(r), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// List handles GET /bookings (staff).
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	f, err := bookingFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := h.svc.List(r.Context(), identity(r), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Get handles GET /bookings/{id}
// Accepts either the booking id or its booking code.
func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.Get(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// CheckIn handles POST /bookings/{id}/check-in
func (h *BookingHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.CheckIn(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// CheckOut handles POST /bookings/{id}/check-out
func (h *BookingHandler) CheckOut(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.CheckOut(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// Cancel handles POST /bookings/{id}/cancel
// The body is optional.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req model.CancelRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	b, err := h.svc.Cancel(r.Context(), identity(r), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// Payment handles POST /bookings/{id}/payment
func (h *BookingHandler) Payment(w http.ResponseWriter, r *http.Request) {
	var req model.PaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	b, err := h.payments.RecordPayment(r.Context(), identity(r), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// Review handles POST /bookings/{id}/review
func (h *BookingHandler) Review(w http.ResponseWriter, r *http.Request) {
	var req model.ReviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	b, err := h.svc.Review(r.Context(), identity(r), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// Delete handles DELETE /bookings/{id} (staff).
func (h *BookingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), identity(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CheckAvailability handles POST /bookings/check-availability
func (h *BookingHandler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	var req model.CheckAvailabilityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.svc.CheckAvailability(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
