// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/KashanAdnan02/GroundZeroBackend2/internal/auth"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/model"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/repository"
)

// BookingService is the booking API the handlers drive.
type BookingService interface {
	Create(ctx context.Context, id auth.Identity, req model.CreateBookingRequest) (*model.Booking, error)
	CreateForUser(ctx context.Context, id auth.Identity, req model.AdminBookingRequest) (*model.Booking, error)
	Get(ctx context.Context, id auth.Identity, idOrCode string) (*model.Booking, error)
	ListMine(ctx context.Context, id auth.Identity, f model.BookingFilter) (*model.BookingPage, error)
	List(ctx context.Context, id auth.Identity, f model.BookingFilter) (*model.BookingPage, error)
	CheckIn(ctx context.Context, id auth.Identity, idOrCode string) (*model.Booking, error)
	CheckOut(ctx context.Context, id auth.Identity, idOrCode string) (*model.Booking, error)
	Cancel(ctx context.Context, id auth.Identity, idOrCode string, req model.CancelRequest) (*model.Booking, error)
	Review(ctx context.Context, id auth.Identity, idOrCode string, req model.ReviewRequest) (*model.Booking, error)
	Delete(ctx context.Context, id auth.Identity, idOrCode string) error
	CheckAvailability(ctx context.Context, req model.CheckAvailabilityRequest) (*model.AvailabilityResult, error)
}

// PaymentService settles booking payments.
type PaymentService interface {
	CreateOrder(ctx context.Context, id auth.Identity, bookingID string) (*model.OrderResponse, error)
	Capture(ctx context.Context, id auth.Identity, txnID string, req model.PaymentRequest) (*model.Booking, error)
	RecordPayment(ctx context.Context, id auth.Identity, bookingID string, req model.PaymentRequest) (*model.Booking, error)
	HandleWebhook(ctx context.Context, paymentID string) error
}

// FacilityService manages facilities.
type FacilityService interface {
	Create(ctx context.Context, id auth.Identity, req model.FacilityRequest) (*model.Facility, error)
	Get(ctx context.Context, idOrCode string) (*model.Facility, error)
	List(ctx context.Context, id auth.Identity, filter repository.FacilityFilter) ([]model.Facility, error)
	Update(ctx context.Context, id auth.Identity, idOrCode string, req model.FacilityRequest) (*model.Facility, error)
	Delete(ctx context.Context, id auth.Identity, idOrCode string) error
	Bulk(ctx context.Context, id auth.Identity, req model.BulkFacilityRequest) (*model.BulkFacilityResult, error)
	Availability(ctx context.Context, idOrCode, date string, duration int) (*model.DayAvailability, error)
	Stats(ctx context.Context, id auth.Identity, idOrCode string) (*model.FacilityStats, error)
}

// SiteService manages sites.
type SiteService interface {
	Create(ctx context.Context, id auth.Identity, req model.SiteRequest) (*model.Site, error)
	Get(ctx context.Context, idOrCode string) (*model.Site, error)
	List(ctx context.Context, id auth.Identity) ([]model.Site, error)
	Update(ctx context.Context, id auth.Identity, idOrCode string, req model.SiteRequest) (*model.Site, error)
	Toggle(ctx context.Context, id auth.Identity, idOrCode string) (bool, error)
	Delete(ctx context.Context, id auth.Identity, idOrCode string) error
}

// UserService lists user profiles.
type UserService interface {
	List(ctx context.Context, id auth.Identity, f model.UserFilter) (*model.UserPage, error)
}

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health. With a pinger it also reports the
// database, answering 503 when it is unreachable.
func HealthCheck(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db == nil {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "unreachable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "ok"})
	}
}
