package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/KashanAdnan02/GroundZeroBackend2/internal/auth"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/model"
)

// Deps is everything the router needs.
type Deps struct {
	Bookings      BookingService
	Payments      PaymentService
	Facilities    FacilityService
	Sites         SiteService
	Users         UserService
	Issuer        *auth.Issuer
	DB            Pinger
	Log           zerolog.Logger
	CORSOrigin    string
	WebhookSecret string
}

// NewRouter builds the HTTP API.
func NewRouter(d Deps) http.Handler {
	bookings := NewBookingHandler(d.Bookings, d.Payments)
	facilities := NewFacilityHandler(d.Facilities)
	sites := NewSiteHandler(d.Sites)
	users := NewUserHandler(d.Users)
	payments := NewPaymentHandler(d.Payments, d.WebhookSecret)

	authn := Authenticate(d.Issuer)
	public := OptionalAuthenticate(d.Issuer)
	staff := RequireRole(model.RoleAdmin, model.RoleSiteManager)
	admin := RequireRole(model.RoleAdmin)

	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger(d.Log))
	r.Use(CORS(d.CORSOrigin))

	r.Get("/health", HealthCheck(d.DB))

	r.Route("/payments", func(r chi.Router) {
		// Provider callbacks authenticate by signature, not by token.
		r.Post("/webhook", payments.Webhook)
		r.With(authn).Post("/orders", payments.CreateOrder)
		r.With(authn, staff).Put("/{txn}/capture", payments.Capture)
	})

	// Catalogue reads are open to anonymous visitors.
	r.Route("/facilities", func(r chi.Router) {
		r.With(public).Get("/", facilities.List)
		r.With(public).Get("/{id}", facilities.Get)
		r.With(public).Get("/{id}/availability", facilities.Availability)
		r.With(authn).Get("/{id}/booking-stats", facilities.Stats)
		r.With(authn, staff).Post("/", facilities.Create)
		r.With(authn, staff).Post("/bulk", facilities.Bulk)
		r.With(authn, staff).Put("/{id}", facilities.Update)
		r.With(authn, admin).Delete("/{id}", facilities.Delete)
	})

	r.Route("/sites", func(r chi.Router) {
		r.With(public).Get("/", sites.List)
		r.With(public).Get("/{id}", sites.Get)
		r.With(authn, admin).Post("/", sites.Create)
		r.With(authn, admin).Put("/{id}", sites.Update)
		r.With(authn, admin).Patch("/{id}/toggle-status", sites.ToggleStatus)
		r.With(authn, admin).Delete("/{id}", sites.Delete)
	})

	r.With(authn, admin).Get("/admin/users", users.List)

	r.Group(func(r chi.Router) {
		r.Use(authn)

		r.Route("/bookings", func(r chi.Router) {
			r.Post("/", bookings.Create)
			r.Get("/mine", bookings.Mine)
			r.Get("/{id}", bookings.Get)
			r.Post("/{id}/check-in", bookings.CheckIn)
			r.Post("/{id}/check-out", bookings.CheckOut)
			r.Post("/{id}/cancel", bookings.Cancel)
			r.Post("/{id}/payment", bookings.Payment)
			r.Post("/{id}/review", bookings.Review)

			r.Group(func(r chi.Router) {
				r.Use(staff)
				r.Get("/", bookings.List)
				r.Post("/admin", bookings.CreateForUser)
				r.Post("/check-availability", bookings.CheckAvailability)
				r.Delete("/{id}", bookings.Delete)
			})
		})
	})

	return r
}
