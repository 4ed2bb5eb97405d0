// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the repository layer.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/KashanAdnan02/GroundZeroBackend2/internal/apperr"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/auth"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/events"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/model"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/notify"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/repository"
)

// BookingStore persists bookings together with their payment row and the
// facility counters.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking, p *model.Payment) error
	Get(ctx context.Context, idOrCode string) (*model.Booking, error)
	List(ctx context.Context, f model.BookingFilter) ([]model.Booking, int, error)
	ListOccupying(ctx context.Context, facilityID string, from, to time.Time) ([]model.Booking, error)
	Save(ctx context.Context, b *model.Booking, guard repository.Guard) error
	Cancel(ctx context.Context, b *model.Booking, guard repository.Guard, refund bool) error
	Settle(ctx context.Context, b *model.Booking, guard repository.Guard, p *model.Payment, eventID string) error
	Delete(ctx context.Context, idOrCode string) (*model.Booking, error)
	AutoCheckIn(ctx context.Context, now time.Time) ([]model.Booking, error)
	AutoCheckOut(ctx context.Context, now time.Time) ([]model.Booking, error)
	DeleteStale(ctx context.Context, cutoff time.Time) ([]model.Booking, error)
	Stats(ctx context.Context, facilityID string) (map[string]int, float64, error)
}

// FacilityStore persists facilities.
type FacilityStore interface {
	Create(ctx context.Context, f *model.Facility) error
	Get(ctx context.Context, idOrCode string) (*model.Facility, error)
	List(ctx context.Context, filter repository.FacilityFilter) ([]model.Facility, error)
	Update(ctx context.Context, f *model.Facility, previousSite string) error
	Delete(ctx context.Context, id string) error
	CreateMany(ctx context.Context, fs []*model.Facility) error
	DeleteMany(ctx context.Context, ids []string) (int, error)
	SportCounts(ctx context.Context, facilityID string) ([]model.SportCount, error)
}

// PaymentStore reads payment rows. Writes go through BookingStore so they
// share the booking transaction.
type PaymentStore interface {
	GetByBooking(ctx context.Context, bookingID string) (*model.Payment, error)
	GetByTransaction(ctx context.Context, txnID string) (*model.Payment, error)
	SetGatewayRef(ctx context.Context, txnID, ref, method string) error
}

// SiteStore persists sites.
type SiteStore interface {
	Create(ctx context.Context, s *model.Site) error
	Get(ctx context.Context, idOrCode string) (*model.Site, error)
	List(ctx context.Context, activeOnly bool) ([]model.Site, error)
	Update(ctx context.Context, s *model.Site) error
	ToggleActive(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
}

// UserStore looks up contact details.
type UserStore interface {
	Get(ctx context.Context, id string) (*model.User, error)
}

// UserDirectory pages through user profiles.
type UserDirectory interface {
	List(ctx context.Context, f model.UserFilter) ([]model.User, int, error)
}

// Sender queues a notification without waiting for delivery.
type Sender interface {
	Send(m notify.Message)
}

// storeErr converts repository errors into the core error kinds. Anything
// unrecognised is a dependency failure.
func storeErr(what, op string, err error) error {
	var ae *apperr.Error
	switch {
	case errors.As(err, &ae):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound(what)
	case errors.Is(err, repository.ErrOverlap):
		return apperr.Conflict("time slot already booked")
	case errors.Is(err, repository.ErrDuplicate):
		return apperr.Conflict("%s already exists", what)
	case errors.Is(err, repository.ErrStale):
		return apperr.Conflict("%s was modified concurrently, please retry", what)
	case errors.Is(err, repository.ErrInUse):
		return apperr.Conflict("%s is still referenced", what)
	}
	return apperr.Dependency(op, err)
}

// owns reports whether id may act on b.
func owns(id auth.Identity, b *model.Booking) bool {
	return id.Privileged() || b.UserID == id.UserID
}

// emit publishes e and logs, never returns, a failure.
func emit(ctx context.Context, em events.Emitter, log zerolog.Logger, e events.Event) {
	if em == nil {
		return
	}
	if err := em.Emit(ctx, e); err != nil {
		log.Warn().Err(err).Str("event", e.Type).Msg("emit event")
	}
}

// notifyUser looks up the user's email and queues a message. Lookup failures
// only cost the notification.
func notifyUser(ctx context.Context, users UserStore, sender Sender, log zerolog.Logger, userID, subject, body string) {
	if sender == nil || users == nil {
		return
	}
	u, err := users.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			log.Warn().Err(err).Str("user", userID).Msg("lookup user for notification")
		}
		return
	}
	sender.Send(notify.Message{To: u.Email, Subject: subject, Body: body})
}

func ptr[T any](v T) *T {
	return &v
}
