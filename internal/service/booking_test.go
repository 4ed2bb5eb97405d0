package service

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KashanAdnan02/GroundZeroBackend2/internal/apperr"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/auth"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/events"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/model"
)

var (
	player  = auth.Identity{UserID: "u1", Role: model.RoleUser, Email: "ayesha@example.com"}
	other   = auth.Identity{UserID: "u2", Role: model.RoleUser}
	admin   = auth.Identity{UserID: "a1", Role: model.RoleAdmin}
	manager = auth.Identity{UserID: "m1", Role: model.RoleSiteManager}
)

func tennisAt(start string, minutes int) model.CreateBookingRequest {
	return model.CreateBookingRequest{
		FacilityID:      "f1",
		Sport:           "tennis",
		Date:            "2026-03-10",
		StartTime:       start,
		DurationMinutes: minutes,
		PaymentMethod:   "card",
	}
}

func day(h, m int) time.Time {
	return time.Date(2026, 3, 10, h, m, 0, 0, time.UTC)
}

// book creates a booking for the player and captures its payment.
func book(t *testing.T, f *fixture, req model.CreateBookingRequest) *model.Booking {
	t.Helper()
	ctx := context.Background()
	b, err := f.bookings.Create(ctx, player, req)
	require.NoError(t, err)
	b, err = f.payments.Capture(ctx, admin, model.TransactionID(b.Code), model.PaymentRequest{PaymentMethod: "cash"})
	require.NoError(t, err)
	return b
}

func TestCreateBooking(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	req := tennisAt("10:00", 60)
	req.Equipment = []model.Equipment{{Name: "racket", Quantity: 1, Cost: 100}}
	b, err := f.bookings.Create(ctx, player, req)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(b.Code, "BK"))
	assert.Equal(t, strings.ToUpper(b.Code), b.Code)
	assert.Equal(t, 600.0, b.TotalAmount)
	assert.Equal(t, model.StatusPending, b.Status)
	assert.Equal(t, model.PaymentPending, b.PaymentStatus)
	assert.Equal(t, day(10, 0), b.StartTime)
	assert.Equal(t, day(11, 0), b.EndTime)
	assert.Equal(t, "2026-03-10", b.BookingDate)
	assert.Equal(t, "s1", b.SiteID)

	p := f.db.paymentOf(b.ID)
	require.NotNil(t, p)
	assert.Equal(t, "txn_"+b.Code, p.TransactionID)
	assert.Equal(t, p.ID, b.PaymentID)
	assert.Equal(t, 600.0, p.Amount)
	assert.Equal(t, "INR", p.Currency)
	assert.Equal(t, model.TxnPending, p.Status)

	fac, err := f.facility.Get(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, 1, fac.TotalBookings)
	assert.Equal(t, []model.SportCount{{Sport: "tennis", BookingCount: 1}}, fac.SportBookings)

	assert.Equal(t, []string{events.NewBooking}, f.rec.types())
	require.Len(t, f.rec.messages, 1)
	assert.Equal(t, "ayesha@example.com", f.rec.messages[0].To)
}

func TestCreateBookingValidation(t *testing.T) {
	f := newFixture()
	f.db.facilities["f2"] = &model.Facility{ID: "f2", Code: "CLOSED", Sports: []model.SportPrice{{Sport: "tennis", BasePrice: 1}}}
	f.db.facilities["f1"].BookingRules = model.BookingRules{MinDurationMin: 30, MaxDurationMin: 180}

	tests := []struct {
		name   string
		mutate func(r *model.CreateBookingRequest)
		kind   error
	}{
		{"missing facility", func(r *model.CreateBookingRequest) { r.FacilityID = "" }, apperr.ErrValidation},
		{"missing sport", func(r *model.CreateBookingRequest) { r.Sport = " " }, apperr.ErrValidation},
		{"sport not offered", func(r *model.CreateBookingRequest) { r.Sport = "squash" }, apperr.ErrValidation},
		{"bad date", func(r *model.CreateBookingRequest) { r.Date = "10/03/2026" }, apperr.ErrValidation},
		{"bad start", func(r *model.CreateBookingRequest) { r.StartTime = "25:00" }, apperr.ErrValidation},
		{"zero duration", func(r *model.CreateBookingRequest) { r.DurationMinutes = 0 }, apperr.ErrValidation},
		{"below minimum", func(r *model.CreateBookingRequest) { r.DurationMinutes = 15 }, apperr.ErrValidation},
		{"above maximum", func(r *model.CreateBookingRequest) { r.DurationMinutes = 240 }, apperr.ErrValidation},
		{"long notes", func(r *model.CreateBookingRequest) { r.Notes = strings.Repeat("x", 501) }, apperr.ErrValidation},
		{"bad equipment", func(r *model.CreateBookingRequest) {
			r.Equipment = []model.Equipment{{Name: "ball", Quantity: 0, Cost: 10}}
		}, apperr.ErrValidation},
		{"already started", func(r *model.CreateBookingRequest) { r.Date = "2026-03-09"; r.StartTime = "07:00" }, apperr.ErrValidation},
		{"inactive facility", func(r *model.CreateBookingRequest) { r.FacilityID = "f2" }, apperr.ErrValidation},
		{"unknown facility", func(r *model.CreateBookingRequest) { r.FacilityID = "nope" }, apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tennisAt("10:00", 60)
			tt.mutate(&req)
			_, err := f.bookings.Create(context.Background(), player, req)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, tt.kind), "got %v", err)
		})
	}
	assert.Empty(t, f.db.bookings)
	assert.Equal(t, 0, f.db.facilities["f1"].TotalBookings)
}

func TestCreateBookingLookupByCode(t *testing.T) {
	f := newFixture()
	req := tennisAt("10:00", 60)
	req.FacilityID = "COURT-1"
	b, err := f.bookings.Create(context.Background(), player, req)
	require.NoError(t, err)
	assert.Equal(t, "f1", b.FacilityID)
}

func TestCreateBookingOverlap(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	held := book(t, f, tennisAt("10:00", 60))
	require.Equal(t, model.StatusConfirmed, held.Status)

	_, err := f.bookings.Create(ctx, other, tennisAt("10:30", 60))
	assert.True(t, apperr.Is(err, apperr.ErrConflict))
	assert.Equal(t, "time slot already booked", apperr.MessageOf(err))

	_, err = f.bookings.Create(ctx, other, tennisAt("09:30", 240))
	assert.True(t, apperr.Is(err, apperr.ErrConflict))

	adjacent, err := f.bookings.Create(ctx, other, tennisAt("11:00", 60))
	require.NoError(t, err)
	assert.Equal(t, day(11, 0), adjacent.StartTime)

	before, err := f.bookings.Create(ctx, other, tennisAt("09:00", 60))
	require.NoError(t, err)
	assert.Equal(t, day(10, 0), before.EndTime)
}

func TestPendingBookingsDoNotHoldSlot(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.bookings.Create(ctx, player, tennisAt("10:00", 60))
	require.NoError(t, err)
	second, err := f.bookings.Create(ctx, other, tennisAt("10:00", 60))
	require.NoError(t, err)

	_, err = f.payments.Capture(ctx, admin, model.TransactionID(first.Code), model.PaymentRequest{})
	require.NoError(t, err)

	_, err = f.payments.Capture(ctx, admin, model.TransactionID(second.Code), model.PaymentRequest{})
	assert.True(t, apperr.Is(err, apperr.ErrConflict))

	loser := f.db.bookings[second.ID]
	assert.Equal(t, model.StatusPending, loser.Status)
	assert.Equal(t, model.PaymentPending, loser.PaymentStatus)
	assert.Equal(t, model.TxnPending, f.db.paymentOf(second.ID).Status)
}

func TestConcurrentCreateSameWindow(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	const racers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.bookings.CreateForUser(ctx, admin, model.AdminBookingRequest{
				CreateBookingRequest: tennisAt("10:00", 60),
				UserID:               "u1",
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if apperr.Is(err, apperr.ErrConflict) {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, racers-1, conflicts)
	assert.Equal(t, 1, f.db.facilities["f1"].TotalBookings)
}

func TestCreateForUser(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.bookings.CreateForUser(ctx, player, model.AdminBookingRequest{CreateBookingRequest: tennisAt("10:00", 60)})
	assert.True(t, apperr.Is(err, apperr.ErrForbidden))

	_, err = f.bookings.CreateForUser(ctx, admin, model.AdminBookingRequest{
		CreateBookingRequest: tennisAt("10:00", 60),
		Status:               model.StatusActive,
	})
	assert.True(t, apperr.Is(err, apperr.ErrValidation))

	// A paid-up pending booking could never be confirmed or swept.
	_, err = f.bookings.CreateForUser(ctx, admin, model.AdminBookingRequest{
		CreateBookingRequest: tennisAt("10:00", 60),
		Status:               model.StatusPending,
		Free:                 true,
	})
	assert.True(t, apperr.Is(err, apperr.ErrValidation))
	assert.Empty(t, f.db.bookings)

	b, err := f.bookings.CreateForUser(ctx, manager, model.AdminBookingRequest{
		CreateBookingRequest: tennisAt("10:00", 60),
		UserID:               "u2",
		Free:                 true,
	})
	require.NoError(t, err)
	assert.Equal(t, "u2", b.UserID)
	assert.Equal(t, model.StatusConfirmed, b.Status)
	assert.Equal(t, model.PaymentPaid, b.PaymentStatus)
	assert.Equal(t, 0.0, b.TotalAmount)
	p := f.db.paymentOf(b.ID)
	assert.Equal(t, model.TxnCompleted, p.Status)
	assert.NotNil(t, p.PaidAt)

	// Staff may record a walk-in after the fact.
	past := tennisAt("07:00", 60)
	past.Date = "2026-03-09"
	_, err = f.bookings.CreateForUser(ctx, admin, model.AdminBookingRequest{CreateBookingRequest: past, UserID: "u1"})
	require.NoError(t, err)
}

func TestWalkInBookingAfterStart(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.clock.Set(day(10, 20))

	_, err := f.bookings.Create(ctx, player, tennisAt("10:00", 60))
	assert.True(t, apperr.Is(err, apperr.ErrValidation))

	_, err = f.bookings.CreateForUser(ctx, player, model.AdminBookingRequest{CreateBookingRequest: tennisAt("10:00", 60)})
	assert.True(t, apperr.Is(err, apperr.ErrForbidden))

	b, err := f.bookings.CreateForUser(ctx, manager, model.AdminBookingRequest{
		CreateBookingRequest: tennisAt("10:00", 60),
		UserID:               "u1",
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, b.Status)
	assert.Equal(t, day(10, 0), b.StartTime)

	// The started window is now taken for everyone.
	_, err = f.bookings.CreateForUser(ctx, admin, model.AdminBookingRequest{
		CreateBookingRequest: tennisAt("10:30", 60),
		UserID:               "u2",
	})
	assert.True(t, apperr.Is(err, apperr.ErrConflict))
}

func TestGetOwnership(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	b, err := f.bookings.Create(ctx, player, tennisAt("10:00", 60))
	require.NoError(t, err)

	got, err := f.bookings.Get(ctx, player, b.Code)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	_, err = f.bookings.Get(ctx, other, b.ID)
	assert.True(t, apperr.Is(err, apperr.ErrForbidden))

	_, err = f.bookings.Get(ctx, manager, b.ID)
	assert.NoError(t, err)

	_, err = f.bookings.Get(ctx, player, "BKMISSING")
	assert.True(t, apperr.Is(err, apperr.ErrNotFound))
}

func TestCheckIn(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	unpaid, err := f.bookings.Create(ctx, player, tennisAt("14:00", 60))
	require.NoError(t, err)
	b := book(t, f, tennisAt("10:00", 60))

	f.clock.Set(day(9, 40))
	_, err = f.bookings.CheckIn(ctx, player, b.ID)
	assert.True(t, apperr.Is(err, apperr.ErrInvalidState), "too early")

	_, err = f.bookings.CheckIn(ctx, player, unpaid.ID)
	assert.True(t, apperr.Is(err, apperr.ErrInvalidState), "pending booking")

	_, err = f.bookings.CheckIn(ctx, other, b.ID)
	assert.True(t, apperr.Is(err, apperr.ErrForbidden))

	f.clock.Set(day(9, 45))
	checked, err := f.bookings.CheckIn(ctx, player, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, checked.Status)
	require.NotNil(t, checked.CheckInTime)
	assert.Equal(t, day(9, 45), *checked.CheckInTime)

	_, err = f.bookings.CheckIn(ctx, player, b.ID)
	assert.True(t, apperr.Is(err, apperr.ErrInvalidState), "already active")
}

func TestCheckInAfterEnd(t *testing.T) {
	f := newFixture()
	b := book(t, f, tennisAt("10:00", 60))

	f.clock.Set(day(11, 1))
	_, err := f.bookings.CheckIn(context.Background(), player, b.ID)
	assert.True(t, apperr.Is(err, apperr.ErrInvalidState))
}

func TestCheckInRequiresPayment(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	b, err := f.bookings.CreateForUser(ctx, admin, model.AdminBookingRequest{
		CreateBookingRequest: tennisAt("10:00", 60),
		UserID:               "u1",
	})
	require.NoError(t, err)
	require.Equal(t, model.StatusConfirmed, b.Status)

	f.clock.Set(day(10, 0))
	_, err = f.bookings.CheckIn(ctx, player, b.ID)
	assert.True(t, apperr.Is(err, apperr.ErrInvalidState))
	assert.Contains(t, err.Error(), "paid")
}

func TestCheckOut(t *testing.T) {
	tests := []struct {
		name     string
		out      time.Time
		lateFee  float64
		duration int
	}{
		{"on time", day(10, 55), 0, 60},
		{"exactly at end", day(11, 0), 0, 65},
		{"one minute over", day(11, 1), 5, 66},
		{"twenty minutes over", day(11, 20), 10, 85},
		{"thirty minutes over", day(11, 30), 10, 95},
		{"thirty one minutes over", day(11, 31), 15, 96},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			ctx := context.Background()
			b := book(t, f, tennisAt("10:00", 60))

			_, err := f.bookings.CheckOut(ctx, player, b.ID)
			assert.True(t, apperr.Is(err, apperr.ErrInvalidState), "not checked in")

			f.clock.Set(day(9, 55))
			_, err = f.bookings.CheckIn(ctx, player, b.ID)
			require.NoError(t, err)

			f.clock.Set(tt.out)
			done, err := f.bookings.CheckOut(ctx, player, b.ID)
			require.NoError(t, err)
			assert.Equal(t, model.StatusCompleted, done.Status)
			assert.Equal(t, tt.lateFee, done.LateFee)
			require.NotNil(t, done.ActualDuration)
			assert.Equal(t, tt.duration, *done.ActualDuration)
			assert.Equal(t, tt.out, *done.CheckOutTime)
		})
	}
}

func TestCancelRefunds(t *testing.T) {
	tests := []struct {
		name      string
		now       time.Time
		refund    float64
		payStatus model.PaymentStatus
		txn       model.TransactionStatus
	}{
		{"a day ahead", day(10, 0).Add(-30 * time.Hour), 600, model.PaymentRefunded, model.TxnRefunded},
		{"same day", day(7, 0), 300, model.PaymentRefunded, model.TxnRefunded},
		{"last minute", day(9, 30), 0, model.PaymentPaid, model.TxnCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.clock.Set(day(10, 0).Add(-48 * time.Hour))
			ctx := context.Background()
			req := tennisAt("10:00", 60)
			req.Equipment = []model.Equipment{{Name: "racket", Quantity: 1, Cost: 100}}
			b := book(t, f, req)

			f.clock.Set(tt.now)
			cancelled, err := f.bookings.Cancel(ctx, player, b.Code, model.CancelRequest{Reason: " rain "})
			require.NoError(t, err)

			assert.Equal(t, model.StatusCancelled, cancelled.Status)
			require.NotNil(t, cancelled.Cancellation)
			assert.Equal(t, "rain", cancelled.Cancellation.Reason)
			assert.Equal(t, "u1", cancelled.Cancellation.CancelledBy)
			assert.Equal(t, tt.now, cancelled.Cancellation.CancelledAt)
			assert.Equal(t, tt.refund, cancelled.Cancellation.RefundAmount)
			assert.Equal(t, tt.payStatus, cancelled.PaymentStatus)
			assert.Equal(t, tt.txn, f.db.paymentOf(b.ID).Status)

			assert.Equal(t, 0, f.db.facilities["f1"].TotalBookings)
			assert.Equal(t, 0, f.db.sports["f1"]["tennis"])
		})
	}
}

func TestCancelRejected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	b := book(t, f, tennisAt("10:00", 60))

	_, err := f.bookings.Cancel(ctx, other, b.ID, model.CancelRequest{})
	assert.True(t, apperr.Is(err, apperr.ErrForbidden))

	f.clock.Set(day(9, 50))
	_, err = f.bookings.CheckIn(ctx, player, b.ID)
	require.NoError(t, err)

	_, err = f.bookings.Cancel(ctx, player, b.ID, model.CancelRequest{})
	assert.True(t, apperr.Is(err, apperr.ErrInvalidState))
	assert.Equal(t, 1, f.db.facilities["f1"].TotalBookings)
}

func TestCancelledSlotCanBeRebooked(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	b := book(t, f, tennisAt("10:00", 60))

	_, err := f.bookings.Cancel(ctx, player, b.ID, model.CancelRequest{})
	require.NoError(t, err)

	again := book(t, f, tennisAt("10:00", 60))
	assert.Equal(t, model.StatusConfirmed, again.Status)
}

func TestReview(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	b := book(t, f, tennisAt("10:00", 60))

	_, err := f.bookings.Review(ctx, player, b.ID, model.ReviewRequest{Rating: 5})
	assert.True(t, apperr.Is(err, apperr.ErrInvalidState), "not completed")

	f.clock.Set(day(10, 0))
	_, err = f.bookings.CheckIn(ctx, player, b.ID)
	require.NoError(t, err)
	f.clock.Set(day(11, 0))
	_, err = f.bookings.CheckOut(ctx, player, b.ID)
	require.NoError(t, err)

	_, err = f.bookings.Review(ctx, player, b.ID, model.ReviewRequest{Rating: 6})
	assert.True(t, apperr.Is(err, apperr.ErrValidation))
	_, err = f.bookings.Review(ctx, other, b.ID, model.ReviewRequest{Rating: 4})
	assert.True(t, apperr.Is(err, apperr.ErrForbidden))

	reviewed, err := f.bookings.Review(ctx, player, b.ID, model.ReviewRequest{Rating: 4, Review: "great court"})
	require.NoError(t, err)
	require.NotNil(t, reviewed.Rating)
	assert.Equal(t, 4, *reviewed.Rating)
	assert.Equal(t, "great court", reviewed.Review)
	assert.NotNil(t, reviewed.ReviewedAt)

	_, err = f.bookings.Review(ctx, player, b.ID, model.ReviewRequest{Rating: 1})
	assert.True(t, apperr.Is(err, apperr.ErrInvalidState), "second review")
}

func TestDelete(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	live := book(t, f, tennisAt("10:00", 60))
	gone := book(t, f, tennisAt("12:00", 60))
	_, err := f.bookings.Cancel(ctx, player, gone.ID, model.CancelRequest{})
	require.NoError(t, err)
	require.Equal(t, 1, f.db.facilities["f1"].TotalBookings)

	err = f.bookings.Delete(ctx, player, live.ID)
	assert.True(t, apperr.Is(err, apperr.ErrForbidden))

	require.NoError(t, f.bookings.Delete(ctx, admin, live.Code))
	assert.Nil(t, f.db.paymentOf(live.ID))
	assert.Equal(t, 0, f.db.facilities["f1"].TotalBookings)

	require.NoError(t, f.bookings.Delete(ctx, admin, gone.ID))
	assert.Equal(t, 0, f.db.facilities["f1"].TotalBookings, "cancelled booking is not decremented twice")
	assert.Empty(t, f.db.payments)

	err = f.bookings.Delete(ctx, admin, live.ID)
	assert.True(t, apperr.Is(err, apperr.ErrNotFound))
	assert.Contains(t, f.rec.types(), events.BookingDeleted)
}

func TestAutoTransition(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	req := tennisAt("10:00", 60)
	req.AutoCheckIn, req.AutoCheckOut = true, true
	auto := book(t, f, req)
	manual := book(t, f, tennisAt("12:00", 60))
	unpaidReq := tennisAt("14:00", 60)
	unpaidReq.AutoCheckIn = true
	unpaid, err := f.bookings.CreateForUser(ctx, admin, model.AdminBookingRequest{CreateBookingRequest: unpaidReq, UserID: "u1"})
	require.NoError(t, err)

	f.clock.Set(day(9, 59))
	require.NoError(t, f.bookings.AutoTransition(ctx))
	assert.Equal(t, model.StatusConfirmed, f.db.bookings[auto.ID].Status)

	f.clock.Set(day(10, 0))
	require.NoError(t, f.bookings.AutoTransition(ctx))
	require.NoError(t, f.bookings.AutoTransition(ctx))
	got := f.db.bookings[auto.ID]
	assert.Equal(t, model.StatusActive, got.Status)
	assert.Equal(t, day(10, 0), *got.CheckInTime)

	f.clock.Set(day(11, 0))
	require.NoError(t, f.bookings.AutoTransition(ctx))
	got = f.db.bookings[auto.ID]
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Equal(t, 60, *got.ActualDuration)
	assert.Equal(t, 0.0, got.LateFee)

	f.clock.Set(day(15, 0))
	require.NoError(t, f.bookings.AutoTransition(ctx))
	assert.Equal(t, model.StatusConfirmed, f.db.bookings[manual.ID].Status, "no auto flags")
	assert.Equal(t, model.StatusConfirmed, f.db.bookings[unpaid.ID].Status, "unpaid")
}

func TestCleanupStale(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	stale, err := f.bookings.Create(ctx, player, tennisAt("10:00", 60))
	require.NoError(t, err)
	paid := book(t, f, tennisAt("12:00", 60))
	require.Equal(t, 2, f.db.facilities["f1"].TotalBookings)

	f.clock.Advance(4 * time.Minute)
	require.NoError(t, f.bookings.CleanupStale(ctx))
	assert.Contains(t, f.db.bookings, stale.ID)

	f.clock.Advance(2 * time.Minute)
	require.NoError(t, f.bookings.CleanupStale(ctx))
	assert.NotContains(t, f.db.bookings, stale.ID)
	assert.Nil(t, f.db.paymentOf(stale.ID))
	assert.Contains(t, f.db.bookings, paid.ID)
	assert.Equal(t, 1, f.db.facilities["f1"].TotalBookings)
	assert.Equal(t, 1, f.db.sports["f1"]["tennis"])

	require.NoError(t, f.bookings.CleanupStale(ctx))
	assert.Equal(t, 1, f.db.facilities["f1"].TotalBookings)
}

func TestListMine(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	for _, start := range []string{"09:00", "10:00", "11:00"} {
		_, err := f.bookings.Create(ctx, player, tennisAt(start, 60))
		require.NoError(t, err)
	}
	_, err := f.bookings.Create(ctx, other, tennisAt("12:00", 60))
	require.NoError(t, err)

	page, err := f.bookings.ListMine(ctx, player, model.BookingFilter{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Bookings, 2)
	assert.Equal(t, day(11, 0), page.Bookings[0].StartTime)

	page, err = f.bookings.ListMine(ctx, player, model.BookingFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Bookings, 1)

	_, err = f.bookings.ListMine(ctx, player, model.BookingFilter{Status: "lost"})
	assert.True(t, apperr.Is(err, apperr.ErrValidation))

	_, err = f.bookings.List(ctx, player, model.BookingFilter{})
	assert.True(t, apperr.Is(err, apperr.ErrForbidden))

	all, err := f.bookings.List(ctx, admin, model.BookingFilter{FacilityID: "f1"})
	require.NoError(t, err)
	assert.Equal(t, 4, all.Total)
	assert.Equal(t, 10, all.Limit)
}

func TestCheckAvailability(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	b := book(t, f, tennisAt("10:00", 60))

	res, err := f.bookings.CheckAvailability(ctx, model.CheckAvailabilityRequest{
		FacilityID: "f1", StartTime: day(10, 30), EndTime: day(11, 30),
	})
	require.NoError(t, err)
	assert.False(t, res.Available)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, b.ID, res.Conflicts[0].ID)

	res, err = f.bookings.CheckAvailability(ctx, model.CheckAvailabilityRequest{
		FacilityID: "f1", StartTime: day(10, 30), EndTime: day(11, 30), ExcludeBookingID: b.Code,
	})
	require.NoError(t, err)
	assert.True(t, res.Available)
	assert.Empty(t, res.Conflicts)

	_, err = f.bookings.CheckAvailability(ctx, model.CheckAvailabilityRequest{
		FacilityID: "f1", StartTime: day(11, 0), EndTime: day(10, 0),
	})
	assert.True(t, apperr.Is(err, apperr.ErrValidation))
}

func TestNewBookingCode(t *testing.T) {
	now := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		code := NewBookingCode(now)
		assert.Regexp(t, `^BK[0-9A-Z]+$`, code)
		assert.Len(t, code, 2+len(strconv.FormatInt(now.UnixMilli(), 36))+5)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 190)
}
