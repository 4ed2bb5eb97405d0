package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/KashanAdnan02/GroundZeroBackend2/internal/apperr"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/auth"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/availability"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/events"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/lifecycle"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/model"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/notify"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/pricing"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/repository"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/schedule"
)

const (
	maxNotesLen     = 500
	maxReviewLen    = 1000
	defaultPageSize = 10
	maxPageSize     = 100
	codeAttempts    = 3
)

// BookingDeps wires a BookingService.
type BookingDeps struct {
	Bookings   BookingStore
	Facilities FacilityStore
	Users      UserStore
	Emitter    events.Emitter
	Notifier   Sender
	Log        zerolog.Logger
	Location   *time.Location
	Currency   string
	PendingTTL time.Duration
	Now        func() time.Time
}

// BookingService owns the booking lifecycle.
type BookingService struct {
	bookings   BookingStore
	facilities FacilityStore
	users      UserStore
	checker    *availability.Checker
	emitter    events.Emitter
	notifier   Sender
	log        zerolog.Logger
	loc        *time.Location
	currency   string
	pendingTTL time.Duration
	now        func() time.Time
}

// NewBookingService constructs a BookingService with its dependencies.
func NewBookingService(d BookingDeps) *BookingService {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.Currency == "" {
		d.Currency = "INR"
	}
	if d.PendingTTL == 0 {
		d.PendingTTL = 5 * time.Minute
	}
	return &BookingService{
		bookings:   d.Bookings,
		facilities: d.Facilities,
		users:      d.Users,
		checker:    availability.NewChecker(d.Bookings),
		emitter:    d.Emitter,
		notifier:   d.Notifier,
		log:        d.Log,
		loc:        d.Location,
		currency:   d.Currency,
		pendingTTL: d.PendingTTL,
		now:        d.Now,
	}
}

// Create books a window for the caller. The booking starts pending with a
// pending payment.
func (s *BookingService) Create(ctx context.Context, id auth.Identity, req model.CreateBookingRequest) (*model.Booking, error) {
	return s.create(ctx, id, id.UserID, req, model.StatusPending, false)
}

// CreateForUser lets an admin or site manager book on behalf of a user,
// optionally confirmed up front and free of charge.
func (s *BookingService) CreateForUser(ctx context.Context, id auth.Identity, req model.AdminBookingRequest) (*model.Booking, error) {
	if !id.Privileged() {
		return nil, apperr.Forbidden("only admins and site managers can create bookings for other users")
	}
	status := req.Status
	if status == "" {
		status = model.StatusConfirmed
	}
	if status != model.StatusPending && status != model.StatusConfirmed {
		return nil, apperr.Validation("booking_status must be pending or confirmed")
	}
	if req.Free && status == model.StatusPending {
		return nil, apperr.Validation("a free booking is settled up front and cannot be pending")
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = id.UserID
	}
	return s.create(ctx, id, userID, req.CreateBookingRequest, status, req.Free)
}

func (s *BookingService) create(ctx context.Context, actor auth.Identity, userID string, req model.CreateBookingRequest, status model.BookingStatus, free bool) (*model.Booking, error) {
	date, startMin, err := s.validateCreate(&req)
	if err != nil {
		return nil, err
	}

	f, err := s.facilities.Get(ctx, req.FacilityID)
	if err != nil {
		return nil, storeErr("facility", "get facility", err)
	}
	if !f.IsActive {
		return nil, apperr.Validation("facility %s is not accepting bookings", f.Code)
	}
	basePrice, ok := f.BasePrice(req.Sport)
	if !ok {
		return nil, apperr.Validation("sport %q is not offered at this facility", req.Sport)
	}
	if err := checkRules(f.BookingRules, req.DurationMinutes); err != nil {
		return nil, err
	}

	now := s.now()
	start := schedule.At(date, startMin)
	end := start.Add(time.Duration(req.DurationMinutes) * time.Minute)
	if !start.After(now) && !actor.Privileged() {
		return nil, apperr.Validation("cannot book a slot that has already started")
	}

	res, err := s.checker.Check(ctx, f.ID, start, end, "")
	if err != nil {
		return nil, apperr.Dependency("check availability", err)
	}
	if !res.Available {
		return nil, apperr.Conflict("time slot already booked")
	}

	total := pricing.Total(basePrice, req.Equipment)
	if free {
		total = 0
	}

	b := &model.Booking{
		ID:              uuid.NewString(),
		UserID:          userID,
		FacilityID:      f.ID,
		SiteID:          f.SiteID,
		Sport:           req.Sport,
		BookingDate:     date.Format(schedule.DateLayout),
		StartTime:       start,
		EndTime:         end,
		DurationMinutes: req.DurationMinutes,
		TotalAmount:     total,
		PaymentStatus:   model.PaymentPending,
		PaymentMethod:   req.PaymentMethod,
		Status:          status,
		AutoCheckIn:     req.AutoCheckIn,
		AutoCheckOut:    req.AutoCheckOut,
		Notes:           req.Notes,
		Equipment:       req.Equipment,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if b.Equipment == nil {
		b.Equipment = []model.Equipment{}
	}
	p := &model.Payment{
		ID:         uuid.NewString(),
		UserID:     userID,
		FacilityID: f.ID,
		SiteID:     f.SiteID,
		BookingID:  b.ID,
		Sport:      req.Sport,
		Amount:     total,
		Currency:   s.currency,
		Method:     req.PaymentMethod,
		Status:     model.TxnPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	b.PaymentID = p.ID
	if free {
		b.PaymentStatus = model.PaymentPaid
		b.PaymentMethod = "free"
		p.Method = "free"
		p.Status = model.TxnCompleted
		p.PaidAt = ptr(now)
	}

	for attempt := 1; ; attempt++ {
		b.Code = NewBookingCode(now)
		p.TransactionID = model.TransactionID(b.Code)
		err = s.bookings.Create(ctx, b, p)
		if !errors.Is(err, repository.ErrDuplicate) || attempt == codeAttempts {
			break
		}
	}
	if err != nil {
		return nil, storeErr("booking", "create booking", err)
	}

	s.log.Info().
		Str("booking", b.Code).
		Str("facility", f.Code).
		Str("user", userID).
		Str("status", string(b.Status)).
		Float64("total", total).
		Msg("booking created")

	emit(ctx, s.emitter, s.log, events.New(events.NewBooking,
		fmt.Sprintf("New booking %s for %s", b.Code, f.Name), b, now))
	s.notifyUser(ctx, userID, "Booking received",
		fmt.Sprintf("Your booking %s at %s (%s) is %s. Amount due: %.2f %s.",
			b.Code, f.Name, notify.HumanTimeRange(b.StartTime.In(s.loc), b.EndTime.In(s.loc)), b.Status, total, s.currency))
	return b, nil
}

func (s *BookingService) validateCreate(req *model.CreateBookingRequest) (time.Time, int, error) {
	req.FacilityID = strings.TrimSpace(req.FacilityID)
	req.Sport = strings.TrimSpace(req.Sport)
	req.Notes = strings.TrimSpace(req.Notes)
	if req.FacilityID == "" {
		return time.Time{}, 0, apperr.Validation("facility_id is required")
	}
	if req.Sport == "" {
		return time.Time{}, 0, apperr.Validation("sport is required")
	}
	date, err := time.ParseInLocation(schedule.DateLayout, strings.TrimSpace(req.Date), s.loc)
	if err != nil {
		return time.Time{}, 0, apperr.Validation("date must be YYYY-MM-DD")
	}
	startMin, err := schedule.ParseClock(req.StartTime)
	if err != nil {
		return time.Time{}, 0, apperr.Validation("start_time must be HH:MM")
	}
	if req.DurationMinutes <= 0 {
		return time.Time{}, 0, apperr.Validation("duration_minutes must be a positive integer")
	}
	if len(req.Notes) > maxNotesLen {
		return time.Time{}, 0, apperr.Validation("notes cannot exceed %d characters", maxNotesLen)
	}
	for i, e := range req.Equipment {
		if strings.TrimSpace(e.Name) == "" {
			return time.Time{}, 0, apperr.Validation("equipment_used[%d].name is required", i)
		}
		if e.Quantity < 1 {
			return time.Time{}, 0, apperr.Validation("equipment_used[%d].quantity must be at least 1", i)
		}
		if e.Cost < 0 {
			return time.Time{}, 0, apperr.Validation("equipment_used[%d].cost cannot be negative", i)
		}
	}
	return date, startMin, nil
}

func checkRules(r model.BookingRules, duration int) error {
	if r.MinDurationMin > 0 && duration < r.MinDurationMin {
		return apperr.Validation("duration must be at least %d minutes", r.MinDurationMin)
	}
	if r.MaxDurationMin > 0 && duration > r.MaxDurationMin {
		return apperr.Validation("duration cannot exceed %d minutes", r.MaxDurationMin)
	}
	if len(r.AllowedDurations) > 0 {
		for _, d := range r.AllowedDurations {
			if d == duration {
				return nil
			}
		}
		return apperr.Validation("duration must be one of %v minutes", r.AllowedDurations)
	}
	return nil
}

// Get returns a booking the caller owns, or any booking for staff.
func (s *BookingService) Get(ctx context.Context, id auth.Identity, idOrCode string) (*model.Booking, error) {
	b, err := s.bookings.Get(ctx, idOrCode)
	if err != nil {
		return nil, storeErr("booking", "get booking", err)
	}
	if !owns(id, b) {
		return nil, apperr.Forbidden("you can only view your own bookings")
	}
	return b, nil
}

// ListMine pages through the caller's bookings.
func (s *BookingService) ListMine(ctx context.Context, id auth.Identity, f model.BookingFilter) (*model.BookingPage, error) {
	f.UserID = id.UserID
	f.FacilityID, f.SiteID = "", ""
	return s.list(ctx, f)
}

// List pages through all bookings. Staff only.
func (s *BookingService) List(ctx context.Context, id auth.Identity, f model.BookingFilter) (*model.BookingPage, error) {
	if !id.Privileged() {
		return nil, apperr.Forbidden("only admins and site managers can list all bookings")
	}
	return s.list(ctx, f)
}

func (s *BookingService) list(ctx context.Context, f model.BookingFilter) (*model.BookingPage, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Validation("unknown booking_status %q", f.Status)
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	f.Now = s.now()

	bookings, total, err := s.bookings.List(ctx, f)
	if err != nil {
		return nil, storeErr("booking", "list bookings", err)
	}
	if bookings == nil {
		bookings = []model.Booking{}
	}
	return &model.BookingPage{Bookings: bookings, Total: total, Page: f.Page, Limit: f.Limit}, nil
}

// CheckAvailability reports whether a window is free.
func (s *BookingService) CheckAvailability(ctx context.Context, req model.CheckAvailabilityRequest) (*model.AvailabilityResult, error) {
	if strings.TrimSpace(req.FacilityID) == "" {
		return nil, apperr.Validation("facility_id is required")
	}
	if req.StartTime.IsZero() || !req.EndTime.After(req.StartTime) {
		return nil, apperr.Validation("end_time must be after start_time")
	}
	f, err := s.facilities.Get(ctx, req.FacilityID)
	if err != nil {
		return nil, storeErr("facility", "get facility", err)
	}
	res, err := s.checker.Check(ctx, f.ID, req.StartTime, req.EndTime, req.ExcludeBookingID)
	if err != nil {
		return nil, apperr.Dependency("check availability", err)
	}
	return &res, nil
}

// CheckIn activates a confirmed, paid booking inside its check-in window.
func (s *BookingService) CheckIn(ctx context.Context, id auth.Identity, idOrCode string) (*model.Booking, error) {
	b, err := s.Get(ctx, id, idOrCode)
	if err != nil {
		return nil, err
	}
	next, err := lifecycle.Next(b.Status, lifecycle.CheckIn)
	if err != nil {
		return nil, err
	}
	if b.PaymentStatus != model.PaymentPaid {
		return nil, apperr.InvalidState("booking must be paid before check-in")
	}
	now := s.now()
	opens, closes := pricing.CheckInWindow(b.StartTime, b.EndTime)
	if now.Before(opens) {
		return nil, apperr.InvalidState("check-in opens at %s", opens.In(s.loc).Format("15:04"))
	}
	if now.After(closes) {
		return nil, apperr.InvalidState("booking has already ended")
	}

	guard := repository.GuardOf(b)
	b.Status = next
	b.CheckInTime = ptr(now)
	b.UpdatedAt = now
	if err := s.bookings.Save(ctx, b, guard); err != nil {
		return nil, storeErr("booking", "check in", err)
	}
	s.updated(ctx, b, "checked in")
	return b, nil
}

// CheckOut completes an active booking, recording the played duration and
// any late fee.
func (s *BookingService) CheckOut(ctx context.Context, id auth.Identity, idOrCode string) (*model.Booking, error) {
	b, err := s.Get(ctx, id, idOrCode)
	if err != nil {
		return nil, err
	}
	next, err := lifecycle.Next(b.Status, lifecycle.CheckOut)
	if err != nil {
		return nil, err
	}
	if b.CheckInTime == nil {
		return nil, apperr.InvalidState("booking has not been checked in")
	}

	now := s.now()
	guard := repository.GuardOf(b)
	b.Status = next
	b.CheckOutTime = ptr(now)
	b.ActualDuration = ptr(pricing.ActualDuration(*b.CheckInTime, now))
	b.LateFee = pricing.LateFee(b.EndTime, now)
	b.UpdatedAt = now
	if err := s.bookings.Save(ctx, b, guard); err != nil {
		return nil, storeErr("booking", "check out", err)
	}
	if b.LateFee > 0 {
		s.log.Info().Str("booking", b.Code).Float64("late_fee", b.LateFee).Msg("late checkout")
	}
	s.updated(ctx, b, "checked out")
	return b, nil
}

// Cancel cancels a pending or confirmed booking and computes the refund.
func (s *BookingService) Cancel(ctx context.Context, id auth.Identity, idOrCode string, req model.CancelRequest) (*model.Booking, error) {
	b, err := s.Get(ctx, id, idOrCode)
	if err != nil {
		return nil, err
	}
	next, err := lifecycle.Next(b.Status, lifecycle.Cancel)
	if err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(req.Reason)
	if len(reason) > maxNotesLen {
		return nil, apperr.Validation("reason cannot exceed %d characters", maxNotesLen)
	}

	now := s.now()
	refund, pct := pricing.Refund(b.TotalAmount, b.StartTime, now)
	guard := repository.GuardOf(b)
	b.Status = next
	b.Cancellation = &model.Cancellation{
		Reason:       reason,
		CancelledAt:  now,
		CancelledBy:  id.UserID,
		RefundAmount: refund,
	}
	refundPayment := b.PaymentStatus == model.PaymentPaid && refund > 0
	if refundPayment {
		b.PaymentStatus = model.PaymentRefunded
	}
	b.UpdatedAt = now
	if err := s.bookings.Cancel(ctx, b, guard, refundPayment); err != nil {
		return nil, storeErr("booking", "cancel booking", err)
	}

	s.log.Info().Str("booking", b.Code).Int("refund_pct", pct).Float64("refund", refund).Msg("booking cancelled")
	s.updated(ctx, b, "cancelled")
	s.notifyUser(ctx, b.UserID, "Booking cancelled",
		fmt.Sprintf("Your booking %s was cancelled. Refund: %.2f %s (%d%%).", b.Code, refund, s.currency, pct))
	return b, nil
}

// Review rates a completed booking once.
func (s *BookingService) Review(ctx context.Context, id auth.Identity, idOrCode string, req model.ReviewRequest) (*model.Booking, error) {
	if req.Rating < 1 || req.Rating > 5 {
		return nil, apperr.Validation("rating must be between 1 and 5")
	}
	review := strings.TrimSpace(req.Review)
	if len(review) > maxReviewLen {
		return nil, apperr.Validation("review cannot exceed %d characters", maxReviewLen)
	}
	b, err := s.bookings.Get(ctx, idOrCode)
	if err != nil {
		return nil, storeErr("booking", "get booking", err)
	}
	if b.UserID != id.UserID {
		return nil, apperr.Forbidden("you can only review your own bookings")
	}
	if b.Status != model.StatusCompleted {
		return nil, apperr.InvalidState("only completed bookings can be reviewed")
	}
	if b.Rating != nil {
		return nil, apperr.InvalidState("booking has already been reviewed")
	}

	now := s.now()
	guard := repository.GuardOf(b)
	b.Rating = ptr(req.Rating)
	b.Review = review
	b.ReviewedAt = ptr(now)
	b.UpdatedAt = now
	if err := s.bookings.Save(ctx, b, guard); err != nil {
		return nil, storeErr("booking", "review booking", err)
	}
	s.updated(ctx, b, "reviewed")
	return b, nil
}

// Delete removes a booking and its payment. Staff only.
func (s *BookingService) Delete(ctx context.Context, id auth.Identity, idOrCode string) error {
	if !id.Privileged() {
		return apperr.Forbidden("only admins and site managers can delete bookings")
	}
	b, err := s.bookings.Delete(ctx, idOrCode)
	if err != nil {
		return storeErr("booking", "delete booking", err)
	}
	s.log.Info().Str("booking", b.Code).Str("by", id.UserID).Msg("booking deleted")
	emit(ctx, s.emitter, s.log, events.New(events.BookingDeleted,
		fmt.Sprintf("Booking %s deleted", b.Code), b, s.now()))
	return nil
}

// AutoTransition checks in due auto-check-in bookings and checks out
// finished auto-check-out ones. Safe to run repeatedly.
func (s *BookingService) AutoTransition(ctx context.Context) error {
	now := s.now()
	in, err := s.bookings.AutoCheckIn(ctx, now)
	if err != nil {
		return apperr.Dependency("auto check-in", err)
	}
	out, err := s.bookings.AutoCheckOut(ctx, now)
	if err != nil {
		return apperr.Dependency("auto check-out", err)
	}
	for i := range in {
		s.updated(ctx, &in[i], "auto checked in")
	}
	for i := range out {
		s.updated(ctx, &out[i], "auto checked out")
	}
	if len(in)+len(out) > 0 {
		s.log.Info().Int("checked_in", len(in)).Int("checked_out", len(out)).Msg("auto transitions applied")
	}
	return nil
}

// CleanupStale deletes bookings left pending and unpaid past the retention
// window, releasing their slots and counters.
func (s *BookingService) CleanupStale(ctx context.Context) error {
	now := s.now()
	removed, err := s.bookings.DeleteStale(ctx, now.Add(-s.pendingTTL))
	if err != nil {
		return apperr.Dependency("delete stale bookings", err)
	}
	for i := range removed {
		emit(ctx, s.emitter, s.log, events.New(events.BookingDeleted,
			fmt.Sprintf("Booking %s expired unpaid", removed[i].Code), removed[i], now))
	}
	if len(removed) > 0 {
		s.log.Info().Int("removed", len(removed)).Msg("stale pending bookings removed")
	}
	return nil
}

func (s *BookingService) updated(ctx context.Context, b *model.Booking, what string) {
	emit(ctx, s.emitter, s.log, events.New(events.BookingUpdated,
		fmt.Sprintf("Booking %s %s", b.Code, what), b, s.now()))
}

func (s *BookingService) notifyUser(ctx context.Context, userID, subject, body string) {
	notifyUser(ctx, s.users, s.notifier, s.log, userID, subject, body)
}
