package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/KashanAdnan02/GroundZeroBackend2/internal/apperr"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/auth"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/events"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/gateway"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/lifecycle"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/model"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/repository"
)

// settleAttempts bounds retries when a concurrent writer moved the booking
// between our read and the guarded write.
const settleAttempts = 3

// PaymentDeps wires a PaymentService.
type PaymentDeps struct {
	Bookings BookingStore
	Payments PaymentStore
	Users    UserStore
	Gateway  gateway.Gateway
	Emitter  events.Emitter
	Notifier Sender
	Log      zerolog.Logger
	Now      func() time.Time
}

// PaymentService settles the payment paired with each booking.
type PaymentService struct {
	bookings BookingStore
	payments PaymentStore
	users    UserStore
	gw       gateway.Gateway
	emitter  events.Emitter
	notifier Sender
	log      zerolog.Logger
	now      func() time.Time
}

// NewPaymentService constructs a PaymentService. A nil gateway means
// payments are captured manually by staff.
func NewPaymentService(d PaymentDeps) *PaymentService {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Gateway == nil {
		d.Gateway = gateway.Manual{}
	}
	return &PaymentService{
		bookings: d.Bookings,
		payments: d.Payments,
		users:    d.Users,
		gw:       d.Gateway,
		emitter:  d.Emitter,
		notifier: d.Notifier,
		log:      d.Log,
		now:      d.Now,
	}
}

// CreateOrder opens a gateway checkout for an unpaid booking.
func (s *PaymentService) CreateOrder(ctx context.Context, id auth.Identity, bookingID string) (*model.OrderResponse, error) {
	b, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return nil, storeErr("booking", "get booking", err)
	}
	if !owns(id, b) {
		return nil, apperr.Forbidden("you can only pay for your own bookings")
	}
	if b.Status == model.StatusCancelled || b.Status == model.StatusCompleted {
		return nil, apperr.InvalidState("cannot pay for a %s booking", b.Status)
	}
	if b.PaymentStatus == model.PaymentPaid || b.PaymentStatus == model.PaymentRefunded {
		return nil, apperr.InvalidState("booking is already %s", b.PaymentStatus)
	}
	p, err := s.payments.GetByBooking(ctx, b.ID)
	if err != nil {
		return nil, storeErr("payment", "get payment", err)
	}

	order := gateway.Order{
		TransactionID: p.TransactionID,
		Title:         fmt.Sprintf("Booking %s (%s)", b.Code, b.Sport),
		Amount:        p.Amount,
		Currency:      p.Currency,
	}
	if s.users != nil {
		if u, err := s.users.Get(ctx, b.UserID); err == nil {
			order.PayerEmail = u.Email
		}
	}
	checkout, err := s.gw.CreateOrder(ctx, order)
	if err != nil {
		return nil, apperr.Dependency("create gateway order", err)
	}
	if checkout.OrderID != "" && checkout.OrderID != p.TransactionID {
		if err := s.payments.SetGatewayRef(ctx, p.TransactionID, checkout.OrderID, p.Method); err != nil {
			return nil, storeErr("payment", "record gateway order", err)
		}
	}

	s.log.Info().Str("booking", b.Code).Str("txn", p.TransactionID).Str("order", checkout.OrderID).Msg("payment order created")
	return &model.OrderResponse{
		TransactionID: p.TransactionID,
		OrderID:       checkout.OrderID,
		CheckoutURL:   checkout.CheckoutURL,
		Amount:        p.Amount,
		Currency:      p.Currency,
	}, nil
}

// Capture marks a transaction paid without asking the gateway. Staff only;
// used for counter and cash payments.
func (s *PaymentService) Capture(ctx context.Context, id auth.Identity, txnID string, req model.PaymentRequest) (*model.Booking, error) {
	if !id.Privileged() {
		return nil, apperr.Forbidden("only admins and site managers can capture payments")
	}
	p, err := s.payments.GetByTransaction(ctx, txnID)
	if err != nil {
		return nil, storeErr("payment", "get payment", err)
	}
	method := strings.TrimSpace(req.PaymentMethod)
	if method == "" {
		method = "cash"
	}
	return s.settle(ctx, p.TransactionID, gateway.OutcomeCompleted, strings.TrimSpace(req.GatewayPaymentID), method, "")
}

// RecordPayment reports a payment for a booking. With a gateway payment id
// the outcome is fetched from the gateway; without one only staff may mark
// the booking paid.
func (s *PaymentService) RecordPayment(ctx context.Context, id auth.Identity, bookingID string, req model.PaymentRequest) (*model.Booking, error) {
	b, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return nil, storeErr("booking", "get booking", err)
	}
	if !owns(id, b) {
		return nil, apperr.Forbidden("you can only pay for your own bookings")
	}
	p, err := s.payments.GetByBooking(ctx, b.ID)
	if err != nil {
		return nil, storeErr("payment", "get payment", err)
	}

	ref := strings.TrimSpace(req.GatewayPaymentID)
	if ref == "" {
		if !id.Privileged() {
			return nil, apperr.Validation("gateway_payment_id is required")
		}
		method := strings.TrimSpace(req.PaymentMethod)
		if method == "" {
			method = "cash"
		}
		return s.settle(ctx, p.TransactionID, gateway.OutcomeCompleted, "", method, "")
	}

	info, err := s.gw.GetPayment(ctx, ref)
	if err != nil {
		if errors.Is(err, gateway.ErrUnsupported) {
			return nil, apperr.Validation("payment gateway is not configured")
		}
		return nil, apperr.Dependency("fetch gateway payment", err)
	}
	if info.TransactionID != p.TransactionID {
		return nil, apperr.Validation("gateway payment does not belong to this booking")
	}
	if info.Outcome == gateway.OutcomePending {
		return nil, apperr.InvalidState("payment is still pending at the gateway")
	}
	method := info.Method
	if method == "" {
		method = req.PaymentMethod
	}
	return s.settle(ctx, p.TransactionID, info.Outcome, info.PaymentID, method, "")
}

// HandleWebhook settles the payment a gateway notification refers to. The
// caller has already verified the signature.
func (s *PaymentService) HandleWebhook(ctx context.Context, paymentID string) error {
	info, err := s.gw.GetPayment(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gateway.ErrUnsupported) {
			return apperr.Validation("payment gateway is not configured")
		}
		return apperr.Dependency("fetch gateway payment", err)
	}
	if info.Outcome == gateway.OutcomePending {
		s.log.Debug().Str("payment", paymentID).Msg("webhook for pending payment ignored")
		return nil
	}
	if info.TransactionID == "" {
		return apperr.Validation("gateway payment has no transaction reference")
	}
	_, err = s.settle(ctx, info.TransactionID, info.Outcome, info.PaymentID, info.Method, "")
	return err
}

// HandleEvent settles a payment outcome delivered by the broker. Redelivered
// events are acknowledged without effect; failures retrying cannot fix are
// marked permanent.
func (s *PaymentService) HandleEvent(ctx context.Context, evt events.PaymentEvent) error {
	var outcome gateway.Outcome
	switch evt.Event {
	case events.PaymentCompleted:
		outcome = gateway.OutcomeCompleted
	case events.PaymentFailed:
		outcome = gateway.OutcomeFailed
	default:
		return fmt.Errorf("%w: unknown payment event %q", events.ErrPermanent, evt.Event)
	}
	if evt.Data.TransactionID == "" {
		return fmt.Errorf("%w: event %s has no transaction id", events.ErrPermanent, evt.EventID)
	}

	_, err := s.settle(ctx, evt.Data.TransactionID, outcome, evt.Data.GatewayRef, evt.Data.Method, evt.EventID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrProcessed):
		s.log.Debug().Str("event_id", evt.EventID).Msg("payment event already processed")
		return nil
	case apperr.Is(err, apperr.ErrNotFound), apperr.Is(err, apperr.ErrInvalidState),
		apperr.Is(err, apperr.ErrValidation), apperr.Is(err, apperr.ErrConflict):
		return fmt.Errorf("%w: %w", events.ErrPermanent, err)
	}
	return err
}

// settle moves the payment and its booking together. Repeating an outcome
// the payment already has is a no-op that returns the booking.
func (s *PaymentService) settle(ctx context.Context, txnID string, outcome gateway.Outcome, ref, method, eventID string) (*model.Booking, error) {
	for attempt := 1; ; attempt++ {
		b, err := s.settleOnce(ctx, txnID, outcome, ref, method, eventID)
		if errors.Is(err, repository.ErrStale) && attempt < settleAttempts {
			continue
		}
		if err != nil {
			if errors.Is(err, repository.ErrProcessed) {
				return nil, err
			}
			return nil, storeErr("booking", "settle payment", err)
		}
		return b, nil
	}
}

func (s *PaymentService) settleOnce(ctx context.Context, txnID string, outcome gateway.Outcome, ref, method, eventID string) (*model.Booking, error) {
	p, err := s.payments.GetByTransaction(ctx, txnID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("payment")
		}
		return nil, err
	}
	b, err := s.bookings.Get(ctx, p.BookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("booking")
		}
		return nil, err
	}

	now := s.now()
	guard := repository.GuardOf(b)
	if method != "" {
		p.Method = method
		b.PaymentMethod = method
	}
	if ref != "" {
		p.GatewayRef = ref
	}
	p.UpdatedAt = now
	b.UpdatedAt = now

	switch outcome {
	case gateway.OutcomeCompleted:
		if p.Status == model.TxnCompleted {
			return b, nil
		}
		if p.Status == model.TxnRefunded {
			return nil, apperr.InvalidState("payment %s was refunded", txnID)
		}
		if b.Status == model.StatusPending {
			if b.Status, err = lifecycle.Next(b.Status, lifecycle.Confirm); err != nil {
				return nil, err
			}
		} else if b.Status != model.StatusConfirmed && b.Status != model.StatusActive {
			return nil, apperr.InvalidState("cannot settle payment for a %s booking", b.Status)
		}
		p.Status = model.TxnCompleted
		p.PaidAt = ptr(now)
		b.PaymentStatus = model.PaymentPaid
	case gateway.OutcomeFailed:
		if p.Status == model.TxnFailed {
			return b, nil
		}
		if p.Status != model.TxnPending {
			return nil, apperr.InvalidState("payment %s is already %s", txnID, p.Status)
		}
		p.Status = model.TxnFailed
		b.PaymentStatus = model.PaymentFailed
	default:
		return nil, apperr.Validation("unsupported payment outcome %q", outcome)
	}

	if err := s.bookings.Settle(ctx, b, guard, p, eventID); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("booking", b.Code).
		Str("txn", txnID).
		Str("outcome", string(outcome)).
		Str("status", string(b.Status)).
		Msg("payment settled")
	emit(ctx, s.emitter, s.log, events.New(events.BookingUpdated,
		fmt.Sprintf("Booking %s payment %s", b.Code, outcome), b, now))
	if outcome == gateway.OutcomeCompleted {
		notifyUser(ctx, s.users, s.notifier, s.log, b.UserID, "Payment received",
			fmt.Sprintf("Payment of %.2f %s for booking %s was received. Your booking is %s.",
				p.Amount, p.Currency, b.Code, b.Status))
	} else {
		notifyUser(ctx, s.users, s.notifier, s.log, b.UserID, "Payment failed",
			fmt.Sprintf("Payment for booking %s failed. Please try again before the slot is released.", b.Code))
	}
	return b, nil
}
