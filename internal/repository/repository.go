// Package repository implements all database queries for the booking system.
// It uses pgx directly (no ORM) for transparency and performance.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/KashanAdnan02/GroundZeroBackend2/internal/model"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrOverlap is returned when a window collides with a confirmed or active booking.
var ErrOverlap = errors.New("time slot already booked")

// ErrDuplicate is returned when a unique key is taken.
var ErrDuplicate = errors.New("duplicate key")

// ErrStale is returned when a guarded update finds the row in another state.
var ErrStale = errors.New("booking changed concurrently")

// ErrInUse is returned when a row is still referenced and cannot be deleted.
var ErrInUse = errors.New("still referenced")

// ErrProcessed is returned when a broker event was already applied.
var ErrProcessed = errors.New("event already processed")

// openStatuses are the booking states that still expect play or payment.
var openStatuses = []model.BookingStatus{model.StatusPending, model.StatusConfirmed, model.StatusActive}

// Guard is the state a booking row must still be in for a write to apply.
type Guard struct {
	Status        model.BookingStatus
	PaymentStatus model.PaymentStatus
}

// GuardOf captures the current state of b.
func GuardOf(b *model.Booking) Guard {
	return Guard{Status: b.Status, PaymentStatus: b.PaymentStatus}
}

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23P01":
			return ErrOverlap
		case "23505":
			return ErrDuplicate
		case "23503":
			return ErrInUse
		}
	}
	return err
}

func statusStrings(in []model.BookingStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}
