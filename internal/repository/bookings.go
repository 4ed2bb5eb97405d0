package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/KashanAdnan02/GroundZeroBackend2/internal/lifecycle"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/model"
)

const bookingColumns = `id, code, user_id, facility_id, site_id, sport, booking_date,
	start_time, end_time, duration_minutes, total_amount, payment_status, payment_method,
	payment_id, booking_status, check_in_time, check_out_time, auto_check_in, auto_check_out,
	actual_duration, notes, equipment_used, cancel_reason, cancelled_at, cancelled_by,
	refund_amount, late_fee, rating, review, reviewed_at, created_at, updated_at`

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var (
		b            model.Booking
		cancelReason *string
		cancelledAt  *time.Time
		cancelledBy  *string
		refund       *float64
	)
	err := row.Scan(
		&b.ID, &b.Code, &b.UserID, &b.FacilityID, &b.SiteID, &b.Sport, &b.BookingDate,
		&b.StartTime, &b.EndTime, &b.DurationMinutes, &b.TotalAmount, &b.PaymentStatus, &b.PaymentMethod,
		&b.PaymentID, &b.Status, &b.CheckInTime, &b.CheckOutTime, &b.AutoCheckIn, &b.AutoCheckOut,
		&b.ActualDuration, &b.Notes, &b.Equipment, &cancelReason, &cancelledAt, &cancelledBy,
		&refund, &b.LateFee, &b.Rating, &b.Review, &b.ReviewedAt, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if cancelledAt != nil {
		b.Cancellation = &model.Cancellation{CancelledAt: *cancelledAt}
		if cancelReason != nil {
			b.Cancellation.Reason = *cancelReason
		}
		if cancelledBy != nil {
			b.Cancellation.CancelledBy = *cancelledBy
		}
		if refund != nil {
			b.Cancellation.RefundAmount = *refund
		}
	}
	if b.Equipment == nil {
		b.Equipment = []model.Equipment{}
	}
	return &b, nil
}

func collectBookings(rows pgx.Rows) ([]model.Booking, error) {
	defer rows.Close()
	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// BookingRepository handles persistence for bookings and the counters and
// payment rows that move with them.
type BookingRepository struct {
	db *pgxpool.Pool
}

// NewBookingRepository constructs a BookingRepository.
func NewBookingRepository(db *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{db: db}
}

// Create inserts a booking, its payment and the counter increments in one
// transaction.
//
// The facility row is locked with SELECT … FOR UPDATE before the overlap
// check, so two creators racing for the same facility are serialised: the
// second one only reads bookings after the first has committed or rolled
// back. The bookings_no_overlap exclusion constraint rejects anything that
// slips past (for example a pending booking confirmed concurrently), and its
// violation surfaces as ErrOverlap.
func (r *BookingRepository) Create(ctx context.Context, b *model.Booking, p *model.Payment) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = lockFacility(ctx, tx, b.FacilityID); err != nil {
		return err
	}

	var overlapping int
	overlapping, err = countOverlaps(ctx, tx, b.FacilityID, b.StartTime, b.EndTime, "")
	if err != nil {
		return err
	}
	if overlapping > 0 {
		err = ErrOverlap
		return err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO bookings (id, code, user_id, facility_id, site_id, sport, booking_date,
			start_time, end_time, duration_minutes, total_amount, payment_status, payment_method,
			payment_id, booking_status, auto_check_in, auto_check_out, notes, equipment_used,
			created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $20)`,
		b.ID, b.Code, b.UserID, b.FacilityID, b.SiteID, b.Sport, b.BookingDate,
		b.StartTime, b.EndTime, b.DurationMinutes, b.TotalAmount, b.PaymentStatus, b.PaymentMethod,
		b.PaymentID, b.Status, b.AutoCheckIn, b.AutoCheckOut, b.Notes, b.Equipment,
		b.CreatedAt,
	)
	if err != nil {
		err = translate(err)
		return fmt.Errorf("insert booking: %w", err)
	}

	if err = insertPayment(ctx, tx, p); err != nil {
		return err
	}

	if err = incrementCounters(ctx, tx, b.FacilityID, b.Sport); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		err = translate(err)
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Get returns a booking by id or booking code.
func (r *BookingRepository) Get(ctx context.Context, idOrCode string) (*model.Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1 OR code = $1`,
		idOrCode,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

// List returns one page of bookings matching f, newest start first, and the
// total number of matches.
func (r *BookingRepository) List(ctx context.Context, f model.BookingFilter) ([]model.Booking, int, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.FacilityID != "" {
		add("facility_id = $%d", f.FacilityID)
	}
	if f.SiteID != "" {
		add("site_id = $%d", f.SiteID)
	}
	if f.Status != "" {
		add("booking_status = $%d", f.Status)
	}
	if f.Upcoming {
		add("start_time >= $%d", f.Now)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM bookings`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}

	order := " ORDER BY start_time DESC"
	if f.Upcoming {
		order = " ORDER BY start_time ASC"
	}
	args = append(args, f.Limit, (f.Page-1)*f.Limit)
	rows, err := r.db.Query(ctx,
		`SELECT `+bookingColumns+` FROM bookings`+clause+order+
			fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}
	bookings, err := collectBookings(rows)
	if err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

// ListOccupying returns the confirmed or active bookings of a facility that
// intersect [from, to). It never writes.
func (r *BookingRepository) ListOccupying(ctx context.Context, facilityID string, from, to time.Time) ([]model.Booking, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE facility_id = $1
		   AND booking_status IN ('confirmed', 'active')
		   AND start_time < $3 AND end_time > $2
		 ORDER BY start_time`,
		facilityID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("list occupying bookings: %w", err)
	}
	return collectBookings(rows)
}

// Save writes the mutable fields of b, provided the row still matches guard.
// It returns ErrStale when another writer got there first.
func (r *BookingRepository) Save(ctx context.Context, b *model.Booking, guard Guard) error {
	return saveBooking(ctx, r.db, b, guard)
}

// Cancel saves a cancelled booking, releases its counters and, when refund is
// set, marks the paired payment refunded, all in one transaction.
func (r *BookingRepository) Cancel(ctx context.Context, b *model.Booking, guard Guard, refund bool) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = saveBooking(ctx, tx, b, guard); err != nil {
		return err
	}
	if err = decrementCounters(ctx, tx, b.FacilityID, b.Sport); err != nil {
		return err
	}
	if refund {
		_, err = tx.Exec(ctx,
			`UPDATE payments SET status = $2, updated_at = $3 WHERE booking_id = $1`,
			b.ID, model.TxnRefunded, b.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("refund payment: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Settle records a gateway outcome: the payment row and the booking move
// together. When the booking becomes confirmed the facility is locked and the
// window re-checked, since pending bookings do not hold their slot.
//
// A non-empty eventID is recorded in consumed_events in the same transaction;
// if it is already there nothing is written and ErrProcessed is returned.
func (r *BookingRepository) Settle(ctx context.Context, b *model.Booking, guard Guard, p *model.Payment, eventID string) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if eventID != "" {
		tag, execErr := tx.Exec(ctx,
			`INSERT INTO consumed_events (event_id, event_type) VALUES ($1, $2)
			 ON CONFLICT (event_id) DO NOTHING`,
			eventID, string(p.Status),
		)
		if execErr != nil {
			err = fmt.Errorf("record consumed event: %w", execErr)
			return err
		}
		if tag.RowsAffected() == 0 {
			err = ErrProcessed
			return err
		}
	}

	if b.Status.Occupies() && !guard.Status.Occupies() {
		if err = lockFacility(ctx, tx, b.FacilityID); err != nil {
			return err
		}
		var overlapping int
		overlapping, err = countOverlaps(ctx, tx, b.FacilityID, b.StartTime, b.EndTime, b.ID)
		if err != nil {
			return err
		}
		if overlapping > 0 {
			err = ErrOverlap
			return err
		}
	}

	if err = saveBooking(ctx, tx, b, guard); err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		`UPDATE payments
		 SET status = $2, method = $3, gateway_ref = $4, paid_at = $5, updated_at = $6
		 WHERE id = $1`,
		p.ID, p.Status, p.Method, p.GatewayRef, p.PaidAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		err = translate(err)
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Delete removes a booking and its payment (payment first). Counters are
// released unless the booking was already cancelled, which released them.
func (r *BookingRepository) Delete(ctx context.Context, idOrCode string) (_ *model.Booking, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	b, err := scanBooking(tx.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1 OR code = $1 FOR UPDATE`,
		idOrCode,
	))
	if err != nil {
		err = translate(err)
		return nil, err
	}

	if _, err = tx.Exec(ctx, `DELETE FROM payments WHERE booking_id = $1`, b.ID); err != nil {
		return nil, fmt.Errorf("delete payment: %w", err)
	}
	if _, err = tx.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, b.ID); err != nil {
		return nil, fmt.Errorf("delete booking: %w", err)
	}
	if b.Status != model.StatusCancelled {
		if err = decrementCounters(ctx, tx, b.FacilityID, b.Sport); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return b, nil
}

// AutoCheckIn activates every paid, confirmed, auto-check-in booking whose
// start has passed. The WHERE clause carries the whole guard, so running it
// twice changes nothing the second time.
func (r *BookingRepository) AutoCheckIn(ctx context.Context, now time.Time) ([]model.Booking, error) {
	rows, err := r.db.Query(ctx,
		`UPDATE bookings
		 SET booking_status = $2, check_in_time = $1::timestamptz, updated_at = $1::timestamptz
		 WHERE booking_status = ANY($3)
		   AND payment_status = 'paid'
		   AND auto_check_in
		   AND check_in_time IS NULL
		   AND start_time <= $1::timestamptz
		 RETURNING `+bookingColumns,
		now, lifecycle.Target(lifecycle.AutoCheckIn), statusStrings(lifecycle.Sources(lifecycle.AutoCheckIn)),
	)
	if err != nil {
		return nil, fmt.Errorf("auto check-in: %w", err)
	}
	return collectBookings(rows)
}

// AutoCheckOut completes every active auto-check-out booking past its end.
func (r *BookingRepository) AutoCheckOut(ctx context.Context, now time.Time) ([]model.Booking, error) {
	rows, err := r.db.Query(ctx,
		`UPDATE bookings
		 SET booking_status = $2,
		     check_out_time = $1::timestamptz,
		     actual_duration = ROUND(EXTRACT(EPOCH FROM ($1::timestamptz - COALESCE(check_in_time, start_time))) / 60)::int,
		     updated_at = $1::timestamptz
		 WHERE booking_status = ANY($3)
		   AND auto_check_out
		   AND check_out_time IS NULL
		   AND end_time <= $1::timestamptz
		 RETURNING `+bookingColumns,
		now, lifecycle.Target(lifecycle.AutoCheckOut), statusStrings(lifecycle.Sources(lifecycle.AutoCheckOut)),
	)
	if err != nil {
		return nil, fmt.Errorf("auto check-out: %w", err)
	}
	return collectBookings(rows)
}

// DeleteStale removes bookings still pending and unpaid that were created
// before cutoff, with their payments, and releases their counters. Rows locked
// by a concurrent sweep are skipped.
func (r *BookingRepository) DeleteStale(ctx context.Context, cutoff time.Time) (_ []model.Booking, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	rows, err := tx.Query(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE booking_status = 'pending' AND payment_status = 'pending' AND created_at < $1
		 FOR UPDATE SKIP LOCKED`,
		cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("select stale bookings: %w", err)
	}
	stale, err := collectBookings(rows)
	if err != nil {
		return nil, err
	}
	if len(stale) == 0 {
		err = tx.Commit(ctx)
		return nil, err
	}

	ids := make([]string, len(stale))
	for i, b := range stale {
		ids[i] = b.ID
	}
	if _, err = tx.Exec(ctx, `DELETE FROM payments WHERE booking_id = ANY($1)`, ids); err != nil {
		return nil, fmt.Errorf("delete stale payments: %w", err)
	}
	if _, err = tx.Exec(ctx, `DELETE FROM bookings WHERE id = ANY($1)`, ids); err != nil {
		return nil, fmt.Errorf("delete stale bookings: %w", err)
	}
	for _, b := range stale {
		if err = decrementCounters(ctx, tx, b.FacilityID, b.Sport); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return stale, nil
}

// Stats aggregates bookings of a facility by status. Revenue counts paid
// bookings plus collected late fees.
func (r *BookingRepository) Stats(ctx context.Context, facilityID string) (map[string]int, float64, error) {
	rows, err := r.db.Query(ctx,
		`SELECT booking_status, COUNT(*),
		        COALESCE(SUM(total_amount + late_fee) FILTER (WHERE payment_status = 'paid'), 0)::float8
		 FROM bookings WHERE facility_id = $1
		 GROUP BY booking_status`,
		facilityID,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("booking stats: %w", err)
	}
	defer rows.Close()

	byStatus := map[string]int{}
	var revenue float64
	for rows.Next() {
		var (
			status string
			count  int
			paid   float64
		)
		if err := rows.Scan(&status, &count, &paid); err != nil {
			return nil, 0, fmt.Errorf("scan stats: %w", err)
		}
		byStatus[status] = count
		revenue += paid
	}
	return byStatus, revenue, rows.Err()
}

func lockFacility(ctx context.Context, q querier, facilityID string) error {
	var id string
	err := q.QueryRow(ctx,
		`SELECT id FROM facilities WHERE id = $1 FOR UPDATE`,
		facilityID,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("lock facility row: %w", err)
	}
	return nil
}

func countOverlaps(ctx context.Context, q querier, facilityID string, start, end time.Time, excludeID string) (int, error) {
	var n int
	err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM bookings
		 WHERE facility_id = $1
		   AND booking_status IN ('confirmed', 'active')
		   AND start_time < $3 AND end_time > $2
		   AND id <> $4`,
		facilityID, start, end, excludeID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("check overlap: %w", err)
	}
	return n, nil
}

func saveBooking(ctx context.Context, q querier, b *model.Booking, guard Guard) error {
	var (
		cancelReason, cancelledBy *string
		cancelledAt               *time.Time
		refund                    *float64
	)
	if c := b.Cancellation; c != nil {
		cancelReason, cancelledBy = &c.Reason, &c.CancelledBy
		cancelledAt, refund = &c.CancelledAt, &c.RefundAmount
	}
	tag, err := q.Exec(ctx,
		`UPDATE bookings SET
			payment_status = $4, payment_method = $5, booking_status = $6,
			check_in_time = $7, check_out_time = $8, actual_duration = $9,
			cancel_reason = $10, cancelled_at = $11, cancelled_by = $12, refund_amount = $13,
			late_fee = $14, rating = $15, review = $16, reviewed_at = $17, notes = $18,
			updated_at = $19
		 WHERE id = $1 AND booking_status = $2 AND payment_status = $3`,
		b.ID, guard.Status, guard.PaymentStatus,
		b.PaymentStatus, b.PaymentMethod, b.Status,
		b.CheckInTime, b.CheckOutTime, b.ActualDuration,
		cancelReason, cancelledAt, cancelledBy, refund,
		b.LateFee, b.Rating, b.Review, b.ReviewedAt, b.Notes,
		b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update booking: %w", translate(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrStale
	}
	return nil
}
