package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/KashanAdnan02/GroundZeroBackend2/internal/model"
)

const paymentColumns = `id, user_id, facility_id, site_id, booking_id, sport, amount, currency,
	method, status, transaction_id, gateway_ref, paid_at, created_at, updated_at`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	var p model.Payment
	err := row.Scan(
		&p.ID, &p.UserID, &p.FacilityID, &p.SiteID, &p.BookingID, &p.Sport, &p.Amount, &p.Currency,
		&p.Method, &p.Status, &p.TransactionID, &p.GatewayRef, &p.PaidAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	return &p, nil
}

func insertPayment(ctx context.Context, q querier, p *model.Payment) error {
	_, err := q.Exec(ctx,
		`INSERT INTO payments (id, user_id, facility_id, site_id, booking_id, sport, amount, currency,
			method, status, transaction_id, gateway_ref, paid_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)`,
		p.ID, p.UserID, p.FacilityID, p.SiteID, p.BookingID, p.Sport, p.Amount, p.Currency,
		p.Method, p.Status, p.TransactionID, p.GatewayRef, p.PaidAt, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", translate(err))
	}
	return nil
}

// PaymentRepository handles persistence for payment records.
type PaymentRepository struct {
	db *pgxpool.Pool
}

// NewPaymentRepository constructs a PaymentRepository.
func NewPaymentRepository(db *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// GetByBooking returns the payment paired with a booking.
func (r *PaymentRepository) GetByBooking(ctx context.Context, bookingID string) (*model.Payment, error) {
	return scanPayment(r.db.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE booking_id = $1`,
		bookingID,
	))
}

// GetByTransaction returns the payment with the given transaction id.
func (r *PaymentRepository) GetByTransaction(ctx context.Context, txnID string) (*model.Payment, error) {
	return scanPayment(r.db.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE transaction_id = $1`,
		txnID,
	))
}

// SetGatewayRef stores the gateway order id opened for a payment.
func (r *PaymentRepository) SetGatewayRef(ctx context.Context, txnID, ref, method string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE payments SET gateway_ref = $2, method = COALESCE(NULLIF($3, ''), method), updated_at = now()
		 WHERE transaction_id = $1`,
		txnID, ref, method,
	)
	if err != nil {
		return fmt.Errorf("set gateway ref: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
