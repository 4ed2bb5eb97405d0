// Package gateway talks to the external payment provider. The booking core
// only needs "create order", "fetch outcome" and "verify signature".
package gateway

import (
	"context"
	"errors"
)

// ErrUnsupported is returned by gateways that cannot perform an operation.
var ErrUnsupported = errors.New("operation not supported by gateway")

// Order asks the provider to collect Amount for a booking transaction.
type Order struct {
	TransactionID string
	Title         string
	Amount        float64
	Currency      string
	PayerEmail    string
}

// Checkout is the provider's handle for an order.
type Checkout struct {
	OrderID     string
	CheckoutURL string
}

// Outcome of a provider payment.
type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
)

// PaymentInfo is the provider's view of a payment.
type PaymentInfo struct {
	PaymentID     string
	TransactionID string
	Outcome       Outcome
	Method        string
	Amount        float64
}

// Gateway is the payment provider.
type Gateway interface {
	CreateOrder(ctx context.Context, o Order) (*Checkout, error)
	GetPayment(ctx context.Context, paymentID string) (*PaymentInfo, error)
}

// Manual is used when no provider is configured: payments are collected at
// the counter and captured by staff.
type Manual struct{}

func (Manual) CreateOrder(_ context.Context, o Order) (*Checkout, error) {
	return &Checkout{OrderID: o.TransactionID}, nil
}

func (Manual) GetPayment(context.Context, string) (*PaymentInfo, error) {
	return nil, ErrUnsupported
}
