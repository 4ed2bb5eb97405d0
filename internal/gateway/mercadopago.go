package gateway

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/mercadopago/sdk-go/pkg/preference"
)

// MercadoPago implements Gateway with checkout preferences. The transaction
// id travels as the external reference and comes back on the payment.
type MercadoPago struct {
	preferences preference.Client
	payments    payment.Client
	baseURL     string
}

// NewMercadoPago builds the SDK clients for accessToken. baseURL is the public
// address of this service, used for the notification callback.
func NewMercadoPago(accessToken, baseURL string) (*MercadoPago, error) {
	cfg, err := config.New(accessToken)
	if err != nil {
		return nil, fmt.Errorf("create MP config: %w", err)
	}
	return &MercadoPago{
		preferences: preference.NewClient(cfg),
		payments:    payment.NewClient(cfg),
		baseURL:     baseURL,
	}, nil
}

func (m *MercadoPago) CreateOrder(ctx context.Context, o Order) (*Checkout, error) {
	req := preference.Request{
		Items: []preference.ItemRequest{
			{
				ID:         o.TransactionID,
				Title:      o.Title,
				Quantity:   1,
				UnitPrice:  o.Amount,
				CurrencyID: o.Currency,
			},
		},
		ExternalReference: o.TransactionID,
		NotificationURL:   m.baseURL + "/payments/webhook",
	}
	if o.PayerEmail != "" {
		req.Payer = &preference.PayerRequest{Email: o.PayerEmail}
	}

	res, err := m.preferences.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create preference: %w", err)
	}
	return &Checkout{OrderID: res.ID, CheckoutURL: res.InitPoint}, nil
}

func (m *MercadoPago) GetPayment(ctx context.Context, paymentID string) (*PaymentInfo, error) {
	id, err := strconv.Atoi(paymentID)
	if err != nil {
		return nil, fmt.Errorf("invalid payment ID %q: %w", paymentID, err)
	}
	res, err := m.payments.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get payment info: %w", err)
	}
	return &PaymentInfo{
		PaymentID:     paymentID,
		TransactionID: res.ExternalReference,
		Outcome:       outcomeOf(res.Status),
		Method:        res.PaymentMethodID,
		Amount:        res.TransactionAmount,
	}, nil
}

func outcomeOf(status string) Outcome {
	switch status {
	case "approved":
		return OutcomeCompleted
	case "rejected", "cancelled", "refunded", "charged_back":
		return OutcomeFailed
	default:
		return OutcomePending
	}
}
