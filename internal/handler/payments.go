package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/KashanAdnan02/GroundZeroBackend2/internal/apperr"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/gateway"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/model"
)

// PaymentHandler serves /payments.
type PaymentHandler struct {
	svc           PaymentService
	webhookSecret string
}

// NewPaymentHandler constructs a PaymentHandler. Webhooks are refused while
// webhookSecret is empty.
func NewPaymentHandler(svc PaymentService, webhookSecret string) *PaymentHandler {
	return &PaymentHandler{svc: svc, webhookSecret: webhookSecret}
}

type orderRequest struct {
	BookingID string `json:"booking_id"`
}

// webhookNotification is the subset of the provider notification we read.
type webhookNotification struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID string `json:"id"`
	} `json:"data"`
}

// CreateOrder handles POST /payments/orders
// Opens a gateway checkout for one of the caller's unpaid bookings.
func (h *PaymentHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.BookingID == "" {
		writeError(w, r, apperr.Validation("booking_id is required"))
		return
	}
	order, err := h.svc.CreateOrder(r.Context(), identity(r), req.BookingID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// Capture handles PUT /payments/{txn}/capture (staff).
func (h *PaymentHandler) Capture(w http.ResponseWriter, r *http.Request) {
	var req model.PaymentRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	b, err := h.svc.Capture(r.Context(), identity(r), chi.URLParam(r, "txn"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// Webhook handles POST /payments/webhook
// The x-signature header must verify against the configured secret. Only
// storage or gateway outages answer with an error status so the provider
// retries; anything else is acknowledged and logged.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	log := zerolog.Ctx(r.Context())
	if h.webhookSecret == "" {
		writeMessage(w, http.StatusServiceUnavailable, "WEBHOOK_DISABLED", "webhook verification is not configured")
		return
	}

	var n webhookNotification
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		log.Warn().Err(err).Msg("unreadable payment webhook")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	dataID := r.URL.Query().Get("data.id")
	if dataID == "" {
		dataID = n.Data.ID
	}
	if !gateway.VerifySignature(r.Header.Get("x-signature"), r.Header.Get("x-request-id"), dataID, h.webhookSecret) {
		writeMessage(w, http.StatusUnauthorized, "INVALID_SIGNATURE", "invalid webhook signature")
		return
	}
	if n.Type != "" && n.Type != "payment" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	if dataID == "" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	if err := h.svc.HandleWebhook(r.Context(), dataID); err != nil {
		if errors.Is(err, apperr.ErrDependency) {
			writeError(w, r, err)
			return
		}
		log.Warn().Err(err).Str("payment", dataID).Msg("payment webhook not applied")
		writeJSON(w, http.StatusOK, map[string]string{"status": "processed_with_error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}
