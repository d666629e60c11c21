package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// signatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const signatureHeader = "Wave-Signature"

type webhookEvent struct {
	Type string `json:"type"`
	Data struct {
		ID            string          `json:"id"`
		PaymentStatus string          `json:"payment_status"`
		Amount        decimal.Decimal `json:"amount"`
		Currency      string          `json:"currency"`
		TransactionID string          `json:"transaction_id"`
	} `json:"data"`
}

// WebhookHandler receives gateway payment confirmations and settles them.
// Mount it under the route the gateway is configured to call.
type WebhookHandler struct {
	reconciler *Reconciler
	secret     []byte
	log        *slog.Logger
}

// NewWebhookHandler creates a webhook handler verifying payloads against
// the shared secret.
func NewWebhookHandler(reconciler *Reconciler, secret string, log *slog.Logger) *WebhookHandler {
	if reconciler == nil {
		panic("payment: Reconciler is required")
	}
	if secret == "" {
		panic("payment: webhook secret is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &WebhookHandler{reconciler: reconciler, secret: []byte(secret), log: log}
}

// Routes returns a router serving POST / for gateway events.
func (h *WebhookHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleEvent)
	return r
}

func (h *WebhookHandler) handleEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if err := h.verifySignature(r.Header.Get(signatureHeader), body); err != nil {
		h.log.WarnContext(ctx, "webhook rejected", "error", err)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil || event.Data.ID == "" {
		h.log.WarnContext(ctx, "webhook rejected", "error", errors.Join(ErrInvalidWebhook, err))
		http.Error(w, ErrInvalidWebhook.Error(), http.StatusBadRequest)
		return
	}

	if event.Type != "checkout.session.completed" {
		// Acknowledge events we do not act on so the gateway stops
		// retrying them.
		w.WriteHeader(http.StatusOK)
		return
	}

	switch event.Data.PaymentStatus {
	case "succeeded":
	case "failed", "cancelled":
		// Terminal failures close the payment so the grace sweep never
		// settles it.
		if err := h.reconciler.MarkFailed(ctx, event.Data.ID); err != nil &&
			!errors.Is(err, ErrPaymentNotFound) && !errors.Is(err, ErrNotPending) {
			h.log.ErrorContext(ctx, "marking payment failed",
				"reference", event.Data.ID, "error", err)
		}
		w.WriteHeader(http.StatusOK)
		return
	default:
		w.WriteHeader(http.StatusOK)
		return
	}

	_, err = h.reconciler.Settle(ctx, SettlementEvent{
		Reference:  event.Data.ID,
		Amount:     event.Data.Amount,
		Currency:   event.Data.Currency,
		GatewayRef: event.Data.TransactionID,
	})
	switch {
	case err == nil, errors.Is(err, ErrAlreadySettled):
		// Duplicate deliveries are expected and must succeed.
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, ErrPaymentNotFound):
		http.Error(w, "unknown payment reference", http.StatusNotFound)
	default:
		h.log.ErrorContext(ctx, "webhook settlement failed",
			"reference", event.Data.ID, "error", err)
		http.Error(w, "settlement failed", http.StatusInternalServerError)
	}
}

func (h *WebhookHandler) verifySignature(got string, body []byte) error {
	if got == "" {
		return ErrWebhookSignature
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(got), []byte(want)) {
		return ErrWebhookSignature
	}
	return nil
}
