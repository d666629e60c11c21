package payment_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apprendschap/packkit/pkg/payment"
)

const webhookSecret = "test-webhook-secret"

func signBody(body []byte) string {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func postEvent(t *testing.T, handler http.Handler, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set("Wave-Signature", signature)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func completedEvent(reference string) []byte {
	return fmt.Appendf(nil,
		`{"type":"checkout.session.completed","data":{"id":%q,"payment_status":"succeeded"}}`,
		reference)
}

func TestWebhookHandler(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("settles on completed checkout", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, now)
		handler := payment.NewWebhookHandler(f.reconciler, webhookSecret, nil).Routes()

		pending, err := f.reconciler.Initiate(ctx, payment.InitiateParams{
			UserID: uuid.New(),
			PackID: f.standard.ID,
		})
		require.NoError(t, err)

		body := completedEvent(pending.Reference)
		rec := postEvent(t, handler, body, signBody(body))
		assert.Equal(t, http.StatusOK, rec.Code)

		settled, err := f.store.ByReference(ctx, pending.Reference)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusSettled, settled.Status)
	})

	t.Run("duplicate delivery still returns 200", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, now)
		handler := payment.NewWebhookHandler(f.reconciler, webhookSecret, nil).Routes()

		pending, err := f.reconciler.Initiate(ctx, payment.InitiateParams{
			UserID: uuid.New(),
			PackID: f.standard.ID,
		})
		require.NoError(t, err)

		body := completedEvent(pending.Reference)
		require.Equal(t, http.StatusOK, postEvent(t, handler, body, signBody(body)).Code)
		assert.Equal(t, http.StatusOK, postEvent(t, handler, body, signBody(body)).Code)

		subs, err := f.subStore.ActiveByUser(ctx, pending.UserID)
		require.NoError(t, err)
		assert.Len(t, subs, 1)
	})

	t.Run("rejects bad signature", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, now)
		handler := payment.NewWebhookHandler(f.reconciler, webhookSecret, nil).Routes()

		body := completedEvent("wave-tx-1")
		assert.Equal(t, http.StatusUnauthorized, postEvent(t, handler, body, "deadbeef").Code)
		assert.Equal(t, http.StatusUnauthorized, postEvent(t, handler, body, "").Code)
	})

	t.Run("unknown reference", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, now)
		handler := payment.NewWebhookHandler(f.reconciler, webhookSecret, nil).Routes()

		body := completedEvent("no-such-tx")
		assert.Equal(t, http.StatusNotFound, postEvent(t, handler, body, signBody(body)).Code)
	})

	t.Run("rejects malformed payloads", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, now)
		handler := payment.NewWebhookHandler(f.reconciler, webhookSecret, nil).Routes()

		for _, body := range [][]byte{
			[]byte(`{not json`),
			[]byte(`{"type":"checkout.session.completed","data":{"payment_status":"succeeded"}}`),
		} {
			rec := postEvent(t, handler, body, signBody(body))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), payment.ErrInvalidWebhook.Error())
		}
	})

	t.Run("failed checkout closes the payment", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, now)
		handler := payment.NewWebhookHandler(f.reconciler, webhookSecret, nil).Routes()

		pending, err := f.reconciler.Initiate(ctx, payment.InitiateParams{
			UserID: uuid.New(),
			PackID: f.standard.ID,
		})
		require.NoError(t, err)

		body := fmt.Appendf(nil,
			`{"type":"checkout.session.completed","data":{"id":%q,"payment_status":"failed"}}`,
			pending.Reference)
		assert.Equal(t, http.StatusOK, postEvent(t, handler, body, signBody(body)).Code)

		closed, err := f.store.ByReference(ctx, pending.Reference)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusFailed, closed.Status)

		// A failed payment never ages into the grace sweep.
		report, err := f.reconciler.SweepPending(ctx)
		require.NoError(t, err)
		assert.Zero(t, report.Processed)

		// Replaying the failure is acknowledged without a status change.
		assert.Equal(t, http.StatusOK, postEvent(t, handler, body, signBody(body)).Code)
	})

	t.Run("ignores non-completed events", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, now)
		handler := payment.NewWebhookHandler(f.reconciler, webhookSecret, nil).Routes()

		pending, err := f.reconciler.Initiate(ctx, payment.InitiateParams{
			UserID: uuid.New(),
			PackID: f.standard.ID,
		})
		require.NoError(t, err)

		body := fmt.Appendf(nil,
			`{"type":"checkout.session.expired","data":{"id":%q,"payment_status":"expired"}}`,
			pending.Reference)
		assert.Equal(t, http.StatusOK, postEvent(t, handler, body, signBody(body)).Code)

		still, err := f.store.ByReference(ctx, pending.Reference)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusPending, still.Status)
	})
}
