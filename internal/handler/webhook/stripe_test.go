package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"

	"github.com/openballot/donate/internal/repository"
	"github.com/openballot/donate/internal/service"
	"github.com/openballot/donate/internal/telemetry"
)

const testWebhookSecret = "whsec_test_secret"

// stubDonationService implements service.DonationService with function
// fields for the methods the webhook handler exercises.
type stubDonationService struct {
	stageInvoiceFunc       func(ctx context.Context, params service.InvoiceParams) service.InvoiceResult
	chargeExistsFunc       func(ctx context.Context, chargeID string) (bool, bool)
	voterForCustomerFunc   func(ctx context.Context, stripeCustomerID string) string
	appendJournalFunc      func(ctx context.Context, params repository.CreateJournalEntryParams) service.JournalEntryResult
	applyChargeFunc        func(ctx context.Context, invoiceID string, chargedAt time.Time) (string, error)
	awaitingCardFunc       func(ctx context.Context, customerID, planID string) int64
	attachCardFunc         func(ctx context.Context, params service.CardDetailsParams)
	refundCompletedFunc    func(ctx context.Context, chargeID string) bool
	subscriptionClosedFunc func(ctx context.Context, params service.SubscriptionClosedParams) bool
}

var _ service.DonationService = (*stubDonationService)(nil)

func (s *stubDonationService) CreateRecurringDonation(ctx context.Context, params service.RecurringDonationParams) service.RecurringDonationResult {
	return service.RecurringDonationResult{}
}

func (s *stubDonationService) RetrieveOrCreatePlan(ctx context.Context, params service.PlanParams) service.PlanResult {
	return service.PlanResult{}
}

func (s *stubDonationService) ValidateCoupon(ctx context.Context, planType, couponCode string) service.CouponValidation {
	return service.CouponValidation{}
}

func (s *stubDonationService) CouponPrice(ctx context.Context, planType, couponCode string) (int64, int64, error) {
	return 0, 0, nil
}

func (s *stubDonationService) SeedDefaultCoupons(ctx context.Context) error {
	return nil
}

func (s *stubDonationService) ListCouponPlans(ctx context.Context) service.CouponPlanListResult {
	return service.CouponPlanListResult{}
}

func (s *stubDonationService) AppendJournalEntry(ctx context.Context, params repository.CreateJournalEntryParams) service.JournalEntryResult {
	if s.appendJournalFunc != nil {
		return s.appendJournalFunc(ctx, params)
	}
	return service.JournalEntryResult{Success: true}
}

func (s *stubDonationService) DonationHistory(ctx context.Context, voterID string) service.DonationHistoryResult {
	return service.DonationHistoryResult{}
}

func (s *stubDonationService) ChargeExists(ctx context.Context, chargeID string) (bool, bool) {
	if s.chargeExistsFunc != nil {
		return s.chargeExistsFunc(ctx, chargeID)
	}
	return false, true
}

func (s *stubDonationService) MarkSubscriptionClosed(ctx context.Context, params service.SubscriptionClosedParams) bool {
	if s.subscriptionClosedFunc != nil {
		return s.subscriptionClosedFunc(ctx, params)
	}
	return true
}

func (s *stubDonationService) MoveDonations(ctx context.Context, fromVoterID, toVoterID string) service.MoveDonationsResult {
	return service.MoveDonationsResult{}
}

func (s *stubDonationService) SubscriptionRowAwaitingCard(ctx context.Context, customerID, planID string) int64 {
	if s.awaitingCardFunc != nil {
		return s.awaitingCardFunc(ctx, customerID, planID)
	}
	return -1
}

func (s *stubDonationService) AttachCardDetails(ctx context.Context, params service.CardDetailsParams) {
	if s.attachCardFunc != nil {
		s.attachCardFunc(ctx, params)
	}
}

func (s *stubDonationService) VoterForCustomer(ctx context.Context, stripeCustomerID string) string {
	if s.voterForCustomerFunc != nil {
		return s.voterForCustomerFunc(ctx, stripeCustomerID)
	}
	return ""
}

func (s *stubDonationService) RecordRefundRequested(ctx context.Context, params service.RefundParams) bool {
	return true
}

func (s *stubDonationService) RecordRefundCompleted(ctx context.Context, chargeID string) bool {
	if s.refundCompletedFunc != nil {
		return s.refundCompletedFunc(ctx, chargeID)
	}
	return true
}

func (s *stubDonationService) RecordRefundAlreadyRefunded(ctx context.Context, chargeID, voterID string) bool {
	return true
}

func (s *stubDonationService) CreateDonorLink(ctx context.Context, stripeCustomerID, voterID string) service.DonorLinkResult {
	return service.DonorLinkResult{}
}

func (s *stubDonationService) StripeCustomerIDForVoter(ctx context.Context, voterID string) service.CustomerIDResult {
	return service.CustomerIDResult{}
}

func (s *stubDonationService) StageInvoice(ctx context.Context, params service.InvoiceParams) service.InvoiceResult {
	if s.stageInvoiceFunc != nil {
		return s.stageInvoiceFunc(ctx, params)
	}
	return service.InvoiceResult{Success: true}
}

func (s *stubDonationService) ApplyChargeToSubscription(ctx context.Context, invoiceID string, chargedAt time.Time) (string, error) {
	if s.applyChargeFunc != nil {
		return s.applyChargeFunc(ctx, invoiceID, chargedAt)
	}
	return "", nil
}

// signedEventRequest builds a POST with a valid Stripe-Signature header
// for the given event type and object payload.
func signedEventRequest(t *testing.T, eventType string, object any) *http.Request {
	t.Helper()

	raw, err := json.Marshal(object)
	require.NoError(t, err)
	body, err := json.Marshal(map[string]any{
		"id":          "evt_test_1",
		"object":      "event",
		"api_version": stripe.APIVersion,
		"type":        eventType,
		"data":        map[string]any{"object": json.RawMessage(raw)},
	})
	require.NoError(t, err)

	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	fmt.Fprintf(mac, "%d.%s", ts, body)
	header := fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(body))
	req.Header.Set("Stripe-Signature", header)
	return req
}

func newTestHandler(svc service.DonationService) *StripeHandler {
	metrics := telemetry.NewDonationMetrics(prometheus.NewRegistry())
	return NewStripeHandler(svc, metrics, StripeWebhookConfig{WebhookSecret: testWebhookSecret})
}

func TestStripeHandler_HandleWebhook_Security(t *testing.T) {
	handler := newTestHandler(&stubDonationService{})

	t.Run("rejects non-POST", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/webhooks/stripe", nil)
		w := httptest.NewRecorder()
		handler.HandleWebhook(w, req)
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})

	t.Run("rejects missing signature header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader([]byte(`{}`)))
		w := httptest.NewRecorder()
		handler.HandleWebhook(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects forged signature", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader([]byte(`{}`)))
		req.Header.Set("Stripe-Signature", "t=123,v1=deadbeef")
		w := httptest.NewRecorder()
		handler.HandleWebhook(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestStripeHandler_HandleWebhook_InvoiceCreated(t *testing.T) {
	var staged service.InvoiceParams
	svc := &stubDonationService{
		stageInvoiceFunc: func(ctx context.Context, params service.InvoiceParams) service.InvoiceResult {
			staged = params
			return service.InvoiceResult{Success: true, Status: "NEW_INVOICE_ENTRY_SAVED"}
		},
	}
	handler := newTestHandler(svc)

	req := signedEventRequest(t, "invoice.created", map[string]any{
		"id":           "in_test_1",
		"subscription": "sub_test_1",
		"customer":     "cus_test_1",
		"created":      1756600000,
		"lines": map[string]any{
			"data": []map[string]any{
				{"plan": map[string]any{"id": "wv01voter1-monthly-500"}},
			},
		},
	})
	w := httptest.NewRecorder()
	handler.HandleWebhook(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "in_test_1", staged.InvoiceID)
	assert.Equal(t, "sub_test_1", staged.SubscriptionID)
	assert.Equal(t, "cus_test_1", staged.CustomerID)
	assert.Equal(t, "wv01voter1-monthly-500", staged.PlanID)
	assert.Equal(t, int64(1756600000), staged.InvoiceDate.Unix())
}

func TestStripeHandler_HandleWebhook_ChargeSucceeded(t *testing.T) {
	chargeObject := map[string]any{
		"id":            "ch_test_1",
		"invoice":       "in_test_1",
		"customer":      "cus_test_1",
		"amount":        500,
		"currency":      "usd",
		"created":       1756600000,
		"paid":          true,
		"status":        "succeeded",
		"receipt_email": "donor@example.com",
		"billing_details": map[string]any{
			"address": map[string]any{"postal_code": "98101"},
		},
		"payment_method_details": map[string]any{
			"card": map[string]any{
				"brand":     "visa",
				"country":   "US",
				"exp_month": 12,
				"exp_year":  2030,
				"last4":     "4242",
				"funding":   "credit",
			},
		},
	}

	t.Run("journals charge and backfills card details", func(t *testing.T) {
		var journaled repository.CreateJournalEntryParams
		var attached service.CardDetailsParams
		svc := &stubDonationService{
			voterForCustomerFunc: func(ctx context.Context, customerID string) string {
				return "wv01voter1"
			},
			appendJournalFunc: func(ctx context.Context, params repository.CreateJournalEntryParams) service.JournalEntryResult {
				journaled = params
				return service.JournalEntryResult{Success: true}
			},
			applyChargeFunc: func(ctx context.Context, invoiceID string, chargedAt time.Time) (string, error) {
				assert.Equal(t, "in_test_1", invoiceID)
				return "wv01voter1-monthly-500", nil
			},
			awaitingCardFunc: func(ctx context.Context, customerID, planID string) int64 {
				assert.Equal(t, "wv01voter1-monthly-500", planID)
				return 42
			},
			attachCardFunc: func(ctx context.Context, params service.CardDetailsParams) {
				attached = params
			},
		}
		handler := newTestHandler(svc)

		w := httptest.NewRecorder()
		handler.HandleWebhook(w, signedEventRequest(t, "charge.succeeded", chargeObject))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "wv01voter1", journaled.VoterID)
		assert.Equal(t, "ch_test_1", journaled.ChargeID)
		assert.Equal(t, int64(500), journaled.Amount)
		assert.Equal(t, int32(4242), journaled.Last4)
		assert.Equal(t, "true", journaled.Paid)
		assert.Equal(t, int64(42), attached.RowID)
		assert.Equal(t, "visa", attached.Brand)
		assert.Equal(t, int32(4242), attached.Last4)
	})

	t.Run("skips already journaled charge", func(t *testing.T) {
		journaled := false
		svc := &stubDonationService{
			chargeExistsFunc: func(ctx context.Context, chargeID string) (bool, bool) {
				return true, true
			},
			appendJournalFunc: func(ctx context.Context, params repository.CreateJournalEntryParams) service.JournalEntryResult {
				journaled = true
				return service.JournalEntryResult{Success: true}
			},
		}
		handler := newTestHandler(svc)

		w := httptest.NewRecorder()
		handler.HandleWebhook(w, signedEventRequest(t, "charge.succeeded", chargeObject))

		assert.Equal(t, http.StatusOK, w.Code, "redelivered events are still acknowledged")
		assert.False(t, journaled)
	})

	t.Run("charge without invoice skips subscription folding", func(t *testing.T) {
		folded := false
		svc := &stubDonationService{
			applyChargeFunc: func(ctx context.Context, invoiceID string, chargedAt time.Time) (string, error) {
				folded = true
				return "", nil
			},
		}
		handler := newTestHandler(svc)

		oneTime := map[string]any{
			"id":       "ch_test_2",
			"customer": "cus_test_1",
			"amount":   500,
			"currency": "usd",
			"paid":     true,
			"status":   "succeeded",
		}
		w := httptest.NewRecorder()
		handler.HandleWebhook(w, signedEventRequest(t, "charge.succeeded", oneTime))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.False(t, folded)
	})
}

func TestStripeHandler_HandleWebhook_ChargeRefunded(t *testing.T) {
	var completedCharge string
	svc := &stubDonationService{
		refundCompletedFunc: func(ctx context.Context, chargeID string) bool {
			completedCharge = chargeID
			return true
		},
	}
	handler := newTestHandler(svc)

	w := httptest.NewRecorder()
	handler.HandleWebhook(w, signedEventRequest(t, "charge.refunded", map[string]any{
		"id":              "ch_test_1",
		"amount":          500,
		"amount_refunded": 500,
	}))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ch_test_1", completedCharge)
}

func TestStripeHandler_HandleWebhook_SubscriptionDeleted(t *testing.T) {
	var closed service.SubscriptionClosedParams
	svc := &stubDonationService{
		subscriptionClosedFunc: func(ctx context.Context, params service.SubscriptionClosedParams) bool {
			closed = params
			return true
		},
	}
	handler := newTestHandler(svc)

	w := httptest.NewRecorder()
	handler.HandleWebhook(w, signedEventRequest(t, "customer.subscription.deleted", map[string]any{
		"id":          "sub_test_1",
		"customer":    "cus_test_1",
		"ended_at":    1756600000,
		"canceled_at": 1756590000,
	}))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sub_test_1", closed.SubscriptionID)
	assert.Equal(t, "cus_test_1", closed.CustomerID)
	assert.Equal(t, int64(1756600000), closed.EndedAt.Unix())
	assert.Equal(t, int64(1756590000), closed.CanceledAt.Unix())
}

func TestStripeHandler_HandleWebhook_UnhandledEventIsAcknowledged(t *testing.T) {
	handler := newTestHandler(&stubDonationService{})

	w := httptest.NewRecorder()
	handler.HandleWebhook(w, signedEventRequest(t, "payment_intent.created", map[string]any{
		"id": "pi_test_1",
	}))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received": true}`, w.Body.String())
}