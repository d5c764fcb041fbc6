package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stripe/stripe-go/v82"
	stripewebhook "github.com/stripe/stripe-go/v82/webhook"

	"github.com/openballot/donate/internal/domain"
	"github.com/openballot/donate/internal/repository"
	"github.com/openballot/donate/internal/service"
	"github.com/openballot/donate/internal/telemetry"
)

// StripeHandler folds Stripe webhook events into the donation journal.
type StripeHandler struct {
	donations service.DonationService
	metrics   *telemetry.DonationMetrics
	config    StripeWebhookConfig
}

// StripeWebhookConfig contains configuration for Stripe webhook handling
type StripeWebhookConfig struct {
	// WebhookSecret is the webhook signing secret from Stripe dashboard
	WebhookSecret string
}

// NewStripeHandler creates a new Stripe webhook handler
func NewStripeHandler(donations service.DonationService, metrics *telemetry.DonationMetrics, config StripeWebhookConfig) *StripeHandler {
	return &StripeHandler{
		donations: donations,
		metrics:   metrics,
		config:    config,
	}
}

// invoicePayload is the slice of an invoice.created event this module
// consumes. The raw event carries far more than we need.
type invoicePayload struct {
	ID           string `json:"id"`
	Subscription string `json:"subscription"`
	Customer     string `json:"customer"`
	Created      int64  `json:"created"`
	Lines        struct {
		Data []struct {
			Plan struct {
				ID string `json:"id"`
			} `json:"plan"`
		} `json:"data"`
	} `json:"lines"`
}

// chargePayload is the slice of a charge event this module consumes.
type chargePayload struct {
	ID             string `json:"id"`
	Invoice        string `json:"invoice"`
	Customer       string `json:"customer"`
	Amount         int64  `json:"amount"`
	AmountRefunded int64  `json:"amount_refunded"`
	Currency       string `json:"currency"`
	Created        int64  `json:"created"`
	Livemode       bool   `json:"livemode"`
	Paid           bool   `json:"paid"`
	Status         string `json:"status"`
	ReceiptEmail   string `json:"receipt_email"`
	FailureCode    string `json:"failure_code"`
	FailureMessage string `json:"failure_message"`
	Outcome        struct {
		NetworkStatus string `json:"network_status"`
		Reason        string `json:"reason"`
		SellerMessage string `json:"seller_message"`
	} `json:"outcome"`
	BillingDetails struct {
		Address struct {
			PostalCode string `json:"postal_code"`
		} `json:"address"`
	} `json:"billing_details"`
	PaymentMethodDetails struct {
		Card struct {
			Brand    string `json:"brand"`
			Country  string `json:"country"`
			ExpMonth int32  `json:"exp_month"`
			ExpYear  int32  `json:"exp_year"`
			Last4    string `json:"last4"`
			Funding  string `json:"funding"`
		} `json:"card"`
	} `json:"payment_method_details"`
}

// HandleWebhook processes incoming Stripe webhook events
//
// Stripe CLI testing:
//
//	stripe listen --forward-to localhost:3000/webhooks/stripe
//	stripe trigger charge.succeeded
func (h *StripeHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	if r.Method != http.MethodPost {
		log.Printf("[WEBHOOK] Rejected: method %s not allowed", r.Method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("[WEBHOOK] Error reading payload: %v", err)
		http.Error(w, "Error reading request body", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		log.Printf("[WEBHOOK] Missing Stripe-Signature header")
		http.Error(w, "Missing signature", http.StatusBadRequest)
		return
	}

	event, err := stripewebhook.ConstructEvent(payload, signature, h.config.WebhookSecret)
	if err != nil {
		log.Printf("[WEBHOOK] Signature verification FAILED: %v", err)
		http.Error(w, "Invalid signature", http.StatusBadRequest)
		return
	}

	log.Printf("[WEBHOOK] Received Stripe event: %s (ID: %s)", event.Type, event.ID)
	h.metrics.WebhookReceived.WithLabelValues(string(event.Type)).Inc()
	defer func() {
		h.metrics.WebhookLatency.WithLabelValues(string(event.Type)).Observe(time.Since(startTime).Seconds())
	}()

	ctx := r.Context()
	switch event.Type {
	case "invoice.created":
		h.handleInvoiceCreated(ctx, event)

	case "charge.succeeded":
		h.handleChargeSucceeded(ctx, event)

	case "charge.refunded":
		h.handleChargeRefunded(ctx, event)

	case "customer.subscription.deleted":
		h.handleSubscriptionDeleted(ctx, event)

	default:
		log.Printf("[WEBHOOK] Unhandled event type: %s", event.Type)
	}

	// Always return 200 to acknowledge receipt
	// Stripe will retry if we return an error
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"received": true}`))
}

// handleInvoiceCreated stages the invoice so the matching charge.succeeded
// event can recover its subscription later.
func (h *StripeHandler) handleInvoiceCreated(ctx context.Context, event stripe.Event) {
	var invoice invoicePayload
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		log.Printf("[WEBHOOK] Error parsing invoice from webhook: %v", err)
		h.metrics.WebhookFailed.WithLabelValues(string(event.Type)).Inc()
		return
	}

	planID := ""
	if len(invoice.Lines.Data) > 0 {
		planID = invoice.Lines.Data[0].Plan.ID
	}

	result := h.donations.StageInvoice(ctx, service.InvoiceParams{
		SubscriptionID: invoice.Subscription,
		PlanID:         planID,
		InvoiceID:      invoice.ID,
		InvoiceDate:    time.Unix(invoice.Created, 0),
		CustomerID:     invoice.Customer,
	})
	if !result.Success {
		log.Printf("[WEBHOOK] Invoice staging failed for %s", invoice.ID)
		h.metrics.WebhookFailed.WithLabelValues(string(event.Type)).Inc()
		return
	}
	h.metrics.InvoicesStaged.Inc()
}

// handleChargeSucceeded journals the charge, stamps last_charged on the
// subscription's setup row, and fills in card metadata.
func (h *StripeHandler) handleChargeSucceeded(ctx context.Context, event stripe.Event) {
	var charge chargePayload
	if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
		log.Printf("[WEBHOOK] Error parsing charge from webhook: %v", err)
		h.metrics.WebhookFailed.WithLabelValues(string(event.Type)).Inc()
		return
	}

	// Stripe redelivers events; a journaled charge id means this one has
	// already been folded in.
	exists, _ := h.donations.ChargeExists(ctx, charge.ID)
	if exists {
		log.Printf("[WEBHOOK] Charge %s already journaled, skipping", charge.ID)
		return
	}

	voterID := h.donations.VoterForCustomer(ctx, charge.Customer)
	paid := "false"
	if charge.Paid {
		paid = "true"
	}
	entry := h.donations.AppendJournalEntry(ctx, repository.CreateJournalEntryParams{
		RecordKind:       domain.RecordKindPaymentAutoSubscription,
		VoterID:          voterID,
		StripeCustomerID: charge.Customer,
		ChargeID:         charge.ID,
		Amount:           charge.Amount,
		Currency:         charge.Currency,
		Funding:          charge.PaymentMethodDetails.Card.Funding,
		Livemode:         charge.Livemode,
		ActionTaken:      "charge.succeeded",
		ActionResult:     charge.Status,
		Created:          timestamp(time.Unix(charge.Created, 0)),
		FailureCode:      charge.FailureCode,
		FailureMessage:   charge.FailureMessage,
		NetworkStatus:    charge.Outcome.NetworkStatus,
		Reason:           charge.Outcome.Reason,
		SellerMessage:    charge.Outcome.SellerMessage,
		StripeType:       "charge",
		Paid:             paid,
		AmountRefunded:   charge.AmountRefunded,
		Email:            charge.ReceiptEmail,
		AddressZip:       charge.BillingDetails.Address.PostalCode,
		Brand:            charge.PaymentMethodDetails.Card.Brand,
		Country:          charge.PaymentMethodDetails.Card.Country,
		ExpMonth:         charge.PaymentMethodDetails.Card.ExpMonth,
		ExpYear:          charge.PaymentMethodDetails.Card.ExpYear,
		Last4:            parseLast4(charge.PaymentMethodDetails.Card.Last4),
		StripeObject:     "charge",
		Status:           "CHARGE_SUCCEEDED_WEBHOOK ",
	})
	if !entry.Success {
		log.Printf("[WEBHOOK] Journal entry failed for charge %s", charge.ID)
		h.metrics.WebhookFailed.WithLabelValues(string(event.Type)).Inc()
	} else {
		h.metrics.JournalEntries.WithLabelValues(domain.RecordKindPaymentAutoSubscription).Inc()
		h.metrics.DonationValue.Observe(float64(charge.Amount))
	}

	if charge.Invoice == "" {
		return
	}

	// Correlate the charge with its subscription via the staged invoice,
	// then backfill card metadata onto the setup row still awaiting it.
	planID, err := h.donations.ApplyChargeToSubscription(ctx, charge.Invoice, time.Unix(charge.Created, 0))
	if err != nil {
		log.Printf("[WEBHOOK] Charge %s could not be applied to a subscription: %v", charge.ID, err)
		telemetry.CaptureError(err, map[string]interface{}{"charge_id": charge.ID})
		h.metrics.WebhookFailed.WithLabelValues(string(event.Type)).Inc()
		return
	}

	rowID := h.donations.SubscriptionRowAwaitingCard(ctx, charge.Customer, planID)
	if rowID < 0 {
		return
	}
	h.donations.AttachCardDetails(ctx, service.CardDetailsParams{
		RowID:      rowID,
		Amount:     charge.Amount,
		Currency:   charge.Currency,
		CardID:     charge.ID,
		AddressZip: charge.BillingDetails.Address.PostalCode,
		Brand:      charge.PaymentMethodDetails.Card.Brand,
		Country:    charge.PaymentMethodDetails.Card.Country,
		ExpMonth:   charge.PaymentMethodDetails.Card.ExpMonth,
		ExpYear:    charge.PaymentMethodDetails.Card.ExpYear,
		Last4:      parseLast4(charge.PaymentMethodDetails.Card.Last4),
		Funding:    charge.PaymentMethodDetails.Card.Funding,
	})
}

// handleChargeRefunded confirms a pending refund on the journal row.
func (h *StripeHandler) handleChargeRefunded(ctx context.Context, event stripe.Event) {
	var charge chargePayload
	if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
		log.Printf("[WEBHOOK] Error parsing charge from webhook: %v", err)
		h.metrics.WebhookFailed.WithLabelValues(string(event.Type)).Inc()
		return
	}

	if !h.donations.RecordRefundCompleted(ctx, charge.ID) {
		log.Printf("[WEBHOOK] Refund completion failed for charge %s", charge.ID)
		h.metrics.WebhookFailed.WithLabelValues(string(event.Type)).Inc()
		return
	}
	h.metrics.RefundsCompleted.Inc()
}

// handleSubscriptionDeleted stamps the lifecycle timestamps on the
// subscription's journal row.
func (h *StripeHandler) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		log.Printf("[WEBHOOK] Error parsing subscription from webhook: %v", err)
		h.metrics.WebhookFailed.WithLabelValues(string(event.Type)).Inc()
		return
	}

	customerID := ""
	if sub.Customer != nil {
		customerID = sub.Customer.ID
	}
	ok := h.donations.MarkSubscriptionClosed(ctx, service.SubscriptionClosedParams{
		SubscriptionID: sub.ID,
		CustomerID:     customerID,
		EndedAt:        time.Unix(sub.EndedAt, 0),
		CanceledAt:     time.Unix(sub.CanceledAt, 0),
	})
	if !ok {
		log.Printf("[WEBHOOK] Subscription close failed for %s", sub.ID)
		h.metrics.WebhookFailed.WithLabelValues(string(event.Type)).Inc()
		return
	}
	h.metrics.SubscriptionsClosed.Inc()
}

func parseLast4(s string) int32 {
	var n int32
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int32(c-'0')
	}
	return n
}

func timestamp(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}
