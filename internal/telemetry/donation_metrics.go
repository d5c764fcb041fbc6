package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DonationMetrics holds Prometheus metrics for donation-level observability.
type DonationMetrics struct {
	// Subscriptions
	SubscriptionsCreated  *prometheus.CounterVec
	SubscriptionsDeclined *prometheus.CounterVec
	SubscriptionsClosed   prometheus.Counter

	// Journal
	JournalEntries *prometheus.CounterVec
	DonationValue  prometheus.Histogram

	// Refunds
	RefundsRequested prometheus.Counter
	RefundsCompleted prometheus.Counter

	// Webhooks
	WebhookReceived  *prometheus.CounterVec
	WebhookFailed    *prometheus.CounterVec
	WebhookLatency   *prometheus.HistogramVec
	InvoicesStaged   prometheus.Counter
	InvoicesPurged   prometheus.Counter
	InvoiceRetryWait prometheus.Counter
}

// NewDonationMetrics registers donation metrics with the given registerer.
// Pass prometheus.DefaultRegisterer in production wiring.
func NewDonationMetrics(reg prometheus.Registerer) *DonationMetrics {
	factory := promauto.With(reg)

	return &DonationMetrics{
		SubscriptionsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "donate_subscriptions_created_total",
			Help: "Recurring donation subscriptions successfully created",
		}, []string{"plan_type"}),
		SubscriptionsDeclined: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "donate_subscriptions_declined_total",
			Help: "Subscription attempts rejected by the payment gateway",
		}, []string{"decline_code"}),
		SubscriptionsClosed: factory.NewCounter(prometheus.CounterOpts{
			Name: "donate_subscriptions_closed_total",
			Help: "Subscriptions marked canceled or ended from gateway events",
		}),
		JournalEntries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "donate_journal_entries_total",
			Help: "Journal rows appended, by record kind",
		}, []string{"record_kind"}),
		DonationValue: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "donate_donation_value_cents",
			Help:    "Distribution of donation amounts in cents",
			Buckets: []float64{500, 1000, 2500, 5000, 10000, 25000, 100000},
		}),
		RefundsRequested: factory.NewCounter(prometheus.CounterOpts{
			Name: "donate_refunds_requested_total",
			Help: "Refund events folded into the journal as refund pending",
		}),
		RefundsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "donate_refunds_completed_total",
			Help: "Refund completions folded into the journal",
		}),
		WebhookReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "donate_webhook_received_total",
			Help: "Gateway webhook events received, by event type",
		}, []string{"event_type"}),
		WebhookFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "donate_webhook_failed_total",
			Help: "Gateway webhook events that failed processing",
		}, []string{"event_type"}),
		WebhookLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "donate_webhook_duration_seconds",
			Help:    "Webhook processing latency, by event type",
			Buckets: prometheus.DefBuckets,
		}, []string{"event_type"}),
		InvoicesStaged: factory.NewCounter(prometheus.CounterOpts{
			Name: "donate_invoices_staged_total",
			Help: "Invoice-created events cached for charge correlation",
		}),
		InvoicesPurged: factory.NewCounter(prometheus.CounterOpts{
			Name: "donate_invoices_purged_total",
			Help: "Staged invoice rows removed by housekeeping",
		}),
		InvoiceRetryWait: factory.NewCounter(prometheus.CounterOpts{
			Name: "donate_invoice_retry_waits_total",
			Help: "Times the charge folding path blocked waiting for an invoice",
		}),
	}
}
