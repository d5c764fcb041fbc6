package service

import (
	"context"
	"time"

	"github.com/openballot/donate/internal/repository"
)

// DonationService provides business logic for recurring donations,
// organization subscriptions, and gateway event reconciliation.
type DonationService interface {
	// CreateRecurringDonation subscribes a customer to a monthly plan.
	//
	// Flow:
	//  1. Derives the plan id from the voter, amount, and plan kind
	//  2. Resolves or creates the plan locally and in the gateway
	//  3. Short-circuits when the organization already holds the plan
	//  4. Creates the gateway subscription with correlation metadata
	//
	// Card declines are reported in the result status, not as an error.
	CreateRecurringDonation(ctx context.Context, params RecurringDonationParams) RecurringDonationResult

	// RetrieveOrCreatePlan resolves a plan in both stores, creating it
	// where absent. For organization plans the amount is re-priced from
	// the latest coupon version before lookup.
	RetrieveOrCreatePlan(ctx context.Context, params PlanParams) PlanResult

	// ValidateCoupon reports whether the latest version of a coupon is
	// present and unexpired, with its prices and applied message.
	ValidateCoupon(ctx context.Context, planType, couponCode string) CouponValidation

	// CouponPrice returns the price and row id of the latest coupon
	// version. The caller is expected to have validated the coupon; a
	// missing coupon here is a contract violation and returns an error.
	CouponPrice(ctx context.Context, planType, couponCode string) (int64, int64, error)

	// SeedDefaultCoupons idempotently inserts the default coupon rows.
	// Invoked once at startup so a fresh database has a usable catalog.
	SeedDefaultCoupons(ctx context.Context) error

	// ListCouponPlans returns every coupon plan version, newest first.
	ListCouponPlans(ctx context.Context) CouponPlanListResult

	// AppendJournalEntry inserts one billing event row. Every field is
	// caller-supplied; nothing is computed before insert.
	AppendJournalEntry(ctx context.Context, params repository.CreateJournalEntryParams) JournalEntryResult

	// DonationHistory returns a voter's journal entries, newest first.
	// An empty history is success, not an error.
	DonationHistory(ctx context.Context, voterID string) DonationHistoryResult

	// ChargeExists reports whether a charge id is already journaled.
	ChargeExists(ctx context.Context, chargeID string) (bool, bool)

	// MarkSubscriptionClosed stamps ended/canceled timestamps on the
	// journal row for (subscription, customer). False when no row matches.
	MarkSubscriptionClosed(ctx context.Context, params SubscriptionClosedParams) bool

	// MoveDonations rewrites journal ownership when an anonymous session
	// merges into a logged-in voter. A voter with no donations is a
	// normal no-op reported with success=false and a no-donations status.
	MoveDonations(ctx context.Context, fromVoterID, toVoterID string) MoveDonationsResult

	// SubscriptionRowAwaitingCard returns the id of the newest journal
	// row for the plan whose card fields are still unset, or -1.
	SubscriptionRowAwaitingCard(ctx context.Context, customerID, planID string) int64

	// AttachCardDetails fills card metadata onto a journal row located by
	// SubscriptionRowAwaitingCard. Best effort; failures are logged and
	// never propagated to the caller.
	AttachCardDetails(ctx context.Context, params CardDetailsParams)

	// VoterForCustomer resolves which voter a gateway event concerns when
	// the event carries only a customer id. Empty string when unknown.
	VoterForCustomer(ctx context.Context, stripeCustomerID string) string

	// RecordRefundRequested folds a succeeded refund event onto the
	// charge's journal row, moving it to "refund pending".
	RecordRefundRequested(ctx context.Context, params RefundParams) bool

	// RecordRefundCompleted confirms a refund on the charge's row,
	// moving it to "refunded".
	RecordRefundCompleted(ctx context.Context, chargeID string) bool

	// RecordRefundAlreadyRefunded is the idempotent correction path for a
	// refund event against a charge that was already fully refunded.
	RecordRefundAlreadyRefunded(ctx context.Context, chargeID, voterID string) bool

	// CreateDonorLink associates a voter with a gateway customer id.
	CreateDonorLink(ctx context.Context, stripeCustomerID, voterID string) DonorLinkResult

	// StripeCustomerIDForVoter returns the customer id linked to a voter.
	StripeCustomerIDForVoter(ctx context.Context, voterID string) CustomerIDResult

	// StageInvoice caches an invoice-created event for later charge
	// correlation.
	StageInvoice(ctx context.Context, params InvoiceParams) InvoiceResult

	// ApplyChargeToSubscription recovers the subscription id from a
	// staged invoice and stamps last_charged on the subscription's setup
	// row, returning the plan id the invoice was staged under. The charge
	// event can land before the invoice is staged, so a missing invoice
	// is retried once after a blocking wait. Every successful application
	// purges staged invoices older than ten days.
	ApplyChargeToSubscription(ctx context.Context, invoiceID string, chargedAt time.Time) (string, error)
}

// RecurringDonationParams contains parameters for creating a subscription.
type RecurringDonationParams struct {
	StripeCustomerID   string
	VoterID            string
	AmountCents        int64
	StartAt            time.Time
	Email              string
	IsOrganizationPlan bool
	CouponCode         string
	PlanType           string
	OrganizationID     string
}

// RecurringDonationResult reports the outcome of a subscription attempt.
type RecurringDonationResult struct {
	Success               bool
	Status                string
	OrgSubsAlreadyExists  bool
	SubscriptionPlanID    string
	SubscriptionID        string
	SubscriptionCreatedAt time.Time
}

// PlanParams contains parameters for plan resolution.
type PlanParams struct {
	VoterID            string
	PlanID             string
	AmountCents        int64
	IsOrganizationPlan bool
	CouponCode         string
	PlanType           string
	OrganizationID     string
}

// PlanResult reports the outcome of plan resolution.
type PlanResult struct {
	Success              bool
	Status               string
	OrgSubsAlreadyExists bool
	PlanID               string
}

// CouponValidation reports whether a coupon matches and is unexpired.
type CouponValidation struct {
	Success              bool
	Status               string
	CouponMatchFound     bool
	CouponStillValid     bool
	MonthlyPriceStripe   int64
	AnnualPriceStripe    int64
	CouponAppliedMessage string
}

// CouponPlanListResult carries every stored coupon plan version.
type CouponPlanListResult struct {
	Success bool
	Status  string
	Plans   []repository.CouponPlan
}

// JournalEntryResult reports a journal insert.
type JournalEntryResult struct {
	Success bool
	Status  string
	Entry   repository.DonationJournal
}

// DonationHistoryResult carries a voter's journal entries.
type DonationHistoryResult struct {
	Success bool
	Status  string
	Entries []repository.DonationJournal
}

// SubscriptionClosedParams identifies a canceled or ended subscription.
type SubscriptionClosedParams struct {
	SubscriptionID string
	CustomerID     string
	EndedAt        time.Time
	CanceledAt     time.Time
}

// MoveDonationsResult reports a journal ownership rewrite.
type MoveDonationsResult struct {
	Success     bool
	Status      string
	FromVoterID string
	ToVoterID   string
}

// CardDetailsParams carries card metadata for a subscription's first charge.
type CardDetailsParams struct {
	RowID      int64
	Amount     int64
	Currency   string
	CardID     string
	AddressZip string
	Brand      string
	Country    string
	ExpMonth   int32
	ExpYear    int32
	Last4      int32
	Funding    string
}

// RefundParams describes a gateway refund event.
type RefundParams struct {
	ChargeID string
	VoterID  string
	RefundID string
	Amount   int64
	Currency string
	Status   string
	Created  int64
}

// DonorLinkResult reports creation of a voter to customer link.
type DonorLinkResult struct {
	Success bool
	Status  string
}

// CustomerIDResult reports a customer id lookup for a voter.
type CustomerIDResult struct {
	Success          bool
	Status           string
	StripeCustomerID string
}

// InvoiceParams describes an invoice-created gateway event.
type InvoiceParams struct {
	SubscriptionID string
	PlanID         string
	InvoiceID      string
	InvoiceDate    time.Time
	CustomerID     string
}

// InvoiceResult reports an invoice staging insert.
type InvoiceResult struct {
	Success bool
	Status  string
}
