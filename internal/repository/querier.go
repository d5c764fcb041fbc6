package repository

import (
	"context"
	"time"
)

// Querier is the storage interface the services depend on. *Queries is the
// production implementation; tests substitute in-memory fakes.
type Querier interface {
	// Donor links
	CreateDonorLink(ctx context.Context, arg CreateDonorLinkParams) (DonorLink, error)
	GetDonorLinkByVoter(ctx context.Context, voterID string) (DonorLink, error)

	// Donation plans
	GetDonationPlan(ctx context.Context, arg GetDonationPlanParams) (DonationPlan, error)
	CreateDonationPlan(ctx context.Context, arg CreateDonationPlanParams) (DonationPlan, error)

	// Coupon plans
	GetLatestCouponPlan(ctx context.Context, arg GetLatestCouponPlanParams) (CouponPlan, error)
	CreateCouponPlan(ctx context.Context, arg CreateCouponPlanParams) (CouponPlan, error)
	ListCouponPlans(ctx context.Context) ([]CouponPlan, error)

	// Donation journal
	CreateJournalEntry(ctx context.Context, arg CreateJournalEntryParams) (DonationJournal, error)
	ListJournalForVoter(ctx context.Context, voterID string) ([]DonationJournal, error)
	ListJournalForCustomer(ctx context.Context, stripeCustomerID string) ([]DonationJournal, error)
	JournalChargeExists(ctx context.Context, chargeID string) (bool, error)
	CloseSubscription(ctx context.Context, arg CloseSubscriptionParams) (int64, error)
	ReassignJournalVoter(ctx context.Context, arg ReassignJournalVoterParams) (int64, error)
	GetNewestJournalAwaitingCard(ctx context.Context, subscriptionPlanID string) (DonationJournal, error)
	UpdateJournalCardDetails(ctx context.Context, arg UpdateJournalCardDetailsParams) error
	GetJournalByChargeForVoter(ctx context.Context, arg GetJournalByChargeForVoterParams) (DonationJournal, error)
	GetJournalByCharge(ctx context.Context, chargeID string) (DonationJournal, error)
	UpdateJournalRefund(ctx context.Context, arg UpdateJournalRefundParams) error
	SetJournalLastCharged(ctx context.Context, arg SetJournalLastChargedParams) (int64, error)

	// Invoice cache
	CreateInvoice(ctx context.Context, arg CreateInvoiceParams) (DonationInvoice, error)
	GetInvoiceByInvoiceID(ctx context.Context, invoiceID string) (DonationInvoice, error)
	DeleteInvoicesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

var _ Querier = (*Queries)(nil)
