package repository

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// DonorLink associates a voter identity with a Stripe customer id.
// Created once, on the first successful charge or subscription setup for
// that voter; never mutated or deleted.
type DonorLink struct {
	ID               int64
	StripeCustomerID string
	VoterID          string
}

// DonationPlan is a recurring billing plan definition. Plans are created
// lazily on the first subscription attempt for a voter and amount, and are
// immutable after creation.
type DonationPlan struct {
	ID                 int64
	PlanID             string
	PlanName           string
	BaseCost           int64
	BillingInterval    string
	Currency           string
	IsActive           bool
	IsOrganizationPlan bool
	VoterID            pgtype.Text
	OrganizationID     pgtype.Text
	CouponPlanID       int64
}

// CouponPlan is an immutable, versioned pricing and feature template
// selected by (coupon_code, plan_type). Updating a coupon means inserting
// a new row; the newest row by created_at is authoritative.
type CouponPlan struct {
	ID                 int64
	CouponCode         string
	PlanType           string
	ExpiresAt          pgtype.Timestamptz
	CreatedAt          time.Time
	HiddenComment      string
	AppliedMessage     string
	MonthlyPriceStripe int64
	AnnualPriceStripe  int64
	FeaturesBitmap     int64
	Redemptions        int64
}

// DonationJournal is one row per billing-relevant event: one-time
// payments, automatic subscription charges, and subscription setup rows.
// Setup rows are long-lived and mutated as gateway events fold in; rows
// are never deleted.
type DonationJournal struct {
	ID                     int64
	RecordKind             string
	VoterID                string
	NotLoggedInVoterID     pgtype.Text
	StripeCustomerID       string
	ChargeID               string
	SubscriptionID         string
	Amount                 int64
	Currency               string
	Funding                string
	Livemode               bool
	ActionTaken            string
	ActionResult           string
	Created                pgtype.Timestamptz
	FailureCode            string
	FailureMessage         string
	NetworkStatus          string
	Reason                 string
	SellerMessage          string
	StripeType             string
	Paid                   string
	AmountRefunded         int64
	RefundCount            int64
	Email                  string
	AddressZip             string
	Brand                  string
	Country                string
	ExpMonth               int32
	ExpYear                int32
	Last4                  int32
	CardID                 string
	StripeObject           string
	StripeStatus           string
	Status                 string
	SubscriptionPlanID     string
	SubscriptionCreatedAt  pgtype.Timestamptz
	SubscriptionCanceledAt pgtype.Timestamptz
	SubscriptionEndedAt    pgtype.Timestamptz
	IPAddress              string
	LastCharged            pgtype.Timestamptz
	IsOrganizationPlan     bool
	PlanType               string
	CouponCode             string
	OrganizationID         string
}

// DonationInvoice caches a gateway invoice long enough to correlate the
// invoice-created event with the charge-succeeded event that follows it.
// Rows older than ten days are purged as a side effect of folding.
type DonationInvoice struct {
	ID               int64
	SubscriptionID   string
	PlanID           string
	InvoiceID        string
	InvoiceDate      pgtype.Timestamptz
	StripeCustomerID string
}
