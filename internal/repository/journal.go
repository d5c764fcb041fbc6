package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const journalColumns = `id, record_kind, voter_id, not_logged_in_voter_id, stripe_customer_id,
       charge_id, subscription_id, amount, currency, funding, livemode,
       action_taken, action_result, created, failure_code, failure_message,
       network_status, reason, seller_message, stripe_type, paid,
       amount_refunded, refund_count, email, address_zip, brand, country,
       exp_month, exp_year, last4, card_id, stripe_object, stripe_status,
       status, subscription_plan_id, subscription_created_at,
       subscription_canceled_at, subscription_ended_at, ip_address,
       last_charged, is_organization_plan, plan_type, coupon_code, organization_id`

const createJournalEntry = `-- name: CreateJournalEntry :one
INSERT INTO donation_journal (
    record_kind, voter_id, not_logged_in_voter_id, stripe_customer_id,
    charge_id, subscription_id, amount, currency, funding, livemode,
    action_taken, action_result, created, failure_code, failure_message,
    network_status, reason, seller_message, stripe_type, paid,
    amount_refunded, refund_count, email, address_zip, brand, country,
    exp_month, exp_year, last4, card_id, stripe_object, stripe_status,
    status, subscription_plan_id, subscription_created_at,
    subscription_canceled_at, subscription_ended_at, ip_address,
    last_charged, is_organization_plan, plan_type, coupon_code, organization_id
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
          $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28,
          $29, $30, $31, $32, $33, $34, $35, $36, $37, $38, $39, $40, $41,
          $42, $43)
RETURNING ` + journalColumns + `
`

// CreateJournalEntryParams contains every caller-supplied field of a
// journal row. The journal performs no computation before insert.
type CreateJournalEntryParams struct {
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

// CreateJournalEntry inserts a journal row.
func (q *Queries) CreateJournalEntry(ctx context.Context, arg CreateJournalEntryParams) (DonationJournal, error) {
	row := q.db.QueryRow(ctx, createJournalEntry,
		arg.RecordKind, arg.VoterID, arg.NotLoggedInVoterID, arg.StripeCustomerID,
		arg.ChargeID, arg.SubscriptionID, arg.Amount, arg.Currency, arg.Funding,
		arg.Livemode, arg.ActionTaken, arg.ActionResult, arg.Created,
		arg.FailureCode, arg.FailureMessage, arg.NetworkStatus, arg.Reason,
		arg.SellerMessage, arg.StripeType, arg.Paid, arg.AmountRefunded,
		arg.RefundCount, arg.Email, arg.AddressZip, arg.Brand, arg.Country,
		arg.ExpMonth, arg.ExpYear, arg.Last4, arg.CardID, arg.StripeObject,
		arg.StripeStatus, arg.Status, arg.SubscriptionPlanID,
		arg.SubscriptionCreatedAt, arg.SubscriptionCanceledAt,
		arg.SubscriptionEndedAt, arg.IPAddress, arg.LastCharged,
		arg.IsOrganizationPlan, arg.PlanType, arg.CouponCode, arg.OrganizationID)
	return scanJournal(row)
}

const listJournalForVoter = `-- name: ListJournalForVoter :many
SELECT ` + journalColumns + `
FROM donation_journal
WHERE voter_id ILIKE $1
ORDER BY created DESC
`

// ListJournalForVoter returns a voter's journal entries, newest first.
func (q *Queries) ListJournalForVoter(ctx context.Context, voterID string) ([]DonationJournal, error) {
	return q.listJournal(ctx, listJournalForVoter, voterID)
}

const listJournalForCustomer = `-- name: ListJournalForCustomer :many
SELECT ` + journalColumns + `
FROM donation_journal
WHERE stripe_customer_id = $1
ORDER BY id DESC
`

// ListJournalForCustomer returns a Stripe customer's journal entries,
// newest first by insertion order.
func (q *Queries) ListJournalForCustomer(ctx context.Context, stripeCustomerID string) ([]DonationJournal, error) {
	return q.listJournal(ctx, listJournalForCustomer, stripeCustomerID)
}

const journalChargeExists = `-- name: JournalChargeExists :one
SELECT EXISTS (
    SELECT 1 FROM donation_journal WHERE charge_id = $1
)
`

// JournalChargeExists reports whether any journal row records the charge.
func (q *Queries) JournalChargeExists(ctx context.Context, chargeID string) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, journalChargeExists, chargeID).Scan(&exists)
	return exists, err
}

const closeSubscription = `-- name: CloseSubscription :execrows
UPDATE donation_journal
SET subscription_ended_at = $3, subscription_canceled_at = $4
WHERE subscription_id = $1 AND stripe_customer_id = $2
`

// CloseSubscriptionParams identifies the subscription row to terminate.
type CloseSubscriptionParams struct {
	SubscriptionID         string
	StripeCustomerID       string
	SubscriptionEndedAt    pgtype.Timestamptz
	SubscriptionCanceledAt pgtype.Timestamptz
}

// CloseSubscription stamps the ended/canceled timestamps on the journal
// row for (subscription, customer). Returns the number of rows updated.
func (q *Queries) CloseSubscription(ctx context.Context, arg CloseSubscriptionParams) (int64, error) {
	tag, err := q.db.Exec(ctx, closeSubscription,
		arg.SubscriptionID, arg.StripeCustomerID,
		arg.SubscriptionEndedAt, arg.SubscriptionCanceledAt)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const reassignJournalVoter = `-- name: ReassignJournalVoter :execrows
UPDATE donation_journal
SET voter_id = $2
WHERE voter_id ILIKE $1
`

// ReassignJournalVoterParams names the source and destination voter ids.
type ReassignJournalVoterParams struct {
	FromVoterID string
	ToVoterID   string
}

// ReassignJournalVoter rewrites ownership of every journal row held by
// the source voter. Returns the number of rows moved.
func (q *Queries) ReassignJournalVoter(ctx context.Context, arg ReassignJournalVoterParams) (int64, error) {
	tag, err := q.db.Exec(ctx, reassignJournalVoter, arg.FromVoterID, arg.ToVoterID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const getNewestJournalAwaitingCard = `-- name: GetNewestJournalAwaitingCard :one
SELECT ` + journalColumns + `
FROM donation_journal
WHERE subscription_plan_id = $1 AND last4 = 0
ORDER BY id DESC
LIMIT 1
`

// GetNewestJournalAwaitingCard returns the most recent journal row for the
// plan whose card fields have not been filled in yet, or pgx.ErrNoRows.
func (q *Queries) GetNewestJournalAwaitingCard(ctx context.Context, subscriptionPlanID string) (DonationJournal, error) {
	row := q.db.QueryRow(ctx, getNewestJournalAwaitingCard, subscriptionPlanID)
	return scanJournal(row)
}

const updateJournalCardDetails = `-- name: UpdateJournalCardDetails :exec
UPDATE donation_journal
SET amount = $2, currency = $3, card_id = $4, address_zip = $5, brand = $6,
    country = $7, exp_month = $8, exp_year = $9, last4 = $10, funding = $11
WHERE id = $1
`

// UpdateJournalCardDetailsParams carries the card metadata reported by the
// gateway for the subscription's first charge.
type UpdateJournalCardDetailsParams struct {
	ID         int64
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

// UpdateJournalCardDetails fills in card metadata on a located row.
func (q *Queries) UpdateJournalCardDetails(ctx context.Context, arg UpdateJournalCardDetailsParams) error {
	_, err := q.db.Exec(ctx, updateJournalCardDetails,
		arg.ID, arg.Amount, arg.Currency, arg.CardID, arg.AddressZip, arg.Brand,
		arg.Country, arg.ExpMonth, arg.ExpYear, arg.Last4, arg.Funding)
	return err
}

const getJournalByChargeForVoter = `-- name: GetJournalByChargeForVoter :one
SELECT ` + journalColumns + `
FROM donation_journal
WHERE charge_id ILIKE $1 AND voter_id ILIKE $2
LIMIT 1
`

// GetJournalByChargeForVoterParams identifies a charge row scoped to its
// owning voter.
type GetJournalByChargeForVoterParams struct {
	ChargeID string
	VoterID  string
}

// GetJournalByChargeForVoter returns the journal row for the charge and
// voter, or pgx.ErrNoRows.
func (q *Queries) GetJournalByChargeForVoter(ctx context.Context, arg GetJournalByChargeForVoterParams) (DonationJournal, error) {
	row := q.db.QueryRow(ctx, getJournalByChargeForVoter, arg.ChargeID, arg.VoterID)
	return scanJournal(row)
}

const getJournalByCharge = `-- name: GetJournalByCharge :one
SELECT ` + journalColumns + `
FROM donation_journal
WHERE charge_id = $1
LIMIT 1
`

// GetJournalByCharge returns the journal row for the charge, or
// pgx.ErrNoRows.
func (q *Queries) GetJournalByCharge(ctx context.Context, chargeID string) (DonationJournal, error) {
	row := q.db.QueryRow(ctx, getJournalByCharge, chargeID)
	return scanJournal(row)
}

const updateJournalRefund = `-- name: UpdateJournalRefund :exec
UPDATE donation_journal
SET status = $2, amount_refunded = $3, stripe_status = $4
WHERE id = $1
`

// UpdateJournalRefundParams carries the refund fields folded onto a row.
type UpdateJournalRefundParams struct {
	ID             int64
	Status         string
	AmountRefunded int64
	StripeStatus   string
}

// UpdateJournalRefund writes refund state onto the matched row.
func (q *Queries) UpdateJournalRefund(ctx context.Context, arg UpdateJournalRefundParams) error {
	_, err := q.db.Exec(ctx, updateJournalRefund,
		arg.ID, arg.Status, arg.AmountRefunded, arg.StripeStatus)
	return err
}

const setJournalLastCharged = `-- name: SetJournalLastCharged :execrows
UPDATE donation_journal
SET last_charged = $3
WHERE subscription_id = $1 AND record_kind = $2
`

// SetJournalLastChargedParams identifies the subscription setup row to
// stamp.
type SetJournalLastChargedParams struct {
	SubscriptionID string
	RecordKind     string
	LastCharged    pgtype.Timestamptz
}

// SetJournalLastCharged stamps the most recent charge time on the
// subscription's setup row. Returns the number of rows updated.
func (q *Queries) SetJournalLastCharged(ctx context.Context, arg SetJournalLastChargedParams) (int64, error) {
	tag, err := q.db.Exec(ctx, setJournalLastCharged,
		arg.SubscriptionID, arg.RecordKind, arg.LastCharged)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (q *Queries) listJournal(ctx context.Context, query string, arg any) ([]DonationJournal, error) {
	rows, err := q.db.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DonationJournal
	for rows.Next() {
		i, err := scanJournal(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

func scanJournal(row rowScanner) (DonationJournal, error) {
	var i DonationJournal
	err := row.Scan(
		&i.ID,
		&i.RecordKind,
		&i.VoterID,
		&i.NotLoggedInVoterID,
		&i.StripeCustomerID,
		&i.ChargeID,
		&i.SubscriptionID,
		&i.Amount,
		&i.Currency,
		&i.Funding,
		&i.Livemode,
		&i.ActionTaken,
		&i.ActionResult,
		&i.Created,
		&i.FailureCode,
		&i.FailureMessage,
		&i.NetworkStatus,
		&i.Reason,
		&i.SellerMessage,
		&i.StripeType,
		&i.Paid,
		&i.AmountRefunded,
		&i.RefundCount,
		&i.Email,
		&i.AddressZip,
		&i.Brand,
		&i.Country,
		&i.ExpMonth,
		&i.ExpYear,
		&i.Last4,
		&i.CardID,
		&i.StripeObject,
		&i.StripeStatus,
		&i.Status,
		&i.SubscriptionPlanID,
		&i.SubscriptionCreatedAt,
		&i.SubscriptionCanceledAt,
		&i.SubscriptionEndedAt,
		&i.IPAddress,
		&i.LastCharged,
		&i.IsOrganizationPlan,
		&i.PlanType,
		&i.CouponCode,
		&i.OrganizationID,
	)
	return i, err
}
