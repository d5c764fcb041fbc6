package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

const createInvoice = `-- name: CreateInvoice :one
INSERT INTO donation_invoices (
    subscription_id, plan_id, invoice_id, invoice_date, stripe_customer_id
) VALUES ($1, $2, $3, $4, $5)
RETURNING id, subscription_id, plan_id, invoice_id, invoice_date, stripe_customer_id
`

// CreateInvoiceParams carries the invoice fields staged from a gateway
// invoice event.
type CreateInvoiceParams struct {
	SubscriptionID   string
	PlanID           string
	InvoiceID        string
	InvoiceDate      pgtype.Timestamptz
	StripeCustomerID string
}

// CreateInvoice stages an invoice row for later charge correlation.
func (q *Queries) CreateInvoice(ctx context.Context, arg CreateInvoiceParams) (DonationInvoice, error) {
	row := q.db.QueryRow(ctx, createInvoice,
		arg.SubscriptionID, arg.PlanID, arg.InvoiceID,
		arg.InvoiceDate, arg.StripeCustomerID)
	var i DonationInvoice
	err := row.Scan(
		&i.ID,
		&i.SubscriptionID,
		&i.PlanID,
		&i.InvoiceID,
		&i.InvoiceDate,
		&i.StripeCustomerID,
	)
	return i, err
}

const getInvoiceByInvoiceID = `-- name: GetInvoiceByInvoiceID :one
SELECT id, subscription_id, plan_id, invoice_id, invoice_date, stripe_customer_id
FROM donation_invoices
WHERE invoice_id = $1
LIMIT 1
`

// GetInvoiceByInvoiceID returns the staged invoice row for the gateway
// invoice id, or pgx.ErrNoRows.
func (q *Queries) GetInvoiceByInvoiceID(ctx context.Context, invoiceID string) (DonationInvoice, error) {
	row := q.db.QueryRow(ctx, getInvoiceByInvoiceID, invoiceID)
	var i DonationInvoice
	err := row.Scan(
		&i.ID,
		&i.SubscriptionID,
		&i.PlanID,
		&i.InvoiceID,
		&i.InvoiceDate,
		&i.StripeCustomerID,
	)
	return i, err
}

const deleteInvoicesBefore = `-- name: DeleteInvoicesBefore :execrows
DELETE FROM donation_invoices
WHERE invoice_date < $1
`

// DeleteInvoicesBefore purges staged invoices older than the cutoff.
// Returns the number of rows removed.
func (q *Queries) DeleteInvoicesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteInvoicesBefore, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
