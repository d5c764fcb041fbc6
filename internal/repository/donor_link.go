package repository

import "context"

const createDonorLink = `-- name: CreateDonorLink :one
INSERT INTO donor_links (stripe_customer_id, voter_id)
VALUES ($1, $2)
RETURNING id, stripe_customer_id, voter_id
`

// CreateDonorLinkParams contains parameters for creating a donor link.
type CreateDonorLinkParams struct {
	StripeCustomerID string
	VoterID          string
}

// CreateDonorLink records the association between a voter and a Stripe
// customer id. The customer id is unique; a second insert for the same
// customer fails with a uniqueness violation.
func (q *Queries) CreateDonorLink(ctx context.Context, arg CreateDonorLinkParams) (DonorLink, error) {
	row := q.db.QueryRow(ctx, createDonorLink, arg.StripeCustomerID, arg.VoterID)
	var i DonorLink
	err := row.Scan(&i.ID, &i.StripeCustomerID, &i.VoterID)
	return i, err
}

const getDonorLinkByVoter = `-- name: GetDonorLinkByVoter :one
SELECT id, stripe_customer_id, voter_id
FROM donor_links
WHERE voter_id ILIKE $1
ORDER BY id
LIMIT 1
`

// GetDonorLinkByVoter returns the earliest donor link for a voter.
// Identifier comparison is case-insensitive per the storage boundary.
func (q *Queries) GetDonorLinkByVoter(ctx context.Context, voterID string) (DonorLink, error) {
	row := q.db.QueryRow(ctx, getDonorLinkByVoter, voterID)
	var i DonorLink
	err := row.Scan(&i.ID, &i.StripeCustomerID, &i.VoterID)
	return i, err
}
