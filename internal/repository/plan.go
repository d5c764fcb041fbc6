package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const getDonationPlan = `-- name: GetDonationPlan :one
SELECT id, plan_id, plan_name, base_cost, billing_interval, currency,
       is_active, is_organization_plan, voter_id, organization_id, coupon_plan_id
FROM donation_plans
WHERE plan_id = $1
  AND base_cost = $2
  AND is_organization_plan = $3
  AND voter_id IS NOT DISTINCT FROM $4
  AND organization_id IS NOT DISTINCT FROM $5
LIMIT 1
`

// GetDonationPlanParams identifies a plan by its full creation identity,
// mirroring get-or-create semantics: a row only matches when every field
// agrees.
type GetDonationPlanParams struct {
	PlanID             string
	BaseCost           int64
	IsOrganizationPlan bool
	VoterID            pgtype.Text
	OrganizationID     pgtype.Text
}

// GetDonationPlan returns the plan matching the full identity, or
// pgx.ErrNoRows.
func (q *Queries) GetDonationPlan(ctx context.Context, arg GetDonationPlanParams) (DonationPlan, error) {
	row := q.db.QueryRow(ctx, getDonationPlan,
		arg.PlanID, arg.BaseCost, arg.IsOrganizationPlan, arg.VoterID, arg.OrganizationID)
	return scanDonationPlan(row)
}

const createDonationPlan = `-- name: CreateDonationPlan :one
INSERT INTO donation_plans (
    plan_id, plan_name, base_cost, billing_interval, currency,
    is_active, is_organization_plan, voter_id, organization_id, coupon_plan_id
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id, plan_id, plan_name, base_cost, billing_interval, currency,
          is_active, is_organization_plan, voter_id, organization_id, coupon_plan_id
`

// CreateDonationPlanParams contains parameters for creating a plan
// definition. The voter_id and organization_id columns are unique at the
// storage layer; duplicates surface as uniqueness violations.
type CreateDonationPlanParams struct {
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

// CreateDonationPlan inserts a new plan definition.
func (q *Queries) CreateDonationPlan(ctx context.Context, arg CreateDonationPlanParams) (DonationPlan, error) {
	row := q.db.QueryRow(ctx, createDonationPlan,
		arg.PlanID, arg.PlanName, arg.BaseCost, arg.BillingInterval, arg.Currency,
		arg.IsActive, arg.IsOrganizationPlan, arg.VoterID, arg.OrganizationID, arg.CouponPlanID)
	return scanDonationPlan(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDonationPlan(row rowScanner) (DonationPlan, error) {
	var i DonationPlan
	err := row.Scan(
		&i.ID,
		&i.PlanID,
		&i.PlanName,
		&i.BaseCost,
		&i.BillingInterval,
		&i.Currency,
		&i.IsActive,
		&i.IsOrganizationPlan,
		&i.VoterID,
		&i.OrganizationID,
		&i.CouponPlanID,
	)
	return i, err
}
