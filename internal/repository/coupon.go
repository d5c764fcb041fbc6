package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const couponColumns = `id, coupon_code, plan_type, expires_at, created_at,
       hidden_comment, applied_message, monthly_price_stripe,
       annual_price_stripe, features_bitmap, redemptions`

const getLatestCouponPlan = `-- name: GetLatestCouponPlan :one
SELECT ` + couponColumns + `
FROM coupon_plans
WHERE plan_type = $1 AND coupon_code = $2
ORDER BY created_at DESC, id DESC
LIMIT 1
`

// GetLatestCouponPlanParams selects a coupon by its (plan_type, code) pair.
type GetLatestCouponPlanParams struct {
	PlanType   string
	CouponCode string
}

// GetLatestCouponPlan returns the newest version of the coupon for the
// pair, or pgx.ErrNoRows. Coupon rows are immutable; the newest row by
// creation timestamp is the authoritative version.
func (q *Queries) GetLatestCouponPlan(ctx context.Context, arg GetLatestCouponPlanParams) (CouponPlan, error) {
	row := q.db.QueryRow(ctx, getLatestCouponPlan, arg.PlanType, arg.CouponCode)
	return scanCouponPlan(row)
}

const createCouponPlan = `-- name: CreateCouponPlan :one
INSERT INTO coupon_plans (
    coupon_code, plan_type, expires_at, hidden_comment, applied_message,
    monthly_price_stripe, annual_price_stripe, features_bitmap
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + couponColumns + `
`

// CreateCouponPlanParams contains parameters for inserting a coupon
// version.
type CreateCouponPlanParams struct {
	CouponCode         string
	PlanType           string
	ExpiresAt          pgtype.Timestamptz
	HiddenComment      string
	AppliedMessage     string
	MonthlyPriceStripe int64
	AnnualPriceStripe  int64
	FeaturesBitmap     int64
}

// CreateCouponPlan inserts a new coupon version.
func (q *Queries) CreateCouponPlan(ctx context.Context, arg CreateCouponPlanParams) (CouponPlan, error) {
	row := q.db.QueryRow(ctx, createCouponPlan,
		arg.CouponCode, arg.PlanType, arg.ExpiresAt, arg.HiddenComment,
		arg.AppliedMessage, arg.MonthlyPriceStripe, arg.AnnualPriceStripe, arg.FeaturesBitmap)
	return scanCouponPlan(row)
}

const listCouponPlans = `-- name: ListCouponPlans :many
SELECT ` + couponColumns + `
FROM coupon_plans
ORDER BY created_at DESC, id DESC
`

// ListCouponPlans returns every coupon version, newest first.
func (q *Queries) ListCouponPlans(ctx context.Context) ([]CouponPlan, error) {
	rows, err := q.db.Query(ctx, listCouponPlans)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CouponPlan
	for rows.Next() {
		i, err := scanCouponPlan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

func scanCouponPlan(row rowScanner) (CouponPlan, error) {
	var i CouponPlan
	err := row.Scan(
		&i.ID,
		&i.CouponCode,
		&i.PlanType,
		&i.ExpiresAt,
		&i.CreatedAt,
		&i.HiddenComment,
		&i.AppliedMessage,
		&i.MonthlyPriceStripe,
		&i.AnnualPriceStripe,
		&i.FeaturesBitmap,
		&i.Redemptions,
	)
	return i, err
}
