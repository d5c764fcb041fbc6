package billing

import (
	"context"
	"time"
)

// Provider defines the interface for the payment gateway.
// Implementations can use Stripe, PayPal, Square, etc.
type Provider interface {
	// GetPlan retrieves an existing recurring plan by its identifier.
	// Returns ErrPlanNotFound when the gateway has no such plan.
	GetPlan(ctx context.Context, planID string) (*Plan, error)

	// CreatePlan creates a recurring plan with an explicit identifier so
	// the database row and the gateway object share one id.
	CreatePlan(ctx context.Context, params CreatePlanParams) (*Plan, error)

	// CreateSubscription subscribes an existing customer to a plan.
	// Card failures surface as *StripeError with decline details.
	CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*Subscription, error)
}

// CreatePlanParams contains parameters for creating a recurring plan.
type CreatePlanParams struct {
	// PlanID is the caller-chosen identifier, shared with the database.
	PlanID string

	// AmountCents is the recurring charge in smallest currency unit.
	AmountCents int64

	// Currency code (ISO 4217 lowercase) - e.g., "usd"
	Currency string

	// Interval is the billing frequency: "month" or "year"
	Interval string

	// ProductName labels the plan's product in the gateway dashboard.
	ProductName string
}

// Plan represents a recurring billing plan.
type Plan struct {
	ID          string
	AmountCents int64
	Currency    string
	Interval    string
	Active      bool
}

// CreateSubscriptionParams contains parameters for creating a subscription.
type CreateSubscriptionParams struct {
	// CustomerID is the gateway customer id (cus_...)
	CustomerID string

	// PlanID is the recurring plan to subscribe the customer to.
	PlanID string

	// Metadata for filtering and reporting (always include voter_id, email)
	Metadata map[string]string
}

// Subscription represents a recurring subscription.
type Subscription struct {
	ID         string
	CustomerID string
	PlanID     string
	Status     string // "active", "past_due", "canceled", "incomplete", etc.
	CreatedAt  time.Time
}
