package billing

import (
	"context"
	"errors"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/plan"
	"github.com/stripe/stripe-go/v82/subscription"
)

// StripeProvider implements Provider using Stripe.
type StripeProvider struct {
	config StripeConfig
}

// NewStripeProvider creates a new Stripe billing provider. The secret key
// is installed globally for the stripe-go resource packages.
func NewStripeProvider(config StripeConfig) (*StripeProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	stripe.Key = config.APIKey
	return &StripeProvider{config: config}, nil
}

// GetPlan retrieves a recurring plan from Stripe.
func (s *StripeProvider) GetPlan(ctx context.Context, planID string) (*Plan, error) {
	params := &stripe.PlanParams{}
	params.Context = ctx
	p, err := plan.Get(planID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return nil, ErrPlanNotFound
		}
		return nil, wrapStripeError(err)
	}
	return planFromStripe(p), nil
}

// CreatePlan creates a recurring plan in Stripe under a caller-chosen id.
func (s *StripeProvider) CreatePlan(ctx context.Context, params CreatePlanParams) (*Plan, error) {
	planParams := &stripe.PlanParams{
		ID:       stripe.String(params.PlanID),
		Amount:   stripe.Int64(params.AmountCents),
		Currency: stripe.String(params.Currency),
		Interval: stripe.String(params.Interval),
		Product: &stripe.PlanProductParams{
			Name: stripe.String(params.ProductName),
		},
	}
	planParams.Context = ctx
	p, err := plan.New(planParams)
	if err != nil {
		return nil, wrapStripeError(err)
	}
	return planFromStripe(p), nil
}

// CreateSubscription subscribes a Stripe customer to a plan.
func (s *StripeProvider) CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*Subscription, error) {
	subParams := &stripe.SubscriptionParams{
		Customer: stripe.String(params.CustomerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Plan: stripe.String(params.PlanID)},
		},
	}
	subParams.Context = ctx
	for k, v := range params.Metadata {
		subParams.AddMetadata(k, v)
	}
	sub, err := subscription.New(subParams)
	if err != nil {
		return nil, wrapStripeError(err)
	}
	out := &Subscription{
		ID:        sub.ID,
		PlanID:    params.PlanID,
		Status:    string(sub.Status),
		CreatedAt: time.Unix(sub.Created, 0),
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	return out, nil
}

func planFromStripe(p *stripe.Plan) *Plan {
	return &Plan{
		ID:          p.ID,
		AmountCents: p.Amount,
		Currency:    string(p.Currency),
		Interval:    string(p.Interval),
		Active:      p.Active,
	}
}

// wrapStripeError converts a stripe-go error into a *StripeError so
// callers can inspect decline details without importing the SDK.
func wrapStripeError(err error) error {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return err
	}
	return &StripeError{
		Message:       stripeErr.Msg,
		Code:          string(stripeErr.Code),
		DeclineCode:   string(stripeErr.DeclineCode),
		RequestID:     stripeErr.RequestID,
		OriginalError: err,
	}
}
