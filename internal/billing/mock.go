package billing

import (
	"context"
)

// MockProvider is a configurable Provider for tests. Each method delegates
// to its function field; unset fields return zero values.
type MockProvider struct {
	GetPlanFunc            func(ctx context.Context, planID string) (*Plan, error)
	CreatePlanFunc         func(ctx context.Context, params CreatePlanParams) (*Plan, error)
	CreateSubscriptionFunc func(ctx context.Context, params CreateSubscriptionParams) (*Subscription, error)
}

var _ Provider = (*MockProvider)(nil)

func (m *MockProvider) GetPlan(ctx context.Context, planID string) (*Plan, error) {
	if m.GetPlanFunc != nil {
		return m.GetPlanFunc(ctx, planID)
	}
	return nil, ErrPlanNotFound
}

func (m *MockProvider) CreatePlan(ctx context.Context, params CreatePlanParams) (*Plan, error) {
	if m.CreatePlanFunc != nil {
		return m.CreatePlanFunc(ctx, params)
	}
	return &Plan{ID: params.PlanID, AmountCents: params.AmountCents, Currency: params.Currency, Interval: params.Interval, Active: true}, nil
}

func (m *MockProvider) CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*Subscription, error) {
	if m.CreateSubscriptionFunc != nil {
		return m.CreateSubscriptionFunc(ctx, params)
	}
	return &Subscription{ID: "sub_mock", CustomerID: params.CustomerID, PlanID: params.PlanID, Status: "active"}, nil
}
