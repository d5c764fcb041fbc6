package service

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/openballot/donate/internal/repository"
)

// fakeRepo is an in-memory repository.Querier. It mirrors the uniqueness
// and ordering rules of the real schema closely enough for service tests.
type fakeRepo struct {
	donorLinks []repository.DonorLink
	plans      []repository.DonationPlan
	coupons    []repository.CouponPlan
	journal    []repository.DonationJournal
	invoices   []repository.DonationInvoice
	nextID     int64

	// Error injection
	createJournalErr      error
	invoiceLookupFailures int
	invoiceLookupCalls    int
}

var _ repository.Querier = (*fakeRepo)(nil)

func newFakeRepo() *fakeRepo {
	return &fakeRepo{}
}

func (f *fakeRepo) id() int64 {
	f.nextID++
	return f.nextID
}

func uniqueViolation() error {
	return &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}
}

func (f *fakeRepo) CreateDonorLink(ctx context.Context, arg repository.CreateDonorLinkParams) (repository.DonorLink, error) {
	for _, l := range f.donorLinks {
		if l.StripeCustomerID == arg.StripeCustomerID {
			return repository.DonorLink{}, uniqueViolation()
		}
	}
	link := repository.DonorLink{ID: f.id(), StripeCustomerID: arg.StripeCustomerID, VoterID: arg.VoterID}
	f.donorLinks = append(f.donorLinks, link)
	return link, nil
}

func (f *fakeRepo) GetDonorLinkByVoter(ctx context.Context, voterID string) (repository.DonorLink, error) {
	for _, l := range f.donorLinks {
		if l.VoterID == voterID {
			return l, nil
		}
	}
	return repository.DonorLink{}, pgx.ErrNoRows
}

func (f *fakeRepo) GetDonationPlan(ctx context.Context, arg repository.GetDonationPlanParams) (repository.DonationPlan, error) {
	for _, p := range f.plans {
		if p.PlanID == arg.PlanID && p.BaseCost == arg.BaseCost &&
			p.IsOrganizationPlan == arg.IsOrganizationPlan &&
			p.VoterID == arg.VoterID && p.OrganizationID == arg.OrganizationID {
			return p, nil
		}
	}
	return repository.DonationPlan{}, pgx.ErrNoRows
}

func (f *fakeRepo) CreateDonationPlan(ctx context.Context, arg repository.CreateDonationPlanParams) (repository.DonationPlan, error) {
	for _, p := range f.plans {
		if arg.VoterID.Valid && p.VoterID == arg.VoterID {
			return repository.DonationPlan{}, uniqueViolation()
		}
		if arg.OrganizationID.Valid && p.OrganizationID == arg.OrganizationID {
			return repository.DonationPlan{}, uniqueViolation()
		}
	}
	plan := repository.DonationPlan{
		ID:                 f.id(),
		PlanID:             arg.PlanID,
		PlanName:           arg.PlanName,
		BaseCost:           arg.BaseCost,
		BillingInterval:    arg.BillingInterval,
		Currency:           arg.Currency,
		IsActive:           arg.IsActive,
		IsOrganizationPlan: arg.IsOrganizationPlan,
		VoterID:            arg.VoterID,
		OrganizationID:     arg.OrganizationID,
		CouponPlanID:       arg.CouponPlanID,
	}
	f.plans = append(f.plans, plan)
	return plan, nil
}

func (f *fakeRepo) GetLatestCouponPlan(ctx context.Context, arg repository.GetLatestCouponPlanParams) (repository.CouponPlan, error) {
	var best repository.CouponPlan
	found := false
	for _, c := range f.coupons {
		if c.PlanType != arg.PlanType || c.CouponCode != arg.CouponCode {
			continue
		}
		if !found || c.CreatedAt.After(best.CreatedAt) {
			best = c
			found = true
		}
	}
	if !found {
		return repository.CouponPlan{}, pgx.ErrNoRows
	}
	return best, nil
}

func (f *fakeRepo) CreateCouponPlan(ctx context.Context, arg repository.CreateCouponPlanParams) (repository.CouponPlan, error) {
	coupon := repository.CouponPlan{
		ID:                 f.id(),
		CouponCode:         arg.CouponCode,
		PlanType:           arg.PlanType,
		ExpiresAt:          arg.ExpiresAt,
		CreatedAt:          time.Now(),
		HiddenComment:      arg.HiddenComment,
		AppliedMessage:     arg.AppliedMessage,
		MonthlyPriceStripe: arg.MonthlyPriceStripe,
		AnnualPriceStripe:  arg.AnnualPriceStripe,
		FeaturesBitmap:     arg.FeaturesBitmap,
	}
	f.coupons = append(f.coupons, coupon)
	return coupon, nil
}

func (f *fakeRepo) ListCouponPlans(ctx context.Context) ([]repository.CouponPlan, error) {
	out := make([]repository.CouponPlan, len(f.coupons))
	copy(out, f.coupons)
	return out, nil
}

func (f *fakeRepo) CreateJournalEntry(ctx context.Context, arg repository.CreateJournalEntryParams) (repository.DonationJournal, error) {
	if f.createJournalErr != nil {
		return repository.DonationJournal{}, f.createJournalErr
	}
	entry := repository.DonationJournal{
		ID:                     f.id(),
		RecordKind:             arg.RecordKind,
		VoterID:                arg.VoterID,
		NotLoggedInVoterID:     arg.NotLoggedInVoterID,
		StripeCustomerID:       arg.StripeCustomerID,
		ChargeID:               arg.ChargeID,
		SubscriptionID:         arg.SubscriptionID,
		Amount:                 arg.Amount,
		Currency:               arg.Currency,
		Funding:                arg.Funding,
		Livemode:               arg.Livemode,
		ActionTaken:            arg.ActionTaken,
		ActionResult:           arg.ActionResult,
		Created:                arg.Created,
		FailureCode:            arg.FailureCode,
		FailureMessage:         arg.FailureMessage,
		NetworkStatus:          arg.NetworkStatus,
		Reason:                 arg.Reason,
		SellerMessage:          arg.SellerMessage,
		StripeType:             arg.StripeType,
		Paid:                   arg.Paid,
		AmountRefunded:         arg.AmountRefunded,
		RefundCount:            arg.RefundCount,
		Email:                  arg.Email,
		AddressZip:             arg.AddressZip,
		Brand:                  arg.Brand,
		Country:                arg.Country,
		ExpMonth:               arg.ExpMonth,
		ExpYear:                arg.ExpYear,
		Last4:                  arg.Last4,
		CardID:                 arg.CardID,
		StripeObject:           arg.StripeObject,
		StripeStatus:           arg.StripeStatus,
		Status:                 arg.Status,
		SubscriptionPlanID:     arg.SubscriptionPlanID,
		SubscriptionCreatedAt:  arg.SubscriptionCreatedAt,
		SubscriptionCanceledAt: arg.SubscriptionCanceledAt,
		SubscriptionEndedAt:    arg.SubscriptionEndedAt,
		IPAddress:              arg.IPAddress,
		LastCharged:            arg.LastCharged,
		IsOrganizationPlan:     arg.IsOrganizationPlan,
		PlanType:               arg.PlanType,
		CouponCode:             arg.CouponCode,
		OrganizationID:         arg.OrganizationID,
	}
	f.journal = append(f.journal, entry)
	return entry, nil
}

func (f *fakeRepo) ListJournalForVoter(ctx context.Context, voterID string) ([]repository.DonationJournal, error) {
	var out []repository.DonationJournal
	for _, e := range f.journal {
		if strings.EqualFold(e.VoterID, voterID) {
			out = append(out, e)
		}
	}
	// Newest first by event time.
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].Created.Time.After(out[i].Created.Time) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (f *fakeRepo) ListJournalForCustomer(ctx context.Context, stripeCustomerID string) ([]repository.DonationJournal, error) {
	var out []repository.DonationJournal
	for i := len(f.journal) - 1; i >= 0; i-- {
		if f.journal[i].StripeCustomerID == stripeCustomerID {
			out = append(out, f.journal[i])
		}
	}
	return out, nil
}

func (f *fakeRepo) JournalChargeExists(ctx context.Context, chargeID string) (bool, error) {
	for _, e := range f.journal {
		if e.ChargeID == chargeID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) CloseSubscription(ctx context.Context, arg repository.CloseSubscriptionParams) (int64, error) {
	var rows int64
	for i := range f.journal {
		if f.journal[i].SubscriptionID == arg.SubscriptionID &&
			f.journal[i].StripeCustomerID == arg.StripeCustomerID {
			f.journal[i].SubscriptionEndedAt = arg.SubscriptionEndedAt
			f.journal[i].SubscriptionCanceledAt = arg.SubscriptionCanceledAt
			rows++
		}
	}
	return rows, nil
}

func (f *fakeRepo) ReassignJournalVoter(ctx context.Context, arg repository.ReassignJournalVoterParams) (int64, error) {
	var rows int64
	for i := range f.journal {
		if strings.EqualFold(f.journal[i].VoterID, arg.FromVoterID) {
			f.journal[i].VoterID = arg.ToVoterID
			rows++
		}
	}
	return rows, nil
}

func (f *fakeRepo) GetNewestJournalAwaitingCard(ctx context.Context, subscriptionPlanID string) (repository.DonationJournal, error) {
	for i := len(f.journal) - 1; i >= 0; i-- {
		if f.journal[i].SubscriptionPlanID == subscriptionPlanID && f.journal[i].Last4 == 0 {
			return f.journal[i], nil
		}
	}
	return repository.DonationJournal{}, pgx.ErrNoRows
}

func (f *fakeRepo) UpdateJournalCardDetails(ctx context.Context, arg repository.UpdateJournalCardDetailsParams) error {
	for i := range f.journal {
		if f.journal[i].ID == arg.ID {
			f.journal[i].Amount = arg.Amount
			f.journal[i].Currency = arg.Currency
			f.journal[i].CardID = arg.CardID
			f.journal[i].AddressZip = arg.AddressZip
			f.journal[i].Brand = arg.Brand
			f.journal[i].Country = arg.Country
			f.journal[i].ExpMonth = arg.ExpMonth
			f.journal[i].ExpYear = arg.ExpYear
			f.journal[i].Last4 = arg.Last4
			f.journal[i].Funding = arg.Funding
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (f *fakeRepo) GetJournalByChargeForVoter(ctx context.Context, arg repository.GetJournalByChargeForVoterParams) (repository.DonationJournal, error) {
	for _, e := range f.journal {
		if strings.EqualFold(e.ChargeID, arg.ChargeID) && strings.EqualFold(e.VoterID, arg.VoterID) {
			return e, nil
		}
	}
	return repository.DonationJournal{}, pgx.ErrNoRows
}

func (f *fakeRepo) GetJournalByCharge(ctx context.Context, chargeID string) (repository.DonationJournal, error) {
	for _, e := range f.journal {
		if e.ChargeID == chargeID {
			return e, nil
		}
	}
	return repository.DonationJournal{}, pgx.ErrNoRows
}

func (f *fakeRepo) UpdateJournalRefund(ctx context.Context, arg repository.UpdateJournalRefundParams) error {
	for i := range f.journal {
		if f.journal[i].ID == arg.ID {
			f.journal[i].Status = arg.Status
			f.journal[i].AmountRefunded = arg.AmountRefunded
			f.journal[i].StripeStatus = arg.StripeStatus
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (f *fakeRepo) SetJournalLastCharged(ctx context.Context, arg repository.SetJournalLastChargedParams) (int64, error) {
	var rows int64
	for i := range f.journal {
		if f.journal[i].SubscriptionID == arg.SubscriptionID &&
			f.journal[i].RecordKind == arg.RecordKind {
			f.journal[i].LastCharged = arg.LastCharged
			rows++
		}
	}
	return rows, nil
}

func (f *fakeRepo) CreateInvoice(ctx context.Context, arg repository.CreateInvoiceParams) (repository.DonationInvoice, error) {
	invoice := repository.DonationInvoice{
		ID:               f.id(),
		SubscriptionID:   arg.SubscriptionID,
		PlanID:           arg.PlanID,
		InvoiceID:        arg.InvoiceID,
		InvoiceDate:      arg.InvoiceDate,
		StripeCustomerID: arg.StripeCustomerID,
	}
	f.invoices = append(f.invoices, invoice)
	return invoice, nil
}

func (f *fakeRepo) GetInvoiceByInvoiceID(ctx context.Context, invoiceID string) (repository.DonationInvoice, error) {
	f.invoiceLookupCalls++
	if f.invoiceLookupFailures > 0 {
		f.invoiceLookupFailures--
		return repository.DonationInvoice{}, pgx.ErrNoRows
	}
	for _, inv := range f.invoices {
		if inv.InvoiceID == invoiceID {
			return inv, nil
		}
	}
	return repository.DonationInvoice{}, pgx.ErrNoRows
}

func (f *fakeRepo) DeleteInvoicesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var kept []repository.DonationInvoice
	var purged int64
	for _, inv := range f.invoices {
		if inv.InvoiceDate.Valid && inv.InvoiceDate.Time.Before(cutoff) {
			purged++
			continue
		}
		kept = append(kept, inv)
	}
	f.invoices = kept
	return purged, nil
}

// journalTimestamp builds a valid event timestamp for seeded rows.
func journalTimestamp(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}
