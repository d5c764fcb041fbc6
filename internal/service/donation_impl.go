package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/openballot/donate/internal/billing"
	"github.com/openballot/donate/internal/domain"
	"github.com/openballot/donate/internal/repository"
	"github.com/openballot/donate/internal/telemetry"
)

// invoiceRetentionDays is how long staged invoice rows are kept for
// diagnosis before the housekeeping purge removes them.
const invoiceRetentionDays = 10

// retryWaitDefault is how long ApplyChargeToSubscription blocks before its
// single retry when the charge event outruns the invoice event.
const retryWaitDefault = 10 * time.Second

// donationService implements DonationService.
type donationService struct {
	repo     repository.Querier
	provider billing.Provider
	logger   *slog.Logger

	// retryWait is the blocking pause between the two staged-invoice
	// lookups. Tests shrink it.
	retryWait time.Duration
}

// NewDonationService creates a new DonationService instance.
func NewDonationService(repo repository.Querier, provider billing.Provider, logger *slog.Logger) DonationService {
	return &donationService{
		repo:      repo,
		provider:  provider,
		logger:    logger,
		retryWait: retryWaitDefault,
	}
}

func (s *donationService) CreateRecurringDonation(ctx context.Context, params RecurringDonationParams) RecurringDonationResult {
	orgSegment := ""
	if params.IsOrganizationPlan {
		orgSegment = "organization-"
	}
	planID := params.VoterID + "-monthly-" + orgSegment + strconv.FormatInt(params.AmountCents, 10)

	planResult := s.RetrieveOrCreatePlan(ctx, PlanParams{
		VoterID:            params.VoterID,
		PlanID:             planID,
		AmountCents:        params.AmountCents,
		IsOrganizationPlan: params.IsOrganizationPlan,
		CouponCode:         params.CouponCode,
		PlanType:           params.PlanType,
		OrganizationID:     params.OrganizationID,
	})
	if planResult.OrgSubsAlreadyExists || !planResult.Success {
		// An organization may not hold two concurrent plans at the same
		// price point; hand the plan outcome back without a gateway call.
		return RecurringDonationResult{
			Success:              planResult.Success,
			Status:               planResult.Status,
			OrgSubsAlreadyExists: planResult.OrgSubsAlreadyExists,
			SubscriptionPlanID:   planResult.PlanID,
		}
	}

	// The voter id rides along as metadata so anonymous subscriptions can
	// be associated with a logged-in identity later.
	sub, err := s.provider.CreateSubscription(ctx, billing.CreateSubscriptionParams{
		CustomerID: params.StripeCustomerID,
		PlanID:     planID,
		Metadata: map[string]string{
			"voter_id": params.VoterID,
			"email":    params.Email,
		},
	})
	if err != nil {
		var stripeErr *billing.StripeError
		if errors.As(err, &stripeErr) {
			msg := stripeErr.Message
			if stripeErr.IsDeclined() {
				msg = billing.CardErrorMessage(stripeErr.DeclineCode)
			}
			status := "STRIPE_ERROR_IS_" + msg + "_END"
			s.logger.Error("recurring donation subscription failed",
				"voter_id", params.VoterID, "status", status)
			return RecurringDonationResult{Status: status}
		}
		telemetry.CaptureError(err, map[string]interface{}{"voter_id": params.VoterID})
		s.logger.Error("recurring donation subscription failed", "error", err)
		return RecurringDonationResult{Status: "SUBSCRIPTION_CREATE_FAILED "}
	}

	return RecurringDonationResult{
		Success:               true,
		Status:                planResult.Status + "USER_SUCCESSFULLY_SUBSCRIBED_TO_PLAN ",
		SubscriptionPlanID:    planID,
		SubscriptionID:        sub.ID,
		SubscriptionCreatedAt: sub.CreatedAt,
	}
}

func (s *donationService) RetrieveOrCreatePlan(ctx context.Context, params PlanParams) PlanResult {
	result := PlanResult{PlanID: params.PlanID}
	amount := params.AmountCents
	couponPlanID := int64(0)

	if params.IsOrganizationPlan {
		// The caller-supplied amount is advisory for organization plans;
		// the latest coupon version sets the real price.
		price, id, err := s.CouponPrice(ctx, params.PlanType, params.CouponCode)
		if err != nil {
			telemetry.CaptureError(err, map[string]interface{}{"coupon_code": params.CouponCode})
			s.logger.Error("coupon price lookup failed", "coupon_code", params.CouponCode, "error", err)
			result.Status = "COUPON_PRICE_LOOKUP_FAILED "
			return result
		}
		amount = price
		couponPlanID = id
	}

	planIdentity := repository.GetDonationPlanParams{
		PlanID:             params.PlanID,
		BaseCost:           amount,
		IsOrganizationPlan: params.IsOrganizationPlan,
		VoterID:            textValue(params.VoterID),
		OrganizationID:     textValue(params.OrganizationID),
	}
	_, err := s.repo.GetDonationPlan(ctx, planIdentity)
	switch {
	case err == nil:
		result.Success = true
		result.Status += "DONATION_PLAN_ALREADY_EXISTS_IN_DATABASE "
	case errors.Is(err, pgx.ErrNoRows):
		_, err = s.repo.CreateDonationPlan(ctx, repository.CreateDonationPlanParams{
			PlanID:             params.PlanID,
			PlanName:           params.PlanID,
			BaseCost:           amount,
			BillingInterval:    "monthly",
			Currency:           domain.CurrencyUSD,
			IsActive:           true,
			IsOrganizationPlan: params.IsOrganizationPlan,
			VoterID:            textValue(params.VoterID),
			OrganizationID:     textValue(params.OrganizationID),
			CouponPlanID:       couponPlanID,
		})
		if err != nil {
			if repository.IsUniqueViolation(err) && params.IsOrganizationPlan {
				// The organization already holds a plan at this price
				// point. Report it as a distinct success, not a failure.
				result.Success = true
				result.OrgSubsAlreadyExists = true
				result.Status += "ORGANIZATION_SUBSCRIPTION_ALREADY_EXISTS "
				return result
			}
			telemetry.CaptureError(err, map[string]interface{}{"plan_id": params.PlanID})
			s.logger.Error("donation plan create failed", "plan_id", params.PlanID, "error", err)
			result.Status += "SUBSCRIPTION_PLAN_NOT_CREATED_IN_DATABASE "
			return result
		}
		result.Success = true
		result.Status += "SUBSCRIPTION_PLAN_CREATED_IN_DATABASE "
	default:
		telemetry.CaptureError(err, map[string]interface{}{"plan_id": params.PlanID})
		s.logger.Error("donation plan lookup failed", "plan_id", params.PlanID, "error", err)
		result.Status += "SUBSCRIPTION_PLAN_LOOKUP_FAILED "
		return result
	}

	// The plan has to exist in two places: the database and the gateway.
	// Gateway plan ids are not get-or-create, so check before creating.
	_, err = s.provider.GetPlan(ctx, params.PlanID)
	if err != nil {
		if !errors.Is(err, billing.ErrPlanNotFound) {
			s.logger.Error("gateway plan lookup failed", "plan_id", params.PlanID, "error", err)
		}
		_, err = s.provider.CreatePlan(ctx, billing.CreatePlanParams{
			PlanID:      params.PlanID,
			AmountCents: amount,
			Currency:    domain.CurrencyUSD,
			Interval:    "month",
			ProductName: params.PlanID,
		})
		if err != nil {
			s.logger.Error("gateway plan create failed", "plan_id", params.PlanID, "error", err)
			result.Success = false
			result.Status += "SUBSCRIPTION_PLAN_NOT_CREATED_IN_STRIPE "
			return result
		}
		result.Status += "SUBSCRIPTION_PLAN_CREATED_IN_STRIPE "
	}

	return result
}

func (s *donationService) ValidateCoupon(ctx context.Context, planType, couponCode string) CouponValidation {
	coupon, err := s.repo.GetLatestCouponPlan(ctx, repository.GetLatestCouponPlanParams{
		PlanType:   planType,
		CouponCode: couponCode,
	})
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			s.logger.Error("coupon lookup failed", "coupon_code", couponCode, "error", err)
		}
		return CouponValidation{Status: "COUPON_MATCH_NOT_FOUND "}
	}

	result := CouponValidation{
		Success:              true,
		Status:               "COUPON_MATCH_FOUND ",
		CouponMatchFound:     true,
		CouponAppliedMessage: coupon.AppliedMessage,
	}
	if !coupon.ExpiresAt.Valid {
		result.CouponStillValid = true
	} else if dateAsInteger(time.Now()) <= dateAsInteger(coupon.ExpiresAt.Time) {
		// Day granularity; a coupon expiring today is still usable.
		result.CouponStillValid = true
	}
	if strings.Contains(planType, "MONTHLY") {
		result.MonthlyPriceStripe = coupon.MonthlyPriceStripe
	} else {
		result.AnnualPriceStripe = coupon.AnnualPriceStripe
	}
	return result
}

func (s *donationService) CouponPrice(ctx context.Context, planType, couponCode string) (int64, int64, error) {
	coupon, err := s.repo.GetLatestCouponPlan(ctx, repository.GetLatestCouponPlanParams{
		PlanType:   planType,
		CouponCode: couponCode,
	})
	if err != nil {
		// The coupon is validated before pricing, so a miss here is a
		// contract violation by the caller.
		return 0, 0, domain.WrapError(err, domain.ENOTFOUND, "coupon.price",
			fmt.Sprintf("no coupon version for %s/%s", planType, couponCode))
	}
	if strings.Contains(planType, "MONTHLY") {
		return coupon.MonthlyPriceStripe, coupon.ID, nil
	}
	return coupon.AnnualPriceStripe, coupon.ID, nil
}

// defaultCoupons are inserted on startup so a fresh database always has a
// usable catalog. The DEFAULT-* rows price plans created without a coupon.
var defaultCoupons = []repository.CreateCouponPlanParams{
	{
		CouponCode:         domain.CouponDefaultEnterpriseMonthly,
		PlanType:           domain.PlanTypeEnterpriseMonthly,
		HiddenComment:      "not visible on screen, since this is a default",
		MonthlyPriceStripe: 1667,
		AnnualPriceStripe:  0,
		FeaturesBitmap:     1,
	},
	{
		CouponCode:         domain.CouponDefaultProfessionalMonthly,
		PlanType:           domain.PlanTypeProfessionalMonthly,
		HiddenComment:      "not visible on screen, since this is a default",
		MonthlyPriceStripe: 1250,
		AnnualPriceStripe:  0,
		FeaturesBitmap:     1,
	},
	{
		CouponCode:         domain.CouponTwentyFiveOff,
		PlanType:           domain.PlanTypeProfessionalMonthly,
		AppliedMessage:     "Coupon applied.  Deducted $25 per month.",
		MonthlyPriceStripe: 1250,
		AnnualPriceStripe:  0,
		FeaturesBitmap:     1,
	},
}

func (s *donationService) SeedDefaultCoupons(ctx context.Context) error {
	for _, seed := range defaultCoupons {
		_, err := s.repo.GetLatestCouponPlan(ctx, repository.GetLatestCouponPlanParams{
			PlanType:   seed.PlanType,
			CouponCode: seed.CouponCode,
		})
		if err == nil {
			continue
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("seed coupon lookup %s: %w", seed.CouponCode, err)
		}
		if _, err := s.repo.CreateCouponPlan(ctx, seed); err != nil {
			return fmt.Errorf("seed coupon %s: %w", seed.CouponCode, err)
		}
		s.logger.Info("seeded default coupon", "coupon_code", seed.CouponCode)
	}
	return nil
}

func (s *donationService) ListCouponPlans(ctx context.Context) CouponPlanListResult {
	plans, err := s.repo.ListCouponPlans(ctx)
	if err != nil {
		telemetry.CaptureError(err)
		s.logger.Error("coupon plan list failed", "error", err)
		return CouponPlanListResult{Status: "FAILED_TO_RETRIEVE_ORGANIZATION_SUBSCRIPTION_PLANS_LIST "}
	}
	if len(plans) == 0 {
		return CouponPlanListResult{Status: "NO_ORGANIZATION_SUBSCRIPTION_PLAN_EXISTS "}
	}
	return CouponPlanListResult{
		Success: true,
		Status:  "ORGANIZATION_SUBSCRIPTION_PLANS_LIST_RETRIEVED ",
		Plans:   plans,
	}
}

func (s *donationService) AppendJournalEntry(ctx context.Context, params repository.CreateJournalEntryParams) JournalEntryResult {
	entry, err := s.repo.CreateJournalEntry(ctx, params)
	if err != nil {
		s.logger.Error("journal entry insert failed", "voter_id", params.VoterID, "error", err)
		return JournalEntryResult{}
	}
	return JournalEntryResult{
		Success: true,
		Status:  "NEW_HISTORY_ENTRY_SAVED",
		Entry:   entry,
	}
}

func (s *donationService) DonationHistory(ctx context.Context, voterID string) DonationHistoryResult {
	entries, err := s.repo.ListJournalForVoter(ctx, voterID)
	if err != nil {
		s.logger.Error("donation history lookup failed", "voter_id", voterID, "error", err)
		return DonationHistoryResult{Status: " FAILED_TO_RETRIEVE_DONATION_HISTORY_LIST "}
	}
	if len(entries) == 0 {
		return DonationHistoryResult{Success: true, Status: " NO_HISTORY_EXISTS_FOR_THIS_VOTER "}
	}
	return DonationHistoryResult{
		Success: true,
		Status:  " DONATION_HISTORY_LIST_RETRIEVED ",
		Entries: entries,
	}
}

func (s *donationService) ChargeExists(ctx context.Context, chargeID string) (bool, bool) {
	exists, err := s.repo.JournalChargeExists(ctx, chargeID)
	if err != nil {
		telemetry.CaptureError(err, map[string]interface{}{"charge_id": chargeID})
		s.logger.Error("charge existence check failed", "charge_id", chargeID, "error", err)
		return false, true
	}
	return exists, true
}

func (s *donationService) MarkSubscriptionClosed(ctx context.Context, params SubscriptionClosedParams) bool {
	rows, err := s.repo.CloseSubscription(ctx, repository.CloseSubscriptionParams{
		SubscriptionID:         params.SubscriptionID,
		StripeCustomerID:       params.CustomerID,
		SubscriptionEndedAt:    timestamp(params.EndedAt),
		SubscriptionCanceledAt: timestamp(params.CanceledAt),
	})
	if err != nil {
		telemetry.CaptureError(err, map[string]interface{}{"subscription_id": params.SubscriptionID})
		s.logger.Error("mark subscription closed failed", "subscription_id", params.SubscriptionID, "error", err)
		return false
	}
	if rows == 0 {
		s.logger.Error("mark subscription closed: no matching row",
			"subscription_id", params.SubscriptionID, "customer_id", params.CustomerID)
		return false
	}
	return true
}

func (s *donationService) MoveDonations(ctx context.Context, fromVoterID, toVoterID string) MoveDonationsResult {
	result := MoveDonationsResult{FromVoterID: fromVoterID, ToVoterID: toVoterID}

	rows, err := s.repo.ReassignJournalVoter(ctx, repository.ReassignJournalVoterParams{
		FromVoterID: fromVoterID,
		ToVoterID:   toVoterID,
	})
	if err != nil {
		telemetry.CaptureError(err, map[string]interface{}{"from": fromVoterID, "to": toVoterID})
		result.Status = " EXCEPTION-IN-MOVE-DONATIONS-BETWEEN-DONORS "
		s.logger.Error("move donations failed", "from", fromVoterID, "to", toVoterID, "error", err)
		return result
	}
	if rows == 0 {
		// Anonymous donors rarely transact, so nothing to move is normal.
		result.Status = " NO-DONATIONS-TO-MOVE-FROM-" + fromVoterID + "-TO-" + toVoterID + " "
		s.logger.Debug("move donations", "status", result.Status)
		return result
	}
	result.Success = true
	result.Status = "MOVED-DONATIONS-FROM-" + fromVoterID + "-TO-" + toVoterID + " "
	s.logger.Debug("move donations", "status", result.Status)
	return result
}

func (s *donationService) SubscriptionRowAwaitingCard(ctx context.Context, customerID, planID string) int64 {
	row, err := s.repo.GetNewestJournalAwaitingCard(ctx, planID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			s.logger.Error("subscription row lookup failed", "customer_id", customerID, "error", err)
		}
		return -1
	}
	return row.ID
}

func (s *donationService) AttachCardDetails(ctx context.Context, params CardDetailsParams) {
	err := s.repo.UpdateJournalCardDetails(ctx, repository.UpdateJournalCardDetailsParams{
		ID:         params.RowID,
		Amount:     params.Amount,
		Currency:   params.Currency,
		CardID:     params.CardID,
		AddressZip: params.AddressZip,
		Brand:      params.Brand,
		Country:    params.Country,
		ExpMonth:   params.ExpMonth,
		ExpYear:    params.ExpYear,
		Last4:      params.Last4,
		Funding:    params.Funding,
	})
	if err != nil {
		// Best effort; the workflow continues without card metadata.
		s.logger.Error("attach card details failed", "row_id", params.RowID, "error", err)
		return
	}
	s.logger.Debug("attached card details", "row_id", params.RowID, "amount", params.Amount)
}

func (s *donationService) VoterForCustomer(ctx context.Context, stripeCustomerID string) string {
	rows, err := s.repo.ListJournalForCustomer(ctx, stripeCustomerID)
	if err != nil {
		s.logger.Error("voter lookup for customer failed", "customer_id", stripeCustomerID, "error", err)
		return ""
	}
	// Prefer the subscription setup row of a logged-in voter; fall back
	// to any anonymous id recorded against the customer.
	for _, row := range rows {
		if !row.NotLoggedInVoterID.Valid &&
			row.RecordKind == domain.RecordKindSubscriptionSetupInitial &&
			row.VoterID != "" {
			return row.VoterID
		}
	}
	for _, row := range rows {
		if row.NotLoggedInVoterID.Valid {
			return row.NotLoggedInVoterID.String
		}
	}
	return ""
}

func (s *donationService) RecordRefundRequested(ctx context.Context, params RefundParams) bool {
	if params.Amount <= 0 || params.Status != "succeeded" {
		s.logger.Error("refund request ignored: bad refund event",
			"charge_id", params.ChargeID, "voter_id", params.VoterID)
		return false
	}

	row, err := s.repo.GetJournalByChargeForVoter(ctx, repository.GetJournalByChargeForVoterParams{
		ChargeID: params.ChargeID,
		VoterID:  params.VoterID,
	})
	if err != nil {
		s.logger.Error("refund request: charge row not found",
			"charge_id", params.ChargeID, "voter_id", params.VoterID, "error", err)
		return false
	}

	clause := " CHARGE_REFUND_REQUESTED_" + strconv.FormatInt(params.Created, 10) +
		"_" + params.Currency + "_" + strconv.FormatInt(params.Amount, 10) +
		"_REFUND_ID" + params.RefundID + " "
	status := domain.AppendStatus(row.Status, clause)
	err = s.repo.UpdateJournalRefund(ctx, repository.UpdateJournalRefundParams{
		ID:             row.ID,
		Status:         status,
		AmountRefunded: params.Amount,
		StripeStatus:   domain.StripeStatusRefundPending,
	})
	if err != nil {
		telemetry.CaptureError(err, map[string]interface{}{"charge_id": params.ChargeID})
		s.logger.Error("refund request update failed", "charge_id", params.ChargeID, "error", err)
		return false
	}
	s.logger.Debug("refund requested", "charge_id", params.ChargeID, "status", status)
	return true
}

func (s *donationService) RecordRefundCompleted(ctx context.Context, chargeID string) bool {
	row, err := s.repo.GetJournalByCharge(ctx, chargeID)
	if err != nil {
		s.logger.Error("refund completion: charge row not found", "charge_id", chargeID, "error", err)
		return false
	}

	clause := "CHARGE_REFUNDED_" + time.Now().UTC().Format("2006-01-02 15:04:05") + " "
	status := domain.AppendStatus(row.Status, clause)
	err = s.repo.UpdateJournalRefund(ctx, repository.UpdateJournalRefundParams{
		ID:             row.ID,
		Status:         status,
		AmountRefunded: row.AmountRefunded,
		StripeStatus:   domain.StripeStatusRefunded,
	})
	if err != nil {
		telemetry.CaptureError(err, map[string]interface{}{"charge_id": chargeID})
		s.logger.Error("refund completion update failed", "charge_id", chargeID, "error", err)
		return false
	}
	s.logger.Debug("refund completed", "charge_id", chargeID, "status", status)
	return true
}

func (s *donationService) RecordRefundAlreadyRefunded(ctx context.Context, chargeID, voterID string) bool {
	row, err := s.repo.GetJournalByChargeForVoter(ctx, repository.GetJournalByChargeForVoterParams{
		ChargeID: chargeID,
		VoterID:  voterID,
	})
	if err != nil {
		s.logger.Error("already-refunded correction: charge row not found",
			"charge_id", chargeID, "voter_id", voterID, "error", err)
		return false
	}

	// Idempotent correction: the audit clause is appended at most once,
	// no matter how many duplicate events arrive.
	status := row.Status
	if !strings.Contains(status, "CHARGE_WAS_ALREADY_REFUNDED") {
		clause := "CHARGE_WAS_ALREADY_REFUNDED_" + time.Now().UTC().Format("2006-01-02 15:04:05") + " "
		status = domain.AppendStatus(status, clause)
	}
	err = s.repo.UpdateJournalRefund(ctx, repository.UpdateJournalRefundParams{
		ID:             row.ID,
		Status:         status,
		AmountRefunded: row.Amount,
		StripeStatus:   domain.StripeStatusRefunded,
	})
	if err != nil {
		telemetry.CaptureError(err, map[string]interface{}{"charge_id": chargeID})
		s.logger.Error("already-refunded correction failed", "charge_id", chargeID, "error", err)
		return false
	}
	s.logger.Debug("already-refunded correction applied", "charge_id", chargeID, "status", status)
	return true
}

func (s *donationService) CreateDonorLink(ctx context.Context, stripeCustomerID, voterID string) DonorLinkResult {
	if voterID == "" {
		return DonorLinkResult{Status: "MISSING_VOTER_ID"}
	}
	_, err := s.repo.CreateDonorLink(ctx, repository.CreateDonorLinkParams{
		StripeCustomerID: stripeCustomerID,
		VoterID:          voterID,
	})
	if err != nil {
		telemetry.CaptureError(err, map[string]interface{}{"voter_id": voterID})
		s.logger.Error("donor link create failed", "voter_id", voterID, "error", err)
		return DonorLinkResult{Status: "STRIPE_CUSTOMER_ID_NOT_SAVED "}
	}
	return DonorLinkResult{Success: true, Status: "STRIPE_CUSTOMER_ID_SAVED "}
}

func (s *donationService) StripeCustomerIDForVoter(ctx context.Context, voterID string) CustomerIDResult {
	link, err := s.repo.GetDonorLinkByVoter(ctx, voterID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CustomerIDResult{Status: "EXISTING_STRIPE_CUSTOMER_ID_NOT_FOUND"}
		}
		s.logger.Error("stripe customer id lookup failed", "voter_id", voterID, "error", err)
		return CustomerIDResult{Status: "STRIPE_CUSTOMER_ID_RETRIEVAL_ATTEMPT_FAILED"}
	}
	return CustomerIDResult{
		Success:          true,
		Status:           "STRIPE_CUSTOMER_ID_RETRIEVED",
		StripeCustomerID: link.StripeCustomerID,
	}
}

func (s *donationService) StageInvoice(ctx context.Context, params InvoiceParams) InvoiceResult {
	s.logger.Debug("staging invoice",
		"plan_id", params.PlanID, "subscription_id", params.SubscriptionID, "invoice_id", params.InvoiceID)

	_, err := s.repo.CreateInvoice(ctx, repository.CreateInvoiceParams{
		SubscriptionID:   params.SubscriptionID,
		PlanID:           params.PlanID,
		InvoiceID:        params.InvoiceID,
		InvoiceDate:      timestamp(params.InvoiceDate),
		StripeCustomerID: params.CustomerID,
	})
	if err != nil {
		s.logger.Error("invoice staging failed", "invoice_id", params.InvoiceID, "error", err)
		return InvoiceResult{}
	}
	return InvoiceResult{Success: true, Status: "NEW_INVOICE_ENTRY_SAVED"}
}

func (s *donationService) ApplyChargeToSubscription(ctx context.Context, invoiceID string, chargedAt time.Time) (string, error) {
	invoice, err := s.repo.GetInvoiceByInvoiceID(ctx, invoiceID)
	if err != nil {
		// The charge event sometimes lands a second before the invoice
		// event is staged, so block once and look again.
		s.logger.Debug("staged invoice not found, retrying after wait", "invoice_id", invoiceID)
		select {
		case <-time.After(s.retryWait):
		case <-ctx.Done():
			return "", ctx.Err()
		}
		invoice, err = s.repo.GetInvoiceByInvoiceID(ctx, invoiceID)
		if err != nil {
			return "", domain.WrapError(err, domain.ENOTFOUND, "invoice.fold",
				fmt.Sprintf("staged invoice %s", invoiceID))
		}
	}

	rows, err := s.repo.SetJournalLastCharged(ctx, repository.SetJournalLastChargedParams{
		SubscriptionID: invoice.SubscriptionID,
		RecordKind:     domain.RecordKindSubscriptionSetupInitial,
		LastCharged:    timestamp(chargedAt),
	})
	if err != nil {
		return "", domain.Internal(err, "invoice.fold", "could not stamp last charge")
	}
	if rows == 0 {
		return "", domain.NotFound("invoice.fold", "subscription setup row", invoice.SubscriptionID)
	}
	s.logger.Debug("applied charge to subscription",
		"invoice_id", invoiceID, "subscription_id", invoice.SubscriptionID)

	// Staged invoices are only needed for a minute or two; keep a few
	// days' worth for diagnosis and drop the rest.
	cutoff := time.Now().AddDate(0, 0, -invoiceRetentionDays)
	purged, err := s.repo.DeleteInvoicesBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("invoice purge failed", "error", err)
		return invoice.PlanID, nil
	}
	s.logger.Info("purged staged invoices", "count", purged, "older_than_days", invoiceRetentionDays)
	return invoice.PlanID, nil
}

// textValue builds a nullable text column value; empty strings map to NULL.
func textValue(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func timestamp(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

// dateAsInteger flattens a time to YYYYMMDD for day-granularity comparison.
func dateAsInteger(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}
