package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/openballot/donate/internal/service"
)

// DonationHandler exposes donation and coupon operations over HTTP.
type DonationHandler struct {
	donations service.DonationService
	logger    *slog.Logger
}

// NewDonationHandler creates a new donation API handler
func NewDonationHandler(donations service.DonationService, logger *slog.Logger) *DonationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DonationHandler{
		donations: donations,
		logger:    logger,
	}
}

// History handles GET /api/v1/donations?voter_id=...
//
// Returns the voter's journal entries, newest first. An empty history is
// a 200 with an empty list.
func (h *DonationHandler) History(w http.ResponseWriter, r *http.Request) {
	voterID := r.URL.Query().Get("voter_id")
	if voterID == "" {
		writeError(w, http.StatusBadRequest, "voter_id is required")
		return
	}

	result := h.donations.DonationHistory(r.Context(), voterID)
	if !result.Success {
		h.logger.Error("donation history failed", "voter_id", voterID, "status", result.Status)
		writeError(w, http.StatusInternalServerError, "could not retrieve donation history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"status":  result.Status,
		"entries": result.Entries,
	})
}

// ValidateCoupon handles GET /api/v1/coupons/validate?plan_type=...&coupon_code=...
func (h *DonationHandler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	planType := r.URL.Query().Get("plan_type")
	couponCode := r.URL.Query().Get("coupon_code")
	if planType == "" || couponCode == "" {
		writeError(w, http.StatusBadRequest, "plan_type and coupon_code are required")
		return
	}

	result := h.donations.ValidateCoupon(r.Context(), planType, couponCode)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":                result.Success,
		"status":                 result.Status,
		"coupon_match_found":     result.CouponMatchFound,
		"coupon_still_valid":     result.CouponStillValid,
		"monthly_price_stripe":   result.MonthlyPriceStripe,
		"annual_price_stripe":    result.AnnualPriceStripe,
		"coupon_applied_message": result.CouponAppliedMessage,
	})
}

// ListCouponPlans handles GET /api/v1/coupons/plans
func (h *DonationHandler) ListCouponPlans(w http.ResponseWriter, r *http.Request) {
	result := h.donations.ListCouponPlans(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"success": result.Success,
		"status":  result.Status,
		"plans":   result.Plans,
	})
}

// subscribeRequest is the POST body for creating a recurring donation.
type subscribeRequest struct {
	StripeCustomerID   string `json:"stripe_customer_id"`
	VoterID            string `json:"voter_id"`
	Amount             string `json:"amount"`
	Email              string `json:"email"`
	IsOrganizationPlan bool   `json:"is_organization_plan"`
	CouponCode         string `json:"coupon_code"`
	PlanType           string `json:"plan_type"`
	OrganizationID     string `json:"organization_id"`
}

// Subscribe handles POST /api/v1/donations/subscription
func (h *DonationHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.VoterID == "" || req.StripeCustomerID == "" {
		writeError(w, http.StatusBadRequest, "voter_id and stripe_customer_id are required")
		return
	}
	amount, err := strconv.ParseInt(req.Amount, 10, 64)
	if err != nil || amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be a positive integer of cents")
		return
	}

	result := h.donations.CreateRecurringDonation(r.Context(), service.RecurringDonationParams{
		StripeCustomerID:   req.StripeCustomerID,
		VoterID:            req.VoterID,
		AmountCents:        amount,
		Email:              req.Email,
		IsOrganizationPlan: req.IsOrganizationPlan,
		CouponCode:         req.CouponCode,
		PlanType:           req.PlanType,
		OrganizationID:     req.OrganizationID,
	})

	// Declines and duplicate organization plans are reported in-band;
	// the HTTP layer stays 200 so the client reads the status.
	writeJSON(w, http.StatusOK, map[string]any{
		"success":                 result.Success,
		"status":                  result.Status,
		"org_subs_already_exists": result.OrgSubsAlreadyExists,
		"subscription_plan_id":    result.SubscriptionPlanID,
		"subscription_id":         result.SubscriptionID,
		"subscription_created_at": result.SubscriptionCreatedAt,
	})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"success": false, "error": msg})
}
