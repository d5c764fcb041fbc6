package domain

// Record kinds for donation journal entries. Every journal row carries
// exactly one of these; webhook folding and history queries discriminate
// on them.
const (
	RecordKindPaymentFromUI            = "PAYMENT_FROM_UI"
	RecordKindPaymentAutoSubscription  = "PAYMENT_AUTO_SUBSCRIPTION"
	RecordKindSubscriptionSetupInitial = "SUBSCRIPTION_SETUP_AND_INITIAL"
)

// RecordKinds lists all valid journal record kinds.
var RecordKinds = []string{
	RecordKindPaymentFromUI,
	RecordKindPaymentAutoSubscription,
	RecordKindSubscriptionSetupInitial,
}

// IsValidRecordKind checks if the given kind is a known journal record kind.
func IsValidRecordKind(kind string) bool {
	for _, k := range RecordKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Organization plan types. Coupon plans and journal rows are categorized
// by one of these.
const (
	PlanTypeFree                    = "FREE"
	PlanTypeProfessionalMonthly     = "PROFESSIONAL_MONTHLY"
	PlanTypeProfessionalYearly      = "PROFESSIONAL_YEARLY"
	PlanTypeProfessionalPaidOffline = "PROFESSIONAL_PAID_WITHOUT_STRIPE"
	PlanTypeEnterpriseMonthly       = "ENTERPRISE_MONTHLY"
	PlanTypeEnterpriseYearly        = "ENTERPRISE_YEARLY"

	// PlanTypeEnterprisePaidOffline carries the same literal as
	// PlanTypeEnterpriseYearly. Legacy rows were written under both names
	// with this value; changing it would orphan them, so the collision is
	// kept and documented here.
	PlanTypeEnterprisePaidOffline = "ENTERPRISE_YEARLY"
)

// Billing frequencies for donation plans.
const (
	BillingSameDayMonthly  = "SAME_DAY_MONTHLY"
	BillingSameDayAnnually = "SAME_DAY_ANNUALLY"
)

// Supported settlement currencies.
const (
	CurrencyUSD = "usd"
	CurrencyCAD = "cad"
)

// Gateway-facing status strings recorded on journal rows as refunds move
// through their lifecycle.
const (
	StripeStatusRefundPending = "refund pending"
	StripeStatusRefunded      = "refunded"
)

// Default coupon codes seeded on startup. The DEFAULT-* coupons never
// display in any user-facing list; they price plans created without a
// coupon code.
const (
	CouponDefaultEnterpriseMonthly   = "DEFAULT-ENTERPRISE_MONTHLY"
	CouponDefaultProfessionalMonthly = "DEFAULT-PROFESSIONAL_MONTHLY"
	CouponTwentyFiveOff              = "25OFF"
)
