package model

import "time"

// Plan tiers. Free is the absence of a paid tier; it never produces a
// subscription row.
const (
	TierFree       = "free"
	TierPremium    = "premium"
	TierEnterprise = "enterprise"
)

// PaidTier reports whether plan is a tier that grants subscription access.
func PaidTier(plan string) bool {
	return plan == TierPremium || plan == TierEnterprise
}

// Subscription statuses. Rows are never deleted; terminal states are soft.
const (
	StatusActive    = "active"
	StatusPastDue   = "past_due"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"
)

type Account struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	Plan             string    `json:"plan"`
	StripeCustomerID *string   `json:"stripe_customer_id"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type Subscription struct {
	ID                   int64      `json:"id"`
	AccountID            string     `json:"account_id"`
	Email                string     `json:"email"`
	Plan                 string     `json:"plan"`
	Status               string     `json:"status"`
	StripeSubscriptionID *string    `json:"stripe_subscription_id"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

type CoursePurchase struct {
	ID              int64     `json:"id"`
	AccountID       string    `json:"account_id"`
	Email           string    `json:"email"`
	CourseSlug      string    `json:"course_slug"`
	StripeSessionID *string   `json:"stripe_session_id"`
	CreatedAt       time.Time `json:"created_at"`
}

type NewsletterSubscriber struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
