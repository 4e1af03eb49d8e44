package model

import (
	"time"
)

type Subscription struct {
	ID                 string     `db:"id" json:"id"` // provider subscription id
	UserID             string     `db:"user_id" json:"userId"`
	Provider           string     `db:"provider" json:"provider"`
	Status             string     `db:"status" json:"status"`
	Tier               string     `db:"tier" json:"tier"`
	ProviderCustomerID *string    `db:"provider_customer_id" json:"-"`
	ProviderProductID  *string    `db:"provider_product_id" json:"-"`
	CurrentPeriodStart *time.Time `db:"current_period_start" json:"currentPeriodStart,omitempty"`
	CurrentPeriodEnd   *time.Time `db:"current_period_end" json:"currentPeriodEnd,omitempty"`
	CancelAtPeriodEnd  bool       `db:"cancel_at_period_end" json:"cancelAtPeriodEnd"`
	CreatedAt          time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updatedAt"`
}

const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusCanceled = "canceled"
	SubscriptionStatusPastDue  = "past_due"
)

const (
	ProviderPolar  = "polar"
	ProviderStripe = "stripe"
)

const (
	TierFree = "free"
	TierPro  = "pro"
)

const (
	FeatureExport    = "export"
	FeatureBreakdown = "breakdown"
)

// IsPro reports whether the subscription grants Pro access at now.
// The period end is exclusive.
func (s *Subscription) IsPro(now time.Time) bool {
	if s == nil || s.Tier != TierPro || s.Status != SubscriptionStatusActive {
		return false
	}
	return s.CurrentPeriodEnd == nil || now.Before(*s.CurrentPeriodEnd)
}

// GoalLimit returns the maximum number of active goals, -1 for unlimited.
func (s *Subscription) GoalLimit(now time.Time, freeLimit int) int {
	if s.IsPro(now) {
		return -1
	}
	return freeLimit
}

// HasFeature checks whether the subscription unlocks a Pro-only feature.
func (s *Subscription) HasFeature(feature string, now time.Time) bool {
	switch feature {
	case FeatureExport, FeatureBreakdown:
		return s.IsPro(now)
	}
	return false
}
