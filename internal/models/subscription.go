package models

import "time"

// UserSubscription is the reconciliation anchor between the local plan flag
// and the payment provider's view. One row per user; Stripe webhooks and
// Apple receipt verifications upsert into it independently.
type UserSubscription struct {
	BaseModel
	UserID   string               `gorm:"type:uuid;not null;uniqueIndex"`
	Provider SubscriptionProvider `gorm:"type:varchar(20);not null"`
	Status   string               `gorm:"type:varchar(30)"`

	// Stripe identifiers
	StripeCustomerID     string `gorm:"type:varchar(120);index"`
	StripeSubscriptionID string `gorm:"type:varchar(120);index"`

	// Apple: latest expiry extracted from the verified receipt. Tracked
	// separately from User.TrialEnd; both feed the entitlement resolver.
	AppleExpiresAt *time.Time
}
