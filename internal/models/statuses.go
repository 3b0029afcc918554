package models

type UserStatus string
type UserRole string
type Plan string
type SubscriptionProvider string
type ChatRole string

const (
	UserStatusPending   UserStatus = "pending"
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"

	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"

	PlanFree    Plan = "free"
	PlanPremium Plan = "premium"

	ProviderStripe SubscriptionProvider = "stripe"
	ProviderApple  SubscriptionProvider = "apple"
	ProviderManual SubscriptionProvider = "manual"

	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// Stripe subscription statuses this backend reacts to. Anything else is
// passed through to UserSubscription.Status untouched.
const (
	SubStatusActive   = "active"
	SubStatusTrialing = "trialing"
	SubStatusCanceled = "canceled"
	SubStatusUnpaid   = "unpaid"
	SubStatusPastDue  = "past_due"
)
