package dto

import "time"

type BillingStatusResponse struct {
	Plan     string         `json:"plan"`
	TrialEnd *time.Time     `json:"trial_end"`
	Source   string         `json:"source"`
	Period   string         `json:"period"`
	Usage    map[string]int `json:"usage"`
	Limits   map[string]int `json:"limits,omitempty"`
}

type UpgradeRequest struct {
	Plan      string `json:"plan" validate:"required,oneof=free premium"`
	TrialDays int    `json:"trial_days" validate:"min=0,max=365"`
}

type IncrementUsageRequest struct {
	Metric string `json:"metric" validate:"required"`
}

type IncrementUsageResponse struct {
	Metric string `json:"metric"`
	Period string `json:"period"`
	Count  int    `json:"count"`
}

type AppleVerifyRequest struct {
	ReceiptData string `json:"receiptData" validate:"required"`
}

type AppleVerifyResponse struct {
	OK        bool       `json:"ok"`
	Plan      string     `json:"plan"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type CheckoutRequest struct {
	PriceID   string `json:"priceId" validate:"required,oneof=monthly yearly"`
	TrialDays int    `json:"trialDays" validate:"min=0,max=365"`
}

type CheckoutResponse struct {
	SessionID  string `json:"sessionId"`
	SessionURL string `json:"sessionUrl"`
}

type CancelRequest struct {
	Immediately bool `json:"immediately"`
}

type CancelResponse struct {
	OK                bool   `json:"ok"`
	Status            string `json:"status"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
}

// LimitReachedResponse is the 403 body for a denied, gated request.
type LimitReachedResponse struct {
	Error   string `json:"error"`
	Metric  string `json:"metric"`
	Limit   int    `json:"limit"`
	Used    int    `json:"used"`
	Period  string `json:"period"`
	Upgrade string `json:"upgrade"`
}
