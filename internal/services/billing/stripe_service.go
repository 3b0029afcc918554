package billing

import (
	"encoding/json"
	"time"

	"dreamlog_backend/internal/config"
	"dreamlog_backend/internal/dto"
	"dreamlog_backend/internal/logger"
	"dreamlog_backend/internal/models"
	"dreamlog_backend/internal/repositories"
	"dreamlog_backend/pkg/apperrors"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"
	"gorm.io/gorm"
)

// Lightweight views of the Stripe event payloads this backend reads. Decoding
// into local structs keeps us off the full stripe.Subscription surface and
// immune to API-version field moves.
type subscriptionEvent struct {
	ID               string            `json:"id"`
	Customer         string            `json:"customer"`
	Status           string            `json:"status"`
	TrialEnd         int64             `json:"trial_end"`
	CurrentPeriodEnd int64             `json:"current_period_end"`
	Metadata         map[string]string `json:"metadata"`
}

type checkoutSessionEvent struct {
	ID                string `json:"id"`
	Customer          string `json:"customer"`
	Subscription      string `json:"subscription"`
	ClientReferenceID string `json:"client_reference_id"`
}

type StripeService interface {
	CreateCheckoutSession(db *gorm.DB, userID string, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error)
	Cancel(db *gorm.DB, userID string, immediately bool) (*dto.CancelResponse, error)

	// HandleWebhook verifies the signature and applies the event. Replayed
	// events are harmless: every handler writes absolute state.
	HandleWebhook(db *gorm.DB, payload []byte, signature string) error
}

type stripeService struct {
	userRepo repositories.UserRepository
	subRepo  repositories.SubscriptionRepository

	secretKey      string
	webhookSecret  string
	priceIDMonthly string
	priceIDYearly  string
	publicURL      string

	// Swappable for tests.
	createSession func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	cancelSub     func(id string, params *stripe.SubscriptionCancelParams) (*stripe.Subscription, error)
	updateSub     func(id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
}

func NewStripeService(
	cfg *config.Config,
	userRepo repositories.UserRepository,
	subRepo repositories.SubscriptionRepository,
) StripeService {
	stripe.Key = cfg.Stripe.SecretKey
	return &stripeService{
		userRepo:       userRepo,
		subRepo:        subRepo,
		secretKey:      cfg.Stripe.SecretKey,
		webhookSecret:  cfg.Stripe.WebhookSecret,
		priceIDMonthly: cfg.Stripe.PriceIDMonthly,
		priceIDYearly:  cfg.Stripe.PriceIDYearly,
		publicURL:      cfg.App.PublicURL,
		createSession:  session.New,
		cancelSub:      subscription.Cancel,
		updateSub:      subscription.Update,
	}
}

func (s *stripeService) CreateCheckoutSession(db *gorm.DB, userID string, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error) {
	if s.secretKey == "" {
		return nil, apperrors.ErrStripeNotConfigured
	}

	var priceID string
	switch req.PriceID {
	case "monthly":
		priceID = s.priceIDMonthly
	case "yearly":
		priceID = s.priceIDYearly
	}
	if priceID == "" {
		return nil, apperrors.ErrStripeNotConfigured
	}

	user, err := s.userRepo.FindByID(db, userID)
	if err != nil {
		if apperrors.Is(err, repositories.ErrUserNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.InternalError(err)
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(priceID), Quantity: stripe.Int64(1)},
		},
		ClientReferenceID: stripe.String(userID),
		CustomerEmail:     stripe.String(user.Email),
		SuccessURL:        stripe.String(s.publicURL + "/billing/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(s.publicURL + "/billing/cancel"),
	}
	params.AddMetadata("user_id", userID)
	if req.TrialDays > 0 {
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			TrialPeriodDays: stripe.Int64(int64(req.TrialDays)),
			Metadata:        map[string]string{"user_id": userID},
		}
	} else {
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"user_id": userID},
		}
	}

	sess, err := s.createSession(params)
	if err != nil {
		return nil, apperrors.UpstreamError(err, apperrors.CodeStripeError, "Failed to create checkout session")
	}

	logger.Info("checkout session created", "user_id", userID, "session_id", sess.ID)
	return &dto.CheckoutResponse{SessionID: sess.ID, SessionURL: sess.URL}, nil
}

func (s *stripeService) Cancel(db *gorm.DB, userID string, immediately bool) (*dto.CancelResponse, error) {
	if s.secretKey == "" {
		return nil, apperrors.ErrStripeNotConfigured
	}

	sub, err := s.subRepo.FindByUser(db, userID)
	if err != nil {
		if apperrors.Is(err, repositories.ErrSubscriptionNotFound) {
			return nil, apperrors.ErrNoSubscription
		}
		return nil, apperrors.InternalError(err)
	}
	if sub.StripeSubscriptionID == "" {
		return nil, apperrors.ErrNoSubscription
	}

	if immediately {
		canceled, err := s.cancelSub(sub.StripeSubscriptionID, nil)
		if err != nil {
			return nil, apperrors.UpstreamError(err, apperrors.CodeStripeError, "Failed to cancel subscription")
		}
		// Do not wait for the webhook: drop premium right away.
		if err := s.userRepo.SetPlan(db, userID, models.PlanFree, nil); err != nil {
			return nil, apperrors.InternalError(err)
		}
		if err := s.subRepo.UpdateStatus(db, userID, string(canceled.Status)); err != nil {
			logger.Warn("failed to persist canceled status", "user_id", userID, "error", err)
		}
		logger.Info("subscription canceled immediately", "user_id", userID)
		return &dto.CancelResponse{OK: true, Status: string(canceled.Status)}, nil
	}

	updated, err := s.updateSub(sub.StripeSubscriptionID, &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	})
	if err != nil {
		return nil, apperrors.UpstreamError(err, apperrors.CodeStripeError, "Failed to schedule cancellation")
	}
	logger.Info("subscription set to cancel at period end", "user_id", userID)
	return &dto.CancelResponse{
		OK:                true,
		Status:            string(updated.Status),
		CancelAtPeriodEnd: true,
	}, nil
}

func (s *stripeService) HandleWebhook(db *gorm.DB, payload []byte, signature string) error {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return apperrors.ErrInvalidSignature.WithError(err)
	}

	switch string(event.Type) {
	case "checkout.session.completed":
		var sess checkoutSessionEvent
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return apperrors.NewBadRequestError("Malformed checkout.session payload")
		}
		return s.applyCheckoutCompleted(db, &sess)

	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		var sub subscriptionEvent
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return apperrors.NewBadRequestError("Malformed subscription payload")
		}
		return s.applySubscriptionEvent(db, &sub)

	default:
		logger.Debug("ignoring stripe event", "type", event.Type)
		return nil
	}
}

// applyCheckoutCompleted binds the Stripe customer to our user so later
// subscription events can be routed without metadata.
func (s *stripeService) applyCheckoutCompleted(db *gorm.DB, sess *checkoutSessionEvent) error {
	if sess.ClientReferenceID == "" {
		logger.Warn("checkout completed without client_reference_id", "session_id", sess.ID)
		return nil
	}

	err := s.subRepo.Upsert(db, &models.UserSubscription{
		UserID:               sess.ClientReferenceID,
		Provider:             models.ProviderStripe,
		Status:               models.SubStatusActive,
		StripeCustomerID:     sess.Customer,
		StripeSubscriptionID: sess.Subscription,
	})
	if err != nil {
		return apperrors.InternalError(err)
	}

	if err := s.userRepo.SetPlan(db, sess.ClientReferenceID, models.PlanPremium, nil); err != nil {
		return apperrors.InternalError(err)
	}
	logger.Info("checkout completed",
		"user_id", sess.ClientReferenceID,
		"customer", sess.Customer,
	)
	return nil
}

func (s *stripeService) applySubscriptionEvent(db *gorm.DB, sub *subscriptionEvent) error {
	userID := sub.Metadata["user_id"]
	if userID == "" {
		existing, err := s.subRepo.FindByStripeCustomer(db, sub.Customer)
		if err != nil {
			if apperrors.Is(err, repositories.ErrSubscriptionNotFound) {
				logger.Warn("subscription event for unknown customer", "customer", sub.Customer)
				return nil
			}
			return apperrors.InternalError(err)
		}
		userID = existing.UserID
	}

	if err := s.subRepo.Upsert(db, &models.UserSubscription{
		UserID:               userID,
		Provider:             models.ProviderStripe,
		Status:               sub.Status,
		StripeCustomerID:     sub.Customer,
		StripeSubscriptionID: sub.ID,
	}); err != nil {
		return apperrors.InternalError(err)
	}

	switch sub.Status {
	case models.SubStatusActive, models.SubStatusTrialing:
		// Premium-until comes from the trial when there is one, else the
		// paid period end, so a missed cancellation webhook cannot leave
		// premium open-ended.
		var trialEnd *time.Time
		switch {
		case sub.TrialEnd > 0:
			t := time.Unix(sub.TrialEnd, 0)
			trialEnd = &t
		case sub.CurrentPeriodEnd > 0:
			t := time.Unix(sub.CurrentPeriodEnd, 0)
			trialEnd = &t
		}
		if err := s.userRepo.SetPlan(db, userID, models.PlanPremium, trialEnd); err != nil {
			return apperrors.InternalError(err)
		}

	case models.SubStatusCanceled, models.SubStatusUnpaid, models.SubStatusPastDue:
		if err := s.userRepo.SetPlan(db, userID, models.PlanFree, nil); err != nil {
			return apperrors.InternalError(err)
		}

	default:
		// Keep the raw status on the subscription row; the plan flag is
		// only moved by statuses we understand.
	}

	logger.Info("subscription event applied",
		"user_id", userID,
		"status", sub.Status,
		"subscription_id", sub.ID,
	)
	return nil
}
