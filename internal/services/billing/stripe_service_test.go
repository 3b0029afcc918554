package billing

import (
	"fmt"
	"testing"
	"time"

	"dreamlog_backend/internal/config"
	"dreamlog_backend/internal/dto"
	"dreamlog_backend/internal/models"
	"dreamlog_backend/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const testWebhookSecret = "whsec_test_123"

func newStripeTestService(users []*models.User, subs []*models.UserSubscription) (*stripeService, *fakeUserRepo, *fakeSubRepo) {
	cfg := &config.Config{}
	cfg.Stripe.SecretKey = "sk_test_123"
	cfg.Stripe.WebhookSecret = testWebhookSecret
	cfg.Stripe.PriceIDMonthly = "price_monthly"
	cfg.Stripe.PriceIDYearly = "price_yearly"
	cfg.App.PublicURL = "https://dreamlog.test"

	userRepo := newFakeUserRepo(users...)
	subRepo := newFakeSubRepo(subs...)
	svc := NewStripeService(cfg, userRepo, subRepo).(*stripeService)
	return svc, userRepo, subRepo
}

func signPayload(t *testing.T, secret, payload string) (body []byte, header string) {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return signed.Payload, signed.Header
}

func subscriptionEventPayload(status string, trialEnd int64) string {
	return fmt.Sprintf(`{
		"id": "evt_1",
		"type": "customer.subscription.updated",
		"data": {
			"object": {
				"id": "sub_123",
				"customer": "cus_123",
				"status": %q,
				"trial_end": %d,
				"metadata": {"user_id": "u1"}
			}
		}
	}`, status, trialEnd)
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	user := freeUser("u1")
	svc, userRepo, _ := newStripeTestService([]*models.User{user}, nil)

	body, header := signPayload(t, "whsec_wrong", subscriptionEventPayload("active", 0))
	err := svc.HandleWebhook(nil, body, header)
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.True(t, apperrors.As(err, &appErr))
	assert.Equal(t, apperrors.CodeInvalidSignature, appErr.Code)

	// A rejected event must not move any state.
	assert.Empty(t, userRepo.setPlanCalls)
	assert.Equal(t, models.PlanFree, user.Plan)
}

func TestHandleWebhookActivatesPremium(t *testing.T) {
	user := freeUser("u1")
	svc, userRepo, subRepo := newStripeTestService([]*models.User{user}, nil)

	body, header := signPayload(t, testWebhookSecret, subscriptionEventPayload("active", 0))
	require.NoError(t, svc.HandleWebhook(nil, body, header))

	assert.Equal(t, models.PlanPremium, userRepo.users["u1"].Plan)
	assert.Nil(t, userRepo.users["u1"].TrialEnd)

	sub, err := subRepo.FindByUser(nil, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.ProviderStripe, sub.Provider)
	assert.Equal(t, "active", sub.Status)
	assert.Equal(t, "cus_123", sub.StripeCustomerID)
	assert.Equal(t, "sub_123", sub.StripeSubscriptionID)
}

func TestHandleWebhookIsIdempotent(t *testing.T) {
	user := freeUser("u1")
	svc, userRepo, subRepo := newStripeTestService([]*models.User{user}, nil)

	body, header := signPayload(t, testWebhookSecret, subscriptionEventPayload("active", 0))
	require.NoError(t, svc.HandleWebhook(nil, body, header))
	require.NoError(t, svc.HandleWebhook(nil, body, header))

	assert.Equal(t, models.PlanPremium, userRepo.users["u1"].Plan)
	sub, err := subRepo.FindByUser(nil, "u1")
	require.NoError(t, err)
	assert.Equal(t, "sub_123", sub.StripeSubscriptionID)
}

func TestHandleWebhookTrialingSetsTrialEnd(t *testing.T) {
	user := freeUser("u1")
	trialEnd := time.Now().Add(72 * time.Hour).Unix()
	svc, userRepo, _ := newStripeTestService([]*models.User{user}, nil)

	body, header := signPayload(t, testWebhookSecret, subscriptionEventPayload("trialing", trialEnd))
	require.NoError(t, svc.HandleWebhook(nil, body, header))

	assert.Equal(t, models.PlanPremium, userRepo.users["u1"].Plan)
	require.NotNil(t, userRepo.users["u1"].TrialEnd)
	assert.Equal(t, trialEnd, userRepo.users["u1"].TrialEnd.Unix())
}

func TestHandleWebhookActiveFallsBackToPeriodEnd(t *testing.T) {
	user := freeUser("u1")
	periodEnd := time.Now().Add(30 * 24 * time.Hour).Unix()
	svc, userRepo, _ := newStripeTestService([]*models.User{user}, nil)

	payload := fmt.Sprintf(`{
		"id": "evt_5",
		"type": "customer.subscription.updated",
		"data": {
			"object": {
				"id": "sub_123",
				"customer": "cus_123",
				"status": "active",
				"trial_end": 0,
				"current_period_end": %d,
				"metadata": {"user_id": "u1"}
			}
		}
	}`, periodEnd)
	body, header := signPayload(t, testWebhookSecret, payload)
	require.NoError(t, svc.HandleWebhook(nil, body, header))

	assert.Equal(t, models.PlanPremium, userRepo.users["u1"].Plan)
	require.NotNil(t, userRepo.users["u1"].TrialEnd)
	assert.Equal(t, periodEnd, userRepo.users["u1"].TrialEnd.Unix())
}

func TestHandleWebhookCanceledDowngrades(t *testing.T) {
	user := premiumUser("u1")
	svc, userRepo, _ := newStripeTestService([]*models.User{user}, nil)

	body, header := signPayload(t, testWebhookSecret, subscriptionEventPayload("canceled", 0))
	require.NoError(t, svc.HandleWebhook(nil, body, header))

	assert.Equal(t, models.PlanFree, userRepo.users["u1"].Plan)
	assert.Nil(t, userRepo.users["u1"].TrialEnd)
}

func TestHandleWebhookRoutesByCustomerID(t *testing.T) {
	user := freeUser("u1")
	existing := &models.UserSubscription{
		UserID:           "u1",
		Provider:         models.ProviderStripe,
		StripeCustomerID: "cus_123",
	}
	svc, userRepo, _ := newStripeTestService([]*models.User{user}, []*models.UserSubscription{existing})

	// No metadata in the payload: routing has to go via the stored customer.
	payload := `{
		"id": "evt_2",
		"type": "customer.subscription.updated",
		"data": {
			"object": {
				"id": "sub_456",
				"customer": "cus_123",
				"status": "active"
			}
		}
	}`
	body, header := signPayload(t, testWebhookSecret, payload)
	require.NoError(t, svc.HandleWebhook(nil, body, header))
	assert.Equal(t, models.PlanPremium, userRepo.users["u1"].Plan)
}

func TestHandleWebhookIgnoresUnknownEvents(t *testing.T) {
	user := freeUser("u1")
	svc, userRepo, _ := newStripeTestService([]*models.User{user}, nil)

	body, header := signPayload(t, testWebhookSecret, `{"id":"evt_3","type":"invoice.paid","data":{"object":{}}}`)
	require.NoError(t, svc.HandleWebhook(nil, body, header))
	assert.Empty(t, userRepo.setPlanCalls)
}

func TestHandleWebhookCheckoutCompleted(t *testing.T) {
	user := freeUser("u1")
	svc, userRepo, subRepo := newStripeTestService([]*models.User{user}, nil)

	payload := `{
		"id": "evt_4",
		"type": "checkout.session.completed",
		"data": {
			"object": {
				"id": "cs_123",
				"customer": "cus_123",
				"subscription": "sub_123",
				"client_reference_id": "u1"
			}
		}
	}`
	body, header := signPayload(t, testWebhookSecret, payload)
	require.NoError(t, svc.HandleWebhook(nil, body, header))

	assert.Equal(t, models.PlanPremium, userRepo.users["u1"].Plan)
	sub, err := subRepo.FindByUser(nil, "u1")
	require.NoError(t, err)
	assert.Equal(t, "cus_123", sub.StripeCustomerID)
}

func TestCreateCheckoutSession(t *testing.T) {
	user := freeUser("u1")
	user.Email = "dreamer@example.com"
	svc, _, _ := newStripeTestService([]*models.User{user}, nil)

	var captured *stripe.CheckoutSessionParams
	svc.createSession = func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		captured = params
		return &stripe.CheckoutSession{ID: "cs_123", URL: "https://checkout.stripe.test/cs_123"}, nil
	}

	resp, err := svc.CreateCheckoutSession(nil, "u1", &dto.CheckoutRequest{PriceID: "monthly", TrialDays: 7})
	require.NoError(t, err)
	assert.Equal(t, "cs_123", resp.SessionID)
	assert.Equal(t, "https://checkout.stripe.test/cs_123", resp.SessionURL)

	require.NotNil(t, captured)
	assert.Equal(t, "u1", stripe.StringValue(captured.ClientReferenceID))
	assert.Equal(t, "dreamer@example.com", stripe.StringValue(captured.CustomerEmail))
	require.Len(t, captured.LineItems, 1)
	assert.Equal(t, "price_monthly", stripe.StringValue(captured.LineItems[0].Price))
	require.NotNil(t, captured.SubscriptionData)
	assert.Equal(t, int64(7), stripe.Int64Value(captured.SubscriptionData.TrialPeriodDays))
}

func TestCreateCheckoutSessionUnconfigured(t *testing.T) {
	svc, _, _ := newStripeTestService([]*models.User{freeUser("u1")}, nil)
	svc.secretKey = ""

	_, err := svc.CreateCheckoutSession(nil, "u1", &dto.CheckoutRequest{PriceID: "monthly"})
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.True(t, apperrors.As(err, &appErr))
	assert.Equal(t, apperrors.CodeStripeError, appErr.Code)
}

func TestCancelImmediately(t *testing.T) {
	user := premiumUser("u1")
	existing := &models.UserSubscription{
		UserID:               "u1",
		Provider:             models.ProviderStripe,
		Status:               models.SubStatusActive,
		StripeSubscriptionID: "sub_123",
	}
	svc, userRepo, _ := newStripeTestService([]*models.User{user}, []*models.UserSubscription{existing})

	svc.cancelSub = func(id string, params *stripe.SubscriptionCancelParams) (*stripe.Subscription, error) {
		assert.Equal(t, "sub_123", id)
		return &stripe.Subscription{Status: stripe.SubscriptionStatusCanceled}, nil
	}

	resp, err := svc.Cancel(nil, "u1", true)
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.Equal(t, "canceled", resp.Status)
	assert.False(t, resp.CancelAtPeriodEnd)

	// Premium is dropped without waiting for the webhook.
	assert.Equal(t, models.PlanFree, userRepo.users["u1"].Plan)
}

func TestCancelAtPeriodEnd(t *testing.T) {
	user := premiumUser("u1")
	existing := &models.UserSubscription{
		UserID:               "u1",
		Provider:             models.ProviderStripe,
		Status:               models.SubStatusActive,
		StripeSubscriptionID: "sub_123",
	}
	svc, userRepo, _ := newStripeTestService([]*models.User{user}, []*models.UserSubscription{existing})

	svc.updateSub = func(id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
		assert.True(t, stripe.BoolValue(params.CancelAtPeriodEnd))
		return &stripe.Subscription{Status: stripe.SubscriptionStatusActive}, nil
	}

	resp, err := svc.Cancel(nil, "u1", false)
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.True(t, resp.CancelAtPeriodEnd)

	// Access stays until the period actually ends.
	assert.Equal(t, models.PlanPremium, userRepo.users["u1"].Plan)
}

func TestCancelWithoutSubscription(t *testing.T) {
	svc, _, _ := newStripeTestService([]*models.User{freeUser("u1")}, nil)

	_, err := svc.Cancel(nil, "u1", true)
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.True(t, apperrors.As(err, &appErr))
	assert.Equal(t, apperrors.CodeNoSubscription, appErr.Code)
}
