package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dreamlog_backend/internal/config"
	"dreamlog_backend/internal/models"
	"dreamlog_backend/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAppleTestService(users ...*models.User) (*appleService, *fakeUserRepo, *fakeSubRepo) {
	cfg := &config.Config{}
	cfg.Apple.SharedSecret = "shared-secret"

	userRepo := newFakeUserRepo(users...)
	subRepo := newFakeSubRepo()
	svc := NewAppleService(cfg, userRepo, subRepo).(*appleService)
	return svc, userRepo, subRepo
}

func appleResponder(t *testing.T, status int, expiresMS int64) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "shared-secret", req["password"])
		assert.NotEmpty(t, req["receipt-data"])

		body := map[string]any{"status": status}
		if expiresMS > 0 {
			body["latest_receipt_info"] = []map[string]any{
				{"product_id": "premium_monthly", "expires_date_ms": fmt.Sprintf("%d", expiresMS)},
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body)
	}
}

func TestVerifyReceiptGrantsPremium(t *testing.T) {
	expiry := time.Now().Add(30 * 24 * time.Hour)
	srv := httptest.NewServer(appleResponder(t, 0, expiry.UnixMilli()))
	defer srv.Close()

	user := freeUser("u1")
	svc, userRepo, subRepo := newAppleTestService(user)
	svc.productionURL = srv.URL

	resp, err := svc.VerifyReceipt(context.Background(), nil, "u1", "base64-receipt")
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.Equal(t, "premium", resp.Plan)
	require.NotNil(t, resp.ExpiresAt)
	assert.Equal(t, expiry.UnixMilli(), resp.ExpiresAt.UnixMilli())

	assert.Equal(t, models.PlanPremium, userRepo.users["u1"].Plan)
	sub, err := subRepo.FindByUser(nil, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.ProviderApple, sub.Provider)
	require.NotNil(t, sub.AppleExpiresAt)
	assert.Equal(t, expiry.UnixMilli(), sub.AppleExpiresAt.UnixMilli())
}

func TestVerifyReceiptPreservesTrialEnd(t *testing.T) {
	expiry := time.Now().Add(30 * 24 * time.Hour)
	srv := httptest.NewServer(appleResponder(t, 0, expiry.UnixMilli()))
	defer srv.Close()

	trialEnd := time.Now().Add(48 * time.Hour)
	user := freeUser("u1")
	user.TrialEnd = &trialEnd
	svc, userRepo, _ := newAppleTestService(user)
	svc.productionURL = srv.URL

	_, err := svc.VerifyReceipt(context.Background(), nil, "u1", "base64-receipt")
	require.NoError(t, err)

	// Apple expiry lands on the subscription row; trial_end is untouched.
	require.NotNil(t, userRepo.users["u1"].TrialEnd)
	assert.True(t, userRepo.users["u1"].TrialEnd.Equal(trialEnd))
}

func TestVerifyReceiptSandboxFallback(t *testing.T) {
	expiry := time.Now().Add(24 * time.Hour)

	sandbox := httptest.NewServer(appleResponder(t, 0, expiry.UnixMilli()))
	defer sandbox.Close()

	// Production answers 21007: "this is a sandbox receipt".
	production := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": appleStatusSandboxReceipt})
	}))
	defer production.Close()

	user := freeUser("u1")
	svc, userRepo, _ := newAppleTestService(user)
	svc.productionURL = production.URL
	svc.sandboxURL = sandbox.URL

	resp, err := svc.VerifyReceipt(context.Background(), nil, "u1", "base64-receipt")
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.Equal(t, models.PlanPremium, userRepo.users["u1"].Plan)
}

func TestVerifyReceiptRejectedStatus(t *testing.T) {
	srv := httptest.NewServer(appleResponder(t, 21002, 0))
	defer srv.Close()

	user := freeUser("u1")
	svc, userRepo, _ := newAppleTestService(user)
	svc.productionURL = srv.URL

	_, err := svc.VerifyReceipt(context.Background(), nil, "u1", "garbage")
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.True(t, apperrors.As(err, &appErr))
	assert.Equal(t, apperrors.CodeAppleError, appErr.Code)
	assert.Empty(t, userRepo.setPlanCalls)
}

func TestVerifyReceiptExpiredPurchase(t *testing.T) {
	past := time.Now().Add(-24 * time.Hour)
	srv := httptest.NewServer(appleResponder(t, 0, past.UnixMilli()))
	defer srv.Close()

	user := freeUser("u1")
	svc, userRepo, _ := newAppleTestService(user)
	svc.productionURL = srv.URL

	_, err := svc.VerifyReceipt(context.Background(), nil, "u1", "base64-receipt")
	require.Error(t, err)
	assert.Empty(t, userRepo.setPlanCalls)
	assert.Equal(t, models.PlanFree, userRepo.users["u1"].Plan)
}

func TestVerifyReceiptEmptyReceipt(t *testing.T) {
	svc, _, _ := newAppleTestService(freeUser("u1"))
	_, err := svc.VerifyReceipt(context.Background(), nil, "u1", "")
	require.Error(t, err)
}

func TestLatestExpiryPicksNewestTransaction(t *testing.T) {
	older := time.Now().Add(-30 * 24 * time.Hour)
	newer := time.Now().Add(30 * 24 * time.Hour)

	resp := &appleVerifyResponse{
		LatestReceiptInfo: []appleInApp{
			{ProductID: "premium_monthly", ExpiresDateMS: fmt.Sprintf("%d", older.UnixMilli())},
			{ProductID: "premium_monthly", ExpiresDateMS: fmt.Sprintf("%d", newer.UnixMilli())},
		},
	}
	resp.Receipt.InApp = []appleInApp{
		{ProductID: "premium_monthly", ExpiresDateMS: "not-a-number"},
	}

	got := latestExpiry(resp)
	require.NotNil(t, got)
	assert.Equal(t, newer.UnixMilli(), got.UnixMilli())
}

func TestLatestExpiryEmptyReceipt(t *testing.T) {
	assert.Nil(t, latestExpiry(&appleVerifyResponse{}))
}
