package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"dreamlog_backend/internal/config"
	"dreamlog_backend/internal/dto"
	"dreamlog_backend/internal/logger"
	"dreamlog_backend/internal/models"
	"dreamlog_backend/internal/repositories"
	"dreamlog_backend/pkg/apperrors"

	"gorm.io/gorm"
)

const (
	appleProductionURL = "https://buy.itunes.apple.com/verifyReceipt"
	appleSandboxURL    = "https://sandbox.itunes.apple.com/verifyReceipt"

	// Apple returns 21007 when a sandbox receipt hits production.
	appleStatusSandboxReceipt = 21007
)

type appleVerifyRequest struct {
	ReceiptData string `json:"receipt-data"`
	Password    string `json:"password,omitempty"`
}

type appleInApp struct {
	ProductID     string `json:"product_id"`
	ExpiresDateMS string `json:"expires_date_ms"`
}

type appleVerifyResponse struct {
	Status            int          `json:"status"`
	LatestReceiptInfo []appleInApp `json:"latest_receipt_info"`
	Receipt           struct {
		InApp []appleInApp `json:"in_app"`
	} `json:"receipt"`
}

type AppleService interface {
	// VerifyReceipt sends the receipt to Apple and, when it proves an
	// unexpired purchase, grants premium and records the expiry.
	VerifyReceipt(ctx context.Context, db *gorm.DB, userID, receiptData string) (*dto.AppleVerifyResponse, error)
}

type appleService struct {
	userRepo repositories.UserRepository
	subRepo  repositories.SubscriptionRepository

	sharedSecret  string
	productionURL string
	sandboxURL    string
	httpClient    *http.Client
}

func NewAppleService(
	cfg *config.Config,
	userRepo repositories.UserRepository,
	subRepo repositories.SubscriptionRepository,
) AppleService {
	return &appleService{
		userRepo:      userRepo,
		subRepo:       subRepo,
		sharedSecret:  cfg.Apple.SharedSecret,
		productionURL: appleProductionURL,
		sandboxURL:    appleSandboxURL,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *appleService) VerifyReceipt(ctx context.Context, db *gorm.DB, userID, receiptData string) (*dto.AppleVerifyResponse, error) {
	if receiptData == "" {
		return nil, apperrors.NewBadRequestError("receiptData is required")
	}

	resp, err := s.callApple(ctx, s.productionURL, receiptData)
	if err != nil {
		return nil, err
	}
	if resp.Status == appleStatusSandboxReceipt {
		resp, err = s.callApple(ctx, s.sandboxURL, receiptData)
		if err != nil {
			return nil, err
		}
	}
	if resp.Status != 0 {
		logger.Warn("apple receipt rejected", "user_id", userID, "status", resp.Status)
		return nil, apperrors.ErrAppleVerifyFailed.WithDetails(map[string]int{"status": resp.Status})
	}

	expiry := latestExpiry(resp)
	if expiry == nil || !expiry.After(time.Now()) {
		return nil, apperrors.ErrNoPremiumPurchase
	}

	user, err := s.userRepo.FindByID(db, userID)
	if err != nil {
		if apperrors.Is(err, repositories.ErrUserNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.InternalError(err)
	}

	if err := s.subRepo.Upsert(db, &models.UserSubscription{
		UserID:         userID,
		Provider:       models.ProviderApple,
		Status:         models.SubStatusActive,
		AppleExpiresAt: expiry,
	}); err != nil {
		return nil, apperrors.InternalError(err)
	}

	// The Apple expiry lives on the subscription row; trial_end is not an
	// Apple concept and must survive the verification untouched.
	if err := s.userRepo.SetPlan(db, userID, models.PlanPremium, user.TrialEnd); err != nil {
		return nil, apperrors.InternalError(err)
	}

	logger.Info("apple receipt verified",
		"user_id", userID,
		"expires_at", expiry.Format(time.RFC3339),
	)
	return &dto.AppleVerifyResponse{
		OK:        true,
		Plan:      string(models.PlanPremium),
		ExpiresAt: expiry,
	}, nil
}

func (s *appleService) callApple(ctx context.Context, url, receiptData string) (*appleVerifyResponse, error) {
	body, err := json.Marshal(appleVerifyRequest{
		ReceiptData: receiptData,
		Password:    s.sharedSecret,
	})
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.UpstreamError(err, apperrors.CodeAppleError, "Apple verification unreachable")
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, apperrors.UpstreamError(
			fmt.Errorf("apple verifyReceipt returned %d", httpResp.StatusCode),
			apperrors.CodeAppleError,
			"Apple verification failed",
		)
	}

	var resp appleVerifyResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, apperrors.UpstreamError(err, apperrors.CodeAppleError, "Malformed Apple response")
	}
	return &resp, nil
}

// latestExpiry walks every transaction in the receipt and keeps the furthest
// expires_date_ms. Apple lists renewals as separate entries.
func latestExpiry(resp *appleVerifyResponse) *time.Time {
	var latest *time.Time
	scan := func(items []appleInApp) {
		for _, item := range items {
			ms, err := strconv.ParseInt(item.ExpiresDateMS, 10, 64)
			if err != nil || ms <= 0 {
				continue
			}
			t := time.UnixMilli(ms)
			if latest == nil || t.After(*latest) {
				latest = &t
			}
		}
	}
	scan(resp.LatestReceiptInfo)
	scan(resp.Receipt.InApp)
	return latest
}
