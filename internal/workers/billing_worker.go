package workers

import (
	"context"
	"time"

	"dreamlog_backend/internal/logger"
	"dreamlog_backend/internal/repositories"

	"gorm.io/gorm"
)

// Counter rows older than this are safe to drop: status only ever reads the
// current month and day.
const usageRetention = 13 * 31 * 24 * time.Hour

// BillingWorker runs periodic billing maintenance: downgrading lapsed trials
// and, when enabled, pruning stale usage counters. Trial lapse is also
// corrected lazily on every entitlement read; the sweep only keeps the stored
// plan column honest for users who never come back.
type BillingWorker struct {
	db            *gorm.DB
	usageRepo     repositories.UsageRepository
	tokenRepo     repositories.RefreshTokenRepository
	pruneCounters bool
}

func NewBillingWorker(
	db *gorm.DB,
	usageRepo repositories.UsageRepository,
	tokenRepo repositories.RefreshTokenRepository,
	pruneCounters bool,
) *BillingWorker {
	return &BillingWorker{
		db:            db,
		usageRepo:     usageRepo,
		tokenRepo:     tokenRepo,
		pruneCounters: pruneCounters,
	}
}

func (w *BillingWorker) Start(ctx context.Context) {
	go w.sweepLapsedTrials(ctx)
	go w.cleanExpiredTokens(ctx)
	if w.pruneCounters {
		go w.pruneUsageCounters(ctx)
	}
}

func (w *BillingWorker) sweepLapsedTrials(ctx context.Context) {
	ticker := time.NewTicker(6 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("billing worker stopped")
			return
		case <-ticker.C:
			result := w.db.Exec(`
				UPDATE users
				SET plan = 'free', trial_end = NULL, updated_at = NOW()
				WHERE plan = 'premium'
				AND trial_end IS NOT NULL
				AND trial_end < NOW()
				AND id NOT IN (
					SELECT user_id FROM user_subscriptions
					WHERE status IN ('active', 'trialing')
					OR apple_expires_at > NOW()
				)
			`)
			logger.WorkerLog("billing", "sweep lapsed trials", result.Error)
			if result.Error == nil && result.RowsAffected > 0 {
				logger.Info("downgraded lapsed trials", "count", result.RowsAffected)
			}
		}
	}
}

func (w *BillingWorker) cleanExpiredTokens(ctx context.Context) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := w.tokenRepo.CleanExpired(w.db)
			logger.WorkerLog("billing", "clean expired refresh tokens", err)
			if err == nil && deleted > 0 {
				logger.Info("deleted expired refresh tokens", "count", deleted)
			}
		}
	}
}

func (w *BillingWorker) pruneUsageCounters(ctx context.Context) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := w.usageRepo.PruneOlderThan(w.db, time.Now().Add(-usageRetention))
			logger.WorkerLog("billing", "prune usage counters", err)
			if err == nil && deleted > 0 {
				logger.Info("pruned usage counters", "count", deleted)
			}
		}
	}
}
