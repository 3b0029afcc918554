package billing

import (
	"time"

	"dreamlog_backend/internal/logger"
	"dreamlog_backend/internal/models"
	"dreamlog_backend/internal/repositories"
	"dreamlog_backend/pkg/apperrors"

	"gorm.io/gorm"
)

// EntitlementSource names which evidence made a user premium.
type EntitlementSource string

const (
	SourceNone   EntitlementSource = "none"
	SourceTrial  EntitlementSource = "trial"
	SourceStripe EntitlementSource = "stripe"
	SourceApple  EntitlementSource = "apple"
	SourceManual EntitlementSource = "manual"
)

// Entitlement is the resolved right to premium features. It is computed by a
// single pure function over every known source (trial, Stripe, Apple, manual
// grant) instead of trusting the stored plan flag.
type Entitlement struct {
	Plan   models.Plan
	Source EntitlementSource
	Until  *time.Time // nil = no known expiry
}

// ResolveEntitlement folds all entitlement sources into one value.
// Precedence: Stripe subscription, Apple expiry, trial, manual grant.
func ResolveEntitlement(plan models.Plan, trialEnd *time.Time, sub *models.UserSubscription, now time.Time) Entitlement {
	if sub != nil && sub.Provider == models.ProviderStripe {
		if sub.Status == models.SubStatusActive || sub.Status == models.SubStatusTrialing {
			return Entitlement{Plan: models.PlanPremium, Source: SourceStripe}
		}
	}

	if sub != nil && sub.AppleExpiresAt != nil && sub.AppleExpiresAt.After(now) {
		until := *sub.AppleExpiresAt
		return Entitlement{Plan: models.PlanPremium, Source: SourceApple, Until: &until}
	}

	if trialEnd != nil && trialEnd.After(now) {
		until := *trialEnd
		return Entitlement{Plan: models.PlanPremium, Source: SourceTrial, Until: &until}
	}

	// A premium flag with no expiry anywhere is a manual grant and stays
	// premium indefinitely; expiry for such users is tracked elsewhere.
	if plan == models.PlanPremium && trialEnd == nil {
		return Entitlement{Plan: models.PlanPremium, Source: SourceManual}
	}

	return Entitlement{Plan: models.PlanFree, Source: SourceNone}
}

// EntitlementResolver reads a user's effective plan, persisting the downgrade
// when a trial has lapsed. The write happens on the read path so a stale
// premium flag can never outlive its trial.
type EntitlementResolver interface {
	Resolve(db *gorm.DB, userID string) (*models.User, Entitlement, error)
}

type entitlementResolver struct {
	userRepo repositories.UserRepository
	subRepo  repositories.SubscriptionRepository
}

func NewEntitlementResolver(
	userRepo repositories.UserRepository,
	subRepo repositories.SubscriptionRepository,
) EntitlementResolver {
	return &entitlementResolver{
		userRepo: userRepo,
		subRepo:  subRepo,
	}
}

func (r *entitlementResolver) Resolve(db *gorm.DB, userID string) (*models.User, Entitlement, error) {
	user, err := r.userRepo.FindByID(db, userID)
	if err != nil {
		if apperrors.Is(err, repositories.ErrUserNotFound) {
			return nil, Entitlement{}, apperrors.ErrUserNotFound
		}
		return nil, Entitlement{}, apperrors.InternalError(err)
	}

	sub := user.Subscription
	if sub == nil {
		// Callers that did not preload the relation still get provider state.
		s, serr := r.subRepo.FindByUser(db, userID)
		switch {
		case serr == nil:
			sub = s
		case apperrors.Is(serr, repositories.ErrSubscriptionNotFound):
			// No subscription row: trial and manual sources still apply.
		default:
			return nil, Entitlement{}, apperrors.InternalError(serr)
		}
	}

	now := time.Now()
	ent := ResolveEntitlement(user.Plan, user.TrialEnd, sub, now)

	newPlan := ent.Plan
	newTrialEnd := user.TrialEnd
	if user.TrialEnd != nil && user.TrialEnd.Before(now) {
		newTrialEnd = nil
	}

	if newPlan != user.Plan || !equalTime(newTrialEnd, user.TrialEnd) {
		if err := r.userRepo.SetPlan(db, userID, newPlan, newTrialEnd); err != nil {
			return nil, Entitlement{}, apperrors.InternalError(err)
		}
		logger.Info("entitlement corrected on read",
			"user_id", userID,
			"plan", newPlan,
			"source", ent.Source,
		)
		user.Plan = newPlan
		user.TrialEnd = newTrialEnd
	}

	return user, ent, nil
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
