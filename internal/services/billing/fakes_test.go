package billing

import (
	"fmt"
	"time"

	"dreamlog_backend/internal/models"
	"dreamlog_backend/internal/repositories"

	"gorm.io/gorm"
)

// In-memory repository fakes. The db argument is ignored everywhere; the
// services under test never touch gorm directly.

type setPlanCall struct {
	UserID   string
	Plan     models.Plan
	TrialEnd *time.Time
}

type fakeUserRepo struct {
	users        map[string]*models.User
	setPlanCalls []setPlanCall
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[string]*models.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) FindByID(db *gorm.DB, id string) (*models.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (r *fakeUserRepo) FindByEmail(db *gorm.DB, email string) (*models.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (r *fakeUserRepo) Create(db *gorm.DB, user *models.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) Update(db *gorm.DB, user *models.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) Delete(db *gorm.DB, userID string) error {
	delete(r.users, userID)
	return nil
}

func (r *fakeUserRepo) VerifyUser(db *gorm.DB, userID string) error {
	u, ok := r.users[userID]
	if !ok {
		return repositories.ErrUserNotFound
	}
	u.IsVerified = true
	return nil
}

func (r *fakeUserRepo) FindByVerificationToken(db *gorm.DB, token string) (*models.User, error) {
	return nil, repositories.ErrUserNotFound
}

func (r *fakeUserRepo) FindByResetToken(db *gorm.DB, token string) (*models.User, error) {
	return nil, repositories.ErrUserNotFound
}

func (r *fakeUserRepo) SetPlan(db *gorm.DB, userID string, plan models.Plan, trialEnd *time.Time) error {
	u, ok := r.users[userID]
	if !ok {
		return repositories.ErrUserNotFound
	}
	u.Plan = plan
	u.TrialEnd = trialEnd
	r.setPlanCalls = append(r.setPlanCalls, setPlanCall{UserID: userID, Plan: plan, TrialEnd: trialEnd})
	return nil
}

type fakeSubRepo struct {
	subs map[string]*models.UserSubscription // by user ID
}

func newFakeSubRepo(subs ...*models.UserSubscription) *fakeSubRepo {
	r := &fakeSubRepo{subs: make(map[string]*models.UserSubscription)}
	for _, s := range subs {
		r.subs[s.UserID] = s
	}
	return r
}

func (r *fakeSubRepo) FindByUser(db *gorm.DB, userID string) (*models.UserSubscription, error) {
	s, ok := r.subs[userID]
	if !ok {
		return nil, repositories.ErrSubscriptionNotFound
	}
	clone := *s
	return &clone, nil
}

func (r *fakeSubRepo) FindByStripeCustomer(db *gorm.DB, customerID string) (*models.UserSubscription, error) {
	for _, s := range r.subs {
		if s.StripeCustomerID == customerID {
			clone := *s
			return &clone, nil
		}
	}
	return nil, repositories.ErrSubscriptionNotFound
}

func (r *fakeSubRepo) Upsert(db *gorm.DB, sub *models.UserSubscription) error {
	existing, ok := r.subs[sub.UserID]
	if !ok {
		clone := *sub
		r.subs[sub.UserID] = &clone
		return nil
	}
	existing.Provider = sub.Provider
	existing.Status = sub.Status
	if sub.StripeCustomerID != "" {
		existing.StripeCustomerID = sub.StripeCustomerID
	}
	if sub.StripeSubscriptionID != "" {
		existing.StripeSubscriptionID = sub.StripeSubscriptionID
	}
	if sub.AppleExpiresAt != nil {
		existing.AppleExpiresAt = sub.AppleExpiresAt
	}
	return nil
}

func (r *fakeSubRepo) UpdateStatus(db *gorm.DB, userID, status string) error {
	s, ok := r.subs[userID]
	if !ok {
		return repositories.ErrSubscriptionNotFound
	}
	s.Status = status
	return nil
}

type fakeUsageRepo struct {
	counts map[string]int
}

func newFakeUsageRepo() *fakeUsageRepo {
	return &fakeUsageRepo{counts: make(map[string]int)}
}

func usageKey(userID string, metric models.Metric, period string) string {
	return fmt.Sprintf("%s|%s|%s", userID, metric, period)
}

func (r *fakeUsageRepo) Current(db *gorm.DB, userID string, metric models.Metric, period string) (int, error) {
	return r.counts[usageKey(userID, metric, period)], nil
}

func (r *fakeUsageRepo) Increment(db *gorm.DB, userID string, metric models.Metric, period string) (int, error) {
	key := usageKey(userID, metric, period)
	r.counts[key]++
	return r.counts[key], nil
}

func (r *fakeUsageRepo) ReserveIfUnder(db *gorm.DB, userID string, metric models.Metric, period string, limit int) (bool, int, error) {
	key := usageKey(userID, metric, period)
	if r.counts[key] >= limit {
		return false, r.counts[key], nil
	}
	r.counts[key]++
	return true, r.counts[key], nil
}

func (r *fakeUsageRepo) Release(db *gorm.DB, userID string, metric models.Metric, period string) error {
	key := usageKey(userID, metric, period)
	if r.counts[key] > 0 {
		r.counts[key]--
	}
	return nil
}

func (r *fakeUsageRepo) CountsForUser(db *gorm.DB, userID string, periods []string) (map[models.Metric]int, error) {
	out := make(map[models.Metric]int)
	for metric := range freePlanPolicies {
		for _, period := range periods {
			if c, ok := r.counts[usageKey(userID, metric, period)]; ok {
				out[metric] = c
			}
		}
	}
	return out, nil
}

func (r *fakeUsageRepo) PruneOlderThan(db *gorm.DB, cutoff time.Time) (int64, error) {
	return 0, nil
}
