package billing

import (
	"testing"
	"time"

	"dreamlog_backend/internal/dto"
	"dreamlog_backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(users ...*models.User) (Service, *fakeUserRepo, *fakeUsageRepo) {
	userRepo := newFakeUserRepo(users...)
	usageRepo := newFakeUsageRepo()
	resolver := NewEntitlementResolver(userRepo, newFakeSubRepo())
	return NewService(userRepo, usageRepo, resolver), userRepo, usageRepo
}

func freeUser(id string) *models.User {
	return &models.User{
		BaseModel: models.BaseModel{ID: id},
		Plan:      models.PlanFree,
	}
}

func premiumUser(id string) *models.User {
	return &models.User{
		BaseModel: models.BaseModel{ID: id},
		Plan:      models.PlanPremium,
	}
}

func TestReserveAllowsUnderLimit(t *testing.T) {
	svc, _, _ := newTestService(freeUser("u1"))

	decision, ticket, err := svc.Reserve(nil, "u1", models.MetricAIAnalyze)
	require.NoError(t, err)
	require.NotNil(t, ticket)
	assert.True(t, decision.Allowed)
	assert.False(t, decision.Unlimited)
	assert.Equal(t, 3, decision.Limit)
	assert.Equal(t, 1, decision.Used)
	assert.Equal(t, 2, decision.Remaining)
	assert.Equal(t, PeriodKey(PeriodMonth, time.Now()), decision.Period)
}

func TestReserveDeniesAtLimit(t *testing.T) {
	svc, _, _ := newTestService(freeUser("u1"))

	for i := 0; i < 3; i++ {
		decision, ticket, err := svc.Reserve(nil, "u1", models.MetricAIAnalyze)
		require.NoError(t, err)
		require.True(t, decision.Allowed, "reservation %d should pass", i+1)
		ticket.Commit()
	}

	decision, ticket, err := svc.Reserve(nil, "u1", models.MetricAIAnalyze)
	require.NoError(t, err)
	assert.Nil(t, ticket)
	assert.False(t, decision.Allowed)
	assert.Equal(t, 3, decision.Limit)
	assert.Equal(t, 3, decision.Used)
}

func TestReservePremiumIsUnlimited(t *testing.T) {
	svc, _, usageRepo := newTestService(premiumUser("u1"))

	for i := 0; i < 50; i++ {
		decision, ticket, err := svc.Reserve(nil, "u1", models.MetricChatMessage)
		require.NoError(t, err)
		require.True(t, decision.Allowed)
		assert.True(t, decision.Unlimited)
		ticket.Commit()
	}

	// Usage is still counted for premium users.
	period := PeriodKey(PeriodDay, time.Now())
	count, err := usageRepo.Current(nil, "u1", models.MetricChatMessage, period)
	require.NoError(t, err)
	assert.Equal(t, 50, count)
}

func TestReserveUnrestrictedMetric(t *testing.T) {
	svc, _, _ := newTestService(freeUser("u1"))

	// A metric with no policy entry has no restriction.
	decision, ticket, err := svc.Reserve(nil, "u1", models.Metric("export"))
	require.NoError(t, err)
	require.NotNil(t, ticket)
	assert.True(t, decision.Allowed)
	assert.True(t, decision.Unlimited)
}

func TestTicketReleaseReturnsSlot(t *testing.T) {
	svc, _, usageRepo := newTestService(freeUser("u1"))

	decision, ticket, err := svc.Reserve(nil, "u1", models.MetricDreamCreate)
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	ticket.Release()

	count, err := usageRepo.Current(nil, "u1", models.MetricDreamCreate, decision.Period)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestTicketReleaseAfterCommitIsNoOp(t *testing.T) {
	svc, _, usageRepo := newTestService(freeUser("u1"))

	decision, ticket, err := svc.Reserve(nil, "u1", models.MetricDreamCreate)
	require.NoError(t, err)

	ticket.Commit()
	ticket.Release()
	ticket.Release()

	count, err := usageRepo.Current(nil, "u1", models.MetricDreamCreate, decision.Period)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.True(t, ticket.Committed())
}

func TestReserveTrialUserGetsPremiumLimits(t *testing.T) {
	future := time.Now().Add(24 * time.Hour)
	user := freeUser("u1")
	user.Plan = models.PlanPremium
	user.TrialEnd = &future
	svc, _, _ := newTestService(user)

	// Way past the free chat limit of 20/day.
	for i := 0; i < 25; i++ {
		decision, ticket, err := svc.Reserve(nil, "u1", models.MetricChatMessage)
		require.NoError(t, err)
		require.True(t, decision.Allowed)
		ticket.Commit()
	}
}

func TestReserveLapsedTrialFallsBackToFreeLimits(t *testing.T) {
	past := time.Now().Add(-24 * time.Hour)
	user := freeUser("u1")
	user.Plan = models.PlanPremium
	user.TrialEnd = &past
	svc, userRepo, _ := newTestService(user)

	decision, ticket, err := svc.Reserve(nil, "u1", models.MetricAIAnalyze)
	require.NoError(t, err)
	require.NotNil(t, ticket)
	assert.Equal(t, models.PlanFree, decision.Plan)
	assert.Equal(t, 3, decision.Limit)

	// The lazy downgrade must have been persisted.
	require.NotEmpty(t, userRepo.setPlanCalls)
	assert.Equal(t, models.PlanFree, userRepo.setPlanCalls[0].Plan)
}

func TestIncrementUsage(t *testing.T) {
	svc, _, _ := newTestService(freeUser("u1"))

	resp, err := svc.IncrementUsage(nil, "u1", "dream_create")
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "dream_create", resp.Metric)
	assert.Equal(t, PeriodKey(PeriodMonth, time.Now()), resp.Period)

	resp, err = svc.IncrementUsage(nil, "u1", "dream_create")
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Count)
}

func TestIncrementUsageUnknownMetric(t *testing.T) {
	svc, _, _ := newTestService(freeUser("u1"))
	_, err := svc.IncrementUsage(nil, "u1", "fly")
	require.Error(t, err)
}

func TestStatusReportsUsageAndLimits(t *testing.T) {
	svc, _, _ := newTestService(freeUser("u1"))

	for i := 0; i < 2; i++ {
		_, ticket, err := svc.Reserve(nil, "u1", models.MetricDreamCreate)
		require.NoError(t, err)
		ticket.Commit()
	}

	status, err := svc.Status(nil, "u1")
	require.NoError(t, err)
	assert.Equal(t, "free", status.Plan)
	assert.Equal(t, 2, status.Usage["dream_create"])
	assert.Equal(t, 0, status.Usage["ai_analyze"])
	assert.Equal(t, 10, status.Limits["dream_create"])
	assert.Equal(t, 3, status.Limits["ai_analyze"])
	assert.Equal(t, 20, status.Limits["chat_message"])
}

func TestStatusPremiumOmitsLimits(t *testing.T) {
	svc, _, _ := newTestService(premiumUser("u1"))

	status, err := svc.Status(nil, "u1")
	require.NoError(t, err)
	assert.Equal(t, "premium", status.Plan)
	assert.Empty(t, status.Limits)
}

func TestUpgradeStartsTrial(t *testing.T) {
	svc, userRepo, _ := newTestService(freeUser("u1"))

	status, err := svc.Upgrade(nil, "u1", &dto.UpgradeRequest{Plan: "premium", TrialDays: 7})
	require.NoError(t, err)
	assert.Equal(t, "premium", status.Plan)
	require.NotNil(t, status.TrialEnd)

	wantEnd := time.Now().Add(7 * 24 * time.Hour)
	assert.WithinDuration(t, wantEnd, *status.TrialEnd, time.Minute)
	require.NotEmpty(t, userRepo.setPlanCalls)
}

func TestUpgradeDowngradeClearsTrial(t *testing.T) {
	future := time.Now().Add(24 * time.Hour)
	user := premiumUser("u1")
	user.TrialEnd = &future
	svc, _, _ := newTestService(user)

	status, err := svc.Upgrade(nil, "u1", &dto.UpgradeRequest{Plan: "free"})
	require.NoError(t, err)
	assert.Equal(t, "free", status.Plan)
	assert.Nil(t, status.TrialEnd)
}
