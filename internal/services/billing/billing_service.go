package billing

import (
	"sync"
	"time"

	"dreamlog_backend/internal/dto"
	"dreamlog_backend/internal/logger"
	"dreamlog_backend/internal/models"
	"dreamlog_backend/internal/repositories"
	"dreamlog_backend/pkg/apperrors"

	"gorm.io/gorm"
)

// Decision is the outcome of one usage reservation.
type Decision struct {
	Allowed   bool
	Unlimited bool
	Metric    models.Metric
	Limit     int
	Used      int
	Remaining int
	Period    string
	Plan      models.Plan
}

// Ticket is a single-use handle over one reserved usage slot. The caller
// must either Commit it after the gated action succeeds or Release it so the
// slot returns to the pool. Release after Commit is a no-op.
type Ticket interface {
	Commit()
	Release()
	Committed() bool
}

type usageTicket struct {
	usageRepo repositories.UsageRepository
	db        *gorm.DB
	userID    string
	metric    models.Metric
	period    string

	mu        sync.Mutex
	committed bool
	released  bool
}

func (t *usageTicket) Commit() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.committed = true
}

// Release decrements the counter back if the ticket was never committed.
func (t *usageTicket) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.committed || t.released {
		return
	}
	t.released = true
	if err := t.usageRepo.Release(t.db, t.userID, t.metric, t.period); err != nil {
		logger.Error("failed to release usage reservation",
			"user_id", t.userID,
			"metric", t.metric,
			"period", t.period,
			"error", err,
		)
	}
}

// Committed reports whether Commit was called. Used by tests.
func (t *usageTicket) Committed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.committed
}

type Service interface {
	// Status returns the user's effective plan plus current-period usage.
	Status(db *gorm.DB, userID string) (*dto.BillingStatusResponse, error)

	// Upgrade sets the plan manually, optionally starting a trial window.
	Upgrade(db *gorm.DB, userID string, req *dto.UpgradeRequest) (*dto.BillingStatusResponse, error)

	// IncrementUsage bumps a metric counter without enforcing any limit.
	// Used by clients that track an action performed outside the API.
	IncrementUsage(db *gorm.DB, userID string, metric string) (*dto.IncrementUsageResponse, error)

	// Reserve atomically claims one usage slot for the metric. When the
	// decision is allowed a non-nil ticket is returned and must be
	// committed or released by the caller. Metrics without a policy are
	// allowed without restriction.
	Reserve(db *gorm.DB, userID string, metric models.Metric) (Decision, Ticket, error)
}

type service struct {
	userRepo  repositories.UserRepository
	usageRepo repositories.UsageRepository
	resolver  EntitlementResolver
}

func NewService(
	userRepo repositories.UserRepository,
	usageRepo repositories.UsageRepository,
	resolver EntitlementResolver,
) Service {
	return &service{
		userRepo:  userRepo,
		usageRepo: usageRepo,
		resolver:  resolver,
	}
}

func (s *service) Status(db *gorm.DB, userID string) (*dto.BillingStatusResponse, error) {
	user, ent, err := s.resolver.Resolve(db, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	counts, err := s.usageRepo.CountsForUser(db, userID, CurrentPeriods(now))
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	usage := make(map[string]int, len(freePlanPolicies))
	limits := make(map[string]int, len(freePlanPolicies))
	for metric, policy := range freePlanPolicies {
		usage[string(metric)] = counts[metric]
		if ent.Plan == models.PlanFree {
			limits[string(metric)] = policy.Limit
		}
	}

	return &dto.BillingStatusResponse{
		Plan:     string(ent.Plan),
		TrialEnd: user.TrialEnd,
		Source:   string(ent.Source),
		Period:   PeriodKey(PeriodMonth, now),
		Usage:    usage,
		Limits:   limits,
	}, nil
}

func (s *service) Upgrade(db *gorm.DB, userID string, req *dto.UpgradeRequest) (*dto.BillingStatusResponse, error) {
	plan := models.Plan(req.Plan)
	if plan != models.PlanFree && plan != models.PlanPremium {
		return nil, apperrors.ErrInvalidPlan
	}

	var trialEnd *time.Time
	if plan == models.PlanPremium && req.TrialDays > 0 {
		t := time.Now().Add(time.Duration(req.TrialDays) * 24 * time.Hour)
		trialEnd = &t
	}

	if err := s.userRepo.SetPlan(db, userID, plan, trialEnd); err != nil {
		if apperrors.Is(err, repositories.ErrUserNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.InternalError(err)
	}

	logger.Info("plan changed",
		"user_id", userID,
		"plan", plan,
		"trial_days", req.TrialDays,
	)
	return s.Status(db, userID)
}

func (s *service) IncrementUsage(db *gorm.DB, userID string, metric string) (*dto.IncrementUsageResponse, error) {
	m := models.Metric(metric)
	if !KnownMetric(m) {
		return nil, apperrors.NewBadRequestError("Unknown usage metric: " + metric)
	}

	policy := freePlanPolicies[m]
	period := PeriodKey(policy.Period, time.Now())
	count, err := s.usageRepo.Increment(db, userID, m, period)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	return &dto.IncrementUsageResponse{
		Metric: metric,
		Period: period,
		Count:  count,
	}, nil
}

func (s *service) Reserve(db *gorm.DB, userID string, metric models.Metric) (Decision, Ticket, error) {
	_, ent, err := s.resolver.Resolve(db, userID)
	if err != nil {
		return Decision{}, nil, err
	}

	now := time.Now()
	policy, limited := PolicyFor(ent.Plan, metric)
	if !limited {
		// Premium plans and unrestricted metrics still count usage so
		// status stays meaningful.
		gran := freePlanPolicies[metric].Period
		period := PeriodKey(gran, now)
		count, err := s.usageRepo.Increment(db, userID, metric, period)
		if err != nil {
			return Decision{}, nil, apperrors.InternalError(err)
		}
		decision := Decision{
			Allowed:   true,
			Unlimited: true,
			Metric:    metric,
			Used:      count,
			Period:    period,
			Plan:      ent.Plan,
		}
		return decision, s.newTicket(db, userID, metric, period), nil
	}

	period := PeriodKey(policy.Period, now)
	allowed, current, err := s.usageRepo.ReserveIfUnder(db, userID, metric, period, policy.Limit)
	if err != nil {
		return Decision{}, nil, apperrors.InternalError(err)
	}

	decision := Decision{
		Allowed: allowed,
		Metric:  metric,
		Limit:   policy.Limit,
		Used:    current,
		Period:  period,
		Plan:    ent.Plan,
	}
	if allowed {
		decision.Remaining = policy.Limit - current
		return decision, s.newTicket(db, userID, metric, period), nil
	}
	return decision, nil, nil
}

func (s *service) newTicket(db *gorm.DB, userID string, metric models.Metric, period string) Ticket {
	return &usageTicket{
		usageRepo: s.usageRepo,
		db:        db,
		userID:    userID,
		metric:    metric,
		period:    period,
	}
}
