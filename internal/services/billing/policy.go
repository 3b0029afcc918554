package billing

import (
	"time"

	"dreamlog_backend/internal/models"
)

// PeriodGranularity selects how a metric's billing window rolls over.
type PeriodGranularity string

const (
	PeriodMonth PeriodGranularity = "month"
	PeriodDay   PeriodGranularity = "day"
)

// LimitPolicy caps one metric for one plan.
type LimitPolicy struct {
	Limit  int
	Period PeriodGranularity
}

// Static plan -> metric -> limit table. Premium has no entries: no policy
// means no restriction. Changing limits means redeploying.
var freePlanPolicies = map[models.Metric]LimitPolicy{
	models.MetricDreamCreate: {Limit: 10, Period: PeriodMonth},
	models.MetricAIAnalyze:   {Limit: 3, Period: PeriodMonth},
	models.MetricChatMessage: {Limit: 20, Period: PeriodDay},
}

// PolicyFor returns the limit policy for a plan/metric pair. ok is false when
// the metric is unrestricted for that plan.
func PolicyFor(plan models.Plan, metric models.Metric) (LimitPolicy, bool) {
	if plan == models.PlanPremium {
		return LimitPolicy{}, false
	}
	policy, ok := freePlanPolicies[metric]
	return policy, ok
}

// KnownMetric reports whether the metric exists in the policy table at all.
func KnownMetric(metric models.Metric) bool {
	_, ok := freePlanPolicies[metric]
	return ok
}

// PeriodKey derives the UTC period key for a granularity: "2006-01" for
// months, "2006-01-02" for days. A user's day boundary is always UTC
// midnight regardless of locale.
func PeriodKey(granularity PeriodGranularity, now time.Time) string {
	utc := now.UTC()
	switch granularity {
	case PeriodDay:
		return utc.Format("2006-01-02")
	default:
		return utc.Format("2006-01")
	}
}

// CurrentPeriods returns the period keys active right now, month first.
func CurrentPeriods(now time.Time) []string {
	return []string{
		PeriodKey(PeriodMonth, now),
		PeriodKey(PeriodDay, now),
	}
}
