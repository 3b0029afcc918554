package billing

import (
	"testing"
	"time"

	"dreamlog_backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodKeyUsesUTC(t *testing.T) {
	// 23:30 on Jan 31 in UTC+5 is 18:30 on Jan 31 UTC: same day.
	loc := time.FixedZone("UTC+5", 5*3600)
	late := time.Date(2025, 1, 31, 23, 30, 0, 0, loc)
	assert.Equal(t, "2025-01-31", PeriodKey(PeriodDay, late))
	assert.Equal(t, "2025-01", PeriodKey(PeriodMonth, late))

	// 02:00 on Feb 1 in UTC-5 is still Jan 31 UTC.
	locWest := time.FixedZone("UTC-5", -5*3600)
	early := time.Date(2025, 2, 1, 2, 0, 0, 0, locWest)
	assert.Equal(t, "2025-01-31", PeriodKey(PeriodDay, early))
	assert.Equal(t, "2025-01", PeriodKey(PeriodMonth, early))
}

func TestPolicyForFreePlan(t *testing.T) {
	tests := []struct {
		metric models.Metric
		limit  int
		period PeriodGranularity
	}{
		{models.MetricDreamCreate, 10, PeriodMonth},
		{models.MetricAIAnalyze, 3, PeriodMonth},
		{models.MetricChatMessage, 20, PeriodDay},
	}

	for _, tt := range tests {
		t.Run(string(tt.metric), func(t *testing.T) {
			policy, ok := PolicyFor(models.PlanFree, tt.metric)
			require.True(t, ok)
			assert.Equal(t, tt.limit, policy.Limit)
			assert.Equal(t, tt.period, policy.Period)
		})
	}
}

func TestPolicyForPremiumIsUnrestricted(t *testing.T) {
	for metric := range freePlanPolicies {
		_, ok := PolicyFor(models.PlanPremium, metric)
		assert.False(t, ok, "premium must have no policy for %s", metric)
	}
}

func TestPolicyForUnknownMetric(t *testing.T) {
	_, ok := PolicyFor(models.PlanFree, models.Metric("export_pdf"))
	assert.False(t, ok)
	assert.False(t, KnownMetric(models.Metric("export_pdf")))
	assert.True(t, KnownMetric(models.MetricDreamCreate))
}

func TestCurrentPeriods(t *testing.T) {
	now := time.Date(2025, 10, 15, 12, 0, 0, 0, time.UTC)
	periods := CurrentPeriods(now)
	require.Len(t, periods, 2)
	assert.Equal(t, "2025-10", periods[0])
	assert.Equal(t, "2025-10-15", periods[1])
}
