package models

// Metric names a countable, billable user action.
type Metric string

const (
	MetricDreamCreate Metric = "dream_create"
	MetricAIAnalyze   Metric = "ai_analyze"
	MetricChatMessage Metric = "chat_message"
)

// UsageCounter holds one per-user, per-metric count inside one billing period.
// Rows are created lazily on first use of a period; a new period key starts
// at zero simply because no row exists yet.
type UsageCounter struct {
	BaseModel
	UserID string `gorm:"type:uuid;not null;uniqueIndex:idx_usage_user_metric_period"`
	Metric Metric `gorm:"type:varchar(40);not null;uniqueIndex:idx_usage_user_metric_period"`
	Period string `gorm:"type:varchar(10);not null;uniqueIndex:idx_usage_user_metric_period"` // "2025-10" or "2025-10-15", UTC
	Count  int    `gorm:"not null;default:0"`
}

func (UsageCounter) TableName() string {
	return "usage_counters"
}
