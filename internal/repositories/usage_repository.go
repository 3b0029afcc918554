package repositories

import (
	"errors"
	"time"

	"dreamlog_backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrUsageCounterNotFound = errors.New("usage counter not found")

// UsageRepository is the usage counter store. Counters are keyed by
// (user, metric, period); a period that has no row yet counts as zero.
type UsageRepository interface {
	// Current returns the count for one key without mutating anything.
	Current(db *gorm.DB, userID string, metric models.Metric, period string) (int, error)

	// Increment upserts the counter by +1 and returns the new count.
	Increment(db *gorm.DB, userID string, metric models.Metric, period string) (int, error)

	// ReserveIfUnder atomically increments the counter only while it is
	// below limit. The guard lives inside the single upsert statement, so
	// two concurrent requests can never both pass a full counter.
	ReserveIfUnder(db *gorm.DB, userID string, metric models.Metric, period string, limit int) (allowed bool, current int, err error)

	// Release undoes one reservation after a failed downstream action.
	Release(db *gorm.DB, userID string, metric models.Metric, period string) error

	// CountsForUser returns every counter the user has in the given periods,
	// keyed by metric. Used by the billing status endpoint.
	CountsForUser(db *gorm.DB, userID string, periods []string) (map[models.Metric]int, error)

	// PruneOlderThan deletes counter rows last touched before the cutoff.
	PruneOlderThan(db *gorm.DB, cutoff time.Time) (int64, error)
}

type UsageRepositoryImpl struct{}

func NewUsageRepository() UsageRepository {
	return &UsageRepositoryImpl{}
}

func (r *UsageRepositoryImpl) Current(db *gorm.DB, userID string, metric models.Metric, period string) (int, error) {
	var counter models.UsageCounter
	err := db.Where("user_id = ? AND metric = ? AND period = ?", userID, metric, period).First(&counter).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return counter.Count, nil
}

func (r *UsageRepositoryImpl) Increment(db *gorm.DB, userID string, metric models.Metric, period string) (int, error) {
	// Unconditional guarded upsert with limit high enough to always pass.
	allowed, current, err := r.reserve(db, userID, metric, period, -1)
	if err != nil {
		return 0, err
	}
	if !allowed {
		// Unreachable with no limit; keep the counter read for safety.
		return current, nil
	}
	return current, nil
}

func (r *UsageRepositoryImpl) ReserveIfUnder(db *gorm.DB, userID string, metric models.Metric, period string, limit int) (bool, int, error) {
	return r.reserve(db, userID, metric, period, limit)
}

// reserve performs the atomic conditional increment. limit < 0 means no limit.
func (r *UsageRepositoryImpl) reserve(db *gorm.DB, userID string, metric models.Metric, period string, limit int) (bool, int, error) {
	// The upsert guard only constrains the UPDATE arm; a zero limit must not
	// admit the period's first insert either.
	if limit == 0 {
		return false, 0, nil
	}

	if db.Dialector.Name() == "mysql" {
		return r.reserveMySQL(db, userID, metric, period, limit)
	}

	guard := ""
	args := []interface{}{uuid.NewString(), userID, metric, period}
	if limit >= 0 {
		guard = " WHERE usage_counters.count < ?"
		args = append(args, limit)
	}

	var newCount int
	row := db.Raw(`
		INSERT INTO usage_counters (id, user_id, metric, period, count, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, now(), now())
		ON CONFLICT (user_id, metric, period)
		DO UPDATE SET count = usage_counters.count + 1, updated_at = now()`+guard+`
		RETURNING count`, args...).Row()
	if err := row.Scan(&newCount); err != nil {
		// No row returned: the guard rejected the update, counter is full.
		current, cerr := r.Current(db, userID, metric, period)
		if cerr != nil {
			return false, 0, cerr
		}
		return false, current, nil
	}
	return true, newCount, nil
}

// reserveMySQL splits the upsert into update-then-insert; the unique index on
// (user_id, metric, period) keeps concurrent first-inserts from duplicating.
func (r *UsageRepositoryImpl) reserveMySQL(db *gorm.DB, userID string, metric models.Metric, period string, limit int) (bool, int, error) {
	query := db.Model(&models.UsageCounter{}).
		Where("user_id = ? AND metric = ? AND period = ?", userID, metric, period)
	if limit >= 0 {
		query = query.Where("count < ?", limit)
	}
	result := query.Update("count", gorm.Expr("count + 1"))
	if result.Error != nil {
		return false, 0, result.Error
	}
	if result.RowsAffected > 0 {
		current, err := r.Current(db, userID, metric, period)
		return true, current, err
	}

	// Either no row yet, or the guard rejected it.
	current, err := r.Current(db, userID, metric, period)
	if err != nil {
		return false, 0, err
	}
	if limit >= 0 && current >= limit {
		return false, current, nil
	}

	counter := &models.UsageCounter{
		BaseModel: models.BaseModel{ID: uuid.NewString()},
		UserID:    userID,
		Metric:    metric,
		Period:    period,
		Count:     1,
	}
	if err := db.Create(counter).Error; err != nil {
		// Lost the insert race; retry once as a plain update.
		return r.reserveMySQL(db, userID, metric, period, limit)
	}
	return true, 1, nil
}

func (r *UsageRepositoryImpl) Release(db *gorm.DB, userID string, metric models.Metric, period string) error {
	return db.Model(&models.UsageCounter{}).
		Where("user_id = ? AND metric = ? AND period = ? AND count > 0", userID, metric, period).
		Update("count", gorm.Expr("count - 1")).Error
}

func (r *UsageRepositoryImpl) CountsForUser(db *gorm.DB, userID string, periods []string) (map[models.Metric]int, error) {
	var counters []models.UsageCounter
	err := db.Where("user_id = ? AND period IN ?", userID, periods).Find(&counters).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[models.Metric]int, len(counters))
	for _, c := range counters {
		counts[c.Metric] = c.Count
	}
	return counts, nil
}

func (r *UsageRepositoryImpl) PruneOlderThan(db *gorm.DB, cutoff time.Time) (int64, error) {
	result := db.Delete(&models.UsageCounter{}, "updated_at < ?", cutoff)
	return result.RowsAffected, result.Error
}
