package repositories

import (
	"errors"
	"time"

	"dreamlog_backend/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrDreamNotFound = errors.New("dream not found")

// DreamFilter narrows dream listings.
type DreamFilter struct {
	Mood     string
	Lucid    *bool
	Tag      string
	DateFrom *time.Time
	DateTo   *time.Time
	Page     int
	PageSize int
}

type DreamRepository interface {
	Create(db *gorm.DB, dream *models.Dream) error
	FindByID(db *gorm.DB, id string) (*models.Dream, error)
	FindByUser(db *gorm.DB, userID string, filter DreamFilter) ([]models.Dream, int64, error)
	Update(db *gorm.DB, dream *models.Dream) error
	Delete(db *gorm.DB, id string) error
	SaveAnalysis(db *gorm.DB, id string, analysis datatypes.JSON) error
}

type DreamRepositoryImpl struct{}

func NewDreamRepository() DreamRepository {
	return &DreamRepositoryImpl{}
}

func (r *DreamRepositoryImpl) Create(db *gorm.DB, dream *models.Dream) error {
	return db.Create(dream).Error
}

func (r *DreamRepositoryImpl) FindByID(db *gorm.DB, id string) (*models.Dream, error) {
	var dream models.Dream
	err := db.First(&dream, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDreamNotFound
		}
		return nil, err
	}
	return &dream, nil
}

func (r *DreamRepositoryImpl) FindByUser(db *gorm.DB, userID string, filter DreamFilter) ([]models.Dream, int64, error) {
	query := db.Model(&models.Dream{}).Where("user_id = ?", userID)

	if filter.Mood != "" {
		query = query.Where("mood = ?", filter.Mood)
	}
	if filter.Lucid != nil {
		query = query.Where("lucid = ?", *filter.Lucid)
	}
	if filter.Tag != "" {
		query = query.Where("? = ANY(tags)", filter.Tag)
	}
	if filter.DateFrom != nil {
		query = query.Where("dream_date >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("dream_date <= ?", *filter.DateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	var dreams []models.Dream
	err := query.Order("dream_date DESC, created_at DESC").
		Offset((filter.Page - 1) * filter.PageSize).
		Limit(filter.PageSize).
		Find(&dreams).Error
	return dreams, total, err
}

func (r *DreamRepositoryImpl) Update(db *gorm.DB, dream *models.Dream) error {
	return db.Save(dream).Error
}

func (r *DreamRepositoryImpl) Delete(db *gorm.DB, id string) error {
	result := db.Delete(&models.Dream{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrDreamNotFound
	}
	return nil
}

func (r *DreamRepositoryImpl) SaveAnalysis(db *gorm.DB, id string, analysis datatypes.JSON) error {
	now := time.Now()
	result := db.Model(&models.Dream{}).Where("id = ?", id).Updates(map[string]interface{}{
		"analysis":    analysis,
		"analyzed_at": &now,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrDreamNotFound
	}
	return nil
}
