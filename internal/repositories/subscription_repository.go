package repositories

import (
	"errors"

	"dreamlog_backend/internal/models"

	"gorm.io/gorm"
)

var ErrSubscriptionNotFound = errors.New("subscription not found")

type SubscriptionRepository interface {
	FindByUser(db *gorm.DB, userID string) (*models.UserSubscription, error)
	FindByStripeCustomer(db *gorm.DB, customerID string) (*models.UserSubscription, error)
	Upsert(db *gorm.DB, sub *models.UserSubscription) error
	UpdateStatus(db *gorm.DB, userID, status string) error
}

type SubscriptionRepositoryImpl struct{}

func NewSubscriptionRepository() SubscriptionRepository {
	return &SubscriptionRepositoryImpl{}
}

func (r *SubscriptionRepositoryImpl) FindByUser(db *gorm.DB, userID string) (*models.UserSubscription, error) {
	var sub models.UserSubscription
	err := db.First(&sub, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (r *SubscriptionRepositoryImpl) FindByStripeCustomer(db *gorm.DB, customerID string) (*models.UserSubscription, error) {
	var sub models.UserSubscription
	err := db.First(&sub, "stripe_customer_id = ?", customerID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

// Upsert writes the one subscription row a user has, merging provider fields
// so a Stripe webhook does not wipe a previously stored Apple expiry and
// vice versa. Replayed events land on the same row with the same values.
func (r *SubscriptionRepositoryImpl) Upsert(db *gorm.DB, sub *models.UserSubscription) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var existing models.UserSubscription
		err := tx.Where("user_id = ?", sub.UserID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(sub).Error
		}
		if err != nil {
			return err
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
		return tx.Save(&existing).Error
	})
}

func (r *SubscriptionRepositoryImpl) UpdateStatus(db *gorm.DB, userID, status string) error {
	result := db.Model(&models.UserSubscription{}).Where("user_id = ?", userID).Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}
