package models

import "time"

type User struct {
	BaseModel
	Email        string     `gorm:"uniqueIndex;not null"`
	PasswordHash string     `gorm:"not null"`
	Name         string     `gorm:"type:varchar(120)"`
	Role         UserRole   `gorm:"type:varchar(20);not null;default:'user'"`
	Status       UserStatus `gorm:"type:varchar(20);default:'pending'"`
	IsVerified   bool       `gorm:"default:false"`

	// Entitlement state. Plan is the stored flag; the effective plan is always
	// recomputed through billing.ResolveEntitlement so a lapsed trial or an
	// expired Apple receipt cannot leave a user premium.
	Plan     Plan       `gorm:"type:varchar(20);not null;default:'free'"`
	TrialEnd *time.Time

	VerificationToken string
	ResetToken        string
	ResetTokenExp     *time.Time

	// Relations
	Subscription  *UserSubscription `gorm:"foreignKey:UserID"`
	RefreshTokens []RefreshToken    `gorm:"foreignKey:UserID"`
	Dreams        []Dream           `gorm:"foreignKey:UserID"`
}

type RefreshToken struct {
	BaseModel
	UserID    string    `gorm:"not null;index"`
	Token     string    `gorm:"not null;uniqueIndex"`
	ExpiresAt time.Time `gorm:"not null"`
}
