package services

import (
	"dreamlog_backend/internal/ai"
	"dreamlog_backend/internal/config"
	"dreamlog_backend/internal/email"
	"dreamlog_backend/internal/repositories"
	"dreamlog_backend/internal/services/billing"
)

// ServiceContainer holds every application service.
type ServiceContainer struct {
	AuthService    AuthService
	UserService    UserService
	DreamService   DreamService
	ChatService    ChatService
	BillingService billing.Service
	StripeService  billing.StripeService
	AppleService   billing.AppleService
	Entitlements   billing.EntitlementResolver
	EmailProvider  email.Provider

	// Repositories the workers reach directly.
	UserRepo  repositories.UserRepository
	UsageRepo repositories.UsageRepository
	TokenRepo repositories.RefreshTokenRepository
}

func NewServiceContainer(cfg *config.Config, mailer email.Provider) *ServiceContainer {
	userRepo := repositories.NewUserRepository()
	tokenRepo := repositories.NewRefreshTokenRepository()
	dreamRepo := repositories.NewDreamRepository()
	chatRepo := repositories.NewChatRepository()
	usageRepo := repositories.NewUsageRepository()
	subRepo := repositories.NewSubscriptionRepository()

	aiClient := ai.NewClient(cfg)
	resolver := billing.NewEntitlementResolver(userRepo, subRepo)

	return &ServiceContainer{
		AuthService:    NewAuthService(userRepo, tokenRepo, mailer),
		UserService:    NewUserService(userRepo, resolver),
		DreamService:   NewDreamService(dreamRepo, aiClient),
		ChatService:    NewChatService(chatRepo, dreamRepo, aiClient),
		BillingService: billing.NewService(userRepo, usageRepo, resolver),
		StripeService:  billing.NewStripeService(cfg, userRepo, subRepo),
		AppleService:   billing.NewAppleService(cfg, userRepo, subRepo),
		Entitlements:   resolver,
		EmailProvider:  mailer,
		UserRepo:       userRepo,
		UsageRepo:      usageRepo,
		TokenRepo:      tokenRepo,
	}
}
