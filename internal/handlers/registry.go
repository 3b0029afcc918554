package handlers

import (
	"dreamlog_backend/internal/services"
	"dreamlog_backend/internal/validator"
)

// AppHandlers holds every HTTP handler group.
type AppHandlers struct {
	Auth    *AuthHandler
	User    *UserHandler
	Dream   *DreamHandler
	Chat    *ChatHandler
	Billing *BillingHandler
}

func NewAppHandlers(sc *services.ServiceContainer, v *validator.Validator) *AppHandlers {
	base := NewBaseHandler(v)

	return &AppHandlers{
		Auth:    NewAuthHandler(base, sc.AuthService),
		User:    NewUserHandler(base, sc.UserService),
		Dream:   NewDreamHandler(base, sc.DreamService, sc.BillingService),
		Chat:    NewChatHandler(base, sc.ChatService, sc.BillingService),
		Billing: NewBillingHandler(base, sc.BillingService, sc.StripeService, sc.AppleService),
	}
}
