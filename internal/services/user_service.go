package services

import (
	"dreamlog_backend/internal/dto"
	"dreamlog_backend/internal/logger"
	"dreamlog_backend/internal/repositories"
	"dreamlog_backend/internal/services/billing"
	"dreamlog_backend/pkg/apperrors"

	"gorm.io/gorm"
)

type UserService interface {
	GetProfile(db *gorm.DB, userID string) (*dto.UserResponse, error)
	UpdateProfile(db *gorm.DB, userID string, req *dto.UpdateProfileRequest) (*dto.UserResponse, error)
	DeleteAccount(db *gorm.DB, userID string) error
}

type userService struct {
	userRepo repositories.UserRepository
	resolver billing.EntitlementResolver
}

func NewUserService(userRepo repositories.UserRepository, resolver billing.EntitlementResolver) UserService {
	return &userService{userRepo: userRepo, resolver: resolver}
}

// GetProfile returns the profile with the effective plan, so a lapsed trial
// shows as free even before any gated action runs.
func (s *userService) GetProfile(db *gorm.DB, userID string) (*dto.UserResponse, error) {
	user, _, err := s.resolver.Resolve(db, userID)
	if err != nil {
		return nil, err
	}
	return userResponse(user), nil
}

func (s *userService) UpdateProfile(db *gorm.DB, userID string, req *dto.UpdateProfileRequest) (*dto.UserResponse, error) {
	user, err := s.userRepo.FindByID(db, userID)
	if err != nil {
		if apperrors.Is(err, repositories.ErrUserNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.InternalError(err)
	}

	if req.Name != nil {
		user.Name = *req.Name
	}
	if err := s.userRepo.Update(db, user); err != nil {
		return nil, apperrors.InternalError(err)
	}
	return userResponse(user), nil
}

func (s *userService) DeleteAccount(db *gorm.DB, userID string) error {
	if err := s.userRepo.Delete(db, userID); err != nil {
		return apperrors.InternalError(err)
	}
	logger.Info("account deleted", "user_id", userID)
	return nil
}
