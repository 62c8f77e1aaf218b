package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/afrocoder16/mkc-songbook/internal/apperror"
	"github.com/afrocoder16/mkc-songbook/internal/model"
	"github.com/afrocoder16/mkc-songbook/internal/repository"
)

const searchHistoryLimit = 50

// UserService exposes profile operations for the authenticated user.
type UserService interface {
	GetProfile(ctx context.Context, id uint) (*model.User, error)
	SearchHistory(ctx context.Context, userID uint) ([]model.SearchHistory, error)
}

type userService struct {
	userRepo    repository.UserRepository
	historyRepo repository.SearchHistoryRepository
}

// NewUserService builds a UserService.
func NewUserService(userRepo repository.UserRepository, historyRepo repository.SearchHistoryRepository) UserService {
	return &userService{userRepo: userRepo, historyRepo: historyRepo}
}

func (s *userService) GetProfile(ctx context.Context, id uint) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("User not found.")
		}
		return nil, apperror.Unexpected(fmt.Errorf("find user: %w", err))
	}
	return user, nil
}

func (s *userService) SearchHistory(ctx context.Context, userID uint) ([]model.SearchHistory, error) {
	records, err := s.historyRepo.ListByUser(ctx, userID, searchHistoryLimit)
	if err != nil {
		return nil, apperror.Unexpected(fmt.Errorf("list search history: %w", err))
	}
	return records, nil
}
