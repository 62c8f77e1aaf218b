package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/afrocoder16/mkc-songbook/internal/model"
)

// UserRepository defines credential store persistence operations.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id uint) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	UpdatePasswordByEmail(ctx context.Context, email, passwordHash string) error
	EnsureAdmin(ctx context.Context, admin *model.User) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository builds a GORM-backed repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) UpdatePasswordByEmail(ctx context.Context, email, passwordHash string) error {
	return r.db.WithContext(ctx).Model(&model.User{}).
		Where("email = ?", email).
		Update("password_hash", passwordHash).Error
}

// EnsureAdmin creates the bootstrap admin account if no user holds its email.
func (r *userRepository) EnsureAdmin(ctx context.Context, admin *model.User) error {
	return r.db.WithContext(ctx).
		Where("email = ?", admin.Email).
		FirstOrCreate(admin).Error
}
