package repository

import (
	"context"

	"civil-erp/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RoleUserCount is the number of users referencing a role.
type RoleUserCount struct {
	RoleID uuid.UUID
	Count  int64
}

// UserRepository defines the interface for data access of User entities
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	ListAll(ctx context.Context) ([]model.User, error)
	Update(ctx context.Context, user *model.User) error
	SetRoleID(ctx context.Context, userID uuid.UUID, roleID *uuid.UUID) error
	CountAll(ctx context.Context) (int64, error)
	CountByRoleID(ctx context.Context, roleID uuid.UUID) (int64, error)
	CountWithRole(ctx context.Context) (int64, error)
	CountPerRole(ctx context.Context) ([]RoleUserCount, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new instance of UserRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return GetDB(ctx, r.db).Create(user).Error
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).First(&user, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) ListAll(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := GetDB(ctx, r.db).Order("created_at asc").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	return GetDB(ctx, r.db).Save(user).Error
}

// SetRoleID writes only the role_id column; a nil roleID clears the assignment.
func (r *userRepository) SetRoleID(ctx context.Context, userID uuid.UUID, roleID *uuid.UUID) error {
	return GetDB(ctx, r.db).Model(&model.User{}).Where("id = ?", userID).Update("role_id", roleID).Error
}

func (r *userRepository) CountAll(ctx context.Context) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.User{}).Count(&count).Error
	return count, err
}

func (r *userRepository) CountByRoleID(ctx context.Context, roleID uuid.UUID) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.User{}).Where("role_id = ?", roleID).Count(&count).Error
	return count, err
}

func (r *userRepository) CountWithRole(ctx context.Context) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.User{}).Where("role_id IS NOT NULL").Count(&count).Error
	return count, err
}

func (r *userRepository) CountPerRole(ctx context.Context) ([]RoleUserCount, error) {
	var rows []RoleUserCount
	err := GetDB(ctx, r.db).Model(&model.User{}).
		Select("role_id, COUNT(*) AS count").
		Where("role_id IS NOT NULL").
		Group("role_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
