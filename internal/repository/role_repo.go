package repository

import (
	"context"
	"strings"

	"civil-erp/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RoleRepository interface {
	Create(ctx context.Context, role *model.Role) error
	Update(ctx context.Context, role *model.Role) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Role, error)
	FindActiveByID(ctx context.Context, id uuid.UUID) (*model.Role, error)
	// FindByName matches case-insensitively on the trimmed name. excludeID, if set, is skipped.
	FindByName(ctx context.Context, name string, excludeID *uuid.UUID) (*model.Role, error)
	List(ctx context.Context, includeInactive bool) ([]model.Role, error)
	Count(ctx context.Context, activeOnly bool) (int64, error)
}

type roleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db: db}
}

func (r *roleRepository) Create(ctx context.Context, role *model.Role) error {
	return GetDB(ctx, r.db).Create(role).Error
}

func (r *roleRepository) Update(ctx context.Context, role *model.Role) error {
	return GetDB(ctx, r.db).Save(role).Error
}

func (r *roleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Role{}).Error
}

func (r *roleRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Role, error) {
	var role model.Role
	if err := GetDB(ctx, r.db).First(&role, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) FindActiveByID(ctx context.Context, id uuid.UUID) (*model.Role, error) {
	var role model.Role
	if err := GetDB(ctx, r.db).Where("id = ? AND is_active = ?", id, true).First(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) FindByName(ctx context.Context, name string, excludeID *uuid.UUID) (*model.Role, error) {
	query := GetDB(ctx, r.db).Where("LOWER(name) = ?", strings.ToLower(strings.TrimSpace(name)))
	if excludeID != nil {
		query = query.Where("id <> ?", *excludeID)
	}

	var role model.Role
	if err := query.First(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) List(ctx context.Context, includeInactive bool) ([]model.Role, error) {
	query := GetDB(ctx, r.db).Order("created_at asc")
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}

	var roles []model.Role
	if err := query.Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *roleRepository) Count(ctx context.Context, activeOnly bool) (int64, error) {
	query := GetDB(ctx, r.db).Model(&model.Role{})
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	var count int64
	err := query.Count(&count).Error
	return count, err
}
