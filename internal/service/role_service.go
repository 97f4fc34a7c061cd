package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"civil-erp/internal/model"
	"civil-erp/internal/repository"
	"civil-erp/pkg/apperror"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateRoleRequest struct {
	Name        string                   `json:"name" binding:"required"`
	Description string                   `json:"description"`
	Permissions []model.ModulePermission `json:"permissions" binding:"dive"`
}

// UpdateRoleRequest applies only the fields that are present.
type UpdateRoleRequest struct {
	Name        *string                   `json:"name"`
	Description *string                   `json:"description"`
	Permissions *[]model.ModulePermission `json:"permissions"`
	IsActive    *bool                     `json:"is_active"`
}

type AssignRoleRequest struct {
	UserID string `json:"user_id" binding:"required"`
	RoleID string `json:"role_id" binding:"required"`
}

type ModulesResponse struct {
	Modules []string `json:"modules"`
	Actions []string `json:"actions"`
}

type UserRoleResponse struct {
	ID         uuid.UUID  `json:"id"`
	Email      string     `json:"email"`
	Name       string     `json:"name"`
	Role       string     `json:"role"`
	RoleID     *uuid.UUID `json:"role_id"`
	RoleName   *string    `json:"role_name"`
	Department string     `json:"department"`
	IsActive   bool       `json:"is_active"`
	CreatedAt  string     `json:"created_at"`
}

type RBACStats struct {
	TotalRoles          int64            `json:"total_roles"`
	ActiveRoles         int64            `json:"active_roles"`
	TotalUsers          int64            `json:"total_users"`
	UsersWithRBACRole   int64            `json:"users_with_rbac_role"`
	UsersWithLegacyRole int64            `json:"users_with_legacy_role"`
	UsersPerRole        map[string]int64 `json:"users_per_role"`
}

type InitRolesResult struct {
	Created int `json:"created"`
	Total   int `json:"total_roles"`
}

// --- Interface ---

type RoleService interface {
	ListModules() ModulesResponse
	CreateRole(ctx context.Context, req CreateRoleRequest, actorID uuid.UUID) (*model.Role, error)
	ListRoles(ctx context.Context, includeInactive bool) ([]model.Role, error)
	GetRole(ctx context.Context, id uuid.UUID) (*model.Role, error)
	UpdateRole(ctx context.Context, id uuid.UUID, req UpdateRoleRequest, actorID uuid.UUID) (*model.Role, error)
	DeleteRole(ctx context.Context, id uuid.UUID, actorID uuid.UUID) error
	AssignRole(ctx context.Context, userID, roleID uuid.UUID, actorID uuid.UUID) (*model.Role, error)
	RemoveRole(ctx context.Context, userID uuid.UUID, actorID uuid.UUID) error
	ListUsersWithRoles(ctx context.Context) ([]UserRoleResponse, error)
	Stats(ctx context.Context) (*RBACStats, error)
	InitSystemRoles(ctx context.Context, actorID *uuid.UUID) (*InitRolesResult, error)
}

type roleService struct {
	roles repository.RoleRepository
	users repository.UserRepository
	tx    repository.TransactionManager
	audit AuditService
	log   logrus.FieldLogger
}

func NewRoleService(
	roles repository.RoleRepository,
	users repository.UserRepository,
	tx repository.TransactionManager,
	audit AuditService,
	log logrus.FieldLogger,
) RoleService {
	return &roleService{roles: roles, users: users, tx: tx, audit: audit, log: log}
}

// --- Implementation ---

func (s *roleService) ListModules() ModulesResponse {
	return ModulesResponse{Modules: model.AvailableModules, Actions: model.AvailableActions}
}

func validatePermissions(perms []model.ModulePermission) error {
	for _, p := range perms {
		if !model.IsValidModule(p.Module) {
			return apperror.NewValidation("Invalid module: %s", p.Module)
		}
	}
	return nil
}

func (s *roleService) ensureNameFree(ctx context.Context, name string, excludeID *uuid.UUID) error {
	_, err := s.roles.FindByName(ctx, name, excludeID)
	switch {
	case err == nil:
		return apperror.NewConflict("Role with this name already exists")
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	default:
		return fmt.Errorf("failed to check role name: %w", err)
	}
}

func (s *roleService) CreateRole(ctx context.Context, req CreateRoleRequest, actorID uuid.UUID) (*model.Role, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperror.NewValidation("Role name is required")
	}
	if err := s.ensureNameFree(ctx, name, nil); err != nil {
		return nil, err
	}
	if err := validatePermissions(req.Permissions); err != nil {
		return nil, err
	}

	role := &model.Role{
		Name:         name,
		Description:  req.Description,
		Permissions:  req.Permissions,
		IsSystemRole: false,
		IsActive:     true,
	}
	if role.Permissions == nil {
		role.Permissions = []model.ModulePermission{}
	}
	if err := s.roles.Create(ctx, role); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperror.NewConflict("Role with this name already exists")
		}
		return nil, fmt.Errorf("failed to create role: %w", err)
	}

	s.audit.Record(ctx, &actorID, model.ActionCreateRole, role.ID.String(), role.Name, role.Permissions)
	return role, nil
}

func (s *roleService) ListRoles(ctx context.Context, includeInactive bool) ([]model.Role, error) {
	roles, err := s.roles.List(ctx, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roles: %w", err)
	}
	return roles, nil
}

func (s *roleService) GetRole(ctx context.Context, id uuid.UUID) (*model.Role, error) {
	role, err := s.roles.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFound("Role not found")
		}
		return nil, fmt.Errorf("failed to fetch role: %w", err)
	}
	return role, nil
}

// UpdateRole validates every requested change before touching the record,
// so a rejected update leaves the stored role exactly as it was.
func (s *roleService) UpdateRole(ctx context.Context, id uuid.UUID, req UpdateRoleRequest, actorID uuid.UUID) (*model.Role, error) {
	role, err := s.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}
	updated := *role

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apperror.NewValidation("Role name is required")
		}
		if role.IsSystemRole && name != role.Name {
			return nil, apperror.NewConflict("Cannot rename system roles")
		}
		if err := s.ensureNameFree(ctx, name, &role.ID); err != nil {
			return nil, err
		}
		updated.Name = name
	}
	if req.Description != nil {
		updated.Description = *req.Description
	}
	if req.Permissions != nil {
		if err := validatePermissions(*req.Permissions); err != nil {
			return nil, err
		}
		updated.Permissions = *req.Permissions
	}
	if req.IsActive != nil {
		if role.IsSystemRole && !*req.IsActive {
			return nil, apperror.NewInvalidState("Cannot deactivate system roles")
		}
		updated.IsActive = *req.IsActive
	}
	updated.UpdatedAt = time.Now()

	if err := s.roles.Update(ctx, &updated); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperror.NewConflict("Role with this name already exists")
		}
		return nil, fmt.Errorf("failed to update role: %w", err)
	}

	s.audit.Record(ctx, &actorID, model.ActionUpdateRole, updated.ID.String(), updated.Name, req)
	return &updated, nil
}

func (s *roleService) DeleteRole(ctx context.Context, id uuid.UUID, actorID uuid.UUID) error {
	var deleted *model.Role
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		role, err := s.GetRole(txCtx, id)
		if err != nil {
			return err
		}
		if role.IsSystemRole {
			return apperror.NewConflict("Cannot delete system roles")
		}

		assigned, err := s.users.CountByRoleID(txCtx, id)
		if err != nil {
			return fmt.Errorf("failed to count role users: %w", err)
		}
		if assigned > 0 {
			return apperror.NewConflict("Cannot delete role - %d user(s) are assigned to it", assigned)
		}

		if err := s.roles.Delete(txCtx, id); err != nil {
			return fmt.Errorf("failed to delete role: %w", err)
		}
		deleted = role
		return nil
	})
	if err != nil {
		return err
	}

	s.audit.Record(ctx, &actorID, model.ActionDeleteRole, deleted.ID.String(), deleted.Name, nil)
	return nil
}

func (s *roleService) getUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFound("User not found")
		}
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	return user, nil
}

func (s *roleService) AssignRole(ctx context.Context, userID, roleID uuid.UUID, actorID uuid.UUID) (*model.Role, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	role, err := s.roles.FindActiveByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFound("Role not found or inactive")
		}
		return nil, fmt.Errorf("failed to fetch role: %w", err)
	}

	if err := s.users.SetRoleID(ctx, user.ID, &role.ID); err != nil {
		return nil, fmt.Errorf("failed to assign role: %w", err)
	}

	s.audit.Record(ctx, &actorID, model.ActionAssignRole, user.ID.String(), user.Email, map[string]string{
		"role_id":   role.ID.String(),
		"role_name": role.Name,
	})
	return role, nil
}

func (s *roleService) RemoveRole(ctx context.Context, userID uuid.UUID, actorID uuid.UUID) error {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.users.SetRoleID(ctx, user.ID, nil); err != nil {
		return fmt.Errorf("failed to remove role: %w", err)
	}

	var previous interface{}
	if user.RoleID != nil {
		previous = map[string]string{"previous_role_id": user.RoleID.String()}
	}
	s.audit.Record(ctx, &actorID, model.ActionRemoveRole, user.ID.String(), user.Email, previous)
	return nil
}

func (s *roleService) roleNames(ctx context.Context) (map[uuid.UUID]string, error) {
	roles, err := s.roles.List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roles: %w", err)
	}
	names := make(map[uuid.UUID]string, len(roles))
	for _, r := range roles {
		names[r.ID] = r.Name
	}
	return names, nil
}

func (s *roleService) ListUsersWithRoles(ctx context.Context) ([]UserRoleResponse, error) {
	users, err := s.users.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch users: %w", err)
	}
	names, err := s.roleNames(ctx)
	if err != nil {
		return nil, err
	}

	res := make([]UserRoleResponse, 0, len(users))
	for _, u := range users {
		item := UserRoleResponse{
			ID:         u.ID,
			Email:      u.Email,
			Name:       u.Name,
			Role:       u.Role,
			RoleID:     u.RoleID,
			Department: u.Department,
			IsActive:   u.IsActive,
			CreatedAt:  u.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
		if u.RoleID != nil {
			if name, ok := names[*u.RoleID]; ok {
				item.RoleName = &name
			}
		}
		res = append(res, item)
	}
	return res, nil
}

func (s *roleService) Stats(ctx context.Context) (*RBACStats, error) {
	stats := &RBACStats{UsersPerRole: map[string]int64{}}
	var err error

	if stats.TotalRoles, err = s.roles.Count(ctx, false); err != nil {
		return nil, fmt.Errorf("failed to count roles: %w", err)
	}
	if stats.ActiveRoles, err = s.roles.Count(ctx, true); err != nil {
		return nil, fmt.Errorf("failed to count active roles: %w", err)
	}
	if stats.TotalUsers, err = s.users.CountAll(ctx); err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	if stats.UsersWithRBACRole, err = s.users.CountWithRole(ctx); err != nil {
		return nil, fmt.Errorf("failed to count users with role: %w", err)
	}
	stats.UsersWithLegacyRole = stats.TotalUsers - stats.UsersWithRBACRole

	counts, err := s.users.CountPerRole(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users per role: %w", err)
	}
	names, err := s.roleNames(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range counts {
		name, ok := names[c.RoleID]
		if !ok {
			name = "Unknown"
		}
		stats.UsersPerRole[name] += c.Count
	}
	return stats, nil
}

func perms(modules map[string]model.ActionSet) []model.ModulePermission {
	out := make([]model.ModulePermission, 0, len(modules))
	// keep the module order of AvailableModules
	for _, m := range model.AvailableModules {
		if a, ok := modules[m]; ok {
			out = append(out, model.ModulePermission{Module: m, View: a.View, Create: a.Create, Edit: a.Edit, Delete: a.Delete})
		}
	}
	return out
}

// DefaultRoles are created by InitSystemRoles. Only Administrator is a system role.
func DefaultRoles() []model.Role {
	full := make(map[string]model.ActionSet, len(model.AvailableModules))
	for _, m := range model.AvailableModules {
		full[m] = model.FullAccess
	}
	return []model.Role{
		{
			Name:         "Administrator",
			Description:  "Full system access",
			IsSystemRole: true,
			Permissions:  perms(full),
		},
		{
			Name:        "HR Manager",
			Description: "Human Resources management",
			Permissions: perms(map[string]model.ActionSet{
				model.ModuleDashboard: viewOnly,
				model.ModuleHRMS:      model.FullAccess,
				model.ModuleReports:   viewCreate,
			}),
		},
		{
			Name:        "Project Manager",
			Description: "Project management and oversight",
			Permissions: perms(map[string]model.ActionSet{
				model.ModuleDashboard:   viewOnly,
				model.ModuleProjects:    noDelete,
				model.ModuleProcurement: viewOnly,
				model.ModuleReports:     viewCreate,
				model.ModuleAIAssistant: viewCreate,
			}),
		},
		{
			Name:        "Accountant",
			Description: "Financial operations and compliance",
			Permissions: perms(map[string]model.ActionSet{
				model.ModuleDashboard:  viewOnly,
				model.ModuleFinancial:  noDelete,
				model.ModuleCompliance: noDelete,
				model.ModuleEInvoicing: noDelete,
				model.ModuleReports:    viewCreate,
			}),
		},
		{
			Name:        "Site Engineer",
			Description: "On-site project execution",
			Permissions: perms(map[string]model.ActionSet{
				model.ModuleDashboard:   viewOnly,
				model.ModuleProjects:    noDelete,
				model.ModuleReports:     viewOnly,
				model.ModuleAIAssistant: viewCreate,
			}),
		},
		{
			Name:        "Procurement Officer",
			Description: "Procurement and vendor management",
			Permissions: perms(map[string]model.ActionSet{
				model.ModuleDashboard:   viewOnly,
				model.ModuleProcurement: model.FullAccess,
				model.ModuleProjects:    viewOnly,
				model.ModuleReports:     viewOnly,
			}),
		},
	}
}

// InitSystemRoles creates each default role that does not exist yet by name.
func (s *roleService) InitSystemRoles(ctx context.Context, actorID *uuid.UUID) (*InitRolesResult, error) {
	defaults := DefaultRoles()
	created := 0

	for i := range defaults {
		role := defaults[i]
		_, err := s.roles.FindByName(ctx, role.Name, nil)
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to check role %q: %w", role.Name, err)
		}

		role.IsActive = true
		if err := s.roles.Create(ctx, &role); err != nil {
			return nil, fmt.Errorf("failed to create role %q: %w", role.Name, err)
		}
		created++
		s.log.WithField("role", role.Name).Info("created default role")
	}

	s.audit.Record(ctx, actorID, model.ActionInitSystemRoles, "", "", map[string]int{"created": created})
	return &InitRolesResult{Created: created, Total: len(defaults)}, nil
}
