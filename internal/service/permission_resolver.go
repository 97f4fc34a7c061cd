package service

import (
	"context"
	"errors"

	"civil-erp/internal/model"
	"civil-erp/internal/repository"
	"civil-erp/pkg/apperror"

	"gorm.io/gorm"
)

// Where a resolved matrix came from.
const (
	SourceFineGrained = "fine_grained"
	SourceLegacy      = "legacy"
)

// Resolution is the tagged result of permission resolution.
type Resolution struct {
	Source      string                 `json:"source"`
	Permissions model.PermissionMatrix `json:"permissions"`
	// RoleName is the referenced role's name whenever that role exists, even if inactive.
	RoleName *string `json:"role_name"`
}

// PermissionResolver turns a user record into a fully populated permission matrix.
type PermissionResolver interface {
	Resolve(ctx context.Context, user *model.User) (*Resolution, error)
}

type permissionResolver struct {
	roles repository.RoleRepository
}

func NewPermissionResolver(roles repository.RoleRepository) PermissionResolver {
	return &permissionResolver{roles: roles}
}

// Resolve prefers an active assigned role. A missing or inactive role degrades
// silently to the legacy template, exactly as if no role were assigned.
func (r *permissionResolver) Resolve(ctx context.Context, user *model.User) (*Resolution, error) {
	res := &Resolution{Source: SourceLegacy}

	if user.RoleID != nil {
		role, err := r.roles.FindByID(ctx, *user.RoleID)
		switch {
		case err == nil:
			res.RoleName = &role.Name
			if role.IsActive {
				res.Source = SourceFineGrained
				res.Permissions = matrixFromRole(role)
				return res, nil
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return nil, apperror.Wrap(apperror.Internal, err, "failed to load role")
		}
	}

	res.Permissions = LegacyPermissions(user.Role)
	return res, nil
}

func matrixFromRole(role *model.Role) model.PermissionMatrix {
	m := model.NewPermissionMatrix()
	for _, p := range role.Permissions {
		// stale modules outside the fixed set are dropped
		if _, ok := m[p.Module]; ok {
			m[p.Module] = p.Actions()
		}
	}
	return m
}

var (
	viewOnly    = model.ActionSet{View: true}
	viewCreate  = model.ActionSet{View: true, Create: true}
	noDelete    = model.ActionSet{View: true, Create: true, Edit: true}
	legacyRoles = map[string]map[string]model.ActionSet{
		model.UserRoleSiteEngineer: {
			model.ModuleDashboard:   viewOnly,
			model.ModuleProjects:    noDelete,
			model.ModuleReports:     viewOnly,
			model.ModuleAIAssistant: viewCreate,
		},
		model.UserRoleFinance: {
			model.ModuleDashboard:  viewOnly,
			model.ModuleProjects:   viewOnly,
			model.ModuleFinancial:  model.FullAccess,
			model.ModuleCompliance: model.FullAccess,
			model.ModuleEInvoicing: model.FullAccess,
			model.ModuleReports:    viewCreate,
		},
		model.UserRoleProcurement: {
			model.ModuleDashboard:   viewOnly,
			model.ModuleProjects:    viewOnly,
			model.ModuleProcurement: model.FullAccess,
			model.ModuleReports:     viewOnly,
		},
	}
)

// LegacyPermissions applies the hardcoded template for a legacy role string.
// Unknown roles get the all-denied matrix.
func LegacyPermissions(role string) model.PermissionMatrix {
	m := model.NewPermissionMatrix()
	if role == model.UserRoleAdmin {
		for module := range m {
			m[module] = model.FullAccess
		}
		return m
	}
	for module, set := range legacyRoles[role] {
		m[module] = set
	}
	return m
}
