package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"civil-erp/internal/model"
	"civil-erp/internal/repository"
	"civil-erp/pkg/apperror"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DTOs for Request validation
type RegisterRequest struct {
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=6"`
	Name       string `json:"name" binding:"required"`
	Role       string `json:"role"` // legacy role, defaults to site_engineer
	Phone      string `json:"phone"`
	Department string `json:"department"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UserWithPermissions is the user as seen by the client, with the resolved matrix.
type UserWithPermissions struct {
	ID               uuid.UUID              `json:"id"`
	Email            string                 `json:"email"`
	Name             string                 `json:"name"`
	Role             string                 `json:"role"`
	RoleID           *uuid.UUID             `json:"role_id"`
	RoleName         *string                `json:"role_name"`
	Phone            string                 `json:"phone,omitempty"`
	Department       string                 `json:"department,omitempty"`
	IsActive         bool                   `json:"is_active"`
	CreatedAt        string                 `json:"created_at"`
	Permissions      model.PermissionMatrix `json:"permissions"`
	PermissionSource string                 `json:"permission_source"`
}

type TokenResponse struct {
	AccessToken string              `json:"access_token"`
	TokenType   string              `json:"token_type"`
	User        UserWithPermissions `json:"user"`
}

type UserService interface {
	Register(ctx context.Context, req RegisterRequest) (*TokenResponse, error)
	Login(ctx context.Context, req LoginRequest) (*TokenResponse, error)
	Me(ctx context.Context, user *model.User) (*UserWithPermissions, error)
}

type userService struct {
	repo     repository.UserRepository
	resolver PermissionResolver
	tokens   TokenManager
}

// NewUserService returns a new instance of UserService
func NewUserService(repo repository.UserRepository, resolver PermissionResolver, tokens TokenManager) UserService {
	return &userService{repo: repo, resolver: resolver, tokens: tokens}
}

func (s *userService) Register(ctx context.Context, req RegisterRequest) (*TokenResponse, error) {
	email := strings.TrimSpace(req.Email)
	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = model.UserRoleSiteEngineer
	}
	if !model.IsValidLegacyRole(role) {
		return nil, apperror.NewValidation("invalid role: must be one of %s", strings.Join(model.LegacyRoles, ", "))
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, apperror.NewConflict("Email already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Email:      email,
		Name:       strings.TrimSpace(req.Name),
		Password:   string(hashed),
		Role:       role,
		Phone:      req.Phone,
		Department: req.Department,
		IsActive:   true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperror.NewConflict("Email already registered")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return s.issue(ctx, user)
}

func (s *userService) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	user, err := s.repo.GetByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.New(apperror.Unauthenticated, "Invalid credentials")
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, apperror.New(apperror.Unauthenticated, "Invalid credentials")
	}

	return s.issue(ctx, user)
}

func (s *userService) Me(ctx context.Context, user *model.User) (*UserWithPermissions, error) {
	res, err := s.resolver.Resolve(ctx, user)
	if err != nil {
		return nil, err
	}
	return toUserWithPermissions(user, res), nil
}

func (s *userService) issue(ctx context.Context, user *model.User) (*TokenResponse, error) {
	withPerms, err := s.Me(ctx, user)
	if err != nil {
		return nil, err
	}
	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &TokenResponse{AccessToken: token, TokenType: "bearer", User: *withPerms}, nil
}

func toUserWithPermissions(user *model.User, res *Resolution) *UserWithPermissions {
	return &UserWithPermissions{
		ID:               user.ID,
		Email:            user.Email,
		Name:             user.Name,
		Role:             user.Role,
		RoleID:           user.RoleID,
		RoleName:         res.RoleName,
		Phone:            user.Phone,
		Department:       user.Department,
		IsActive:         user.IsActive,
		CreatedAt:        user.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		Permissions:      res.Permissions,
		PermissionSource: res.Source,
	}
}
