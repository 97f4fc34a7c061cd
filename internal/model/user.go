package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Legacy role strings carried on every user. Fine-grained roles are referenced through RoleID.
const (
	UserRoleAdmin        = "admin"
	UserRoleSiteEngineer = "site_engineer"
	UserRoleFinance      = "finance"
	UserRoleProcurement  = "procurement"
)

// LegacyRoles lists every accepted legacy role string.
var LegacyRoles = []string{UserRoleAdmin, UserRoleSiteEngineer, UserRoleFinance, UserRoleProcurement}

// IsValidLegacyRole reports whether role is one of LegacyRoles.
func IsValidLegacyRole(role string) bool {
	for _, r := range LegacyRoles {
		if r == role {
			return true
		}
	}
	return false
}

// User represents an ERP account. Role is the legacy role string, RoleID the optional RBAC role.
type User struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Email      string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Name       string         `gorm:"type:varchar(255);not null" json:"name"`
	Password   string         `gorm:"type:varchar(255);not null" json:"-"`
	Role       string         `gorm:"type:varchar(50);not null;default:'site_engineer'" json:"role"`
	RoleID     *uuid.UUID     `gorm:"type:uuid;index" json:"role_id"`
	Phone      string         `gorm:"type:varchar(20)" json:"phone,omitempty"`
	Department string         `gorm:"type:varchar(100)" json:"department,omitempty"`
	IsActive   bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"` // GORM soft delete
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
