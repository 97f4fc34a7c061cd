package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is a named set of per-module CRUD permissions assignable to users.
type Role struct {
	ID           uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string             `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	Description  string             `gorm:"type:text" json:"description"`
	Permissions  []ModulePermission `gorm:"type:text;serializer:json" json:"permissions"`
	IsSystemRole bool               `gorm:"not null;default:false" json:"is_system_role"` // cannot be deleted, renamed or deactivated
	IsActive     bool               `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

func (r *Role) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// ModulePermission is one row of a role's permission list.
type ModulePermission struct {
	Module string `json:"module" binding:"required"`
	View   bool   `json:"view"`
	Create bool   `json:"create"`
	Edit   bool   `json:"edit"`
	Delete bool   `json:"delete"`
}

// Actions returns the four booleans as an ActionSet.
func (p ModulePermission) Actions() ActionSet {
	return ActionSet{View: p.View, Create: p.Create, Edit: p.Edit, Delete: p.Delete}
}
