package repository

import (
	"context"
	"errors"

	"civil-erp/internal/model"

	"gorm.io/gorm"
)

// GSTCredentialRepository stores the single tax-authority credential record.
type GSTCredentialRepository interface {
	// Get returns gorm.ErrRecordNotFound when nothing is configured.
	Get(ctx context.Context) (*model.GSTCredential, error)
	Upsert(ctx context.Context, cred *model.GSTCredential) error
	DeleteAll(ctx context.Context) error
}

type gstCredentialRepository struct {
	db *gorm.DB
}

func NewGSTCredentialRepository(db *gorm.DB) GSTCredentialRepository {
	return &gstCredentialRepository{db: db}
}

func (r *gstCredentialRepository) Get(ctx context.Context) (*model.GSTCredential, error) {
	var cred model.GSTCredential
	if err := GetDB(ctx, r.db).Order("id asc").First(&cred).Error; err != nil {
		return nil, err
	}
	return &cred, nil
}

func (r *gstCredentialRepository) Upsert(ctx context.Context, cred *model.GSTCredential) error {
	db := GetDB(ctx, r.db)
	existing, err := r.Get(ctx)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		cred.ID = 0
		return db.Create(cred).Error
	case err != nil:
		return err
	}

	cred.ID = existing.ID
	return db.Save(cred).Error
}

func (r *gstCredentialRepository) DeleteAll(ctx context.Context) error {
	return GetDB(ctx, r.db).Where("1 = 1").Delete(&model.GSTCredential{}).Error
}
