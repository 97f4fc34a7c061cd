package repository

import (
	"context"

	"civil-erp/internal/model"
	"civil-erp/pkg/pagination"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type EInvoiceRepository interface {
	Create(ctx context.Context, invoice *model.EInvoice) error
	Save(ctx context.Context, invoice *model.EInvoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.EInvoice, error)
	FindByDocumentNumber(ctx context.Context, documentNumber string) (*model.EInvoice, error)
	List(ctx context.Context, status string, page, limit int) ([]model.EInvoice, int64, error)
	CountByStatus(ctx context.Context, statuses ...string) (int64, error)
	SumTotalValue(ctx context.Context) (decimal.Decimal, error)
}

type einvoiceRepository struct {
	db *gorm.DB
}

func NewEInvoiceRepository(db *gorm.DB) EInvoiceRepository {
	return &einvoiceRepository{db: db}
}

func (r *einvoiceRepository) Create(ctx context.Context, invoice *model.EInvoice) error {
	return GetDB(ctx, r.db).Create(invoice).Error
}

func (r *einvoiceRepository) Save(ctx context.Context, invoice *model.EInvoice) error {
	return GetDB(ctx, r.db).Save(invoice).Error
}

func (r *einvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.EInvoice, error) {
	var invoice model.EInvoice
	if err := GetDB(ctx, r.db).First(&invoice, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *einvoiceRepository) FindByDocumentNumber(ctx context.Context, documentNumber string) (*model.EInvoice, error) {
	var invoice model.EInvoice
	if err := GetDB(ctx, r.db).First(&invoice, "document_number = ?", documentNumber).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *einvoiceRepository) List(ctx context.Context, status string, page, limit int) ([]model.EInvoice, int64, error) {
	var invoices []model.EInvoice
	var total int64

	db := GetDB(ctx, r.db)
	query := db.Model(&model.EInvoice{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	p := pagination.New(page, limit)
	fetchQuery := db.Order("created_at desc")
	if status != "" {
		fetchQuery = fetchQuery.Where("status = ?", status)
	}
	if err := fetchQuery.Offset(p.Offset()).Limit(p.Limit).Find(&invoices).Error; err != nil {
		return nil, 0, err
	}

	return invoices, total, nil
}

// CountByStatus counts all invoices when no statuses are given.
func (r *einvoiceRepository) CountByStatus(ctx context.Context, statuses ...string) (int64, error) {
	query := GetDB(ctx, r.db).Model(&model.EInvoice{})
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}

	var count int64
	err := query.Count(&count).Error
	return count, err
}

func (r *einvoiceRepository) SumTotalValue(ctx context.Context) (decimal.Decimal, error) {
	var values []decimal.Decimal
	if err := GetDB(ctx, r.db).Model(&model.EInvoice{}).Pluck("total_invoice_value", &values).Error; err != nil {
		return decimal.Zero, err
	}
	return decimal.Sum(decimal.Zero, values...), nil
}
