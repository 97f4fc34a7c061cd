package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// E-invoice lifecycle statuses.
const (
	EInvoiceDraft            = "draft"
	EInvoiceSubmitted        = "submitted"
	EInvoiceAuthFailed       = "auth_failed"
	EInvoiceSubmissionFailed = "submission_failed"
	EInvoiceRejected         = "rejected"
	EInvoiceIRNGenerated     = "irn_generated"
	EInvoiceCancelled        = "cancelled"
)

// EInvoiceStatuses is the closed set of lifecycle statuses.
var EInvoiceStatuses = []string{
	EInvoiceDraft,
	EInvoiceSubmitted,
	EInvoiceAuthFailed,
	EInvoiceSubmissionFailed,
	EInvoiceRejected,
	EInvoiceIRNGenerated,
	EInvoiceCancelled,
}

var einvoiceTransitions = map[string][]string{
	EInvoiceDraft:        {EInvoiceAuthFailed, EInvoiceSubmissionFailed, EInvoiceRejected, EInvoiceIRNGenerated},
	EInvoiceIRNGenerated: {EInvoiceCancelled},
}

// CanTransition reports whether the lifecycle allows moving from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range einvoiceTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsValidEInvoiceStatus reports whether status belongs to EInvoiceStatuses.
func IsValidEInvoiceStatus(status string) bool {
	for _, s := range EInvoiceStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// JSONMap holds opaque diagnostic payloads such as the portal response.
type JSONMap map[string]interface{}

// EInvoiceItem is a single invoice line in the internal representation.
type EInvoiceItem struct {
	SlNo            int             `json:"sl_no" binding:"required"`
	ItemDescription string          `json:"item_description" binding:"required"`
	HSNCode         string          `json:"hsn_code" binding:"required"`
	Quantity        decimal.Decimal `json:"quantity"`
	Unit            string          `json:"unit"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Discount        decimal.Decimal `json:"discount"`
	TaxableValue    decimal.Decimal `json:"taxable_value"`
	GSTRate         decimal.Decimal `json:"gst_rate"`
	CGSTAmount      decimal.Decimal `json:"cgst_amount"`
	SGSTAmount      decimal.Decimal `json:"sgst_amount"`
	IGSTAmount      decimal.Decimal `json:"igst_amount"`
	CessAmount      decimal.Decimal `json:"cess_amount"`
	TotalItemValue  decimal.Decimal `json:"total_item_value"`
}

// EInvoice is the persisted e-invoice: immutable document fields plus the lifecycle envelope.
type EInvoice struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	BillingID         *string         `gorm:"type:varchar(64);index" json:"billing_id"`
	DocumentNumber    string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"document_number"`
	DocumentDate      string          `gorm:"type:varchar(20);not null" json:"document_date"`
	DocumentType      string          `gorm:"type:varchar(10);not null" json:"document_type"`
	SupplyType        string          `gorm:"type:varchar(10);not null" json:"supply_type"`
	SellerGSTIN       string          `gorm:"type:varchar(15);not null" json:"seller_gstin"`
	SellerLegalName   string          `gorm:"type:varchar(255);not null" json:"seller_legal_name"`
	BuyerGSTIN        string          `gorm:"type:varchar(15);not null" json:"buyer_gstin"`
	BuyerLegalName    string          `gorm:"type:varchar(255);not null" json:"buyer_legal_name"`
	TotalTaxableValue decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"total_taxable_value"`
	TotalCGST         decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"total_cgst"`
	TotalSGST         decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"total_sgst"`
	TotalIGST         decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"total_igst"`
	TotalInvoiceValue decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"total_invoice_value"`
	Items             []EInvoiceItem  `gorm:"type:text;serializer:json" json:"items"`

	// Populated from the tax authority (or the simulator) after submission.
	IRN           *string `gorm:"type:varchar(64);index" json:"irn"`
	AckNumber     *string `gorm:"type:varchar(32)" json:"ack_number"`
	AckDate       *string `gorm:"type:varchar(32)" json:"ack_date"`
	SignedInvoice *string `gorm:"type:text" json:"signed_invoice"`
	SignedQRCode  *string `gorm:"type:text" json:"signed_qr_code"`
	QRCodeImage   *string `gorm:"type:text" json:"qr_code_image"` // base64 PNG

	EWayBillNumber    *string `gorm:"type:varchar(32)" json:"eway_bill_number"`
	EWayBillDate      *string `gorm:"type:varchar(32)" json:"eway_bill_date"`
	EWayBillValidTill *string `gorm:"type:varchar(32)" json:"eway_bill_valid_till"`

	Status       string     `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`
	NICResponse  JSONMap    `gorm:"type:text;serializer:json" json:"nic_response"`
	ErrorDetails *string    `gorm:"type:text" json:"error_details"`
	CreatedBy    *uuid.UUID `gorm:"type:uuid" json:"created_by"`
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt    *time.Time `gorm:"autoUpdateTime:false" json:"updated_at"`
}

func (e *EInvoice) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// EInvoiceRequest is the full FORM-INV-01 source document submitted for IRN generation.
type EInvoiceRequest struct {
	BillingID *string `json:"billing_id"`

	SupplyType     string `json:"supply_type"`   // B2B, B2C, SEZWP, SEZWOP, EXPWP, EXPWOP, DEXP
	DocumentType   string `json:"document_type"` // INV, CRN, DBN
	DocumentNumber string `json:"document_number" binding:"required"`
	DocumentDate   string `json:"document_date" binding:"required"`

	SellerGSTIN     string `json:"seller_gstin" binding:"required"`
	SellerLegalName string `json:"seller_legal_name" binding:"required"`
	SellerTradeName string `json:"seller_trade_name"`
	SellerAddress   string `json:"seller_address" binding:"required"`
	SellerLocation  string `json:"seller_location" binding:"required"`
	SellerPincode   string `json:"seller_pincode" binding:"required"`
	SellerStateCode string `json:"seller_state_code"`

	BuyerGSTIN     string `json:"buyer_gstin" binding:"required"`
	BuyerLegalName string `json:"buyer_legal_name" binding:"required"`
	BuyerTradeName string `json:"buyer_trade_name"`
	BuyerAddress   string `json:"buyer_address" binding:"required"`
	BuyerLocation  string `json:"buyer_location" binding:"required"`
	BuyerPincode   string `json:"buyer_pincode" binding:"required"`
	BuyerStateCode string `json:"buyer_state_code"`
	BuyerPOS       string `json:"buyer_pos"` // place of supply

	DispatchFromName      string `json:"dispatch_from_name"`
	DispatchFromAddress   string `json:"dispatch_from_address"`
	DispatchFromLocation  string `json:"dispatch_from_location"`
	DispatchFromPincode   string `json:"dispatch_from_pincode"`
	DispatchFromStateCode string `json:"dispatch_from_state_code"`

	ShipToGSTIN     string `json:"ship_to_gstin"`
	ShipToLegalName string `json:"ship_to_legal_name"`
	ShipToAddress   string `json:"ship_to_address"`
	ShipToLocation  string `json:"ship_to_location"`
	ShipToPincode   string `json:"ship_to_pincode"`
	ShipToStateCode string `json:"ship_to_state_code"`

	Items []EInvoiceItem `json:"items" binding:"required,dive"`

	TotalTaxableValue decimal.Decimal `json:"total_taxable_value"`
	TotalCGST         decimal.Decimal `json:"total_cgst"`
	TotalSGST         decimal.Decimal `json:"total_sgst"`
	TotalIGST         decimal.Decimal `json:"total_igst"`
	TotalCess         decimal.Decimal `json:"total_cess"`
	TotalDiscount     decimal.Decimal `json:"total_discount"`
	OtherCharges      decimal.Decimal `json:"other_charges"`
	RoundOff          decimal.Decimal `json:"round_off"`
	TotalInvoiceValue decimal.Decimal `json:"total_invoice_value"`

	PaymentMode  string `json:"payment_mode"` // CASH, CREDIT, DIRECT_TRANSFER
	PaymentTerms string `json:"payment_terms"`

	TransporterID     string `json:"transporter_id"`
	TransporterName   string `json:"transporter_name"`
	TransportMode     string `json:"transport_mode"` // 1-Road, 2-Rail, 3-Air, 4-Ship
	TransportDistance *int   `json:"transport_distance"`
	VehicleNumber     string `json:"vehicle_number"`
	VehicleType       string `json:"vehicle_type"`
}

// ApplyDefaults fills the optional fields the portal requires with their conventional defaults.
func (r *EInvoiceRequest) ApplyDefaults() {
	if r.SupplyType == "" {
		r.SupplyType = "B2B"
	}
	if r.DocumentType == "" {
		r.DocumentType = "INV"
	}
	if r.SellerStateCode == "" {
		r.SellerStateCode = "33"
	}
	if r.BuyerStateCode == "" {
		r.BuyerStateCode = "33"
	}
	if r.BuyerPOS == "" {
		r.BuyerPOS = "33"
	}
	if r.PaymentMode == "" {
		r.PaymentMode = "CREDIT"
	}
	for i := range r.Items {
		if r.Items[i].Unit == "" {
			r.Items[i].Unit = "NOS"
		}
	}
}
