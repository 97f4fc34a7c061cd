package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"civil-erp/internal/metrics"
	"civil-erp/internal/model"
	"civil-erp/internal/nic"
	"civil-erp/internal/repository"
	"civil-erp/pkg/apperror"
	"civil-erp/pkg/qr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	defaultCancelReason = "Data entry error"
	ackDateLayout       = "02/01/2006 03:04:05 PM"
	simulatedMessage    = "Generated in test mode (NIC credentials not configured)"
	simulatedCancel     = "Cancelled in test mode"
)

// --- DTOs ---

type CancelEInvoiceRequest struct {
	Reason string `json:"reason"`
}

type EInvoiceStats struct {
	Total                 int64           `json:"total"`
	IRNGenerated          int64           `json:"irn_generated"`
	Cancelled             int64           `json:"cancelled"`
	Failed                int64           `json:"failed"`
	Draft                 int64           `json:"draft"`
	TotalValue            decimal.Decimal `json:"total_value"`
	CredentialsConfigured bool            `json:"credentials_configured"`
}

// simulatedQR is the content encoded into the QR image of a test-mode invoice.
type simulatedQR struct {
	SellerGstin string  `json:"SellerGstin"`
	BuyerGstin  string  `json:"BuyerGstin"`
	DocNo       string  `json:"DocNo"`
	DocDt       string  `json:"DocDt"`
	TotVal      float64 `json:"TotVal"`
	Irn         string  `json:"Irn"`
	IrnDt       string  `json:"IrnDt"`
}

// PortalClient is the subset of the NIC client the lifecycle manager drives.
type PortalClient interface {
	PortalAuthenticator
	Submit(ctx context.Context, s *nic.Session, payload *nic.InvoicePayload) nic.Result
	Cancel(ctx context.Context, s *nic.Session, irn, reason string) nic.Result
}

type EInvoiceService interface {
	Generate(ctx context.Context, req model.EInvoiceRequest, actorID *uuid.UUID) (*model.EInvoice, error)
	Cancel(ctx context.Context, id uuid.UUID, reason string, actorID *uuid.UUID) (*model.EInvoice, error)
	List(ctx context.Context, status string, page, limit int) ([]model.EInvoice, int64, error)
	Get(ctx context.Context, id uuid.UUID) (*model.EInvoice, error)
	Stats(ctx context.Context) (*EInvoiceStats, error)
}

type einvoiceService struct {
	repo     repository.EInvoiceRepository
	provider CredentialProvider
	client   PortalClient
	audit    AuditService
	events   EventPublisher
	metrics  *metrics.Metrics
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewEInvoiceService(
	repo repository.EInvoiceRepository,
	provider CredentialProvider,
	client PortalClient,
	audit AuditService,
	events EventPublisher,
	m *metrics.Metrics,
	log logrus.FieldLogger,
) EInvoiceService {
	return &einvoiceService{
		repo:     repo,
		provider: provider,
		client:   client,
		audit:    audit,
		events:   events,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

// Generate persists a new invoice and drives it through registration.
// Portal failures end up in the stored status and error details; the returned
// error is reserved for validation, conflicts and storage problems.
func (s *einvoiceService) Generate(ctx context.Context, req model.EInvoiceRequest, actorID *uuid.UUID) (*model.EInvoice, error) {
	req.ApplyDefaults()
	if err := validateEInvoiceRequest(&req); err != nil {
		return nil, err
	}

	_, err := s.repo.FindByDocumentNumber(ctx, req.DocumentNumber)
	switch {
	case err == nil:
		return nil, apperror.NewConflict("E-Invoice for document %s already exists", req.DocumentNumber)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("failed to check document number: %w", err)
	}

	invoice := newEInvoice(&req, actorID)
	if cred := s.provider.Current(); cred == nil {
		err = s.simulate(invoice)
	} else {
		err = s.register(ctx, cred, &req, invoice)
	}
	if err != nil {
		return nil, err
	}

	stamp := s.now().UTC()
	invoice.UpdatedAt = &stamp
	if err := s.repo.Create(ctx, invoice); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperror.NewConflict("E-Invoice for document %s already exists", req.DocumentNumber)
		}
		return nil, fmt.Errorf("failed to save e-invoice: %w", err)
	}

	s.audit.Record(ctx, actorID, model.ActionGenerateEInvoice, invoice.ID.String(), invoice.DocumentNumber, map[string]interface{}{
		"status": invoice.Status,
		"irn":    invoice.IRN,
	})
	s.announce(invoice)
	return invoice, nil
}

// simulate issues a locally derived IRN when no portal credentials are configured.
// The record is labelled as test mode in its NIC response.
func (s *einvoiceService) simulate(invoice *model.EInvoice) error {
	ts := s.now().UTC()
	nonce := make([]byte, 8)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate IRN nonce: %w", err)
	}
	sum := sha256.Sum256([]byte(invoice.DocumentNumber + "-" + ts.Format(time.RFC3339Nano) + "-" + hex.EncodeToString(nonce)))
	irn := hex.EncodeToString(sum[:])
	ackNo := strconv.FormatUint(binary.BigEndian.Uint64(sum[:8])%1_000_000_000, 10)
	ackDate := ts.Format(ackDateLayout)

	content, err := json.Marshal(simulatedQR{
		SellerGstin: invoice.SellerGSTIN,
		BuyerGstin:  invoice.BuyerGSTIN,
		DocNo:       invoice.DocumentNumber,
		DocDt:       invoice.DocumentDate,
		TotVal:      invoice.TotalInvoiceValue.InexactFloat64(),
		Irn:         irn,
		IrnDt:       ackDate,
	})
	if err != nil {
		return fmt.Errorf("failed to encode QR content: %w", err)
	}
	signedQR := string(content)

	if err := s.transition(invoice, model.EInvoiceIRNGenerated); err != nil {
		return err
	}
	invoice.IRN = &irn
	invoice.AckNumber = &ackNo
	invoice.AckDate = &ackDate
	invoice.SignedQRCode = &signedQR
	invoice.QRCodeImage = s.renderQR(signedQR)
	invoice.NICResponse = model.JSONMap{"mode": "test", "message": simulatedMessage}
	return nil
}

func (s *einvoiceService) register(ctx context.Context, cred *model.GSTCredential, req *model.EInvoiceRequest, invoice *model.EInvoice) error {
	if field, ok := checkPincodes(req); !ok {
		return s.fail(invoice, model.EInvoiceSubmissionFailed, "NIC API Error: "+field+" must be a 6-digit pincode", nil)
	}

	session, err := s.client.Authenticate(ctx, cred)
	if err != nil {
		return s.fail(invoice, model.EInvoiceAuthFailed, "NIC Auth Failed: "+err.Error(), nil)
	}

	result := s.client.Submit(ctx, session, nic.BuildInvoicePayload(req))
	if !result.OK {
		return s.fail(invoice, model.EInvoiceSubmissionFailed, "NIC API Error: "+result.Diagnostic, result.Raw)
	}
	if !result.Accepted() {
		return s.fail(invoice, model.EInvoiceRejected, result.Response.ErrorMessages(), result.Raw)
	}

	var data nic.IRNData
	if err := json.Unmarshal(result.Response.Data, &data); err != nil {
		return s.fail(invoice, model.EInvoiceSubmissionFailed, "NIC API Error: invalid IRN data: "+err.Error(), result.Raw)
	}

	if err := s.transition(invoice, model.EInvoiceIRNGenerated); err != nil {
		return err
	}
	invoice.IRN = optional(data.Irn)
	invoice.AckNumber = optional(data.AckNo.String())
	invoice.AckDate = optional(data.AckDt)
	invoice.SignedInvoice = optional(data.SignedInvoice)
	invoice.SignedQRCode = optional(data.SignedQRCode)
	invoice.EWayBillNumber = optional(data.EwbNo.String())
	invoice.EWayBillDate = optional(data.EwbDt)
	invoice.EWayBillValidTill = optional(data.EwbValidTill)
	if data.SignedQRCode != "" {
		invoice.QRCodeImage = s.renderQR(data.SignedQRCode)
	}
	invoice.NICResponse = decodeNICResponse(result.Raw)
	return nil
}

func (s *einvoiceService) fail(invoice *model.EInvoice, status, details string, raw json.RawMessage) error {
	if err := s.transition(invoice, status); err != nil {
		return err
	}
	invoice.ErrorDetails = &details
	if raw != nil {
		invoice.NICResponse = decodeNICResponse(raw)
	}
	return nil
}

func (s *einvoiceService) transition(invoice *model.EInvoice, to string) error {
	if !model.CanTransition(invoice.Status, to) {
		return apperror.NewInvalidState("Cannot move e-invoice from %s to %s", invoice.Status, to)
	}
	invoice.Status = to
	return nil
}

// renderQR returns nil when the image cannot be produced; the invoice is still valid without it.
func (s *einvoiceService) renderQR(content string) *string {
	img, err := qr.RenderBase64(content)
	if err != nil {
		s.log.WithError(err).Warn("failed to render QR code")
		return nil
	}
	return &img
}

// Cancel moves an IRN-generated invoice to cancelled. The portal call is best effort:
// its failure is recorded in nic_response and never blocks the local cancellation.
func (s *einvoiceService) Cancel(ctx context.Context, id uuid.UUID, reason string, actorID *uuid.UUID) (*model.EInvoice, error) {
	invoice, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice.Status != model.EInvoiceIRNGenerated {
		return nil, apperror.NewInvalidState("Only IRN-generated invoices can be cancelled")
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = defaultCancelReason
	}

	cred := s.provider.Current()
	if cred != nil && invoice.IRN != nil && *invoice.IRN != "" {
		invoice.NICResponse = s.cancelRemote(ctx, cred, *invoice.IRN, reason)
	} else {
		invoice.NICResponse = model.JSONMap{"mode": "test", "message": simulatedCancel}
	}

	if err := s.transition(invoice, model.EInvoiceCancelled); err != nil {
		return nil, err
	}
	details := "Cancelled: " + reason
	invoice.ErrorDetails = &details
	stamp := s.now().UTC()
	invoice.UpdatedAt = &stamp

	if err := s.repo.Save(ctx, invoice); err != nil {
		return nil, fmt.Errorf("failed to save e-invoice: %w", err)
	}

	s.audit.Record(ctx, actorID, model.ActionCancelEInvoice, invoice.ID.String(), invoice.DocumentNumber, map[string]interface{}{
		"reason": reason,
	})
	s.announce(invoice)
	return invoice, nil
}

func (s *einvoiceService) cancelRemote(ctx context.Context, cred *model.GSTCredential, irn, reason string) model.JSONMap {
	session, err := s.client.Authenticate(ctx, cred)
	if err != nil {
		s.log.WithError(err).WithField("irn", irn).Warn("NIC auth failed during cancellation")
		return model.JSONMap{"error": "NIC Auth Failed: " + err.Error()}
	}
	result := s.client.Cancel(ctx, session, irn, reason)
	if !result.OK {
		s.log.WithField("irn", irn).Warn("NIC cancellation call failed: " + result.Diagnostic)
		return model.JSONMap{"error": result.Diagnostic}
	}
	return decodeNICResponse(result.Raw)
}

func (s *einvoiceService) List(ctx context.Context, status string, page, limit int) ([]model.EInvoice, int64, error) {
	if status != "" && !model.IsValidEInvoiceStatus(status) {
		return nil, 0, apperror.NewValidation("Invalid status filter: %s", status)
	}
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	invoices, total, err := s.repo.List(ctx, status, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch e-invoices: %w", err)
	}
	return invoices, total, nil
}

func (s *einvoiceService) Get(ctx context.Context, id uuid.UUID) (*model.EInvoice, error) {
	invoice, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFound("E-Invoice not found")
		}
		return nil, fmt.Errorf("failed to fetch e-invoice: %w", err)
	}
	return invoice, nil
}

func (s *einvoiceService) Stats(ctx context.Context) (*EInvoiceStats, error) {
	var stats EInvoiceStats
	counts := []struct {
		dst      *int64
		statuses []string
	}{
		{&stats.Total, nil},
		{&stats.IRNGenerated, []string{model.EInvoiceIRNGenerated}},
		{&stats.Cancelled, []string{model.EInvoiceCancelled}},
		{&stats.Failed, []string{model.EInvoiceRejected, model.EInvoiceAuthFailed, model.EInvoiceSubmissionFailed}},
		{&stats.Draft, []string{model.EInvoiceDraft}},
	}
	for _, c := range counts {
		n, err := s.repo.CountByStatus(ctx, c.statuses...)
		if err != nil {
			return nil, fmt.Errorf("failed to count e-invoices: %w", err)
		}
		*c.dst = n
	}

	total, err := s.repo.SumTotalValue(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to sum e-invoice values: %w", err)
	}
	stats.TotalValue = total
	stats.CredentialsConfigured = s.provider.Current() != nil
	return &stats, nil
}

func (s *einvoiceService) announce(invoice *model.EInvoice) {
	s.metrics.RecordTransition(invoice.Status)
	if s.events == nil {
		return
	}
	s.events.Publish(EInvoiceStatusEvent{
		Type:           EventEInvoiceStatus,
		ID:             invoice.ID,
		DocumentNumber: invoice.DocumentNumber,
		Status:         invoice.Status,
	})
}

func validateEInvoiceRequest(req *model.EInvoiceRequest) error {
	req.DocumentNumber = strings.TrimSpace(req.DocumentNumber)
	switch {
	case req.DocumentNumber == "":
		return apperror.NewValidation("document_number is required")
	case strings.TrimSpace(req.SellerGSTIN) == "":
		return apperror.NewValidation("seller_gstin is required")
	case strings.TrimSpace(req.BuyerGSTIN) == "":
		return apperror.NewValidation("buyer_gstin is required")
	case len(req.Items) == 0:
		return apperror.NewValidation("At least one item is required")
	}

	return nil
}

// checkPincodes validates the seller and buyer pincodes the portal requires.
// Dispatch and ship-to pincodes are optional and go out as 0 when blank.
func checkPincodes(req *model.EInvoiceRequest) (string, bool) {
	if !nic.ValidPincode(req.SellerPincode) {
		return "seller_pincode", false
	}
	if !nic.ValidPincode(req.BuyerPincode) {
		return "buyer_pincode", false
	}
	return "", true
}

func newEInvoice(req *model.EInvoiceRequest, actorID *uuid.UUID) *model.EInvoice {
	items := make([]model.EInvoiceItem, len(req.Items))
	copy(items, req.Items)
	return &model.EInvoice{
		BillingID:         req.BillingID,
		DocumentNumber:    req.DocumentNumber,
		DocumentDate:      req.DocumentDate,
		DocumentType:      req.DocumentType,
		SupplyType:        req.SupplyType,
		SellerGSTIN:       req.SellerGSTIN,
		SellerLegalName:   req.SellerLegalName,
		BuyerGSTIN:        req.BuyerGSTIN,
		BuyerLegalName:    req.BuyerLegalName,
		TotalTaxableValue: req.TotalTaxableValue,
		TotalCGST:         req.TotalCGST,
		TotalSGST:         req.TotalSGST,
		TotalIGST:         req.TotalIGST,
		TotalInvoiceValue: req.TotalInvoiceValue,
		Items:             items,
		Status:            model.EInvoiceDraft,
		CreatedBy:         actorID,
	}
}

func decodeNICResponse(raw json.RawMessage) model.JSONMap {
	if len(raw) == 0 {
		return nil
	}
	var m model.JSONMap
	if err := json.Unmarshal(raw, &m); err != nil {
		return model.JSONMap{"raw": string(raw)}
	}
	return m
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
