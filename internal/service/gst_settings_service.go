package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"civil-erp/internal/model"
	"civil-erp/internal/nic"
	"civil-erp/internal/repository"
	"civil-erp/pkg/apperror"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UnchangedSecret, sent in place of a secret, keeps the stored value.
const UnchangedSecret = "___unchanged___"

// Connection test outcomes.
const (
	ConnectionConnected   = "connected"
	ConnectionAuthFailed  = "auth_failed"
	ConnectionUnreachable = "unreachable"
	ConnectionError       = "error"
)

type SaveGSTCredentialsRequest struct {
	GSTIN        string `json:"gstin" binding:"required"`
	Username     string `json:"username" binding:"required"`
	Password     string `json:"password" binding:"required"`
	ClientID     string `json:"client_id" binding:"required"`
	ClientSecret string `json:"client_secret" binding:"required"`
	NICURL       string `json:"nic_url"`
	IsSandbox    *bool  `json:"is_sandbox"`
}

type GSTCredentialsResponse struct {
	GSTIN        string  `json:"gstin,omitempty"`
	Username     string  `json:"username,omitempty"`
	ClientID     string  `json:"client_id,omitempty"`
	NICURL       string  `json:"nic_url,omitempty"`
	IsSandbox    *bool   `json:"is_sandbox,omitempty"`
	IsConfigured bool    `json:"is_configured"`
	LastUpdated  *string `json:"last_updated,omitempty"`
}

type ConnectionTestResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Encrypter seals secrets before they are stored.
type Encrypter interface {
	EncryptString(plaintext string) (string, error)
}

// PortalAuthenticator acquires a portal session from a stored credential.
type PortalAuthenticator interface {
	Authenticate(ctx context.Context, cred *model.GSTCredential) (*nic.Session, error)
}

type GSTSettingsService interface {
	Save(ctx context.Context, req SaveGSTCredentialsRequest, actorID uuid.UUID) (*GSTCredentialsResponse, error)
	Get(ctx context.Context) (*GSTCredentialsResponse, error)
	Delete(ctx context.Context, actorID uuid.UUID) error
	TestConnection(ctx context.Context) (*ConnectionTestResult, error)
}

type gstSettingsService struct {
	repo     repository.GSTCredentialRepository
	provider CredentialProvider
	cipher   Encrypter
	portal   PortalAuthenticator
	audit    AuditService
}

func NewGSTSettingsService(
	repo repository.GSTCredentialRepository,
	provider CredentialProvider,
	cipher Encrypter,
	portal PortalAuthenticator,
	audit AuditService,
) GSTSettingsService {
	return &gstSettingsService{repo: repo, provider: provider, cipher: cipher, portal: portal, audit: audit}
}

func (s *gstSettingsService) load(ctx context.Context) (*model.GSTCredential, error) {
	cred, err := s.repo.Get(ctx)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load GST credentials: %w", err)
	}
	return cred, nil
}

// sealSecret encrypts a new value, or keeps the existing ciphertext for UnchangedSecret.
func (s *gstSettingsService) sealSecret(value, existing, field string) (string, error) {
	if value == UnchangedSecret {
		if existing == "" {
			return "", apperror.NewValidation("%s is required", field)
		}
		return existing, nil
	}
	enc, err := s.cipher.EncryptString(value)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt %s: %w", field, err)
	}
	return enc, nil
}

func (s *gstSettingsService) Save(ctx context.Context, req SaveGSTCredentialsRequest, actorID uuid.UUID) (*GSTCredentialsResponse, error) {
	existing, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	var prevPassword, prevSecret string
	if existing != nil {
		prevPassword, prevSecret = existing.PasswordEnc, existing.ClientSecretEnc
	}

	passwordEnc, err := s.sealSecret(req.Password, prevPassword, "password")
	if err != nil {
		return nil, err
	}
	secretEnc, err := s.sealSecret(req.ClientSecret, prevSecret, "client_secret")
	if err != nil {
		return nil, err
	}

	nicURL := strings.TrimRight(strings.TrimSpace(req.NICURL), "/")
	if nicURL == "" {
		nicURL = model.DefaultNICURL
	}
	sandbox := true
	if req.IsSandbox != nil {
		sandbox = *req.IsSandbox
	}

	cred := &model.GSTCredential{
		GSTIN:           strings.TrimSpace(req.GSTIN),
		Username:        strings.TrimSpace(req.Username),
		PasswordEnc:     passwordEnc,
		ClientID:        strings.TrimSpace(req.ClientID),
		ClientSecretEnc: secretEnc,
		NICURL:          nicURL,
		IsSandbox:       sandbox,
		UpdatedBy:       &actorID,
		UpdatedAt:       time.Now().UTC(),
	}
	if err := s.repo.Upsert(ctx, cred); err != nil {
		return nil, fmt.Errorf("failed to save GST credentials: %w", err)
	}
	if err := s.provider.Reload(ctx); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, &actorID, model.ActionSaveGSTCredentials, cred.GSTIN, cred.Username, map[string]interface{}{
		"nic_url":    cred.NICURL,
		"is_sandbox": cred.IsSandbox,
	})
	return toCredentialsResponse(cred), nil
}

func (s *gstSettingsService) Get(ctx context.Context) (*GSTCredentialsResponse, error) {
	cred, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return &GSTCredentialsResponse{IsConfigured: false}, nil
	}
	return toCredentialsResponse(cred), nil
}

func (s *gstSettingsService) Delete(ctx context.Context, actorID uuid.UUID) error {
	if err := s.repo.DeleteAll(ctx); err != nil {
		return fmt.Errorf("failed to delete GST credentials: %w", err)
	}
	if err := s.provider.Reload(ctx); err != nil {
		return err
	}
	s.audit.Record(ctx, &actorID, model.ActionDeleteGSTCredentials, "", "", nil)
	return nil
}

// TestConnection performs a real authentication round trip and reports the outcome.
// Portal failures are part of the result, not errors.
func (s *gstSettingsService) TestConnection(ctx context.Context) (*ConnectionTestResult, error) {
	cred, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, apperror.NewValidation("GST credentials not configured")
	}

	_, err = s.portal.Authenticate(ctx, cred)
	if err == nil {
		return &ConnectionTestResult{Status: ConnectionConnected, Message: "NIC Portal connection successful"}, nil
	}

	var authErr *nic.AuthError
	if !errors.As(err, &authErr) {
		return &ConnectionTestResult{Status: ConnectionError, Message: err.Error()}, nil
	}
	switch authErr.Failure {
	case nic.AuthRejected:
		return &ConnectionTestResult{Status: ConnectionAuthFailed, Message: authErr.Message}, nil
	case nic.AuthUnreachable:
		return &ConnectionTestResult{Status: ConnectionUnreachable, Message: authErr.Message}, nil
	case nic.AuthHTTPStatus:
		return &ConnectionTestResult{Status: ConnectionError, Message: fmt.Sprintf("NIC Portal returned status %d", authErr.StatusCode)}, nil
	default:
		return &ConnectionTestResult{Status: ConnectionError, Message: authErr.Message}, nil
	}
}

func toCredentialsResponse(cred *model.GSTCredential) *GSTCredentialsResponse {
	updated := cred.UpdatedAt.Format(time.RFC3339)
	sandbox := cred.IsSandbox
	return &GSTCredentialsResponse{
		GSTIN:        cred.GSTIN,
		Username:     cred.Username,
		ClientID:     cred.ClientID,
		NICURL:       cred.NICURL,
		IsSandbox:    &sandbox,
		IsConfigured: true,
		LastUpdated:  &updated,
	}
}
