package nic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"civil-erp/internal/metrics"
	"civil-erp/internal/model"

	"github.com/sirupsen/logrus"
)

const (
	authPath   = "/eivital/v1.04/auth"
	submitPath = "/eicore/v1.03/Invoice"
	cancelPath = "/eicore/v1.03/Invoice/Cancel"

	// CancelReasonDataEntry is the portal code for "data entry mistake".
	CancelReasonDataEntry = "1"

	unreachableMessage = "Cannot reach NIC portal. Check URL and network."
)

// Decrypter opens secrets stored in the credential record.
type Decrypter interface {
	DecryptString(ciphertext string) (string, error)
}

// Timeouts bound each portal call.
type Timeouts struct {
	Auth   time.Duration
	Submit time.Duration
	Cancel time.Duration
}

// DefaultTimeouts matches the portal's documented response windows.
var DefaultTimeouts = Timeouts{Auth: 15 * time.Second, Submit: 30 * time.Second, Cancel: 15 * time.Second}

// AuthFailure classifies why a session could not be acquired.
type AuthFailure string

const (
	AuthRejected    AuthFailure = "rejected"    // portal answered 200 with Status != 1
	AuthUnreachable AuthFailure = "unreachable" // connection could not be established
	AuthHTTPStatus  AuthFailure = "http_status" // portal answered with a non-200 code
	AuthOther       AuthFailure = "other"       // decryption, encoding or unexpected errors
)

// AuthError is returned by Authenticate for every failure.
type AuthError struct {
	Failure    AuthFailure
	Message    string
	StatusCode int // set for AuthHTTPStatus
}

func (e *AuthError) Error() string { return e.Message }

// Session is an authenticated portal context used by Submit and Cancel.
type Session struct {
	Token        string
	Sek          string
	PortalBase   string
	GSTIN        string
	Username     string
	ClientID     string
	ClientSecret string
}

// ErrorDetail is one entry of the portal's ErrorDetails array.
type ErrorDetail struct {
	ErrorCode    string `json:"ErrorCode"`
	ErrorMessage string `json:"ErrorMessage"`
}

// AuthorityResponse is the portal's common response envelope.
type AuthorityResponse struct {
	Status       int             `json:"Status"`
	Data         json.RawMessage `json:"Data"`
	ErrorDetails []ErrorDetail   `json:"ErrorDetails"`
}

// ErrorMessages joins every reported message with "; ".
func (r *AuthorityResponse) ErrorMessages() string {
	if len(r.ErrorDetails) == 0 {
		return "Unknown NIC error"
	}
	msgs := make([]string, 0, len(r.ErrorDetails))
	for _, d := range r.ErrorDetails {
		msgs = append(msgs, d.ErrorMessage)
	}
	return strings.Join(msgs, "; ")
}

func (r *AuthorityResponse) firstErrorMessage(fallback string) string {
	if len(r.ErrorDetails) > 0 && r.ErrorDetails[0].ErrorMessage != "" {
		return r.ErrorDetails[0].ErrorMessage
	}
	return fallback
}

// IRNData is the Data block of an accepted invoice submission.
type IRNData struct {
	Irn           string      `json:"Irn"`
	AckNo         json.Number `json:"AckNo"`
	AckDt         string      `json:"AckDt"`
	SignedInvoice string      `json:"SignedInvoice"`
	SignedQRCode  string      `json:"SignedQRCode"`
	EwbNo         json.Number `json:"EwbNo"`
	EwbDt         string      `json:"EwbDt"`
	EwbValidTill  string      `json:"EwbValidTill"`
}

type authData struct {
	AuthToken string `json:"AuthToken"`
	Sek       string `json:"Sek"`
}

// Result is the uniform outcome of a submit or cancel call. It never carries a Go error:
// a transport or parse failure sets OK=false with a Diagnostic and a nil Response.
type Result struct {
	OK         bool
	Diagnostic string
	Response   *AuthorityResponse
	Raw        json.RawMessage
}

// Accepted reports whether the portal answered with Status 1.
func (r Result) Accepted() bool {
	return r.OK && r.Response != nil && r.Response.Status == 1
}

type cancelRequest struct {
	Irn    string `json:"Irn"`
	CnlRsn string `json:"CnlRsn"`
	CnlRem string `json:"CnlRem"`
}

type authRequest struct {
	UserName                string `json:"UserName"`
	Password                string `json:"Password"`
	AppKey                  string `json:"AppKey"`
	ForceRefreshAccessToken string `json:"ForceRefreshAccessToken"`
}

// Client talks to the NIC e-invoice portal.
type Client struct {
	httpClient *http.Client
	decrypter  Decrypter
	timeouts   Timeouts
	metrics    *metrics.Metrics
	log        logrus.FieldLogger
}

func NewClient(decrypter Decrypter, timeouts Timeouts, m *metrics.Metrics, log logrus.FieldLogger) *Client {
	return &Client{
		httpClient: &http.Client{},
		decrypter:  decrypter,
		timeouts:   timeouts,
		metrics:    m,
		log:        log,
	}
}

// Authenticate decrypts the stored secrets and acquires a portal session.
// Every failure is returned as *AuthError.
func (c *Client) Authenticate(ctx context.Context, cred *model.GSTCredential) (*Session, error) {
	if cred == nil {
		return nil, &AuthError{Failure: AuthOther, Message: "GST credentials not configured"}
	}
	password, err := c.decrypter.DecryptString(cred.PasswordEnc)
	if err != nil {
		return nil, &AuthError{Failure: AuthOther, Message: "cannot decrypt stored password: " + err.Error()}
	}
	clientSecret, err := c.decrypter.DecryptString(cred.ClientSecretEnc)
	if err != nil {
		return nil, &AuthError{Failure: AuthOther, Message: "cannot decrypt stored client secret: " + err.Error()}
	}

	base := strings.TrimRight(cred.NICURL, "/")
	body := authRequest{
		UserName:                cred.Username,
		Password:                password,
		AppKey:                  cred.ClientID,
		ForceRefreshAccessToken: "true",
	}
	headers := map[string]string{
		"client_id":     cred.ClientID,
		"client_secret": clientSecret,
		"gstin":         cred.GSTIN,
	}

	start := time.Now()
	status, raw, err := c.post(ctx, c.timeouts.Auth, base+authPath, body, headers)
	if err != nil {
		c.metrics.RecordNICCall("auth", "error", time.Since(start))
		if isConnectError(err) {
			return nil, &AuthError{Failure: AuthUnreachable, Message: unreachableMessage}
		}
		return nil, &AuthError{Failure: AuthOther, Message: err.Error()}
	}
	if status != http.StatusOK {
		c.metrics.RecordNICCall("auth", "http_status", time.Since(start))
		return nil, &AuthError{Failure: AuthHTTPStatus, StatusCode: status, Message: fmt.Sprintf("NIC auth returned %d", status)}
	}

	var resp AuthorityResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		c.metrics.RecordNICCall("auth", "error", time.Since(start))
		return nil, &AuthError{Failure: AuthOther, Message: "invalid auth response: " + err.Error()}
	}
	if resp.Status != 1 {
		c.metrics.RecordNICCall("auth", "rejected", time.Since(start))
		return nil, &AuthError{Failure: AuthRejected, Message: resp.firstErrorMessage("Auth failed")}
	}
	var data authData
	if err := json.Unmarshal(resp.Data, &data); err != nil || data.AuthToken == "" {
		c.metrics.RecordNICCall("auth", "error", time.Since(start))
		return nil, &AuthError{Failure: AuthOther, Message: "auth response missing AuthToken"}
	}
	c.metrics.RecordNICCall("auth", "ok", time.Since(start))

	return &Session{
		Token:        data.AuthToken,
		Sek:          data.Sek,
		PortalBase:   base,
		GSTIN:        cred.GSTIN,
		Username:     cred.Username,
		ClientID:     cred.ClientID,
		ClientSecret: clientSecret,
	}, nil
}

// Submit registers an invoice payload and returns the portal's verdict.
func (c *Client) Submit(ctx context.Context, s *Session, payload *InvoicePayload) Result {
	return c.call(ctx, "submit", c.timeouts.Submit, s, submitPath, payload)
}

// Cancel asks the portal to cancel a registered IRN.
func (c *Client) Cancel(ctx context.Context, s *Session, irn, reason string) Result {
	body := cancelRequest{Irn: irn, CnlRsn: CancelReasonDataEntry, CnlRem: reason}
	return c.call(ctx, "cancel", c.timeouts.Cancel, s, cancelPath, body)
}

func (c *Client) call(ctx context.Context, op string, timeout time.Duration, s *Session, path string, body interface{}) Result {
	start := time.Now()
	_, raw, err := c.post(ctx, timeout, s.PortalBase+path, body, sessionHeaders(s))
	if err != nil {
		c.metrics.RecordNICCall(op, "error", time.Since(start))
		c.log.WithError(err).WithField("operation", op).Warn("NIC call failed")
		return Result{Diagnostic: err.Error()}
	}

	var resp AuthorityResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		c.metrics.RecordNICCall(op, "error", time.Since(start))
		return Result{Diagnostic: "invalid NIC response: " + err.Error(), Raw: rawOrNil(raw)}
	}

	outcome := "ok"
	if resp.Status != 1 {
		outcome = "rejected"
	}
	c.metrics.RecordNICCall(op, outcome, time.Since(start))
	return Result{OK: true, Response: &resp, Raw: raw}
}

func (c *Client) post(ctx context.Context, timeout time.Duration, url string, body interface{}, headers map[string]string) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	buf, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		// The portal expects these header names verbatim, so bypass canonicalization.
		req.Header[k] = []string{v}
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return res.StatusCode, raw, nil
}

func sessionHeaders(s *Session) map[string]string {
	return map[string]string{
		"client_id":     s.ClientID,
		"client_secret": s.ClientSecret,
		"gstin":         s.GSTIN,
		"user_name":     s.Username,
		"AuthToken":     s.Token,
		"Sek":           s.Sek,
	}
}

func isConnectError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func rawOrNil(raw []byte) json.RawMessage {
	if json.Valid(raw) {
		return raw
	}
	return nil
}
