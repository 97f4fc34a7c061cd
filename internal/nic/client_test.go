package nic

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"civil-erp/internal/model"
	"civil-erp/internal/nic/nictest"
	"civil-erp/pkg/secret"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *secret.Cipher) {
	t.Helper()
	c, err := secret.NewCipher(strings.Repeat("k", 32))
	require.NoError(t, err)
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewClient(c, DefaultTimeouts, nil, log), c
}

func credentialFor(t *testing.T, c *secret.Cipher, url string) *model.GSTCredential {
	t.Helper()
	pw, err := c.EncryptString("portal-pass")
	require.NoError(t, err)
	cs, err := c.EncryptString("client-secret")
	require.NoError(t, err)
	return &model.GSTCredential{
		GSTIN:           "33AAAAA0000A1Z5",
		Username:        "api_user",
		PasswordEnc:     pw,
		ClientID:        "client-1",
		ClientSecretEnc: cs,
		NICURL:          url,
		IsSandbox:       true,
	}
}

func TestAuthenticateSuccessSendsHeaders(t *testing.T) {
	portal := nictest.NewPortal()
	defer portal.Close()
	client, cipher := newTestClient(t)

	session, err := client.Authenticate(context.Background(), credentialFor(t, cipher, portal.URL+"/"))
	require.NoError(t, err)
	assert.Equal(t, nictest.AuthToken, session.Token)
	assert.Equal(t, nictest.Sek, session.Sek)
	assert.Equal(t, portal.URL, session.PortalBase)
	assert.Equal(t, "client-secret", session.ClientSecret)

	assert.Equal(t, "client-1", portal.LastHeaders.Get("client_id"))
	assert.Equal(t, "client-secret", portal.LastHeaders.Get("client_secret"))
	assert.Equal(t, "33AAAAA0000A1Z5", portal.LastHeaders.Get("gstin"))
}

func TestAuthenticateFailureShapes(t *testing.T) {
	portal := nictest.NewPortal()
	defer portal.Close()
	client, cipher := newTestClient(t)
	cred := credentialFor(t, cipher, portal.URL)

	portal.RejectAuth = true
	_, err := client.Authenticate(context.Background(), cred)
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, AuthRejected, authErr.Failure)
	assert.Equal(t, "Invalid Token", authErr.Message)

	portal.RejectAuth = false
	portal.AuthStatus = http.StatusServiceUnavailable
	_, err = client.Authenticate(context.Background(), cred)
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, AuthHTTPStatus, authErr.Failure)
	assert.Equal(t, "NIC auth returned 503", authErr.Message)
}

func TestAuthenticateUnreachable(t *testing.T) {
	portal := nictest.NewPortal()
	url := portal.URL
	portal.Close()

	client, cipher := newTestClient(t)
	_, err := client.Authenticate(context.Background(), credentialFor(t, cipher, url))
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, AuthUnreachable, authErr.Failure)
	assert.Equal(t, "Cannot reach NIC portal. Check URL and network.", authErr.Message)
}

func TestAuthenticateUndecryptableSecret(t *testing.T) {
	client, cipher := newTestClient(t)
	cred := credentialFor(t, cipher, "http://127.0.0.1:1")
	cred.PasswordEnc = "garbage"

	_, err := client.Authenticate(context.Background(), cred)
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, AuthOther, authErr.Failure)
}

func TestSubmitAndCancel(t *testing.T) {
	portal := nictest.NewPortal()
	defer portal.Close()
	client, cipher := newTestClient(t)
	ctx := context.Background()

	session, err := client.Authenticate(ctx, credentialFor(t, cipher, portal.URL))
	require.NoError(t, err)

	res := client.Submit(ctx, session, BuildInvoicePayload(sampleRequest()))
	require.True(t, res.Accepted(), res.Diagnostic)
	assert.Equal(t, nictest.AuthToken, portal.LastHeaders.Get("AuthToken"))
	assert.Equal(t, "api_user", portal.LastHeaders.Get("user_name"))

	res = client.Cancel(ctx, session, nictest.IRN, "Duplicate")
	require.True(t, res.Accepted())
	require.Len(t, portal.Cancellations, 1)
	assert.Equal(t, map[string]interface{}{"Irn": nictest.IRN, "CnlRsn": "1", "CnlRem": "Duplicate"}, portal.Cancellations[0])
}

func TestSubmitRejectionAndBrokenResponse(t *testing.T) {
	portal := nictest.NewPortal()
	defer portal.Close()
	client, cipher := newTestClient(t)
	ctx := context.Background()

	session, err := client.Authenticate(ctx, credentialFor(t, cipher, portal.URL))
	require.NoError(t, err)

	portal.RejectSubmit = true
	res := client.Submit(ctx, session, BuildInvoicePayload(sampleRequest()))
	assert.True(t, res.OK)
	assert.False(t, res.Accepted())
	assert.Equal(t, "Duplicate IRN; Invalid buyer GSTIN", res.Response.ErrorMessages())

	portal.BrokenSubmit = true
	res = client.Submit(ctx, session, BuildInvoicePayload(sampleRequest()))
	assert.False(t, res.OK)
	assert.Nil(t, res.Response)
	assert.Contains(t, res.Diagnostic, "invalid NIC response")
}

func TestSubmitTransportFailureIsAValue(t *testing.T) {
	client, _ := newTestClient(t)
	session := &Session{PortalBase: "http://127.0.0.1:1", Token: "t"}

	res := client.Cancel(context.Background(), session, "irn", "reason")
	assert.False(t, res.OK)
	assert.NotEmpty(t, res.Diagnostic)
}

func TestErrorMessagesFallback(t *testing.T) {
	r := &AuthorityResponse{Status: 0}
	assert.Equal(t, "Unknown NIC error", r.ErrorMessages())
}
