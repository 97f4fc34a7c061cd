package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestRecordHelpers(t *testing.T) {
	m := New()
	m.RecordTransition("irn_generated")
	m.RecordTransition("irn_generated")
	m.RecordNICCall("auth", "ok", 120*time.Millisecond)
	m.RecordDenied("permission")

	body := scrape(t, m)
	assert.Contains(t, body, `erp_einvoice_transitions_total{status="irn_generated"} 2`)
	assert.Contains(t, body, `erp_nic_calls_total{operation="auth",outcome="ok"} 1`)
	assert.Contains(t, body, `erp_nic_call_duration_seconds_count{operation="auth"} 1`)
	assert.Contains(t, body, `erp_authz_denied_total{guard="permission"} 1`)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordTransition("draft")
		m.RecordCredentialReload("ok")
	})
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.RecordCredentialReload("ok")

	body := scrape(t, m)
	assert.Contains(t, body, `erp_credential_reloads_total{outcome="ok"} 1`)
	assert.Contains(t, body, "go_goroutines")
}
