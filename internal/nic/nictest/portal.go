// Package nictest provides an in-process fake of the NIC e-invoice portal.
package nictest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
)

const (
	AuthToken = "fake-auth-token"
	Sek       = "fake-sek"
	IRN       = "a5c12dca80e743321740b001fd70953e8738d109865d28ba4013750f2046f229"
)

// Portal is a configurable fake portal. Zero value flags mean "accept".
type Portal struct {
	*httptest.Server

	mu            sync.Mutex
	RejectAuth    bool
	AuthStatus    int // HTTP status for auth, 200 when zero
	RejectSubmit  bool
	BrokenSubmit  bool // reply with a non-JSON body
	BrokenCancel  bool
	Auths         int
	Submissions   []map[string]interface{}
	Cancellations []map[string]interface{}
	LastHeaders   http.Header
}

func NewPortal() *Portal {
	p := &Portal{}
	mux := http.NewServeMux()
	mux.HandleFunc("/eivital/v1.04/auth", p.auth)
	mux.HandleFunc("/eicore/v1.03/Invoice", p.submit)
	mux.HandleFunc("/eicore/v1.03/Invoice/Cancel", p.cancel)
	p.Server = httptest.NewServer(mux)
	return p
}

func (p *Portal) auth(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Auths++
	p.LastHeaders = r.Header.Clone()

	if p.AuthStatus != 0 && p.AuthStatus != http.StatusOK {
		w.WriteHeader(p.AuthStatus)
		return
	}
	if p.RejectAuth {
		writeJSON(w, map[string]interface{}{
			"Status":       0,
			"ErrorDetails": []map[string]string{{"ErrorCode": "1005", "ErrorMessage": "Invalid Token"}},
		})
		return
	}
	writeJSON(w, map[string]interface{}{
		"Status": 1,
		"Data":   map[string]string{"AuthToken": AuthToken, "Sek": Sek},
	})
}

func (p *Portal) submit(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.LastHeaders = r.Header.Clone()

	var body map[string]interface{}
	_ = json.NewDecoder(r.Body).Decode(&body)
	p.Submissions = append(p.Submissions, body)

	if p.BrokenSubmit {
		_, _ = w.Write([]byte("<html>gateway timeout</html>"))
		return
	}
	if p.RejectSubmit {
		writeJSON(w, map[string]interface{}{
			"Status": 0,
			"ErrorDetails": []map[string]string{
				{"ErrorCode": "2150", "ErrorMessage": "Duplicate IRN"},
				{"ErrorCode": "2172", "ErrorMessage": "Invalid buyer GSTIN"},
			},
		})
		return
	}
	writeJSON(w, map[string]interface{}{
		"Status": 1,
		"Data": map[string]interface{}{
			"Irn":           IRN,
			"AckNo":         112010000012345,
			"AckDt":         "2026-04-01 10:15:00",
			"SignedInvoice": "signed.invoice.jwt",
			"SignedQRCode":  "signed.qr.jwt",
		},
	})
}

func (p *Portal) cancel(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var body map[string]interface{}
	_ = json.NewDecoder(r.Body).Decode(&body)
	p.Cancellations = append(p.Cancellations, body)

	if p.BrokenCancel {
		_, _ = w.Write([]byte("oops"))
		return
	}
	writeJSON(w, map[string]interface{}{
		"Status": 1,
		"Data":   map[string]string{"Irn": IRN, "CancelDate": "2026-04-02 09:00:00"},
	})
}

// SubmissionCount is safe to call while requests are in flight.
func (p *Portal) SubmissionCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Submissions)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
